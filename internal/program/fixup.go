package program

// FixupVariant discriminates the tagged union in spec §3's Fixup entity.
type FixupVariant int

const (
	FixupOffset FixupVariant = iota
	FixupExternal
	FixupGroupAbsoluteJump
	FixupSegment
	FixupGroup
)

func (v FixupVariant) String() string {
	switch v {
	case FixupOffset:
		return "Offset"
	case FixupExternal:
		return "External"
	case FixupGroupAbsoluteJump:
		return "GroupAbsoluteJump"
	case FixupSegment:
		return "Segment"
	case FixupGroup:
		return "Group"
	default:
		return "FixupVariant(?)"
	}
}

// ExternalKind distinguishes the two ways an External fixup is filled in
// (spec §3: "fill with the symbol's final offset (data) or its PC-relative
// displacement from end-of-instruction (jump)").
type ExternalKind int

const (
	ExternalData ExternalKind = iota
	ExternalJump
)

// Fixup is spec §3's Fixup entity: a common header plus a variant payload.
// Only the fields relevant to Variant are meaningful; this mirrors the
// tagged-union discipline of internal/objfile's Record (spec §9 "Tagged
// unions... use a sum type and match exhaustively").
type Fixup struct {
	HoldingSeg    SegmentID
	HoldingOffset uint16
	Variant       FixupVariant

	// Offset
	AddressedSeg SegmentID

	// External
	SymID SymbolID
	Kind  ExternalKind

	// GroupAbsoluteJump
	GroupNo GroupID

	// Segment (reuses AddressedSeg)
	AddressedBase  uint16
	HoldingSegAddr uint16 // filled at image build; shared with Group below

	// Group: addressed_seg is the group's main segment, resolved at image
	// build time rather than stored directly.
	AddressedGroupNo GroupID
}

// FixupLog is the append-only vector of spec §4.C: entries are mutated in
// place by the consolidator and resolver, but the log itself never shrinks
// or reorders.
type FixupLog struct {
	fixups []*Fixup
}

// NewFixupLog returns an empty fixup log.
func NewFixupLog() *FixupLog {
	return &FixupLog{}
}

// Add appends a fixup and returns its index (fixups have no stable "ID"
// concept beyond their slice position; nothing nulls them).
func (l *FixupLog) Add(f *Fixup) int {
	l.fixups = append(l.fixups, f)
	return len(l.fixups) - 1
}

// Len returns the number of fixups.
func (l *FixupLog) Len() int { return len(l.fixups) }

// At returns the fixup at index i, for in-place mutation by callers that
// hold the FixupLog (consolidator, resolver, image builder).
func (l *FixupLog) At(i int) *Fixup { return l.fixups[i] }

// All iterates every fixup in insertion order. The callback may mutate the
// pointee in place.
func (l *FixupLog) All(fn func(i int, f *Fixup)) {
	for i, f := range l.fixups {
		fn(i, f)
	}
}
