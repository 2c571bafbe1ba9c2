// Package program holds the in-memory program model that the linker builds
// up across module incorporation, group consolidation, fixup resolution,
// and image layout (spec §3 "Program image" lifecycle): segments, groups,
// symbols, and fixups, each in its own append-only, stable-ID store.
package program

import "fmt"

// SegmentID identifies a segment for the lifetime of a link, even after the
// segment is nulled out by consolidation (spec §9 "Stable IDs for deleted
// slots").
type SegmentID int

// GroupID identifies a group for the lifetime of a link.
type GroupID int

// NoGroup marks a segment as not belonging to any group.
const NoGroup GroupID = -1

// Segment is spec §3's Segment entity. As loaded from a single module, a
// segment holds either initialised data (Hi > 0, Space == 0) or trailing
// uninitialised space (Hi == 0, Space > 0), never both; group consolidation
// can subsequently extend a data segment's trailing Space (folding a
// space-mode member into a data-mode main), so a consolidated segment may
// carry both.
type Segment struct {
	Name     string
	IsPublic bool
	IsStack  bool
	Group    GroupID
	P2Align  uint8
	PC       uint16 // location counter while loading
	Lo       uint16
	Hi       uint16
	Data     []byte
	Space    uint16
}

// NewSegment returns a Segment with Group unset (NoGroup). Go's zero value
// for GroupID is 0, a valid group index, not "no group" — constructing a
// Segment literal directly without setting Group is a trap; prefer this.
func NewSegment(name string) *Segment {
	return &Segment{Name: name, Group: NoGroup}
}

// Size reports the segment's occupied range, counting either initialised
// bytes or trailing space, never both.
func (s *Segment) Size() int {
	if s.Space > 0 {
		return int(s.Space)
	}
	return int(s.Hi) - int(s.Lo)
}

// SegmentList is the append-only, nullable-in-place store of spec §4.C: IDs
// are stable, entries may become nil ("nulled") after consolidation folds
// them into another segment, but the list itself never shrinks or
// reindexes.
type SegmentList struct {
	segs []*Segment
}

// NewSegmentList returns an empty segment store.
func NewSegmentList() *SegmentList {
	return &SegmentList{}
}

// Add appends a new segment and returns its stable ID.
func (l *SegmentList) Add(s *Segment) SegmentID {
	l.segs = append(l.segs, s)
	return SegmentID(len(l.segs) - 1)
}

// Get returns the segment at id, or nil if it has been nulled.
func (l *SegmentList) Get(id SegmentID) *Segment {
	if int(id) < 0 || int(id) >= len(l.segs) {
		return nil
	}
	return l.segs[id]
}

// Null removes the segment at id in place; its ID remains valid (and nil)
// for the remainder of the link.
func (l *SegmentList) Null(id SegmentID) {
	if int(id) >= 0 && int(id) < len(l.segs) {
		l.segs[id] = nil
	}
}

// Len returns the number of slots ever allocated, including nulled ones.
func (l *SegmentList) Len() int { return len(l.segs) }

// ByName finds a live (non-nulled) segment by name, honoring caseFold for
// the comparison. Returns NoGroup's segment analogue: (-1, nil) if absent.
func (l *SegmentList) ByName(name string, caseFold bool) (SegmentID, *Segment) {
	for i, s := range l.segs {
		if s == nil {
			continue
		}
		if segNameEq(s.Name, name, caseFold) {
			return SegmentID(i), s
		}
	}
	return -1, nil
}

func segNameEq(a, b string, caseFold bool) bool {
	if !caseFold {
		return a == b
	}
	return equalFold(a, b)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// FirstProperSegment returns the ID and segment of the first non-nulled
// entry, or (-1, nil) if the list is empty or fully nulled (spec §4.C).
func (l *SegmentList) FirstProperSegment() (SegmentID, *Segment) {
	return l.NextProperSegment(-1)
}

// NextProperSegment returns the next non-nulled entry strictly after after,
// skipping nulled slots, or (-1, nil) if none remain.
func (l *SegmentList) NextProperSegment(after SegmentID) (SegmentID, *Segment) {
	for i := int(after) + 1; i < len(l.segs); i++ {
		if l.segs[i] != nil {
			return SegmentID(i), l.segs[i]
		}
	}
	return -1, nil
}

// All iterates every allocated ID in insertion order, including nulled
// slots (the caller sees nil for those); this is the order the
// consolidator and image builder rely on (spec §5 "Ordering guarantees").
func (l *SegmentList) All(fn func(id SegmentID, s *Segment)) {
	for i, s := range l.segs {
		fn(SegmentID(i), s)
	}
}

func (id SegmentID) String() string {
	if id < 0 {
		return "<none>"
	}
	return fmt.Sprintf("seg#%d", int(id))
}
