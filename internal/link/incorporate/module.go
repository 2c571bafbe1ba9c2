// Package incorporate implements spec §4.D: parsing one object module's
// record stream into per-module structures, then merging those structures
// into the growing program model (internal/program).
package incorporate

import (
	"fmt"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/objfile"
)

// moduleSegment is one OPEN_SEGMENT...CLOSE_SEGMENT fragment as seen
// within a single module, indices below are module-local.
type moduleSegment struct {
	Name     string
	Public   bool
	P2Align  uint8
	GroupIdx uint16 // objfile.NoGroup if the segment belongs to no group
	IsStack  bool
	Data     []byte
	Space    uint16
	Publics  []modulePublic
}

type modulePublic struct {
	Name   string
	Offset uint16
}

type moduleExtern struct {
	Name  string
	SymID uint16
}

// moduleFixup mirrors program.Fixup but keeps every index module-local;
// Merge remaps each field to program-wide coordinates.
type moduleFixup struct {
	HoldingSeg    int // index into Module.Segments
	HoldingOffset uint16
	Variant       objfile.Kind // the originating record kind, reused as the variant tag

	AddressedSeg      int    // Offset, Segment
	ExternSymID       uint16 // External
	ExternKind        objfile.FixupKind
	GroupIdx          uint16 // GroupAbsoluteJump
	AddressedBase     uint16 // Segment
	AddressedGroupIdx uint16 // Group
}

type moduleStart struct {
	Seg    int
	Offset uint16
}

// Module is one object file's parsed content, indices kept module-local
// until Merge rewrites them into program-wide coordinates.
type Module struct {
	Cased    bool
	Groups   []string // local group index -> name, in declaration order
	Segments []*moduleSegment
	Externs  []moduleExtern
	Fixups   []moduleFixup
	Start    *moduleStart
}

// Parse walks every record in r and builds a Module, enforcing spec §4.D
// step 1's per-module invariants. Container/ordinal errors are reported as
// diag.Fatal with category InputShape; CASED is recorded but not checked
// here (case-sensitivity mismatch against the program option is a Merge
// concern, since only Merge knows the program's flag).
func Parse(r *objfile.Reader) (*Module, error) {
	m := &Module{}

	var inModule bool
	var curSeg = -1 // index into m.Segments, -1 if none open
	var nextExternID uint16

	for i := 0; i < r.Len(); i++ {
		rec := r.At(i)
		switch rec.Kind {
		case objfile.KindBeginModule:
			if inModule {
				return nil, diag.Fatalf(diag.InputShape, "nested BEGIN_MODULE before END_MODULE")
			}
			inModule = true

		case objfile.KindEndModule:
			if !inModule {
				return nil, diag.Fatalf(diag.InputShape, "END_MODULE without BEGIN_MODULE")
			}
			if curSeg != -1 {
				return nil, diag.Fatalf(diag.InputShape, "unterminated segment %q at END_MODULE", m.Segments[curSeg].Name)
			}
			inModule = false

		case objfile.KindCased:
			m.Cased = true

		case objfile.KindGroupDecl:
			p := rec.Payload.(objfile.GroupDeclPayload)
			if p.Name == "" {
				return nil, diag.Fatalf(diag.InputShape, "empty group name")
			}
			m.Groups = append(m.Groups, p.Name)

		case objfile.KindSegmentOpen:
			if curSeg != -1 {
				return nil, diag.FatalSeg(diag.InputShape, m.Segments[curSeg].Name, "nested OPEN_SEGMENT before CLOSE_SEGMENT")
			}
			p := rec.Payload.(objfile.SegmentOpenPayload)
			if p.Name == "" {
				return nil, diag.Fatalf(diag.InputShape, "empty segment name")
			}
			if p.GroupIdx != objfile.NoGroup && int(p.GroupIdx) >= len(m.Groups) {
				return nil, diag.FatalSeg(diag.InputShape, p.Name, "segment references out-of-range group index %d", p.GroupIdx)
			}
			m.Segments = append(m.Segments, &moduleSegment{
				Name:     p.Name,
				Public:   p.Public,
				P2Align:  p.P2Align,
				GroupIdx: p.GroupIdx,
			})
			curSeg = len(m.Segments) - 1

		case objfile.KindSegmentClose:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "CLOSE_SEGMENT without a matching OPEN_SEGMENT")
			}
			curSeg = -1

		case objfile.KindDataBytes:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "DATA record outside any open segment")
			}
			seg := m.Segments[curSeg]
			if seg.Space > 0 {
				return nil, diag.FatalSeg(diag.InputShape, seg.Name, "cannot mix initialised data after trailing space in one segment fragment")
			}
			p := rec.Payload.(objfile.DataBytesPayload)
			seg.Data = append(seg.Data, p.Bytes...)

		case objfile.KindSpace:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "SPACE record outside any open segment")
			}
			seg := m.Segments[curSeg]
			if len(seg.Data) > 0 {
				return nil, diag.FatalSeg(diag.InputShape, seg.Name, "cannot mix trailing space after initialised data in one segment fragment")
			}
			p := rec.Payload.(objfile.SpacePayload)
			seg.Space += p.Size

		case objfile.KindPublic:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "PUBLIC record outside any open segment")
			}
			p := rec.Payload.(objfile.PublicPayload)
			if p.Name == "" {
				return nil, diag.Fatalf(diag.InputShape, "empty public symbol name")
			}
			seg := m.Segments[curSeg]
			seg.Publics = append(seg.Publics, modulePublic{Name: p.Name, Offset: p.Offset})

		case objfile.KindStartOffset:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "START record outside any open segment")
			}
			if m.Start != nil {
				return nil, diag.Fatalf(diag.Semantic, "module declares a second start address")
			}
			p := rec.Payload.(objfile.StartOffsetPayload)
			m.Start = &moduleStart{Seg: curSeg, Offset: p.Offset}

		case objfile.KindStackMark:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "STACK record outside any open segment")
			}
			m.Segments[curSeg].IsStack = true

		case objfile.KindExternDef:
			p := rec.Payload.(objfile.ExternDefPayload)
			if p.Name == "" {
				return nil, diag.Fatalf(diag.InputShape, "empty extern name")
			}
			if p.SymID != nextExternID {
				return nil, diag.Fatalf(diag.InputShape, "extern %q has out-of-sequence SymID %d, want %d", p.Name, p.SymID, nextExternID)
			}
			m.Externs = append(m.Externs, moduleExtern{Name: p.Name, SymID: p.SymID})
			nextExternID++

		case objfile.KindFixupOffset:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_OFFSET outside any open segment")
			}
			p := rec.Payload.(objfile.FixupOffsetPayload)
			if int(p.AddressedSeg) >= len(m.Segments) {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_OFFSET addresses out-of-range segment %d", p.AddressedSeg)
			}
			m.Fixups = append(m.Fixups, moduleFixup{
				HoldingSeg: curSeg, HoldingOffset: p.HoldingOffset,
				Variant: objfile.KindFixupOffset, AddressedSeg: int(p.AddressedSeg),
			})

		case objfile.KindFixupExtern:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_EXTERN outside any open segment")
			}
			p := rec.Payload.(objfile.FixupExternPayload)
			if int(p.SymID) >= len(m.Externs) {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_EXTERN references out-of-range SymID %d", p.SymID)
			}
			m.Fixups = append(m.Fixups, moduleFixup{
				HoldingSeg: curSeg, HoldingOffset: p.HoldingOffset,
				Variant: objfile.KindFixupExtern, ExternSymID: p.SymID, ExternKind: p.Kind,
			})

		case objfile.KindFixupGroupAbsJump:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_GROUP_ABS_JUMP outside any open segment")
			}
			p := rec.Payload.(objfile.FixupGroupAbsJumpPayload)
			if int(p.GroupIdx) >= len(m.Groups) {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_GROUP_ABS_JUMP references out-of-range group %d", p.GroupIdx)
			}
			m.Fixups = append(m.Fixups, moduleFixup{
				HoldingSeg: curSeg, HoldingOffset: p.HoldingOffset,
				Variant: objfile.KindFixupGroupAbsJump, GroupIdx: p.GroupIdx,
			})

		case objfile.KindFixupSegment:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_SEGMENT outside any open segment")
			}
			p := rec.Payload.(objfile.FixupSegmentPayload)
			if int(p.AddressedSeg) >= len(m.Segments) {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_SEGMENT addresses out-of-range segment %d", p.AddressedSeg)
			}
			m.Fixups = append(m.Fixups, moduleFixup{
				HoldingSeg: curSeg, HoldingOffset: p.HoldingOffset,
				Variant: objfile.KindFixupSegment, AddressedSeg: int(p.AddressedSeg), AddressedBase: p.AddressedBase,
			})

		case objfile.KindFixupGroup:
			if curSeg == -1 {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_GROUP outside any open segment")
			}
			p := rec.Payload.(objfile.FixupGroupPayload)
			if int(p.AddressedGroupIdx) >= len(m.Groups) {
				return nil, diag.Fatalf(diag.InputShape, "FIXUP_GROUP references out-of-range group %d", p.AddressedGroupIdx)
			}
			m.Fixups = append(m.Fixups, moduleFixup{
				HoldingSeg: curSeg, HoldingOffset: p.HoldingOffset,
				Variant: objfile.KindFixupGroup, AddressedGroupIdx: p.AddressedGroupIdx,
			})

		default:
			return nil, fmt.Errorf("incorporate: unhandled record kind %s", rec.Kind)
		}
	}

	if inModule {
		return nil, diag.Fatalf(diag.InputShape, "missing END_MODULE")
	}
	return m, nil
}
