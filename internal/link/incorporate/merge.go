package incorporate

import (
	"encoding/binary"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/objfile"
	"github.com/oisee/x86link/internal/program"
)

// Merge folds m into prog, implementing spec §4.D step 2. prog must
// already exist (New(caseFold)); Merge enforces that m's CASED flag
// agrees with prog's case-sensitivity mode.
func Merge(prog *program.Program, m *Module) error {
	// CaseFold() reports case-INsensitivity; compare against its negation.
	progCased := !prog.Symbols.CaseFold()
	if m.Cased != progCased {
		return diag.Fatalf(diag.Semantic, "module case-sensitivity (CASED=%v) does not match program mode (%v)", m.Cased, progCased)
	}

	groupMap := make([]program.GroupID, len(m.Groups))
	for i, name := range m.Groups {
		if id, existing := prog.Groups.ByName(name); existing != nil {
			groupMap[i] = id
		} else {
			groupMap[i] = prog.Groups.Add(program.NewGroup(name))
		}
	}
	groupIDOf := func(idx uint16) program.GroupID {
		if idx == objfile.NoGroup {
			return program.NoGroup
		}
		return groupMap[idx]
	}

	segMap := make([]program.SegmentID, len(m.Segments))
	bases := make([]uint16, len(m.Segments))

	for i, ms := range m.Segments {
		if ms.Public {
			if id, existing := prog.Segments.ByName(ms.Name, prog.Symbols.CaseFold()); existing != nil {
				base, err := combineSegment(existing, ms)
				if err != nil {
					return err
				}
				segMap[i] = id
				bases[i] = base
				continue
			}
		}
		seg := &program.Segment{
			Name:     ms.Name,
			IsPublic: ms.Public,
			IsStack:  ms.IsStack,
			Group:    groupIDOf(ms.GroupIdx),
			P2Align:  ms.P2Align,
			Data:     append([]byte(nil), ms.Data...),
			Space:    ms.Space,
		}
		seg.Hi = uint16(len(seg.Data))
		segMap[i] = prog.Segments.Add(seg)
		bases[i] = 0
	}

	// Publics, shifted by their segment's merge base.
	for i, ms := range m.Segments {
		for _, pub := range ms.Publics {
			if _, err := prog.Symbols.InsertPublic(pub.Name, segMap[i], bases[i]+pub.Offset); err != nil {
				return err
			}
		}
	}

	// Externs: module-local SymID -> program-wide SymbolID.
	externMap := make([]program.SymbolID, len(m.Externs))
	for i, ext := range m.Externs {
		sym := prog.Symbols.InsertExternal(ext.Name, -1)
		externMap[i] = sym.ID
	}

	// Fixups, rewritten to program coordinates.
	for _, mf := range m.Fixups {
		holdingSeg := segMap[mf.HoldingSeg]
		holdingOffset := bases[mf.HoldingSeg] + mf.HoldingOffset

		switch mf.Variant {
		case objfile.KindFixupOffset:
			addressedSeg := segMap[mf.AddressedSeg]
			base := bases[mf.AddressedSeg]
			if base != 0 {
				if err := addUint16At(prog.Segments.Get(holdingSeg), holdingOffset, base); err != nil {
					return err
				}
			}
			prog.Fixups.Add(&program.Fixup{
				HoldingSeg: holdingSeg, HoldingOffset: holdingOffset,
				Variant: program.FixupOffset, AddressedSeg: addressedSeg,
			})

		case objfile.KindFixupExtern:
			kind := program.ExternalData
			if mf.ExternKind == objfile.FixupJump {
				kind = program.ExternalJump
			}
			prog.Fixups.Add(&program.Fixup{
				HoldingSeg: holdingSeg, HoldingOffset: holdingOffset,
				Variant: program.FixupExternal, SymID: externMap[mf.ExternSymID], Kind: kind,
			})

		case objfile.KindFixupGroupAbsJump:
			prog.Fixups.Add(&program.Fixup{
				HoldingSeg: holdingSeg, HoldingOffset: holdingOffset,
				Variant: program.FixupGroupAbsoluteJump, GroupNo: groupIDOf(mf.GroupIdx),
			})

		case objfile.KindFixupSegment:
			prog.Fixups.Add(&program.Fixup{
				HoldingSeg: holdingSeg, HoldingOffset: holdingOffset,
				Variant: program.FixupSegment, AddressedSeg: segMap[mf.AddressedSeg], AddressedBase: mf.AddressedBase,
			})

		case objfile.KindFixupGroup:
			prog.Fixups.Add(&program.Fixup{
				HoldingSeg: holdingSeg, HoldingOffset: holdingOffset,
				Variant: program.FixupGroup, AddressedGroupNo: groupIDOf(mf.AddressedGroupIdx),
			})
		}
	}

	if m.Start != nil {
		if prog.Start.Set {
			return diag.Fatalf(diag.Semantic, "program already has a start address; module declares a second one")
		}
		prog.Start = program.Start{
			Seg:    segMap[m.Start.Seg],
			Offset: bases[m.Start.Seg] + m.Start.Offset,
			Set:    true,
		}
	}

	return nil
}

// combineSegment appends ms's content to the end of an already-present
// public program segment (spec §4.D step 2: public segments combine
// rather than append as a new segment). It returns the merge base: the
// program-segment offset at which ms's content now begins.
func combineSegment(existing *program.Segment, ms *moduleSegment) (uint16, error) {
	existingIsData := existing.Space == 0
	msIsData := ms.Space == 0
	if existingIsData != msIsData {
		return 0, diag.FatalSeg(diag.Semantic, existing.Name, "cannot combine initialised data on top of uninitialised space")
	}

	align := uint32(1) << ms.P2Align

	var base uint16
	if existingIsData {
		newHi := alignUp(existing.Hi, align)
		pad := int(newHi) - int(existing.Hi)
		if pad > 0 {
			existing.Data = append(existing.Data, make([]byte, pad)...)
		}
		base = newHi
		existing.Data = append(existing.Data, ms.Data...)
		total := int(newHi) + len(ms.Data)
		if total > 0x10000 {
			return 0, diag.FatalSeg(diag.Capacity, existing.Name, "segment exceeds 64 KiB after combining")
		}
		existing.Hi = uint16(total)
	} else {
		base = alignUp(existing.Space, align)
		total := int(base) + int(ms.Space)
		if total > 0x10000 {
			return 0, diag.FatalSeg(diag.Capacity, existing.Name, "segment exceeds 64 KiB after combining")
		}
		existing.Space = uint16(total)
	}

	if ms.P2Align > existing.P2Align {
		existing.P2Align = ms.P2Align
	}
	if ms.IsStack {
		existing.IsStack = true
	}
	return base, nil
}

func alignUp(v uint16, align uint32) uint16 {
	if align <= 1 {
		return v
	}
	rem := uint32(v) % align
	if rem == 0 {
		return v
	}
	return uint16(uint32(v) + align - rem)
}

// addUint16At adds delta to the little-endian u16 stored in seg.Data at
// offset, used when an Offset fixup's addressed segment shifted by a
// merge base (spec §4.D: "for Offset fixups, add the merge base to the
// stored 16-bit value").
func addUint16At(seg *program.Segment, offset uint16, delta uint16) error {
	if int(offset)+2 > len(seg.Data) {
		return diag.FatalSeg(diag.FixupInvariant, seg.Name, "Offset fixup holding_offset %d out of segment data range", offset)
	}
	v := binary.LittleEndian.Uint16(seg.Data[offset:])
	binary.LittleEndian.PutUint16(seg.Data[offset:], v+delta)
	return nil
}
