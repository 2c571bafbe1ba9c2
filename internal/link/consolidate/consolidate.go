// Package consolidate implements spec §4.E: folding every non-main member
// of a group into that group's first-defined ("main") segment, in a single
// forward pass over program SegmentID order.
package consolidate

import (
	"encoding/binary"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/program"
)

// Run consolidates every group in prog, in SegmentID (insertion) order,
// per spec §4.E. It also determines the program's single stack segment
// along the way (spec §4.E's closing paragraph).
func Run(prog *program.Program) error {
	mains := make(map[program.GroupID]program.SegmentID) // first member seen per group
	stackSet := false

	for id, seg := prog.Segments.FirstProperSegment(); seg != nil; id, seg = prog.Segments.NextProperSegment(id) {
		if seg.IsStack {
			if stackSet {
				return diag.FatalSeg(diag.Semantic, seg.Name, "program has more than one stack segment")
			}
			prog.Stack = program.Stack{Seg: id, Offset: 0, Size: stackSize(seg), Set: true}
			stackSet = true
		}

		if seg.Group == program.NoGroup {
			continue
		}

		mainID, isMain := mains[seg.Group]
		if !isMain {
			mains[seg.Group] = id
			prog.Groups.Get(seg.Group).MainSegno = id
			continue
		}

		if err := foldInto(prog, mainID, id); err != nil {
			return err
		}
	}

	return nil
}

func stackSize(seg *program.Segment) uint16 {
	if seg.Space > 0 {
		return seg.Space
	}
	return seg.Hi
}

// foldInto merges source (a non-main group member) into main, rewriting
// every fixup and symbol that referenced source, then nulls source's
// segment-list slot (spec §4.E steps 1-9).
func foldInto(prog *program.Program, mainID, sourceID program.SegmentID) error {
	main := prog.Segments.Get(mainID)
	source := prog.Segments.Get(sourceID)

	mainIsData := main.Space == 0
	sourceIsData := source.Space == 0

	var base uint16
	switch {
	case mainIsData && sourceIsData:
		// Step 1: pad main up to source's alignment, append source's bytes.
		align := uint32(1) << source.P2Align
		newHi := alignUp(main.Hi, align)
		pad := int(newHi) - int(main.Hi)
		if pad > 0 {
			main.Data = append(main.Data, make([]byte, pad)...)
		}
		base = newHi
		total := int(newHi) + len(source.Data)
		if total > 0x10000 {
			return diag.FatalSeg(diag.Capacity, main.Name, "segment exceeds 64 KiB after group consolidation")
		}
		main.Data = append(main.Data, source.Data...)
		main.Hi = uint16(total)

	case !sourceIsData && (mainIsData || main.Hi > 0):
		// Step 2: main holds initialised data (possibly already followed by
		// space from an earlier fold): align main's trailing space upward,
		// extend by source's space.
		align := uint32(1) << source.P2Align
		base = alignUp(main.Space, align)
		total := int(base) + int(source.Space)
		if total > 0x10000 {
			return diag.FatalSeg(diag.Capacity, main.Name, "segment exceeds 64 KiB after group consolidation")
		}
		main.Space = uint16(total)

	default:
		// Step 3: main itself is pure space, or main already ends in
		// uninitialised space and source brings initialised data — nothing
		// in steps 1/2 places content after a main segment's space.
		return diag.FatalSeg(diag.Semantic, main.Name, "cannot group initialised data on top of uninitialised space")
	}

	if source.P2Align > main.P2Align {
		main.P2Align = source.P2Align
	}

	if prog.Start.Set && prog.Start.Seg == sourceID {
		prog.Start.Seg = mainID
		prog.Start.Offset += base
	}
	if prog.Stack.Set && prog.Stack.Seg == sourceID {
		prog.Stack.Seg = mainID
		prog.Stack.Offset += base
	}

	prog.Fixups.All(func(_ int, f *program.Fixup) {
		// Resolve this fixup's final holding coordinates first: if it sits
		// in source, it now sits in main at base+old-offset.
		newHoldingSeg, newHoldingOffset := f.HoldingSeg, f.HoldingOffset
		if f.HoldingSeg == sourceID {
			newHoldingSeg = mainID
			newHoldingOffset = f.HoldingOffset + base
		}

		switch f.Variant {
		case program.FixupOffset:
			if f.AddressedSeg == sourceID {
				f.AddressedSeg = mainID
				// The two bytes at the fixup site, wherever they now live,
				// address content that itself shifted by base.
				addUint16At(prog.Segments.Get(newHoldingSeg), newHoldingOffset, base)
			}
		case program.FixupSegment:
			if f.AddressedSeg == sourceID {
				f.AddressedSeg = mainID
				f.AddressedBase += base
			}
		case program.FixupExternal, program.FixupGroupAbsoluteJump, program.FixupGroup:
			// value unchanged; only the holding-seg/offset rewrite below applies.
		}

		f.HoldingSeg = newHoldingSeg
		f.HoldingOffset = newHoldingOffset
	})

	prog.Symbols.All(func(s *program.Symbol) {
		if s.Seg == sourceID {
			s.Seg = mainID
			if s.Defined {
				s.Offset += base
			}
		}
	})

	prog.Segments.Null(sourceID)
	return nil
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

func addUint16At(seg *program.Segment, offset uint16, delta uint16) {
	v := binary.LittleEndian.Uint16(seg.Data[offset:])
	binary.LittleEndian.PutUint16(seg.Data[offset:], v+delta)
}
