// Package resolve implements spec §4.F: resolving External and
// GroupAbsoluteJump fixups after group consolidation. Segment and Group
// fixups are left for the image builder (spec §4.G), since they depend on
// physical paragraph bases that don't exist until layout.
package resolve

import (
	"encoding/binary"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/program"
)

// groupAbsJumpLimit is the deliberately conservative ±9999 (decimal) sanity
// ceiling on GroupAbsoluteJump displacements (spec §4.F, §9 "Open
// question": narrower than the 16-bit signed range, and not to be widened
// without a test demanding it).
const groupAbsJumpLimit = 9999

// Run resolves every External and GroupAbsoluteJump fixup in prog.
// Precondition: group consolidation has completed (spec §4.F precondition).
func Run(prog *program.Program) error {
	if undefined := prog.Symbols.Undefined(); len(undefined) > 0 {
		return diag.FatalSym(diag.Semantic, undefined[0].Name, "unresolved external: %s", undefined[0].Name)
	}

	var resolveErr error
	prog.Fixups.All(func(_ int, f *program.Fixup) {
		if resolveErr != nil {
			return
		}
		switch f.Variant {
		case program.FixupExternal:
			resolveErr = resolveExternal(prog, f)
		case program.FixupGroupAbsoluteJump:
			resolveErr = resolveGroupAbsJump(prog, f)
		}
	})
	return resolveErr
}

func resolveExternal(prog *program.Program, f *program.Fixup) error {
	sym := prog.Symbols.Get(f.SymID)
	seg := prog.Segments.Get(f.HoldingSeg)

	if sym.Seg != f.HoldingSeg {
		return diag.FatalSym(diag.FixupInvariant, sym.Name, "external %s fixup: target segment differs from holding segment (inter-segment data fixups via externals are unsupported)", sym.Name)
	}

	cur := binary.LittleEndian.Uint16(seg.Data[f.HoldingOffset:])
	if cur != 0 {
		return diag.FatalSeg(diag.FixupInvariant, seg.Name, "external fixup at offset %d: holding bytes are not zero", f.HoldingOffset)
	}

	switch f.Kind {
	case program.ExternalData:
		binary.LittleEndian.PutUint16(seg.Data[f.HoldingOffset:], sym.Offset)
	case program.ExternalJump:
		disp := int32(sym.Offset) - (int32(f.HoldingOffset) + 2)
		if disp < -0x8000 || disp > 0x7FFF {
			return diag.FatalSym(diag.Capacity, sym.Name, "jump displacement %d out of 16-bit range", disp)
		}
		binary.LittleEndian.PutUint16(seg.Data[f.HoldingOffset:], uint16(int16(disp)))
	}
	return nil
}

func resolveGroupAbsJump(prog *program.Program, f *program.Fixup) error {
	seg := prog.Segments.Get(f.HoldingSeg)
	target := binary.LittleEndian.Uint16(seg.Data[f.HoldingOffset:])

	disp := int32(target) - (int32(f.HoldingOffset) + 2)
	if disp < -groupAbsJumpLimit || disp > groupAbsJumpLimit {
		return diag.FatalSeg(diag.Capacity, seg.Name, "group-absolute jump displacement %d outside the ±%d sanity range", disp, groupAbsJumpLimit)
	}
	binary.LittleEndian.PutUint16(seg.Data[f.HoldingOffset:], uint16(int16(disp)))
	return nil
}
