package resolve

import (
	"testing"

	"github.com/oisee/x86link/internal/program"
)

// TestGroupAbsJumpPCRelative is spec §8 scenario 3: "E9 34 12" holds a
// GroupAbsoluteJump at offset 1 whose stored absolute target is 0x1234.
// Resolving it rewrites bytes 1..2 to the PC-relative displacement from
// end-of-instruction (offset 1 + 2 bytes).
func TestGroupAbsJumpPCRelative(t *testing.T) {
	prog := program.New(false)
	seg := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: 3, Data: []byte{0xE9, 0x34, 0x12}, Group: program.NoGroup})
	group := prog.Groups.Add(program.NewGroup("CGROUP"))

	prog.Fixups.Add(&program.Fixup{
		HoldingSeg:    seg,
		HoldingOffset: 1,
		Variant:       program.FixupGroupAbsoluteJump,
		GroupNo:       group,
	})

	if err := Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := uint16(0x1234 - (1 + 2))
	got := uint16(prog.Segments.Get(seg).Data[1]) | uint16(prog.Segments.Get(seg).Data[2])<<8
	if got != want {
		t.Fatalf("want displacement %#04x, got %#04x", want, got)
	}
}

// TestUndefinedExternalIsFatal is spec §8 scenario 4: an external symbol
// with no matching public anywhere must fail resolution.
func TestUndefinedExternalIsFatal(t *testing.T) {
	prog := program.New(false)
	seg := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: 2, Data: []byte{0x00, 0x00}, Group: program.NoGroup})
	sym := prog.Symbols.InsertExternal("DoStuff", seg)

	prog.Fixups.Add(&program.Fixup{
		HoldingSeg:    seg,
		HoldingOffset: 0,
		Variant:       program.FixupExternal,
		SymID:         sym.ID,
		Kind:          program.ExternalData,
	})

	if err := Run(prog); err == nil {
		t.Fatalf("want fatal error for unresolved external")
	}
}

func TestExternalDataResolvesToOffset(t *testing.T) {
	prog := program.New(false)
	seg := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: 4, Data: []byte{0x00, 0x00, 0xAA, 0xBB}, Group: program.NoGroup})
	sym, err := prog.Symbols.InsertPublic("Value", seg, 0x0002)
	if err != nil {
		t.Fatalf("InsertPublic: %v", err)
	}

	prog.Fixups.Add(&program.Fixup{
		HoldingSeg:    seg,
		HoldingOffset: 0,
		Variant:       program.FixupExternal,
		SymID:         sym.ID,
		Kind:          program.ExternalData,
	})

	if err := Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data := prog.Segments.Get(seg).Data
	if data[0] != 0x02 || data[1] != 0x00 {
		t.Fatalf("want holding bytes == 02 00, got % x", data[0:2])
	}
}

func TestExternalDataNonZeroHoldingIsFatal(t *testing.T) {
	prog := program.New(false)
	seg := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: 2, Data: []byte{0x01, 0x00}, Group: program.NoGroup})
	sym, _ := prog.Symbols.InsertPublic("Value", seg, 0x0002)

	prog.Fixups.Add(&program.Fixup{
		HoldingSeg:    seg,
		HoldingOffset: 0,
		Variant:       program.FixupExternal,
		SymID:         sym.ID,
		Kind:          program.ExternalData,
	})

	if err := Run(prog); err == nil {
		t.Fatalf("want fatal error when holding bytes are not zero")
	}
}

func TestExternalJumpPCRelative(t *testing.T) {
	prog := program.New(false)
	seg := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: 5, Data: []byte{0xE8, 0x00, 0x00, 0x90, 0x90}, Group: program.NoGroup})
	sym, _ := prog.Symbols.InsertPublic("Target", seg, 0x0004)

	prog.Fixups.Add(&program.Fixup{
		HoldingSeg:    seg,
		HoldingOffset: 1,
		Variant:       program.FixupExternal,
		SymID:         sym.ID,
		Kind:          program.ExternalJump,
	})

	if err := Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data := prog.Segments.Get(seg).Data
	want := uint16(0x0004 - (1 + 2))
	got := uint16(data[1]) | uint16(data[2])<<8
	if got != want {
		t.Fatalf("want displacement %#04x, got %#04x", want, got)
	}
}

func TestGroupAbsJumpOutOfRangeIsFatal(t *testing.T) {
	prog := program.New(false)
	seg := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: 3, Data: []byte{0xE9, 0xFF, 0x7F}, Group: program.NoGroup})
	group := prog.Groups.Add(program.NewGroup("CGROUP"))

	prog.Fixups.Add(&program.Fixup{
		HoldingSeg:    seg,
		HoldingOffset: 1,
		Variant:       program.FixupGroupAbsoluteJump,
		GroupNo:       group,
	})

	if err := Run(prog); err == nil {
		t.Fatalf("want fatal error for a group-absolute displacement beyond the sanity range")
	}
}
