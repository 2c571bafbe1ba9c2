package consolidate

import (
	"testing"

	"github.com/oisee/x86link/internal/program"
)

// TestOffsetFixupShiftsByMergeBase is spec §8 scenario 6: segment A holds
// "10 00" at offset 4, an Offset fixup there addresses B; B is merged into
// A at base 0x80. After consolidation, bytes 4..5 of A must equal "90 00"
// and the fixup's AddressedSeg must equal A's id.
func TestOffsetFixupShiftsByMergeBase(t *testing.T) {
	prog := program.New(false)
	group := prog.Groups.Add(program.NewGroup("CGROUP"))

	aData := make([]byte, 0x80)
	aData[4], aData[5] = 0x10, 0x00
	a := prog.Segments.Add(&program.Segment{Name: "A", Group: group, Hi: 0x80, Data: aData})
	b := prog.Segments.Add(&program.Segment{Name: "B", Group: group, Hi: 2, Data: []byte{0xAA, 0xBB}})

	prog.Fixups.Add(&program.Fixup{HoldingSeg: a, HoldingOffset: 4, Variant: program.FixupOffset, AddressedSeg: b})

	if err := Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seg := prog.Segments.Get(a)
	if seg.Data[4] != 0x90 || seg.Data[5] != 0x00 {
		t.Fatalf("want A[4..5] == 90 00, got % x", seg.Data[4:6])
	}

	f := prog.Fixups.At(0)
	if f.AddressedSeg != a {
		t.Fatalf("want fixup's AddressedSeg rewritten to A (%v), got %v", a, f.AddressedSeg)
	}
	if prog.Segments.Get(b) != nil {
		t.Fatalf("want B nulled after consolidation")
	}
	if prog.Groups.Get(group).MainSegno != a {
		t.Fatalf("want group's MainSegno == A")
	}
}

func TestDataOntoSpaceIsFatal(t *testing.T) {
	prog := program.New(false)
	group := prog.Groups.Add(program.NewGroup("DGROUP"))
	prog.Segments.Add(&program.Segment{Name: "BSS", Group: group, Space: 0x100})
	prog.Segments.Add(&program.Segment{Name: "CODE", Group: group, Hi: 4, Data: []byte{1, 2, 3, 4}})

	if err := Run(prog); err == nil {
		t.Fatalf("want fatal error placing data after a space main segment")
	}
}

func TestSpaceExtendsAfterDataMain(t *testing.T) {
	prog := program.New(false)
	group := prog.Groups.Add(program.NewGroup("DGROUP"))
	prog.Segments.Add(&program.Segment{Name: "CODE", Group: group, Hi: 4, Data: []byte{1, 2, 3, 4}})
	prog.Segments.Add(&program.Segment{Name: "BSS", Group: group, Space: 0x20})

	if err := Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}

	main := prog.Segments.Get(prog.Groups.Get(group).MainSegno)
	if main.Space != 0x20 {
		t.Fatalf("want main.Space == 0x20, got %#x", main.Space)
	}
}

func TestSecondStackSegmentIsFatal(t *testing.T) {
	prog := program.New(false)
	prog.Segments.Add(&program.Segment{Name: "STACK1", IsStack: true, Space: 0x400, Group: program.NoGroup})
	prog.Segments.Add(&program.Segment{Name: "STACK2", IsStack: true, Space: 0x400, Group: program.NoGroup})

	if err := Run(prog); err == nil {
		t.Fatalf("want fatal error for a second stack segment")
	}
}
