package disasm

import (
	"testing"

	"github.com/oisee/x86link/internal/x86"
)

// TestScenario5 is spec §8 scenario 5: disassembling 90 CD 21 CB yields
// three lines, NOP / INT 21h / RETF.
func TestScenario5(t *testing.T) {
	dis := NewDisassembler([]byte{0x90, 0xCD, 0x21, 0xCB}, 0)
	lines := dis.Disassemble()

	want := []string{"NOP", "INT 21h", "RETF"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(lines), len(want), lines)
	}
	for i, l := range lines {
		if l.Text != want[i] {
			t.Errorf("line %d: got %q, want %q", i, l.Text, want[i])
		}
		if l.IsData {
			t.Errorf("line %d: unexpected data fallback", i)
		}
	}
}

// TestScenario5VerboseAnnotatesAlternative exercises the supplemented -v
// alternative-form annotation: 0x90 is canonical NOP, but its raw byte
// also matches the shadowed XCHG AX,AX form of the XCHG AX,reg family.
func TestScenario5VerboseAnnotatesAlternative(t *testing.T) {
	dis := NewDisassembler([]byte{0x90}, 0)
	dis.Verbose = true
	lines := dis.Disassemble()

	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	want := "NOP (alt: XCHG AX,AX)"
	if lines[0].Text != want {
		t.Errorf("got %q, want %q", lines[0].Text, want)
	}
}

func TestRenderModRMRegisterForm(t *testing.T) {
	// 8B D8 -> MOV BX,AX (mod=3 reg=3(BX) rm=0(AX), RMR direction).
	d, n, err := x86.Decode(x86.Default, []byte{0x8B, 0xD8}, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 bytes consumed, got %d", n)
	}
	got := Render(d, 0)
	want := "MOV BX,AX"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderModRMMemoryForm(t *testing.T) {
	// 8A 44 02 -> MOV AL,[SI+0002h] (mod=1 reg=0(AL) rm=4(SI), disp8=2, RMR;
	// displacements always render at word width regardless of DispSize).
	d, _, err := x86.Decode(x86.Default, []byte{0x8A, 0x44, 0x02}, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := Render(d, 0)
	want := "MOV AL,[SI+0002h]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderImmediateArithmeticGroup(t *testing.T) {
	// 83 C3 05 -> ADD BX,05h (mod=3 rm=3(BX), reg field 0 selects ADD, imm8 sign-extended).
	d, _, err := x86.Decode(x86.Default, []byte{0x83, 0xC3, 0x05}, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := Render(d, 0)
	want := "ADD BX,05h"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderRelativeJump(t *testing.T) {
	// EB 02 at address 0x100 -> JMP SHORT 0104h (cursor + len(2) + disp(2)).
	d, _, err := x86.Decode(x86.Default, []byte{0xEB, 0x02}, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := Render(d, 0x100)
	want := "JMP SHORT 0104h"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderMovRegImm(t *testing.T) {
	// B4 09 -> MOV AH,09h (opcode_inc family, reg field 4 = AH, OFByte).
	d, _, err := x86.Decode(x86.Default, []byte{0xB4, 0x09}, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := Render(d, 0)
	want := "MOV AH,09h"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDisassembleFallsBackToDataOnUnknownByte(t *testing.T) {
	dis := NewDisassembler([]byte{0xF1, 0x90}, 0)
	lines := dis.Disassemble()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %+v", len(lines), lines)
	}
	if !lines[0].IsData || lines[0].Text != "DB 0F1h" {
		t.Errorf("line 0: got %+v, want data fallback DB 0F1h", lines[0])
	}
	if lines[1].Text != "NOP" {
		t.Errorf("line 1: got %q, want NOP", lines[1].Text)
	}
}
