package emit

import (
	"bytes"
	"testing"

	"github.com/oisee/x86link/internal/link/image"
	"github.com/oisee/x86link/internal/program"
)

func buildSimple(t *testing.T, data []byte, startOffset uint16) (*program.Program, *image.Image) {
	t.Helper()
	prog := program.New(false)
	code := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: uint16(len(data)), Data: data, P2Align: 4, Group: program.NoGroup})
	prog.Start = program.Start{Seg: code, Offset: startOffset, Set: true}
	img, err := image.Build(prog)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return prog, img
}

func TestWriteBINEmitsVerbatimBytes(t *testing.T) {
	data := []byte{0xB4, 0x09, 0xCD, 0x21}
	prog, img := buildSimple(t, data, 0)

	var buf bytes.Buffer
	if err := WriteBIN(&buf, prog, img); err != nil {
		t.Fatalf("WriteBIN: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Fatalf("want %v, got %v", data, buf.Bytes())
	}
}

func TestWriteBINRejectsNonZeroStart(t *testing.T) {
	prog, img := buildSimple(t, []byte{0x90, 0x90}, 1)

	if err := WriteBIN(&bytes.Buffer{}, prog, img); err == nil {
		t.Fatalf("want fatal error for a nonzero start in BIN output")
	}
}

func TestWriteBINRejectsLoadTimeFixups(t *testing.T) {
	prog, img := buildSimple(t, []byte{0x90, 0x90}, 0)
	prog.Fixups.Add(&program.Fixup{Variant: program.FixupSegment})

	if err := WriteBIN(&bytes.Buffer{}, prog, img); err == nil {
		t.Fatalf("want fatal error for a Segment fixup in BIN output")
	}
}

// TestCOMHello is spec §8 scenario 1.
func TestCOMHello(t *testing.T) {
	data := []byte{0xB4, 0x09, 0xBA, 0x09, 0x01, 0xCD, 0x21, 0xB4, 0x00, 0xCD, 0x21}
	prog, img := buildSimple(t, data, 0x100)

	var buf bytes.Buffer
	if err := WriteCOM(&buf, prog, img); err != nil {
		t.Fatalf("WriteCOM: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Fatalf("want %v, got %v", data, buf.Bytes())
	}
}

func TestWriteCOMRejectsWrongStart(t *testing.T) {
	prog, img := buildSimple(t, []byte{0x90, 0x90}, 0)

	if err := WriteCOM(&bytes.Buffer{}, prog, img); err == nil {
		t.Fatalf("want fatal error when start isn't (seg 0, offset 0x100)")
	}
}

func TestWriteCOMRejectsStackSegment(t *testing.T) {
	data := []byte{0x90, 0x90}
	prog := program.New(false)
	code := prog.Segments.Add(&program.Segment{Name: "CODE", Hi: uint16(len(data)), Data: data, P2Align: 4, Group: program.NoGroup})
	stack := prog.Segments.Add(&program.Segment{Name: "STACK", Space: 0x100, P2Align: 4, IsStack: true, Group: program.NoGroup})
	prog.Start = program.Start{Seg: code, Offset: 0x100, Set: true}
	prog.Stack = program.Stack{Seg: stack, Size: 0x100, Set: true}

	img, err := image.Build(prog)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := WriteCOM(&bytes.Buffer{}, prog, img); err == nil {
		t.Fatalf("want fatal error for a stack segment in COM output")
	}
}
