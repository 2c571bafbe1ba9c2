package emit

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/link/image"
	"github.com/oisee/x86link/internal/program"
)

const (
	exeSignature   = 0x5A4D // "MZ"
	exePageSize    = 512
	exeHeaderPages = 1  // the 32-paragraph fixed header occupies one 512-byte page
	exeHeaderSize  = 32 // paragraphs
	exeRelocTable  = 0x3E
	exeMaxAlloc    = 0xFFFF
	exeMaxReloc    = 65535
)

type relocEntry struct {
	offset  uint16
	segment uint16
}

// collectRelocs gathers Segment/Group fixups in their fixup-log (emission)
// order; image.Build has already resolved each one's HoldingSegAddr and
// written its resolved paragraph address into the image bytes.
func collectRelocs(prog *program.Program) []relocEntry {
	var out []relocEntry
	prog.Fixups.All(func(_ int, f *program.Fixup) {
		if f.Variant != program.FixupSegment && f.Variant != program.FixupGroup {
			return
		}
		out = append(out, relocEntry{offset: f.HoldingOffset, segment: f.HoldingSegAddr})
	})
	return out
}

// WriteEXE emits img as an MS-DOS MZ executable (spec §4.H "EXE"). logger
// may be nil; when non-nil, a missing stack segment is logged as a
// warning rather than silently zeroed (spec §4.H: "InitSS/InitSP from
// image.stack (zero and a warning if absent)").
func WriteEXE(w io.Writer, prog *program.Program, img *image.Image, logger *slog.Logger) error {
	relocs := collectRelocs(prog)
	if len(relocs) > exeMaxReloc {
		return diag.Fatalf(diag.Capacity, "EXE relocation count %d exceeds %d", len(relocs), exeMaxReloc)
	}

	if !img.Stack.Set && logger != nil {
		logger.Warn("program has no stack segment; EXE InitSS/InitSP will be zero")
	}

	pages := exeHeaderPages + ceilDiv(int(img.Hi), exePageSize)
	minAlloc := ceilDiv(int(img.Space), 16)

	var header bytes.Buffer
	writeU16 := func(v uint16) { binary.Write(&header, binary.LittleEndian, v) }
	writeU16(exeSignature)
	writeU16(img.Hi % exePageSize) // ExtraBytes
	writeU16(uint16(pages))
	writeU16(uint16(len(relocs))) // RelocItems
	writeU16(exeHeaderSize)       // HeaderSize, in paragraphs
	writeU16(uint16(minAlloc))    // MinAlloc
	writeU16(exeMaxAlloc)         // MaxAlloc
	writeU16(img.Stack.Seg)       // InitSS
	writeU16(img.Stack.Size)      // InitSP
	writeU16(0)                   // CheckSum
	writeU16(img.Start.Offset)    // InitIP
	writeU16(img.Start.Seg)       // InitCS
	writeU16(exeRelocTable)       // RelocTable offset
	writeU16(0)                   // Overlay

	out := make([]byte, 0, exeHeaderSize*16+int(img.Hi))
	out = append(out, header.Bytes()...)

	// Zero-pad from the end of the fixed header (28 bytes: 14 u16 fields)
	// to the relocation table offset.
	for len(out) < exeRelocTable {
		out = append(out, 0)
	}

	var relocBuf bytes.Buffer
	for _, r := range relocs {
		binary.Write(&relocBuf, binary.LittleEndian, r.offset)
		binary.Write(&relocBuf, binary.LittleEndian, r.segment)
	}
	out = append(out, relocBuf.Bytes()...)

	// Zero-pad from the end of the relocation table to HeaderSize*16.
	for len(out) < exeHeaderSize*16 {
		out = append(out, 0)
	}

	out = append(out, img.Data[:img.Hi]...)

	_, err := w.Write(out)
	return err
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
