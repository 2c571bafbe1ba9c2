package disasm

import (
	"fmt"
	"strings"

	"github.com/oisee/x86link/internal/x86"
)

// Line is one decoded or fallback-data line of a disassembly listing,
// mirroring the bbcdisasm example's per-instruction record: address, raw
// bytes, and rendered text.
type Line struct {
	Addr         uint16
	Bytes        []byte
	Text         string
	Alternatives []string // populated only when Disassembler.Verbose is set
	IsData       bool      // true when the byte didn't decode and was emitted as data
}

// Disassembler walks a byte buffer with a shared x86 decoder and renders
// each instruction to a Line. Origin labels addresses (spec §6's "origin
// address"; callers pass 0x100 for COM framing, 0 for a raw image).
type Disassembler struct {
	Decoder *x86.Decoder
	Data    []byte
	Origin  uint16
	Verbose bool
}

// NewDisassembler returns a Disassembler over data using the package's
// shared default decoder (built once from Catalog) and the given origin.
func NewDisassembler(data []byte, origin uint16) *Disassembler {
	return &Disassembler{Decoder: x86.Default, Data: data, Origin: origin}
}

// Disassemble decodes the whole buffer from offset 0. A byte that cannot
// be fetched or matched falls back to a one-byte data line and advances by
// one, the same recovery bbcdisasm's driver uses for unrecognized bytes,
// so one bad byte doesn't abort the rest of the listing.
func (dis *Disassembler) Disassemble() []Line {
	var lines []Line
	cursor := 0
	for cursor < len(dis.Data) {
		d, n, err := x86.Decode(dis.Decoder, dis.Data, cursor)
		addr := dis.Origin + uint16(cursor)
		if err != nil {
			lines = append(lines, Line{
				Addr:   addr,
				Bytes:  dis.Data[cursor : cursor+1],
				Text:   fmt.Sprintf("DB %s", hexByte(dis.Data[cursor])),
				IsData: true,
			})
			cursor++
			continue
		}

		line := Line{Addr: addr, Bytes: dis.Data[cursor : cursor+n], Text: Render(d, addr)}
		if dis.Verbose {
			if alts := dis.Decoder.Alternatives(d.Def.Opcode1, d.Def.HasOpcode2, d.Def.Opcode2); len(alts) > 0 {
				names := make([]string, len(alts))
				for i, a := range alts {
					names[i] = altText(a)
				}
				line.Alternatives = names
				line.Text += fmt.Sprintf(" (alt: %s)", strings.Join(names, ", "))
			}
		}
		lines = append(lines, line)
		cursor += n
	}
	return lines
}

// Listing renders every Line as "ADDR  BYTES  TEXT", one per source line,
// in the column-aligned style bbcdisasm's printInstruction/printData use.
func Listing(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&sb, "%04X  ", l.Addr)
		for _, b := range l.Bytes {
			fmt.Fprintf(&sb, "%02X ", b)
		}
		pad := 3*5 - 3*len(l.Bytes)
		if pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(" ")
		sb.WriteString(l.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
