// Command z80exe is the supplemented EXE round-trip verification tool
// (COM and BIN files carry no header and are not checked): it loads a
// produced MS-DOS EXE, recomputes the header's testable properties from
// the bytes actually present, and reports any mismatch,
// the way xyproto-flapc pairs a writer with a sanity-check reader. It also
// supports a two-file compare mode.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exeHeader is the 14-word MS-DOS EXE header, spec §4.H.
type exeHeader struct {
	Signature   uint16
	ExtraBytes  uint16
	Pages       uint16
	RelocItems  uint16
	HeaderSize  uint16 // paragraphs
	MinAlloc    uint16
	MaxAlloc    uint16
	InitSS      uint16
	InitSP      uint16
	CheckSum    uint16
	InitIP      uint16
	InitCS      uint16
	RelocTable  uint16
	Overlay     uint16
}

const exeHeaderBytes = 28 // 14 little-endian u16 fields

func parseHeader(data []byte) (exeHeader, error) {
	var h exeHeader
	if len(data) < exeHeaderBytes {
		return h, fmt.Errorf("file too short for an EXE header (%d bytes)", len(data))
	}
	u16 := func(off int) uint16 { return binary.LittleEndian.Uint16(data[off:]) }
	h = exeHeader{
		Signature:  u16(0),
		ExtraBytes: u16(2),
		Pages:      u16(4),
		RelocItems: u16(6),
		HeaderSize: u16(8),
		MinAlloc:   u16(10),
		MaxAlloc:   u16(12),
		InitSS:     u16(14),
		InitSP:     u16(16),
		CheckSum:   u16(18),
		InitIP:     u16(20),
		InitCS:     u16(22),
		RelocTable: u16(24),
		Overlay:    u16(26),
	}
	if h.Signature != 0x5A4D {
		return h, fmt.Errorf("bad signature %04X, want 5A4D ('MZ')", h.Signature)
	}
	return h, nil
}

// imageSize is the classic MS-DOS formula for the executable's total file
// size in bytes, header included: every page is full 512 bytes except the
// last, which holds only ExtraBytes (or a full 512 when ExtraBytes is 0).
func imageSize(h exeHeader) int {
	if h.Pages == 0 {
		return 0
	}
	last := int(h.ExtraBytes)
	if last == 0 {
		last = 512
	}
	return (int(h.Pages)-1)*512 + last
}

// verify recomputes spec §8's testable EXE properties against the actual
// file bytes and returns every mismatch found, nil if none.
func verify(path string, data []byte) []string {
	var problems []string
	h, err := parseHeader(data)
	if err != nil {
		return []string{err.Error()}
	}

	wantSize := imageSize(h)
	if wantSize != len(data) {
		problems = append(problems, fmt.Sprintf("file-size mismatch: header implies %d bytes, file is %d bytes", wantSize, len(data)))
	}

	relocStart := int(h.RelocTable)
	relocEnd := relocStart + int(h.RelocItems)*4
	if relocStart < exeHeaderBytes {
		problems = append(problems, fmt.Sprintf("relocation table offset %d overlaps the fixed header (%d bytes)", relocStart, exeHeaderBytes))
	}
	if relocEnd > int(h.HeaderSize)*16 {
		problems = append(problems, fmt.Sprintf("relocation table (offset %d, %d entries) overruns the header (%d bytes)", relocStart, h.RelocItems, int(h.HeaderSize)*16))
	}
	if relocEnd > len(data) {
		problems = append(problems, fmt.Sprintf("relocation table end %d is past end of file (%d bytes)", relocEnd, len(data)))
	}

	return problems
}

type report struct {
	File      string   `json:"file"`
	Problems  []string `json:"problems,omitempty"`
	HeaderHex string   `json:"headerHex"`
}

func main() {
	var jsonOut bool
	var compareWith string

	rootCmd := &cobra.Command{
		Use:   "z80exe [file]",
		Short: "Verify an MS-DOS EXE's header against its own bytes, or compare two EXE files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("z80exe: %w", err)
			}

			if compareWith != "" {
				other, err := os.ReadFile(compareWith)
				if err != nil {
					return fmt.Errorf("z80exe: %w", err)
				}
				return runCompare(args[0], data, compareWith, other, jsonOut)
			}
			return runVerify(args[0], data, jsonOut)
		},
	}
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "Emit a structured JSON report instead of text")
	rootCmd.Flags().StringVar(&compareWith, "compare", "", "Compare the input file against another EXE file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "z80exe:", err)
		os.Exit(1)
	}
}

func runVerify(path string, data []byte, jsonOut bool) error {
	problems := verify(path, data)
	h, _ := parseHeader(data)

	if jsonOut {
		r := report{File: path, Problems: problems, HeaderHex: fmt.Sprintf("%+v", h)}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if len(problems) == 0 {
		fmt.Printf("%s: OK (%d bytes, %d relocations)\n", path, len(data), h.RelocItems)
		return nil
	}
	fmt.Printf("%s: %d problem(s)\n", path, len(problems))
	for _, p := range problems {
		fmt.Println("  -", p)
	}
	os.Exit(1)
	return nil
}

func runCompare(pathA string, a []byte, pathB string, b []byte, jsonOut bool) error {
	hA, errA := parseHeader(a)
	hB, errB := parseHeader(b)
	if errA != nil || errB != nil {
		return fmt.Errorf("z80exe: %s: %v / %s: %v", pathA, errA, pathB, errB)
	}

	var diffs []string
	if hA != hB {
		diffs = append(diffs, fmt.Sprintf("headers differ:\n  %s: %+v\n  %s: %+v", pathA, hA, pathB, hB))
	}
	if len(a) != len(b) {
		diffs = append(diffs, fmt.Sprintf("file sizes differ: %s=%d, %s=%d", pathA, len(a), pathB, len(b)))
	} else {
		for i := range a {
			if a[i] != b[i] {
				diffs = append(diffs, fmt.Sprintf("first byte difference at offset %d: %02X vs %02X", i, a[i], b[i]))
				break
			}
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			A, B  string
			Diffs []string `json:"diffs,omitempty"`
		}{A: pathA, B: pathB, Diffs: diffs})
	}

	if len(diffs) == 0 {
		fmt.Println("identical")
		return nil
	}
	for _, d := range diffs {
		fmt.Println(d)
	}
	os.Exit(1)
	return nil
}
