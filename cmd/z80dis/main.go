// Command z80dis disassembles a raw byte file (or a COM-framed one) using
// internal/disasm, following cmd/z80opt's cobra single-root-command shape.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/oisee/x86link/internal/disasm"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "z80dis [file]",
		Short: "Disassemble a raw or COM-framed 16-bit x86 binary",
		Args:  cobra.ExactArgs(1),
	}

	var (
		originStr string
		comFramed bool
		verbose   bool
		jsonOut   bool
	)
	rootCmd.Flags().StringVar(&originStr, "origin", "0", "Origin address, decimal or 0x-prefixed hex")
	rootCmd.Flags().BoolVar(&comFramed, "com", false, "Frame the input as a .COM file (origin 0x100, shorthand for --origin 0x100)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Annotate lines with shadowed alternative encodings")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "Emit a structured JSON listing instead of text")

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("z80dis: %w", err)
		}

		origin, err := parseOrigin(originStr, comFramed)
		if err != nil {
			return fmt.Errorf("z80dis: %w", err)
		}

		dis := disasm.NewDisassembler(data, origin)
		dis.Verbose = verbose
		lines := dis.Disassemble()

		if jsonOut {
			return printJSON(lines)
		}
		printColored(lines)
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "z80dis:", err)
		os.Exit(1)
	}
}

func parseOrigin(s string, comFramed bool) (uint16, error) {
	if comFramed {
		return 0x100, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), originBase(s), 16)
	if err != nil {
		return 0, fmt.Errorf("invalid --origin %q: %w", s, err)
	}
	return uint16(v), nil
}

func originBase(s string) int {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return 16
	}
	return 10
}

// jsonLine is the --json listing's per-line shape: hex-string bytes
// instead of a raw byte array, matching result.WriteJSON's preference for
// human-diffable JSON over compact binary encodings.
type jsonLine struct {
	Addr         string   `json:"addr"`
	Bytes        string   `json:"bytes"`
	Text         string   `json:"text"`
	Alternatives []string `json:"alternatives,omitempty"`
	IsData       bool     `json:"isData"`
}

func printJSON(lines []disasm.Line) error {
	out := make([]jsonLine, len(lines))
	for i, l := range lines {
		var sb strings.Builder
		for _, b := range l.Bytes {
			fmt.Fprintf(&sb, "%02X", b)
		}
		out[i] = jsonLine{
			Addr:         fmt.Sprintf("%04X", l.Addr),
			Bytes:        sb.String(),
			Text:         l.Text,
			Alternatives: l.Alternatives,
			IsData:       l.IsData,
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// printColored renders each line the way Listing does, but with the
// mnemonic (and DB data marker) in a distinct color from the operands;
// color auto-disables when stdout isn't a terminal (fatih/color's own
// NoColor detection via color.Output).
func printColored(lines []disasm.Line) {
	mnemonic := color.New(color.FgCyan, color.Bold).SprintFunc()
	data := color.New(color.FgYellow).SprintFunc()
	addr := color.New(color.Faint).SprintFunc()

	for _, l := range lines {
		var bytesCol strings.Builder
		for _, b := range l.Bytes {
			fmt.Fprintf(&bytesCol, "%02X ", b)
		}
		pad := 3*5 - bytesCol.Len()
		if pad < 0 {
			pad = 0
		}

		name, rest, _ := strings.Cut(l.Text, " ")
		var textCol string
		if l.IsData {
			textCol = data(l.Text)
		} else if rest == "" {
			textCol = mnemonic(name)
		} else {
			textCol = mnemonic(name) + " " + rest
		}

		fmt.Fprintf(color.Output, "%s  %s%s %s\n",
			addr(fmt.Sprintf("%04X", l.Addr)), bytesCol.String(), strings.Repeat(" ", pad), textCol)
	}
}
