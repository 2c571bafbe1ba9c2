// Package emit implements spec §4.H: the three output formats a linked
// program image can be written as. Each format has its own preconditions;
// none of them re-check invariants image.Build already enforced.
package emit

import (
	"io"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/link/image"
	"github.com/oisee/x86link/internal/program"
)

// hasLoadTimeFixups reports whether prog carries any Segment or Group
// fixup — both are baked into absolute paragraph addresses by image.Build,
// which only makes sense if the image is loaded at a fixed, known base.
// BIN and COM have no relocation mechanism, so either format must reject
// a program that needed one.
func hasLoadTimeFixups(prog *program.Program) bool {
	found := false
	prog.Fixups.All(func(_ int, f *program.Fixup) {
		if f.Variant == program.FixupSegment || f.Variant == program.FixupGroup {
			found = true
		}
	})
	return found
}

// WriteBIN emits img as a raw flat binary (spec §4.H "BIN").
func WriteBIN(w io.Writer, prog *program.Program, img *image.Image) error {
	if img.Lo != 0 {
		return diag.Fatalf(diag.FormatIncompatibility, "BIN output requires image.lo == 0, got %d", img.Lo)
	}
	if img.Stack.Set {
		return diag.Fatalf(diag.FormatIncompatibility, "BIN output forbids a stack segment")
	}
	if img.Start.Set && (img.Start.Seg != 0 || img.Start.Offset != 0) {
		return diag.Fatalf(diag.FormatIncompatibility, "BIN output requires no start address or a zero one, got %+v", img.Start)
	}
	if hasLoadTimeFixups(prog) {
		return diag.Fatalf(diag.FormatIncompatibility, "BIN output forbids Segment/Group fixups (no relocation table)")
	}

	_, err := w.Write(img.Data[:img.Hi])
	return err
}
