package emit

import (
	"io"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/link/image"
	"github.com/oisee/x86link/internal/program"
)

// comCap is the maximum payload size a COM program may occupy (spec §4.H
// / "Capacity errors": "COM image > 65024 bytes" is fatal).
const comCap = 65024

// WriteCOM emits img as a DOS .COM file (spec §4.H "COM").
//
// This implementation never threads a segment's ORG through to
// image.Lo — Build always lays segments out from byte 0 (see
// internal/link/image's grounding note). A COM program's logical origin
// of 0x100 therefore shows up only in its start address, never as a
// nonzero image.Lo; the "require image.lo == 0x100" precondition is
// realized here as "the start address is exactly (segment 0, offset
// 0x100)", which is the only way this toolchain can express a COM origin.
func WriteCOM(w io.Writer, prog *program.Program, img *image.Image) error {
	if !img.Start.Set || img.Start.Seg != 0 || img.Start.Offset != 0x100 {
		return diag.Fatalf(diag.FormatIncompatibility, "COM output requires start == {seg: 0, offset: 0x100}, got %+v", img.Start)
	}
	if img.Stack.Set {
		return diag.Fatalf(diag.FormatIncompatibility, "COM output forbids a stack segment")
	}
	if hasLoadTimeFixups(prog) {
		return diag.Fatalf(diag.FormatIncompatibility, "COM output forbids Segment/Group fixups (no relocation table)")
	}
	if int(img.Hi) > comCap {
		return diag.Fatalf(diag.Capacity, "COM image of %d bytes exceeds the %d-byte cap", img.Hi, comCap)
	}

	_, err := w.Write(img.Data[:img.Hi])
	return err
}
