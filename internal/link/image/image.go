// Package image implements spec §4.G: laying out the fully consolidated
// program into a single growable byte buffer with paragraph-aligned
// segment bases, then resolving the Segment and Group fixups that were
// deferred from internal/link/resolve because they need those bases.
package image

import (
	"encoding/binary"

	"github.com/oisee/x86link/internal/diag"
	"github.com/oisee/x86link/internal/program"
)

const (
	growUnit = 16 * 1024
	ceiling  = 640 * 1024
)

// Addr is a resolved paragraph-based address: Seg is a paragraph number
// (byte address / 16), not a program.SegmentID.
type Addr struct {
	Seg    uint16
	Offset uint16
	Set    bool
}

// StackAddr is the stack's paragraph number and its size in bytes.
type StackAddr struct {
	Seg  uint16
	Size uint16
	Set  bool
}

// Image is spec §3's program image: a flat byte buffer plus the start/
// stack addresses and trailing uninitialised byte count (Space) the output
// emitters need.
//
// Lo always stays 0 in this implementation: nothing upstream ever gives a
// segment a nonzero origin (internal/link/incorporate always builds
// segments starting at Data index 0), so Build never has a reason to set
// it to anything else. A COM program's conventional 0x100 origin is
// expressed through its start address instead; see
// internal/link/emit/com.go.
type Image struct {
	Data  []byte
	Lo    uint16
	Hi    uint16
	Start Addr
	Stack StackAddr
	Space uint16

	bases map[program.SegmentID]uint16
}

// Base returns the byte offset assigned to id, and whether id was placed.
func (img *Image) Base(id program.SegmentID) (uint16, bool) {
	v, ok := img.bases[id]
	return v, ok
}

// Build lays out every live segment of prog, in program (insertion) order,
// into a single image and resolves Segment/Group fixups against the
// resulting paragraph bases (spec §4.G steps 1-5).
func Build(prog *program.Program) (*Image, error) {
	img := &Image{bases: make(map[program.SegmentID]uint16)}

	placed := false
	for id, seg := prog.Segments.FirstProperSegment(); seg != nil; id, seg = prog.Segments.NextProperSegment(id) {
		if placed && seg.P2Align < 4 {
			return nil, diag.FatalSeg(diag.Semantic, seg.Name, "segment is not paragraph-aligned (p2align must be >= 4 once the image holds other segments)")
		}

		hasData := seg.Hi > 0 || len(seg.Data) > 0

		if hasData {
			if err := placeData(img, prog, id, seg); err != nil {
				return nil, err
			}
		} else {
			if err := placeSpace(img, prog, id, seg); err != nil {
				return nil, err
			}
		}
		placed = true
	}

	if !img.Start.Set {
		return nil, diag.Fatalf(diag.Semantic, "program has no start address")
	}

	if err := resolveSegmentFixups(prog, img); err != nil {
		return nil, err
	}
	if err := resolveGroupFixups(prog, img); err != nil {
		return nil, err
	}

	return img, nil
}

func placeData(img *Image, prog *program.Program, id program.SegmentID, seg *program.Segment) error {
	if img.Space > 0 {
		return diag.FatalSeg(diag.Semantic, seg.Name, "cannot place initialised data after trailing uninitialised space in the image")
	}
	align := uint32(1) << seg.P2Align
	newHi := alignUp(img.Hi, align)

	if err := img.growTo(int(newHi) + len(seg.Data)); err != nil {
		return err
	}
	img.Data = img.Data[:newHi]
	img.Data = append(img.Data, seg.Data...)
	img.Hi = uint16(len(img.Data))
	img.bases[id] = newHi

	if prog.Start.Set && prog.Start.Seg == id {
		img.Start = Addr{Seg: newHi / 16, Offset: prog.Start.Offset, Set: true}
	}
	if prog.Stack.Set && prog.Stack.Seg == id {
		img.Stack = StackAddr{Seg: newHi / 16, Size: prog.Stack.Size, Set: true}
	}

	if seg.Space > 0 {
		if img.Space > 0 {
			return diag.FatalSeg(diag.Semantic, seg.Name, "more than one segment contributes trailing uninitialised space to the image")
		}
		img.Space = seg.Space
	}
	return nil
}

func placeSpace(img *Image, prog *program.Program, id program.SegmentID, seg *program.Segment) error {
	align := uint32(1) << seg.P2Align
	cursor := uint32(img.Hi) + uint32(img.Space)
	base := alignUp(uint16(cursor), align)
	gap := uint32(base) - cursor
	img.Space += uint16(gap)
	img.bases[id] = base

	if prog.Start.Set && prog.Start.Seg == id {
		return diag.FatalSeg(diag.Semantic, seg.Name, "program start address falls in uninitialised space")
	}
	if prog.Stack.Set && prog.Stack.Seg == id {
		img.Stack = StackAddr{Seg: base / 16, Size: prog.Stack.Size, Set: true}
	}

	img.Space += seg.Space
	return nil
}

func resolveSegmentFixups(prog *program.Program, img *Image) error {
	var err error
	prog.Fixups.All(func(_ int, f *program.Fixup) {
		if err != nil || f.Variant != program.FixupSegment {
			return
		}
		err = resolveAddr(img, f, f.AddressedSeg, f.AddressedBase)
	})
	return err
}

func resolveGroupFixups(prog *program.Program, img *Image) error {
	var err error
	prog.Fixups.All(func(_ int, f *program.Fixup) {
		if err != nil || f.Variant != program.FixupGroup {
			return
		}
		group := prog.Groups.Get(f.AddressedGroupNo)
		err = resolveAddr(img, f, group.MainSegno, 0)
	})
	return err
}

func resolveAddr(img *Image, f *program.Fixup, addressedSeg program.SegmentID, extraBase uint16) error {
	holdingBase, ok := img.Base(f.HoldingSeg)
	if !ok {
		return diag.Fatalf(diag.FixupInvariant, "fixup holding segment was never placed in the image")
	}
	addressedBase, ok := img.Base(addressedSeg)
	if !ok {
		return diag.Fatalf(diag.FixupInvariant, "fixup addressed segment was never placed in the image")
	}

	f.HoldingSegAddr = holdingBase / 16
	paragraphed := uint32(addressedBase) + uint32(extraBase)
	if paragraphed%16 != 0 {
		return diag.Fatalf(diag.FixupInvariant, "addressed address %#x is not paragraph-aligned", paragraphed)
	}
	addr := paragraphed / 16
	if addr > 0xFFFF {
		return diag.Fatalf(diag.Capacity, "paragraph address %#x exceeds 16-bit range", addr)
	}

	site := int(holdingBase) + int(f.HoldingOffset)
	if site+2 > len(img.Data) {
		return diag.Fatalf(diag.FixupInvariant, "fixup site lies outside the image")
	}
	if img.Data[site] != 0 || img.Data[site+1] != 0 {
		return diag.Fatalf(diag.FixupInvariant, "fixup site is not zero before resolution")
	}
	binary.LittleEndian.PutUint16(img.Data[site:], uint16(addr))
	return nil
}

// growTo ensures the image's data buffer can hold n bytes, growing its
// backing capacity in 16 KiB units up to the 640 KiB ceiling (spec §4.G
// closing paragraph).
func (img *Image) growTo(n int) error {
	if n > ceiling {
		return diag.Fatalf(diag.Capacity, "program image exceeds the %d KiB ceiling", ceiling/1024)
	}
	if cap(img.Data) >= n {
		return nil
	}
	newCap := cap(img.Data)
	if newCap == 0 {
		newCap = growUnit
	}
	for newCap < n {
		newCap += growUnit
	}
	if newCap > ceiling {
		newCap = ceiling
	}
	grown := make([]byte, len(img.Data), newCap)
	copy(grown, img.Data)
	img.Data = grown
	return nil
}

func alignUp(v uint16, align uint32) uint16 {
	if align <= 1 {
		return v
	}
	rem := uint32(v) % align
	if rem == 0 {
		return v
	}
	return uint16(uint32(v) + align - rem)
}
