package x86

import "fmt"

// OpcodeSlot is a linked-by-table-order list of candidate INSDEFs sharing
// one (opcode1[, opcode2]) dispatch point. If HasModRM is true, Defs holds
// every INSDEF that might match (first-match-wins, in table order); if
// false, Defs holds exactly one INSDEF.
type OpcodeSlot struct {
	Opcode2  byte
	HasModRM bool
	Defs     []*INSDEF
}

// OpcodePage is one opcode1 dispatch entry.
type OpcodePage struct {
	Present    bool
	OpcodeInc  bool
	BaseDef    *INSDEF // defining row for an OpcodeInc family; nil otherwise
	HasOpcode2 bool
	Slots      []*OpcodeSlot
}

func (p *OpcodePage) slotFor(opcode2 byte) *OpcodeSlot {
	for _, s := range p.Slots {
		if !p.HasOpcode2 || s.Opcode2 == opcode2 {
			return s
		}
	}
	return nil
}

// Decoder is the built, immutable dispatch table: 256 opcode1 pages, each
// optionally split into opcode2 slots, each optionally matched against a
// ModR/M byte. Built once via Build and shared read-only thereafter (spec
// §4.B, §9 "Decoder ownership").
type Decoder struct {
	Pages [256]OpcodePage

	// alternatives records INSDEFs skipped at build time because a
	// preferred canonical form exists for the same dispatch point,
	// keyed by (opcode1, opcode2) — used only to annotate disassembly
	// listings (SPEC_FULL.md supplemented feature), never consulted
	// during fetch/decode.
	alternatives map[altKey][]*INSDEF
}

type altKey struct {
	opcode1    byte
	hasOpcode2 bool
	opcode2    byte
}

// Alternatives returns the INSDEFs that were skipped in favor of the
// canonical form matched at (opcode1, opcode2).
func (d *Decoder) Alternatives(opcode1 byte, hasOpcode2 bool, opcode2 byte) []*INSDEF {
	return d.alternatives[altKey{opcode1, hasOpcode2, opcode2}]
}

// Build constructs a Decoder from a static instruction table. Explicit
// rows are inserted before opcode_inc families; a family byte already
// claimed by an explicit row keeps that row, and the family's form there
// is recorded as an alternative. It returns an error (spec's "fatal"
// build-time condition) on any of: two overlapping opcode_inc families;
// two INSDEFs for the same opcode1 disagreeing about HasOpcode2; two
// INSDEFs for the same (opcode1,opcode2) disagreeing about HasModRM; or a
// non-ModR/M slot accumulating more than one non-alternative INSDEF.
func Build(table []INSDEF) (*Decoder, error) {
	d := &Decoder{alternatives: make(map[altKey][]*INSDEF)}

	var explicit, inc []*INSDEF
	for i := range table {
		def := &table[i]
		if def.Alternative {
			key := altKey{def.Opcode1, def.HasOpcode2, def.Opcode2}
			d.alternatives[key] = append(d.alternatives[key], def)
			continue
		}
		if def.OpcodeInc {
			inc = append(inc, def)
		} else {
			explicit = append(explicit, def)
		}
	}

	for _, def := range explicit {
		if err := d.insertExplicit(def); err != nil {
			return nil, err
		}
	}
	for _, def := range inc {
		if err := d.insertInc(def); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MustBuild is Build, panicking on error. Used for the package-level
// default decoder, where a broken static table is a programmer error, not
// a runtime condition.
func MustBuild(table []INSDEF) *Decoder {
	d, err := Build(table)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Decoder) insertExplicit(def *INSDEF) error {
	page := &d.Pages[def.Opcode1]
	if !page.Present {
		*page = OpcodePage{Present: true, HasOpcode2: def.HasOpcode2}
	} else if page.OpcodeInc {
		return fmt.Errorf("x86: opcode %#02x: explicit INSDEF %q conflicts with opcode_inc family %q",
			def.Opcode1, def.Mnemonic, page.BaseDef.Mnemonic)
	} else if page.HasOpcode2 != def.HasOpcode2 {
		return fmt.Errorf("x86: opcode %#02x: INSDEF %q disagrees with existing entries about has_opcode2",
			def.Opcode1, def.Mnemonic)
	}

	slot := page.slotFor(def.Opcode2)
	if slot == nil {
		slot = &OpcodeSlot{Opcode2: def.Opcode2, HasModRM: def.HasModRM}
		page.Slots = append(page.Slots, slot)
	} else if slot.HasModRM != def.HasModRM {
		return fmt.Errorf("x86: opcode %#02x/%#02x: INSDEF %q disagrees about has_modrm",
			def.Opcode1, def.Opcode2, def.Mnemonic)
	} else if !slot.HasModRM && len(slot.Defs) >= 1 {
		return fmt.Errorf("x86: opcode %#02x: non-ModR/M slot already holds %q, cannot also hold %q",
			def.Opcode1, slot.Defs[0].Mnemonic, def.Mnemonic)
	}
	slot.Defs = append(slot.Defs, def)
	return nil
}

func (d *Decoder) insertInc(def *INSDEF) error {
	base := def.Opcode1 &^ 0x07
	for reg := 0; reg < 8; reg++ {
		op := base | byte(reg)
		page := &d.Pages[op]
		if page.Present && !page.OpcodeInc {
			// An explicit row claims this exact byte; it wins. This
			// generalizes the spec's alternative-form mechanism to
			// opcode_inc families (e.g. NOP at 0x90 overriding the
			// reg==0 slot of the XCHG AX,reg family). Record the
			// shadowed synthesized form under the same key the explicit
			// alternatives use, so disassembly annotation sees it too.
			shadowed := *def
			shadowed.RegField = uint8(reg)
			key := altKey{op, def.HasOpcode2, def.Opcode2}
			d.alternatives[key] = append(d.alternatives[key], &shadowed)
			continue
		}
		if page.Present && page.OpcodeInc && page.BaseDef.Opcode1 != def.Opcode1 {
			return fmt.Errorf("x86: opcode %#02x: opcode_inc families %q and %q overlap",
				op, page.BaseDef.Mnemonic, def.Mnemonic)
		}
		if !page.Present {
			*page = OpcodePage{Present: true, OpcodeInc: true, BaseDef: def, HasOpcode2: def.HasOpcode2}
		}
		regCopy := *def
		regCopy.RegField = uint8(reg)
		slot := page.slotFor(def.Opcode2)
		if slot == nil {
			slot = &OpcodeSlot{Opcode2: def.Opcode2, HasModRM: def.HasModRM}
			page.Slots = append(page.Slots, slot)
		}
		slot.Defs = append(slot.Defs, &regCopy)
	}
	return nil
}

// Default is the package-level decoder built from Catalog, shared
// read-only by the disassembler and the linker's sanity paths.
var Default = MustBuild(Catalog)
