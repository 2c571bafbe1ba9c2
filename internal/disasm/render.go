// Package disasm renders decoded instructions (internal/x86) into
// assembly text, following spec §4.B's alternative-forms table so the
// canonical mnemonic is always what gets printed, and the teacher's
// catalog.go placeholder-substitution convention for operand text
// (hex immediates rendered with a trailing h, e.g. "21h").
package disasm

import (
	"fmt"
	"strings"

	"github.com/oisee/x86link/internal/x86"
)

// wordOnlyMnemonics names the handful of catalog entries whose r/m operand
// is always 16-bit regardless of their opcode's low bit (LEA/LDS/LES load
// a pointer into a 16-bit register; there is no byte form).
var wordOnlyMnemonics = map[string]bool{"LEA": true, "LDS": true, "LES": true}

// operandWidth returns 1 or 2 (bytes), derived from the INSDEF the way
// the 8086 encoding itself derives it: an explicit OFByte/OFWord flag
// wins, then the wordOnlyMnemonics exception, then opcode1's low bit
// (the classic "w" bit shared by MOV/ADD-family/TEST/XCHG/shift/INC-DEC).
func operandWidth(def *x86.INSDEF) int {
	switch {
	case def.Flags&x86.OFByte != 0:
		return 1
	case def.Flags&x86.OFWord != 0:
		return 2
	}
	if wordOnlyMnemonics[firstWord(def.Mnemonic)] {
		return 2
	}
	if def.Opcode1&1 == 1 {
		return 2
	}
	return 1
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// prefixNames renders recognized instruction prefixes preceding a mnemonic.
func prefixNames(prefixes []x86.Prefix) string {
	var sb strings.Builder
	for _, p := range prefixes {
		switch p {
		case x86.PrefixLock:
			sb.WriteString("LOCK ")
		case x86.PrefixRepne:
			sb.WriteString("REPNE ")
		case x86.PrefixRep:
			sb.WriteString("REP ")
		case x86.PrefixSegES:
			sb.WriteString("ES: ")
		case x86.PrefixSegCS:
			sb.WriteString("CS: ")
		case x86.PrefixSegSS:
			sb.WriteString("SS: ")
		case x86.PrefixSegDS:
			sb.WriteString("DS: ")
		case x86.PrefixOpSize:
			sb.WriteString("OPSIZE ")
		case x86.PrefixAddrSize:
			sb.WriteString("ADDRSIZE ")
		}
	}
	return sb.String()
}

// Render formats one decoded instruction into its assembly text. cursor is
// the address of the instruction's first byte, needed for PC-relative
// branch targets.
func Render(d *x86.Decoded, cursor uint16) string {
	def := d.Def
	name := firstWord(def.Mnemonic)
	text := prefixNames(d.Prefixes)
	if d.HasModRM {
		return text + renderModRM(def, d, name)
	}
	return text + renderPlain(def, d, name, cursor)
}

func renderModRM(def *x86.INSDEF, d *x86.Decoded, name string) string {
	w := operandWidth(def)
	switch def.ModRMClass {
	case x86.RRM:
		return fmt.Sprintf("%s %s,%s", name, rmOperand(d.ModRM, w, d.Disp), regOperand(d.ModRM.Reg, w))
	case x86.RMR:
		return fmt.Sprintf("%s %s,%s", name, regOperand(d.ModRM.Reg, w), rmOperand(d.ModRM, w, d.Disp))
	case x86.RMC:
		return renderRMC(def, d, name, w)
	case x86.CCC:
		return def.Mnemonic
	default:
		return fmt.Sprintf("%s %s", name, rmOperand(d.ModRM, w, d.Disp))
	}
}

func renderRMC(def *x86.INSDEF, d *x86.Decoded, name string, w int) string {
	rm := rmOperand(d.ModRM, w, d.Disp)
	switch def.Opcode1 {
	case 0x80, 0x81, 0x83:
		return fmt.Sprintf("%s %s,%s", name, rm, immByCount(def.Imm1, d.Imm1))
	case 0xD0, 0xD1:
		return fmt.Sprintf("%s %s,1", name, rm)
	case 0xD2, 0xD3:
		return fmt.Sprintf("%s %s,CL", name, rm)
	case 0xFE, 0xFF:
		if def.Flags&x86.OFIndir != 0 {
			return fmt.Sprintf("%s FAR %s", name, rm)
		}
		return fmt.Sprintf("%s %s", name, rm)
	default:
		return fmt.Sprintf("%s %s", name, rm)
	}
}

// isRelBranch reports whether opcode1 is one of the catalog's PC-relative
// branch forms: the two special-cased jumps, CALL NEAR, the Jcc range, and
// the LOOP/JCXZ range.
func isRelBranch(opcode1 byte) bool {
	switch {
	case opcode1 == x86.OpcodeShortJmp, opcode1 == x86.OpcodeNearJmp, opcode1 == 0xE8:
		return true
	case opcode1 >= 0x70 && opcode1 <= 0x7F:
		return true
	case opcode1 >= 0xE0 && opcode1 <= 0xE3:
		return true
	default:
		return false
	}
}

func renderPlain(def *x86.INSDEF, d *x86.Decoded, name string, cursor uint16) string {
	switch {
	case def.OpcodeInc:
		return renderOpcodeInc(def, d, name)
	case isRelBranch(def.Opcode1):
		disp := signExtend(d.Imm1, def.Imm1)
		target := uint16(int32(cursor) + int32(d.Len) + disp)
		return fmt.Sprintf("%s %s", def.Mnemonic, hexWord(target))
	case def.Imm2 > 0:
		// JMP FAR / CALL FAR: offset (Imm1) then segment (Imm2) on the
		// wire, displayed conventionally as segment:offset.
		return fmt.Sprintf("%s %s:%s", def.Mnemonic, hexWord(uint16(d.Imm2)), hexWord(uint16(d.Imm1)))
	case def.Imm1 > 0 && strings.Contains(def.Mnemonic, ","):
		return renderAccumImm(def, d, name)
	case def.Imm1 > 0:
		return fmt.Sprintf("%s %s", name, immByCount(def.Imm1, d.Imm1))
	default:
		return def.Mnemonic
	}
}

func renderOpcodeInc(def *x86.INSDEF, d *x86.Decoded, name string) string {
	w := 2
	if def.Flags&x86.OFByte != 0 {
		w = 1
	}
	reg := regOperand(def.RegField, w)
	switch {
	case strings.Contains(def.Mnemonic, ","):
		// "XCHG AX,reg" family.
		return fmt.Sprintf("%s AX,%s", name, reg)
	case def.Imm1 > 0:
		return fmt.Sprintf("%s %s,%s", name, reg, immByCount(def.Imm1, d.Imm1))
	default:
		return fmt.Sprintf("%s %s", name, reg)
	}
}

// renderAccumImm handles "OP AL,imm8" / "OP AX,imm16" accumulator forms,
// selecting AL vs AX by the immediate's byte count.
func renderAccumImm(def *x86.INSDEF, d *x86.Decoded, name string) string {
	if def.Imm1 == 1 {
		return fmt.Sprintf("%s AL,%s", name, hexByte(uint8(d.Imm1)))
	}
	return fmt.Sprintf("%s AX,%s", name, hexWord(uint16(d.Imm1)))
}

// altText renders an alternative (shadowed) INSDEF for disassembly
// annotation. Opcode-inc shadowed forms carry a literal "reg" placeholder
// (e.g. "XCHG AX,reg") substituted here with the concrete register their
// RegField was synthesized for; every other alternative's Mnemonic is
// already the full literal text (e.g. "RET", "INT 3").
func altText(def *x86.INSDEF) string {
	if strings.Contains(def.Mnemonic, ",reg") {
		w := 2
		if def.Flags&x86.OFByte != 0 {
			w = 1
		}
		return strings.Replace(def.Mnemonic, "reg", regOperand(def.RegField, w), 1)
	}
	return def.Mnemonic
}
