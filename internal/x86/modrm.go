package x86

// ModRMClass names the match condition a slot's ModR/M byte must satisfy
// against a given INSDEF's RegField (spec §4.B "ModR/M match classes").
type ModRMClass uint8

const (
	// RMN: fixed, no ModR/M byte at all.
	RMN ModRMClass = iota
	// RRM, RMR: any ModR/M matches (direction is a rendering concern,
	// not a matching one).
	RRM
	RMR
	// RMC: modrm.reg == def.RegField (opcode-extension groups, e.g.
	// the 0x80-0x83 ADD/OR/ADC/.../CMP immediate group).
	RMC
	// REG: mod==3 && rm==reg (fixed register-direct form).
	REG
	// MMC: mod!=3 && reg==def.RegField (memory-operand-only group).
	MMC
	// SSI, SIS, SIC: mod==3 && reg==def.RegField (register-operand-only
	// group; three names for the same condition, kept distinct because
	// the table groups different instruction families under each).
	SSI
	SIS
	SIC
	// SSC, STC: mod==3 && reg==def.RegField && rm==0.
	SSC
	STC
	// STK: mod==3 && reg==def.RegField && rm==1.
	STK
	// CCC: the whole ModR/M byte equals def.Opcode2 (fixed-byte escape
	// forms, e.g. FPU ESC encodings where ModR/M doubles as a
	// sub-opcode).
	CCC
)

// ModRM holds the decoded fields of a ModR/M byte.
type ModRM struct {
	Raw byte
	Mod uint8 // bits 7:6
	Reg uint8 // bits 5:3
	Rm  uint8 // bits 2:0
}

// DecodeModRM splits a raw ModR/M byte into its fields.
func DecodeModRM(b byte) ModRM {
	return ModRM{
		Raw: b,
		Mod: (b >> 6) & 0x03,
		Reg: (b >> 3) & 0x07,
		Rm:  b & 0x07,
	}
}

// DispSize returns the number of displacement bytes that follow a ModR/M
// byte, per the standard 16-bit addressing-mode table: mod==0 has no
// displacement except rm==6 (direct address, 2 bytes); mod==1 has 1 byte;
// mod==2 has 2 bytes; mod==3 (register direct) has none.
func DispSize(m ModRM) int {
	switch m.Mod {
	case 0:
		if m.Rm == 6 {
			return 2
		}
		return 0
	case 1:
		return 1
	case 2:
		return 2
	default: // mod == 3
		return 0
	}
}

// matches reports whether ModR/M byte m satisfies def's ModRMClass against
// def's RegField/Opcode2, per spec §4.B's match-condition table.
func matches(class ModRMClass, m ModRM, regField, opcode2 uint8) bool {
	switch class {
	case RMN:
		return true // no ModR/M byte; only reachable when HasModRM is false
	case RRM, RMR:
		return true
	case RMC:
		return m.Reg == regField
	case REG:
		return m.Mod == 3 && m.Rm == m.Reg
	case MMC:
		return m.Mod != 3 && m.Reg == regField
	case SSI, SIS, SIC:
		return m.Mod == 3 && m.Reg == regField
	case SSC, STC:
		return m.Mod == 3 && m.Reg == regField && m.Rm == 0
	case STK:
		return m.Mod == 3 && m.Reg == regField && m.Rm == 1
	case CCC:
		return m.Raw == opcode2
	default:
		return false
	}
}
