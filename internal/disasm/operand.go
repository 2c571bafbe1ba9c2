package disasm

import "github.com/oisee/x86link/internal/x86"

// eaBase names the base/index pair for each of the eight rm encodings
// under the classic 16-bit addressing-mode table (mod != 3, rm != 6 with
// mod == 0); rm == 6 with mod == 0 is the direct-address special case
// handled separately by rmOperand.
var eaBase = [8]string{"BX+SI", "BX+DI", "BP+SI", "BP+DI", "SI", "DI", "BP", "BX"}

// hexByte renders v the way the teacher's z80 catalog renders an 8-bit
// immediate: two hex digits plus a trailing h, with a leading zero digit
// when the first nibble would otherwise read as a letter.
func hexByte(v uint8) string {
	const hex = "0123456789ABCDEF"
	var buf [4]byte
	n := 0
	if v >= 0xA0 {
		buf[n] = '0'
		n++
	}
	buf[n] = hex[v>>4]
	buf[n+1] = hex[v&0x0F]
	buf[n+2] = 'h'
	return string(buf[:n+3])
}

// hexWord is hexByte's 16-bit sibling.
func hexWord(v uint16) string {
	const hex = "0123456789ABCDEF"
	var buf [6]byte
	n := 0
	if v>>12 >= 0xA {
		buf[n] = '0'
		n++
	}
	buf[n] = hex[(v>>12)&0x0F]
	buf[n+1] = hex[(v>>8)&0x0F]
	buf[n+2] = hex[(v>>4)&0x0F]
	buf[n+3] = hex[v&0x0F]
	buf[n+4] = 'h'
	return string(buf[:n+5])
}

// regOperand names the register a 3-bit field selects, at the given
// operand width in bytes (1 or 2).
func regOperand(reg uint8, width int) string {
	if width == 1 {
		return x86.RegNames8[reg]
	}
	return x86.RegNames16[reg]
}

// rmOperand renders a ModR/M byte's r/m field: a bare register for
// mod == 3, otherwise a bracketed effective-address expression.
func rmOperand(m x86.ModRM, width int, disp int32) string {
	if m.Mod == 3 {
		return regOperand(m.Rm, width)
	}
	if m.Mod == 0 && m.Rm == 6 {
		return "[" + hexWord(uint16(disp)) + "]"
	}
	base := eaBase[m.Rm]
	switch {
	case disp == 0:
		return "[" + base + "]"
	case disp < 0:
		return "[" + base + "-" + hexWord(uint16(-disp)) + "]"
	default:
		return "[" + base + "+" + hexWord(uint16(disp)) + "]"
	}
}

// immByCount renders an immediate value that was read as n bytes (1 or 2)
// at its natural width, unsigned.
func immByCount(n uint8, v uint32) string {
	if n == 1 {
		return hexByte(uint8(v))
	}
	return hexWord(uint16(v))
}

// signExtend widens a raw n-byte immediate (1 or 2 bytes, as read off the
// wire unsigned) to its signed 32-bit value, for PC-relative displacements.
func signExtend(raw uint32, n uint8) int32 {
	switch n {
	case 1:
		return int32(int8(raw))
	case 2:
		return int32(int16(raw))
	default:
		return 0
	}
}
