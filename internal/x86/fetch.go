package x86

import (
	"encoding/binary"
	"io"
)

// ByteSource is the minimal interface Fetch needs to pull bytes one at a
// time (spec §4.B: "reads bytes one at a time from a source"). PeekByte
// lets Fetch decide whether the next byte is a prefix without consuming
// it; every concrete source in this module is a fixed in-memory buffer,
// so peeking is always cheap.
type ByteSource interface {
	ReadByte() (byte, error)
	PeekByte() (byte, bool)
}

// Decoded is the result of a successful fetch+decode: the matched INSDEF
// plus every field the fetch protocol extracted.
type Decoded struct {
	Def      *INSDEF
	Prefixes []Prefix
	HasModRM bool
	ModRM    ModRM
	Disp     int32 // sign-extended per DispSize; 0 if none
	Imm1     uint32
	Imm2     uint32
	Imm3     uint32
	Len      int // total raw byte length of the instruction
}

// Fetch reads one instruction from src using dec's dispatch tables,
// following spec §4.B's six-step protocol, and returns its raw bytes.
func Fetch(dec *Decoder, src ByteSource) ([]byte, error) {
	var raw []byte
	readByte := func() (byte, error) {
		b, err := src.ReadByte()
		if err != nil {
			return 0, ErrEOF
		}
		raw = append(raw, b)
		return b, nil
	}

	// Step 1: prefixes.
	var prefixCount int
	for {
		b, ok := src.PeekByte()
		if !ok || !IsPrefix(b) {
			break
		}
		if prefixCount >= MaxPrefixes {
			return nil, ErrTooManyPrefixes
		}
		if _, err := readByte(); err != nil {
			return nil, err
		}
		prefixCount++
	}

	// Step 2: opcode1.
	op1, err := readByte()
	if err != nil {
		return nil, err
	}

	page := &dec.Pages[op1]
	if !page.Present {
		return nil, ErrUnknownOpcode
	}

	// Step 3: opcode2, if this page dispatches on one.
	slot := page.Slots[0]
	if page.HasOpcode2 {
		op2, err := readByte()
		if err != nil {
			return nil, err
		}
		found := page.slotFor(op2)
		if found == nil {
			return nil, ErrUnknownOpcode2
		}
		slot = found
	}

	// Step 4: ModR/M, if this slot requires one.
	var def *INSDEF
	if slot.HasModRM {
		mb, err := readByte()
		if err != nil {
			return nil, err
		}
		m := DecodeModRM(mb)
		dispSize := DispSize(m)
		for i := 0; i < dispSize; i++ {
			if _, err := readByte(); err != nil {
				return nil, err
			}
		}
		for _, cand := range slot.Defs {
			if matches(cand.ModRMClass, m, cand.RegField, cand.Opcode2) {
				def = cand
				break
			}
		}
		if def == nil {
			return nil, ErrNoModRMMatch
		}
	} else {
		def = slot.Defs[0]
	}

	// Step 5: indirect far-pointer operand.
	if def.Flags&OFIndir != 0 {
		for i := 0; i < 2; i++ {
			if _, err := readByte(); err != nil {
				return nil, err
			}
		}
	}

	// Step 6: immediates.
	total := int(def.Imm1) + int(def.Imm2) + int(def.Imm3)
	for i := 0; i < total; i++ {
		if _, err := readByte(); err != nil {
			return nil, err
		}
	}

	return raw, nil
}

// byteSliceSource adapts a byte slice to ByteSource with a peekable
// cursor, used by both Decode (in-memory) and by the disassembler when
// iterating an already-loaded image.
type byteSliceSource struct {
	data []byte
	pos  int
}

// NewByteSliceSource returns a ByteSource over data, starting at offset 0.
func NewByteSliceSource(data []byte) *byteSliceSource {
	return &byteSliceSource{data: data}
}

func (s *byteSliceSource) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *byteSliceSource) PeekByte() (byte, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	return s.data[s.pos], true
}

// Pos returns the current read cursor.
func (s *byteSliceSource) Pos() int { return s.pos }

// Decode fetches and decodes one instruction starting at offset off in
// data, returning the populated Decoded and the number of bytes consumed.
func Decode(dec *Decoder, data []byte, off int) (*Decoded, int, error) {
	src := NewByteSliceSource(data[off:])
	raw, err := Fetch(dec, src)
	if err != nil {
		return nil, 0, err
	}
	return decodeRaw(dec, raw)
}

// decodeRaw re-walks raw (a previously fetched instruction's bytes) to
// populate a Decoded structure. Re-running the fetch protocol over the
// exact bytes Fetch already validated cannot fail.
func decodeRaw(dec *Decoder, raw []byte) (*Decoded, int, error) {
	src := NewByteSliceSource(raw)
	out := &Decoded{}

	for {
		b, ok := src.PeekByte()
		if !ok || !IsPrefix(b) {
			break
		}
		_, _ = src.ReadByte()
		out.Prefixes = append(out.Prefixes, Prefix(b))
	}

	op1, _ := src.ReadByte()
	page := &dec.Pages[op1]
	slot := page.Slots[0]
	if page.HasOpcode2 {
		op2, _ := src.ReadByte()
		slot = page.slotFor(op2)
	}

	var def *INSDEF
	if slot.HasModRM {
		mb, _ := src.ReadByte()
		m := DecodeModRM(mb)
		out.HasModRM = true
		out.ModRM = m
		dispSize := DispSize(m)
		var dispBytes [2]byte
		for i := 0; i < dispSize; i++ {
			dispBytes[i], _ = src.ReadByte()
		}
		if dispSize == 1 {
			out.Disp = int32(int8(dispBytes[0]))
		} else if dispSize == 2 {
			out.Disp = int32(int16(binary.LittleEndian.Uint16(dispBytes[:2])))
		}
		for _, cand := range slot.Defs {
			if matches(cand.ModRMClass, m, cand.RegField, cand.Opcode2) {
				def = cand
				break
			}
		}
	} else {
		def = slot.Defs[0]
	}
	out.Def = def

	if def.Flags&OFIndir != 0 {
		_, _ = src.ReadByte()
		_, _ = src.ReadByte()
	}

	readImm := func(n uint8) uint32 {
		if n == 0 {
			return 0
		}
		var b [2]byte
		for i := uint8(0); i < n; i++ {
			b[i], _ = src.ReadByte()
		}
		if n == 1 {
			return uint32(b[0])
		}
		return uint32(binary.LittleEndian.Uint16(b[:2]))
	}
	out.Imm1 = readImm(def.Imm1)
	out.Imm2 = readImm(def.Imm2)
	out.Imm3 = readImm(def.Imm3)
	out.Len = src.Pos()

	return out, out.Len, nil
}
