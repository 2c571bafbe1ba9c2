package objfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Signature and version of the object file format (spec §4.A / §6).
var Signature = [4]byte{0x43, 0xD0, 0xAB, 0x1F}

const Version uint16 = 0x0000

// MaxDataLen is the largest payload a ShapeData record can carry: the
// length prefix is one byte. Callers that need to emit a longer data span
// must split it across multiple KindDataBytes records.
const MaxDataLen = 255

// MaxNameLen is the longest symbol/group/segment name the format permits
// (spec §4.D: "Names are <= 31 bytes").
const MaxNameLen = 31

// Writer builds an object record stream by appending records. It owns the
// accumulating byte buffer; nothing is retained by reference from the
// records passed to Emit.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a Writer with the file signature and version already
// written.
func NewWriter() *Writer {
	w := &Writer{}
	w.buf.Write(Signature[:])
	var vb [2]byte
	binary.LittleEndian.PutUint16(vb[:], Version)
	w.buf.Write(vb[:])
	return w
}

// Bytes returns the accumulated stream, header included.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Emit serializes one record and appends it to the stream.
func (w *Writer) Emit(r Record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	w.buf.WriteByte(byte(r.Kind))
	w.buf.Write(data)
	return nil
}

func encodeRecord(r Record) ([]byte, error) {
	switch shapeOf(r.Kind) {
	case ShapeSignal:
		if r.Payload != nil {
			return nil, fmt.Errorf("objfile: %s is signal-shaped but has a payload", r.Kind)
		}
		return nil, nil

	case ShapeWord:
		var v uint16
		switch p := r.Payload.(type) {
		case SpacePayload:
			v = p.Size
		case StartOffsetPayload:
			v = p.Offset
		default:
			return nil, fmt.Errorf("objfile: %s has unexpected payload type %T", r.Kind, r.Payload)
		}
		return le16(v), nil

	case ShapeDword:
		var a, b uint16
		switch p := r.Payload.(type) {
		case FixupOffsetPayload:
			a, b = p.HoldingOffset, p.AddressedSeg
		case FixupGroupAbsJumpPayload:
			a, b = p.HoldingOffset, p.GroupIdx
		case FixupGroupPayload:
			a, b = p.HoldingOffset, p.AddressedGroupIdx
		default:
			return nil, fmt.Errorf("objfile: %s has unexpected payload type %T", r.Kind, r.Payload)
		}
		return append(le16(a), le16(b)...), nil

	case ShapeQword:
		var a, b, c uint16
		switch p := r.Payload.(type) {
		case FixupExternPayload:
			a, b, c = p.HoldingOffset, p.SymID, uint16(p.Kind)
		case FixupSegmentPayload:
			a, b, c = p.HoldingOffset, p.AddressedSeg, p.AddressedBase
		default:
			return nil, fmt.Errorf("objfile: %s has unexpected payload type %T", r.Kind, r.Payload)
		}
		out := append(le16(a), le16(b)...)
		out = append(out, le16(c)...)
		out = append(out, le16(0)...)
		return out, nil

	case ShapeData:
		blob, err := encodeDataPayload(r)
		if err != nil {
			return nil, err
		}
		if len(blob) > MaxDataLen {
			return nil, fmt.Errorf("objfile: %s payload is %d bytes, exceeds max %d", r.Kind, len(blob), MaxDataLen)
		}
		out := make([]byte, 0, 1+len(blob))
		out = append(out, byte(len(blob)))
		out = append(out, blob...)
		return out, nil
	}
	panic("unreachable")
}

func encodeDataPayload(r Record) ([]byte, error) {
	encodeName := func(name string) ([]byte, error) {
		if len(name) == 0 {
			return nil, fmt.Errorf("objfile: %s name must be non-empty", r.Kind)
		}
		if len(name) > MaxNameLen {
			return nil, fmt.Errorf("objfile: %s name %q exceeds %d bytes", r.Kind, name, MaxNameLen)
		}
		out := []byte{byte(len(name))}
		return append(out, name...), nil
	}

	switch p := r.Payload.(type) {
	case GroupDeclPayload:
		return encodeName(p.Name)

	case SegmentOpenPayload:
		buf, err := encodeName(p.Name)
		if err != nil {
			return nil, err
		}
		var flags byte
		if p.Public {
			flags |= 0x01
		}
		buf = append(buf, flags, p.P2Align)
		buf = append(buf, le16(p.GroupIdx)...)
		return buf, nil

	case DataBytesPayload:
		if len(p.Bytes) > MaxDataLen {
			return nil, fmt.Errorf("objfile: DATA span of %d bytes exceeds %d, caller must split", len(p.Bytes), MaxDataLen)
		}
		return p.Bytes, nil

	case PublicPayload:
		buf, err := encodeName(p.Name)
		if err != nil {
			return nil, err
		}
		return append(buf, le16(p.Offset)...), nil

	case ExternDefPayload:
		buf, err := encodeName(p.Name)
		if err != nil {
			return nil, err
		}
		return append(buf, le16(p.SymID)...), nil

	default:
		return nil, fmt.Errorf("objfile: %s has unexpected payload type %T", r.Kind, r.Payload)
	}
}

func le16(v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b[:]
}

// Reader parses a complete object record stream and provides random access
// to its records by index.
type Reader struct {
	records []Record
}

// NewReader parses data (including the signature+version header) into a
// Reader. It is a fatal (returned) error if the signature or version does
// not match, or if any record is truncated or malformed.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("objfile: truncated header (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], Signature[:]) {
		return nil, fmt.Errorf("objfile: bad signature % x", data[:4])
	}
	ver := binary.LittleEndian.Uint16(data[4:6])
	if ver != Version {
		return nil, fmt.Errorf("objfile: unsupported version %#04x", ver)
	}

	r := &Reader{}
	pos := 6
	for pos < len(data) {
		kind := Kind(data[pos])
		pos++
		rec, n, err := decodeRecord(kind, data[pos:])
		if err != nil {
			return nil, fmt.Errorf("objfile: record %d: %w", len(r.records), err)
		}
		r.records = append(r.records, rec)
		pos += n
	}
	return r, nil
}

func decodeRecord(kind Kind, rest []byte) (Record, int, error) {
	if kind >= kindCount {
		return Record{}, 0, fmt.Errorf("unknown record type %d", uint8(kind))
	}
	switch shapeOf(kind) {
	case ShapeSignal:
		return Record{Kind: kind}, 0, nil

	case ShapeWord:
		if len(rest) < 2 {
			return Record{}, 0, fmt.Errorf("%s: truncated word payload", kind)
		}
		v := binary.LittleEndian.Uint16(rest[:2])
		var p any
		switch kind {
		case KindSpace:
			p = SpacePayload{Size: v}
		case KindStartOffset:
			p = StartOffsetPayload{Offset: v}
		}
		return Record{Kind: kind, Payload: p}, 2, nil

	case ShapeDword:
		if len(rest) < 4 {
			return Record{}, 0, fmt.Errorf("%s: truncated dword payload", kind)
		}
		a := binary.LittleEndian.Uint16(rest[0:2])
		b := binary.LittleEndian.Uint16(rest[2:4])
		var p any
		switch kind {
		case KindFixupOffset:
			p = FixupOffsetPayload{HoldingOffset: a, AddressedSeg: b}
		case KindFixupGroupAbsJump:
			p = FixupGroupAbsJumpPayload{HoldingOffset: a, GroupIdx: b}
		case KindFixupGroup:
			p = FixupGroupPayload{HoldingOffset: a, AddressedGroupIdx: b}
		}
		return Record{Kind: kind, Payload: p}, 4, nil

	case ShapeQword:
		if len(rest) < 8 {
			return Record{}, 0, fmt.Errorf("%s: truncated qword payload", kind)
		}
		a := binary.LittleEndian.Uint16(rest[0:2])
		b := binary.LittleEndian.Uint16(rest[2:4])
		c := binary.LittleEndian.Uint16(rest[4:6])
		var p any
		switch kind {
		case KindFixupExtern:
			p = FixupExternPayload{HoldingOffset: a, SymID: b, Kind: FixupKind(c)}
		case KindFixupSegment:
			p = FixupSegmentPayload{HoldingOffset: a, AddressedSeg: b, AddressedBase: c}
		}
		return Record{Kind: kind, Payload: p}, 8, nil

	case ShapeData:
		if len(rest) < 1 {
			return Record{}, 0, fmt.Errorf("%s: truncated data length", kind)
		}
		n := int(rest[0])
		if len(rest) < 1+n {
			return Record{}, 0, fmt.Errorf("%s: truncated data payload (want %d bytes)", kind, n)
		}
		blob := rest[1 : 1+n]
		p, err := decodeDataPayload(kind, blob)
		if err != nil {
			return Record{}, 0, err
		}
		return Record{Kind: kind, Payload: p}, 1 + n, nil
	}
	panic("unreachable")
}

func decodeDataPayload(kind Kind, blob []byte) (any, error) {
	readName := func(b []byte) (string, []byte, error) {
		if len(b) < 1 {
			return "", nil, fmt.Errorf("%s: missing name length", kind)
		}
		n := int(b[0])
		if len(b) < 1+n {
			return "", nil, fmt.Errorf("%s: truncated name", kind)
		}
		if n == 0 {
			return "", nil, fmt.Errorf("%s: empty name", kind)
		}
		return string(b[1 : 1+n]), b[1+n:], nil
	}

	switch kind {
	case KindGroupDecl:
		name, _, err := readName(blob)
		if err != nil {
			return nil, err
		}
		return GroupDeclPayload{Name: name}, nil

	case KindSegmentOpen:
		name, rest, err := readName(blob)
		if err != nil {
			return nil, err
		}
		if len(rest) < 4 {
			return nil, fmt.Errorf("%s: truncated fixed fields", kind)
		}
		flags, p2align := rest[0], rest[1]
		groupIdx := binary.LittleEndian.Uint16(rest[2:4])
		return SegmentOpenPayload{
			Name:     name,
			Public:   flags&0x01 != 0,
			P2Align:  p2align,
			GroupIdx: groupIdx,
		}, nil

	case KindDataBytes:
		out := make([]byte, len(blob))
		copy(out, blob)
		return DataBytesPayload{Bytes: out}, nil

	case KindPublic:
		name, rest, err := readName(blob)
		if err != nil {
			return nil, err
		}
		if len(rest) < 2 {
			return nil, fmt.Errorf("%s: truncated offset", kind)
		}
		return PublicPayload{Name: name, Offset: binary.LittleEndian.Uint16(rest[:2])}, nil

	case KindExternDef:
		name, rest, err := readName(blob)
		if err != nil {
			return nil, err
		}
		if len(rest) < 2 {
			return nil, fmt.Errorf("%s: truncated sym id", kind)
		}
		return ExternDefPayload{Name: name, SymID: binary.LittleEndian.Uint16(rest[:2])}, nil

	default:
		return nil, fmt.Errorf("%s: no data decoder registered", kind)
	}
}

// Len returns the number of records parsed.
func (r *Reader) Len() int { return len(r.records) }

// At returns the record at index i.
func (r *Reader) At(i int) Record { return r.records[i] }

// All returns all parsed records in file order.
func (r *Reader) All() []Record { return r.records }
