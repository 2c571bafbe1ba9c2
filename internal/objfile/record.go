// Package objfile implements the on-disk object record stream: a tagged
// union of record kinds serialized as a 1-byte type followed by a
// shape-specific payload (signal / word / dword / qword / data), per a
// fixed little-endian layout.
//
// The full object_record_type domain is intentionally larger than what is
// enumerated here (spec allows a non-exhaustive set); this package
// implements the subset of kinds that the module incorporator (§4.D) and
// group consolidator (§4.E) actually consume: module/segment containers,
// public/extern symbol declarations, and the five fixup variants.
package objfile

import "fmt"

// Kind identifies a record's shape and meaning.
type Kind uint8

const (
	KindBeginModule Kind = iota
	KindEndModule
	KindCased
	KindGroupDecl
	KindSegmentOpen
	KindSegmentClose
	KindDataBytes
	KindSpace
	KindPublic
	KindStartOffset
	KindStackMark
	KindExternDef
	KindFixupOffset
	KindFixupExtern
	KindFixupGroupAbsJump
	KindFixupSegment
	KindFixupGroup

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindBeginModule:
		return "BEGIN_MODULE"
	case KindEndModule:
		return "END_MODULE"
	case KindCased:
		return "CASED"
	case KindGroupDecl:
		return "GROUP"
	case KindSegmentOpen:
		return "OPEN_SEGMENT"
	case KindSegmentClose:
		return "CLOSE_SEGMENT"
	case KindDataBytes:
		return "DATA"
	case KindSpace:
		return "SPACE"
	case KindPublic:
		return "PUBLIC"
	case KindStartOffset:
		return "START"
	case KindStackMark:
		return "STACK"
	case KindExternDef:
		return "EXTRN"
	case KindFixupOffset:
		return "FIXUP_OFFSET"
	case KindFixupExtern:
		return "FIXUP_EXTERN"
	case KindFixupGroupAbsJump:
		return "FIXUP_GROUP_ABS_JUMP"
	case KindFixupSegment:
		return "FIXUP_SEGMENT"
	case KindFixupGroup:
		return "FIXUP_GROUP"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Shape classifies a record's payload layout.
type Shape uint8

const (
	ShapeSignal Shape = iota
	ShapeWord
	ShapeDword
	ShapeQword
	ShapeData
)

// shapeOf returns the wire shape for a kind. Unknown kinds panic — the
// table is exhaustive over the const block above.
func shapeOf(k Kind) Shape {
	switch k {
	case KindBeginModule, KindEndModule, KindCased, KindSegmentClose, KindStackMark:
		return ShapeSignal
	case KindSpace, KindStartOffset:
		return ShapeWord
	case KindFixupOffset, KindFixupGroupAbsJump, KindFixupGroup:
		return ShapeDword
	case KindFixupExtern, KindFixupSegment:
		return ShapeQword
	case KindGroupDecl, KindSegmentOpen, KindDataBytes, KindPublic, KindExternDef:
		return ShapeData
	default:
		panic(fmt.Sprintf("objfile: no shape registered for kind %d", uint8(k)))
	}
}

// FixupKind distinguishes the two External fixup flavors (spec §3).
type FixupKind uint8

const (
	FixupData FixupKind = iota
	FixupJump
)

func (k FixupKind) String() string {
	if k == FixupJump {
		return "Jump"
	}
	return "Data"
}

// NoGroup is the sentinel GroupIdx meaning "segment belongs to no group".
const NoGroup uint16 = 0xFFFF

// Payload types, one per ShapeData/ShapeDword/ShapeQword/ShapeWord kind.
// Signal kinds carry a nil Payload.

type GroupDeclPayload struct {
	Name string
}

type SegmentOpenPayload struct {
	Name     string
	Public   bool
	P2Align  uint8
	GroupIdx uint16 // NoGroup if the segment belongs to no group
}

type DataBytesPayload struct {
	Bytes []byte
}

type SpacePayload struct {
	Size uint16
}

type PublicPayload struct {
	Name   string
	Offset uint16
}

type StartOffsetPayload struct {
	Offset uint16
}

type ExternDefPayload struct {
	Name  string
	SymID uint16
}

type FixupOffsetPayload struct {
	HoldingOffset uint16
	AddressedSeg  uint16
}

type FixupExternPayload struct {
	HoldingOffset uint16
	SymID         uint16
	Kind          FixupKind
}

type FixupGroupAbsJumpPayload struct {
	HoldingOffset uint16
	GroupIdx      uint16
}

type FixupSegmentPayload struct {
	HoldingOffset uint16
	AddressedSeg  uint16
	AddressedBase uint16
}

type FixupGroupPayload struct {
	HoldingOffset     uint16
	AddressedGroupIdx uint16
}

// Record is one entry in an object record stream: a discriminated union
// over Kind, with Payload holding the matching Payload* struct above (or
// nil for signal-shaped kinds).
type Record struct {
	Kind    Kind
	Payload any
}

func (r Record) String() string {
	if r.Payload == nil {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s %+v", r.Kind, r.Payload)
}
