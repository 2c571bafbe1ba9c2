package objfile

import (
	"bytes"
	"testing"
)

// TestRoundTrip verifies parse(serialize(r)) == r for one of each kind.
func TestRoundTrip(t *testing.T) {
	records := []Record{
		{Kind: KindBeginModule},
		{Kind: KindCased},
		{Kind: KindGroupDecl, Payload: GroupDeclPayload{Name: "DGROUP"}},
		{Kind: KindSegmentOpen, Payload: SegmentOpenPayload{Name: "CODE", Public: true, P2Align: 4, GroupIdx: 0}},
		{Kind: KindDataBytes, Payload: DataBytesPayload{Bytes: []byte{0xB4, 0x09, 0xBA, 0x09, 0x01, 0xCD, 0x21}}},
		{Kind: KindSpace, Payload: SpacePayload{Size: 0x200}},
		{Kind: KindPublic, Payload: PublicPayload{Name: "START", Offset: 0x100}},
		{Kind: KindStartOffset, Payload: StartOffsetPayload{Offset: 0x100}},
		{Kind: KindStackMark},
		{Kind: KindExternDef, Payload: ExternDefPayload{Name: "FOO", SymID: 0}},
		{Kind: KindFixupOffset, Payload: FixupOffsetPayload{HoldingOffset: 4, AddressedSeg: 1}},
		{Kind: KindFixupExtern, Payload: FixupExternPayload{HoldingOffset: 8, SymID: 2, Kind: FixupJump}},
		{Kind: KindFixupGroupAbsJump, Payload: FixupGroupAbsJumpPayload{HoldingOffset: 1, GroupIdx: 0}},
		{Kind: KindFixupSegment, Payload: FixupSegmentPayload{HoldingOffset: 2, AddressedSeg: 1, AddressedBase: 0x10}},
		{Kind: KindFixupGroup, Payload: FixupGroupPayload{HoldingOffset: 2, AddressedGroupIdx: 0}},
		{Kind: KindSegmentClose},
		{Kind: KindEndModule},
	}

	for _, r := range records {
		w := NewWriter()
		if err := w.Emit(r); err != nil {
			t.Fatalf("emit %v: %v", r.Kind, err)
		}
		rd, err := NewReader(w.Bytes())
		if err != nil {
			t.Fatalf("parse %v: %v", r.Kind, err)
		}
		if rd.Len() != 1 {
			t.Fatalf("%v: expected 1 record, got %d", r.Kind, rd.Len())
		}
		got := rd.At(0)
		if got.Kind != r.Kind {
			t.Fatalf("kind mismatch: want %v got %v", r.Kind, got.Kind)
		}
		if !payloadEqual(r.Payload, got.Payload) {
			t.Fatalf("%v: payload mismatch: want %+v got %+v", r.Kind, r.Payload, got.Payload)
		}
	}
}

func payloadEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ap, aok := a.(DataBytesPayload)
	bp, bok := b.(DataBytesPayload)
	if aok && bok {
		return bytes.Equal(ap.Bytes, bp.Bytes)
	}
	return a == b
}

// TestFileRoundTrip verifies serialize(parse(f)) == f for a whole stream.
func TestFileRoundTrip(t *testing.T) {
	w := NewWriter()
	records := []Record{
		{Kind: KindBeginModule},
		{Kind: KindSegmentOpen, Payload: SegmentOpenPayload{Name: "CODE", Public: true, P2Align: 4, GroupIdx: NoGroup}},
		{Kind: KindDataBytes, Payload: DataBytesPayload{Bytes: []byte{0x90, 0xC3, 0x00, 0x01}}},
		{Kind: KindPublic, Payload: PublicPayload{Name: "ENTRY", Offset: 0}},
		{Kind: KindSegmentClose},
		{Kind: KindEndModule},
	}
	for _, r := range records {
		if err := w.Emit(r); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	orig := append([]byte(nil), w.Bytes()...)

	rd, err := NewReader(orig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	w2 := NewWriter()
	for _, r := range rd.All() {
		if err := w2.Emit(r); err != nil {
			t.Fatalf("re-emit: %v", err)
		}
	}
	if !bytes.Equal(orig, w2.Bytes()) {
		t.Fatalf("round trip mismatch:\nwant % x\ngot  % x", orig, w2.Bytes())
	}
}

func TestBadSignature(t *testing.T) {
	if _, err := NewReader([]byte{0, 0, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestDataSpanTooLong(t *testing.T) {
	w := NewWriter()
	err := w.Emit(Record{Kind: KindDataBytes, Payload: DataBytesPayload{Bytes: make([]byte, 256)}})
	if err == nil {
		t.Fatal("expected error for oversize data span")
	}
}

func TestNameTooLong(t *testing.T) {
	w := NewWriter()
	long := make([]byte, MaxNameLen+1)
	for i := range long {
		long[i] = 'A'
	}
	err := w.Emit(Record{Kind: KindPublic, Payload: PublicPayload{Name: string(long), Offset: 0}})
	if err == nil {
		t.Fatal("expected error for oversize name")
	}
}
