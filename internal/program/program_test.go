package program

import "testing"

func TestSegmentListStableIDsAcrossNull(t *testing.T) {
	l := NewSegmentList()
	a := l.Add(&Segment{Name: "A"})
	b := l.Add(&Segment{Name: "B"})
	c := l.Add(&Segment{Name: "C"})

	l.Null(b)

	if l.Get(a) == nil || l.Get(a).Name != "A" {
		t.Fatalf("segment A should still be reachable at its original id")
	}
	if l.Get(b) != nil {
		t.Fatalf("segment B should be nulled")
	}
	if l.Get(c) == nil || l.Get(c).Name != "C" {
		t.Fatalf("segment C should still be reachable at its original id after a null elsewhere")
	}
	if l.Len() != 3 {
		t.Fatalf("Len should count nulled slots: got %d", l.Len())
	}
}

func TestFirstAndNextProperSegmentSkipNulls(t *testing.T) {
	l := NewSegmentList()
	a := l.Add(&Segment{Name: "A"})
	b := l.Add(&Segment{Name: "B"})
	cID := l.Add(&Segment{Name: "C"})
	l.Null(b)

	id, s := l.FirstProperSegment()
	if id != a || s.Name != "A" {
		t.Fatalf("want first proper segment A, got %v", s)
	}
	id, s = l.NextProperSegment(id)
	if id != cID || s.Name != "C" {
		t.Fatalf("want next proper segment C (skipping nulled B), got %v", s)
	}
	id, s = l.NextProperSegment(id)
	if id != -1 || s != nil {
		t.Fatalf("want no more proper segments, got %v", s)
	}
}

func TestSegmentByNameCaseFold(t *testing.T) {
	l := NewSegmentList()
	l.Add(&Segment{Name: "CODE"})

	if _, s := l.ByName("code", false); s != nil {
		t.Fatalf("case-sensitive lookup should not match differing case")
	}
	if _, s := l.ByName("code", true); s == nil {
		t.Fatalf("case-insensitive lookup should match differing case")
	}
}

func TestGroupByName(t *testing.T) {
	l := NewGroupList()
	want := l.Add(NewGroup("DGROUP"))
	l.Add(NewGroup("CGROUP"))

	id, g := l.ByName("DGROUP")
	if id != want || g.Name != "DGROUP" {
		t.Fatalf("ByName did not find DGROUP")
	}
	if g.MainSegno != -1 {
		t.Fatalf("new group's MainSegno should be unset (-1), got %d", g.MainSegno)
	}
	if _, g := l.ByName("NOSUCH"); g != nil {
		t.Fatalf("expected no match for unknown group name")
	}
}

func TestSymbolTablePromotesExternalToPublic(t *testing.T) {
	st := NewSymbolTable(false)

	ext := st.InsertExternal("FOO", -1)
	if ext.Defined {
		t.Fatalf("freshly inserted external must not be Defined")
	}

	pub, err := st.InsertPublic("FOO", SegmentID(2), 0x10)
	if err != nil {
		t.Fatalf("promoting external to public: %v", err)
	}
	if pub.ID != ext.ID {
		t.Fatalf("promotion must reuse the existing SymbolID, got %d want %d", pub.ID, ext.ID)
	}
	if !pub.Defined || pub.Seg != 2 || pub.Offset != 0x10 {
		t.Fatalf("promoted symbol not updated correctly: %+v", pub)
	}
	if st.Len() != 1 {
		t.Fatalf("promotion must not duplicate the symbol, got Len()=%d", st.Len())
	}
}

func TestSymbolTableDuplicatePublicIsFatal(t *testing.T) {
	st := NewSymbolTable(false)
	if _, err := st.InsertPublic("FOO", 0, 0); err != nil {
		t.Fatalf("first definition should succeed: %v", err)
	}
	if _, err := st.InsertPublic("FOO", 1, 4); err == nil {
		t.Fatalf("redefining a public symbol must be fatal")
	}
}

func TestSymbolTableCaseFold(t *testing.T) {
	st := NewSymbolTable(true)
	if _, err := st.InsertPublic("Foo", 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Lookup("FOO") == nil {
		t.Fatalf("case-insensitive table should find FOO for Foo")
	}
	if _, err := st.InsertPublic("foo", 1, 1); err == nil {
		t.Fatalf("case-insensitive table must treat foo/Foo as the same name")
	}
}

func TestSymbolTableUndefined(t *testing.T) {
	st := NewSymbolTable(false)
	st.InsertExternal("A", -1)
	st.InsertExternal("B", -1)
	if _, err := st.InsertPublic("B", 0, 0); err != nil {
		t.Fatal(err)
	}
	u := st.Undefined()
	if len(u) != 1 || u[0].Name != "A" {
		t.Fatalf("want exactly A undefined, got %v", u)
	}
}

func TestFixupLogInPlaceMutation(t *testing.T) {
	l := NewFixupLog()
	i := l.Add(&Fixup{HoldingSeg: 0, HoldingOffset: 4, Variant: FixupOffset, AddressedSeg: 1})

	f := l.At(i)
	f.AddressedSeg = 2
	f.HoldingOffset += 0x80

	if l.At(i).AddressedSeg != 2 || l.At(i).HoldingOffset != 0x84 {
		t.Fatalf("in-place mutation through At did not stick: %+v", l.At(i))
	}
}
