package program

// Start is the program's single start address (spec §3: "There is exactly
// one start address... unless producing BIN, which forbids it being
// nonzero").
type Start struct {
	Seg    SegmentID
	Offset uint16
	Set    bool
}

// Stack is the program's single stack segment descriptor (spec §3: "A
// program has at most one stack segment").
type Stack struct {
	Seg    SegmentID
	Offset uint16 // offset of the stack within Seg; consolidation rebases it
	Size   uint16
	Set    bool
}

// Program is the growing model every linker pass takes by unique mutable
// reference and returns transformed (spec §5 "Shared resources"): one
// driver owns it end to end, from module incorporation through image
// layout.
type Program struct {
	Segments *SegmentList
	Groups   *GroupList
	Symbols  *SymbolTable
	Fixups   *FixupLog

	Start Start
	Stack Stack
}

// New returns an empty Program. caseFold fixes the symbol table's casing
// mode for the program's lifetime (spec §4.C).
func New(caseFold bool) *Program {
	return &Program{
		Segments: NewSegmentList(),
		Groups:   NewGroupList(),
		Symbols:  NewSymbolTable(caseFold),
		Fixups:   NewFixupLog(),
	}
}
