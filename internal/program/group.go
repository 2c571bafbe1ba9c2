package program

// Group is spec §3's Group entity: unique by name, with MainSegno set
// during consolidation to the segment all its members fold into.
type Group struct {
	Name      string
	MainSegno SegmentID // -1 until consolidation assigns a main segment
}

// NewGroup returns a Group with MainSegno unset (-1). Zero-value Group
// structs must not be used directly: Go's zero value for SegmentID is 0, a
// valid segment index, not "unset".
func NewGroup(name string) *Group {
	return &Group{Name: name, MainSegno: -1}
}

// GroupList is the append-only, stable-ID store of program groups (spec
// §4.C); unlike segments, groups are never nulled.
type GroupList struct {
	groups []*Group
}

// NewGroupList returns an empty group store.
func NewGroupList() *GroupList {
	return &GroupList{}
}

// Add appends a new group and returns its stable ID.
func (l *GroupList) Add(g *Group) GroupID {
	l.groups = append(l.groups, g)
	return GroupID(len(l.groups) - 1)
}

// Get returns the group at id.
func (l *GroupList) Get(id GroupID) *Group {
	if int(id) < 0 || int(id) >= len(l.groups) {
		return nil
	}
	return l.groups[id]
}

// ByName finds a group by exact name, as required by module incorporation
// (spec §4.D: "not already present by name, add... otherwise reuse").
func (l *GroupList) ByName(name string) (GroupID, *Group) {
	for i, g := range l.groups {
		if g.Name == name {
			return GroupID(i), g
		}
	}
	return -1, nil
}

// Len returns the number of groups.
func (l *GroupList) Len() int { return len(l.groups) }

// All iterates every group in insertion order.
func (l *GroupList) All(fn func(id GroupID, g *Group)) {
	for i, g := range l.groups {
		fn(GroupID(i), g)
	}
}
