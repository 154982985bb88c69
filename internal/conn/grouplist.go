// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

// GroupList is an unordered collection of groups. The tracker keeps one
// for listening groups and one for outbound groups.
type GroupList struct {
	groups []*Group
}

// NewGroupList creates an empty group list.
func NewGroupList() *GroupList { return &GroupList{} }

// Add appends the group to the list.
func (l *GroupList) Add(g *Group) {
	l.groups = append(l.groups, g)
}

// Remove takes the group off the list, returning it, or nil when the
// group is not on the list.
func (l *GroupList) Remove(g *Group) *Group {
	for i, cand := range l.groups {
		if cand == g {
			last := len(l.groups) - 1
			l.groups[i] = l.groups[last]
			l.groups[last] = nil
			l.groups = l.groups[:last]
			return g
		}
	}
	return nil
}

// DeleteIfEmpty drops the group from the list when it has no members and
// no parent, reporting whether it was dropped.
func (l *GroupList) DeleteIfEmpty(g *Group) bool {
	if g.Size() != 0 || g.Parent() != nil {
		return false
	}
	return l.Remove(g) != nil
}

// Groups returns the groups on the list. Callers mutating the list while
// iterating should iterate over a copy.
func (l *GroupList) Groups() []*Group { return l.groups }

// Size returns the number of groups on the list.
func (l *GroupList) Size() int { return len(l.groups) }

// NonEmptySize returns the number of groups with at least one member.
func (l *GroupList) NonEmptySize() int {
	n := 0
	for _, g := range l.groups {
		if g.Size() > 0 {
			n++
		}
	}
	return n
}

// ConnCount returns the total member count across all groups. Parent
// connections are not counted.
func (l *GroupList) ConnCount() int {
	n := 0
	for _, g := range l.groups {
		n += g.Size()
	}
	return n
}

// ParentCount returns the number of groups that have a parent.
func (l *GroupList) ParentCount() int {
	n := 0
	for _, g := range l.groups {
		if g.Parent() != nil {
			n++
		}
	}
	return n
}

// ClearRoundFlags clears the per-round flags on every group.
func (l *GroupList) ClearRoundFlags() {
	for _, g := range l.groups {
		g.ClearRoundFlags()
	}
}
