// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

// Group is a named bucket of connections sharing a classification
// filter. A group with no filter matches everything. Listening groups
// are anchored to their LISTEN socket through the parent record, which
// is not a member of the group's own queue.
type Group struct {
	filter  *Filter
	parent  *Conn
	members Queue
}

// NewGroup creates an empty group.
func NewGroup() *Group { return &Group{} }

// Filter returns the group's classification filter, nil for wildcard.
func (g *Group) Filter() *Filter { return g.filter }

// SetFilter sets the group's classification filter.
func (g *Group) SetFilter(f *Filter) { g.filter = f }

// Parent returns the group's parent connection, or nil.
func (g *Group) Parent() *Conn { return g.parent }

// SetParent anchors the group to a parent connection.
func (g *Group) SetParent(c *Conn) {
	g.parent = c
	if c != nil {
		c.group = g
	}
}

// Policy returns the selector policy of the group's filter, or zero for
// a wildcard group.
func (g *Group) Policy() Policy {
	if g.filter == nil {
		return 0
	}
	return g.filter.Policy()
}

// Add puts the connection on the group's membership queue and points its
// back-reference here. Membership is exclusive; adding a record that is
// on another group moves it.
func (g *Group) Add(c *Conn) {
	g.members.Push(c)
	c.group = g
}

// Remove takes the connection off the membership queue and clears its
// back-reference. Removing a non-member is reported as not found.
func (g *Group) Remove(c *Conn) error {
	if err := g.members.Remove(c); err != nil {
		return err
	}
	c.group = nil
	return nil
}

// Match reports whether the connection matches the group's filter. A
// group without a filter matches any connection.
func (g *Group) Match(c *Conn) bool {
	if g.filter == nil {
		return true
	}
	return g.filter.Match(c)
}

// MatchAndAdd adds the connection if it matches, reporting whether it
// was added.
func (g *Group) MatchAndAdd(c *Conn) bool {
	if !g.Match(c) {
		return false
	}
	g.Add(c)
	return true
}

// First returns the first member of the group, or nil.
func (g *Group) First() *Conn { return g.members.Head() }

// Size returns the number of member connections. The parent does not
// count.
func (g *Group) Size() int { return g.members.Size() }

// NewCount returns the number of members flagged as new this round.
func (g *Group) NewCount() int {
	n := 0
	for c := g.members.Head(); c != nil; c = c.Next() {
		if c.Meta.Has(FlagNew) {
			n++
		}
	}
	return n
}

// ClearRoundFlags clears the per-round flags on the parent and every
// member.
func (g *Group) ClearRoundFlags() {
	if g.parent != nil {
		g.parent.Meta.ClearRoundFlags()
	}
	for c := g.members.Head(); c != nil; c = c.Next() {
		c.Meta.ClearRoundFlags()
	}
}
