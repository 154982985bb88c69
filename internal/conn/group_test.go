// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAddRemove(t *testing.T) {
	g := NewGroup()
	a := mkConn(t, "10.0.0.1:1000", "151.101.1.140:443")
	b := mkConn(t, "10.0.0.1:1001", "151.101.1.140:443")

	g.Add(a)
	g.Add(b)
	assert.Equal(t, 2, g.Size())
	assert.Same(t, g, a.Group())
	assert.Same(t, g, b.Group())

	require.NoError(t, g.Remove(a))
	assert.Equal(t, 1, g.Size())
	assert.Nil(t, a.Group())
}

func TestGroupMembershipExclusive(t *testing.T) {
	g1 := NewGroup()
	g2 := NewGroup()
	c := mkConn(t, "10.0.0.1:1000", "151.101.1.140:443")

	g1.Add(c)
	g2.Add(c)
	assert.Equal(t, 0, g1.Size(), "a connection lives on one group at a time")
	assert.Equal(t, 1, g2.Size())
	assert.Same(t, g2, c.Group())
}

func TestGroupMatchAndAdd(t *testing.T) {
	seed := mkConn(t, "10.0.0.1:1000", "151.101.1.140:443")
	g := NewGroup()
	g.SetFilter(FromConn(seed, GroupByAddr, ActionGroup))
	g.Add(seed)

	same := mkConn(t, "10.0.0.1:1001", "151.101.1.140:80")
	other := mkConn(t, "10.0.0.1:1002", "8.8.8.8:53")

	assert.True(t, g.MatchAndAdd(same))
	assert.False(t, g.MatchAndAdd(other))
	assert.Equal(t, 2, g.Size())
	assert.Nil(t, other.Group())
}

func TestGroupNilFilterMatchesAll(t *testing.T) {
	g := NewGroup()
	assert.True(t, g.Match(mkConn(t, "10.0.0.1:1000", "151.101.1.140:443")))
}

func TestGroupParent(t *testing.T) {
	g := NewGroup()
	listener := mkConn(t, "0.0.0.0:22", "0.0.0.0:0")
	listener.State = Listen

	g.SetParent(listener)
	assert.Same(t, listener, g.Parent())
	assert.Same(t, g, listener.Group())
	assert.Equal(t, 0, g.Size(), "the parent is not a member")

	g.SetParent(nil)
	assert.Nil(t, g.Parent())
	assert.Nil(t, listener.Group())
}

func TestGroupNewCount(t *testing.T) {
	g := NewGroup()
	a := mkConn(t, "10.0.0.1:1000", "151.101.1.140:443")
	b := mkConn(t, "10.0.0.1:1001", "151.101.1.140:443")
	a.Meta.SetFlag(FlagNew)
	g.Add(a)
	g.Add(b)

	assert.Equal(t, 1, g.NewCount())

	g.ClearRoundFlags()
	assert.Equal(t, 0, g.NewCount())
}

func TestGroupListAddRemove(t *testing.T) {
	l := NewGroupList()
	g1 := NewGroup()
	g2 := NewGroup()
	l.Add(g1)
	l.Add(g2)
	assert.Equal(t, 2, l.Size())

	assert.Same(t, g1, l.Remove(g1))
	assert.Equal(t, 1, l.Size())
	assert.Nil(t, l.Remove(g1), "double remove")
}

func TestGroupListDeleteIfEmpty(t *testing.T) {
	l := NewGroupList()
	g := NewGroup()
	l.Add(g)

	c := mkConn(t, "10.0.0.1:1000", "151.101.1.140:443")
	g.Add(c)
	assert.False(t, l.DeleteIfEmpty(g), "members keep the group alive")

	require.NoError(t, g.Remove(c))
	listener := mkConn(t, "0.0.0.0:22", "0.0.0.0:0")
	g.SetParent(listener)
	assert.False(t, l.DeleteIfEmpty(g), "a parent keeps the group alive")

	g.SetParent(nil)
	assert.True(t, l.DeleteIfEmpty(g))
	assert.Equal(t, 0, l.Size())
}

func TestGroupListCounts(t *testing.T) {
	l := NewGroupList()

	g1 := NewGroup()
	g1.Add(mkConn(t, "10.0.0.1:1000", "151.101.1.140:443"))
	g1.Add(mkConn(t, "10.0.0.1:1001", "151.101.1.140:443"))
	g1.SetParent(mkConn(t, "0.0.0.0:22", "0.0.0.0:0"))

	g2 := NewGroup()
	empty := NewGroup()
	g2.Add(mkConn(t, "10.0.0.1:1002", "8.8.8.8:53"))

	l.Add(g1)
	l.Add(g2)
	l.Add(empty)

	assert.Equal(t, 3, l.Size())
	assert.Equal(t, 2, l.NonEmptySize())
	assert.Equal(t, 3, l.ConnCount())
	assert.Equal(t, 1, l.ParentCount())
}
