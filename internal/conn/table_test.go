// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/sockwatch/internal/errors"
)

func TestNewTableValidatesBuckets(t *testing.T) {
	for _, n := range []int{0, -1, 3, 100} {
		_, err := NewTable(n)
		require.Error(t, err, "buckets=%d", n)
		assert.True(t, errors.IsKind(err, errors.KindValidation))
	}
	tbl, err := NewTable(16)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Size())
}

func TestTablePutGet(t *testing.T) {
	tbl, err := NewTable(DefaultTableBuckets)
	require.NoError(t, err)

	c := mkConn(t, "192.168.1.5:41000", "151.101.1.140:443")
	tbl.Put(c)
	assert.Equal(t, 1, tbl.Size())

	got := tbl.Get(c.Local, c.Remote)
	assert.Same(t, c, got)

	assert.Nil(t, tbl.Get(c.Remote, c.Local), "reversed tuple is a different key")
	assert.Nil(t, tbl.Get(netip.MustParseAddrPort("192.168.1.5:41001"), c.Remote))
}

func TestTableMixedFamilies(t *testing.T) {
	tbl, err := NewTable(DefaultTableBuckets)
	require.NoError(t, err)

	v4 := mkConn(t, "192.168.1.5:41000", "151.101.1.140:443")
	v6 := mkConn(t, "[2001:db8::5]:41000", "[2606:4700::1]:443")
	tbl.Put(v4)
	tbl.Put(v6)
	assert.Equal(t, 2, tbl.Size())

	assert.Same(t, v4, tbl.Get(v4.Local, v4.Remote))
	assert.Same(t, v6, tbl.Get(v6.Local, v6.Remote))
}

func TestTableRemove(t *testing.T) {
	tbl, err := NewTable(DefaultTableBuckets)
	require.NoError(t, err)

	c := mkConn(t, "192.168.1.5:41000", "151.101.1.140:443")
	tbl.Put(c)

	got, err := tbl.Remove(c.Local, c.Remote)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Equal(t, 0, tbl.Size())

	_, err = tbl.Remove(c.Local, c.Remote)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestTableCollisions(t *testing.T) {
	// Two buckets force everything to collide.
	tbl, err := NewTable(2)
	require.NoError(t, err)

	var conns []*Conn
	for i := 0; i < 32; i++ {
		c := mkConn(t, fmt.Sprintf("10.0.0.1:%d", 40000+i), "151.101.1.140:443")
		conns = append(conns, c)
		tbl.Put(c)
	}
	assert.Equal(t, 32, tbl.Size())

	for _, c := range conns {
		assert.Same(t, c, tbl.Get(c.Local, c.Remote))
	}
	for _, c := range conns {
		_, err := tbl.Remove(c.Local, c.Remote)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, tbl.Size())
}

func TestTableWalk(t *testing.T) {
	tbl, err := NewTable(DefaultTableBuckets)
	require.NoError(t, err)

	seen := map[*Conn]bool{}
	for i := 0; i < 10; i++ {
		c := mkConn(t, fmt.Sprintf("10.0.0.1:%d", 40000+i), "151.101.1.140:443")
		seen[c] = false
		tbl.Put(c)
	}

	n := 0
	tbl.Walk(func(c *Conn) {
		seen[c] = true
		n++
	})
	assert.Equal(t, 10, n)
	for c, ok := range seen {
		assert.True(t, ok, "missed %s", c.Meta.LocalStr)
	}
}

func TestTableClear(t *testing.T) {
	tbl, err := NewTable(DefaultTableBuckets)
	require.NoError(t, err)

	c := mkConn(t, "192.168.1.5:41000", "151.101.1.140:443")
	tbl.Put(c)
	tbl.Clear()
	assert.Equal(t, 0, tbl.Size())
	assert.Nil(t, tbl.Get(c.Local, c.Remote))
}
