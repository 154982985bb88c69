// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/sockwatch/internal/errors"
)

func mkConn(t *testing.T, local, remote string) *Conn {
	t.Helper()
	return New(netip.MustParseAddrPort(local), netip.MustParseAddrPort(remote), Established)
}

func TestQueuePushPop(t *testing.T) {
	var q Queue
	a := mkConn(t, "10.0.0.1:1000", "10.0.0.2:80")
	b := mkConn(t, "10.0.0.1:1001", "10.0.0.2:80")
	c := mkConn(t, "10.0.0.1:1002", "10.0.0.2:80")

	q.Push(a)
	q.Push(b)
	q.Push(c)
	assert.Equal(t, 3, q.Size())
	assert.Same(t, c, q.Head(), "push prepends")

	assert.Same(t, c, q.Pop())
	assert.Same(t, b, q.Pop())
	assert.Same(t, a, q.Pop())
	assert.Nil(t, q.Pop())
	assert.Equal(t, 0, q.Size())
}

func TestQueueRemoveMiddle(t *testing.T) {
	var q Queue
	a := mkConn(t, "10.0.0.1:1000", "10.0.0.2:80")
	b := mkConn(t, "10.0.0.1:1001", "10.0.0.2:80")
	c := mkConn(t, "10.0.0.1:1002", "10.0.0.2:80")
	q.Push(a)
	q.Push(b)
	q.Push(c)

	require.NoError(t, q.Remove(b))
	assert.Equal(t, 2, q.Size())
	assert.Same(t, c, q.Head())
	assert.Same(t, a, c.Next())
	assert.Nil(t, b.Next())
}

func TestQueueRemoveForeign(t *testing.T) {
	var q, other Queue
	a := mkConn(t, "10.0.0.1:1000", "10.0.0.2:80")
	other.Push(a)

	err := q.Remove(a)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.Equal(t, 1, other.Size(), "foreign remove must not corrupt the owner")
}

func TestQueueMembershipExclusive(t *testing.T) {
	var q1, q2 Queue
	a := mkConn(t, "10.0.0.1:1000", "10.0.0.2:80")

	q1.Push(a)
	q2.Push(a)
	assert.Equal(t, 0, q1.Size(), "push re-homes the connection")
	assert.Equal(t, 1, q2.Size())
	assert.Nil(t, q1.Head())
	assert.Same(t, a, q2.Head())
}

func TestQueuePushSameQueueTwice(t *testing.T) {
	var q Queue
	a := mkConn(t, "10.0.0.1:1000", "10.0.0.2:80")
	b := mkConn(t, "10.0.0.1:1001", "10.0.0.2:80")

	q.Push(a)
	q.Push(b)
	q.Push(a) // moves a back to the head
	assert.Equal(t, 2, q.Size())
	assert.Same(t, a, q.Head())
	assert.Same(t, b, a.Next())
}
