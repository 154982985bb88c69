// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"encoding/binary"
	"net/netip"

	"grimm.is/sockwatch/internal/errors"
)

// DefaultTableBuckets is the bucket count used by NewTable callers that
// have no reason to pick another size. Must be a power of two.
const DefaultTableBuckets = 256

// Table is a fixed-size chained hash table keyed by the connection
// 4-tuple. Buckets chain through dedicated nodes, so table membership
// never competes with queue membership for the record's intrusive links.
type Table struct {
	buckets []*tableNode
	size    int
}

type tableNode struct {
	next *tableNode
	conn *Conn
}

// NewTable creates a table with the given bucket count, which must be a
// power of two.
func NewTable(buckets int) (*Table, error) {
	if buckets <= 0 || buckets&(buckets-1) != 0 {
		return nil, errors.Errorf(errors.KindValidation, "bucket count %d is not a power of two", buckets)
	}
	return &Table{buckets: make([]*tableNode, buckets)}, nil
}

// hash folds the remote address with both ports, after the INPCBHASH /
// IN6PCBHASH functions in the BSD in_pcb code. Spreading by the remote
// endpoint keeps buckets cool when many connections share one local
// address.
func (t *Table) hash(local, remote netip.AddrPort) int {
	var h uint32
	ra := remote.Addr()
	if ra.Is4() || ra.Is4In6() {
		b := ra.As4()
		h = binary.BigEndian.Uint32(b[:])
	} else {
		b := ra.As16()
		h = binary.BigEndian.Uint32(b[0:4]) ^ binary.BigEndian.Uint32(b[12:16])
	}
	h += uint32(local.Port()) + uint32(remote.Port())
	return int(h) & (len(t.buckets) - 1)
}

func sameFamily(a, b netip.Addr) bool {
	return (a.Is4() || a.Is4In6()) == (b.Is4() || b.Is4In6())
}

// keyMatch is the exact tuple-and-family comparator used to disambiguate
// bucket collisions.
func keyMatch(c *Conn, local, remote netip.AddrPort) bool {
	if !sameFamily(c.Local.Addr(), local.Addr()) {
		return false
	}
	return c.Local == local && c.Remote == remote
}

// Put inserts the connection at the head of its bucket. No duplicate
// check is made; that is the caller's responsibility.
func (t *Table) Put(c *Conn) {
	i := t.hash(c.Local, c.Remote)
	t.buckets[i] = &tableNode{next: t.buckets[i], conn: c}
	t.size++
}

// Get returns the connection keyed by the given endpoints, or nil.
func (t *Table) Get(local, remote netip.AddrPort) *Conn {
	for n := t.buckets[t.hash(local, remote)]; n != nil; n = n.next {
		if keyMatch(n.conn, local, remote) {
			return n.conn
		}
	}
	return nil
}

// Remove detaches and returns the connection keyed by the given
// endpoints. A missing entry is reported as not found.
func (t *Table) Remove(local, remote netip.AddrPort) (*Conn, error) {
	i := t.hash(local, remote)
	var prev *tableNode
	for n := t.buckets[i]; n != nil; n = n.next {
		if keyMatch(n.conn, local, remote) {
			if prev == nil {
				t.buckets[i] = n.next
			} else {
				prev.next = n.next
			}
			t.size--
			return n.conn, nil
		}
		prev = n
	}
	return nil, errors.New(errors.KindNotFound, "connection not in table")
}

// RemoveConn removes the given connection record from the table.
func (t *Table) RemoveConn(c *Conn) (*Conn, error) {
	return t.Remove(c.Local, c.Remote)
}

// Clear detaches every connection from the table. The records themselves
// are left alone; whoever holds them still owns them.
func (t *Table) Clear() {
	for i := range t.buckets {
		t.buckets[i] = nil
	}
	t.size = 0
}

// Size returns the number of connections in the table.
func (t *Table) Size() int { return t.size }

// Walk calls fn for every connection reachable by bucket traversal.
func (t *Table) Walk(fn func(*Conn)) {
	for _, b := range t.buckets {
		for n := b; n != nil; n = n.next {
			fn(n.conn)
		}
	}
}
