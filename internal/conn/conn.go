// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"net/netip"
	"time"

	"grimm.is/sockwatch/internal/clock"
)

// Flag is a per-round metadata bit on a tracked connection.
type Flag uint8

const (
	FlagStateChanged Flag = 1 << iota
	FlagNew
	FlagUpdated
	FlagResolved
	FlagIgnored
	FlagWarn
)

// touchedMask covers the flags set when a connection is observed during a
// round. A record without any of these after a sweep was not re-observed.
const touchedMask = FlagStateChanged | FlagNew | FlagUpdated

// roundMask covers the flags cleared between rounds. Resolved, Ignored and
// Warn persist for the lifetime of the record.
const roundMask = touchedMask

// Route is display-only routing information attached to a connection.
type Route struct {
	Dest    netip.Prefix
	Gateway netip.Addr
	Ifname  string
}

// Metadata carries the bookkeeping that rides along with a connection.
type Metadata struct {
	Added time.Time
	Dir   Dir
	flags Flag

	// Ifname is a lookup key into the interface table, resolved at
	// render time. It is not a borrowed reference.
	Ifname string
	Inode  uint64

	// Cached display strings, filled once at insert.
	LocalStr  string
	RemoteStr string

	// RemoteName and ServName are filled by the resolver.
	RemoteName string
	ServName   string

	// LingerUntil is the deadline after which a Dead connection is
	// dropped. Zero when the connection is live.
	LingerUntil time.Time

	Route *Route

	// Epoch is the round this connection was last observed in.
	Epoch uint64
}

// SetFlag sets the given metadata flag bits.
func (m *Metadata) SetFlag(f Flag) { m.flags |= f }

// Has reports whether all given flag bits are set.
func (m *Metadata) Has(f Flag) bool { return m.flags&f == f }

// Touched reports whether the connection was observed this round.
func (m *Metadata) Touched() bool { return m.flags&touchedMask != 0 }

// ClearRoundFlags clears the per-round flags, leaving Resolved, Ignored
// and Warn intact. Calling it on already-cleared metadata is a no-op.
func (m *Metadata) ClearRoundFlags() { m.flags &^= roundMask }

// Conn is a tracked TCP connection, identified by the
// (local endpoint, remote endpoint) tuple within one address family.
//
// The prev/next links belong to the Queue (or Group) currently holding
// the record; a record is on at most one queue at a time. Hash table
// membership uses separate bucket nodes and does not touch these links.
type Conn struct {
	Local  netip.AddrPort
	Remote netip.AddrPort
	State  State

	Meta Metadata

	next, prev *Conn
	queue      *Queue
	group      *Group
}

// New creates a tracked connection for the given tuple. The creation
// timestamp and cached address strings are filled in.
func New(local, remote netip.AddrPort, state State) *Conn {
	c := &Conn{
		Local:  local,
		Remote: remote,
		State:  state,
	}
	c.Meta.Added = clock.Now()
	c.Meta.LocalStr = local.String()
	c.Meta.RemoteStr = remote.String()
	return c
}

// Family returns the address family of the connection, derived from the
// local endpoint. IPv4-mapped IPv6 addresses count as IPv4, matching how
// the kernel reports them in /proc/net/tcp6 lookups.
func (c *Conn) Family() Family {
	a := c.Local.Addr()
	switch {
	case a.Is4() || a.Is4In6():
		return FamilyIPv4
	case a.Is6():
		return FamilyIPv6
	default:
		return FamilyUnknown
	}
}

// Group returns the group currently holding this connection, or nil.
func (c *Conn) Group() *Group { return c.group }

// Next returns the record following this one on its current queue. It is
// valid only while the record stays on that queue; callers removing
// records mid-iteration must save it first.
func (c *Conn) Next() *Conn { return c.next }

// LocalPort returns the local port of the connection.
func (c *Conn) LocalPort() uint16 { return c.Local.Port() }

// RemotePort returns the remote port of the connection.
func (c *Conn) RemotePort() uint16 { return c.Remote.Port() }
