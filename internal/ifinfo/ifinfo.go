// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ifinfo keeps the interface and route tables the tracker and
// renderer consult. Records carry interface names as lookup keys; every
// lookup goes through the table of the moment, so a refresh mid-session
// never leaves stale references behind.
package ifinfo

import (
	"net/netip"
	"sync"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/logging"
)

// Iface describes one network interface.
type Iface struct {
	Name  string
	Index int
	Up    bool
	Addrs []netip.Prefix
}

// Table holds the scanned interfaces and their routes.
type Table struct {
	mu     sync.RWMutex
	ifaces []Iface
	routes map[string][]conn.Route
	log    *logging.Logger
}

// New returns an empty table; Refresh fills it.
func New(log *logging.Logger) *Table {
	return &Table{
		routes: make(map[string][]conn.Route),
		log:    log.WithComponent("ifinfo"),
	}
}

// Ifaces returns a snapshot of the scanned interfaces.
func (t *Table) Ifaces() []Iface {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Iface, len(t.ifaces))
	copy(out, t.ifaces)
	return out
}

// NameForLocal returns the name of the interface owning the given local
// address, or "" when no interface claims it.
func (t *Table) NameForLocal(a netip.Addr) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a = a.Unmap()
	for _, ifc := range t.ifaces {
		for _, p := range ifc.Addrs {
			if p.Addr() == a {
				return ifc.Name
			}
		}
	}
	// Wildcard binds land here; fall back to prefix containment so a
	// LISTEN on 0.0.0.0 still renders without an interface.
	for _, ifc := range t.ifaces {
		for _, p := range ifc.Addrs {
			if p.Contains(a) {
				return ifc.Name
			}
		}
	}
	return ""
}

// FindRoute returns the most specific route on the named interface
// covering the connection's remote address, or nil when the remote is
// on-link or the interface has no routes. Display-only.
func (t *Table) FindRoute(ifname string, c *conn.Conn) *conn.Route {
	if c.State == conn.Listen || ifname == "" {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	remote := c.Remote.Addr().Unmap()
	var best *conn.Route
	for i := range t.routes[ifname] {
		r := &t.routes[ifname][i]
		if !r.Dest.IsValid() || !r.Dest.Contains(remote) {
			continue
		}
		if best == nil || r.Dest.Bits() > best.Dest.Bits() {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	rv := *best
	return &rv
}

// replace swaps in a freshly scanned table.
func (t *Table) replace(ifaces []Iface, routes map[string][]conn.Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ifaces = ifaces
	t.routes = routes
}
