// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scout adapts the OS data sources that enumerate raw TCP
// connections. Each source produces one batch of observations per
// polling round; the tracker ingests them through Tracker.Insert.
package scout

import (
	"context"
	"net/netip"

	"grimm.is/sockwatch/internal/conn"
)

// Observation is one raw connection sighting from a data source.
type Observation struct {
	Local  netip.AddrPort
	Remote netip.AddrPort
	State  conn.State
	Inode  uint64
}

// Source enumerates the current connection table. Connections is called
// once per round.
type Source interface {
	Connections(ctx context.Context) ([]Observation, error)
	Close() error
}

// AFMode restricts which address families a source reports.
type AFMode uint8

const (
	AFAll AFMode = iota
	AFIPv4Only
	AFIPv6Only
)

func (m AFMode) allows(a netip.Addr) bool {
	v4 := a.Is4() || a.Is4In6()
	switch m {
	case AFIPv4Only:
		return v4
	case AFIPv6Only:
		return !v4
	default:
		return true
	}
}
