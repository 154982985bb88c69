// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"time"

	"grimm.is/sockwatch/internal/tracker"
)

// Snapshot is one round's worth of render state. The model never touches
// the tracker directly; it only sees snapshots.
type Snapshot struct {
	When     time.Time
	Stats    tracker.Stats
	Grouping string
	Linger   bool
	Resolve  bool
	Follow   bool
	Listen   []GroupRow
	Out      []GroupRow

	// Procs replaces Listen and Out in follow mode, one row per
	// followed process. FollowEnded means every followed process has
	// exited and its connections have drained.
	Procs       []GroupRow
	FollowEnded bool
}

// GroupRow is a group banner plus its member connections.
type GroupRow struct {
	Title     string
	NewCount  int
	HasParent bool
	Parent    ConnRow
	Conns     []ConnRow
}

// ConnRow is one rendered connection line.
type ConnRow struct {
	Local      string
	Remote     string
	RemoteName string
	Service    string
	State      string
	Dir        string
	Ifname     string
	Gateway    string
	Age        time.Duration
	New        bool
	Warn       bool
	Changed    bool
	Dead       bool
}

// Lines counts the rows the snapshot renders, for scroll clamping.
func (s *Snapshot) Lines() int {
	n := 0
	for _, g := range s.Listen {
		n += 1 + len(g.Conns)
	}
	for _, g := range s.Out {
		n += 1 + len(g.Conns)
	}
	for _, g := range s.Procs {
		n += 1 + len(g.Conns)
	}
	return n
}
