// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tracker

import "grimm.is/sockwatch/internal/conn"

// Stats is a point-in-time snapshot of the tracker's counters, taken
// between rounds for the renderer and the metrics exporter.
type Stats struct {
	Tracked      int
	New          int
	Total        int
	Ignored      int
	ListenGroups int
	OutGroups    int
	Inbound      int
	Listeners    int
	ByState      map[conn.State]int
}

// Stats builds a snapshot. Call only between rounds; it walks the table.
func (t *Tracker) Stats() Stats {
	s := Stats{
		Tracked:      t.table.Size(),
		New:          t.newCount,
		Total:        t.totalCount,
		Ignored:      t.IgnoredCount(),
		ListenGroups: t.listenGroups.Size(),
		OutGroups:    t.outGroups.Size(),
		Inbound:      t.listenGroups.ConnCount(),
		Listeners:    t.listenGroups.ParentCount(),
		ByState:      make(map[conn.State]int),
	}
	t.table.Walk(func(c *conn.Conn) {
		s.ByState[c.State]++
	})
	return s
}
