// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tui renders the live connection dashboard.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/logging"
	"grimm.is/sockwatch/internal/metrics"
	"grimm.is/sockwatch/internal/pidinfo"
	"grimm.is/sockwatch/internal/resolve"
	"grimm.is/sockwatch/internal/scout"
	"grimm.is/sockwatch/internal/tracker"
)

// ProcView exposes the followed processes so follow mode can render per
// process groups and notice when everything it watches has exited.
type ProcView interface {
	Procs() []*pidinfo.Proc
	Reap() int
}

// App owns the tracking engine on behalf of the dashboard. The bubbletea
// runtime executes commands on their own goroutines, so every method that
// touches the tracker takes the app mutex; the tracker itself is not safe
// for concurrent use.
type App struct {
	mu       sync.Mutex
	log      *logging.Logger
	tracker  *tracker.Tracker
	source   scout.Source
	resolver *resolve.Resolver
	metrics  *metrics.Collector
	procs    ProcView
	interval time.Duration
}

// NewApp wires the engine pieces together. resolver and collector may be
// nil.
func NewApp(t *tracker.Tracker, src scout.Source, r *resolve.Resolver, c *metrics.Collector, interval time.Duration, log *logging.Logger) *App {
	return &App{
		log:      log.WithComponent("tui"),
		tracker:  t,
		source:   src,
		resolver: r,
		metrics:  c,
		interval: interval,
	}
}

// Interval returns the poll interval.
func (a *App) Interval() time.Duration { return a.interval }

// SetProcs wires the followed-process set in for follow mode.
func (a *App) SetProcs(p ProcView) { a.procs = p }

// Poll runs one tracking round and returns a render snapshot. Round flags
// are cleared after the snapshot is built, so NEW and state-change
// markers survive exactly one frame.
func (a *App) Poll(ctx context.Context) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.tracker.Poll(ctx, a.source); err != nil {
		return nil, err
	}
	followEnded := false
	if a.procs != nil && a.tracker.FollowMode() {
		followEnded = a.procs.Reap() == 0
	}
	snap := a.snapshot()
	snap.FollowEnded = followEnded
	a.tracker.ClearRoundFlags()
	if a.metrics != nil {
		a.metrics.Publish(snap.Stats)
	}
	return snap, nil
}

// CycleGrouping advances the outbound grouping policy to the next one in
// the cycle and regroups, returning the new policy's name.
func (a *App) CycleGrouping() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := conn.NextGrouping(a.tracker.Grouping())
	a.tracker.SwitchGrouping(next)
	a.log.Debug("switched grouping", "policy", conn.GroupingName(next))
	return conn.GroupingName(a.tracker.Grouping())
}

// ToggleLinger flips the keep-dead-connections-visible setting.
func (a *App) ToggleLinger() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tracker.SetLinger(!a.tracker.Linger())
	return a.tracker.Linger()
}

// ToggleResolve flips reverse name resolution, if a resolver is wired.
func (a *App) ToggleResolve() bool {
	if a.resolver == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resolver.SetEnabled(!a.resolver.Enabled())
	return a.resolver.Enabled()
}

// SetAFMode restricts the source to one address family, when the source
// supports it.
func (a *App) SetAFMode(mode scout.AFMode) bool {
	type afSource interface{ SetAFMode(scout.AFMode) }
	s, ok := a.source.(afSource)
	if !ok {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s.SetAFMode(mode)
	return true
}

// snapshot builds the immutable view of the current round. Caller holds
// the mutex.
func (a *App) snapshot() *Snapshot {
	snap := &Snapshot{
		When:     time.Now(),
		Stats:    a.tracker.Stats(),
		Grouping: conn.GroupingName(a.tracker.Grouping()),
		Linger:   a.tracker.Linger(),
		Follow:   a.tracker.FollowMode(),
	}
	if a.resolver != nil {
		snap.Resolve = a.resolver.Enabled()
	}

	if a.procs != nil && snap.Follow {
		// Follow mode keeps every connection on the per-process groups;
		// the listen and outbound lists stay empty.
		for _, p := range a.procs.Procs() {
			title := fmt.Sprintf("%s [%d]", p.Name, p.PID)
			if p.Dead() {
				title += " (gone)"
			}
			snap.Procs = append(snap.Procs, a.groupRow(p.Group, title))
		}
		return snap
	}

	for _, g := range a.tracker.ListenGroups().Groups() {
		snap.Listen = append(snap.Listen, a.groupRow(g, describeGroup(g, true)))
	}
	for _, g := range a.tracker.OutGroups().Groups() {
		snap.Out = append(snap.Out, a.groupRow(g, describeGroup(g, false)))
	}
	return snap
}

func (a *App) groupRow(g *conn.Group, title string) GroupRow {
	row := GroupRow{
		Title:    title,
		NewCount: g.NewCount(),
	}
	if p := g.Parent(); p != nil {
		a.annotate(p)
		row.Parent = connRow(p)
		row.HasParent = true
	}
	for c := g.First(); c != nil; c = c.Next() {
		a.annotate(c)
		row.Conns = append(row.Conns, connRow(c))
	}
	return row
}

func (a *App) annotate(c *conn.Conn) {
	if a.resolver != nil {
		a.resolver.Annotate(c)
	}
}

// describeGroup names a group for its banner line. Listen groups are
// named after the listening socket; outbound groups after whatever their
// filter selects on.
func describeGroup(g *conn.Group, listen bool) string {
	if listen {
		if p := g.Parent(); p != nil {
			name := resolve.ServiceName(p.LocalPort())
			return fmt.Sprintf("%s (%s)", p.Meta.LocalStr, name)
		}
		return "listener (gone)"
	}
	f := g.Filter()
	if f == nil {
		return "ungrouped"
	}
	pol := f.Policy()
	switch {
	case pol.Has(conn.PolicyCloud):
		if pol.Has(conn.PolicyPort) {
			return fmt.Sprintf("burst to port %d (%s)", f.Remote().Port(), resolve.ServiceName(f.Remote().Port()))
		}
		return "connection burst"
	case pol.Has(conn.PolicyRemote | conn.PolicyAddr):
		return fmt.Sprintf("to %s", f.Remote().Addr())
	case pol.Has(conn.PolicyRemote | conn.PolicyPort):
		return fmt.Sprintf("port %d (%s)", f.Remote().Port(), resolve.ServiceName(f.Remote().Port()))
	case pol.Has(conn.PolicyState):
		return f.State().String()
	case pol.Has(conn.PolicyIface):
		if f.Ifname() == "" {
			return "no interface"
		}
		return f.Ifname()
	default:
		return "other"
	}
}

func connRow(c *conn.Conn) ConnRow {
	row := ConnRow{
		Local:      c.Meta.LocalStr,
		Remote:     c.Meta.RemoteStr,
		RemoteName: c.Meta.RemoteName,
		Service:    c.Meta.ServName,
		State:      c.State.String(),
		Dir:        c.Meta.Dir.String(),
		Ifname:     c.Meta.Ifname,
		Age:        time.Since(c.Meta.Added),
		New:        c.Meta.Has(conn.FlagNew),
		Warn:       c.Meta.Has(conn.FlagWarn),
		Changed:    c.Meta.Has(conn.FlagStateChanged),
		Dead:       c.State == conn.Dead,
	}
	if r := c.Meta.Route; r != nil && r.Gateway.IsValid() {
		row.Gateway = r.Gateway.String()
	}
	return row
}
