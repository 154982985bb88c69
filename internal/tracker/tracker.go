// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tracker orchestrates one polling round over the connection
// structures: ingest observations, classify pending connections into
// groups, purge what was not re-observed, and support runtime
// re-grouping. All methods must be called from a single goroutine; the
// group graph is transiently inconsistent mid-round.
package tracker

import (
	"context"
	"net/netip"
	"time"

	"grimm.is/sockwatch/internal/clock"
	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
	"grimm.is/sockwatch/internal/logging"
	"grimm.is/sockwatch/internal/scout"
)

// listenPolicy is the auto-filter synthesized for every new listening
// socket: inbound connections match on the listener's local endpoint
// within its address family. Listeners bound to the unspecified address
// match any local address; see matchAddr.
const listenPolicy = conn.PolicyLocal | conn.PolicyAddr | conn.PolicyPort | conn.PolicyAF

// IfaceLookup resolves the interface owning a local address.
type IfaceLookup interface {
	NameForLocal(netip.Addr) string
}

// RouteLookup resolves display-only routing info for a connection.
type RouteLookup interface {
	FindRoute(ifname string, c *conn.Conn) *conn.Route
}

// InodeGroups maps socket inodes to per-process groups in follow mode.
type InodeGroups interface {
	GroupForInode(inode uint64) *conn.Group
	Groups() []*conn.Group
}

// Options configures a Tracker.
type Options struct {
	// Grouping is the policy outbound groups are keyed by.
	Grouping conn.Policy
	// Linger keeps unobserved connections visible in a DEAD
	// pseudo-state for LingerGrace before dropping them.
	Linger      bool
	LingerGrace time.Duration
	// StrictIface makes interface filters treat an unset name as a
	// non-match instead of the historical always-match.
	StrictIface bool
	// TableBuckets overrides the hash table size (power of two).
	TableBuckets int
}

// DefaultOptions groups outbound connections by remote address with a 5
// second linger grace.
func DefaultOptions() Options {
	return Options{
		Grouping:     conn.GroupByAddr,
		LingerGrace:  5 * time.Second,
		TableBuckets: conn.DefaultTableBuckets,
	}
}

// Tracker owns the connection table, the pending queue, the listening
// and outbound group lists, and the user's ignore/warn filter chain.
type Tracker struct {
	log  *logging.Logger
	opts Options

	table   *conn.Table
	pending conn.Queue

	listenGroups *conn.GroupList
	outGroups    *conn.GroupList

	filters *conn.Chain

	ifaces IfaceLookup
	routes RouteLookup
	procs  InodeGroups

	epoch      uint64
	newCount   int
	totalCount int
}

// New creates a tracker. The filter chain evaluates user rules first
// match wins; nil lookups disable the corresponding metadata.
func New(opts Options, log *logging.Logger) (*Tracker, error) {
	if opts.TableBuckets == 0 {
		opts.TableBuckets = conn.DefaultTableBuckets
	}
	if opts.LingerGrace <= 0 {
		opts.LingerGrace = 5 * time.Second
	}
	table, err := conn.NewTable(opts.TableBuckets)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		log:          log.WithComponent("tracker"),
		opts:         opts,
		table:        table,
		listenGroups: conn.NewGroupList(),
		outGroups:    conn.NewGroupList(),
		filters:      conn.NewChain(conn.FirstMatch),
	}, nil
}

// SetIfaceLookup wires the interface table in.
func (t *Tracker) SetIfaceLookup(l IfaceLookup) { t.ifaces = l }

// SetRouteLookup wires the route table in.
func (t *Tracker) SetRouteLookup(l RouteLookup) { t.routes = l }

// SetInodeGroups enables follow mode: classification bypasses the
// listen/outbound logic and files records into per-process groups.
func (t *Tracker) SetInodeGroups(g InodeGroups) { t.procs = g }

// FollowMode reports whether per-process classification is active.
func (t *Tracker) FollowMode() bool { return t.procs != nil }

// Filters returns the ignore/warn filter chain.
func (t *Tracker) Filters() *conn.Chain { return t.filters }

// AddFilter appends a user rule to the chain. Ignore rules get a
// holding group so their catches stay countable.
func (t *Tracker) AddFilter(f *conn.Filter, pos conn.AddPos) {
	if f.Action() == conn.ActionIgnore && f.Group() == nil {
		f.SetGroup(conn.NewGroup())
	}
	f.SetStrictIface(t.opts.StrictIface)
	t.filters.Add(f, pos)
}

// ListenGroups returns the listening group list. Render-only.
func (t *Tracker) ListenGroups() *conn.GroupList { return t.listenGroups }

// OutGroups returns the outbound group list. Render-only.
func (t *Tracker) OutGroups() *conn.GroupList { return t.outGroups }

// Grouping returns the active grouping policy.
func (t *Tracker) Grouping() conn.Policy { return t.opts.Grouping }

// Linger reports whether lingering is enabled.
func (t *Tracker) Linger() bool { return t.opts.Linger }

// SetLinger toggles lingering for subsequent rounds.
func (t *Tracker) SetLinger(on bool) { t.opts.Linger = on }

// NewCount returns the number of connections first seen this round.
func (t *Tracker) NewCount() int { return t.newCount }

// TotalCount returns the number of observations ingested this round.
func (t *Tracker) TotalCount() int { return t.totalCount }

// TrackedCount returns the number of records in the table.
func (t *Tracker) TrackedCount() int { return t.table.Size() }

// IgnoredCount returns the number of connections parked on ignore
// filters.
func (t *Tracker) IgnoredCount() int {
	n := 0
	for _, f := range t.filters.Filters() {
		if f.Action() == conn.ActionIgnore {
			n += f.ConnCount()
		}
	}
	return n
}

// Table exposes the connection table for tests and views.
func (t *Tracker) Table() *conn.Table { return t.table }

// BeginRound opens a new polling round: the epoch advances and the
// round counters reset.
func (t *Tracker) BeginRound() {
	t.epoch++
	t.newCount = 0
	t.totalCount = 0
}

// Insert ingests one observation. Known tuples are marked touched and
// re-keyed when their state changed under a state-keyed group; unknown
// tuples become new records, evaluated against the user filter chain and
// either spawned into a listening group, filed per-process in follow
// mode, or staged for rotation.
func (t *Tracker) Insert(o scout.Observation) {
	c := t.table.Get(o.Local, o.Remote)
	if c == nil {
		t.insertNew(o)
		return
	}

	if c.Meta.Touched() {
		// Two sightings of one tuple in a round means the data
		// source handed us a duplicate.
		t.log.Warn("duplicate observation", "local", c.Meta.LocalStr, "remote", c.Meta.RemoteStr)
		t.totalCount--
	}
	if c.State != o.State {
		t.log.Debug("state changed", "conn", c.Meta.RemoteStr, "from", c.State, "to", o.State)
		grp := c.Group()
		c.State = o.State
		c.Meta.SetFlag(conn.FlagStateChanged)
		c.Meta.LingerUntil = time.Time{}
		if grp != nil && grp.Policy().Has(conn.PolicyState) {
			// The owning group is keyed by state; pull the record
			// out and let rotation find its new home.
			if err := grp.Remove(c); err != nil {
				t.log.Error("removing re-keyed connection", "err", err)
			}
			t.pending.Push(c)
		}
	}
	t.totalCount++
	c.Meta.SetFlag(conn.FlagUpdated)
	c.Meta.Epoch = t.epoch
}

func (t *Tracker) insertNew(o scout.Observation) {
	var procGroup *conn.Group
	if t.procs != nil {
		procGroup = t.procs.GroupForInode(o.Inode)
		if procGroup == nil {
			// Not one of the followed processes.
			return
		}
	}

	t.newCount++
	c := conn.New(o.Local, o.Remote, o.State)
	c.Meta.SetFlag(conn.FlagNew)
	c.Meta.Inode = o.Inode
	c.Meta.Epoch = t.epoch
	if t.ifaces != nil {
		c.Meta.Ifname = t.ifaces.NameForLocal(o.Local.Addr())
	}
	if t.routes != nil {
		c.Meta.Route = t.routes.FindRoute(c.Meta.Ifname, c)
	}

	var matched *conn.Filter
	if t.filters.Len() > 0 {
		matched = t.filters.Match(c)
	}
	if matched != nil {
		switch matched.Action() {
		case conn.ActionIgnore:
			c.Meta.SetFlag(conn.FlagIgnored)
		case conn.ActionWarn:
			c.Meta.SetFlag(conn.FlagWarn)
			t.log.Warn("flagged connection", "local", c.Meta.LocalStr, "remote", c.Meta.RemoteStr, "state", c.State)
		case conn.ActionLog:
			t.log.Info("connection opened", "local", c.Meta.LocalStr, "remote", c.Meta.RemoteStr, "state", c.State)
		}
	}

	t.table.Put(c)
	t.totalCount++
	c.Meta.SetFlag(conn.FlagUpdated)

	if c.Meta.Has(conn.FlagIgnored) {
		matched.Group().Add(c)
		return
	}

	if procGroup != nil {
		// Follow mode files everything, LISTEN included, straight
		// into the process group.
		procGroup.Add(c)
		return
	}

	if c.State == conn.Listen {
		g := conn.NewGroup()
		g.SetParent(c)
		f := conn.FromConn(c, listenPolicy, conn.ActionGroup)
		f.SetStrictIface(t.opts.StrictIface)
		g.SetFilter(f)
		t.listenGroups.Add(g)
		return
	}

	t.pending.Push(c)
}

// Rotate classifies every pending connection: listening groups first
// (inbound), then outbound groups, else a brand-new outbound group is
// synthesized from the record under the active grouping policy.
func (t *Tracker) Rotate() {
	for c := t.pending.Pop(); c != nil; c = t.pending.Pop() {
		if matchInto(t.listenGroups, c) {
			c.Meta.Dir = conn.DirInbound
			continue
		}
		c.Meta.Dir = conn.DirOutbound
		if matchInto(t.outGroups, c) {
			continue
		}
		g := conn.NewGroup()
		f := conn.FromConn(c, t.opts.Grouping, conn.ActionGroup)
		f.SetStrictIface(t.opts.StrictIface)
		g.SetFilter(f)
		g.Add(c)
		t.outGroups.Add(g)
	}
}

func matchInto(list *conn.GroupList, c *conn.Conn) bool {
	for _, g := range list.Groups() {
		if g.MatchAndAdd(c) {
			return true
		}
	}
	return false
}

// Purge sweeps every collection for records whose epoch predates the
// current round. With lingering enabled a stale record first transitions
// to DEAD with a deadline and is only dropped once the deadline passes;
// otherwise it is unlinked from its group and the table immediately.
// Outbound groups left empty are deleted.
func (t *Tracker) Purge() {
	for _, f := range t.filters.Filters() {
		if g := f.Group(); g != nil {
			t.purgeGroup(g)
		}
	}

	if t.procs != nil {
		for _, g := range t.procs.Groups() {
			t.purgeGroup(g)
		}
		return
	}

	for _, g := range append([]*conn.Group(nil), t.outGroups.Groups()...) {
		t.purgeGroup(g)
		t.outGroups.DeleteIfEmpty(g)
	}

	for _, g := range append([]*conn.Group(nil), t.listenGroups.Groups()...) {
		if p := g.Parent(); p != nil && p.Meta.Epoch < t.epoch {
			t.log.Debug("listener gone", "local", p.Meta.LocalStr)
			g.SetParent(nil)
			if _, err := t.table.RemoveConn(p); err != nil {
				t.log.Error("removing stale listener", "err", err)
			}
		}
		t.purgeGroup(g)
		t.listenGroups.DeleteIfEmpty(g)
	}
}

func (t *Tracker) purgeGroup(g *conn.Group) {
	c := g.First()
	for c != nil {
		next := c.Next()
		if c.Meta.Epoch < t.epoch && !t.keepLingering(c) {
			t.log.Debug("purging closed connection", "remote", c.Meta.RemoteStr, "state", c.State)
			if err := g.Remove(c); err != nil {
				t.log.Error("removing closed connection from group", "err", err)
			}
			if _, err := t.table.RemoveConn(c); err != nil {
				t.log.Error("removing closed connection from table", "err", err)
			}
		}
		c = next
	}
}

// keepLingering reports whether a stale record should stay visible.
// First miss moves it to DEAD and stamps the deadline; later sweeps keep
// it until the deadline passes.
func (t *Tracker) keepLingering(c *conn.Conn) bool {
	if !t.opts.Linger {
		return false
	}
	now := clock.Now()
	if c.State != conn.Dead {
		c.State = conn.Dead
		c.Meta.LingerUntil = now.Add(t.opts.LingerGrace)
		return true
	}
	return c.Meta.LingerUntil.After(now)
}

// ClearRoundFlags clears the per-round metadata flags on every tracked
// record so the next round can again tell what was (not) re-observed.
// Idempotent.
func (t *Tracker) ClearRoundFlags() {
	t.listenGroups.ClearRoundFlags()
	t.outGroups.ClearRoundFlags()
	for _, f := range t.filters.Filters() {
		if g := f.Group(); g != nil {
			g.ClearRoundFlags()
		}
	}
	if t.procs != nil {
		for _, g := range t.procs.Groups() {
			g.ClearRoundFlags()
		}
	}
}

// SwitchGrouping re-keys every outbound connection under the new policy:
// all outbound groups are drained into the pending queue, the emptied
// groups are discarded, and rotation rebuilds the outbound list. Groups
// stay homogeneous under the active policy throughout.
func (t *Tracker) SwitchGrouping(p conn.Policy) {
	if t.opts.Grouping == p {
		return
	}
	for _, g := range t.outGroups.Groups() {
		for c := g.First(); c != nil; c = g.First() {
			if err := g.Remove(c); err != nil {
				t.log.Error("draining outbound group", "err", err)
				break
			}
			t.pending.Push(c)
		}
	}
	if t.outGroups.NonEmptySize() != 0 {
		t.log.Error("connections left behind while regrouping")
	}
	t.outGroups = conn.NewGroupList()
	t.opts.Grouping = p
	t.log.Debug("grouping switched", "policy", p)
	t.Rotate()
}

// Poll runs one full round against the source: begin, ingest, rotate,
// purge. The caller renders afterwards and then calls ClearRoundFlags.
func (t *Tracker) Poll(ctx context.Context, src scout.Source) error {
	t.BeginRound()
	obs, err := src.Connections(ctx)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "gathering connections")
	}
	for _, o := range obs {
		t.Insert(o)
	}
	if t.procs == nil {
		t.Rotate()
	}
	t.Purge()
	return nil
}
