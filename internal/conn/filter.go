// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"net/netip"
	"time"

	"grimm.is/sockwatch/internal/clock"
	"grimm.is/sockwatch/internal/errors"
)

// Policy is the selector bitset of a filter. Flags tell which selectors
// are active; categories are ANDed together and an absent category is
// vacuously true.
type Policy uint16

const (
	PolicyLocal Policy = 1 << iota
	PolicyRemote
	PolicyAddr
	PolicyPort
	PolicyState
	PolicyAF
	PolicyCloud
	PolicyIface
)

// Has reports whether all given policy bits are set.
func (p Policy) Has(f Policy) bool { return p&f == f }

// Grouping policies selectable at runtime.
const (
	GroupByAddr      = PolicyRemote | PolicyAddr
	GroupByPort      = PolicyRemote | PolicyPort
	GroupByState     = PolicyState
	GroupByIface     = PolicyIface
	GroupByCloud     = PolicyCloud
	GroupByCloudPort = PolicyCloud | PolicyRemote | PolicyPort
)

// Action tells what should happen to a connection matching a filter.
type Action uint8

const (
	ActionNone Action = iota
	ActionGroup
	ActionWarn
	ActionLog
	ActionIgnore
)

func (a Action) String() string {
	switch a {
	case ActionGroup:
		return "group"
	case ActionWarn:
		return "warn"
	case ActionLog:
		return "log"
	case ActionIgnore:
		return "ignore"
	default:
		return "none"
	}
}

// cloudWindow is the time window for grouping causally related
// connections: a connection belongs to a cloud when it was opened within
// this delta of the cloud's stamp.
const cloudWindow = 2 * time.Second

// Filter selects connections by endpoint, state, address family,
// interface or creation-time proximity. Filters keep running counters of
// evaluations and matches.
type Filter struct {
	action Action
	policy Policy

	family Family
	local  netip.AddrPort
	remote netip.AddrPort
	state  State
	ifname string

	// strictIface makes an unset interface name on either side a
	// non-match. The historical behaviour is to match in that case;
	// see Chain.SetStrictIface.
	strictIface bool

	cloudStamp time.Time

	group *Group

	evals   uint32
	matches uint32
}

// NewFilter creates an empty filter with the given policy and action.
// When withGroup is set, an associated group is created as well; ignore
// filters use it to park the connections they swallow.
func NewFilter(policy Policy, act Action, withGroup bool) *Filter {
	f := &Filter{policy: policy, action: act}
	if withGroup {
		f.group = NewGroup()
	}
	return f
}

// FromConn snapshots the requested fields of a connection into a new ad
// hoc filter, e.g. "anything to this remote addr:port".
func FromConn(c *Conn, policy Policy, act Action) *Filter {
	f := NewFilter(policy, act, false)
	if policy.Has(PolicyLocal) {
		f.local = c.Local
	}
	if policy&(PolicyRemote|PolicyCloud) != 0 {
		f.remote = c.Remote
	}
	if policy.Has(PolicyState) {
		f.state = c.State
	}
	if policy.Has(PolicyAF) {
		f.family = c.Family()
	}
	if policy.Has(PolicyCloud) {
		f.cloudStamp = clock.Now()
	}
	if policy.Has(PolicyIface) {
		f.ifname = c.Meta.Ifname
	}
	return f
}

// NewEndpointFilter builds a filter matching the given local and/or
// remote endpoints. Invalid (zero) endpoints are skipped; supplying both
// with mismatched address families is rejected.
func NewEndpointFilter(local, remote netip.AddrPort, policy Policy, act Action) (*Filter, error) {
	if local.IsValid() && remote.IsValid() && !sameFamily(local.Addr(), remote.Addr()) {
		return nil, errors.Errorf(errors.KindValidation,
			"mismatched address families in selector: %s vs %s", local.Addr(), remote.Addr())
	}
	f := NewFilter(policy, act, act == ActionIgnore)
	f.local = local
	f.remote = remote
	return f, nil
}

// matchEndpoint compares the filter endpoint against the connection
// endpoint per the Addr/Port sub-flags. With neither sub-flag set the
// comparison is vacuously true.
func matchEndpoint(filt, c netip.AddrPort, pol Policy) bool {
	switch pol & (PolicyAddr | PolicyPort) {
	case PolicyAddr | PolicyPort:
		return matchAddr(filt.Addr(), c.Addr()) && filt.Port() == c.Port()
	case PolicyAddr:
		return matchAddr(filt.Addr(), c.Addr())
	case PolicyPort:
		return filt.Port() == c.Port()
	default:
		return true
	}
}

// matchAddr compares one address selector. An unspecified selector is a
// wildcard: a filter snapshotted from a 0.0.0.0 or :: listener has to
// match inbound connections carrying a concrete local address.
func matchAddr(filt, c netip.Addr) bool {
	return filt.IsUnspecified() || filt == c
}

// Match evaluates the connection against the filter, bumping the eval
// counter, and the match counter on success. Selector categories combine
// with AND.
func (f *Filter) Match(c *Conn) bool {
	f.evals++
	ok := f.matchConn(c)
	if ok {
		f.matches++
	}
	return ok
}

func (f *Filter) matchConn(c *Conn) bool {
	if f.policy.Has(PolicyAF) {
		if c.Family() != f.family {
			return false
		}
	}
	if f.policy.Has(PolicyIface) {
		if c.Meta.Ifname == "" || f.ifname == "" {
			// Historically an unset name on either side counts as
			// a match. Likely wrong, kept until strict mode is on.
			if f.strictIface {
				return false
			}
		} else if c.Meta.Ifname != f.ifname {
			return false
		}
	}
	if f.policy.Has(PolicyCloud) {
		if c.Meta.Added.Sub(f.cloudStamp) >= cloudWindow {
			return false
		}
	}
	if f.policy.Has(PolicyLocal) {
		if !matchEndpoint(f.local, c.Local, f.policy) {
			return false
		}
	}
	if f.policy.Has(PolicyRemote) {
		if !matchEndpoint(f.remote, c.Remote, f.policy) {
			return false
		}
	}
	if f.policy.Has(PolicyState) {
		if f.state != c.State {
			return false
		}
	}
	// With only policy bits that matched vacuously this is still a
	// match; a filter with no selectors matches everything.
	return true
}

// Action returns the filter's action.
func (f *Filter) Action() Action { return f.action }

// Policy returns the filter's selector bitset.
func (f *Filter) Policy() Policy { return f.policy }

// HasPolicy reports whether all given policy bits are set on the filter.
func (f *Filter) HasPolicy(p Policy) bool { return f.policy.Has(p) }

// Local returns the filter's local endpoint selector.
func (f *Filter) Local() netip.AddrPort { return f.local }

// Remote returns the filter's remote endpoint selector.
func (f *Filter) Remote() netip.AddrPort { return f.remote }

// State returns the filter's state selector.
func (f *Filter) State() State { return f.state }

// Ifname returns the filter's interface name selector.
func (f *Filter) Ifname() string { return f.ifname }

// Group returns the group associated with this filter, or nil.
func (f *Filter) Group() *Group { return f.group }

// SetGroup associates a group with this filter.
func (f *Filter) SetGroup(g *Group) { f.group = g }

// SetState adds a state selector to the filter.
func (f *Filter) SetState(s State) {
	f.state = s
	f.policy |= PolicyState
}

// SetStrictIface controls the unset-interface-name edge case: strict
// filters treat a missing name as a non-match.
func (f *Filter) SetStrictIface(strict bool) { f.strictIface = strict }

// ConnCount returns the number of connections on the associated group,
// or zero when the filter has none.
func (f *Filter) ConnCount() int {
	if f.group == nil {
		return 0
	}
	return f.group.Size()
}

// Evals returns how many times the filter has been evaluated.
func (f *Filter) Evals() uint32 { return f.evals }

// Matches returns how many times the filter has matched.
func (f *Filter) Matches() uint32 { return f.matches }
