// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

// MatchPolicy decides which filter wins when several match.
type MatchPolicy uint8

const (
	// FirstMatch returns the first matching filter and short-circuits.
	FirstMatch MatchPolicy = iota
	// LastMatch scans the whole chain and returns the last match.
	LastMatch
)

// AddPos says where in the chain a filter is added.
type AddPos uint8

const (
	AddBack AddPos = iota
	AddFront
)

// Chain is an ordered list of filters, evaluated per its match policy.
// The tracker keeps the user's ignore/warn rules on one of these.
type Chain struct {
	policy  MatchPolicy
	filters []*Filter
}

// NewChain creates an empty chain with the given match policy.
func NewChain(policy MatchPolicy) *Chain {
	return &Chain{policy: policy}
}

// Add inserts the filter at the front or back of the chain.
func (ch *Chain) Add(f *Filter, pos AddPos) {
	if pos == AddFront {
		ch.filters = append([]*Filter{f}, ch.filters...)
		return
	}
	ch.filters = append(ch.filters, f)
}

// Match evaluates the connection against the chain. Under FirstMatch the
// scan stops at the first hit; under LastMatch every filter is evaluated
// and the last hit wins. Returns nil when nothing matches.
func (ch *Chain) Match(c *Conn) *Filter {
	var rv *Filter
	for _, f := range ch.filters {
		if f.Match(c) {
			rv = f
			if ch.policy == FirstMatch {
				break
			}
		}
	}
	return rv
}

// ActionFor returns the action of the matching filter, or ActionNone.
func (ch *Chain) ActionFor(c *Conn) Action {
	if f := ch.Match(c); f != nil {
		return f.Action()
	}
	return ActionNone
}

// Filters returns the chain's filters in order.
func (ch *Chain) Filters() []*Filter { return ch.filters }

// Len returns the number of filters on the chain.
func (ch *Chain) Len() int { return len(ch.filters) }

// SetStrictIface flips the unset-interface-name behaviour on every
// filter currently on the chain.
func (ch *Chain) SetStrictIface(strict bool) {
	for _, f := range ch.filters {
		f.SetStrictIface(strict)
	}
}
