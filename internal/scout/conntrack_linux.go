// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scout

import (
	"context"
	"net/netip"

	"github.com/ti-mo/conntrack"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
	"grimm.is/sockwatch/internal/logging"
)

const protoTCP = 6

// ConntrackSource dumps the nf_conntrack table over netlink. Unlike the
// procfs source it sees forwarded flows as well, but never LISTEN
// sockets, so listening classification only applies to locally observed
// traffic.
type ConntrackSource struct {
	ct      *conntrack.Conn
	mode    AFMode
	isLocal func(netip.Addr) bool
	log     *logging.Logger
}

// NewConntrackSource opens a netlink conntrack socket. isLocal tells
// which flow endpoint belongs to this host.
func NewConntrackSource(mode AFMode, isLocal func(netip.Addr) bool, log *logging.Logger) (*ConntrackSource, error) {
	ct, err := conntrack.Dial(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "dialing conntrack")
	}
	return &ConntrackSource{ct: ct, mode: mode, isLocal: isLocal, log: log.WithComponent("scout.conntrack")}, nil
}

// SetAFMode changes the address family restriction for later rounds.
func (s *ConntrackSource) SetAFMode(mode AFMode) { s.mode = mode }

// AFMode returns the current address family restriction.
func (s *ConntrackSource) AFMode() AFMode { return s.mode }

// Connections dumps the conntrack table, keeping TCP flows only.
func (s *ConntrackSource) Connections(ctx context.Context) ([]Observation, error) {
	flows, err := s.ct.Dump(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "dumping conntrack table")
	}

	var obs []Observation
	for _, f := range flows {
		if f.TupleOrig.Proto.Protocol != protoTCP {
			continue
		}
		src := netip.AddrPortFrom(f.TupleOrig.IP.SourceAddress.Unmap(), f.TupleOrig.Proto.SourcePort)
		dst := netip.AddrPortFrom(f.TupleOrig.IP.DestinationAddress.Unmap(), f.TupleOrig.Proto.DestinationPort)
		local, remote := s.orient(src, dst)
		if !s.mode.allows(local.Addr()) {
			continue
		}
		obs = append(obs, Observation{
			Local:  local,
			Remote: remote,
			State:  stateFromConntrack(f.ProtoInfo.TCP),
		})
	}
	return obs, ctx.Err()
}

// orient maps a flow tuple to local/remote endpoints. Conntrack tuples
// run originator to responder, so on inbound flows the source is the
// remote peer and the endpoints have to swap.
func (s *ConntrackSource) orient(src, dst netip.AddrPort) (local, remote netip.AddrPort) {
	if s.isLocal == nil || s.isLocal(src.Addr()) {
		return src, dst
	}
	return dst, src
}

// stateFromConntrack maps the nf_conntrack TCP state enumeration.
func stateFromConntrack(ti *conntrack.ProtoInfoTCP) conn.State {
	if ti == nil {
		return conn.Established
	}
	switch ti.State {
	case 1:
		return conn.SynSent
	case 2:
		return conn.SynRecv
	case 3:
		return conn.Established
	case 4:
		return conn.FinWait1
	case 5:
		return conn.CloseWait
	case 6:
		return conn.LastAck
	case 7:
		return conn.TimeWait
	default:
		return conn.Close
	}
}

// Close releases the netlink socket.
func (s *ConntrackSource) Close() error { return s.ct.Close() }
