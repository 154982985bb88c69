// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scout

import (
	"context"
	"net"
	"net/netip"

	"github.com/prometheus/procfs"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
	"grimm.is/sockwatch/internal/logging"
)

// ProcSource reads /proc/net/tcp and /proc/net/tcp6.
type ProcSource struct {
	fs   procfs.FS
	mode AFMode
	log  *logging.Logger
}

// NewProcSource opens the proc filesystem at the given mount point
// (empty for /proc).
func NewProcSource(mount string, mode AFMode, log *logging.Logger) (*ProcSource, error) {
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "opening procfs at %s", mount)
	}
	return &ProcSource{fs: fs, mode: mode, log: log.WithComponent("scout.proc")}, nil
}

// SetAFMode changes the address family restriction for later rounds.
func (s *ProcSource) SetAFMode(mode AFMode) { s.mode = mode }

// AFMode returns the current address family restriction.
func (s *ProcSource) AFMode() AFMode { return s.mode }

// Connections enumerates the kernel TCP tables.
func (s *ProcSource) Connections(ctx context.Context) ([]Observation, error) {
	var obs []Observation

	if s.mode != AFIPv6Only {
		tcp4, err := s.fs.NetTCP()
		if err != nil {
			return nil, errors.Wrap(err, errors.KindUnavailable, "reading net/tcp")
		}
		obs = s.appendLines(obs, tcp4)
	}
	if s.mode != AFIPv4Only {
		tcp6, err := s.fs.NetTCP6()
		if err != nil {
			// A v4-only kernel has no tcp6 table; not fatal.
			s.log.Debug("no tcp6 table", "err", err)
		} else {
			obs = s.appendLines(obs, tcp6)
		}
	}
	return obs, ctx.Err()
}

func (s *ProcSource) appendLines(obs []Observation, lines procfs.NetTCP) []Observation {
	for _, ln := range lines {
		local, ok := toAddrPort(ln.LocalAddr, ln.LocalPort)
		if !ok {
			s.log.Warn("skipping unparsable local address", "addr", ln.LocalAddr)
			continue
		}
		remote, ok := toAddrPort(ln.RemAddr, ln.RemPort)
		if !ok {
			s.log.Warn("skipping unparsable remote address", "addr", ln.RemAddr)
			continue
		}
		if !s.mode.allows(local.Addr()) {
			continue
		}
		obs = append(obs, Observation{
			Local:  local,
			Remote: remote,
			State:  conn.StateFromLinux(ln.St),
			Inode:  ln.Inode,
		})
	}
	return obs
}

func toAddrPort(ip net.IP, port uint64) (netip.AddrPort, bool) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(a.Unmap(), uint16(port)), true
}

// Close is a no-op; procfs holds no resources between rounds.
func (s *ProcSource) Close() error { return nil }
