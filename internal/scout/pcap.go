// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scout

import (
	"context"
	"io"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
	"grimm.is/sockwatch/internal/logging"
)

// pcapBatch bounds how many packets one round consumes, so a large
// capture trickles in over successive rounds like the live sources do.
const pcapBatch = 64

// PcapSource derives connection observations from a packet capture.
// Header flags stand in for the kernel's state machine: a lone SYN is
// SYN_SENT, SYN+ACK is SYN_RECV, FIN maps to FIN_WAIT1, RST to CLOSE,
// anything else counts as ESTABLISHED. IsLocal decides which endpoint of
// a packet is ours.
type PcapSource struct {
	handle  *pcap.Handle
	packets *gopacket.PacketSource
	mode    AFMode
	log     *logging.Logger

	// IsLocal reports whether the address belongs to this host.
	IsLocal func(netip.Addr) bool

	eof bool
}

// NewPcapSource opens a capture file for replay.
func NewPcapSource(path string, mode AFMode, isLocal func(netip.Addr) bool, log *logging.Logger) (*PcapSource, error) {
	h, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "opening capture %s", path)
	}
	if err := h.SetBPFFilter("tcp"); err != nil {
		h.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "setting capture filter")
	}
	return &PcapSource{
		handle:  h,
		packets: gopacket.NewPacketSource(h, h.LinkType()),
		mode:    mode,
		IsLocal: isLocal,
		log:     log.WithComponent("scout.pcap"),
	}, nil
}

// SetAFMode changes the address family restriction for later rounds.
func (s *PcapSource) SetAFMode(mode AFMode) { s.mode = mode }

// AFMode returns the current address family restriction.
func (s *PcapSource) AFMode() AFMode { return s.mode }

// Exhausted reports whether the capture has been fully consumed.
func (s *PcapSource) Exhausted() bool { return s.eof }

// Connections reads the next batch of packets and maps them to
// observations.
func (s *PcapSource) Connections(ctx context.Context) ([]Observation, error) {
	var obs []Observation
	for i := 0; i < pcapBatch && !s.eof; i++ {
		if err := ctx.Err(); err != nil {
			return obs, err
		}
		pkt, err := s.packets.NextPacket()
		if err == io.EOF {
			s.eof = true
			break
		}
		if err != nil {
			return obs, errors.Wrap(err, errors.KindUnavailable, "reading packet")
		}
		if o, ok := s.observe(pkt); ok {
			obs = append(obs, o)
		}
	}
	return obs, nil
}

func (s *PcapSource) observe(pkt gopacket.Packet) (Observation, bool) {
	tcpLayer, _ := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if tcpLayer == nil {
		return Observation{}, false
	}

	var src, dst netip.Addr
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		src, _ = netip.AddrFromSlice(ip.SrcIP)
		dst, _ = netip.AddrFromSlice(ip.DstIP)
	case *layers.IPv6:
		src, _ = netip.AddrFromSlice(ip.SrcIP)
		dst, _ = netip.AddrFromSlice(ip.DstIP)
	default:
		return Observation{}, false
	}
	src, dst = src.Unmap(), dst.Unmap()
	if !s.mode.allows(src) {
		return Observation{}, false
	}

	local := netip.AddrPortFrom(src, uint16(tcpLayer.SrcPort))
	remote := netip.AddrPortFrom(dst, uint16(tcpLayer.DstPort))
	outbound := s.IsLocal == nil || s.IsLocal(src)
	if !outbound {
		local, remote = remote, local
	}

	state := conn.Established
	switch {
	case tcpLayer.RST:
		state = conn.Close
	case tcpLayer.FIN:
		state = conn.FinWait1
	case tcpLayer.SYN && tcpLayer.ACK:
		state = conn.SynRecv
	case tcpLayer.SYN:
		if outbound {
			state = conn.SynSent
		} else {
			state = conn.SynRecv
		}
	}

	return Observation{Local: local, Remote: remote, State: state}, true
}

// Close releases the capture handle.
func (s *PcapSource) Close() error {
	s.handle.Close()
	return nil
}
