// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ifinfo

import (
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
)

// Refresh rescans interfaces, addresses and routes over netlink.
func (t *Table) Refresh() error {
	links, err := netlink.LinkList()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "listing links")
	}

	ifaces := make([]Iface, 0, len(links))
	routes := make(map[string][]conn.Route)
	for _, link := range links {
		attrs := link.Attrs()
		ifc := Iface{
			Name:  attrs.Name,
			Index: attrs.Index,
			Up:    attrs.OperState == netlink.OperUp || attrs.Flags&unix.IFF_UP != 0,
		}

		addrs, err := netlink.AddrList(link, unix.AF_UNSPEC)
		if err != nil {
			t.log.Warn("listing addresses failed", "iface", attrs.Name, "err", err)
			continue
		}
		for _, a := range addrs {
			if a.IPNet == nil {
				continue
			}
			ip, ok := netip.AddrFromSlice(a.IPNet.IP)
			if !ok {
				continue
			}
			ones, _ := a.IPNet.Mask.Size()
			ifc.Addrs = append(ifc.Addrs, netip.PrefixFrom(ip.Unmap(), ones))
		}

		rts, err := netlink.RouteList(link, unix.AF_UNSPEC)
		if err != nil {
			t.log.Warn("listing routes failed", "iface", attrs.Name, "err", err)
		}
		for _, r := range rts {
			route := conn.Route{Ifname: attrs.Name}
			if r.Dst != nil {
				ip, ok := netip.AddrFromSlice(r.Dst.IP)
				if !ok {
					continue
				}
				ones, _ := r.Dst.Mask.Size()
				route.Dest = netip.PrefixFrom(ip.Unmap(), ones)
			} else if gw, ok := netip.AddrFromSlice(r.Gw); ok {
				// Default route.
				if gw.Unmap().Is4() {
					route.Dest = netip.PrefixFrom(netip.IPv4Unspecified(), 0)
				} else {
					route.Dest = netip.PrefixFrom(netip.IPv6Unspecified(), 0)
				}
			}
			if gw, ok := netip.AddrFromSlice(r.Gw); ok {
				route.Gateway = gw.Unmap()
			}
			routes[attrs.Name] = append(routes[attrs.Name], route)
		}

		ifaces = append(ifaces, ifc)
	}

	t.replace(ifaces, routes)
	t.log.Debug("interface table refreshed", "ifaces", len(ifaces))
	return nil
}
