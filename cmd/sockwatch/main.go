// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command sockwatch shows live TCP connections grouped by listener,
// remote endpoint, port, state or interface, with ignore/warn filtering
// and optional reverse name resolution.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"grimm.is/sockwatch/internal/config"
	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/ifinfo"
	"grimm.is/sockwatch/internal/logging"
	"grimm.is/sockwatch/internal/metrics"
	"grimm.is/sockwatch/internal/pidinfo"
	"grimm.is/sockwatch/internal/resolve"
	"grimm.is/sockwatch/internal/scout"
	"grimm.is/sockwatch/internal/tracker"
	"grimm.is/sockwatch/internal/tui"
)

// specList collects repeatable addr[:port] filter flags.
type specList []string

func (s *specList) String() string { return strings.Join(*s, ",") }

func (s *specList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var ignores, warns specList

	configPath := flag.String("config", "", "Path to HCL config file")
	interval := flag.Duration("i", 0, "Poll interval (overrides config)")
	grouping := flag.String("g", "", "Grouping policy: address, port, state, interface, cloud, cloud+port")
	pids := flag.String("p", "", "Comma-separated PIDs to follow (sockets of these processes only)")
	noResolve := flag.Bool("n", false, "Disable reverse name resolution")
	linger := flag.Bool("L", false, "Keep closed connections visible for a grace period")
	only4 := flag.Bool("4", false, "IPv4 connections only")
	only6 := flag.Bool("6", false, "IPv6 connections only")
	source := flag.String("source", "", "Observation source: proc, conntrack or pcap")
	pcapFile := flag.String("pcap", "", "PCAP file to replay (implies -source pcap)")
	metricsListen := flag.String("metrics-listen", "", "Serve Prometheus metrics on this address")
	strictIf := flag.Bool("strict-if", false, "Interface filters require a known interface name")
	debugLog := flag.String("debug", "", "Write debug logs to this file")
	flag.Var(&ignores, "ignore", "Ignore connections matching addr[:port] (repeatable)")
	flag.Var(&warns, "warn", "Warn on connections matching addr[:port] (repeatable)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}

	// Flags win over the file.
	if *interval > 0 {
		cfg.PollInterval = interval.String()
	}
	if *grouping != "" {
		cfg.Grouping = *grouping
	}
	if *linger {
		cfg.Linger = true
	}
	if *strictIf {
		cfg.StrictIface = true
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *pcapFile != "" {
		cfg.Source = "pcap"
		cfg.PcapFile = *pcapFile
	}
	if *metricsListen != "" {
		cfg.MetricsListen = *metricsListen
	}
	if *debugLog != "" {
		cfg.LogFile = *debugLog
		cfg.LogLevel = "debug"
	}
	switch {
	case *only4 && *only6:
		fatal(fmt.Errorf("-4 and -6 are mutually exclusive"))
	case *only4:
		cfg.AddressFamily = "ipv4"
	case *only6:
		cfg.AddressFamily = "ipv6"
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeLog()
	logging.SetDefault(log)
	log.Info("starting", "settings", cfg.String())

	if err := run(cfg, ignores, warns, *pids, *noResolve, log); err != nil {
		log.Error("fatal", "error", err)
		fatal(err)
	}
}

func run(cfg config.Config, ignores, warns specList, pids string, noResolve bool, log *logging.Logger) error {
	pollEvery, err := cfg.Interval()
	if err != nil {
		return err
	}
	groupBy, err := conn.ParseGrouping(cfg.Grouping)
	if err != nil {
		return err
	}

	ifaces := ifinfo.New(log)
	if err := ifaces.Refresh(); err != nil {
		log.Warn("interface scan failed", "error", err)
	}

	opts := tracker.DefaultOptions()
	opts.Grouping = groupBy
	opts.Linger = cfg.Linger
	opts.StrictIface = cfg.StrictIface
	tr, err := tracker.New(opts, log)
	if err != nil {
		return err
	}
	tr.SetIfaceLookup(ifaces)
	tr.SetRouteLookup(ifaces)

	for _, r := range cfg.Filters {
		f, err := r.Build()
		if err != nil {
			return err
		}
		tr.AddFilter(f, conn.AddBack)
	}
	for _, spec := range ignores {
		f, err := parseSpec(spec, conn.ActionIgnore)
		if err != nil {
			return err
		}
		tr.AddFilter(f, conn.AddBack)
	}
	for _, spec := range warns {
		f, err := parseSpec(spec, conn.ActionWarn)
		if err != nil {
			return err
		}
		tr.AddFilter(f, conn.AddBack)
	}

	var procs *pidinfo.Set
	if pids != "" {
		list, err := parsePIDs(pids)
		if err != nil {
			return err
		}
		procs, err = pidinfo.NewSet(list, log)
		if err != nil {
			return err
		}
		tr.SetInodeGroups(procs)
	}

	mode := afMode(cfg.AddressFamily)
	src, err := newSource(cfg, mode, ifaces, log)
	if err != nil {
		return err
	}
	defer src.Close()
	if procs != nil {
		src = &followSource{Source: src, procs: procs}
	}

	resolveOn := !noResolve
	if cfg.Resolve != nil && !*cfg.Resolve {
		resolveOn = false
	}
	resolver := resolve.New(log, resolveOn)

	var collector *metrics.Collector
	if cfg.MetricsListen != "" {
		collector = metrics.NewCollector()
		go func() {
			if err := metrics.Serve(cfg.MetricsListen, collector, log); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	// Interface and route info goes stale as links come and go.
	go func() {
		tick := time.NewTicker(30 * time.Second)
		defer tick.Stop()
		for range tick.C {
			if err := ifaces.Refresh(); err != nil {
				log.Warn("interface scan failed", "error", err)
			}
		}
	}()

	app := tui.NewApp(tr, src, resolver, collector, pollEvery, log)
	if procs != nil {
		app.SetProcs(procs)
	}
	prog := tea.NewProgram(tui.NewModel(app), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return err
	}
	if procs != nil && len(procs.Procs()) == 0 {
		fmt.Println("no more processes to follow")
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	// Without -config, pick up a user config when one exists.
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/sockwatch/sockwatch.hcl"
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.Default(), nil
}

// newLogger builds the logger. The TUI owns the terminal, so logs only
// go anywhere when a log file is configured.
func newLogger(cfg config.Config) (*logging.Logger, func(), error) {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		lc.Output = io.Discard
		return logging.New(lc), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	lc.Output = f
	lc.JSON = true
	return logging.New(lc), func() { f.Close() }, nil
}

func newSource(cfg config.Config, mode scout.AFMode, ifaces *ifinfo.Table, log *logging.Logger) (scout.Source, error) {
	switch cfg.Source {
	case "conntrack":
		return scout.NewConntrackSource(mode, localAddrFunc(ifaces), log)
	case "pcap":
		return scout.NewPcapSource(cfg.PcapFile, mode, localAddrFunc(ifaces), log)
	default:
		return scout.NewProcSource("/proc", mode, log)
	}
}

// localAddrFunc tells the pcap and conntrack sources which flow
// endpoint is ours.
func localAddrFunc(ifaces *ifinfo.Table) func(netip.Addr) bool {
	return func(a netip.Addr) bool {
		if a.IsLoopback() {
			return true
		}
		return ifaces.NameForLocal(a) != ""
	}
}

// followSource rescans the followed processes' socket inodes before each
// round so new sockets are attributable on first sight.
type followSource struct {
	scout.Source
	procs *pidinfo.Set
}

func (f *followSource) Connections(ctx context.Context) ([]scout.Observation, error) {
	f.procs.ScanInodes()
	return f.Source.Connections(ctx)
}

// parseSpec parses "addr", "addr:port" or ":port" into a remote filter.
func parseSpec(spec string, act conn.Action) (*conn.Filter, error) {
	var policy conn.Policy
	var addr netip.Addr
	var port uint16

	if strings.HasPrefix(spec, ":") {
		n, err := strconv.ParseUint(spec[1:], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad port in %q: %w", spec, err)
		}
		port = uint16(n)
		policy = conn.PolicyRemote | conn.PolicyPort
	} else if ap, err := netip.ParseAddrPort(spec); err == nil {
		addr = ap.Addr().Unmap()
		port = ap.Port()
		policy = conn.PolicyRemote | conn.PolicyAddr | conn.PolicyPort
	} else {
		a, err := netip.ParseAddr(spec)
		if err != nil {
			return nil, fmt.Errorf("bad filter spec %q", spec)
		}
		addr = a.Unmap()
		policy = conn.PolicyRemote | conn.PolicyAddr
	}

	return conn.NewEndpointFilter(netip.AddrPort{}, netip.AddrPortFrom(addr, port), policy, act)
}

func parsePIDs(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pid, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad pid %q: %w", part, err)
		}
		out = append(out, pid)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no pids in %q", s)
	}
	return out, nil
}

func afMode(family string) scout.AFMode {
	switch family {
	case "ipv4":
		return scout.AFIPv4Only
	case "ipv6":
		return scout.AFIPv6Only
	default:
		return scout.AFAll
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "sockwatch:", err)
	os.Exit(1)
}
