// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the sockwatch HCL configuration file.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
)

// Config is the file-level configuration. Command line flags override it.
type Config struct {
	PollInterval  string `hcl:"poll_interval,optional"`
	Grouping      string `hcl:"grouping,optional"`
	Resolve       *bool  `hcl:"resolve,optional"`
	Linger        bool   `hcl:"linger,optional"`
	StrictIface   bool   `hcl:"strict_interface_match,optional"`
	AddressFamily string `hcl:"address_family,optional"`
	Source        string `hcl:"source,optional"`
	PcapFile      string `hcl:"pcap_file,optional"`
	MetricsListen string `hcl:"metrics_listen,optional"`
	LogFile       string `hcl:"log_file,optional"`
	LogLevel      string `hcl:"log_level,optional"`

	Filters []FilterRule `hcl:"filter,block"`
}

// FilterRule is one user-supplied ignore/warn/log rule.
type FilterRule struct {
	Action     string `hcl:"action,label"`
	LocalAddr  string `hcl:"local_addr,optional"`
	LocalPort  uint16 `hcl:"local_port,optional"`
	RemoteAddr string `hcl:"remote_addr,optional"`
	RemotePort uint16 `hcl:"remote_port,optional"`
	State      string `hcl:"state,optional"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollInterval:  "1s",
		Grouping:      "address",
		AddressFamily: "any",
		Source:        "proc",
		LogLevel:      "info",
	}
}

// Load parses the HCL file at path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return cfg, errors.Wrapf(diags, errors.KindValidation, "parsing %s", path)
	}
	if diags := gohcl.DecodeBody(f.Body, nil, &cfg); diags.HasErrors() {
		return cfg, errors.Wrapf(diags, errors.KindValidation, "decoding %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field values without building anything.
func (c Config) Validate() error {
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := conn.ParseGrouping(c.Grouping); err != nil {
		return err
	}
	switch c.AddressFamily {
	case "any", "ipv4", "ipv6":
	default:
		return errors.Errorf(errors.KindValidation, "unknown address_family %q", c.AddressFamily)
	}
	switch c.Source {
	case "proc", "conntrack", "pcap":
	default:
		return errors.Errorf(errors.KindValidation, "unknown source %q", c.Source)
	}
	if c.Source == "pcap" && c.PcapFile == "" {
		return errors.New(errors.KindValidation, "source \"pcap\" requires pcap_file")
	}
	for i, r := range c.Filters {
		if _, err := r.Build(); err != nil {
			return errors.Wrapf(err, errors.KindValidation, "filter block %d", i+1)
		}
	}
	return nil
}

// Interval returns the parsed poll interval.
func (c Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindValidation, "poll_interval %q", c.PollInterval)
	}
	if d < 100*time.Millisecond {
		return 0, errors.Errorf(errors.KindValidation, "poll_interval %s below 100ms", d)
	}
	return d, nil
}

// Build turns the rule into a filter for the tracker's chain.
func (r FilterRule) Build() (*conn.Filter, error) {
	var act conn.Action
	switch r.Action {
	case "ignore":
		act = conn.ActionIgnore
	case "warn":
		act = conn.ActionWarn
	case "log":
		act = conn.ActionLog
	default:
		return nil, errors.Errorf(errors.KindValidation, "unknown filter action %q", r.Action)
	}

	var policy conn.Policy
	local, err := endpoint(r.LocalAddr, r.LocalPort)
	if err != nil {
		return nil, err
	}
	if r.LocalAddr != "" {
		policy |= conn.PolicyLocal | conn.PolicyAddr
	}
	if r.LocalPort != 0 {
		policy |= conn.PolicyLocal | conn.PolicyPort
	}
	remote, err := endpoint(r.RemoteAddr, r.RemotePort)
	if err != nil {
		return nil, err
	}
	if r.RemoteAddr != "" {
		policy |= conn.PolicyRemote | conn.PolicyAddr
	}
	if r.RemotePort != 0 {
		policy |= conn.PolicyRemote | conn.PolicyPort
	}

	f, err := conn.NewEndpointFilter(local, remote, policy, act)
	if err != nil {
		return nil, err
	}
	if r.State != "" {
		st, err := conn.ParseState(r.State)
		if err != nil {
			return nil, err
		}
		f.SetState(st)
	}
	if f.Policy() == 0 {
		return nil, errors.New(errors.KindValidation, "filter rule has no selectors")
	}
	return f, nil
}

func endpoint(addr string, port uint16) (netip.AddrPort, error) {
	var a netip.Addr
	if addr != "" {
		var err error
		a, err = netip.ParseAddr(addr)
		if err != nil {
			return netip.AddrPort{}, errors.Errorf(errors.KindValidation, "bad address %q: %v", addr, err)
		}
		a = a.Unmap()
	}
	return netip.AddrPortFrom(a, port), nil
}

// String renders the effective settings for the startup log line.
func (c Config) String() string {
	return fmt.Sprintf("interval=%s grouping=%s source=%s af=%s linger=%v",
		c.PollInterval, c.Grouping, c.Source, c.AddressFamily, c.Linger)
}
