// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sockwatch.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
poll_interval = "2s"
grouping      = "port"
resolve       = false
linger        = true
source        = "conntrack"
log_level     = "debug"

filter "ignore" {
  remote_addr = "10.0.0.5"
  remote_port = 443
}

filter "warn" {
  local_port = 22
  state      = "ESTABLISHED"
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	d, err := cfg.Interval()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	assert.Equal(t, "port", cfg.Grouping)
	assert.True(t, cfg.Linger)
	require.NotNil(t, cfg.Resolve)
	assert.False(t, *cfg.Resolve)

	require.Len(t, cfg.Filters, 2)

	ign, err := cfg.Filters[0].Build()
	require.NoError(t, err)
	assert.Equal(t, conn.ActionIgnore, ign.Action())
	assert.True(t, ign.HasPolicy(conn.PolicyRemote|conn.PolicyAddr|conn.PolicyPort))
	assert.NotNil(t, ign.Group(), "ignore filters carry a parking group")

	warn, err := cfg.Filters[1].Build()
	require.NoError(t, err)
	assert.Equal(t, conn.ActionWarn, warn.Action())
	assert.True(t, warn.HasPolicy(conn.PolicyLocal|conn.PolicyPort|conn.PolicyState))
	assert.Nil(t, warn.Group())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Config)
	}{
		{"bad interval", func(c *Config) { c.PollInterval = "soon" }},
		{"interval too small", func(c *Config) { c.PollInterval = "10ms" }},
		{"bad grouping", func(c *Config) { c.Grouping = "color" }},
		{"bad family", func(c *Config) { c.AddressFamily = "ipx" }},
		{"bad source", func(c *Config) { c.Source = "psychic" }},
		{"pcap without file", func(c *Config) { c.Source = "pcap" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation))
		})
	}
}

func TestFilterRuleRejects(t *testing.T) {
	cases := []struct {
		name string
		rule FilterRule
	}{
		{"bad action", FilterRule{Action: "shun", RemotePort: 80}},
		{"bad address", FilterRule{Action: "ignore", RemoteAddr: "not-an-ip"}},
		{"mixed families", FilterRule{Action: "ignore", LocalAddr: "127.0.0.1", RemoteAddr: "::1"}},
		{"bad state", FilterRule{Action: "log", LocalPort: 80, State: "LOITERING"}},
		{"empty rule", FilterRule{Action: "ignore"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.rule.Build()
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation))
		})
	}
}
