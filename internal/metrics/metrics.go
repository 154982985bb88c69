// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes tracker counters over Prometheus. The round
// loop publishes a stats snapshot after each round; scrapes read the
// last snapshot and never touch the live tracker, keeping the
// single-mutator discipline intact.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/sockwatch/internal/logging"
	"grimm.is/sockwatch/internal/tracker"
)

var (
	descTracked = prometheus.NewDesc("sockwatch_tracked_connections",
		"Connections currently in the tracking table.", nil, nil)
	descNew = prometheus.NewDesc("sockwatch_new_connections",
		"Connections first observed in the last round.", nil, nil)
	descIgnored = prometheus.NewDesc("sockwatch_ignored_connections",
		"Connections parked on ignore filters.", nil, nil)
	descGroups = prometheus.NewDesc("sockwatch_groups",
		"Classification groups by direction.", []string{"dir"}, nil)
	descByState = prometheus.NewDesc("sockwatch_connections_state",
		"Tracked connections by protocol state.", []string{"state"}, nil)
)

// Collector serves the last published tracker snapshot.
type Collector struct {
	mu    sync.RWMutex
	stats tracker.Stats
	ok    bool
}

// NewCollector creates an empty collector; it reports nothing until the
// first Publish.
func NewCollector() *Collector { return &Collector{} }

// Publish stores a snapshot for subsequent scrapes.
func (c *Collector) Publish(s tracker.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = s
	c.ok = true
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTracked
	ch <- descNew
	ch <- descIgnored
	ch <- descGroups
	ch <- descByState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	s, ok := c.stats, c.ok
	c.mu.RUnlock()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(descTracked, prometheus.GaugeValue, float64(s.Tracked))
	ch <- prometheus.MustNewConstMetric(descNew, prometheus.GaugeValue, float64(s.New))
	ch <- prometheus.MustNewConstMetric(descIgnored, prometheus.GaugeValue, float64(s.Ignored))
	ch <- prometheus.MustNewConstMetric(descGroups, prometheus.GaugeValue, float64(s.ListenGroups), "in")
	ch <- prometheus.MustNewConstMetric(descGroups, prometheus.GaugeValue, float64(s.OutGroups), "out")
	for state, n := range s.ByState {
		ch <- prometheus.MustNewConstMetric(descByState, prometheus.GaugeValue, float64(n), state.String())
	}
}

// Serve registers the collector and serves /metrics on addr in the
// background.
func Serve(addr string, c *Collector, log *logging.Logger) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "err", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return nil
}
