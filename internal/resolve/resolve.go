// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package resolve turns remote addresses into hostnames and remote
// ports into service names for display. PTR lookups run on a bounded
// worker pool; answers land in a cache consulted on later rounds, so
// rendering never blocks on DNS.
package resolve

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/miekg/dns"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/logging"
)

const (
	defaultWorkers = 10
	queryTimeout   = 2 * time.Second
)

type cacheEntry struct {
	name string
	done bool
}

// Resolver resolves remote hostnames asynchronously.
type Resolver struct {
	log     *logging.Logger
	client  *dns.Client
	server  string
	enabled bool

	mu    sync.Mutex
	cache map[string]*cacheEntry
	sem   chan struct{}

	// exchange is swappable for tests.
	exchange func(m *dns.Msg) (*dns.Msg, error)
}

// New creates a resolver using the first nameserver from resolv.conf.
func New(log *logging.Logger, enabled bool) *Resolver {
	r := &Resolver{
		log:     log.WithComponent("resolve"),
		client:  &dns.Client{Timeout: queryTimeout},
		enabled: enabled,
		cache:   make(map[string]*cacheEntry),
		sem:     make(chan struct{}, defaultWorkers),
	}
	cfg, _ := dns.ClientConfigFromFile("/etc/resolv.conf")
	if cfg == nil || len(cfg.Servers) == 0 {
		cfg = &dns.ClientConfig{Servers: []string{"1.1.1.1"}, Port: "53"}
	}
	r.server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	r.exchange = func(m *dns.Msg) (*dns.Msg, error) {
		in, _, err := r.client.Exchange(m, r.server)
		return in, err
	}
	return r
}

// Enabled reports whether resolution is on.
func (r *Resolver) Enabled() bool { return r.enabled }

// SetEnabled toggles resolution at runtime.
func (r *Resolver) SetEnabled(on bool) { r.enabled = on }

// Annotate fills in the connection's remote hostname and service name
// from the cache, scheduling a lookup on a miss. The Resolved flag is
// set once a lookup has completed, successful or not.
func (r *Resolver) Annotate(c *conn.Conn) {
	if c.Meta.ServName == "" {
		c.Meta.ServName = ServiceName(c.RemotePort())
	}
	if !r.enabled || c.Meta.Has(conn.FlagResolved) {
		return
	}

	addr := c.Remote.Addr().Unmap().String()
	r.mu.Lock()
	e, ok := r.cache[addr]
	if !ok {
		e = &cacheEntry{}
		r.cache[addr] = e
		r.mu.Unlock()
		r.lookup(addr, e)
		return
	}
	done, name := e.done, e.name
	r.mu.Unlock()

	if done {
		c.Meta.SetFlag(conn.FlagResolved)
		if name != "" {
			c.Meta.RemoteName = name
		}
	}
}

func (r *Resolver) lookup(addr string, e *cacheEntry) {
	select {
	case r.sem <- struct{}{}:
	default:
		// Pool saturated; drop the entry so a later round retries.
		r.mu.Lock()
		delete(r.cache, addr)
		r.mu.Unlock()
		return
	}
	go func() {
		defer func() { <-r.sem }()

		var name string
		if rev, err := dns.ReverseAddr(addr); err == nil {
			m := new(dns.Msg)
			m.SetQuestion(rev, dns.TypePTR)
			if in, err := r.exchange(m); err == nil && in != nil && in.Rcode == dns.RcodeSuccess {
				for _, rr := range in.Answer {
					if ptr, ok := rr.(*dns.PTR); ok {
						name = trimDot(ptr.Ptr)
						break
					}
				}
			} else if err != nil {
				r.log.Debug("reverse lookup failed", "addr", addr, "err", err)
			}
		}

		r.mu.Lock()
		e.name = name
		e.done = true
		r.mu.Unlock()
	}()
}

func trimDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

// serviceNames covers the ports worth naming on a dashboard. There is no
// portable getservbyport in Go; /etc/services parsing is not worth the
// trouble for display strings.
var serviceNames = map[uint16]string{
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	123:   "ntp",
	143:   "imap",
	179:   "bgp",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	587:   "submission",
	636:   "ldaps",
	873:   "rsync",
	993:   "imaps",
	995:   "pop3s",
	1080:  "socks",
	3128:  "squid",
	3306:  "mysql",
	5432:  "postgresql",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	11211: "memcached",
}

// ServiceName returns the well-known service name for a port, or the
// port number itself.
func ServiceName(port uint16) string {
	if n, ok := serviceNames[port]; ok {
		return n
	}
	return strconv.Itoa(int(port))
}
