// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package resolve

import (
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"

	"grimm.is/sockwatch/internal/conn"
	"grimm.is/sockwatch/internal/logging"
)

func mkConn(remote string) *conn.Conn {
	return conn.New(
		netip.MustParseAddrPort("192.168.1.5:41000"),
		netip.MustParseAddrPort(remote),
		conn.Established)
}

// fakeExchange answers every PTR query with the given name.
func fakeExchange(name string, calls *atomic.Int32) func(*dns.Msg) (*dns.Msg, error) {
	return func(m *dns.Msg) (*dns.Msg, error) {
		if calls != nil {
			calls.Add(1)
		}
		resp := new(dns.Msg)
		resp.SetReply(m)
		if name != "" {
			resp.Answer = append(resp.Answer, &dns.PTR{
				Hdr: dns.RR_Header{Name: m.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 300},
				Ptr: name,
			})
		}
		return resp, nil
	}
}

// waitResolved annotates until the async lookup lands or the deadline
// passes.
func waitResolved(t *testing.T, r *Resolver, c *conn.Conn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.Annotate(c)
		if c.Meta.Has(conn.FlagResolved) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("lookup never completed")
}

func TestAnnotateServiceName(t *testing.T) {
	r := New(logging.Nop(), false)
	c := mkConn("151.101.1.140:443")

	r.Annotate(c)
	assert.Equal(t, "https", c.Meta.ServName)
	assert.Empty(t, c.Meta.RemoteName, "resolution disabled")
	assert.False(t, c.Meta.Has(conn.FlagResolved))
}

func TestAnnotateResolves(t *testing.T) {
	r := New(logging.Nop(), true)
	r.exchange = fakeExchange("cdn.example.net.", nil)

	c := mkConn("151.101.1.140:443")
	waitResolved(t, r, c)
	assert.Equal(t, "cdn.example.net", c.Meta.RemoteName, "trailing dot stripped")
}

func TestAnnotateCaches(t *testing.T) {
	var calls atomic.Int32
	r := New(logging.Nop(), true)
	r.exchange = fakeExchange("host.example.net.", &calls)

	a := mkConn("10.0.0.7:443")
	waitResolved(t, r, a)

	// Same remote address on another tuple: answered from cache.
	b := mkConn("10.0.0.7:80")
	r.Annotate(b)
	assert.Equal(t, "host.example.net", b.Meta.RemoteName)
	assert.True(t, b.Meta.Has(conn.FlagResolved))
	assert.EqualValues(t, 1, calls.Load())
}

func TestAnnotateNoAnswer(t *testing.T) {
	r := New(logging.Nop(), true)
	r.exchange = fakeExchange("", nil)

	c := mkConn("10.0.0.8:443")
	waitResolved(t, r, c)
	assert.Empty(t, c.Meta.RemoteName)
	assert.True(t, c.Meta.Has(conn.FlagResolved), "a negative answer still settles the record")
}

func TestAnnotateSkipsResolved(t *testing.T) {
	var calls atomic.Int32
	r := New(logging.Nop(), true)
	r.exchange = fakeExchange("host.example.net.", &calls)

	c := mkConn("10.0.0.9:443")
	waitResolved(t, r, c)
	n := calls.Load()

	r.Annotate(c)
	r.Annotate(c)
	assert.Equal(t, n, calls.Load(), "resolved records never query again")
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "ssh", ServiceName(22))
	assert.Equal(t, "https", ServiceName(443))
	assert.Equal(t, "41000", ServiceName(41000), "unknown ports fall back to the number")
}
