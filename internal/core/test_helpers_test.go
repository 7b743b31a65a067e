package core

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/linechat/linechat-server/internal/log"
)

// fakeConn collects sent lines in memory. fail makes every Send error,
// simulating a dead peer.
type fakeConn struct {
	id      string
	addr    string
	fail    bool
	discard bool

	mu    sync.Mutex
	lines []string
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, addr: "127.0.0.1:9"}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) RemoteAddr() string { return c.addr }
func (c *fakeConn) Close() error       { return nil }

func (c *fakeConn) Send(line string) error {
	if c.fail {
		return errors.New("peer gone")
	}
	if c.discard {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *fakeConn) has(substr string) bool {
	for _, line := range c.received() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func (c *fakeConn) last() string {
	lines := c.received()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// newTestDispatcher wires a dispatcher over fresh registries with the
// "general" default room, mirroring startup.
func newTestDispatcher() (*Dispatcher, *Sessions, *Rooms, *RateLimiter) {
	limits := DefaultLimits()
	sessions := NewSessions(limits)
	rooms := NewRooms()
	rooms.Create("general", "", false, "", ServerOwner)
	limiter := NewRateLimiter(30, 60*time.Second)
	router := NewRouter(sessions, rooms, log.Discard())
	d := NewDispatcher(sessions, rooms, limiter, router, limits, "general", log.Discard())
	return d, sessions, rooms, limiter
}
