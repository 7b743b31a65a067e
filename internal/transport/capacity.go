// Package transport holds pieces shared by the TCP and WebSocket
// transports.
package transport

import "sync/atomic"

// Capacity gates the number of concurrent connections across all
// transports. Connections beyond the limit are refused before they reach
// the core.
type Capacity struct {
	max int64
	cur atomic.Int64
}

// NewCapacity allows up to max concurrent connections.
func NewCapacity(max int) *Capacity {
	return &Capacity{max: int64(max)}
}

// TryAcquire claims a slot, reporting false when the server is full.
func (c *Capacity) TryAcquire() bool {
	if c.cur.Add(1) > c.max {
		c.cur.Add(-1)
		return false
	}
	return true
}

// Release frees a slot claimed by TryAcquire.
func (c *Capacity) Release() {
	c.cur.Add(-1)
}

// Current returns the number of claimed slots.
func (c *Capacity) Current() int {
	return int(c.cur.Load())
}
