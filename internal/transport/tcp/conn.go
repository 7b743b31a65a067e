package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linechat/linechat-server/internal/core"
)

const (
	outboxSize   = 32
	writeTimeout = 5 * time.Second
)

// conn adapts a net.Conn to core.Conn. Outbound frames go through a
// buffered channel drained by a dedicated writer goroutine, so Send never
// blocks on a slow peer; when the buffer is full the frame is dropped.
type conn struct {
	id      string
	netConn net.Conn
	out     chan string
	done    chan struct{}
	once    sync.Once
}

func newConn(nc net.Conn) *conn {
	return &conn{
		id:      uuid.New().String(),
		netConn: nc,
		out:     make(chan string, outboxSize),
		done:    make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) RemoteAddr() string { return c.netConn.RemoteAddr().String() }

func (c *conn) Send(line string) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}

	select {
	case c.out <- line:
		return nil
	default:
		return core.ErrSlowConsumer
	}
}

func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.netConn.Close()
	})
	return nil
}

// writeLoop drains the outbox onto the socket. Exits when the connection
// closes; a failed write closes the connection so the read loop unblocks.
func (c *conn) writeLoop() {
	for {
		select {
		case line := <-c.out:
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.netConn.Write([]byte(line)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// shutdown writes the out-of-band signal directly, bypassing the outbox,
// then closes the connection.
func (c *conn) shutdown(signal string) {
	_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, _ = c.netConn.Write([]byte(signal + "\n"))
	c.Close()
}
