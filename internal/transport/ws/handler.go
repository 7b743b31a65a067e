// Package ws serves the same line protocol over WebSocket: one text frame
// carries one protocol line.
package ws

import (
	"context"
	"net"
	stdhttp "net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linechat/linechat-server/internal/core"
	"github.com/linechat/linechat-server/internal/proto"
	"github.com/linechat/linechat-server/internal/transport"
)

const outboxSize = 32

// Handler upgrades HTTP connections and bridges them to the dispatcher.
type Handler struct {
	dispatcher *core.Dispatcher
	capacity   *transport.Capacity
	log        *zerolog.Logger
}

// NewHandler builds the WebSocket endpoint handler.
func NewHandler(dispatcher *core.Dispatcher, capacity *transport.Capacity, logger *zerolog.Logger) stdhttp.Handler {
	return &Handler{dispatcher: dispatcher, capacity: capacity, log: logger}
}

func (h *Handler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	wc, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	if !h.capacity.TryAcquire() {
		_ = wc.Write(ctx, websocket.MessageText, []byte(proto.SignalServerFull))
		_ = wc.Close(websocket.StatusTryAgainLater, "server full")
		h.log.Warn().Str("addr", r.RemoteAddr).Msg("connection refused, server full")
		return
	}
	defer h.capacity.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := newConn(ctx, wc, r.RemoteAddr)
	go c.writeLoop()

	defer func() {
		h.dispatcher.Disconnect(c)
		c.Close()
	}()

	h.dispatcher.Greet(c)

	for {
		typ, data, err := wc.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("ws read ended")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}
		if !h.dispatcher.Dispatch(c, line) {
			_ = wc.Close(websocket.StatusNormalClosure, "bye")
			return
		}
	}
}

// conn adapts a websocket connection to core.Conn with the same buffered
// outbox semantics as the TCP transport.
type conn struct {
	id     string
	ctx    context.Context
	ws     *websocket.Conn
	remote string
	out    chan string
	done   chan struct{}
	once   sync.Once
}

func newConn(ctx context.Context, ws *websocket.Conn, remote string) *conn {
	return &conn{
		id:     uuid.New().String(),
		ctx:    ctx,
		ws:     ws,
		remote: remote,
		out:    make(chan string, outboxSize),
		done:   make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) RemoteAddr() string { return c.remote }

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
		_ = c.ws.Close(websocket.StatusNormalClosure, "closing")
	})
	return nil
}

func (c *conn) writeLoop() {
	for {
		select {
		case line := <-c.out:
			// Frames already end in \n for the line protocol; WebSocket
			// framing makes the terminator redundant but clients share one
			// decoder across transports.
			if err := c.ws.Write(c.ctx, websocket.MessageText, []byte(line)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}
