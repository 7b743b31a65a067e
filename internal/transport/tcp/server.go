// Package tcp serves the line protocol over plain TCP: one goroutine per
// connection reading newline-terminated frames into the dispatcher.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/linechat/linechat-server/internal/core"
	"github.com/linechat/linechat-server/internal/proto"
	"github.com/linechat/linechat-server/internal/transport"
)

const maxLineBytes = 64 * 1024

// Server accepts TCP connections and drives the command dispatcher for
// each of them.
type Server struct {
	addr       string
	dispatcher *core.Dispatcher
	capacity   *transport.Capacity
	log        *zerolog.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
	wg    sync.WaitGroup
}

// NewServer builds a TCP server listening on addr once Run is called.
func NewServer(addr string, dispatcher *core.Dispatcher, capacity *transport.Capacity, logger *zerolog.Logger) *Server {
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		capacity:   capacity,
		log:        logger,
		conns:      make(map[*conn]struct{}),
	}
}

// Run listens and accepts until ctx is cancelled, then notifies every
// client with SERVER_SHUTDOWN and waits for the handlers to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	s.log.Info().Str("addr", s.addr).Msg("tcp listener started")

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.shutdown()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		if !s.capacity.TryAcquire() {
			_, _ = netConn.Write([]byte(proto.SignalServerFull + "\n"))
			_ = netConn.Close()
			s.log.Warn().Str("addr", netConn.RemoteAddr().String()).Msg("connection refused, server full")
			continue
		}

		c := newConn(netConn)
		s.track(c)
		s.wg.Add(1)
		go s.handle(c)
	}
}

// handle runs one connection's read loop. Cleanup is unconditional so an
// abnormal exit never leaks registry state.
func (s *Server) handle(c *conn) {
	defer s.wg.Done()
	defer func() {
		s.dispatcher.Disconnect(c)
		c.Close()
		s.untrack(c)
		s.capacity.Release()
	}()

	go c.writeLoop()
	s.dispatcher.Greet(c)

	scanner := bufio.NewScanner(c.netConn)
	scanner.Buffer(make([]byte, 1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !s.dispatcher.Dispatch(c, line) {
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("read loop ended")
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.shutdown(proto.SignalServerShutdown)
	}
	s.wg.Wait()
	s.log.Info().Msg("tcp listener stopped")
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
