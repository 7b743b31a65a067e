// Package app wires the core registries and transports into a runnable
// server.
package app

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/linechat/linechat-server/internal/config"
	"github.com/linechat/linechat-server/internal/core"
	"github.com/linechat/linechat-server/internal/transport"
	transporthttp "github.com/linechat/linechat-server/internal/transport/http"
	"github.com/linechat/linechat-server/internal/transport/tcp"
	"github.com/linechat/linechat-server/internal/transport/ws"
)

// App owns the assembled server components.
type App struct {
	tcpServer       *tcp.Server
	httpServer      *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application from configuration: core registries,
// default rooms, the dispatcher, and both transports.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	limits := core.Limits{
		MaxMessageLen:  cfg.MaxMessageLen,
		MaxNicknameLen: cfg.MaxNicknameLen,
		MaxRoomNameLen: cfg.MaxRoomNameLen,
	}

	sessions := core.NewSessions(limits)
	rooms := core.NewRooms()
	limiter := core.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	router := core.NewRouter(sessions, rooms, logger)
	dispatcher := core.NewDispatcher(sessions, rooms, limiter, router, limits, cfg.AutoJoinRoom, logger)

	for _, name := range cfg.DefaultRooms {
		room := limits.NormalizeRoomName(name)
		if room == "" {
			logger.Warn().Str("name", name).Msg("skipping unusable default room name")
			continue
		}
		if rooms.Create(room, "", false, "", core.ServerOwner) {
			logger.Info().Str("room", room).Msg("default room created")
		}
	}

	capacity := transport.NewCapacity(cfg.MaxClients)
	tcpServer := tcp.NewServer(cfg.Addr, dispatcher, capacity, logger)
	wsHandler := ws.NewHandler(dispatcher, capacity, logger)
	httpServer := transporthttp.NewServer(cfg, rooms, sessions, capacity, wsHandler, logger)

	return &App{
		tcpServer:       tcpServer,
		httpServer:      httpServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
}

// Run starts both transports and blocks until ctx cancellation or a fatal
// listener error, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		errCh <- a.tcpServer.Run(ctx)
	}()
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	received := 0
	select {
	case runErr = <-errCh:
		received++
		cancel()
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer shutdownCancel()

	a.log.Info().Msg("shutting down")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	// The TCP server notices ctx cancellation, fans out SERVER_SHUTDOWN to
	// connected clients, and returns; collect both goroutines.
	for ; received < 2; received++ {
		if err := <-errCh; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
