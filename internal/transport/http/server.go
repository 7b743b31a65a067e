// Package http exposes a read-only status API and hosts the WebSocket
// endpoint.
package http

import (
	stdhttp "net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linechat/linechat-server/internal/config"
	"github.com/linechat/linechat-server/internal/core"
	"github.com/linechat/linechat-server/internal/transport"
)

// NewServer builds the HTTP server with the status routes and the
// WebSocket endpoint mounted at /ws.
func NewServer(cfg config.Config, rooms *core.Rooms, sessions *core.Sessions, capacity *transport.Capacity, wsHandler stdhttp.Handler, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(loggerMiddleware(logger), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	router.GET("/api/rooms", func(c *gin.Context) {
		list := rooms.List()
		out := make([]core.RoomInfo, 0, len(list))
		for _, info := range list {
			out = append(out, info)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		c.JSON(stdhttp.StatusOK, gin.H{"rooms": out})
	})

	router.GET("/api/stats", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{
			"connections": capacity.Current(),
			"users":       sessions.Count(),
			"rooms":       len(rooms.List()),
		})
	})

	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func loggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
