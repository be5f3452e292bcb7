package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "bboardd"

// boardSnapshot is the /board response body.
type boardSnapshot struct {
	Config board.Config     `json:"config"`
	Count  int              `json:"count"`
	Notes  []board.NoteView `json:"notes"`
	Pins   []board.Pin      `json:"pins"`
}

// Router builds the admin HTTP surface. Websocket sessions live until ctx is done.
func (s *Server) Router(ctx context.Context) *gin.Engine {
	observability.RegisterMetrics()
	observability.RegisterBoardGauges(func() (int, int) {
		st := s.board.Stats()
		return st.Notes, st.Pins
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(observability.ComponentLogger("admin")))
	r.Use(observability.RequestMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", observability.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": serviceName,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		if !s.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":           s.Ready(),
			"active_sessions": s.ActiveSessions(),
			"uptime":          time.Since(s.started).String(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/board", func(c *gin.Context) {
		filter, err := filterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		snap := s.board.Snapshot(filter)
		c.JSON(http.StatusOK, boardSnapshot{
			Config: s.board.Config(),
			Count:  len(snap.Notes),
			Notes:  snap.Notes,
			Pins:   snap.Pins,
		})
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.cfg.CorsOrigins, r.Header.Get("Origin"))
		},
	}
	r.GET("/ws", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("server.ws_upgrade")
			return
		}
		ws.SetReadLimit(int64(s.cfg.Session.MaxLineBytes))
		s.ServeConn(ctx, newWSConn(ws), "ws")
	})

	return r
}

// ServeAdmin serves the admin router on ln until ctx is done.
func (s *Server) ServeAdmin(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server.admin_listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var errBadContains = errors.New("x and y must both be non-negative integers")

// filterFromQuery maps ?color=&x=&y=&refersTo= onto a board filter.
func filterFromQuery(c *gin.Context) (board.Filter, error) {
	var f board.Filter
	if color, ok := c.GetQuery("color"); ok {
		f = f.WithColor(color)
	}
	xs, hasX := c.GetQuery("x")
	ys, hasY := c.GetQuery("y")
	if hasX || hasY {
		x, errX := strconv.Atoi(xs)
		y, errY := strconv.Atoi(ys)
		if errX != nil || errY != nil || x < 0 || y < 0 {
			return board.Filter{}, errBadContains
		}
		f = f.WithContains(x, y)
	}
	if sub, ok := c.GetQuery("refersTo"); ok {
		f = f.WithRefersTo(sub)
	}
	return f, nil
}

// ValidateOrigins accepts "*" or absolute http(s) origins. cors.New panics on
// anything else.
func ValidateOrigins(origins []string) error {
	for _, o := range origins {
		switch {
		case o == "*":
		case strings.HasPrefix(o, "http://") && len(o) > len("http://"):
		case strings.HasPrefix(o, "https://") && len(o) > len("https://"):
		default:
			return fmt.Errorf("%w: %q needs an http:// or https:// scheme", ErrInvalidCorsOrigin, o)
		}
		if strings.ContainsAny(o, " \t") {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidCorsOrigin, o)
		}
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

// originAllowed accepts non-browser clients (no Origin) and configured origins.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range normalizeOrigins(allowed) {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
