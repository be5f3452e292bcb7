package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/observability"
	"github.com/danmuck/bboard/internal/session"
	"github.com/danmuck/bboard/internal/transport"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("server: invalid heartbeat interval")
	ErrListenAddrRequired       = errors.New("server: listen addr required")
	ErrInvalidCorsOrigin        = errors.New("server: invalid cors origin")
)

// Config is the process-level serving configuration.
type Config struct {
	ListenAddr        string
	AdminListenAddr   string
	HeartbeatInterval time.Duration
	CorsOrigins       []string
	Session           session.Config
	TLS               transport.TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":7777",
		AdminListenAddr:   "",
		HeartbeatInterval: 30 * time.Second,
		Session:           session.DefaultConfig(),
	}
}

// Server accepts clients and runs one session per connection.
type Server struct {
	board  *board.Board
	cfg    Config
	logger zerolog.Logger

	started time.Time
	ready   atomic.Bool
	active  atomic.Int64
	total   atomic.Uint64

	mu       sync.Mutex
	sessions map[*session.Session]struct{}
	wg       sync.WaitGroup
}

func New(b *board.Board, cfg Config) *Server {
	cfg.Session = cfg.Session.WithDefaults()
	return &Server{
		board:    b,
		cfg:      cfg,
		logger:   observability.ComponentLogger("server"),
		started:  time.Now(),
		sessions: make(map[*session.Session]struct{}),
	}
}

func (s *Server) Board() *board.Board {
	return s.board
}

// ActiveSessions reports sessions currently between handshake and close.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// TotalSessions reports every session accepted since start.
func (s *Server) TotalSessions() uint64 {
	return s.total.Load()
}

// Ready reports whether the line listener is accepting.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Run opens the configured listeners and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if strings.TrimSpace(s.cfg.ListenAddr) == "" {
		return ErrListenAddrRequired
	}
	if err := ValidateOrigins(s.cfg.CorsOrigins); err != nil {
		return err
	}

	ln, err := transport.Listen(strings.TrimSpace(s.cfg.ListenAddr), s.cfg.TLS)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	adminErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		adminLn, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			<-serveErr
			return err
		}
		go func() {
			adminErr <- s.ServeAdmin(ctx, adminLn)
		}()
	}

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("server.shutdown")
			return <-serveErr
		case err := <-serveErr:
			return err
		case err := <-adminErr:
			if err != nil {
				cancel()
				<-serveErr
				return err
			}
		case <-ticker.C:
			stats := s.board.Stats()
			s.logger.Info().
				Int64("active_sessions", s.ActiveSessions()).
				Uint64("total_sessions", s.TotalSessions()).
				Int("notes", stats.Notes).
				Int("pins", stats.Pins).
				Dur("uptime", time.Since(s.started)).
				Msg("server.heartbeat")
		}
	}
}

// Serve accepts on ln until ctx is done or Accept fails. Live sessions are
// closed and awaited before Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.closeSessions()
		s.wg.Wait()
	}()
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.ready.Store(true)
	defer s.ready.Store(false)
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("transport", s.cfg.TLS.Name()).
		Msg("server.listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error().Err(err).Msg("server.accept")
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn, s.cfg.TLS.Name())
		}()
	}
}

// ServeConn runs one session on conn and blocks until it ends.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser, transportName string) {
	cfg := s.cfg.Session
	cfg.Transport = transportName
	sess := session.New(conn, s.board, cfg)

	s.track(sess)
	defer s.untrack(sess)

	if err := sess.Run(ctx); err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID()).Msg("server.session_error")
	}
}

func (s *Server) track(sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.total.Add(1)
	active := s.active.Add(1)
	s.logger.Debug().Str("session", sess.ID()).Str("remote", sess.Remote()).Int64("active_sessions", active).Msg("server.client_connected")
}

func (s *Server) untrack(sess *session.Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	remaining := s.active.Add(-1)
	s.logger.Debug().Str("session", sess.ID()).Int64("active_sessions", remaining).Msg("server.client_disconnected")
}

// closeSessions force-closes every live session.
func (s *Server) closeSessions() {
	s.mu.Lock()
	live := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		_ = sess.Close()
	}
}
