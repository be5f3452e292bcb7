package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/observability"
	"github.com/danmuck/bboard/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrLineTooLong = errors.New("session: line too long")

// State is the session lifecycle phase.
type State int32

const (
	StateHandshaking State = iota
	StateServing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// close reasons, used as a metrics label.
const (
	reasonEOF        = "eof"
	reasonDisconnect = "disconnect"
	reasonShutdown   = "shutdown"
	reasonReadError  = "read_error"
	reasonWriteError = "write_error"
)

// Session serves the line protocol over one connection.
type Session struct {
	id         string
	remote     string
	conn       io.ReadWriteCloser
	cfg        Config
	welcome    string
	dispatcher *protocol.Dispatcher
	logger     zerolog.Logger

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
	commands  atomic.Uint64
}

// New binds conn to the shared board. Nothing is written until Run.
func New(conn io.ReadWriteCloser, b *board.Board, cfg Config) *Session {
	cfg = cfg.WithDefaults()
	id := uuid.NewString()
	remote := remoteOf(conn)
	return &Session{
		id:         id,
		remote:     remote,
		conn:       conn,
		cfg:        cfg,
		welcome:    protocol.FormatWelcome(b.Config()),
		dispatcher: protocol.NewDispatcher(b),
		logger:     observability.SessionLogger(id, remote, cfg.Transport),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Remote() string {
	return s.remote
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Commands returns how many non-blank lines were dispatched.
func (s *Session) Commands() uint64 {
	return s.commands.Load()
}

// Run performs the handshake and serves until EOF, I/O failure, DISCONNECT,
// or ctx cancellation. Cancellation closes the connection to unblock the read.
// A client going away is not an error; transport failures are returned for logging.
func (s *Session) Run(ctx context.Context) error {
	opened := time.Now()
	reason := reasonEOF
	observability.SessionOpened(s.cfg.Transport)
	s.logger.Info().Msg("session.open")

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer func() {
		stop()
		_ = s.Close()
		observability.SessionClosed(s.cfg.Transport, reason, time.Since(opened))
		s.logger.Info().
			Str("reason", reason).
			Uint64("commands", s.Commands()).
			Dur("lifetime", time.Since(opened)).
			Msg("session.close")
	}()

	w := bufio.NewWriter(s.conn)
	if err := writeLines(w, s.welcome); err != nil {
		reason = s.failureReason(ctx, reasonWriteError)
		return s.transportErr(ctx, "handshake", err)
	}
	if !s.state.CompareAndSwap(int32(StateHandshaking), int32(StateServing)) {
		reason = reasonShutdown
		return nil
	}

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, min(4096, s.cfg.MaxLineBytes)), s.cfg.MaxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.commands.Add(1)

		start := time.Now()
		reply := s.dispatcher.Handle(line)
		observability.RecordCommand(string(reply.Verb), reply.Status, time.Since(start))
		s.logger.Debug().
			Str("verb", string(reply.Verb)).
			Str("status", reply.Status).
			Int("lines", len(reply.Lines)).
			Msg("session.command")

		if err := writeLines(w, reply.Lines...); err != nil {
			reason = s.failureReason(ctx, reasonWriteError)
			return s.transportErr(ctx, "write", err)
		}
		if reply.Close {
			reason = reasonDisconnect
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		reason = s.failureReason(ctx, reasonReadError)
		if errors.Is(err, bufio.ErrTooLong) {
			err = fmt.Errorf("%w (max %d bytes)", ErrLineTooLong, s.cfg.MaxLineBytes)
		}
		return s.transportErr(ctx, "read", err)
	}
	return nil
}

// Close releases the connection. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// failureReason reports shutdown instead of an I/O failure caused by ctx.
func (s *Session) failureReason(ctx context.Context, reason string) string {
	if ctx.Err() != nil {
		return reasonShutdown
	}
	return reason
}

func (s *Session) transportErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	s.logger.Warn().Err(err).Str("op", op).Msg("session.transport_error")
	return fmt.Errorf("session %s: %s: %w", s.id, op, err)
}

func writeLines(w *bufio.Writer, lines ...string) error {
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func remoteOf(conn io.ReadWriteCloser) string {
	if rc, ok := conn.(interface{ RemoteAddr() net.Addr }); ok && rc.RemoteAddr() != nil {
		return rc.RemoteAddr().String()
	}
	return "unknown"
}
