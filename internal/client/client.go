// Package client is a line-protocol client for bboardd.
package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/protocol"
	"github.com/danmuck/bboard/internal/transport"
)

var (
	ErrClosed          = errors.New("client: closed")
	ErrInvalidArgument = errors.New("client: invalid argument")
	ErrUnexpectedReply = errors.New("client: unexpected reply")
)

// ServerError is an ERROR reply from the server.
type ServerError struct {
	Kind   protocol.ErrorKind
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error %s", e.Kind)
	}
	return fmt.Sprintf("server error %s: %s", e.Kind, e.Detail)
}

// IsKind reports whether err is a ServerError of kind.
func IsKind(err error, kind protocol.ErrorKind) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Kind == kind
}

type Options struct {
	TLS transport.TLSConfig
	// Timeout bounds dial and each request round trip. Zero means no deadline.
	Timeout time.Duration
}

// Client issues one request at a time over a single connection.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	board   board.Config
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Dial connects, reads WELCOME, and returns a ready client.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	tlsCfg, err := opts.TLS.ClientTLS(addr)
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		tc := tls.Client(conn, tlsCfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		conn = tc
	}
	return handshake(ctx, conn, opts.Timeout)
}

// NewClient wraps an established connection and reads WELCOME from it.
func NewClient(conn net.Conn, timeout time.Duration) (*Client, error) {
	return handshake(context.Background(), conn, timeout)
}

func handshake(ctx context.Context, conn net.Conn, timeout time.Duration) (*Client, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	r := bufio.NewReader(conn)
	line, err := readLine(r)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("client: read welcome: %w", err)
	}
	cfg, err := protocol.ParseWelcome(line)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	return &Client{conn: conn, r: r, board: cfg, timeout: timeout}, nil
}

// Board returns the configuration announced in WELCOME.
func (c *Client) Board() board.Config {
	out := c.board
	out.Colors = append([]string(nil), c.board.Colors...)
	return out
}

func (c *Client) Post(x, y int, color, message string) error {
	if strings.ContainsAny(message, "\r\n") || strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message must be one non-empty line", ErrInvalidArgument)
	}
	if strings.TrimSpace(color) == "" || strings.ContainsAny(color, " \t\r\n") {
		return fmt.Errorf("%w: color must be one token", ErrInvalidArgument)
	}
	return c.simple(protocol.Command{Verb: protocol.VerbPost, X: x, Y: y, Color: color, Message: message})
}

func (c *Client) Pin(x, y int) error {
	return c.simple(protocol.Command{Verb: protocol.VerbPin, X: x, Y: y})
}

func (c *Client) Unpin(x, y int) error {
	return c.simple(protocol.Command{Verb: protocol.VerbUnpin, X: x, Y: y})
}

func (c *Client) Shake() error {
	return c.simple(protocol.Command{Verb: protocol.VerbShake})
}

func (c *Client) Clear() error {
	return c.simple(protocol.Command{Verb: protocol.VerbClear})
}

// Pins lists every pin in insertion order.
func (c *Client) Pins() ([]board.Pin, error) {
	lines, err := c.Raw("GET PINS")
	if err != nil {
		return nil, err
	}
	if _, err := statusOf(lines); err != nil {
		return nil, err
	}
	pins := make([]board.Pin, 0, len(lines)-1)
	for _, line := range lines[1:] {
		p, err := protocol.ParsePinLine(line)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// Notes lists notes matching f in board storage order.
func (c *Client) Notes(f board.Filter) ([]board.NoteView, error) {
	if f.RefersTo != nil && strings.ContainsAny(*f.RefersTo, "\r\n") {
		return nil, fmt.Errorf("%w: refersTo must be one line", ErrInvalidArgument)
	}
	lines, err := c.Raw(protocol.FormatGet(f))
	if err != nil {
		return nil, err
	}
	if _, err := statusOf(lines); err != nil {
		return nil, err
	}
	notes := make([]board.NoteView, 0, len(lines)-1)
	for _, line := range lines[1:] {
		n, err := protocol.ParseNoteLine(line)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// Raw sends one line and returns every reply line, including the counted
// body of a successful GET. ERROR replies are returned as lines, not errors.
func (c *Client) Raw(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("%w: request must be one non-empty line", ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
		defer c.conn.SetDeadline(time.Time{})
	}
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return nil, err
	}

	head, err := readLine(c.r)
	if err != nil {
		return nil, err
	}
	lines := []string{head}

	cmd, perr := protocol.Parse(line)
	if perr != nil || (cmd.Verb != protocol.VerbGet && cmd.Verb != protocol.VerbGetPins) {
		return lines, nil
	}
	st, err := protocol.ParseStatus(head)
	if err != nil {
		return nil, err
	}
	n, ok := st.Count()
	if !ok {
		return lines, nil
	}
	for i := 0; i < n; i++ {
		body, err := readLine(c.r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, body)
	}
	return lines, nil
}

// Disconnect says goodbye and closes the connection.
func (c *Client) Disconnect() error {
	lines, err := c.Raw("DISCONNECT")
	closeErr := c.Close()
	if err != nil {
		return err
	}
	if len(lines) != 1 || lines[0] != "OK BYE" {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, lines)
	}
	return closeErr
}

// Close drops the connection without DISCONNECT.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) simple(cmd protocol.Command) error {
	lines, err := c.Raw(cmd.String())
	if err != nil {
		return err
	}
	_, err = statusOf(lines)
	return err
}

// statusOf maps the head line to a Status, or a *ServerError for ERROR.
func statusOf(lines []string) (protocol.Status, error) {
	if len(lines) == 0 {
		return protocol.Status{}, ErrUnexpectedReply
	}
	st, err := protocol.ParseStatus(lines[0])
	if err != nil {
		return protocol.Status{}, err
	}
	if !st.OK {
		return st, &ServerError{Kind: st.Kind, Detail: st.Text}
	}
	return st, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
