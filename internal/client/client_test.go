package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/protocol"
	"github.com/danmuck/bboard/internal/server"
	"github.com/danmuck/bboard/internal/testutil/testlog"
	"github.com/danmuck/bboard/internal/testutil/tlstest"
	"github.com/danmuck/bboard/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBoard = board.Config{BoardW: 100, BoardH: 100, NoteW: 10, NoteH: 10, Colors: []string{"red", "blue"}}

func startServer(t *testing.T, ln net.Listener, tlsCfg transport.TLSConfig) *server.Server {
	t.Helper()
	b, err := board.New(testBoard)
	require.NoError(t, err)
	cfg := server.DefaultConfig()
	cfg.TLS = tlsCfg
	s := server.New(b, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func dialTest(t *testing.T) (*Client, *server.Server) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := startServer(t, ln, transport.TLSConfig{})

	c, err := Dial(context.Background(), ln.Addr().String(), Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestClientWelcome(t *testing.T) {
	testlog.Start(t)
	c, _ := dialTest(t)
	assert.Equal(t, testBoard, c.Board())
}

func TestClientScenario(t *testing.T) {
	testlog.Start(t)
	c, _ := dialTest(t)

	require.NoError(t, c.Post(0, 0, "red", "hi"))
	err := c.Post(0, 0, "blue", "bye")
	require.Error(t, err)
	assert.True(t, IsKind(err, protocol.KindCompleteOverlap))

	require.NoError(t, c.Pin(5, 5))
	require.NoError(t, c.Shake())
	notes, err := c.Notes(board.Filter{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Pinned)

	require.NoError(t, c.Unpin(5, 5))
	require.NoError(t, c.Shake())
	notes, err = c.Notes(board.Filter{})
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestClientServerErrors(t *testing.T) {
	testlog.Start(t)
	c, _ := dialTest(t)

	err := c.Post(95, 0, "red", "x")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, protocol.KindOutOfBounds, se.Kind)
	assert.Equal(t, "Note exceeds board boundaries", se.Detail)

	err = c.Post(0, 0, "Green", "x")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, protocol.KindColorNotSupported, se.Kind)
	assert.Equal(t, "green", se.Detail)

	assert.True(t, IsKind(c.Pin(1, 1), protocol.KindNoNoteAtCoordinate))
	require.NoError(t, c.Post(0, 0, "red", "x"))
	assert.True(t, IsKind(c.Unpin(1, 1), protocol.KindPinNotFound))
}

func TestClientFilteredNotesAndPins(t *testing.T) {
	testlog.Start(t)
	c, _ := dialTest(t)

	require.NoError(t, c.Post(0, 0, "red", "my cat  sleeps PINNED=no"))
	require.NoError(t, c.Post(1, 1, "blue", "my cat"))
	require.NoError(t, c.Post(60, 60, "red", "far dog"))
	require.NoError(t, c.Pin(2, 2))
	require.NoError(t, c.Pin(61, 61))

	notes, err := c.Notes(board.Filter{}.WithColor("red").WithContains(5, 5).WithRefersTo("cat  sleeps"))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "my cat  sleeps PINNED=no", notes[0].Message)
	assert.True(t, notes[0].Pinned)

	pins, err := c.Pins()
	require.NoError(t, err)
	assert.Equal(t, []board.Pin{{X: 2, Y: 2}, {X: 61, Y: 61}}, pins)

	require.NoError(t, c.Clear())
	pins, err = c.Pins()
	require.NoError(t, err)
	assert.Empty(t, pins)
}

func TestClientRaw(t *testing.T) {
	testlog.Start(t)
	c, _ := dialTest(t)

	lines, err := c.Raw("jump")
	require.NoError(t, err)
	assert.Equal(t, []string{"ERROR INVALID_FORMAT Unknown command"}, lines)

	lines, err = c.Raw("GET size=3")
	require.NoError(t, err)
	assert.Equal(t, []string{"ERROR INVALID_FORMAT GET has invalid filter format"}, lines)

	require.NoError(t, c.Post(3, 3, "red", "raw"))
	lines, err = c.Raw("get color=red")
	require.NoError(t, err)
	assert.Equal(t, []string{"OK 1", "NOTE 3 3 red raw PINNED=false"}, lines)

	_, err = c.Raw("POST 1 1 red a\nCLEAR")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = c.Raw("   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestClientRejectsInvalidArguments(t *testing.T) {
	testlog.Start(t)
	c, s := dialTest(t)

	assert.ErrorIs(t, c.Post(0, 0, "red", "two\nlines"), ErrInvalidArgument)
	assert.ErrorIs(t, c.Post(0, 0, "red", "  "), ErrInvalidArgument)
	assert.ErrorIs(t, c.Post(0, 0, "dark red", "x"), ErrInvalidArgument)
	assert.Equal(t, 0, s.Board().Stats().Notes)
}

func TestClientDisconnect(t *testing.T) {
	testlog.Start(t)
	c, s := dialTest(t)

	require.NoError(t, c.Disconnect())
	_, err := c.Raw("GET")
	assert.True(t, errors.Is(err, ErrClosed))
	require.NoError(t, c.Close())

	deadline := time.Now().Add(2 * time.Second)
	for s.ActiveSessions() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int64(0), s.ActiveSessions())
}

func TestClientOverMutualTLS(t *testing.T) {
	testlog.Start(t)

	ca := tlstest.NewAuthority(t, "bboard-test-ca")
	srv := ca.Server(t, "bboardd", "127.0.0.1")
	cli := ca.Client(t, "bboardctl")

	serverTLS := transport.TLSConfig{Enabled: true, Mutual: true, CertFile: srv.CertFile, KeyFile: srv.KeyFile, CAFile: ca.CAFile()}
	ln, err := transport.Listen("127.0.0.1:0", serverTLS)
	require.NoError(t, err)
	startServer(t, ln, serverTLS)

	c, err := Dial(context.Background(), ln.Addr().String(), Options{
		Timeout: 2 * time.Second,
		TLS:     transport.TLSConfig{Enabled: true, Mutual: true, CertFile: cli.CertFile, KeyFile: cli.KeyFile, CAFile: ca.CAFile()},
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Post(0, 0, "blue", "secure"))
	notes, err := c.Notes(board.Filter{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "secure", notes[0].Message)
}
