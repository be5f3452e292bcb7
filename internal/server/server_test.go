package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b, err := board.New(board.Config{BoardW: 100, BoardH: 100, NoteW: 10, NoteH: 10, Colors: []string{"red", "blue"}})
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	return New(b, cfg)
}

type lineClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialLine(t *testing.T, addr string) *lineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &lineClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *lineClient) roundTrip(t *testing.T, line string, replies int) []string {
	t.Helper()
	_ = c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	if line != "" {
		if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
	}
	out := make([]string, 0, replies)
	for i := 0; i < replies; i++ {
		got, err := c.r.ReadString('\n')
		if err != nil {
			t.Fatalf("read reply to %q: %v", line, err)
		}
		out = append(out, strings.TrimRight(got, "\r\n"))
	}
	return out
}

func startServe(t *testing.T, s *Server) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(cancel)
	return ln.Addr().String(), cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestServeSharesBoardAcrossClients(t *testing.T) {
	testlog.Start(t)

	s := newTestServer(t)
	addr, cancel, done := startServe(t, s)

	alice := dialLine(t, addr)
	bob := dialLine(t, addr)
	if got := alice.roundTrip(t, "", 1); got[0] != "WELCOME 100 100 10 10 red blue" {
		t.Fatalf("unexpected welcome %q", got[0])
	}
	bob.roundTrip(t, "", 1)
	waitFor(t, func() bool { return s.ActiveSessions() == 2 })

	if got := alice.roundTrip(t, "POST 0 0 red hi", 1); got[0] != "OK NOTE_POSTED" {
		t.Fatalf("post: %q", got)
	}
	if got := bob.roundTrip(t, "PIN 5 5", 1); got[0] != "OK PIN_ADDED" {
		t.Fatalf("pin: %q", got)
	}
	got := alice.roundTrip(t, "GET", 2)
	if got[0] != "OK 1" || got[1] != "NOTE 0 0 red hi PINNED=true" {
		t.Fatalf("get: %q", got)
	}

	if got := bob.roundTrip(t, "DISCONNECT", 1); got[0] != "OK BYE" {
		t.Fatalf("disconnect: %q", got)
	}
	waitFor(t, func() bool { return s.ActiveSessions() == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop")
	}
	if s.ActiveSessions() != 0 {
		t.Fatalf("expected no active sessions after shutdown, got %d", s.ActiveSessions())
	}
	if s.TotalSessions() != 2 {
		t.Fatalf("expected 2 total sessions, got %d", s.TotalSessions())
	}
	if _, err := alice.r.ReadString('\n'); err == nil {
		t.Fatalf("expected closed connection after shutdown")
	}
}

func TestServeConcurrentPostsAreSerialized(t *testing.T) {
	testlog.Start(t)

	s := newTestServer(t)
	addr, _, _ := startServe(t, s)

	const clients = 8
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(3 * time.Second))
			r := bufio.NewReader(conn)
			if _, err := r.ReadString('\n'); err != nil {
				errs <- err
				return
			}
			if _, err := conn.Write([]byte("POST 40 40 blue race\n")); err != nil {
				errs <- err
				return
			}
			_, err = r.ReadString('\n')
			errs <- err
		}()
	}
	for i := 0; i < clients; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("client: %v", err)
		}
	}
	if st := s.Board().Stats(); st.Notes != 1 {
		t.Fatalf("expected exactly one winner at (40,40), got %d notes", st.Notes)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	s := newTestServer(t)
	s.cfg.HeartbeatInterval = 0
	if err := s.Run(context.Background()); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected ErrInvalidHeartbeatInterval, got %v", err)
	}

	s = newTestServer(t)
	s.cfg.ListenAddr = " "
	if err := s.Run(context.Background()); !errors.Is(err, ErrListenAddrRequired) {
		t.Fatalf("expected ErrListenAddrRequired, got %v", err)
	}

	s = newTestServer(t)
	s.cfg.CorsOrigins = []string{"localhost:3000"}
	if err := s.Run(context.Background()); !errors.Is(err, ErrInvalidCorsOrigin) {
		t.Fatalf("expected ErrInvalidCorsOrigin, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)

	s := newTestServer(t)
	s.cfg.AdminListenAddr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, s.Ready)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestAdminRoutes(t *testing.T) {
	testlog.Start(t)

	s := newTestServer(t)
	b := s.Board()
	if b.Post(0, 0, "red", "hello cat") != board.Posted || b.Post(50, 50, "blue", "dog") != board.Posted {
		t.Fatalf("seed board")
	}
	if b.Pin(1, 1) != board.PinAdded {
		t.Fatalf("seed pin")
	}
	router := s.Router(context.Background())

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := get("/health"); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	if rr := get("/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before serve: expected 503, got %d", rr.Code)
	}

	rr := get("/board")
	if rr.Code != http.StatusOK {
		t.Fatalf("board: %d body=%s", rr.Code, rr.Body.String())
	}
	var snap boardSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if snap.Count != 2 || len(snap.Pins) != 1 || !snap.Notes[0].Pinned || snap.Notes[1].Pinned {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Config.BoardW != 100 || len(snap.Config.Colors) != 2 {
		t.Fatalf("unexpected config: %+v", snap.Config)
	}

	rr = get("/board?color=RED&x=5&y=5&refersTo=cat")
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode filtered board: %v", err)
	}
	if snap.Count != 1 || snap.Notes[0].Message != "hello cat" {
		t.Fatalf("unexpected filtered snapshot: %+v", snap)
	}

	if rr := get("/board?x=5"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for half a coordinate, got %d", rr.Code)
	}

	rr = get("/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "bboard_board_notes") {
		t.Fatalf("metrics missing board gauge: %d", rr.Code)
	}
}

func TestWebsocketBridge(t *testing.T) {
	testlog.Start(t)

	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hs := httptest.NewServer(s.Router(ctx))
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() string {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read ws: %v", err)
		}
		return string(msg)
	}

	if got := read(); got != "WELCOME 100 100 10 10 red blue" {
		t.Fatalf("unexpected welcome %q", got)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("POST 0 0 red over ws")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := read(); got != "OK NOTE_POSTED" {
		t.Fatalf("unexpected post reply %q", got)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("GET\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, want := range []string{"OK 1", "NOTE 0 0 red over ws PINNED=false"} {
		if got := read(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if s.Board().Stats().Notes != 1 {
		t.Fatalf("ws session did not reach shared board")
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("DISCONNECT")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := read(); got != "OK BYE" {
		t.Fatalf("unexpected bye %q", got)
	}
	waitFor(t, func() bool { return s.ActiveSessions() == 0 })
}

func TestWebsocketLargeReplyKeepsLines(t *testing.T) {
	testlog.Start(t)

	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hs := httptest.NewServer(s.Router(ctx))
	defer hs.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() string {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read ws: %v", err)
		}
		return string(msg)
	}
	read()

	body := strings.Repeat("x", 3000)
	for i := 0; i < 3; i++ {
		line := fmt.Sprintf("POST %d 0 red %s", i*10, body)
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := read(); got != "OK NOTE_POSTED" {
			t.Fatalf("unexpected post reply %q", got)
		}
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("GET")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := read(); got != "OK 3" {
		t.Fatalf("unexpected count %q", got)
	}
	for i := 0; i < 3; i++ {
		want := fmt.Sprintf("NOTE %d 0 red %s PINNED=false", i*10, body)
		if got := read(); got != want {
			t.Fatalf("note %d split or wrong: %d bytes", i, len(got))
		}
	}
}

func TestOriginAllowed(t *testing.T) {
	if !originAllowed(nil, "") {
		t.Fatalf("empty origin should pass")
	}
	if !originAllowed(nil, "http://localhost:3000") {
		t.Fatalf("default origin should pass")
	}
	if originAllowed([]string{"https://board.example"}, "http://evil.example") {
		t.Fatalf("foreign origin should be rejected")
	}
	if !originAllowed([]string{"*"}, "http://any.example") {
		t.Fatalf("wildcard should pass")
	}
}
