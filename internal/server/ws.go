package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket to the line stream a session expects.
// Each inbound message is one or more lines; a missing trailing newline is
// supplied. Outbound, every complete line becomes one text message without
// its newline; a partial line waits for the rest.
type wsConn struct {
	ws *websocket.Conn

	reader   io.Reader
	lastByte byte

	writeMu sync.Mutex
	pending []byte
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws, lastByte: '\n'}
}

func (c *wsConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.reader == nil {
			typ, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return 0, io.EOF
				}
				return 0, err
			}
			if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if n > 0 {
			c.lastByte = p[n-1]
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if c.lastByte != '\n' {
				p[0] = '\n'
				c.lastByte = '\n'
				return 1, nil
			}
			continue
		}
		if err != nil {
			return 0, err
		}
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	buf := append(c.pending, p...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, buf[:i]); err != nil {
			c.pending = c.pending[:0]
			return 0, err
		}
		buf = buf[i+1:]
	}
	c.pending = append(c.pending[:0], buf...)
	return len(p), nil
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
