package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// WSWriter carries the same frames as SSEWriter, one text message per frame.
// Keepalives are WebSocket pings.
type WSWriter struct {
	conn *websocket.Conn
}

func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn}
}

func (w *WSWriter) WriteFrame(frame []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

func (w *WSWriter) WriteKeepalive() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (w *WSWriter) Transport() string { return "websocket" }

// WatchClose reads and discards client messages, calling cancel once the
// connection fails or the client closes it. It returns immediately.
func WatchClose(conn *websocket.Conn, cancel context.CancelFunc) {
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}
