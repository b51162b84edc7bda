package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSSender adapts a *websocket.Conn to playback.Sender, serializing writes
// since gorilla/websocket forbids concurrent writers on one connection.
type WSSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *slog.Logger
}

func NewWSSender(conn *websocket.Conn) *WSSender {
	return &WSSender{conn: conn, log: slog.With("component", "transport")}
}

// Send writes one pre-built JSON envelope as a text frame.
func (w *WSSender) Send(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		w.conn.SetWriteDeadline(deadline)
	} else {
		w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (w *WSSender) Close() error {
	return w.conn.Close()
}
