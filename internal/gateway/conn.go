package gateway

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// ReadLimit caps the size of a single inbound gateway frame.
const ReadLimit = 4 << 20

// Close codes. Closing with 1000 invalidates the session server-side, so
// reconnects use a private code to keep it resumable.
const (
	closeNormal    = websocket.StatusNormalClosure
	closeResumable = websocket.StatusCode(4000)
)

// Conn is a full-duplex frame connection to the gateway.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens a Conn to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer dials the gateway over a real websocket.
func WebsocketDialer(readLimit int64) DialFunc {
	return func(ctx context.Context, url string) (Conn, error) {
		c, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial: %w", err)
		}
		c.SetReadLimit(readLimit)
		return &wsConn{c: c}, nil
	}
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close(code websocket.StatusCode, reason string) error {
	return w.c.Close(code, reason)
}
