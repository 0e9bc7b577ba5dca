package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/countingbot/internal/jsoncodec"
	"github.com/ashureev/countingbot/internal/metrics"
)

// Session is one live gateway connection. It is discarded when the
// connection drops; the resumable identity lives on the Manager.
type Session struct {
	conn     Conn
	interval time.Duration

	writeMu   sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
}

func newSession(conn Conn) *Session {
	return &Session{conn: conn}
}

// Alive reports whether the handshake completed and the connection is open.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

func (s *Session) send(ctx context.Context, op int, d any) error {
	data, err := jsoncodec.Marshal(outboundFrame{Op: op, D: d})
	if err != nil {
		return fmt.Errorf("encode op %d: %w", op, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.Write(ctx, data); err != nil {
		return fmt.Errorf("write op %d: %w", op, err)
	}
	return nil
}

func (s *Session) sendHeartbeat(ctx context.Context) error {
	if err := s.send(ctx, OpHeartbeat, nil); err != nil {
		return err
	}
	metrics.GatewayHeartbeats.WithLabelValues("sent").Inc()
	return nil
}

// heartbeatLoop runs independently of the read loop so a slow consumer never
// delays heartbeats. A failed write closes the connection, which unblocks the
// reader.
func (s *Session) heartbeatLoop(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(ctx); err != nil {
				if ctx.Err() == nil {
					logger.Warn("Heartbeat failed, closing connection", "error", err)
					s.close(closeResumable, "heartbeat failed")
				}
				return
			}
		}
	}
}

func (s *Session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		_ = s.conn.Close(code, reason)
	})
}
