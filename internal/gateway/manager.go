// Package gateway maintains the realtime connection to the chat gateway:
// handshake, heartbeats, resume, and decoding of the dispatches the bot uses.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/countingbot/internal/jsoncodec"
	"github.com/ashureev/countingbot/internal/metrics"
)

// DefaultURL is the public gateway endpoint.
const DefaultURL = "wss://gateway.discord.gg"

// DefaultReconnectDelay is the fixed backoff between connection attempts.
const DefaultReconnectDelay = 2500 * time.Millisecond

var (
	errReconnectRequested = errors.New("gateway requested reconnect")
	errInvalidSession     = errors.New("gateway invalidated session")
	errNoHeartbeat        = errors.New("hello without heartbeat interval")
)

// Config controls how the Manager connects.
type Config struct {
	Token          string
	Intents        int
	URL            string
	ReconnectDelay time.Duration
	// EventBuffer is the capacity of the event channel.
	EventBuffer int
}

// Hooks are invoked synchronously from the connection goroutine and must not block.
type Hooks struct {
	OnDisconnect func(err error)
	OnReady      func(Ready)
	OnResumed    func()
}

// resumeState survives across sessions so a dropped connection can resume.
type resumeState struct {
	sessionID string
	url       string
	seq       int64
}

func (r resumeState) resumable() bool {
	return r.sessionID != "" && r.url != ""
}

// Manager owns the gateway connection and reconnects forever until its
// context is cancelled.
type Manager struct {
	cfg    Config
	dial   DialFunc
	hooks  Hooks
	logger *slog.Logger
	events chan Event

	mu      sync.Mutex
	session *Session
	resume  resumeState
}

// NewManager creates a Manager. Call Serve to start connecting.
func NewManager(cfg Config, dial DialFunc, hooks Hooks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Intents == 0 {
		cfg.Intents = DefaultIntents
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if dial == nil {
		dial = WebsocketDialer(ReadLimit)
	}
	return &Manager{
		cfg:    cfg,
		dial:   dial,
		hooks:  hooks,
		logger: logger.With("component", "gateway"),
		events: make(chan Event, cfg.EventBuffer),
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *Manager) String() string {
	return "gateway"
}

// Events returns the channel decoded dispatches are delivered on.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Stream yields events until ctx is cancelled or the consumer stops.
func (m *Manager) Stream(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-m.events:
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// Connected reports whether a session is live.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.Alive()
}

// Resumable reports whether the next connection will attempt a resume.
func (m *Manager) Resumable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resume.resumable()
}

// Serve connects and reconnects until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context) error {
	for {
		err := m.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		metrics.GatewayDisconnects.Inc()
		m.logger.Warn("Gateway connection lost, reconnecting",
			"error", err,
			"delay", m.cfg.ReconnectDelay,
			"resumable", m.Resumable())
		if m.hooks.OnDisconnect != nil {
			m.hooks.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

func (m *Manager) runOnce(ctx context.Context) error {
	m.mu.Lock()
	state := m.resume
	m.mu.Unlock()

	resuming := state.resumable()
	base := m.cfg.URL
	if resuming {
		base = state.url
	}

	conn, err := m.dial(ctx, strings.TrimRight(base, "/")+connectQuery)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	sess := newSession(conn)
	m.setSession(sess)

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		if ctx.Err() != nil {
			sess.close(closeNormal, "shutting down")
		} else {
			sess.close(closeResumable, "reconnecting")
		}
		m.clearSession(sess)
	}()

	interval, err := m.awaitHello(connCtx, sess)
	if err != nil {
		return err
	}
	sess.interval = interval

	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.heartbeatLoop(connCtx, m.logger)
	}()

	if resuming {
		err = sess.send(connCtx, OpResume, resumePayload{
			Token:     m.cfg.Token,
			SessionID: state.sessionID,
			Seq:       state.seq,
		})
		metrics.GatewayConnects.WithLabelValues("resume").Inc()
	} else {
		err = sess.send(connCtx, OpIdentify, identifyPayload{
			Token:   m.cfg.Token,
			Intents: m.cfg.Intents,
			Properties: identifyProperties{
				OS:      "linux",
				Browser: "countingbot",
				Device:  "countingbot",
			},
		})
		metrics.GatewayConnects.WithLabelValues("identify").Inc()
	}
	if err != nil {
		return err
	}
	sess.alive.Store(true)
	m.logger.Info("Gateway handshake sent", "resume", resuming, "heartbeat_interval", interval)

	for {
		data, err := sess.conn.Read(connCtx)
		if err != nil {
			m.checkCloseStatus(err)
			return fmt.Errorf("read gateway: %w", err)
		}
		if err := m.handleFrame(connCtx, sess, data); err != nil {
			return err
		}
	}
}

func (m *Manager) awaitHello(ctx context.Context, sess *Session) (time.Duration, error) {
	for {
		data, err := sess.conn.Read(ctx)
		if err != nil {
			return 0, fmt.Errorf("await hello: %w", err)
		}
		var f frame
		if err := jsoncodec.Unmarshal(data, &f); err != nil {
			metrics.GatewayMalformedFrames.Inc()
			m.logger.Warn("Dropping malformed frame before hello", "error", err)
			continue
		}
		if f.Op != OpHello {
			m.logger.Debug("Ignoring frame before hello", "op", f.Op)
			continue
		}
		var hello helloPayload
		if err := jsoncodec.Unmarshal(f.D, &hello); err != nil {
			return 0, fmt.Errorf("decode hello: %w", err)
		}
		if hello.HeartbeatInterval <= 0 {
			return 0, errNoHeartbeat
		}
		return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
	}
}

// handleFrame processes one inbound frame. A non-nil error ends the session.
func (m *Manager) handleFrame(ctx context.Context, sess *Session, data []byte) error {
	var f frame
	if err := jsoncodec.Unmarshal(data, &f); err != nil {
		metrics.GatewayMalformedFrames.Inc()
		m.logger.Warn("Dropping malformed frame", "error", err, "size", len(data))
		return nil
	}

	switch f.Op {
	case OpDispatch:
		if f.S != nil {
			m.setSeq(*f.S)
		}
		return m.dispatch(ctx, f)

	case OpHeartbeat:
		if err := sess.sendHeartbeat(ctx); err != nil {
			return err
		}

	case OpHeartbeatAck:
		metrics.GatewayHeartbeats.WithLabelValues("ack").Inc()

	case OpReconnect:
		return errReconnectRequested

	case OpInvalidSession:
		var resumable bool
		_ = jsoncodec.Unmarshal(f.D, &resumable)
		if !resumable {
			m.resetResume()
		}
		return errInvalidSession

	case OpHello:
		m.logger.Debug("Ignoring repeated hello")

	default:
		m.logger.Debug("Ignoring unknown opcode", "op", f.Op)
	}
	return nil
}

func (m *Manager) dispatch(ctx context.Context, f frame) error {
	metrics.GatewayEvents.WithLabelValues(f.T).Inc()

	ev, ok, err := decodeDispatch(f)
	if err != nil {
		metrics.GatewayMalformedFrames.Inc()
		m.logger.Warn("Dropping undecodable dispatch", "type", f.T, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	switch ev.Type {
	case EventReady:
		m.mu.Lock()
		m.resume.sessionID = ev.Ready.SessionID
		m.resume.url = ev.Ready.ResumeURL
		m.mu.Unlock()
		m.logger.Info("Gateway ready", "session_id", ev.Ready.SessionID, "self_id", ev.Ready.SelfID)
		if m.hooks.OnReady != nil {
			m.hooks.OnReady(*ev.Ready)
		}
	case EventResumed:
		m.logger.Info("Gateway session resumed")
		if m.hooks.OnResumed != nil {
			m.hooks.OnResumed()
		}
	}

	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
	return nil
}

// checkCloseStatus drops resume state for close codes that reject a resume.
func (m *Manager) checkCloseStatus(err error) {
	switch websocket.CloseStatus(err) {
	case 4007, 4009:
		m.resetResume()
	}
}

func (m *Manager) setSeq(seq int64) {
	m.mu.Lock()
	m.resume.seq = seq
	m.mu.Unlock()
	metrics.GatewaySequence.Set(float64(seq))
}

func (m *Manager) resetResume() {
	m.mu.Lock()
	m.resume = resumeState{}
	m.mu.Unlock()
}

func (m *Manager) setSession(s *Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

func (m *Manager) clearSession(s *Session) {
	m.mu.Lock()
	if m.session == s {
		m.session = nil
	}
	m.mu.Unlock()
}
