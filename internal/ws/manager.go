// Package ws maintains a resilient WebSocket connection with reconnect,
// backoff and an outgoing message queue.
//
// DESIGN: One Manager owns one connection to one URL. The run loop dials,
// serves, and redials forever until Close; the delay between dial attempts
// doubles up to a cap and resets after a successful connect. Outgoing
// messages go through a bounded queue: while disconnected they simply wait
// there, and the writer pump drains the queue whenever a connection is up.
//
// Lifecycle transitions and inbound messages are published through the
// hook registry (PointSocketConnected, PointSocketDisconnected,
// PointSocketMessage), so consumers attach behavior without the manager
// knowing about them.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hookline/fetch-relay/internal/hooks"
	"github.com/hookline/fetch-relay/internal/monitoring"
)

// Sentinel errors returned by Send.
var (
	ErrQueueFull = errors.New("socket send queue is full")
	ErrClosed    = errors.New("socket manager is closed")
)

// Reconnect attempts beyond this count are flagged as flapping.
const flapThreshold = 5

// Config contains socket manager settings.
type Config struct {
	URL               string
	ReconnectDelay    time.Duration // initial delay between dial attempts
	MaxReconnectDelay time.Duration // cap for the doubled delay
	QueueSize         int           // outgoing queue capacity
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	return c
}

// Manager maintains the connection. Safe for concurrent use.
type Manager struct {
	cfg       Config
	reg       *hooks.Registry
	metrics   *monitoring.MetricsCollector
	alerts    *monitoring.AlertManager
	tracker   *monitoring.Tracker
	sessionID string

	queue chan []byte

	// pending holds a frame that was dequeued but not yet written when the
	// connection failed. Only the run loop's serve goroutines touch it, and
	// they never overlap.
	pending []byte

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional collaborators.
type Option func(*Manager)

// WithMetrics sets the metrics collector.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(m *Manager) { m.metrics = mc }
}

// WithAlerts sets the alert manager.
func WithAlerts(am *monitoring.AlertManager) Option {
	return func(m *Manager) { m.alerts = am }
}

// WithTracker sets the telemetry tracker.
func WithTracker(t *monitoring.Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// NewManager creates a Manager. Start must be called before messages flow.
func NewManager(cfg Config, reg *hooks.Registry, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg.withDefaults(),
		reg:       reg,
		sessionID: uuid.New().String(),
	}
	m.queue = make(chan []byte, m.cfg.QueueSize)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionID returns the manager's session identifier.
func (m *Manager) SessionID() string { return m.sessionID }

// Start launches the connection loop. It returns immediately; dialing and
// reconnecting happen in the background until ctx is cancelled or Close is
// called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return errors.New("socket manager already started")
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(runCtx)
	}()

	return nil
}

// Send enqueues one outgoing message. Messages sent while disconnected
// wait in the queue and are drained on (re)connect.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case m.queue <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the connection loop and waits for it to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}

// run dials, serves, and redials until ctx is done.
func (m *Manager) run(ctx context.Context) {
	attempt := 0
	delay := m.cfg.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.Dial(ctx, m.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if m.metrics != nil {
				m.metrics.RecordSocketReconnect()
			}
			if m.alerts != nil && attempt >= flapThreshold {
				m.alerts.FlagSocketFlap(m.sessionID, m.cfg.URL, attempt)
			}
			log.Debug().
				Str("url", m.cfg.URL).
				Int("attempt", attempt).
				Dur("next_delay", delay).
				Err(err).
				Msg("socket dial failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = minDuration(delay*2, m.cfg.MaxReconnectDelay)
			continue
		}

		// Connected: reset the backoff.
		attempt = 0
		delay = m.cfg.ReconnectDelay
		m.emitLifecycle(ctx, hooks.PointSocketConnected, attempt, nil)

		serveErr := m.serve(ctx, conn)
		m.emitLifecycle(ctx, hooks.PointSocketDisconnected, attempt, serveErr)
	}
}

// serve pumps the queue onto the connection and dispatches inbound
// messages until either side fails.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeDone := make(chan error, 1)
	go func() {
		for {
			data := m.pending
			if data == nil {
				select {
				case <-serveCtx.Done():
					writeDone <- serveCtx.Err()
					return
				case data = <-m.queue:
				}
			}

			// Commit only after the write succeeds so a frame that
			// straddles a disconnect is redelivered on reconnect.
			m.pending = data
			if err := conn.Write(serveCtx, websocket.MessageText, data); err != nil {
				writeDone <- err
				return
			}
			m.pending = nil
		}
	}()

	var readErr error
	for {
		_, data, err := conn.Read(serveCtx)
		if err != nil {
			readErr = err
			break
		}
		m.reg.Invoke(serveCtx, hooks.PointSocketMessage, &hooks.SocketMessagePayload{
			SessionID: m.sessionID,
			Data:      data,
		})
		if m.tracker != nil {
			m.tracker.RecordSocketEvent(&monitoring.SocketEvent{
				Timestamp: time.Now(),
				SessionID: m.sessionID,
				URL:       m.cfg.URL,
				Event:     "message",
			})
		}
	}

	cancel()
	<-writeDone
	return readErr
}

// emitLifecycle publishes a connect/disconnect transition.
func (m *Manager) emitLifecycle(ctx context.Context, point string, attempt int, err error) {
	m.reg.Invoke(ctx, point, &hooks.SocketPayload{
		SessionID: m.sessionID,
		URL:       m.cfg.URL,
		Attempt:   attempt,
		Err:       err,
	})

	if m.tracker != nil {
		event := &monitoring.SocketEvent{
			Timestamp: time.Now(),
			SessionID: m.sessionID,
			URL:       m.cfg.URL,
			Attempt:   attempt,
		}
		switch point {
		case hooks.PointSocketConnected:
			event.Event = "connected"
		case hooks.PointSocketDisconnected:
			event.Event = "disconnected"
		}
		if err != nil {
			event.Error = err.Error()
		}
		m.tracker.RecordSocketEvent(event)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
