package connection

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/tablesocket/internal/events"
)

// Manager owns a single reconnecting WebSocket.
//
// All state below mu is touched only with mu held. Every dial, read loop and
// timer callback captures the generation or timer sequence it was started
// under and does nothing once that value is stale, so at most one live socket
// and one pending timer exist at any instant.
type Manager struct {
	cfg     ManagerConfig
	url     string
	id      string
	dialer  *websocket.Dialer
	emitter events.Emitter
	logger  *slog.Logger

	// Jitter source in [0, 1)
	jitter func() float64

	mu           sync.Mutex
	state        State
	sock         *socket
	gen          uint64 // Bumped whenever the current socket is replaced or torn down
	reconnecting bool
	attempts     int
	timer        *time.Timer
	timerSeq     uint64
	cancelDial   context.CancelFunc
	closed       bool

	stats managerCounters
}

type managerCounters struct {
	received            atomic.Int64
	dispatched          atomic.Int64
	ignored             atomic.Int64
	parseErrors         atomic.Int64
	sent                atomic.Int64
	sendsDropped        atomic.Int64
	reconnectsScheduled atomic.Int64
	gaveUp              atomic.Int64
}

// NewManager creates a Connection Manager. It does not connect; call Connect.
func NewManager(cfg ManagerConfig, emitter events.Emitter, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.EmitterFunc(func(events.Notification) {})
	}

	u, err := BuildURL(cfg.Origin, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("build socket url: %w", err)
	}

	id := uuid.NewString()

	return &Manager{
		cfg:     cfg,
		url:     u,
		id:      id,
		emitter: emitter,
		logger:  logger.With("manager_id", id),
		jitter:  rand.Float64,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.ConnectTimeout,
		},
	}, nil
}

// ID returns the manager's unique identifier, also used as the ping payload.
func (m *Manager) ID() string {
	return m.id
}

// URL returns the socket URL derived from the configured origin.
func (m *Manager) URL() string {
	return m.url
}

// Connect opens the socket.
//
// It is a no-op when the manager is already connecting or open, force is false
// and no reconnect is in progress. Otherwise any existing socket is closed and
// a new dial is started under the connection timeout.
func (m *Manager) Connect(force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked(force)
}

func (m *Manager) connectLocked(force bool) {
	if m.closed {
		m.logger.Warn("connect called on closed manager")
		return
	}

	if !force && !m.reconnecting && (m.state == StateConnecting || m.state == StateOpen) {
		m.logger.Debug("already connecting or open", "state", m.state.String())
		return
	}

	m.stopTimerLocked()
	m.teardownLocked()

	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.state = StateConnecting

	m.armTimerLocked(m.cfg.ConnectTimeout, func() { m.connectTimeoutLocked(gen) })

	m.logger.Info("connecting", "url", m.url, "attempt", m.attempts)

	go m.dial(ctx, gen)
}

// dial runs one connection attempt outside the lock.
func (m *Manager) dial(ctx context.Context, gen uint64) {
	conn, resp, err := m.dialer.DialContext(ctx, m.url, m.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateConnecting {
		// Superseded by a newer Connect, a timeout or a Disconnect
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn("connection failure", "url", m.url, "error", err, "attempt", m.attempts)
		m.stopTimerLocked()
		m.cancelDialLocked()
		m.state = StateClosed
		m.scheduleReconnectLocked()
		return
	}

	m.stopTimerLocked()
	m.cancelDialLocked()

	sock := newSocket(conn, m.cfg, m.id, m.logger)
	m.sock = sock
	m.state = StateOpen
	m.attempts = 0
	m.reconnecting = false

	m.logger.Info("connection established", "url", m.url)

	go m.readLoop(sock, gen)
	if m.cfg.PingInterval > 0 {
		go m.pingLoop(sock)
	}
}

// connectTimeoutLocked abandons a dial that has not completed in time.
func (m *Manager) connectTimeoutLocked(gen uint64) {
	if gen != m.gen || m.state != StateConnecting {
		return
	}

	m.logger.Warn("connection timeout", "url", m.url, "timeout", m.cfg.ConnectTimeout)

	// Invalidate the in-flight dial so its result is discarded
	m.gen++
	m.cancelDialLocked()
	m.state = StateClosed
	m.scheduleReconnectLocked()
}

// readLoop reads frames until the socket fails, then decides whether to reconnect.
func (m *Manager) readLoop(sock *socket, gen uint64) {
	for {
		data, receivedAt, err := sock.read()
		if err != nil {
			m.handleReadError(sock, gen, err)
			return
		}
		m.dispatch(data, receivedAt)
	}
}

func (m *Manager) handleReadError(sock *socket, gen uint64, err error) {
	sock.abort()

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// Torn down on purpose; nothing to do
		return
	}

	m.sock = nil
	m.state = StateClosed

	code := closeCode(err)
	if code == websocket.CloseNormalClosure {
		m.logger.Info("connection closed normally")
		m.stopTimerLocked()
		m.attempts = 0
		m.reconnecting = false
		return
	}

	m.logger.Warn("connection lost", "code", code, "error", err)
	m.scheduleReconnectLocked()
}

// pingLoop keeps the connection alive until the socket is closed.
// https://developer.mozilla.org/en-US/docs/Web/API/WebSockets_API/Writing_WebSocket_servers#pings_and_pongs_the_heartbeat_of_websockets
func (m *Manager) pingLoop(sock *socket) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sock.done:
			return
		case <-ticker.C:
			if err := sock.ping(); err != nil {
				// The read loop observes the broken connection and reconnects
				m.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// scheduleReconnectLocked arms the reconnect timer, or gives up once the
// attempt budget is spent.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("max reconnect attempts reached, giving up",
			"attempts", m.attempts,
			"max", m.cfg.MaxReconnectAttempts,
		)
		m.reconnecting = false
		m.stats.gaveUp.Add(1)
		return
	}

	m.stopTimerLocked()

	delay := m.cfg.backoff().Delay(m.attempts, m.jitter())
	m.attempts++
	m.reconnecting = true
	m.stats.reconnectsScheduled.Add(1)

	m.logger.Info("scheduling reconnect",
		"attempt", m.attempts,
		"max", m.cfg.MaxReconnectAttempts,
		"delay", delay,
	)

	m.armTimerLocked(delay, func() { m.connectLocked(true) })
}

// armTimerLocked replaces the pending timer. fn runs with mu held.
func (m *Manager) armTimerLocked(d time.Duration, fn func()) {
	m.stopTimerLocked()

	seq := m.timerSeq
	m.timer = time.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if seq != m.timerSeq {
			// Stopped or replaced after it fired
			return
		}
		m.timer = nil
		m.timerSeq++
		fn()
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
}

func (m *Manager) cancelDialLocked() {
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
}

// teardownLocked cancels any in-flight dial and closes the current socket.
func (m *Manager) teardownLocked() {
	m.cancelDialLocked()
	if m.sock != nil {
		m.sock.closeWithCode(websocket.CloseNormalClosure, "")
		m.sock = nil
	}
}

// Send serializes {type, payload} and writes it to the socket.
// When the socket is not open the message is logged and dropped; nothing is queued.
func (m *Manager) Send(kind string, payload any) error {
	m.mu.Lock()
	sock := m.sock
	state := m.state
	closed := m.closed
	m.mu.Unlock()

	if closed {
		m.stats.sendsDropped.Add(1)
		m.logger.Warn("manager closed, dropping message", "type", kind)
		return ErrClosed
	}

	if state != StateOpen || sock == nil {
		m.stats.sendsDropped.Add(1)
		m.logger.Warn("socket not open, dropping message", "type", kind, "state", state.String())
		return ErrNotConnected
	}

	data, err := encodeEnvelope(kind, payload)
	if err != nil {
		m.stats.sendsDropped.Add(1)
		m.logger.Error("failed to encode message", "type", kind, "error", err)
		return fmt.Errorf("encode message: %w", err)
	}

	if err := sock.writeText(data); err != nil {
		m.stats.sendsDropped.Add(1)
		m.logger.Error("write error", "type", kind, "error", err)
		return fmt.Errorf("write message: %w", err)
	}

	m.stats.sent.Add(1)
	m.logger.Debug("message sent", "type", kind, "bytes", len(data))
	return nil
}

// Disconnect closes the socket intentionally with code 1000. No reconnect is
// scheduled and the attempt counter is reset. The manager may be reconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

func (m *Manager) disconnectLocked() {
	m.stopTimerLocked()
	m.gen++

	if m.sock != nil {
		m.state = StateClosing
		m.logger.Info("closing connection")
	}
	m.teardownLocked()

	if m.state != StateIdle {
		m.state = StateClosed
	}
	m.attempts = 0
	m.reconnecting = false
}

// Close disposes of the manager. Later Connect calls are ignored.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.disconnectLocked()
	m.closed = true

	m.logger.Info("connection manager closed")
	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current reconnect counter.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Reconnecting reports whether a reconnect is scheduled or in flight.
func (m *Manager) Reconnecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnecting
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	state, attempts := m.state, m.attempts
	m.mu.Unlock()

	return ManagerStats{
		State:               state,
		Attempts:            attempts,
		MessagesReceived:    m.stats.received.Load(),
		MessagesDispatched:  m.stats.dispatched.Load(),
		MessagesIgnored:     m.stats.ignored.Load(),
		ParseErrors:         m.stats.parseErrors.Load(),
		MessagesSent:        m.stats.sent.Load(),
		SendsDropped:        m.stats.sendsDropped.Load(),
		ReconnectsScheduled: m.stats.reconnectsScheduled.Load(),
		GaveUp:              m.stats.gaveUp.Load(),
	}
}
