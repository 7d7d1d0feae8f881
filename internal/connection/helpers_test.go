package connection

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tablesocket/internal/events"
)

// recordingHandler is a slog.Handler that keeps every record.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// count returns how many records carry msg.
func (h *recordingHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Message == msg {
			n++
		}
	}
	return n
}

func slogFrom(h slog.Handler) *slog.Logger {
	return slog.New(h)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collector gathers emitted notifications.
type collector struct {
	mu    sync.Mutex
	items []events.Notification
	ch    chan events.Notification
}

func newCollector() *collector {
	return &collector{ch: make(chan events.Notification, 100)}
}

func (c *collector) Emit(n events.Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
	c.ch <- n
}

func (c *collector) all() []events.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Notification(nil), c.items...)
}

// wsHandler upgrades requests on /ws and hands each connection to handler
// together with its 1-based sequence number.
func wsHandler(t *testing.T, count *atomic.Int64, handler func(conn *websocket.Conn, n int)) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, int(count.Add(1)))
	})
}

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn, n int)) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var count atomic.Int64
	server := httptest.NewServer(wsHandler(t, &count, handler))
	t.Cleanup(server.Close)

	return server, &count
}

// holdOpen keeps reading until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// testConfig returns a config with short timings suitable for tests.
func testConfig(origin string) ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.Origin = origin
	cfg.ConnectTimeout = 2 * time.Second
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMultiplier = 1.5
	cfg.ReconnectMaxJitter = 0
	cfg.ReconnectMaxDelay = 50 * time.Millisecond
	cfg.WriteTimeout = time.Second
	cfg.PingInterval = 0
	cfg.PongWait = 0
	return cfg
}

func newTestManager(t *testing.T, cfg ManagerConfig, emitter events.Emitter, logger *slog.Logger) *Manager {
	t.Helper()
	if logger == nil {
		logger = discardLogger()
	}
	m, err := NewManager(cfg, emitter, logger)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.jitter = func() float64 { return 0 }
	t.Cleanup(func() { m.Close() })
	return m
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
