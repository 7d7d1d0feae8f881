package connection

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// socket wraps one live WebSocket connection.
type socket struct {
	conn   *websocket.Conn
	cfg    ManagerConfig
	logger *slog.Logger

	// Keepalive payload; pongs echo it back
	pingData []byte

	// gorilla allows one concurrent writer
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(conn *websocket.Conn, cfg ManagerConfig, pingData string, logger *slog.Logger) *socket {
	s := &socket{
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		pingData: []byte(pingData),
		done:     make(chan struct{}),
	}

	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}

	if cfg.PongWait > 0 {
		s.extendReadDeadline()
		conn.SetPongHandler(func(string) error {
			s.extendReadDeadline()
			return nil
		})
	}

	return s
}

func (s *socket) extendReadDeadline() {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait)); err != nil {
		s.logger.Debug("deadline error", "error", err)
	}
}

// read blocks until the next data frame arrives.
func (s *socket) read() ([]byte, time.Time, error) {
	_, data, err := s.conn.ReadMessage()
	receivedAt := time.Now() // Capture timestamp immediately
	if err != nil {
		return nil, receivedAt, err
	}
	if s.cfg.PongWait > 0 {
		s.extendReadDeadline()
	}
	return data, receivedAt, nil
}

// writeText sends one text frame under the write deadline.
func (s *socket) writeText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// ping sends a keepalive control frame.
func (s *socket) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteControl(websocket.PingMessage, s.pingData, time.Now().Add(s.cfg.WriteTimeout))
}

// closeWithCode tells the peer we are going away, then drops the connection.
// https://datatracker.ietf.org/doc/html/rfc6455#section-7.1.2
func (s *socket) closeWithCode(code int, reason string) {
	s.writeMu.Lock()
	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(s.cfg.WriteTimeout),
	)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Debug("close frame failed", "error", err)
	}

	s.abort()
}

// abort closes the underlying connection without a close handshake.
func (s *socket) abort() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("error closing connection", "error", err)
		}
	})
}

// closeCode extracts the close code carried by a read error.
// Errors that are not close frames report CloseAbnormalClosure (1006).
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
