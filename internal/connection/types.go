package connection

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/tablesocket/internal/config"
	"github.com/rickgao/tablesocket/internal/version"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrClosed        = errors.New("manager closed")
	ErrInvalidOrigin = errors.New("invalid origin")
)

// Inbound message types recognized by the dispatcher.
const (
	TypeDiceRoll       = "dice_roll"
	TypeCampaignUpdate = "campaign_update"
)

// Envelope is the wire shape for both directions: {"type": ..., "payload": ...}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// State mirrors the underlying socket.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Origin string      // Page origin (e.g., https://play.example.com); https selects wss
	Path   string      // Socket path on the origin host (e.g., /ws)
	Header http.Header // Extra handshake headers

	ConnectTimeout       time.Duration // Time allowed for a dial before it is abandoned
	MaxReconnectAttempts int           // Reconnects scheduled before giving up
	ReconnectBaseDelay   time.Duration // Delay before the first reconnect
	ReconnectMultiplier  float64       // Growth factor per attempt
	ReconnectMaxJitter   time.Duration // Upper bound of random jitter added to each delay
	ReconnectMaxDelay    time.Duration // Cap on any single delay

	WriteTimeout time.Duration // Write deadline for sends and control frames
	PingInterval time.Duration // Keepalive ping interval (0 = disabled)
	PongWait     time.Duration // Read deadline extended on every pong or message (0 = none)
	ReadLimit    int64         // Max inbound message size in bytes (0 = unlimited)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Path:                 config.DefaultPath,
		ConnectTimeout:       config.DefaultConnectTimeout,
		MaxReconnectAttempts: config.DefaultMaxReconnectAttempts,
		ReconnectBaseDelay:   config.DefaultReconnectBaseDelay,
		ReconnectMultiplier:  config.DefaultReconnectMultiplier,
		ReconnectMaxJitter:   config.DefaultReconnectMaxJitter,
		ReconnectMaxDelay:    config.DefaultReconnectMaxDelay,
		WriteTimeout:         config.DefaultWriteTimeout,
		PingInterval:         config.DefaultPingInterval,
		PongWait:             config.DefaultPongWait,
		ReadLimit:            config.DefaultReadLimit,
	}
}

// ManagerConfigFrom maps the loaded client configuration onto a ManagerConfig.
func ManagerConfigFrom(cfg *config.ClientConfig) ManagerConfig {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	for k, v := range cfg.Server.Headers {
		header.Set(k, v)
	}

	c := cfg.Connection
	return ManagerConfig{
		Origin:               cfg.Server.Origin,
		Path:                 cfg.Server.Path,
		Header:               header,
		ConnectTimeout:       c.ConnectTimeout,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		ReconnectBaseDelay:   c.ReconnectBaseDelay,
		ReconnectMultiplier:  c.ReconnectMultiplier,
		ReconnectMaxJitter:   c.ReconnectMaxJitter,
		ReconnectMaxDelay:    c.ReconnectMaxDelay,
		WriteTimeout:         c.WriteTimeout,
		PingInterval:         c.PingInterval,
		PongWait:             c.PongWait,
		ReadLimit:            c.ReadLimit,
	}
}

func (c ManagerConfig) backoff() Backoff {
	return Backoff{
		Base:       c.ReconnectBaseDelay,
		Multiplier: c.ReconnectMultiplier,
		MaxJitter:  c.ReconnectMaxJitter,
		Max:        c.ReconnectMaxDelay,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State               State
	Attempts            int
	MessagesReceived    int64
	MessagesDispatched  int64
	MessagesIgnored     int64
	ParseErrors         int64
	MessagesSent        int64
	SendsDropped        int64
	ReconnectsScheduled int64
	GaveUp              int64 // Times the reconnect budget was exhausted
}
