package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID           = "tablesocket"
	DefaultOrigin               = "http://localhost:8080"
	DefaultPath                 = "/ws"
	DefaultConnectTimeout       = 10 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMultiplier  = 1.5
	DefaultReconnectMaxJitter   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPongWait             = 60 * time.Second
	DefaultReadLimit            = 1 << 20
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultJournalBatchSize     = 100
	DefaultJournalFlushInterval = 1 * time.Second
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// Default returns a config with every default applied.
func Default() *ClientConfig {
	cfg := seeded()
	cfg.ApplyDefaults()
	return cfg
}

// seeded returns a config carrying defaults for the fields where an explicit
// zero is meaningful. Load decodes YAML on top of it, so an absent key keeps
// the default and "ping_interval: 0s" survives as 0.
func seeded() *ClientConfig {
	return &ClientConfig{
		Connection: ConnectionConfig{
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			ReconnectMaxJitter:   DefaultReconnectMaxJitter,
			PingInterval:         DefaultPingInterval,
			PongWait:             DefaultPongWait,
		},
	}
}

// ApplyDefaults fills zero-valued optional fields. max_reconnect_attempts,
// reconnect_max_jitter, ping_interval and pong_wait are left alone: zero is a
// valid setting for each, and their defaults are seeded before decoding.
func (c *ClientConfig) ApplyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Server defaults
	if c.Server.Origin == "" {
		c.Server.Origin = DefaultOrigin
	}
	if c.Server.Path == "" {
		c.Server.Path = DefaultPath
	}

	// Connection defaults
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMultiplier == 0 {
		c.Connection.ReconnectMultiplier = DefaultReconnectMultiplier
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.ReadLimit == 0 {
		c.Connection.ReadLimit = DefaultReadLimit
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlushInterval
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
