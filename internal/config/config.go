package config

import "time"

// ClientConfig is the root configuration for a tablesocket client.
type ClientConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Journal    JournalConfig    `yaml:"journal"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig describes where the socket endpoint lives.
type ServerConfig struct {
	Origin  string            `yaml:"origin"` // Page origin, e.g. https://play.example.com (https selects wss)
	Path    string            `yaml:"path"`   // Socket path on the origin host
	Headers map[string]string `yaml:"headers"`
}

// ConnectionConfig holds Connection Manager settings.
type ConnectionConfig struct {
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // 0 never retries
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMultiplier  float64       `yaml:"reconnect_multiplier"`
	ReconnectMaxJitter   time.Duration `yaml:"reconnect_max_jitter"` // 0 disables jitter
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"` // 0 disables keepalive pings
	PongWait             time.Duration `yaml:"pong_wait"`     // 0 disables the read deadline
	ReadLimit            int64         `yaml:"read_limit"`
}

// JournalConfig holds the optional notification journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig controls the slog handler built by the CLI.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
