package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Server.validate(); err != nil {
		return err
	}

	conn := c.Connection
	if conn.ConnectTimeout <= 0 {
		return errors.New("connection.connect_timeout must be > 0")
	}
	if conn.MaxReconnectAttempts < 0 {
		return errors.New("connection.max_reconnect_attempts must be >= 0")
	}
	if conn.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be > 0")
	}
	if conn.ReconnectMultiplier < 1 {
		return fmt.Errorf("connection.reconnect_multiplier must be >= 1, got %g", conn.ReconnectMultiplier)
	}
	if conn.ReconnectMaxJitter < 0 {
		return errors.New("connection.reconnect_max_jitter must be >= 0")
	}
	if conn.ReconnectMaxDelay < conn.ReconnectBaseDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			conn.ReconnectMaxDelay, conn.ReconnectBaseDelay)
	}
	if conn.PingInterval > 0 && conn.PongWait > 0 && conn.PongWait <= conn.PingInterval {
		return fmt.Errorf("connection.pong_wait (%s) must exceed ping_interval (%s)", conn.PongWait, conn.PingInterval)
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (s ServerConfig) validate() error {
	if s.Origin == "" {
		return errors.New("server.origin is required")
	}
	u, err := url.Parse(s.Origin)
	if err != nil {
		return fmt.Errorf("server.origin: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("server.origin scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server.origin must include a host")
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("server.path must start with /, got %q", s.Path)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
