package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: table-7
server:
  origin: https://play.example.com
  path: /ws
  headers:
    X-Campaign: dragons
connection:
  connect_timeout: 5s
  max_reconnect_attempts: 4
  reconnect_multiplier: 2
journal:
  enabled: true
  database:
    host: localhost
    port: 5432
    name: tabletop
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "table-7" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "table-7")
	}
	if cfg.Server.Origin != "https://play.example.com" {
		t.Errorf("Server.Origin = %q, want %q", cfg.Server.Origin, "https://play.example.com")
	}
	if cfg.Server.Headers["X-Campaign"] != "dragons" {
		t.Errorf("Server.Headers[X-Campaign] = %q, want %q", cfg.Server.Headers["X-Campaign"], "dragons")
	}
	if cfg.Connection.ConnectTimeout != 5*time.Second {
		t.Errorf("Connection.ConnectTimeout = %v, want %v", cfg.Connection.ConnectTimeout, 5*time.Second)
	}
	if cfg.Connection.MaxReconnectAttempts != 4 {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want 4", cfg.Connection.MaxReconnectAttempts)
	}
	if cfg.Connection.ReconnectMultiplier != 2 {
		t.Errorf("Connection.ReconnectMultiplier = %g, want 2", cfg.Connection.ReconnectMultiplier)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}
	if cfg.Journal.Database.Host != "localhost" {
		t.Errorf("Journal.Database.Host = %q, want %q", cfg.Journal.Database.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_ORIGIN", "https://staging.example.com")

	yaml := `
server:
  origin: ${TEST_ORIGIN}
journal:
  database:
    host: localhost
    name: tabletop
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Journal.Database.Password != "secret123" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "secret123")
	}
	if cfg.Server.Origin != "https://staging.example.com" {
		t.Errorf("Server.Origin = %q, want %q", cfg.Server.Origin, "https://staging.example.com")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.HasPrefix(err.Error(), "read config file:") {
		t.Errorf("error = %q, want read config file prefix", err.Error())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "server: [unterminated")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
	if !strings.HasPrefix(err.Error(), "parse config yaml:") {
		t.Errorf("error = %q, want parse config yaml prefix", err.Error())
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: table-1\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Server.Path != DefaultPath {
		t.Errorf("Server.Path = %q, want default %q", cfg.Server.Path, DefaultPath)
	}
	if cfg.Connection.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Connection.ConnectTimeout = %v, want default %v", cfg.Connection.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.Connection.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want default %d", cfg.Connection.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Connection.ReconnectMultiplier != DefaultReconnectMultiplier {
		t.Errorf("Connection.ReconnectMultiplier = %g, want default %g", cfg.Connection.ReconnectMultiplier, DefaultReconnectMultiplier)
	}
	if cfg.Connection.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Connection.ReconnectMaxDelay = %v, want default %v", cfg.Connection.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestLoadExplicitZeroDisables(t *testing.T) {
	yaml := `
connection:
  max_reconnect_attempts: 0
  reconnect_max_jitter: 0s
  ping_interval: 0s
  pong_wait: 0s
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	conn := cfg.Connection
	if conn.MaxReconnectAttempts != 0 {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want 0", conn.MaxReconnectAttempts)
	}
	if conn.ReconnectMaxJitter != 0 {
		t.Errorf("Connection.ReconnectMaxJitter = %v, want 0", conn.ReconnectMaxJitter)
	}
	if conn.PingInterval != 0 {
		t.Errorf("Connection.PingInterval = %v, want 0 (keepalive disabled)", conn.PingInterval)
	}
	if conn.PongWait != 0 {
		t.Errorf("Connection.PongWait = %v, want 0 (no read deadline)", conn.PongWait)
	}

	// Keys left out still get their defaults
	if conn.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Connection.ConnectTimeout = %v, want default %v", conn.ConnectTimeout, DefaultConnectTimeout)
	}
}

func TestLoadOmittedZeroableKeysUseDefaults(t *testing.T) {
	path := writeTempFile(t, "connection:\n  connect_timeout: 5s\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	conn := cfg.Connection
	if conn.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want default %d", conn.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if conn.ReconnectMaxJitter != DefaultReconnectMaxJitter {
		t.Errorf("Connection.ReconnectMaxJitter = %v, want default %v", conn.ReconnectMaxJitter, DefaultReconnectMaxJitter)
	}
	if conn.PingInterval != DefaultPingInterval {
		t.Errorf("Connection.PingInterval = %v, want default %v", conn.PingInterval, DefaultPingInterval)
	}
	if conn.PongWait != DefaultPongWait {
		t.Errorf("Connection.PongWait = %v, want default %v", conn.PongWait, DefaultPongWait)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "server:\n  origin: ftp://example.com\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	want := `validate config: server.origin scheme must be http or https, got "ftp"`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestValidate(t *testing.T) {
	valid := func() ClientConfig {
		return *Default()
	}

	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *ClientConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *ClientConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "origin without host",
			mutate:  func(c *ClientConfig) { c.Server.Origin = "https://" },
			wantErr: "server.origin must include a host",
		},
		{
			name:    "relative path",
			mutate:  func(c *ClientConfig) { c.Server.Path = "ws" },
			wantErr: `server.path must start with /, got "ws"`,
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *ClientConfig) { c.Connection.ReconnectMultiplier = 0.5 },
			wantErr: "connection.reconnect_multiplier must be >= 1, got 0.5",
		},
		{
			name:    "max delay below base",
			mutate:  func(c *ClientConfig) { c.Connection.ReconnectMaxDelay = 500 * time.Millisecond },
			wantErr: "connection.reconnect_max_delay (500ms) cannot be less than reconnect_base_delay (1s)",
		},
		{
			name:    "pong wait not exceeding ping interval",
			mutate:  func(c *ClientConfig) { c.Connection.PongWait = c.Connection.PingInterval },
			wantErr: "connection.pong_wait (30s) must exceed ping_interval (30s)",
		},
		{
			name:    "journal enabled without database host",
			mutate:  func(c *ClientConfig) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min_conns exceeds max_conns",
			mutate: func(c *ClientConfig) {
				c.Journal.Enabled = true
				c.Journal.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 2, MinConns: 5}
			},
			wantErr: "journal.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *ClientConfig) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *ClientConfig) { c.Logging.Format = "logfmt" },
			wantErr: `logging.format must be text or json, got "logfmt"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
