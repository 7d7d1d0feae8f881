package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every override variable, e.g. TABLESOCKET_ORIGIN.
const EnvPrefix = "TABLESOCKET"

// envOverrides are applied on top of the YAML file. Unset variables leave the
// file value untouched.
type envOverrides struct {
	InstanceID           string        `envconfig:"INSTANCE_ID"`
	Origin               string        `envconfig:"ORIGIN"`
	Path                 string        `envconfig:"WS_PATH"`
	ConnectTimeout       time.Duration `envconfig:"CONNECT_TIMEOUT"`
	MaxReconnectAttempts *int          `envconfig:"MAX_RECONNECT_ATTEMPTS"`
	JournalEnabled       *bool         `envconfig:"JOURNAL_ENABLED"`
	LogLevel             string        `envconfig:"LOG_LEVEL"`
	LogFormat            string        `envconfig:"LOG_FORMAT"`
}

// ApplyEnv overlays TABLESOCKET_* environment variables onto c.
func (c *ClientConfig) ApplyEnv() error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}

	if o.InstanceID != "" {
		c.Instance.ID = o.InstanceID
	}
	if o.Origin != "" {
		c.Server.Origin = o.Origin
	}
	if o.Path != "" {
		c.Server.Path = o.Path
	}
	if o.ConnectTimeout > 0 {
		c.Connection.ConnectTimeout = o.ConnectTimeout
	}
	if o.MaxReconnectAttempts != nil {
		c.Connection.MaxReconnectAttempts = *o.MaxReconnectAttempts
	}
	if o.JournalEnabled != nil {
		c.Journal.Enabled = *o.JournalEnabled
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	return nil
}
