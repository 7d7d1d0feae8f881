package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/tablesocket/internal/config"
)

// BuildConnString builds a PostgreSQL URL from config. User and password are
// escaped so credentials with reserved characters survive.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// redacted returns the connection string with the password masked, for logs.
func redacted(cfg config.DBConfig) string {
	cfg.Password = "xxxxx"
	return fmt.Sprintf("%s (password redacted)", BuildConnString(cfg))
}
