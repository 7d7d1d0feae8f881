package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rickgao/tablesocket/internal/config"
	"github.com/rickgao/tablesocket/internal/events"
)

var errMissingType = errors.New("missing message type")

// parseLine splits "<type> <json>" into a message type and raw payload.
// Blank lines and lines starting with # report ok=false.
func parseLine(line string) (kind string, payload json.RawMessage, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, false, nil
	}

	kind, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if kind == "" {
		return "", nil, false, errMissingType
	}
	if rest == "" {
		return kind, json.RawMessage("null"), true, nil
	}
	if !json.Valid([]byte(rest)) {
		return "", nil, false, fmt.Errorf("payload for %q is not valid json", kind)
	}
	return kind, json.RawMessage(rest), true, nil
}

func formatNotification(n events.Notification, verbose bool) string {
	ts := n.ReceivedAt.Format("15:04:05.000")
	if !verbose && len(n.Payload) > 120 {
		return fmt.Sprintf("%s %s %s...", ts, n.Name, n.Payload[:117])
	}
	return fmt.Sprintf("%s %s %s", ts, n.Name, n.Payload)
}

func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
