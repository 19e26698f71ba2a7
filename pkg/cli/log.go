package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogConfig configures the command's logger.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is text or json
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// NewLogger creates a logger writing to w.
func NewLogger(w io.Writer, c LogConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	if c.Level != "" {
		var err error
		if level, err = ParseLevel(c.Level); err != nil {
			return nil, err
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}
