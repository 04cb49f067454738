// Package logging configures structured slog output for docfuse. Logs go
// to a size-rotated JSON file and, outside server mode, to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// FilePath is the log file. Empty disables file logging.
	FilePath string

	MaxSizeMB int
	MaxFiles  int

	// Stderr tees records to stderr as text.
	Stderr bool
}

// DefaultConfig logs info and above to the default file and stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		FilePath:  DefaultLogPath(),
		MaxSizeMB: 10,
		MaxFiles:  5,
		Stderr:    true,
	}
}

// Setup builds a logger for cfg. The returned cleanup flushes and closes
// the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handlers []slog.Handler
	cleanup := func() {}

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
		cleanup = func() {
			_ = w.Sync()
			_ = w.Close()
		}
	}
	if cfg.Stderr {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, opts)), cleanup, nil
	case 1:
		return slog.New(handlers[0]), cleanup, nil
	default:
		return slog.New(fanout(handlers)), cleanup, nil
	}
}

// SetupServerMode installs a file-only logger. The MCP stdio transport
// owns stdout, and clients surface stderr as errors, so neither may carry
// log output.
func SetupServerMode(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.Stderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	slog.Info("server mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}

// ParseLevel converts a level name to slog.Level. Unknown names are Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
