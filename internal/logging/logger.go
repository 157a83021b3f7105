// Package logging builds the process-wide slog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/syntrixbase/livequery/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogFile  = "livequery.log"
	errorLogFile = "errors.log"
)

var (
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex

	// console is where the console handler writes. Tests replace it.
	console io.Writer = os.Stderr
)

// Initialize builds a logger from cfg and installs it as slog's default.
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Debug("Logging initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
	)
	return nil
}

// NewLogger creates a logger writing to the console and, when enabled, to
// a rotated livequery.log plus an errors.log that only receives warnings
// and errors.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, createHandler(console, cfg.Console.Format, ParseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		mainFile := openRotated(filepath.Join(cfg.Dir, mainLogFile), cfg.Rotation)
		handlers = append(handlers, createHandler(mainFile, cfg.File.Format, ParseLevel(cfg.File.Level)))

		errorFile := openRotated(filepath.Join(cfg.Dir, errorLogFile), cfg.Rotation)
		handlers = append(handlers, NewLevelFilter(createHandler(errorFile, cfg.File.Format, slog.LevelWarn), slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		return slog.New(NewMultiHandler()), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(NewMultiHandler(handlers...)), nil
	}
}

// Shutdown closes every log file opened by NewLogger.
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	var firstErr error
	for _, f := range logFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close log file: %w", err)
		}
	}
	logFiles = nil
	return firstErr
}

func openRotated(path string, rot config.RotationConfig) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.MaxSize,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAge,
		Compress:   rot.Compress,
	}
	logFilesMu.Lock()
	logFiles = append(logFiles, f)
	logFilesMu.Unlock()
	return f
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch level {
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

func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewTextHandler(w, opts)
}
