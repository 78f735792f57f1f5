// Package log provides categorised structured logging for chime.
//
// Every call names a Category so output from the loader, the command queue and
// the resolver can be filtered independently:
//
//	log.Debug(log.CatLoader, "Loading sound", "url", url)
//	log.ErrorErr(log.CatAudio, "Failed to start channel", err, "url", url)
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// Category tags a log line with the subsystem that produced it.
type Category string

const (
	CatAudio     Category = "audio"
	CatLoader    Category = "loader"
	CatQueue     Category = "queue"
	CatResolver  Category = "resolver"
	CatConfig    Category = "config"
	CatTelemetry Category = "telemetry"
	CatCLI       Category = "cli"
)

var (
	logger atomic.Pointer[slog.Logger]

	// closer holds the log file opened by InitFile, if any.
	closerMu sync.Mutex
	closer   io.Closer
)

func init() {
	logger.Store(newLogger(os.Stderr, slog.LevelWarn))
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Init replaces the global logger with one writing to w at the given level.
func Init(w io.Writer, level slog.Level) {
	logger.Store(newLogger(w, level))
}

// InitFile opens path for appending and routes all logging there.
// The previous log file, if any, is closed.
func InitFile(path string, level slog.Level) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	Init(f, level)

	closerMu.Lock()
	prev := closer
	closer = f
	closerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close flushes and closes the log file opened by InitFile.
func Close() error {
	closerMu.Lock()
	defer closerMu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	logger.Store(newLogger(os.Stderr, slog.LevelWarn))
	return err
}

func emit(level slog.Level, cat Category, msg string, args []any) {
	l := logger.Load()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, msg, append([]any{"cat", string(cat)}, args...)...)
}

// Debug logs at debug level.
func Debug(cat Category, msg string, args ...any) { emit(slog.LevelDebug, cat, msg, args) }

// Info logs at info level.
func Info(cat Category, msg string, args ...any) { emit(slog.LevelInfo, cat, msg, args) }

// Warn logs at warn level.
func Warn(cat Category, msg string, args ...any) { emit(slog.LevelWarn, cat, msg, args) }

// Error logs at error level.
func Error(cat Category, msg string, args ...any) { emit(slog.LevelError, cat, msg, args) }

// ErrorErr logs err at error level alongside the given key/value pairs.
func ErrorErr(cat Category, msg string, err error, args ...any) {
	emit(slog.LevelError, cat, msg, append([]any{"error", err}, args...))
}

// SafeGo runs fn in a new goroutine. A panic inside fn is logged with its
// stack trace instead of crashing the process.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// Recover logs a recovered panic. It must be called directly by defer.
func Recover(name string) {
	if r := recover(); r != nil {
		Error(CatAudio, "Recovered from panic", "goroutine", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	}
}
