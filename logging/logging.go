// Package logging builds the structured logger shared by every sprig component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 1
	maxBackups = 5
)

// Options configures New.
type Options struct {
	// Path is the log file. Rotated files are kept next to it.
	Path  string
	Level string
}

// Logger is the root logger plus the sink it writes to.
type Logger struct {
	*slog.Logger
	SessionID string
	closer    io.Closer
}

// New opens the rotating log file and returns a logger tagged with a fresh session id.
func New(opts Options) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	sink := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	l := newLogger(sink, ParseLevel(opts.Level))
	l.closer = sink
	return l, nil
}

// NewWriter returns a logger writing text records to w.
func NewWriter(w io.Writer, level string) *Logger {
	return newLogger(w, ParseLevel(level))
}

func newLogger(w io.Writer, level slog.Level) *Logger {
	id := uuid.NewString()
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger:    slog.New(h).With("session", id),
		SessionID: id,
	}
}

// Component returns a child logger for the named component.
func (l *Logger) Component(name string) *slog.Logger {
	return l.With("component", name)
}

// Close flushes and closes the file sink, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
