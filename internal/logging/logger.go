package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Logger wraps slog.Logger with helpers for the wallet/contract fields we log everywhere.
type Logger struct {
	*slog.Logger
}

// New creates a Logger on top of the given handler.
func New(handler slog.Handler) *Logger {
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger with text output.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger with JSON output.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFromConfig picks format ("json" or "text") and level by name.
// Unknown values fall back to text/info.
func NewFromConfig(format, level string) *Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return NewJSONLogger(os.Stdout, lvl)
	}
	return NewTextLogger(os.Stderr, lvl)
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return New(nopHandler{})
}

// ParseLevel maps debug/info/warn/error to slog levels.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// With returns a Logger with the given attributes added to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithComponent tags entries with the emitting package.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

func Component(name string) slog.Attr { return slog.String("component", name) }

func Address(a common.Address) slog.Attr { return slog.String("address", a.Hex()) }

func TxHash(h common.Hash) slog.Attr { return slog.String("tx_hash", h.Hex()) }

func Action(name string) slog.Attr { return slog.String("action", name) }

func Query(name string) slog.Attr { return slog.String("query", name) }

func Code(c int) slog.Attr { return slog.Int("code", c) }

// Err creates an error attribute; nil errors are rendered as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
