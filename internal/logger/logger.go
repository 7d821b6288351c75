// Package logger is the process-wide structured logger. Console output is
// human-oriented; an optional JSONL sink receives the same records. Both
// pass through the redactor so keys and book text never reach a log.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	std        *slog.Logger
	isTerminal = term.IsTerminal
)

func init() {
	Init(LevelInfo, nil)
}

// Init replaces the global logger. Records at or above level go to stderr
// and, when logFile is non-nil, to logFile as JSON lines. Color is used
// only on an interactive stderr without a log file.
func Init(level slog.Level, logFile io.Writer) {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	color := logFile == nil && isTerminal(int(os.Stderr.Fd()))
	var h slog.Handler = newConsoleHandler(os.Stderr, opts, color)
	if logFile != nil {
		h = fanout{h, slog.NewJSONHandler(logFile, opts)}
	}

	std = slog.New(h)
	slog.SetDefault(std)
}

// ParseLevel maps "debug", "info", "warn" and "error" to a level.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func Debug(msg string, args ...any) { std.Debug(msg, args...) }
func Info(msg string, args ...any)  { std.Info(msg, args...) }
func Warn(msg string, args ...any)  { std.Warn(msg, args...) }
func Error(msg string, args ...any) { std.Error(msg, args...) }
