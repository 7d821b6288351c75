package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[90m",
	slog.LevelInfo:  "\033[32m",
	slog.LevelWarn:  "\033[33m",
	slog.LevelError: "\033[31m",
}

const (
	dim   = "\033[90m"
	reset = "\033[0m"
)

// consoleHandler prints one line per record:
//
//	15:04:05 INFO  Batch completed batch=3 total=12
//
// Attributes added through WithAttrs are rendered once and reused.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   *slog.HandlerOptions
	color  bool
	groups []string
	preset string
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, opts: opts, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format(time.TimeOnly))
	sb.WriteByte(' ')
	if h.color {
		sb.WriteString(levelColors[r.Level])
	}
	sb.WriteString(padLevel(r.Level.String()))
	if h.color {
		sb.WriteString(reset)
	}
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	sb.WriteString(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&sb, a, h.groups)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *consoleHandler) appendAttr(sb *strings.Builder, a slog.Attr, groups []string) {
	if h.opts.ReplaceAttr != nil {
		a = h.opts.ReplaceAttr(groups, a)
	}
	a.Value = a.Value.Resolve()
	if a.Key == "" && a.Value.Kind() != slog.KindGroup {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(groups[:len(groups):len(groups)], a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(sb, ga, inner)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	sb.WriteByte(' ')
	if h.color {
		sb.WriteString(dim + key + "=" + reset)
	} else {
		sb.WriteString(key + "=")
	}
	sb.WriteString(quoteIfNeeded(a.Value.String()))
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	for _, a := range attrs {
		h.appendAttr(&sb, a, h.groups)
	}
	h2 := *h
	h2.preset += sb.String()
	return &h2
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(h.groups[:len(h.groups):len(h.groups)], name)
	return &h2
}

func padLevel(s string) string {
	if len(s) < 5 {
		return s + strings.Repeat(" ", 5-len(s))
	}
	return s
}

// quoteIfNeeded keeps paths and messages with spaces readable as a single
// value.
func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
