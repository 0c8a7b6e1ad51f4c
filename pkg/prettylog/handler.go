// Package prettylog is a human-oriented slog handler for development
// runs. It prints one colored line per record and masks credential
// material, so a dev console never shows full tokens. Production
// deployments keep a JSON handler.
package prettylog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
)

const timeFormat = "15:04:05.000"

const reset = "\033[0m"

const (
	yellow   = 33
	cyan     = 36
	darkGray = 90
	lightRed = 91
	white    = 97
)

func colorize(code int, s string) string {
	return "\033[" + strconv.Itoa(code) + "m" + s + reset
}

// secretKeys are attribute names whose values are masked before they
// reach the terminal.
var secretKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"access_secret": true,
	"client_secret": true,
	"code_verifier": true,
	"session_id":    true,
}

func mask(v string) string {
	if len(v) <= 6 {
		return "***"
	}
	return v[:4] + "***"
}

type Handler struct {
	level slog.Level
	attrs []slog.Attr
	group string
	mu    *sync.Mutex
	out   io.Writer
}

func NewHandler(out io.Writer, level slog.Level) *Handler {
	return &Handler{
		level: level,
		mu:    &sync.Mutex{},
		out:   out,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		next.group += "."
	}
	next.group += name
	return &next
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String()
	switch r.Level {
	case slog.LevelDebug:
		level = colorize(darkGray, level)
	case slog.LevelInfo:
		level = colorize(cyan, level)
	case slog.LevelWarn:
		level = colorize(yellow, level)
	case slog.LevelError:
		level = colorize(lightRed, level)
	}

	line := colorize(darkGray, r.Time.Format(timeFormat)) + " " + level + " " + colorize(white, r.Message)

	for _, attr := range h.attrs {
		line += " " + h.formatAttr(attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		line += " " + h.formatAttr(attr)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line+"\n")
	return err
}

func (h *Handler) formatAttr(attr slog.Attr) string {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	value := attr.Value.Resolve()
	text := value.String()
	if err, ok := value.Any().(error); ok {
		text = err.Error()
	}
	if secretKeys[attr.Key] {
		text = mask(text)
	}

	return colorize(darkGray, fmt.Sprintf("%s=%q", key, text))
}
