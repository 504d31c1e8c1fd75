// Package logging builds the agent's shared slog logger: a primary text
// handler, an optional append-only file mirror and any extra handlers such as
// the in-memory recent-logs buffer.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures New.
type Options struct {
	Level  slog.Level
	Output io.Writer // defaults to os.Stderr

	// FilePath enables the file mirror when non-empty.
	FilePath string
	// Blacklist suppresses mirrored lines containing any of these substrings.
	// The primary output is never filtered.
	Blacklist []string

	Extra []slog.Handler
}

// New returns the shared logger and its file mirror. The mirror is never nil;
// without a FilePath it discards everything and Release is a no-op.
func New(opts Options) (*slog.Logger, *Mirror, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	mirror := &Mirror{blacklist: compact(opts.Blacklist)}
	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", opts.FilePath, err)
		}
		mirror.file = f
		mirror.path = opts.FilePath
	}

	handlers := []slog.Handler{slog.NewTextHandler(out, handlerOpts)}
	if mirror.file != nil {
		handlers = append(handlers, slog.NewTextHandler(mirror, handlerOpts))
	}
	handlers = append(handlers, opts.Extra...)

	return slog.New(Tee(handlers...)), mirror, nil
}

// ParseLevel parses "debug", "info", "warn" or "error" (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// Tee fans every record out to all handlers that accept its level.
func Tee(handlers ...slog.Handler) slog.Handler {
	return teeHandler(handlers)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
