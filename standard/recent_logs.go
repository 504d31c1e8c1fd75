// Package standard provides the agent's built-in diagnostic components.
package standard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log record.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     slog.Level     `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// Attr returns the string form of a context value, or "" when absent.
func (e LogEntry) Attr(key string) string {
	v, ok := e.Context[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return slog.AnyValue(v).String()
}

// RecentLogs keeps the last N log records in memory.
// It is an slog.Handler so it can sit behind the shared logger.
type RecentLogs struct {
	store  *logStore
	attrs  []slog.Attr
	groups []string
}

type logStore struct {
	mu         sync.Mutex
	entries    []LogEntry
	maxEntries int
	level      slog.Leveler
}

// NewRecentLogs creates a new RecentLogs ring buffer recording every level.
func NewRecentLogs(maxEntries int) *RecentLogs {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &RecentLogs{
		store: &logStore{
			entries:    make([]LogEntry, 0, maxEntries),
			maxEntries: maxEntries,
			level:      slog.LevelDebug,
		},
	}
}

// Enabled implements slog.Handler.
func (r *RecentLogs) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.store.level.Level()
}

// Handle implements slog.Handler.
func (r *RecentLogs) Handle(_ context.Context, rec slog.Record) error {
	fields := make(map[string]any, len(r.attrs)+rec.NumAttrs())
	for _, a := range r.attrs {
		addAttr(fields, "", a)
	}
	prefix := strings.Join(r.groups, ".")
	rec.Attrs(func(a slog.Attr) bool {
		addAttr(fields, prefix, a)
		return true
	})

	entry := LogEntry{
		Timestamp: rec.Time.UTC(),
		Level:     rec.Level,
		Message:   rec.Message,
		Context:   fields,
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)

	// Keep only last N entries (ringbuffer)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[len(s.entries)-s.maxEntries:]
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (r *RecentLogs) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(r.groups, ".")
	qualified := make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	qualified = append(qualified, r.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		qualified = append(qualified, a)
	}
	return &RecentLogs{store: r.store, attrs: qualified, groups: r.groups}
}

// WithGroup implements slog.Handler.
func (r *RecentLogs) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	groups := append(append([]string{}, r.groups...), name)
	return &RecentLogs{store: r.store, attrs: r.attrs, groups: groups}
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			addAttr(dst, key, ga)
		}
		return
	}
	dst[key] = a.Value.Any()
}

// Entries returns a copy of the buffered entries, oldest first.
func (r *RecentLogs) Entries() []LogEntry {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Matching returns the buffered entries whose message equals msg.
func (r *RecentLogs) Matching(msg string) []LogEntry {
	var out []LogEntry
	for _, e := range r.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// GetData returns the buffered entries with per-level counts.
func (r *RecentLogs) GetData() map[string]any {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Calculate stats inline (avoid double-locking)
	var errorCount, warnCount, infoCount, debugCount int
	for _, entry := range s.entries {
		switch {
		case entry.Level >= slog.LevelError:
			errorCount++
		case entry.Level >= slog.LevelWarn:
			warnCount++
		case entry.Level >= slog.LevelInfo:
			infoCount++
		default:
			debugCount++
		}
	}

	return map[string]any{
		"entries": append([]LogEntry(nil), s.entries...),
		"stats": map[string]any{
			"total_count":    len(s.entries),
			"errors_count":   errorCount,
			"warnings_count": warnCount,
			"info_count":     infoCount,
			"debug_count":    debugCount,
			"max_entries":    s.maxEntries,
		},
	}
}
