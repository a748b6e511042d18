package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogEntry is one captured log record, with attributes flattened for
// assertions.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogRecorder is a slog.Handler that captures every record. Safe for
// concurrent use.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// Logger returns a logger writing into the recorder.
func (r *LogRecorder) Logger() *slog.Logger {
	return slog.New(r)
}

// Enabled reports true for every level.
func (r *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle captures the record.
func (r *LogRecorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any)
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, LogEntry{
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   attrs,
	})
	return nil
}

// WithAttrs returns the recorder unchanged; captured attributes come from
// the records themselves.
func (r *LogRecorder) WithAttrs([]slog.Attr) slog.Handler {
	return r
}

// WithGroup returns the recorder unchanged.
func (r *LogRecorder) WithGroup(string) slog.Handler {
	return r
}

// Entries returns a copy of the captured entries.
func (r *LogRecorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Find returns the first entry at level with the given message, or nil.
func (r *LogRecorder) Find(level slog.Level, message string) *LogEntry {
	for _, e := range r.Entries() {
		if e.Level == level && e.Message == message {
			entry := e
			return &entry
		}
	}
	return nil
}
