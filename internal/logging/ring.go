package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one buffered log line, shaped for the recent-logs API.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Module    string         `json:"module"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// ringBuffer keeps the last capacity entries.
type ringBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{entries: make([]Entry, capacity)}
}

func (rb *ringBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.entries)
	if rb.next == 0 {
		rb.full = true
	}
}

// Snapshot returns the buffered entries, oldest first.
func (rb *ringBuffer) Snapshot() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if !rb.full {
		out := make([]Entry, rb.next)
		copy(out, rb.entries[:rb.next])
		return out
	}
	out := make([]Entry, 0, len(rb.entries))
	out = append(out, rb.entries[rb.next:]...)
	out = append(out, rb.entries[:rb.next]...)
	return out
}

// ringHandler writes records into the ring buffer.
type ringHandler struct {
	ring  *ringBuffer
	level slog.Leveler
	attrs []slog.Attr
}

func newRingHandler(ring *ringBuffer, level slog.Leveler) *ringHandler {
	return &ringHandler{ring: ring, level: level}
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ringHandler) Handle(_ context.Context, r slog.Record) error {
	entry := Entry{
		Timestamp: r.Time,
		Level:     levelName(r.Level),
		Message:   r.Message,
		Attrs:     make(map[string]any),
	}

	collect := func(a slog.Attr) {
		if a.Key == "module" {
			entry.Module = a.Value.String()
			return
		}
		entry.Attrs[a.Key] = a.Value.Any()
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	if len(entry.Attrs) == 0 {
		entry.Attrs = nil
	}
	h.ring.Add(entry)
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ringHandler{ring: h.ring, level: h.level, attrs: merged}
}

func (h *ringHandler) WithGroup(string) slog.Handler { return h }

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
