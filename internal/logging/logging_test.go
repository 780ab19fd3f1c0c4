package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input  string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"ERROR", slog.LevelError, true},
		{"verbose", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseLevel(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseLevel(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRingBufferWrapsAround(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Add(Entry{Message: string(rune('a' + i))})
	}

	got := rb.Snapshot()
	if len(got) != 3 {
		t.Fatalf("Snapshot() returned %d entries, want 3", len(got))
	}
	want := []string{"c", "d", "e"}
	for i, e := range got {
		if e.Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestRingBufferPartial(t *testing.T) {
	rb := newRingBuffer(10)
	rb.Add(Entry{Message: "only"})

	got := rb.Snapshot()
	if len(got) != 1 || got[0].Message != "only" {
		t.Errorf("Snapshot() = %v, want single %q entry", got, "only")
	}
}

func TestRingHandlerCapturesModule(t *testing.T) {
	rb := newRingBuffer(4)
	lv := &slog.LevelVar{}
	logger := slog.New(newRingHandler(rb, lv)).With("module", "pipeline")

	logger.Info("Transcode finished", "frames", 3)

	entries := rb.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("buffered %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "pipeline" {
		t.Errorf("Module = %q, want %q", e.Module, "pipeline")
	}
	if e.Message != "Transcode finished" {
		t.Errorf("Message = %q, want %q", e.Message, "Transcode finished")
	}
	if e.Level != "info" {
		t.Errorf("Level = %q, want %q", e.Level, "info")
	}
	if v, ok := e.Attrs["frames"]; !ok || v != int64(3) {
		t.Errorf("Attrs[frames] = %v, want 3", v)
	}
}

func TestRingHandlerRespectsLevel(t *testing.T) {
	rb := newRingBuffer(4)
	lv := &slog.LevelVar{}
	lv.Set(slog.LevelWarn)
	logger := slog.New(newRingHandler(rb, lv))

	logger.Info("dropped")
	logger.Warn("kept")

	entries := rb.Snapshot()
	if len(entries) != 1 || entries[0].Message != "kept" {
		t.Errorf("Snapshot() = %v, want only the warning", entries)
	}
}

func TestModuleLevelOverride(t *testing.T) {
	Initialize(Config{
		Level:  "warn",
		Format: "text",
		Modules: map[string]string{
			"portal": "debug",
		},
	})

	mu.RLock()
	defer mu.RUnlock()
	if got := moduleLevel("portal"); got != slog.LevelDebug {
		t.Errorf("moduleLevel(portal) = %v, want debug", got)
	}
	if got := moduleLevel("sink"); got != slog.LevelWarn {
		t.Errorf("moduleLevel(sink) = %v, want warn", got)
	}
}

func TestInitializeRetunesExistingLoggers(t *testing.T) {
	Initialize(Config{Level: "info", Format: "text"})
	GetLogger("recorder")

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"recorder": "error"},
	})

	mu.RLock()
	lv, ok := levelVars["recorder"]
	mu.RUnlock()
	if !ok {
		t.Fatal("recorder level var missing")
	}
	if lv.Level() != slog.LevelError {
		t.Errorf("recorder level after reinit = %v, want error", lv.Level())
	}
}

type countingHandler struct {
	records int
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *countingHandler) Handle(context.Context, slog.Record) error {
	h.records++
	return nil
}
func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandlerFansOut(t *testing.T) {
	a := &countingHandler{}
	b := &countingHandler{}
	m := multiHandler{a, b}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "fan", 0)
	if err := m.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if a.records != 1 || b.records != 1 {
		t.Errorf("records = %d/%d, want 1/1", a.records, b.records)
	}
}
