package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const ringCapacity = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu        sync.RWMutex
	cfg       Config
	ready     bool
	ring      = newRingBuffer(ringCapacity)
	loggers   = make(map[string]*slog.Logger)
	levelVars = make(map[string]*slog.LevelVar)
)

// Initialize configures the logging system. Calling it again applies the
// new config to every module logger already handed out.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = config
	ready = true

	for module, lv := range levelVars {
		lv.Set(moduleLevel(module))
		loggers[module] = newModuleLogger(module, lv)
	}

	base := &slog.LevelVar{}
	base.Set(moduleLevel(""))
	slog.SetDefault(slog.New(newHandler(cfg.Format, base)))
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := loggers[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(moduleLevel(module))
	logger := newModuleLogger(module, lv)
	loggers[module] = logger
	levelVars[module] = lv
	return logger
}

// Recent returns up to limit buffered log entries, oldest first. A limit
// of 0 returns everything buffered.
func Recent(limit int) []Entry {
	entries := ring.Snapshot()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

func newModuleLogger(module string, lv *slog.LevelVar) *slog.Logger {
	format := cfg.Format
	if !ready {
		format = "text"
	}
	return slog.New(newHandler(format, lv)).With("module", module)
}

// newHandler builds the fanout chain for one logger: stdout when connected
// to something, journal when one is listening, and always the ring buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	var handlers []slog.Handler

	if stdoutUsable() {
		opts := &slog.HandlerOptions{Level: level}
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journalListening() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newRingHandler(ring, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return multiHandler(handlers)
}

// moduleLevel resolves the configured level for a module, falling back to
// the global level and then to info. Callers hold mu.
func moduleLevel(module string) slog.Level {
	if !ready {
		return slog.LevelInfo
	}
	if override, ok := cfg.Modules[module]; ok {
		if l, ok := parseLevel(override); ok {
			return l
		}
	}
	if l, ok := parseLevel(cfg.Level); ok {
		return l
	}
	return slog.LevelInfo
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

// stdoutUsable reports whether stdout goes anywhere worth writing: a
// terminal, pipe, socket, or regular file.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}
