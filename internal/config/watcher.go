package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches editor write bursts into a single reload.
const defaultDebounce = 1500 * time.Millisecond

// Watcher watches a file and delivers freshly loaded values of T to
// subscribers whenever it changes. The load function runs on every change
// so subscribers never see stale data.
type Watcher[T any] struct {
	// Debounce is how long to wait after the last write before reloading.
	// Set before Start.
	Debounce time.Duration

	// OnError is called when a reload fails to load or parse.
	// Set before Start.
	OnError func(error)

	path   string
	load   func(string) (T, error)
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]func(T)
	nextID int

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher for path. load runs fresh on every change.
func NewWatcher[T any](path string, load func(string) (T, error), logger *slog.Logger) *Watcher[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher[T]{
		Debounce: defaultDebounce,
		path:     path,
		load:     load,
		logger:   logger,
		subs:     make(map[int]func(T)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnChange registers fn to run after each successful reload. The returned
// function unsubscribes it.
func (w *Watcher[T]) OnChange(fn func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Start begins watching the file for changes.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	w.logger.Info("Watching file for changes", "path", w.path, "debounce", w.Debounce)
	go w.run()
	return nil
}

// Stop stops watching and releases resources.
func (w *Watcher[T]) Stop() error {
	w.cancel()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher[T]) run() {
	var pending *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			w.logger.Debug("File watcher stopped", "path", w.path)
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Write covers in-place edits, create covers editors that
			// replace the file.
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.NewTimer(w.Debounce)
			fire = pending.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watch error", "error", err)
		}
	}
}

// reload loads the file and hands every subscriber the same snapshot.
func (w *Watcher[T]) reload() {
	value, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("Reload failed", "path", w.path, "error", err)
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}

	w.mu.RLock()
	subs := make([]func(T), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.RUnlock()

	w.logger.Debug("Reloaded", "path", w.path, "subscribers", len(subs))
	for _, fn := range subs {
		fn(value)
	}
}
