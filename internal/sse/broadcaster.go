// Package sse rebroadcasts recording lifecycle events to HTTP clients
// over Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tmaxmax/go-sse"

	"github.com/pitrozx/rscap/internal/events"
)

// Event names sent to clients.
const (
	EventRecordingStarted  = "recording-started"
	EventRecordingFinished = "recording-finished"
	EventRecordingFailed   = "recording-failed"
	EventConfigReloaded    = "config-reloaded"
)

const defaultTopic = "updates"

// Broadcaster subscribes to the in-process event bus and fans recording
// lifecycle events out to connected SSE clients.
type Broadcaster struct {
	server *sse.Server
	bus    *events.Bus
	logger *slog.Logger
	topic  string

	eventID atomic.Int64

	mu     sync.Mutex
	unsubs []func()
}

// New creates a broadcaster over bus. Clients are admitted to a single
// shared topic.
func New(bus *events.Bus, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		server: &sse.Server{},
		bus:    bus,
		logger: logger.With("component", "sse"),
		topic:  defaultTopic,
	}
	b.server.OnSession = b.onSession
	return b
}

func (b *Broadcaster) onSession(_ http.ResponseWriter, r *http.Request) ([]string, bool) {
	b.logger.Debug("Client connected", "remote", r.RemoteAddr)
	return []string{b.topic}, true
}

// Start subscribes the broadcaster to the event bus.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(func(e events.RecordingStartedEvent) {
			b.broadcast(EventRecordingStarted, e)
		}),
		b.bus.Subscribe(func(e events.RecordingFinishedEvent) {
			b.broadcast(EventRecordingFinished, e)
		}),
		b.bus.Subscribe(func(e events.RecordingFailedEvent) {
			b.broadcast(EventRecordingFailed, e)
		}),
		b.bus.Subscribe(func(e events.ConfigReloadedEvent) {
			b.broadcast(EventConfigReloaded, e)
		}),
	)
}

// broadcast publishes one event to every connected client.
func (b *Broadcaster) broadcast(name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		b.logger.Warn("Failed to marshal event", "event", name, "error", err)
		return
	}

	msg := &sse.Message{}
	msg.Type = sse.Type(name)
	msg.ID = sse.ID(strconv.FormatInt(b.eventID.Add(1), 10))
	msg.AppendData(string(payload))

	if err := b.server.Publish(msg, b.topic); err != nil {
		b.logger.Warn("Failed to publish event", "event", name, "error", err)
	}
}

// Handler returns the HTTP handler serving the event stream.
func (b *Broadcaster) Handler() http.Handler {
	return b.server
}

// Shutdown unsubscribes from the bus and disconnects all clients.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.mu.Unlock()

	return b.server.Shutdown(ctx)
}
