package nats

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pitrozx/rscap/internal/events"
)

// Publisher forwards recording lifecycle events from the in-process bus to
// NATS subjects. Publishing degrades to a no-op when the broker is
// unreachable.
type Publisher struct {
	url    string
	bus    *events.Bus
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	connected bool
	unsubs    []func()
}

// NewPublisher creates a publisher forwarding bus events to the broker
// at url.
func NewPublisher(url string, bus *events.Bus, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		url:    url,
		bus:    bus,
		logger: logger.With("component", "nats-publisher"),
	}
}

// Start subscribes to lifecycle events and connects to the broker. A
// failed connection leaves the publisher in offline mode: events are
// still consumed, publishing is skipped.
func (p *Publisher) Start() error {
	p.subscribe()

	opts := []nats.Option{
		nats.Name("rscap"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.mu.Lock()
			p.connected = false
			p.mu.Unlock()
			if err != nil {
				p.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.mu.Lock()
			p.connected = true
			p.mu.Unlock()
			p.logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(p.url, opts...)
	if err != nil {
		p.logger.Warn("Failed to connect to NATS, notifications disabled", "error", err)
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.connected = true
	p.mu.Unlock()

	p.logger.Info("Connected to NATS", "url", p.url)
	return nil
}

func (p *Publisher) subscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(func(e events.RecordingStartedEvent) {
			p.publish(SubjectRecordingStarted, e)
		}),
		p.bus.Subscribe(func(e events.RecordingFinishedEvent) {
			p.publish(SubjectRecordingFinished, e)
		}),
		p.bus.Subscribe(func(e events.RecordingFailedEvent) {
			p.publish(SubjectRecordingFailed, e)
		}),
	)
}

// publish sends payload as JSON. No-op when not connected.
func (p *Publisher) publish(subject string, payload any) {
	p.mu.RLock()
	conn := p.conn
	connected := p.connected
	p.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to marshal notification", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish notification", "subject", subject, "error", err)
		return
	}
	p.logger.Debug("Published notification", "subject", subject)
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn != nil
}

// Close unsubscribes from the bus and closes the connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.connected = false
	p.logger.Debug("NATS publisher closed")
}
