package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingStartedEvent, 1)

	unsub := bus.Subscribe(func(e RecordingStartedEvent) {
		received <- e
	})
	defer unsub()

	ev := RecordingStartedEvent{
		Bucket:      "recordings",
		Key:         "standup/2026-01-02.mp4",
		Container:   "mp4",
		BitrateKbps: 1500,
		Timestamp:   "2026-01-02T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.Key != ev.Key {
		t.Errorf("Key = %q, want %q", got.Key, ev.Key)
	}
	if got.BitrateKbps != ev.BitrateKbps {
		t.Errorf("BitrateKbps = %d, want %d", got.BitrateKbps, ev.BitrateKbps)
	}
}

func TestBusMultipleSubscribers(_ *testing.T) {
	bus := New()
	first := make(chan RecordingFinishedEvent, 1)
	second := make(chan RecordingFinishedEvent, 1)

	unsub1 := bus.Subscribe(func(e RecordingFinishedEvent) { first <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e RecordingFinishedEvent) { second <- e })
	defer unsub2()

	bus.Publish(RecordingFinishedEvent{Key: "clip.mp4", Bytes: 1024})

	<-first
	<-second
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingFailedEvent, 1)

	unsub := bus.Subscribe(func(e RecordingFailedEvent) {
		received <- e
	})

	bus.Publish(RecordingFailedEvent{Key: "first.mp4"})
	<-received

	unsub()

	bus.Publish(RecordingFailedEvent{Key: "second.mp4"})
	select {
	case <-received:
		t.Fatal("received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBusTypeIsolation(t *testing.T) {
	bus := New()

	started := make(chan bool, 1)
	failed := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ RecordingStartedEvent) { started <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ RecordingFailedEvent) { failed <- true })
	defer unsub2()

	bus.Publish(RecordingStartedEvent{Key: "clip.mp4"})
	<-started

	select {
	case <-failed:
		t.Fatal("failure subscriber must not receive started events")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(RecordingFailedEvent{Key: "clip.mp4", Category: "sink"})
	<-failed

	select {
	case <-started:
		t.Fatal("started subscriber must not receive failure events")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBusConcurrentPublish(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	goroutines := 10
	perGoroutine := 100
	expected := goroutines * perGoroutine

	received := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ ConfigReloadedEvent) {
		received <- true
	})
	defer unsub()

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				bus.Publish(ConfigReloadedEvent{
					Path:      "presets.toml",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-received
	}
}

func TestBusAllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"RecordingStarted", RecordingStartedEvent{Key: "a.mp4"}},
		{"RecordingFinished", RecordingFinishedEvent{Key: "a.mp4", Bytes: 10}},
		{"RecordingFailed", RecordingFailedEvent{Key: "a.mp4", Category: "pipeline"}},
		{"ConfigReloaded", ConfigReloadedEvent{Path: "presets.toml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case RecordingStartedEvent:
				unsub = bus.Subscribe(func(e RecordingStartedEvent) { received <- e })
			case RecordingFinishedEvent:
				unsub = bus.Subscribe(func(e RecordingFinishedEvent) { received <- e })
			case RecordingFailedEvent:
				unsub = bus.Subscribe(func(e RecordingFailedEvent) { received <- e })
			case ConfigReloadedEvent:
				unsub = bus.Subscribe(func(e ConfigReloadedEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBusUnknownHandlerIsNoop(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(int) {})
	unsub()
}

func TestEventTypeIdentifiers(t *testing.T) {
	tests := []struct {
		event Event
		want  uint32
	}{
		{RecordingStartedEvent{}, TypeRecordingStarted},
		{RecordingFinishedEvent{}, TypeRecordingFinished},
		{RecordingFailedEvent{}, TypeRecordingFailed},
		{ConfigReloadedEvent{}, TypeConfigReloaded},
	}
	for _, tt := range tests {
		if got := tt.event.Type(); got != tt.want {
			t.Errorf("%T.Type() = %d, want %d", tt.event, got, tt.want)
		}
	}
}

func TestEventJSONShape(t *testing.T) {
	ev := RecordingFinishedEvent{
		Bucket:          "recordings",
		Key:             "standup/2026-01-02.mp4",
		Bytes:           10485760,
		Frames:          1800,
		DurationSeconds: 60.5,
		Timestamp:       "2026-01-02T10:31:00Z",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"bucket", "key", "bytes", "frames", "duration_seconds", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("marshaled event missing %q field", key)
		}
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[RecordingStartedEvent](bus, ch)
	defer unsub()

	bus.Publish(RecordingStartedEvent{Key: "clip.mp4", Container: "mkv"})

	received := <-ch
	started, ok := received.(RecordingStartedEvent)
	if !ok {
		t.Fatalf("got %T, want RecordingStartedEvent", received)
	}
	if started.Container != "mkv" {
		t.Errorf("Container = %q, want mkv", started.Container)
	}
}

func TestSubscribeToChannelNonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[RecordingFailedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(RecordingFailedEvent{Key: "clip.mp4"})
		done <- true
	}()

	<-done
}
