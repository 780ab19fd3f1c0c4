package events

// Event type constants for the dispatcher.
const (
	TypeRecordingStarted uint32 = iota + 1
	TypeRecordingFinished
	TypeRecordingFailed
	TypeConfigReloaded
)

// Event interface required by the dispatcher.
type Event interface {
	Type() uint32
}

// RecordingStartedEvent is published once a session is negotiated and the
// pipeline begins streaming into the destination object.
type RecordingStartedEvent struct {
	Bucket      string `json:"bucket" example:"recordings" doc:"Destination bucket"`
	Key         string `json:"key" example:"standup/2026-01-02.mp4" doc:"Destination object key"`
	Container   string `json:"container" example:"mp4" doc:"Output container format"`
	BitrateKbps int    `json:"bitrate_kbps" example:"1500" doc:"Encoder target bitrate in kbit/s"`
	Timestamp   string `json:"timestamp" example:"2026-01-02T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingFinishedEvent is published after the recorded object is finalized.
type RecordingFinishedEvent struct {
	Bucket          string  `json:"bucket" example:"recordings" doc:"Destination bucket"`
	Key             string  `json:"key" example:"standup/2026-01-02.mp4" doc:"Finalized object key"`
	Bytes           int64   `json:"bytes" example:"10485760" doc:"Object size in bytes"`
	Frames          int64   `json:"frames" example:"1800" doc:"Video frames decoded"`
	DurationSeconds float64 `json:"duration_seconds" example:"60.5" doc:"Recording wall-clock duration"`
	Timestamp       string  `json:"timestamp" example:"2026-01-02T10:31:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingFinishedEvent.
func (e RecordingFinishedEvent) Type() uint32 { return TypeRecordingFinished }

// RecordingFailedEvent is published when a session ends with an error.
type RecordingFailedEvent struct {
	Bucket    string `json:"bucket" example:"recordings" doc:"Destination bucket"`
	Key       string `json:"key" example:"standup/2026-01-02.mp4" doc:"Intended object key"`
	Category  string `json:"category" example:"pipeline" doc:"Failure category: negotiation, pipeline, sink, or canceled"`
	Error     string `json:"error" example:"pipeline transcode: decoder failed" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2026-01-02T10:30:30Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingFailedEvent.
func (e RecordingFailedEvent) Type() uint32 { return TypeRecordingFailed }

// ConfigReloadedEvent is published when a watched configuration file is
// reloaded at runtime.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"presets.toml" doc:"Reloaded file path"`
	Timestamp string `json:"timestamp" example:"2026-01-02T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
