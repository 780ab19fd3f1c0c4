package types

import (
	"errors"
	"fmt"
)

// Container identifies the output container format.
type Container string

const (
	ContainerMP4 Container = "mp4"
	ContainerMKV Container = "mkv"
)

// FormatName returns the muxer short name for the container.
func (c Container) FormatName() string {
	if c == ContainerMKV {
		return "matroska"
	}
	return "mp4"
}

// RateControlMode represents the rate control strategy
type RateControlMode string

const (
	RateControlCBR RateControlMode = "cbr" // Constant bitrate
	RateControlVBR RateControlMode = "vbr" // Variable bitrate
)

// Bitrate bounds in kbit/s.
const (
	MinBitrateKbps     = 100
	MaxBitrateKbps     = 10000
	DefaultBitrateKbps = 1000
)

// DefaultAudioDevice is the ALSA device used when none is selected.
const DefaultAudioDevice = "default"

// RecordingRequest describes one recording session: where the capture goes
// and how it is encoded.
type RecordingRequest struct {
	Bucket           string          `json:"bucket" toml:"bucket"`
	FilenameTemplate string          `json:"filename_template" toml:"filename_template"`
	Container        Container       `json:"container,omitempty" toml:"container,omitempty"`
	BitrateKbps      int             `json:"bitrate_kbps,omitempty" toml:"bitrate_kbps,omitempty"`
	RateControl      RateControlMode `json:"rate_control,omitempty" toml:"rate_control,omitempty"`
	AudioDevice      string          `json:"audio_device,omitempty" toml:"audio_device,omitempty"`
}

// ApplyDefaults fills unset fields with their defaults.
func (r *RecordingRequest) ApplyDefaults() {
	if r.Container == "" {
		r.Container = ContainerMP4
	}
	if r.BitrateKbps == 0 {
		r.BitrateKbps = DefaultBitrateKbps
	}
	if r.RateControl == "" {
		r.RateControl = RateControlCBR
	}
	if r.AudioDevice == "" {
		r.AudioDevice = DefaultAudioDevice
	}
}

// Validate checks field constraints. Sessions assume a validated request.
func (r *RecordingRequest) Validate() error {
	if r.Bucket == "" {
		return errors.New("bucket is required")
	}
	if r.FilenameTemplate == "" {
		return errors.New("filename_template is required")
	}
	switch r.Container {
	case ContainerMP4, ContainerMKV:
	default:
		return fmt.Errorf("container must be mp4 or mkv, got %q", r.Container)
	}
	if r.BitrateKbps < MinBitrateKbps || r.BitrateKbps > MaxBitrateKbps {
		return fmt.Errorf("bitrate_kbps must be between %d and %d, got %d",
			MinBitrateKbps, MaxBitrateKbps, r.BitrateKbps)
	}
	switch r.RateControl {
	case RateControlCBR, RateControlVBR:
	default:
		return fmt.Errorf("rate_control must be cbr or vbr, got %q", r.RateControl)
	}
	return nil
}

// ObjectKey derives the destination object key from the filename template
// and container extension.
func (r *RecordingRequest) ObjectKey() string {
	return fmt.Sprintf("%s.%s", r.FilenameTemplate, r.Container)
}

// BitrateBps returns the encoder target in bits per second.
func (r *RecordingRequest) BitrateBps() int64 {
	return int64(r.BitrateKbps) * 1000
}
