// Package audio enumerates ALSA capture devices. The device ID returned
// here is the value a recording request carries in its audio_device
// field.
package audio

import "fmt"

// Device describes one ALSA capture device.
type Device struct {
	// ID is the ALSA device name, e.g. "hw:1,0".
	ID          string   `json:"id"`
	CardNumber  int      `json:"card_number"`
	CardName    string   `json:"card_name"`
	Name        string   `json:"name"`
	MaxChannels int      `json:"max_channels"`
	SampleRates []int    `json:"sample_rates,omitempty"`
	Formats     []string `json:"formats,omitempty"`
}

// Detector lists the capture devices available on this host.
type Detector interface {
	ListDevices() ([]Device, error)
}

// NewDetector returns the detector for the current platform.
func NewDetector() Detector {
	return newPlatformDetector()
}

// FormatALSADevice builds the "hw:card,device" name ALSA and FFmpeg
// accept.
func FormatALSADevice(card, device int) string {
	return fmt.Sprintf("hw:%d,%d", card, device)
}
