//go:build !linux

package audio

type stubDetector struct{}

func newPlatformDetector() Detector {
	return &stubDetector{}
}

// ListDevices returns no devices on platforms without ALSA.
func (d *stubDetector) ListDevices() ([]Device, error) {
	return nil, nil
}
