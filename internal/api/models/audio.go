package models

import "github.com/pitrozx/rscap/internal/audio"

// Audio device models
type AudioDevicesData struct {
	Devices []audio.Device `json:"devices" doc:"Detected ALSA capture devices"`
	Count   int            `json:"count" example:"2" doc:"Number of capture devices found"`
}

type AudioDevicesResponse struct {
	Body AudioDevicesData
}
