package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pitrozx/rscap/internal/api/models"
	"github.com/pitrozx/rscap/internal/audio"
)

// registerAudioRoutes registers the audio device endpoints under /api/devices/audio.
func (s *Server) registerAudioRoutes() {
	// GET /api/devices/audio - List ALSA capture devices with capabilities
	huma.Register(s.api, huma.Operation{
		OperationID: "list-audio-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices/audio",
		Summary:     "List Audio Devices",
		Description: "List ALSA capture devices with their capabilities, including supported " +
			"sample rates, formats, and channel counts",
		Tags:     []string{"devices"},
		Errors:   []int{401, 500},
		Security: withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.AudioDevicesResponse, error) {
		detector := audio.NewDetector()
		devices, err := detector.ListDevices()
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "Failed to enumerate audio devices", err)
		}

		return &models.AudioDevicesResponse{
			Body: models.AudioDevicesData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})
}
