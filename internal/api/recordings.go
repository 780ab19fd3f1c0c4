package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pitrozx/rscap/internal/api/models"
	"github.com/pitrozx/rscap/internal/recorder"
	"github.com/pitrozx/rscap/internal/types"
)

// registerRecordingRoutes registers the recording session endpoints.
func (s *Server) registerRecordingRoutes() {
	// Start a recording session
	huma.Register(s.api, huma.Operation{
		OperationID: "start-recording",
		Method:      http.MethodPost,
		Path:        "/api/recordings",
		Summary:     "Start Recording",
		Description: "Negotiate a screen capture session and start recording into the destination object. " +
			"A preset name may supply the base request; explicit fields override preset values.",
		Tags:     []string{"recordings"},
		Errors:   []int{401, 404, 409, 422, 500},
		Security: withAuth(),
	}, func(ctx context.Context, input *models.StartRecordingRequest) (*models.RecordingStartedResponse, error) {
		req, err := s.resolveRequest(input.Body)
		if err != nil {
			return nil, err
		}

		if err := s.options.Recorder.Start(ctx, req); err != nil {
			return nil, mapRecorderError(err)
		}

		return &models.RecordingStartedResponse{
			Body: models.RecordingStartedData{
				Bucket: req.Bucket,
				Key:    req.ObjectKey(),
			},
		}, nil
	})

	// Stop the active recording session
	huma.Register(s.api, huma.Operation{
		OperationID: "stop-recording",
		Method:      http.MethodDelete,
		Path:        "/api/recordings/active",
		Summary:     "Stop Recording",
		Description: "Signal the active recording to stop. The session drains buffered frames and finalizes " +
			"the destination object before tearing down.",
		Tags:     []string{"recordings"},
		Errors:   []int{401, 409, 500},
		Security: withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.StopRecordingResponse, error) {
		if err := s.options.Recorder.Stop(); err != nil {
			return nil, mapRecorderError(err)
		}
		return &models.StopRecordingResponse{
			Body: models.StopRecordingData{Message: "Recording stopping"},
		}, nil
	})

	// Get the active recording session
	huma.Register(s.api, huma.Operation{
		OperationID: "get-recording",
		Method:      http.MethodGet,
		Path:        "/api/recordings/active",
		Summary:     "Get Active Recording",
		Description: "Get the status of the active recording session",
		Tags:        []string{"recordings"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.ActiveRecordingResponse, error) {
		status, ok := s.options.Recorder.Active()
		if !ok {
			return nil, huma.Error404NotFound("no recording is active")
		}
		return &models.ActiveRecordingResponse{Body: status}, nil
	})
}

// resolveRequest builds the recording request from the API payload:
// preset first when named, explicit fields on top, then defaults and
// validation.
func (s *Server) resolveRequest(in models.StartRecordingData) (types.RecordingRequest, error) {
	var req types.RecordingRequest

	if in.Preset != "" {
		if s.options.Presets == nil {
			return req, huma.Error404NotFound("preset not found: " + in.Preset)
		}
		p, ok := s.options.Presets.Get(in.Preset)
		if !ok {
			return req, huma.Error404NotFound("preset not found: " + in.Preset)
		}
		req = p.Request
	}

	if in.Bucket != "" {
		req.Bucket = in.Bucket
	}
	if in.FilenameTemplate != "" {
		req.FilenameTemplate = in.FilenameTemplate
	}
	if in.Container != "" {
		req.Container = types.Container(in.Container)
	}
	if in.BitrateKbps != 0 {
		req.BitrateKbps = in.BitrateKbps
	}
	if in.RateControl != "" {
		req.RateControl = types.RateControlMode(in.RateControl)
	}
	if in.AudioDevice != "" {
		req.AudioDevice = in.AudioDevice
	}

	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return req, huma.Error422UnprocessableEntity("invalid recording request", err)
	}
	return req, nil
}

// mapRecorderError maps recorder errors to HTTP errors.
func mapRecorderError(err error) error {
	switch {
	case errors.Is(err, recorder.ErrBusy):
		return huma.Error409Conflict("a recording is already active", err)
	case errors.Is(err, recorder.ErrIdle):
		return huma.Error409Conflict("no recording is active", err)
	default:
		return huma.Error500InternalServerError("recorder error", err)
	}
}
