package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pitrozx/rscap/internal/api/models"
	"github.com/pitrozx/rscap/internal/presets"
)

// registerPresetRoutes registers the preset management endpoints.
func (s *Server) registerPresetRoutes() {
	// List stored presets
	huma.Register(s.api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/api/presets",
		Summary:     "List Presets",
		Description: "Get all stored recording presets",
		Tags:        []string{"presets"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.PresetListResponse, error) {
		all := s.options.Presets.All()
		return &models.PresetListResponse{
			Body: models.PresetListData{
				Presets: all,
				Count:   len(all),
			},
		}, nil
	})

	// Create or update a preset
	huma.Register(s.api, huma.Operation{
		OperationID: "put-preset",
		Method:      http.MethodPut,
		Path:        "/api/presets/{name}",
		Summary:     "Put Preset",
		Description: "Create or update a named recording preset. The stored request is normalized " +
			"with defaults and validated before saving.",
		Tags:     []string{"presets"},
		Errors:   []int{401, 422, 500},
		Security: withAuth(),
	}, func(_ context.Context, input *struct {
		Name string `path:"name" maxLength:"100" example:"standup" doc:"Preset name"`
		Body models.PresetPutData
	}) (*models.PresetResponse, error) {
		err := s.options.Presets.Put(input.Name, presets.Preset{
			Description: input.Body.Description,
			Request:     input.Body.Request,
		})
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid preset", err)
		}

		saved, ok := s.options.Presets.Get(input.Name)
		if !ok {
			return nil, huma.Error500InternalServerError("preset not stored")
		}
		return &models.PresetResponse{Body: saved}, nil
	})

	// Delete a preset
	huma.Register(s.api, huma.Operation{
		OperationID: "delete-preset",
		Method:      http.MethodDelete,
		Path:        "/api/presets/{name}",
		Summary:     "Delete Preset",
		Description: "Remove a stored recording preset",
		Tags:        []string{"presets"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"standup" doc:"Preset name"`
	}) (*struct{}, error) {
		if err := s.options.Presets.Remove(input.Name); err != nil {
			if errors.Is(err, presets.ErrNotFound) {
				return nil, huma.Error404NotFound(err.Error())
			}
			return nil, huma.Error500InternalServerError("removing preset failed", err)
		}
		return &struct{}{}, nil
	})
}
