package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pitrozx/rscap/internal/api/models"
	"github.com/pitrozx/rscap/internal/logging"
)

// registerLogRoutes registers the buffered log tail endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Get the most recent log entries from the in-memory ring buffer, oldest first",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, input *struct {
		Limit int `query:"limit" minimum:"0" maximum:"1000" example:"100" doc:"Maximum entries to return, defaults to 100"`
	}) (*models.LogsResponse, error) {
		limit := input.Limit
		if limit == 0 {
			limit = 100
		}

		entries := logging.Recent(limit)
		return &models.LogsResponse{
			Body: models.LogsData{
				Entries: entries,
				Count:   len(entries),
			},
		}, nil
	})
}
