package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pitrozx/rscap/internal/api/models"
)

// registerObjectRoutes registers the destination object listing endpoint.
func (s *Server) registerObjectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-objects",
		Method:      http.MethodGet,
		Path:        "/api/objects",
		Summary:     "List Objects",
		Description: "List committed objects in a destination bucket, optionally filtered by key prefix",
		Tags:        []string{"objects"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Bucket string `query:"bucket" required:"true" example:"recordings" doc:"Destination bucket to list"`
		Prefix string `query:"prefix" example:"standup/" doc:"Optional key prefix filter"`
	}) (*models.ObjectListResponse, error) {
		objects, err := s.options.Store.List(ctx, input.Bucket, input.Prefix)
		if err != nil {
			return nil, huma.Error500InternalServerError("listing objects failed", err)
		}

		return &models.ObjectListResponse{
			Body: models.ObjectListData{
				Bucket:  input.Bucket,
				Prefix:  input.Prefix,
				Objects: objects,
				Count:   len(objects),
			},
		}, nil
	})
}
