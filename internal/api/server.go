// Package api exposes the HTTP control surface: recording start/stop,
// preset management, object listing, device discovery, logs, and health.
package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/pitrozx/rscap/internal/api/models"
	"github.com/pitrozx/rscap/internal/logging"
	"github.com/pitrozx/rscap/internal/presets"
	"github.com/pitrozx/rscap/internal/recorder"
	"github.com/pitrozx/rscap/internal/sink"
	"github.com/pitrozx/rscap/internal/types"
	"github.com/pitrozx/rscap/internal/version"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// RecordingService is the recorder surface the API drives. Implemented by
// recorder.Recorder.
type RecordingService interface {
	Start(ctx context.Context, req types.RecordingRequest) error
	Stop() error
	Active() (recorder.Status, bool)
}

// Options carries the dependencies and settings for the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	Recorder RecordingService
	Store    sink.ObjectStore
	Presets  *presets.Store

	// EventStream serves GET /api/events when set. It lives outside huma
	// because SSE connections outlast the request/response cycle huma models.
	EventStream http.Handler

	// PrometheusHandler serves GET /metrics when set.
	PrometheusHandler http.Handler
}

// Server is the huma v2 API server over the standard library mux.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger
}

// NewServer builds the API server: huma over net/http routing, CORS and
// logging middleware, optional basic auth, and all routes registered.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("rscap API", "1.0.0")
	config.Info.Description = "Headless screen recording node: portal capture, H.264 encoding, object storage upload"
	// Relative paths in the OpenAPI document work behind any host or proxy.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(httpLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	if opts.EventStream != nil {
		mux.Handle("GET /api/events", opts.EventStream)
	}

	server.registerRoutes()

	return server
}

// GetMux returns the underlying mux, mainly for tests.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// Start serves on addr until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop drains in-flight requests, closing the server once they finish or
// the shutdown timeout expires.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// basicAuthMiddleware enforces HTTP basic auth on every operation that
// declares a security requirement. Credentials arrive in the Authorization
// header or, for EventSource clients that cannot set headers, in the
// base64-encoded "auth" query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, err := requestCredentials(ctx)
		if err != nil {
			s.unauthorized(ctx, err.Error(), err)
			return
		}
		if credentials == "" {
			s.unauthorized(ctx, "Authentication required", nil)
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 {
			s.unauthorized(ctx, "Invalid credentials format", nil)
			return
		}
		if parts[0] != username || parts[1] != password {
			s.unauthorized(ctx, "Invalid credentials", nil)
			return
		}

		next(ctx)
	}
}

// requestCredentials extracts "user:password" from the request, decoded
// but not yet verified. Empty string means no credentials were offered.
func requestCredentials(ctx huma.Context) (string, error) {
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", &authError{"Invalid authentication type"}
		}
		decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
		if err != nil {
			return "", &authError{"Invalid credentials format"}
		}
		return string(decoded), nil
	}

	if queryAuth := ctx.Query("auth"); queryAuth != "" {
		decoded, err := base64.StdEncoding.DecodeString(queryAuth)
		if err != nil {
			return "", &authError{"Invalid credentials format"}
		}
		return string(decoded), nil
	}

	return "", nil
}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

func (s *Server) unauthorized(ctx huma.Context, message string, err error) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="rscap API"`)
	if err != nil {
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, message, err)
		return
	}
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, message)
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	// Liveness endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health",
		Description: "Liveness check reporting whether a recording session is active",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		_, active := s.options.Recorder.Active()
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:    "ok",
				Recording: active,
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerRecordingRoutes()
	s.registerAudioRoutes()
	s.registerObjectRoutes()
	s.registerPresetRoutes()
	s.registerLogRoutes()
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
