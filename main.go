package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pitrozx/rscap/cmd"
	"github.com/pitrozx/rscap/internal/api"
	"github.com/pitrozx/rscap/internal/config"
	"github.com/pitrozx/rscap/internal/events"
	"github.com/pitrozx/rscap/internal/logging"
	"github.com/pitrozx/rscap/internal/nats"
	"github.com/pitrozx/rscap/internal/pipeline"
	"github.com/pitrozx/rscap/internal/presets"
	"github.com/pitrozx/rscap/internal/recorder"
	"github.com/pitrozx/rscap/internal/sink"
	"github.com/pitrozx/rscap/internal/sse"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Presets settings
	PresetsFile string `help:"Recording presets file" default:"presets.toml" toml:"presets.config_file" env:"PRESETS_CONFIG_FILE"`

	// NATS settings
	NATSURL      string `help:"NATS server URL for lifecycle notifications (empty disables)" default:"" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPortal   string `help:"Portal negotiation logging level" default:"info" toml:"logging.portal" env:"LOGGING_PORTAL"`
	LoggingPipeline string `help:"Transcode pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingSink     string `help:"Object storage sink logging level" default:"info" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingRecorder string `help:"Session driver logging level" default:"info" toml:"logging.recorder" env:"LOGGING_RECORDER"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNATS     string `help:"NATS publisher logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func main() {
	// Assigned below; the closure runs inside cli.Run, after the root
	// command exists, so flag-over-file precedence sees the parsed flags.
	var rootCmd *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.Load(opts, rootCmd); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"portal":   opts.LoggingPortal,
				"pipeline": opts.LoggingPipeline,
				"sink":     opts.LoggingSink,
				"recorder": opts.LoggingRecorder,
				"api":      opts.LoggingAPI,
				"nats":     opts.LoggingNATS,
			},
		})

		logger := logging.GetLogger("main")

		pipeline.InitLogging()

		store, err := sink.NewGCS(context.Background())
		if err != nil {
			logger.Error("Failed to create object storage client", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()

		rec := recorder.New(store, eventBus, logging.GetLogger("recorder"))

		presetStore := presets.NewStore(opts.PresetsFile)
		if loadErr := presetStore.Load(); loadErr != nil {
			logger.Warn("Failed to load presets", "error", loadErr, "path", opts.PresetsFile)
		}

		broadcaster := sse.New(eventBus, logging.GetLogger("sse"))
		broadcaster.Start()

		// Optional embedded broker: fleet consumers subscribe straight to
		// this node without external NATS infrastructure.
		var natsServer *nats.Server
		natsURL := opts.NATSURL
		if opts.NATSEmbedded {
			natsServer = nats.NewServer(nats.ServerOptions{
				Port:   opts.NATSPort,
				Name:   "rscap",
				Logger: logging.GetLogger("nats"),
			})
		}

		var publisher *nats.Publisher

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Recorder:          rec,
			Store:             store,
			Presets:           presetStore,
			EventStream:       broadcaster.Handler(),
			PrometheusHandler: promhttp.Handler(),
		})

		// Live log-level changes without a restart.
		watcher := config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
			return config.LoadLoggingConfig(path), nil
		}, logging.GetLogger("config"))
		watcher.OnChange(func(cfg logging.Config) {
			logging.Initialize(cfg)
			eventBus.Publish(events.ConfigReloadedEvent{Path: opts.Config})
		})

		hooks.OnStart(func() {
			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
					os.Exit(1)
				}
				if natsURL == "" {
					natsURL = natsServer.ClientURL()
				}
			}

			if natsURL != "" {
				publisher = nats.NewPublisher(natsURL, eventBus, logging.GetLogger("nats"))
				if startErr := publisher.Start(); startErr != nil {
					logger.Warn("NATS notifications degraded", "error", startErr)
				}
			}

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher not started", "error", watchErr, "path", opts.Config)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// An active session stops cleanly: the pipeline drains and the
			// upload finalizes before the process exits.
			if stopErr := rec.Stop(); stopErr != nil && !errors.Is(stopErr, recorder.ErrIdle) {
				logger.Error("Error stopping recording", "error", stopErr)
			}
			rec.Wait()

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping config watcher", "error", stopErr)
			}
			if stopErr := broadcaster.Shutdown(context.Background()); stopErr != nil {
				logger.Error("Error stopping SSE broadcaster", "error", stopErr)
			}
			if publisher != nil {
				publisher.Close()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
			if closeErr := store.Close(); closeErr != nil {
				logger.Error("Error closing object storage client", "error", closeErr)
			}
		})
	})

	rootCmd = cli.Root()

	cli.Root().AddCommand(cmd.CreateRecordCmd())
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateObjectsCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
