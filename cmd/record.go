package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitrozx/rscap/internal/events"
	"github.com/pitrozx/rscap/internal/logging"
	"github.com/pitrozx/rscap/internal/pipeline"
	"github.com/pitrozx/rscap/internal/presets"
	"github.com/pitrozx/rscap/internal/recorder"
	"github.com/pitrozx/rscap/internal/sink"
	"github.com/pitrozx/rscap/internal/types"
)

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	var bucket string
	var template string
	var container string
	var bitrate int
	var rateControl string
	var audioDevice string
	var preset string
	var presetsFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the desktop to object storage",
		Long: `Negotiates a screen capture session with the desktop portal, transcodes the ` +
			`stream to H.264 and uploads the container directly to the destination bucket. ` +
			`Runs until the capture stream ends or the process receives SIGINT/SIGTERM, ` +
			`then drains buffered frames and finalizes the object.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("record")

			pipeline.InitLogging()

			req, err := resolveRecordRequest(preset, presetsFile, types.RecordingRequest{
				Bucket:           bucket,
				FilenameTemplate: template,
				Container:        types.Container(container),
				BitrateKbps:      bitrate,
				RateControl:      types.RateControlMode(rateControl),
				AudioDevice:      audioDevice,
			})
			if err != nil {
				logger.Error("Invalid recording request", "error", err)
				os.Exit(1)
			}

			// SIGINT/SIGTERM cancel the session context; the pipeline
			// notices between packets, drains, and finalizes the upload.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := sink.NewGCS(ctx)
			if err != nil {
				logger.Error("Failed to create object storage client", "error", err)
				os.Exit(1)
			}
			defer store.Close()

			rec := recorder.New(store, events.New(), logger)

			logger.Info("Recording", "bucket", req.Bucket, "key", req.ObjectKey(),
				"bitrate_kbps", req.BitrateKbps, "rate_control", req.RateControl)

			summary, err := rec.Execute(ctx, req)
			if err != nil {
				logger.Error("Recording failed", "error", err)
				os.Exit(1)
			}

			fmt.Printf("Uploaded %s/%s\n", summary.Bucket, summary.Key)
			fmt.Printf("  frames decoded:  %d\n", summary.FramesDecoded)
			fmt.Printf("  packets written: %d\n", summary.PacketsWritten)
			fmt.Printf("  bytes uploaded:  %d\n", summary.BytesUploaded)
			fmt.Printf("  duration:        %s\n", summary.Duration.Round(time.Millisecond))
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination bucket")
	cmd.Flags().StringVar(&template, "template", "", "Object key stem; the container extension is appended")
	cmd.Flags().StringVar(&container, "container", "", "Container format (mp4, mkv)")
	cmd.Flags().IntVar(&bitrate, "bitrate", 0, "Target bitrate in kbit/s (100-10000)")
	cmd.Flags().StringVar(&rateControl, "rate-control", "", "Rate control mode (cbr, vbr)")
	cmd.Flags().StringVar(&audioDevice, "audio-device", "", "ALSA audio device")
	cmd.Flags().StringVar(&preset, "preset", "", "Preset supplying base request values")
	cmd.Flags().StringVar(&presetsFile, "presets-file", "presets.toml", "Path to presets file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")

	return cmd
}

// resolveRecordRequest builds the session request: preset values first when
// one is named, explicit flags on top, then defaults and validation.
func resolveRecordRequest(preset, presetsFile string, flags types.RecordingRequest) (types.RecordingRequest, error) {
	var req types.RecordingRequest

	if preset != "" {
		store := presets.NewStore(presetsFile)
		if err := store.Load(); err != nil {
			return req, fmt.Errorf("load presets: %w", err)
		}
		p, ok := store.Get(preset)
		if !ok {
			return req, fmt.Errorf("preset not found: %s", preset)
		}
		req = p.Request
	}

	if flags.Bucket != "" {
		req.Bucket = flags.Bucket
	}
	if flags.FilenameTemplate != "" {
		req.FilenameTemplate = flags.FilenameTemplate
	}
	if flags.Container != "" {
		req.Container = flags.Container
	}
	if flags.BitrateKbps != 0 {
		req.BitrateKbps = flags.BitrateKbps
	}
	if flags.RateControl != "" {
		req.RateControl = flags.RateControl
	}
	if flags.AudioDevice != "" {
		req.AudioDevice = flags.AudioDevice
	}

	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
