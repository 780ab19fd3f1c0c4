// Package recorder drives recording sessions end to end: portal
// negotiation, the transcode pipeline, the object-store upload, and
// ordered teardown. One session runs at a time.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pitrozx/rscap/internal/events"
	"github.com/pitrozx/rscap/internal/logging"
	"github.com/pitrozx/rscap/internal/metrics"
	"github.com/pitrozx/rscap/internal/pipeline"
	"github.com/pitrozx/rscap/internal/portal"
	"github.com/pitrozx/rscap/internal/sink"
	"github.com/pitrozx/rscap/internal/types"
)

var (
	// ErrBusy is returned by Start while a session is active.
	ErrBusy = errors.New("a recording is already active")
	// ErrIdle is returned by Stop when no session is active.
	ErrIdle = errors.New("no active recording")
)

// Failure categories attached to logs, events, and metrics labels.
const (
	CategoryNone        = "none"
	CategoryNegotiation = "negotiation"
	CategoryPipeline    = "pipeline"
	CategorySink        = "sink"
	CategoryCanceled    = "canceled"
)

const (
	outcomeFinished = "finished"
	outcomeFailed   = "failed"
)

// capture is the portal-session surface the driver needs.
type capture interface {
	Stream() portal.Stream
	Close() error
}

// transcoder is one pipeline run.
type transcoder interface {
	Run(ctx context.Context) error
	State() pipeline.State
	FramesDecoded() int64
	PacketsWritten() int64
	Close() error
}

// Summary describes a finished session.
type Summary struct {
	Bucket         string
	Key            string
	FramesDecoded  int64
	PacketsWritten int64
	BytesUploaded  int64
	Duration       time.Duration
}

// Status is a snapshot of the running session.
type Status struct {
	Request   types.RecordingRequest `json:"request"`
	Key       string                 `json:"key"`
	StartedAt time.Time              `json:"started_at"`
}

type activeSession struct {
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// Recorder runs recording sessions against an object store, publishing
// lifecycle events on the bus. Sessions assume a validated request.
type Recorder struct {
	store  sink.ObjectStore
	bus    *events.Bus
	logger *slog.Logger

	negotiate     func(ctx context.Context) (capture, error)
	buildPipeline func(cfg pipeline.Config) (transcoder, error)

	mu     sync.Mutex
	active *activeSession
}

// New creates a recorder over store. A nil logger falls back to the
// recorder module logger.
func New(store sink.ObjectStore, bus *events.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.GetLogger("recorder")
	}
	return &Recorder{
		store:  store,
		bus:    bus,
		logger: logger,
		negotiate: func(ctx context.Context) (capture, error) {
			session, err := portal.NewNegotiator().Negotiate(ctx)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		buildPipeline: func(cfg pipeline.Config) (transcoder, error) {
			p, err := pipeline.New(cfg)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// Execute runs one session synchronously: negotiate the capture, stream
// it through the pipeline into the object store, then tear down in order
// (pipeline, upload, portal session) no matter how far the attempt got.
// The upload is finalized only once the container trailer is written, so
// a failed attempt leaves no destination object. A session ended by ctx
// cancellation drains, commits, and counts as finished.
func (r *Recorder) Execute(ctx context.Context, req types.RecordingRequest) (*Summary, error) {
	started := time.Now()
	key := req.ObjectKey()
	log := r.logger.With("bucket", req.Bucket, "key", key)

	log.Info("Starting recording",
		"container", req.Container,
		"bitrate_kbps", req.BitrateKbps,
		"rate_control", req.RateControl,
		"audio_device", req.AudioDevice)

	metrics.SetRecordingActive(true)
	defer metrics.SetRecordingActive(false)

	summary, err := r.runAttempt(ctx, req, key, started, log)
	if err != nil {
		category := classify(err)
		log.Error("Recording failed", "category", category, "error", err)
		metrics.ObserveRecording(outcomeFailed, category, time.Since(started).Seconds())
		r.publishFailed(req, key, category, err)
		return nil, err
	}

	log.Info("Recording finished",
		"frames_decoded", summary.FramesDecoded,
		"packets_written", summary.PacketsWritten,
		"bytes_uploaded", summary.BytesUploaded,
		"duration", summary.Duration)
	metrics.ObserveRecording(outcomeFinished, CategoryNone, summary.Duration.Seconds())
	r.publishFinished(summary)
	return summary, nil
}

// runAttempt holds the portal session for the attempt; it always closes
// last, after the pipeline and the upload have settled.
func (r *Recorder) runAttempt(ctx context.Context, req types.RecordingRequest, key string, started time.Time, log *slog.Logger) (*Summary, error) {
	session, err := r.negotiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("negotiating capture: %w", err)
	}

	summary, err := r.transcode(ctx, session, req, key, started, log)

	if cerr := session.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("closing capture session: %w", cerr))
	}

	if err != nil {
		return nil, err
	}
	return summary, nil
}

// transcode owns the upload and pipeline lifetimes for one attempt.
func (r *Recorder) transcode(ctx context.Context, session capture, req types.RecordingRequest, key string, started time.Time, log *slog.Logger) (*Summary, error) {
	upload, err := r.store.Upload(ctx, req.Bucket, key, sink.ContentTypeForKey(key))
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}

	var errs []error

	p, err := r.buildPipeline(pipeline.Config{
		InputFD:     session.Stream().FD,
		Container:   req.Container,
		BitrateBps:  req.BitrateBps(),
		RateControl: req.RateControl,
		Output:      upload,
	})
	if err != nil {
		errs = append(errs, err)
	} else {
		r.publishStarted(req, key)
		if runErr := p.Run(ctx); runErr != nil && !isCancellation(runErr) {
			errs = append(errs, runErr)
		}
	}

	// Teardown in fixed order: pipeline, then the upload, while the
	// caller still holds the portal session open.
	var frames, packets int64
	trailerWritten := false
	if p != nil {
		frames = p.FramesDecoded()
		packets = p.PacketsWritten()
		trailerWritten = p.State() == pipeline.StateTrailerWritten
		if cerr := p.Close(); cerr != nil {
			errs = append(errs, cerr)
		}
	}

	if trailerWritten && len(errs) == 0 {
		if ferr := upload.Finalize(); ferr != nil {
			errs = append(errs, ferr)
		}
	} else if derr := upload.Discard(); derr != nil {
		log.Warn("Upload discard failed", "error", derr)
		errs = append(errs, derr)
	}

	metrics.AddPipelineProgress(frames, packets)
	metrics.AddBytesUploaded(upload.Bytes())

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Summary{
		Bucket:         req.Bucket,
		Key:            key,
		FramesDecoded:  frames,
		PacketsWritten: packets,
		BytesUploaded:  upload.Bytes(),
		Duration:       time.Since(started),
	}, nil
}

// Start launches Execute on a worker goroutine. A second Start while a
// session is active returns ErrBusy. The session context is detached
// from ctx so the caller's request ending does not stop the recording.
func (r *Recorder) Start(ctx context.Context, req types.RecordingRequest) error {
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return ErrBusy
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session := &activeSession{
		status: Status{Request: req, Key: req.ObjectKey(), StartedAt: time.Now()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = session
	r.mu.Unlock()

	go func() {
		defer close(session.done)
		defer func() {
			r.mu.Lock()
			if r.active == session {
				r.active = nil
			}
			r.mu.Unlock()
			cancel()
		}()
		r.Execute(sctx, req)
	}()
	return nil
}

// Stop cancels the active session. The pipeline notices between packets,
// drains, and commits; completion is reported through events.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ErrIdle
	}
	r.active.cancel()
	return nil
}

// Active reports the running session, if any.
func (r *Recorder) Active() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return Status{}, false
	}
	return r.active.status, true
}

// Wait blocks until the active session ends. It returns immediately when
// nothing is active.
func (r *Recorder) Wait() {
	r.mu.Lock()
	var done chan struct{}
	if r.active != nil {
		done = r.active.done
	}
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// classify maps the primary session error to a failure category. "none"
// means no stage claimed the failure.
func classify(err error) string {
	var negErr *portal.NegotiationError
	var pipeErr *pipeline.PipelineError
	var sinkErr *sink.SinkError
	switch {
	case errors.As(err, &negErr):
		return CategoryNegotiation
	case errors.As(err, &pipeErr):
		return CategoryPipeline
	case errors.As(err, &sinkErr):
		return CategorySink
	case isCancellation(err):
		return CategoryCanceled
	default:
		return CategoryNone
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Recorder) publishStarted(req types.RecordingRequest, key string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.RecordingStartedEvent{
		Bucket:      req.Bucket,
		Key:         key,
		Container:   string(req.Container),
		BitrateKbps: req.BitrateKbps,
		Timestamp:   eventTime(),
	})
}

func (r *Recorder) publishFinished(s *Summary) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.RecordingFinishedEvent{
		Bucket:          s.Bucket,
		Key:             s.Key,
		Bytes:           s.BytesUploaded,
		Frames:          s.FramesDecoded,
		DurationSeconds: s.Duration.Seconds(),
		Timestamp:       eventTime(),
	})
}

func (r *Recorder) publishFailed(req types.RecordingRequest, key, category string, err error) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.RecordingFailedEvent{
		Bucket:    req.Bucket,
		Key:       key,
		Category:  category,
		Error:     err.Error(),
		Timestamp: eventTime(),
	})
}

func eventTime() string {
	return time.Now().UTC().Format(time.RFC3339)
}
