package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pitrozx/rscap/internal/events"
	"github.com/pitrozx/rscap/internal/pipeline"
	"github.com/pitrozx/rscap/internal/portal"
	"github.com/pitrozx/rscap/internal/sink"
	"github.com/pitrozx/rscap/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

func testRequest() types.RecordingRequest {
	req := types.RecordingRequest{Bucket: "rec", FilenameTemplate: "demo"}
	req.ApplyDefaults()
	return req
}

// opLog records teardown ordering across the test doubles.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

type fakeCapture struct {
	store    *sink.Memory
	log      *opLog
	closeErr error

	closed           atomic.Int32
	committedAtClose atomic.Bool
}

func (c *fakeCapture) Stream() portal.Stream {
	return portal.Stream{FD: 7, NodeID: 42}
}

func (c *fakeCapture) Close() error {
	c.closed.Add(1)
	if c.log != nil {
		c.log.add("portal.close")
	}
	if c.store != nil {
		_, ok := c.store.Object("rec", "demo.mp4")
		c.committedAtClose.Store(ok)
	}
	return c.closeErr
}

type fakeTranscoder struct {
	output   io.Writer
	payload  []byte
	runErr   error
	waitCtx  bool
	frames   int64
	packets  int64
	closeErr error
	log      *opLog

	state  pipeline.State
	closed atomic.Int32
}

func (t *fakeTranscoder) Run(ctx context.Context) error {
	if t.waitCtx {
		<-ctx.Done()
	}
	if t.runErr != nil {
		t.state = pipeline.StateFailed
		return t.runErr
	}
	if t.output != nil && len(t.payload) > 0 {
		if _, err := t.output.Write(t.payload); err != nil {
			t.state = pipeline.StateFailed
			return &pipeline.PipelineError{Stage: "write", Err: err}
		}
	}
	t.state = pipeline.StateTrailerWritten
	return ctx.Err()
}

func (t *fakeTranscoder) State() pipeline.State { return t.state }
func (t *fakeTranscoder) FramesDecoded() int64  { return t.frames }
func (t *fakeTranscoder) PacketsWritten() int64 { return t.packets }

func (t *fakeTranscoder) Close() error {
	t.closed.Add(1)
	if t.log != nil {
		t.log.add("pipeline.close")
	}
	if t.state != pipeline.StateFailed {
		t.state = pipeline.StateClosed
	}
	return t.closeErr
}

// wire installs the test doubles behind a recorder over store.
func wire(store *sink.Memory, bus *events.Bus, cs *fakeCapture, ft *fakeTranscoder) *Recorder {
	r := New(store, bus, testLogger())
	r.negotiate = func(context.Context) (capture, error) {
		return cs, nil
	}
	r.buildPipeline = func(cfg pipeline.Config) (transcoder, error) {
		ft.output = cfg.Output
		return ft, nil
	}
	return r
}

func TestExecuteProducesFinalizedObject(t *testing.T) {
	store := sink.NewMemory()
	cs := &fakeCapture{store: store}
	ft := &fakeTranscoder{payload: []byte("muxed-bytes"), frames: 3, packets: 3}
	r := wire(store, nil, cs, ft)

	summary, err := r.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if summary.Bucket != "rec" || summary.Key != "demo.mp4" {
		t.Errorf("summary destination = %s/%s, want rec/demo.mp4", summary.Bucket, summary.Key)
	}
	if summary.FramesDecoded != 3 || summary.PacketsWritten != 3 {
		t.Errorf("summary counts = %d/%d, want 3/3", summary.FramesDecoded, summary.PacketsWritten)
	}
	if summary.BytesUploaded != int64(len("muxed-bytes")) {
		t.Errorf("BytesUploaded = %d, want %d", summary.BytesUploaded, len("muxed-bytes"))
	}

	data, ok := store.Object("rec", "demo.mp4")
	if !ok {
		t.Fatal("no committed object")
	}
	if string(data) != "muxed-bytes" {
		t.Errorf("object = %q, want %q", data, "muxed-bytes")
	}
	if cs.closed.Load() != 1 {
		t.Errorf("capture session closed %d times, want 1", cs.closed.Load())
	}
}

func TestExecuteTeardownOrder(t *testing.T) {
	log := &opLog{}
	store := sink.NewMemory()
	cs := &fakeCapture{store: store, log: log}
	ft := &fakeTranscoder{payload: []byte("x"), log: log}
	r := wire(store, nil, cs, ft)

	if _, err := r.Execute(context.Background(), testRequest()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := log.snapshot()
	want := []string{"pipeline.close", "portal.close"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("teardown order = %v, want %v", got, want)
	}
	if !cs.committedAtClose.Load() {
		t.Error("object not committed before the portal session closed")
	}
}

func TestExecuteNegotiationFailureLeavesSinkUntouched(t *testing.T) {
	store := sink.NewMemory()
	r := New(store, nil, testLogger())
	r.negotiate = func(context.Context) (capture, error) {
		return nil, &portal.NegotiationError{Call: "Start", Err: portal.ErrNoStreams}
	}

	summary, err := r.Execute(context.Background(), testRequest())
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
	var negErr *portal.NegotiationError
	if !errors.As(err, &negErr) {
		t.Fatalf("error = %v, want *portal.NegotiationError", err)
	}
	if !errors.Is(err, portal.ErrNoStreams) {
		t.Errorf("error = %v, want wrapping ErrNoStreams", err)
	}

	if _, ok := store.Object("rec", "demo.mp4"); ok {
		t.Error("failed negotiation committed an object")
	}
	if store.AbortedUpload("rec", "demo.mp4") {
		t.Error("sink was touched even though negotiation failed")
	}
}

func TestExecutePipelineFailureDiscardsUpload(t *testing.T) {
	store := sink.NewMemory()
	cs := &fakeCapture{store: store}
	ft := &fakeTranscoder{runErr: &pipeline.PipelineError{Stage: "transcode", Err: errors.New("decode failed")}}
	r := wire(store, nil, cs, ft)

	summary, err := r.Execute(context.Background(), testRequest())
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
	var pipeErr *pipeline.PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("error = %v, want *pipeline.PipelineError", err)
	}

	if _, ok := store.Object("rec", "demo.mp4"); ok {
		t.Error("failed pipeline committed an object")
	}
	if !store.AbortedUpload("rec", "demo.mp4") {
		t.Error("upload never discarded after pipeline failure")
	}
	if cs.closed.Load() != 1 {
		t.Errorf("capture session closed %d times, want 1", cs.closed.Load())
	}
}

func TestExecutePipelineBuildFailureDiscardsUpload(t *testing.T) {
	store := sink.NewMemory()
	cs := &fakeCapture{store: store}
	r := New(store, nil, testLogger())
	r.negotiate = func(context.Context) (capture, error) { return cs, nil }
	r.buildPipeline = func(pipeline.Config) (transcoder, error) {
		return nil, &pipeline.PipelineError{Stage: "input", Err: errors.New("no such demuxer")}
	}

	_, err := r.Execute(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Execute() error = nil, want build failure")
	}
	if !store.AbortedUpload("rec", "demo.mp4") {
		t.Error("upload never discarded after build failure")
	}
	if cs.closed.Load() != 1 {
		t.Errorf("capture session closed %d times, want 1", cs.closed.Load())
	}
}

func TestExecuteFinalizeFailure(t *testing.T) {
	store := sink.NewMemory()
	cause := errors.New("commit rejected")
	store.FailFinalize(cause)

	cs := &fakeCapture{store: store}
	ft := &fakeTranscoder{payload: []byte("x")}
	r := wire(store, nil, cs, ft)

	summary, err := r.Execute(context.Background(), testRequest())
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
	var sinkErr *sink.SinkError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("error = %v, want *sink.SinkError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want wrapping %v", err, cause)
	}
	if _, ok := store.Object("rec", "demo.mp4"); ok {
		t.Error("failed finalize left a committed object")
	}
}

func TestExecuteCanceledRunStillCommits(t *testing.T) {
	store := sink.NewMemory()
	cs := &fakeCapture{store: store}
	ft := &fakeTranscoder{payload: []byte("partial-but-valid"), frames: 2, packets: 2, waitCtx: true}
	r := wire(store, nil, cs, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Execute(ctx, testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil for a drained stop", err)
	}
	if summary == nil {
		t.Fatal("summary = nil for a drained stop")
	}

	data, ok := store.Object("rec", "demo.mp4")
	if !ok {
		t.Fatal("stopped recording left no committed object")
	}
	if string(data) != "partial-but-valid" {
		t.Errorf("object = %q, want %q", data, "partial-but-valid")
	}
}

func TestExecutePortalCloseFailureSurfaces(t *testing.T) {
	store := sink.NewMemory()
	cause := errors.New("close failed")
	cs := &fakeCapture{store: store, closeErr: cause}
	ft := &fakeTranscoder{payload: []byte("x")}
	r := wire(store, nil, cs, ft)

	summary, err := r.Execute(context.Background(), testRequest())
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want wrapping %v", err, cause)
	}

	// The object was finalized before the close failed.
	if _, ok := store.Object("rec", "demo.mp4"); !ok {
		t.Error("committed object missing")
	}
}

func TestStartSingleFlight(t *testing.T) {
	store := sink.NewMemory()
	bus := events.New()

	finished := make(chan events.RecordingFinishedEvent, 1)
	unsub := bus.Subscribe(func(e events.RecordingFinishedEvent) {
		finished <- e
	})
	defer unsub()

	cs := &fakeCapture{store: store}
	ft := &fakeTranscoder{payload: []byte("x"), frames: 1, packets: 1, waitCtx: true}
	r := wire(store, bus, cs, ft)

	if err := r.Start(context.Background(), testRequest()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(context.Background(), testRequest()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start() error = %v, want ErrBusy", err)
	}

	status, active := r.Active()
	if !active {
		t.Fatal("Active() = false during a session")
	}
	if status.Key != "demo.mp4" {
		t.Errorf("Active().Key = %q, want demo.mp4", status.Key)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	r.Wait()

	if _, active := r.Active(); active {
		t.Error("Active() = true after the session ended")
	}
	if err := r.Stop(); !errors.Is(err, ErrIdle) {
		t.Errorf("Stop() after completion error = %v, want ErrIdle", err)
	}

	select {
	case e := <-finished:
		if e.Bucket != "rec" || e.Key != "demo.mp4" {
			t.Errorf("finished event destination = %s/%s, want rec/demo.mp4", e.Bucket, e.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no finished event after the session ended")
	}

	if _, ok := store.Object("rec", "demo.mp4"); !ok {
		t.Error("stopped session left no committed object")
	}
}

func TestStopWhenIdle(t *testing.T) {
	r := New(sink.NewMemory(), nil, testLogger())
	if err := r.Stop(); !errors.Is(err, ErrIdle) {
		t.Errorf("Stop() error = %v, want ErrIdle", err)
	}
}

func TestExecutePublishesFailureEvent(t *testing.T) {
	bus := events.New()
	failed := make(chan events.RecordingFailedEvent, 1)
	unsub := bus.Subscribe(func(e events.RecordingFailedEvent) {
		failed <- e
	})
	defer unsub()

	r := New(sink.NewMemory(), bus, testLogger())
	r.negotiate = func(context.Context) (capture, error) {
		return nil, &portal.NegotiationError{Call: "CreateSession", Err: errors.New("access denied")}
	}

	if _, err := r.Execute(context.Background(), testRequest()); err == nil {
		t.Fatal("Execute() error = nil, want negotiation failure")
	}

	select {
	case e := <-failed:
		if e.Category != CategoryNegotiation {
			t.Errorf("failed event category = %q, want %q", e.Category, CategoryNegotiation)
		}
		if e.Error == "" {
			t.Error("failed event has no error description")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no failed event after a failed session")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"negotiation", &portal.NegotiationError{Call: "Start", Err: portal.ErrNoStreams}, CategoryNegotiation},
		{"pipeline", &pipeline.PipelineError{Stage: "transcode", Err: errors.New("x")}, CategoryPipeline},
		{"sink", &sink.SinkError{Op: "write", Err: errors.New("x")}, CategorySink},
		{"canceled", context.Canceled, CategoryCanceled},
		{"wrapped negotiation", fmt.Errorf("negotiating capture: %w", &portal.NegotiationError{Call: "connect", Err: errors.New("x")}), CategoryNegotiation},
		{"unclassified", errors.New("mystery"), CategoryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
