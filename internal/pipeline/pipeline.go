// Package pipeline transcodes a live capture stream into an H.264 recording
// muxed straight into a caller-supplied writer. It wraps the FFmpeg decode,
// encode and mux stages behind a small state machine so a session either
// reaches the trailer or fails with the stage that broke.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/asticode/go-astiav"

	"github.com/pitrozx/rscap/internal/logging"
	"github.com/pitrozx/rscap/internal/types"
)

const ioBufferSize = 4096

// State names the pipeline's position in its lifecycle.
type State string

const (
	StateOpening           State = "opening"
	StateStreamSelected    State = "stream_selected"
	StateEncoderConfigured State = "encoder_configured"
	StateHeaderWritten     State = "header_written"
	StateStreaming         State = "streaming"
	StateDraining          State = "draining"
	StateTrailerWritten    State = "trailer_written"
	StateClosed            State = "closed"
	StateFailed            State = "failed"
)

// PipelineError describes a failed pipeline stage.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Config describes one transcode run.
type Config struct {
	// InputFD is the capture stream descriptor. The pipeline reads it via
	// /proc/self/fd but does not own it.
	InputFD int
	// InputFormat is the demuxer short name. Defaults to "pipewire".
	InputFormat string
	Container   types.Container
	BitrateBps  int64
	RateControl types.RateControlMode
	// Output receives the muxed container bytes.
	Output io.Writer
}

// Pipeline is a single-use transcode run: decode the capture stream,
// encode H.264, mux into Output. Construction carries it to HeaderWritten;
// Run to TrailerWritten; Close releases everything and is always safe.
type Pipeline struct {
	state  State
	logger *slog.Logger

	inFc      *astiav.FormatContext
	inOpened  bool
	inStream  *astiav.Stream
	decCtx    *astiav.CodecContext
	encCtx    *astiav.CodecContext
	outFc     *astiav.FormatContext
	outStream *astiav.Stream
	ioCtx     *astiav.IOContext

	inPkt  *astiav.Packet
	frame  *astiav.Frame
	outPkt *astiav.Packet

	engine *engine
}

// New builds a pipeline over cfg and writes the container header. On error
// everything allocated so far is released and the failed stage is reported.
func New(cfg Config) (*Pipeline, error) {
	p := &Pipeline{
		state:  StateOpening,
		logger: logging.GetLogger("pipeline"),
	}

	if cfg.InputFormat == "" {
		cfg.InputFormat = "pipewire"
	}

	if err := p.open(cfg); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) open(cfg Config) error {
	inputFormat := astiav.FindInputFormat(cfg.InputFormat)
	if inputFormat == nil {
		return p.fail("open", fmt.Errorf("input format %q not found", cfg.InputFormat))
	}

	p.inFc = astiav.AllocFormatContext()
	url := fmt.Sprintf("/proc/self/fd/%d", cfg.InputFD)
	if err := p.inFc.OpenInput(url, inputFormat, nil); err != nil {
		return p.fail("open", fmt.Errorf("opening %s: %w", url, err))
	}
	p.inOpened = true

	if err := p.inFc.FindStreamInfo(nil); err != nil {
		return p.fail("open", fmt.Errorf("finding stream info: %w", err))
	}
	p.logger.Debug("Input opened", "url", url, "format", cfg.InputFormat, "streams", len(p.inFc.Streams()))

	if err := p.selectStream(); err != nil {
		return err
	}
	p.state = StateStreamSelected

	if err := p.configureEncoder(cfg); err != nil {
		return err
	}
	p.state = StateEncoderConfigured

	if err := p.writeHeader(cfg); err != nil {
		return err
	}
	p.state = StateHeaderWritten

	p.inPkt = astiav.AllocPacket()
	p.frame = astiav.AllocFrame()
	p.outPkt = astiav.AllocPacket()
	p.engine = &engine{
		reader:         p.inFc,
		decoder:        p.decCtx,
		encoder:        p.encCtx,
		writer:         p.outFc,
		inStreamIndex:  p.inStream.Index(),
		outStreamIndex: p.outStream.Index(),
		srcTimeBase:    p.decCtx.TimeBase(),
		// The muxer settles the stream time base while writing the header.
		dstTimeBase: p.outStream.TimeBase(),
		inPkt:       p.inPkt,
		frame:       p.frame,
		outPkt:      p.outPkt,
	}
	return nil
}

// selectStream picks the first video stream and opens its decoder.
func (p *Pipeline) selectStream() error {
	for _, s := range p.inFc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			p.inStream = s
			break
		}
	}
	if p.inStream == nil {
		return p.fail("select", errors.New("no video stream in input"))
	}

	dec := astiav.FindDecoder(p.inStream.CodecParameters().CodecID())
	if dec == nil {
		return p.fail("decoder", fmt.Errorf("no decoder for %s", p.inStream.CodecParameters().CodecID()))
	}

	p.decCtx = astiav.AllocCodecContext(dec)
	if err := p.inStream.CodecParameters().ToCodecContext(p.decCtx); err != nil {
		return p.fail("decoder", fmt.Errorf("copying codec parameters: %w", err))
	}
	p.decCtx.SetTimeBase(p.inStream.TimeBase())

	if err := p.decCtx.Open(dec, nil); err != nil {
		return p.fail("decoder", fmt.Errorf("opening decoder: %w", err))
	}
	p.logger.Debug("Decoder opened",
		"codec", p.inStream.CodecParameters().CodecID().Name(),
		"width", p.decCtx.Width(),
		"height", p.decCtx.Height())
	return nil
}

// configureEncoder sets up the H.264 encoder from the decoder's geometry
// and adds the output stream.
func (p *Pipeline) configureEncoder(cfg Config) error {
	outFc, err := astiav.AllocOutputFormatContext(nil, cfg.Container.FormatName(), "")
	if err != nil {
		return p.fail("output", fmt.Errorf("allocating %s muxer: %w", cfg.Container.FormatName(), err))
	}
	p.outFc = outFc

	enc := astiav.FindEncoder(astiav.CodecIDH264)
	if enc == nil {
		return p.fail("encoder", errors.New("h264 encoder not found"))
	}

	p.encCtx = astiav.AllocCodecContext(enc)
	p.encCtx.SetWidth(p.decCtx.Width())
	p.encCtx.SetHeight(p.decCtx.Height())
	p.encCtx.SetPixelFormat(astiav.PixelFormatYuv420P)
	p.encCtx.SetTimeBase(p.decCtx.TimeBase())
	p.encCtx.SetBitRate(cfg.BitrateBps)
	if p.outFc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		p.encCtx.SetFlags(p.encCtx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	for k, v := range rateControlSettings(cfg.RateControl, cfg.BitrateBps) {
		if err := opts.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			return p.fail("encoder", fmt.Errorf("setting %s: %w", k, err))
		}
	}
	if err := p.encCtx.Open(enc, opts); err != nil {
		return p.fail("encoder", fmt.Errorf("opening encoder: %w", err))
	}

	p.outStream = p.outFc.NewStream(nil)
	if err := p.outStream.CodecParameters().FromCodecContext(p.encCtx); err != nil {
		return p.fail("encoder", fmt.Errorf("copying encoder parameters: %w", err))
	}
	p.outStream.SetTimeBase(p.encCtx.TimeBase())

	p.logger.Debug("Encoder configured",
		"bitrate", cfg.BitrateBps,
		"rate_control", string(cfg.RateControl),
		"container", string(cfg.Container))
	return nil
}

// writeHeader connects the muxer to the output writer and starts the
// container.
func (p *Pipeline) writeHeader(cfg Config) error {
	ioCtx, err := astiav.AllocIOContext(ioBufferSize, true, nil, nil, func(b []byte) (int, error) {
		return cfg.Output.Write(b)
	})
	if err != nil {
		return p.fail("output", fmt.Errorf("allocating io context: %w", err))
	}
	p.ioCtx = ioCtx
	p.outFc.SetPb(p.ioCtx)

	opts := astiav.NewDictionary()
	defer opts.Free()
	for k, v := range muxerSettings(cfg.Container) {
		if err := opts.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			return p.fail("header", fmt.Errorf("setting %s: %w", k, err))
		}
	}
	if err := p.outFc.WriteHeader(opts); err != nil {
		return p.fail("header", fmt.Errorf("writing header: %w", err))
	}
	return nil
}

// Run streams packets until end of stream or ctx cancellation, then drains
// both codecs and writes the trailer. A canceled run still drains and
// reports the ctx error after a clean trailer.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.state != StateHeaderWritten {
		return &PipelineError{Stage: "transcode", Err: fmt.Errorf("pipeline in state %s", p.state)}
	}

	p.state = StateStreaming
	runErr := p.engine.run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return p.fail("transcode", runErr)
	}

	p.state = StateDraining
	if err := p.engine.drain(); err != nil {
		return p.fail("drain", err)
	}

	if err := p.outFc.WriteTrailer(); err != nil {
		return p.fail("trailer", err)
	}
	p.state = StateTrailerWritten

	p.logger.Info("Transcode finished",
		"frames_decoded", p.engine.framesDecoded,
		"packets_written", p.engine.packetsWritten,
		"canceled", runErr != nil)
	return runErr
}

// Close releases all FFmpeg allocations in reverse order. It is idempotent
// and safe after a failure at any stage.
func (p *Pipeline) Close() error {
	if p.state == StateClosed {
		return nil
	}

	if p.inPkt != nil {
		p.inPkt.Free()
		p.inPkt = nil
	}
	if p.outPkt != nil {
		p.outPkt.Free()
		p.outPkt = nil
	}
	if p.frame != nil {
		p.frame.Free()
		p.frame = nil
	}
	if p.ioCtx != nil {
		p.ioCtx.Free()
		p.ioCtx = nil
	}
	if p.outFc != nil {
		p.outFc.Free()
		p.outFc = nil
	}
	if p.encCtx != nil {
		p.encCtx.Free()
		p.encCtx = nil
	}
	if p.decCtx != nil {
		p.decCtx.Free()
		p.decCtx = nil
	}
	if p.inFc != nil {
		if p.inOpened {
			p.inFc.CloseInput()
		}
		p.inFc.Free()
		p.inFc = nil
	}

	if p.state != StateFailed {
		p.state = StateClosed
	}
	return nil
}

// State reports the pipeline's lifecycle position.
func (p *Pipeline) State() State { return p.state }

// FramesDecoded reports frames pulled from the decoder so far.
func (p *Pipeline) FramesDecoded() int64 {
	if p.engine == nil {
		return 0
	}
	return p.engine.framesDecoded
}

// PacketsWritten reports access units handed to the muxer so far.
func (p *Pipeline) PacketsWritten() int64 {
	if p.engine == nil {
		return 0
	}
	return p.engine.packetsWritten
}

func (p *Pipeline) fail(stage string, err error) error {
	p.state = StateFailed
	return &PipelineError{Stage: stage, Err: err}
}
