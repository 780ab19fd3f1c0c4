package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

// packetReader yields demuxed packets.
type packetReader interface {
	ReadFrame(*astiav.Packet) error
}

// frameDecoder turns compressed packets into raw frames. A nil packet
// flushes.
type frameDecoder interface {
	SendPacket(*astiav.Packet) error
	ReceiveFrame(*astiav.Frame) error
}

// packetEncoder turns raw frames into compressed packets. A nil frame
// flushes.
type packetEncoder interface {
	SendFrame(*astiav.Frame) error
	ReceivePacket(*astiav.Packet) error
}

// packetWriter muxes finalized output packets.
type packetWriter interface {
	WriteInterleavedFrame(*astiav.Packet) error
}

// engine moves packets from the demuxer through decode and encode to the
// muxer. Every output packet, drained ones included, is finalized the same
// way: output stream index, timestamp rescale, interleaved write.
type engine struct {
	reader  packetReader
	decoder frameDecoder
	encoder packetEncoder
	writer  packetWriter

	inStreamIndex  int
	outStreamIndex int
	srcTimeBase    astiav.Rational
	dstTimeBase    astiav.Rational

	inPkt  *astiav.Packet
	frame  *astiav.Frame
	outPkt *astiav.Packet

	framesDecoded  int64
	packetsWritten int64
}

// run consumes the input until end of stream or cancellation. Packets from
// other streams are dropped before they reach the decoder. Cancellation is
// observed between packet iterations only; the caller still drains.
func (e *engine) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.reader.ReadFrame(e.inPkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("reading packet: %w", err)
		}

		if e.inPkt.StreamIndex() != e.inStreamIndex {
			e.inPkt.Unref()
			continue
		}

		err := e.decodePacket(e.inPkt)
		e.inPkt.Unref()
		if err != nil {
			return err
		}
	}
}

// drain flushes the decoder, forwards its tail through the encoder, then
// flushes the encoder.
func (e *engine) drain() error {
	if err := e.decoder.SendPacket(nil); err != nil {
		return fmt.Errorf("flushing decoder: %w", err)
	}
	if err := e.receiveFrames(); err != nil {
		return err
	}
	if err := e.encoder.SendFrame(nil); err != nil {
		return fmt.Errorf("flushing encoder: %w", err)
	}
	return e.receivePackets()
}

func (e *engine) decodePacket(pkt *astiav.Packet) error {
	if err := e.decoder.SendPacket(pkt); err != nil {
		return fmt.Errorf("sending packet to decoder: %w", err)
	}
	return e.receiveFrames()
}

func (e *engine) receiveFrames() error {
	for {
		if err := e.decoder.ReceiveFrame(e.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receiving frame from decoder: %w", err)
		}
		e.framesDecoded++

		if err := e.encodeFrame(e.frame); err != nil {
			return err
		}
	}
}

func (e *engine) encodeFrame(f *astiav.Frame) error {
	if err := e.encoder.SendFrame(f); err != nil {
		return fmt.Errorf("sending frame to encoder: %w", err)
	}
	return e.receivePackets()
}

func (e *engine) receivePackets() error {
	for {
		if err := e.encoder.ReceivePacket(e.outPkt); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receiving packet from encoder: %w", err)
		}

		if err := e.writePacket(e.outPkt); err != nil {
			return err
		}
	}
}

func (e *engine) writePacket(pkt *astiav.Packet) error {
	pkt.SetStreamIndex(e.outStreamIndex)
	pkt.RescaleTs(e.srcTimeBase, e.dstTimeBase)
	pkt.SetPos(-1)
	if err := e.writer.WriteInterleavedFrame(pkt); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	e.packetsWritten++
	return nil
}
