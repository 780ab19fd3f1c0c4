// Package portal negotiates a desktop capture session with the
// org.freedesktop.portal.ScreenCast service on the D-Bus session bus. A
// successful negotiation yields a PipeWire stream descriptor whose file
// descriptor is duplicated so its lifetime is independent of the bus
// connection.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/pitrozx/rscap/internal/logging"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	sessionIface    = "org.freedesktop.portal.Session"

	// appID identifies the recorder to the portal's permission prompts.
	appID = "rscap"

	// captureTypes requests monitors and windows (1|2).
	captureTypes = uint32(3)
)

// ErrNoStreams is returned when the portal starts a session without any
// capture streams. The negotiator never waits for streams to appear.
var ErrNoStreams = errors.New("no available streams")

// NegotiationError describes a failed portal negotiation step.
type NegotiationError struct {
	Call string
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("portal %s: %v", e.Call, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// Stream describes the capture stream handed out by the portal. FD is a
// duplicated descriptor owned by the holder.
type Stream struct {
	FD     int
	NodeID uint32
}

type streamEntry struct {
	FD     dbus.UnixFD
	NodeID uint32
}

type startReply struct {
	Streams []streamEntry
}

// Negotiator opens capture sessions against the desktop portal.
type Negotiator struct {
	logger *slog.Logger
}

// NewNegotiator creates a portal negotiator.
func NewNegotiator() *Negotiator {
	return &Negotiator{logger: logging.GetLogger("portal")}
}

// Negotiate runs the portal handshake: CreateSession, SelectSources, Start.
// It returns a live Session holding the first capture stream. The caller
// must Close the session when recording ends.
func (n *Negotiator) Negotiate(ctx context.Context) (*Session, error) {
	conn, err := connectSessionBus()
	if err != nil {
		return nil, &NegotiationError{Call: "connect", Err: err}
	}

	session, err := n.negotiate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return session, nil
}

func (n *Negotiator) negotiate(ctx context.Context, conn *dbus.Conn) (*Session, error) {
	desktop := conn.Object(portalDest, portalPath)

	token := uuid.NewString()
	createOptions := map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(token),
		"types":                dbus.MakeVariant(captureTypes),
	}

	var handle dbus.ObjectPath
	call := desktop.CallWithContext(ctx, screenCastIface+".CreateSession", 0, createOptions)
	if call.Err != nil {
		return nil, &NegotiationError{Call: "CreateSession", Err: call.Err}
	}
	if err := call.Store(&handle); err != nil {
		return nil, &NegotiationError{Call: "CreateSession", Err: err}
	}
	n.logger.Info("Capture session created", "handle", string(handle))

	call = desktop.CallWithContext(ctx, screenCastIface+".SelectSources", 0, handle, map[string]dbus.Variant{})
	if call.Err != nil {
		return nil, &NegotiationError{Call: "SelectSources", Err: call.Err}
	}
	n.logger.Debug("Capture sources selected", "handle", string(handle))

	var reply startReply
	call = desktop.CallWithContext(ctx, screenCastIface+".Start", 0, handle, appID, map[string]dbus.Variant{})
	if call.Err != nil {
		return nil, &NegotiationError{Call: "Start", Err: call.Err}
	}
	if err := call.Store(&reply); err != nil {
		return nil, &NegotiationError{Call: "Start", Err: err}
	}

	entry, err := selectStream(reply.Streams)
	if err != nil {
		return nil, err
	}

	stream, err := duplicateStream(entry)
	if err != nil {
		return nil, err
	}
	n.logger.Info("Capture started", "node_id", stream.NodeID, "fd", stream.FD, "streams", len(reply.Streams))

	return &Session{
		conn:   conn,
		handle: handle,
		stream: stream,
		logger: n.logger,
	}, nil
}

// selectStream picks the stream the pipeline will consume. Extra streams
// are ignored; an empty list fails the session immediately.
func selectStream(streams []streamEntry) (streamEntry, error) {
	if len(streams) == 0 {
		return streamEntry{}, &NegotiationError{Call: "Start", Err: ErrNoStreams}
	}
	return streams[0], nil
}

// duplicateStream dups the portal's descriptor so the capture fd outlives
// the bus connection, then closes the original.
func duplicateStream(entry streamEntry) (Stream, error) {
	fd, err := unix.Dup(int(entry.FD))
	if err != nil {
		return Stream{}, &NegotiationError{Call: "dup", Err: err}
	}
	unix.Close(int(entry.FD))
	return Stream{FD: fd, NodeID: entry.NodeID}, nil
}

func connectSessionBus() (*dbus.Conn, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
