package portal

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

// Session is a live capture session. Close releases the portal session,
// the duplicated stream descriptor, and the bus connection; it is safe to
// call from teardown paths regardless of how far the recording got.
type Session struct {
	conn   *dbus.Conn
	handle dbus.ObjectPath
	stream Stream
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Stream returns the capture stream descriptor.
func (s *Session) Stream() Stream { return s.stream }

// Handle returns the portal session handle.
func (s *Session) Handle() string { return string(s.handle) }

// Close ends the portal session and releases the stream descriptor. It is
// idempotent; only the first call does work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		// Best effort: the portal may already have dropped the session.
		call := s.conn.Object(portalDest, s.handle).Call(sessionIface+".Close", 0)
		if call.Err != nil {
			s.logger.Debug("Portal session close failed", "handle", string(s.handle), "error", call.Err)
		}

		if s.stream.FD >= 0 {
			if err := unix.Close(s.stream.FD); err != nil {
				errs = append(errs, err)
			}
			s.stream.FD = -1
		}

		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}

		s.closeErr = errors.Join(errs...)
		s.logger.Debug("Capture session closed", "handle", string(s.handle))
	})
	return s.closeErr
}
