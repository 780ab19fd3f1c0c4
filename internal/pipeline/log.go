package pipeline

import (
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/pitrozx/rscap/internal/logging"
)

// InitLogging routes FFmpeg's own log lines through the module logger.
// Call once before the first pipeline is built.
func InitLogging() {
	logger := logging.GetLogger("pipeline")
	astiav.SetLogLevel(astiav.LogLevelInfo)
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, format, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}

		args := []any{"source", "ffmpeg"}
		if c != nil {
			if cl := c.Class(); cl != nil {
				args = append(args, "class", cl.String())
			}
		}

		switch {
		case l <= astiav.LogLevelError:
			logger.Error(msg, args...)
		case l <= astiav.LogLevelWarning:
			logger.Warn(msg, args...)
		case l <= astiav.LogLevelInfo:
			logger.Info(msg, args...)
		default:
			logger.Debug(msg, args...)
		}
	})
}
