// Package logging provides structured logging with per-module levels.
//
// Built on log/slog. Records fan out to stdout (text or json), to the
// systemd journal when one is listening, and to an in-memory ring buffer
// that backs the recent-logs API.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"pipeline": "debug",
//		},
//	})
//
// Then take module loggers anywhere:
//
//	logger := logging.GetLogger("portal")
//	logger.Info("Capture started", "node_id", id)
//
// Module levels can be raised or lowered at runtime by calling Initialize
// again with a new Config; existing loggers pick up the change.
//
// Journal output carries SYSLOG_IDENTIFIER=rscap, so:
//
//	journalctl -t rscap -f
//	journalctl -t rscap MODULE=pipeline
package logging
