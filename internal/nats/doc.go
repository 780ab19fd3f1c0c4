// Package nats publishes recording lifecycle notifications for fleet
// consumers and can serve them from an embedded broker.
//
// # Architecture
//
//   - Publisher: subscribes to the in-process event bus and forwards
//     lifecycle events to NATS subjects as JSON
//   - Server: optional embedded NATS server, so consumers can subscribe
//     directly to the recorder without external infrastructure
//
// # Subject Hierarchy
//
//	rscap.recording.started    # session negotiated, pipeline streaming
//	rscap.recording.finished   # object finalized in storage
//	rscap.recording.failed     # session ended with an error
//
// The package uses fire-and-forget messaging (core NATS, no JetStream).
// The publisher gracefully degrades when NATS is unavailable.
//
// # Debugging with nats CLI
//
// Monitor all recording notifications:
//
//	nats sub "rscap.recording.>"
//
// Payloads are the JSON encodings of the corresponding event bus types,
// for example rscap.recording.finished:
//
//	{
//	  "bucket": "recordings",
//	  "key": "standup/2026-01-02.mp4",
//	  "bytes": 10485760,
//	  "frames": 1800,
//	  "duration_seconds": 60.5,
//	  "timestamp": "2026-01-02T10:31:00Z"
//	}
package nats
