// Package metrics provides Prometheus metrics for recording sessions.
// All metrics register through promauto and are served by the API's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rscap",
		Name:      "recording_active",
		Help:      "Whether a recording session is currently running (0 or 1)",
	})

	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rscap",
		Name:      "recordings_total",
		Help:      "Finished recording sessions by outcome and failure category",
	}, []string{"outcome", "category"})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rscap",
		Name:      "recording_duration_seconds",
		Help:      "Wall-clock duration of finished recording sessions",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 11), // 10s to ~5.7h
	})

	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rscap",
		Name:      "frames_decoded_total",
		Help:      "Video frames decoded across all sessions",
	})

	packetsEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rscap",
		Name:      "packets_encoded_total",
		Help:      "Encoded packets written to the muxer across all sessions",
	})

	bytesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rscap",
		Name:      "bytes_uploaded_total",
		Help:      "Muxed bytes streamed to object storage across all sessions",
	})
)

// SetRecordingActive marks whether a session is running.
func SetRecordingActive(active bool) {
	if active {
		recordingActive.Set(1)
		return
	}
	recordingActive.Set(0)
}

// ObserveRecording counts an ended session. Category is "none" when the
// session finished cleanly, otherwise the failure category.
func ObserveRecording(outcome, category string, seconds float64) {
	recordingsTotal.WithLabelValues(outcome, category).Inc()
	recordingDuration.Observe(seconds)
}

// AddPipelineProgress accumulates a session's decode and encode totals.
func AddPipelineProgress(frames, packets int64) {
	framesDecoded.Add(float64(frames))
	packetsEncoded.Add(float64(packets))
}

// AddBytesUploaded accumulates bytes committed to object storage.
func AddBytesUploaded(n int64) {
	bytesUploaded.Add(float64(n))
}
