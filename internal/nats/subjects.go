package nats

// Subjects for outbound recording notifications.
const (
	SubjectRecordingStarted  = "rscap.recording.started"
	SubjectRecordingFinished = "rscap.recording.finished"
	SubjectRecordingFailed   = "rscap.recording.failed"
)
