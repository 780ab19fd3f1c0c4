// Package models defines the request and response shapes served by the
// HTTP API.
package models

import (
	"github.com/pitrozx/rscap/internal/logging"
	"github.com/pitrozx/rscap/internal/presets"
	"github.com/pitrozx/rscap/internal/recorder"
	"github.com/pitrozx/rscap/internal/sink"
	"github.com/pitrozx/rscap/internal/types"
	"github.com/pitrozx/rscap/internal/version"
)

// Health check models
type HealthData struct {
	Status    string `json:"status" example:"ok" doc:"Service status"`
	Recording bool   `json:"recording" example:"false" doc:"Whether a recording session is active"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionResponse struct {
	Body version.Info
}

// Recording models
type StartRecordingData struct {
	Preset           string `json:"preset,omitempty" example:"standup" doc:"Preset name used as the base request"`
	Bucket           string `json:"bucket,omitempty" example:"recordings" doc:"Destination bucket"`
	FilenameTemplate string `json:"filename_template,omitempty" example:"standup/2026-01-02" doc:"Object key without the container extension"`
	Container        string `json:"container,omitempty" example:"mp4" doc:"Output container format (mp4 or mkv)"`
	BitrateKbps      int    `json:"bitrate_kbps,omitempty" example:"1500" doc:"Encoder target bitrate in kbit/s"`
	RateControl      string `json:"rate_control,omitempty" example:"cbr" doc:"Encoder rate control mode (cbr or vbr)"`
	AudioDevice      string `json:"audio_device,omitempty" example:"hw:1,0" doc:"ALSA capture device"`
}

type StartRecordingRequest struct {
	Body StartRecordingData
}

type RecordingStartedData struct {
	Bucket string `json:"bucket" example:"recordings" doc:"Destination bucket"`
	Key    string `json:"key" example:"standup/2026-01-02.mp4" doc:"Destination object key"`
}

type RecordingStartedResponse struct {
	Body RecordingStartedData
}

type ActiveRecordingResponse struct {
	Body recorder.Status
}

type StopRecordingData struct {
	Message string `json:"message" example:"Recording stopping" doc:"Operation result message"`
}

type StopRecordingResponse struct {
	Body StopRecordingData
}

// Object listing models
type ObjectListData struct {
	Bucket  string            `json:"bucket" example:"recordings" doc:"Queried bucket"`
	Prefix  string            `json:"prefix,omitempty" example:"standup/" doc:"Key prefix filter"`
	Objects []sink.ObjectInfo `json:"objects" doc:"Committed objects under the prefix"`
	Count   int               `json:"count" example:"3" doc:"Number of objects returned"`
}

type ObjectListResponse struct {
	Body ObjectListData
}

// Preset models
type PresetListData struct {
	Presets map[string]presets.Preset `json:"presets" doc:"Stored presets keyed by name"`
	Count   int                       `json:"count" example:"2" doc:"Number of stored presets"`
}

type PresetListResponse struct {
	Body PresetListData
}

type PresetPutData struct {
	Description string                 `json:"description,omitempty" example:"Daily standup capture" doc:"Free-form preset description"`
	Request     types.RecordingRequest `json:"request" doc:"Recording request saved under this preset"`
}

type PresetPutRequest struct {
	Body PresetPutData
}

type PresetResponse struct {
	Body presets.Preset
}

// Log models
type LogsData struct {
	Entries []logging.Entry `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int             `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
