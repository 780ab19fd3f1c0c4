package types

import (
	"strings"
	"testing"
)

func TestRecordingRequestApplyDefaults(t *testing.T) {
	r := RecordingRequest{Bucket: "rec", FilenameTemplate: "demo"}
	r.ApplyDefaults()

	if r.Container != ContainerMP4 {
		t.Errorf("Container = %q, want %q", r.Container, ContainerMP4)
	}
	if r.BitrateKbps != DefaultBitrateKbps {
		t.Errorf("BitrateKbps = %d, want %d", r.BitrateKbps, DefaultBitrateKbps)
	}
	if r.RateControl != RateControlCBR {
		t.Errorf("RateControl = %q, want %q", r.RateControl, RateControlCBR)
	}
	if r.AudioDevice != DefaultAudioDevice {
		t.Errorf("AudioDevice = %q, want %q", r.AudioDevice, DefaultAudioDevice)
	}
}

func TestRecordingRequestApplyDefaultsKeepsExplicit(t *testing.T) {
	r := RecordingRequest{
		Bucket:           "rec",
		FilenameTemplate: "demo",
		Container:        ContainerMKV,
		BitrateKbps:      2500,
		RateControl:      RateControlVBR,
		AudioDevice:      "hw:1,0",
	}
	r.ApplyDefaults()

	if r.Container != ContainerMKV || r.BitrateKbps != 2500 ||
		r.RateControl != RateControlVBR || r.AudioDevice != "hw:1,0" {
		t.Errorf("ApplyDefaults() overwrote explicit fields: %+v", r)
	}
}

func TestRecordingRequestValidate(t *testing.T) {
	valid := RecordingRequest{
		Bucket:           "rec",
		FilenameTemplate: "demo",
		Container:        ContainerMP4,
		BitrateKbps:      1000,
		RateControl:      RateControlCBR,
	}

	tests := []struct {
		name    string
		mutate  func(*RecordingRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(r *RecordingRequest) {}},
		{
			name:    "missing bucket",
			mutate:  func(r *RecordingRequest) { r.Bucket = "" },
			wantErr: "bucket",
		},
		{
			name:    "missing template",
			mutate:  func(r *RecordingRequest) { r.FilenameTemplate = "" },
			wantErr: "filename_template",
		},
		{
			name:    "bad container",
			mutate:  func(r *RecordingRequest) { r.Container = "avi" },
			wantErr: "container",
		},
		{
			name:    "bitrate too low",
			mutate:  func(r *RecordingRequest) { r.BitrateKbps = 99 },
			wantErr: "bitrate_kbps",
		},
		{
			name:    "bitrate too high",
			mutate:  func(r *RecordingRequest) { r.BitrateKbps = 10001 },
			wantErr: "bitrate_kbps",
		},
		{
			name:    "bitrate at bounds",
			mutate:  func(r *RecordingRequest) { r.BitrateKbps = MaxBitrateKbps },
		},
		{
			name:    "bad rate control",
			mutate:  func(r *RecordingRequest) { r.RateControl = "crf" },
			wantErr: "rate_control",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestRecordingRequestObjectKey(t *testing.T) {
	tests := []struct {
		template  string
		container Container
		want      string
	}{
		{"demo", ContainerMP4, "demo.mp4"},
		{"capture-2026", ContainerMKV, "capture-2026.mkv"},
		{"nested/session", ContainerMP4, "nested/session.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			r := RecordingRequest{FilenameTemplate: tt.template, Container: tt.container}
			if got := r.ObjectKey(); got != tt.want {
				t.Errorf("ObjectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainerFormatName(t *testing.T) {
	if got := ContainerMP4.FormatName(); got != "mp4" {
		t.Errorf("mp4 FormatName() = %q, want mp4", got)
	}
	if got := ContainerMKV.FormatName(); got != "matroska" {
		t.Errorf("mkv FormatName() = %q, want matroska", got)
	}
}

func TestBitrateBps(t *testing.T) {
	r := RecordingRequest{BitrateKbps: 1000}
	if got := r.BitrateBps(); got != 1_000_000 {
		t.Errorf("BitrateBps() = %d, want 1000000", got)
	}
}
