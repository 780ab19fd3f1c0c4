package pipeline

import (
	"errors"
	"testing"

	"github.com/pitrozx/rscap/internal/types"
)

func TestRateControlSettings(t *testing.T) {
	tests := []struct {
		name    string
		mode    types.RateControlMode
		bitrate int64
		want    map[string]string
	}{
		{
			name:    "cbr pins the rate window",
			mode:    types.RateControlCBR,
			bitrate: 1_000_000,
			want: map[string]string{
				"minrate": "1000000",
				"maxrate": "1000000",
				"bufsize": "2000000",
			},
		},
		{
			name:    "vbr leaves the encoder unconstrained",
			mode:    types.RateControlVBR,
			bitrate: 1_000_000,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rateControlSettings(tt.mode, tt.bitrate)
			if len(got) != len(tt.want) {
				t.Fatalf("rateControlSettings() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("rateControlSettings()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestMuxerSettings(t *testing.T) {
	got := muxerSettings(types.ContainerMP4)
	if got["movflags"] != "frag_keyframe+empty_moov" {
		t.Errorf("mp4 movflags = %q, want frag_keyframe+empty_moov", got["movflags"])
	}
	if got := muxerSettings(types.ContainerMKV); got != nil {
		t.Errorf("mkv muxerSettings() = %v, want nil", got)
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := errors.New("h264 encoder not found")
	err := &PipelineError{Stage: "encoder", Err: cause}

	if got, want := err.Error(), "pipeline encoder: h264 encoder not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find the wrapped cause")
	}
}
