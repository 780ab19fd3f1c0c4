package pipeline

import (
	"strconv"

	"github.com/pitrozx/rscap/internal/types"
)

// rateControlSettings maps a rate control mode to encoder options. CBR pins
// the rate window to the target with a two-second buffer; VBR constrains
// only the target, which is set on the codec context.
func rateControlSettings(mode types.RateControlMode, bitrateBps int64) map[string]string {
	if mode != types.RateControlCBR {
		return nil
	}
	target := strconv.FormatInt(bitrateBps, 10)
	return map[string]string{
		"minrate": target,
		"maxrate": target,
		"bufsize": strconv.FormatInt(2*bitrateBps, 10),
	}
}

// muxerSettings returns container options for writing the header. The mp4
// muxer must fragment because the output cannot seek.
func muxerSettings(container types.Container) map[string]string {
	if container == types.ContainerMP4 {
		return map[string]string{"movflags": "frag_keyframe+empty_moov"}
	}
	return nil
}
