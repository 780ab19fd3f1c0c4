//go:build linux

package audio

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type linuxDetector struct{}

func newPlatformDetector() Detector {
	return &linuxDetector{}
}

// ListDevices walks every sound card and collects its PCM capture
// devices. Cards that cannot be opened are skipped.
func (d *linuxDetector) ListDevices() ([]Device, error) {
	var devices []Device

	card := C.int(-1)
	for C.snd_card_next(&card) >= 0 && card >= 0 {
		devices = append(devices, d.cardCaptureDevices(int(card))...)
	}

	return devices, nil
}

func (d *linuxDetector) cardCaptureDevices(card int) []Device {
	ctlName := C.CString(fmt.Sprintf("hw:%d", card))
	defer C.free(unsafe.Pointer(ctlName))

	var ctl *C.snd_ctl_t
	if C.snd_ctl_open(&ctl, ctlName, 0) < 0 { //nolint:gocritic // CGO false positive
		return nil
	}
	defer C.snd_ctl_close(ctl)

	cardName := d.cardName(ctl)

	var devices []Device
	dev := C.int(-1)
	for C.snd_ctl_pcm_next_device(ctl, &dev) >= 0 && dev >= 0 {
		name, ok := d.capturePCMName(ctl, int(dev))
		if !ok {
			continue
		}

		device := Device{
			ID:         FormatALSADevice(card, int(dev)),
			CardNumber: card,
			CardName:   cardName,
			Name:       name,
		}
		d.probeCapabilities(&device)
		devices = append(devices, device)
	}

	return devices
}

func (d *linuxDetector) cardName(ctl *C.snd_ctl_t) string {
	var info *C.snd_ctl_card_info_t
	C.snd_ctl_card_info_malloc(&info) //nolint:gocritic // CGO false positive
	defer C.snd_ctl_card_info_free(info)

	if C.snd_ctl_card_info(ctl, info) < 0 {
		return ""
	}
	return C.GoString(C.snd_ctl_card_info_get_name(info))
}

// capturePCMName reports the PCM device's name if it supports capture.
func (d *linuxDetector) capturePCMName(ctl *C.snd_ctl_t, dev int) (string, bool) {
	var info *C.snd_pcm_info_t
	C.snd_pcm_info_malloc(&info) //nolint:gocritic // CGO false positive
	defer C.snd_pcm_info_free(info)

	C.snd_pcm_info_set_device(info, C.uint(dev))
	C.snd_pcm_info_set_subdevice(info, 0)
	C.snd_pcm_info_set_stream(info, C.SND_PCM_STREAM_CAPTURE)

	if C.snd_ctl_pcm_info(ctl, info) < 0 {
		return "", false
	}
	return C.GoString(C.snd_pcm_info_get_name(info)), true
}

// probeCapabilities opens the device non-blocking and fills in channel,
// rate, and format support. Devices busy or unopenable stay bare.
func (d *linuxDetector) probeCapabilities(device *Device) {
	name := C.CString(device.ID)
	defer C.free(unsafe.Pointer(name))

	var handle *C.snd_pcm_t
	if C.snd_pcm_open(&handle, name, C.SND_PCM_STREAM_CAPTURE, C.SND_PCM_NONBLOCK) < 0 { //nolint:gocritic // CGO false positive
		return
	}
	defer C.snd_pcm_close(handle)

	var params *C.snd_pcm_hw_params_t
	C.snd_pcm_hw_params_malloc(&params) //nolint:gocritic // CGO false positive
	defer C.snd_pcm_hw_params_free(params)

	if C.snd_pcm_hw_params_any(handle, params) < 0 {
		return
	}

	var maxCh C.uint
	C.snd_pcm_hw_params_get_channels_max(params, &maxCh)
	device.MaxChannels = int(maxCh)

	for _, rate := range []int{8000, 16000, 22050, 32000, 44100, 48000, 96000, 192000} {
		if C.snd_pcm_hw_params_test_rate(handle, params, C.uint(rate), 0) == 0 {
			device.SampleRates = append(device.SampleRates, rate)
		}
	}

	formats := []struct {
		name   string
		format C.snd_pcm_format_t
	}{
		{"U8", C.SND_PCM_FORMAT_U8},
		{"S16_LE", C.SND_PCM_FORMAT_S16_LE},
		{"S24_LE", C.SND_PCM_FORMAT_S24_LE},
		{"S24_3LE", C.SND_PCM_FORMAT_S24_3LE},
		{"S32_LE", C.SND_PCM_FORMAT_S32_LE},
		{"FLOAT_LE", C.SND_PCM_FORMAT_FLOAT_LE},
	}
	for _, f := range formats {
		if C.snd_pcm_hw_params_test_format(handle, params, f.format) == 0 {
			device.Formats = append(device.Formats, f.name)
		}
	}
}
