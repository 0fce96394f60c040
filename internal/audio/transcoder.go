// Package audio re-encodes captured or uploaded dictation audio into
// the canonical PCM WAV container the backend transcribes.
package audio

import (
	"github.com/scopenote/scopenote/internal/shared"
)

const DefaultSampleRate = 48000

type ConvertOptions struct {
	// SampleRate of the produced WAV. Zero means DefaultSampleRate.
	SampleRate int
}

// ConvertToWAV decodes src, downmixes nothing (channel count is
// preserved), resamples every channel to the target rate, and
// re-encodes as 16-bit PCM WAV. src must be a WAV container; raw
// 16-bit mono PCM can be converted with ConvertPCMToWAV. Compressed
// containers are the backend's job to decode (they are sent through
// untranscoded by callers), so an unrecognized payload is a
// validation error, not a decode attempt.
func ConvertToWAV(src []byte, opts ConvertOptions) ([]byte, error) {
	target := opts.SampleRate
	if target <= 0 {
		target = DefaultSampleRate
	}

	if len(src) == 0 {
		return nil, shared.Validationf("audio payload is empty")
	}

	channels, info, err := DecodeWAV(src)
	if err != nil {
		return nil, shared.Validationf("decode audio: %v", err)
	}

	for c := range channels {
		channels[c] = Resample(channels[c], info.SampleRate, target)
	}

	interleaved := Interleave(channels)
	return EncodeWAV(Float32ToInt16(interleaved), target, info.Channels), nil
}

// ConvertPCMToWAV wraps raw 16-bit little-endian mono PCM at srcRate
// into a WAV container at the requested rate.
func ConvertPCMToWAV(pcm []byte, srcRate int, opts ConvertOptions) ([]byte, error) {
	target := opts.SampleRate
	if target <= 0 {
		target = DefaultSampleRate
	}
	if len(pcm) == 0 {
		return nil, shared.Validationf("audio payload is empty")
	}
	if srcRate <= 0 {
		return nil, shared.Validationf("source sample rate must be positive, got %d", srcRate)
	}

	samples := Resample(PCMBytesToFloat32(pcm), srcRate, target)
	return EncodeWAV(Float32ToInt16(samples), target, 1), nil
}
