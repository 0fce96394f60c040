package audio

import (
	"encoding/binary"
	"math"
)

// Resample converts input between sample rates with linear
// interpolation. Dictation audio is speech; anything fancier than
// linear interpolation is inaudible after transcription.
func Resample(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return input
	}

	ratio := float64(toRate) / float64(fromRate)
	outputLen := int(math.Ceil(float64(len(input)) * ratio))
	output := make([]float32, outputLen)

	resampleCore(output, input, ratio)
	return output
}

func resampleCore(output, input []float32, ratio float64) {
	for i := 0; i < len(output); i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(input) {
			output[i] = input[srcIdx]*(1-frac) + input[srcIdx+1]*frac
		} else if srcIdx < len(input) {
			output[i] = input[srcIdx]
		}
	}
}

// Interleave flattens per-channel sample buffers into sample-major
// order (s0c0, s0c1, s1c0, ...). Mono input is returned as-is.
func Interleave(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	frames := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}

	out := make([]float32, frames*len(channels))
	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			out[i*len(channels)+c] = ch[i]
		}
	}
	return out
}

func PCMBytesToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// Float32ToInt16 clamps to [-1,1] and scales asymmetrically so both
// ends of the signed 16-bit range are reachable exactly.
func Float32ToInt16(samples []float32) []int16 {
	result := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		if s < 0 {
			result[i] = int16(s * 32768.0)
		} else {
			result[i] = int16(s * 32767.0)
		}
	}
	return result
}
