package audio

import (
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV writes interleaved 16-bit PCM into a canonical 44-byte
// RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign
	dataSize := len(samples) * 2

	buf := make([]byte, wavHeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(s))
	}
	return buf
}

// WAVInfo describes a decoded WAV payload.
type WAVInfo struct {
	SampleRate int
	Channels   int
	Bits       int
}

// DecodeWAV parses a PCM WAV container and returns per-channel float
// samples in [-1,1]. Only format tag 1 (linear PCM) at 16 bits is
// supported; that is what every capture surface we accept produces.
func DecodeWAV(data []byte) ([][]float32, WAVInfo, error) {
	if len(data) < wavHeaderSize {
		return nil, WAVInfo{}, fmt.Errorf("wav: %d bytes is too short for a header", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, WAVInfo{}, fmt.Errorf("wav: missing RIFF/WAVE magic")
	}

	var info WAVInfo
	var pcm []byte

	// Walk chunks; RIFF puts fmt before data, but tolerate extra
	// chunks (LIST, fact) in between.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, WAVInfo{}, fmt.Errorf("wav: fmt chunk truncated")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, WAVInfo{}, fmt.Errorf("wav: unsupported format tag %d (want PCM)", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.Bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word aligned
		}
	}

	if info.SampleRate == 0 || info.Channels == 0 {
		return nil, WAVInfo{}, fmt.Errorf("wav: no fmt chunk")
	}
	if pcm == nil {
		return nil, WAVInfo{}, fmt.Errorf("wav: no data chunk")
	}
	if info.Bits != 16 {
		return nil, WAVInfo{}, fmt.Errorf("wav: unsupported bit depth %d (want 16)", info.Bits)
	}

	interleaved := PCMBytesToFloat32(pcm)
	frames := len(interleaved) / info.Channels
	channels := make([][]float32, info.Channels)
	for c := range channels {
		channels[c] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			channels[c][i] = interleaved[i*info.Channels+c]
		}
	}
	return channels, info, nil
}
