package audio

import (
	"encoding/binary"
	"math"
)

// ToFrames converts a mono buffer to the playback format: 48kHz interleaved
// stereo int16 frames of 20ms. The final frame is zero padded.
func ToFrames(b Buffer) [][]int16 {
	if b.SampleRate <= 0 || len(b.Samples) == 0 {
		return nil
	}
	s := Resample(NewStreamer(b.Samples), b.SampleRate, SampleRate)

	var frames [][]int16
	chunk := make([][2]float64, FrameSize)
	for {
		n, ok := s.Stream(chunk)
		if n > 0 {
			frame := make([]int16, FrameSamples)
			for i := 0; i < n; i++ {
				frame[i*Channels] = toInt16(chunk[i][0])
				frame[i*Channels+1] = toInt16(chunk[i][1])
			}
			frames = append(frames, frame)
		}
		if !ok {
			break
		}
	}
	return frames
}

// toInt16 scales a float sample to int16 with clipping.
func toInt16(v float64) int16 {
	v = math.Round(v * 32767)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
