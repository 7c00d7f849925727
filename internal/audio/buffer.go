package audio

import "math"

// normalizeCeiling is the peak a clipping buffer is scaled down to.
const normalizeCeiling = 0.95

// Buffer is a mono PCM signal. A Buffer is never mutated after it is produced;
// transforms return a new one.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Duration returns the length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Head returns the first seconds of the buffer, sharing the underlying samples.
func (b Buffer) Head(seconds float64) Buffer {
	n := int(seconds * float64(b.SampleRate))
	if seconds <= 0 || n >= len(b.Samples) {
		return b
	}
	return Buffer{Samples: b.Samples[:n], SampleRate: b.SampleRate}
}

// Peak returns the largest absolute sample value.
func Peak(samples []float64) float64 {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Normalize scales a clipping buffer so its peak becomes 0.95.
// Buffers whose peak is already within [-1, 1] are returned unchanged.
func Normalize(b Buffer) Buffer {
	peak := Peak(b.Samples)
	if peak <= 1.0 {
		return b
	}
	gain := normalizeCeiling / peak
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s * gain
	}
	return Buffer{Samples: out, SampleRate: b.SampleRate}
}

// TrimTrailingSilence drops trailing samples whose magnitude is at or below floor.
func TrimTrailingSilence(b Buffer, floor float64) Buffer {
	end := len(b.Samples)
	for end > 0 && math.Abs(b.Samples[end-1]) <= floor {
		end--
	}
	if end == len(b.Samples) {
		return b
	}
	return Buffer{Samples: b.Samples[:end], SampleRate: b.SampleRate}
}
