package transition

import "math"

const (
	// SilenceThresholdDB is the frame energy below which audio counts as dead air.
	SilenceThresholdDB = -40.0

	silenceFrame = 2048
	silenceHop   = 512
)

// Span is a half-open sample range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of samples in the span.
func (s Span) Len() int { return s.End - s.Start }

// DetectSilence returns the runs of frames whose energy in dB falls below
// thresholdDB. Frame energy is the plain sum of squares over 2048 samples at a
// hop of 512. A run still open at the end of the buffer extends to its last
// sample.
func DetectSilence(samples []float64, thresholdDB float64) []Span {
	var spans []Span
	inSilence := false
	startFrame := 0
	frames := 0
	for i := 0; i < len(samples)-silenceFrame; i += silenceHop {
		var energy float64
		for _, v := range samples[i : i+silenceFrame] {
			energy += v * v
		}
		silent := 10*math.Log10(energy+1e-10) < thresholdDB
		switch {
		case silent && !inSilence:
			startFrame = frames
			inSilence = true
		case !silent && inSilence:
			spans = append(spans, Span{Start: startFrame * silenceHop, End: frames * silenceHop})
			inSilence = false
		}
		frames++
	}
	if inSilence {
		spans = append(spans, Span{Start: startFrame * silenceHop, End: len(samples)})
	}
	return spans
}
