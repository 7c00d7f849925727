package beat

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// tempoPriorCenter and tempoPriorWidth (in octaves) weight the autocorrelation
// toward common dance tempi.
const (
	tempoPriorCenter = 120.0
	tempoPriorWidth  = 1.0
)

// estimateTempo picks the autocorrelation peak of the onset envelope within
// the search range, weighted by a log-normal tempo prior. ok is false when the
// envelope has no periodic content.
func (a *Analyzer) estimateTempo(env []float64, fps float64) (bpm float64, ok bool) {
	n := len(env)
	if n < 4 || floats.Max(env) <= 1e-9 {
		return 0, false
	}

	minLag := int(math.Floor(60 * fps / a.SearchMax))
	maxLag := int(math.Ceil(60 * fps / a.SearchMin))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > n-2 {
		maxLag = n - 2
	}
	if maxLag <= minLag {
		return 0, false
	}

	smooth := smoothEnvelope(env)
	mean := stat.Mean(smooth, nil)
	centered := make([]float64, n)
	for i, v := range smooth {
		centered[i] = v - mean
	}

	ac := make([]float64, maxLag+2)
	for lag := minLag - 1; lag <= maxLag+1; lag++ {
		ac[lag] = floats.Dot(centered[:n-lag], centered[lag:]) / float64(n-lag)
	}

	best, bestLag := 0.0, -1
	for lag := minLag; lag <= maxLag; lag++ {
		if ac[lag] <= 0 {
			continue
		}
		if score := ac[lag] * tempoPrior(60*fps/float64(lag)); score > best {
			best, bestLag = score, lag
		}
	}
	if bestLag < 0 {
		return 0, false
	}

	// parabolic interpolation around the peak for sub-frame lag resolution
	lag := float64(bestLag)
	y0, y1, y2 := ac[bestLag-1], ac[bestLag], ac[bestLag+1]
	if d := y0 - 2*y1 + y2; d < 0 {
		lag += 0.5 * (y0 - y2) / d
	}
	return 60 * fps / lag, true
}

func tempoPrior(bpm float64) float64 {
	x := math.Log2(bpm/tempoPriorCenter) / tempoPriorWidth
	return math.Exp(-0.5 * x * x)
}

// smoothEnvelope widens onset peaks with a short triangular kernel so that
// beat periods falling between two frame lags still correlate.
func smoothEnvelope(env []float64) []float64 {
	kernel := [...]float64{1, 2, 3, 2, 1}
	const half = len(kernel) / 2
	out := make([]float64, len(env))
	for i := range env {
		s, w := 0.0, 0.0
		for k, kw := range kernel {
			j := i + k - half
			if j >= 0 && j < len(env) {
				s += kw * env[j]
				w += kw
			}
		}
		out[i] = s / w
	}
	return out
}
