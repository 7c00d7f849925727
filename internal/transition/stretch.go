package transition

import (
	"math"

	"github.com/satindergrewal/automix/internal/dsp"
)

// WSOLA parameters in samples.
const (
	grainSize     = 2048
	synthesisHop  = grainSize / 4
	seekTolerance = 128
	seekStride    = 4
)

// Stretch changes the duration of x by factor (output length / input length)
// without resampling, using waveform-similarity overlap-add. Pitch is
// approximately preserved. Inputs shorter than one grain are linearly
// interpolated instead.
func Stretch(x []float64, factor float64) []float64 {
	if len(x) == 0 || factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return append([]float64(nil), x...)
	}
	outLen := int(math.Round(float64(len(x)) * factor))
	if outLen == len(x) {
		return append([]float64(nil), x...)
	}
	if len(x) < 2*grainSize {
		return interpolate(x, outLen)
	}

	win := dsp.HannWindow(grainSize)
	out := make([]float64, outLen+grainSize)
	norm := make([]float64, outLen+grainSize)
	analysisHop := float64(synthesisHop) / factor
	last := len(x) - grainSize

	delta := 0
	for k := 0; k*synthesisHop < outLen; k++ {
		pos := clampInt(int(math.Round(float64(k)*analysisHop))+delta, 0, last)
		dst := k * synthesisHop
		for i, w := range win {
			out[dst+i] += x[pos+i] * w
			norm[dst+i] += w
		}

		natural := min(pos+synthesisHop, last)
		next := int(math.Round(float64(k+1) * analysisHop))
		delta = bestOffset(x, natural, min(next, last), last) - next
	}

	for i := range out[:outLen] {
		if norm[i] > 1e-3 {
			out[i] /= norm[i]
		} else {
			out[i] = 0
		}
	}
	return out[:outLen]
}

// bestOffset finds the grain start near target whose waveform best continues
// the grain at natural.
func bestOffset(x []float64, natural, target, last int) int {
	lo := max(0, target-seekTolerance)
	hi := min(last, target+seekTolerance)
	ref := x[natural : natural+grainSize]
	best, bestScore := target, math.Inf(-1)
	for c := lo; c <= hi; c++ {
		cand := x[c : c+grainSize]
		var score float64
		for i := 0; i < grainSize; i += seekStride {
			score += ref[i] * cand[i]
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func interpolate(x []float64, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if len(x) == 1 || n == 1 {
		for i := range out {
			out[i] = x[0]
		}
		return out
	}
	scale := float64(len(x)-1) / float64(n-1)
	for i := range out {
		p := float64(i) * scale
		j := int(p)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := p - float64(j)
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
