package beat

import (
	"math"

	"github.com/satindergrewal/automix/internal/dsp"
)

// onsetEnvelope returns the half-wave rectified spectral flux of the
// log-compressed magnitude spectrum, one value per hop.
func (a *Analyzer) onsetEnvelope(samples []float64) []float64 {
	n := dsp.FrameCount(len(samples), a.FrameSize, a.HopSize)
	if n == 0 {
		return nil
	}
	env := make([]float64, n)
	var prev []float64

	dsp.ForEachSpectrum(samples, a.FrameSize, a.HopSize, func(i int, mag []float64) {
		if prev == nil {
			prev = make([]float64, len(mag))
			for k, m := range mag {
				prev[k] = math.Log1p(m)
			}
			return
		}
		flux := 0.0
		for k, m := range mag {
			lm := math.Log1p(m)
			if d := lm - prev[k]; d > 0 {
				flux += d
			}
			prev[k] = lm
		}
		env[i] = flux
	})
	return env
}
