// Package tonality estimates a track's key from its averaged chroma profile.
package tonality

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/dsp"
)

const (
	// DefaultKey and DefaultKeyConfidence are reported for input with no
	// measurable pitch content.
	DefaultKey           = "C"
	DefaultKeyConfidence = 0.5

	minPitchHz = 65.0
	maxPitchHz = 4000.0
	refC4Hz    = 261.63
)

var (
	majorMask = [12]float64{1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0, 1}
	minorMask = [12]float64{1, 0, 1, 1, 0, 1, 0, 1, 0, 1, 0, 0}

	// pitch class of each root, C = 0
	majorNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}
	minorNames = [12]string{"Cm", "C#m", "Dm", "Ebm", "Em", "Fm", "F#m", "Gm", "G#m", "Am", "Bbm", "Bm"}
)

// Detector estimates keys. The zero value is not usable; use NewDetector.
type Detector struct {
	FrameSize int
	HopSize   int
}

// NewDetector returns a detector with 4096-sample frames and a 2048-sample hop.
func NewDetector() *Detector {
	return &Detector{FrameSize: 4096, HopSize: 2048}
}

// DetectKey returns the best matching key label and its raw template score.
// The score is an unnormalized correlation and only meaningful for ranking.
func (d *Detector) DetectKey(buf audio.Buffer) (string, float64) {
	chroma, ok := d.Chroma(buf)
	if !ok {
		return DefaultKey, DefaultKeyConfidence
	}
	return MatchKey(chroma)
}

// Chroma returns the time-averaged pitch-class profile of buf, scaled so its
// largest bin is 1. ok is false when buf carries no energy in the pitch range.
func (d *Detector) Chroma(buf audio.Buffer) (chroma [12]float64, ok bool) {
	if buf.SampleRate <= 0 {
		return chroma, false
	}

	// precompute the pitch class of each bin, -1 outside the pitch range
	bins := d.FrameSize/2 + 1
	pitchClass := make([]int, bins)
	for k := range pitchClass {
		pitchClass[k] = -1
		f := dsp.BinFrequency(k, d.FrameSize, buf.SampleRate)
		if f < minPitchHz || f > maxPitchHz {
			continue
		}
		semis := int(math.Round(12 * math.Log2(f/refC4Hz)))
		pitchClass[k] = ((semis % 12) + 12) % 12
	}

	frames := 0
	dsp.ForEachSpectrum(buf.Samples, d.FrameSize, d.HopSize, func(_ int, mag []float64) {
		frames++
		for k, m := range mag {
			if pc := pitchClass[k]; pc >= 0 {
				chroma[pc] += m
			}
		}
	})
	if frames == 0 {
		return chroma, false
	}

	max := floats.Max(chroma[:])
	if max <= 1e-9 {
		return chroma, false
	}
	floats.Scale(1/max, chroma[:])
	return chroma, true
}

// MatchKey correlates chroma with the 24 binary major and minor templates and
// returns the best label and its score. Ties keep the first candidate, majors
// before minors in ascending root order.
func MatchKey(chroma [12]float64) (string, float64) {
	best, bestScore := DefaultKey, math.Inf(-1)
	for _, mode := range []struct {
		mask  [12]float64
		names [12]string
	}{
		{majorMask, majorNames},
		{minorMask, minorNames},
	} {
		for root := 0; root < 12; root++ {
			score := 0.0
			for pc := 0; pc < 12; pc++ {
				score += chroma[pc] * mode.mask[(pc-root+12)%12]
			}
			if score > bestScore {
				best, bestScore = mode.names[root], score
			}
		}
	}
	return best, bestScore
}
