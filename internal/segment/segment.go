// Package segment locates intro and outro boundaries from a track's energy curve.
package segment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/satindergrewal/automix/internal/audio"
)

const (
	// EnergyThreshold is the normalized smoothed energy separating sparse
	// intro/outro material from the main body.
	EnergyThreshold = 0.25

	// SustainFrames is how many frames the energy must stay on one side of
	// the threshold for a boundary to count.
	SustainFrames = 10

	// MaxIntroFraction and MinOutroFraction bound the detected boundaries.
	MaxIntroFraction = 0.05
	MinOutroFraction = 0.80

	maxSmoothWindow = 50
	epsilon         = 1e-10
)

// Map describes where a track's intro ends and its outro begins. Times are in seconds.
type Map struct {
	Duration      float64
	IntroEnd      float64
	OutroStart    float64
	MainBodyStart float64
	MainBodyEnd   float64

	Downbeats     []float64
	IntroDownbeat float64
	OutroDownbeat float64

	EnergyMean float64
	EnergyStd  float64

	// EnergyMatchPoint is the time in the outro whose energy is closest to EnergyMean.
	EnergyMatchPoint float64
}

// Segmenter computes segment maps.
type Segmenter struct {
	FrameSize int
	HopSize   int
}

// New returns a segmenter with 2048-sample frames and a 512-sample hop.
func New() *Segmenter {
	return &Segmenter{FrameSize: 2048, HopSize: 512}
}

// Segment analyzes buf. downbeats is the ordered downbeat list of the track's
// beat grid; it may be empty.
func (s *Segmenter) Segment(buf audio.Buffer, downbeats []float64) Map {
	duration := buf.Duration()
	energy := s.EnergyCurve(buf.Samples)

	m := Map{
		Duration:   duration,
		OutroStart: duration,
		Downbeats:  downbeats,
	}
	if len(energy) > 0 {
		m.EnergyMean, m.EnergyStd = stat.PopMeanStdDev(energy, nil)
	}

	if len(energy) >= SustainFrames && buf.SampleRate > 0 {
		smooth, window := smoothCurve(energy)
		frameSec := float64(s.HopSize) / float64(buf.SampleRate)
		// a smoothed value covers frames [i, i+window), report where it ends
		toSeconds := func(i int) float64 {
			return float64(i+window) * frameSec
		}
		if i, ok := introIndex(smooth); ok {
			m.IntroEnd = toSeconds(i)
		}
		if i, ok := outroIndex(smooth); ok {
			m.OutroStart = math.Min(toSeconds(i), duration)
		}
	}

	m.IntroEnd = math.Max(0, math.Min(m.IntroEnd, duration*MaxIntroFraction))
	m.OutroStart = math.Min(duration, math.Max(m.OutroStart, duration*MinOutroFraction))
	m.MainBodyStart = m.IntroEnd
	m.MainBodyEnd = m.OutroStart

	m.IntroDownbeat = NearestAfter(downbeats, m.IntroEnd)
	m.OutroDownbeat = NearestBefore(downbeats, m.OutroStart)

	if len(energy) > 0 {
		times := Linspace(0, duration, len(energy))
		m.EnergyMatchPoint = FindEnergyMatch(energy, times, m.OutroStart, duration, m.EnergyMean)
	}
	return m
}

// EnergyCurve returns per-frame energy (sum of squares) normalized by its
// maximum. Frames start every hop while a full frame still fits strictly
// before the end of the signal.
func (s *Segmenter) EnergyCurve(samples []float64) []float64 {
	var energy []float64
	for start := 0; start < len(samples)-s.FrameSize; start += s.HopSize {
		frame := samples[start : start+s.FrameSize]
		energy = append(energy, floats.Dot(frame, frame))
	}
	if len(energy) == 0 {
		return nil
	}
	floats.Scale(1/(floats.Max(energy)+epsilon), energy)
	return energy
}

// smoothCurve applies a moving average of min(50, len/10) frames, keeping
// only positions where the window fits entirely.
func smoothCurve(energy []float64) ([]float64, int) {
	window := len(energy) / 10
	if window > maxSmoothWindow {
		window = maxSmoothWindow
	}
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(energy)-window+1)
	sum := floats.Sum(energy[:window])
	out[0] = sum / float64(window)
	for i := 1; i < len(out); i++ {
		sum += energy[i+window-1] - energy[i-1]
		out[i] = sum / float64(window)
	}
	return out, window
}

// introIndex finds the first frame above the threshold whose following
// SustainFrames frames also average above it.
func introIndex(smooth []float64) (int, bool) {
	for i := 0; i+SustainFrames < len(smooth); i++ {
		if smooth[i] > EnergyThreshold && stat.Mean(smooth[i:i+SustainFrames], nil) > EnergyThreshold {
			return i, true
		}
	}
	return 0, false
}

// outroIndex scans backward for the last frame below the threshold whose
// preceding SustainFrames frames also average below it. A track that stays
// loud to the end has no outro.
func outroIndex(smooth []float64) (int, bool) {
	for i := len(smooth) - 1; i >= SustainFrames; i-- {
		if smooth[i] < EnergyThreshold && stat.Mean(smooth[i-SustainFrames:i], nil) < EnergyThreshold {
			return i, true
		}
	}
	return 0, false
}

// NearestBefore returns the last downbeat at or before t, the first downbeat
// when none precede t, or t itself for an empty list.
func NearestBefore(downbeats []float64, t float64) float64 {
	if len(downbeats) == 0 {
		return t
	}
	i := sort.Search(len(downbeats), func(i int) bool { return downbeats[i] > t })
	if i == 0 {
		return downbeats[0]
	}
	return downbeats[i-1]
}

// NearestAfter returns the first downbeat at or after t, the last downbeat
// when none follow t, or t itself for an empty list.
func NearestAfter(downbeats []float64, t float64) float64 {
	if len(downbeats) == 0 {
		return t
	}
	i := sort.SearchFloat64s(downbeats, t)
	if i == len(downbeats) {
		return downbeats[len(downbeats)-1]
	}
	return downbeats[i]
}

// FindEnergyMatch returns the time in [start, end] whose energy is closest to
// target. start is returned when no sample time falls in the window.
func FindEnergyMatch(energy, times []float64, start, end, target float64) float64 {
	best, bestDiff := start, math.Inf(1)
	for i, t := range times {
		if t < start || t > end || i >= len(energy) {
			continue
		}
		if d := math.Abs(energy[i] - target); d < bestDiff {
			best, bestDiff = t, d
		}
	}
	return best
}

// Linspace returns n evenly spaced values from start to end inclusive.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	return floats.Span(out, start, end)
}
