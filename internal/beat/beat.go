// Package beat estimates tempo and a beat grid from a mono PCM buffer.
package beat

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/satindergrewal/automix/internal/audio"
)

const (
	// DefaultTempo is reported when no tempo can be measured.
	DefaultTempo = 120.0

	// MinTempo and MaxTempo bound the folded tempo range [MinTempo, MaxTempo).
	MinTempo = 60.0
	MaxTempo = 200.0

	// BeatsPerBar assumes 4/4 time: every fourth beat is a downbeat.
	BeatsPerBar = 4
)

// Grid is the tempo and beat timing of one track. Times are in seconds.
type Grid struct {
	Tempo      float64
	Beats      []float64
	Downbeats  []float64
	Bars       []float64
	BeatCount  int
	Duration   float64
	Confidence float64

	// Fallback is set when fewer than two beats were found and Tempo is DefaultTempo.
	Fallback bool
}

// Analyzer extracts beat grids. The zero value is not usable; use NewAnalyzer.
type Analyzer struct {
	FrameSize int     // STFT frame for the onset envelope
	HopSize   int     // STFT hop
	Tightness float64 // penalty on beat intervals that stray from the tempo period

	// tempo search range before octave folding
	SearchMin float64
	SearchMax float64
}

// NewAnalyzer returns an analyzer with the default parameters.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		FrameSize: 1024,
		HopSize:   512,
		Tightness: 100,
		SearchMin: 30,
		SearchMax: 300,
	}
}

// Analyze computes the beat grid of buf. Degenerate input (silence, very short
// buffers) produces a fallback grid rather than an error.
func (a *Analyzer) Analyze(buf audio.Buffer) Grid {
	duration := buf.Duration()
	if buf.SampleRate <= 0 {
		return fallbackGrid(nil, duration)
	}

	env := a.onsetEnvelope(buf.Samples)
	fps := float64(buf.SampleRate) / float64(a.HopSize)

	raw, ok := a.estimateTempo(env, fps)
	if !ok {
		return fallbackGrid(nil, duration)
	}
	tempo := FoldTempo(raw)

	frames := a.trackBeats(env, 60*fps/tempo)
	offset := float64(a.FrameSize) / 2
	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = (float64(f*a.HopSize) + offset) / float64(buf.SampleRate)
	}
	if len(beats) < 2 {
		return fallbackGrid(beats, duration)
	}

	downbeats := everyNth(beats, BeatsPerBar)
	var bars []float64
	if len(beats) >= BeatsPerBar {
		bars = downbeats
	}
	return Grid{
		Tempo:      tempo,
		Beats:      beats,
		Downbeats:  downbeats,
		Bars:       bars,
		BeatCount:  len(beats),
		Duration:   duration,
		Confidence: Confidence(beats),
	}
}

func fallbackGrid(beats []float64, duration float64) Grid {
	return Grid{
		Tempo:     DefaultTempo,
		Beats:     beats,
		Downbeats: beats,
		BeatCount: len(beats),
		Duration:  duration,
		Fallback:  true,
	}
}

// FoldTempo maps bpm into [MinTempo, MaxTempo) by halving or doubling.
// Non-finite or non-positive input returns DefaultTempo.
func FoldTempo(bpm float64) float64 {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return DefaultTempo
	}
	for bpm >= MaxTempo {
		bpm /= 2
	}
	for bpm < MinTempo {
		bpm *= 2
	}
	return bpm
}

// Confidence scores beat regularity as 1 minus the coefficient of variation
// of the beat intervals, clamped to [0, 1]. Fewer than four beats score 0.
func Confidence(beats []float64) float64 {
	if len(beats) < BeatsPerBar {
		return 0
	}
	intervals := make([]float64, len(beats)-1)
	for i := range intervals {
		intervals[i] = beats[i+1] - beats[i]
	}
	mean, std := stat.PopMeanStdDev(intervals, nil)
	if mean <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, 1-std/mean))
}

func everyNth(xs []float64, n int) []float64 {
	out := make([]float64, 0, (len(xs)+n-1)/n)
	for i := 0; i < len(xs); i += n {
		out = append(out, xs[i])
	}
	return out
}
