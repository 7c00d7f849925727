// Package transition renders the crossover between two tracks. Every strategy
// is built on a shared crossfade primitive.
package transition

import "time"

// Defaults for Options.
const (
	DefaultFadeDuration = 10 * time.Second
	DefaultCurve        = CurveEqualPower
	DefaultEchoDelay    = 300 * time.Millisecond
	DefaultEchoDecay    = 0.5
	DefaultEchoTaps     = 3
	DefaultMaxStretch   = 0.15
)

// Request carries both tracks and the timing metadata a strategy needs.
type Request struct {
	A, B       []float64
	SampleRate int

	// TransitionPoint is the sample index in A where B is fully faded in.
	TransitionPoint int
	// StartB is the offset into B, in seconds, where B's fade-in begins.
	StartB float64

	BeatsA, BeatsB []float64
	TempoA, TempoB float64
	KeyA, KeyB     string
}

// Options tune the crossfade primitive and the strategies built on it.
type Options struct {
	FadeDuration time.Duration
	Curve        string
	AlignToBeat  bool
	SkipSilence  bool

	EchoDelay time.Duration
	EchoDecay float64
	EchoTaps  int

	// MaxStretch bounds beat-sync time-stretching to 1±MaxStretch.
	MaxStretch float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		FadeDuration: DefaultFadeDuration,
		Curve:        DefaultCurve,
		AlignToBeat:  true,
		SkipSilence:  true,
		EchoDelay:    DefaultEchoDelay,
		EchoDecay:    DefaultEchoDecay,
		EchoTaps:     DefaultEchoTaps,
		MaxStretch:   DefaultMaxStretch,
	}
}

// Strategy renders a transition from A into B.
type Strategy interface {
	Name() string
	Description() string
	Apply(req Request) []float64
}

// Fade returns the fade length s renders for req. Strategies that rescale the
// configured fade report the rescaled length.
func Fade(s Strategy, opts Options, req Request) time.Duration {
	if h, ok := s.(*harmonic); ok {
		return h.fadeFor(req.KeyA, req.KeyB)
	}
	return opts.FadeDuration
}
