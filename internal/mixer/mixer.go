// Package mixer sequences decoding, analysis, compatibility scoring and a
// transition strategy into a finished mix.
package mixer

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/beat"
	"github.com/satindergrewal/automix/internal/compat"
	"github.com/satindergrewal/automix/internal/segment"
	"github.com/satindergrewal/automix/internal/tonality"
	"github.com/satindergrewal/automix/internal/transition"
)

// Auto resolves to the strategy recommended by compatibility scoring.
const Auto = "auto"

const (
	// minTransitionFraction keeps the transition out of the first 55% of A.
	minTransitionFraction = 0.55

	// B skips at most 8% of itself or 8 seconds, whichever is smaller.
	maxIntroSkipFraction = 0.08
	maxIntroSkip         = 8.0
	// Start offsets under a second are replaced with a fixed 3 seconds.
	minIntroSkip      = 1.0
	fallbackIntroSkip = 3.0
)

// Config holds orchestrator settings.
type Config struct {
	SampleRate int
	Transition transition.Options

	// FeatureWindow is how much of each track compatibility scoring inspects.
	FeatureWindow time.Duration

	// TrimSilence drops the zero padding the crossfade leaves at the end.
	TrimSilence bool
}

// DefaultConfig returns the analysis rate and default transition options.
func DefaultConfig() Config {
	return Config{
		SampleRate:    audio.AnalysisSampleRate,
		Transition:    transition.DefaultOptions(),
		FeatureWindow: compat.DefaultWindow,
	}
}

// Request describes one pair mix.
type Request struct {
	TrackA   string
	TrackB   string
	Strategy string

	// TransitionDuration overrides the adaptive fade length when positive.
	TransitionDuration time.Duration

	// Output, when set, is where the mix is encoded.
	Output string
}

// SegmentA summarizes the outgoing track's structure.
type SegmentA struct {
	IntroEnd      float64 `json:"intro_end"`
	OutroStart    float64 `json:"outro_start"`
	OutroDownbeat float64 `json:"outro_downbeat"`
}

// SegmentB summarizes the incoming track's structure.
type SegmentB struct {
	IntroEnd      float64 `json:"intro_end"`
	IntroDownbeat float64 `json:"intro_downbeat"`
}

// Result is a finished pair mix. Times are in seconds.
type Result struct {
	Buffer audio.Buffer `json:"-"`

	TrackA             string        `json:"track_a,omitempty"`
	TrackB             string        `json:"track_b,omitempty"`
	Strategy           string        `json:"strategy"`
	OriginalStrategy   string        `json:"original_strategy"`
	BPMA               float64       `json:"bpm_a"`
	BPMB               float64       `json:"bpm_b"`
	TransitionPoint    float64       `json:"transition_point"`
	TransitionPointB   float64       `json:"transition_point_b"`
	// TransitionDuration is the fade actually rendered. BaseDuration is the
	// adaptive or requested length before any strategy rescaled it.
	TransitionDuration float64       `json:"transition_duration"`
	BaseDuration       float64       `json:"base_duration"`
	Duration           float64       `json:"duration"`
	SegmentA           SegmentA      `json:"segment_a"`
	SegmentB           SegmentB      `json:"segment_b"`
	Compatibility      compat.Result `json:"compatibility"`
	Output             string        `json:"output,omitempty"`
}

// Mixer owns one instance of every analyzer. It holds no per-request state
// and is safe for concurrent use.
type Mixer struct {
	log      *zap.SugaredLogger
	codec    audio.Codec
	features FeatureSource

	beats    *beat.Analyzer
	segments *segment.Segmenter
	keys     *tonality.Detector

	cfg Config
}

// New creates a mixer. A nil features source analyzes decoded files directly.
func New(log *zap.SugaredLogger, codec audio.Codec, features FeatureSource, cfg Config) *Mixer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.AnalysisSampleRate
	}
	m := &Mixer{
		log:      log,
		codec:    codec,
		beats:    beat.NewAnalyzer(),
		segments: segment.New(),
		keys:     tonality.NewDetector(),
		cfg:      cfg,
	}
	if features == nil {
		features = NewDecodingSource(codec, compat.NewAnalyzer(m.beats, m.keys, cfg.FeatureWindow))
	}
	m.features = features
	return m
}

// EvaluateCompatibility scores how well trackB follows trackA.
func (m *Mixer) EvaluateCompatibility(ctx context.Context, trackA, trackB string) (compat.Result, error) {
	var fa, fb compat.Features
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fa, err = m.features.Features(gctx, trackA)
		return err
	})
	g.Go(func() (err error) {
		fb, err = m.features.Features(gctx, trackB)
		return err
	})
	if err := g.Wait(); err != nil {
		return compat.Result{}, err
	}

	r := compat.Evaluate(fa, fb)
	m.log.Infow("Compatibility evaluated", "track_a", trackA, "track_b", trackB,
		"score", r.Score, "recommendation", r.Recommendation)
	return r, nil
}

// Mix decodes both tracks, analyzes them in parallel and renders the
// transition. Unknown strategy names fail before anything is decoded.
func (m *Mixer) Mix(ctx context.Context, req Request) (*Result, error) {
	name, err := strategyName(req.Strategy)
	if err != nil {
		return nil, err
	}
	m.log.Infow("Mixing", "track_a", req.TrackA, "track_b", req.TrackB, "strategy", name)

	var a, b side
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = m.load(gctx, req.TrackA)
		return err
	})
	g.Go(func() (err error) {
		b, err = m.load(gctx, req.TrackB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := m.render(a, b, name, req.TransitionDuration)
	if err != nil {
		return nil, err
	}
	res.TrackA, res.TrackB = req.TrackA, req.TrackB
	if err := m.save(ctx, res.Buffer, req.Output); err != nil {
		return nil, err
	}
	res.Output = req.Output
	return res, nil
}

// MixBuffers mixes two already decoded buffers at the mixer's sample rate.
func (m *Mixer) MixBuffers(a, b audio.Buffer, strategy string, hint time.Duration) (*Result, error) {
	name, err := strategyName(strategy)
	if err != nil {
		return nil, err
	}
	return m.render(m.analyze(a, 0), m.analyze(b, 0), name, hint)
}

// side is one track of a transition with its analysis. For a chained
// playlist buf holds the whole mix so far and every time is relative to buf,
// with start marking where the last track begins.
type side struct {
	buf   audio.Buffer
	grid  beat.Grid
	seg   segment.Map
	feat  compat.Features
	start float64
}

func (m *Mixer) load(ctx context.Context, path string) (side, error) {
	buf, err := m.codec.Decode(ctx, path)
	if err != nil {
		return side{}, err
	}
	s := m.analyze(buf, 0)
	m.log.Debugw("Track analyzed", "path", path, "bpm", s.grid.Tempo, "key", s.feat.Key,
		"intro_end", s.seg.IntroEnd, "outro_start", s.seg.OutroStart)
	return s, nil
}

// analyze examines buf from start seconds on and reports times relative to
// the whole of buf.
func (m *Mixer) analyze(buf audio.Buffer, start float64) side {
	from := min(max(int(start*float64(buf.SampleRate)), 0), buf.Len())
	part := audio.Buffer{Samples: buf.Samples[from:], SampleRate: buf.SampleRate}
	offset := float64(from) / float64(max(buf.SampleRate, 1))

	grid := m.beats.Analyze(part)
	seg := m.segments.Segment(part, grid.Downbeats)
	s := side{
		buf:   buf,
		grid:  shiftGrid(grid, offset),
		seg:   shiftSegments(seg, offset),
		feat:  compat.FromGrid(grid, m.keys, part),
		start: offset,
	}
	s.feat.Duration = part.Duration()
	return s
}

// render applies the orchestration rules to a pair of analyzed tracks.
func (m *Mixer) render(a, b side, requested string, hint time.Duration) (*Result, error) {
	cr := compat.Evaluate(a.feat, b.feat)
	name := requested
	if name == Auto {
		name = cr.Recommendation
	}

	bpmA, bpmB := a.grid.Tempo, b.grid.Tempo
	if name == transition.BeatSync {
		if ratio, ok := transition.SyncRatio(bpmA, bpmB, m.cfg.Transition.MaxStretch); !ok {
			m.log.Warnw("Tempo gap too wide for beat sync, falling back to crossfade",
				"bpm_a", bpmA, "bpm_b", bpmB, "ratio", ratio, "max_stretch", m.cfg.Transition.MaxStretch)
			name = transition.Crossfade
		}
	}

	fade := AdaptiveDuration(compat.BPMDiffRatio(bpmA, bpmB))
	if hint > 0 {
		fade = hint
	}
	tpA := TransitionPointA(a.seg.OutroStart, a.start, a.seg.Duration)
	tpB := StartOffsetB(b.seg.IntroDownbeat, b.seg.Duration)

	opts := m.cfg.Transition
	opts.FadeDuration = fade
	strategy, err := transition.New(name, opts)
	if err != nil {
		return nil, err
	}

	sr := a.buf.SampleRate
	treq := transition.Request{
		A:               a.buf.Samples,
		B:               b.buf.Samples,
		SampleRate:      sr,
		TransitionPoint: int(tpA * float64(sr)),
		StartB:          tpB,
		BeatsA:          a.grid.Beats,
		BeatsB:          b.grid.Beats,
		TempoA:          bpmA,
		TempoB:          bpmB,
		KeyA:            a.feat.Key,
		KeyB:            b.feat.Key,
	}
	out := strategy.Apply(treq)
	rendered := transition.Fade(strategy, opts, treq)
	buf := audio.Normalize(audio.Buffer{Samples: out, SampleRate: sr})
	if m.cfg.TrimSilence {
		buf = audio.TrimTrailingSilence(buf, 0)
	}

	m.log.Infow("Transition rendered", "strategy", name, "requested", requested,
		"transition_point", tpA, "start_b", tpB, "fade", rendered.Seconds(), "base_fade", fade.Seconds(), "duration", buf.Duration())

	return &Result{
		Buffer:             buf,
		Strategy:           name,
		OriginalStrategy:   requested,
		BPMA:               bpmA,
		BPMB:               bpmB,
		TransitionPoint:    tpA,
		TransitionPointB:   tpB,
		TransitionDuration: rendered.Seconds(),
		BaseDuration:       fade.Seconds(),
		Duration:           buf.Duration(),
		SegmentA: SegmentA{
			IntroEnd:      a.seg.IntroEnd,
			OutroStart:    a.seg.OutroStart,
			OutroDownbeat: a.seg.OutroDownbeat,
		},
		SegmentB: SegmentB{
			IntroEnd:      b.seg.IntroEnd,
			IntroDownbeat: b.seg.IntroDownbeat,
		},
		Compatibility: cr,
	}, nil
}

func (m *Mixer) save(ctx context.Context, buf audio.Buffer, path string) error {
	if path == "" {
		return nil
	}
	if err := m.codec.Encode(ctx, buf, path); err != nil {
		return err
	}
	m.log.Infow("Mix saved", "path", path, "duration", buf.Duration())
	return nil
}

// AdaptiveDuration picks a longer fade the further apart the tempi are.
func AdaptiveDuration(bpmDiffRatio float64) time.Duration {
	switch {
	case bpmDiffRatio < 0.05:
		return 8 * time.Second
	case bpmDiffRatio < 0.10:
		return 10 * time.Second
	case bpmDiffRatio < 0.15:
		return 12 * time.Second
	default:
		return 15 * time.Second
	}
}

// TransitionPointA is the later of the outro start and 55% into the track.
// start shifts the 55% mark for tracks that begin part-way into a buffer.
func TransitionPointA(outroStart, start, duration float64) float64 {
	return math.Max(outroStart, start+minTransitionFraction*duration)
}

// StartOffsetB is where B's fade-in begins: its intro downbeat, capped at 8%
// of its length or 8 seconds. Offsets under a second become 3 seconds.
func StartOffsetB(introDownbeat, duration float64) float64 {
	t := math.Min(introDownbeat, math.Min(duration*maxIntroSkipFraction, maxIntroSkip))
	if t < minIntroSkip {
		return fallbackIntroSkip
	}
	return t
}

// strategyName validates a requested strategy. Empty means crossfade.
func strategyName(s string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch {
	case name == "":
		return transition.Crossfade, nil
	case name == Auto, transition.Valid(name):
		return name, nil
	}
	return "", &transition.UnknownStrategyError{Name: s}
}

func shiftGrid(g beat.Grid, by float64) beat.Grid {
	if by == 0 {
		return g
	}
	g.Beats = shift(g.Beats, by)
	g.Downbeats = shift(g.Downbeats, by)
	g.Bars = shift(g.Bars, by)
	return g
}

func shiftSegments(s segment.Map, by float64) segment.Map {
	if by == 0 {
		return s
	}
	s.IntroEnd += by
	s.OutroStart += by
	s.MainBodyStart += by
	s.MainBodyEnd += by
	s.IntroDownbeat += by
	s.OutroDownbeat += by
	s.EnergyMatchPoint += by
	s.Downbeats = shift(s.Downbeats, by)
	return s
}

func shift(xs []float64, by float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x + by
	}
	return out
}
