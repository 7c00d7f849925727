package compat

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/beat"
	"github.com/satindergrewal/automix/internal/tonality"
	"github.com/satindergrewal/automix/internal/transition"
)

// --- Sub-scores ---

func TestBPMScore(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{120, 120, 90},
		{100, 140, 90 - (40.0/140)*140},
		{100, 200, 20},
		{0, 120, 50},
		{120, 0, 50},
		{math.NaN(), 120, 50},
		{-5, 120, 50},
	}
	for _, tt := range tests {
		if got := BPMScore(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BPMScore(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBPMDiffRatio(t *testing.T) {
	if got := BPMDiffRatio(100, 140); math.Abs(got-40.0/140) > 1e-12 {
		t.Errorf("BPMDiffRatio(100, 140) = %v, want %v", got, 40.0/140)
	}
	if got := BPMDiffRatio(0, 140); got != 1 {
		t.Errorf("BPMDiffRatio with unknown tempo = %v, want 1", got)
	}
}

func TestKeyScore(t *testing.T) {
	want := map[int]float64{0: 90, 1: 80, 2: 65, 3: 50, 4: 40, 5: 30, 6: 30, -1: 30}
	for d, w := range want {
		if got := KeyScore(d); got != w {
			t.Errorf("KeyScore(%d) = %v, want %v", d, got, w)
		}
	}
}

func TestBeatScore(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{0, 0, 30},
		{1, 1, 85},
		{0.5, 1, 30 + 55*0.75},
		{2, -1, 30 + 55*0.5},
		{math.NaN(), 1, 30 + 55*0.5},
	}
	for _, tt := range tests {
		if got := BeatScore(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BeatScore(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

// --- Recommendation rules ---

func TestEvaluateCloseTempoPrefersBeatSync(t *testing.T) {
	r := Evaluate(
		Features{BPM: 120, BeatConfidence: 0.9, Key: "C"},
		Features{BPM: 121, BeatConfidence: 0.9, Key: "F#"},
	)
	if r.BPMScore < 55 {
		t.Fatalf("BPMScore = %v, want >= 55", r.BPMScore)
	}
	if r.Recommendation != transition.BeatSync {
		t.Errorf("Recommendation = %q, want %q", r.Recommendation, transition.BeatSync)
	}
	if r.Reason != ReasonBeatSync {
		t.Errorf("Reason = %q, want %q", r.Reason, ReasonBeatSync)
	}
}

func TestEvaluateLargeGapCrossfade(t *testing.T) {
	// bpm 50, key 90 (same key), beat 30 -> 22.5 + 31.5 + 6 = 60
	r := Evaluate(
		Features{BPM: 100, BeatConfidence: 0, Key: "Am"},
		Features{BPM: 140, BeatConfidence: 0, Key: "C"},
	)
	if r.Score != 60 {
		t.Fatalf("Score = %d, want 60", r.Score)
	}
	if r.Recommendation != transition.Crossfade || r.Reason != ReasonLargeGapCrossfade {
		t.Errorf("got (%q, %q), want (%q, %q)", r.Recommendation, r.Reason, transition.Crossfade, ReasonLargeGapCrossfade)
	}
}

func TestEvaluateLargeGapLowScoreEcho(t *testing.T) {
	r := Evaluate(
		Features{BPM: 80, BeatConfidence: 0, Key: "C"},
		Features{BPM: 160, BeatConfidence: 0, Key: "F#"},
	)
	if r.Score >= 50 {
		t.Fatalf("Score = %d, want < 50", r.Score)
	}
	if r.Recommendation != transition.EchoFade || r.Reason != ReasonEchoMask {
		t.Errorf("got (%q, %q), want echo_fade", r.Recommendation, r.Reason)
	}
}

func TestEvaluateHarmonic(t *testing.T) {
	// ratio 0.18: not a large gap, too far for beat sync
	r := Evaluate(
		Features{BPM: 100, BeatConfidence: 0.5, Key: "C"},
		Features{BPM: 122, BeatConfidence: 0.5, Key: "G"},
	)
	if r.Recommendation != transition.Harmonic || r.Reason != ReasonHarmonic {
		t.Errorf("got (%q, %q), want harmonic", r.Recommendation, r.Reason)
	}
}

func TestEvaluateCrossfadeAndEchoFallbacks(t *testing.T) {
	// ratio 0.18, key distance 6 -> key 30
	r := Evaluate(
		Features{BPM: 100, BeatConfidence: 1, Key: "C"},
		Features{BPM: 122, BeatConfidence: 1, Key: "F#"},
	)
	if r.Score < 45 {
		t.Fatalf("Score = %d, want >= 45", r.Score)
	}
	if r.Recommendation != transition.Crossfade || r.Reason != ReasonCrossfade {
		t.Errorf("got (%q, %q), want plain crossfade", r.Recommendation, r.Reason)
	}

	r = Evaluate(
		Features{BPM: 100, BeatConfidence: 0, Key: "C"},
		Features{BPM: 124.8, BeatConfidence: 0, Key: "F#"},
	)
	if r.Score >= 45 {
		t.Fatalf("Score = %d, want < 45", r.Score)
	}
	if r.Recommendation != transition.EchoFade || r.Reason != ReasonEchoMask {
		t.Errorf("got (%q, %q), want echo_fade", r.Recommendation, r.Reason)
	}
}

func TestEvaluateUnknownTempo(t *testing.T) {
	r := Evaluate(Features{BPM: 0, Key: "C"}, Features{BPM: 128, Key: "C"})
	if r.BPMScore != 50 {
		t.Errorf("BPMScore = %v, want 50", r.BPMScore)
	}
	if r.BPMDiffRatio != 1 {
		t.Errorf("BPMDiffRatio = %v, want 1", r.BPMDiffRatio)
	}
	if r.Recommendation == transition.BeatSync {
		t.Error("unknown tempo must not recommend beat_sync")
	}
}

func TestEvaluateCarriesTempi(t *testing.T) {
	r := Evaluate(Features{BPM: 124.5}, Features{BPM: 126})
	if r.BPMA != 124.5 || r.BPMB != 126 {
		t.Errorf("tempi = (%v, %v), want (124.5, 126)", r.BPMA, r.BPMB)
	}
}

// --- Properties ---

func TestEvaluateBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	keys := []string{"C", "Am", "F#", "Bbm", "Db", "bogus", ""}
	extremes := []float64{0, -1, 1e9, math.NaN(), math.Inf(1)}
	for i := 0; i < 2000; i++ {
		a := Features{
			BPM:            rng.Float64() * 400,
			BeatConfidence: rng.Float64()*4 - 2,
			Key:            keys[rng.Intn(len(keys))],
		}
		b := Features{
			BPM:            rng.Float64() * 400,
			BeatConfidence: rng.Float64()*4 - 2,
			Key:            keys[rng.Intn(len(keys))],
		}
		if i%10 == 0 {
			a.BPM = extremes[rng.Intn(len(extremes))]
			b.BeatConfidence = extremes[rng.Intn(len(extremes))]
		}
		r := Evaluate(a, b)
		if r.BPMScore < 20 || r.BPMScore > 90 {
			t.Fatalf("BPMScore %v out of [20, 90] for %+v %+v", r.BPMScore, a, b)
		}
		if r.KeyScore < 30 || r.KeyScore > 90 {
			t.Fatalf("KeyScore %v out of [30, 90]", r.KeyScore)
		}
		if r.BeatScore < 30 || r.BeatScore > 85 {
			t.Fatalf("BeatScore %v out of [30, 85]", r.BeatScore)
		}
		if r.Score < 0 || r.Score > 100 {
			t.Fatalf("Score %d out of [0, 100]", r.Score)
		}
	}
}

func TestEvaluatePure(t *testing.T) {
	a := Features{BPM: 118, BeatConfidence: 0.7, Key: "Em", KeyConfidence: 5}
	b := Features{BPM: 126, BeatConfidence: 0.6, Key: "G", KeyConfidence: 4}
	first := Evaluate(a, b)
	second := Evaluate(a, b)
	if first != second {
		t.Errorf("Evaluate not pure: %+v vs %+v", first, second)
	}
}

// --- Feature analyzer ---

func TestFeaturesFallback(t *testing.T) {
	an := NewAnalyzer(beat.NewAnalyzer(), tonality.NewDetector(), DefaultWindow)
	buf := audio.Buffer{Samples: make([]float64, 5*22050), SampleRate: 22050}
	f := an.Features(buf)
	if f.BPM != beat.DefaultTempo {
		t.Errorf("BPM = %v, want %v", f.BPM, beat.DefaultTempo)
	}
	if f.BeatConfidence != DefaultConfidence {
		t.Errorf("BeatConfidence = %v, want %v", f.BeatConfidence, DefaultConfidence)
	}
	if f.Key != tonality.DefaultKey || f.KeyConfidence != tonality.DefaultKeyConfidence {
		t.Errorf("key = (%q, %v), want default", f.Key, f.KeyConfidence)
	}
	if f.Duration != 5 {
		t.Errorf("Duration = %v, want 5", f.Duration)
	}
}

func TestFeaturesWindowKeepsFullDuration(t *testing.T) {
	an := NewAnalyzer(beat.NewAnalyzer(), tonality.NewDetector(), 2*time.Second)
	buf := audio.Buffer{Samples: make([]float64, 10*22050), SampleRate: 22050}
	if f := an.Features(buf); f.Duration != 10 {
		t.Errorf("Duration = %v, want full 10s", f.Duration)
	}
}

func TestFeaturesClickTrack(t *testing.T) {
	const sr = 22050
	samples := make([]float64, 20*sr)
	for t0 := 0.25; t0 < 20; t0 += 0.5 {
		s := int(t0 * sr)
		for j := 0; j < 600 && s+j < len(samples); j++ {
			samples[s+j] = 0.8 * math.Exp(-float64(j)/110) * math.Sin(2*math.Pi*1000*float64(j)/sr)
		}
	}
	an := NewAnalyzer(beat.NewAnalyzer(), tonality.NewDetector(), DefaultWindow)
	f := an.Features(audio.Buffer{Samples: samples, SampleRate: sr})
	if math.Abs(f.BPM-120) > 3 {
		t.Errorf("BPM = %v, want ~120", f.BPM)
	}
	if f.BeatConfidence < 0.8 {
		t.Errorf("BeatConfidence = %v, want >= 0.8", f.BeatConfidence)
	}
}
