// Package compat scores how well two tracks mix and recommends a transition.
package compat

import (
	"math"

	"github.com/satindergrewal/automix/internal/tonality"
	"github.com/satindergrewal/automix/internal/transition"
)

// Reasons attached to each recommendation rule.
const (
	ReasonLargeGapCrossfade = "BPM差异较大，使用简单过渡"
	ReasonEchoMask          = "差异较大，用回声效果掩盖"
	ReasonBeatSync          = "BPM接近，节拍对齐更丝滑"
	ReasonHarmonic          = "调性匹配，和声过渡更和谐"
	ReasonCrossfade         = "使用平滑过渡"
)

const (
	// neutralBPMScore is used when either tempo is unknown.
	neutralBPMScore = 50.0
	minBPMScore     = 20.0
	maxBPMScore     = 90.0

	bpmWeight  = 0.45
	keyWeight  = 0.35
	beatWeight = 0.20

	beatScoreBase  = 30.0
	beatScoreRange = 55.0

	largeGapRatio     = 0.20
	largeGapMinScore  = 50
	beatSyncRatio     = 0.15
	beatSyncMinScore  = 55.0
	harmonicMinScore  = 65.0
	crossfadeMinScore = 45

	unknownTempoRatio   = 1.0
	fallbackKeyPosition = 0
)

// keyScores maps circle-of-fifths distance to a key score; larger distances score 30.
var keyScores = [...]float64{90, 80, 65, 50, 40}

// Features are the per-track inputs to compatibility scoring.
type Features struct {
	BPM            float64 `json:"bpm"`
	BeatConfidence float64 `json:"beat_confidence"`
	Key            string  `json:"key"`
	KeyConfidence  float64 `json:"key_confidence"`
	Duration       float64 `json:"duration"`
}

// Result is the outcome of Evaluate.
type Result struct {
	Score          int     `json:"score"`
	BPMScore       float64 `json:"bpm_score"`
	KeyScore       float64 `json:"key_score"`
	BeatScore      float64 `json:"beat_score"`
	Recommendation string  `json:"recommendation"`
	Reason         string  `json:"reason"`
	BPMA           float64 `json:"bpm_a"`
	BPMB           float64 `json:"bpm_b"`
	BPMDiffRatio   float64 `json:"bpm_diff_ratio"`
	KeyDistance    int     `json:"key_distance"`
}

// Evaluate scores a pair of tracks. It is pure and deterministic.
func Evaluate(a, b Features) Result {
	ratio := BPMDiffRatio(a.BPM, b.BPM)
	bpmScore := BPMScore(a.BPM, b.BPM)
	dist := keyDistance(a.Key, b.Key)
	keyScore := KeyScore(dist)
	beatScore := BeatScore(a.BeatConfidence, b.BeatConfidence)
	score := int(math.Round(bpmWeight*bpmScore + keyWeight*keyScore + beatWeight*beatScore))

	rec, reason := recommend(ratio, bpmScore, keyScore, score)
	return Result{
		Score:          score,
		BPMScore:       round1(bpmScore),
		KeyScore:       keyScore,
		BeatScore:      round1(beatScore),
		Recommendation: rec,
		Reason:         reason,
		BPMA:           a.BPM,
		BPMB:           b.BPM,
		BPMDiffRatio:   ratio,
		KeyDistance:    dist,
	}
}

// recommend applies the strategy rules in order; the first match wins.
func recommend(ratio, bpmScore, keyScore float64, score int) (string, string) {
	switch {
	case ratio > largeGapRatio:
		if score >= largeGapMinScore {
			return transition.Crossfade, ReasonLargeGapCrossfade
		}
		return transition.EchoFade, ReasonEchoMask
	case ratio <= beatSyncRatio && bpmScore >= beatSyncMinScore:
		return transition.BeatSync, ReasonBeatSync
	case keyScore >= harmonicMinScore:
		return transition.Harmonic, ReasonHarmonic
	case score >= crossfadeMinScore:
		return transition.Crossfade, ReasonCrossfade
	default:
		return transition.EchoFade, ReasonEchoMask
	}
}

// BPMDiffRatio is |a-b| / max(a, b), or 1 when either tempo is unknown.
func BPMDiffRatio(a, b float64) float64 {
	if !validBPM(a) || !validBPM(b) {
		return unknownTempoRatio
	}
	return math.Abs(a-b) / math.Max(a, b)
}

// BPMScore maps the tempo difference onto [20, 90]; unknown tempi score 50.
func BPMScore(a, b float64) float64 {
	if !validBPM(a) || !validBPM(b) {
		return neutralBPMScore
	}
	return clamp(maxBPMScore-BPMDiffRatio(a, b)*140, minBPMScore, maxBPMScore)
}

// KeyScore maps a circle-of-fifths distance onto [30, 90].
func KeyScore(distance int) float64 {
	if distance >= 0 && distance < len(keyScores) {
		return keyScores[distance]
	}
	return 30
}

// BeatScore maps the average beat confidence onto [30, 85].
func BeatScore(confA, confB float64) float64 {
	avg := (unit(confA) + unit(confB)) / 2
	return beatScoreBase + beatScoreRange*avg
}

// keyDistance treats unknown labels as position 0.
func keyDistance(a, b string) int {
	pa, ok := tonality.Position(a)
	if !ok {
		pa = fallbackKeyPosition
	}
	pb, ok := tonality.Position(b)
	if !ok {
		pb = fallbackKeyPosition
	}
	return tonality.Distance(pa, pb)
}

func validBPM(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
