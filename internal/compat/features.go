package compat

import (
	"time"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/beat"
	"github.com/satindergrewal/automix/internal/tonality"
)

const (
	// DefaultConfidence stands in for beat confidence when no tempo could be measured.
	DefaultConfidence = 0.5

	// DefaultWindow is how much of a track the lightweight analyzer looks at.
	DefaultWindow = 60 * time.Second
)

// Analyzer extracts Features from the head of a track. It trades accuracy for
// speed relative to full beat-grid extraction.
type Analyzer struct {
	beats  *beat.Analyzer
	keys   *tonality.Detector
	window time.Duration
}

// NewAnalyzer creates a feature analyzer that inspects the first window of
// audio. A non-positive window analyzes the whole buffer.
func NewAnalyzer(beats *beat.Analyzer, keys *tonality.Detector, window time.Duration) *Analyzer {
	return &Analyzer{beats: beats, keys: keys, window: window}
}

// Features analyzes buf. Duration always reflects the whole buffer.
func (a *Analyzer) Features(buf audio.Buffer) Features {
	head := buf.Head(a.window.Seconds())
	f := FromGrid(a.beats.Analyze(head), a.keys, head)
	f.Duration = buf.Duration()
	return f
}

// FromGrid builds Features from an existing beat grid plus key detection on buf.
func FromGrid(grid beat.Grid, keys *tonality.Detector, buf audio.Buffer) Features {
	key, keyConf := keys.DetectKey(buf)
	conf := grid.Confidence
	if grid.Fallback {
		conf = DefaultConfidence
	}
	return Features{
		BPM:            round1(grid.Tempo),
		BeatConfidence: conf,
		Key:            key,
		KeyConfidence:  keyConf,
		Duration:       grid.Duration,
	}
}
