package mixer

import "context"

// Analysis is the full structural analysis of a single track.
type Analysis struct {
	Path           string  `json:"path"`
	BPM            float64 `json:"bpm"`
	BeatConfidence float64 `json:"beat_confidence"`
	Fallback       bool    `json:"fallback"`
	Duration       float64 `json:"duration"`
	BeatCount      int     `json:"beat_count"`
	BarCount       int     `json:"bar_count"`
	Key            string  `json:"key"`
	KeyConfidence  float64 `json:"key_confidence"`
	IntroEnd       float64 `json:"intro_end"`
	OutroStart     float64 `json:"outro_start"`
	IntroDownbeat  float64 `json:"intro_downbeat"`
	OutroDownbeat  float64 `json:"outro_downbeat"`
	EnergyMatch    float64 `json:"energy_match_point"`
}

// Analyze decodes path and runs beat, structure and key analysis over the
// whole track.
func (m *Mixer) Analyze(ctx context.Context, path string) (*Analysis, error) {
	s, err := m.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		Path:           path,
		BPM:            s.feat.BPM,
		BeatConfidence: s.feat.BeatConfidence,
		Fallback:       s.grid.Fallback,
		Duration:       s.buf.Duration(),
		BeatCount:      s.grid.BeatCount,
		BarCount:       len(s.grid.Bars),
		Key:            s.feat.Key,
		KeyConfidence:  s.feat.KeyConfidence,
		IntroEnd:       s.seg.IntroEnd,
		OutroStart:     s.seg.OutroStart,
		IntroDownbeat:  s.seg.IntroDownbeat,
		OutroDownbeat:  s.seg.OutroDownbeat,
		EnergyMatch:    s.seg.EnergyMatchPoint,
	}, nil
}
