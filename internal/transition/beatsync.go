package transition

import "math"

type beatSync struct {
	opts Options
}

func (s *beatSync) Name() string { return BeatSync }

func (s *beatSync) Description() string {
	return "Time-stretches the incoming track to the outgoing tempo, then crossfades on the beat"
}

// Apply stretches B by StretchFactor so its beats line up with A's, then
// crossfades. B's start offset and beat grid are scaled along.
func (s *beatSync) Apply(req Request) []float64 {
	if f := StretchFactor(req.TempoA, req.TempoB, s.opts.MaxStretch); f != 1 {
		req.B = Stretch(req.B, f)
		req.StartB *= f
		beats := make([]float64, len(req.BeatsB))
		for i, b := range req.BeatsB {
			beats[i] = b * f
		}
		req.BeatsB = beats
	}
	out, _ := render(req, s.opts, s.opts.FadeDuration)
	return out
}

// StretchFactor is the duration multiplier beat sync applies to B: bpmB/bpmA
// clamped to 1±maxStretch. It is 1 when either tempo is unknown or the tempi
// already agree.
func StretchFactor(tempoA, tempoB, maxStretch float64) float64 {
	ratio, _ := SyncRatio(tempoA, tempoB, maxStretch)
	if ratio == 0 {
		return 1
	}
	ratio = math.Max(1-maxStretch, math.Min(1+maxStretch, ratio))
	if math.Abs(ratio-1) <= 1e-3 {
		return 1
	}
	return ratio
}

// SyncRatio returns bpmB/bpmA and whether it lies within 1±maxStretch.
// Unknown tempi yield (0, false).
func SyncRatio(tempoA, tempoB, maxStretch float64) (float64, bool) {
	if !(tempoA > 0) || !(tempoB > 0) || math.IsInf(tempoA, 0) || math.IsInf(tempoB, 0) {
		return 0, false
	}
	ratio := tempoB / tempoA
	return ratio, ratio >= 1-maxStretch && ratio <= 1+maxStretch
}
