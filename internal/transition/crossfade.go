package transition

import "time"

type crossfade struct {
	opts Options
}

func (c *crossfade) Name() string { return Crossfade }

func (c *crossfade) Description() string {
	return "Volume crossfade from the outgoing track into the incoming one"
}

func (c *crossfade) Apply(req Request) []float64 {
	out, _ := render(req, c.opts, c.opts.FadeDuration)
	return out
}

// render is the crossfade primitive shared by every strategy. It returns the
// mixed buffer and the overlap window actually used.
//
// The output is max(len(A), tp) + the part of B left after its fade-in. A is
// copied up to the window, faded out across it while B (from its start offset)
// fades in, then the rest of B follows from tp.
func render(req Request, opts Options, fade time.Duration) ([]float64, Span) {
	a, sr := req.A, req.SampleRate
	tp := max(req.TransitionPoint, 0)
	fadeN := max(int(fade.Seconds()*float64(sr)), 0)

	startB := 0
	if req.StartB > 0 {
		startB = int(req.StartB * float64(sr))
	}
	if startB >= len(req.B) {
		startB = 0
	}
	bAvail := req.B[startB:]

	fadeN = min(fadeN, tp)
	if opts.SkipSilence {
		fadeN = skipSilence(a, tp, fadeN, sr)
	}
	if opts.AlignToBeat && len(req.BeatsA) > 0 {
		tp = nearestBeat(tp, req.BeatsA, sr)
		if tp < fadeN {
			tp = fadeN
		}
	}
	fadeN = min(fadeN, tp, len(bAvail))

	out := make([]float64, max(len(a), tp)+max(0, len(bAvail)-fadeN))
	start := tp - fadeN
	copy(out, a[:min(len(a), start)])

	fadeOut := FadeOut(opts.Curve, fadeN)
	fadeIn := FadeIn(opts.Curve, fadeN)
	for i := 0; i < fadeN; i++ {
		if j := start + i; j < len(a) {
			out[j] = a[j] * fadeOut[i]
		}
		out[start+i] += bAvail[i] * fadeIn[i]
	}
	copy(out[tp:], bAvail[fadeN:])
	return out, Span{Start: start, End: tp}
}

// skipSilence shrinks the fade so it starts after the last run of dead air
// inside the window. Silence running up to tp is ignored since A is ending
// there anyway. The fade never shrinks below a quarter second.
func skipSilence(a []float64, tp, fadeN, sr int) int {
	lo := max(tp-fadeN, 0)
	hi := min(tp, len(a))
	if hi <= lo {
		return fadeN
	}
	window := a[lo:hi]
	cut := 0
	for _, s := range DetectSilence(window, SilenceThresholdDB) {
		if s.End < len(window) {
			cut = max(cut, s.End)
		}
	}
	if cut == 0 {
		return fadeN
	}
	return max(fadeN-cut, min(fadeN, sr/4))
}

// nearestBeat moves tp to the closest beat, measured in samples.
func nearestBeat(tp int, beats []float64, sr int) int {
	best, bestDist := tp, -1
	for _, b := range beats {
		s := int(b * float64(sr))
		if s < 0 {
			continue
		}
		d := s - tp
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}
