package transition

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type echoFade struct {
	opts Options
}

func (e *echoFade) Name() string { return EchoFade }

func (e *echoFade) Description() string {
	return "Crossfade with decaying echoes over the transition, suited to ambient material"
}

// Apply runs the crossfade, then feeds delayed copies of the transition
// region back onto itself. Tap i lands delay*(i+1) later at gain decay^(i+1).
func (e *echoFade) Apply(req Request) []float64 {
	out, win := render(req, e.opts, e.opts.FadeDuration)
	delay := int(e.opts.EchoDelay.Seconds() * float64(req.SampleRate))
	if delay <= 0 || win.Len() == 0 {
		return out
	}

	end := min(len(out), win.Start+2*win.Len()+delay)
	for i := 0; i < e.opts.EchoTaps; i++ {
		offset := delay * (i + 1)
		srcEnd := end - offset
		if srcEnd <= win.Start {
			break
		}
		tap := append([]float64(nil), out[win.Start:srcEnd]...)
		dst := out[win.Start+offset : srcEnd+offset]
		floats.AddScaled(dst, math.Pow(e.opts.EchoDecay, float64(i+1)), tap)
	}
	return out
}
