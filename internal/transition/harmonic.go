package transition

import (
	"time"

	"github.com/satindergrewal/automix/internal/tonality"
)

// Keys within this circle-of-fifths distance blend long; others blend short.
const harmonicMaxDistance = 2

type harmonic struct {
	opts Options
}

func (h *harmonic) Name() string { return Harmonic }

func (h *harmonic) Description() string {
	return "Long overlap for keys close on the circle of fifths, short overlap for clashing keys"
}

func (h *harmonic) Apply(req Request) []float64 {
	out, _ := render(req, h.opts, h.fadeFor(req.KeyA, req.KeyB))
	return out
}

// fadeFor scales the fade by 1.5 for compatible keys and 0.5 otherwise.
// Missing or unrecognised keys keep the configured fade.
func (h *harmonic) fadeFor(keyA, keyB string) time.Duration {
	base := h.opts.FadeDuration
	d, ok := tonality.KeyDistance(keyA, keyB)
	if !ok {
		return base
	}
	if d <= harmonicMaxDistance {
		return base * 3 / 2
	}
	return base / 2
}
