package mixer

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/transition"
)

// ErrEmptyPlaylist is returned when a playlist has no tracks.
var ErrEmptyPlaylist = errors.New("empty playlist")

// Transition records one step of a chained playlist.
type Transition struct {
	From             string  `json:"from"`
	To               string  `json:"to"`
	TransitionPoint  float64 `json:"transition_point"`
	Strategy         string  `json:"strategy"`
	OriginalStrategy string  `json:"original_strategy"`
}

// PlaylistResult is a finished playlist mix.
type PlaylistResult struct {
	Buffer audio.Buffer `json:"-"`

	TrackCount  int          `json:"track_count"`
	Tracks      []string     `json:"tracks"`
	Duration    float64      `json:"duration"`
	Transitions []Transition `json:"transitions"`
	Output      string       `json:"output,omitempty"`
}

// MixPlaylist chains pairwise mixes: every track after the first is mixed onto
// the accumulated result. progress, when non-nil, is called after each
// transition with the number done and the total.
func (m *Mixer) MixPlaylist(ctx context.Context, paths []string, strategy, output string, progress func(done, total int)) (*PlaylistResult, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyPlaylist
	}
	name, err := strategyName(strategy)
	if err != nil {
		return nil, err
	}

	res := &PlaylistResult{TrackCount: len(paths), Transitions: []Transition{}, Output: output}
	for _, p := range paths {
		res.Tracks = append(res.Tracks, filepath.Base(p))
	}

	acc, err := m.load(ctx, paths[0])
	if err != nil {
		return nil, err
	}
	total := len(paths) - 1
	m.log.Infow("Mixing playlist", "tracks", len(paths), "strategy", name)

	for i := 1; i < len(paths); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := m.load(ctx, paths[i])
		if err != nil {
			return nil, err
		}
		mixed, err := m.render(acc, next, name, 0)
		if err != nil {
			return nil, err
		}
		res.Transitions = append(res.Transitions, Transition{
			From:             filepath.Base(paths[i-1]),
			To:               filepath.Base(paths[i]),
			TransitionPoint:  mixed.TransitionPoint,
			Strategy:         mixed.Strategy,
			OriginalStrategy: mixed.OriginalStrategy,
		})
		acc = m.chain(mixed, next)
		if progress != nil {
			progress(i, total)
		}
	}

	if err := m.save(ctx, acc.buf, output); err != nil {
		return nil, err
	}
	res.Buffer = acc.buf
	res.Duration = acc.buf.Duration()
	return res, nil
}

// chain turns a finished pair mix into the outgoing side of the next one. The
// incoming track's rendered audio occupies the tail of the mix, so only that
// tail is re-analyzed.
func (m *Mixer) chain(mixed *Result, next side) side {
	buf := audio.TrimTrailingSilence(mixed.Buffer, 0)
	sr := float64(buf.SampleRate)

	factor := 1.0
	if mixed.Strategy == transition.BeatSync {
		factor = transition.StretchFactor(mixed.BPMA, mixed.BPMB, m.cfg.Transition.MaxStretch)
	}
	bLen := int(float64(next.buf.Len())*factor + 0.5)
	startB := int(mixed.TransitionPointB * factor * sr)
	if startB >= bLen {
		startB = 0
	}
	tail := max(buf.Len()-(bLen-startB), 0)
	return m.analyze(buf, float64(tail)/sr)
}
