package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type decodedMix struct {
	info   TrackInfo
	frames [][]int16
}

// Pipeline plays rendered mixes at real-time rate as 20ms PCM frames.
type Pipeline struct {
	log     *zap.SugaredLogger
	decoder Decoder

	trackCh chan TrackInfo
	frameCh chan []int16
	skipCh  chan struct{}

	mu            sync.RWMutex
	currentTrack  TrackInfo
	trackPosition time.Duration
	trackDuration time.Duration
}

// NewPipeline creates a preview pipeline that reads queued files with dec.
func NewPipeline(log *zap.SugaredLogger, dec Decoder) *Pipeline {
	return &Pipeline{
		log:     log,
		decoder: dec,
		trackCh: make(chan TrackInfo, 8),
		frameCh: make(chan []int16, 100),
		skipCh:  make(chan struct{}, 1),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Enqueue adds a mix to the playback queue. It reports false when the queue is full.
func (p *Pipeline) Enqueue(t TrackInfo) bool {
	select {
	case p.trackCh <- t:
		return true
	default:
		return false
	}
}

// QueueSize returns the number of mixes waiting in the queue.
func (p *Pipeline) QueueSize() int {
	return len(p.trackCh)
}

// Skip interrupts the current mix.
func (p *Pipeline) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// Status returns current playback info.
func (p *Pipeline) Status() (track TrackInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTrack, p.trackPosition, p.trackDuration
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	decodedCh := make(chan *decodedMix, 2)
	go p.decodeLoop(ctx, decodedCh)

	for {
		select {
		case <-ctx.Done():
			return
		case dm, ok := <-decodedCh:
			if !ok {
				return
			}
			p.play(ctx, ticker, dm)
		}
	}
}

// decodeLoop converts queued file paths to playback frames ahead of time.
func (p *Pipeline) decodeLoop(ctx context.Context, out chan<- *decodedMix) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.trackCh:
			buf, err := p.decoder.Decode(ctx, t.Path)
			if err != nil {
				p.log.Errorw("Preview decode failed", "path", t.Path, "error", err)
				continue
			}
			select {
			case out <- &decodedMix{info: t, frames: ToFrames(buf)}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pipeline) play(ctx context.Context, ticker *time.Ticker, dm *decodedMix) {
	p.setTrack(dm.info, len(dm.frames))
	p.log.Infow("Now playing", "id", dm.info.ID, "name", dm.info.Name, "frames", len(dm.frames))

	for i, frame := range dm.frames {
		if !p.sendFrame(ctx, ticker, frame) {
			return
		}
		p.updatePosition(i)
	}
}

// sendFrame waits for the ticker then sends a frame. Returns false on skip or cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.skipCh:
		p.log.Infow("Mix skipped")
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) setTrack(info TrackInfo, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTrack = info
	p.trackPosition = 0
	p.trackDuration = time.Duration(totalFrames) * FrameDuration
}

func (p *Pipeline) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.trackPosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
