// Package stream fans rendered mix previews out to HTTP and WebRTC listeners.
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// listenerBuffer holds about three seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	log *zap.SugaredLogger

	mu        sync.RWMutex
	listeners map[*Listener]struct{}

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}

	dropped atomic.Uint64
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped reports how many frames this listener missed for being slow.
func (l *Listener) Dropped() uint64 { return l.dropped.Load() }

// Stats summarizes broadcast activity.
type Stats struct {
	Listeners int    `json:"listeners"`
	Frames    uint64 `json:"frames"`
	Dropped   uint64 `json:"dropped"`
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(log *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{
		log:       log,
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it twice is a no-op.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
		if n := l.Dropped(); n > 0 {
			b.log.Debugw("Listener left with dropped frames", "dropped", n)
		}
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Stats returns a snapshot of broadcast counters.
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Listeners: b.ListenerCount(),
		Frames:    b.frames.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Run reads frames from source and fans out to all listeners until ctx is
// cancelled or source is closed. Slow listeners get frames dropped rather
// than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
