package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/satindergrewal/automix/internal/logger"
)

func newTestBroadcaster() *Broadcaster {
	log, _ := logger.NewTestLogger()
	return NewBroadcaster(log)
}

// drain reads everything currently buffered on l.
func drain(l *Listener) int {
	n := 0
	for {
		select {
		case <-l.C:
			n++
		default:
			return n
		}
	}
}

func waitStopped(t *testing.T, wg *sync.WaitGroup, what string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Broadcaster did not stop after %s", what)
	}
}

// --- Subscription ---

func TestNewBroadcaster(t *testing.T) {
	b := newTestBroadcaster()
	if b.ListenerCount() != 0 {
		t.Errorf("Initial ListenerCount = %d, want 0", b.ListenerCount())
	}
	if s := b.Stats(); s != (Stats{}) {
		t.Errorf("Initial Stats = %+v, want zero", s)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := newTestBroadcaster()

	l1 := b.Subscribe()
	l2 := b.Subscribe()
	if b.ListenerCount() != 2 {
		t.Errorf("After 2 subscribes: ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("After 1 unsubscribe: ListenerCount = %d, want 1", b.ListenerCount())
	}

	b.Unsubscribe(l2)
	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("After all unsubscribed: ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestListenerDoneChannel(t *testing.T) {
	b := newTestBroadcaster()
	l := b.Subscribe()
	b.Unsubscribe(l)

	select {
	case <-l.Done():
	default:
		t.Error("Listener done channel not closed after unsubscribe")
	}
}

// --- Fan-out ---

func TestBroadcastDeliversToAll(t *testing.T) {
	b := newTestBroadcaster()
	listeners := make([]*Listener, 5)
	for i := range listeners {
		listeners[i] = b.Subscribe()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16, 10)
	go b.Run(ctx, source)

	source <- []int16{42, -42}
	for i, l := range listeners {
		select {
		case got := <-l.C:
			if len(got) != 2 || got[0] != 42 || got[1] != -42 {
				t.Errorf("Listener %d got %v, want [42 -42]", i, got)
			}
		case <-time.After(time.Second):
			t.Errorf("Listener %d timed out", i)
		}
	}
	if s := b.Stats(); s.Frames != 1 || s.Listeners != 5 {
		t.Errorf("Stats = %+v, want 1 frame to 5 listeners", s)
	}
}

func TestBroadcastDropsSlowListener(t *testing.T) {
	b := newTestBroadcaster()
	slow := b.Subscribe()
	fast := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16, 200)
	go b.Run(ctx, source)

	fastCount := 0
	for i := 0; i < 200; i++ {
		source <- []int16{int16(i)}
		if i%50 == 49 {
			time.Sleep(20 * time.Millisecond)
			fastCount += drain(fast)
		}
	}
	time.Sleep(100 * time.Millisecond)
	fastCount += drain(fast)

	slowCount := drain(slow)
	if slowCount != listenerBuffer {
		t.Errorf("Slow listener got %d frames, want buffer size %d", slowCount, listenerBuffer)
	}
	if fastCount != 200 {
		t.Errorf("Fast listener got %d frames, want 200", fastCount)
	}
	if slow.Dropped() != 50 || fast.Dropped() != 0 {
		t.Errorf("Dropped = slow %d, fast %d; want 50, 0", slow.Dropped(), fast.Dropped())
	}
	if s := b.Stats(); s.Frames != 200 || s.Dropped != 50 {
		t.Errorf("Stats = %+v, want 200 frames, 50 dropped", s)
	}
}

// --- Shutdown ---

func TestBroadcastStopsOnContextCancel(t *testing.T) {
	b := newTestBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx, make(chan []int16))
	}()

	cancel()
	waitStopped(t, &wg, "context cancel")
}

func TestBroadcastStopsOnSourceClose(t *testing.T) {
	b := newTestBroadcaster()
	source := make(chan []int16, 10)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(context.Background(), source)
	}()

	close(source)
	waitStopped(t, &wg, "source closed")
}
