package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/satindergrewal/automix/internal/logger"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- Buffer ---

func TestBufferDuration(t *testing.T) {
	b := Buffer{Samples: make([]float64, 44100), SampleRate: 22050}
	if got := b.Duration(); got != 2 {
		t.Errorf("Duration = %v, want 2", got)
	}
	if got := (Buffer{Samples: make([]float64, 10)}).Duration(); got != 0 {
		t.Errorf("Duration without rate = %v, want 0", got)
	}
}

func TestBufferHead(t *testing.T) {
	b := Buffer{Samples: make([]float64, 1000), SampleRate: 100}
	if got := b.Head(2).Len(); got != 200 {
		t.Errorf("Head(2) len = %d, want 200", got)
	}
	if got := b.Head(60).Len(); got != 1000 {
		t.Errorf("Head beyond end len = %d, want 1000", got)
	}
	if got := b.Head(0).Len(); got != 1000 {
		t.Errorf("Head(0) len = %d, want full buffer", got)
	}
}

// --- Normalize ---

func TestNormalizeScalesClippingBuffer(t *testing.T) {
	b := Buffer{Samples: []float64{0.5, -2.0, 1.0}, SampleRate: 10}
	n := Normalize(b)
	if got := Peak(n.Samples); math.Abs(got-0.95) > 1e-12 {
		t.Errorf("peak after normalize = %v, want 0.95", got)
	}
	if b.Samples[1] != -2.0 {
		t.Error("Normalize mutated its input")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	b := Buffer{Samples: []float64{0.2, -0.9, 1.0, 0}, SampleRate: 10}
	once := Normalize(b)
	twice := Normalize(once)
	for i := range b.Samples {
		if once.Samples[i] != b.Samples[i] || twice.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d changed: %v -> %v -> %v", i, b.Samples[i], once.Samples[i], twice.Samples[i])
		}
	}

	loud := Normalize(Buffer{Samples: []float64{3, -1}, SampleRate: 10})
	again := Normalize(loud)
	for i := range loud.Samples {
		if loud.Samples[i] != again.Samples[i] {
			t.Errorf("second normalize changed sample %d: %v -> %v", i, loud.Samples[i], again.Samples[i])
		}
	}
}

func TestTrimTrailingSilence(t *testing.T) {
	b := Buffer{Samples: []float64{0.1, 0.2, 0, 0, 0}, SampleRate: 10}
	if got := TrimTrailingSilence(b, 0).Len(); got != 2 {
		t.Errorf("trimmed len = %d, want 2", got)
	}
	silent := Buffer{Samples: []float64{0, 0}, SampleRate: 10}
	if got := TrimTrailingSilence(silent, 0).Len(); got != 0 {
		t.Errorf("all-silent trimmed len = %d, want 0", got)
	}
}

// --- Codec ---

func TestFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"mix.mp3", "mp3"},
		{"MIX.WAV", "wav"},
		{"out/mix.flac", "flac"},
		{"noext", "mp3"},
	}
	for _, tt := range tests {
		if got := Format(tt.path); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsAudioFile(t *testing.T) {
	if !IsAudioFile("a/b/track.FLAC") {
		t.Error("flac should be audio")
	}
	if IsAudioFile("notes.txt") {
		t.Error("txt should not be audio")
	}
}

func TestDecodeMissingFile(t *testing.T) {
	c := NewFileCodec("", 22050)
	_, err := c.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("DecodeError should unwrap to os.ErrNotExist, got %v", de.Err)
	}
}

func TestDecodeCorruptWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav file"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileCodec("", 22050).Decode(context.Background(), path)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	const sr = 8000
	samples := make([]float64, sr/2)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/sr)
	}
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")

	c := NewFileCodec("", sr)
	if err := c.Encode(context.Background(), Buffer{Samples: samples, SampleRate: sr}, path); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SampleRate != sr {
		t.Errorf("SampleRate = %d, want %d", got.SampleRate, sr)
	}
	if got.Len() != len(samples) {
		t.Fatalf("decoded %d samples, want %d", got.Len(), len(samples))
	}
	for i := 0; i < len(samples); i += 97 {
		if math.Abs(got.Samples[i]-samples[i]) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got.Samples[i], samples[i])
		}
	}
}

func TestWAVDecodeResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	src := Buffer{Samples: make([]float64, 16000), SampleRate: 16000}
	if err := NewFileCodec("", 16000).Encode(context.Background(), src, path); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := NewFileCodec("", 8000).Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d := got.Duration(); math.Abs(d-1) > 0.01 {
		t.Errorf("resampled duration = %v, want ~1s", d)
	}
}

func TestFloatBytesRoundTrip(t *testing.T) {
	original := []float64{0, 0.5, -0.25, 1, -1}
	got := BytesToFloats(FloatsToBytes(original))
	for i, v := range original {
		if got[i] != v {
			t.Errorf("sample[%d] = %v, want %v", i, got[i], v)
		}
	}
	if n := len(BytesToFloats([]byte{1, 2, 3})); n != 0 {
		t.Errorf("partial sample decoded to %d values, want 0", n)
	}
}

// --- Frames ---

func TestToFramesLength(t *testing.T) {
	b := Buffer{Samples: make([]float64, 22050), SampleRate: 22050}
	frames := ToFrames(b)
	// one second of audio is 50 frames of 20ms, allow one for resampler rounding
	if len(frames) < 50 || len(frames) > 51 {
		t.Errorf("ToFrames produced %d frames, want ~50", len(frames))
	}
	for i, f := range frames {
		if len(f) != FrameSamples {
			t.Fatalf("frame %d has %d samples, want %d", i, len(f), FrameSamples)
		}
	}
	if ToFrames(Buffer{}) != nil {
		t.Error("empty buffer should produce no frames")
	}
}

func TestToFramesStereoDuplicate(t *testing.T) {
	samples := make([]float64, SampleRate/10)
	for i := range samples {
		samples[i] = 0.25
	}
	frames := ToFrames(Buffer{Samples: samples, SampleRate: SampleRate})
	if len(frames) == 0 {
		t.Fatal("no frames")
	}
	f := frames[0]
	if f[0] != f[1] {
		t.Errorf("left %d != right %d", f[0], f[1])
	}
	if want := int16(math.Round(0.25 * 32767)); f[0] != want {
		t.Errorf("sample = %d, want %d", f[0], want)
	}
}

func TestToInt16Clipping(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{2, 32767},
		{-2, -32768},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}
	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

// --- Pipeline ---

type memDecoder struct {
	buffers map[string]Buffer
}

func (d *memDecoder) Decode(_ context.Context, path string) (Buffer, error) {
	b, ok := d.buffers[path]
	if !ok {
		return Buffer{}, &DecodeError{Path: path, Err: os.ErrNotExist}
	}
	return b, nil
}

func TestPipelineInitialState(t *testing.T) {
	log, _ := logger.NewTestLogger()
	p := NewPipeline(log, &memDecoder{})
	if p.QueueSize() != 0 {
		t.Errorf("Initial QueueSize = %d, want 0", p.QueueSize())
	}
	track, pos, dur := p.Status()
	if track.ID != "" || pos != 0 || dur != 0 {
		t.Errorf("Initial status should be zero-valued, got track=%v pos=%v dur=%v", track, pos, dur)
	}
	// Skip on empty channel should not block
	p.Skip()
	p.Skip()
}

func TestPipelineEnqueueFull(t *testing.T) {
	log, _ := logger.NewTestLogger()
	p := NewPipeline(log, &memDecoder{})
	for i := 0; i < cap(p.trackCh); i++ {
		if !p.Enqueue(TrackInfo{ID: "x"}) {
			t.Fatalf("Enqueue %d rejected before queue was full", i)
		}
	}
	if p.Enqueue(TrackInfo{ID: "overflow"}) {
		t.Error("Enqueue should reject when the queue is full")
	}
}

func TestPipelinePlaysFrames(t *testing.T) {
	log, logs := logger.NewTestLogger()
	dec := &memDecoder{buffers: map[string]Buffer{
		"mix.wav": {Samples: make([]float64, SampleRate/10), SampleRate: SampleRate}, // 5 frames
	}}
	p := NewPipeline(log, dec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(TrackInfo{ID: "missing", Path: "missing.wav"})
	p.Enqueue(TrackInfo{ID: "m1", Name: "A to B", Path: "mix.wav"})

	got := 0
	timeout := time.After(3 * time.Second)
	for got < 5 {
		select {
		case f := <-p.Frames():
			if len(f) != FrameSamples {
				t.Fatalf("frame length %d, want %d", len(f), FrameSamples)
			}
			got++
		case <-timeout:
			t.Fatalf("received %d frames before timeout, want 5", got)
		}
	}

	track, _, dur := p.Status()
	if track.ID != "m1" {
		t.Errorf("current track = %q, want m1", track.ID)
	}
	if dur != 5*FrameDuration {
		t.Errorf("duration = %v, want %v", dur, 5*FrameDuration)
	}
	if n := logs.FilterMessage("Preview decode failed").Len(); n != 1 {
		t.Errorf("decode failure logged %d times, want 1", n)
	}
}
