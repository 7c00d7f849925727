package audio

import (
	"fmt"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// resampleQuality is the beep resampler quality used for rate conversion.
const resampleQuality = 4

// monoStreamer plays a mono sample slice on both beep channels.
type monoStreamer struct {
	samples []float64
	pos     int
}

// NewStreamer wraps mono samples as a beep.Streamer.
func NewStreamer(samples []float64) beep.Streamer {
	return &monoStreamer{samples: samples}
}

func (s *monoStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for n < len(out) && s.pos < len(s.samples) {
		v := s.samples[s.pos]
		out[n][0], out[n][1] = v, v
		n++
		s.pos++
	}
	return n, true
}

func (s *monoStreamer) Err() error { return nil }

// Resample converts a streamer between sample rates. Equal rates return s as is.
func Resample(s beep.Streamer, from, to int) beep.Streamer {
	if from == to {
		return s
	}
	return beep.Resample(resampleQuality, beep.SampleRate(from), beep.SampleRate(to), s)
}

// drainMono reads s to the end, averaging the two channels.
func drainMono(s beep.Streamer) ([]float64, error) {
	chunk := make([][2]float64, 4096)
	var out []float64
	for {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			out = append(out, (chunk[i][0]+chunk[i][1])/2)
		}
		if !ok {
			break
		}
	}
	return out, s.Err()
}

func decodeWAV(path string, sampleRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}
	defer streamer.Close()

	return drainMono(Resample(streamer, int(format.SampleRate), sampleRate))
}

func encodeWAV(buf Buffer, path string) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", buf.SampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format := beep.Format{
		SampleRate:  beep.SampleRate(buf.SampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	if err := wav.Encode(f, NewStreamer(buf.Samples), format); err != nil {
		return fmt.Errorf("wav encode: %w", err)
	}
	return nil
}
