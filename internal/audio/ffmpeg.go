package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// decodeFFmpeg runs ffmpeg to decode a file to mono float32 PCM.
func (c *FileCodec) decodeFFmpeg(ctx context.Context, path string) ([]float64, error) {
	cmd := exec.CommandContext(ctx, c.ffmpeg(),
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(c.SampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return BytesToFloats(out), nil
}

// encodeFFmpeg pipes mono float32 PCM into ffmpeg and writes path.
func (c *FileCodec) encodeFFmpeg(ctx context.Context, buf Buffer, path string) error {
	args := []string{
		"-y",
		"-f", "f32le",
		"-ar", strconv.Itoa(buf.SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	}
	switch Format(path) {
	case "mp3":
		args = append(args, "-codec:a", "libmp3lame", "-b:a", "192k")
	case "ogg":
		args = append(args, "-codec:a", "libvorbis", "-q:a", "6")
	}
	args = append(args, "-loglevel", "error", path)

	cmd := exec.CommandContext(ctx, c.ffmpeg(), args...)
	cmd.Stdin = bytes.NewReader(FloatsToBytes(buf.Samples))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// BytesToFloats converts little-endian float32 PCM to float64 samples.
// A trailing partial sample is dropped.
func BytesToFloats(b []byte) []float64 {
	samples := make([]float64, len(b)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return samples
}

// FloatsToBytes converts samples to little-endian float32 PCM.
func FloatsToBytes(samples []float64) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(s)))
	}
	return buf
}
