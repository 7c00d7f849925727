package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Decoder turns an encoded audio file into a mono PCM buffer.
type Decoder interface {
	Decode(ctx context.Context, path string) (Buffer, error)
}

// Encoder writes a PCM buffer to an encoded audio file.
type Encoder interface {
	Encode(ctx context.Context, buf Buffer, path string) error
}

// Codec is a Decoder and an Encoder.
type Codec interface {
	Decoder
	Encoder
}

// ErrNoSamples is returned when a file decodes to zero samples.
var ErrNoSamples = errors.New("no audio samples")

// DecodeError reports an unreadable or corrupt input file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an output file that could not be written.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// FileCodec decodes and encodes files on disk. WAV is handled in-process;
// every other container goes through an ffmpeg subprocess.
type FileCodec struct {
	FFmpeg     string // ffmpeg binary, "ffmpeg" when empty
	SampleRate int    // decode target rate
}

// NewFileCodec creates a codec decoding to sampleRate.
func NewFileCodec(ffmpeg string, sampleRate int) *FileCodec {
	if sampleRate <= 0 {
		sampleRate = AnalysisSampleRate
	}
	return &FileCodec{FFmpeg: ffmpeg, SampleRate: sampleRate}
}

// Decode reads path as mono float PCM at the codec's sample rate.
func (c *FileCodec) Decode(ctx context.Context, path string) (Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		return Buffer{}, &DecodeError{Path: path, Err: err}
	}

	var (
		samples []float64
		err     error
	)
	if Format(path) == "wav" {
		samples, err = decodeWAV(path, c.SampleRate)
	} else {
		samples, err = c.decodeFFmpeg(ctx, path)
	}
	if err != nil {
		return Buffer{}, &DecodeError{Path: path, Err: err}
	}
	if len(samples) == 0 {
		return Buffer{}, &DecodeError{Path: path, Err: ErrNoSamples}
	}
	return Buffer{Samples: samples, SampleRate: c.SampleRate}, nil
}

// Encode writes buf to path. The container is chosen from the file extension,
// defaulting to mp3.
func (c *FileCodec) Encode(ctx context.Context, buf Buffer, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &EncodeError{Path: path, Err: err}
		}
	}

	var err error
	if Format(path) == "wav" {
		err = encodeWAV(buf, path)
	} else {
		err = c.encodeFFmpeg(ctx, buf, path)
	}
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	return nil
}

func (c *FileCodec) ffmpeg() string {
	if c.FFmpeg == "" {
		return "ffmpeg"
	}
	return c.FFmpeg
}

// Format returns the lowercase container name implied by path's extension,
// or "mp3" when there is none.
func Format(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "mp3"
	}
	return ext
}

// IsAudioFile reports whether path has an extension the codec can usually read.
func IsAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac", ".aiff", ".aif", ".opus":
		return true
	}
	return false
}
