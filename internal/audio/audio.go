package audio

import "time"

// Playback format used by the preview pipeline and the streams.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// AnalysisSampleRate is the mono rate tracks are decoded to before analysis and mixing.
const AnalysisSampleRate = 22050

// TrackInfo identifies a rendered mix queued for preview playback.
type TrackInfo struct {
	ID   string
	Name string
	Path string
}
