package mixer

import (
	"context"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/compat"
)

// FeatureSource supplies compatibility features for an audio file.
type FeatureSource interface {
	Features(ctx context.Context, path string) (compat.Features, error)
}

// DecodingSource decodes the file and runs the lightweight analyzer on it.
type DecodingSource struct {
	dec      audio.Decoder
	analyzer *compat.Analyzer
}

// NewDecodingSource creates a FeatureSource backed by dec.
func NewDecodingSource(dec audio.Decoder, analyzer *compat.Analyzer) *DecodingSource {
	return &DecodingSource{dec: dec, analyzer: analyzer}
}

// Features decodes path and analyzes it.
func (s *DecodingSource) Features(ctx context.Context, path string) (compat.Features, error) {
	buf, err := s.dec.Decode(ctx, path)
	if err != nil {
		return compat.Features{}, err
	}
	return s.analyzer.Features(buf), nil
}
