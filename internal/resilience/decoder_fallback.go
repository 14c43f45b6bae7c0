package resilience

import (
	"context"

	"github.com/quietloop/murmur/pkg/decoder"
	"github.com/quietloop/murmur/pkg/types"
)

// DecoderFallback implements [decoder.Decoder] with automatic failover across
// multiple decoder backends (e.g. the whispercpp decoder falling back to a
// fixture/mock decoder when the model is unavailable). Each backend has its
// own circuit breaker.
type DecoderFallback struct {
	group *FallbackGroup[decoder.Decoder]
}

// Compile-time interface assertion.
var _ decoder.Decoder = (*DecoderFallback)(nil)

// NewDecoderFallback creates a [DecoderFallback] with primary as the
// preferred backend.
func NewDecoderFallback(primary decoder.Decoder, primaryName string, cfg FallbackConfig) *DecoderFallback {
	return &DecoderFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional decoder as a fallback.
func (f *DecoderFallback) AddFallback(name string, dec decoder.Decoder) {
	f.group.AddFallback(name, dec)
}

// TranscribeWindow implements [decoder.Decoder], trying each backend in order
// until one succeeds.
func (f *DecoderFallback) TranscribeWindow(ctx context.Context, frames []float32, windowStartAbsMs int, prompt string) (types.DecodeResult, error) {
	return ExecuteWithResult(f.group, func(d decoder.Decoder) (types.DecodeResult, error) {
		return d.TranscribeWindow(ctx, frames, windowStartAbsMs, prompt)
	})
}

// TranscribeFull implements [decoder.Decoder], trying each backend in order
// until one succeeds.
func (f *DecoderFallback) TranscribeFull(ctx context.Context, frames []float32) (string, error) {
	return ExecuteWithResult(f.group, func(d decoder.Decoder) (string, error) {
		return d.TranscribeFull(ctx, frames)
	})
}
