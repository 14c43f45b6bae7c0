// Package mock provides a scriptable test double for [decoder.Decoder].
//
// Use Decoder to queue a sequence of canned DecodeResult values or errors,
// and inspect TranscribeWindowCalls / TranscribeFullCalls afterward.
//
// Example:
//
//	d := &mock.Decoder{
//	    WindowResults: []mock.WindowResult{{Result: types.DecodeResult{...}}},
//	}
//	res, err := d.TranscribeWindow(ctx, pcm, 0, "")
package mock

import (
	"context"
	"sync"

	"github.com/quietloop/murmur/pkg/decoder"
	"github.com/quietloop/murmur/pkg/types"
)

// TranscribeWindowCall records a single invocation of Decoder.TranscribeWindow.
type TranscribeWindowCall struct {
	Frames           []float32
	WindowStartAbsMs int
	Prompt           string
}

// WindowResult is one queued response for TranscribeWindow. Calls beyond the
// queued list reuse the last entry, or return a zero result if the queue was
// empty.
type WindowResult struct {
	Result types.DecodeResult
	Err    error

	// Delay, if non-nil, is called first and the call blocks until it
	// returns; a non-nil error from it is returned in place of Result and
	// Err — useful for exercising backpressure and cancellation.
	Delay func(ctx context.Context) error
}

// Decoder is a mock implementation of [decoder.Decoder].
type Decoder struct {
	mu sync.Mutex

	// WindowResults are returned by TranscribeWindow in order.
	WindowResults []WindowResult

	// FullResult and FullErr are returned by TranscribeFull.
	FullResult string
	FullErr    error

	// TranscribeWindowCalls records every TranscribeWindow invocation.
	TranscribeWindowCalls []TranscribeWindowCall

	// TranscribeFullCalls counts TranscribeFull invocations.
	TranscribeFullCalls int

	windowCallIndex int
}

var _ decoder.Decoder = (*Decoder)(nil)

// TranscribeWindow implements [decoder.Decoder]. Returns the next queued
// WindowResult; once the queue is exhausted it reuses the last entry, and it
// returns a zero DecodeResult only when the queue is empty.
func (d *Decoder) TranscribeWindow(ctx context.Context, frames []float32, windowStartAbsMs int, prompt string) (types.DecodeResult, error) {
	d.mu.Lock()
	d.TranscribeWindowCalls = append(d.TranscribeWindowCalls, TranscribeWindowCall{
		Frames:           append([]float32(nil), frames...),
		WindowStartAbsMs: windowStartAbsMs,
		Prompt:           prompt,
	})
	var result WindowResult
	if d.windowCallIndex < len(d.WindowResults) {
		result = d.WindowResults[d.windowCallIndex]
	} else if len(d.WindowResults) > 0 {
		result = d.WindowResults[len(d.WindowResults)-1]
	}
	d.windowCallIndex++
	d.mu.Unlock()

	if result.Delay != nil {
		if err := result.Delay(ctx); err != nil {
			return types.DecodeResult{}, err
		}
	}
	return result.Result, result.Err
}

// TranscribeFull implements [decoder.Decoder]. Returns FullResult, FullErr.
func (d *Decoder) TranscribeFull(ctx context.Context, frames []float32) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.TranscribeFullCalls++
	return d.FullResult, d.FullErr
}

// Reset clears all recorded calls and the replay cursor. Thread-safe.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.TranscribeWindowCalls = nil
	d.TranscribeFullCalls = 0
	d.windowCallIndex = 0
}
