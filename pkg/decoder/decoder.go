// Package decoder defines the Decoder interface: the pipeline's sole
// dependency on a speech-recognition engine.
//
// Rather than a persistent streaming session per caller with partials/finals
// delivered on channels, this pipeline drives the recognition engine
// itself: it decides when to decode, over which window, with what prompt,
// and applies backpressure. The contract here is therefore a
// stateless-from-the-caller's-perspective batch call rather than an open
// session — the scheduler (internal/scheduler) is what turns repeated calls
// into a stream.
//
// Implementations must be safe for concurrent use: transcribeFull at
// finalization may run shortly after the final transcribeWindow call from a
// cancelled context, and a shared Decoder instance may serve more than one
// session sequentially.
package decoder

import (
	"context"

	"github.com/quietloop/murmur/pkg/types"
)

// Decoder is the pipeline's sole dependency on recognition.
type Decoder interface {
	// TranscribeWindow decodes one sliding window of PCM at the configured
	// sample rate. windowStartAbsMs is the absolute session timestamp of
	// frames[0]. prompt, when non-empty, is decoder context drawn from the
	// committed-text tail.
	//
	// Errors should be classified by the caller as transient or fatal using
	// errors.Is/As against the sentinel kinds this package and its adapters
	// define; a transient error drops this tick's output without ending the
	// session.
	TranscribeWindow(ctx context.Context, frames []float32, windowStartAbsMs int, prompt string) (types.DecodeResult, error)

	// TranscribeFull performs a single-shot decode of an entire recorded
	// session, used only at finalization to produce the authoritative
	// transcript. There is no prompt and no window offset: frames is the
	// complete session audio from t=0.
	TranscribeFull(ctx context.Context, frames []float32) (string, error)
}
