package audio

import "context"

// Source is the audio source contract: a producer of 16 kHz mono float32
// sample batches. Microphone capture and sample-rate conversion are
// external collaborators — a Source need only push whatever batch sizes it
// naturally produces; the pipeline tolerates arbitrary batch sizes.
//
// Unlike a multi-participant platform abstraction modeling several
// simultaneous input streams mixed into one output, this pipeline has
// exactly one input stream per session, so the contract collapses to a
// single push callback.
type Source interface {
	// Run starts producing audio and blocks until ctx is cancelled, the
	// source is exhausted (e.g. end of a WAV file), or an unrecoverable
	// error occurs. Each batch read is delivered to push before the next is
	// read; push must not block Run's caller for longer than the pipeline
	// can tolerate, since Run's goroutine is the only thing feeding it.
	Run(ctx context.Context, push func(samples []float32)) error
}
