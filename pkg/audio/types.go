// Package audio provides the fixed-capacity sliding window, silence
// detector, and source contracts that feed the transcription pipeline.
//
// Audio flows through this package as raw mono float32 samples at a single
// configured sample rate — there is no per-frame struct wrapping it, no
// channel count, and no codec: mic capture and sample-rate conversion are
// external collaborators (see [Source]).
package audio

// Window is an immutable snapshot of the most recent audio held by a
// [RingBuffer], produced fresh on every [RingBuffer.Window] call and never
// retained by the caller past a single tick.
type Window struct {
	// PCM holds samples in oldest-to-newest order.
	PCM []float32

	// StartAbsMs and EndAbsMs are the absolute session-relative timestamps,
	// in milliseconds, of the first and last sample in PCM. EndAbsMs is the
	// session timestamp of the most recent sample written to the buffer at
	// the time Window was read.
	StartAbsMs int64
	EndAbsMs   int64
}

// DurationMs returns the window's span in milliseconds.
func (w Window) DurationMs() int64 {
	return w.EndAbsMs - w.StartAbsMs
}
