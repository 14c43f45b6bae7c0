package types

import "fmt"

// ErrorKind tags a [PipelineError] with one of the dispositions the pipeline
// recognizes. Pipeline failures (audio, decoder, duration, finalization) are
// wrapped in a PipelineError rather than surfaced as a bare error — the same
// typed sentinel kind, wrapped cause convention as resilience.ErrCircuitOpen
// and resilience.ErrAllFailed. Misuse of the session's Start/Stop calls is
// reported as a plain error.
type ErrorKind string

const (
	// AudioSourceUnavailable: no input, or format conversion failure. Fails
	// the session.
	AudioSourceUnavailable ErrorKind = "audio_source_unavailable"

	// DecoderTransient: the decoder was busy or timed out on a single
	// window. Logged, this tick's output dropped, session continues.
	DecoderTransient ErrorKind = "decoder_transient"

	// DecoderFatal: the decoder failed to load, or exceeded a consecutive
	// failure threshold. Stops the session.
	DecoderFatal ErrorKind = "decoder_fatal"

	// SessionDurationExceeded: maxSessionMinutes was reached. Forces a
	// clean stop with finalization.
	SessionDurationExceeded ErrorKind = "session_duration_exceeded"

	// StabilizerRegression: a candidate commit would shrink committed
	// text. Discarded silently; never user-visible.
	StabilizerRegression ErrorKind = "stabilizer_regression"

	// FinalizationFailure: the finalization decode failed. The last known
	// streaming result is reported as the session output.
	FinalizationFailure ErrorKind = "finalization_failure"
)

// PipelineError is the single tagged error type the pipeline uses to cross
// component and session boundaries. Recovery beyond what each ErrorKind's
// disposition dictates is never attempted inside the scheduler loop.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

// NewPipelineError wraps cause under kind.
func NewPipelineError(kind ErrorKind, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Err: cause}
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("murmur: %s", e.Kind)
	}
	return fmt.Sprintf("murmur: %s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PipelineError with the same Kind, so
// callers can write errors.Is(err, &PipelineError{Kind: types.DecoderFatal}).
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
