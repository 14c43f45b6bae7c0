// Package types defines the shared data types used across all murmur
// packages.
//
// These types form the lingua franca between the audio, decoder, stabilizer,
// and scheduler packages. They are intentionally minimal — each package
// defines its own behaviour, but cross-cutting data structures live here to
// avoid circular imports between pkg/decoder and internal/stabilizer.
package types

// Token is a single decoder-emitted token with window-relative timing.
type Token struct {
	// Text is the token's literal text, including any leading whitespace the
	// decoder attaches to mark a new word boundary.
	Text string

	// StartTimeMs is the token's start time in milliseconds, relative to the
	// start of the decoded window.
	StartTimeMs int

	// EndTimeMs is the token's end time in milliseconds, relative to the
	// start of the decoded window. Must be >= StartTimeMs.
	EndTimeMs int

	// Probability is the decoder's confidence for this token, in [0, 1].
	Probability float64
}

// Timing describes how a [Segment]'s time bounds should be interpreted when
// deriving per-word end times. A segment either carries per-token timing
// (the common case for engines that expose token-level timestamps) or only
// segment-level timing, in which case every word in the segment inherits the
// segment's end time — a coarser commit granularity.
type Timing struct {
	// Tokens holds per-token timing when the decoder provided it. Nil when
	// only segment-level timing is available.
	Tokens []Token
}

// PerSegment reports whether this Timing has no token-level detail and
// per-word end times must fall back to the enclosing segment's EndMs.
func (t Timing) PerSegment() bool {
	return len(t.Tokens) == 0
}

// Segment is one decoder-produced span of text within a decoded window.
type Segment struct {
	// Text is the full text of the segment.
	Text string

	// StartMs and EndMs bound the segment in window-relative milliseconds.
	StartMs int
	EndMs   int

	// Timing carries token-level detail when the decoder supports it; see
	// [Timing.PerSegment].
	Timing Timing
}

// DecodeResult is the output of one decoder invocation over one audio
// window.
type DecodeResult struct {
	// Segments are in time order.
	Segments []Segment

	// WindowStartAbsMs is the absolute session-relative timestamp of the
	// first sample in the decoded window. Adding a segment or token's
	// window-relative time to this value yields an absolute session
	// timestamp.
	WindowStartAbsMs int
}
