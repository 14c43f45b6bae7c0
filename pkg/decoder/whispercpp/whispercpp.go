// Package whispercpp implements [decoder.Decoder] using whisper.cpp's CGO
// Go bindings, eliminating HTTP overhead entirely. The model is loaded once
// at startup and shared across all sessions; a fresh whisper.cpp context is
// created per TranscribeWindow call rather than per long-lived session,
// since the pipeline itself (not this adapter) owns buffering, silence
// skip, and scheduling.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/quietloop/murmur/pkg/decoder"
	"github.com/quietloop/murmur/pkg/types"
)

const (
	defaultLanguage = "en"

	// consecutiveFailureThreshold is the number of back-to-back
	// TranscribeWindow failures after which NewContext/Process errors are
	// classified as fatal rather than transient.
	consecutiveFailureThreshold = 5
)

// Compile-time assertion that Decoder satisfies decoder.Decoder.
var _ decoder.Decoder = (*Decoder)(nil)

// Decoder implements [decoder.Decoder] using a shared whisper.cpp model.
type Decoder struct {
	model whisperlib.Model

	language           string
	noSpeechThreshold  float64
	minTokenProbability float64

	consecutiveFailures int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLanguage sets the BCP-47 language code passed to whisper.cpp
// (e.g. "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(d *Decoder) { d.language = lang }
}

// WithNoSpeechThreshold stores a no-speech probability threshold, mirroring
// the pipeline's noSpeechThreshold configuration option. The stored value is
// not applied when decoding; no segment is discarded on its account.
func WithNoSpeechThreshold(threshold float64) Option {
	return func(d *Decoder) { d.noSpeechThreshold = threshold }
}

// WithMinTokenProbability sets the floor below which an emitted token is
// dropped before it ever reaches the stabilizer's own commit-confidence
// check — a defense against a segment that is mostly noise.
func WithMinTokenProbability(p float64) Option {
	return func(d *Decoder) { d.minTokenProbability = p }
}

// New loads a whisper.cpp GGML model from modelPath. The model is shared
// across every call to TranscribeWindow/TranscribeFull; the caller must call
// Close when the decoder is no longer needed.
func New(modelPath string, opts ...Option) (*Decoder, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}

	d := &Decoder{
		model:               model,
		language:            defaultLanguage,
		noSpeechThreshold:   0.75,
		minTokenProbability: 0.30,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Close releases the whisper model.
func (d *Decoder) Close() error {
	if d.model != nil {
		return d.model.Close()
	}
	return nil
}

// TranscribeWindow implements [decoder.Decoder].
func (d *Decoder) TranscribeWindow(ctx context.Context, frames []float32, windowStartAbsMs int, prompt string) (types.DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return types.DecodeResult{}, err
	}

	segments, err := d.decode(frames, prompt)
	if err != nil {
		d.consecutiveFailures++
		kind := types.DecoderTransient
		if d.consecutiveFailures >= consecutiveFailureThreshold {
			kind = types.DecoderFatal
		}
		return types.DecodeResult{}, types.NewPipelineError(kind, fmt.Errorf("whispercpp: transcribe window: %w", err))
	}
	d.consecutiveFailures = 0

	return types.DecodeResult{Segments: segments, WindowStartAbsMs: windowStartAbsMs}, nil
}

// TranscribeFull implements [decoder.Decoder].
func (d *Decoder) TranscribeFull(ctx context.Context, frames []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	segments, err := d.decode(frames, "")
	if err != nil {
		return "", types.NewPipelineError(types.FinalizationFailure, fmt.Errorf("whispercpp: transcribe full: %w", err))
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " "), nil
}

// decode runs one whisper.cpp inference pass over samples and converts the
// resulting segments (with per-token timing when the binding provides it)
// into this package's Segment representation. Each call gets a fresh
// context: whisper.cpp contexts are not safe for concurrent reuse, but the
// underlying model is.
func (d *Decoder) decode(samples []float32, prompt string) ([]types.Segment, error) {
	wctx, err := d.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}

	if err := wctx.SetLanguage(d.language); err != nil {
		return nil, fmt.Errorf("set language %q: %w", d.language, err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("process audio: %w", err)
	}

	var segments []types.Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment: %w", err)
		}

		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		startMs := int(seg.Start.Milliseconds())
		endMs := int(seg.End.Milliseconds())

		var tokens []types.Token
		for _, t := range seg.Tokens {
			tt := strings.TrimSpace(t.Text)
			if tt == "" {
				continue
			}
			if float64(t.P) < d.minTokenProbability {
				continue
			}
			tokens = append(tokens, types.Token{
				Text:        t.Text,
				StartTimeMs: int(t.Start.Milliseconds()),
				EndTimeMs:   int(t.End.Milliseconds()),
				Probability: float64(t.P),
			})
		}

		segments = append(segments, types.Segment{
			Text:   text,
			StartMs: startMs,
			EndMs:   endMs,
			Timing: types.Timing{Tokens: tokens},
		})
	}

	return segments, nil
}
