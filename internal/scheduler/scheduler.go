// Package scheduler implements PipelineScheduler: the concurrency core that
// owns a periodic tick, pulls a window from the ring buffer each tick,
// consults the silence detector, builds a prompt from committed text,
// invokes the decoder, and feeds the result to the stabilizer.
//
// All mutable pipeline state (ring buffer, silence detector, stabilizer,
// and the scheduler's own backpressure state) is confined to the single
// goroutine running [Scheduler.Run]. Audio is handed in via [Scheduler.PushAudio],
// a channel send safe to call from any goroutine (the realtime capture
// thread); everything else is read only from inside Run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quietloop/murmur/internal/stabilizer"
	"github.com/quietloop/murmur/pkg/audio"
	"github.com/quietloop/murmur/pkg/decoder"
	"github.com/quietloop/murmur/pkg/types"
)

const (
	// minViableWindowMs is the shortest window worth decoding; anything
	// shorter is skipped (the tick returns without issuing a decode).
	minViableWindowMs = 500

	// consecutiveDecoderFailureThreshold is the number of back-to-back
	// transient decode failures after which the session is stopped as
	// DecoderFatal.
	consecutiveDecoderFailureThreshold = 5

	// silenceRMSThreshold is the float32-sample equivalent of a
	// near-silence energy level for 16-bit PCM (300 out of a 32767
	// full-scale amplitude).
	silenceRMSThreshold = 300.0 / 32768.0
)

// state is the scheduler's backpressure state machine, replacing a
// timer+in-flight-flag+pending-tick-flag trio with three explicit states
// driven by tick events and decode completions.
type state int

const (
	stateIdle state = iota
	stateRunning
	stateRunningQueued
)

// Config holds PipelineConfig: the pipeline's tunables, constant for the
// lifetime of a session.
type Config struct {
	TickMs              int
	WindowMs            int
	CommitMarginMs      int
	MaxPromptChars       int
	SilenceMs           int
	NoSpeechThreshold   float64
	MinTokenProbability float64
	MaxSessionMinutes   int
	SampleRate          int

	Logger *slog.Logger
}

// Update is published to the UI sink after each stabilizer update.
type Update struct {
	Committed   string
	Speculative string
}

// FinalResult is the authoritative session output produced at finalization.
type FinalResult struct {
	// StreamedCommitted is the committed text after FinalizeAll folded in
	// any remaining speculative tail.
	StreamedCommitted string

	// FullTranscript is the result of decoding the entire recorded
	// session in a single pass. Equals StreamedCommitted if the
	// finalization decode failed (FinalizationFailure).
	FullTranscript string

	Stats Stats
}

// Stats reports scheduler-level counters for observability and tests.
type Stats struct {
	SilentTicks          int
	QueuedTicksDropped    int
	DecodesIssued         int
	LastDecodeDuration    time.Duration
	StabilizerStats       stabilizer.Stats
}

// decodeOutcome carries a completed decode's result back into the run loop.
type decodeOutcome struct {
	result         types.DecodeResult
	err            error
	windowEndAbsMs int64
	duration       time.Duration
}

// Scheduler is the PipelineScheduler. One instance is created per recording
// session; it is not reusable across sessions.
type Scheduler struct {
	cfg    Config
	dec    decoder.Decoder
	logger *slog.Logger

	ring    *audio.RingBuffer
	silence *audio.SilenceDetector
	stab    *stabilizer.Stabilizer

	audioCh   chan []float32
	stopCh    chan struct{}
	stopOnce  sync.Once
	updatesCh chan Update
	errCh     chan *types.PipelineError

	fullBuffer []float32

	eg             *errgroup.Group
	decodeResultCh chan decodeOutcome

	state                      state
	queuedTick                 bool
	cancelInFlight             context.CancelFunc
	consecutiveDecoderFailures int

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Scheduler ready to Run. dec is the decoder instance; it may
// be shared across sessions (see the Decoder contract's ownership note) but
// this Scheduler enforces at most one in-flight call into it at a time.
func New(cfg Config, dec decoder.Decoder) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eg := &errgroup.Group{}
	eg.SetLimit(1)

	return &Scheduler{
		cfg:    cfg,
		dec:    dec,
		logger: logger,

		ring:    audio.NewRingBuffer(cfg.WindowMs, cfg.SampleRate),
		silence: audio.NewSilenceDetector(silenceRMSThreshold, int64(cfg.SilenceMs)),
		stab: stabilizer.New(stabilizer.Config{
			CommitMarginMs:      int64(cfg.CommitMarginMs),
			MinTokenProbability: cfg.MinTokenProbability,
			Logger:              logger,
		}),

		audioCh:   make(chan []float32, 64),
		stopCh:    make(chan struct{}),
		updatesCh: make(chan Update, 8),
		errCh:     make(chan *types.PipelineError, 8),

		eg:             eg,
		decodeResultCh: make(chan decodeOutcome, 1),
	}
}

// PushAudio hands a batch of 16 kHz mono float32 samples to the pipeline's
// audio intake queue. Safe to call from any goroutine. Returns an error
// (AudioSourceUnavailable) if the scheduler has already stopped.
func (sc *Scheduler) PushAudio(samples []float32) error {
	select {
	case sc.audioCh <- samples:
		return nil
	case <-sc.stopCh:
		return types.NewPipelineError(types.AudioSourceUnavailable, errors.New("scheduler: session already stopping"))
	}
}

// Updates returns the channel publishing (committed, speculative) after
// every stabilizer update.
func (sc *Scheduler) Updates() <-chan Update { return sc.updatesCh }

// Errors returns the channel publishing user-visible pipeline errors.
// DecoderTransient and StabilizerRegression are logged, never sent here.
func (sc *Scheduler) Errors() <-chan *types.PipelineError { return sc.errCh }

// Stop requests a graceful stop; Run will cancel the tick loop, finalize,
// and return. Safe to call more than once and from any goroutine.
func (sc *Scheduler) Stop() {
	sc.stopOnce.Do(func() { close(sc.stopCh) })
}

// Stats returns a snapshot of the scheduler's counters. Safe for concurrent
// use with Run.
func (sc *Scheduler) Stats() Stats {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	s := sc.stats
	s.StabilizerStats = sc.stab.Stats()
	return s
}

// Run is the tick loop: started on the Recording state entry, it owns every
// mutable piece of pipeline state until ctx is cancelled or Stop is called,
// at which point it finalizes and returns the session's authoritative
// result. Run must be called at most once.
func (sc *Scheduler) Run(ctx context.Context) (FinalResult, error) {
	ticker := time.NewTicker(time.Duration(sc.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	deadline := time.Now().Add(time.Duration(sc.cfg.MaxSessionMinutes) * time.Minute)

	for {
		select {
		case <-ctx.Done():
			return sc.finalize()

		case <-sc.stopCh:
			return sc.finalize()

		case samples := <-sc.audioCh:
			sc.ring.Append(samples)
			sc.fullBuffer = append(sc.fullBuffer, samples...)

		case now := <-ticker.C:
			if now.After(deadline) {
				sc.emitError(types.NewPipelineError(types.SessionDurationExceeded, nil))
				return sc.finalize()
			}
			sc.onTick(ctx)

		case outcome := <-sc.decodeResultCh:
			resumeTick := sc.onDecodeComplete(outcome)
			if resumeTick {
				sc.onTick(ctx)
			}
			if sc.consecutiveDecoderFailures >= consecutiveDecoderFailureThreshold {
				sc.emitError(types.NewPipelineError(types.DecoderFatal,
					fmt.Errorf("scheduler: %d consecutive decode failures", sc.consecutiveDecoderFailures)))
				return sc.finalize()
			}
		}
	}
}

// onTick implements the tick-loop steps: backpressure check, window read,
// minimum-length check, silence check, prompt build, decode dispatch.
func (sc *Scheduler) onTick(ctx context.Context) {
	switch sc.state {
	case stateRunning:
		sc.state = stateRunningQueued
		sc.queuedTick = true
		return
	case stateRunningQueued:
		sc.addStat(func(s *Stats) { s.QueuedTicksDropped++ })
		return
	}

	window := sc.ring.Window()
	if window.DurationMs() < minViableWindowMs {
		return
	}

	if sc.silence.Update(window.PCM, window.EndAbsMs) {
		sc.addStat(func(s *Stats) { s.SilentTicks++ })
		return
	}

	committed, _, _ := sc.stab.Render()
	prompt := buildPrompt(committed, sc.cfg.MaxPromptChars)

	decodeCtx, cancel := context.WithCancel(ctx)
	sc.cancelInFlight = cancel
	sc.state = stateRunning
	sc.addStat(func(s *Stats) { s.DecodesIssued++ })

	pcm := window.PCM
	windowStartAbsMs := int(window.StartAbsMs)
	windowEndAbsMs := window.EndAbsMs
	start := time.Now()

	sc.eg.Go(func() error {
		result, err := sc.dec.TranscribeWindow(decodeCtx, pcm, windowStartAbsMs, prompt)
		sc.decodeResultCh <- decodeOutcome{
			result:         result,
			err:            err,
			windowEndAbsMs: windowEndAbsMs,
			duration:       time.Since(start),
		}
		return err
	})
}

// onDecodeComplete applies a finished decode to the stabilizer (on success),
// classifies failures, and clears in-flight state. Returns true if a queued
// tick should run immediately.
func (sc *Scheduler) onDecodeComplete(outcome decodeOutcome) bool {
	sc.cancelInFlight = nil
	sc.state = stateIdle
	sc.addStat(func(s *Stats) { s.LastDecodeDuration = outcome.duration })

	if outcome.err != nil {
		if errors.Is(outcome.err, context.Canceled) {
			// Cancelled as part of Stop; not a failure, nothing to apply.
		} else {
			sc.consecutiveDecoderFailures++
			var pe *types.PipelineError
			kind := types.DecoderTransient
			if errors.As(outcome.err, &pe) {
				kind = pe.Kind
			}
			sc.logger.Warn("decode failed, dropping this tick's output",
				"kind", kind, "error", outcome.err, "consecutiveFailures", sc.consecutiveDecoderFailures)
		}
	} else {
		sc.consecutiveDecoderFailures = 0
		committed, speculative := sc.stab.Update(outcome.result, outcome.windowEndAbsMs)
		sc.publish(Update{Committed: committed, Speculative: speculative})
	}

	resume := sc.queuedTick
	sc.queuedTick = false
	return resume
}

// finalize cancels any in-flight decode, waits for it to return, folds all
// remaining speculative text into committed, and runs the single
// whole-session finalization decode.
func (sc *Scheduler) finalize() (FinalResult, error) {
	if sc.cancelInFlight != nil {
		sc.cancelInFlight()
	}
	_ = sc.eg.Wait()

	// Drain a result the in-flight goroutine may have deposited after the
	// run loop stopped reading decodeResultCh.
	select {
	case outcome := <-sc.decodeResultCh:
		sc.onDecodeComplete(outcome)
	default:
	}

	streamed := sc.stab.FinalizeAll()

	full, err := sc.transcribeFull()
	result := FinalResult{StreamedCommitted: streamed, Stats: sc.Stats()}
	if err != nil {
		sc.logger.Warn("finalization decode failed, reporting last streaming result", "error", err)
		result.FullTranscript = streamed
		return result, types.NewPipelineError(types.FinalizationFailure, err)
	}
	result.FullTranscript = full
	return result, nil
}

// transcribeFull runs the single-shot whole-session decode through the same
// serialized errgroup used for window decodes, so finalization can never
// race a straggling window decode.
func (sc *Scheduler) transcribeFull() (string, error) {
	var (
		result string
		callErr error
	)
	sc.eg.Go(func() error {
		r, err := sc.dec.TranscribeFull(context.Background(), sc.fullBuffer)
		result, callErr = r, err
		return err
	})
	_ = sc.eg.Wait()
	return result, callErr
}

func (sc *Scheduler) publish(u Update) {
	select {
	case sc.updatesCh <- u:
	default:
		// A slow UI consumer must not stall the pipeline; the next update
		// supersedes this one.
	}
}

func (sc *Scheduler) emitError(err *types.PipelineError) {
	select {
	case sc.errCh <- err:
	default:
	}
}

func (sc *Scheduler) addStat(f func(*Stats)) {
	sc.statsMu.Lock()
	f(&sc.stats)
	sc.statsMu.Unlock()
}

// buildPrompt derives decoder context from the committed-text tail. When
// committed fits within maxPromptChars it is used verbatim; otherwise the
// suffix is trimmed forward to the first ". " boundary (or, failing that,
// the first space) so the prompt never starts mid-word. maxPromptChars <= 0
// always yields no prompt.
func buildPrompt(committed string, maxPromptChars int) string {
	if maxPromptChars <= 0 {
		return ""
	}
	runes := []rune(committed)
	if len(runes) <= maxPromptChars {
		return committed
	}
	suffix := string(runes[len(runes)-maxPromptChars:])
	if idx := strings.Index(suffix, ". "); idx >= 0 {
		return suffix[idx+len(". "):]
	}
	if idx := strings.Index(suffix, " "); idx >= 0 {
		return suffix[idx+1:]
	}
	return suffix
}
