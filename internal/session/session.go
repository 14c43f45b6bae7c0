// Package session implements the top-level control object a caller (CLI,
// future UI) drives to run one recording: a single active session,
// mutex-guarded, explicit Start/Stop, dependencies injected via Config — a
// value any caller can construct, run, and discard rather than a
// process-wide singleton.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quietloop/murmur/internal/scheduler"
	"github.com/quietloop/murmur/pkg/audio"
	"github.com/quietloop/murmur/pkg/decoder"
	"github.com/quietloop/murmur/pkg/types"
)

// state is the session's own lifecycle state machine: Idle -> Recording ->
// Transcribing -> Idle, plus Error from any state.
type state int

const (
	stateIdle state = iota
	stateRecording
	stateTranscribing
	stateError
)

// Config holds everything needed to construct a Session.
type Config struct {
	Pipeline scheduler.Config
	Decoder  decoder.Decoder
	Source   audio.Source
	Logger   *slog.Logger
}

// Session is the top-level object a caller drives: one PipelineScheduler
// instance per recording. Only one recording may be active on a Session at
// a time, enforced by mu.
type Session struct {
	mu    sync.Mutex
	state state

	cfg    Config
	logger *slog.Logger

	sched  *scheduler.Scheduler
	cancel context.CancelFunc
	runErr chan error
	result scheduler.FinalResult
}

// New creates a Session ready to Start. The decoder and audio source are
// injected dependencies.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, logger: logger}
}

// Start transitions Idle -> Recording: it creates a fresh PipelineScheduler,
// starts its tick loop in a background goroutine, and (if a Source was
// configured) starts pulling audio from it. Returns an error if a recording
// is already active.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateIdle {
		return fmt.Errorf("session: a recording is already active (state=%d)", s.state)
	}

	pipelineCfg := s.cfg.Pipeline
	pipelineCfg.Logger = s.logger
	s.sched = scheduler.New(pipelineCfg, s.cfg.Decoder)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.runErr = make(chan error, 1)

	go func() {
		result, err := s.sched.Run(runCtx)
		s.mu.Lock()
		s.result = result
		s.mu.Unlock()
		s.runErr <- err
	}()

	if s.cfg.Source != nil {
		go func() {
			if err := s.cfg.Source.Run(runCtx, func(samples []float32) {
				if pushErr := s.sched.PushAudio(samples); pushErr != nil {
					s.logger.Warn("session: push audio failed", "error", pushErr)
				}
			}); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("session: audio source stopped with error", "error", err)
			}
		}()
	}

	s.state = stateRecording
	return nil
}

// PushAudio hands a batch of samples to the pipeline. Safe to call from the
// capture thread, and a no-op error path once the session has stopped
// recording.
func (s *Session) PushAudio(samples []float32) error {
	s.mu.Lock()
	sched := s.sched
	recording := s.state == stateRecording
	s.mu.Unlock()

	if !recording || sched == nil {
		return types.NewPipelineError(types.AudioSourceUnavailable, errors.New("session: not recording"))
	}
	return sched.PushAudio(samples)
}

// Stop transitions Recording -> Transcribing -> Idle: it asks the scheduler
// to finalize (cancelling or draining any in-flight decode per the
// scheduler's own policy), waits for the run loop to return, and reports
// the authoritative [scheduler.FinalResult].
func (s *Session) Stop(ctx context.Context) (scheduler.FinalResult, error) {
	s.mu.Lock()
	if s.state != stateRecording {
		s.mu.Unlock()
		return scheduler.FinalResult{}, fmt.Errorf("session: no active recording to stop")
	}
	s.state = stateTranscribing
	sched := s.sched
	cancel := s.cancel
	runErr := s.runErr
	s.mu.Unlock()

	sched.Stop()

	var err error
	select {
	case err = <-runErr:
	case <-ctx.Done():
		cancel()
		err = <-runErr
	}

	s.mu.Lock()
	result := s.result
	s.state = stateIdle
	if err != nil {
		s.state = stateError
	}
	s.mu.Unlock()

	return result, err
}

// Updates returns the channel publishing (committed, speculative) text
// after each stabilizer update — the UI sink contract. Valid only after
// Start.
func (s *Session) Updates() <-chan scheduler.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Updates()
}

// Errors returns the channel publishing user-visible pipeline errors.
// Valid only after Start.
func (s *Session) Errors() <-chan *types.PipelineError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Errors()
}
