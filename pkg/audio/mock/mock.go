// Package mock provides an in-memory mock implementation of [audio.Source]
// for use in unit tests.
//
// Safe for concurrent use. Records every Run call so tests can assert on
// invocation count, and lets a test script an exact batch sequence with an
// optional per-batch delay to exercise tick timing.
//
// Typical usage:
//
//	src := &mock.Source{Batches: [][]float32{batch1, batch2}}
//	err := src.Run(ctx, func(samples []float32) { ... })
package mock

import (
	"context"
	"sync"
	"time"
)

// Source is a mock implementation of [audio.Source]. Set Batches (and
// optionally BatchDelay) before use; inspect RunCount after.
type Source struct {
	mu sync.Mutex

	// Batches are delivered to the push callback in order, one per
	// BatchDelay interval (or immediately if BatchDelay is zero).
	Batches [][]float32

	// BatchDelay is the pause before delivering each batch after the first.
	BatchDelay time.Duration

	// RunError is returned by Run after all batches are delivered, unless
	// ctx is cancelled first.
	RunError error

	// RunCount records how many times Run was called.
	RunCount int
}

// Run implements [audio.Source]. Delivers Batches in order, then returns
// RunError, or returns ctx.Err() if cancelled first.
func (s *Source) Run(ctx context.Context, push func(samples []float32)) error {
	s.mu.Lock()
	s.RunCount++
	batches := s.Batches
	s.mu.Unlock()

	for i, batch := range batches {
		if i > 0 && s.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.BatchDelay):
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		push(batch)
	}
	return s.RunError
}
