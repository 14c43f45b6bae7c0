package audio

import "fmt"

// RingBuffer is a fixed-capacity circular store of the most recent audio in
// a session. Absolute sample counters — never modular — are the single
// source of truth for mapping any in-buffer position back to a millisecond
// timestamp relative to session start; every commit decision made by the
// stabilizer depends on this mapping being exact.
//
// Not safe for concurrent use; callers (the scheduler) must confine all
// access to a single goroutine.
type RingBuffer struct {
	sampleRate int
	storage    []float32
	writeHead  int
	total      int64 // totalSamplesWritten, monotonic, never wraps
}

// NewRingBuffer creates a RingBuffer holding up to windowMs milliseconds of
// audio at sampleRate Hz. Panics if windowMs or sampleRate is non-positive —
// both are fixed session configuration, never user input.
func NewRingBuffer(windowMs, sampleRate int) *RingBuffer {
	if windowMs <= 0 || sampleRate <= 0 {
		panic(fmt.Sprintf("audio: invalid ring buffer params windowMs=%d sampleRate=%d", windowMs, sampleRate))
	}
	capacity := windowMs * sampleRate / 1000
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		sampleRate: sampleRate,
		storage:    make([]float32, capacity),
	}
}

// Append copies samples into storage at the write head, wrapping as needed,
// and advances the total-written counter by len(samples). There is no
// overflow failure mode: once the buffer is full, the oldest samples are
// overwritten by design.
func (r *RingBuffer) Append(samples []float32) {
	n := len(samples)
	if n == 0 {
		return
	}
	cap := len(r.storage)
	if n >= cap {
		// samples alone fill (or exceed) the buffer; only the tail matters.
		copy(r.storage, samples[n-cap:])
		r.writeHead = 0
	} else {
		end := r.writeHead + n
		if end <= cap {
			copy(r.storage[r.writeHead:end], samples)
		} else {
			first := cap - r.writeHead
			copy(r.storage[r.writeHead:], samples[:first])
			copy(r.storage[:end-cap], samples[first:])
		}
		r.writeHead = end % cap
	}
	r.total += int64(n)
}

// Window returns the in-order contents of the buffer — up to capacity newest
// samples — along with their absolute session timestamps. If nothing has
// been written yet, both timestamps are 0 and PCM is empty.
func (r *RingBuffer) Window() Window {
	if r.total == 0 {
		return Window{}
	}
	cap := int64(len(r.storage))
	available := r.total
	if available > cap {
		available = cap
	}

	out := make([]float32, available)
	if r.total <= cap {
		// Buffer has never wrapped; contents start at index 0.
		copy(out, r.storage[:available])
	} else {
		// Oldest sample lives at writeHead (the next slot to be overwritten).
		start := r.writeHead
		n := copy(out, r.storage[start:])
		copy(out[n:], r.storage[:start])
	}

	endAbsMs := r.total * 1000 / int64(r.sampleRate)
	startAbsMs := (r.total - available) * 1000 / int64(r.sampleRate)
	return Window{PCM: out, StartAbsMs: startAbsMs, EndAbsMs: endAbsMs}
}

// Reset zeros storage, the write head, and the total-written counter. Used
// at session end so the buffer can be reused for a fresh session.
func (r *RingBuffer) Reset() {
	for i := range r.storage {
		r.storage[i] = 0
	}
	r.writeHead = 0
	r.total = 0
}

// TotalSamplesWritten returns the monotonic count of samples ever appended,
// used by tests asserting the round-trip/idempotence properties.
func (r *RingBuffer) TotalSamplesWritten() int64 {
	return r.total
}

// Capacity returns the buffer's fixed sample capacity.
func (r *RingBuffer) Capacity() int {
	return len(r.storage)
}
