// Package wavfile implements [audio.Source] over a 16-bit PCM WAV file,
// driving the CLI demo harness and integration tests without a live
// microphone.
//
// Only one canonical RIFF/WAVE layout is understood: PCM format, 16-bit
// samples, no extension chunks. No external WAV library is used — the
// RIFF container is hand-rolled with encoding/binary, read here in reverse
// of how it is written.
package wavfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// Source reads a 16-bit PCM WAV file, downmixing multi-channel input to
// mono, and feeds it to a pipeline in fixed-size batches.
type Source struct {
	pcm        []int16
	sampleRate int

	// BatchMs is the duration of each pushed batch, in milliseconds.
	// Defaults to 100ms if zero.
	BatchMs int

	// RealTime paces delivery to match the audio's wall-clock duration.
	// When false (the default, suited to tests), batches are pushed as
	// fast as the consumer can accept them.
	RealTime bool
}

// Open reads and validates a WAV file, returning a Source ready to Run.
func Open(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: read %s: %w", path, err)
	}
	pcm, sampleRate, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode %s: %w", path, err)
	}
	return &Source{pcm: pcm, sampleRate: sampleRate, BatchMs: 100}, nil
}

// SampleRate returns the sample rate declared in the WAV file's fmt chunk.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// Run implements [audio.Source]. Delivers the file's samples, converted to
// float32 in [-1, 1], in BatchMs-sized batches, then returns nil. Returns
// ctx.Err() if cancelled first.
func (s *Source) Run(ctx context.Context, push func(samples []float32)) error {
	batchMs := s.BatchMs
	if batchMs <= 0 {
		batchMs = 100
	}
	batchSize := batchMs * s.sampleRate / 1000
	if batchSize < 1 {
		batchSize = 1
	}

	for offset := 0; offset < len(s.pcm); offset += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := offset + batchSize
		if end > len(s.pcm) {
			end = len(s.pcm)
		}
		batch := make([]float32, end-offset)
		for i, v := range s.pcm[offset:end] {
			batch[i] = float32(v) / 32768.0
		}
		push(batch)

		if s.RealTime && end < len(s.pcm) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(batchMs) * time.Millisecond):
			}
		}
	}
	return nil
}

// decode parses the minimal RIFF/WAVE/fmt/data layout produced by
// encodeWAV-style writers: PCM format, mono or multi-channel 16-bit samples.
// Multi-channel input is downmixed to mono by averaging channels.
func decode(data []byte) ([]int16, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcmBytes      []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			break
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV audio format %d, only PCM is supported", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcmBytes = data[body : body+chunkSize]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bits per sample %d, only 16-bit is supported", bitsPerSample)
	}
	if pcmBytes == nil {
		return nil, 0, fmt.Errorf("missing data chunk")
	}

	frames := len(pcmBytes) / (2 * channels)
	pcm := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			o := (i*channels + c) * 2
			sum += int32(int16(binary.LittleEndian.Uint16(pcmBytes[o : o+2])))
		}
		pcm[i] = int16(sum / int32(channels))
	}
	return pcm, sampleRate, nil
}
