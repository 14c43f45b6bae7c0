package session

import (
	"context"
	"testing"
	"time"

	"github.com/quietloop/murmur/internal/scheduler"
	audiomock "github.com/quietloop/murmur/pkg/audio/mock"
	decodermock "github.com/quietloop/murmur/pkg/decoder/mock"
	"github.com/quietloop/murmur/pkg/types"
)

func testPipelineConfig() scheduler.Config {
	return scheduler.Config{
		TickMs:              20,
		WindowMs:            600,
		CommitMarginMs:      50,
		MaxPromptChars:      100,
		SilenceMs:           300,
		NoSpeechThreshold:   0.6,
		MinTokenProbability: 0.3,
		MaxSessionMinutes:   60,
		SampleRate:          16000,
	}
}

func makeBatch(n int, amplitude float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude
	}
	return out
}

func TestSession_StartPushStop(t *testing.T) {
	dec := &decodermock.Decoder{
		WindowResults: []decodermock.WindowResult{
			{Result: types.DecodeResult{Segments: []types.Segment{
				{Text: "hello there", StartMs: 0, EndMs: 100},
			}}},
		},
		FullResult: "hello there",
	}
	src := &audiomock.Source{Batches: [][]float32{makeBatch(3200, 0.5)}}

	s := New(Config{Pipeline: testPipelineConfig(), Decoder: dec, Source: src})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.PushAudio(makeBatch(1600, 0.5)); err != nil {
		t.Fatalf("PushAudio: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := s.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.FullTranscript != "hello there" {
		t.Fatalf("FullTranscript = %q, want %q", result.FullTranscript, "hello there")
	}
}

func TestSession_StartTwiceRejected(t *testing.T) {
	dec := &decodermock.Decoder{}
	s := New(Config{Pipeline: testPipelineConfig(), Decoder: dec})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second Start: want error, got nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSession_StopWithoutStartRejected(t *testing.T) {
	s := New(Config{Pipeline: testPipelineConfig(), Decoder: &decodermock.Decoder{}})

	if _, err := s.Stop(context.Background()); err == nil {
		t.Fatal("Stop before Start: want error, got nil")
	}
}

func TestSession_PushAudioBeforeStartRejected(t *testing.T) {
	s := New(Config{Pipeline: testPipelineConfig(), Decoder: &decodermock.Decoder{}})

	if err := s.PushAudio(makeBatch(100, 0.1)); err == nil {
		t.Fatal("PushAudio before Start: want error, got nil")
	}
}

func TestSession_UpdatesChannelReceivesCommits(t *testing.T) {
	dec := &decodermock.Decoder{
		WindowResults: []decodermock.WindowResult{
			{Result: types.DecodeResult{Segments: []types.Segment{
				{Text: "one two three", StartMs: 0, EndMs: 150},
			}}},
		},
		FullResult: "one two three",
	}
	s := New(Config{Pipeline: testPipelineConfig(), Decoder: dec})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = s.PushAudio(makeBatch(9600, 0.5))

	select {
	case u := <-s.Updates():
		if u.Committed == "" && u.Speculative == "" {
			t.Fatal("received empty update")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an update")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
