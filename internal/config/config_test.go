package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quietloop/murmur/internal/config"
	"github.com/quietloop/murmur/pkg/audio"
	"github.com/quietloop/murmur/pkg/decoder"
	"github.com/quietloop/murmur/pkg/types"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  log_level: info

pipeline:
  tick_ms: 200
  window_ms: 8000
  commit_margin_ms: 700
  max_prompt_chars: 200
  silence_ms: 800
  no_speech_threshold: 0.6
  min_token_probability: 0.3
  max_session_minutes: 30
  sample_rate: 16000

providers:
  decoder:
    name: whispercpp
    model_path: /models/ggml-base.en.bin
    options:
      language: en
  audio:
    name: wavfile
    path: /tmp/in.wav
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogLevelInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogLevelInfo)
	}
	if cfg.Pipeline.TickMs != 200 {
		t.Errorf("pipeline.tick_ms: got %d, want 200", cfg.Pipeline.TickMs)
	}
	if cfg.Pipeline.WindowMs != 8000 {
		t.Errorf("pipeline.window_ms: got %d, want 8000", cfg.Pipeline.WindowMs)
	}
	if cfg.Providers.Decoder.Name != "whispercpp" {
		t.Errorf("providers.decoder.name: got %q, want %q", cfg.Providers.Decoder.Name, "whispercpp")
	}
	if cfg.Providers.Decoder.ModelPath != "/models/ggml-base.en.bin" {
		t.Errorf("providers.decoder.model_path: got %q", cfg.Providers.Decoder.ModelPath)
	}
	if cfg.Providers.Audio.Path != "/tmp/in.wav" {
		t.Errorf("providers.audio.path: got %q", cfg.Providers.Audio.Path)
	}
}

func TestLoadFromReader_EmptyFailsRequiredDecoder(t *testing.T) {
	// An empty config has no decoder name and no pipeline timing, so it
	// must fail validation rather than silently producing a zero Config.
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for empty config, got nil")
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	yaml := `
pipeline:
  tick_ms: 200
  window_ms: 8000
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: mock
unknown_top_level_field: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

// ── Registry ───────────────────────────────────────────────────────────────────

func TestRegistry_RegisteredDecoder(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubDecoder{}
	reg.RegisterDecoder("stub", func(e config.ProviderEntry) (decoder.Decoder, error) {
		return want, nil
	})
	got, err := reg.CreateDecoder(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned decoder is not the expected instance")
	}
}

func TestRegistry_RegisteredAudio(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubSource{}
	reg.RegisterAudio("stub", func(e config.ProviderEntry) (audio.Source, error) {
		return want, nil
	})
	got, err := reg.CreateAudio(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned source is not the expected instance")
	}
}

func TestRegistry_UnregisteredNameErrors(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateDecoder(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterDecoder("broken", func(e config.ProviderEntry) (decoder.Decoder, error) {
		return nil, wantErr
	})
	_, err := reg.CreateDecoder(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

// ── Stub implementations (satisfy interfaces for the compiler) ────────────────

type stubDecoder struct{}

func (s *stubDecoder) TranscribeWindow(_ context.Context, _ []float32, _ int, _ string) (types.DecodeResult, error) {
	return types.DecodeResult{}, nil
}
func (s *stubDecoder) TranscribeFull(_ context.Context, _ []float32) (string, error) { return "", nil }

type stubSource struct{}

func (s *stubSource) Run(_ context.Context, _ func(samples []float32)) error { return nil }
