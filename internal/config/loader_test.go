package config_test

import (
	"strings"
	"testing"

	"github.com/quietloop/murmur/internal/config"
)

func validPipelineYAML() string {
	return `
pipeline:
  tick_ms: 200
  window_ms: 8000
  commit_margin_ms: 700
  silence_ms: 800
  no_speech_threshold: 0.6
  min_token_probability: 0.3
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: whispercpp
    model_path: /models/ggml-base.en.bin
  audio:
    name: wavfile
    path: /tmp/in.wav
`
}

func TestValidate_MissingDecoderName(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  tick_ms: 200
  window_ms: 8000
  max_session_minutes: 30
  sample_rate: 16000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing decoder name, got nil")
	}
	if !strings.Contains(err.Error(), "decoder.name") {
		t.Errorf("error should mention decoder.name, got: %v", err)
	}
}

func TestValidate_WhispercppRequiresModelPath(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  tick_ms: 200
  window_ms: 8000
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: whispercpp
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for whispercpp without model_path, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") {
		t.Errorf("error should mention model_path, got: %v", err)
	}
}

func TestValidate_WavfileRequiresPath(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  tick_ms: 200
  window_ms: 8000
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: mock
  audio:
    name: wavfile
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for wavfile without path, got nil")
	}
	if !strings.Contains(err.Error(), "providers.audio.path") {
		t.Errorf("error should mention providers.audio.path, got: %v", err)
	}
}

func TestValidate_TickMsMustNotExceedWindowMs(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  tick_ms: 9000
  window_ms: 8000
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for tick_ms > window_ms, got nil")
	}
	if !strings.Contains(err.Error(), "tick_ms") {
		t.Errorf("error should mention tick_ms, got: %v", err)
	}
}

func TestValidate_ThresholdsOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  tick_ms: 200
  window_ms: 8000
  no_speech_threshold: 1.5
  min_token_probability: -0.1
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for out-of-range thresholds, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "no_speech_threshold") {
		t.Errorf("error should mention no_speech_threshold, got: %v", err)
	}
	if !strings.Contains(errStr, "min_token_probability") {
		t.Errorf("error should mention min_token_probability, got: %v", err)
	}
}

func TestValidate_WellFormedConfigIsValid(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(validPipelineYAML()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
pipeline:
  tick_ms: 200
  window_ms: 8000
  max_session_minutes: 30
  sample_rate: 16000
providers:
  decoder:
    name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	decoderNames := config.ValidProviderNames["decoder"]
	found := false
	for _, n := range decoderNames {
		if n == "whispercpp" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidProviderNames["decoder"] should contain "whispercpp"`)
	}
}
