package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"decoder": {"whispercpp", "mock"},
	"audio":   {"wavfile", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// pipeline.min_token_probability defaults to 0.30 when the YAML leaves it
// unset. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{Pipeline: PipelineConfig{MinTokenProbability: 0.30}}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("decoder", cfg.Providers.Decoder.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)

	if cfg.Providers.Decoder.Name == "" {
		errs = append(errs, errors.New("providers.decoder.name is required"))
	}
	if cfg.Providers.Decoder.Name == "whispercpp" && cfg.Providers.Decoder.ModelPath == "" {
		errs = append(errs, errors.New("providers.decoder.model_path is required when providers.decoder.name is whispercpp"))
	}
	if cfg.Providers.Audio.Name == "wavfile" && cfg.Providers.Audio.Path == "" {
		errs = append(errs, errors.New("providers.audio.path is required when providers.audio.name is wavfile"))
	}

	errs = append(errs, validatePipeline(cfg.Pipeline)...)

	return errors.Join(errs...)
}

func validatePipeline(p PipelineConfig) []error {
	var errs []error

	if p.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.tick_ms %d must be positive", p.TickMs))
	}
	if p.WindowMs <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.window_ms %d must be positive", p.WindowMs))
	}
	if p.TickMs > 0 && p.WindowMs > 0 && p.TickMs > p.WindowMs {
		errs = append(errs, fmt.Errorf("pipeline.tick_ms %d must not exceed pipeline.window_ms %d", p.TickMs, p.WindowMs))
	}
	if p.CommitMarginMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.commit_margin_ms %d must not be negative", p.CommitMarginMs))
	}
	if p.WindowMs > 0 && p.CommitMarginMs >= p.WindowMs {
		errs = append(errs, fmt.Errorf("pipeline.commit_margin_ms %d must be less than pipeline.window_ms %d", p.CommitMarginMs, p.WindowMs))
	}
	if p.SilenceMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_ms %d must not be negative", p.SilenceMs))
	}
	if p.NoSpeechThreshold < 0 || p.NoSpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.no_speech_threshold %.2f must be in [0, 1]", p.NoSpeechThreshold))
	}
	if p.MinTokenProbability < 0 || p.MinTokenProbability > 1 {
		errs = append(errs, fmt.Errorf("pipeline.min_token_probability %.2f must be in [0, 1]", p.MinTokenProbability))
	}
	if p.MaxSessionMinutes <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_session_minutes %d must be positive", p.MaxSessionMinutes))
	}
	if p.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.sample_rate %d must be positive", p.SampleRate))
	}

	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
