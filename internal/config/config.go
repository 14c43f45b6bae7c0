// Package config provides the configuration schema, loader, and provider
// registry for the murmur transcription pipeline.
package config

// Config is the root configuration structure for murmur.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds process-level logging and HTTP surface settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr is the address the /healthz, /readyz, and /metrics HTTP
	// server binds to. Defaults to ":9090" when empty.
	ListenAddr string `yaml:"listen_addr"`
}

// LogLevel is the set of accepted log verbosities.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// PipelineConfig holds the tunables of the transcription pipeline itself —
// constant for the lifetime of a recording session. Mirrors
// [scheduler.Config] field for field; the config package exists so these
// values can be loaded from YAML and validated before a Session is built.
type PipelineConfig struct {
	// TickMs is the interval between scheduler ticks.
	TickMs int `yaml:"tick_ms"`

	// WindowMs is the sliding window duration handed to the decoder on
	// each tick.
	WindowMs int `yaml:"window_ms"`

	// CommitMarginMs is subtracted from a window's end time to compute
	// the commit horizon.
	CommitMarginMs int `yaml:"commit_margin_ms"`

	// MaxPromptChars bounds the committed-text suffix used as decoder
	// context. Zero or negative disables prompting entirely.
	MaxPromptChars int `yaml:"max_prompt_chars"`

	// SilenceMs is how long RMS energy must stay below threshold before a
	// tick is skipped as silence.
	SilenceMs int `yaml:"silence_ms"`

	// NoSpeechThreshold is a no-speech probability in [0, 1]. It is
	// validated and copied into scheduler.Config; neither the scheduler nor
	// the whispercpp decoder applies it to decoded segments.
	NoSpeechThreshold float64 `yaml:"no_speech_threshold"`

	// MinTokenProbability is the confidence floor a word must meet to be
	// committed.
	MinTokenProbability float64 `yaml:"min_token_probability"`

	// MaxSessionMinutes bounds a single recording's wall-clock duration.
	MaxSessionMinutes int `yaml:"max_session_minutes"`

	// SampleRate is the audio sample rate in Hz, fixed by the decoder
	// model (16000 for whisper.cpp).
	SampleRate int `yaml:"sample_rate"`
}

// ProvidersConfig declares which implementation to use for each pluggable
// component. Each field selects a named factory registered in the
// [Registry].
type ProvidersConfig struct {
	Decoder ProviderEntry `yaml:"decoder"`
	Audio   ProviderEntry `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by both provider
// kinds. The Name field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g.,
	// "whispercpp", "wavfile", "mock").
	Name string `yaml:"name"`

	// ModelPath is the path to a local model file. Used by the whispercpp
	// decoder; ignored by other providers.
	ModelPath string `yaml:"model_path"`

	// Path is a filesystem path argument, e.g. the WAV file read by the
	// wavfile audio source.
	Path string `yaml:"path"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// String formats a ProviderEntry for log messages without leaking Options
// values that may hold secrets.
func (p ProviderEntry) String() string {
	return p.Name
}
