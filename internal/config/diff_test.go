package config_test

import (
	"testing"

	"github.com/quietloop/murmur/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogLevelInfo},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogLevelInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogLevelDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogLevelDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_PipelineChangeIsNotTracked(t *testing.T) {
	t.Parallel()
	// PipelineConfig is constant for a session's lifetime; Diff
	// deliberately ignores it — a pipeline change requires a new Session,
	// not a hot reload.
	old := &config.Config{Pipeline: config.PipelineConfig{TickMs: 200}}
	new := &config.Config{Pipeline: config.PipelineConfig{TickMs: 500}}

	d := config.Diff(old, new)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false when only pipeline fields differ")
	}
}
