package config

// ConfigDiff describes what changed between two configs. PipelineConfig and
// ProvidersConfig are constant for the lifetime of a recording session (a
// running Session owns its own Scheduler/Decoder instances), so only the
// log level is tracked as safely hot-reloadable.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	return d
}
