package config

// ConfigDiff describes what changed between two configs, split into the one
// change a running bridge applies live (the log level) and everything that
// only takes effect on the next run.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartNeeded lists the config sections whose new values cannot reach
	// a running bridge: stream selection, ring sizing, diagnostics.
	RestartNeeded []string
}

// Empty reports whether the diff carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartNeeded) == 0
}

// Diff compares old and new configs. The streams and the ring are negotiated
// once at startup, so every change outside the log level lands in
// RestartNeeded.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Input.DeviceID != new.Input.DeviceID || !equalProcess(old.Input.Process, new.Input.Process) {
		d.RestartNeeded = append(d.RestartNeeded, "input")
	}
	if old.Output.DeviceID != new.Output.DeviceID {
		d.RestartNeeded = append(d.RestartNeeded, "output")
	}
	if old.Ring.CapacityBytes != new.Ring.CapacityBytes {
		d.RestartNeeded = append(d.RestartNeeded, "ring")
	}
	if old.Diagnostics != new.Diagnostics {
		d.RestartNeeded = append(d.RestartNeeded, "diagnostics")
	}
	if old.PromptScript != new.PromptScript {
		d.RestartNeeded = append(d.RestartNeeded, "prompt_script")
	}

	return d
}

// equalProcess compares two optional process blocks.
func equalProcess(a, b *ProcessConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
