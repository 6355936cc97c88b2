// Package config provides the configuration schema and loader for the
// looptap audio bridge.
package config

import "time"

// LogLevel controls log verbosity for the bridge.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for looptap.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Input       InputConfig       `yaml:"input"`
	Output      OutputConfig      `yaml:"output"`
	Ring        RingConfig        `yaml:"ring"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// PromptScript is an optional file whose lines answer the interactive
	// device prompts, one line per question. Empty means prompt on stdin.
	PromptScript string `yaml:"prompt_script"`
}

// InputConfig selects the capture source: a capture endpoint by ID, a
// process-loopback target, or neither (interactive selection at startup).
// DeviceID and Process are mutually exclusive.
type InputConfig struct {
	// DeviceID is the platform endpoint identifier of a capture device.
	DeviceID string `yaml:"device_id"`

	// Process, when set, taps the audio of one process instead of a device.
	Process *ProcessConfig `yaml:"process"`
}

// ProcessConfig identifies a process-loopback capture target.
type ProcessConfig struct {
	// PID is the target process identifier.
	PID uint32 `yaml:"pid"`

	// IncludeTree captures the process and its descendants when true; when
	// false the capture covers everything except that process tree.
	IncludeTree bool `yaml:"include_tree"`
}

// OutputConfig selects the render endpoint.
type OutputConfig struct {
	// DeviceID is the platform endpoint identifier of a render device.
	// Empty selects the system default render endpoint.
	DeviceID string `yaml:"device_id"`
}

// RingConfig sizes the bridge ring between capture and render.
type RingConfig struct {
	// CapacityBytes is the ring size. Zero applies the built-in default;
	// the value must be a whole number of frames of the negotiated format,
	// which is checked when the pipeline is built.
	CapacityBytes int `yaml:"capacity_bytes"`
}

// DiagnosticsConfig configures the HTTP diagnostics server.
type DiagnosticsConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":9321").
	// Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LatencyWarnMs is the buffered-audio level, in milliseconds, above which
	// the pipeline logs a warning. Zero applies the built-in default.
	LatencyWarnMs int `yaml:"latency_warn_ms"`
}

// LatencyWarn returns the warn threshold as a duration.
func (d DiagnosticsConfig) LatencyWarn() time.Duration {
	return time.Duration(d.LatencyWarnMs) * time.Millisecond
}
