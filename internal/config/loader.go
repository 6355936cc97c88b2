package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// minUsefulRing is one 10 ms engine period of 48 kHz stereo float audio.
// Smaller rings technically work but overrun on every scheduling hiccup.
const minUsefulRing = 3840

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
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
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

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Capture source
	if cfg.Input.DeviceID != "" && cfg.Input.Process != nil {
		errs = append(errs, errors.New("input.device_id and input.process are mutually exclusive"))
	}
	if p := cfg.Input.Process; p != nil && p.PID == 0 {
		errs = append(errs, errors.New("input.process.pid is required when the process block is present"))
	}

	// Ring
	if cfg.Ring.CapacityBytes < 0 {
		errs = append(errs, fmt.Errorf("ring.capacity_bytes %d is negative", cfg.Ring.CapacityBytes))
	}
	if c := cfg.Ring.CapacityBytes; c > 0 && c < minUsefulRing {
		slog.Warn("ring capacity holds less than one engine period of audio; expect overruns",
			"capacity_bytes", c,
			"one_period_bytes", minUsefulRing,
		)
	}

	// Diagnostics
	if cfg.Diagnostics.LatencyWarnMs < 0 {
		errs = append(errs, fmt.Errorf("diagnostics.latency_warn_ms %d is negative", cfg.Diagnostics.LatencyWarnMs))
	}
	if addr := cfg.Diagnostics.ListenAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("diagnostics.listen_addr %q is not a host:port address: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}
