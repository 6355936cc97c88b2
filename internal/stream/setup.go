// Package stream owns the audio path: format and buffer negotiation for one
// endpoint client ([Setup]), the capture→render run loop ([Pipeline]), and
// the byte ring between them ([NewRing]).
package stream

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/looptap/looptap/pkg/endpoint"
)

// Role says which direction a client streams in. Capture clients get the
// loopback flag on the basic initialization path; render clients do not.
type Role int

const (
	RoleCapture Role = iota
	RoleRender
)

// String returns "capture" or "render".
func (r Role) String() string {
	if r == RoleCapture {
		return "capture"
	}
	return "render"
}

// fallbackPeriod is the engine period requested on the basic initialization
// path, for endpoints that cannot negotiate one.
const fallbackPeriod = 10 * time.Millisecond

// Info describes a started stream.
type Info struct {
	// BlockAlign is the frame size in bytes. All ring arithmetic uses it.
	BlockAlign uint16

	// Format is the negotiated stream format.
	Format *endpoint.Format

	// Period is the engine quantum the stream runs at.
	Period time.Duration

	// BufferFrames is the allocated hardware buffer size in frames.
	BufferFrames uint32
}

// Setup negotiates, initializes, and starts a shared-mode stream on c.
//
// Format selection prefers want, then the endpoint's mix format, then the
// 48 kHz float fallback (process-loopback endpoints have no mix format, so
// the fallback is their normal route). Initialization prefers the endpoint's
// minimum negotiated engine period and falls back to a 10 ms event-driven
// stream, with the loopback flag added when role is [RoleCapture]. The
// caller supplies the wake event; one event may serve several clients.
//
// Every failure except the mix-format query is fatal and returned wrapped.
func Setup(c endpoint.Client, role Role, want *endpoint.Format, ev endpoint.Event, log *slog.Logger) (*Info, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("role", role.String())

	f := want
	switch {
	case f != nil:
		log.Debug("using caller-chosen format", "format", f)
	default:
		var err error
		f, err = c.MixFormat()
		if err != nil {
			f = endpoint.DefaultFormat()
			log.Warn("endpoint reports no mix format; using fallback", "format", f, "err", err)
		} else {
			log.Debug("using endpoint mix format", "format", f)
		}
	}

	period, err := initialize(c, role, f, log)
	if err != nil {
		return nil, err
	}

	frames, err := c.BufferSize()
	if err != nil {
		return nil, fmt.Errorf("stream: query buffer size: %w", err)
	}
	log.Info("stream initialized",
		"format", f,
		"period", period,
		"buffer_frames", frames,
	)

	if err := c.SetEventHandle(ev); err != nil {
		return nil, fmt.Errorf("stream: bind wake event: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("stream: start: %w", err)
	}

	return &Info{
		BlockAlign:   f.BlockAlign,
		Format:       f,
		Period:       period,
		BufferFrames: frames,
	}, nil
}

// initialize picks the low-latency path when the endpoint offers it and the
// basic 10 ms path otherwise, returning the period the stream runs at.
func initialize(c endpoint.Client, role Role, f *endpoint.Format, log *slog.Logger) (time.Duration, error) {
	ll, ok := c.LowLatency()
	if !ok {
		flags := endpoint.FlagEventCallback
		if role == RoleCapture {
			flags |= endpoint.FlagLoopback
		}
		if err := c.Initialize(endpoint.ShareModeShared, flags, fallbackPeriod, f); err != nil {
			return 0, fmt.Errorf("stream: initialize: %w", err)
		}
		log.Debug("endpoint lacks period negotiation; using basic path", "period", fallbackPeriod)
		return fallbackPeriod, nil
	}

	if err := ll.SetCategory(endpoint.CategoryMedia); err != nil {
		return 0, fmt.Errorf("stream: set stream category: %w", err)
	}

	periods, err := ll.EnginePeriods(f)
	if err != nil {
		return 0, fmt.Errorf("stream: query engine periods: %w", err)
	}
	period := framesToDuration(periods.Min, f.SamplesPerSec)
	log.Info("negotiated engine period",
		"default_frames", periods.Default,
		"fundamental_frames", periods.Fundamental,
		"min_frames", periods.Min,
		"max_frames", periods.Max,
		"period", period,
	)

	if err := ll.InitializeLowLatency(periods.Min, f); err != nil {
		return 0, fmt.Errorf("stream: initialize low latency: %w", err)
	}
	return period, nil
}

// framesToDuration converts a frame count at the given rate to wall time.
func framesToDuration(frames, samplesPerSec uint32) time.Duration {
	if samplesPerSec == 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(samplesPerSec))
}
