package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/looptap/looptap/internal/observe"
	"github.com/looptap/looptap/pkg/endpoint"
)

const (
	// DefaultRingCapacity is the bridge ring size used when the config does
	// not set one: 250 ms of 48 kHz stereo float audio.
	DefaultRingCapacity = 96000

	// DefaultLatencyWarn is the buffered-audio level above which the pipeline
	// logs a latency warning.
	DefaultLatencyWarn = 50 * time.Millisecond

	// eventWaitTimeout bounds each wait on the endpoint wake event so the
	// loop can observe cancellation even if the devices go quiet.
	eventWaitTimeout = 100 * time.Millisecond

	// latencyWarnInterval rate-limits the high-latency warning.
	latencyWarnInterval = time.Second
)

// PipelineConfig assembles the two started streams a [Pipeline] bridges.
// Capture and Render must already be initialized and started (see [Setup])
// and must share a block alignment. Zero-value optional fields get defaults:
// RingCapacity [DefaultRingCapacity], LatencyWarn [DefaultLatencyWarn],
// Stats a fresh [BridgeStats], Metrics [observe.DefaultMetrics], Log
// [slog.Default].
type PipelineConfig struct {
	Capture     endpoint.Client
	CaptureInfo *Info

	Render     endpoint.Client
	RenderInfo *Info

	// Event is the wake event bound to both streams.
	Event endpoint.Event

	// RingCapacity is the bridge ring size in bytes. Must be a whole number
	// of frames.
	RingCapacity int

	// LatencyWarn is the buffered-audio level that triggers a warning.
	LatencyWarn time.Duration

	Stats   *BridgeStats
	Metrics *observe.Metrics
	Log     *slog.Logger
}

// Pipeline moves audio from one capture stream to one render stream through
// a fixed-capacity ring. It never blocks on either endpoint: a full ring
// drops the incoming chunk whole, an underfilled ring renders what it has.
// All endpoint access happens on the goroutine that calls [Pipeline.Run].
type Pipeline struct {
	capture   endpoint.CaptureClient
	render    endpoint.RenderClient
	renderDev endpoint.Client

	event endpoint.Event

	align        int
	rate         uint32
	bufferFrames uint32

	prod *Producer
	cons *Consumer

	stats       *BridgeStats
	metrics     *observe.Metrics
	log         *slog.Logger
	latencyWarn time.Duration
	lastWarn    time.Time
}

// NewPipeline validates cfg, acquires the capture and render services, and
// builds the bridge ring.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Capture == nil || cfg.Render == nil {
		return nil, fmt.Errorf("stream: pipeline needs both a capture and a render client")
	}
	if cfg.CaptureInfo == nil || cfg.RenderInfo == nil {
		return nil, fmt.Errorf("stream: pipeline needs stream info for both sides")
	}
	if cfg.Event == nil {
		return nil, fmt.Errorf("stream: pipeline needs the wake event")
	}

	align := int(cfg.CaptureInfo.BlockAlign)
	if align == 0 {
		return nil, fmt.Errorf("stream: capture block alignment is zero")
	}
	if ra := int(cfg.RenderInfo.BlockAlign); ra != align {
		return nil, fmt.Errorf("stream: block alignment mismatch: capture %d bytes, render %d bytes", align, ra)
	}
	rate := cfg.CaptureInfo.Format.SamplesPerSec
	if rate == 0 {
		return nil, fmt.Errorf("stream: capture sample rate is zero")
	}

	capacity := cfg.RingCapacity
	if capacity == 0 {
		capacity = DefaultRingCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("stream: ring capacity %d is negative", capacity)
	}
	if capacity%align != 0 {
		return nil, fmt.Errorf("stream: ring capacity %d is not a multiple of the %d-byte frame", capacity, align)
	}

	captureSvc, err := cfg.Capture.CaptureService()
	if err != nil {
		return nil, fmt.Errorf("stream: acquire capture service: %w", err)
	}
	renderSvc, err := cfg.Render.RenderService()
	if err != nil {
		return nil, fmt.Errorf("stream: acquire render service: %w", err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewBridgeStats(0)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	warn := cfg.LatencyWarn
	if warn == 0 {
		warn = DefaultLatencyWarn
	}

	prod, cons := NewRing(capacity)
	return &Pipeline{
		capture:      captureSvc,
		render:       renderSvc,
		renderDev:    cfg.Render,
		event:        cfg.Event,
		align:        align,
		rate:         rate,
		bufferFrames: cfg.RenderInfo.BufferFrames,
		prod:         prod,
		cons:         cons,
		stats:        stats,
		metrics:      metrics,
		log:          log.With("component", "pipeline"),
		latencyWarn:  warn,
	}, nil
}

// Stats exposes the pipeline's counters for the diagnostics server.
func (p *Pipeline) Stats() *BridgeStats { return p.stats }

// Run drives the bridge until ctx is canceled or an endpoint call fails.
// Cancellation returns ctx.Err(); endpoint failures return the wrapped error
// with no retry. Run must only be called once, and owns both endpoints while
// it runs.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("bridge running",
		"ring_bytes", p.cons.Capacity(),
		"frame_bytes", p.align,
		"render_buffer_frames", p.bufferFrames,
		"latency_warn", p.latencyWarn,
	)
	for {
		if err := ctx.Err(); err != nil {
			p.log.Info("bridge stopped", "reason", err)
			return err
		}
		// A timed-out wait services the streams anyway; with no packets
		// queued and no hardware room freed it falls straight through.
		if _, err := p.event.Wait(eventWaitTimeout); err != nil {
			return fmt.Errorf("stream: wait for endpoint event: %w", err)
		}
		if err := p.service(ctx); err != nil {
			return err
		}
	}
}

// service runs capture and render steps until neither has work left, always
// draining the ring toward the render endpoint before admitting more input.
func (p *Pipeline) service(ctx context.Context) error {
	for {
		for {
			rendered, err := p.renderStep(ctx)
			if err != nil {
				return err
			}
			if rendered == 0 {
				break
			}
		}
		admitted, more, err := p.captureStep(ctx)
		if err != nil {
			return err
		}
		if admitted == 0 && !more {
			return nil
		}
	}
}

// captureStep leases at most one capture packet and moves it into the ring.
// It reports the frames admitted (zero when no packet was ready or the chunk
// was dropped) and whether more packets are queued. Each call consumes at
// most one packet, so a dropping stream still drains its queue.
func (p *Pipeline) captureStep(ctx context.Context) (uint32, bool, error) {
	data, frames, flags, err := p.capture.Buffer()
	if err != nil {
		return 0, false, fmt.Errorf("stream: lease capture packet: %w", err)
	}
	if frames == 0 || len(data) == 0 {
		return 0, false, nil
	}
	if flags != 0 {
		p.stats.RecordFlaggedPacket()
		p.metrics.RecordFlaggedPacket(ctx, flags.String())
		p.log.Warn("capture packet flagged", "flags", flags, "frames", frames)
	}

	admitted := frames
	need := int(frames) * p.align
	if p.prod.TryWrite(data[:need]) {
		p.stats.RecordCaptured(frames)
		p.metrics.RecordCaptured(ctx, frames)
	} else {
		// Full ring: drop the chunk whole rather than stall the device or
		// split a packet.
		admitted = 0
		p.stats.RecordDropped(frames)
		p.metrics.RecordOverrun(ctx, frames)
		p.log.Warn("ring overrun, capture chunk dropped",
			"frames", frames,
			"chunk_bytes", need,
			"free_bytes", p.prod.Free(),
		)
	}
	if err := p.capture.ReleaseBuffer(admitted); err != nil {
		return 0, false, fmt.Errorf("stream: release capture packet: %w", err)
	}

	queued, err := p.capture.NextPacketSize()
	if err != nil {
		return 0, false, fmt.Errorf("stream: query capture queue: %w", err)
	}
	return admitted, queued > 0, nil
}

// renderStep fills the render endpoint from the ring and reports the frames
// committed. With an empty ring or a full hardware buffer it does nothing.
func (p *Pipeline) renderStep(ctx context.Context) (uint32, error) {
	padding, err := p.renderDev.Padding()
	if err != nil {
		return 0, fmt.Errorf("stream: query render padding: %w", err)
	}
	if padding > p.bufferFrames {
		return 0, fmt.Errorf("stream: render padding %d exceeds the %d-frame buffer", padding, p.bufferFrames)
	}
	avail := p.bufferFrames - padding

	filled := p.cons.Buffered()
	p.observeLatency(ctx, filled)

	want := min(uint32(filled/p.align), avail)
	if want == 0 {
		return 0, nil
	}

	buf, err := p.render.Buffer(avail)
	if err != nil {
		return 0, fmt.Errorf("stream: lease render buffer: %w", err)
	}
	n := p.cons.Read(buf[:int(want)*p.align])
	frames := uint32(n / p.align)
	if err := p.render.ReleaseBuffer(frames); err != nil {
		return 0, fmt.Errorf("stream: commit render buffer: %w", err)
	}
	p.stats.RecordRendered(frames)
	p.metrics.RecordRendered(ctx, frames)
	return frames, nil
}

// observeLatency records how much audio sits in the ring, as wall time at
// the stream rate, and warns when it passes the configured threshold.
func (p *Pipeline) observeLatency(ctx context.Context, filledBytes int) {
	d := time.Duration(filledBytes) * time.Second / time.Duration(p.align*int(p.rate))
	p.stats.RecordLatency(d)
	p.metrics.RecordBridgeLatency(ctx, d)
	if d > p.latencyWarn && time.Since(p.lastWarn) >= latencyWarnInterval {
		p.lastWarn = time.Now()
		p.log.Warn("bridge latency above threshold",
			"latency", d,
			"threshold", p.latencyWarn,
			"buffered_bytes", filledBytes,
		)
	}
}
