// Package observe provides application-wide observability primitives for
// looptap: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all looptap metrics.
const meterName = "github.com/looptap/looptap"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Bridge histograms ---

	// BridgeLatency tracks the buffered audio between capture and render,
	// expressed as wall time at the stream rate.
	BridgeLatency metric.Float64Histogram

	// ActivationDuration tracks how long endpoint activation takes. Use with
	// attribute:
	//   attribute.String("status", "ok"|"error")
	ActivationDuration metric.Float64Histogram

	// --- Frame counters ---

	// FramesCaptured counts frames admitted to the bridge ring.
	FramesCaptured metric.Int64Counter

	// FramesRendered counts frames committed to the render endpoint.
	FramesRendered metric.Int64Counter

	// FramesDropped counts frames discarded because the ring was full.
	FramesDropped metric.Int64Counter

	// --- Event counters ---

	// OverrunDrops counts whole capture chunks discarded on ring overrun.
	OverrunDrops metric.Int64Counter

	// FlaggedPackets counts capture packets carrying status flags. Use with
	// attribute:
	//   attribute.String("flags", ...)
	FlaggedPackets metric.Int64Counter

	// --- Gauges ---

	// ActiveStreams tracks the number of started endpoint streams. Use with
	// attribute:
	//   attribute.String("role", "capture"|"render")
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for shared-mode audio path latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.BridgeLatency, err = m.Float64Histogram("looptap.bridge.latency",
		metric.WithDescription("Audio buffered between capture and render, as wall time at the stream rate."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActivationDuration, err = m.Float64Histogram("looptap.activate.duration",
		metric.WithDescription("Latency of endpoint activation by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Frame counters.
	if met.FramesCaptured, err = m.Int64Counter("looptap.capture.frames",
		metric.WithDescription("Total frames admitted to the bridge ring."),
	); err != nil {
		return nil, err
	}
	if met.FramesRendered, err = m.Int64Counter("looptap.render.frames",
		metric.WithDescription("Total frames committed to the render endpoint."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("looptap.bridge.dropped_frames",
		metric.WithDescription("Total frames discarded because the bridge ring was full."),
	); err != nil {
		return nil, err
	}

	// Event counters.
	if met.OverrunDrops, err = m.Int64Counter("looptap.bridge.overruns",
		metric.WithDescription("Whole capture chunks discarded on ring overrun."),
	); err != nil {
		return nil, err
	}
	if met.FlaggedPackets, err = m.Int64Counter("looptap.capture.flagged_packets",
		metric.WithDescription("Capture packets carrying status flags, by flag set."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("looptap.streams.active",
		metric.WithDescription("Number of started endpoint streams by role."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("looptap.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordBridgeLatency is a convenience method that records one bridge latency
// observation.
func (m *Metrics) RecordBridgeLatency(ctx context.Context, d time.Duration) {
	m.BridgeLatency.Record(ctx, d.Seconds())
}

// RecordActivation is a convenience method that records one endpoint
// activation with its outcome.
func (m *Metrics) RecordActivation(ctx context.Context, d time.Duration, status string) {
	m.ActivationDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCaptured is a convenience method that counts frames admitted to the
// ring.
func (m *Metrics) RecordCaptured(ctx context.Context, frames uint32) {
	m.FramesCaptured.Add(ctx, int64(frames))
}

// RecordRendered is a convenience method that counts frames committed to the
// render endpoint.
func (m *Metrics) RecordRendered(ctx context.Context, frames uint32) {
	m.FramesRendered.Add(ctx, int64(frames))
}

// RecordOverrun is a convenience method that counts one dropped chunk and the
// frames it carried.
func (m *Metrics) RecordOverrun(ctx context.Context, frames uint32) {
	m.OverrunDrops.Add(ctx, 1)
	m.FramesDropped.Add(ctx, int64(frames))
}

// RecordFlaggedPacket is a convenience method that counts one flagged capture
// packet by its flag set.
func (m *Metrics) RecordFlaggedPacket(ctx context.Context, flags string) {
	m.FlaggedPackets.Add(ctx, 1,
		metric.WithAttributes(attribute.String("flags", flags)),
	)
}

// RecordStreamStarted is a convenience method that bumps the active-stream
// gauge for a role.
func (m *Metrics) RecordStreamStarted(ctx context.Context, role string) {
	m.ActiveStreams.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", role)),
	)
}

// RecordStreamStopped is the inverse of [Metrics.RecordStreamStarted].
func (m *Metrics) RecordStreamStopped(ctx context.Context, role string) {
	m.ActiveStreams.Add(ctx, -1,
		metric.WithAttributes(attribute.String("role", role)),
	)
}
