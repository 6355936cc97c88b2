package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a TracerProvider with an in-memory exporter
// for inspecting recorded spans.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// installTracerProvider registers tp as the global provider for the duration
// of the test.
func installTracerProvider(t *testing.T, tp *sdktrace.TracerProvider) {
	t.Helper()
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
}

// captureLogs redirects the default slog logger into a buffer until the test
// finishes.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	installTracerProvider(t, tp)

	ctx, span := StartSpan(context.Background(), "activate capture endpoint")
	cid := CorrelationID(ctx)
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "activate capture endpoint" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "activate capture endpoint")
	}
	if want := spans[0].SpanContext.TraceID().String(); cid != want {
		t.Errorf("CorrelationID = %q, want trace ID %q", cid, want)
	}
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_IsLowercaseHex(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	installTracerProvider(t, tp)

	ctx, span := StartSpan(context.Background(), "bridge startup")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID length = %d, want 32", len(cid))
	}
	if strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("correlation ID %q contains non-hex characters", cid)
	}
}

func TestLogger_CarriesSpanIdentity(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	installTracerProvider(t, tp)
	buf := captureLogs(t)

	ctx, span := StartSpan(context.Background(), "stream setup")
	defer span.End()

	Logger(ctx).Info("stream initialized", "role", "capture")

	out := buf.String()
	for _, want := range []string{"trace_id=", "span_id=", "role=capture"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q, got: %s", want, out)
		}
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	buf := captureLogs(t)

	Logger(context.Background()).Info("bridge running")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log output should not contain trace_id, got: %s", buf.String())
	}
}
