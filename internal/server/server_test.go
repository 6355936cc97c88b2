package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/looptap/looptap/internal/health"
	"github.com/looptap/looptap/internal/stream"
)

// newTestServer builds a Server around stats and serves its handler from an
// httptest listener. The push interval is shortened so socket tests do not
// wait out the production cadence.
func newTestServer(t *testing.T, stats *stream.BridgeStats, h *health.Handler) *httptest.Server {
	t.Helper()
	s, err := New(Config{Addr: "127.0.0.1:0", Stats: stats, Health: h})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.pushInterval = 20 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNew_RequiresAddrAndStats(t *testing.T) {
	if _, err := New(Config{Stats: stream.NewBridgeStats(0)}); err == nil {
		t.Error("New without addr did not fail")
	}
	if _, err := New(Config{Addr: "127.0.0.1:0"}); err == nil {
		t.Error("New without stats did not fail")
	}
}

func TestStatsEndpoint_ReturnsSnapshot(t *testing.T) {
	stats := stream.NewBridgeStats(0)
	stats.RecordCaptured(480)
	stats.RecordRendered(320)
	stats.RecordDropped(1000)

	srv := newTestServer(t, stats, nil)
	resp := get(t, srv.URL+"/stats")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var snap stream.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.FramesCaptured != 480 {
		t.Errorf("FramesCaptured = %d, want 480", snap.FramesCaptured)
	}
	if snap.FramesRendered != 320 {
		t.Errorf("FramesRendered = %d, want 320", snap.FramesRendered)
	}
	if snap.DroppedChunks != 1 || snap.DroppedFrames != 1000 {
		t.Errorf("dropped = %d chunks / %d frames, want 1 / 1000", snap.DroppedChunks, snap.DroppedFrames)
	}
}

func TestHealthRoutes_ReflectBridgeState(t *testing.T) {
	var bridge health.Flag
	srv := newTestServer(t, stream.NewBridgeStats(0), health.New(bridge.Checker("bridge")))

	if resp := get(t, srv.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp := get(t, srv.URL+"/readyz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz before startup status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	bridge.Up()
	if resp := get(t, srv.URL+"/readyz"); resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz after startup status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestMetricsEndpoint_Serves(t *testing.T) {
	srv := newTestServer(t, stream.NewBridgeStats(0), nil)

	resp := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv := newTestServer(t, stream.NewBridgeStats(0), nil)

	resp := get(t, srv.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s, err := New(Config{Addr: "127.0.0.1:0", Stats: stream.NewBridgeStats(0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	s, err := New(Config{Addr: ln.Addr().String(), Stats: stream.NewBridgeStats(0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err == nil {
		t.Error("Run on an occupied port did not fail")
	}
}
