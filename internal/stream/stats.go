package stream

import (
	"math"
	"sort"
	"sync"
	"time"
)

// BridgeStats collects run-loop counters and ring-latency samples for the
// diagnostics endpoints. It maintains a bounded ring buffer of recent
// latency observations from which percentiles are computed on demand.
//
// Thread-safe for concurrent use; the pipeline records, the diagnostics
// server snapshots.
type BridgeStats struct {
	mu sync.Mutex

	latency latencyBuffer

	framesCaptured int64
	framesRendered int64
	droppedChunks  int64
	droppedFrames  int64
	flaggedPackets int64
}

// NewBridgeStats creates a BridgeStats retaining at most windowSize latency
// samples.
func NewBridgeStats(windowSize int) *BridgeStats {
	if windowSize <= 0 {
		windowSize = 256
	}
	return &BridgeStats{latency: newLatencyBuffer(windowSize)}
}

// RecordCaptured counts frames admitted into the ring.
func (bs *BridgeStats) RecordCaptured(frames uint32) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.framesCaptured += int64(frames)
}

// RecordRendered counts frames committed to the render endpoint.
func (bs *BridgeStats) RecordRendered(frames uint32) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.framesRendered += int64(frames)
}

// RecordDropped counts one whole capture chunk discarded on ring overrun.
func (bs *BridgeStats) RecordDropped(frames uint32) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.droppedChunks++
	bs.droppedFrames += int64(frames)
}

// RecordFlaggedPacket counts a capture packet that arrived with status flags.
func (bs *BridgeStats) RecordFlaggedPacket() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.flaggedPackets++
}

// RecordLatency records one ring-fill latency sample.
func (bs *BridgeStats) RecordLatency(d time.Duration) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.latency.add(d)
}

// LatencyPercentiles holds p50 and p95 of the retained latency window, in
// milliseconds for direct display.
type LatencyPercentiles struct {
	P50 float64 `json:"p50_ms"`
	P95 float64 `json:"p95_ms"`
}

// Snapshot is a point-in-time view of all bridge statistics.
type Snapshot struct {
	Latency        LatencyPercentiles `json:"latency"`
	FramesCaptured int64              `json:"frames_captured"`
	FramesRendered int64              `json:"frames_rendered"`
	DroppedChunks  int64              `json:"dropped_chunks"`
	DroppedFrames  int64              `json:"dropped_frames"`
	FlaggedPackets int64              `json:"flagged_packets"`
}

// Snapshot returns a point-in-time view of all bridge statistics.
func (bs *BridgeStats) Snapshot() Snapshot {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	return Snapshot{
		Latency:        bs.latency.percentiles(),
		FramesCaptured: bs.framesCaptured,
		FramesRendered: bs.framesRendered,
		DroppedChunks:  bs.droppedChunks,
		DroppedFrames:  bs.droppedFrames,
		FlaggedPackets: bs.flaggedPackets,
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, lb.data[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: millis(percentile(sorted, 0.50)),
		P95: millis(percentile(sorted, 0.95)),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
