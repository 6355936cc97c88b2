// Package endpoint models shared-mode audio endpoint clients: the contract
// between looptap's stream setup and run loop on one side and a platform
// audio stack on the other.
//
// A [Client] is the handle to one endpoint (a capture device, a render
// device, or a process-loopback tap). Clients are produced by an adapter
// package (internal/wasapi on Windows) or by the in-memory implementation in
// [github.com/looptap/looptap/pkg/endpoint/mock]. The interfaces deliberately
// mirror the shared-mode WASAPI surface — buffer leases, whole-frame
// releases, event-driven pacing — because those semantics are what the
// pipeline's correctness depends on.
package endpoint

import (
	"fmt"
	"strings"
	"time"
)

// ShareMode selects how the endpoint's hardware buffer is shared.
type ShareMode uint32

const (
	// ShareModeShared mixes this stream with other clients of the endpoint.
	ShareModeShared ShareMode = 0

	// ShareModeExclusive takes the endpoint over. Streaming setup never
	// requests it; the constant exists so adapters can name the mode they
	// refuse.
	ShareModeExclusive ShareMode = 1
)

// StreamFlags is the bit set passed to [Client.Initialize].
type StreamFlags uint32

const (
	// FlagLoopback taps a render endpoint's output instead of a microphone.
	FlagLoopback StreamFlags = 0x00020000

	// FlagEventCallback makes the endpoint signal the bound [Event] each
	// time a period of data is ready (capture) or consumed (render).
	FlagEventCallback StreamFlags = 0x00040000
)

// PacketFlags annotates a captured packet. Flags are diagnostics only; the
// pipeline logs them and moves on.
type PacketFlags uint32

const (
	// FlagDataDiscontinuity marks a gap since the previous packet.
	FlagDataDiscontinuity PacketFlags = 0x1

	// FlagSilent marks a packet whose buffer should be treated as silence.
	FlagSilent PacketFlags = 0x2

	// FlagTimestampError marks an unreliable device position.
	FlagTimestampError PacketFlags = 0x4
)

// String lists the set flags, e.g. "discontinuity|silent".
func (p PacketFlags) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	if p&FlagDataDiscontinuity != 0 {
		parts = append(parts, "discontinuity")
	}
	if p&FlagSilent != 0 {
		parts = append(parts, "silent")
	}
	if p&FlagTimestampError != 0 {
		parts = append(parts, "timestamp-error")
	}
	if rest := p &^ (FlagDataDiscontinuity | FlagSilent | FlagTimestampError); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Category hints the platform at the stream's purpose so it can pick routing
// and processing policy. Only [CategoryMedia] is used by the low-latency
// setup path; the rest exist for completeness of the adapter surface.
type Category uint32

const (
	CategoryOther          Category = 0
	CategoryCommunications Category = 3
	CategorySpeech         Category = 9
	CategoryMovie          Category = 10
	CategoryMedia          Category = 11
)

// Flow distinguishes endpoint directions during enumeration.
type Flow int

const (
	// FlowRender enumerates output endpoints (speakers, headphones).
	FlowRender Flow = iota

	// FlowCapture enumerates input endpoints (microphones, line-in).
	FlowCapture
)

// String returns "render" or "capture".
func (f Flow) String() string {
	if f == FlowCapture {
		return "capture"
	}
	return "render"
}

// DeviceInfo identifies one enumerated endpoint.
type DeviceInfo struct {
	// ID is the platform endpoint identifier, stable across sessions.
	ID string

	// Name is the human-readable device name.
	Name string
}

// EnginePeriods reports the engine scheduling quanta an endpoint supports,
// all in frames at the format the query was made with.
type EnginePeriods struct {
	Default     uint32
	Fundamental uint32
	Min         uint32
	Max         uint32
}

// Event is the wake primitive an endpoint signals when it wants service.
// Adapters back it with an OS event object; the mock backs it with a channel.
// Set and Wait are safe to call from different goroutines.
type Event interface {
	// Set signals the event. Signaling an already-signaled event is a no-op.
	Set() error

	// Wait blocks until the event is signaled or the timeout elapses,
	// consuming the signal. It returns false when the wait timed out.
	// A negative timeout waits forever.
	Wait(timeout time.Duration) (bool, error)

	// Close releases the event. Waiting or setting after Close is undefined.
	Close() error
}

// Client is the handle to one shared-mode audio endpoint. A Client starts
// uninitialized; the expected call sequence is the one stream.Setup performs:
// format selection, Initialize (or the low-latency variant), BufferSize,
// SetEventHandle, Start, then service acquisition. Clients are not safe for
// concurrent use; the pipeline drives each one from a single goroutine.
type Client interface {
	// MixFormat returns the endpoint's preferred shared-mode format. Process
	// loopback endpoints do not report one and return an error; callers fall
	// back to [DefaultFormat].
	MixFormat() (*Format, error)

	// Initialize sets up the stream in the given mode with the given flags
	// and requested buffer duration. The format is captured by the endpoint;
	// the caller may not mutate it afterwards.
	Initialize(mode ShareMode, flags StreamFlags, bufferDuration time.Duration, f *Format) error

	// LowLatency reports whether the endpoint supports engine-period
	// negotiation and, if so, returns the extended surface for it.
	// Initialization then goes through [LowLatencyClient.InitializeLowLatency]
	// instead of [Client.Initialize].
	LowLatency() (LowLatencyClient, bool)

	// BufferSize returns the allocated hardware buffer size in frames.
	// Valid only after initialization.
	BufferSize() (uint32, error)

	// SetEventHandle binds ev as the stream's wake event. Must be called
	// after initialization and before Start.
	SetEventHandle(ev Event) error

	// Start begins streaming.
	Start() error

	// Stop halts streaming. The pipeline never calls it (teardown is by
	// process exit); it exists for tests and adapters.
	Stop() error

	// Padding returns the number of frames of the hardware buffer that are
	// queued and not yet consumed by the endpoint. Render side only.
	Padding() (uint32, error)

	// CaptureService returns the packet-reading surface of an initialized
	// capture stream.
	CaptureService() (CaptureClient, error)

	// RenderService returns the buffer-writing surface of an initialized
	// render stream.
	RenderService() (RenderClient, error)

	// Close releases the endpoint handle.
	Close() error
}

// LowLatencyClient is the period-negotiation extension of [Client].
type LowLatencyClient interface {
	// SetCategory declares the stream purpose. Must precede initialization.
	SetCategory(c Category) error

	// EnginePeriods queries the supported engine quanta for format f.
	EnginePeriods(f *Format) (EnginePeriods, error)

	// InitializeLowLatency sets up an event-driven shared-mode stream running
	// at the given engine period in frames, normally [EnginePeriods.Min].
	InitializeLowLatency(periodFrames uint32, f *Format) error
}

// CaptureClient reads packets from an initialized capture stream.
type CaptureClient interface {
	// Buffer leases the next filled packet. data aliases the hardware buffer
	// and is valid only until ReleaseBuffer; frames is the packet length in
	// frames. A nil data with zero frames means no packet is ready this
	// cycle (nothing to release).
	Buffer() (data []byte, frames uint32, flags PacketFlags, err error)

	// ReleaseBuffer returns the leased packet. frames must be the full
	// packet length to consume it or zero to drop it whole; partial releases
	// are a contract violation.
	ReleaseBuffer(frames uint32) error

	// NextPacketSize returns the length in frames of the next queued packet,
	// zero when the queue is empty.
	NextPacketSize() (uint32, error)
}

// RenderClient writes frames into an initialized render stream.
type RenderClient interface {
	// Buffer leases space for up to frames frames. The returned slice
	// aliases the hardware buffer, is write-only, and is valid until
	// ReleaseBuffer.
	Buffer(frames uint32) ([]byte, error)

	// ReleaseBuffer commits the first frames frames of the leased buffer.
	// frames may be smaller than the lease; it must count whole frames.
	ReleaseBuffer(frames uint32) error
}
