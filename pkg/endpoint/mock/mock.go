// Package mock provides in-memory implementations of the [endpoint.Client],
// [endpoint.CaptureClient], [endpoint.RenderClient], [endpoint.Event], and
// [endpoint.Activator] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. Behavior mocks ([CaptureClient],
// [RenderClient]) simulate the platform's buffer-lease protocol so the run
// loop can be exercised end to end; the rest record calls and return values
// set through exported fields.
//
// Typical usage:
//
//	cap := mock.NewCaptureClient(8)
//	cap.Push(make([]byte, 800), 0)
//	ren := mock.NewRenderClient(600, 8)
//	cli := &mock.Client{Capture: cap, Render: ren}
package mock

import (
	"errors"
	"sync"
	"time"

	"github.com/looptap/looptap/pkg/endpoint"
)

// ─── Client ───────────────────────────────────────────────────────────────────

// InitCall records the arguments of one [Client.Initialize] invocation.
type InitCall struct {
	Mode           endpoint.ShareMode
	Flags          endpoint.StreamFlags
	BufferDuration time.Duration
	Format         *endpoint.Format
}

// LowLatencyInitCall records the arguments of one
// [Client.InitializeLowLatency] invocation.
type LowLatencyInitCall struct {
	PeriodFrames uint32
	Format       *endpoint.Format
}

// Client is a mock [endpoint.Client]. Set the Result/Error fields before
// use; inspect the recorded calls after. When LowLatencySupported is true
// the client also serves as its own [endpoint.LowLatencyClient].
type Client struct {
	mu sync.Mutex

	// MixFormatResult is returned by MixFormat when MixFormatError is nil.
	MixFormatResult *endpoint.Format

	// MixFormatError makes MixFormat fail, driving callers onto the
	// fallback format path.
	MixFormatError error

	// LowLatencySupported makes LowLatency return the client itself.
	LowLatencySupported bool

	// EnginePeriodsResult is returned by EnginePeriods.
	EnginePeriodsResult endpoint.EnginePeriods

	// EnginePeriodsError is returned by EnginePeriods.
	EnginePeriodsError error

	// BufferSizeResult is returned by BufferSize.
	BufferSizeResult uint32

	// InitializeError is returned by Initialize and InitializeLowLatency.
	InitializeError error

	// StartError is returned by Start.
	StartError error

	// Capture is returned by CaptureService. A nil Capture makes
	// CaptureService fail.
	Capture *CaptureClient

	// Render is returned by RenderService. A nil Render makes RenderService
	// fail. Padding is answered from Render's queued-frame count unless
	// PaddingFunc overrides it.
	Render *RenderClient

	// PaddingFunc, when set, answers Padding directly.
	PaddingFunc func() (uint32, error)

	// InitCalls records Initialize invocations.
	InitCalls []InitCall

	// LowLatencyInitCalls records InitializeLowLatency invocations.
	LowLatencyInitCalls []LowLatencyInitCall

	// Categories records SetCategory invocations.
	Categories []endpoint.Category

	// EventHandles records SetEventHandle invocations.
	EventHandles []endpoint.Event

	// CallCountStart and CallCountStop record Start/Stop invocations.
	CallCountStart int
	CallCountStop  int
}

var (
	_ endpoint.Client           = (*Client)(nil)
	_ endpoint.LowLatencyClient = (*Client)(nil)
)

// MixFormat implements [endpoint.Client].
func (c *Client) MixFormat() (*endpoint.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MixFormatError != nil {
		return nil, c.MixFormatError
	}
	if c.MixFormatResult == nil {
		return endpoint.DefaultFormat(), nil
	}
	return c.MixFormatResult, nil
}

// Initialize implements [endpoint.Client]. Records the call.
func (c *Client) Initialize(mode endpoint.ShareMode, flags endpoint.StreamFlags, bufferDuration time.Duration, f *endpoint.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InitCalls = append(c.InitCalls, InitCall{Mode: mode, Flags: flags, BufferDuration: bufferDuration, Format: f})
	return c.InitializeError
}

// LowLatency implements [endpoint.Client].
func (c *Client) LowLatency() (endpoint.LowLatencyClient, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.LowLatencySupported {
		return nil, false
	}
	return c, true
}

// SetCategory implements [endpoint.LowLatencyClient]. Records the category.
func (c *Client) SetCategory(cat endpoint.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Categories = append(c.Categories, cat)
	return nil
}

// EnginePeriods implements [endpoint.LowLatencyClient].
func (c *Client) EnginePeriods(_ *endpoint.Format) (endpoint.EnginePeriods, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.EnginePeriodsResult, c.EnginePeriodsError
}

// InitializeLowLatency implements [endpoint.LowLatencyClient]. Records the call.
func (c *Client) InitializeLowLatency(periodFrames uint32, f *endpoint.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LowLatencyInitCalls = append(c.LowLatencyInitCalls, LowLatencyInitCall{PeriodFrames: periodFrames, Format: f})
	return c.InitializeError
}

// BufferSize implements [endpoint.Client].
func (c *Client) BufferSize() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BufferSizeResult, nil
}

// SetEventHandle implements [endpoint.Client]. Records ev.
func (c *Client) SetEventHandle(ev endpoint.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EventHandles = append(c.EventHandles, ev)
	return nil
}

// Start implements [endpoint.Client].
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStart++
	return c.StartError
}

// Stop implements [endpoint.Client].
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStop++
	return nil
}

// Padding implements [endpoint.Client]. Answers from PaddingFunc when set,
// otherwise from the render mock's queued-frame count.
func (c *Client) Padding() (uint32, error) {
	c.mu.Lock()
	pf := c.PaddingFunc
	r := c.Render
	c.mu.Unlock()
	if pf != nil {
		return pf()
	}
	if r == nil {
		return 0, errors.New("mock: no render side configured")
	}
	return r.Queued(), nil
}

// CaptureService implements [endpoint.Client].
func (c *Client) CaptureService() (endpoint.CaptureClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Capture == nil {
		return nil, errors.New("mock: no capture service configured")
	}
	return c.Capture, nil
}

// RenderService implements [endpoint.Client].
func (c *Client) RenderService() (endpoint.RenderClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Render == nil {
		return nil, errors.New("mock: no render service configured")
	}
	return c.Render, nil
}

// Close implements [endpoint.Client].
func (c *Client) Close() error { return nil }

// ─── CaptureClient ────────────────────────────────────────────────────────────

// packet is one scripted capture packet.
type packet struct {
	data  []byte
	flags endpoint.PacketFlags
}

// CaptureClient is a behavior mock of [endpoint.CaptureClient]: a queue of
// scripted packets served through the lease/release protocol. Push packets,
// run the consumer, then inspect Released.
type CaptureClient struct {
	mu sync.Mutex

	align   int
	packets []packet
	leased  bool

	// BufferError makes Buffer fail.
	BufferError error

	// Released records every ReleaseBuffer argument in call order. A zero
	// entry is a dropped packet.
	Released []uint32
}

var _ endpoint.CaptureClient = (*CaptureClient)(nil)

// NewCaptureClient creates a capture mock for frames of the given byte
// alignment.
func NewCaptureClient(blockAlign int) *CaptureClient {
	return &CaptureClient{align: blockAlign}
}

// Push appends a scripted packet. len(data) must be a whole number of frames.
func (c *CaptureClient) Push(data []byte, flags endpoint.PacketFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, packet{data: data, flags: flags})
}

// Buffer implements [endpoint.CaptureClient]. It leases the head packet, or
// reports no data when the queue is empty.
func (c *CaptureClient) Buffer() ([]byte, uint32, endpoint.PacketFlags, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BufferError != nil {
		return nil, 0, 0, c.BufferError
	}
	if c.leased {
		return nil, 0, 0, errors.New("mock: Buffer while a packet lease is outstanding")
	}
	if len(c.packets) == 0 {
		return nil, 0, 0, nil
	}
	c.leased = true
	p := c.packets[0]
	return p.data, uint32(len(p.data) / c.align), p.flags, nil
}

// ReleaseBuffer implements [endpoint.CaptureClient]. The leased packet is
// consumed regardless of frames; frames is recorded for assertions.
func (c *CaptureClient) ReleaseBuffer(frames uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.leased {
		return errors.New("mock: ReleaseBuffer without a packet lease")
	}
	c.leased = false
	c.packets = c.packets[1:]
	c.Released = append(c.Released, frames)
	return nil
}

// NextPacketSize implements [endpoint.CaptureClient].
func (c *CaptureClient) NextPacketSize() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.packets) == 0 {
		return 0, nil
	}
	return uint32(len(c.packets[0].data) / c.align), nil
}

// Pending returns the number of queued packets.
func (c *CaptureClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

// ─── RenderClient ─────────────────────────────────────────────────────────────

// RenderClient is a behavior mock of [endpoint.RenderClient]: a simulated
// hardware buffer of a fixed frame capacity. Committed bytes accumulate in
// Written; the queued-frame count backs the owning [Client]'s Padding until
// the test drains it with [RenderClient.Consume].
type RenderClient struct {
	mu sync.Mutex

	capacity uint32
	align    int
	queued   uint32
	lease    []byte

	// BufferError makes Buffer fail.
	BufferError error

	// Written accumulates every committed byte in commit order.
	Written []byte

	// BufferCalls records every Buffer argument.
	BufferCalls []uint32

	// ReleaseCalls records every ReleaseBuffer argument.
	ReleaseCalls []uint32
}

var _ endpoint.RenderClient = (*RenderClient)(nil)

// NewRenderClient creates a render mock with the given hardware buffer
// capacity in frames and byte alignment.
func NewRenderClient(capacityFrames uint32, blockAlign int) *RenderClient {
	return &RenderClient{capacity: capacityFrames, align: blockAlign}
}

// Buffer implements [endpoint.RenderClient].
func (r *RenderClient) Buffer(frames uint32) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.BufferError != nil {
		return nil, r.BufferError
	}
	if r.lease != nil {
		return nil, errors.New("mock: Buffer while a render lease is outstanding")
	}
	if r.queued+frames > r.capacity {
		return nil, errors.New("mock: Buffer request exceeds free hardware space")
	}
	r.BufferCalls = append(r.BufferCalls, frames)
	r.lease = make([]byte, int(frames)*r.align)
	return r.lease, nil
}

// ReleaseBuffer implements [endpoint.RenderClient]. It commits the first
// frames frames of the lease.
func (r *RenderClient) ReleaseBuffer(frames uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lease == nil {
		return errors.New("mock: ReleaseBuffer without a render lease")
	}
	n := int(frames) * r.align
	if n > len(r.lease) {
		return errors.New("mock: ReleaseBuffer larger than the lease")
	}
	r.Written = append(r.Written, r.lease[:n]...)
	r.queued += frames
	r.lease = nil
	r.ReleaseCalls = append(r.ReleaseCalls, frames)
	return nil
}

// Queued returns the simulated hardware padding in frames.
func (r *RenderClient) Queued() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queued
}

// Consume simulates the endpoint playing frames frames, freeing hardware
// space for the next render pass.
func (r *RenderClient) Consume(frames uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if frames > r.queued {
		frames = r.queued
	}
	r.queued -= frames
}

// Fill pre-loads the simulated hardware buffer with frames queued frames,
// without going through the lease protocol.
func (r *RenderClient) Fill(frames uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if frames > r.capacity {
		frames = r.capacity
	}
	r.queued = frames
}

// ─── Event ────────────────────────────────────────────────────────────────────

// Event is a channel-backed [endpoint.Event] with auto-reset semantics: one
// Wait consumes one Set, extra Sets while signaled collapse into one.
type Event struct {
	ch        chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

var _ endpoint.Event = (*Event)(nil)

// NewEvent creates an unsignaled Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1), done: make(chan struct{})}
}

// Set implements [endpoint.Event].
func (e *Event) Set() error {
	select {
	case e.ch <- struct{}{}:
	default:
	}
	return nil
}

// Wait implements [endpoint.Event].
func (e *Event) Wait(timeout time.Duration) (bool, error) {
	if timeout < 0 {
		select {
		case <-e.ch:
			return true, nil
		case <-e.done:
			return false, errors.New("mock: event closed")
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.ch:
		return true, nil
	case <-e.done:
		return false, errors.New("mock: event closed")
	case <-t.C:
		return false, nil
	}
}

// Close implements [endpoint.Event].
func (e *Event) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}

// ─── Activator ────────────────────────────────────────────────────────────────

// Operation is a mock [endpoint.Operation].
type Operation struct {
	mu sync.Mutex

	// ResultClient is returned by Result.
	ResultClient endpoint.Client

	// ResultError is returned by Result.
	ResultError error

	// CallCountResult records how many times Result was called.
	CallCountResult int
}

var _ endpoint.Operation = (*Operation)(nil)

// Result implements [endpoint.Operation].
func (o *Operation) Result() (endpoint.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountResult++
	return o.ResultClient, o.ResultError
}

// ActivateCall records the arguments of one activation submission.
type ActivateCall struct {
	Target endpoint.LoopbackTarget
}

// Activator is a mock [endpoint.Activator]. Submissions are recorded and the
// completion callbacks retained; tests decide when an activation finishes by
// calling [Activator.Complete], or set AutoComplete to have each submission
// finish on its own goroutine immediately.
type Activator struct {
	mu sync.Mutex

	// Op is the pending operation returned by every submission.
	Op *Operation

	// SubmitError makes submission fail synchronously; no callback is
	// retained in that case.
	SubmitError error

	// AutoComplete fires each submission's callback from a fresh goroutine
	// as soon as it is submitted, like a prompt platform worker.
	AutoComplete bool

	// Calls records all submissions.
	Calls []ActivateCall

	completions []func(endpoint.Operation)
}

var _ endpoint.Activator = (*Activator)(nil)

// ActivateProcessLoopback implements [endpoint.Activator].
func (a *Activator) ActivateProcessLoopback(target endpoint.LoopbackTarget, completed func(endpoint.Operation)) (endpoint.Operation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SubmitError != nil {
		return nil, a.SubmitError
	}
	a.Calls = append(a.Calls, ActivateCall{Target: target})
	if a.AutoComplete {
		go completed(a.Op)
	} else {
		a.completions = append(a.completions, completed)
	}
	return a.Op, nil
}

// Complete fires every retained completion callback once, in submission
// order, simulating the platform's worker thread. The retained list is
// cleared so a second Complete is a no-op.
func (a *Activator) Complete() {
	a.mu.Lock()
	cbs := a.completions
	a.completions = nil
	op := a.Op
	a.mu.Unlock()
	for _, cb := range cbs {
		go cb(op)
	}
}

// CompleteSync is [Activator.Complete] on the caller's goroutine, for tests
// that need the callback finished before asserting.
func (a *Activator) CompleteSync() {
	a.mu.Lock()
	cbs := a.completions
	a.completions = nil
	op := a.Op
	a.mu.Unlock()
	for _, cb := range cbs {
		cb(op)
	}
}
