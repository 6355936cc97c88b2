//go:build windows

package wasapi

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/looptap/looptap/pkg/endpoint"
)

type iAudioClientVtbl struct {
	iUnknownVtbl
	initialize        uintptr
	getBufferSize     uintptr
	getStreamLatency  uintptr
	getCurrentPadding uintptr
	isFormatSupported uintptr
	getMixFormat      uintptr
	getDevicePeriod   uintptr
	start             uintptr
	stop              uintptr
	reset             uintptr
	setEventHandle    uintptr
	getService        uintptr
}

type iAudioClient struct {
	vtbl *iAudioClientVtbl
}

// iAudioClient3Vtbl extends the base client with the IAudioClient2 slots and
// the period-negotiation slots, in inheritance order.
type iAudioClient3Vtbl struct {
	iAudioClientVtbl
	isOffloadCapable                 uintptr
	setClientProperties              uintptr
	getBufferSizeLimits              uintptr
	getSharedModeEnginePeriod        uintptr
	getCurrentSharedModeEnginePeriod uintptr
	initializeSharedAudioStream      uintptr
}

type iAudioClient3 struct {
	vtbl *iAudioClient3Vtbl
}

type iAudioCaptureClientVtbl struct {
	iUnknownVtbl
	getBuffer         uintptr
	releaseBuffer     uintptr
	getNextPacketSize uintptr
}

type iAudioCaptureClient struct {
	vtbl *iAudioCaptureClientVtbl
}

type iAudioRenderClientVtbl struct {
	iUnknownVtbl
	getBuffer     uintptr
	releaseBuffer uintptr
}

type iAudioRenderClient struct {
	vtbl *iAudioRenderClientVtbl
}

// audioClientProperties mirrors the AudioClientProperties struct passed to
// SetClientProperties.
type audioClientProperties struct {
	cbSize    uint32
	isOffload uint32
	category  uint32
	options   uint32
}

// refTime converts a duration to the platform's 100 ns units.
func refTime(d time.Duration) int64 {
	return d.Nanoseconds() / 100
}

// client adapts a raw audio client to [endpoint.Client]. The frame size is
// recorded at initialization so the service wrappers can size their leases.
type client struct {
	ac         *iAudioClient
	ac3        *iAudioClient3
	blockAlign int
}

var (
	_ endpoint.Client           = (*client)(nil)
	_ endpoint.LowLatencyClient = (*client)(nil)
)

// newClient wraps ac and probes for the period-negotiation extension. The
// probe failing just means the endpoint takes the basic path.
func newClient(ac *iAudioClient) *client {
	c := &client{ac: ac}
	var ac3 *iAudioClient3
	if err := comQuery(unsafe.Pointer(ac), &ac.vtbl.iUnknownVtbl, &iidIAudioClient3, unsafe.Pointer(&ac3)); err == nil {
		c.ac3 = ac3
	}
	return c
}

func (c *client) MixFormat() (*endpoint.Format, error) {
	var p *byte
	r := comCall(c.ac.vtbl.getMixFormat, uintptr(unsafe.Pointer(c.ac)), uintptr(unsafe.Pointer(&p)))
	if err := hr("GetMixFormat", r); err != nil {
		return nil, fmt.Errorf("wasapi: query mix format: %w", err)
	}
	defer windows.CoTaskMemFree(unsafe.Pointer(p))
	return parseFormat(unsafe.Pointer(p))
}

func (c *client) Initialize(mode endpoint.ShareMode, flags endpoint.StreamFlags, bufferDuration time.Duration, f *endpoint.Format) error {
	wfx := marshalFormat(f)
	r := comCall(c.ac.vtbl.initialize,
		uintptr(unsafe.Pointer(c.ac)),
		uintptr(mode),
		uintptr(flags),
		uintptr(refTime(bufferDuration)),
		0,
		uintptr(unsafe.Pointer(&wfx[0])),
		0,
	)
	if err := hr("Initialize", r); err != nil {
		return fmt.Errorf("wasapi: initialize stream: %w", err)
	}
	c.blockAlign = int(f.BlockAlign)
	return nil
}

func (c *client) LowLatency() (endpoint.LowLatencyClient, bool) {
	if c.ac3 == nil {
		return nil, false
	}
	return c, true
}

func (c *client) SetCategory(cat endpoint.Category) error {
	props := audioClientProperties{
		cbSize:   uint32(unsafe.Sizeof(audioClientProperties{})),
		category: uint32(cat),
	}
	r := comCall(c.ac3.vtbl.setClientProperties,
		uintptr(unsafe.Pointer(c.ac3)),
		uintptr(unsafe.Pointer(&props)),
	)
	if err := hr("SetClientProperties", r); err != nil {
		return fmt.Errorf("wasapi: set stream category: %w", err)
	}
	return nil
}

func (c *client) EnginePeriods(f *endpoint.Format) (endpoint.EnginePeriods, error) {
	wfx := marshalFormat(f)
	var p endpoint.EnginePeriods
	r := comCall(c.ac3.vtbl.getSharedModeEnginePeriod,
		uintptr(unsafe.Pointer(c.ac3)),
		uintptr(unsafe.Pointer(&wfx[0])),
		uintptr(unsafe.Pointer(&p.Default)),
		uintptr(unsafe.Pointer(&p.Fundamental)),
		uintptr(unsafe.Pointer(&p.Min)),
		uintptr(unsafe.Pointer(&p.Max)),
	)
	if err := hr("GetSharedModeEnginePeriod", r); err != nil {
		return endpoint.EnginePeriods{}, fmt.Errorf("wasapi: query engine periods: %w", err)
	}
	return p, nil
}

// InitializeLowLatency always requests event-driven pacing; the wake event
// is the pipeline's only clock.
func (c *client) InitializeLowLatency(periodFrames uint32, f *endpoint.Format) error {
	wfx := marshalFormat(f)
	r := comCall(c.ac3.vtbl.initializeSharedAudioStream,
		uintptr(unsafe.Pointer(c.ac3)),
		uintptr(endpoint.FlagEventCallback),
		uintptr(periodFrames),
		uintptr(unsafe.Pointer(&wfx[0])),
		0,
	)
	if err := hr("InitializeSharedAudioStream", r); err != nil {
		return fmt.Errorf("wasapi: initialize low-latency stream: %w", err)
	}
	c.blockAlign = int(f.BlockAlign)
	return nil
}

func (c *client) BufferSize() (uint32, error) {
	var frames uint32
	r := comCall(c.ac.vtbl.getBufferSize, uintptr(unsafe.Pointer(c.ac)), uintptr(unsafe.Pointer(&frames)))
	if err := hr("GetBufferSize", r); err != nil {
		return 0, fmt.Errorf("wasapi: query buffer size: %w", err)
	}
	return frames, nil
}

func (c *client) SetEventHandle(ev endpoint.Event) error {
	eo, ok := ev.(*eventObject)
	if !ok {
		return fmt.Errorf("wasapi: bind event: %T is not a wasapi event", ev)
	}
	r := comCall(c.ac.vtbl.setEventHandle, uintptr(unsafe.Pointer(c.ac)), uintptr(eo.handle))
	if err := hr("SetEventHandle", r); err != nil {
		return fmt.Errorf("wasapi: bind event: %w", err)
	}
	return nil
}

func (c *client) Start() error {
	if err := hr("Start", comCall(c.ac.vtbl.start, uintptr(unsafe.Pointer(c.ac)))); err != nil {
		return fmt.Errorf("wasapi: start stream: %w", err)
	}
	return nil
}

func (c *client) Stop() error {
	if err := hr("Stop", comCall(c.ac.vtbl.stop, uintptr(unsafe.Pointer(c.ac)))); err != nil {
		return fmt.Errorf("wasapi: stop stream: %w", err)
	}
	return nil
}

func (c *client) Padding() (uint32, error) {
	var frames uint32
	r := comCall(c.ac.vtbl.getCurrentPadding, uintptr(unsafe.Pointer(c.ac)), uintptr(unsafe.Pointer(&frames)))
	if err := hr("GetCurrentPadding", r); err != nil {
		return 0, fmt.Errorf("wasapi: query padding: %w", err)
	}
	return frames, nil
}

func (c *client) CaptureService() (endpoint.CaptureClient, error) {
	var raw *iAudioCaptureClient
	r := comCall(c.ac.vtbl.getService,
		uintptr(unsafe.Pointer(c.ac)),
		uintptr(unsafe.Pointer(&iidIAudioCaptureClient)),
		uintptr(unsafe.Pointer(&raw)),
	)
	if err := hr("GetService", r); err != nil {
		return nil, fmt.Errorf("wasapi: acquire capture service: %w", err)
	}
	return &captureClient{raw: raw, blockAlign: c.blockAlign}, nil
}

func (c *client) RenderService() (endpoint.RenderClient, error) {
	var raw *iAudioRenderClient
	r := comCall(c.ac.vtbl.getService,
		uintptr(unsafe.Pointer(c.ac)),
		uintptr(unsafe.Pointer(&iidIAudioRenderClient)),
		uintptr(unsafe.Pointer(&raw)),
	)
	if err := hr("GetService", r); err != nil {
		return nil, fmt.Errorf("wasapi: acquire render service: %w", err)
	}
	return &renderClient{raw: raw, blockAlign: c.blockAlign}, nil
}

func (c *client) Close() error {
	if c.ac3 != nil {
		comRelease(unsafe.Pointer(c.ac3), &c.ac3.vtbl.iUnknownVtbl)
		c.ac3 = nil
	}
	if c.ac != nil {
		comRelease(unsafe.Pointer(c.ac), &c.ac.vtbl.iUnknownVtbl)
		c.ac = nil
	}
	return nil
}

// captureClient reads packets off an initialized capture stream.
type captureClient struct {
	raw        *iAudioCaptureClient
	blockAlign int
}

var _ endpoint.CaptureClient = (*captureClient)(nil)

func (cc *captureClient) Buffer() ([]byte, uint32, endpoint.PacketFlags, error) {
	var (
		data   *byte
		frames uint32
		flags  uint32
	)
	r := comCall(cc.raw.vtbl.getBuffer,
		uintptr(unsafe.Pointer(cc.raw)),
		uintptr(unsafe.Pointer(&data)),
		uintptr(unsafe.Pointer(&frames)),
		uintptr(unsafe.Pointer(&flags)),
		0,
		0,
	)
	if err := hr("GetBuffer", r); err != nil {
		return nil, 0, 0, fmt.Errorf("wasapi: lease capture packet: %w", err)
	}
	if frames == 0 || data == nil {
		// The empty-buffer S-code lands here: nothing leased, nothing to
		// release.
		return nil, 0, 0, nil
	}
	buf := unsafe.Slice(data, int(frames)*cc.blockAlign)
	return buf, frames, endpoint.PacketFlags(flags), nil
}

func (cc *captureClient) ReleaseBuffer(frames uint32) error {
	r := comCall(cc.raw.vtbl.releaseBuffer, uintptr(unsafe.Pointer(cc.raw)), uintptr(frames))
	if err := hr("ReleaseBuffer", r); err != nil {
		return fmt.Errorf("wasapi: release capture packet: %w", err)
	}
	return nil
}

func (cc *captureClient) NextPacketSize() (uint32, error) {
	var frames uint32
	r := comCall(cc.raw.vtbl.getNextPacketSize, uintptr(unsafe.Pointer(cc.raw)), uintptr(unsafe.Pointer(&frames)))
	if err := hr("GetNextPacketSize", r); err != nil {
		return 0, fmt.Errorf("wasapi: query next packet size: %w", err)
	}
	return frames, nil
}

// renderClient writes frames into an initialized render stream.
type renderClient struct {
	raw        *iAudioRenderClient
	blockAlign int
}

var _ endpoint.RenderClient = (*renderClient)(nil)

func (rc *renderClient) Buffer(frames uint32) ([]byte, error) {
	var data *byte
	r := comCall(rc.raw.vtbl.getBuffer,
		uintptr(unsafe.Pointer(rc.raw)),
		uintptr(frames),
		uintptr(unsafe.Pointer(&data)),
	)
	if err := hr("GetBuffer", r); err != nil {
		return nil, fmt.Errorf("wasapi: lease render space: %w", err)
	}
	return unsafe.Slice(data, int(frames)*rc.blockAlign), nil
}

func (rc *renderClient) ReleaseBuffer(frames uint32) error {
	r := comCall(rc.raw.vtbl.releaseBuffer, uintptr(unsafe.Pointer(rc.raw)), uintptr(frames), 0)
	if err := hr("ReleaseBuffer", r); err != nil {
		return fmt.Errorf("wasapi: commit render frames: %w", err)
	}
	return nil
}
