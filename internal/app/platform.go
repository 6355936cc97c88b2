package app

import (
	"log/slog"

	"github.com/looptap/looptap/internal/wasapi"
	"github.com/looptap/looptap/pkg/endpoint"
)

// Platform is the endpoint surface the bridge is assembled from: device
// listing and opening, process-loopback activation, wake events, and the
// OS-thread preparation streaming needs. The production implementation
// wraps internal/wasapi; tests inject fakes built on pkg/endpoint/mock.
type Platform interface {
	// Prepare readies the calling goroutine's thread for endpoint work and
	// connects to the device system. Run calls it before anything else.
	Prepare() error

	// PrepareStreaming readies a streaming goroutine's thread: Prepare plus
	// elevated scheduling. Called once, on the pipeline goroutine.
	PrepareStreaming(log *slog.Logger) error

	// Devices lists the active endpoints of one direction.
	Devices(flow endpoint.Flow) ([]endpoint.DeviceInfo, error)

	// OpenDevice activates an audio client on the endpoint with the given
	// identifier.
	OpenDevice(id string) (endpoint.Client, error)

	// DefaultDevice activates an audio client on the default endpoint of
	// one direction.
	DefaultDevice(flow endpoint.Flow) (endpoint.Client, error)

	// Activator returns the process-loopback activator.
	Activator() endpoint.Activator

	// NewEvent creates a stream wake event.
	NewEvent() (endpoint.Event, error)

	// Close releases the device system connection.
	Close() error
}

// wasapiPlatform is the OS-backed [Platform].
type wasapiPlatform struct {
	enum *wasapi.Enumerator
}

// NewPlatform returns the OS-backed platform. On non-Windows builds every
// method reports [endpoint.ErrNotSupported].
func NewPlatform() Platform {
	return &wasapiPlatform{}
}

func (p *wasapiPlatform) Prepare() error {
	if err := wasapi.InitThread(); err != nil {
		return err
	}
	enum, err := wasapi.NewEnumerator()
	if err != nil {
		return err
	}
	p.enum = enum
	return nil
}

func (p *wasapiPlatform) PrepareStreaming(log *slog.Logger) error {
	return wasapi.InitStreamingThread(log)
}

func (p *wasapiPlatform) Devices(flow endpoint.Flow) ([]endpoint.DeviceInfo, error) {
	return p.enum.Devices(flow)
}

// OpenDevice releases the device handle once the client is activated; the
// client keeps the endpoint alive on its own.
func (p *wasapiPlatform) OpenDevice(id string) (endpoint.Client, error) {
	dev, err := p.enum.Device(id)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return dev.Activate()
}

func (p *wasapiPlatform) DefaultDevice(flow endpoint.Flow) (endpoint.Client, error) {
	dev, err := p.enum.DefaultDevice(flow)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return dev.Activate()
}

func (p *wasapiPlatform) Activator() endpoint.Activator {
	return wasapi.NewActivator()
}

func (p *wasapiPlatform) NewEvent() (endpoint.Event, error) {
	return wasapi.NewEvent()
}

func (p *wasapiPlatform) Close() error {
	if p.enum == nil {
		return nil
	}
	return p.enum.Close()
}
