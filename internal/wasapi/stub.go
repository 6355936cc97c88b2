//go:build !windows

package wasapi

import (
	"log/slog"

	"github.com/looptap/looptap/pkg/endpoint"
)

// Enumerator lists audio endpoint devices. Only functional on Windows.
type Enumerator struct{}

// NewEnumerator reports the platform as unsupported.
func NewEnumerator() (*Enumerator, error) {
	return nil, endpoint.ErrNotSupported
}

func (*Enumerator) Devices(endpoint.Flow) ([]endpoint.DeviceInfo, error) {
	return nil, endpoint.ErrNotSupported
}

func (*Enumerator) Device(string) (*Device, error) {
	return nil, endpoint.ErrNotSupported
}

func (*Enumerator) DefaultDevice(endpoint.Flow) (*Device, error) {
	return nil, endpoint.ErrNotSupported
}

func (*Enumerator) Close() error { return nil }

// Device is a handle to one enumerated endpoint. Only functional on Windows.
type Device struct{}

func (*Device) Activate() (endpoint.Client, error) {
	return nil, endpoint.ErrNotSupported
}

func (*Device) Close() error { return nil }

// NewEvent reports the platform as unsupported.
func NewEvent() (endpoint.Event, error) {
	return nil, endpoint.ErrNotSupported
}

// NewActivator returns an activator that rejects every submission.
func NewActivator() endpoint.Activator {
	return unsupportedActivator{}
}

type unsupportedActivator struct{}

func (unsupportedActivator) ActivateProcessLoopback(endpoint.LoopbackTarget, func(endpoint.Operation)) (endpoint.Operation, error) {
	return nil, endpoint.ErrNotSupported
}

// InitThread reports the platform as unsupported.
func InitThread() error { return endpoint.ErrNotSupported }

// InitStreamingThread reports the platform as unsupported.
func InitStreamingThread(*slog.Logger) error { return endpoint.ErrNotSupported }
