//go:build windows

package wasapi

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/looptap/looptap/pkg/endpoint"
)

// eventObject backs [endpoint.Event] with an auto-reset win32 event, the
// shape SetEventHandle requires.
type eventObject struct {
	handle windows.Handle
}

var _ endpoint.Event = (*eventObject)(nil)

// NewEvent creates the event an endpoint signals at each buffer period.
func NewEvent() (endpoint.Event, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("wasapi: create event: %w", err)
	}
	return &eventObject{handle: h}, nil
}

func (e *eventObject) Set() error {
	if err := windows.SetEvent(e.handle); err != nil {
		return fmt.Errorf("wasapi: signal event: %w", err)
	}
	return nil
}

func (e *eventObject) Wait(timeout time.Duration) (bool, error) {
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout / time.Millisecond)
	}
	ev, err := windows.WaitForSingleObject(e.handle, ms)
	switch ev {
	case windows.WAIT_OBJECT_0:
		return true, nil
	case uint32(windows.WAIT_TIMEOUT):
		return false, nil
	}
	if err == nil {
		return false, fmt.Errorf("wasapi: wait for event: unexpected result 0x%X", ev)
	}
	return false, fmt.Errorf("wasapi: wait for event: %w", err)
}

func (e *eventObject) Close() error {
	if e.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(e.handle)
	e.handle = 0
	if err != nil {
		return fmt.Errorf("wasapi: close event: %w", err)
	}
	return nil
}
