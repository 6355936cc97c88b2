//go:build windows

package wasapi

import (
	"fmt"
	"log/slog"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/looptap/looptap/pkg/endpoint"
)

const (
	clsctxAll = 0x17

	sOK    = 0
	sFalse = 1

	eNoInterface = 0x80004002
	ePointer     = 0x80004003

	vtLPWSTR = 31
	vtBlob   = 65
)

var (
	clsidMMDeviceEnumerator = windows.GUID{Data1: 0xBCDE0395, Data2: 0xE52F, Data3: 0x467C, Data4: [8]byte{0x8E, 0x3D, 0xC4, 0x57, 0x92, 0x91, 0x69, 0x2E}}

	iidIUnknown                   = windows.GUID{Data1: 0x00000000, Data2: 0x0000, Data3: 0x0000, Data4: [8]byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}}
	iidIAgileObject               = windows.GUID{Data1: 0x94EA2B94, Data2: 0xE9CC, Data3: 0x49E0, Data4: [8]byte{0xC0, 0xFF, 0xEE, 0x64, 0xCA, 0x8F, 0x5B, 0x90}}
	iidIMMDeviceEnumerator        = windows.GUID{Data1: 0xA95664D2, Data2: 0x9614, Data3: 0x4F35, Data4: [8]byte{0xA7, 0x46, 0xDE, 0x8D, 0xB6, 0x36, 0x17, 0xE6}}
	iidIAudioClient               = windows.GUID{Data1: 0x1CB9AD4C, Data2: 0xDBFA, Data3: 0x4C99, Data4: [8]byte{0xB2, 0xD0, 0x57, 0xC6, 0x2D, 0x5E, 0x8F, 0x19}}
	iidIAudioClient3              = windows.GUID{Data1: 0x7ED4EE07, Data2: 0x8E67, Data3: 0x4CD4, Data4: [8]byte{0x8C, 0x1A, 0x2B, 0x7A, 0x59, 0x87, 0xAD, 0x42}}
	iidIAudioCaptureClient        = windows.GUID{Data1: 0xC8ADBD64, Data2: 0xE71E, Data3: 0x48A0, Data4: [8]byte{0xA4, 0xDE, 0x18, 0x5C, 0x39, 0x5C, 0xD3, 0x17}}
	iidIAudioRenderClient         = windows.GUID{Data1: 0xF294ACFC, Data2: 0x3146, Data3: 0x4483, Data4: [8]byte{0xA7, 0xBF, 0xAD, 0xDC, 0xA7, 0xC2, 0x60, 0xE2}}
	iidIActivateCompletionHandler = windows.GUID{Data1: 0x41D949AB, Data2: 0x9862, Data3: 0x444A, Data4: [8]byte{0x80, 0xF6, 0xC2, 0x61, 0x33, 0x4D, 0xA5, 0xEB}}
)

var (
	modOle32             = windows.NewLazySystemDLL("ole32.dll")
	procCoCreateInstance = modOle32.NewProc("CoCreateInstance")
	procPropVariantClear = modOle32.NewProc("PropVariantClear")

	modMmdevapi                     = windows.NewLazySystemDLL("mmdevapi.dll")
	procActivateAudioInterfaceAsync = modMmdevapi.NewProc("ActivateAudioInterfaceAsync")

	modAvrt                           = windows.NewLazySystemDLL("avrt.dll")
	procAvSetMmThreadCharacteristicsW = modAvrt.NewProc("AvSetMmThreadCharacteristicsW")
)

// hr converts a COM call result into an error. Success codes (including
// informational S-codes) pass through as nil.
func hr(op string, r uintptr) error {
	if int32(r) < 0 {
		return &endpoint.StatusError{Op: op, Code: endpoint.StatusCode(uint32(r))}
	}
	return nil
}

// iUnknownVtbl is the method prefix every COM vtable starts with.
type iUnknownVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
}

// comObject views an arbitrary COM interface pointer through its IUnknown
// prefix.
type comObject struct {
	vtbl *iUnknownVtbl
}

// comCall invokes a vtable slot on a COM object.
func comCall(method uintptr, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(method, args...)
	return r
}

// comQuery asks obj for another interface and stores the result through out,
// which must be a **T for the interface wrapper type.
func comQuery(obj unsafe.Pointer, vtbl *iUnknownVtbl, iid *windows.GUID, out unsafe.Pointer) error {
	r := comCall(vtbl.queryInterface, uintptr(obj), uintptr(unsafe.Pointer(iid)), uintptr(out))
	return hr("QueryInterface", r)
}

// comRelease drops one reference on a COM object.
func comRelease(obj unsafe.Pointer, vtbl *iUnknownVtbl) {
	comCall(vtbl.release, uintptr(obj))
}

// utf16At converts a COM-allocated wide string to Go and frees it.
func utf16At(p *uint16) string {
	if p == nil {
		return ""
	}
	s := windows.UTF16PtrToString(p)
	windows.CoTaskMemFree(unsafe.Pointer(p))
	return s
}

// propVariant matches the 24-byte PROPVARIANT layout on 64-bit Windows: a
// 16-bit type tag, three reserved words, then an 8-byte-aligned value union.
type propVariant struct {
	vt       uint16
	reserved [6]byte
	data     [16]byte
}

// setBlob points the variant at an externally owned byte region. The region
// must stay alive for as long as the variant is in use; clear must not be
// called on a variant filled this way.
func (pv *propVariant) setBlob(size uint32, p unsafe.Pointer) {
	pv.vt = vtBlob
	*(*uint32)(unsafe.Pointer(&pv.data[0])) = size
	*(*uintptr)(unsafe.Pointer(&pv.data[8])) = uintptr(p)
}

// lpwstr returns the wide-string union member without transferring
// ownership.
func (pv *propVariant) lpwstr() *uint16 {
	return *(**uint16)(unsafe.Pointer(&pv.data[0]))
}

// clear releases whatever the variant owns.
func (pv *propVariant) clear() {
	procPropVariantClear.Call(uintptr(unsafe.Pointer(pv)))
}

// InitThread pins the calling goroutine to its OS thread and joins the COM
// multithreaded apartment. Every goroutine that touches this package must
// call it first and stay on-thread for its lifetime; the thread is never
// unpinned because endpoint handles remain bound to it.
func InitThread() error {
	runtime.LockOSThread()
	err := windows.CoInitializeEx(0, windows.COINIT_MULTITHREADED|windows.COINIT_SPEED_OVER_MEMORY)
	if err != nil && err != syscall.Errno(sFalse) {
		// S_FALSE means the thread had already joined the apartment.
		return fmt.Errorf("wasapi: initialize COM: %w", err)
	}
	return nil
}

// InitStreamingThread prepares the calling goroutine's thread like
// [InitThread] and additionally registers it with the multimedia class
// scheduler as a Pro Audio task, raising its scheduling priority for the
// duration of the stream.
func InitStreamingThread(log *slog.Logger) error {
	if err := InitThread(); err != nil {
		return err
	}

	name, err := windows.UTF16PtrFromString("Pro Audio")
	if err != nil {
		return fmt.Errorf("wasapi: task name: %w", err)
	}
	var taskIndex uint32
	h, _, callErr := procAvSetMmThreadCharacteristicsW.Call(
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&taskIndex)),
	)
	if h == 0 {
		return fmt.Errorf("wasapi: register with MMCSS: %w", callErr)
	}
	if log == nil {
		log = slog.Default()
	}
	log.Info("registered streaming thread with MMCSS", "task_index", taskIndex)
	return nil
}
