//go:build windows

package wasapi

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/looptap/looptap/pkg/endpoint"
)

// devicePath is the virtual endpoint process-loopback streams attach to.
const devicePath = `VAD\Process_Loopback`

const (
	activationTypeProcessLoopback = 1

	loopbackModeIncludeTree = 0
	loopbackModeExcludeTree = 1
)

// activationParams mirrors the activation parameter block for a
// process-loopback stream: activation type, target process, loopback mode.
type activationParams struct {
	activationType      uint32
	targetProcessID     uint32
	processLoopbackMode uint32
}

type activateOperationVtbl struct {
	iUnknownVtbl
	getActivateResult uintptr
}

type activateOperation struct {
	vtbl *activateOperationVtbl
}

// Activator submits process-loopback activations against the virtual
// loopback device. The calling goroutine must have run [InitThread].
type Activator struct{}

var _ endpoint.Activator = Activator{}

// NewActivator returns the process-loopback activator.
func NewActivator() endpoint.Activator {
	return Activator{}
}

// ActivateProcessLoopback submits an asynchronous activation for the given
// target. The platform invokes completed from a worker thread of its own
// once the activation finishes; the returned operation is the same one the
// callback carries.
func (Activator) ActivateProcessLoopback(target endpoint.LoopbackTarget, completed func(endpoint.Operation)) (endpoint.Operation, error) {
	path, err := windows.UTF16PtrFromString(devicePath)
	if err != nil {
		return nil, fmt.Errorf("wasapi: device path: %w", err)
	}

	mode := uint32(loopbackModeExcludeTree)
	if target.IncludeTree {
		mode = loopbackModeIncludeTree
	}
	pending := &asyncOp{
		params: &activationParams{
			activationType:      activationTypeProcessLoopback,
			targetProcessID:     target.ProcessID,
			processLoopbackMode: mode,
		},
	}
	pending.pv.setBlob(uint32(unsafe.Sizeof(*pending.params)), unsafe.Pointer(pending.params))

	h := newCompletionHandler(func() { completed(pending) })

	var rawOp *activateOperation
	r, _, _ := procActivateAudioInterfaceAsync.Call(
		uintptr(unsafe.Pointer(path)),
		uintptr(unsafe.Pointer(&iidIAudioClient)),
		uintptr(unsafe.Pointer(&pending.pv)),
		uintptr(unsafe.Pointer(h)),
		uintptr(unsafe.Pointer(&rawOp)),
	)
	if err := hr("ActivateAudioInterfaceAsync", r); err != nil {
		releaseHandler(h)
		return nil, fmt.Errorf("wasapi: submit activation: %w", err)
	}

	// The callback thread never touches the op field; only the submitting
	// goroutine reads it, in Result, after the completion has signaled.
	pending.op = rawOp
	releaseHandler(h)
	return pending, nil
}

// asyncOp is one in-flight activation. It keeps the parameter block and the
// variant pointing at it reachable until the platform has reported a result.
type asyncOp struct {
	params *activationParams
	pv     propVariant
	op     *activateOperation
}

var _ endpoint.Operation = (*asyncOp)(nil)

// Result unpacks the finished activation into a client handle. Calling it
// before the completion callback has fired is a contract violation; calling
// it twice returns an error rather than touching a released operation.
func (o *asyncOp) Result() (endpoint.Client, error) {
	if o.op == nil {
		return nil, fmt.Errorf("wasapi: activation result already taken")
	}
	op := o.op
	o.op = nil
	defer comRelease(unsafe.Pointer(op), &op.vtbl.iUnknownVtbl)

	var (
		hrActivate int32
		unk        *comObject
	)
	r := comCall(op.vtbl.getActivateResult,
		uintptr(unsafe.Pointer(op)),
		uintptr(unsafe.Pointer(&hrActivate)),
		uintptr(unsafe.Pointer(&unk)),
	)
	if err := hr("GetActivateResult", r); err != nil {
		return nil, fmt.Errorf("wasapi: read activation result: %w", err)
	}
	if hrActivate < 0 {
		return nil, fmt.Errorf("wasapi: activate process loopback: %w",
			&endpoint.StatusError{Op: "ActivateAudioInterfaceAsync", Code: endpoint.StatusCode(uint32(hrActivate))})
	}
	if unk == nil {
		return nil, fmt.Errorf("wasapi: activation reported success but returned no interface")
	}

	var ac *iAudioClient
	qerr := comQuery(unsafe.Pointer(unk), unk.vtbl, &iidIAudioClient, unsafe.Pointer(&ac))
	comRelease(unsafe.Pointer(unk), unk.vtbl)
	if qerr != nil {
		return nil, fmt.Errorf("wasapi: activation interface: %w", qerr)
	}
	return newClient(ac), nil
}

// ── completion handler COM object ──

// completionHandler is a minimal COM object implementing the activation
// completion interface plus the agile marker, so the platform may invoke it
// from any apartment.
type completionHandler struct {
	vtbl      *completionHandlerVtbl
	refs      atomic.Int32
	completed func()
}

type completionHandlerVtbl struct {
	iUnknownVtbl
	activateCompleted uintptr
}

// handlerVtbl is shared by every handler instance. The callbacks live for
// the life of the process.
var handlerVtbl = completionHandlerVtbl{
	iUnknownVtbl: iUnknownVtbl{
		queryInterface: windows.NewCallback(handlerQueryInterface),
		addRef:         windows.NewCallback(handlerAddRef),
		release:        windows.NewCallback(handlerRelease),
	},
	activateCompleted: windows.NewCallback(handlerActivateCompleted),
}

// liveHandlers pins handler objects while the platform holds references to
// them. The pointer we pass to the activation call does not count as a
// reference for the garbage collector, so the registry has to.
var liveHandlers sync.Map

// newCompletionHandler allocates a pinned handler with one reference owned
// by the caller.
func newCompletionHandler(completed func()) *completionHandler {
	h := &completionHandler{vtbl: &handlerVtbl, completed: completed}
	h.refs.Store(1)
	liveHandlers.Store(h, struct{}{})
	return h
}

// releaseHandler drops the caller's reference.
func releaseHandler(h *completionHandler) {
	handlerRelease(h)
}

func handlerQueryInterface(h *completionHandler, iid *windows.GUID, out *unsafe.Pointer) uintptr {
	if out == nil {
		return ePointer
	}
	switch *iid {
	case iidIUnknown, iidIAgileObject, iidIActivateCompletionHandler:
		handlerAddRef(h)
		*out = unsafe.Pointer(h)
		return sOK
	}
	*out = nil
	return eNoInterface
}

func handlerAddRef(h *completionHandler) uintptr {
	return uintptr(h.refs.Add(1))
}

func handlerRelease(h *completionHandler) uintptr {
	n := h.refs.Add(-1)
	if n == 0 {
		liveHandlers.Delete(h)
	}
	return uintptr(n)
}

// handlerActivateCompleted runs on a platform worker thread. The operation
// argument is ignored; the submitting goroutine already holds its own
// reference to the operation.
func handlerActivateCompleted(h *completionHandler, op uintptr) uintptr {
	if h.completed != nil {
		h.completed()
	}
	return sOK
}
