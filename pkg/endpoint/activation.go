package endpoint

// LoopbackTarget is the parameter block for a process-loopback activation.
type LoopbackTarget struct {
	// ProcessID is the target process.
	ProcessID uint32

	// IncludeTree selects what the tap hears: true captures the target
	// process and its descendants, false captures everything except that
	// tree. The platform offers exactly these two modes.
	IncludeTree bool
}

// Operation is a pending asynchronous activation. Result may only be called
// after the completion callback has fired.
type Operation interface {
	// Result returns the activated [Client], or the platform status of the
	// failed activation as a [*StatusError].
	Result() (Client, error)
}

// Activator submits process-loopback activations. Implementations invoke the
// completed callback exactly once, from an arbitrary goroutine, after the
// operation finishes; when submission itself fails no callback is ever
// invoked. The parameter block stays referenced until Result has been called.
type Activator interface {
	ActivateProcessLoopback(target LoopbackTarget, completed func(Operation)) (Operation, error)
}
