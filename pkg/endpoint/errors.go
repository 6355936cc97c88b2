package endpoint

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned by platform adapters on operating systems
// without a usable audio stack for this capability.
var ErrNotSupported = errors.New("endpoint: not supported on this platform")

// StatusCode is a platform status code (an HRESULT on Windows). Adapters
// surface codes verbatim; the mock invents its own.
type StatusCode uint32

// String formats the code the way platform documentation spells it.
func (c StatusCode) String() string {
	return fmt.Sprintf("0x%08X", uint32(c))
}

// StatusError reports a failed platform call. Every endpoint failure the
// pipeline treats as fatal carries one of these so operators can look the
// code up.
type StatusError struct {
	// Op is the platform operation that failed, e.g. "GetBuffer".
	Op string

	// Code is the status the platform reported.
	Code StatusCode
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint: %s failed: status %s", e.Op, e.Code)
}

// AsStatus unwraps err to a [*StatusError] when one is in its chain.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsStatus reports whether err carries the given platform status code.
func IsStatus(err error, code StatusCode) bool {
	se, ok := AsStatus(err)
	return ok && se.Code == code
}
