// Package wasapi adapts Windows shared-mode audio endpoints to the
// [github.com/looptap/looptap/pkg/endpoint] contracts.
//
// The adapter talks to the multimedia device API and the audio client
// interfaces directly through their COM vtables, which keeps the module free
// of cgo. It covers the three endpoint kinds the bridge uses:
//
//   - capture and render devices enumerated through [Enumerator],
//   - the process-loopback virtual device, activated asynchronously through
//     [NewActivator].
//
// All COM calls must happen on a thread that has been prepared with
// [InitThread] (or [InitStreamingThread], which additionally registers the
// thread with the multimedia class scheduler). Callers are expected to drive
// one endpoint from one goroutine, matching the endpoint contracts.
//
// On platforms other than Windows every constructor returns
// [endpoint.ErrNotSupported].
package wasapi
