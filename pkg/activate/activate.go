// Package activate bridges the platform's callback-based endpoint activation
// into plain Go call shapes: a blocking [Sync] for program flows that cannot
// proceed without the endpoint, and a context-aware [WithContext] for callers
// that may give up.
//
// The platform invokes the completion callback on a worker thread of its own
// choosing, possibly after the initiating caller has moved on. Both variants
// therefore route the callback through a [Completion] cell: delivery happens
// at most once, a late callback after an abandoned wait completes into the
// void, and nothing the callback does can panic or deadlock the platform's
// thread.
package activate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looptap/looptap/pkg/endpoint"
)

// Sync activates a process-loopback endpoint and blocks until the platform
// reports the outcome. There is no way to abandon the wait; if the platform
// never invokes the completion callback, Sync never returns. Use
// [WithContext] when that is not acceptable.
func Sync(a endpoint.Activator, target endpoint.LoopbackTarget) (endpoint.Client, error) {
	cell := NewCompletion[endpoint.Operation]()
	op, err := a.ActivateProcessLoopback(target, func(o endpoint.Operation) {
		deliver(cell, o)
	})
	if err != nil {
		return nil, fmt.Errorf("activate: submit: %w", err)
	}

	<-cell.Done()
	return result(op)
}

// WithContext activates a process-loopback endpoint and waits until the
// platform reports the outcome or ctx is done. When the caller abandons the
// wait, the activation itself is not cancelled — the platform does not offer
// that — but its eventual completion is delivered into the void and the
// resulting handle, if any, is discarded.
func WithContext(ctx context.Context, a endpoint.Activator, target endpoint.LoopbackTarget) (endpoint.Client, error) {
	cell := NewCompletion[endpoint.Operation]()
	_, err := a.ActivateProcessLoopback(target, func(o endpoint.Operation) {
		deliver(cell, o)
	})
	if err != nil {
		return nil, fmt.Errorf("activate: submit: %w", err)
	}

	select {
	case <-cell.Done():
		op, _ := cell.Take()
		return result(op)
	case <-ctx.Done():
		return nil, fmt.Errorf("activate: abandoned: %w", ctx.Err())
	}
}

// deliver fulfills cell with the operation the callback carried. A second
// delivery means the platform fired the completion twice; the duplicate is
// dropped and counted in the log rather than crashing the worker thread.
func deliver(cell *Completion[endpoint.Operation], o endpoint.Operation) {
	if !cell.Complete(o) {
		slog.Warn("duplicate activation completion dropped", "component", "activate")
	}
}

// result unpacks a finished operation into a client handle.
func result(op endpoint.Operation) (endpoint.Client, error) {
	if op == nil {
		return nil, fmt.Errorf("activate: completion delivered no operation")
	}
	cli, err := op.Result()
	if err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}
	if cli == nil {
		return nil, fmt.Errorf("activate: activation reported success but returned no client")
	}
	return cli, nil
}
