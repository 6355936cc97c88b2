package activate

import "sync"

// Completion is a one-shot completion cell: created empty, fulfilled at most
// once, its value taken at most once. It is the bridge between a platform
// completion callback running on an arbitrary thread and the single caller
// waiting for the outcome.
//
// Complete and Take are guarded by a mutex so a late or duplicate callback
// can never double-deliver, panic, or block, even when the waiting caller
// has long since given up.
type Completion[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	completed bool
	taken     bool
}

// NewCompletion returns an empty cell.
func NewCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Complete fulfills the cell with v and wakes any waiter. It reports whether
// this call won: false means the cell was already fulfilled and v was
// discarded.
func (c *Completion[T]) Complete(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return false
	}
	c.completed = true
	c.value = v
	close(c.done)
	return true
}

// Take removes and returns the completion value. The second and any later
// take, and a take before the cell is fulfilled, return the zero value and
// false.
func (c *Completion[T]) Take() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if !c.completed || c.taken {
		return zero, false
	}
	c.taken = true
	v := c.value
	c.value = zero
	return v, true
}

// Done returns a channel closed when the cell is fulfilled.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// Completed reports whether the cell has been fulfilled.
func (c *Completion[T]) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
