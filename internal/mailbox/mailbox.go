// Package mailbox provides the single-slot handoff used between node tasks.
//
// A Mailbox holds at most one undelivered value. Signal overwrites whatever is
// waiting and never blocks; Wait blocks until a value is present, takes it and
// leaves the slot empty. Values that are overwritten before being read are lost.
package mailbox

import (
	"context"
	"sync"
)

// Mailbox is a single-slot, latest-wins signal. The zero value is not usable; call New.
type Mailbox[T any] struct {
	mu   sync.Mutex // serializes writers so drain+store is atomic
	slot chan T
}

// New returns an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{slot: make(chan T, 1)}
}

// Signal stores v, replacing an undelivered value. At most one waiter is woken.
func (m *Mailbox[T]) Signal(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.slot:
	default:
	}
	// Only writers fill the slot and they hold mu, so this send cannot block.
	m.slot <- v
}

// Wait blocks until a value has been signaled since the last successful Wait.
func (m *Mailbox[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-m.slot:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryWait takes the pending value without blocking.
func (m *Mailbox[T]) TryWait() (T, bool) {
	select {
	case v := <-m.slot:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Pending reports whether an undelivered value is waiting.
func (m *Mailbox[T]) Pending() bool {
	return len(m.slot) > 0
}
