// Package txn implements the single-shot pending-transaction mailbox shared
// by the protocol stack (keyed by protocol transaction id) and the RRC
// transaction matcher (keyed by UE key).
package txn

import (
	"context"
	"fmt"
	"sync"
)

// ErrDropped is returned from Slot.Recv when the slot is removed from its
// table before a value is delivered (Cancel, or a second registration for
// the same key evicting this one).
var ErrDropped = fmt.Errorf("txn: slot dropped before delivery")

// Slot is a capacity-1 delivery point. Exactly one of Deliver or Cancel may
// succeed; Recv observes whichever happened first.
type Slot[T any] struct {
	ch     chan T
	cancel chan struct{}
	once   sync.Once
}

func newSlot[T any]() *Slot[T] {
	return &Slot[T]{
		ch:     make(chan T, 1),
		cancel: make(chan struct{}),
	}
}

// Recv blocks until a value is delivered, the slot is cancelled/dropped, or
// ctx is done. It does not touch the owning table: on a non-delivery path
// the caller removes the entry with Table.Remove, so a later reply with the
// same key is logged and discarded rather than delivered to a stale waiter.
func (s *Slot[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-s.ch:
		return v, nil
	case <-s.cancel:
		return zero, ErrDropped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Slot[T]) deliver(v T) bool {
	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}

func (s *Slot[T]) drop() {
	s.once.Do(func() { close(s.cancel) })
}

// Table is a mutex-guarded map from key K to a single pending Slot[T]. It
// never holds the mutex across a suspension point: Register/Match/Remove
// all complete without blocking.
type Table[K comparable, T any] struct {
	mu      sync.Mutex
	pending map[K]*Slot[T]
}

// NewTable constructs an empty table.
func NewTable[K comparable, T any]() *Table[K, T] {
	return &Table[K, T]{pending: make(map[K]*Slot[T])}
}

// Register installs a fresh slot for key, returning it. If a slot was
// already pending for key, it is dropped (its Recv returns ErrDropped) and
// replaced — callers that want to warn-log this eviction should check the
// returned `replaced` bool.
func (t *Table[K, T]) Register(key K) (slot *Slot[T], replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot = newSlot[T]()
	if old, ok := t.pending[key]; ok {
		replaced = true
		old.drop()
	}
	t.pending[key] = slot
	return slot, replaced
}

// Match looks up and removes the pending slot for key, delivering value to
// it if one exists. It reports whether a slot was found — callers use this
// to distinguish a solicited response from an unsolicited message.
func (t *Table[K, T]) Match(key K, value T) bool {
	t.mu.Lock()
	slot, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	return slot.deliver(value)
}

// Remove drops the pending slot for key, if one is present for this exact
// slot (so a slot that was already matched-and-replaced is left alone).
// This is the cancellation-safety hook: dropping a request future calls
// Remove so the table never leaks an entry for a caller that gave up.
func (t *Table[K, T]) Remove(key K, slot *Slot[T]) {
	t.mu.Lock()
	if cur, ok := t.pending[key]; ok && cur == slot {
		delete(t.pending, key)
	}
	t.mu.Unlock()
	slot.drop()
}

// Len reports the number of currently-pending entries. Used by tests
// asserting invariant 5 (no transaction-table leak on drop).
func (t *Table[K, T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Has reports whether key currently has a pending slot.
func (t *Table[K, T]) Has(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[key]
	return ok
}
