// Package ids allocates the 32-bit gNB-CU UE identifiers (gnb_cu_ue_f1ap_id)
// that double as the UE state store key, per spec.md §3. Allocation is a
// simple monotonic counter with wraparound: the id space (2^32) is large
// enough relative to concurrently attached UEs that collision is treated
// as a configuration/capacity error rather than a routine case, unlike the
// tighter per-stack transaction-id spaces in internal/stack.
package ids

import "sync/atomic"

// UEKeyAllocator hands out gnb_cu_ue_f1ap_id values, one per attaching UE.
type UEKeyAllocator struct {
	next atomic.Uint32
}

// NewUEKeyAllocator starts the counter at 1; 0 is reserved as a "no key
// assigned yet" sentinel in UE state.
func NewUEKeyAllocator() *UEKeyAllocator {
	a := &UEKeyAllocator{}
	a.next.Store(1)
	return a
}

// Allocate returns the next UE key.
func (a *UEKeyAllocator) Allocate() uint32 {
	for {
		v := a.next.Add(1) - 1
		if v != 0 {
			return v
		}
		// Wrapped past the sentinel; skip it and retry.
	}
}
