// Package uestore implements the UE State Store of spec.md §4.2: a keyed
// map with TTL, safe for concurrent access from multiple workers, with two
// interchangeable backends. The in-memory backend's expiry sweeper is
// grounded on nf/nrf/internal/repository.MemoryRepository's cleanup
// ticker; the remote backend is a new addition using
// github.com/redis/go-redis/v9 for the shared-backend case spec.md's
// "keys hashed into a shared external store" language calls for.
package uestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/stack"
)

// SecurityContext holds the selected AS security algorithms and key
// material for a UE, per spec.md §3.
type SecurityContext struct {
	IntegrityAlgorithm string
	CipheringAlgorithm string
	KgNB               []byte
}

// GTPTunnelEndpoint is a minimal tunnel-endpoint record shared by F1 and
// E1 bearer bookkeeping in UE state.
type GTPTunnelEndpoint struct {
	Address []byte
	TEID    uint32
}

// PDUSession holds the DRB ids and tunnel endpoints established for one
// PDU session.
type PDUSession struct {
	PDUSessionID uint8
	DRBIDs       []uint8
	ULTunnel     *GTPTunnelEndpoint
	DLTunnel     *GTPTunnelEndpoint
}

// UEState is the per-UE record stored under key `ue:{u32_key}`, per
// spec.md §3 and §6.
type UEState struct {
	Key             uint32
	GNBDUUEF1APID   uint32
	AMFUENGAPID     uint64
	HasAMFUENGAPID  bool
	Security        *SecurityContext
	PDUSessions     []PDUSession
	RRCState        string
	GNBCUUPUEE1APID uint32
	// BufferedNAS holds an AMF-originated NAS PDU (DownlinkNasTransport)
	// received while a signalling turn other than RRC Reconfiguration is
	// in progress, per spec.md §4.7 step 9. runRrcReconfiguration reads
	// it into the next RrcReconfiguration and clears it once
	// RrcReconfigurationComplete is received.
	BufferedNAS []byte
}

// Store is the capability set of spec.md §4.2.
type Store interface {
	StoreUE(ctx context.Context, key uint32, state UEState, ttl time.Duration) error
	Retrieve(ctx context.Context, key uint32) (UEState, error)
	Delete(ctx context.Context, key uint32) error
	Close() error
}

// ErrNotFound is returned by Retrieve on a miss or TTL expiry, surfaced by
// callers as stack.KindNotFound per spec.md §7.
var ErrNotFound = fmt.Errorf("uestore: not found")

func wrapNotFound(key uint32) error {
	return &stack.Error{Kind: stack.KindNotFound, Op: "retrieve", Err: fmt.Errorf("ue key %d: %w", key, ErrNotFound)}
}

type memoryEntry struct {
	state   UEState
	expires time.Time
}

// MemoryStore is the single-process backend: a mutex-guarded map with a
// background sweeper removing TTL-expired entries, directly grounded on
// nf/nrf/internal/repository.MemoryRepository's cleanupTicker/stopChan
// pattern.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uint32]memoryEntry
	logger  *zap.Logger

	stopChan      chan struct{}
	stopOnce      sync.Once
	cleanupTicker *time.Ticker
}

// NewMemoryStore constructs a MemoryStore and starts its sweeper goroutine
// at the given interval.
func NewMemoryStore(sweepInterval time.Duration, logger *zap.Logger) *MemoryStore {
	s := &MemoryStore{
		entries:       make(map[uint32]memoryEntry),
		logger:        logger,
		stopChan:      make(chan struct{}),
		cleanupTicker: time.NewTicker(sweepInterval),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) sweep() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.performSweep()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemoryStore) performSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("ue store sweep removed expired entries", zap.Int("removed", removed))
	}
}

// StoreUE replaces any existing value for key atomically.
func (s *MemoryStore) StoreUE(ctx context.Context, key uint32, state UEState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{state: state, expires: time.Now().Add(ttl)}
	return nil
}

// Retrieve returns ErrNotFound (wrapped as stack.KindNotFound) on a miss
// or TTL expiry.
func (s *MemoryStore) Retrieve(ctx context.Context, key uint32) (UEState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return UEState{}, wrapNotFound(key)
	}
	return entry.state, nil
}

// Delete is idempotent: deleting an absent key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the sweeper goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.cleanupTicker.Stop()
		close(s.stopChan)
	})
	return nil
}
