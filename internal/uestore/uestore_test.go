package uestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/stack"
)

func TestStoreThenRetrieveWithinTTL(t *testing.T) {
	s := NewMemoryStore(10*time.Millisecond, zap.NewNop())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreUE(ctx, 1, UEState{Key: 1, RRCState: "CONNECTED"}, time.Second))

	got, err := s.Retrieve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "CONNECTED", got.RRCState)
}

func TestRetrieveAfterTTLExpiryIsNotFound(t *testing.T) {
	s := NewMemoryStore(5*time.Millisecond, zap.NewNop())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreUE(ctx, 2, UEState{Key: 2}, 10*time.Millisecond))

	time.Sleep(60 * time.Millisecond)

	_, err := s.Retrieve(ctx, 2)
	require.Error(t, err)
	var e *stack.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, stack.KindNotFound, e.Kind)
}

func TestStoreReplacesPriorValueForSameKey(t *testing.T) {
	s := NewMemoryStore(time.Second, zap.NewNop())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreUE(ctx, 3, UEState{Key: 3, RRCState: "A"}, time.Second))
	require.NoError(t, s.StoreUE(ctx, 3, UEState{Key: 3, RRCState: "B"}, time.Second))

	got, err := s.Retrieve(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "B", got.RRCState)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Second, zap.NewNop())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreUE(ctx, 4, UEState{Key: 4}, time.Second))
	require.NoError(t, s.Delete(ctx, 4))
	require.NoError(t, s.Delete(ctx, 4))

	_, err := s.Retrieve(ctx, 4)
	assert.Error(t, err)
}

func TestSweeperRemovesExpiredEntries(t *testing.T) {
	s := NewMemoryStore(5*time.Millisecond, zap.NewNop())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreUE(ctx, 5, UEState{Key: 5}, 5*time.Millisecond))

	time.Sleep(50 * time.Millisecond)

	s.mu.RLock()
	_, stillPresent := s.entries[5]
	s.mu.RUnlock()
	assert.False(t, stillPresent)
}
