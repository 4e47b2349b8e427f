package txn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMatchDelivers(t *testing.T) {
	tbl := NewTable[uint32, string]()

	slot, replaced := tbl.Register(7)
	require.False(t, replaced)
	require.True(t, tbl.Has(7))

	ok := tbl.Match(7, "hello")
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := slot.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	// Match already consumed the entry.
	assert.False(t, tbl.Has(7))
}

func TestMatchUnknownKeyIsDropped(t *testing.T) {
	tbl := NewTable[uint32, string]()
	ok := tbl.Match(42, "late")
	assert.False(t, ok, "a late reply to an unknown id must not be delivered anywhere")
}

func TestRegisterReplacesPriorPending(t *testing.T) {
	tbl := NewTable[uint32, string]()

	first, _ := tbl.Register(1)
	second, replaced := tbl.Register(1)
	require.True(t, replaced, "registering for a key that is already pending must evict the prior slot")

	ctx := context.Background()
	_, err := first.Recv(ctx)
	assert.ErrorIs(t, err, ErrDropped)

	ok := tbl.Match(1, "for-second")
	require.True(t, ok)
	v, err := second.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "for-second", v)
}

func TestRemoveIsCancellationSafeAndAllowsIDReuse(t *testing.T) {
	tbl := NewTable[uint32, string]()

	slot, _ := tbl.Register(9)
	tbl.Remove(9, slot)
	assert.Equal(t, 0, tbl.Len(), "dropping a pending request must remove its table entry")

	// Reusing id 9 for a fresh request must work safely.
	slot2, replaced := tbl.Register(9)
	assert.False(t, replaced)
	require.True(t, tbl.Match(9, "reused"))

	v, err := slot2.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "reused", v)
}

func TestOnlyOneEntryPerKeyAtATime(t *testing.T) {
	tbl := NewTable[uint32, int]()
	for i := 0; i < 5; i++ {
		tbl.Register(100)
		assert.Equal(t, 1, tbl.Len())
	}
}
