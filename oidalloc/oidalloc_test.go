package oidalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/reiser4prim"
)

func TestNewStartsPastRootTriplet(t *testing.T) {
	t.Parallel()

	a := New()
	assert.Equal(t, reiser4prim.ObjID(reiser4prim.LowReservedOIDs), a.NextToUse())
	assert.Equal(t, uint64(3), a.InUseCount())
}

func TestAllocateAdvancesBothCounters(t *testing.T) {
	t.Parallel()

	a := New()
	start := a.NextToUse()
	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, start, id)
	assert.Equal(t, start+1, a.NextToUse())
	assert.Equal(t, uint64(4), a.InUseCount())
}

func TestReleaseDoesNotReclaimNumericValue(t *testing.T) {
	t.Parallel()

	a := New()
	id, err := a.Allocate()
	require.NoError(t, err)
	require.NoError(t, a.Release(id))
	assert.Equal(t, uint64(3), a.InUseCount())

	next, err := a.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, id, next, "released ids must never be reused")
}

func TestOpenRejectsInvariantViolation(t *testing.T) {
	t.Parallel()

	_, err := Open(5, 10)
	require.Error(t, err)
}

func TestAllocateExhaustion(t *testing.T) {
	t.Parallel()

	a, err := Open(reiser4prim.MaxOID-reiser4prim.HighReservedOIDs, 0)
	require.NoError(t, err)
	_, err = a.Allocate()
	require.Error(t, err)
}
