package alloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/internal/diskio"
)

func TestBitmapMarkClearTest(t *testing.T) {
	t.Parallel()

	b := NewBitmap(16)
	assert.False(t, b.Test(3))
	require.NoError(t, b.Mark(3))
	assert.True(t, b.Test(3))
	assert.Equal(t, 1, b.CountUsed())

	// Marking an already-marked block is a no-op.
	require.NoError(t, b.Mark(3))
	assert.Equal(t, 1, b.CountUsed())

	require.NoError(t, b.Clear(3))
	assert.False(t, b.Test(3))
	assert.Equal(t, 0, b.CountUsed())

	require.Error(t, b.Mark(16))
}

func TestBitmapFindFirstFree(t *testing.T) {
	t.Parallel()

	b := NewBitmap(8)
	require.NoError(t, b.Mark(0))
	require.NoError(t, b.Mark(1))
	got, ok := b.FindFirstFree(0)
	require.True(t, ok)
	assert.Equal(t, uint64(2), got)
}

func TestBitmapCloneIsIndependent(t *testing.T) {
	t.Parallel()

	b := NewBitmap(8)
	require.NoError(t, b.Mark(2))
	clone := b.Clone()
	require.NoError(t, clone.Mark(5))
	assert.False(t, b.Test(5))
	assert.True(t, clone.Test(5))
	assert.True(t, clone.Test(2))
}

func TestBitmapResizeGrow(t *testing.T) {
	t.Parallel()

	b := NewBitmap(4)
	require.NoError(t, b.Mark(1))
	require.NoError(t, b.Resize(0, 4))
	assert.Equal(t, 8, b.Len())
	assert.True(t, b.Test(1))
	assert.False(t, b.Test(5))
}

func TestAllocatorCreateMarksBitmapBlocksUsed(t *testing.T) {
	t.Parallel()

	const blockSize = 64 // stride = 64*8 = 512 blocks per bitmap block
	file := diskio.NewMemFile("test", blockSize*20)
	dev, err := diskio.NewDevice(file, blockSize, diskio.Flags{})
	require.NoError(t, err)

	a, err := Create(dev, 0, 20)
	require.NoError(t, err)
	assert.True(t, a.Test(0), "bitmap block 0 must be self-marked used")
	assert.False(t, a.Test(1))
}

func TestAllocatorSyncRoundTrip(t *testing.T) {
	t.Parallel()

	const blockSize = 64
	file := diskio.NewMemFile("test", blockSize*20)
	dev, err := diskio.NewDevice(file, blockSize, diskio.Flags{})
	require.NoError(t, err)

	a, err := Create(dev, 0, 20)
	require.NoError(t, err)
	require.NoError(t, a.Mark(5))
	require.NoError(t, a.Sync(context.Background()))

	reopened, err := Open(context.Background(), dev, 0, 20, uint64(a.CountFree()))
	require.NoError(t, err)
	assert.True(t, reopened.Test(5))
	assert.True(t, reopened.Test(0))
	assert.Equal(t, a.CountUsed(), reopened.CountUsed())
}

func TestAllocatorAllocate(t *testing.T) {
	t.Parallel()

	const blockSize = 64
	file := diskio.NewMemFile("test", blockSize*20)
	dev, err := diskio.NewDevice(file, blockSize, diskio.Flags{})
	require.NoError(t, err)

	a, err := Create(dev, 0, 20)
	require.NoError(t, err)
	got, err := a.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got, "block 0 is the self-marked bitmap block")
	assert.True(t, a.Test(1))
}
