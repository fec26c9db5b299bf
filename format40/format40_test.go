package format40

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

const testBlockSize = 4096

func newTestDevice(t *testing.T, totalBlocks uint64) *diskio.Device {
	t.Helper()
	file := diskio.NewMemFile("test", int64(totalBlocks)*testBlockSize)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)
	return dev
}

func TestCreateThenOpenRoundTrips(t *testing.T) {
	ctx := context.Background()
	const totalBlocks = 16384 // 64 MiB at 4096 bytes/block
	dev := newTestDevice(t, totalBlocks)
	reg := plugin.NewRegistry(0)

	f, err := Create(ctx, dev, reg, [16]byte{1}, [16]byte{'t', 'e', 's', 't'})
	require.NoError(t, err)
	assert.Equal(t, uint64(totalBlocks), f.BlockCount())
	assert.Equal(t, uint8(1), f.TreeHeight())
	require.NoError(t, f.Sync(ctx))

	reopened, err := Open(ctx, dev, reg)
	require.NoError(t, err)
	assert.Equal(t, f.BlockCount(), reopened.BlockCount())
	assert.Equal(t, f.RootBlock(), reopened.RootBlock())
	assert.Equal(t, f.TreeHeight(), reopened.TreeHeight())
	assert.Equal(t, MasterMagic, string(reopened.Master().Magic[:]))
}

func TestOpenRejectsLegacyMagic(t *testing.T) {
	dev := newTestDevice(t, 32)
	addr, err := masterBlockAddr(dev)
	require.NoError(t, err)
	blk, err := diskio.NewBlock(dev, addr)
	require.NoError(t, err)
	copy(blk.Bytes(), legacyMagic)
	blk.MarkDirty()
	require.NoError(t, blk.Sync())

	_, err = OpenMaster(dev)
	require.ErrorIs(t, err, ErrLegacyFormat)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dev := newTestDevice(t, 32)
	_, err := OpenMaster(dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, reiser4prim.ErrCorrupted)
}

func TestRequiredPluginsNamesDefaults(t *testing.T) {
	ctx := context.Background()
	dev := newTestDevice(t, 32)
	reg := plugin.NewRegistry(0)
	f, err := Create(ctx, dev, reg, [16]byte{}, [16]byte{})
	require.NoError(t, err)

	journal, blockAllocator, oidAllocator := f.RequiredPlugins()
	assert.Equal(t, reiser4prim.JournalDefault, journal)
	assert.Equal(t, reiser4prim.BlockAllocatorBitmap, blockAllocator)
	assert.Equal(t, reiser4prim.OIDAllocatorDefault, oidAllocator)
}
