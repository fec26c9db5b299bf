package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

const testBlockSize = 256

func newTestTree(t *testing.T, totalBlocks uint64) (*Tree, *plugin.Registry) {
	t.Helper()
	file := diskio.NewMemFile("test", int64(totalBlocks)*testBlockSize)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)

	bmAlloc, err := alloc.Create(dev, 0, totalBlocks)
	require.NoError(t, err)

	reg := plugin.NewRegistry(0)
	require.NoError(t, reg.Register(item.UnixStatExt{}))
	require.NoError(t, reg.Register(item.NewStatDataPlugin(reg)))

	tr, err := Create(dev, reg, bmAlloc)
	require.NoError(t, err)
	return tr, reg
}

func statKey(oid uint64) reiser4prim.Key {
	return reiser4prim.BuildGeneric(reiser4prim.MinorStatData, reiser4prim.ObjID(oid), reiser4prim.ObjID(oid), 0)
}

func statHint(t *testing.T, reg *plugin.Registry, oid uint64) plugin.ItemHint {
	t.Helper()
	body, err := item.BuildStatData(reg, 0o644, 1, 0, 0, nil)
	require.NoError(t, err)
	return plugin.ItemHint{Key: statKey(oid), PluginID: reiser4prim.ItemPluginStatData, Body: body}
}

func TestInsertLookupSingle(t *testing.T) {
	tr, reg := newTestTree(t, 64)
	ctx := context.Background()

	hint := statHint(t, reg, 10)
	coord, err := tr.Insert(ctx, hint)
	require.NoError(t, err)
	assert.Equal(t, 0, coord.Pos)

	found, ok, err := tr.Lookup(ctx, 1, statKey(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, found.Pos)
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	tr, reg := newTestTree(t, 64)
	ctx := context.Background()

	hint := statHint(t, reg, 10)
	_, err := tr.Insert(ctx, hint)
	require.NoError(t, err)
	_, err = tr.Insert(ctx, hint)
	assert.ErrorIs(t, err, reiser4prim.ErrDuplicateKey)
}

func TestInsertManyForcesSplitAndGrowsRoot(t *testing.T) {
	tr, reg := newTestTree(t, 256)
	ctx := context.Background()

	const n = 40
	for i := uint64(0); i < n; i++ {
		_, err := tr.Insert(ctx, statHint(t, reg, i+100))
		require.NoError(t, err)
	}
	assert.Greater(t, tr.Height(), uint8(1), "inserting enough items must grow the tree above one level")

	for i := uint64(0); i < n; i++ {
		_, ok, err := tr.Lookup(ctx, 1, statKey(i+100))
		require.NoError(t, err)
		assert.True(t, ok, "key %d must be found after split", i+100)
	}
}

func TestRemoveThenLookupMisses(t *testing.T) {
	tr, reg := newTestTree(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	require.NoError(t, tr.Remove(ctx, statKey(10)))

	_, ok, err := tr.Lookup(ctx, 1, statKey(10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveManyUnwindsSplitNodes(t *testing.T) {
	tr, reg := newTestTree(t, 256)
	ctx := context.Background()

	const n = 40
	for i := uint64(0); i < n; i++ {
		_, err := tr.Insert(ctx, statHint(t, reg, i+100))
		require.NoError(t, err)
	}
	for i := uint64(0); i < n; i++ {
		require.NoError(t, tr.Remove(ctx, statKey(i+100)))
	}
	for i := uint64(0); i < n; i++ {
		_, ok, err := tr.Lookup(ctx, 1, statKey(i+100))
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestLeftRightNeighborAcrossSplit(t *testing.T) {
	tr, reg := newTestTree(t, 256)
	ctx := context.Background()

	const n = 20
	for i := uint64(0); i < n; i++ {
		_, err := tr.Insert(ctx, statHint(t, reg, i))
		require.NoError(t, err)
	}

	coord, ok, err := tr.Lookup(ctx, 1, statKey(0))
	require.NoError(t, err)
	require.True(t, ok)

	seen := map[uint64]bool{0: true}
	cur := coord
	for i := uint64(1); i < n; i++ {
		next, ok, err := tr.RightNeighbor(ctx, cur)
		require.NoError(t, err)
		require.True(t, ok, "expected a right neighbor after visiting %d keys", len(seen))
		key := next.Node.ItemKey(next.Pos)
		seen[uint64(key.ObjectID())] = true
		cur = next
	}
}

func TestSyncClearsDirtyFlag(t *testing.T) {
	tr, reg := newTestTree(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	assert.True(t, tr.root.node.Block().Dirty())

	require.NoError(t, tr.Sync(ctx))
	assert.False(t, tr.root.node.Block().Dirty())
}
