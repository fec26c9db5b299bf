package fsck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/format40"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
	"github.com/edward6/reiser4-sub006/tree"
)

const testBlockSize = 256

func newTestFixture(t *testing.T, totalBlocks uint64) (*diskio.Device, *plugin.Registry, *alloc.Allocator, *tree.Tree) {
	t.Helper()
	file := diskio.NewMemFile("test", int64(totalBlocks)*testBlockSize)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)

	bmAlloc, err := alloc.Create(dev, 0, totalBlocks)
	require.NoError(t, err)

	reg := plugin.NewRegistry(0)
	require.NoError(t, reg.Register(item.UnixStatExt{}))
	require.NoError(t, reg.Register(item.NewStatDataPlugin(reg)))

	tr, err := tree.Create(dev, reg, bmAlloc)
	require.NoError(t, err)
	return dev, reg, bmAlloc, tr
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

func TestCheckCleanTreeHasNoErrors(t *testing.T) {
	dev, reg, bmAlloc, tr := newTestFixture(t, 64)
	ctx := context.Background()

	for _, oid := range []uint64{10, 20, 30} {
		_, err := tr.Insert(ctx, statHint(t, reg, oid))
		require.NoError(t, err)
	}
	require.NoError(t, tr.Sync(ctx))

	c := New(dev, reg, bmAlloc, tr.RootBlock(), tr.Height())
	report, err := c.Check(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, report.OK(), "expected a clean tree to check out, got: %v", report.Errors)
	assert.True(t, report.Control.Test(uint64(tr.RootBlock())))
}

func TestCheckDetectsKeyOrderViolation(t *testing.T) {
	dev, reg, bmAlloc, tr := newTestFixture(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	_, err = tr.Insert(ctx, statHint(t, reg, 20))
	require.NoError(t, err)
	require.NoError(t, tr.Sync(ctx))

	blk, err := diskio.ReadBlock(dev, tr.RootBlock())
	require.NoError(t, err)
	n, err := node40.Open(blk)
	require.NoError(t, err)
	require.NoError(t, n.SetKey(1, statKey(5)))
	require.NoError(t, blk.Sync())

	c := New(dev, reg, bmAlloc, tr.RootBlock(), tr.Height())
	report, err := c.Check(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, report.OK())
}

func TestCheckRepairModeLeavesCleanTreeUnchanged(t *testing.T) {
	dev, reg, bmAlloc, tr := newTestFixture(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	_, err = tr.Insert(ctx, statHint(t, reg, 20))
	require.NoError(t, err)
	require.NoError(t, tr.Sync(ctx))

	blk, err := diskio.ReadBlock(dev, tr.RootBlock())
	require.NoError(t, err)
	n, err := node40.Open(blk)
	require.NoError(t, err)
	before := n.FreeSpace()

	c := New(dev, reg, bmAlloc, tr.RootBlock(), tr.Height())
	report, err := c.Check(ctx, Options{Repair: true})
	require.NoError(t, err)
	assert.True(t, report.OK(), "repair mode on a clean tree found: %v", report.Errors)
	assert.Empty(t, report.Repairs)
	assert.Equal(t, before, n.FreeSpace())
}

func TestRepairFreeSpaceIsANoOpOnAFreshNode(t *testing.T) {
	dev, reg, _, tr := newTestFixture(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	require.NoError(t, tr.Sync(ctx))

	blk, err := diskio.ReadBlock(dev, tr.RootBlock())
	require.NoError(t, err)
	n, err := node40.Open(blk)
	require.NoError(t, err)
	want := n.BlockSize() - n.FreeSpaceStart() - n.Count()*node40.ItemHeaderSize

	fixed, err := n.RepairFreeSpace()
	require.NoError(t, err)
	assert.False(t, fixed, "a freshly-inserted node's free_space should already agree with its header")
	assert.Equal(t, want, n.FreeSpace())
}

// TestCheckDetectsCycle builds a two-level tree by hand (bypassing the
// tree package, which never produces a shared child) where both of the
// root's internal items point at the same leaf block, and checks that
// the second visit is flagged.
func TestCheckDetectsCycle(t *testing.T) {
	const totalBlocks = 16
	ctx := context.Background()
	file := diskio.NewMemFile("test", int64(totalBlocks)*testBlockSize)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)
	bmAlloc, err := alloc.Create(dev, 0, totalBlocks)
	require.NoError(t, err)

	reg := plugin.NewRegistry(0)
	require.NoError(t, reg.Register(item.UnixStatExt{}))
	require.NoError(t, reg.Register(item.NewStatDataPlugin(reg)))
	require.NoError(t, reg.Register(item.InternalPlugin{}))

	leafBlk, err := diskio.NewBlock(dev, 5)
	require.NoError(t, err)
	leaf, err := node40.Create(leafBlk, 1)
	require.NoError(t, err)
	body, err := item.BuildStatData(reg, 0o644, 1, 0, 0, nil)
	require.NoError(t, err)
	require.NoError(t, leaf.Insert(0, statKey(10), reiser4prim.ItemPluginStatData, body))
	require.NoError(t, leafBlk.Sync())

	rootBlk, err := diskio.NewBlock(dev, 4)
	require.NoError(t, err)
	root, err := node40.Create(rootBlk, 2)
	require.NoError(t, err)
	require.NoError(t, root.Insert(0, statKey(1), reiser4prim.ItemPluginInternal, item.EncodeInternalHint(5)))
	require.NoError(t, root.Insert(1, statKey(2), reiser4prim.ItemPluginInternal, item.EncodeInternalHint(5)))
	require.NoError(t, rootBlk.Sync())

	c := New(dev, reg, bmAlloc, diskio.BlockAddr(4), 2)
	report, err := c.Check(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, report.OK(), "two internal items pointing at the same leaf should be flagged")
}

// TestCheckDetectsTreeBlockMarkedFreeInBitmap corrupts the allocator's
// bitmap so a live tree block reads as free, a real form of corruption
// (a node the tree still points to that the allocator could hand out
// to someone else).
func TestCheckDetectsTreeBlockMarkedFreeInBitmap(t *testing.T) {
	dev, reg, bmAlloc, tr := newTestFixture(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	require.NoError(t, tr.Sync(ctx))
	require.NoError(t, bmAlloc.Clear(uint64(tr.RootBlock())))

	c := New(dev, reg, bmAlloc, tr.RootBlock(), tr.Height())
	report, err := c.Check(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, report.OK())
}

// TestFromFormatRepairsSuperblockFreeBlocksMismatch desyncs the
// superblock's cached free_blocks from the allocator bitmap's own
// count (the way a crash between allocating a block and the next sync
// would) and checks that Check, in repair mode, corrects it.
func TestFromFormatRepairsSuperblockFreeBlocksMismatch(t *testing.T) {
	ctx := context.Background()
	const totalBlocks = 512
	file := diskio.NewMemFile("test", int64(totalBlocks)*testBlockSize)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)
	reg := plugin.NewRegistry(0)

	f, err := format40.Create(ctx, dev, reg, [16]byte{1}, [16]byte{'t', 'e', 's', 't'})
	require.NoError(t, err)

	declaredBefore := f.FreeBlocks()
	require.NoError(t, f.BlockAllocator().Mark(uint64(totalBlocks-1)))
	assert.NotEqual(t, declaredBefore, uint64(f.BlockAllocator().CountFree()))

	c := FromFormat(f, reg)
	report, err := c.Check(ctx, Options{Repair: true})
	require.NoError(t, err)
	assert.False(t, report.OK(), "a stale superblock free_blocks count should be flagged")
	assert.NotEmpty(t, report.Repairs)
	assert.Equal(t, uint64(f.BlockAllocator().CountFree()), f.FreeBlocks())
}

func TestReportWriteJSON(t *testing.T) {
	dev, reg, bmAlloc, tr := newTestFixture(t, 64)
	ctx := context.Background()

	_, err := tr.Insert(ctx, statHint(t, reg, 10))
	require.NoError(t, err)
	require.NoError(t, tr.Sync(ctx))

	c := New(dev, reg, bmAlloc, tr.RootBlock(), tr.Height())
	report, err := c.Check(ctx, Options{})
	require.NoError(t, err)

	var buf writeBuffer
	require.NoError(t, report.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"ok"`)
	assert.Contains(t, buf.String(), `true`)
}

type writeBuffer struct {
	data []byte
}

func (b *writeBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *writeBuffer) String() string { return string(b.data) }
