package object

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/hash"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/oidalloc"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
	"github.com/edward6/reiser4-sub006/tree"
)

const testBlockSize = 256

func newTestDeps(t *testing.T, totalBlocks uint64, tails TailPolicy) Deps {
	t.Helper()
	file := diskio.NewMemFile("test", int64(totalBlocks)*testBlockSize)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)

	bmAlloc, err := alloc.Create(dev, 0, totalBlocks)
	require.NoError(t, err)

	reg := plugin.NewRegistry(0)
	require.NoError(t, reg.Register(item.UnixStatExt{}))
	require.NoError(t, reg.Register(item.NewStatDataPlugin(reg)))
	require.NoError(t, reg.Register(item.DirEntryPlugin{}))
	require.NoError(t, reg.Register(item.TailPlugin{}))
	require.NoError(t, reg.Register(item.ExtentPlugin{}))

	tr, err := tree.Create(dev, reg, bmAlloc)
	require.NoError(t, err)

	return Deps{
		Core:   tr,
		Reg:    reg,
		Dev:    dev,
		Blocks: bmAlloc,
		OIDs:   oidalloc.New(),
		Tails:  tails,
		HashFn: hash.R5{}.Func(),
	}
}

func TestCreateRootDirectoryHasDotAndDotDot(t *testing.T) {
	deps := newTestDeps(t, 64, AlwaysTail{})
	ctx := context.Background()

	root, err := CreateRootDirectory(ctx, deps)
	require.NoError(t, err)

	entries, err := root.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]item.Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	dot, ok := byName["."]
	require.True(t, ok)
	assert.Equal(t, reiser4prim.RootLocality, dot.ParentLocality)
	assert.Equal(t, reiser4prim.RootObjectID, dot.ObjectID)

	dotdot, ok := byName[".."]
	require.True(t, ok)
	assert.Equal(t, reiser4prim.RootLocality, dotdot.ParentLocality)
	assert.Equal(t, reiser4prim.RootObjectID, dotdot.ObjectID)
}

func TestCreateSubdirectoryLinksToParent(t *testing.T) {
	deps := newTestDeps(t, 64, AlwaysTail{})
	ctx := context.Background()

	root, err := CreateRootDirectory(ctx, deps)
	require.NoError(t, err)

	sub, err := CreateDirectory(ctx, deps, root.StatDataKey())
	require.NoError(t, err)
	require.NoError(t, root.AddEntry(ctx, "sub", sub.Locality(), sub.ObjectID()))

	found, err := root.Lookup(ctx, "sub")
	require.NoError(t, err)
	assert.Equal(t, sub.Locality(), found.ParentLocality)
	assert.Equal(t, sub.ObjectID(), found.ObjectID)

	subEntries, err := sub.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, subEntries, 2)
}

func TestRegularFileRoundTripsTailBody(t *testing.T) {
	deps := newTestDeps(t, 64, AlwaysTail{})
	ctx := context.Background()

	root, err := CreateRootDirectory(ctx, deps)
	require.NoError(t, err)

	f, err := CreateRegularFile(ctx, deps, root.StatDataKey())
	require.NoError(t, err)
	require.NoError(t, root.AddEntry(ctx, "file.txt", f.Locality(), f.ObjectID()))

	payload := []byte("hello reiser4")
	n, err := f.Write(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	f.Reset()
	buf := make([]byte, len(payload))
	n, err = f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, buf))

	reopened, err := OpenRegularFile(ctx, deps, f.Locality(), f.ObjectID())
	require.NoError(t, err)
	size, err := reopened.size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), size)
}

func TestRegularFileExtentBodyRoundTrips(t *testing.T) {
	deps := newTestDeps(t, 64, NewSmartTail(16))
	ctx := context.Background()

	root, err := CreateRootDirectory(ctx, deps)
	require.NoError(t, err)

	f, err := CreateRegularFile(ctx, deps, root.StatDataKey())
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xAB}, 64)
	_, err = f.Write(ctx, payload)
	require.NoError(t, err)

	f.Seek(0)
	buf := make([]byte, len(payload))
	n, err := f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, buf))
}

func TestRegularFileTruncateShrinksTail(t *testing.T) {
	deps := newTestDeps(t, 64, AlwaysTail{})
	ctx := context.Background()

	root, err := CreateRootDirectory(ctx, deps)
	require.NoError(t, err)
	f, err := CreateRegularFile(ctx, deps, root.StatDataKey())
	require.NoError(t, err)

	_, err = f.Write(ctx, []byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, f.Truncate(ctx, 4))
	size, err := f.size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size)

	f.Reset()
	buf := make([]byte, 4)
	n, err := f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("0123"), buf)
}

func TestDirectoryNameCollisionGetsNextGeneration(t *testing.T) {
	deps := newTestDeps(t, 64, AlwaysTail{})
	deps.HashFn = func(name string) uint64 { return 42 }
	ctx := context.Background()

	root, err := CreateRootDirectory(ctx, deps)
	require.NoError(t, err)

	f1, err := CreateRegularFile(ctx, deps, root.StatDataKey())
	require.NoError(t, err)
	f2, err := CreateRegularFile(ctx, deps, root.StatDataKey())
	require.NoError(t, err)

	require.NoError(t, root.AddEntry(ctx, "a-long-colliding-name-one", f1.Locality(), f1.ObjectID()))
	require.NoError(t, root.AddEntry(ctx, "a-long-colliding-name-two", f2.Locality(), f2.ObjectID()))

	e1, err := root.Lookup(ctx, "a-long-colliding-name-one")
	require.NoError(t, err)
	assert.Equal(t, f1.ObjectID(), e1.ObjectID)

	e2, err := root.Lookup(ctx, "a-long-colliding-name-two")
	require.NoError(t, err)
	assert.Equal(t, f2.ObjectID(), e2.ObjectID)
}
