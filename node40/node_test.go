package node40

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

const testBlockSize = 512

func newTestNode(t *testing.T, level uint8) *Node {
	t.Helper()
	file := diskio.NewMemFile("test", testBlockSize*4)
	dev, err := diskio.NewDevice(file, testBlockSize, diskio.Flags{})
	require.NoError(t, err)
	blk, err := diskio.NewBlock(dev, 0)
	require.NoError(t, err)
	n, err := Create(blk, level)
	require.NoError(t, err)
	return n
}

func TestCreateThenOpen(t *testing.T) {
	t.Parallel()

	n := newTestNode(t, 1)
	assert.Equal(t, 0, n.Count())
	assert.Equal(t, uint8(1), n.Level())
	assert.Equal(t, testBlockSize-HeaderSize, n.FreeSpace())

	reopened, err := Open(n.Block())
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Count())
	assert.Equal(t, uint8(1), reopened.Level())
}

func TestOpenRejectsBadMagic(t *testing.T) {
	t.Parallel()

	n := newTestNode(t, 1)
	n.Block().Bytes()[0x7] = 0xFF
	_, err := Open(n.Block())
	require.Error(t, err)
}

func TestInsertLookupRemove(t *testing.T) {
	t.Parallel()

	n := newTestNode(t, 1)
	k1 := reiser4prim.BuildGeneric(reiser4prim.MinorStatData, 2, 100, 0)
	k2 := reiser4prim.BuildGeneric(reiser4prim.MinorFileBody, 2, 100, 0)
	k3 := reiser4prim.BuildGeneric(reiser4prim.MinorFileBody, 2, 100, 4096)

	require.NoError(t, n.Insert(0, k1, reiser4prim.ItemPluginStatData, []byte("stat")))
	require.NoError(t, n.Insert(1, k3, reiser4prim.ItemPluginExtent, []byte("extent-3")))
	// Insert k2 between k1 and k3.
	require.NoError(t, n.Insert(1, k2, reiser4prim.ItemPluginExtent, []byte("extent-2")))

	require.Equal(t, 3, n.Count())

	pos, found, err := n.Lookup(k2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, pos)

	body, err := n.ItemBody(pos)
	require.NoError(t, err)
	assert.Equal(t, "extent-2", string(body))

	gotKey, err := n.GetKey(2)
	require.NoError(t, err)
	assert.Equal(t, 0, gotKey.Compare(k3))

	require.NoError(t, n.Remove(0))
	require.Equal(t, 2, n.Count())
	gotKey0, err := n.GetKey(0)
	require.NoError(t, err)
	assert.Equal(t, 0, gotKey0.Compare(k2))
}

func TestPaste(t *testing.T) {
	t.Parallel()

	n := newTestNode(t, 1)
	k := reiser4prim.BuildGeneric(reiser4prim.MinorFileBody, 2, 100, 0)
	require.NoError(t, n.Insert(0, k, reiser4prim.ItemPluginExtent, []byte("abc")))

	require.NoError(t, n.Paste(0, []byte("def")))
	body, err := n.ItemBody(0)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(body))
}

func TestShiftLeft(t *testing.T) {
	t.Parallel()

	src := newTestNode(t, 1)
	dst := newTestNode(t, 1)

	for i := 0; i < 3; i++ {
		k := reiser4prim.BuildGeneric(reiser4prim.MinorFileBody, 2, 100, uint64(i*4096))
		require.NoError(t, src.Insert(src.Count(), k, reiser4prim.ItemPluginExtent, []byte{byte(i)}))
	}

	require.NoError(t, src.ShiftLeft(dst, 2))
	assert.Equal(t, 1, src.Count())
	assert.Equal(t, 2, dst.Count())

	b0, err := dst.ItemBody(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, b0)
	b1, err := dst.ItemBody(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, b1)
}
