package reiser4prim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyTotalOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, MinKey.Compare(MinKey))
	assert.Equal(t, -1, MinKey.Compare(MaxKey))
	assert.Equal(t, 1, MaxKey.Compare(MinKey))

	a := BuildGeneric(MinorStatData, 42, 1, 0)
	b := BuildGeneric(MinorFileBody, 42, 1, 0)
	assert.Equal(t, -1, a.Compare(b), "statdata must sort before file body within the same object")

	c := BuildGeneric(MinorFileBody, 42, 1, 10)
	d := BuildGeneric(MinorFileBody, 42, 1, 20)
	assert.Equal(t, -1, c.Compare(d))
	assert.Equal(t, 1, d.Compare(c))
}

func TestKeyValid(t *testing.T) {
	t.Parallel()

	assert.True(t, MinKey.Valid())
	bad := Key{Word0: uint64(minorTypeInvalid)}
	assert.False(t, bad.Valid())
}

func TestKeyFields(t *testing.T) {
	t.Parallel()

	k := BuildGeneric(MinorFileBody, 7, 99, 0x1234)
	assert.Equal(t, ObjID(7), k.Locality())
	assert.Equal(t, MinorFileBody, k.MinorType())
	assert.Equal(t, ObjID(99), k.ObjectID())
	assert.Equal(t, uint64(0x1234), k.Offset())
}

func TestBuildDirectoryShortNameOrdering(t *testing.T) {
	t.Parallel()

	// Short names pack directly, little-endian; a one-byte name lands
	// in the low byte, so "a" sorts before "b".
	a := BuildDirectory(1, 2, "a", 0, nil)
	b := BuildDirectory(1, 2, "b", 0, nil)
	assert.Equal(t, -1, a.Compare(b))

	same1 := BuildDirectory(1, 2, "dup", 0, nil)
	same2 := BuildDirectory(1, 2, "dup", 1, nil)
	assert.Equal(t, -1, same1.Compare(same2), "generation counter must break ties")
}

func TestBuildDirectoryHashesLongNames(t *testing.T) {
	t.Parallel()

	calls := 0
	hashFn := func(name string) uint64 {
		calls++
		return 0xdeadbeef
	}
	k := BuildDirectory(1, 2, "this-name-is-longer-than-seven-bytes", 0, hashFn)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(0xdeadbeef), k.NameHash())
}
