package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

func newRegistryWithUnixStat(t *testing.T) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry(0)
	require.NoError(t, reg.Register(UnixStatExt{}))
	return reg
}

func TestBuildStatDataNoExtensions(t *testing.T) {
	reg := newRegistryWithUnixStat(t)

	body, err := BuildStatData(reg, 0o644, 1, 4096, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, prologueSize, len(body))

	p := NewStatDataPlugin(reg)
	assert.True(t, p.Confirm(body))
	mode, err := p.GetMode(body)
	require.NoError(t, err)
	assert.EqualValues(t, 0o644, mode)
}

func TestBuildStatDataWithUnixStatExtension(t *testing.T) {
	reg := newRegistryWithUnixStat(t)

	unix := UnixStat{UID: 1000, GID: 1000, ATime: 1, MTime: 2, CTime: 3, Bytes: 4096}
	mask := uint64(1) << unixStatExtID
	body, err := BuildStatData(reg, 0o100644, 1, 4096, mask, map[reiser4prim.PluginID][]byte{
		unixStatExtID: unix.Encode(),
	})
	require.NoError(t, err)

	p := NewStatDataPlugin(reg)
	require.True(t, p.Confirm(body))

	payload, err := ReadStatDataExt(reg, body, unixStatExtID)
	require.NoError(t, err)
	got, err := DecodeUnixStat(payload)
	require.NoError(t, err)
	assert.Equal(t, unix, got)
}

func TestStatDataSetMode(t *testing.T) {
	reg := newRegistryWithUnixStat(t)
	body, err := BuildStatData(reg, 0o644, 1, 0, 0, nil)
	require.NoError(t, err)

	p := NewStatDataPlugin(reg)
	require.NoError(t, p.SetMode(body, 0o755))
	mode, err := p.GetMode(body)
	require.NoError(t, err)
	assert.EqualValues(t, 0o755, mode)
}

func TestStatDataCreateRejectsSizeMismatch(t *testing.T) {
	reg := newRegistryWithUnixStat(t)
	p := NewStatDataPlugin(reg)
	body := make([]byte, prologueSize+1)
	hint := plugin.ItemHint{Body: make([]byte, prologueSize)}
	assert.Error(t, p.Create(body, hint))
}

func TestStatDataInsertRemoveUnsupported(t *testing.T) {
	reg := newRegistryWithUnixStat(t)
	p := NewStatDataPlugin(reg)
	body := make([]byte, prologueSize)
	assert.Error(t, p.Insert(body, 0, plugin.ItemHint{}))
	assert.Error(t, p.Remove(body, 0))
}
