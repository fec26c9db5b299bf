package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/reiser4prim"
)

type fakeDescriptor struct {
	id    reiser4prim.PluginID
	typ   reiser4prim.PluginType
	label string
}

func (d fakeDescriptor) PluginID() reiser4prim.PluginID     { return d.id }
func (d fakeDescriptor) PluginType() reiser4prim.PluginType { return d.typ }
func (d fakeDescriptor) Label() string                      { return d.label }

func TestRegisterAndFind(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	node40 := fakeDescriptor{id: reiser4prim.NodePluginNode40, typ: reiser4prim.PluginTypeNode, label: "node40"}
	require.NoError(t, r.Register(node40))

	got, ok := r.FindByID(reiser4prim.PluginTypeNode, reiser4prim.NodePluginNode40)
	require.True(t, ok)
	assert.Equal(t, node40, got)

	gotByLabel, ok := r.FindByLabel(reiser4prim.PluginTypeNode, "node40")
	require.True(t, ok)
	assert.Equal(t, node40, gotByLabel)

	_, ok = r.FindByID(reiser4prim.PluginTypeNode, reiser4prim.PluginID(999))
	assert.False(t, ok)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	d := fakeDescriptor{id: 1, typ: reiser4prim.PluginTypeItem, label: "statdata"}
	require.NoError(t, r.Register(d))
	err := r.Register(fakeDescriptor{id: 1, typ: reiser4prim.PluginTypeItem, label: "statdata-dup"})
	require.Error(t, err)
}

func TestIterateStopsEarly(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	for i := reiser4prim.PluginID(1); i <= 5; i++ {
		require.NoError(t, r.Register(fakeDescriptor{id: i, typ: reiser4prim.PluginTypeItem, label: "x"}))
	}

	seen := 0
	r.Iterate(reiser4prim.PluginTypeItem, func(Descriptor) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestIterateSkipsOtherTypes(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	require.NoError(t, r.Register(fakeDescriptor{id: 1, typ: reiser4prim.PluginTypeItem, label: "a"}))
	require.NoError(t, r.Register(fakeDescriptor{id: 1, typ: reiser4prim.PluginTypeNode, label: "b"}))

	count := 0
	r.Iterate(reiser4prim.PluginTypeNode, func(Descriptor) bool {
		count++
		return true
	})
	assert.Equal(t, 1, count)
}
