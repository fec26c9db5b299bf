package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/plugin"
)

func TestInternalCreateAndTarget(t *testing.T) {
	var p InternalPlugin
	body := make([]byte, internalBodySize)
	hint := plugin.ItemHint{Body: EncodeInternalHint(777)}
	require.NoError(t, p.Create(body, hint))
	assert.EqualValues(t, 777, p.Target(body))
}

func TestInternalPointTo(t *testing.T) {
	var p InternalPlugin
	body := make([]byte, internalBodySize)
	require.NoError(t, p.Create(body, plugin.ItemHint{Body: EncodeInternalHint(1)}))
	p.PointTo(body, 42)
	assert.EqualValues(t, 42, p.Target(body))
}

func TestInternalConfirmRejectsWrongSize(t *testing.T) {
	var p InternalPlugin
	assert.False(t, p.Confirm(make([]byte, internalBodySize+1)))
}

func TestInternalInsertRemoveUnsupported(t *testing.T) {
	var p InternalPlugin
	body := make([]byte, internalBodySize)
	assert.Error(t, p.Insert(body, 0, plugin.ItemHint{}))
	assert.Error(t, p.Remove(body, 0))
}
