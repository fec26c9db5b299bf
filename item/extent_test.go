package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/plugin"
)

func TestExtentEncodeDecodeRoundTrip(t *testing.T) {
	pointers := []ExtentPointer{{StartBlock: 100, Width: 4}, {StartBlock: 200, Width: 1}}
	body := EncodeExtents(pointers)
	got, err := DecodeExtents(body)
	require.NoError(t, err)
	assert.Equal(t, pointers, got)
}

func TestExtentCreate(t *testing.T) {
	var p ExtentPlugin
	hint := plugin.ItemHint{Body: EncodeExtents([]ExtentPointer{{StartBlock: 5, Width: 2}})}
	body := make([]byte, p.Estimate(0, hint))
	require.NoError(t, p.Create(body, hint))
	assert.Equal(t, 1, p.Count(body))
}

func TestExtentInsertAppendsUnit(t *testing.T) {
	var p ExtentPlugin
	body := EncodeExtents([]ExtentPointer{{StartBlock: 1, Width: 1}})
	extra := EncodeExtents([]ExtentPointer{{StartBlock: 2, Width: 3}})
	grown := make([]byte, len(body)+len(extra))
	copy(grown, body)
	require.NoError(t, p.Insert(grown, 1, plugin.ItemHint{Body: extra}))

	pointers, err := DecodeExtents(grown)
	require.NoError(t, err)
	require.Len(t, pointers, 2)
	assert.Equal(t, ExtentPointer{StartBlock: 2, Width: 3}, pointers[1])
}

func TestExtentRemove(t *testing.T) {
	var p ExtentPlugin
	body := EncodeExtents([]ExtentPointer{{StartBlock: 1, Width: 1}, {StartBlock: 2, Width: 2}})
	require.NoError(t, p.Remove(body, 0))
	pointers, err := DecodeExtents(body[:extentPointerSize])
	require.NoError(t, err)
	assert.Equal(t, ExtentPointer{StartBlock: 2, Width: 2}, pointers[0])
}

func TestExtentConfirmRejectsBadLength(t *testing.T) {
	var p ExtentPlugin
	assert.False(t, p.Confirm(make([]byte, extentPointerSize+1)))
}
