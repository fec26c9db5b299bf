package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/plugin"
)

func TestTailCreate(t *testing.T) {
	var p TailPlugin
	hint := plugin.ItemHint{Body: []byte("hello")}
	body := make([]byte, p.Estimate(0, hint))
	require.NoError(t, p.Create(body, hint))
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, 5, p.Count(body))
}

func TestTailInsertSplicesAtByteOffset(t *testing.T) {
	var p TailPlugin
	body := []byte("helloworld")
	hint := plugin.ItemHint{Body: []byte(" ")}
	// node40.Paste grows the item by appending placeholder bytes at the
	// tail; the old content stays at its original offsets until Insert
	// shifts it.
	grown := make([]byte, len(body)+len(hint.Body))
	copy(grown, body)
	require.NoError(t, p.Insert(grown, 5, hint))
	assert.Equal(t, "hello world", string(grown))
}

func TestTailRemove(t *testing.T) {
	var p TailPlugin
	body := []byte("abc")
	require.NoError(t, p.Remove(body, 1))
	assert.Equal(t, byte('a'), body[0])
	assert.Equal(t, byte('c'), body[1])
	assert.Equal(t, byte(0), body[2])
}

func TestTailInsertRejectsOutOfRange(t *testing.T) {
	var p TailPlugin
	body := make([]byte, 3)
	err := p.Insert(body, 10, plugin.ItemHint{Body: make([]byte, 1)})
	assert.Error(t, err)
}
