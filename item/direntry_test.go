package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

func keyWithGeneration(gen uint8) reiser4prim.Key {
	return reiser4prim.Key{Word2: uint64(gen)}
}

func TestDirEntryCreateAndLookup(t *testing.T) {
	var p DirEntryPlugin

	hint := plugin.ItemHint{Key: keyWithGeneration(0), Body: EncodeEntryHint(Entry{ParentLocality: 10, ObjectID: 20, Name: "dot"})}
	body := make([]byte, p.Estimate(0, hint))
	require.NoError(t, p.Create(body, hint))

	assert.Equal(t, 1, p.Count(body))
	pos, found := p.Lookup(body, keyWithGeneration(0))
	assert.True(t, found)
	assert.Equal(t, 0, pos)

	entries, err := decodeEntries(body)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dot", entries[0].Name)
	assert.Equal(t, reiser4prim.ObjID(10), entries[0].ParentLocality)
	assert.Equal(t, reiser4prim.ObjID(20), entries[0].ObjectID)
}

func TestDirEntryInsertKeepsSortedByEntryID(t *testing.T) {
	var p DirEntryPlugin

	first := plugin.ItemHint{Key: keyWithGeneration(1), Body: EncodeEntryHint(Entry{ObjectID: 1, Name: "bbb"})}
	body := make([]byte, p.Estimate(0, first))
	require.NoError(t, p.Create(body, first))

	second := plugin.ItemHint{Key: keyWithGeneration(0), Body: EncodeEntryHint(Entry{ObjectID: 2, Name: "aaa"})}
	grown := make([]byte, len(body)+p.Estimate(0, second))
	copy(grown, body)
	require.NoError(t, p.Insert(grown, 1, second))

	entries, err := decodeEntries(grown)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint16(0), entries[0].EntryID)
	assert.Equal(t, "aaa", entries[0].Name)
	assert.Equal(t, uint16(1), entries[1].EntryID)
	assert.Equal(t, "bbb", entries[1].Name)
}

func TestDirEntryRemove(t *testing.T) {
	entries := []Entry{
		{EntryID: 0, ObjectID: 1, Name: "a"},
		{EntryID: 1, ObjectID: 2, Name: "b"},
	}
	body := encodeEntries(entries)
	var p DirEntryPlugin
	require.NoError(t, p.Remove(body, 0))

	remaining, err := decodeEntries(body[:EstimateEntries(entries[1:])])
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b", remaining[0].Name)
}

func TestDirEntryMaxNameLen(t *testing.T) {
	var p DirEntryPlugin
	assert.Greater(t, p.MaxNameLen(4096), 0)
}

func TestEncodeDecodeEntriesRoundTrip(t *testing.T) {
	entries := []Entry{
		{EntryID: 0, ParentLocality: 5, ObjectID: 6, Name: "."},
		{EntryID: 1, ParentLocality: 5, ObjectID: 7, Name: ".."},
	}
	body := encodeEntries(entries)
	got, err := decodeEntries(body)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}
