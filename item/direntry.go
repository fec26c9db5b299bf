package item

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// slotSize is the on-disk size of one directory-entry slot: a u16
// entry-id (the key's generation counter, disambiguating hash
// collisions within one item) and a u16 byte offset into the body's
// record region (spec.md §4.7.2).
const slotSize = 4

// recordHeadSize is the fixed part of a directory-entry record,
// before its NUL-terminated name (spec.md §4.7.2).
const recordHeadSize = 16

// Entry is the decoded form of one directory-entry record.
type Entry struct {
	EntryID        uint16
	ParentLocality reiser4prim.ObjID
	ObjectID       reiser4prim.ObjID
	Name           string
}

// EncodeEntryHint packs an Entry into the plugin.ItemHint.Body
// encoding DirEntryPlugin.Insert/Create expect: parent-locality (u64),
// object id (u64), then the raw name bytes (no NUL — the plugin adds
// it when repacking).
func EncodeEntryHint(e Entry) []byte {
	buf := make([]byte, recordHeadSize+len(e.Name))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.ParentLocality))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.ObjectID))
	copy(buf[recordHeadSize:], e.Name)
	return buf
}

func decodeEntryHint(b []byte) (parentLocality, objectID reiser4prim.ObjID, name string, err error) {
	if len(b) < recordHeadSize {
		return 0, 0, "", fmt.Errorf("item: entry hint shorter than record head: %w", reiser4prim.ErrInvalidArgument)
	}
	parentLocality = reiser4prim.ObjID(binary.LittleEndian.Uint64(b[0:8]))
	objectID = reiser4prim.ObjID(binary.LittleEndian.Uint64(b[8:16]))
	name = string(b[recordHeadSize:])
	return parentLocality, objectID, name, nil
}

func readCount(body []byte) (int, error) {
	if len(body) < 2 {
		return 0, fmt.Errorf("item: directory-entry body shorter than count field: %w", reiser4prim.ErrCorrupted)
	}
	return int(binary.LittleEndian.Uint16(body[0:2])), nil
}

func readSlot(body []byte, i int) (entryID uint16, offset uint16, err error) {
	off := 2 + i*slotSize
	if off+slotSize > len(body) {
		return 0, 0, fmt.Errorf("item: directory-entry slot %d out of range: %w", i, reiser4prim.ErrCorrupted)
	}
	return binary.LittleEndian.Uint16(body[off : off+2]), binary.LittleEndian.Uint16(body[off+2 : off+4]), nil
}

// DecodeEntries exposes decodeEntries to callers outside this package
// (the object layer, which needs to read back an item's entries to
// detect name collisions and list a directory's contents).
func DecodeEntries(body []byte) ([]Entry, error) { return decodeEntries(body) }

// decodeEntries parses every entry currently in body, in slot order
// (which is sorted by entry id, spec.md §3.3: "directory-entry items
// with equal hashes MAY tie, distinguished by generation counter").
func decodeEntries(body []byte) ([]Entry, error) {
	count, err := readCount(body)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		id, offset, err := readSlot(body, i)
		if err != nil {
			return nil, err
		}
		if int(offset)+recordHeadSize > len(body) {
			return nil, fmt.Errorf("item: directory-entry record %d out of range: %w", i, reiser4prim.ErrCorrupted)
		}
		nameStart := int(offset) + recordHeadSize
		nameEnd := nameStart
		for nameEnd < len(body) && body[nameEnd] != 0 {
			nameEnd++
		}
		if nameEnd >= len(body) {
			return nil, fmt.Errorf("item: directory-entry record %d name not NUL-terminated: %w", i, reiser4prim.ErrCorrupted)
		}
		parentLocality := reiser4prim.ObjID(binary.LittleEndian.Uint64(body[offset : offset+8]))
		objectID := reiser4prim.ObjID(binary.LittleEndian.Uint64(body[offset+8 : offset+16]))
		entries = append(entries, Entry{
			EntryID:        id,
			ParentLocality: parentLocality,
			ObjectID:       objectID,
			Name:           string(body[nameStart:nameEnd]),
		})
	}
	return entries, nil
}

// encodeEntries is decodeEntries' inverse: it repacks entries (already
// in the desired final order) into a fresh body buffer of exactly
// EstimateEntries(entries) bytes.
func encodeEntries(entries []Entry) []byte {
	slotsEnd := 2 + len(entries)*slotSize
	recordsLen := 0
	for _, e := range entries {
		recordsLen += recordHeadSize + len(e.Name) + 1
	}
	buf := make([]byte, slotsEnd+recordsLen)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(entries)))

	recordOffset := slotsEnd
	for i, e := range entries {
		slotOff := 2 + i*slotSize
		binary.LittleEndian.PutUint16(buf[slotOff:slotOff+2], e.EntryID)
		binary.LittleEndian.PutUint16(buf[slotOff+2:slotOff+4], uint16(recordOffset))

		binary.LittleEndian.PutUint64(buf[recordOffset:recordOffset+8], uint64(e.ParentLocality))
		binary.LittleEndian.PutUint64(buf[recordOffset+8:recordOffset+16], uint64(e.ObjectID))
		copy(buf[recordOffset+recordHeadSize:], e.Name)
		// trailing byte is already zero (NUL terminator)
		recordOffset += recordHeadSize + len(e.Name) + 1
	}
	return buf
}

// EstimateEntries is encodeEntries' exact output length.
func EstimateEntries(entries []Entry) int {
	total := 2 + len(entries)*slotSize
	for _, e := range entries {
		total += recordHeadSize + len(e.Name) + 1
	}
	return total
}

// DirEntryPlugin is the directory-entry container item plugin
// (spec.md §3.4, §4.7.2).
type DirEntryPlugin struct{}

const dirEntryPluginID = reiser4prim.ItemPluginDirEntry

func (DirEntryPlugin) PluginID() reiser4prim.PluginID     { return dirEntryPluginID }
func (DirEntryPlugin) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeItem }
func (DirEntryPlugin) Label() string                      { return "direntry40" }
func (DirEntryPlugin) Kind() plugin.ItemKind               { return plugin.ItemKindPlain }

func (DirEntryPlugin) MinSize() int { return EstimateEntries(nil) }

func (DirEntryPlugin) MaxKey(body []byte) reiser4prim.Key { return reiser4prim.Key{} }

// Lookup finds the unit position of the entry whose generation
// counter (packed into the key's low 8 bits) matches key.Generation();
// every entry sharing one item shares the same name hash by
// construction (spec.md §3.2/§3.3), so the generation counter alone
// disambiguates within it.
func (DirEntryPlugin) Lookup(body []byte, key reiser4prim.Key) (int, bool) {
	entries, err := decodeEntries(body)
	if err != nil {
		return 0, false
	}
	want := uint16(key.Generation())
	for i, e := range entries {
		if e.EntryID == want {
			return i, true
		}
	}
	return 0, false
}

func (p DirEntryPlugin) Count(body []byte) int {
	count, err := readCount(body)
	if err != nil {
		return 0
	}
	return count
}

func (p DirEntryPlugin) Confirm(body []byte) bool {
	_, err := decodeEntries(body)
	return err == nil
}

func (p DirEntryPlugin) Valid(body []byte) bool { return p.Confirm(body) }

func (p DirEntryPlugin) Print(body []byte, opts plugin.ItemOptions) string {
	entries, err := decodeEntries(body)
	if err != nil {
		return fmt.Sprintf("<direntry: %v>", err)
	}
	return fmt.Sprintf("direntry{count=%d names=%v}", len(entries), names(entries))
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func (p DirEntryPlugin) Check(body []byte, opts plugin.ItemOptions) error {
	if !p.Confirm(body) {
		return fmt.Errorf("item: directory-entry body fails confirm: %w", reiser4prim.ErrCorrupted)
	}
	return nil
}

// Estimate returns the size of a fresh single-entry item holding
// hint's entry, count field included.
func (p DirEntryPlugin) Estimate(posHint int, hint plugin.ItemHint) int {
	_, _, name, err := decodeEntryHint(hint.Body)
	if err != nil {
		return 0
	}
	return EstimateEntries([]Entry{{Name: name}})
}

// Create builds a fresh single-entry item from hint.
func (p DirEntryPlugin) Create(body []byte, hint plugin.ItemHint) error {
	parentLocality, objectID, name, err := decodeEntryHint(hint.Body)
	if err != nil {
		return err
	}
	entries := []Entry{{EntryID: uint16(hint.Key.Generation()), ParentLocality: parentLocality, ObjectID: objectID, Name: name}}
	fresh := encodeEntries(entries)
	if len(fresh) != len(body) {
		return fmt.Errorf("item: directory-entry create size mismatch: %w", reiser4prim.ErrInvalidArgument)
	}
	copy(body, fresh)
	return nil
}

// Insert reflows body (already grown by the node by Estimate's size)
// to add the entry described by hint at the sorted position, keeping
// entries ordered by entry id (spec.md §4.7.2, §4.6.2 step 7's "for
// paste, extends the existing header's length"). Estimate counts the
// 2-byte count field a fresh item needs, so the new encoding leaves
// that many spare bytes at the end of body, which are zeroed.
func (p DirEntryPlugin) Insert(body []byte, unitPos int, hint plugin.ItemHint) error {
	parentLocality, objectID, name, err := decodeEntryHint(hint.Body)
	if err != nil {
		return err
	}
	oldLen := len(body) - (p.Estimate(unitPos, hint))
	if oldLen < 0 {
		oldLen = 0
	}
	entries, err := decodeEntries(body[:oldLen])
	if err != nil {
		return err
	}
	newEntry := Entry{EntryID: uint16(hint.Key.Generation()), ParentLocality: parentLocality, ObjectID: objectID, Name: name}
	entries = append(entries, newEntry)
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntryID < entries[j].EntryID })

	fresh := encodeEntries(entries)
	if len(fresh) > len(body) {
		return fmt.Errorf("item: directory-entry insert size mismatch (got %d want at most %d): %w", len(fresh), len(body), reiser4prim.ErrCorrupted)
	}
	copy(body, fresh)
	for i := len(fresh); i < len(body); i++ {
		body[i] = 0
	}
	return nil
}

// Remove reflows body to drop unit unitPos, then callers (tree) shrink
// the node's reserved space to match the new, smaller encoding.
func (p DirEntryPlugin) Remove(body []byte, unitPos int) error {
	entries, err := decodeEntries(body)
	if err != nil {
		return err
	}
	if unitPos < 0 || unitPos >= len(entries) {
		return fmt.Errorf("item: remove unit %d out of range: %w", unitPos, reiser4prim.ErrInvalidArgument)
	}
	entries = append(entries[:unitPos], entries[unitPos+1:]...)
	fresh := encodeEntries(entries)
	copy(body, fresh)
	for i := len(fresh); i < len(body); i++ {
		body[i] = 0
	}
	return nil
}

// MaxNameLen is the largest name that could ever fit as the sole entry
// of a freshly created node40 leaf of the given block size (spec.md
// §4.7: "the directory-entry plugin exposes... max_name_len(block_size)").
func (DirEntryPlugin) MaxNameLen(blockSize int) int {
	return blockSize - node40.HeaderSize - node40.ItemHeaderSize - EstimateEntries([]Entry{{}})
}

var _ plugin.Item = DirEntryPlugin{}
