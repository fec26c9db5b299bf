package object

import (
	"context"
	"fmt"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Unix file-type bits, packed into a statdata's mode field the way
// dir40_create/reg40 do (original_source/reiser4progs/plugin/{dir40,
// reg40}): S_IFREG and S_IFDIR's standard octal values.
const (
	typeMask      = 0xF000
	typeRegular   = 0x8000
	typeDirectory = 0x4000

	defaultRegularMode = typeRegular | 0644
)

// cursor is the read/write position every object contract embeds
// (spec.md §4.11: "reset... offset, seek").
type cursor struct {
	offset uint64
}

func (c *cursor) Reset()              { c.offset = 0 }
func (c *cursor) Offset() uint64       { return c.offset }
func (c *cursor) Seek(newOffset uint64) { c.offset = newOffset }

// RegularFile is the regular-file object plugin of spec.md §3.5/
// §4.11: a statdata item plus a sequence of tail/extent body items
// covering [0, size).
type RegularFile struct {
	cursor

	deps     Deps
	locality reiser4prim.ObjID
	oid      reiser4prim.ObjID
}

// CreateRegularFile allocates a fresh oid inside the directory whose
// own statdata key is parentKey and inserts the new file's statdata
// item; body items are inserted lazily by Write (spec.md §4.11:
// "Regular-file-create emits one statdata item; body items are
// inserted lazily on write").
func CreateRegularFile(ctx context.Context, deps Deps, parentKey reiser4prim.Key) (*RegularFile, error) {
	parentOid := parentKey.ObjectID()

	oid, err := deps.OIDs.Allocate()
	if err != nil {
		return nil, fmt.Errorf("object: allocating regular file oid: %w", err)
	}
	body, err := item.BuildStatData(deps.Reg, defaultRegularMode, 1, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	key := statDataKey(parentOid, oid)
	if _, err := deps.Core.Insert(ctx, plugin.ItemHint{Key: key, PluginID: reiser4prim.ItemPluginStatData, Body: body}); err != nil {
		return nil, fmt.Errorf("object: inserting statdata for new file %d/%d: %w", parentOid, oid, err)
	}
	return &RegularFile{deps: deps, locality: parentOid, oid: oid}, nil
}

// OpenRegularFile resolves an existing (locality, oid) pair to a
// regular-file handle, rejecting anything whose statdata mode isn't a
// regular file.
func OpenRegularFile(ctx context.Context, deps Deps, locality, oid reiser4prim.ObjID) (*RegularFile, error) {
	_, pr, err := lookupStatData(ctx, deps.Core, locality, oid)
	if err != nil {
		return nil, err
	}
	if pr.Mode&typeMask != typeRegular {
		return nil, fmt.Errorf("object: %d/%d is not a regular file (mode %#o): %w", locality, oid, pr.Mode, reiser4prim.ErrInvalidArgument)
	}
	return &RegularFile{deps: deps, locality: locality, oid: oid}, nil
}

// Close is a no-op: this package holds no per-handle resources beyond
// the cursor, everything else lives in the tree's own cache.
func (f *RegularFile) Close() error { return nil }

func (f *RegularFile) ObjectID() reiser4prim.ObjID { return f.oid }
func (f *RegularFile) Locality() reiser4prim.ObjID { return f.locality }

func (f *RegularFile) size(ctx context.Context) (uint64, error) {
	_, pr, err := lookupStatData(ctx, f.deps.Core, f.locality, f.oid)
	if err != nil {
		return 0, err
	}
	return pr.Size, nil
}

// findCoveringBodyItem locates the file-body item that covers byte
// offset, backing up one position the same way tree.Lookup's internal
// descent does when the exact key isn't present (spec.md §4.8.2 step
// 3) — file-body items are keyed by their own starting offset, not one
// key per byte, so the item covering offset is usually the one just
// before wherever offset itself would sort.
func (f *RegularFile) findCoveringBodyItem(ctx context.Context, offset uint64) (plugin.Coord, uint64, bool, error) {
	key := fileBodyKey(f.locality, f.oid, offset)
	coord, found, err := f.deps.Core.Lookup(ctx, leafLevel, key)
	if err != nil {
		return plugin.Coord{}, 0, false, err
	}
	if found {
		return coord, offset, true, nil
	}
	if coord.Pos == 0 {
		return plugin.Coord{}, 0, false, nil
	}
	prevPos := coord.Pos - 1
	prevKey := coord.Node.ItemKey(prevPos)
	if prevKey.MinorType() != reiser4prim.MinorFileBody || prevKey.Locality() != f.locality || prevKey.ObjectID() != f.oid {
		return plugin.Coord{}, 0, false, nil
	}
	base := prevKey.Offset()
	if base > offset {
		return plugin.Coord{}, 0, false, nil
	}
	return plugin.Coord{Node: coord.Node, Pos: prevPos}, base, true, nil
}

// Read copies up to len(buf) bytes starting at the cursor, stopping at
// the file's recorded size; gaps with no covering item (spec.md §3.4's
// unallocated extents) read back as zero.
func (f *RegularFile) Read(ctx context.Context, buf []byte) (int, error) {
	size, err := f.size(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for n < len(buf) && f.offset < size {
		want := len(buf) - n
		if remaining := size - f.offset; uint64(want) > remaining {
			want = int(remaining)
		}
		coord, base, found, err := f.findCoveringBodyItem(ctx, f.offset)
		if err != nil {
			return n, err
		}
		if !found {
			for i := 0; i < want; i++ {
				buf[n+i] = 0
			}
			n += want
			f.offset += uint64(want)
			continue
		}

		pluginID := f.deps.Core.ItemPluginID(coord)
		body := f.deps.Core.ItemBody(coord)
		switch pluginID {
		case reiser4prim.ItemPluginTail:
			within := int(f.offset - base)
			avail := len(body) - within
			if avail <= 0 {
				return n, fmt.Errorf("object: tail item at offset %d does not cover read offset %d: %w", base, f.offset, reiser4prim.ErrCorrupted)
			}
			if avail > want {
				avail = want
			}
			copy(buf[n:n+avail], body[within:within+avail])
			n += avail
			f.offset += uint64(avail)
		case reiser4prim.ItemPluginExtent:
			within := int(f.offset - base)
			got, err := readExtentRange(f.deps.Dev, body, within, buf[n:n+want])
			if err != nil {
				return n, err
			}
			if got == 0 {
				return n, fmt.Errorf("object: extent item at offset %d does not cover read offset %d: %w", base, f.offset, reiser4prim.ErrCorrupted)
			}
			n += got
			f.offset += uint64(got)
		default:
			return n, fmt.Errorf("object: unexpected file-body plugin %d at offset %d: %w", pluginID, base, reiser4prim.ErrCorrupted)
		}
	}
	return n, nil
}

// Write inserts buf as one new file-body item at the cursor: a tail
// item if the tail policy says so for the file's size after the
// write, otherwise an extent item over freshly allocated blocks
// (spec.md §4.11's "body items are inserted lazily on write"). Unlike
// a POSIX write(2), this never pastes into an existing item — the
// tree's Core only exposes whole-item insert/remove (spec.md §4.1) —
// so overwriting bytes already covered by a prior item is not
// supported; every Write extends the file strictly from the current
// cursor (see DESIGN.md).
func (f *RegularFile) Write(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	size, err := f.size(ctx)
	if err != nil {
		return 0, err
	}
	if f.offset < size {
		return 0, fmt.Errorf("object: write at offset %d would overlap existing content up to %d: %w", f.offset, size, reiser4prim.ErrInvalidArgument)
	}

	var pluginID reiser4prim.PluginID
	var body []byte
	if f.deps.Tails.ShouldTail(f.offset + uint64(len(buf))) {
		pluginID = reiser4prim.ItemPluginTail
		body = append([]byte(nil), buf...)
	} else {
		pluginID = reiser4prim.ItemPluginExtent
		body, err = writeExtentBody(f.deps.Dev, f.deps.Blocks, buf)
		if err != nil {
			return 0, err
		}
	}

	key := fileBodyKey(f.locality, f.oid, f.offset)
	if _, err := f.deps.Core.Insert(ctx, plugin.ItemHint{Key: key, PluginID: pluginID, Body: body}); err != nil {
		return 0, fmt.Errorf("object: inserting file-body item at offset %d: %w", f.offset, err)
	}

	newSize := f.offset + uint64(len(buf))
	f.offset = newSize
	if newSize > size {
		if err := setStatDataSize(ctx, f.deps.Reg, f.deps.Core, f.locality, f.oid, newSize); err != nil {
			return len(buf), err
		}
	}
	return len(buf), nil
}

// Truncate grows or shrinks the file's recorded size. Growing only
// updates statdata (the new range reads as a hole, spec.md §3.4).
// Shrinking drops or shortens file-body items from the end until
// coverage no longer exceeds newSize; it only ever touches the
// trailing item, matching the append-only write model above.
func (f *RegularFile) Truncate(ctx context.Context, newSize uint64) error {
	size, err := f.size(ctx)
	if err != nil {
		return err
	}
	if newSize == size {
		return nil
	}
	if newSize > size {
		return setStatDataSize(ctx, f.deps.Reg, f.deps.Core, f.locality, f.oid, newSize)
	}

	for {
		probeOffset := size - 1
		coord, base, found, err := f.findCoveringBodyItem(ctx, probeOffset)
		if err != nil {
			return err
		}
		if !found {
			break
		}
		pluginID := f.deps.Core.ItemPluginID(coord)
		body := f.deps.Core.ItemBody(coord)
		key := coord.Node.ItemKey(coord.Pos)

		if base >= newSize {
			if err := f.deps.Core.Remove(ctx, key); err != nil {
				return err
			}
			size = base
			continue
		}

		keep := int(newSize - base)
		switch pluginID {
		case reiser4prim.ItemPluginTail:
			if keep >= len(body) {
				break
			}
			if err := f.deps.Core.Remove(ctx, key); err != nil {
				return err
			}
			if _, err := f.deps.Core.Insert(ctx, plugin.ItemHint{Key: key, PluginID: pluginID, Body: append([]byte(nil), body[:keep]...)}); err != nil {
				return err
			}
		case reiser4prim.ItemPluginExtent:
			pointers, err := item.DecodeExtents(body)
			if err != nil {
				return err
			}
			trimmed, err := trimExtentPointers(pointers, int(f.deps.Dev.BlockSize()), keep)
			if err != nil {
				return err
			}
			if err := f.deps.Core.Remove(ctx, key); err != nil {
				return err
			}
			if len(trimmed) > 0 {
				if _, err := f.deps.Core.Insert(ctx, plugin.ItemHint{Key: key, PluginID: pluginID, Body: item.EncodeExtents(trimmed)}); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("object: unexpected file-body plugin %d during truncate: %w", pluginID, reiser4prim.ErrCorrupted)
		}
		break
	}

	return setStatDataSize(ctx, f.deps.Reg, f.deps.Core, f.locality, f.oid, newSize)
}

// writeExtentBody allocates ceil(len(buf)/blockSize) fresh blocks,
// writes buf across them, and returns the encoded extent item body,
// coalescing consecutively-numbered blocks into a single pointer
// (spec.md §3.4, §4.7.4).
func writeExtentBody(dev *diskio.Device, blocks *alloc.Allocator, buf []byte) ([]byte, error) {
	blockSize := int(dev.BlockSize())
	nBlocks := (len(buf) + blockSize - 1) / blockSize
	pointers := make([]item.ExtentPointer, 0, nBlocks)
	pos := 0
	for i := 0; i < nBlocks; i++ {
		addr, err := blocks.Allocate(0)
		if err != nil {
			return nil, fmt.Errorf("object: allocating extent block: %w", err)
		}
		blk, err := diskio.NewBlock(dev, diskio.BlockAddr(addr))
		if err != nil {
			return nil, err
		}
		chunk := buf[pos:]
		if len(chunk) > blockSize {
			chunk = chunk[:blockSize]
		}
		copy(blk.Bytes(), chunk)
		blk.MarkDirty()
		if err := blk.Sync(); err != nil {
			return nil, err
		}
		pos += len(chunk)
		pointers = appendCoalescedPointer(pointers, item.ExtentPointer{StartBlock: addr, Width: 1})
	}
	return item.EncodeExtents(pointers), nil
}

func appendCoalescedPointer(pointers []item.ExtentPointer, p item.ExtentPointer) []item.ExtentPointer {
	if n := len(pointers); n > 0 {
		last := &pointers[n-1]
		if last.StartBlock+uint64(last.Width) == p.StartBlock {
			last.Width += p.Width
			return pointers
		}
	}
	return append(pointers, p)
}

// trimExtentPointers drops or narrows an extent pointer list so it
// covers only the first keep bytes.
func trimExtentPointers(pointers []item.ExtentPointer, blockSize int, keep int) ([]item.ExtentPointer, error) {
	if keep <= 0 {
		return nil, nil
	}
	out := make([]item.ExtentPointer, 0, len(pointers))
	remaining := keep
	for _, p := range pointers {
		spanBytes := int(p.Width) * blockSize
		if remaining <= 0 {
			break
		}
		if spanBytes <= remaining {
			out = append(out, p)
			remaining -= spanBytes
			continue
		}
		keepBlocks := (remaining + blockSize - 1) / blockSize
		out = append(out, item.ExtentPointer{StartBlock: p.StartBlock, Width: uint32(keepBlocks)})
		remaining = 0
	}
	return out, nil
}

// readExtentRange copies up to len(dst) bytes starting at byte offset
// within into dst from the blocks pointers describes, treating a
// StartBlock of 0 as an unallocated hole (spec.md §3.4).
func readExtentRange(dev *diskio.Device, body []byte, within int, dst []byte) (int, error) {
	pointers, err := item.DecodeExtents(body)
	if err != nil {
		return 0, err
	}
	blockSize := int(dev.BlockSize())
	skip := within
	copied := 0
	for _, p := range pointers {
		spanBytes := int(p.Width) * blockSize
		if skip >= spanBytes {
			skip -= spanBytes
			continue
		}
		blockIdx := skip / blockSize
		byteOff := skip % blockSize
		for bi := blockIdx; bi < int(p.Width) && copied < len(dst); bi++ {
			avail := blockSize - byteOff
			n := avail
			if n > len(dst)-copied {
				n = len(dst) - copied
			}
			if p.StartBlock == 0 {
				for i := 0; i < n; i++ {
					dst[copied+i] = 0
				}
			} else {
				addr := p.StartBlock + uint64(bi)
				blk, err := diskio.ReadBlock(dev, diskio.BlockAddr(addr))
				if err != nil {
					return copied, err
				}
				copy(dst[copied:copied+n], blk.Bytes()[byteOff:byteOff+n])
			}
			copied += n
			byteOff = 0
		}
		skip = 0
		if copied >= len(dst) {
			break
		}
	}
	return copied, nil
}

// FileObjectPlugin registers RegularFile's and Directory's plugin
// identities under PluginTypeFileObject (spec.md §4.1).
type FileObjectPlugin struct {
	id    reiser4prim.PluginID
	label string
}

func (p FileObjectPlugin) PluginID() reiser4prim.PluginID     { return p.id }
func (p FileObjectPlugin) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeFileObject }
func (p FileObjectPlugin) Label() string                      { return p.label }

// RegularFileDescriptor and DirectoryDescriptor are the registrable
// descriptors for this package's two object plugins.
var (
	RegularFileDescriptor = FileObjectPlugin{id: reiser4prim.FileObjectRegular, label: "reg40"}
	DirectoryDescriptor   = FileObjectPlugin{id: reiser4prim.FileObjectDirectory, label: "dir40"}
)

var _ plugin.Descriptor = FileObjectPlugin{}
