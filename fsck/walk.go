package fsck

import (
	"context"
	"fmt"

	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// walk implements spec.md §4.12's top-down traversal: open the node,
// check it, mark it in the control bitmap, recurse into every internal
// pointer it holds, then run the post-visit hook. expectLevel is the
// level the caller expects this node to report (0 means "unknown, skip
// the check" — used nowhere in practice here since the root's height is
// always known, but kept symmetric with
// original_source/reiser4progs/librepair/node.c's repair_check_t.level
// being zero-able).
func (w *walker) walk(ctx context.Context, addr diskio.BlockAddr, expectLevel uint8, ldKey, rdKey reiser4prim.Key) {
	if err := ctx.Err(); err != nil {
		return
	}

	if w.control.Test(uint64(addr)) {
		w.fail(fmt.Errorf("fsck: block %d visited more than once in the tree (cycle or shared pointer): %w", addr, reiser4prim.ErrCorrupted))
		return
	}
	if err := w.control.Mark(uint64(addr)); err != nil {
		w.fail(fmt.Errorf("fsck: marking block %d in control bitmap: %w", addr, err))
		return
	}
	if !w.c.blocks.Test(uint64(addr)) {
		w.fail(fmt.Errorf("fsck: block %d is part of the tree but marked free in the allocator bitmap: %w", addr, reiser4prim.ErrCorrupted))
	}

	n, err := w.open(ctx, addr)
	if err != nil {
		w.fail(fmt.Errorf("fsck: block %d: %w", addr, err))
		return
	}

	if expectLevel != 0 && n.Level() != expectLevel {
		w.fail(fmt.Errorf("fsck: block %d reports level %d, expected %d: %w", addr, n.Level(), expectLevel, reiser4prim.ErrCorrupted))
	}

	if w.repair {
		removed, err := repairGeometry(n)
		if err != nil {
			w.fail(fmt.Errorf("fsck: repairing geometry of block %d: %w", addr, err))
		} else if removed > 0 {
			w.repaired(fmt.Sprintf("block %d: dropped %d item(s) with irreconcilable geometry", addr, removed))
		}
		if fixed, err := n.RepairFreeSpace(); err != nil {
			w.fail(fmt.Errorf("fsck: repairing free space of block %d: %w", addr, err))
		} else if fixed {
			w.repaired(fmt.Sprintf("block %d: free_space header disagreed with free_space_start, recomputed", addr))
		}
	} else if bad, err := checkGeometry(n); err != nil {
		w.fail(fmt.Errorf("fsck: block %d: %w", addr, err))
	} else if bad {
		w.fail(fmt.Errorf("fsck: block %d: item-array geometry is inconsistent: %w", addr, reiser4prim.ErrCorrupted))
	}

	errsBefore := len(w.errs)

	children := w.checkItems(ctx, addr, n)

	if err := w.checkDelimitingKeys(n, ldKey, rdKey); err != nil {
		w.fail(fmt.Errorf("fsck: block %d: %w", addr, err))
	}

	if w.verbose && len(w.errs) > errsBefore {
		w.report.dumps = append(w.report.dumps, dumpedNode{Addr: uint64(addr), Reason: "failed checks", Node: dumpNode(n)})
	}

	if w.visit != nil {
		if err := w.visit(ctx, addr, n); err != nil {
			w.fail(fmt.Errorf("fsck: visit callback for block %d: %w", addr, err))
		}
	}

	childLevel := uint8(0)
	if n.Level() > 0 {
		childLevel = n.Level() - 1
	}
	for _, ch := range children {
		w.walk(ctx, diskio.BlockAddr(ch.target), childLevel, ch.ld, ch.rd)
	}

	if w.post != nil {
		if err := w.post(ctx, addr, n); err != nil {
			w.fail(fmt.Errorf("fsck: post-visit callback for block %d: %w", addr, err))
		}
	}
}

func dumpNode(n *node40.Node) any {
	type item struct {
		Pos      int
		Key      reiser4prim.Key
		PluginID reiser4prim.PluginID
		Body     []byte
	}
	type dump struct {
		Level uint8
		Count int
		Items []item
	}
	d := dump{Level: n.Level(), Count: n.Count()}
	for pos := 0; pos < n.Count(); pos++ {
		body, _ := n.ItemBody(pos)
		d.Items = append(d.Items, item{Pos: pos, Key: n.ItemKey(pos), PluginID: n.ItemPluginID(pos), Body: body})
	}
	return d
}

// childPointer is one internal item's recursion target, paired with
// the left/right delimiting keys its child node must satisfy.
type childPointer struct {
	target uint64
	ld, rd reiser4prim.Key
}

// checkItems implements spec.md §4.12 steps 3 and 4: item-plugin
// legality and key order. It returns the internal pointers found, for
// the caller to recurse into after finishing this node's own checks
// (so a single bad item doesn't stop the rest of the node from being
// checked).
func (w *walker) checkItems(ctx context.Context, addr diskio.BlockAddr, n *node40.Node) []childPointer {
	var children []childPointer
	var prevKey reiser4prim.Key
	havePrev := false

	for pos := 0; pos < n.Count(); pos++ {
		key := n.ItemKey(pos)

		if havePrev {
			cmp := prevKey.Compare(key)
			switch {
			case cmp > 0:
				w.fail(fmt.Errorf("fsck: block %d: item %d's key %v sorts before item %d's key %v: %w",
					addr, pos-1, prevKey, pos, key, reiser4prim.ErrCorrupted))
			case cmp == 0 && (prevKey.MinorType() != reiser4prim.MinorFileName || key.MinorType() != reiser4prim.MinorFileName):
				w.fail(fmt.Errorf("fsck: block %d: items %d and %d share key %v and are not both directory-entry items: %w",
					addr, pos-1, pos, key, reiser4prim.ErrDuplicateKey))
			}
		}
		prevKey = key
		havePrev = true

		pluginID := n.ItemPluginID(pos)
		desc, ok := w.c.reg.FindByID(reiser4prim.PluginTypeItem, pluginID)
		if !ok {
			w.fail(fmt.Errorf("fsck: block %d: item %d has unregistered plugin id %d: %w", addr, pos, pluginID, reiser4prim.ErrCorrupted))
			continue
		}
		ip, ok := desc.(plugin.Item)
		if !ok {
			w.fail(fmt.Errorf("fsck: block %d: item %d's plugin %d is not an item plugin", addr, pos, pluginID))
			continue
		}

		if ip.Kind() == plugin.ItemKindInternal {
			if n.Level() <= leafLevel {
				w.fail(fmt.Errorf("fsck: block %d: internal item %d found at leaf level: %w", addr, pos, reiser4prim.ErrCorrupted))
			}
		} else if n.Level() != leafLevel {
			w.fail(fmt.Errorf("fsck: block %d: non-internal item %d found above leaf level (level %d): %w", addr, pos, n.Level(), reiser4prim.ErrCorrupted))
		}

		body, err := n.ItemBody(pos)
		if err != nil {
			w.fail(fmt.Errorf("fsck: block %d: item %d: %w", addr, pos, err))
			continue
		}
		if err := ip.Check(body, plugin.ItemOptions(0)); err != nil {
			w.fail(fmt.Errorf("fsck: block %d: item %d failed its plugin check: %w", addr, pos, err))
			continue
		}

		if internal, ok := desc.(plugin.InternalItem); ok {
			rd := reiser4prim.MaxKey
			if pos+1 < n.Count() {
				rd = n.ItemKey(pos + 1)
			}
			children = append(children, childPointer{target: internal.Target(body), ld: key, rd: rd})
		}
	}
	return children
}

// checkDelimitingKeys implements spec.md §4.12 step 5, following
// original_source/reiser4progs/librepair/node.c's repair_node_dkeys_check:
// skip the check where the bound is the sentinel (the root has no
// parent to delimit it).
func (w *walker) checkDelimitingKeys(n *node40.Node, ld, rd reiser4prim.Key) error {
	if n.Count() == 0 {
		return nil
	}
	if ld != reiser4prim.MinKey {
		first := n.ItemKey(0)
		if first.Compare(ld) != 0 {
			return fmt.Errorf("first key %v does not match left-delimiting key %v: %w", first, ld, reiser4prim.ErrCorrupted)
		}
	}
	if rd != reiser4prim.MaxKey {
		last := n.ItemKey(n.Count() - 1)
		if last.Compare(rd) > 0 {
			return fmt.Errorf("last key %v exceeds right-delimiting key %v: %w", last, rd, reiser4prim.ErrCorrupted)
		}
	}
	return nil
}
