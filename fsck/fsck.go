// Package fsck implements the top-down consistency checker of spec.md
// §4.12: it walks a tree from its root, rebuilding each node's
// item-array geometry, checking every item against its plugin and its
// node's level, verifying key order and parent delimitation, and
// cross-checking the set of visited blocks against the persisted
// block bitmap.
package fsck

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/format40"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// leafLevel is the level node40's own Create/Insert logic treats as
// the bottom of the tree, matching object.leafLevel and tree's own
// fixed stopLevel for every Lookup (spec.md §3.3's "level 1 = leaf").
const leafLevel uint8 = 1

// NodeOpener reads the node at addr, the "user-supplied node opener"
// spec.md §4.12 names. The default, installed by New, reads straight
// off the device via diskio + node40 rather than through the tree's
// cache, since a tree under repair cannot be trusted to resolve its
// own lookups correctly.
type NodeOpener func(ctx context.Context, addr diskio.BlockAddr) (*node40.Node, error)

// VisitHook is the per-node visit/post-visit callback shape spec.md
// §4.12 names. It observes a node after this package's own checks
// have run against it (and, for Options.Repair, after any geometry
// fix-ups); returning an error does not stop the traversal, it is
// folded into the returned Report the same way an internal check
// failure is.
type VisitHook func(ctx context.Context, addr diskio.BlockAddr, n *node40.Node) error

// Options configures one run of Checker.Check.
type Options struct {
	// Open overrides the node opener; nil uses the checker's own
	// device via node40.Open.
	Open NodeOpener
	// Visit and PostVisit are invoked around each node's children,
	// mirroring spec.md §4.12's "per-node visit callback... per-node
	// post-visit callback."
	Visit     VisitHook
	PostVisit VisitHook
	// Repair applies the fix-ups spec.md §4.12 describes (node
	// geometry rebuild, free_space recompute, superblock free_blocks
	// reconciliation) rather than only reporting the disagreement.
	Repair bool
	// Verbose captures a deep dump of every corrupted node/item via
	// go-spew, retrievable from the Report afterward.
	Verbose bool
}

// Checker holds everything a traversal needs to read nodes and item
// plugins independently of the tree package's own (validity-assuming)
// lookup machinery.
type Checker struct {
	dev    *diskio.Device
	reg    *plugin.Registry
	blocks *alloc.Allocator
	root   diskio.BlockAddr
	height uint8

	// fmt, when non-nil, is the mounted filesystem Check repairs the
	// superblock's free_blocks field against (spec.md §4.12 step 7).
	// Checkers built via New, without a format40.Format in hand, skip
	// that comparison entirely.
	fmt *format40.Format
}

// New builds a Checker over an explicit device/registry/allocator/root,
// for callers (and tests) that do not have a mounted format40.Format.
// Its Check does not compare or repair the superblock's free-blocks
// count; use FromFormat for that.
func New(dev *diskio.Device, reg *plugin.Registry, blocks *alloc.Allocator, root diskio.BlockAddr, height uint8) *Checker {
	return &Checker{dev: dev, reg: reg, blocks: blocks, root: root, height: height}
}

// FromFormat builds a Checker over a mounted filesystem, the usual
// entry point for the `check` command spec.md §4.12 describes. Unlike
// New, its Check can repair the on-disk superblock's free_blocks count.
func FromFormat(f *format40.Format, reg *plugin.Registry) *Checker {
	c := New(f.Device(), reg, f.BlockAllocator(), f.RootBlock(), f.TreeHeight())
	c.fmt = f
	return c
}

func defaultOpener(dev *diskio.Device) NodeOpener {
	return func(_ context.Context, addr diskio.BlockAddr) (*node40.Node, error) {
		blk, err := diskio.ReadBlock(dev, addr)
		if err != nil {
			return nil, fmt.Errorf("fsck: reading block %d: %w", addr, err)
		}
		return node40.Open(blk)
	}
}

// Check runs one full top-down traversal and returns the accumulated
// Report. The returned error is always nil: every finding, including
// an unreadable block or an item with an unregistered plugin id, lands
// in Report.Errors.
func (c *Checker) Check(ctx context.Context, opts Options) (*Report, error) {
	open := opts.Open
	if open == nil {
		open = defaultOpener(c.dev)
	}

	w := &walker{
		c:       c,
		open:    open,
		visit:   opts.Visit,
		post:    opts.PostVisit,
		repair:  opts.Repair,
		verbose: opts.Verbose,
		control: alloc.NewBitmap(c.blocks.Len()),
		report:  &Report{},
	}

	w.walk(ctx, c.root, c.height, reiser4prim.MinKey, reiser4prim.MaxKey)

	w.report.Control = w.control
	w.report.FreeBlocks = uint64(w.control.CountFree())

	// spec.md §4.12 step 7: the superblock's cached free_blocks is
	// compared against the allocator bitmap's own authoritative count
	// (not against the control bitmap above, which only covers tree
	// blocks and never the administrative ones — master, superblock,
	// bitmap, journal — that the traversal has no reason to visit).
	if c.fmt != nil {
		bitmapFree := uint64(c.blocks.CountFree())
		if declared := c.fmt.FreeBlocks(); declared != bitmapFree {
			w.fail(fmt.Errorf("fsck: superblock declares %d free blocks, allocator bitmap counts %d: %w",
				declared, bitmapFree, reiser4prim.ErrCorrupted))
			if opts.Repair {
				if err := c.fmt.RepairFreeBlocks(bitmapFree); err != nil {
					w.fail(fmt.Errorf("fsck: repairing superblock free_blocks: %w", err))
				} else {
					w.repaired(fmt.Sprintf("superblock: free_blocks corrected from %d to %d", declared, bitmapFree))
				}
			}
		}
	}

	if len(w.errs) > 0 {
		w.report.Errors = w.errs
	}

	dlog.Infof(ctx, "fsck: traversal complete, %d errors, %d repairs, %d blocks visited",
		len(w.errs), len(w.report.Repairs), w.control.CountUsed())

	return w.report, nil
}

// errs is exposed as a field rather than a method on Report so the
// walker can grow it incrementally without reassigning Report.Errors
// on every finding (derror.MultiError is a plain slice type, and a nil
// slice is a valid, empty MultiError).
type walker struct {
	c       *Checker
	open    NodeOpener
	visit   VisitHook
	post    VisitHook
	repair  bool
	verbose bool

	control *alloc.Bitmap
	report  *Report
	errs    derror.MultiError
}

func (w *walker) fail(err error) {
	w.errs = append(w.errs, err)
}

func (w *walker) repaired(msg string) {
	w.report.Repairs = append(w.report.Repairs, msg)
}
