package tree

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// Sync flushes every dirty cached node to the device in post-order
// (spec.md §4.8.5). It writes blocks directly; ordering them with
// respect to the journal's commit/flush bracket is the journal
// package's job (see its Sync), not this one's — tree.Sync is what a
// journal-aware caller invokes once it has opened that bracket.
func (t *Tree) Sync(ctx context.Context) error {
	return t.syncRecord(ctx, t.root)
}

func (t *Tree) syncRecord(ctx context.Context, r *record) error {
	for _, c := range r.children {
		if err := t.syncRecord(ctx, c); err != nil {
			return err
		}
	}
	if r.node.Block().Dirty() {
		dlog.Debugf(ctx, "tree: flushing block %d", r.addr)
		if err := r.node.Block().Sync(); err != nil {
			return err
		}
	}
	return nil
}
