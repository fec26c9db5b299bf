package containers

import (
	"git.lukeshu.com/go/typedsync"
)

// SlicePool recycles backing arrays for fixed-size slices (item
// headers, item arrays) so that a lookup-heavy workload against the
// tree doesn't allocate a fresh slice on every node read. Mirrors the
// teacher's lib/containers.SlicePool, which does the same for
// btrfstree's per-node Item slices.
type SlicePool[T any] struct {
	inner typedsync.Pool[[]T]
}

func (p *SlicePool[T]) Get(size int) []T {
	if size == 0 {
		return nil
	}
	ret, ok := p.inner.Get()
	if ok && cap(ret) >= size {
		ret = ret[:size]
	} else {
		ret = make([]T, size)
	}
	return ret
}

func (p *SlicePool[T]) Put(slice []T) {
	if slice == nil {
		return
	}
	p.inner.Put(slice)
}
