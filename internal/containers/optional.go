// Package containers holds small generic data-structure helpers
// shared across the filesystem core: an optional-value wrapper, a
// pool of reusable slices, an ordering constraint, a doubly linked
// list ordered oldest to newest, and an ARC-backed LRU cache.
// Adapted from the teacher's lib/containers and lib/caching.
package containers

// Optional holds a value that may or may not be present, without
// resorting to a pointer (and its associated nil-deref risk) or a
// sentinel zero value (which is ambiguous when the zero value is
// itself meaningful, as it is for block addresses and keys).
type Optional[T any] struct {
	OK  bool
	Val T
}
