package containers

import (
	"golang.org/x/exp/constraints"
)

// Ordered is implemented by types with a total order expressed as a
// three-way comparison, the same shape reiser4prim.Key's Compare uses
// so that tree code can stay generic over "the configured key
// plugin" instead of hard-coding Key's field layout.
type Ordered[T any] interface {
	Compare(T) int
}

// NativeCompare three-way-compares two values of any ordered builtin
// type, for use by Key.Compare's word-by-word comparison.
func NativeCompare[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
