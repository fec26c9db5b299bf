package reiser4prim

import "errors"

// Sentinel errors forming the flat error surface of spec.md §6.3:
// every public operation resolves to one of these (wrapped with
// %w-chained context) so callers above the core can translate a
// failure into an exit code without inspecting error strings.
var (
	ErrNotFound       = errors.New("not found")
	ErrCorrupted      = errors.New("corrupted")
	ErrNoSpace        = errors.New("no space")
	ErrIOError        = errors.New("io error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDuplicateKey   = errors.New("duplicate key")
)
