package format40

import "errors"

// ErrLegacyFormat is returned by OpenMaster when the device carries a
// reiser3-family superblock: recognized, but never mounted (spec.md
// §1's "probing its superblock" allowance for reiser3;
// SPEC_FULL.md supplemented feature 1).
var ErrLegacyFormat = errors.New("device carries a legacy (reiser3) superblock")
