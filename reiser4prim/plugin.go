package reiser4prim

import "fmt"

// PluginID is a 16-bit value unique within a PluginType (spec.md
// §3.1). PluginIDInvalid is reserved and never assigned to a
// registered plugin.
type PluginID uint16

const PluginIDInvalid PluginID = 0xFFFF

// PluginType enumerates the polymorphic roles the plugin factory
// dispatches by (spec.md §3.1).
type PluginType uint8

const (
	PluginTypeKey PluginType = iota
	PluginTypeNode
	PluginTypeItem
	PluginTypeFileObject
	PluginTypeHash
	PluginTypeTailPolicy
	PluginTypePermission
	PluginTypeStatDataExt
	PluginTypeDiskFormat
	PluginTypeOIDAllocator
	PluginTypeBlockAllocator
	PluginTypeJournal

	numPluginTypes
)

func (t PluginType) String() string {
	switch t {
	case PluginTypeKey:
		return "key"
	case PluginTypeNode:
		return "node"
	case PluginTypeItem:
		return "item"
	case PluginTypeFileObject:
		return "file-object"
	case PluginTypeHash:
		return "hash"
	case PluginTypeTailPolicy:
		return "tail-policy"
	case PluginTypePermission:
		return "permission"
	case PluginTypeStatDataExt:
		return "statdata-extension"
	case PluginTypeDiskFormat:
		return "disk-format"
	case PluginTypeOIDAllocator:
		return "oid-allocator"
	case PluginTypeBlockAllocator:
		return "block-allocator"
	case PluginTypeJournal:
		return "journal"
	default:
		return fmt.Sprintf("plugin-type-%d", uint8(t))
	}
}

// Well-known node-plugin and item-plugin ids used by this module's
// node40/item packages. Kept here (rather than in those packages) so
// that any package can refer to "the node40 id" without importing
// node40 itself, matching how the teacher's btrfsitem.Type constants
// live alongside the key type they're looked up by.
const (
	NodePluginNode40 PluginID = 40

	ItemPluginStatData      PluginID = 1
	ItemPluginDirEntry      PluginID = 2
	ItemPluginInternal      PluginID = 3
	ItemPluginTail          PluginID = 4
	ItemPluginExtent        PluginID = 5

	KeyPluginDefault PluginID = 1

	HashPluginR5    PluginID = 1
	HashPluginTea   PluginID = 2
	HashPluginFnv1  PluginID = 3

	TailPolicyAlways  PluginID = 1
	TailPolicyNever   PluginID = 2
	TailPolicySmart   PluginID = 3

	DiskFormatFormat40 PluginID = 40

	OIDAllocatorDefault PluginID = 1

	BlockAllocatorBitmap PluginID = 1

	JournalDefault PluginID = 1

	FileObjectRegular   PluginID = 1
	FileObjectDirectory PluginID = 2
)
