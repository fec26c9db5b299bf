package item

import (
	"fmt"
	"math/bits"

	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// StatDataPrologue is the fixed-size head of every statdata item
// (spec.md §4.7.1, §3.4).
type StatDataPrologue struct {
	Mode          uint16 `bin:"off=0x0, siz=0x2"`
	ExtMask       uint64 `bin:"off=0x2, siz=0x8"`
	NLink         uint32 `bin:"off=0xa, siz=0x4"`
	Size          uint64 `bin:"off=0xe, siz=0x8"`
	binstruct.End `bin:"off=0x16"`
}

var prologueSize = binstruct.StaticSize(StatDataPrologue{})

// BuildStatData writes the fixed prologue followed by each extension
// whose bit is set in extMask, in ascending extension-id order, per
// spec.md §4.7.1's statdata growth algorithm: "for i = 0..63: if bit i
// of the hint's ext-mask is set, locate the SDEXT plugin of id i,
// call its init(pointer, hint[i]), advance the pointer by its
// length." extPayloads supplies each set bit's already-encoded
// payload; its length must match the registered plugin's Len().
func BuildStatData(reg *plugin.Registry, mode uint16, nlink uint32, size uint64, extMask uint64, extPayloads map[reiser4prim.PluginID][]byte) ([]byte, error) {
	prologue := StatDataPrologue{Mode: mode, ExtMask: extMask, NLink: nlink, Size: size}
	head, err := binstruct.Marshal(prologue)
	if err != nil {
		return nil, fmt.Errorf("item: marshal statdata prologue: %w", err)
	}

	body := append([]byte(nil), head...)
	for i := 0; i < 64; i++ {
		if extMask&(1<<uint(i)) == 0 {
			continue
		}
		id := reiser4prim.PluginID(i)
		desc, ok := reg.FindByID(reiser4prim.PluginTypeStatDataExt, id)
		if !ok {
			return nil, fmt.Errorf("item: statdata extension id %d not registered: %w", i, reiser4prim.ErrCorrupted)
		}
		ext, ok := desc.(Ext)
		if !ok {
			return nil, fmt.Errorf("item: plugin %d registered under statdata-extension is not an Ext", i)
		}
		payload, ok := extPayloads[id]
		if !ok || len(payload) != ext.Len() {
			return nil, fmt.Errorf("item: extension %d needs a %d-byte payload: %w", i, ext.Len(), reiser4prim.ErrInvalidArgument)
		}
		body = append(body, payload...)
	}
	return body, nil
}

// ReadStatDataExt mirrors BuildStatData's write side: it walks the
// same bits, using each plugin's Len() as the "length(body) probe" of
// spec.md §4.7.1, and returns the raw payload bytes for extension id.
func ReadStatDataExt(reg *plugin.Registry, body []byte, id reiser4prim.PluginID) ([]byte, error) {
	if len(body) < prologueSize {
		return nil, fmt.Errorf("item: statdata body shorter than prologue: %w", reiser4prim.ErrCorrupted)
	}
	var prologue StatDataPrologue
	if _, err := binstruct.Unmarshal(body[:prologueSize], &prologue); err != nil {
		return nil, err
	}
	if prologue.ExtMask&(1<<uint(id)) == 0 {
		return nil, fmt.Errorf("item: extension %d not present: %w", id, reiser4prim.ErrNotFound)
	}
	offset := prologueSize
	for i := 0; i < int(id); i++ {
		if prologue.ExtMask&(1<<uint(i)) == 0 {
			continue
		}
		desc, ok := reg.FindByID(reiser4prim.PluginTypeStatDataExt, reiser4prim.PluginID(i))
		if !ok {
			return nil, fmt.Errorf("item: statdata extension id %d not registered: %w", i, reiser4prim.ErrCorrupted)
		}
		offset += desc.(Ext).Len()
	}
	desc, ok := reg.FindByID(reiser4prim.PluginTypeStatDataExt, id)
	if !ok {
		return nil, fmt.Errorf("item: statdata extension id %d not registered: %w", id, reiser4prim.ErrCorrupted)
	}
	length := desc.(Ext).Len()
	if offset+length > len(body) {
		return nil, fmt.Errorf("item: statdata extension %d out of range: %w", id, reiser4prim.ErrCorrupted)
	}
	return body[offset : offset+length], nil
}

// estimateStatData returns sizeof(prologue) + sum(length(SDEXT_i))
// over set bits (spec.md §4.7.1's "Estimation" paragraph).
func estimateStatData(reg *plugin.Registry, extMask uint64) (int, error) {
	total := prologueSize
	mask := extMask
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		mask &^= 1 << uint(i)
		desc, ok := reg.FindByID(reiser4prim.PluginTypeStatDataExt, reiser4prim.PluginID(i))
		if !ok {
			return 0, fmt.Errorf("item: statdata extension id %d not registered: %w", i, reiser4prim.ErrCorrupted)
		}
		total += desc.(Ext).Len()
	}
	return total, nil
}

// StatDataPlugin is the statdata item plugin (spec.md §4.7, §4.7.1).
type StatDataPlugin struct {
	reg *plugin.Registry
}

const statDataPluginID = reiser4prim.ItemPluginStatData

func NewStatDataPlugin(reg *plugin.Registry) *StatDataPlugin { return &StatDataPlugin{reg: reg} }

func (p *StatDataPlugin) PluginID() reiser4prim.PluginID     { return statDataPluginID }
func (p *StatDataPlugin) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeItem }
func (p *StatDataPlugin) Label() string                      { return "statdata40" }
func (p *StatDataPlugin) Kind() plugin.ItemKind               { return plugin.ItemKindPlain }

func (p *StatDataPlugin) MinSize() int { return prologueSize }

// MaxKey returns the zero Key: a statdata item is a single indivisible
// unit whose maximal key is its own key, which the body alone does
// not carry.
func (p *StatDataPlugin) MaxKey(body []byte) reiser4prim.Key { return reiser4prim.Key{} }

func (p *StatDataPlugin) Lookup(body []byte, key reiser4prim.Key) (int, bool) { return 0, true }
func (p *StatDataPlugin) Count(body []byte) int                              { return 1 }

func (p *StatDataPlugin) prologue(body []byte) (StatDataPrologue, error) {
	return DecodeStatDataPrologue(body)
}

// DecodeStatDataPrologue reads the fixed mode/ext-mask/nlink/size head
// common to every statdata item, regardless of which SDEXT plugins
// follow it. Exposed for callers (the object layer) that need nlink
// and size, which StatDataPlugin itself only exposes mode for (spec.md
// §4.7: "The statdata plugin additionally exposes {get_mode,
// set_mode}").
func DecodeStatDataPrologue(body []byte) (StatDataPrologue, error) {
	var pr StatDataPrologue
	if len(body) < prologueSize {
		return pr, fmt.Errorf("item: statdata body shorter than prologue: %w", reiser4prim.ErrCorrupted)
	}
	_, err := binstruct.Unmarshal(body[:prologueSize], &pr)
	return pr, err
}

func (p *StatDataPlugin) Confirm(body []byte) bool {
	pr, err := p.prologue(body)
	if err != nil {
		return false
	}
	want, err := estimateStatData(p.reg, pr.ExtMask)
	if err != nil {
		return false
	}
	return want == len(body)
}

func (p *StatDataPlugin) Valid(body []byte) bool { return p.Confirm(body) }

func (p *StatDataPlugin) Print(body []byte, opts plugin.ItemOptions) string {
	pr, err := p.prologue(body)
	if err != nil {
		return fmt.Sprintf("<statdata: %v>", err)
	}
	return fmt.Sprintf("statdata{mode=%#o nlink=%d size=%d extmask=%#x}", pr.Mode, pr.NLink, pr.Size, pr.ExtMask)
}

func (p *StatDataPlugin) Check(body []byte, opts plugin.ItemOptions) error {
	if !p.Confirm(body) {
		return fmt.Errorf("item: statdata body fails confirm: %w", reiser4prim.ErrCorrupted)
	}
	return nil
}

func (p *StatDataPlugin) Estimate(posHint int, hint plugin.ItemHint) int { return len(hint.Body) }

// Create validates hint.Body as a well-formed, pre-built statdata
// payload (see BuildStatData) and copies it into body.
func (p *StatDataPlugin) Create(body []byte, hint plugin.ItemHint) error {
	if len(hint.Body) != len(body) {
		return fmt.Errorf("item: statdata create size mismatch: %w", reiser4prim.ErrInvalidArgument)
	}
	copy(body, hint.Body)
	if !p.Confirm(body) {
		return fmt.Errorf("item: statdata create produced inconsistent body: %w", reiser4prim.ErrCorrupted)
	}
	return nil
}

func (p *StatDataPlugin) Insert(body []byte, unitPos int, hint plugin.ItemHint) error {
	return fmt.Errorf("item: statdata is a single indivisible unit, cannot insert a sub-unit")
}

func (p *StatDataPlugin) Remove(body []byte, unitPos int) error {
	return fmt.Errorf("item: statdata is a single indivisible unit, cannot remove a sub-unit")
}

// GetMode and SetMode are the statdata-specific accessors spec.md
// §4.7 calls out explicitly.
func (p *StatDataPlugin) GetMode(body []byte) (uint16, error) {
	pr, err := p.prologue(body)
	return pr.Mode, err
}

func (p *StatDataPlugin) SetMode(body []byte, mode uint16) error {
	pr, err := DecodeStatDataPrologue(body)
	if err != nil {
		return err
	}
	pr.Mode = mode
	return encodeStatDataPrologue(body, pr)
}

// SetSize and SetNLink rewrite the size/nlink fields of an
// already-created statdata body in place, the way an object's write
// or link-count change keeps its statdata current.
func (p *StatDataPlugin) SetSize(body []byte, size uint64) error {
	pr, err := DecodeStatDataPrologue(body)
	if err != nil {
		return err
	}
	pr.Size = size
	return encodeStatDataPrologue(body, pr)
}

func (p *StatDataPlugin) SetNLink(body []byte, nlink uint32) error {
	pr, err := DecodeStatDataPrologue(body)
	if err != nil {
		return err
	}
	pr.NLink = nlink
	return encodeStatDataPrologue(body, pr)
}

func encodeStatDataPrologue(body []byte, pr StatDataPrologue) error {
	bs, err := binstruct.Marshal(pr)
	if err != nil {
		return err
	}
	copy(body[:prologueSize], bs)
	return nil
}

var _ plugin.Item = (*StatDataPlugin)(nil)
