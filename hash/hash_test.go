package hash

import "testing"

func TestHashesAreDeterministic(t *testing.T) {
	for _, p := range []Plugin{R5{}, Tea{}, Fnv1{}} {
		fn := p.Func()
		a := fn("a-long-directory-entry-name")
		b := fn("a-long-directory-entry-name")
		if a != b {
			t.Errorf("%s: hash not deterministic: %d != %d", p.Label(), a, b)
		}
	}
}

func TestHashesDistinguishDifferentNames(t *testing.T) {
	for _, p := range []Plugin{R5{}, Tea{}, Fnv1{}} {
		fn := p.Func()
		if fn("first-long-directory-entry") == fn("second-long-directory-entry") {
			t.Errorf("%s: distinct names hashed to the same value", p.Label())
		}
	}
}

func TestDistinctPluginIDs(t *testing.T) {
	seen := map[uint16]string{}
	for _, p := range []Plugin{R5{}, Tea{}, Fnv1{}} {
		id := uint16(p.PluginID())
		if other, ok := seen[id]; ok {
			t.Fatalf("%s and %s share plugin id %d", p.Label(), other, id)
		}
		seen[id] = p.Label()
	}
}
