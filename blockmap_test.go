package blip

import "testing"

func TestBlockMapAddLookup(t *testing.T) {
	buf := []byte("abcabcxyz")
	m := newBlockMap(3)
	m.add(buf, 0) // "abc"
	m.add(buf, 3) // "abc"
	m.add(buf, 6) // "xyz"

	got := m.lookup([]byte("abc"))
	if len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("lookup(abc) = %v, want [0 3]", got)
	}
	got = m.lookup([]byte("xyz"))
	if len(got) != 1 || got[0] != 6 {
		t.Errorf("lookup(xyz) = %v, want [6]", got)
	}
	if got := m.lookup([]byte("nope")); got != nil {
		t.Errorf("lookup of wrong-length block = %v, want nil", got)
	}
	if got := m.lookup([]byte("zzz")); got != nil {
		t.Errorf("lookup(zzz) = %v, want nil", got)
	}
}

func TestBlockMapIgnoresShortTrailingBlock(t *testing.T) {
	buf := []byte("abcde")
	m := newBlockMap(3)
	m.add(buf, 3) // only "de" remains, shorter than blocksize: ignored
	if got := m.lookup([]byte("de ")); got != nil {
		t.Errorf("lookup of a block beyond the buffer = %v, want nil", got)
	}
	if len(m.offsets) != 0 {
		t.Errorf("offsets = %v, want empty", m.offsets)
	}
}
