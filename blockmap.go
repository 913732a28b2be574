package blip

// blockMap indexes fixed-size, non-overlapping blocks of a byte buffer by
// content, so the diff engine can find candidate copy sources by a cheap
// map lookup instead of a suffix search. Grounded on the documented
// add_block/get_block contract (a plain multiset of offsets per block
// value, not an incremental binary-tree dictionary): blip indexes all of
// source up front and target incrementally with a lag, which the simpler
// multiset shape is enough for.
type blockMap struct {
	blocksize int
	offsets   map[string][]int64
}

func newBlockMap(blocksize int) *blockMap {
	return &blockMap{blocksize: blocksize, offsets: make(map[string][]int64)}
}

// add records that buf holds the given block's bytes at offset.
func (m *blockMap) add(buf []byte, offset int64) {
	if int(offset)+m.blocksize > len(buf) {
		return
	}
	block := string(buf[offset : int(offset)+m.blocksize])
	m.offsets[block] = append(m.offsets[block], offset)
}

// lookup returns every recorded offset whose block content matches buf
// exactly (len(buf) must equal m.blocksize for a SourceMap/TargetMap
// index lookup; shorter trailing blocks never produced a match anyway
// since the diff engine only probes full-size blocks).
func (m *blockMap) lookup(buf []byte) []int64 {
	if len(buf) != m.blocksize {
		return nil
	}
	return m.offsets[string(buf)]
}
