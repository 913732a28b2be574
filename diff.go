package blip

import (
	"context"
	"hash/crc32"

	"github.com/blipfmt/bps/internal/ops"
)

// diffStream is the diff engine's OpSource: it emits the Header, then
// drives the block-hash search loop one iteration at a time (buffering
// whatever operations that iteration produced into a small queue), then
// the trailing SourceCRC32/TargetCRC32. Apart from the source block map,
// which newDiffStream builds up front, no operation is computed before it
// is asked for, matching the "lazy sequence of operations" contract; the
// engine still does its CPU-bound work synchronously within Scan, per the
// single-threaded concurrency model.
type diffStream struct {
	source, target []byte
	blocksize      int
	metadata       string
	progress       chan<- Progress

	sourceMap *blockMap
	targetMap *blockMap
	targetIdx int64

	targetWriteOffset     int64
	pendingTargetReadSize int64
	lastSourceCopyOffset  int64
	lastTargetCopyOffset  int64

	queue []ops.Operation

	headerEmitted bool
	crcEmitted    int

	op  ops.Operation
	err error
}

func newDiffStream(source, target []byte, opts ...DiffOption) *diffStream {
	cfg := diffConfig{blocksize: defaultBlockSize(len(source), len(target))}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &diffStream{
		source:    source,
		target:    target,
		blocksize: cfg.blocksize,
		metadata:  cfg.metadata,
		progress:  cfg.progress,
	}
	d.sourceMap = newBlockMap(d.blocksize)
	for off := int64(0); off+int64(d.blocksize) <= int64(len(source)); off += int64(d.blocksize) {
		d.sourceMap.add(source, off)
	}
	d.targetMap = newBlockMap(d.blocksize)
	return d
}

func (d *diffStream) Op() ops.Operation { return d.op }
func (d *diffStream) Err() error        { return d.err }

func (d *diffStream) Scan(ctx context.Context) bool {
	if d.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		d.err = err
		return false
	}
	if !d.headerEmitted {
		d.headerEmitted = true
		d.op = ops.Header{
			SourceSize: uint32(len(d.source)),
			TargetSize: uint32(len(d.target)),
			Metadata:   d.metadata,
		}
		return true
	}

	for len(d.queue) == 0 {
		if d.crcEmitted == 2 {
			return false
		}
		if d.targetWriteOffset+d.pendingTargetReadSize >= int64(len(d.target)) {
			d.flush()
			continue
		}
		d.runIteration()
	}

	d.op = d.queue[0]
	d.queue = d.queue[1:]
	d.sendProgress()
	return true
}

// flush emits whatever is left once the main search loop has consumed all
// of target: the final pending TargetRead (if any), then the two trailing
// checksums.
func (d *diffStream) flush() {
	if d.crcEmitted == 0 {
		end := d.targetWriteOffset + d.pendingTargetReadSize
		if end > int64(len(d.target)) {
			end = int64(len(d.target))
		}
		if end > d.targetWriteOffset {
			data := make([]byte, end-d.targetWriteOffset)
			copy(data, d.target[d.targetWriteOffset:end])
			d.queue = append(d.queue, ops.TargetRead{Data: data})
		}
		d.targetWriteOffset = end
		d.pendingTargetReadSize = 0
		d.queue = append(d.queue, ops.SourceCRC32{Value: crc32.ChecksumIEEE(d.source)})
		d.crcEmitted = 1
		return
	}
	d.queue = append(d.queue, ops.TargetCRC32{Value: crc32.ChecksumIEEE(d.target)})
	d.crcEmitted = 2
}

// runIteration performs one pass of the main loop's per-iteration search:
// probe blocksize candidate block starts, score every source-map and
// target-map match, and either commit the best one or advance
// pendingTargetReadSize past the probed region.
func (d *diffStream) runIteration() {
	var best *candidate
	var bestVariant copyVariant
	bestEff := 0.0

	base := d.targetWriteOffset + d.pendingTargetReadSize
	for extra := 0; extra < d.blocksize; extra++ {
		blockStart := base + int64(extra)
		if blockStart+int64(d.blocksize) > int64(len(d.target)) {
			break
		}
		block := d.target[blockStart : blockStart+int64(d.blocksize)]
		pending := int(d.pendingTargetReadSize) + extra

		for _, off := range d.sourceMap.lookup(block) {
			if c := measureOp(variantSourceCopy, d.source, int(off), int(blockStart), pending, d.target, d.lastSourceCopyOffset); c != nil {
				if eff := opEfficiency(c.ops); eff > bestEff {
					bestEff, best, bestVariant = eff, c, variantSourceCopy
				}
			}
		}
		for _, off := range d.targetMap.lookup(block) {
			if c := measureOp(variantTargetCopy, d.target, int(off), int(blockStart), pending, d.target, d.lastTargetCopyOffset); c != nil {
				if eff := opEfficiency(c.ops); eff > bestEff {
					bestEff, best, bestVariant = eff, c, variantTargetCopy
				}
			}
		}
	}

	if best == nil {
		d.pendingTargetReadSize += int64(d.blocksize)
		return
	}

	d.queue = append(d.queue, best.ops...)
	var advanced int64
	for _, op := range best.ops {
		advanced += int64(op.Bytespan())
	}
	d.targetWriteOffset += advanced
	d.pendingTargetReadSize = 0

	lastOp := best.ops[len(best.ops)-1]
	switch bestVariant {
	case variantSourceCopy:
		if _, ok := lastOp.(ops.SourceCopy); ok {
			d.lastSourceCopyOffset = best.endRef
		}
	case variantTargetCopy:
		d.lastTargetCopyOffset = best.endRef
	}

	for d.targetWriteOffset-d.targetIdx >= int64(d.blocksize) {
		if d.targetIdx+int64(d.blocksize) > int64(len(d.target)) {
			break
		}
		d.targetMap.add(d.target, d.targetIdx)
		d.targetIdx += int64(d.blocksize)
	}
}

func (d *diffStream) sendProgress() {
	if d.progress == nil {
		return
	}
	select {
	case d.progress <- Progress{TargetWriteOffset: d.targetWriteOffset, TargetSize: int64(len(d.target))}:
	default:
	}
}

// Diff produces a binary blip patch transforming source into target.
func Diff(source, target []byte, opts ...DiffOption) ([]byte, error) {
	return EncodeBinary(newDiffStream(source, target, opts...))
}
