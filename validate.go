package blip

import (
	"context"
	"unicode/utf8"

	"github.com/blipfmt/bps/internal/ops"
)

type validatorStage int

const (
	stageHeader validatorStage = iota
	stageMiddle
	stageSourceCRC
	stageTargetCRC
	stageDone
)

// Validator wraps any OpSource and enforces the cross-operation invariants
// from the stream-level description: a single leading Header, a run of
// read/copy operations whose bytespans sum exactly to the target size, a
// SourceCopy cursor and a TargetCopy cursor that never go negative or past
// what they're allowed to see, and exactly one SourceCRC32 followed by
// exactly one TargetCRC32 with nothing after. It mirrors internal/bzip2's
// block-level sanity checks (block.go), applied here to a patch's
// operation stream instead of a compressed block's Huffman-decoded
// symbols.
//
// Validator is itself an OpSource: it passes every operation through
// unchanged, so it can be spliced into a pipeline (decoder -> validator ->
// encoder, or diff engine -> validator -> encoder) without the caller
// having to special-case it.
type Validator struct {
	src OpSource

	stage             validatorStage
	sourceSize        int64
	targetSize        int64
	targetWriteOffset int64
	sourceCopyCursor  int64
	targetCopyCursor  int64

	op  ops.Operation
	err error
}

// NewValidator returns a Validator reading from src.
func NewValidator(src OpSource) *Validator {
	return &Validator{src: src}
}

func (v *Validator) Op() ops.Operation { return v.op }
func (v *Validator) Err() error        { return v.err }

func (v *Validator) fail(err error) bool {
	v.err = err
	return false
}

func (v *Validator) Scan(ctx context.Context) bool {
	if v.err != nil {
		return false
	}
	if !v.src.Scan(ctx) {
		if err := v.src.Err(); err != nil {
			return v.fail(err)
		}
		if v.stage != stageDone {
			return v.fail(corrupt(TruncatedStream, "patch ended in stage %d before trailers were seen", v.stage))
		}
		return false
	}

	op := v.src.Op()

	switch v.stage {
	case stageHeader:
		return v.scanHeader(op)
	case stageMiddle:
		return v.scanMiddle(op)
	case stageSourceCRC:
		return v.scanSourceCRC(op)
	case stageTargetCRC:
		return v.scanTargetCRC(op)
	default: // stageDone
		return v.fail(corrupt(TrailingGarbage, "unexpected %T after trailers", op))
	}
}

func (v *Validator) scanHeader(op ops.Operation) bool {
	h, ok := op.(ops.Header)
	if !ok {
		return v.fail(corrupt(BadOpcode, "first operation must be Header, got %T", op))
	}
	if !utf8.ValidString(h.Metadata) {
		return v.fail(corrupt(MetadataNotUtf8, "header metadata is not valid UTF-8"))
	}
	v.sourceSize = int64(h.SourceSize)
	v.targetSize = int64(h.TargetSize)
	v.op = op
	if v.targetSize == 0 {
		v.stage = stageSourceCRC
	} else {
		v.stage = stageMiddle
	}
	return true
}

func (v *Validator) scanMiddle(op ops.Operation) bool {
	switch o := op.(type) {
	case ops.SourceRead:
		if o.Length <= 0 {
			return v.fail(corrupt(ReadPastSource, "source-read length %d is not positive", o.Length))
		}
		if v.targetWriteOffset+int64(o.Length) > v.sourceSize {
			return v.fail(corrupt(ReadPastSource, "source-read at target offset %d of length %d exceeds source size %d", v.targetWriteOffset, o.Length, v.sourceSize))
		}
	case ops.TargetRead:
		if len(o.Data) == 0 {
			return v.fail(corrupt(TargetReadEmpty, "target-read carries no data"))
		}
	case ops.SourceCopy:
		if o.Length <= 0 {
			return v.fail(corrupt(ReadPastSource, "source-copy length %d is not positive", o.Length))
		}
		newCursor := v.sourceCopyCursor + o.Offset
		if newCursor < 0 {
			return v.fail(corrupt(NegativeCursor, "source-copy cursor would go negative (%d + %d)", v.sourceCopyCursor, o.Offset))
		}
		if newCursor+int64(o.Length) > v.sourceSize {
			return v.fail(corrupt(ReadPastSource, "source-copy at source offset %d of length %d exceeds source size %d", newCursor, o.Length, v.sourceSize))
		}
		v.sourceCopyCursor = newCursor + int64(o.Length)
	case ops.TargetCopy:
		if o.Length <= 0 {
			return v.fail(corrupt(ReadPastWrittenTarget, "target-copy length %d is not positive", o.Length))
		}
		newCursor := v.targetCopyCursor + o.Offset
		if newCursor < 0 {
			return v.fail(corrupt(NegativeCursor, "target-copy cursor would go negative (%d + %d)", v.targetCopyCursor, o.Offset))
		}
		if newCursor >= v.targetWriteOffset {
			return v.fail(corrupt(ReadPastWrittenTarget, "target-copy at offset %d has not been written yet (only %d bytes written)", newCursor, v.targetWriteOffset))
		}
		v.targetCopyCursor = newCursor + int64(o.Length)
	default:
		return v.fail(corrupt(DuplicateOrMisorderedTrailer, "unexpected %T with %d of %d target bytes written", op, v.targetWriteOffset, v.targetSize))
	}

	v.targetWriteOffset += int64(op.Bytespan())
	if v.targetWriteOffset > v.targetSize {
		return v.fail(corrupt(WriteOverflowsTarget, "operations have written %d bytes, exceeding target size %d", v.targetWriteOffset, v.targetSize))
	}
	v.op = op
	if v.targetWriteOffset == v.targetSize {
		v.stage = stageSourceCRC
	}
	return true
}

func (v *Validator) scanSourceCRC(op ops.Operation) bool {
	if _, ok := op.(ops.SourceCRC32); !ok {
		return v.fail(corrupt(DuplicateOrMisorderedTrailer, "expected source-crc32, got %T", op))
	}
	v.op = op
	v.stage = stageTargetCRC
	return true
}

func (v *Validator) scanTargetCRC(op ops.Operation) bool {
	if _, ok := op.(ops.TargetCRC32); !ok {
		return v.fail(corrupt(DuplicateOrMisorderedTrailer, "expected target-crc32, got %T", op))
	}
	v.op = op
	v.stage = stageDone
	return true
}
