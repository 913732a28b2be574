package blip

import (
	"context"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/blipfmt/bps/internal/crcio"
	"github.com/blipfmt/bps/internal/ops"
	"github.com/blipfmt/bps/internal/varint"
)

type decodeStage int

const (
	decodeStageHeader decodeStage = iota
	decodeStageMiddle
	decodeStageSourceCRC
	decodeStageTargetCRC
	decodeStagePatchCRC
	decodeStageDone
)

// Decoder reads the binary blip container format and emits it as an
// OpSource, one operation at a time. It is the binary counterpart of
// internal/bzip2's bitReader-driven block decode (internal/bzip2/block.go):
// a sticky-error pull reader that stops the moment it finds a problem.
//
// Decoder does not itself enforce the stream-level invariants checked by
// Validator (cursor bounds, trailer ordering); it only enforces what the
// binary encoding itself implies structurally (magic bytes, valid opcodes,
// a readable varint stream, the patch checksum). Wrap it in a Validator to
// get full invariant checking.
type Decoder struct {
	raw io.Reader
	cr  *crcio.Reader

	stage      decodeStage
	sourceSize uint32
	targetSize uint32
	written    int64

	op  ops.Operation
	err error
}

// NewDecoder returns a Decoder reading a binary blip patch from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{raw: r, cr: crcio.NewReader(r)}
}

func (d *Decoder) Op() ops.Operation { return d.op }
func (d *Decoder) Err() error        { return d.err }

func (d *Decoder) fail(err error) bool {
	d.err = err
	return false
}

func (d *Decoder) Scan(ctx context.Context) bool {
	if d.err != nil || d.stage == decodeStageDone {
		return false
	}
	if err := ctx.Err(); err != nil {
		return d.fail(err)
	}
	switch d.stage {
	case decodeStageHeader:
		return d.scanHeader()
	case decodeStageMiddle:
		return d.scanMiddle()
	case decodeStageSourceCRC:
		v, err := d.readUint32LE()
		if err != nil {
			return d.fail(err)
		}
		d.op = ops.SourceCRC32{Value: v}
		d.stage = decodeStageTargetCRC
		return true
	case decodeStageTargetCRC:
		v, err := d.readUint32LE()
		if err != nil {
			return d.fail(err)
		}
		d.op = ops.TargetCRC32{Value: v}
		d.stage = decodeStagePatchCRC
		return true
	default: // decodeStagePatchCRC
		return d.scanPatchTrailer()
	}
}

func (d *Decoder) scanHeader() bool {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(d.cr, magic); err != nil {
		return d.fail(corruptWrap(TruncatedStream, "reading magic", err))
	}
	if string(magic) != Magic {
		return d.fail(corrupt(BadMagic, "got magic %q, want %q", magic, Magic))
	}
	sourceSize, err := varint.Decode(d.cr)
	if err == varint.ErrTruncated {
		return d.fail(corruptWrap(TruncatedStream, "decoding source size", err))
	}
	if err != nil {
		return d.fail(corruptWrap(BadVarInt, "decoding source size", err))
	}
	targetSize, err := varint.Decode(d.cr)
	if err == varint.ErrTruncated {
		return d.fail(corruptWrap(TruncatedStream, "decoding target size", err))
	}
	if err != nil {
		return d.fail(corruptWrap(BadVarInt, "decoding target size", err))
	}
	metaLen, err := varint.Decode(d.cr)
	if err == varint.ErrTruncated {
		return d.fail(corruptWrap(TruncatedStream, "decoding metadata length", err))
	}
	if err != nil {
		return d.fail(corruptWrap(BadVarInt, "decoding metadata length", err))
	}
	meta := make([]byte, metaLen)
	if _, err := io.ReadFull(d.cr, meta); err != nil {
		return d.fail(corruptWrap(TruncatedStream, "reading metadata", err))
	}
	if !utf8.Valid(meta) {
		return d.fail(corrupt(MetadataNotUtf8, "header metadata is not valid UTF-8"))
	}
	d.sourceSize = uint32(sourceSize)
	d.targetSize = uint32(targetSize)
	d.op = ops.Header{SourceSize: d.sourceSize, TargetSize: d.targetSize, Metadata: string(meta)}
	d.stage = decodeStageMiddle
	if d.targetSize == 0 {
		d.stage = decodeStageSourceCRC
	}
	return true
}

func (d *Decoder) scanMiddle() bool {
	value, err := varint.Decode(d.cr)
	if err != nil {
		return d.fail(corruptWrap(BadVarInt, "decoding operation header", err))
	}
	opcode, length := ops.SplitHeaderWord(value)
	switch opcode {
	case ops.OpSourceRead:
		d.op = ops.SourceRead{Length: length}
	case ops.OpTargetRead:
		data := make([]byte, length)
		if _, err := io.ReadFull(d.cr, data); err != nil {
			return d.fail(corruptWrap(TruncatedStream, "reading target-read data", err))
		}
		d.op = ops.TargetRead{Data: data}
	case ops.OpSourceCopy:
		offset, err := varint.DecodeSigned(d.cr)
		if err != nil {
			return d.fail(corruptWrap(BadVarInt, "decoding source-copy offset", err))
		}
		d.op = ops.SourceCopy{Length: length, Offset: offset}
	case ops.OpTargetCopy:
		offset, err := varint.DecodeSigned(d.cr)
		if err != nil {
			return d.fail(corruptWrap(BadVarInt, "decoding target-copy offset", err))
		}
		d.op = ops.TargetCopy{Length: length, Offset: offset}
	default:
		return d.fail(corrupt(BadOpcode, "unknown opcode %d", opcode))
	}
	d.written += int64(d.op.Bytespan())
	if d.written >= int64(d.targetSize) {
		d.stage = decodeStageSourceCRC
	}
	return true
}

func (d *Decoder) scanPatchTrailer() bool {
	expected := d.cr.CRC32()
	var buf [4]byte
	if _, err := io.ReadFull(d.raw, buf[:]); err != nil {
		return d.fail(corruptWrap(TruncatedStream, "reading patch crc32", err))
	}
	actual := binary.LittleEndian.Uint32(buf[:])
	if actual != expected {
		return d.fail(corrupt(PatchChecksumMismatch, "patch crc32 %08X does not match computed %08X", actual, expected))
	}
	var extra [1]byte
	if _, err := io.ReadFull(d.raw, extra[:]); err == nil {
		return d.fail(corrupt(TrailingGarbage, "data follows the patch crc32"))
	} else if err != io.EOF && err != io.ErrUnexpectedEOF {
		return d.fail(err)
	}
	d.stage = decodeStageDone
	return false
}

func (d *Decoder) readUint32LE() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.cr, buf[:]); err != nil {
		return 0, corruptWrap(TruncatedStream, "reading crc32 trailer", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
