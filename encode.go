package blip

import (
	"context"

	"github.com/blipfmt/bps/internal/crcio"
	"github.com/blipfmt/bps/internal/ops"
	"github.com/blipfmt/bps/internal/varint"
)

// EncodeBinary drains src (wrapping it in a Validator first, so a caller
// can never produce an on-disk patch that wouldn't itself decode cleanly)
// and returns the binary blip container bytes.
func EncodeBinary(src OpSource) ([]byte, error) {
	ctx := context.Background()
	v := NewValidator(src)

	if !v.Scan(ctx) {
		if err := v.Err(); err != nil {
			return nil, err
		}
		return nil, corrupt(TruncatedStream, "operation stream is empty")
	}
	h, ok := v.Op().(ops.Header)
	if !ok {
		return nil, corrupt(BadOpcode, "first operation must be Header, got %T", v.Op())
	}

	cw := crcio.NewWriter(nil)
	cw.Write([]byte(Magic))
	cw.Write(varint.Encode(uint64(h.SourceSize), nil))
	cw.Write(varint.Encode(uint64(h.TargetSize), nil))
	meta := []byte(h.Metadata)
	cw.Write(varint.Encode(uint64(len(meta)), nil))
	cw.Write(meta)

	for v.Scan(ctx) {
		switch o := v.Op().(type) {
		case ops.SourceRead:
			cw.Write(varint.Encode(ops.HeaderWord(o.Length, ops.OpSourceRead), nil))
		case ops.TargetRead:
			cw.Write(varint.Encode(ops.HeaderWord(len(o.Data), ops.OpTargetRead), nil))
			cw.Write(o.Data)
		case ops.SourceCopy:
			cw.Write(varint.Encode(ops.HeaderWord(o.Length, ops.OpSourceCopy), nil))
			cw.Write(varint.EncodeSigned(o.Offset, nil))
		case ops.TargetCopy:
			cw.Write(varint.Encode(ops.HeaderWord(o.Length, ops.OpTargetCopy), nil))
			cw.Write(varint.EncodeSigned(o.Offset, nil))
		case ops.SourceCRC32:
			crcBuf := appendUint32LE(nil, o.Value)
			cw.Write(crcBuf)
		case ops.TargetCRC32:
			crcBuf := appendUint32LE(nil, o.Value)
			cw.Write(crcBuf)
		default:
			return nil, corrupt(BadOpcode, "unknown operation %T", v.Op())
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	out := cw.Bytes()
	out = appendUint32LE(out, cw.CRC32())
	return out, nil
}
