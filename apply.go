package blip

import (
	"bytes"
	"context"
	"hash/crc32"

	"github.com/blipfmt/bps/internal/ops"
)

// Apply reproduces target bytes from a binary patch and its source,
// verifying the patch's own integrity (via the decoder), every stream
// invariant (via the validator), and finally the source and target CRC32
// trailers against the buffers actually used.
func Apply(patch, source []byte) ([]byte, error) {
	ctx := context.Background()
	v := NewValidator(NewDecoder(bytes.NewReader(patch)))

	if !v.Scan(ctx) {
		if err := v.Err(); err != nil {
			return nil, err
		}
		return nil, corrupt(TruncatedStream, "patch contains no operations")
	}
	h, ok := v.Op().(ops.Header)
	if !ok {
		return nil, corrupt(BadOpcode, "first operation must be Header, got %T", v.Op())
	}
	if int(h.SourceSize) != len(source) {
		return nil, corrupt(SourceChecksumMismatch, "patch expects a %d-byte source, got %d bytes", h.SourceSize, len(source))
	}

	target := make([]byte, 0, h.TargetSize)
	sourceCopyCursor := int64(0)
	targetCopyCursor := int64(0)

	for v.Scan(ctx) {
		switch o := v.Op().(type) {
		case ops.SourceRead:
			start := len(target)
			target = append(target, source[start:start+o.Length]...)
		case ops.TargetRead:
			target = append(target, o.Data...)
		case ops.SourceCopy:
			sourceCopyCursor += o.Offset
			target = append(target, source[sourceCopyCursor:sourceCopyCursor+int64(o.Length)]...)
			sourceCopyCursor += int64(o.Length)
		case ops.TargetCopy:
			targetCopyCursor += o.Offset
			for i := 0; i < o.Length; i++ {
				target = append(target, target[targetCopyCursor])
				targetCopyCursor++
			}
		case ops.SourceCRC32:
			if o.Value != crc32.ChecksumIEEE(source) {
				return nil, corrupt(SourceChecksumMismatch, "source crc32 %08X does not match computed %08X", o.Value, crc32.ChecksumIEEE(source))
			}
		case ops.TargetCRC32:
			if o.Value != crc32.ChecksumIEEE(target) {
				return nil, corrupt(TargetChecksumMismatch, "target crc32 %08X does not match computed %08X", o.Value, crc32.ChecksumIEEE(target))
			}
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return target, nil
}
