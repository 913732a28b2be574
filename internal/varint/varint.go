// Package varint implements the self-terminating variable-length integer
// encoding used throughout the blip patch format: 7-bit little-endian
// groups, with the high bit of the final byte set to mark the end of the
// value.
package varint

import (
	"errors"
	"io"
)

// ErrTruncated is returned by Decode when the underlying reader runs out of
// bytes before a byte with its high bit set is seen.
var ErrTruncated = errors.New("varint: truncated before terminating byte")

// Encode appends the varint encoding of n to dst and returns the result.
//
// The encoding walks n down by emitting its low 7 bits and then computing
// (n>>7)-1 until n fits in 7 bits, at which point the final byte is emitted
// with its high bit set; that high bit is what makes the encoding
// self-terminating. The "subtract one" step (rather than plain base-128)
// gives every value exactly one encoding: see the worked examples in the
// format's Open Questions (0 -> 0x80, 128 -> 0x00 0x80, 256 -> 0x00 0x81).
func Encode(n uint64, dst []byte) []byte {
	for n > 0x7F {
		dst = append(dst, byte(n&0x7F))
		n = (n >> 7) - 1
	}
	return append(dst, byte(n)|0x80)
}

// AppendEncode is an alias for Encode kept for call sites that read more
// naturally with an Append-prefixed name.
func AppendEncode(dst []byte, n uint64) []byte {
	return Encode(n, dst)
}

// Measure returns the number of bytes Encode(n, nil) would produce.
func Measure(n uint64) int {
	count := 1
	for n > 0x7F {
		n = (n >> 7) - 1
		count++
	}
	return count
}

// Decode reads one varint from r.
func Decode(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint64 = 1

	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, ErrTruncated
			}
			return 0, err
		}

		result += uint64(b&0x7F) * shift

		if b&0x80 != 0 {
			return result, nil
		}

		shift <<= 7
		result += shift
	}
}

// EncodeSigned appends the zig-zag-like signed encoding blip uses for
// SourceCopy/TargetCopy offsets: the magnitude is shifted left one bit and
// the vacated low bit carries the sign (1 means negative). Zero is always
// encoded as positive; there is no representable negative zero.
func EncodeSigned(n int64, dst []byte) []byte {
	var magnitude uint64
	var sign uint64
	if n < 0 {
		magnitude = uint64(-n)
		sign = 1
	} else {
		magnitude = uint64(n)
	}
	return Encode((magnitude<<1)|sign, dst)
}

// MeasureSigned returns the number of bytes EncodeSigned(n, nil) would
// produce.
func MeasureSigned(n int64) int {
	var magnitude uint64
	if n < 0 {
		magnitude = uint64(-n)
	} else {
		magnitude = uint64(n)
	}
	return Measure((magnitude << 1) | 1)
}

// DecodeSigned reads one signed varint as written by EncodeSigned.
func DecodeSigned(r io.ByteReader) (int64, error) {
	raw, err := Decode(r)
	if err != nil {
		return 0, err
	}
	magnitude := int64(raw >> 1)
	if raw&1 != 0 {
		return -magnitude, nil
	}
	return magnitude, nil
}
