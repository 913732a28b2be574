// Package blip implements the BPS ("blip") binary-delta patch format: a
// compact encoding that transforms a source byte sequence into a target
// byte sequence by combining literal bytes with copy references to either
// the source or the already-written portion of the target.
//
// The package provides four operations: Apply reproduces a target from a
// patch and its source; Diff produces a patch from a (source, target)
// pair; Validate checks that a patch is well-formed without applying it;
// BinaryToText and TextToBinary convert between the binary container
// format and an equivalent line-oriented textual form ("blip-asm").
//
// The format is not compressed beyond its variable-length integer
// encoding, the diff engine is heuristic rather than optimal, and patches
// carry only CRC32 integrity, not cryptographic authentication.
package blip

// Magic is the 4-byte magic that begins every binary blip patch.
const Magic = "BPS1"

// TextMagic is the first line of every textual ("blip-asm") patch.
const TextMagic = "bps1-asm\n"

const (
	labelSourceSize  = "source-size"
	labelTargetSize  = "target-size"
	labelMetadata    = "metadata"
	labelSourceRead  = "source-read"
	labelTargetRead  = "target-read"
	labelSourceCopy  = "source-copy"
	labelTargetCopy  = "target-copy"
	labelSourceCRC32 = "source-crc32"
	labelTargetCRC32 = "target-crc32"
)
