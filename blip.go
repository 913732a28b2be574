package blip

import (
	"bytes"
	"context"
)

// Validate checks that patch is a well-formed binary blip patch: its own
// magic and checksum, and every cross-operation invariant. It returns nil
// if the patch is valid, or the first *CorruptPatch encountered.
func Validate(patch []byte) error {
	ctx := context.Background()
	v := NewValidator(NewDecoder(bytes.NewReader(patch)))
	for v.Scan(ctx) {
	}
	return v.Err()
}

// BinaryToText converts a binary blip patch into its equivalent blip-asm
// textual form.
func BinaryToText(patch []byte) ([]byte, error) {
	return EncodeText(NewDecoder(bytes.NewReader(patch)))
}

// TextToBinary converts a blip-asm textual patch into its equivalent
// binary form.
func TextToBinary(text []byte) ([]byte, error) {
	return EncodeBinary(NewTextDecoder(bytes.NewReader(text)))
}
