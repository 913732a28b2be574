package blip

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/blipfmt/bps/internal/ops"
)

func encodeOps(t *testing.T, items []ops.Operation) []byte {
	t.Helper()
	patch, err := EncodeBinary(newSliceSource(items))
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	return patch
}

func TestEncodeBinaryStartsWithMagic(t *testing.T) {
	patch := encodeOps(t, []ops.Operation{
		ops.Header{SourceSize: 1, TargetSize: 1},
		ops.SourceRead{Length: 1},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	if !bytes.HasPrefix(patch, []byte(Magic)) {
		t.Errorf("patch does not start with magic %q: %x", Magic, patch[:4])
	}
}

func TestEncodeBinaryRejectsMissingHeader(t *testing.T) {
	_, err := EncodeBinary(newSliceSource([]ops.Operation{ops.SourceRead{Length: 1}}))
	if err == nil {
		t.Fatal("expected an error for a stream with no leading Header")
	}
}

func TestEncodeBinaryRoundTripsThroughDecoder(t *testing.T) {
	items := []ops.Operation{
		ops.Header{SourceSize: 4, TargetSize: 4, Metadata: "hi"},
		ops.SourceRead{Length: 2},
		ops.TargetRead{Data: []byte("zz")},
		ops.SourceCRC32{Value: 0xDEADBEEF},
		ops.TargetCRC32{Value: 0xCAFEBABE},
	}
	patch := encodeOps(t, items)

	d := NewDecoder(bytes.NewReader(patch))
	var got []ops.Operation
	for d.Scan(context.Background()) {
		got = append(got, d.Op())
	}
	if err := d.Err(); err != nil {
		t.Fatalf("decoding round-tripped patch: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d ops, want %d: %#v", len(got), len(items), got)
	}
	for i := range items {
		if !reflect.DeepEqual(got[i], items[i]) {
			t.Errorf("op %d = %#v, want %#v", i, got[i], items[i])
		}
	}
}
