package blip

import (
	"context"
	"testing"

	"github.com/blipfmt/bps/internal/ops"
)

func validateOps(items []ops.Operation) error {
	v := NewValidator(newSliceSource(items))
	ctx := context.Background()
	for v.Scan(ctx) {
	}
	return v.Err()
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error of kind %v, got nil", kind)
	}
	cp, ok := err.(*CorruptPatch)
	if !ok {
		t.Fatalf("err = %v (%T), want *CorruptPatch", err, err)
	}
	if cp.Kind != kind {
		t.Errorf("err kind = %v, want %v", cp.Kind, kind)
	}
}

func TestValidatorAcceptsMinimalValidStream(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 0},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidatorRejectsMissingHeader(t *testing.T) {
	err := validateOps([]ops.Operation{ops.SourceCRC32{}, ops.TargetCRC32{}})
	wantKind(t, err, BadOpcode)
}

func TestValidatorRejectsReadPastSource(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 1, TargetSize: 2},
		ops.SourceRead{Length: 2},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	wantKind(t, err, ReadPastSource)
}

func TestValidatorRejectsEmptyTargetRead(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 1},
		ops.TargetRead{},
	})
	wantKind(t, err, TargetReadEmpty)
}

func TestValidatorRejectsNegativeSourceCopyCursor(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 10, TargetSize: 1},
		ops.SourceCopy{Length: 1, Offset: -5},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	wantKind(t, err, NegativeCursor)
}

func TestValidatorRejectsTargetCopyOfUnwrittenBytes(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 2},
		ops.TargetCopy{Length: 2, Offset: 5},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	wantKind(t, err, ReadPastWrittenTarget)
}

func TestValidatorAllowsTargetCopyOverlappingItsOwnOutput(t *testing.T) {
	// A self-overlapping run: one literal byte, then a copy that reads
	// back across bytes the same operation is still producing.
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 4},
		ops.TargetRead{Data: []byte("A")},
		ops.TargetCopy{Length: 3, Offset: 0},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidatorRejectsWriteOverflowsTarget(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 1},
		ops.TargetRead{Data: []byte("AB")},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	wantKind(t, err, WriteOverflowsTarget)
}

func TestValidatorRejectsTrailingGarbage(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 0},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
		ops.SourceCRC32{},
	})
	wantKind(t, err, TrailingGarbage)
}

func TestValidatorRejectsMisorderedTrailers(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 0},
		ops.TargetCRC32{},
		ops.SourceCRC32{},
	})
	wantKind(t, err, DuplicateOrMisorderedTrailer)
}

func TestValidatorRejectsNonUtf8Metadata(t *testing.T) {
	err := validateOps([]ops.Operation{
		ops.Header{SourceSize: 0, TargetSize: 0, Metadata: "\xff\xfe"},
		ops.SourceCRC32{},
		ops.TargetCRC32{},
	})
	wantKind(t, err, MetadataNotUtf8)
}
