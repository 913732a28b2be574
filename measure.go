package blip

import "github.com/blipfmt/bps/internal/ops"

// copyVariant selects which cursor (and which Operation type) a candidate
// match belongs to.
type copyVariant int

const (
	variantSourceCopy copyVariant = iota
	variantTargetCopy
)

// candidate is one scored possibility considered by the diff engine's main
// loop: the operations it would emit (an optional leading TargetRead for
// the bytes that didn't extend backward far enough, followed by the copy
// or source-read itself), and endRef, the reference-buffer offset
// immediately past the matched span — which becomes the new cursor value
// for whichever of lastSourceCopyOffset/lastTargetCopyOffset this
// candidate's variant tracks, if it is the one committed.
type candidate struct {
	ops    []ops.Operation
	endRef int64
}

// measureOp evaluates a single candidate match: ref/refOff identify the
// reference buffer (source for a SourceCopy candidate, target for a
// TargetCopy candidate) and the offset a block-map lookup found there;
// target/targetOff/pending describe the target bytes awaiting a verdict;
// cursor is the persistent cursor value (lastSourceCopyOffset or
// lastTargetCopyOffset) this candidate's delta is encoded against.
//
// It extends the match backward (reclaiming bytes that would otherwise
// have become a TargetRead) and forward, then returns nil if the forward
// span is empty (a hash collision with no real match to report).
func measureOp(variant copyVariant, ref []byte, refOff, targetOff, pending int, target []byte, cursor int64) *candidate {
	maxBack := minInt(minInt(refOff, targetOff), pending)
	backSpan := 0
	for backSpan < maxBack && ref[refOff-1-backSpan] == target[targetOff-1-backSpan] {
		backSpan++
	}
	refOff -= backSpan
	targetOff -= backSpan
	pending -= backSpan

	maxForward := minInt(len(ref)-refOff, len(target)-targetOff)
	forwardSpan := 0
	for forwardSpan < maxForward && ref[refOff+forwardSpan] == target[targetOff+forwardSpan] {
		forwardSpan++
	}
	if forwardSpan == 0 {
		return nil
	}

	var result []ops.Operation
	if pending > 0 {
		data := make([]byte, pending)
		copy(data, target[targetOff-pending:targetOff])
		result = append(result, ops.TargetRead{Data: data})
	}

	delta := int64(refOff) - cursor
	switch {
	case variant == variantSourceCopy && int64(refOff) == int64(targetOff):
		result = append(result, ops.SourceRead{Length: forwardSpan})
	case variant == variantSourceCopy:
		result = append(result, ops.SourceCopy{Length: forwardSpan, Offset: delta})
	default:
		result = append(result, ops.TargetCopy{Length: forwardSpan, Offset: delta})
	}

	return &candidate{ops: result, endRef: int64(refOff + forwardSpan)}
}

// opEfficiency scores a candidate's operation list as the ratio of target
// bytes it produces to the bytes it costs to encode. Candidates with
// higher efficiency are preferred; a zero-bytespan list (shouldn't occur,
// since measureOp never returns an empty forward span) scores zero.
func opEfficiency(ops []ops.Operation) float64 {
	var bytespan, encoded int
	for _, op := range ops {
		bytespan += op.Bytespan()
		encoded += op.EncodedLength()
	}
	if encoded == 0 {
		return 0
	}
	return float64(bytespan) / float64(encoded)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
