package blip

import (
	"context"

	"github.com/blipfmt/bps/internal/ops"
)

// OpSource is a pull-based producer of patch operations, the same shape as
// the teacher's Scanner (Scan/Block/Err): call Scan repeatedly, reading Op
// after each successful call, until Scan returns false; then check Err to
// distinguish clean exhaustion from failure. Every stage of the pipeline —
// binary decoder, text decoder, validator, diff engine — implements this
// interface, so they compose without materializing the whole operation
// list in memory.
//
// Scan takes a context so a caller can cancel between operations (never
// mid-operation): dropping interest in the producer is how cancellation
// works here, per the format's single-threaded, synchronous concurrency
// model.
type OpSource interface {
	Scan(ctx context.Context) bool
	Op() ops.Operation
	Err() error
}

// sliceSource adapts a fixed slice of operations (valid or not) into an
// OpSource, used by the encoder and validator tests to feed hand-built
// operation streams.
type sliceSource struct {
	items []ops.Operation
	pos   int
	cur   ops.Operation
	err   error
}

func newSliceSource(items []ops.Operation) *sliceSource {
	return &sliceSource{items: items}
}

func (s *sliceSource) Scan(ctx context.Context) bool {
	if s.err != nil || s.pos >= len(s.items) {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.cur = s.items[s.pos]
	s.pos++
	return true
}

func (s *sliceSource) Op() ops.Operation { return s.cur }
func (s *sliceSource) Err() error        { return s.err }
