// Package plan splits a tensor payload into fixed-size chunks.
//
// Every chunk has the configured size except possibly the last one. An
// empty payload has no chunks at all. The decoder never recomputes a plan;
// it relies only on the sizes recorded in the chunk table.
package plan

import (
	"errors"
	"iter"
)

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 64 << 20 // 64 MiB

// ErrZeroChunkSize is returned by New when chunkSize is zero.
var ErrZeroChunkSize = errors.New("plan: chunk size must be > 0")

// Range is the half-open byte range [Start, End) of a chunk.
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of bytes in the range.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// Plan is an ordered chunk layout for a payload.
type Plan struct {
	payload uint64
	chunk   uint64
	count   int
}

// New computes the chunk layout for payloadSize bytes split into chunks of
// chunkSize bytes.
func New(payloadSize, chunkSize uint64) (Plan, error) {
	if chunkSize == 0 {
		return Plan{}, ErrZeroChunkSize
	}
	count := payloadSize / chunkSize
	if payloadSize%chunkSize != 0 {
		count++
	}
	return Plan{payload: payloadSize, chunk: chunkSize, count: int(count)}, nil //nolint:gosec // count <= payloadSize which fits in memory
}

// Len returns the number of chunks.
func (p Plan) Len() int {
	return p.count
}

// ChunkSize returns the configured chunk size.
func (p Plan) ChunkSize() uint64 {
	return p.chunk
}

// PayloadSize returns the total payload size covered by the plan.
func (p Plan) PayloadSize() uint64 {
	return p.payload
}

// Range returns the byte range of chunk i. It panics if i is out of bounds.
func (p Plan) Range(i int) Range {
	if i < 0 || i >= p.count {
		panic("plan: chunk index out of range")
	}
	start := uint64(i) * p.chunk
	end := min(start+p.chunk, p.payload)
	return Range{Start: start, End: end}
}

// Max returns the size of the largest chunk, or zero for an empty plan.
func (p Plan) Max() uint64 {
	if p.count == 0 {
		return 0
	}
	return min(p.chunk, p.payload)
}

// All yields every chunk index and range in order.
func (p Plan) All() iter.Seq2[int, Range] {
	return func(yield func(int, Range) bool) {
		for i := range p.count {
			if !yield(i, p.Range(i)) {
				return
			}
		}
	}
}
