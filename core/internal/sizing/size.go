// Package sizing provides safe size arithmetic for chunk tables and buffers.
package sizing

import (
	"io"
	"math"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Totals summarizes a sequence of (original, compressed) size pairs.
type Totals struct {
	Original      uint64
	Compressed    uint64
	MaxOriginal   uint64
	MaxCompressed uint64
}

// Sum accumulates the pairs yielded by sizes, reporting false if either
// running total overflows.
func Sum(n int, sizes func(i int) (original, compressed uint64)) (Totals, bool) {
	var t Totals
	for i := range n {
		orig, comp := sizes(i)
		var ok bool
		if t.Original, ok = AddUint64(t.Original, orig); !ok {
			return Totals{}, false
		}
		if t.Compressed, ok = AddUint64(t.Compressed, comp); !ok {
			return Totals{}, false
		}
		t.MaxOriginal = max(t.MaxOriginal, orig)
		t.MaxCompressed = max(t.MaxCompressed, comp)
	}
	return t, true
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
//
// The result grows with the data actually read, so maxSize may come from
// untrusted input.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, overflowErr
	}
	return data, nil
}
