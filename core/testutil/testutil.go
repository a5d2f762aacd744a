// Package testutil provides source builders and codec doubles for tests.
package testutil

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/meigma/kang/core/internal/backend"
)

// ErrInjected is the fault returned by FaultyCodec.
var ErrInjected = errors.New("testutil: injected codec fault")

// Pattern returns n bytes of a repeating, compressible pattern.
func Pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 13)
	}
	return out
}

// Random returns n deterministic pseudo-random bytes for seed.
func Random(n int, seed int64) []byte {
	out := make([]byte, n)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	rng.Read(out)
	return out
}

// SourceBytes encodes a source file: 8-byte LE header length, header, tensors.
func SourceBytes(header, tensors []byte) []byte {
	out := make([]byte, 8, 8+len(header)+len(tensors))
	binary.LittleEndian.PutUint64(out, uint64(len(header)))
	out = append(out, header...)
	return append(out, tensors...)
}

// NewCodec returns a real codec by name, closed when the test ends.
func NewCodec(tb testing.TB, name string) backend.Codec {
	tb.Helper()
	c, err := backend.New(name, backend.Config{})
	if err != nil {
		tb.Fatalf("create codec %s: %v", name, err)
	}
	tb.Cleanup(func() { _ = c.Close() })
	return c
}

// CountingCodec wraps a codec and counts calls, recording the smallest
// input it was given.
type CountingCodec struct {
	backend.Codec

	compressCalls   atomic.Int64
	decompressCalls atomic.Int64

	mu       sync.Mutex
	minInput int
}

// NewCountingCodec wraps inner.
func NewCountingCodec(inner backend.Codec) *CountingCodec {
	return &CountingCodec{Codec: inner, minInput: -1}
}

// Compress counts the call and delegates.
func (c *CountingCodec) Compress(dst, src []byte) ([]byte, error) {
	c.compressCalls.Add(1)
	c.observe(len(src))
	return c.Codec.Compress(dst, src)
}

// Decompress counts the call and delegates.
func (c *CountingCodec) Decompress(dst, src []byte) ([]byte, error) {
	c.decompressCalls.Add(1)
	c.observe(len(src))
	return c.Codec.Decompress(dst, src)
}

func (c *CountingCodec) observe(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.minInput < 0 || n < c.minInput {
		c.minInput = n
	}
}

// CompressCalls returns the number of Compress calls.
func (c *CountingCodec) CompressCalls() int { return int(c.compressCalls.Load()) }

// DecompressCalls returns the number of Decompress calls.
func (c *CountingCodec) DecompressCalls() int { return int(c.decompressCalls.Load()) }

// MinInput returns the smallest buffer passed to the codec, or -1 if it
// was never called.
func (c *CountingCodec) MinInput() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minInput
}

// FaultyCodec wraps a codec and fails the Nth Compress or Decompress call
// (1-based). Zero disables the fault.
type FaultyCodec struct {
	backend.Codec

	FailCompressAt   int64
	FailDecompressAt int64

	compressCalls   atomic.Int64
	decompressCalls atomic.Int64
}

// Compress fails on the configured call and delegates otherwise.
func (c *FaultyCodec) Compress(dst, src []byte) ([]byte, error) {
	if n := c.compressCalls.Add(1); n == c.FailCompressAt {
		return nil, ErrInjected
	}
	return c.Codec.Compress(dst, src)
}

// Decompress fails on the configured call and delegates otherwise.
func (c *FaultyCodec) Decompress(dst, src []byte) ([]byte, error) {
	if n := c.decompressCalls.Add(1); n == c.FailDecompressAt {
		return nil, ErrInjected
	}
	return c.Codec.Decompress(dst, src)
}

// LyingCodec wraps a codec and reports a decompressed size off by Delta,
// while decoding correctly.
type LyingCodec struct {
	backend.Codec

	Delta int64
}

// DecompressedSize returns the inner size shifted by Delta.
func (c *LyingCodec) DecompressedSize(src []byte) (uint64, error) {
	n, err := c.Codec.DecompressedSize(src)
	if err != nil {
		return 0, err
	}
	return uint64(int64(n) + c.Delta), nil //nolint:gosec // test double
}
