package kang

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"
)

// FileStats describes one file conversion.
type FileStats struct {
	// InputSize is the size of the file read.
	InputSize uint64

	// OutputSize is the size of the file written.
	OutputSize uint64

	// Chunks is the number of tensor chunks processed.
	Chunks int

	// Elapsed is the wall time of the conversion.
	Elapsed time.Duration
}

// Ratio returns InputSize / OutputSize, or zero if nothing was written.
func (s FileStats) Ratio() float64 {
	if s.OutputSize == 0 {
		return 0
	}
	return float64(s.InputSize) / float64(s.OutputSize)
}

// CompressFile compresses the source file at inPath into an archive at outPath.
//
// The output is written atomically; on failure outPath is not created or
// modified.
func CompressFile(ctx context.Context, inPath, outPath string, opts ...Option) (FileStats, error) {
	cfg := newConfig(opts)
	if cfg.label == "" {
		opts = append(slices.Clip(opts), WithLabel(inPath))
		cfg.label = inPath
	}
	start := time.Now()
	cfg.log().Info("compressing", "input", inPath, "output", outPath, "backend", cfg.backendName(), "level", cfg.level)

	cfg.report(StageReading, 0, 0, 0, 0)
	data, err := os.ReadFile(inPath) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return FileStats{}, fmt.Errorf("%w: read %s: %w", ErrIO, inPath, err)
	}
	src, err := ParseSource(data)
	if err != nil {
		return FileStats{}, fmt.Errorf("%s: %w", inPath, err)
	}

	a, err := Compress(ctx, src.Header, src.Tensors, opts...)
	if err != nil {
		return FileStats{}, fmt.Errorf("%s: %w", inPath, err)
	}

	cfg.report(StageWriting, 0, a.EncodedSize(), len(a.Chunks), len(a.Chunks))
	n, err := writeFileAtomic(outPath, a)
	if err != nil {
		return FileStats{}, err
	}

	stats := FileStats{
		InputSize:  uint64(len(data)),
		OutputSize: uint64(n), //nolint:gosec // n is non-negative
		Chunks:     len(a.Chunks),
		Elapsed:    time.Since(start),
	}
	cfg.log().Info("compressed", "input", inPath, "output", outPath, "chunks", stats.Chunks,
		"ratio", fmt.Sprintf("%.3f", stats.Ratio()), "elapsed", stats.Elapsed)
	return stats, nil
}

// DecompressFile restores the source file at outPath from the archive at inPath.
//
// The output is written atomically; on failure outPath is not created or
// modified.
func DecompressFile(ctx context.Context, inPath, outPath string, opts ...Option) (FileStats, error) {
	cfg := newConfig(opts)
	if cfg.label == "" {
		opts = append(slices.Clip(opts), WithLabel(inPath))
		cfg.label = inPath
	}
	start := time.Now()
	cfg.log().Info("decompressing", "input", inPath, "output", outPath)

	cfg.report(StageReading, 0, 0, 0, 0)
	a, inSize, err := ReadArchiveFile(inPath)
	if err != nil {
		return FileStats{}, err
	}

	src, err := Decompress(ctx, a, opts...)
	if err != nil {
		return FileStats{}, fmt.Errorf("%s: %w", inPath, err)
	}

	cfg.report(StageWriting, 0, src.Size(), len(a.Chunks), len(a.Chunks))
	n, err := writeFileAtomic(outPath, src)
	if err != nil {
		return FileStats{}, err
	}

	stats := FileStats{
		InputSize:  inSize,
		OutputSize: uint64(n), //nolint:gosec // n is non-negative
		Chunks:     len(a.Chunks),
		Elapsed:    time.Since(start),
	}
	cfg.log().Info("decompressed", "input", inPath, "output", outPath, "chunks", stats.Chunks, "elapsed", stats.Elapsed)
	return stats, nil
}

// ReadArchiveFile parses the archive at path and returns it with the file size.
func ReadArchiveFile(path string) (*Archive, uint64, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	a, err := ReadArchive(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return a, a.EncodedSize(), nil
}

func (c *config) backendName() string {
	if c.codec != nil {
		return c.codec.Name()
	}
	return c.backend
}
