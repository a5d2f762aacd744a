package kang

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	kangcore "github.com/meigma/kang/core"
)

// VerifyResult reports the digests compared by Verify.
type VerifyResult struct {
	// Archive and Original are the compared paths.
	Archive  string
	Original string

	// Expected is the digest of the original file.
	Expected digest.Digest

	// Actual is the digest of the content restored from the archive.
	Actual digest.Digest

	// Size is the restored content size in bytes.
	Size uint64

	Elapsed time.Duration
}

// Match reports whether the restored content equals the original.
func (r *VerifyResult) Match() bool {
	return r.Expected == r.Actual
}

// Verify restores the archive in memory and compares its SHA-256 digest with
// the original file. Nothing is written to disk.
//
// A restored digest that differs from the original returns the result
// together with ErrDigestMismatch.
func Verify(ctx context.Context, archivePath, originalPath string, opts ...Option) (*VerifyResult, error) {
	start := time.Now()

	a, _, err := kangcore.ReadArchiveFile(archivePath)
	if err != nil {
		return nil, err
	}
	src, err := kangcore.Decompress(ctx, a, append(slices.Clip(opts), kangcore.WithLabel(archivePath))...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archivePath, err)
	}
	digester := digest.Canonical.Digester()
	if _, err := src.WriteTo(digester.Hash()); err != nil {
		return nil, fmt.Errorf("%w: hash restored content: %w", ErrIO, err)
	}

	expected, err := fileDigest(originalPath)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{
		Archive:  archivePath,
		Original: originalPath,
		Expected: expected,
		Actual:   digester.Digest(),
		Size:     src.Size(),
		Elapsed:  time.Since(start),
	}
	if !res.Match() {
		return res, fmt.Errorf("%w: %s restores to %s, %s is %s",
			ErrDigestMismatch, archivePath, res.Actual, originalPath, res.Expected)
	}
	return res, nil
}

func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	return d, nil
}
