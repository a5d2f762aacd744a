package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/meigma/kang"
)

func runCompress(ctx context.Context, env *env, args []string) error {
	res, err := kang.CompressPath(ctx, args[0], args[1], env.batchOptions()...)
	if res != nil {
		printBatch(env.stdout, "compressed", res)
	}
	return err
}

func runDecompress(ctx context.Context, env *env, args []string) error {
	res, err := kang.DecompressPath(ctx, args[0], args[1], env.batchOptions()...)
	if res != nil {
		printBatch(env.stdout, "decompressed", res)
	}
	return err
}

func printBatch(w io.Writer, verb string, res *kang.BatchResult) {
	for _, f := range res.Files {
		if f.Err != nil {
			fmt.Fprintf(w, "FAILED %s: %v\n", f.Input, f.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s -> %s: %d -> %d bytes, %d chunks, ratio %.3f, %s\n",
			verb, f.Input, f.Output, f.Stats.InputSize, f.Stats.OutputSize,
			f.Stats.Chunks, f.Stats.Ratio(), f.Stats.Elapsed.Round(time.Millisecond))
	}
	if len(res.Files) != 1 {
		fmt.Fprintf(w, "%d %s, %d failed in %s\n",
			res.Succeeded(), verb, len(res.Failed()), res.Elapsed.Round(time.Millisecond))
	}
}

func runInspect(ctx context.Context, env *env, args []string) error {
	res, err := kang.Inspect(ctx, args[0], env.fileOptions()...)
	if err != nil {
		return err
	}

	w := env.stdout
	s := res.Stats
	fmt.Fprintf(w, "archive:          %s\n", res.Path)
	fmt.Fprintf(w, "digest:           %s\n", res.Digest)
	fmt.Fprintf(w, "size:             %d bytes\n", s.EncodedSize)
	fmt.Fprintf(w, "header:           %d bytes compressed, %d bytes decoded\n", s.HeaderSize, len(res.Header))
	fmt.Fprintf(w, "tensor payload:   %d -> %d bytes, ratio %.3f\n", s.TensorSize, s.CompressedTensorSize, res.Ratio())
	fmt.Fprintf(w, "chunks:           %d (largest %d bytes)\n", s.ChunkCount, s.MaxChunkSize)
	for i, c := range res.Chunks {
		fmt.Fprintf(w, "  %6d  %12d -> %12d\n", i, c.OriginalSize, c.CompressedSize)
	}
	fmt.Fprintf(w, "tensors:          %d\n", len(res.Tensors))
	for dtype, n := range sortedMap(res.DTypes()) {
		fmt.Fprintf(w, "  %-8s %d\n", dtype, n)
	}
	for k, v := range sortedMap(res.Metadata) {
		fmt.Fprintf(w, "metadata %s: %s\n", k, v)
	}
	return nil
}

func runVerify(ctx context.Context, env *env, args []string) error {
	res, err := kang.Verify(ctx, args[0], args[1], env.fileOptions()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "OK %s matches %s (%s, %d bytes, %s)\n",
		res.Archive, res.Original, res.Actual, res.Size, res.Elapsed.Round(time.Millisecond))
	return nil
}

// sortedMap yields the entries of m in key order.
func sortedMap[V any](m map[string]V) iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
