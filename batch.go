package kang

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	kangcore "github.com/meigma/kang/core"
)

// FileStats describes one file conversion.
type FileStats = kangcore.FileStats

// FileResult records the outcome of converting one file.
type FileResult struct {
	Input  string
	Output string
	Stats  FileStats
	Err    error
}

// BatchResult summarizes a CompressPath or DecompressPath call.
type BatchResult struct {
	// Files holds one result per file attempted, in directory order.
	Files []FileResult

	// Elapsed is the wall time of the whole call.
	Elapsed time.Duration
}

// Succeeded returns the number of files converted without error.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results of files that could not be converted.
func (r *BatchResult) Failed() []FileResult {
	var failed []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Err joins the errors of every failed file, or returns nil.
func (r *BatchResult) Err() error {
	var errs []error
	for _, f := range r.Failed() {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// fileFunc converts one file.
type fileFunc func(ctx context.Context, in, out string, opts ...Option) (FileStats, error)

// CompressPath compresses input into output.
//
// If input is a regular file, output is the archive path. If input is a
// directory, every *.safetensors file directly inside it is compressed to
// output/<name>.kang, creating output if needed. A failing file does not
// stop the others; the returned error joins every per-file error.
func CompressPath(ctx context.Context, input, output string, opts ...BatchOption) (*BatchResult, error) {
	return runPath(ctx, input, output, SourceExt, ArchiveExt, kangcore.CompressFile, opts)
}

// DecompressPath restores input into output.
//
// If input is a regular file, output is the restored file path. If input is
// a directory, every *.kang file directly inside it is restored to
// output/<name>.safetensors, creating output if needed.
func DecompressPath(ctx context.Context, input, output string, opts ...BatchOption) (*BatchResult, error) {
	return runPath(ctx, input, output, ArchiveExt, SourceExt, kangcore.DecompressFile, opts)
}

func runPath(ctx context.Context, input, output, fromExt, toExt string, fn fileFunc, opts []BatchOption) (*BatchResult, error) {
	cfg := batchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	start := time.Now()

	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, input, err)
	}

	var jobs []FileResult
	switch {
	case info.Mode().IsRegular():
		jobs = []FileResult{{Input: input, Output: output}}
	case info.IsDir():
		jobs, err = planDir(input, output, fromExt, toExt)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(output, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create output directory %s: %w", ErrIO, output, err)
		}
		cfg.log().Info("batch started", "input", input, "output", output, "files", len(jobs))
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFileOrDir, input)
	}

	res := &BatchResult{Files: jobs}
	if err := runJobs(ctx, &cfg, res.Files, fn); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)

	if info.IsDir() {
		cfg.log().Info("batch finished", "files", len(res.Files), "succeeded", res.Succeeded(),
			"failed", len(res.Files)-res.Succeeded(), "elapsed", res.Elapsed)
	}
	return res, res.Err()
}

// planDir lists the regular files in dir with extension fromExt, in name
// order, mapped to outDir with extension toExt.
func planDir(dir, outDir, fromExt, toExt string) ([]FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory %s: %w", ErrIO, dir, err)
	}
	var jobs []FileResult
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != fromExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fromExt) + toExt
		jobs = append(jobs, FileResult{
			Input:  filepath.Join(dir, e.Name()),
			Output: filepath.Join(outDir, name),
		})
	}
	return jobs, nil
}

// runJobs converts every job, recording per-file errors in place. It only
// returns an error when ctx is canceled.
func runJobs(ctx context.Context, cfg *batchConfig, jobs []FileResult, fn fileFunc) error {
	fileOpts := cfg.options()
	convert := func(job *FileResult) {
		job.Stats, job.Err = fn(ctx, job.Input, job.Output, fileOpts...)
		if job.Err != nil {
			cfg.log().Error("file failed", "input", job.Input, "error", job.Err)
		}
	}

	if cfg.fileWorkers <= 1 {
		for i := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			convert(&jobs[i])
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.fileWorkers)
	for i := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			convert(&jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
