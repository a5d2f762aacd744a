package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/meigma/kang"
	"github.com/meigma/kang/internal/config"
)

// flags holds the parsed command line of one command.
type flags struct {
	cmd command

	configPath  string
	verbose     bool
	help        bool
	level       int
	backend     string
	chunkSize   uint64
	blockSize   int
	workers     int
	fileWorkers int
	cpuProfile  string
	fgProfile   string
}

func newFlags(cmd command) *flags {
	return &flags{cmd: cmd}
}

func (f *flags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("kang "+f.cmd.name, pflag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default $"+config.EnvVar+")")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log per-file and per-chunk progress to stderr")
	fs.BoolVarP(&f.help, "help", "h", false, "show help")
	fs.StringVar(&f.cpuProfile, "cpuprofile", "", "write a CPU profile to file")
	fs.StringVar(&f.fgProfile, "fgprofile", "", "write a wall clock profile to file")

	if f.cmd.codec {
		fs.StringVar(&f.backend, "backend", "", "codec: zstd or lz4 (default zstd)")
		fs.IntVar(&f.workers, "workers", 0, "chunks processed at once per file (default 1)")
	}
	if f.cmd.name == "compress" {
		fs.IntVarP(&f.level, "level", "l", 0, "compression level (default 10)")
		fs.Uint64Var(&f.chunkSize, "chunk-size", 0, "tensor chunk size in bytes (default 67108864)")
		fs.IntVar(&f.blockSize, "block-size", 0, "codec block size in bytes (default: codec choice)")
	}
	if f.cmd.name == "compress" || f.cmd.name == "decompress" {
		fs.IntVar(&f.fileWorkers, "file-workers", 0, "files processed at once in directory mode (default 1)")
	}
	return fs
}

// env is everything a command needs after flag parsing.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
}

// fileOptions returns the per-file options for cfg.
func (e *env) fileOptions() []kang.Option {
	return []kang.Option{
		kang.WithBackend(e.cfg.Backend),
		kang.WithLevel(e.cfg.Level),
		kang.WithChunkSize(e.cfg.ChunkSize),
		kang.WithBlockSize(e.cfg.BlockSize),
		kang.WithWorkers(e.cfg.Workers),
	}
}

// batchOptions returns the directory mode options for cfg.
func (e *env) batchOptions() []kang.BatchOption {
	return []kang.BatchOption{
		kang.WithOptions(e.fileOptions()...),
		kang.WithFileWorkers(e.cfg.FileWorkers),
		kang.WithLogger(e.logger),
	}
}

// env loads the config file and applies explicitly set flags over it.
func (f *flags) env(fs *pflag.FlagSet, stdout, stderr io.Writer) (*env, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if fs.Changed("backend") {
		cfg.Backend = f.backend
	}
	if fs.Changed("level") {
		cfg.Level = f.level
	}
	if fs.Changed("chunk-size") {
		cfg.ChunkSize = f.chunkSize
	}
	if fs.Changed("block-size") {
		cfg.BlockSize = f.blockSize
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("file-workers") {
		cfg.FileWorkers = f.fileWorkers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return &env{cfg: cfg, logger: logger, stdout: stdout}, nil
}

// startProfiles starts the requested profilers and returns a function
// that stops them.
func (f *flags) startProfiles() (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if f.fgProfile != "" {
		fgFile, err := os.Create(f.fgProfile)
		if err != nil {
			return nil, fmt.Errorf("create fgprof profile: %w", err)
		}
		stopFG := fgprof.Start(fgFile, fgprof.FormatPprof)
		stops = append(stops, func() {
			if err := stopFG(); err != nil {
				fmt.Fprintf(os.Stderr, "fgprof stop error: %v\n", err)
			}
			_ = fgFile.Close()
		})
	}

	if f.cpuProfile != "" {
		cpuFile, err := os.Create(f.cpuProfile)
		if err != nil {
			stop()
			return nil, fmt.Errorf("create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			_ = cpuFile.Close()
			stop()
			return nil, fmt.Errorf("start cpu profile: %w", err)
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		})
	}
	return stop, nil
}

func printCommandUsage(w io.Writer, cmd command, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "kang %s: %s\n\nUsage:\n  kang %s [flags] %s\n\nFlags:\n%s",
		cmd.name, cmd.summary, cmd.name, cmd.args, fs.FlagUsages())
}
