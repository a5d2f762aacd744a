// Package config loads kang CLI defaults from a YAML file.
//
// The file is named by the --config flag or the KANG_CONFIG environment
// variable. Without either, built-in defaults apply. Values set explicitly
// on the command line always win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	kangcore "github.com/meigma/kang/core"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "KANG_CONFIG"

// ErrInvalid is returned when a loaded config fails validation.
var ErrInvalid = errors.New("config: invalid")

// Config holds defaults for the compress and decompress commands.
type Config struct {
	// Backend is the codec name ("zstd" or "lz4").
	Backend string `yaml:"backend"`

	// Level is the codec compression level.
	Level int `yaml:"level"`

	// ChunkSize is the tensor chunk size in bytes.
	ChunkSize uint64 `yaml:"chunk_size"`

	// BlockSize is the codec's internal block size in bytes. Zero uses the
	// codec default.
	BlockSize int `yaml:"block_size"`

	// Workers is the number of chunks processed at once per file.
	Workers int `yaml:"workers"`

	// FileWorkers is the number of files processed at once in directory mode.
	FileWorkers int `yaml:"file_workers"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Backend:     kangcore.DefaultBackend,
		Level:       kangcore.DefaultLevel,
		ChunkSize:   kangcore.DefaultChunkSize,
		Workers:     1,
		FileWorkers: 1,
	}
}

// Load loads the file named by KANG_CONFIG, or returns Default if the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults. Keys absent
// from the file keep their default values; unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the config can drive a compression run.
func (c *Config) Validate() error {
	if !slices.Contains(kangcore.Backends(), c.Backend) {
		return fmt.Errorf("%w: unknown backend %q (want one of %v)", ErrInvalid, c.Backend, kangcore.Backends())
	}
	if c.ChunkSize == 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalid)
	}
	if c.BlockSize < 0 {
		return fmt.Errorf("%w: block_size must not be negative", ErrInvalid)
	}
	if c.Workers < 0 || c.FileWorkers < 0 {
		return fmt.Errorf("%w: worker counts must not be negative", ErrInvalid)
	}
	return nil
}
