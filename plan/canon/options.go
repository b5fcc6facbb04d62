package canon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Options configure canonicalization and the batch tooling built on it.
type Options struct {
	Dialect              string `yaml:"dialect"`                // Source dialect name (default: postgres)
	UseActualCardinality bool   `yaml:"use_actual_cardinality"` // Observed rows × loops instead of estimates (default: true)
	Workers              int    `yaml:"workers"`                // Parallel plans in a batch (0 = runtime.NumCPU())
	CacheDir             string `yaml:"cache_dir"`              // Badger cache directory (empty = no cache)
	Verbose              bool   `yaml:"verbose"`                // Print annotation events to stderr
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Dialect:              "postgres",
		UseActualCardinality: true,
		Workers:              0, // 0 = runtime.NumCPU()
		CacheDir:             "",
		Verbose:              false,
	}
}

// EffectiveWorkers resolves Workers to a positive count
func (o Options) EffectiveWorkers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// LoadOptions reads a YAML file on top of DefaultOptions. Keys absent from
// the file keep their default; unknown keys are an error.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read options: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return DefaultOptions(), fmt.Errorf("failed to parse options %s: %w", path, err)
	}
	if opts.Workers < 0 {
		return DefaultOptions(), fmt.Errorf("invalid options %s: workers must not be negative", path)
	}
	return opts, nil
}
