// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"fmt"
	"time"

	"github.com/google/structfuzz/pkg/config"
	"github.com/google/structfuzz/pkg/osutil"
)

type Config struct {
	// Directory for the corpus and failure artifacts.
	// If empty, nothing is persisted.
	Workdir string `json:"workdir" yaml:"workdir"`
	// Optional single-file copy of the corpus (see pkg/db).
	CorpusDB string `json:"corpus_db,omitempty" yaml:"corpus_db,omitempty"`
	// Compress stored inputs with xz.
	Compress bool `json:"compress,omitempty" yaml:"compress,omitempty"`
	// Upper bound for the complexity of generated and mutated inputs.
	MaxComplexity float64 `json:"max_complexity" yaml:"max_complexity"`
	// Stop after that many target executions (0 means no limit).
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	// Stop after that much time, e.g. "10m" (empty means no limit).
	MaxDuration string `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	// Stop at the first failing input instead of recording it and continuing.
	StopAfterFirstFailure bool `json:"stop_after_first_failure,omitempty" yaml:"stop_after_first_failure,omitempty"`
	// Probability of generating a fresh input even when there are inputs to mutate.
	GenerationRate float64 `json:"generation_rate" yaml:"generation_rate"`
	// Seed for the random generator (0 means time-based).
	Seed  int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	Debug bool  `json:"debug,omitempty" yaml:"debug,omitempty"`

	// Called on every event with a fresh stats snapshot.
	OnEvent func(Event, Stats) `json:"-" yaml:"-"`
	// Receives all log messages of the fuzzer.
	Logf func(level int, msg string, args ...any) `json:"-" yaml:"-"`

	maxDuration time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MaxComplexity:  4096,
		GenerationRate: 0.01,
	}
}

// LoadConfigFile loads a JSON or YAML (by extension) config on top of DefaultConfig.
func LoadConfigFile(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Complete(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfigFile writes cfg as JSON or YAML (by extension), so that it can be loaded with LoadConfigFile.
func SaveConfigFile(filename string, cfg *Config) error {
	return config.SaveFile(filename, cfg)
}

// Complete validates the config and fills in derived values.
func (cfg *Config) Complete() error {
	if cfg.MaxComplexity <= 0 {
		return fmt.Errorf("max_complexity must be positive, got %v", cfg.MaxComplexity)
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("max_iterations can't be negative, got %v", cfg.MaxIterations)
	}
	if cfg.GenerationRate < 0 || cfg.GenerationRate > 1 {
		return fmt.Errorf("generation_rate must be in [0, 1], got %v", cfg.GenerationRate)
	}
	cfg.maxDuration = 0
	if cfg.MaxDuration != "" {
		d, err := time.ParseDuration(cfg.MaxDuration)
		if err != nil {
			return fmt.Errorf("bad max_duration: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("max_duration must be positive, got %v", d)
		}
		cfg.maxDuration = d
	}
	cfg.Workdir = osutil.Abs(cfg.Workdir)
	cfg.CorpusDB = osutil.Abs(cfg.CorpusDB)
	return nil
}
