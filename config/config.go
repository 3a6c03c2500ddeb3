// Package config loads the engine's TOML-driven tunables
// (github.com/BurntSushi/toml), grounded on the teacher module's root
// Config struct (dolthub-go-mysql-server/engine.go). Default returns the
// spec's literal constants so an engine with no config file on disk
// behaves exactly as spec.md describes.
package config

import (
	"github.com/BurntSushi/toml"
)

// Storage holds page-layout tunables.
type Storage struct {
	PageSize int `toml:"page_size"`
}

// Planner holds cost-model and join-search tunables.
type Planner struct {
	// DefaultSelectivity scales a filtering operator's estimated
	// TupleCount per equality predicate in its CNF (spec.md §9 point 5).
	DefaultSelectivity float64 `toml:"default_selectivity"`
	// ExhaustiveJoinLimit is the relation count at or below which the planner
	// tries every join permutation (spec.md §4.G point 1).
	ExhaustiveJoinLimit int `toml:"exhaustive_join_limit"`
}

// Output holds WriteOut's destination tunables.
type Output struct {
	Directory string `toml:"directory"`
}

// Config is the engine's full set of tunables.
type Config struct {
	Storage  Storage  `toml:"storage"`
	Planner  Planner  `toml:"planner"`
	Output   Output   `toml:"output"`
}

// Default returns the configuration spec.md's text describes when no
// config file is supplied: PageSize 131072, DefaultSelectivity 0.1,
// ExhaustiveJoinLimit 4, Output directory ".".
func Default() *Config {
	return &Config{
		Storage: Storage{PageSize: 131072},
		Planner: Planner{DefaultSelectivity: 0.1, ExhaustiveJoinLimit: 4},
		Output:  Output{Directory: "."},
	}
}

// Load reads and decodes a TOML config file at path, filling any field left
// unset at its zero value from Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.PageSize == 0 {
		cfg.Storage.PageSize = 131072
	}
	if cfg.Planner.ExhaustiveJoinLimit == 0 {
		cfg.Planner.ExhaustiveJoinLimit = 4
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "."
	}
	return cfg, nil
}
