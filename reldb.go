// Package reldb is the top-level facade for the embeddable, in-memory,
// reactive relational database engine, mirroring the shape of the
// teacher's root-level novasql package (a thin type-alias layer over
// internal/engine).
package reldb

import "github.com/tuannm99/reldb/internal/engine"

// Engine owns every named database for one process.
type Engine = engine.Engine

// Database is one live schema + table namespace.
type Database = engine.Database

// Config is the engine's static configuration.
type Config = engine.Config

// Explanation is explain(plan)'s {logical, optimized, physical} result.
type Explanation = engine.Explanation

// BenchmarkResult is benchmark_range_query's diagnostic result.
type BenchmarkResult = engine.BenchmarkResult

// New constructs an Engine with the given configuration.
func New(cfg Config) *Engine { return engine.New(cfg) }

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() Config { return engine.DefaultConfig() }

// LoadConfig reads and unmarshals a YAML config file.
func LoadConfig(path string) (Config, error) { return engine.LoadConfig(path) }
