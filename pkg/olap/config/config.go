// Copyright 2024 The OLAP Cache Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the recognised tuning options for the segment
// cache and batched cell-loading pipeline, decoded from TOML the way
// the rest of the house configures long-running subsystems.
package config

import (
	"github.com/BurntSushi/toml"
)

// Config mirrors the Configuration table: every recognised option
// gets one field.
type Config struct {
	// EnableGroupingSets allows the rollup stage to fuse compatible
	// batches into a single grouping-sets query.
	EnableGroupingSets bool `toml:"enable-grouping-sets"`

	// UseAggregates allows the loader to target pre-materialised
	// aggregate tables instead of the base fact table.
	UseAggregates bool `toml:"use-aggregates"`

	// DisableCaching skips the in-memory cache worker entirely;
	// external caches, if any, are still consulted.
	DisableCaching bool `toml:"disable-caching"`

	// MaxConstraints upper-bounds an IN (...) list length before the
	// predicate optimizer collapses it to TRUE.
	MaxConstraints int `toml:"max-constraints"`

	// OptimizePredicates enables bloat-based constraint elimination.
	OptimizePredicates bool `toml:"optimize-predicates"`

	// GenerateAggregateSql emits suggested aggregate-table DDL to the
	// log sink instead of discarding the opportunity.
	GenerateAggregateSql bool `toml:"generate-aggregate-sql"`

	// InMemoryCacheCapacity bounds the number of segments the
	// in-memory cache worker keeps resident.
	InMemoryCacheCapacity int `toml:"in-memory-cache-capacity"`

	// SQLPoolSize is the fixed worker pool size used by the segment
	// loader to issue parallel fact-table queries.
	SQLPoolSize int `toml:"sql-pool-size"`

	// CellRequestQuantum is the number of accumulated cell requests
	// after which the batch reader asks the evaluator to flush early.
	CellRequestQuantum int `toml:"cell-request-quantum"`

	// BloatLimit is the running-product threshold below which the
	// predicate optimizer keeps eliminating constraints.
	BloatLimit float64 `toml:"bloat-limit"`

	// DenseDatasetThreshold is the density at which a segment's
	// dataset switches from sparse to dense storage.
	DenseDatasetThreshold float64 `toml:"dense-dataset-threshold"`
}

func Default() Config {
	c := Config{
		EnableGroupingSets:    true,
		UseAggregates:         true,
		OptimizePredicates:    true,
		MaxConstraints:        1000,
		InMemoryCacheCapacity: 100,
		SQLPoolSize:           10,
		CellRequestQuantum:    5000,
		BloatLimit:            0.5,
		DenseDatasetThreshold: 0.5,
	}
	return c
}

// Decode reads a Config from TOML, filling any unset field with its
// default.
func Decode(data string) (Config, error) {
	c := Default()
	if _, err := toml.Decode(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
