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

package loader

import "github.com/CodeOnCoffee/olapcache/pkg/olap/star"

// AggStar names a pre-materialised aggregate table the loader can
// target instead of the base fact table, plus the rollup aggregation
// function already baked into it (e.g. "sum" over a table that stores
// daily subtotals).
type AggStar struct {
	Star      star.Star
	TableName string
	Rollup    string
}

// FindAggFunc is the pluggable aggregate-table matcher spec §1 scopes
// out of this module: given a star and the bit keys of the columns and
// measure a query needs, it decides whether some pre-built aggregate
// table already answers it at a coarser grain. DefaultFindAgg always
// misses, which is a correct (if slow) answer — real matching lives
// behind this same signature in a deployment that has one.
type FindAggFunc func(st star.Star, levelBitKey, measureBitKey star.BitKey) (*AggStar, bool)

func DefaultFindAgg(star.Star, star.BitKey, star.BitKey) (*AggStar, bool) {
	return nil, false
}
