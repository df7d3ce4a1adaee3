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

// Package batch implements the Cell Request/Aggregation Key/Batch data
// model and the per-statement Batch Reader (C5).
package batch

import (
	"fmt"
	"sort"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// CellRequest is an immutable demand for a single measure value at a
// specific coordinate (spec §3).
type CellRequest struct {
	Star                star.Star
	Measure             string
	ConstrainedColumns  star.BitKey
	ValuePerColumn      map[uint32]any
	CompoundPredicates  star.CompoundList
	Unsatisfiable       bool
	DistinctMeasureExpr string // non-empty if Measure is a DISTINCT aggregate, naming its SQL expression
}

// AggregationKey is the identity of a batch bucket: star, constrained
// columns bit key, and compound predicate list. Equality is
// structural.
type AggregationKey struct {
	StarIdentity       string
	BitKey             star.BitKey
	CompoundPredicates star.CompoundList
}

func (k AggregationKey) Fingerprint() string {
	var compounds []string
	for _, c := range k.CompoundPredicates {
		positions := make([]uint32, 0, len(c.Clauses))
		for pos := range c.Clauses {
			positions = append(positions, pos)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
		s := ""
		for _, pos := range positions {
			s += fmt.Sprintf("%d:%v;", pos, c.Clauses[pos].Values())
		}
		compounds = append(compounds, s)
	}
	sort.Strings(compounds)
	return fmt.Sprintf("%s|%s|%v", k.StarIdentity, k.BitKey.String(), compounds)
}

func (k AggregationKey) Equals(o AggregationKey) bool {
	return k.Fingerprint() == o.Fingerprint()
}

// KeyFor derives the AggregationKey a CellRequest belongs to.
func KeyFor(r *CellRequest) AggregationKey {
	return AggregationKey{
		StarIdentity:       r.Star.Identity(),
		BitKey:             r.ConstrainedColumns,
		CompoundPredicates: r.CompoundPredicates,
	}
}
