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

package rollup

import (
	"sort"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// CardinalitySource answers "how many distinct values can this column
// take", preferring the tightest known bound (spec §4.6): the cached
// child count of a common parent member, then the cached level
// cardinality, then the column's raw cardinality.
type CardinalitySource interface {
	ChildCount(col *star.Column, parent any) (int, bool)
	LevelCardinality(col *star.Column, level string) (int, bool)
}

// EffectiveCardinality resolves effective_cardinality(col) per spec
// §4.6's preference order.
func EffectiveCardinality(src CardinalitySource, col *star.Column, parent any, level string) int {
	if src != nil {
		if parent != nil {
			if n, ok := src.ChildCount(col, parent); ok && n > 0 {
				return n
			}
		}
		if level != "" {
			if n, ok := src.LevelCardinality(col, level); ok && n > 0 {
				return n
			}
		}
	}
	if col.Cardinality > 0 {
		return col.Cardinality
	}
	return 1
}

type columnBloat struct {
	pos             uint32
	bloat           float64
	valueSetLen     int
}

// OptimizePredicates implements the bloat-based constraint
// elimination of spec §4.6: any column whose value-set is at or
// above maxConstraints is unconditionally collapsed to TRUE; the
// remaining columns are sorted by bloat descending and collapsed
// while the running product of their bloats stays at or above
// bloatLimit. It does not modify b; it returns which bit positions
// were eliminated.
func OptimizePredicates(b *batch.Batch, cardinality func(pos uint32) int, maxConstraints int, bloatLimit float64) map[uint32]bool {
	eliminated := make(map[uint32]bool)
	var remaining []columnBloat

	for pos, values := range b.ValueSets {
		if maxConstraints > 0 && len(values) >= maxConstraints {
			eliminated[pos] = true
			continue
		}
		eff := cardinality(pos)
		if eff <= 0 {
			eff = 1
		}
		remaining = append(remaining, columnBloat{
			pos:         pos,
			bloat:       float64(len(values)) / float64(eff),
			valueSetLen: len(values),
		})
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		if remaining[i].bloat != remaining[j].bloat {
			return remaining[i].bloat > remaining[j].bloat
		}
		return remaining[i].pos < remaining[j].pos
	})

	// Columns are processed worst-selectivity-first (highest bloat):
	// a column whose value set already covers most of its domain adds
	// little to the WHERE clause's selectivity, so it is the first
	// candidate to collapse to TRUE. The running product tracks the
	// combined bloat of everything eliminated so far; once including
	// the next column would drop that product below bloatLimit, the
	// column is valuable enough to keep — and since the list is
	// sorted descending, so is everything after it.
	product := 1.0
	for _, cb := range remaining {
		candidate := product * cb.bloat
		if candidate < bloatLimit {
			break
		}
		eliminated[cb.pos] = true
		product = candidate
	}

	return eliminated
}
