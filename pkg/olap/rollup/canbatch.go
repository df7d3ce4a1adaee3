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

// Package rollup implements Batch Grouping & Rollup (C6): merging
// compatible batches into grouping-sets composites, predicate bloat
// optimization, and distinct-measure splitting.
package rollup

import (
	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
)

// CanBatch reports whether b's cells can be answered by rolling up
// a's detailed result — i.e. a can stand in as the "detailed" side of
// a composite batch with b as a "summary" side (spec §4.6).
func CanBatch(a, b *batch.Batch) bool {
	if !a.Key.BitKey.IsSuperSetOf(b.Key.BitKey) {
		return false
	}
	if a.Star.Identity() != b.Star.Identity() {
		return false
	}
	if a.RollupAggregation != b.RollupAggregation {
		return false
	}
	if !sameMeasures(a.Measures, b.Measures) {
		return false
	}
	if a.HasDistinctMeasure() || b.HasDistinctMeasure() {
		return false
	}
	if !a.ClosureColumnMask.Equals(b.ClosureColumnMask) {
		return false
	}
	return valuesCompatible(a, b)
}

func sameMeasures(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, m := range a {
		seen[m] = true
	}
	for _, m := range b {
		if !seen[m] {
			return false
		}
	}
	return true
}

// valuesCompatible implements spec §4.6 condition 6: values on columns
// present in both batches must match exactly; on columns present only
// in a (the would-be detailed batch), a must constrain the column's
// entire domain, or rolling a up to b's grain would silently drop
// values b's cells could legitimately ask for.
func valuesCompatible(a, b *batch.Batch) bool {
	for pos, bValues := range b.ValueSets {
		aValues, ok := a.ValueSets[pos]
		if !ok {
			return false
		}
		if !sameValueSet(aValues, bValues) {
			return false
		}
	}
	for _, col := range a.Columns {
		if _, inB := b.ValueSets[col.BitPos]; inB {
			continue
		}
		aValues := a.ValueSets[col.BitPos]
		if col.Cardinality > 0 && len(aValues) != col.Cardinality {
			return false
		}
	}
	return true
}

func sameValueSet(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[any]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
