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

package batch

import (
	"sort"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// Batch is a collection of cell requests sharing an Aggregation Key;
// it resolves to one SQL statement unless fused into a composite by
// the rollup stage (C6).
type Batch struct {
	Key     AggregationKey
	Star    star.Star
	Columns []*star.Column
	// ValueSets holds, per constrained column, the set of distinct
	// values its requests span — the IN (...) list candidate before
	// predicate optimization.
	ValueSets map[uint32][]any
	Measures  []string
	// ClosureColumnMask marks columns belonging to a parent-child
	// hierarchy's closure table; disqualifies rollup merging across
	// batches that disagree on it (spec §4.6 condition 5).
	ClosureColumnMask star.BitKey
	// RollupAggregation names the aggregation function applied when
	// this batch is used as a rollup target (e.g. "sum"); two batches
	// must agree to be mergeable.
	RollupAggregation string
	DistinctMeasures  map[string]string // measure -> SQL expression, for measures that are DISTINCT aggregates
	Requests          []*CellRequest
}

// NewBatch starts a batch from its first request.
func NewBatch(key AggregationKey, columns []*star.Column) *Batch {
	return &Batch{
		Key:              key,
		Columns:          columns,
		ValueSets:        make(map[uint32][]any),
		DistinctMeasures: make(map[string]string),
	}
}

// Add appends a request to the batch, growing its per-column value
// sets and measure list.
func (b *Batch) Add(r *CellRequest) {
	if b.Star == (star.Star{}) {
		b.Star = r.Star
	}
	b.Requests = append(b.Requests, r)
	if !containsStr(b.Measures, r.Measure) {
		b.Measures = append(b.Measures, r.Measure)
	}
	if r.DistinctMeasureExpr != "" {
		b.DistinctMeasures[r.Measure] = r.DistinctMeasureExpr
	}
	for pos, v := range r.ValuePerColumn {
		b.addValue(pos, v)
	}
}

func (b *Batch) addValue(pos uint32, v any) {
	set := b.ValueSets[pos]
	for _, existing := range set {
		if existing == v {
			return
		}
	}
	b.ValueSets[pos] = append(set, v)
}

// HasDistinctMeasure reports whether any measure in the batch is a
// distinct-count aggregate (spec §4.6 condition 4).
func (b *Batch) HasDistinctMeasure() bool {
	return len(b.DistinctMeasures) > 0
}

func containsStr(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// SortBatches orders batches deterministically: by column-count
// ascending, then by column names, then by value-set contents (spec
// §4.5), so repeated evaluations emit byte-identical SQL (spec P4).
func SortBatches(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if len(a.Columns) != len(b.Columns) {
			return len(a.Columns) < len(b.Columns)
		}
		an, bn := columnNames(a.Columns), columnNames(b.Columns)
		for k := range an {
			if an[k] != bn[k] {
				return an[k] < bn[k]
			}
		}
		return valueSetSignature(a) < valueSetSignature(b)
	})
}

func columnNames(cols []*star.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

func valueSetSignature(b *Batch) string {
	positions := make([]uint32, 0, len(b.ValueSets))
	for pos := range b.ValueSets {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	sig := ""
	for _, pos := range positions {
		values := append([]any{}, b.ValueSets[pos]...)
		sort.Slice(values, func(i, j int) bool { return lessAnyExported(values[i], values[j]) })
		sig += formatValues(pos, values)
	}
	return sig
}
