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

// Package flush implements Cache Control / flush (C8): region-precise
// invalidation that tightens a segment's axis predicates and marks an
// excluded region rather than discarding the segment outright.
package flush

import (
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// MultiColumnPredicate constrains more than one column jointly (e.g.
// "state = CA AND year = 1997"); it cannot be pruned axis-by-axis, so
// it goes through ValuePruner instead.
type MultiColumnPredicate struct {
	Columns []uint32
	Accepts func(values map[uint32]any) bool
}

// CacheRegion names the cells a flush invalidates: a bitmap of the
// columns it constrains, one predicate per constrained column, and any
// number of multi-column predicates that cut across several axes at
// once (spec §4.8).
type CacheRegion struct {
	BitKey                star.BitKey
	PerColumnPredicate     map[uint32]star.ColumnPredicate
	MultiColumnPredicates  []MultiColumnPredicate
}

func NewRegion() *CacheRegion {
	return &CacheRegion{
		BitKey:             star.NewBitKey(),
		PerColumnPredicate: make(map[uint32]star.ColumnPredicate),
	}
}

// Constrain adds a single-column flush predicate to the region.
func (r *CacheRegion) Constrain(col *star.Column, pred star.ColumnPredicate) *CacheRegion {
	r.BitKey = r.BitKey.Set(col.BitPos)
	r.PerColumnPredicate[col.BitPos] = pred
	return r
}

// ConstrainJoint adds a multi-column flush predicate spanning cols.
func (r *CacheRegion) ConstrainJoint(cols []uint32, accepts func(values map[uint32]any) bool) *CacheRegion {
	for _, c := range cols {
		r.BitKey = r.BitKey.Set(c)
	}
	r.MultiColumnPredicates = append(r.MultiColumnPredicates, MultiColumnPredicate{Columns: cols, Accepts: accepts})
	return r
}

// Evaluate reports whether the region's per-column and multi-column
// predicates all accept the given per-column values.
func (r *CacheRegion) Evaluate(values map[uint32]any) bool {
	for pos, pred := range r.PerColumnPredicate {
		v, ok := values[pos]
		if !ok || !pred.Evaluate(v) {
			return false
		}
	}
	for _, mc := range r.MultiColumnPredicates {
		if !mc.Accepts(values) {
			return false
		}
	}
	return true
}
