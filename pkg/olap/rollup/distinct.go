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
)

// SplitDistinctMeasures implements spec §4.6's distinct-count special
// handling: most SQL dialects can express at most one DISTINCT
// aggregate expression per statement, so a batch asking for more than
// one is split into one batch per distinct expression, each carrying
// every non-distinct measure along with it. A batch whose distinct
// measures all share one SQL expression needs no split — COUNT(DISTINCT
// x) computed once answers every measure built from x.
//
// Grouping is done on the SQL expression string itself, never by
// scanning it for substrings like "SELECT" — the original's detection
// is flagged in spec §9 as producing false positives on expressions
// that legitimately contain subqueries.
func SplitDistinctMeasures(b *batch.Batch) []*batch.Batch {
	groups := distinctExprGroups(b)
	if len(groups) <= 1 {
		return []*batch.Batch{b}
	}

	out := make([]*batch.Batch, 0, len(groups))
	for _, expr := range groups {
		out = append(out, cloneForExpr(b, expr))
	}
	return out
}

// distinctExprGroups returns the distinct SQL expressions referenced by
// b's measures, sorted for deterministic split ordering.
func distinctExprGroups(b *batch.Batch) []string {
	seen := make(map[string]bool, len(b.DistinctMeasures))
	for _, expr := range b.DistinctMeasures {
		seen[expr] = true
	}
	exprs := make([]string, 0, len(seen))
	for expr := range seen {
		exprs = append(exprs, expr)
	}
	sort.Strings(exprs)
	return exprs
}

// cloneForExpr builds a copy of b restricted to one distinct
// expression's measures plus every non-distinct measure, sharing b's
// key, value sets and columns so each split batch can still be fused
// by Group into the same composite grain it would have belonged to.
func cloneForExpr(b *batch.Batch, expr string) *batch.Batch {
	clone := &batch.Batch{
		Key:               b.Key,
		Star:              b.Star,
		Columns:           b.Columns,
		ValueSets:         b.ValueSets,
		ClosureColumnMask: b.ClosureColumnMask,
		RollupAggregation: b.RollupAggregation,
		DistinctMeasures:  make(map[string]string),
		Requests:          b.Requests,
	}
	for _, m := range b.Measures {
		if sqlExpr, isDistinct := b.DistinctMeasures[m]; isDistinct {
			if sqlExpr == expr {
				clone.Measures = append(clone.Measures, m)
				clone.DistinctMeasures[m] = sqlExpr
			}
			continue
		}
		clone.Measures = append(clone.Measures, m)
	}
	return clone
}
