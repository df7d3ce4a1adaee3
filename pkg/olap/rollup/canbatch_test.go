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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

var (
	testStar = star.Star{SchemaName: "foodmart", CubeName: "Sales", FactAlias: "sales_fact_1997"}
	stateCol = &star.Column{Star: testStar, Name: "state_province", BitPos: 1, Cardinality: 3}
	yearCol  = &star.Column{Star: testStar, Name: "year", BitPos: 2, Cardinality: 5}
)

func detailedBatch() *batch.Batch {
	key := batch.AggregationKey{StarIdentity: testStar.Identity(), BitKey: star.BitKeyOf(1, 2)}
	b := batch.NewBatch(key, []*star.Column{stateCol, yearCol})
	b.Star = testStar
	b.Measures = []string{"unit_sales"}
	b.ValueSets[1] = []any{"CA", "OR", "WA"} // full domain of stateCol (cardinality 3)
	b.ValueSets[2] = []any{1997}
	return b
}

func summaryBatch() *batch.Batch {
	key := batch.AggregationKey{StarIdentity: testStar.Identity(), BitKey: star.BitKeyOf(2)}
	b := batch.NewBatch(key, []*star.Column{yearCol})
	b.Star = testStar
	b.Measures = []string{"unit_sales"}
	b.ValueSets[2] = []any{1997}
	return b
}

func TestCanBatchAcceptsCompatibleRollup(t *testing.T) {
	require.True(t, CanBatch(detailedBatch(), summaryBatch()))
}

func TestCanBatchRejectsWhenBitKeyNotSuperset(t *testing.T) {
	a := summaryBatch()
	b := detailedBatch()
	require.False(t, CanBatch(a, b))
}

func TestCanBatchRejectsDifferentMeasures(t *testing.T) {
	a := detailedBatch()
	b := summaryBatch()
	b.Measures = []string{"store_sales"}
	require.False(t, CanBatch(a, b))
}

func TestCanBatchRejectsDistinctMeasure(t *testing.T) {
	a := detailedBatch()
	a.DistinctMeasures["unit_sales"] = "customer_id"
	b := summaryBatch()
	require.False(t, CanBatch(a, b))
}

func TestCanBatchRejectsPartialDomainOnDetailOnlyColumn(t *testing.T) {
	a := detailedBatch()
	a.ValueSets[1] = []any{"CA"} // not the full 3-value domain
	b := summaryBatch()
	require.False(t, CanBatch(a, b), "a partial constraint on a detail-only column can silently drop cells b could ask for")
}

func TestCanBatchRejectsMismatchedSharedColumnValues(t *testing.T) {
	a := detailedBatch()
	b := summaryBatch()
	b.ValueSets[2] = []any{1998}
	require.False(t, CanBatch(a, b))
}

func TestCanBatchRejectsDifferentClosureMask(t *testing.T) {
	a := detailedBatch()
	b := summaryBatch()
	a.ClosureColumnMask = star.BitKeyOf(9)
	require.False(t, CanBatch(a, b))
}
