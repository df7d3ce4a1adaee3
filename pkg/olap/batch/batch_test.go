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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

var (
	testStar   = star.Star{SchemaName: "foodmart", CubeName: "Sales", FactAlias: "sales_fact_1997"}
	stateCol   = &star.Column{Star: testStar, Name: "state_province", BitPos: 1, Cardinality: 50}
	yearCol    = &star.Column{Star: testStar, Name: "year", BitPos: 2, Cardinality: 5}
)

func req(measure string, pos uint32, value any) *CellRequest {
	return &CellRequest{
		Star:               testStar,
		Measure:            measure,
		ConstrainedColumns: star.BitKeyOf(pos),
		ValuePerColumn:     map[uint32]any{pos: value},
	}
}

func TestAggregationKeyFingerprintIgnoresMeasure(t *testing.T) {
	a := KeyFor(req("unit_sales", 1, "CA"))
	b := KeyFor(req("store_sales", 1, "CA"))
	require.True(t, a.Equals(b), "AggregationKey excludes measure by spec, so these must collide")
}

func TestAggregationKeyFingerprintDiffersOnBitKey(t *testing.T) {
	a := KeyFor(req("unit_sales", 1, "CA"))
	b := KeyFor(req("unit_sales", 2, 1997))
	require.False(t, a.Equals(b))
}

func TestNewBatchStoresColumns(t *testing.T) {
	cols := []*star.Column{stateCol, yearCol}
	b := NewBatch(AggregationKey{}, cols)
	require.Equal(t, cols, b.Columns, "NewBatch must retain the columns it was given")
}

func TestBatchAddAccumulatesValuesAndMeasures(t *testing.T) {
	b := NewBatch(AggregationKey{}, []*star.Column{stateCol})
	b.Add(req("unit_sales", 1, "CA"))
	b.Add(req("unit_sales", 1, "OR"))
	b.Add(req("store_sales", 1, "CA"))

	require.ElementsMatch(t, []string{"unit_sales", "store_sales"}, b.Measures)
	require.ElementsMatch(t, []any{"CA", "OR"}, b.ValueSets[1])
}

func TestBatchAddDedupesValues(t *testing.T) {
	b := NewBatch(AggregationKey{}, []*star.Column{stateCol})
	b.Add(req("unit_sales", 1, "CA"))
	b.Add(req("unit_sales", 1, "CA"))

	require.Len(t, b.ValueSets[1], 1)
}

func TestBatchHasDistinctMeasure(t *testing.T) {
	b := NewBatch(AggregationKey{}, []*star.Column{stateCol})
	require.False(t, b.HasDistinctMeasure())

	r := req("customer_count", 1, "CA")
	r.DistinctMeasureExpr = "customer_id"
	b.Add(r)
	require.True(t, b.HasDistinctMeasure())
}

func TestSortBatchesDeterministic(t *testing.T) {
	wide := NewBatch(AggregationKey{}, []*star.Column{stateCol, yearCol})
	narrow := NewBatch(AggregationKey{}, []*star.Column{stateCol})

	batches := []*Batch{wide, narrow}
	SortBatches(batches)
	require.Same(t, narrow, batches[0], "fewer columns must sort first")

	again := []*Batch{wide, narrow}
	SortBatches(again)
	require.Equal(t, batches, again, "sort must be stable across repeated calls")
}
