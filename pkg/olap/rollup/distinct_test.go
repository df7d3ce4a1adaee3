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
)

func TestSplitDistinctMeasuresNoSplitWhenSingleExpression(t *testing.T) {
	b := batch.NewBatch(batch.AggregationKey{}, nil)
	b.Measures = []string{"customer_count", "unit_sales"}
	b.DistinctMeasures["customer_count"] = "customer_id"

	out := SplitDistinctMeasures(b)
	require.Len(t, out, 1)
	require.Same(t, b, out[0])
}

func TestSplitDistinctMeasuresSplitsDifferentExpressions(t *testing.T) {
	b := batch.NewBatch(batch.AggregationKey{}, nil)
	b.Measures = []string{"customer_count", "product_count", "unit_sales"}
	b.DistinctMeasures["customer_count"] = "customer_id"
	b.DistinctMeasures["product_count"] = "product_id"

	out := SplitDistinctMeasures(b)
	require.Len(t, out, 2)

	for _, clone := range out {
		require.Contains(t, clone.Measures, "unit_sales", "non-distinct measures ride along with every split")
		require.Len(t, clone.DistinctMeasures, 1)
	}
}

func TestSplitDistinctMeasuresNoDistinctAtAll(t *testing.T) {
	b := batch.NewBatch(batch.AggregationKey{}, nil)
	b.Measures = []string{"unit_sales"}

	out := SplitDistinctMeasures(b)
	require.Len(t, out, 1)
	require.Same(t, b, out[0])
}

func TestSplitDistinctMeasuresGroupsSharedExpression(t *testing.T) {
	b := batch.NewBatch(batch.AggregationKey{}, nil)
	b.Measures = []string{"customer_count", "order_count"}
	b.DistinctMeasures["customer_count"] = "customer_id"
	b.DistinctMeasures["order_count"] = "customer_id" // same expression, different measure

	out := SplitDistinctMeasures(b)
	require.Len(t, out, 1, "measures sharing one SQL expression never need to split")
}
