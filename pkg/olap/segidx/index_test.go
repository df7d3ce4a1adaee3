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

package segidx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

var stateCol = &star.Column{Name: "state_province", BitPos: 1, Cardinality: 50}

func headerWithStates(values ...any) segment.Header {
	return segment.Header{
		StarIdentity: "foodmart#1/Sales/sales_fact_1997",
		Measure:      "unit_sales",
		FactAlias:    "sales_fact_1997",
		BitKey:       star.BitKeyOf(1),
		ColumnPredicates: map[uint32]star.ColumnPredicate{
			1: star.NewValueList(stateCol, values...),
		},
	}
}

func TestLocateExactMatchAcceptsValue(t *testing.T) {
	idx := New()
	idx.RegisterWithDomain(headerWithStates("CA", "OR", "WA"), 3)

	got := idx.Locate("foodmart#1/Sales/sales_fact_1997", "sales_fact_1997", star.BitKeyOf(1),
		map[uint32]any{1: "CA"}, nil)
	require.Len(t, got, 1)
}

func TestLocateRejectsValueNotAccepted(t *testing.T) {
	idx := New()
	idx.RegisterWithDomain(headerWithStates("CA", "OR"), 2)

	got := idx.Locate("foodmart#1/Sales/sales_fact_1997", "sales_fact_1997", star.BitKeyOf(1),
		map[uint32]any{1: "NY"}, nil)
	require.Empty(t, got)
}

func TestLocateRejectsBitKeyMismatch(t *testing.T) {
	idx := New()
	idx.RegisterWithDomain(headerWithStates("CA"), 1)

	got := idx.Locate("foodmart#1/Sales/sales_fact_1997", "sales_fact_1997", star.BitKeyOf(1, 2),
		map[uint32]any{1: "CA"}, nil)
	require.Empty(t, got)
}

func TestLocateOrdersSmallestDomainFirst(t *testing.T) {
	idx := New()
	wide := headerWithStates("CA", "OR", "WA")
	narrow := headerWithStates("CA")
	idx.RegisterWithDomain(wide, 3)
	idx.RegisterWithDomain(narrow, 1)

	got := idx.Locate("foodmart#1/Sales/sales_fact_1997", "sales_fact_1997", star.BitKeyOf(1),
		map[uint32]any{1: "CA"}, nil)

	require.Len(t, got, 2)
	require.True(t, got[0].Equals(narrow), "smallest domain segment must sort first")
}

func TestLocateSkipsExcludedRegion(t *testing.T) {
	idx := New()
	h := headerWithStates("CA", "OR")
	h.ExcludedRegions = []*star.Compound{
		star.NewCompound().With(stateCol, star.NewValueList(stateCol, "OR")),
	}
	idx.RegisterWithDomain(h, 2)

	got := idx.Locate("foodmart#1/Sales/sales_fact_1997", "sales_fact_1997", star.BitKeyOf(1),
		map[uint32]any{1: "OR"}, nil)
	require.Empty(t, got, "excluded region must shadow the matching segment")

	got = idx.Locate("foodmart#1/Sales/sales_fact_1997", "sales_fact_1997", star.BitKeyOf(1),
		map[uint32]any{1: "CA"}, nil)
	require.Len(t, got, 1)
}

func TestUnregisterRemovesHeader(t *testing.T) {
	idx := New()
	h := headerWithStates("CA")
	idx.RegisterWithDomain(h, 1)
	require.Len(t, idx.All(), 1)

	idx.Unregister(h)
	require.Empty(t, idx.All())
}

func TestAllReturnsDeterministicOrder(t *testing.T) {
	idx := New()
	idx.RegisterWithDomain(headerWithStates("WA"), 1)
	idx.RegisterWithDomain(headerWithStates("CA"), 1)
	idx.RegisterWithDomain(headerWithStates("OR"), 1)

	first := idx.All()
	second := idx.All()
	require.Equal(t, first, second)
}
