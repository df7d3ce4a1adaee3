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

package segment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

func testSegment() (*Segment, *star.Column, *star.Column) {
	stateCol := &star.Column{Name: "state_province", BitPos: 1, Cardinality: 50}
	yearCol := &star.Column{Name: "year", BitPos: 2, Cardinality: 5}

	axes := []Axis{
		{Column: stateCol, Predicate: star.NewValueList(stateCol, "CA", "OR"), Keys: []any{"CA", "OR"}},
		{Column: yearCol, Predicate: star.NewValueList(yearCol, 1997), Keys: []any{1997}},
	}
	header := Header{
		StarIdentity: "foodmart#1/Sales/sales_fact_1997",
		Measure:      "unit_sales",
		FactAlias:    "sales_fact_1997",
		BitKey:       star.BitKeyOf(1, 2),
	}
	seg := ToSegment(header, star.Star{FactAlias: "sales_fact_1997"}, []*star.Column{stateCol, yearCol}, "unit_sales", axes, nil)
	return seg, stateCol, yearCol
}

func TestSegmentCellCount(t *testing.T) {
	seg, _, _ := testSegment()
	require.Equal(t, int64(2), seg.CellCount())
}

func TestAddDataRejectsValueNotOnAxis(t *testing.T) {
	seg, _, _ := testSegment()
	rows := []Row{{AxisValues: []any{"NY", 1997}, Measure: star.Integer(10)}}

	_, err := AddData(context.Background(), seg, rows, 0.5)
	require.Error(t, err)
	require.True(t, moerr.Is(err, moerr.ErrCorruptedSegment))
}

func TestAddDataAndGetObject(t *testing.T) {
	seg, _, _ := testSegment()
	rows := []Row{
		{AxisValues: []any{"CA", 1997}, Measure: star.Integer(100)},
		{AxisValues: []any{"OR", 1997}, Measure: star.Integer(42)},
	}

	withData, err := AddData(context.Background(), seg, rows, 0.5)
	require.NoError(t, err)
	require.Equal(t, 2, withData.Dataset.Len())

	v, ok := withData.GetObject(CellKey{0, 0})
	require.True(t, ok)
	require.Equal(t, float64(100), v.Float())

	_, ok = withData.GetObject(CellKey{1, 1})
	require.False(t, ok)
}

func TestBuildDatasetPicksDenseAboveThreshold(t *testing.T) {
	seg, _, _ := testSegment()
	rows := []Row{
		{AxisValues: []any{"CA", 1997}, Measure: star.Integer(1)},
		{AxisValues: []any{"OR", 1997}, Measure: star.Integer(2)},
	}
	withData, err := AddData(context.Background(), seg, rows, 0.5)
	require.NoError(t, err)

	_, isDense := withData.Dataset.(*denseDataset)
	require.True(t, isDense, "density 1.0 should pick dense storage")
}

func TestBuildDatasetPicksSparseBelowThreshold(t *testing.T) {
	seg, _, _ := testSegment()
	rows := []Row{
		{AxisValues: []any{"CA", 1997}, Measure: star.Integer(1)},
	}
	withData, err := AddData(context.Background(), seg, rows, 0.9)
	require.NoError(t, err)

	_, isSparse := withData.Dataset.(*sparseDataset)
	require.True(t, isSparse, "density 0.5 below 0.9 threshold should pick sparse storage")
}

func TestCreateSubSegmentTightensAxisAndExcludes(t *testing.T) {
	seg, stateCol, _ := testSegment()
	keep := []map[int]bool{
		{0: true, 1: false}, // drop OR on the state axis
		{0: true},
	}
	tighterState := star.NewValueList(stateCol, "CA")
	excl := star.NewCompound().With(stateCol, star.NewValueList(stateCol, "OR"))

	sub := CreateSubSegment(seg, keep, 0, tighterState, []*star.Compound{excl})

	require.Equal(t, []any{"CA"}, sub.Axes[0].Keys)
	require.Len(t, sub.ExcludedRegions, 1)
	require.True(t, sub.Excluded(map[uint32]any{1: "OR"}))
	require.False(t, sub.Excluded(map[uint32]any{1: "CA"}))

	// original segment must be untouched
	require.Len(t, seg.Axes[0].Keys, 2)
	require.Empty(t, seg.ExcludedRegions)
}

func TestHeaderFingerprintStableAndOrderIndependent(t *testing.T) {
	stateCol := &star.Column{Name: "state_province", BitPos: 1}
	yearCol := &star.Column{Name: "year", BitPos: 2}

	h1 := Header{
		StarIdentity: "id", Measure: "m", FactAlias: "f",
		BitKey: star.BitKeyOf(1, 2),
		ColumnPredicates: map[uint32]star.ColumnPredicate{
			1: star.NewValueList(stateCol, "CA", "OR"),
			2: star.NewValueList(yearCol, 1997),
		},
	}
	h2 := Header{
		StarIdentity: "id", Measure: "m", FactAlias: "f",
		BitKey: star.BitKeyOf(2, 1),
		ColumnPredicates: map[uint32]star.ColumnPredicate{
			2: star.NewValueList(yearCol, 1997),
			1: star.NewValueList(stateCol, "OR", "CA"),
		},
	}
	require.True(t, h1.Equals(h2))
}
