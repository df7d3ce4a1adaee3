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

package star

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitKeySetClearGet(t *testing.T) {
	k := NewBitKey()
	require.True(t, k.IsEmpty())

	k = k.Set(3).Set(7)
	require.True(t, k.Get(3))
	require.True(t, k.Get(7))
	require.False(t, k.Get(4))

	k = k.Clear(3)
	require.False(t, k.Get(3))
	require.True(t, k.Get(7))
}

func TestBitKeySuperSetAndIntersects(t *testing.T) {
	wide := BitKeyOf(1, 2, 3)
	narrow := BitKeyOf(1, 2)
	disjoint := BitKeyOf(9)

	require.True(t, wide.IsSuperSetOf(narrow))
	require.False(t, narrow.IsSuperSetOf(wide))
	require.True(t, wide.Intersects(narrow))
	require.False(t, wide.Intersects(disjoint))
}

func TestBitKeyEqualsAndCopyIndependence(t *testing.T) {
	a := BitKeyOf(1, 2)
	b := a.Copy()
	require.True(t, a.Equals(b))

	b = b.Set(5)
	require.False(t, a.Equals(b))
	require.False(t, a.Get(5))
}

func TestStarIdentityAndEquals(t *testing.T) {
	a := Star{SchemaName: "foodmart", SchemaChecksum: 1, CubeName: "Sales", FactAlias: "sales_fact_1997"}
	b := Star{SchemaName: "foodmart", SchemaChecksum: 1, CubeName: "Sales", FactAlias: "sales_fact_1997"}
	c := Star{SchemaName: "foodmart", SchemaChecksum: 2, CubeName: "Sales", FactAlias: "sales_fact_1997"}

	require.True(t, a.Equals(b))
	require.Equal(t, a.Identity(), b.Identity())
	require.False(t, a.Equals(c))
	require.NotEqual(t, a.Identity(), c.Identity())
}

func TestValueListEvaluateAndMightIntersect(t *testing.T) {
	col := &Column{Name: "state_province", BitPos: 1, Cardinality: 50}
	p := NewValueList(col, "CA", "OR", "WA")

	require.True(t, p.Evaluate("CA"))
	require.False(t, p.Evaluate("NY"))

	other := NewValueList(col, "WA", "NV")
	require.True(t, p.MightIntersect(other))

	disjoint := NewValueList(col, "NY", "NJ")
	require.False(t, p.MightIntersect(disjoint))

	require.True(t, p.MightIntersect(NewTrue(col)))
	require.False(t, p.MightIntersect(NewFalse(col)))
}

func TestValueListMinus(t *testing.T) {
	col := &Column{Name: "state_province", BitPos: 1, Cardinality: 50}
	p := NewValueList(col, "CA", "OR", "WA")

	remaining := p.Minus(NewValueList(col, "OR"))
	values := remaining.Values()
	require.ElementsMatch(t, []any{"CA", "WA"}, values)

	require.True(t, p.Minus(NewTrue(col)).EqualConstraint(NewFalse(col)))
	require.True(t, p.Minus(NewFalse(col)).EqualConstraint(p))
}

func TestValueListOrAndAnd(t *testing.T) {
	col := &Column{Name: "state_province", BitPos: 1, Cardinality: 50}
	a := NewValueList(col, "CA", "OR")
	b := NewValueList(col, "OR", "WA")

	require.ElementsMatch(t, []any{"CA", "OR", "WA"}, a.Or(b).Values())
	require.ElementsMatch(t, []any{"OR"}, a.And(b).Values())
}

func TestMemberEvaluateAllMember(t *testing.T) {
	col := &Column{Name: "year", BitPos: 2, Cardinality: 5}
	all := NewMember(col, nil, nil, "(All)", true)
	require.True(t, all.Evaluate(1997))
	require.True(t, all.Evaluate(1998))

	year := NewMember(col, 1997, nil, "Year", false)
	require.True(t, year.Evaluate(1997))
	require.False(t, year.Evaluate(1998))
}

func TestCompoundEvaluate(t *testing.T) {
	yearCol := &Column{Name: "year", BitPos: 0, Cardinality: 5}
	qtrCol := &Column{Name: "quarter", BitPos: 1, Cardinality: 4}

	c := NewCompound().
		With(yearCol, NewValueList(yearCol, 1997)).
		With(qtrCol, NewValueList(qtrCol, "Q2"))

	require.True(t, c.Evaluate(map[uint32]any{0: 1997, 1: "Q2"}))
	require.False(t, c.Evaluate(map[uint32]any{0: 1997, 1: "Q1"}))
}

func TestCompoundListEquivalentOrImplies(t *testing.T) {
	yearCol := &Column{Name: "year", BitPos: 0, Cardinality: 5}

	req := CompoundList{NewCompound().With(yearCol, NewValueList(yearCol, 1997))}
	same := CompoundList{NewCompound().With(yearCol, NewValueList(yearCol, 1997))}
	other := CompoundList{NewCompound().With(yearCol, NewValueList(yearCol, 1998))}

	require.True(t, same.EquivalentOrImplies(req))
	require.False(t, other.EquivalentOrImplies(req))

	var none CompoundList
	require.True(t, none.EquivalentOrImplies(req))
}

func TestValueAddNullHandling(t *testing.T) {
	require.True(t, Add(Null(), Null()).IsNull())
	require.Equal(t, float64(5), Add(Null(), Integer(5)).Float())
	require.Equal(t, float64(5), Add(Integer(5), Null()).Float())
	require.Equal(t, float64(8), Add(Integer(5), Integer(3)).Float())
	require.Equal(t, float64(8.5), Add(Integer(5), Double(3.5)).Float())
}
