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
	"fmt"
	"sort"
)

// ColumnPredicate is a decidable constraint over one column's values.
type ColumnPredicate interface {
	Column() *Column
	Evaluate(value any) bool
	MightIntersect(other ColumnPredicate) bool
	Minus(other ColumnPredicate) ColumnPredicate
	EqualConstraint(other ColumnPredicate) bool
	Or(other ColumnPredicate) ColumnPredicate
	And(other ColumnPredicate) ColumnPredicate
	// Values returns the explicit value set this predicate names, or
	// nil if it is not expressible as a finite enumeration (e.g. TRUE).
	Values() []any
}

// LiteralTrue accepts every value.
type LiteralTrue struct{ col *Column }

func NewTrue(col *Column) LiteralTrue { return LiteralTrue{col: col} }

func (p LiteralTrue) Column() *Column                       { return p.col }
func (p LiteralTrue) Evaluate(any) bool                      { return true }
func (p LiteralTrue) MightIntersect(ColumnPredicate) bool    { return true }
func (p LiteralTrue) EqualConstraint(o ColumnPredicate) bool { _, ok := o.(LiteralTrue); return ok }
func (p LiteralTrue) Or(ColumnPredicate) ColumnPredicate     { return p }
func (p LiteralTrue) And(o ColumnPredicate) ColumnPredicate  { return o }
func (p LiteralTrue) Values() []any                          { return nil }
func (p LiteralTrue) Minus(o ColumnPredicate) ColumnPredicate {
	if _, ok := o.(LiteralTrue); ok {
		return NewFalse(p.col)
	}
	// TRUE minus a finite set isn't representable as a finite set;
	// conservatively keep TRUE (errs toward over-inclusion, never
	// silently drops a cell that should still be cached).
	return p
}

// LiteralFalse rejects every value.
type LiteralFalse struct{ col *Column }

func NewFalse(col *Column) LiteralFalse { return LiteralFalse{col: col} }

func (p LiteralFalse) Column() *Column                        { return p.col }
func (p LiteralFalse) Evaluate(any) bool                       { return false }
func (p LiteralFalse) MightIntersect(ColumnPredicate) bool     { return false }
func (p LiteralFalse) EqualConstraint(o ColumnPredicate) bool  { _, ok := o.(LiteralFalse); return ok }
func (p LiteralFalse) Or(o ColumnPredicate) ColumnPredicate    { return o }
func (p LiteralFalse) And(ColumnPredicate) ColumnPredicate     { return p }
func (p LiteralFalse) Values() []any                           { return []any{} }
func (p LiteralFalse) Minus(ColumnPredicate) ColumnPredicate   { return p }

// ValueList is an enumeration of literal values (an OR of equalities).
type ValueList struct {
	col    *Column
	values map[any]struct{}
}

func NewValueList(col *Column, values ...any) *ValueList {
	set := make(map[any]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return &ValueList{col: col, values: set}
}

func (p *ValueList) Column() *Column { return p.col }

func (p *ValueList) Evaluate(value any) bool {
	_, ok := p.values[value]
	return ok
}

func (p *ValueList) MightIntersect(other ColumnPredicate) bool {
	switch o := other.(type) {
	case LiteralTrue:
		return true
	case LiteralFalse:
		return false
	case *ValueList:
		for v := range p.values {
			if _, ok := o.values[v]; ok {
				return true
			}
		}
		return false
	case *Member:
		return p.Evaluate(o.Value)
	default:
		return true
	}
}

func (p *ValueList) Minus(other ColumnPredicate) ColumnPredicate {
	switch o := other.(type) {
	case LiteralTrue:
		return NewFalse(p.col)
	case LiteralFalse:
		return p
	case *ValueList:
		remaining := make([]any, 0, len(p.values))
		for v := range p.values {
			if _, ok := o.values[v]; !ok {
				remaining = append(remaining, v)
			}
		}
		return NewValueList(p.col, remaining...)
	case *Member:
		return p.Minus(NewValueList(p.col, o.Value))
	default:
		return p
	}
}

func (p *ValueList) EqualConstraint(other ColumnPredicate) bool {
	o, ok := other.(*ValueList)
	if !ok || len(o.values) != len(p.values) {
		return false
	}
	for v := range p.values {
		if _, ok := o.values[v]; !ok {
			return false
		}
	}
	return true
}

func (p *ValueList) Or(other ColumnPredicate) ColumnPredicate {
	switch o := other.(type) {
	case LiteralTrue:
		return o
	case LiteralFalse:
		return p
	case *ValueList:
		merged := p.Values()
		merged = append(merged, o.Values()...)
		return NewValueList(p.col, merged...)
	case *Member:
		return p.Or(NewValueList(p.col, o.Value))
	default:
		return NewTrue(p.col)
	}
}

func (p *ValueList) And(other ColumnPredicate) ColumnPredicate {
	switch o := other.(type) {
	case LiteralTrue:
		return p
	case LiteralFalse:
		return o
	case *ValueList:
		out := make([]any, 0, len(p.values))
		for v := range p.values {
			if _, ok := o.values[v]; ok {
				out = append(out, v)
			}
		}
		return NewValueList(p.col, out...)
	case *Member:
		if p.Evaluate(o.Value) {
			return o
		}
		return NewFalse(p.col)
	default:
		return p
	}
}

func (p *ValueList) Values() []any {
	out := make([]any, 0, len(p.values))
	for v := range p.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return lessAny(out[i], out[j]) })
	return out
}

// Member is a value plus a hierarchical identifier: the member's
// parent, the level it belongs to, and whether it is the hierarchy's
// ALL member (matching every value of the column).
type Member struct {
	col    *Column
	Value  any
	Parent any
	Level  string
	IsAll  bool
}

func NewMember(col *Column, value, parent any, level string, isAll bool) *Member {
	return &Member{col: col, Value: value, Parent: parent, Level: level, IsAll: isAll}
}

func (p *Member) Column() *Column { return p.col }

func (p *Member) Evaluate(value any) bool {
	if p.IsAll {
		return true
	}
	return value == p.Value
}

func (p *Member) MightIntersect(other ColumnPredicate) bool {
	if p.IsAll {
		return true
	}
	return NewValueList(p.col, p.Value).MightIntersect(other)
}

func (p *Member) Minus(other ColumnPredicate) ColumnPredicate {
	return NewValueList(p.col, p.Value).Minus(other)
}

func (p *Member) EqualConstraint(other ColumnPredicate) bool {
	o, ok := other.(*Member)
	if !ok {
		return false
	}
	return p.IsAll == o.IsAll && p.Value == o.Value && p.Level == o.Level
}

func (p *Member) Or(other ColumnPredicate) ColumnPredicate {
	return NewValueList(p.col, p.Value).Or(other)
}

func (p *Member) And(other ColumnPredicate) ColumnPredicate {
	return NewValueList(p.col, p.Value).And(other)
}

func (p *Member) Values() []any {
	if p.IsAll {
		return nil
	}
	return []any{p.Value}
}

func lessAny(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return fmtStr(a) < fmtStr(b)
}

func fmtStr(v any) string {
	return fmt.Sprint(v)
}
