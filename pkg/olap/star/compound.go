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

// Compound is a conjunction of column predicates, lifted over tuples.
// A CompoundList is the disjunction ("(year=1997 AND quarter=Q2) OR
// (year=1998 AND quarter=Q1)") used throughout the spec as
// "compoundPredicates".
type Compound struct {
	Clauses map[uint32]ColumnPredicate // bit position -> predicate
}

func NewCompound() *Compound {
	return &Compound{Clauses: map[uint32]ColumnPredicate{}}
}

func (c *Compound) With(col *Column, p ColumnPredicate) *Compound {
	out := &Compound{Clauses: make(map[uint32]ColumnPredicate, len(c.Clauses)+1)}
	for k, v := range c.Clauses {
		out.Clauses[k] = v
	}
	out.Clauses[col.BitPos] = p
	return out
}

// Evaluate reports whether the given per-column values satisfy every
// clause of the conjunction.
func (c *Compound) Evaluate(values map[uint32]any) bool {
	for pos, pred := range c.Clauses {
		if !pred.Evaluate(values[pos]) {
			return false
		}
	}
	return true
}

// Equivalent reports whether c and o constrain exactly the same
// columns with equal constraints.
func (c *Compound) Equivalent(o *Compound) bool {
	if len(c.Clauses) != len(o.Clauses) {
		return false
	}
	for pos, pred := range c.Clauses {
		op, ok := o.Clauses[pos]
		if !ok || !pred.EqualConstraint(op) {
			return false
		}
	}
	return true
}

// CompoundList is an OR of Compound conjunctions.
type CompoundList []*Compound

func (l CompoundList) Evaluate(values map[uint32]any) bool {
	if len(l) == 0 {
		return true
	}
	for _, c := range l {
		if c.Evaluate(values) {
			return true
		}
	}
	return false
}

// EquivalentOrImplies reports whether every disjunct of req is implied
// by some disjunct of l — i.e. l is at least as permissive as req,
// which is the condition the segment index needs to serve req from a
// segment built under l (spec §4.2).
func (l CompoundList) EquivalentOrImplies(req CompoundList) bool {
	if len(l) == 0 {
		return true
	}
	if len(req) == 0 {
		return len(l) == 0
	}
	for _, r := range req {
		matched := false
		for _, c := range l {
			if c.Equivalent(r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
