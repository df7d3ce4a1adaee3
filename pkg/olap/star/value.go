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

// Kind distinguishes the numeric representations a measure value can
// carry. Widening follows Kind order: Integer < Decimal < Double.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindDecimal
	KindDouble
)

// Value is a null-aware numeric measure value. The zero Value is null,
// matching the segment dataset's "absent" sentinel.
type Value struct {
	kind Kind
	i    int64
	d    float64 // used for both Decimal and Double; Kind disambiguates formatting
}

func Null() Value                   { return Value{kind: KindNull} }
func Integer(v int64) Value         { return Value{kind: KindInteger, i: v} }
func Decimal(v float64) Value       { return Value{kind: KindDecimal, d: v} }
func Double(v float64) Value        { return Value{kind: KindDouble, d: v} }
func (v Value) IsNull() bool        { return v.kind == KindNull }
func (v Value) Kind() Kind          { return v.kind }

func (v Value) Float() float64 {
	switch v.kind {
	case KindInteger:
		return float64(v.i)
	case KindDecimal, KindDouble:
		return v.d
	default:
		return 0
	}
}

// Add sums two measure values. Null never contaminates a sum: adding
// null to a value returns the value unchanged, and null+null is null.
// The result takes the widest of the two input kinds.
func Add(a, b Value) Value {
	if a.IsNull() {
		return b
	}
	if b.IsNull() {
		return a
	}
	kind := a.kind
	if b.kind > kind {
		kind = b.kind
	}
	if kind == KindInteger {
		return Integer(a.i + b.i)
	}
	return Value{kind: kind, d: a.Float() + b.Float()}
}
