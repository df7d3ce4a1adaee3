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

// Package star holds the fact-source identity (Star), the fixed-width
// column bit sets (BitKey) addressed by stable bit position, and the
// predicate algebra evaluated over a Star's columns.
package star

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Star identifies a fact source: schema name, schema checksum, cube
// name and fact-table alias. Two Stars are the same identity iff every
// field matches.
type Star struct {
	SchemaName     string
	SchemaChecksum uint64
	CubeName       string
	FactAlias      string
}

func (s Star) Identity() string {
	return fmt.Sprintf("%s#%x/%s/%s", s.SchemaName, s.SchemaChecksum, s.CubeName, s.FactAlias)
}

func (s Star) Equals(o Star) bool {
	return s.SchemaName == o.SchemaName &&
		s.SchemaChecksum == o.SchemaChecksum &&
		s.CubeName == o.CubeName &&
		s.FactAlias == o.FactAlias
}

// Column addresses one column of a Star by a stable bit position.
// Cardinality is the raw domain size of the column, used by the
// predicate bloat optimizer (spec C6).
type Column struct {
	Star        Star
	Name        string
	BitPos      uint32
	Cardinality int
}

// BitKey is a fixed-width set of column bit positions. It wraps a
// roaring.Bitmap, which gives And/Or/Intersects/IsEmpty for free and
// keeps the set compact even for wide stars.
type BitKey struct {
	bits *roaring.Bitmap
}

func NewBitKey() BitKey {
	return BitKey{bits: roaring.New()}
}

func BitKeyOf(positions ...uint32) BitKey {
	k := NewBitKey()
	for _, p := range positions {
		k.bits.Add(p)
	}
	return k
}

func (k BitKey) ensure() *roaring.Bitmap {
	if k.bits == nil {
		return roaring.New()
	}
	return k.bits
}

func (k BitKey) Set(pos uint32) BitKey {
	b := k.ensure().Clone()
	b.Add(pos)
	return BitKey{bits: b}
}

func (k BitKey) Clear(pos uint32) BitKey {
	b := k.ensure().Clone()
	b.Remove(pos)
	return BitKey{bits: b}
}

func (k BitKey) Get(pos uint32) bool {
	return k.ensure().Contains(pos)
}

func (k BitKey) And(o BitKey) BitKey {
	return BitKey{bits: roaring.And(k.ensure(), o.ensure())}
}

func (k BitKey) Or(o BitKey) BitKey {
	return BitKey{bits: roaring.Or(k.ensure(), o.ensure())}
}

func (k BitKey) Intersects(o BitKey) bool {
	return k.ensure().Intersects(o.ensure())
}

// IsSuperSetOf reports whether every bit set in o is also set in k.
func (k BitKey) IsSuperSetOf(o BitKey) bool {
	inter := roaring.And(k.ensure(), o.ensure())
	return inter.GetCardinality() == o.ensure().GetCardinality()
}

func (k BitKey) IsEmpty() bool {
	return k.ensure().IsEmpty()
}

func (k BitKey) Equals(o BitKey) bool {
	return k.ensure().Equals(o.ensure())
}

func (k BitKey) Copy() BitKey {
	return BitKey{bits: k.ensure().Clone()}
}

func (k BitKey) Cardinality() int {
	return int(k.ensure().GetCardinality())
}

func (k BitKey) ToArray() []uint32 {
	return k.ensure().ToArray()
}

func (k BitKey) String() string {
	return k.ensure().String()
}
