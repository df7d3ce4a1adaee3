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

// Package segment implements the immutable multi-axis cell array (C1):
// Segment and SegmentWithData, their headers, axes and datasets.
package segment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// Header is the compact, hash-comparable fingerprint of a cached
// segment. It never carries data; it is what the Segment Index (C2)
// and the cache worker pool (C3) key on.
type Header struct {
	StarIdentity       string
	Measure            string
	FactAlias          string
	BitKey             star.BitKey
	ColumnPredicates   map[uint32]star.ColumnPredicate // bit position -> predicate at load time
	CompoundPredicates star.CompoundList
	ExcludedRegions    []*star.Compound
}

// PerColumnPredicate returns the predicate that was in effect for the
// given bit position when this segment was loaded.
func (h Header) PerColumnPredicate(pos uint32) (star.ColumnPredicate, bool) {
	p, ok := h.ColumnPredicates[pos]
	return p, ok
}

// Fingerprint is a stable, order-independent string identity for the
// header, suitable for hashing or as a cache key prefix.
func (h Header) Fingerprint() string {
	var b strings.Builder
	b.WriteString(h.StarIdentity)
	b.WriteByte('|')
	b.WriteString(h.Measure)
	b.WriteByte('|')
	b.WriteString(h.FactAlias)
	b.WriteByte('|')
	b.WriteString(h.BitKey.String())
	b.WriteByte('|')

	positions := h.BitKey.ToArray()
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for _, pos := range positions {
		pred := h.ColumnPredicates[pos]
		fmt.Fprintf(&b, "%d=%v;", pos, predicateSummary(pred))
	}
	b.WriteByte('|')
	compound := func(c *star.Compound) string {
		parts := make([]string, 0, len(c.Clauses))
		for pos, pred := range c.Clauses {
			parts = append(parts, fmt.Sprintf("%d=%v", pos, predicateSummary(pred)))
		}
		sort.Strings(parts)
		return strings.Join(parts, ";")
	}
	for _, cp := range h.CompoundPredicates {
		fmt.Fprintf(&b, "cp(%s);", compound(cp))
	}
	for _, er := range h.ExcludedRegions {
		fmt.Fprintf(&b, "excl(%s);", compound(er))
	}
	return b.String()
}

// Equals is structural equality over every field that identifies a
// cached segment's shape, per spec §3.
func (h Header) Equals(o Header) bool {
	return h.Fingerprint() == o.Fingerprint()
}

func predicateSummary(p star.ColumnPredicate) string {
	if p == nil {
		return "true"
	}
	values := p.Values()
	if values == nil {
		return "true"
	}
	sort.Slice(values, func(i, j int) bool { return fmt.Sprint(values[i]) < fmt.Sprint(values[j]) })
	return fmt.Sprint(values)
}
