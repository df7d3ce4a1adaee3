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
	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
)

// Composite is a fused set of batches answerable by one grouping-sets
// query: one detailed batch (the superset) plus zero or more summary
// batches that can be rolled up from it.
type Composite struct {
	Detailed *batch.Batch
	Summary  []*batch.Batch
}

func newComposite(detailed *batch.Batch) *Composite {
	return &Composite{Detailed: detailed}
}

func (c *Composite) add(summary *batch.Batch) {
	c.Summary = append(c.Summary, summary)
}

// absorb merges another composite's detailed+summary batches into
// this one as additional summaries — the transitivity the original
// implementation's CompositeBatch.merge provides (SPEC_FULL supplement
// #2): if X was already grouped under some other detailed batch and
// that detailed batch turns out to also roll up under c, everything
// X was grouped with comes along.
func (c *Composite) absorb(other *Composite) {
	c.Summary = append(c.Summary, other.Detailed)
	c.Summary = append(c.Summary, other.Summary...)
}

// GroupingSets returns every batch whose bit key must appear as one
// GROUP BY grouping set in the fused SQL statement: the detailed
// batch, then each summary.
func (c *Composite) GroupingSets() []*batch.Batch {
	out := make([]*batch.Batch, 0, len(c.Summary)+1)
	out = append(out, c.Detailed)
	out = append(out, c.Summary...)
	return out
}

// Group fuses compatible batches into composites (spec §4.6). The
// merge loop mirrors the two invariants the design notes call out
// instead of the original's in-place index arithmetic: every batch
// ends up in exactly one composite, and the composite list is sorted
// deterministically for reproducible SQL (spec P4).
func Group(batches []*batch.Batch) []*Composite {
	sorted := append([]*batch.Batch{}, batches...)
	batch.SortBatches(sorted)

	byKey := make(map[string]*Composite, len(sorted))
	order := make([]string, 0, len(sorted))

	keyOf := func(b *batch.Batch) string { return b.Key.Fingerprint() }

	// absorbed tracks which batches (by aggregation-key fingerprint) have been folded into
	// another composite as a summary and so must not start one of
	// their own.
	absorbed := make(map[string]bool, len(sorted))

	for i := 0; i < len(sorted); i++ {
		a := sorted[i]
		aKey := keyOf(a)
		if absorbed[aKey] {
			continue
		}
		if _, exists := byKey[aKey]; !exists {
			byKey[aKey] = newComposite(a)
			order = append(order, aKey)
		}

		for j := i + 1; j < len(sorted); j++ {
			b := sorted[j]
			bKey := keyOf(b)
			if bKey == aKey || absorbed[bKey] {
				continue
			}

			switch {
			case CanBatch(a, b):
				detailed := byKey[aKey]
				if existing, ok := byKey[bKey]; ok {
					detailed.absorb(existing)
					delete(byKey, bKey)
				} else {
					detailed.add(b)
				}
				absorbed[bKey] = true
			case CanBatch(b, a):
				if _, exists := byKey[bKey]; !exists {
					byKey[bKey] = newComposite(b)
					order = append(order, bKey)
				}
				detailed := byKey[bKey]
				if existing, ok := byKey[aKey]; ok {
					detailed.absorb(existing)
					delete(byKey, aKey)
				} else {
					detailed.add(a)
				}
				absorbed[aKey] = true
				aKey = bKey
				a = b
			}
		}
	}

	out := make([]*Composite, 0, len(order))
	seen := make(map[*Composite]bool, len(order))
	for _, k := range order {
		c, ok := byKey[k]
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	sortComposites(out)
	return out
}

func sortComposites(cs []*Composite) {
	detaileds := make([]*batch.Batch, len(cs))
	for i, c := range cs {
		detaileds[i] = c.Detailed
	}
	batch.SortBatches(detaileds)
	order := make(map[*batch.Batch]int, len(detaileds))
	for i, b := range detaileds {
		order[b] = i
	}
	// stable reorder of cs to match sorted detaileds
	sortedCs := make([]*Composite, len(cs))
	used := make([]bool, len(cs))
	for i, d := range detaileds {
		for j, c := range cs {
			if !used[j] && c.Detailed == d {
				sortedCs[i] = c
				used[j] = true
				break
			}
		}
	}
	copy(cs, sortedCs)
}
