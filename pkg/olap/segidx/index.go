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

// Package segidx is the in-process Segment Index (C2): it maps every
// known segment to its header and locates headers that can serve a
// cell request.
package segidx

import (
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

type entry struct {
	header segment.Header
	// domain is the product of axis key counts, used to prefer the
	// smallest slice first when several headers can serve a request.
	domain int64
}

func (e *entry) Less(other btree.Item) bool {
	o := other.(*entry)
	return e.header.Fingerprint() < o.header.Fingerprint()
}

func bucketKey(starIdentity, factAlias string, bitKeyStr string) string {
	return starIdentity + "\x00" + factAlias + "\x00" + bitKeyStr
}

// Index is the process-local Segment Index. All mutation is expected
// to happen from the Cache Manager's single executor goroutine (spec
// §4.4); Index itself still guards with a mutex so reads from
// concurrent evaluator threads never race with it.
type Index struct {
	mu      sync.RWMutex
	buckets map[string][]*entry
	// ordered gives a deterministic full-enumeration fallback for
	// SegmentCache implementations that don't support a rich index
	// (spec §6, SupportsRichIndex()==false).
	ordered *btree.BTree
}

func New() *Index {
	return &Index{
		buckets: make(map[string][]*entry),
		ordered: btree.New(32),
	}
}

// Register adds a header to the index: an O(1) amortised bucket
// append plus an O(log n) insert into the ordered btree.
func (idx *Index) Register(h segment.Header) {
	domain := int64(1)
	// domain isn't recoverable from the header alone (axes live on the
	// Segment, not the Header); callers that care about ordering pass
	// it via RegisterWithDomain. Plain Register assumes domain 1 so it
	// still sorts deterministically by fingerprint.
	idx.registerEntry(&entry{header: h, domain: domain})
}

// RegisterWithDomain is Register plus the segment's cell-count domain,
// used to implement "smallest slice first" ordering in Locate.
func (idx *Index) RegisterWithDomain(h segment.Header, domain int64) {
	idx.registerEntry(&entry{header: h, domain: domain})
}

func (idx *Index) registerEntry(e *entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := bucketKey(e.header.StarIdentity, e.header.FactAlias, e.header.BitKey.String())
	idx.buckets[key] = append(idx.buckets[key], e)
	idx.ordered.ReplaceOrInsert(e)
}

// Unregister removes a header from the index.
func (idx *Index) Unregister(h segment.Header) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := bucketKey(h.StarIdentity, h.FactAlias, h.BitKey.String())
	bucket := idx.buckets[key]
	for i, e := range bucket {
		if e.header.Equals(h) {
			idx.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			idx.ordered.Delete(e)
			break
		}
	}
	if len(idx.buckets[key]) == 0 {
		delete(idx.buckets, key)
	}
}

// Locate returns every header whose (star identity, factAlias,
// bitKey) match exactly and whose axis predicates accept the given
// mappedValues on every constrained column, whose excluded regions do
// not shadow those values, and whose compound predicates are
// equivalent to or implied by the request's (spec §4.2). Results are
// ordered smallest-domain first.
func (idx *Index) Locate(starIdentity, factAlias string, bitKey star.BitKey, mappedValues map[uint32]any, compoundPredicates star.CompoundList) []segment.Header {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	key := bucketKey(starIdentity, factAlias, bitKey.String())
	bucket := idx.buckets[key]
	if len(bucket) == 0 {
		return nil
	}

	candidates := make([]*entry, 0, len(bucket))
	for _, e := range bucket {
		if !e.header.BitKey.Equals(bitKey) {
			continue
		}
		if !accepts(e.header, mappedValues) {
			continue
		}
		if shadowed(e.header, mappedValues) {
			continue
		}
		if !e.header.CompoundPredicates.EquivalentOrImplies(compoundPredicates) {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].domain != candidates[j].domain {
			return candidates[i].domain < candidates[j].domain
		}
		return candidates[i].header.Fingerprint() < candidates[j].header.Fingerprint()
	})

	out := make([]segment.Header, len(candidates))
	for i, e := range candidates {
		out[i] = e.header
	}
	return out
}

// All returns every registered header in deterministic fingerprint
// order, for the full-enumeration fallback path.
func (idx *Index) All() []segment.Header {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]segment.Header, 0, idx.ordered.Len())
	idx.ordered.Ascend(func(i btree.Item) bool {
		out = append(out, i.(*entry).header)
		return true
	})
	return out
}

func accepts(h segment.Header, mappedValues map[uint32]any) bool {
	for pos, v := range mappedValues {
		pred, ok := h.PerColumnPredicate(pos)
		if !ok {
			continue
		}
		if !pred.Evaluate(v) {
			return false
		}
	}
	return true
}

func shadowed(h segment.Header, mappedValues map[uint32]any) bool {
	for _, region := range h.ExcludedRegions {
		if region.Evaluate(mappedValues) {
			return true
		}
	}
	return false
}
