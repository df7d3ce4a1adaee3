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

package cachemgr

import (
	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// ColumnLookup resolves the full column catalog of a star — the named
// external collaborator that would otherwise be the MDX/schema layer
// (spec §1 Non-goals). CellRequests carry only bit positions; the
// manager needs the *star.Column objects themselves to build batches
// the rollup and loader stages can work with.
type ColumnLookup func(st star.Star) []*star.Column

func buildBatches(requests []*batch.CellRequest, columns ColumnLookup) []*batch.Batch {
	byKey := make(map[string]*batch.Batch, len(requests))
	order := make([]string, 0, len(requests))

	for _, r := range requests {
		key := batch.KeyFor(r)
		k := key.Fingerprint()
		b, ok := byKey[k]
		if !ok {
			b = batch.NewBatch(key, columnsFor(columns(r.Star), r.ConstrainedColumns))
			byKey[k] = b
			order = append(order, k)
		}
		b.Add(r)
	}

	out := make([]*batch.Batch, len(order))
	for i, k := range order {
		out[i] = byKey[k]
	}
	return out
}

func columnsFor(all []*star.Column, bitKey star.BitKey) []*star.Column {
	var out []*star.Column
	for _, c := range all {
		if bitKey.Get(c.BitPos) {
			out = append(out, c)
		}
	}
	return out
}
