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

package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/future"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segidx"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// Submitter is the Cache Manager's face to the Batch Reader: it takes
// the accumulated cell requests for one loadAggregations call and
// returns a future per resulting segment group (spec §4.4/§4.5).
type Submitter interface {
	Submit(ctx context.Context, requests []*CellRequest) ([]*future.Future[[]*segment.WithData], error)
}

// NotReady is the value Get returns while a request is
// outstanding or pending; it is never a valid measure value.
var NotReady = star.Null()

// Reader is a statement's Batch Reader: it is invoked once per cell by
// the evaluator and owns a purely local dataset cache plus the
// deduplicated set of outstanding requests.
type Reader struct {
	mu sync.Mutex

	submitter Submitter
	quantum   int

	local        *segidx.Index
	loadedData   map[string]*segment.WithData // header fingerprint -> data
	inFlightKeys map[string]bool              // AggregationKey fingerprint -> submitted, awaiting futures
	cellRequests map[string]*CellRequest      // cell signature -> request, deduplicated

	dirty bool

	hitCount     int
	missCount    int
	pendingCount int
}

func NewReader(submitter Submitter, quantum int) *Reader {
	if quantum <= 0 {
		quantum = 5000
	}
	return &Reader{
		submitter:    submitter,
		quantum:      quantum,
		local:        segidx.New(),
		loadedData:   make(map[string]*segment.WithData),
		inFlightKeys: make(map[string]bool),
		cellRequests: make(map[string]*CellRequest),
	}
}

type Stats struct {
	Hits, Misses, Pending int
}

func (r *Reader) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Hits: r.hitCount, Misses: r.missCount, Pending: r.pendingCount}
}

func (r *Reader) cellSignature(req *CellRequest) string {
	key := KeyFor(req)
	sig := key.Fingerprint()
	for pos, v := range req.ValuePerColumn {
		sig += fmt.Sprintf("#%d=%v", pos, v)
	}
	return sig
}

// Get resolves one cell request. It returns the null value with an
// Unsatisfiable error for contradictory requests, the measure
// value on a cache hit, or (NotReady, nil) when the evaluator must
// re-run after the next loadAggregations.
func (r *Reader) Get(ctx context.Context, req *CellRequest) (star.Value, error) {
	if req == nil {
		return NotReady, nil
	}
	if req.Unsatisfiable {
		return star.Null(), moerr.NewUnsatisfiable(ctx, "contradictory slicer")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := KeyFor(req)
	headers := r.local.Locate(req.Star.Identity(), req.Star.FactAlias, req.ConstrainedColumns, req.ValuePerColumn, req.CompoundPredicates)
	for _, h := range headers {
		if data, ok := r.loadedData[h.Fingerprint()]; ok {
			cellKey, ok := cellKeyFor(data, req)
			if ok {
				if v, ok := data.GetObject(cellKey); ok {
					r.hitCount++
					return v, nil
				}
			}
		}
	}

	if r.inFlightKeys[key.Fingerprint()] {
		r.pendingCount++
		return NotReady, nil
	}

	sig := r.cellSignature(req)
	if _, exists := r.cellRequests[sig]; !exists {
		r.cellRequests[sig] = req
		r.dirty = true
		r.missCount++
		if len(r.cellRequests) > 0 && len(r.cellRequests)%r.quantum == 0 {
			return NotReady, moerr.NewCellRequestQuantumExceeded(ctx, len(r.cellRequests))
		}
	} else {
		r.missCount++
	}
	return NotReady, nil
}

func cellKeyFor(data *segment.WithData, req *CellRequest) (segment.CellKey, bool) {
	key := make(segment.CellKey, len(data.Axes))
	for i, axis := range data.Axes {
		v, ok := req.ValuePerColumn[axis.Column.BitPos]
		if !ok {
			return nil, false
		}
		idx := -1
		for j, k := range axis.Keys {
			if k == v {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		key[i] = idx
	}
	return key, true
}

// LoadAggregations submits every outstanding request to the Cache
// Manager, blocks on the resulting futures, and registers what comes
// back into the statement-local cache (spec §4.5). It returns false
// if there was nothing to do.
func (r *Reader) LoadAggregations(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if !r.dirty && len(r.cellRequests) == 0 {
		r.mu.Unlock()
		return false, nil
	}
	requests := make([]*CellRequest, 0, len(r.cellRequests))
	for _, req := range r.cellRequests {
		requests = append(requests, req)
		r.inFlightKeys[KeyFor(req).Fingerprint()] = true
	}
	r.mu.Unlock()

	clearInFlight := func() {
		r.mu.Lock()
		for _, req := range requests {
			delete(r.inFlightKeys, KeyFor(req).Fingerprint())
		}
		r.mu.Unlock()
	}

	futures, err := r.submitter.Submit(ctx, requests)
	if err != nil {
		clearInFlight()
		return false, err
	}

	for _, f := range futures {
		segs, err := f.Get(ctx)
		if err != nil {
			clearInFlight()
			return false, err
		}
		r.mu.Lock()
		for _, s := range segs {
			r.loadedData[s.Header.Fingerprint()] = s
			r.local.Register(s.Header)
		}
		r.mu.Unlock()
	}
	clearInFlight()

	r.mu.Lock()
	r.cellRequests = make(map[string]*CellRequest)
	r.dirty = false
	r.mu.Unlock()
	return true, nil
}
