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

package cacheworker

import (
	"context"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
)

// Pool is the uniform front C4 talks to: one in-memory worker (unless
// disabled) plus zero or more external SegmentCache plug-ins, tried in
// priority order (in-memory first).
//
// External workers never mutate the Segment Index directly (spec §4.3
// and the "cyclic reference" design note): instead, Pool subscribes an
// internal listener to every external worker that forwards CREATED/
// DELETED events onto a channel the Cache Manager drains on its own
// goroutine.
type Pool struct {
	memory   *MemoryWorker
	external []SegmentCache
	events   chan Event
}

func NewPool(memoryCapacity int, disableMemory bool) *Pool {
	p := &Pool{events: make(chan Event, 1024)}
	if !disableMemory {
		p.memory = NewMemoryWorker(memoryCapacity)
	}
	return p
}

// AddExternal registers an external cache plug-in and wires its
// listener to the pool's event channel.
func (p *Pool) AddExternal(cache SegmentCache) {
	p.external = append(p.external, cache)
	cache.AddListener(func(e Event) {
		e.IsLocal = false
		select {
		case p.events <- e:
		default:
			// Channel full: the manager is backed up. Dropping here
			// is safe because the external cache remains authoritative
			// for its own contents; the index will simply miss until
			// the next successful notification or a direct Get.
		}
	})
}

// Events returns the channel the Cache Manager should range over to
// fold external announcements into the Segment Index.
func (p *Pool) Events() <-chan Event {
	return p.events
}

// workers returns the tiers in priority order.
func (p *Pool) workers() []SegmentCache {
	out := make([]SegmentCache, 0, len(p.external)+1)
	if p.memory != nil {
		out = append(out, p.memory)
	}
	out = append(out, p.external...)
	return out
}

func (p *Pool) Get(ctx context.Context, header segment.Header) ([]byte, bool, error) {
	for _, w := range p.workers() {
		body, ok, err := w.Get(ctx, header)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return body, true, nil
		}
	}
	return nil, false, nil
}

// Put replicates header+body to every worker tier. The serialisation
// round-trip check (spec §4.3) runs once, before replication: failure
// is fatal for this put and nothing is written to any tier.
func (p *Pool) Put(ctx context.Context, header segment.Header, headerBytes, body []byte) error {
	if err := RoundTripCheck(ctx, header, headerBytes, body); err != nil {
		return err
	}
	for _, w := range p.workers() {
		if _, err := w.Put(ctx, header, body); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) Remove(ctx context.Context, header segment.Header) error {
	for _, w := range p.workers() {
		if _, err := w.Remove(ctx, header); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) Shutdown(ctx context.Context) {
	for _, w := range p.workers() {
		w.Shutdown(ctx)
	}
	close(p.events)
}

// MemoryLen exposes the in-memory worker's resident count, or 0 if
// disabled, for tests asserting the eviction cap (spec P7).
func (p *Pool) MemoryLen() int {
	if p.memory == nil {
		return 0
	}
	return p.memory.Len()
}
