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
	"math/rand"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
)

var (
	metricHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "olapcache_memory_worker_hits_total",
		Help: "Segment lookups satisfied by the in-memory cache worker.",
	})
	metricMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "olapcache_memory_worker_misses_total",
		Help: "Segment lookups not satisfied by the in-memory cache worker.",
	})
	metricEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "olapcache_memory_worker_evictions_total",
		Help: "Entries evicted from the in-memory cache worker to respect capacity.",
	})
	metricSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "olapcache_memory_worker_size",
		Help: "Current resident entry count of the in-memory cache worker.",
	})
)

func init() {
	prometheus.MustRegister(metricHits, metricMisses, metricEvictions, metricSize)
}

// MemoryWorker is the in-process tier of the cache worker pool: a
// capacity-bounded resident set. On overflow it evicts one entry
// chosen uniformly at random from an actual map key (spec §9 resolves
// the source's float-index-as-key bug here: eviction always removes a
// real entry).
type MemoryWorker struct {
	mu        sync.Mutex
	capacity  int
	keys      []string
	headers   map[string]segment.Header
	bodies    map[string][]byte
	listeners []Listener
}

func NewMemoryWorker(capacity int) *MemoryWorker {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryWorker{
		capacity: capacity,
		headers:  make(map[string]segment.Header),
		bodies:   make(map[string][]byte),
	}
}

func (w *MemoryWorker) Contains(_ context.Context, header segment.Header) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.headers[header.Fingerprint()]
	return ok, nil
}

func (w *MemoryWorker) Get(_ context.Context, header segment.Header) ([]byte, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := header.Fingerprint()
	body, ok := w.bodies[key]
	if ok {
		metricHits.Inc()
	} else {
		metricMisses.Inc()
	}
	return body, ok, nil
}

func (w *MemoryWorker) Put(ctx context.Context, header segment.Header, body []byte) (bool, error) {
	w.mu.Lock()
	key := header.Fingerprint()
	if _, exists := w.headers[key]; !exists {
		if len(w.keys) >= w.capacity {
			w.evictOneLocked()
		}
		w.keys = append(w.keys, key)
	}
	w.headers[key] = header
	w.bodies[key] = body
	metricSize.Set(float64(len(w.keys)))
	w.mu.Unlock()

	w.fire(Event{IsLocal: true, Source: header, Type: EventCreated})
	return true, nil
}

func (w *MemoryWorker) Remove(_ context.Context, header segment.Header) (bool, error) {
	w.mu.Lock()
	key := header.Fingerprint()
	_, existed := w.headers[key]
	w.removeKeyLocked(key)
	w.mu.Unlock()
	if existed {
		w.fire(Event{IsLocal: true, Source: header, Type: EventDeleted})
	}
	return existed, nil
}

// evictOneLocked drops one resident entry chosen uniformly at random
// among actual keys. Must be called with w.mu held.
func (w *MemoryWorker) evictOneLocked() {
	if len(w.keys) == 0 {
		return
	}
	idx := rand.Intn(len(w.keys))
	key := w.keys[idx]
	header := w.headers[key]
	w.removeKeyLocked(key)
	metricEvictions.Inc()
	// Fire outside the lock to avoid reentrancy into Put/Remove from a
	// listener; copy what we need first.
	go w.fire(Event{IsLocal: true, Source: header, Type: EventDeleted})
}

func (w *MemoryWorker) removeKeyLocked(key string) {
	delete(w.headers, key)
	delete(w.bodies, key)
	for i, k := range w.keys {
		if k == key {
			w.keys = append(w.keys[:i], w.keys[i+1:]...)
			break
		}
	}
	metricSize.Set(float64(len(w.keys)))
}

func (w *MemoryWorker) GetSegmentHeaders(_ context.Context) ([]segment.Header, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]segment.Header, 0, len(w.headers))
	for _, h := range w.headers {
		out = append(out, h)
	}
	return out, nil
}

func (w *MemoryWorker) AddListener(l Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

func (w *MemoryWorker) RemoveListener(l Listener) {
	// Identity comparison of funcs isn't possible in Go; callers track
	// their own subscription handle via a wrapping closure if removal
	// is needed. Kept as a no-op matching the in-memory worker's
	// "never needs to unsubscribe" lifecycle.
}

func (w *MemoryWorker) SupportsRichIndex() bool { return true }

func (w *MemoryWorker) Shutdown(_ context.Context) {}

// Len reports the current resident entry count, used by tests to
// assert the eviction cap (spec P7).
func (w *MemoryWorker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.keys)
}

func (w *MemoryWorker) fire(e Event) {
	w.mu.Lock()
	listeners := append([]Listener{}, w.listeners...)
	w.mu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

var _ SegmentCache = (*MemoryWorker)(nil)
