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

// Package cachemgr implements the Cache Manager (C4): a single
// goroutine that serializes every command touching the Segment Index,
// dispatches SQL loads to the fixed executor pool without ever
// blocking on them, and folds external cache announcements into the
// index off the Batch Reader's critical path.
package cachemgr

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
	"github.com/CodeOnCoffee/olapcache/pkg/logutil"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/cacheworker"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/config"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/future"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/loader"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/rollup"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segidx"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
)

type command func(ctx context.Context)

// Manager is the single-threaded Cache Manager. Every command it runs
// is expected to be short: the work of actually running SQL happens on
// the Segment Loader's own pool, reached through a detached goroutine
// per Submit call so the manager's own loop is never blocked on I/O
// (spec §5).
type Manager struct {
	cfg         config.Config
	cmds        chan command
	index       *segidx.Index
	cache       *cacheworker.Pool
	loader      *loader.Loader
	columns     ColumnLookup
	cardinality func(pos uint32) int

	g      *errgroup.Group
	cancel context.CancelFunc

	mu       sync.Mutex
	shutdown bool
}

func New(cfg config.Config, index *segidx.Index, cache *cacheworker.Pool, ld *loader.Loader, columns ColumnLookup, cardinality func(uint32) int) *Manager {
	if cardinality == nil {
		cardinality = func(uint32) int { return 0 }
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:         cfg,
		cmds:        make(chan command, 256),
		index:       index,
		cache:       cache,
		loader:      ld,
		columns:     columns,
		cardinality: cardinality,
		cancel:      cancel,
	}
	g, gctx := errgroup.WithContext(ctx)
	m.g = g
	g.Go(func() error { m.runCommands(gctx); return nil })
	if cache != nil {
		g.Go(func() error { m.foldExternalEvents(gctx); return nil })
	}
	return m
}

func (m *Manager) runCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-m.cmds:
			if !ok {
				return
			}
			cmd(ctx)
		}
	}
}

// foldExternalEvents is C4's other standing job: drain the cache
// worker pool's event channel and apply CREATED/DELETED announcements
// to the index. It runs on its own goroutine rather than the command
// loop because the channel-based design (spec §4.3) exists precisely
// so external workers never need a direct call path back into C4.
func (m *Manager) foldExternalEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-m.cache.Events():
			if !ok {
				return
			}
			switch e.Type {
			case cacheworker.EventCreated:
				m.index.Register(e.Source)
			case cacheworker.EventDeleted:
				m.index.Unregister(e.Source)
			}
		}
	}
}

// Submit implements batch.Submitter. It groups requests into batches,
// fuses and optimizes them on the command goroutine (cheap, in-memory
// work only), then hands the resulting composites to the loader on a
// detached goroutine and returns a single future covering every
// segment that load produces.
func (m *Manager) Submit(ctx context.Context, requests []*batch.CellRequest) ([]*future.Future[[]*segment.WithData], error) {
	if len(requests) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, moerr.NewShutdown(ctx)
	}
	m.mu.Unlock()

	f, resolve := future.New[[]*segment.WithData](nil)

	select {
	case m.cmds <- func(cctx context.Context) { m.handleSubmit(cctx, requests, resolve) }:
	case <-ctx.Done():
		return nil, moerr.NewCancelled(ctx)
	}

	return []*future.Future[[]*segment.WithData]{f}, nil
}

// resolveFromCache implements spec step 4 of the control flow: before
// any request becomes a batch, the Segment Index (C2) is consulted
// for a header that already covers it, and if one is found the cache
// worker pool (C3) is asked for the body. A hit needs no SQL at all.
// A CorruptedSegment decode failure evicts the offending header (spec
// §7) and the request falls through to the miss path instead.
func (m *Manager) resolveFromCache(ctx context.Context, requests []*batch.CellRequest) (satisfied []*segment.WithData, misses []*batch.CellRequest) {
	decoded := make(map[string]*segment.WithData)
	for _, req := range requests {
		headers := m.index.Locate(req.Star.Identity(), req.Star.FactAlias, req.ConstrainedColumns, req.ValuePerColumn, req.CompoundPredicates)
		hit := false
		for _, h := range headers {
			if h.Measure != req.Measure {
				continue
			}
			if withData, ok := decoded[h.Fingerprint()]; ok {
				satisfied = append(satisfied, withData)
				hit = true
				break
			}
			if m.cache == nil {
				continue
			}
			body, ok, err := m.cache.Get(ctx, h)
			if err != nil || !ok {
				continue
			}
			cols := columnsFor(m.columns(req.Star), h.BitKey)
			withData, err := cacheworker.DecodeBody(ctx, h, req.Star, cols, m.cfg.DenseDatasetThreshold, body)
			if err != nil {
				logutil.Warn(ctx, "cachemgr: discarding corrupted segment", zap.String("header", h.Fingerprint()), zap.Error(err))
				m.index.Unregister(h)
				continue
			}
			decoded[h.Fingerprint()] = withData
			satisfied = append(satisfied, withData)
			hit = true
			break
		}
		if !hit {
			misses = append(misses, req)
		}
	}
	return satisfied, misses
}

func (m *Manager) handleSubmit(ctx context.Context, requests []*batch.CellRequest, resolve func([]*segment.WithData, error)) {
	satisfied, misses := m.resolveFromCache(ctx, requests)
	if len(misses) == 0 {
		resolve(satisfied, nil)
		return
	}

	batches := buildBatches(misses, m.columns)

	var split []*batch.Batch
	for _, b := range batches {
		split = append(split, rollup.SplitDistinctMeasures(b)...)
	}

	if m.cfg.OptimizePredicates {
		for _, b := range split {
			eliminated := rollup.OptimizePredicates(b, m.cardinality, m.cfg.MaxConstraints, m.cfg.BloatLimit)
			for pos := range eliminated {
				b.ValueSets[pos] = nil
			}
		}
	}

	var composites []*rollup.Composite
	if m.cfg.EnableGroupingSets {
		composites = rollup.Group(split)
	} else {
		for _, b := range split {
			composites = append(composites, &rollup.Composite{Detailed: b})
		}
	}

	logutil.Info(ctx, "cachemgr: dispatching load",
		zap.Int("requests", len(requests)),
		zap.Int("satisfied", len(satisfied)),
		zap.Int("batches", len(split)),
		zap.Int("composites", len(composites)))

	// The SQL pool runs this, not the command goroutine: handleSubmit
	// must return so the next queued command can run (spec §5 "the
	// Cache Manager thread never blocks on SQL").
	go func() {
		segs, err := m.loader.Load(ctx, composites)
		if err != nil {
			resolve(nil, err)
			return
		}
		resolve(append(satisfied, segs...), nil)
	}()
}

// Flush enqueues a flush command and waits for it to apply, since
// Cache Control callers expect synchronous confirmation (spec §4.8);
// it still runs on the single command goroutine like every other
// mutation of the index.
func (m *Manager) Flush(ctx context.Context, run func(ctx context.Context) error) error {
	done := make(chan error, 1)
	select {
	case m.cmds <- func(cctx context.Context) { done <- run(cctx) }:
	case <-ctx.Done():
		return moerr.NewCancelled(ctx)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return moerr.NewCancelled(ctx)
	}
}

// Shutdown stops accepting new commands, drains what's queued, and
// stops the loader's SQL pool. Idempotent (spec §5).
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	m.mu.Unlock()

	close(m.cmds)
	m.cancel()
	_ = m.g.Wait()
	if m.loader != nil {
		m.loader.Release()
	}
	if m.cache != nil {
		m.cache.Shutdown(ctx)
	}
}
