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

// Package loader implements the Segment Loader (C7): it turns fused
// composites from the rollup stage into executed SQL and hydrated
// segments, registering each with the Segment Index and cache worker
// pool as it goes.
package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/cacheworker"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/config"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/rollup"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segidx"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/sqlexec"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// Loader drives one ants.Pool of a fixed size (spec §5 "fixed pool of
// 10") to run composite queries concurrently, bounded independent of
// how many composites a single loadAggregations call produced.
type Loader struct {
	cfg      config.Config
	pool     *ants.Pool
	executor sqlexec.SqlExecutor
	index    *segidx.Index
	cache    *cacheworker.Pool
	findAgg  FindAggFunc
}

func New(cfg config.Config, executor sqlexec.SqlExecutor, index *segidx.Index, cache *cacheworker.Pool, findAgg FindAggFunc) (*Loader, error) {
	if findAgg == nil {
		findAgg = DefaultFindAgg
	}
	size := cfg.SQLPoolSize
	if size <= 0 {
		size = 10
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, pool: pool, executor: executor, index: index, cache: cache, findAgg: findAgg}, nil
}

func (l *Loader) Release() {
	l.pool.Release()
}

// Load executes every composite concurrently on the fixed pool and
// returns every hydrated segment across all of them. A failure in any
// one composite fails the whole call (spec §4.7): the caller is
// expected to fail every future it handed out for this
// loadAggregations invocation.
func (l *Loader) Load(ctx context.Context, composites []*rollup.Composite) ([]*segment.WithData, error) {
	var (
		mu      sync.Mutex
		results []*segment.WithData
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range composites {
		c := c
		g.Go(func() error {
			done := make(chan error, 1)
			submitErr := l.pool.Submit(func() {
				segs, err := l.loadComposite(gctx, c)
				if err != nil {
					done <- err
					return
				}
				mu.Lock()
				results = append(results, segs...)
				mu.Unlock()
				done <- nil
			})
			if submitErr != nil {
				return submitErr
			}
			select {
			case err := <-done:
				return err
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, moerr.NewSqlExecution(ctx, err)
	}
	return results, nil
}

func (l *Loader) loadComposite(ctx context.Context, c *rollup.Composite) ([]*segment.WithData, error) {
	detailed := c.Detailed
	from := detailed.Star.FactAlias
	if l.cfg.UseAggregates {
		measureBitKey := measureMask(detailed)
		if agg, ok := l.findAgg(detailed.Star, detailed.Key.BitKey, measureBitKey); ok {
			from = agg.TableName
		}
	}

	sql, columns := l.buildSQL(c, from)
	cursor, err := l.executor.Execute(ctx, sql, columns)
	if err != nil {
		return nil, moerr.NewSqlExecution(ctx, err)
	}
	defer cursor.Close()

	sets := c.GroupingSets()
	bySet := make(map[int][]sqlexec.Row, len(sets))
	for cursor.Next(ctx) {
		r := cursor.Row()
		bySet[r.GroupingSetID] = append(bySet[r.GroupingSetID], r)
	}
	if err := cursor.Err(); err != nil {
		return nil, moerr.NewSqlExecution(ctx, err)
	}

	detailedPos := make(map[uint32]int, len(detailed.Columns))
	for i, col := range detailed.Columns {
		detailedPos[col.BitPos] = i
	}

	var out []*segment.WithData
	for i, b := range sets {
		segs, err := l.hydrateBatch(ctx, b, projectRows(b, detailedPos, bySet[i]))
		if err != nil {
			return nil, err
		}
		for _, s := range segs {
			l.index.RegisterWithDomain(s.Header, s.CellCount())
			if l.cache != nil {
				if putErr := l.putInCache(ctx, s); putErr != nil {
					return nil, putErr
				}
			}
		}
		out = append(out, segs...)
	}
	return out, nil
}

// projectRows narrows each row's ColumnValues, which the query binds
// in the detailed (superset) batch's column order, down to just the
// columns the narrower summary batch b actually groups by — a summary
// grouping set's row still carries the detailed projection's full
// column list, with GROUPING SETS leaving the absent columns null
// (spec §4.6's composite query has one projection, many group-bys).
func projectRows(b *batch.Batch, detailedPos map[uint32]int, rows []sqlexec.Row) []sqlexec.Row {
	out := make([]sqlexec.Row, len(rows))
	for i, r := range rows {
		values := make([]any, len(b.Columns))
		for j, col := range b.Columns {
			if pos, ok := detailedPos[col.BitPos]; ok && pos < len(r.ColumnValues) {
				values[j] = r.ColumnValues[pos]
			}
		}
		out[i] = sqlexec.Row{GroupingSetID: r.GroupingSetID, ColumnValues: values, MeasureValues: r.MeasureValues}
	}
	return out
}

func (l *Loader) putInCache(ctx context.Context, s *segment.WithData) error {
	headerBytes, err := cacheworker.EncodeHeader(s.Header)
	if err != nil {
		return err
	}
	bodyBytes, err := cacheworker.EncodeBody(s)
	if err != nil {
		return err
	}
	return l.cache.Put(ctx, s.Header, headerBytes, bodyBytes)
}

// hydrateBatch produces one WithData per measure in b: Header.Measure
// is singular, so a batch naming several measures (they share an
// AggregationKey, which does not include the measure) becomes one
// segment per measure, all built from the same query's rows.
func (l *Loader) hydrateBatch(ctx context.Context, b *batch.Batch, rows []sqlexec.Row) ([]*segment.WithData, error) {
	axes := buildAxes(b, rows)
	predicates := make(map[uint32]star.ColumnPredicate, len(axes))
	for _, a := range axes {
		predicates[a.Column.BitPos] = a.Predicate
	}

	var out []*segment.WithData
	for mi, measure := range b.Measures {
		header := segment.Header{
			StarIdentity:       b.Star.Identity(),
			Measure:            measure,
			FactAlias:          b.Star.FactAlias,
			BitKey:             b.Key.BitKey,
			ColumnPredicates:   predicates,
			CompoundPredicates: b.Key.CompoundPredicates,
		}
		seg := segment.ToSegment(header, b.Star, b.Columns, measure, axes, b.Key.CompoundPredicates)

		segRows := make([]segment.Row, 0, len(rows))
		for _, r := range rows {
			if mi >= len(r.MeasureValues) {
				continue
			}
			segRows = append(segRows, segment.Row{
				AxisValues: r.ColumnValues,
				Measure:    toStarValue(r.MeasureValues[mi]),
			})
		}

		withData, err := segment.AddData(ctx, seg, segRows, l.cfg.DenseDatasetThreshold)
		if err != nil {
			return nil, err
		}
		out = append(out, withData)
	}
	return out, nil
}

// buildAxes derives each axis's key array from the batch's requested
// value sets unioned with whatever values the SQL actually returned
// on that axis position. A column the predicate optimizer collapsed
// to TRUE (spec §4.6) has no requested value set at all, so its axis
// keys must come entirely from observed rows — otherwise every row
// would fail AddData's "value present on axis" check (spec §4.1's
// Segment Axis invariant: "the sorted array of keys actually seen in
// the result").
func buildAxes(b *batch.Batch, rows []sqlexec.Row) []segment.Axis {
	axes := make([]segment.Axis, len(b.Columns))
	for i, col := range b.Columns {
		values := append([]any{}, b.ValueSets[col.BitPos]...)
		seen := make(map[any]bool, len(values))
		for _, v := range values {
			seen[v] = true
		}
		for _, r := range rows {
			if i >= len(r.ColumnValues) {
				continue
			}
			v := r.ColumnValues[i]
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		sort.Slice(values, func(a, bIdx int) bool { return fmt.Sprint(values[a]) < fmt.Sprint(values[bIdx]) })

		var pred star.ColumnPredicate
		if len(b.ValueSets[col.BitPos]) > 0 {
			pred = star.NewValueList(col, b.ValueSets[col.BitPos]...)
		} else {
			pred = star.NewTrue(col)
		}
		axes[i] = segment.Axis{Column: col, Predicate: pred, Keys: values}
	}
	return axes
}

func measureMask(b *batch.Batch) star.BitKey {
	k := star.NewBitKey()
	for i := range b.Measures {
		k = k.Set(uint32(i))
	}
	return k
}

func toStarValue(v any) star.Value {
	switch x := v.(type) {
	case nil:
		return star.Null()
	case int:
		return star.Integer(int64(x))
	case int64:
		return star.Integer(x)
	case float32:
		return star.Double(float64(x))
	case float64:
		return star.Double(x)
	default:
		return star.Null()
	}
}
