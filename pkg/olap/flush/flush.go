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

package flush

import (
	"context"
	"math"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/cacheworker"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segidx"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// Controller is the user-facing Cache Control surface (spec §6):
// flush(region) and trace(msg), run against the Cache Manager's
// registered segments.
type Controller struct {
	index *segidx.Index
	cache *cacheworker.Pool
	trace func(string)
}

func NewController(index *segidx.Index, cache *cacheworker.Pool, trace func(string)) *Controller {
	if trace == nil {
		trace = func(string) {}
	}
	return &Controller{index: index, cache: cache, trace: trace}
}

func (c *Controller) Trace(msg string) {
	c.trace(msg)
}

// Flush applies region to every header currently known to the index,
// replacing each affected WithData with a tightened sub-segment (spec
// §4.8). load must return the live WithData for a header — the flush
// driver itself holds no segment data, only headers, matching C2's
// division of labour from C3.
func (c *Controller) Flush(ctx context.Context, region *CacheRegion, load func(segment.Header) (*segment.WithData, bool), denseThreshold float64) error {
	for _, h := range c.index.All() {
		withData, ok := load(h)
		if !ok {
			continue
		}
		newSeg, discard, err := ApplyFlush(ctx, withData, region, denseThreshold)
		if err != nil {
			return err
		}
		if discard {
			c.index.Unregister(h)
			if c.cache != nil {
				_ = c.cache.Remove(ctx, h)
			}
			c.trace("flush: discarded segment " + h.Fingerprint())
			continue
		}
		if newSeg == nil {
			continue // unaffected, left exactly as-is
		}
		c.index.Unregister(h)
		c.index.RegisterWithDomain(newSeg.Header, newSeg.CellCount())
		c.trace("flush: narrowed segment " + h.Fingerprint())
	}
	return nil
}

// ApplyFlush runs spec §4.8's per-segment procedure: discard==true
// means the caller must unregister the old header with nothing to
// replace it; a nil, non-discarded result means the segment was
// entirely unaffected.
func ApplyFlush(ctx context.Context, withData *segment.WithData, region *CacheRegion, denseThreshold float64) (*segment.WithData, bool, error) {
	keep, affected, discard := computeKeep(withData, region)
	if discard {
		return nil, true, nil
	}
	if !affected {
		return nil, false, nil
	}

	best, ratio := bestColumn(keep, withData.Axes)
	if ratio <= 0 {
		return nil, true, nil
	}

	estimate := cellCountEstimate(keep, len(region.MultiColumnPredicates))
	if estimate <= 0 {
		return nil, true, nil
	}

	bestPos := withData.Axes[best].Column.BitPos
	flushPred := region.PerColumnPredicate[bestPos]
	var tightened star.ColumnPredicate
	if flushPred != nil {
		tightened = withData.Axes[best].Predicate.Minus(flushPred)
	} else {
		tightened = withData.Axes[best].Predicate
	}

	excluded := regionAsCompound(region)
	newSegShell := segment.CreateSubSegment(withData.Segment, keep, best, tightened, []*star.Compound{excluded})

	rows := rebuildRows(withData, newSegShell)
	newWithData, err := segment.AddData(ctx, newSegShell, rows, denseThreshold)
	if err != nil {
		return nil, false, err
	}
	return newWithData, false, nil
}

func bestColumn(keep axisKeepSet, axes []segment.Axis) (int, float64) {
	best := -1
	bestRatio := -1.0
	for i, k := range keep {
		total := len(axes[i].Keys)
		if total == 0 {
			continue
		}
		ratio := float64(retainedCount(k)) / float64(total)
		if ratio == 0 {
			return i, 0
		}
		if ratio > bestRatio {
			bestRatio = ratio
			best = i
		}
	}
	if best < 0 {
		return 0, 0
	}
	return best, bestRatio
}

func cellCountEstimate(keep axisKeepSet, multiColumnPredicateCount int) float64 {
	estimate := 1.0
	for _, k := range keep {
		estimate *= float64(retainedCount(k))
	}
	estimate *= math.Pow(0.5, float64(multiColumnPredicateCount))
	return estimate
}

func regionAsCompound(region *CacheRegion) *star.Compound {
	c := star.NewCompound()
	for pos, pred := range region.PerColumnPredicate {
		c.Clauses[pos] = pred
	}
	return c
}

// rebuildRows re-derives a sub-segment's rows from the original
// WithData's populated cells, dropping any cell whose axis value was
// pruned away and remapping the rest onto the (possibly renumbered)
// new axes — CreateSubSegment only reshapes the axis shells, not the
// dataset.
func rebuildRows(old *segment.WithData, newSeg *segment.Segment) []segment.Row {
	var rows []segment.Row
	old.Dataset.Range(func(key segment.CellKey, v star.Value) bool {
		values := make([]any, len(old.Axes))
		ok := true
		for i, ord := range key {
			values[i] = old.Axes[i].Keys[ord]
			if !newAxisHas(newSeg.Axes[i], values[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, segment.Row{AxisValues: values, Measure: v})
		}
		return true
	})
	return rows
}

func newAxisHas(axis segment.Axis, v any) bool {
	for _, k := range axis.Keys {
		if k == v {
			return true
		}
	}
	return false
}
