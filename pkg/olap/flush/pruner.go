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
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// axisKeepSet tracks, per segment axis, which key indices survive a
// flush: true means the key is not yet known to be entirely inside the
// flush region and so must stay.
type axisKeepSet []map[int]bool

// computeKeep implements spec §4.8 steps 1-3. affected is false when the
// segment is entirely unaffected (region and segment don't intersect
// on some constrained column) and must be left untouched; discard is
// true when the segment must be dropped outright.
func computeKeep(seg *segment.WithData, region *CacheRegion) (axisKeepSet, bool, bool) {
	if !seg.Header.BitKey.Intersects(region.BitKey) {
		return nil, false, true
	}

	keep := make(axisKeepSet, len(seg.Axes))
	for i, axis := range seg.Axes {
		pos := axis.Column.BitPos
		flushPred, constrained := region.PerColumnPredicate[pos]
		if !constrained {
			keep[i] = allTrue(len(axis.Keys))
			continue
		}
		if !flushPred.MightIntersect(axis.Predicate) {
			// This column's flush predicate can never agree with what
			// the axis already holds: nothing on this segment is
			// touched, regardless of other axes.
			return nil, false, false
		}
		k := make(map[int]bool, len(axis.Keys))
		for idx, v := range axis.Keys {
			k[idx] = !flushPred.Evaluate(v)
		}
		keep[i] = k
	}

	// ValuePruner (step 3): any populated cell that a multi-column
	// predicate actually matches proves the per-column approximation
	// above is unsound for the key values that cell uses on the
	// predicate's columns — narrowing any of those axes would also
	// discard other, unrelated cells that merely share one coordinate
	// with this flushed one. Force those keys to stay.
	for _, mc := range region.MultiColumnPredicates {
		axisOf := make(map[uint32]int, len(mc.Columns))
		for i, a := range seg.Axes {
			for _, c := range mc.Columns {
				if a.Column.BitPos == c {
					axisOf[c] = i
				}
			}
		}
		if len(axisOf) != len(mc.Columns) {
			continue // predicate names a column this segment doesn't have
		}
		seg.Dataset.Range(func(key segment.CellKey, _ star.Value) bool {
			values := make(map[uint32]any, len(mc.Columns))
			for _, c := range mc.Columns {
				values[c] = seg.Axes[axisOf[c]].Keys[key[axisOf[c]]]
			}
			if mc.Accepts(values) {
				for _, c := range mc.Columns {
					i := axisOf[c]
					keep[i][key[i]] = true
				}
			}
			return true
		})
	}

	return keep, true, false
}

func allTrue(n int) map[int]bool {
	m := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		m[i] = true
	}
	return m
}

func retainedCount(m map[int]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
