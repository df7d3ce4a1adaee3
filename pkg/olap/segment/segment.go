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

package segment

import (
	"context"
	"fmt"
	"sort"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// Axis describes one column of a segment: the column itself, the
// predicate that was in effect when the segment was loaded, and the
// sorted array of keys actually seen in the result. Every cell's
// column-i coordinate must be an index into this array (spec §3
// invariant).
type Axis struct {
	Column    *star.Column
	Predicate star.ColumnPredicate
	Keys      []any
}

// Accepts reports whether the axis predicate would admit value v —
// the original implementation's cached-predicate shortcut (SPEC_FULL
// supplement #1), avoiding a linear scan of Keys for the common case
// of "does this axis accept this value at all".
func (a Axis) Accepts(v any) bool {
	return a.Predicate.Evaluate(v)
}

func (a Axis) indexOf(v any) (int, bool) {
	for i, k := range a.Keys {
		if k == v {
			return i, true
		}
	}
	return -1, false
}

// CellKey is a coordinate into a segment's dataset: one ordinal per
// axis, indexing into that axis's Keys array.
type CellKey []int

func (k CellKey) pack() string {
	return fmt.Sprint([]int(k))
}

// Segment is the header plus axes, without data.
type Segment struct {
	Header          Header
	Star            star.Star
	Measure         string
	Columns         []*star.Column
	CompoundPreds   star.CompoundList
	Axes            []Axis
	ExcludedRegions []*star.Compound
}

// ToSegment reconstructs a Segment shell from a header, the
// predicate-resolved axes and the star/measure/compound predicates
// that produced it (spec §4.1).
func ToSegment(header Header, st star.Star, columns []*star.Column, measure string, axes []Axis, compoundPreds star.CompoundList) *Segment {
	return &Segment{
		Header:          header,
		Star:            st,
		Measure:         measure,
		Columns:         columns,
		CompoundPreds:   compoundPreds,
		Axes:            axes,
		ExcludedRegions: header.ExcludedRegions,
	}
}

// CellCount is the maximum number of cells the segment's axes can
// address: the product of each axis's key count.
func (s *Segment) CellCount() int64 {
	n := int64(1)
	for _, a := range s.Axes {
		n *= int64(len(a.Keys))
	}
	return n
}

// Excluded reports whether the coordinate named by values (bit
// position -> raw value) matches one of the segment's excluded
// regions — cells guaranteed absent after a flush.
func (s *Segment) Excluded(values map[uint32]any) bool {
	for _, region := range s.ExcludedRegions {
		if region.Evaluate(values) {
			return true
		}
	}
	return false
}

// WithData adds a dataset to a Segment, the only way a segment may
// ever acquire data: a fresh Segment+Dataset pair is always
// constructed together via AddData or the loader, and is never
// mutated after registration.
type WithData struct {
	*Segment
	Dataset Dataset
}

// Row is one result row: one raw value per axis plus the measure
// value observed at that coordinate.
type Row struct {
	AxisValues []any
	Measure    star.Value
}

// AddData attaches a dataset to a segment, verifying axis/key
// consistency: every row's axis value must resolve to a valid ordinal
// on every axis and satisfy that axis's load-time predicate, or the
// call fails with CorruptedSegment (spec §4.1).
func AddData(ctx context.Context, seg *Segment, rows []Row, denseThreshold float64) (*WithData, error) {
	cells := make(map[string]star.Value, len(rows))
	keys := make([]CellKey, 0, len(rows))

	for _, row := range rows {
		key, err := seg.resolve(row.AxisValues)
		if err != nil {
			return nil, moerr.NewCorruptedSegment(ctx, err.Error())
		}
		for i, ord := range key {
			if ord < 0 || ord >= len(seg.Axes[i].Keys) {
				return nil, moerr.NewCorruptedSegment(ctx, fmt.Sprintf("axis %d ordinal %d out of range", i, ord))
			}
			if !seg.Axes[i].Predicate.Evaluate(seg.Axes[i].Keys[ord]) {
				return nil, moerr.NewCorruptedSegment(ctx, fmt.Sprintf("axis %d value rejected by load-time predicate", i))
			}
		}
		cells[key.pack()] = row.Measure
		keys = append(keys, key)
	}

	ds := buildDataset(seg, keys, cells, denseThreshold)
	return &WithData{Segment: seg, Dataset: ds}, nil
}

// resolve maps a raw per-axis value tuple to a CellKey of ordinals,
// erroring if any value is not present on its axis.
func (s *Segment) resolve(rawValues []any) (CellKey, error) {
	if len(rawValues) != len(s.Axes) {
		return nil, fmt.Errorf("expected %d axis values, got %d", len(s.Axes), len(rawValues))
	}
	key := make(CellKey, len(rawValues))
	for i, v := range rawValues {
		idx, ok := s.Axes[i].indexOf(v)
		if !ok {
			return nil, fmt.Errorf("value %v not present on axis %d", v, i)
		}
		key[i] = idx
	}
	return key, nil
}

// GetObject returns the value stored at key and true, or a null value
// and false if absent.
func (s *WithData) GetObject(key CellKey) (star.Value, bool) {
	return s.Dataset.Get(key)
}

func (s *WithData) Exists(key CellKey) bool {
	_, ok := s.Dataset.Get(key)
	return ok
}

// CreateSubSegment builds a new, narrower segment by tightening the
// predicate of bestColumn and adding excludedRegions to the segment's
// excluded-regions set, keeping only the axis keys marked in
// keepBitSetPerAxis (spec §4.8). It never mutates s.
func CreateSubSegment(s *Segment, keepBitSetPerAxis []map[int]bool, bestColumn int, bestColumnPredicate star.ColumnPredicate, excludedRegions []*star.Compound) *Segment {
	newAxes := make([]Axis, len(s.Axes))
	for i, axis := range s.Axes {
		keep := keepBitSetPerAxis[i]
		newKeys := make([]any, 0, len(axis.Keys))
		for idx, k := range axis.Keys {
			if keep == nil || keep[idx] {
				newKeys = append(newKeys, k)
			}
		}
		pred := axis.Predicate
		if i == bestColumn && bestColumnPredicate != nil {
			pred = bestColumnPredicate
		}
		sort.Slice(newKeys, func(a, b int) bool { return lessKey(newKeys[a], newKeys[b]) })
		newAxes[i] = Axis{Column: axis.Column, Predicate: pred, Keys: newKeys}
	}

	merged := append([]*star.Compound{}, s.ExcludedRegions...)
	for _, er := range excludedRegions {
		if !containsRegion(merged, er) {
			merged = append(merged, er)
		}
	}

	newHeader := s.Header
	newHeader.ExcludedRegions = merged

	return &Segment{
		Header:          newHeader,
		Star:            s.Star,
		Measure:         s.Measure,
		Columns:         s.Columns,
		CompoundPreds:   s.CompoundPreds,
		Axes:            newAxes,
		ExcludedRegions: merged,
	}
}

func containsRegion(regions []*star.Compound, target *star.Compound) bool {
	for _, r := range regions {
		if r.Equivalent(target) {
			return true
		}
	}
	return false
}

func lessKey(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
