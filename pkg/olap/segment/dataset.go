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

import "github.com/CodeOnCoffee/olapcache/pkg/olap/star"

// Dataset is a mapping from CellKey to a numeric value. Both the dense
// and sparse representations support identical interrogation.
type Dataset interface {
	Get(key CellKey) (star.Value, bool)
	Range(func(key CellKey, v star.Value) bool)
	Len() int
}

// denseDataset stores one slot per addressable cell in a flat slice,
// chosen when the populated fraction of the segment's cell space is
// at or above the configured density threshold.
type denseDataset struct {
	dims   []int
	values []star.Value
	filled []bool
}

func newDenseDataset(dims []int) *denseDataset {
	total := 1
	for _, d := range dims {
		total *= d
	}
	return &denseDataset{
		dims:   dims,
		values: make([]star.Value, total),
		filled: make([]bool, total),
	}
}

func (d *denseDataset) offset(key CellKey) int {
	off := 0
	for i, ord := range key {
		off = off*d.dims[i] + ord
	}
	return off
}

func (d *denseDataset) set(key CellKey, v star.Value) {
	off := d.offset(key)
	d.values[off] = v
	d.filled[off] = true
}

func (d *denseDataset) Get(key CellKey) (star.Value, bool) {
	off := d.offset(key)
	if off < 0 || off >= len(d.values) || !d.filled[off] {
		return star.Null(), false
	}
	return d.values[off], true
}

func (d *denseDataset) Len() int {
	n := 0
	for _, f := range d.filled {
		if f {
			n++
		}
	}
	return n
}

func (d *denseDataset) Range(fn func(CellKey, star.Value) bool) {
	key := make(CellKey, len(d.dims))
	var walk func(axis, offset int) bool
	walk = func(axis, offset int) bool {
		if axis == len(d.dims) {
			if d.filled[offset] {
				if !fn(append(CellKey{}, key...), d.values[offset]) {
					return false
				}
			}
			return true
		}
		for i := 0; i < d.dims[axis]; i++ {
			key[axis] = i
			if !walk(axis+1, offset*d.dims[axis]+i) {
				return false
			}
		}
		return true
	}
	walk(0, 0)
}

// sparseDataset keyed by packed CellKey string, used when the
// populated fraction is below the density threshold.
type sparseDataset struct {
	keys   map[string]CellKey
	values map[string]star.Value
}

func newSparseDataset() *sparseDataset {
	return &sparseDataset{keys: map[string]CellKey{}, values: map[string]star.Value{}}
}

func (d *sparseDataset) set(key CellKey, v star.Value) {
	packed := key.pack()
	d.keys[packed] = key
	d.values[packed] = v
}

func (d *sparseDataset) Get(key CellKey) (star.Value, bool) {
	v, ok := d.values[key.pack()]
	return v, ok
}

func (d *sparseDataset) Len() int {
	return len(d.values)
}

func (d *sparseDataset) Range(fn func(CellKey, star.Value) bool) {
	for packed, key := range d.keys {
		if !fn(key, d.values[packed]) {
			return
		}
	}
}

// buildDataset chooses dense storage when the populated-cell density
// is at or above denseThreshold, else sparse (spec §4.1).
func buildDataset(seg *Segment, keys []CellKey, cells map[string]star.Value, denseThreshold float64) Dataset {
	dims := make([]int, len(seg.Axes))
	for i, a := range seg.Axes {
		dims[i] = len(a.Keys)
	}

	capacity := int64(1)
	for _, d := range dims {
		capacity *= int64(d)
	}

	density := 0.0
	if capacity > 0 {
		density = float64(len(keys)) / float64(capacity)
	}

	if density >= denseThreshold && capacity > 0 && capacity < (1<<31) {
		dense := newDenseDataset(dims)
		for _, key := range keys {
			dense.set(key, cells[key.pack()])
		}
		return dense
	}

	sparse := newSparseDataset()
	for _, key := range keys {
		sparse.set(key, cells[key.pack()])
	}
	return sparse
}
