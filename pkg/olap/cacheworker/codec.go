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
	"bytes"
	"context"
	"encoding/json"

	"github.com/pierrec/lz4/v4"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

// DecodeBody reverses EncodeBody, hydrating a WithData from a cache
// hit. orderedColumns must list the header's columns in the same
// order used when the segment was built (the Cache Manager derives
// this order the same way for every segment of a given star+bitKey,
// via its ColumnLookup, so encode and decode agree without carrying
// the order on the wire). header's predicates and excluded regions
// are already native Go values at this point — only the body (axis
// key arrays and cell values) ever crosses the wire as bytes.
func DecodeBody(ctx context.Context, header segment.Header, st star.Star, orderedColumns []*star.Column, denseThreshold float64, data []byte) (*segment.WithData, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, moerr.NewNotSerializable(ctx, err)
	}
	var wb wireBody
	if err := json.Unmarshal(raw, &wb); err != nil {
		return nil, moerr.NewNotSerializable(ctx, err)
	}
	if len(wb.AxisKeys) != len(orderedColumns) {
		return nil, moerr.NewNotSerializable(ctx, errAxisShapeMismatch)
	}

	axes := make([]segment.Axis, len(orderedColumns))
	for i, col := range orderedColumns {
		pred, ok := header.PerColumnPredicate(col.BitPos)
		if !ok {
			pred = star.NewTrue(col)
		}
		axes[i] = segment.Axis{Column: col, Predicate: pred, Keys: wb.AxisKeys[i]}
	}

	seg := segment.ToSegment(header, st, orderedColumns, header.Measure, axes, header.CompoundPredicates)

	rows := make([]segment.Row, 0, len(wb.Rows))
	for _, wr := range wb.Rows {
		if len(wr.Key) != len(axes) {
			return nil, moerr.NewCorruptedSegment(ctx, "body row arity does not match header axes")
		}
		values := make([]any, len(axes))
		for i, ord := range wr.Key {
			if ord < 0 || ord >= len(axes[i].Keys) {
				return nil, moerr.NewCorruptedSegment(ctx, "body row ordinal out of range")
			}
			values[i] = axes[i].Keys[ord]
		}
		rows = append(rows, segment.Row{AxisValues: values, Measure: decodeWireValue(wr)})
	}

	return segment.AddData(ctx, seg, rows, denseThreshold)
}

func decodeWireValue(wr wireRow) star.Value {
	if wr.Null {
		return star.Null()
	}
	switch star.Kind(wr.Kind) {
	case star.KindInteger:
		return star.Integer(wr.Int)
	case star.KindDecimal:
		return star.Decimal(wr.Float)
	default:
		return star.Double(wr.Float)
	}
}

var errAxisShapeMismatch = axisShapeMismatchError{}

type axisShapeMismatchError struct{}

func (axisShapeMismatchError) Error() string { return "decoded body axis count does not match header columns" }

// wirePredicate is a header predicate encoded as a tagged tuple
// (spec §6, "predicate summaries encoded as tagged tuples").
type wirePredicate struct {
	Pos    uint32 `json:"pos"`
	Kind   string `json:"kind"` // true|false|values|member
	Values []any  `json:"values,omitempty"`
	Parent any    `json:"parent,omitempty"`
	Level  string `json:"level,omitempty"`
	IsAll  bool   `json:"isAll,omitempty"`
}

func encodePredicate(pos uint32, p star.ColumnPredicate) wirePredicate {
	switch v := p.(type) {
	case star.LiteralTrue:
		return wirePredicate{Pos: pos, Kind: "true"}
	case star.LiteralFalse:
		return wirePredicate{Pos: pos, Kind: "false"}
	case *star.Member:
		return wirePredicate{Pos: pos, Kind: "member", Values: []any{v.Value}, Parent: v.Parent, Level: v.Level, IsAll: v.IsAll}
	default:
		return wirePredicate{Pos: pos, Kind: "values", Values: p.Values()}
	}
}

type wireHeader struct {
	StarIdentity       string          `json:"star"`
	Measure            string          `json:"measure"`
	FactAlias          string          `json:"factAlias"`
	BitKey             []uint32        `json:"bitKey"`
	Predicates         []wirePredicate `json:"predicates"`
	CompoundPredicates [][]wirePredicate `json:"compoundPredicates,omitempty"`
	ExcludedRegions    [][]wirePredicate `json:"excludedRegions,omitempty"`
}

func encodeCompound(c *star.Compound) []wirePredicate {
	out := make([]wirePredicate, 0, len(c.Clauses))
	for pos, p := range c.Clauses {
		out = append(out, encodePredicate(pos, p))
	}
	return out
}

// EncodeHeader renders a Header as JSON, then lz4-compresses it. This
// is the wire format crossing the SegmentCache SPI boundary.
func EncodeHeader(h segment.Header) ([]byte, error) {
	wh := wireHeader{
		StarIdentity: h.StarIdentity,
		Measure:      h.Measure,
		FactAlias:    h.FactAlias,
		BitKey:       h.BitKey.ToArray(),
	}
	for pos, p := range h.ColumnPredicates {
		wh.Predicates = append(wh.Predicates, encodePredicate(pos, p))
	}
	for _, c := range h.CompoundPredicates {
		wh.CompoundPredicates = append(wh.CompoundPredicates, encodeCompound(c))
	}
	for _, r := range h.ExcludedRegions {
		wh.ExcludedRegions = append(wh.ExcludedRegions, encodeCompound(r))
	}
	raw, err := json.Marshal(wh)
	if err != nil {
		return nil, err
	}
	return compress(raw), nil
}

// wireRow is one body row: the raw axis ordinals plus the measure
// value, mirroring segment.Row but JSON/lz4-safe.
type wireRow struct {
	Key   []int   `json:"key"`
	Null  bool    `json:"null,omitempty"`
	Kind  uint8   `json:"kind"`
	Int   int64   `json:"i,omitempty"`
	Float float64 `json:"f,omitempty"`
}

type wireBody struct {
	AxisKeys [][]any   `json:"axisKeys"`
	Rows     []wireRow `json:"rows"`
}

// EncodeBody renders a segment's dataset as JSON, then
// lz4-compresses it.
func EncodeBody(seg *segment.WithData) ([]byte, error) {
	wb := wireBody{AxisKeys: make([][]any, len(seg.Axes))}
	for i, a := range seg.Axes {
		wb.AxisKeys[i] = a.Keys
	}
	seg.Dataset.Range(func(key segment.CellKey, v star.Value) bool {
		row := wireRow{Key: []int(key), Kind: uint8(v.Kind())}
		if v.IsNull() {
			row.Null = true
		} else if v.Kind() == star.KindInteger {
			row.Int = int64(v.Float())
		} else {
			row.Float = v.Float()
		}
		wb.Rows = append(wb.Rows, row)
		return true
	})
	raw, err := json.Marshal(wb)
	if err != nil {
		return nil, err
	}
	return compress(raw), nil
}

func compress(raw []byte) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, _ = w.Write(raw)
	_ = w.Close()
	return buf.Bytes()
}

func decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RoundTripCheck decodes the encoded header and body and checks that
// the decoded header's star identity, measure and fact alias match h,
// the explicit mechanism for detecting body/header schema drift (spec
// §4.3). The bit key, predicates and excluded regions are not
// compared, and the body is only checked to decompress and parse.
// Failure is fatal for the put that triggered it.
func RoundTripCheck(ctx context.Context, h segment.Header, headerBytes, bodyBytes []byte) error {
	raw, err := decompress(headerBytes)
	if err != nil {
		return moerr.NewNotSerializable(ctx, err)
	}
	var wh wireHeader
	if err := json.Unmarshal(raw, &wh); err != nil {
		return moerr.NewNotSerializable(ctx, err)
	}
	if wh.StarIdentity != h.StarIdentity || wh.Measure != h.Measure || wh.FactAlias != h.FactAlias {
		return moerr.NewNotSerializable(ctx, errMismatch)
	}
	bodyRaw, err := decompress(bodyBytes)
	if err != nil {
		return moerr.NewNotSerializable(ctx, err)
	}
	var wb wireBody
	if err := json.Unmarshal(bodyRaw, &wb); err != nil {
		return moerr.NewNotSerializable(ctx, err)
	}
	return nil
}

var errMismatch = jsonMismatchError{}

type jsonMismatchError struct{}

func (jsonMismatchError) Error() string { return "decoded header does not match original" }
