// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package fastfield

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RangeValue is a range-typed fast field's per-document value: a pair of
// numeric bounds, each either set (a finite endpoint) or unbounded. This
// package stays range-op-agnostic (query.EvaluateRange owns Contains/
// Within/Intersects semantics); a RangeValue is just what a column can
// hand back for a given document.
type RangeValue struct {
	LowerSet       bool
	LowerValue     float64
	LowerInclusive bool
	UpperSet       bool
	UpperValue     float64
	UpperInclusive bool
}

const (
	rangeFlagValid          = 1 << 0
	rangeFlagLowerSet       = 1 << 1
	rangeFlagLowerInclusive = 1 << 2
	rangeFlagUpperSet       = 1 << 3
	rangeFlagUpperInclusive = 1 << 4
)

const rangeRecordSize = 1 + 8 + 8 // flags byte, lower float64, upper float64

// RangeBuilder accumulates per-document range bounds for a range_fields
// column during a segment build, encoding a fixed-width record per
// document once Encode is called.
type RangeBuilder struct {
	docs   map[uint32]RangeValue
	maxDoc uint32
}

// NewRangeBuilder starts a builder for a range-typed fast field.
func NewRangeBuilder() *RangeBuilder { return &RangeBuilder{docs: make(map[uint32]RangeValue)} }

// Set stores v for docID.
func (b *RangeBuilder) Set(docID uint32, v RangeValue) {
	b.docs[docID] = v
	if docID+1 > b.maxDoc {
		b.maxDoc = docID + 1
	}
}

// Encode serializes the column in the layout openRange expects: a uint32
// document count followed by one fixed-width record per document.
func (b *RangeBuilder) Encode() []byte {
	n := b.maxDoc
	out := make([]byte, 4+int(n)*rangeRecordSize)
	binary.LittleEndian.PutUint32(out[0:], n)
	for docID := uint32(0); docID < n; docID++ {
		rec := out[4+int(docID)*rangeRecordSize:]
		v, ok := b.docs[docID]
		if !ok {
			continue
		}
		flags := byte(rangeFlagValid)
		if v.LowerSet {
			flags |= rangeFlagLowerSet
		}
		if v.LowerInclusive {
			flags |= rangeFlagLowerInclusive
		}
		if v.UpperSet {
			flags |= rangeFlagUpperSet
		}
		if v.UpperInclusive {
			flags |= rangeFlagUpperInclusive
		}
		rec[0] = flags
		binary.LittleEndian.PutUint64(rec[1:], math.Float64bits(v.LowerValue))
		binary.LittleEndian.PutUint64(rec[9:], math.Float64bits(v.UpperValue))
	}
	return out
}

type rangeColumn struct {
	numDocs uint32
	raw     []byte // the record region only, numDocs*rangeRecordSize bytes
}

func openRange(raw []byte) (Column, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("fastfield: truncated range column header")
	}
	n := binary.LittleEndian.Uint32(raw[0:])
	need := 4 + int(n)*rangeRecordSize
	if len(raw) < need {
		return nil, fmt.Errorf("fastfield: truncated range column body (have %d, want %d)", len(raw), need)
	}
	return &rangeColumn{numDocs: n, raw: raw[4:need]}, nil
}

func (c *rangeColumn) Kind() Kind      { return KindRange }
func (c *rangeColumn) NumDocs() uint32 { return c.numDocs }

func (c *rangeColumn) record(docID uint32) []byte {
	if docID >= c.numDocs {
		return nil
	}
	off := int(docID) * rangeRecordSize
	return c.raw[off : off+rangeRecordSize]
}

func (c *rangeColumn) Value(docID uint32) TaggedValue {
	return TaggedValue{Kind: KindRange}
}

func (c *rangeColumn) Ord(uint32) (uint64, bool)   { return 0, false }
func (c *rangeColumn) AsU64(uint32) (uint64, bool) { return 0, false }

func (c *rangeColumn) Range(docID uint32) (RangeValue, bool) {
	rec := c.record(docID)
	if rec == nil || rec[0]&rangeFlagValid == 0 {
		return RangeValue{}, false
	}
	flags := rec[0]
	return RangeValue{
		LowerSet:       flags&rangeFlagLowerSet != 0,
		LowerValue:     math.Float64frombits(binary.LittleEndian.Uint64(rec[1:])),
		LowerInclusive: flags&rangeFlagLowerInclusive != 0,
		UpperSet:       flags&rangeFlagUpperSet != 0,
		UpperValue:     math.Float64frombits(binary.LittleEndian.Uint64(rec[9:])),
		UpperInclusive: flags&rangeFlagUpperInclusive != 0,
	}, true
}
