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
	"math"
	"sort"
)

// NumericBuilder accumulates per-document values for one I64/U64/F64/Bool/
// Date column during a segment build (M4) and encodes them with
// Encode once the segment's document count is known.
type NumericBuilder struct {
	kind   Kind
	values map[uint32]uint64
	maxDoc uint32
}

// NewNumericBuilder starts a builder for the given numeric kind.
func NewNumericBuilder(kind Kind) *NumericBuilder {
	return &NumericBuilder{kind: kind, values: make(map[uint32]uint64)}
}

// SetI64 stores v for docID.
func (b *NumericBuilder) SetI64(docID uint32, v int64) { b.set(docID, uint64(v)) }

// SetU64 stores v for docID.
func (b *NumericBuilder) SetU64(docID uint32, v uint64) { b.set(docID, v) }

// SetF64 stores v for docID.
func (b *NumericBuilder) SetF64(docID uint32, v float64) { b.set(docID, math.Float64bits(v)) }

// SetBool stores v for docID.
func (b *NumericBuilder) SetBool(docID uint32, v bool) {
	var u uint64
	if v {
		u = 1
	}
	b.set(docID, u)
}

func (b *NumericBuilder) set(docID uint32, raw uint64) {
	b.values[docID] = raw
	if docID+1 > b.maxDoc {
		b.maxDoc = docID + 1
	}
}

// Encode serializes the column in the layout openNumeric expects.
func (b *NumericBuilder) Encode() []byte {
	n := b.maxDoc
	out := make([]byte, 4+int(n)*8+bitmapBytes(n))
	binary.LittleEndian.PutUint32(out[0:], n)
	valid := out[4+int(n)*8:]
	for docID, raw := range b.values {
		binary.LittleEndian.PutUint64(out[4+int(docID)*8:], raw)
		valid[docID/8] |= 1 << (docID % 8)
	}
	return out
}

// TextBuilder accumulates per-document string values for a dictionary-
// encoded text fast field.
type TextBuilder struct {
	docs   map[uint32]string
	maxDoc uint32
}

// NewTextBuilder starts a builder for a text column.
func NewTextBuilder() *TextBuilder { return &TextBuilder{docs: make(map[uint32]string)} }

// Set stores v for docID.
func (b *TextBuilder) Set(docID uint32, v string) {
	b.docs[docID] = v
	if docID+1 > b.maxDoc {
		b.maxDoc = docID + 1
	}
}

// Encode builds the sorted dictionary and per-doc ordinal column in the
// layout openText expects.
func (b *TextBuilder) Encode() []byte {
	seen := make(map[string]struct{}, len(b.docs))
	for _, v := range b.docs {
		seen[v] = struct{}{}
	}
	dict := make([]string, 0, len(seen))
	for v := range seen {
		dict = append(dict, v)
	}
	sort.Strings(dict)
	ordOf := make(map[string]int32, len(dict))
	for i, v := range dict {
		ordOf[v] = int32(i)
	}

	size := 8
	for _, v := range dict {
		size += 4 + len(v)
	}
	size += int(b.maxDoc) * 4
	out := make([]byte, size)
	binary.LittleEndian.PutUint32(out[0:], uint32(len(dict)))
	binary.LittleEndian.PutUint32(out[4:], b.maxDoc)
	off := 8
	for _, v := range dict {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(v)))
		off += 4
		copy(out[off:], v)
		off += len(v)
	}
	for docID := uint32(0); docID < b.maxDoc; docID++ {
		ord := int32(-1)
		if v, ok := b.docs[docID]; ok {
			ord = ordOf[v]
		}
		binary.LittleEndian.PutUint32(out[off:], uint32(ord))
		off += 4
	}
	return out
}
