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

	"github.com/dchest/siphash"
)

// textColumn is a string fast field: an ordinal dictionary (sorted,
// deduplicated terms) plus a per-doc term-ord column ("Fast
// field: String").
type textColumn struct {
	dict    []string // ord -> term, lexicographically sorted
	byHash  map[uint64][]int32
	ords    []int32 // docID -> ord, -1 if absent
	numDocs uint32
}

// dictHashKey hashes s with a fixed key so that term lookups (Column.Term,
// resolving a term to an ordinal without a full dictionary scan) are O(1)
// rather than O(log n) string compares. No other package calls
// Column.Term; customscan resolves values per document through
// Column.Value.
var dictHashKey0, dictHashKey1 uint64 = 0x706172616465, 0x6462323525 // arbitrary fixed keys

func hashTerm(s string) uint64 {
	return siphash.Hash(dictHashKey0, dictHashKey1, []byte(s))
}

func openText(raw []byte) (Column, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("fastfield: truncated text column header")
	}
	nTerms := binary.LittleEndian.Uint32(raw[0:])
	nDocs := binary.LittleEndian.Uint32(raw[4:])
	off := 8
	dict := make([]string, nTerms)
	byHash := make(map[uint64][]int32, nTerms)
	for i := range dict {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("fastfield: truncated text dictionary")
		}
		l := binary.LittleEndian.Uint32(raw[off:])
		off += 4
		if off+int(l) > len(raw) {
			return nil, fmt.Errorf("fastfield: truncated text dictionary term")
		}
		term := string(raw[off : off+int(l)])
		off += int(l)
		dict[i] = term
		h := hashTerm(term)
		byHash[h] = append(byHash[h], int32(i))
	}
	ords := make([]int32, nDocs)
	for i := range ords {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("fastfield: truncated text ord column")
		}
		ords[i] = int32(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}
	return &textColumn{dict: dict, byHash: byHash, ords: ords, numDocs: nDocs}, nil
}

func (c *textColumn) Kind() Kind      { return KindText }
func (c *textColumn) NumDocs() uint32 { return c.numDocs }

func (c *textColumn) Value(docID uint32) TaggedValue {
	if docID >= c.numDocs || c.ords[docID] < 0 {
		return TaggedValue{Kind: KindText}
	}
	return TaggedValue{Kind: KindText, Text: c.dict[c.ords[docID]], Valid: true}
}

func (c *textColumn) Ord(docID uint32) (uint64, bool) {
	if docID >= c.numDocs || c.ords[docID] < 0 {
		return 0, false
	}
	return uint64(c.ords[docID]), true
}

func (c *textColumn) AsU64(uint32) (uint64, bool) { return 0, false }

func (c *textColumn) Range(uint32) (RangeValue, bool) { return RangeValue{}, false }

// Term resolves a term to its dictionary ordinal, or ok=false if the term
// never occurs in this segment.
func (c *textColumn) Term(term string) (int32, bool) {
	for _, ord := range c.byHash[hashTerm(term)] {
		if c.dict[ord] == term {
			return ord, true
		}
	}
	return 0, false
}

// TermAt returns the dictionary term for ord.
func (c *textColumn) TermAt(ord int32) string { return c.dict[ord] }

// NumTerms reports the dictionary size.
func (c *textColumn) NumTerms() int { return len(c.dict) }
