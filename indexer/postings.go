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

package indexer

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/paradedb/paradedb-go/compr"
)

// postingsBuilder accumulates a term -> sorted doc id inverted index for
// one text field during a segment build.
type postingsBuilder struct {
	docs map[string][]uint32
}

func newPostingsBuilder() *postingsBuilder {
	return &postingsBuilder{docs: make(map[string][]uint32)}
}

// add records that docID contains term (already tokenized and normalized
// by the caller).
func (p *postingsBuilder) add(term string, docID uint32) {
	lst := p.docs[term]
	if n := len(lst); n > 0 && lst[n-1] == docID {
		return // repeated token in the same document within one call
	}
	p.docs[term] = append(lst, docID)
}

// encode writes the dictionary in sorted-term order, delta-encoding each
// term's doc id list (monotonically increasing, so small deltas), then
// compresses the whole payload with zstd. The compressed layout lets a
// large segment's postings spend disk space proportional to distinct
// (term, doc) pairs rather than to a dense term x doc matrix.
func (p *postingsBuilder) encode() []byte {
	terms := make([]string, 0, len(p.docs))
	for t := range p.docs {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var raw []byte
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(terms)))
	raw = append(raw, hdr[:]...)
	for _, term := range terms {
		list := p.docs[term]
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(term)))
		raw = append(raw, lenBuf[:]...)
		raw = append(raw, term...)

		var countBuf [4]byte
		binary.LittleEndian.PutUint32(countBuf[:], uint32(len(list)))
		raw = append(raw, countBuf[:]...)

		var prev uint32
		var varintBuf [binary.MaxVarintLen32]byte
		for _, doc := range list {
			delta := doc - prev
			prev = doc
			n := binary.PutUvarint(varintBuf[:], uint64(delta))
			raw = append(raw, varintBuf[:n]...)
		}
	}

	c := compr.Compression("zstd")
	compressed := c.Compress(raw, nil)

	out := make([]byte, 8, 8+len(compressed))
	binary.LittleEndian.PutUint64(out, uint64(len(raw)))
	return append(out, compressed...)
}

// PostingsReader is the read-side counterpart of postingsBuilder.
type PostingsReader struct {
	docs map[string][]uint32
}

// OpenPostings decompresses and parses raw, which must be the output of
// postingsBuilder.encode.
func OpenPostings(raw []byte) (*PostingsReader, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("indexer: truncated postings component")
	}
	plainSize := binary.LittleEndian.Uint64(raw[0:])
	d := compr.Decompression("zstd")
	plain := make([]byte, plainSize)
	if err := d.Decompress(raw[8:], plain); err != nil {
		return nil, fmt.Errorf("indexer: decompressing postings: %w", err)
	}

	if len(plain) < 4 {
		return nil, fmt.Errorf("indexer: truncated postings header")
	}
	nTerms := binary.LittleEndian.Uint32(plain[0:])
	off := 4
	docs := make(map[string][]uint32, nTerms)
	for i := uint32(0); i < nTerms; i++ {
		if off+4 > len(plain) {
			return nil, fmt.Errorf("indexer: truncated postings term length")
		}
		l := binary.LittleEndian.Uint32(plain[off:])
		off += 4
		if off+int(l) > len(plain) {
			return nil, fmt.Errorf("indexer: truncated postings term")
		}
		term := string(plain[off : off+int(l)])
		off += int(l)

		if off+4 > len(plain) {
			return nil, fmt.Errorf("indexer: truncated postings doc count")
		}
		count := binary.LittleEndian.Uint32(plain[off:])
		off += 4

		list := make([]uint32, count)
		var prev uint32
		for j := uint32(0); j < count; j++ {
			delta, n := binary.Uvarint(plain[off:])
			if n <= 0 {
				return nil, fmt.Errorf("indexer: corrupt postings varint")
			}
			off += n
			prev += uint32(delta)
			list[j] = prev
		}
		docs[term] = list
	}
	return &PostingsReader{docs: docs}, nil
}

// Docs returns the sorted document ids containing term.
func (r *PostingsReader) Docs(term string) []uint32 { return r.docs[term] }

// Terms exposes the full term -> doc id dictionary, for callers that must
// scan it (prefix, fuzzy, and regex matching). The returned map must not
// be mutated.
func (r *PostingsReader) Terms() map[string][]uint32 { return r.docs }
