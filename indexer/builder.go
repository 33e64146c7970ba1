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
	"fmt"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/date"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/paradeerr"
	"github.com/paradedb/paradedb-go/query"
)

// KindPostings names a field's inverted-index component; the fast field
// component for the same field is named after the field directly.
const KindPostings = "postings:"

// CtidField is the reserved field name under which every row's Postgres
// tuple id is stored as a dense U64 fast field, so the search reader and
// customscan base exec can resolve a matched document back to a heap
// tuple without a second lookup.
const CtidField = "ctid"

// Row is one document's worth of field values for a segment build.
// Fields named in Schema as FastField=true get a NumericBuilder/
// TextBuilder entry; any field present in Text is tokenized into the
// postings index regardless of its fast-field status.
type Row struct {
	Ctid   uint64
	Fields map[string]fastfield.TaggedValue
	Text   map[string]string
}

// Builder accumulates rows for one segment build (bulk build or one
// incremental insert flush) and produces the component set a
// catalog.SegmentMetaEntry names.
type Builder struct {
	schema query.Schema
	nextID uint32

	numeric  map[string]*fastfield.NumericBuilder
	ranges   map[string]*fastfield.RangeBuilder
	text     map[string]*fastfield.TextBuilder
	postings map[string]*postingsBuilder
	ctid     *fastfield.NumericBuilder
}

// NewBuilder starts a segment build against schema.
func NewBuilder(schema query.Schema) *Builder {
	return &Builder{
		schema:   schema,
		numeric:  make(map[string]*fastfield.NumericBuilder),
		ranges:   make(map[string]*fastfield.RangeBuilder),
		text:     make(map[string]*fastfield.TextBuilder),
		postings: make(map[string]*postingsBuilder),
		ctid:     fastfield.NewNumericBuilder(fastfield.KindU64),
	}
}

// Add appends row to the segment and returns its assigned document id. It
// returns paradeerr.ErrKeyViolation without mutating the builder if the
// schema's key_field is NULL (absent from both row.Fields and row.Text).
func (b *Builder) Add(row Row) (uint32, error) {
	if kf := b.schema.KeyField(); kf != "" && !rowHasKey(row, kf) {
		return 0, fmt.Errorf("indexer: key_field %q is NULL: %w", kf, paradeerr.ErrKeyViolation)
	}

	docID := b.nextID
	b.nextID++

	b.ctid.SetU64(docID, row.Ctid)

	for field, v := range row.Fields {
		info, ok := b.schema[field]
		if !ok || !info.FastField {
			continue
		}
		if info.Type == fastfield.KindText {
			tb, ok := b.text[field]
			if !ok {
				tb = fastfield.NewTextBuilder()
				b.text[field] = tb
			}
			tb.Set(docID, v.Text)
			continue
		}
		if info.Type == fastfield.KindRange {
			rb, ok := b.ranges[field]
			if !ok {
				rb = fastfield.NewRangeBuilder()
				b.ranges[field] = rb
			}
			rb.Set(docID, v.Range)
			continue
		}
		nb, ok := b.numeric[field]
		if !ok {
			nb = fastfield.NewNumericBuilder(info.Type)
			b.numeric[field] = nb
		}
		switch info.Type {
		case fastfield.KindI64:
			nb.SetI64(docID, v.I64)
		case fastfield.KindU64, fastfield.KindDate:
			nb.SetU64(docID, v.U64)
		case fastfield.KindF64:
			nb.SetF64(docID, v.F64)
		case fastfield.KindBool:
			nb.SetBool(docID, v.Bool)
		}
	}

	for field, text := range row.Text {
		pb, ok := b.postings[field]
		if !ok {
			pb = newPostingsBuilder()
			b.postings[field] = pb
		}
		for _, tok := range Tokenize(text) {
			pb.add(tok, docID)
		}
	}

	return docID, nil
}

// rowHasKey reports whether row carries a non-NULL value for field, either
// as a valid tagged value or as tokenized text.
func rowHasKey(row Row, field string) bool {
	if v, ok := row.Fields[field]; ok {
		return v.Valid
	}
	if _, ok := row.Text[field]; ok {
		return true
	}
	return false
}

// NumDocs reports how many rows have been added so far.
func (b *Builder) NumDocs() uint32 { return b.nextID }

// Flush writes every accumulated component through dir, inserts the
// resulting SegmentMetaEntry into cat under xid, and returns it. The
// Builder must not be reused afterward.
func (b *Builder) Flush(dir *dirfs.Dir, cat *catalog.Catalog, xid catalog.Xid) (*catalog.SegmentMetaEntry, error) {
	entry := &catalog.SegmentMetaEntry{
		SegmentID: catalog.NewSegmentID(),
		Xmin:      xid,
		MaxDoc:    b.nextID,
		CreatedAt: date.Now(),
	}

	write := func(kind catalog.ComponentKind, raw []byte) error {
		w := dir.OpenWrite(dirfs.FileID{SegmentID: entry.SegmentID, Kind: kind})
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("indexer: writing component %s: %w", kind, err)
		}
		c, err := w.Sync()
		if err != nil {
			return fmt.Errorf("indexer: syncing component %s: %w", kind, err)
		}
		entry.Components = append(entry.Components, c)
		return nil
	}

	if err := write(catalog.ComponentKind(CtidField), b.ctid.Encode()); err != nil {
		return nil, err
	}
	for field, nb := range b.numeric {
		if err := write(catalog.ComponentKind(field), nb.Encode()); err != nil {
			return nil, err
		}
	}
	for field, tb := range b.text {
		if err := write(catalog.ComponentKind(field), tb.Encode()); err != nil {
			return nil, err
		}
	}
	for field, rb := range b.ranges {
		if err := write(catalog.ComponentKind(field), rb.Encode()); err != nil {
			return nil, err
		}
	}
	for field, pb := range b.postings {
		if err := write(catalog.ComponentKind(KindPostings+field), pb.encode()); err != nil {
			return nil, err
		}
	}

	for _, c := range entry.Components {
		entry.ByteSize += c.ByteSize
	}

	if err := cat.Insert([]*catalog.SegmentMetaEntry{entry}); err != nil {
		return nil, fmt.Errorf("indexer: inserting segment entry: %w", err)
	}
	return entry, nil
}
