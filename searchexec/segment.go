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

package searchexec

import (
	"fmt"
	"sync"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/indexer"
)

// segmentReader lazily opens a segment's postings and fast-field columns
// on first reference, and caches them for the lifetime of one search.
type segmentReader struct {
	entry *catalog.SegmentMetaEntry
	dir   *dirfs.Dir

	mu       sync.Mutex
	postings map[string]*indexer.PostingsReader
	columns  map[string]fastfield.Column
	ctid     fastfield.Column
}

func newSegmentReader(entry *catalog.SegmentMetaEntry, dir *dirfs.Dir) *segmentReader {
	return &segmentReader{
		entry:    entry,
		dir:      dir,
		postings: make(map[string]*indexer.PostingsReader),
		columns:  make(map[string]fastfield.Column),
	}
}

func (s *segmentReader) numDocs() uint32 { return s.entry.MaxDoc }

func (s *segmentReader) isLive(docID uint32) bool {
	return s.entry.Deletes == nil || !s.entry.Deletes.Contains(docID)
}

func (s *segmentReader) ctidColumn() (fastfield.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctid != nil {
		return s.ctid, nil
	}
	comp, ok := s.entry.Component(catalog.ComponentKind(indexer.CtidField))
	if !ok {
		return nil, fmt.Errorf("searchexec: segment %s has no ctid fast field", s.entry.SegmentID)
	}
	raw, err := s.dir.AtomicRead(dirfs.FileID{SegmentID: s.entry.SegmentID, Kind: comp.Kind})
	if err != nil {
		return nil, err
	}
	col, err := fastfield.Open(fastfield.KindU64, raw)
	if err != nil {
		return nil, err
	}
	s.ctid = col
	return col, nil
}

// column opens field's fast-field column, caching it across calls within
// one search.
func (s *segmentReader) column(field string, kind fastfield.Kind) (fastfield.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.columns[field]; ok {
		return c, nil
	}
	comp, ok := s.entry.Component(catalog.ComponentKind(field))
	if !ok {
		return nil, &fastfield.ErrNotFastField{Field: field}
	}
	raw, err := s.dir.AtomicRead(dirfs.FileID{SegmentID: s.entry.SegmentID, Kind: comp.Kind})
	if err != nil {
		return nil, err
	}
	col, err := fastfield.Open(kind, raw)
	if err != nil {
		return nil, err
	}
	s.columns[field] = col
	return col, nil
}

// postingsFor opens field's inverted index, caching it across calls
// within one search. A field with no postings component (a pure fast
// field never indexed for text search) reports ok=false.
func (s *segmentReader) postingsFor(field string) (*indexer.PostingsReader, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.postings[field]; ok {
		return p, true, nil
	}
	comp, ok := s.entry.Component(catalog.ComponentKind(indexer.KindPostings + field))
	if !ok {
		return nil, false, nil
	}
	raw, err := s.dir.AtomicRead(dirfs.FileID{SegmentID: s.entry.SegmentID, Kind: comp.Kind})
	if err != nil {
		return nil, false, err
	}
	pr, err := indexer.OpenPostings(raw)
	if err != nil {
		return nil, false, err
	}
	s.postings[field] = pr
	return pr, true, nil
}

// ctidOf resolves a document's Postgres tuple id, skipping (ok=false)
// documents whose ctid is absent, per the corrupt-or-unstored-entry rule.
func (s *segmentReader) ctidOf(docID uint32) (uint64, bool, error) {
	col, err := s.ctidColumn()
	if err != nil {
		return 0, false, err
	}
	v, ok := col.AsU64(docID)
	return v, ok, nil
}

// segmentsFor lists every segment visible under snap, newest-insert-order
// (catalog order), paired with a dirfs.Dir bound to the same snapshot.
func segmentsFor(cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot) ([]*segmentReader, error) {
	var out []*segmentReader
	err := cat.Visible(snap, func(e *catalog.SegmentMetaEntry) bool {
		out = append(out, newSegmentReader(e, dir))
		return true
	})
	return out, err
}
