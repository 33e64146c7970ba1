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

package main

import (
	"fmt"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/date"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/indexer"
	"github.com/paradedb/paradedb-go/query"
)

// rowResolver implements customscan.HeapFetcher and customscan.VisibilityMap
// for this command line tool, which has no separate Postgres heap or
// buffer manager: a matched document's "row" is simply its schema fields
// read back from fast-field columns, and every live document is visible
// to every reader (there is no MVCC snapshot concept below the catalog
// here). It is built once per command from every segment visible under
// snap.
type rowResolver struct {
	schema query.Schema
	docs   map[uint64]docRef
}

type docRef struct {
	segment *segEntry
	doc     uint32
}

type segEntry struct {
	entry *catalog.SegmentMetaEntry
	dir   *dirfs.Dir
	cols  map[string]fastfield.Column
}

func (s *segEntry) column(field string, kind fastfield.Kind) (fastfield.Column, error) {
	if c, ok := s.cols[field]; ok {
		return c, nil
	}
	raw, err := s.dir.AtomicRead(dirfs.FileID{SegmentID: s.entry.SegmentID, Kind: catalog.ComponentKind(field)})
	if err != nil {
		return nil, err
	}
	c, err := fastfield.Open(kind, raw)
	if err != nil {
		return nil, err
	}
	s.cols[field] = c
	return c, nil
}

// newRowResolver scans every segment visible under snap once, mapping
// every live ctid back to the segment and document id that produced it.
func newRowResolver(cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, schema query.Schema) (*rowResolver, error) {
	r := &rowResolver{schema: schema, docs: make(map[uint64]docRef)}
	var entries []*catalog.SegmentMetaEntry
	err := cat.Visible(snap, func(e *catalog.SegmentMetaEntry) bool {
		entries = append(entries, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		se := &segEntry{entry: e, dir: dir, cols: make(map[string]fastfield.Column)}
		ctidCol, err := se.column(indexer.CtidField, fastfield.KindU64)
		if err != nil {
			return nil, fmt.Errorf("pdb: reading ctid column for segment %s: %w", e.SegmentID, err)
		}
		for doc := uint32(0); doc < e.MaxDoc; doc++ {
			if e.Deletes != nil && e.Deletes.Contains(doc) {
				continue
			}
			ctid, ok := ctidCol.AsU64(doc)
			if !ok {
				continue
			}
			r.docs[ctid] = docRef{segment: se, doc: doc}
		}
	}
	return r, nil
}

// Fetch implements customscan.HeapFetcher.
func (r *rowResolver) Fetch(ctid uint64) (map[string]any, bool, error) {
	ref, ok := r.docs[ctid]
	if !ok {
		return nil, false, nil
	}
	row := make(map[string]any, len(r.schema))
	for field, info := range r.schema {
		if !info.FastField {
			continue
		}
		col, err := ref.segment.column(field, info.Type)
		if err != nil {
			return nil, false, err
		}
		if info.Type == fastfield.KindRange {
			if rv, ok := col.Range(ref.doc); ok {
				row[field] = rangeToAny(rv)
			}
			continue
		}
		v := col.Value(ref.doc)
		if !v.Valid {
			continue
		}
		row[field] = taggedToAny(v)
	}
	return row, true, nil
}

// BlockAllVisible implements customscan.VisibilityMap. This tool has no
// real buffer manager behind it, so no block is ever reported all-visible
// up front: every tuple still goes through IsVisible, which is cheap here
// (a map lookup) and keeps the fast-field/index-only exec paths honest
// about exercising the liveness check.
func (r *rowResolver) BlockAllVisible(block uint32) (bool, error) { return false, nil }

// IsVisible implements customscan.VisibilityMap.
func (r *rowResolver) IsVisible(ctid uint64) (bool, error) {
	_, ok := r.docs[ctid]
	return ok, nil
}

func taggedToAny(v fastfield.TaggedValue) any {
	switch v.Kind {
	case fastfield.KindText:
		return v.Text
	case fastfield.KindI64:
		return v.I64
	case fastfield.KindU64:
		return v.U64
	case fastfield.KindDate:
		return string(date.Unix(int64(v.U64), 0).AppendRFC3339(nil))
	case fastfield.KindF64:
		return v.F64
	case fastfield.KindBool:
		return v.Bool
	default:
		return nil
	}
}

// rangeToAny renders a range column value the way a JSON response shows
// it: omitted bound fields mean unbounded, matching a Postgres range
// literal's own "[,10)" unbounded-lower shorthand.
func rangeToAny(rv fastfield.RangeValue) map[string]any {
	out := make(map[string]any, 4)
	if rv.LowerSet {
		out["lower"] = rv.LowerValue
		out["lower_inclusive"] = rv.LowerInclusive
	}
	if rv.UpperSet {
		out["upper"] = rv.UpperValue
		out["upper_inclusive"] = rv.UpperInclusive
	}
	return out
}
