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
	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/query"
)

// DefaultFlushThreshold bounds how many rows an IncrementalWriter buffers
// before it flushes a new segment, so a long-running statement's memory
// use does not grow unbounded.
const DefaultFlushThreshold = 100_000

// IncrementalWriter buffers INSERT/UPDATE rows for one write transaction
// and flushes them as new segments, either when the buffer fills or when
// the caller explicitly commits.
type IncrementalWriter struct {
	schema    query.Schema
	dir       *dirfs.Dir
	cat       *catalog.Catalog
	xid       catalog.Xid
	threshold int

	cur *Builder
}

// NewIncrementalWriter starts a writer for one transaction xid.
func NewIncrementalWriter(schema query.Schema, dir *dirfs.Dir, cat *catalog.Catalog, xid catalog.Xid) *IncrementalWriter {
	return &IncrementalWriter{
		schema:    schema,
		dir:       dir,
		cat:       cat,
		xid:       xid,
		threshold: DefaultFlushThreshold,
		cur:       NewBuilder(schema),
	}
}

// Insert buffers row, flushing the current segment first if the buffer
// has reached its threshold.
func (w *IncrementalWriter) Insert(row Row) error {
	if int(w.cur.NumDocs()) >= w.threshold {
		if _, err := w.cur.Flush(w.dir, w.cat, w.xid); err != nil {
			return err
		}
		w.cur = NewBuilder(w.schema)
	}
	_, err := w.cur.Add(row)
	return err
}

// Commit flushes any buffered rows as a final segment. It is a no-op if
// nothing was buffered since the writer was created or last flushed.
func (w *IncrementalWriter) Commit() (*catalog.SegmentMetaEntry, error) {
	if w.cur.NumDocs() == 0 {
		return nil, nil
	}
	entry, err := w.cur.Flush(w.dir, w.cat, w.xid)
	if err != nil {
		return nil, err
	}
	w.cur = NewBuilder(w.schema)
	return entry, nil
}

// BulkBuild builds a single segment from rows in one pass, for CREATE
// INDEX / REINDEX. Unlike IncrementalWriter it does not threshold-flush:
// bulk build is expected to run with a dedicated work_mem budget sized
// for the whole table, and a host that cannot afford that should instead
// drive rows through an IncrementalWriter in batches.
func BulkBuild(schema query.Schema, dir *dirfs.Dir, cat *catalog.Catalog, xid catalog.Xid, rows []Row) (*catalog.SegmentMetaEntry, error) {
	b := NewBuilder(schema)
	for _, r := range rows {
		if _, err := b.Add(r); err != nil {
			return nil, err
		}
	}
	return b.Flush(dir, cat, xid)
}
