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
	"context"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/query"
)

// SegmentHandle is the fast-field-only view of a segment exposed to
// callers (customscan's aggregate and fast-field exec paths) that never
// need ctid/heap resolution, only column access for already-matched
// documents.
type SegmentHandle struct{ seg *segmentReader }

// Column opens field's fast-field column within this segment.
func (h *SegmentHandle) Column(field string, kind fastfield.Kind) (fastfield.Column, error) {
	return h.seg.column(field, kind)
}

// NumDocs is the segment's document-id domain, [0, NumDocs).
func (h *SegmentHandle) NumDocs() uint32 { return h.seg.numDocs() }

// CtidOf resolves a document's host tuple id, the same way Search does,
// for callers (fast-field-only projection) that bypass Search entirely.
func (h *SegmentHandle) CtidOf(doc uint32) (uint64, bool, error) { return h.seg.ctidOf(doc) }

// DocGroup is one segment's matching, live document ids for a query,
// alongside each document's score (for callers that still want to rank or
// weight results without going through the ctid-resolving Search path).
type DocGroup struct {
	Segment *SegmentHandle
	Docs    []uint32
	Scores  map[uint32]float32
}

// MatchedDocs evaluates node against every segment cat makes visible
// under snap and returns each segment's matching live document ids,
// without resolving ctid. It is the entry point for aggregate
// push-down (M9) and fast-field-only exec (M10), which project
// directly from fast-field columns and never touch the heap.
func MatchedDocs(ctx context.Context, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node) ([]DocGroup, error) {
	segs, err := segmentsFor(cat, dir, snap)
	if err != nil {
		return nil, err
	}
	out := make([]DocGroup, 0, len(segs))
	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := evaluate(seg, node)
		if err != nil {
			return nil, err
		}
		docs := make([]uint32, 0, len(m))
		scores := make(map[uint32]float32, len(m))
		for d, sc := range m {
			if seg.isLive(d) {
				docs = append(docs, d)
				scores[d] = sc
			}
		}
		if len(docs) == 0 {
			continue
		}
		out = append(out, DocGroup{Segment: &SegmentHandle{seg: seg}, Docs: docs, Scores: scores})
	}
	return out, nil
}
