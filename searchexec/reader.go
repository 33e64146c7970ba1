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
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/heap"
	"github.com/paradedb/paradedb-go/paradelog"
	"github.com/paradedb/paradedb-go/query"
)

// segmentHit pairs a Hit with the segment it came from, needed only
// while the full-features mode still has to resolve OrderByField.
type segmentHit struct {
	Hit
	seg *segmentReader
	doc uint32
}

// perSegment evaluates node against seg, turning its scored map into
// Hits with resolved ctids; documents with no ctid are skipped and
// logged, matching the corrupt-or-unstored-entry rule.
func perSegment(log paradelog.Logger, seg *segmentReader, node query.Node) ([]segmentHit, error) {
	m, err := evaluate(seg, node)
	if err != nil {
		return nil, err
	}
	out := make([]segmentHit, 0, len(m))
	for doc, score := range m {
		if !seg.isLive(doc) {
			continue
		}
		ctid, ok, err := seg.ctidOf(doc)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warnw("search: document has no ctid, skipping", "segment", seg.entry.SegmentID, "doc", doc)
			continue
		}
		out = append(out, segmentHit{Hit: Hit{Score: score, Ctid: ctid}, seg: seg, doc: doc})
	}
	return out, nil
}

// Search runs node against every segment cat makes visible under snap and
// returns hits per p's resolved mode. ctx cancellation stops the scan
// between segments (batches already in flight still complete); the
// channel-mode description in spec terms maps to ctx cancellation here,
// since this port returns a slice rather than a live channel to match
// the host's synchronous custom-scan exec callback shape.
func Search(ctx context.Context, log paradelog.Logger, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node, p Params) ([]Hit, error) {
	switch p.resolveMode() {
	case ModeCountOnly:
		return countOnly(cat, dir, snap, node)
	case ModeTopN:
		return searchTopN(ctx, log, cat, dir, snap, node, p)
	case ModeFullFeatures:
		return searchFullFeatures(ctx, log, cat, dir, snap, node, p)
	default:
		return searchUnordered(ctx, log, cat, dir, snap, node)
	}
}

// searchUnordered collects every match from every segment in parallel,
// with no ordering guarantee, mirroring the teacher's worker-pool
// fan-out (plan/exec.go's mkpool/mkexec) rather than a single serial
// scan.
func searchUnordered(ctx context.Context, log paradelog.Logger, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node) ([]Hit, error) {
	segs, err := segmentsFor(cat, dir, snap)
	if err != nil {
		return nil, err
	}
	return fanOutHits(ctx, log, segs, node)
}

// searchTopN keeps only the best Limit hits, using the teacher's generic
// heap package as a bounded min-heap (worst-of-the-best at the root, so a
// new candidate only displaces it when strictly better).
func searchTopN(ctx context.Context, log paradelog.Logger, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node, p Params) ([]Hit, error) {
	segs, err := segmentsFor(cat, dir, snap)
	if err != nil {
		return nil, err
	}
	less := scoreLess(p.Descending)

	var mu sync.Mutex
	var top []Hit
	collect := func(hits []segmentHit) {
		mu.Lock()
		defer mu.Unlock()
		for _, h := range hits {
			heap.Bound(&top, h.Hit, p.Limit, less)
		}
	}
	if _, err := fanOutCollect(ctx, log, segs, node, collect); err != nil {
		return nil, err
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].Score != top[j].Score {
			return !less(top[i], top[j])
		}
		return top[i].Ctid < top[j].Ctid
	})
	return top, nil
}

// scoreLess orders Hits by ascending score (or descending if desc is
// true), matching a min-heap's "smallest first" convention so the worst
// current top-N candidate always sits at the heap root.
func scoreLess(desc bool) func(a, b Hit) bool {
	if desc {
		return func(a, b Hit) bool { return a.Score > b.Score }
	}
	return func(a, b Hit) bool { return a.Score < b.Score }
}

// searchFullFeatures supports Offset, an ORDER BY fast field, and Limit
// together: it gathers every match (resolving OrderByField's key when
// requested), sorts once, then slices [Offset, Offset+Limit).
func searchFullFeatures(ctx context.Context, log paradelog.Logger, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node, p Params) ([]Hit, error) {
	segs, err := segmentsFor(cat, dir, snap)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var all []segmentHit
	collect := func(hits []segmentHit) {
		mu.Lock()
		defer mu.Unlock()
		all = append(all, hits...)
	}
	if _, err := fanOutCollect(ctx, log, segs, node, collect); err != nil {
		return nil, err
	}

	if p.OrderByField != "" {
		for i := range all {
			col, err := all[i].seg.column(p.OrderByField, p.OrderByKind)
			if err != nil {
				return nil, fmt.Errorf("searchexec: resolving ORDER BY field %q: %w", p.OrderByField, err)
			}
			all[i].Key = col.Value(all[i].doc)
		}
		sort.Slice(all, func(i, j int) bool { return orderByLess(all[i].Key, all[j].Key, p.Descending) })
	} else {
		less := scoreLess(p.Descending)
		sort.Slice(all, func(i, j int) bool {
			if all[i].Score != all[j].Score {
				return !less(all[i].Hit, all[j].Hit)
			}
			return all[i].Ctid < all[j].Ctid
		})
	}

	lo := p.Offset
	if lo > len(all) {
		lo = len(all)
	}
	hi := len(all)
	if p.Limit > 0 && lo+p.Limit < hi {
		hi = lo + p.Limit
	}
	out := make([]Hit, hi-lo)
	for i := range out {
		out[i] = all[lo+i].Hit
	}
	return out, nil
}

func orderByLess(a, b fastfield.TaggedValue, desc bool) bool {
	less := compareTagged(a, b) < 0
	if desc {
		return !less
	}
	return less
}

// compareTagged orders two TaggedValues of the same Kind, returning
// <0/0/>0 like bytes.Compare. An invalid value sorts before a valid one,
// matching SQL's NULLS FIRST-by-default ordering rather than ParadeDB's
// NULL-sentinel-value convention (aggregate.go uses sentinels instead,
// since NULL ordering and NULL grouping are different concerns there).
func compareTagged(a, b fastfield.TaggedValue) int {
	if a.Valid != b.Valid {
		if !a.Valid {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case fastfield.KindI64:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	case fastfield.KindU64, fastfield.KindDate:
		switch {
		case a.U64 < b.U64:
			return -1
		case a.U64 > b.U64:
			return 1
		default:
			return 0
		}
	case fastfield.KindF64:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		default:
			return 0
		}
	case fastfield.KindBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case fastfield.KindText:
		switch {
		case a.Text < b.Text:
			return -1
		case a.Text > b.Text:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// countOnly estimates the total match count without fully scanning
// every segment: it exactly scores the largest segment, then
// extrapolates by its fraction of the total document count, for planner
// cost estimation rather than an exact COUNT.
func countOnly(cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node) ([]Hit, error) {
	segs, err := segmentsFor(cat, dir, snap)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, nil
	}
	var totalDocs, largest uint32
	var biggest *segmentReader
	for _, s := range segs {
		totalDocs += s.numDocs()
		if s.numDocs() >= largest {
			largest = s.numDocs()
			biggest = s
		}
	}
	if largest == 0 {
		return nil, nil
	}
	m, err := evaluate(biggest, node)
	if err != nil {
		return nil, err
	}
	frac := float64(len(m)) / float64(largest)
	estimate := int(frac * float64(totalDocs))
	out := make([]Hit, estimate)
	return out, nil
}

// fanOutHits runs perSegment for every segment concurrently and
// concatenates the results; it is searchUnordered's collector with no
// additional bookkeeping.
func fanOutHits(ctx context.Context, log paradelog.Logger, segs []*segmentReader, node query.Node) ([]Hit, error) {
	var mu sync.Mutex
	var out []Hit
	_, err := fanOutCollect(ctx, log, segs, node, func(hits []segmentHit) {
		mu.Lock()
		defer mu.Unlock()
		for _, h := range hits {
			out = append(out, h.Hit)
		}
	})
	return out, err
}

// fanOutCollect runs perSegment across segs with parallelism bounded by
// runtime.NumCPU(), calling collect with each segment's hits as it finishes.
// It stops launching new segments once ctx is cancelled, matching the
// channel-close-on-cancellation rule, though in-flight segments still
// complete so collect never races with fanOutCollect's own return.
func fanOutCollect(ctx context.Context, log paradelog.Logger, segs []*segmentReader, node query.Node, collect func([]segmentHit)) (int, error) {
	parallel := runtime.NumCPU()
	if parallel > len(segs) {
		parallel = len(segs)
	}
	if parallel == 0 {
		return 0, nil
	}

	work := make(chan *segmentReader)
	errs := make(chan error, parallel)
	var wg sync.WaitGroup
	wg.Add(parallel)
	for i := 0; i < parallel; i++ {
		go func() {
			defer wg.Done()
			for seg := range work {
				hits, err := perSegment(log, seg, node)
				if err != nil {
					errs <- err
					return
				}
				collect(hits)
			}
		}()
	}
	go func() {
		defer close(work)
		for _, s := range segs {
			select {
			case <-ctx.Done():
				return
			case work <- s:
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return 0, err
		}
	}
	return len(segs), ctx.Err()
}
