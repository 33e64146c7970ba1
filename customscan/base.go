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

// Package customscan drives the base, aggregate, and fast-field-only scan
// exec methods on top of searchexec: it turns a scored, segment-parallel
// hit list into the row-at-a-time (or group-at-a-time) protocol the host's
// custom-scan node expects, tracking the heap-fetch/visibility counters
// EXPLAIN reports.
package customscan

import (
	"context"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/paradelog"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/searchexec"
)

// ExecMethod selects how Scan materialises a matched document.
type ExecMethod int

const (
	// ExecMethodNormal fetches the row from the heap by ctid.
	ExecMethodNormal ExecMethod = iota
	// ExecMethodFastField projects directly from fast-field columns; no
	// heap fetch, only a liveness check on non-all-visible blocks.
	ExecMethodFastField
	// ExecMethodIndexOnly needs only ctid and score.
	ExecMethodIndexOnly
)

func (m ExecMethod) String() string {
	switch m {
	case ExecMethodFastField:
		return "FastField"
	case ExecMethodIndexOnly:
		return "IndexOnly"
	default:
		return "Normal"
	}
}

// HeapFetcher resolves a ctid to its row contents under the scan's
// snapshot, for ExecMethodNormal. ok=false means the tuple is dead: the
// caller skips it without emitting.
type HeapFetcher interface {
	Fetch(ctid uint64) (row map[string]any, ok bool, err error)
}

// VisibilityMap answers the two questions the base scan needs of the
// host's visibility machinery without ever reading a tuple's contents.
type VisibilityMap interface {
	// BlockAllVisible reports whether every tuple on block is visible to
	// every snapshot, letting Scan skip a per-tuple check entirely.
	BlockAllVisible(block uint32) (bool, error)
	// IsVisible checks one ctid's liveness under the scan's snapshot; used
	// only when its block is not all-visible and no row content is needed.
	IsVisible(ctid uint64) (bool, error)
}

// blockOf extracts a block number from a packed ctid. ctid packs a
// Postgres-style (BlockNumber, OffsetNumber) pair into 64 bits: block in
// the high bits, offset in the low 16 — mirroring ItemPointerData.
func blockOf(ctid uint64) uint32 { return uint32(ctid >> 16) }

// Tuple is one emitted scan result. Row is nil under ExecMethodFastField
// and ExecMethodIndexOnly, whose callers materialise output columns from
// fast-field readers (or from ctid/score alone) instead.
type Tuple struct {
	Ctid  uint64
	Score float32
	Row   map[string]any
}

// Stats accumulates the counters the host's EXPLAIN hooks read back.
type Stats struct {
	HeapFetches      int
	VirtualTuples    int
	InvisibleTuples  int
	VisibilityChecks int
}

// Scan drives the per-tuple state machine over a pre-scored hit list:
// NeedRow -> Scored(ctid, score) -> {AllVisible -> Virtual tuple} |
// {NotAllVisible -> VisibilityCheck -> Emit|Skip}.
type Scan struct {
	hits   []searchexec.Hit
	idx    int
	method ExecMethod
	fetch  HeapFetcher
	vis    VisibilityMap

	visCache map[uint32]bool
	Stats    Stats
}

// NewScan wraps an already-scored hit list (as returned by
// searchexec.Search) in the base scan's per-tuple state machine.
func NewScan(hits []searchexec.Hit, method ExecMethod, fetch HeapFetcher, vis VisibilityMap) *Scan {
	return &Scan{
		hits:     hits,
		method:   method,
		fetch:    fetch,
		vis:      vis,
		visCache: make(map[uint32]bool),
	}
}

// Open runs node against the index and returns a Scan ready to drive via
// Next, propagating limit/offset/orderBy into the search mode selection
// the way a host plan node would.
func Open(
	ctx context.Context,
	log paradelog.Logger,
	cat *catalog.Catalog,
	dir *dirfs.Dir,
	snap catalog.Snapshot,
	node query.Node,
	method ExecMethod,
	fetch HeapFetcher,
	vis VisibilityMap,
	params searchexec.Params,
) (*Scan, error) {
	hits, err := searchexec.Search(ctx, log, cat, dir, snap, node, params)
	if err != nil {
		return nil, err
	}
	return NewScan(hits, method, fetch, vis), nil
}

func (s *Scan) blockAllVisible(block uint32) (bool, error) {
	if v, ok := s.visCache[block]; ok {
		return v, nil
	}
	v, err := s.vis.BlockAllVisible(block)
	if err != nil {
		return false, err
	}
	s.visCache[block] = v
	s.Stats.VisibilityChecks++
	return v, nil
}

// Next advances the state machine and returns the next emitted tuple.
// ok=false once every scored hit has been consumed.
func (s *Scan) Next() (Tuple, bool, error) {
	for s.idx < len(s.hits) {
		hit := s.hits[s.idx]
		s.idx++

		if s.method == ExecMethodNormal {
			row, ok, err := s.fetch.Fetch(hit.Ctid)
			if err != nil {
				return Tuple{}, false, err
			}
			s.Stats.HeapFetches++
			if !ok {
				s.Stats.InvisibleTuples++
				continue
			}
			return Tuple{Ctid: hit.Ctid, Score: hit.Score, Row: row}, true, nil
		}

		allVisible, err := s.blockAllVisible(blockOf(hit.Ctid))
		if err != nil {
			return Tuple{}, false, err
		}
		if !allVisible {
			live, err := s.vis.IsVisible(hit.Ctid)
			if err != nil {
				return Tuple{}, false, err
			}
			if !live {
				s.Stats.InvisibleTuples++
				continue
			}
		}
		s.Stats.VirtualTuples++
		return Tuple{Ctid: hit.Ctid, Score: hit.Score}, true, nil
	}
	return Tuple{}, false, nil
}

// ChooseMethod picks the exec method a plan can use for a query whose
// output needs neededFields (empty when the plan projects no columns at
// all, i.e. an EXISTS-style check). A field absent from the schema, or
// present but not a fast field, forces ExecMethodNormal: the failure
// semantics are "fall back to the base scan", never an error.
func ChooseMethod(schema query.Schema, neededFields []string) ExecMethod {
	if len(neededFields) == 0 {
		return ExecMethodIndexOnly
	}
	for _, f := range neededFields {
		info, err := schema.Lookup(f)
		if err != nil || !info.FastField {
			return ExecMethodNormal
		}
	}
	return ExecMethodFastField
}

// Explain renders the fixed key set every custom scan contributes to
// EXPLAIN output.
func (s *Scan) Explain(indexName string) map[string]any {
	return map[string]any{
		"Index":            indexName,
		"Exec Method":      s.method.String(),
		"Heap Fetches":     s.Stats.HeapFetches,
		"Virtual Tuples":   s.Stats.VirtualTuples,
		"Invisible Tuples": s.Stats.InvisibleTuples,
	}
}
