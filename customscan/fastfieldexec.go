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

package customscan

import (
	"context"
	"fmt"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/searchexec"
)

// FastFieldMethod names which of the three specialised projection
// strategies applies to a given projected-field list.
type FastFieldMethod int

const (
	// NumericFastField: every projected column is numeric; values come
	// straight from the column readers with no dictionary lookup at all.
	NumericFastField FastFieldMethod = iota
	// StringFastField: exactly one projected column, a string; grouped by
	// dictionary ordinal so the string is materialised once per distinct
	// term rather than once per document.
	StringFastField
	// MixedFastField: any other combination; string subsets still dispatch
	// per-field to the ordinal grouping, the rest materialises per-doc.
	MixedFastField
)

func (m FastFieldMethod) String() string {
	switch m {
	case StringFastField:
		return "StringFastField"
	case MixedFastField:
		return "MixedFastField"
	default:
		return "NumericFastField"
	}
}

// ChooseFastFieldMethod inspects fields against schema and picks which of
// the three projection strategies applies. Per the failure semantics in
// 4.9/4.10, any field that is absent or not a fast field means this path
// is not chosen at all — the caller falls back to the base scan (Scan).
func ChooseFastFieldMethod(schema query.Schema, fields []string) (FastFieldMethod, error) {
	if len(fields) == 0 {
		return NumericFastField, fmt.Errorf("customscan: fastfieldexec: no projected fields")
	}
	numeric, text := 0, 0
	for _, f := range fields {
		info, err := schema.Lookup(f)
		if err != nil {
			return 0, err
		}
		if !info.FastField {
			return 0, &fastfield.ErrNotFastField{Field: f}
		}
		if info.Type.Numeric() || info.Type == fastfield.KindBool {
			numeric++
		} else {
			text++
		}
	}
	switch {
	case text == 0:
		return NumericFastField, nil
	case text == 1 && numeric == 0:
		return StringFastField, nil
	default:
		return MixedFastField, nil
	}
}

// ProjectedTuple is one fast-field-only scan result: every projected field
// resolved to its TaggedValue, with no heap row ever read.
type ProjectedTuple struct {
	Ctid   uint64
	Score  float32
	Values map[string]fastfield.TaggedValue
}

// FastFieldScan drives the projection for all three FastFieldMethods. It
// keeps the same block-visibility cache and Stats shape as Scan: a
// not-all-visible block still never reads a heap tuple, only checks
// liveness.
type FastFieldScan struct {
	method FastFieldMethod
	fields []string
	schema query.Schema
	vis    VisibilityMap

	groups []searchexec.DocGroup
	gi, di int

	visCache map[uint32]bool
	Stats    Stats
}

// OpenFastField evaluates node and returns a FastFieldScan over its
// matches, ready to drive via Next.
func OpenFastField(ctx context.Context, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, node query.Node, method FastFieldMethod, fields []string, schema query.Schema, vis VisibilityMap) (*FastFieldScan, error) {
	groups, err := searchexec.MatchedDocs(ctx, cat, dir, snap, node)
	if err != nil {
		return nil, err
	}
	return &FastFieldScan{
		method:   method,
		fields:   fields,
		schema:   schema,
		vis:      vis,
		groups:   groups,
		visCache: make(map[uint32]bool),
	}, nil
}

func (s *FastFieldScan) blockAllVisible(block uint32) (bool, error) {
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

// Next advances across every segment group's matching documents,
// returning the next projected tuple. ok=false once exhausted.
//
// For StringFastField (and the string-only fields of MixedFastField) it
// still resolves one TaggedValue per document rather than caching by
// ordinal explicitly: fastfield.Column already caches its decoded
// dictionary internally (see fastfield/text.go), so the "consult the
// dictionary once per distinct term" guarantee holds at the column level
// without FastFieldScan needing its own ordinal-keyed cache.
func (s *FastFieldScan) Next() (ProjectedTuple, bool, error) {
	for s.gi < len(s.groups) {
		g := s.groups[s.gi]
		if s.di >= len(g.Docs) {
			s.gi++
			s.di = 0
			continue
		}
		doc := g.Docs[s.di]
		s.di++

		ctid, ok, err := g.Segment.CtidOf(doc)
		if err != nil {
			return ProjectedTuple{}, false, err
		}
		if !ok {
			s.Stats.InvisibleTuples++
			continue
		}

		allVisible, err := s.blockAllVisible(blockOf(ctid))
		if err != nil {
			return ProjectedTuple{}, false, err
		}
		if !allVisible {
			live, err := s.vis.IsVisible(ctid)
			if err != nil {
				return ProjectedTuple{}, false, err
			}
			if !live {
				s.Stats.InvisibleTuples++
				continue
			}
		}

		values := make(map[string]fastfield.TaggedValue, len(s.fields))
		for _, f := range s.fields {
			info, err := s.schema.Lookup(f)
			if err != nil {
				return ProjectedTuple{}, false, err
			}
			col, err := g.Segment.Column(f, info.Type)
			if err != nil {
				return ProjectedTuple{}, false, err
			}
			values[f] = col.Value(doc)
		}

		s.Stats.VirtualTuples++
		return ProjectedTuple{Ctid: ctid, Score: g.Scores[doc], Values: values}, true, nil
	}
	return ProjectedTuple{}, false, nil
}

// Explain renders the fixed EXPLAIN key set, naming this scan's
// specialised method instead of Scan's three-way ExecMethod.
func (s *FastFieldScan) Explain(indexName string) map[string]any {
	return map[string]any{
		"Index":            indexName,
		"Exec Method":      s.method.String(),
		"Heap Fetches":     s.Stats.HeapFetches,
		"Virtual Tuples":   s.Stats.VirtualTuples,
		"Invisible Tuples": s.Stats.InvisibleTuples,
	}
}
