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
	"testing"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/indexer"
	"github.com/paradedb/paradedb-go/paradelog"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/storage"
)

type memHeader struct{ blk storage.Blockno }

func (m *memHeader) Get() (storage.Blockno, error) { return m.blk, nil }
func (m *memHeader) Set(b storage.Blockno) error   { m.blk = b; return nil }

func newTestIndex(t *testing.T) (*catalog.Catalog, *dirfs.Dir, catalog.Snapshot) {
	t.Helper()
	pool, err := storage.NewPool(storage.NewMemBacking(), nil)
	if err != nil {
		t.Fatal(err)
	}
	fsm := storage.NewFreeSpaceMap(pool, storage.InvalidBlockno)
	list := storage.NewLinkedList(pool, fsm, &memHeader{blk: storage.InvalidBlockno})
	cat := catalog.New(list)
	snap := catalog.Snapshot{XminHorizon: ^catalog.Xid(0)}
	dir := dirfs.New(pool, fsm, cat, snap)

	schema := query.Schema{
		"title": {Type: fastfield.KindText, FastField: true},
		"price": {Type: fastfield.KindF64, FastField: true},
	}
	rows := []indexer.Row{
		{Ctid: 1, Text: map[string]string{"title": "the quick brown fox"}, Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 10, Valid: true}}},
		{Ctid: 2, Text: map[string]string{"title": "a quick jumping dog"}, Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 5, Valid: true}}},
		{Ctid: 3, Text: map[string]string{"title": "lazy cat sleeping"}, Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 20, Valid: true}}},
	}
	if _, err := indexer.BulkBuild(schema, dir, cat, catalog.Xid(1), rows); err != nil {
		t.Fatal(err)
	}
	return cat, dir, snap
}

func ctidsOf(hits []Hit) map[uint64]bool {
	out := make(map[uint64]bool, len(hits))
	for _, h := range hits {
		out[h.Ctid] = true
	}
	return out
}

func TestSearchTermUnordered(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{})
	if err != nil {
		t.Fatal(err)
	}
	got := ctidsOf(hits)
	if len(got) != 2 || !got[1] || !got[2] {
		t.Fatalf("expected docs 1 and 2 to match %q, got %v", "quick", got)
	}
}

func TestSearchBooleanMust(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Boolean{
		Must: []query.Node{
			&query.Term{Field: "title", Value: "quick"},
			&query.Term{Field: "title", Value: "fox"},
		},
	}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{})
	if err != nil {
		t.Fatal(err)
	}
	got := ctidsOf(hits)
	if len(got) != 1 || !got[1] {
		t.Fatalf("expected only ctid 1, got %v", got)
	}
}

func TestSearchBooleanMustNot(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Boolean{
		Must:    []query.Node{&query.Term{Field: "title", Value: "quick"}},
		MustNot: []query.Node{&query.Term{Field: "title", Value: "fox"}},
	}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{})
	if err != nil {
		t.Fatal(err)
	}
	got := ctidsOf(hits)
	if len(got) != 1 || !got[2] {
		t.Fatalf("expected only ctid 2, got %v", got)
	}
}

func TestSearchRangeScalar(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Range{
		Field: "price",
		Type:  fastfield.KindF64,
		Lower: query.RangeBound{Value: float64(6), Inclusive: true},
		Upper: query.RangeBound{Value: float64(100), Inclusive: true},
	}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{})
	if err != nil {
		t.Fatal(err)
	}
	got := ctidsOf(hits)
	if len(got) != 2 || !got[1] || !got[3] {
		t.Fatalf("expected ctids 1 and 3 in [6,100], got %v", got)
	}
}

func TestSearchRangeStoredModes(t *testing.T) {
	pool, err := storage.NewPool(storage.NewMemBacking(), nil)
	if err != nil {
		t.Fatal(err)
	}
	fsm := storage.NewFreeSpaceMap(pool, storage.InvalidBlockno)
	list := storage.NewLinkedList(pool, fsm, &memHeader{blk: storage.InvalidBlockno})
	cat := catalog.New(list)
	snap := catalog.Snapshot{XminHorizon: ^catalog.Xid(0)}
	dir := dirfs.New(pool, fsm, cat, snap)

	schema := query.Schema{
		"valid_period": {Type: fastfield.KindRange, FastField: true, IsRange: true},
	}
	rows := []indexer.Row{
		// doc 1: [5, 15)
		{Ctid: 1, Fields: map[string]fastfield.TaggedValue{
			"valid_period": {Kind: fastfield.KindRange, Range: fastfield.RangeValue{
				LowerSet: true, LowerValue: 5, LowerInclusive: true,
				UpperSet: true, UpperValue: 15, UpperInclusive: false,
			}, Valid: true},
		}},
		// doc 2: [20, 30)
		{Ctid: 2, Fields: map[string]fastfield.TaggedValue{
			"valid_period": {Kind: fastfield.KindRange, Range: fastfield.RangeValue{
				LowerSet: true, LowerValue: 20, LowerInclusive: true,
				UpperSet: true, UpperValue: 30, UpperInclusive: false,
			}, Valid: true},
		}},
	}
	if _, err := indexer.BulkBuild(schema, dir, cat, catalog.Xid(1), rows); err != nil {
		t.Fatal(err)
	}

	// doc 1's [5,15) is within (contained by) the query's [2,10]... no:
	// Within means the QUERY range encloses the stored one, so [2,10] does
	// not enclose [5,15). Use a query range that genuinely encloses it.
	within := &query.Range{
		Field: "valid_period",
		Type:  fastfield.KindRange,
		Mode:  query.RangeModeWithin,
		Lower: query.RangeBound{Value: float64(0), Inclusive: true},
		Upper: query.RangeBound{Value: float64(16), Inclusive: true},
	}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, within, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ctidsOf(hits); len(got) != 1 || !got[1] {
		t.Fatalf("Within [0,16]: expected only ctid 1, got %v", got)
	}

	intersects := &query.Range{
		Field: "valid_period",
		Type:  fastfield.KindRange,
		Mode:  query.RangeModeIntersects,
		Lower: query.RangeBound{Value: float64(2), Inclusive: true},
		Upper: query.RangeBound{Value: float64(10), Inclusive: true},
	}
	hits, err = Search(context.Background(), paradelog.Nop(), cat, dir, snap, intersects, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ctidsOf(hits); len(got) != 1 || !got[1] {
		t.Fatalf("Intersects [2,10]: expected only ctid 1, got %v", got)
	}

	contains := &query.Range{
		Field: "valid_period",
		Type:  fastfield.KindRange,
		Mode:  query.RangeModeContains,
		Lower: query.RangeBound{Value: float64(22), Inclusive: true},
		Upper: query.RangeBound{Value: float64(25), Inclusive: true},
	}
	hits, err = Search(context.Background(), paradelog.Nop(), cat, dir, snap, contains, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ctidsOf(hits); len(got) != 1 || !got[2] {
		t.Fatalf("Contains [22,25]: expected only ctid 2, got %v", got)
	}
}

func TestSearchTopN(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Boolean{
		Should: []query.Node{
			&query.Term{Field: "title", Value: "quick"},
			&query.Term{Field: "title", Value: "lazy"},
		},
	}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{Mode: ModeTopN, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("expected descending score order, got %v", hits)
		}
	}
}

func TestSearchFullFeaturesOrderBy(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := query.All{}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{
		Mode:         ModeFullFeatures,
		OrderByField: "price",
		OrderByKind:  fastfield.KindF64,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	wantOrder := []uint64{2, 1, 3} // prices 5, 10, 20
	for i, ctid := range wantOrder {
		if hits[i].Ctid != ctid {
			t.Fatalf("expected ascending price order %v, got %v", wantOrder, hits)
		}
	}
}

func TestSearchCountOnly(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{Mode: ModeCountOnly})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected an estimate of 2, got %d", len(hits))
	}
}

func TestSearchExistsRequiresTextField(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.Exists{Field: "price"}
	_, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{})
	if err == nil {
		t.Fatal("expected an error: Exists only resolves against indexed text fields in this evaluator")
	}
}

func TestSearchFuzzyTerm(t *testing.T) {
	cat, dir, snap := newTestIndex(t)
	node := &query.FuzzyTerm{Field: "title", Value: "quik", Distance: 1}
	hits, err := Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, Params{})
	if err != nil {
		t.Fatal(err)
	}
	got := ctidsOf(hits)
	if len(got) != 2 || !got[1] || !got[2] {
		t.Fatalf("expected docs 1 and 2 to fuzzy-match %q, got %v", "quik", got)
	}
}
