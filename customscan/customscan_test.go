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
	"testing"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/indexer"
	"github.com/paradedb/paradedb-go/paradelog"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/searchexec"
	"github.com/paradedb/paradedb-go/storage"
)

type memHeader struct{ blk storage.Blockno }

func (m *memHeader) Get() (storage.Blockno, error) { return m.blk, nil }
func (m *memHeader) Set(b storage.Blockno) error   { m.blk = b; return nil }

func newTestIndex(t *testing.T) (*catalog.Catalog, *dirfs.Dir, catalog.Snapshot, query.Schema) {
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

	fields := query.Schema{
		"title":    {Type: fastfield.KindText, FastField: false},
		"price":    {Type: fastfield.KindF64, FastField: true},
		"category": {Type: fastfield.KindText, FastField: true},
	}
	rows := []indexer.Row{
		{Ctid: 1 << 16, Text: map[string]string{"title": "quick fox", "category": "a"}, Fields: map[string]fastfield.TaggedValue{
			"price":    {Kind: fastfield.KindF64, F64: 10, Valid: true},
			"category": {Kind: fastfield.KindText, Text: "a", Valid: true},
		}},
		{Ctid: 2 << 16, Text: map[string]string{"title": "quick dog", "category": "b"}, Fields: map[string]fastfield.TaggedValue{
			"price":    {Kind: fastfield.KindF64, F64: 5, Valid: true},
			"category": {Kind: fastfield.KindText, Text: "b", Valid: true},
		}},
		{Ctid: 3 << 16, Text: map[string]string{"title": "lazy cat", "category": "a"}, Fields: map[string]fastfield.TaggedValue{
			"price":    {Kind: fastfield.KindF64, F64: 20, Valid: true},
			"category": {Kind: fastfield.KindText, Text: "a", Valid: true},
		}},
	}
	if _, err := indexer.BulkBuild(fields, dir, cat, catalog.Xid(1), rows); err != nil {
		t.Fatal(err)
	}
	return cat, dir, snap, fields
}

// fakeHeap returns a row for every ctid except those listed in dead,
// simulating tuples the catalog still lists but the heap has reclaimed.
type fakeHeap struct{ dead map[uint64]bool }

func (f *fakeHeap) Fetch(ctid uint64) (map[string]any, bool, error) {
	if f.dead[ctid] {
		return nil, false, nil
	}
	return map[string]any{"ctid": ctid}, true, nil
}

// fakeVis reports every block all-visible unless listed in notVisible, and
// every ctid live unless listed in dead.
type fakeVis struct {
	notVisible map[uint32]bool
	dead       map[uint64]bool
}

func (f *fakeVis) BlockAllVisible(block uint32) (bool, error) { return !f.notVisible[block], nil }
func (f *fakeVis) IsVisible(ctid uint64) (bool, error)        { return !f.dead[ctid], nil }

func TestScanNormalMethodFetchesHeap(t *testing.T) {
	cat, dir, snap, _ := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	hits, err := searchexec.Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, searchexec.Params{})
	if err != nil {
		t.Fatal(err)
	}
	heap := &fakeHeap{dead: map[uint64]bool{}}
	vis := &fakeVis{}
	scan := NewScan(hits, ExecMethodNormal, heap, vis)

	count := 0
	for {
		tup, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if tup.Row == nil {
			t.Fatal("expected a heap row under ExecMethodNormal")
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 tuples, got %d", count)
	}
	if scan.Stats.HeapFetches != 2 {
		t.Fatalf("expected 2 heap fetches, got %d", scan.Stats.HeapFetches)
	}
}

func TestScanNormalMethodSkipsDeadTuples(t *testing.T) {
	cat, dir, snap, _ := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	hits, err := searchexec.Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, searchexec.Params{})
	if err != nil {
		t.Fatal(err)
	}
	dead := map[uint64]bool{hits[0].Ctid: true}
	scan := NewScan(hits, ExecMethodNormal, &fakeHeap{dead: dead}, &fakeVis{})

	count := 0
	for {
		_, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 live tuple after skipping the dead one, got %d", count)
	}
	if scan.Stats.InvisibleTuples != 1 {
		t.Fatalf("expected 1 invisible tuple, got %d", scan.Stats.InvisibleTuples)
	}
}

func TestScanIndexOnlyMethodNeverFetchesHeap(t *testing.T) {
	cat, dir, snap, _ := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	hits, err := searchexec.Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, searchexec.Params{})
	if err != nil {
		t.Fatal(err)
	}
	scan := NewScan(hits, ExecMethodIndexOnly, nil, &fakeVis{})

	count := 0
	for {
		tup, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if tup.Row != nil {
			t.Fatal("expected no row under ExecMethodIndexOnly")
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 tuples, got %d", count)
	}
	if scan.Stats.HeapFetches != 0 {
		t.Fatalf("expected zero heap fetches, got %d", scan.Stats.HeapFetches)
	}
	if scan.Stats.VirtualTuples != 2 {
		t.Fatalf("expected 2 virtual tuples, got %d", scan.Stats.VirtualTuples)
	}
}

func TestScanFastFieldSkipsInvisibleOnNonAllVisibleBlock(t *testing.T) {
	cat, dir, snap, _ := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	hits, err := searchexec.Search(context.Background(), paradelog.Nop(), cat, dir, snap, node, searchexec.Params{})
	if err != nil {
		t.Fatal(err)
	}
	blk := blockOf(hits[0].Ctid)
	vis := &fakeVis{notVisible: map[uint32]bool{blk: true}, dead: map[uint64]bool{hits[0].Ctid: true}}
	scan := NewScan(hits, ExecMethodFastField, nil, vis)

	count := 0
	for {
		_, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected the dead hit to be skipped, got %d tuples", count)
	}
	if scan.Stats.VisibilityChecks == 0 {
		t.Fatal("expected at least one visibility check for the non-all-visible block")
	}
}

func TestChooseMethodFallsBackToNormal(t *testing.T) {
	_, _, _, schema := newTestIndex(t)
	if m := ChooseMethod(schema, []string{"price"}); m != ExecMethodFastField {
		t.Fatalf("expected FastField for an all-fast-field projection, got %v", m)
	}
	if m := ChooseMethod(schema, nil); m != ExecMethodIndexOnly {
		t.Fatalf("expected IndexOnly for no projected fields, got %v", m)
	}
	if m := ChooseMethod(schema, []string{"nonexistent"}); m != ExecMethodNormal {
		t.Fatalf("expected Normal fallback for an unknown field, got %v", m)
	}
}

func TestRunAggregateGroupsByCategory(t *testing.T) {
	cat, dir, snap, _ := newTestIndex(t)
	plan := AggregatePlan{
		Node:  query.All{},
		Group: []GroupSpec{{Field: "category", Kind: fastfield.KindText}},
		Aggs: []AggSpec{
			{Field: "", Op: AccumCount},
			{Field: "price", Kind: fastfield.KindF64, Op: AccumSum},
			{Field: "price", Kind: fastfield.KindF64, Op: AccumMax},
			{Field: "price", Kind: fastfield.KindF64, Op: AccumAvg},
		},
		OrderBy: -1,
	}
	results, err := RunAggregate(context.Background(), cat, dir, snap, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 groups (category a, b), got %d", len(results))
	}
	byKey := make(map[string]GroupResult, len(results))
	for _, r := range results {
		byKey[r.Key[0].Text] = r
	}
	a, ok := byKey["a"]
	if !ok {
		t.Fatal("expected a group for category \"a\"")
	}
	if a.Values[0] != 2 {
		t.Fatalf("expected category a count 2, got %v", a.Values[0])
	}
	if a.Values[1] != 30 {
		t.Fatalf("expected category a price sum 30 (10+20), got %v", a.Values[1])
	}
	if a.Values[2] != 20 {
		t.Fatalf("expected category a price max 20, got %v", a.Values[2])
	}
	if a.Values[3] != 15 {
		t.Fatalf("expected category a price avg 15 (30/2), got %v", a.Values[3])
	}
	b, ok := byKey["b"]
	if !ok {
		t.Fatal("expected a group for category \"b\"")
	}
	if b.Values[0] != 1 {
		t.Fatalf("expected category b count 1, got %v", b.Values[0])
	}
}

func TestRunAggregateOrderByAndLimit(t *testing.T) {
	cat, dir, snap, _ := newTestIndex(t)
	plan := AggregatePlan{
		Node:       query.All{},
		Group:      []GroupSpec{{Field: "category", Kind: fastfield.KindText}},
		Aggs:       []AggSpec{{Field: "price", Kind: fastfield.KindF64, Op: AccumSum}},
		OrderBy:    1, // the single aggregate column
		Descending: true,
		Limit:      1,
	}
	results, err := RunAggregate(context.Background(), cat, dir, snap, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected LIMIT 1 to leave 1 group, got %d", len(results))
	}
	if results[0].Key[0].Text != "a" {
		t.Fatalf("expected category a (sum 30) to rank first descending, got %v", results[0].Key[0].Text)
	}
}

func TestAccumulatorResults(t *testing.T) {
	acc := NewAccumulator(AccumSumOfSquares)
	acc.Add(2)
	acc.Add(3)
	if acc.Result() != 13 {
		t.Fatalf("expected sum of squares 13 (4+9), got %v", acc.Result())
	}
	min := NewAccumulator(AccumMin)
	min.Add(5)
	min.Add(-1)
	min.Add(2)
	if min.Result() != -1 {
		t.Fatalf("expected min -1, got %v", min.Result())
	}

	avg := NewAccumulator(AccumAvg)
	if avg.Result() != 0 {
		t.Fatalf("expected avg of no values to be 0, got %v", avg.Result())
	}
	avg.Add(2)
	avg.Add(4)
	avg.Add(9)
	if avg.Result() != 5 {
		t.Fatalf("expected avg 5 ((2+4+9)/3), got %v", avg.Result())
	}
}

func TestChooseFastFieldMethod(t *testing.T) {
	_, _, _, schema := newTestIndex(t)
	if m, err := ChooseFastFieldMethod(schema, []string{"price"}); err != nil || m != NumericFastField {
		t.Fatalf("expected NumericFastField, got %v, %v", m, err)
	}
	if m, err := ChooseFastFieldMethod(schema, []string{"category"}); err != nil || m != StringFastField {
		t.Fatalf("expected StringFastField, got %v, %v", m, err)
	}
	if m, err := ChooseFastFieldMethod(schema, []string{"price", "category"}); err != nil || m != MixedFastField {
		t.Fatalf("expected MixedFastField, got %v, %v", m, err)
	}
	if _, err := ChooseFastFieldMethod(schema, []string{"title"}); err == nil {
		t.Fatal("expected an error: title has no fast field")
	}
}

func TestFastFieldScanProjectsWithoutHeapFetch(t *testing.T) {
	cat, dir, snap, schema := newTestIndex(t)
	node := &query.Term{Field: "title", Value: "quick"}
	scan, err := OpenFastField(context.Background(), cat, dir, snap, node, MixedFastField, []string{"price", "category"}, schema, &fakeVis{})
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	for {
		tup, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if tup.Values["price"].Kind != fastfield.KindF64 {
			t.Fatalf("expected a f64 price value, got %+v", tup.Values["price"])
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 projected tuples, got %d", count)
	}
	if scan.Stats.HeapFetches != 0 {
		t.Fatalf("expected zero heap fetches, got %d", scan.Stats.HeapFetches)
	}
}
