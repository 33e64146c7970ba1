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
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/paradeerr"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/storage"
)

type memHeader struct{ blk storage.Blockno }

func (m *memHeader) Get() (storage.Blockno, error) { return m.blk, nil }
func (m *memHeader) Set(b storage.Blockno) error   { m.blk = b; return nil }

func newTestEnv(t *testing.T) (*storage.Pool, *catalog.Catalog, *dirfs.Dir) {
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
	return pool, cat, dir
}

func testSchema() query.Schema {
	return query.Schema{
		"title": {Type: fastfield.KindText, FastField: true},
		"price": {Type: fastfield.KindF64, FastField: true},
	}
}

func TestPostingsRoundTrip(t *testing.T) {
	pb := newPostingsBuilder()
	pb.add("quick", 0)
	pb.add("brown", 0)
	pb.add("quick", 3)
	pb.add("fox", 7)

	raw := pb.encode()
	pr, err := OpenPostings(raw)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]uint32{
		"quick": {0, 3},
		"brown": {0},
		"fox":   {7},
		"nope":  nil,
	}
	for term, want := range cases {
		got := pr.Docs(term)
		if len(got) != len(want) {
			t.Fatalf("term %q: got %v, want %v", term, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("term %q: got %v, want %v", term, got, want)
			}
		}
	}
}

func TestPostingsDedupesRepeatedTokenInSameDoc(t *testing.T) {
	pb := newPostingsBuilder()
	pb.add("quick", 5)
	pb.add("quick", 5)
	pb.add("quick", 5)
	if got := pb.docs["quick"]; len(got) != 1 {
		t.Fatalf("expected one entry for repeated token in the same doc, got %v", got)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Quick-Brown Fox, v2.0!")
	want := []string{"the", "quick", "brown", "fox", "v2", "0"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBuilderFlushRoundTrip(t *testing.T) {
	_, cat, dir := newTestEnv(t)
	schema := testSchema()

	b := NewBuilder(schema)
	if _, err := b.Add(Row{
		Ctid:   1001,
		Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 9.99, Valid: true}},
		Text:   map[string]string{"title": "the quick brown fox"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Add(Row{
		Ctid:   1002,
		Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 4.5, Valid: true}},
		Text:   map[string]string{"title": "a lazy dog"},
	}); err != nil {
		t.Fatal(err)
	}

	if b.NumDocs() != 2 {
		t.Fatalf("expected 2 docs, got %d", b.NumDocs())
	}

	entry, err := b.Flush(dir, cat, catalog.Xid(1))
	if err != nil {
		t.Fatal(err)
	}
	if entry.MaxDoc != 2 {
		t.Fatalf("expected MaxDoc 2, got %d", entry.MaxDoc)
	}
	if entry.ByteSize <= 0 {
		t.Fatalf("expected a positive ByteSize, got %d", entry.ByteSize)
	}

	comp, ok := entry.Component(catalog.ComponentKind(KindPostings + "title"))
	if !ok {
		t.Fatal("expected a postings component for title")
	}
	raw, err := dir.AtomicRead(dirfs.FileID{SegmentID: entry.SegmentID, Kind: comp.Kind})
	if err != nil {
		t.Fatal(err)
	}
	pr, err := OpenPostings(raw)
	if err != nil {
		t.Fatal(err)
	}
	if docs := pr.Docs("quick"); len(docs) != 1 || docs[0] != 0 {
		t.Fatalf("expected doc 0 to contain %q, got %v", "quick", docs)
	}

	entries, err := cat.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 catalog entry after flush, got %d", len(entries))
	}
}

func TestBuilderAddRejectsNullKeyField(t *testing.T) {
	schema := query.Schema{
		"sku":   {Type: fastfield.KindText, FastField: true, KeyField: true},
		"price": {Type: fastfield.KindF64, FastField: true},
	}
	b := NewBuilder(schema)

	// sku present: accepted.
	if _, err := b.Add(Row{
		Ctid:   1,
		Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 1, Valid: true}},
		Text:   map[string]string{"sku": "widget-1"},
	}); err != nil {
		t.Fatalf("unexpected error for row with key_field set: %s", err)
	}

	// sku absent: rejected, and the builder's document count must not advance.
	_, err := b.Add(Row{
		Ctid:   2,
		Fields: map[string]fastfield.TaggedValue{"price": {Kind: fastfield.KindF64, F64: 2, Valid: true}},
	})
	if !errors.Is(err, paradeerr.ErrKeyViolation) {
		t.Fatalf("expected ErrKeyViolation, got %v", err)
	}
	if b.NumDocs() != 1 {
		t.Fatalf("expected rejected row to leave NumDocs at 1, got %d", b.NumDocs())
	}
}

func TestMergePolicyDecide(t *testing.T) {
	small := &catalog.SegmentMetaEntry{SegmentID: catalog.NewSegmentID(), Xmin: 1, ByteSize: 100}
	big := &catalog.SegmentMetaEntry{SegmentID: catalog.NewSegmentID(), Xmin: 2, ByteSize: 1 << 30}

	p := MergePolicy{MinMergeSize: 1024}
	prepend, merge := p.Decide([]*catalog.SegmentMetaEntry{big, small})
	if len(prepend) != 1 || prepend[0] != big {
		t.Fatalf("expected big segment to be prepended, got %v", prepend)
	}
	if len(merge) != 1 || merge[0] != small {
		t.Fatalf("expected small segment to be merged, got %v", merge)
	}
}

func TestMergePolicyDefaultThreshold(t *testing.T) {
	p := MergePolicy{}
	if p.minMergeSize() != DefaultMinMergeSize {
		t.Fatalf("expected default threshold, got %d", p.minMergeSize())
	}
}

func TestVacuumMarksAndReclaimsFullyDeadSegment(t *testing.T) {
	_, cat, dir := newTestEnv(t)

	segID := catalog.NewSegmentID()
	w := dir.OpenWrite(dirfs.FileID{SegmentID: segID, Kind: catalog.ComponentKind(CtidField)})
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	comp, err := w.Sync()
	if err != nil {
		t.Fatal(err)
	}
	entry := &catalog.SegmentMetaEntry{
		SegmentID:  segID,
		Xmin:       1,
		MaxDoc:     1,
		Components: []catalog.ComponentFile{comp},
		Deletes:    roaring.BitmapOf(0),
	}
	if err := cat.Insert([]*catalog.SegmentMetaEntry{entry}); err != nil {
		t.Fatal(err)
	}

	stats, err := Vacuum(cat, dir, catalog.Xid(2), catalog.Xid(100))
	if err != nil {
		t.Fatal(err)
	}
	if stats.MarkedDead != 1 {
		t.Fatalf("expected 1 segment marked dead, got %d", stats.MarkedDead)
	}
	if stats.Reclaimed != 1 {
		t.Fatalf("expected 1 segment reclaimed once globalXmin passed it, got %d", stats.Reclaimed)
	}

	entries, err := cat.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no catalog entries after reclaim, got %d", len(entries))
	}
}

func TestVacuumLeavesPartiallyDeadSegmentAlone(t *testing.T) {
	_, cat, dir := newTestEnv(t)
	schema := testSchema()

	b := NewBuilder(schema)
	if _, err := b.Add(Row{Ctid: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Add(Row{Ctid: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Flush(dir, cat, catalog.Xid(1)); err != nil {
		t.Fatal(err)
	}

	stats, err := Vacuum(cat, dir, catalog.Xid(2), catalog.Xid(100))
	if err != nil {
		t.Fatal(err)
	}
	if stats.MarkedDead != 0 || stats.Reclaimed != 0 {
		t.Fatalf("expected no action on a live segment, got %+v", stats)
	}
}

func TestIncrementalWriterFlushesPastThreshold(t *testing.T) {
	_, cat, dir := newTestEnv(t)
	schema := testSchema()

	w := NewIncrementalWriter(schema, dir, cat, catalog.Xid(1))
	w.threshold = 2
	for i := 0; i < 5; i++ {
		if err := w.Insert(Row{Ctid: uint64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	entries, err := cat.All()
	if err != nil {
		t.Fatal(err)
	}
	// 5 rows with a flush threshold of 2: flushes happen at rows 3 and 5,
	// then Commit flushes the still-building third segment, which holds
	// only the 5th row, leaving 3 segments total (2, 2, 1 doc).
	total := uint32(0)
	for _, e := range entries {
		total += e.MaxDoc
	}
	if total != 5 {
		t.Fatalf("expected 5 documents across all flushed segments, got %d", total)
	}
}

func TestBulkBuild(t *testing.T) {
	_, cat, dir := newTestEnv(t)
	schema := testSchema()

	rows := []Row{
		{Ctid: 1, Text: map[string]string{"title": "red apple"}},
		{Ctid: 2, Text: map[string]string{"title": "green apple"}},
		{Ctid: 3, Text: map[string]string{"title": "blue sky"}},
	}
	entry, err := BulkBuild(schema, dir, cat, catalog.Xid(1), rows)
	if err != nil {
		t.Fatal(err)
	}
	if entry.MaxDoc != 3 {
		t.Fatalf("expected 3 docs, got %d", entry.MaxDoc)
	}
}
