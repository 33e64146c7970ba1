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

package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paradedb/paradedb-go/storage"
)

type memHeader struct{ blk storage.Blockno }

func (m *memHeader) Get() (storage.Blockno, error) { return m.blk, nil }
func (m *memHeader) Set(b storage.Blockno) error   { m.blk = b; return nil }

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	pool, err := storage.NewPool(storage.NewMemBacking(), nil)
	if err != nil {
		t.Fatal(err)
	}
	fsm := storage.NewFreeSpaceMap(pool, storage.InvalidBlockno)
	list := storage.NewLinkedList(pool, fsm, &memHeader{blk: storage.InvalidBlockno})
	return New(list)
}

func TestCatalogInsertAndVisible(t *testing.T) {
	c := newTestCatalog(t)
	e1 := &SegmentMetaEntry{SegmentID: NewSegmentID(), Xmin: 5, MaxDoc: 10, ByteSize: 100}
	e2 := &SegmentMetaEntry{SegmentID: NewSegmentID(), Xmin: 20, MaxDoc: 3, ByteSize: 40}
	if err := c.Insert([]*SegmentMetaEntry{e1, e2}); err != nil {
		t.Fatal(err)
	}

	var seen []uuid.UUID
	err := c.Visible(Snapshot{XminHorizon: 10}, func(e *SegmentMetaEntry) bool {
		seen = append(seen, uuid.UUID(e.SegmentID))
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != uuid.UUID(e1.SegmentID) {
		t.Fatalf("expected only e1 visible under horizon 10, got %v", seen)
	}
}

func TestCatalogMarkDeletedMonotone(t *testing.T) {
	c := newTestCatalog(t)
	e1 := &SegmentMetaEntry{SegmentID: NewSegmentID(), Xmin: 1, MaxDoc: 1}
	if err := c.Insert([]*SegmentMetaEntry{e1}); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDeleted(e1.SegmentID, 50); err != nil {
		t.Fatal(err)
	}
	// a second mark-deleted with a different xid must not overwrite xmax
	if err := c.MarkDeleted(e1.SegmentID, 999); err != nil {
		t.Fatal(err)
	}
	all, err := c.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Xmax != 50 {
		t.Fatalf("expected xmax to remain 50, got %+v", all)
	}
}

func TestCatalogGC(t *testing.T) {
	c := newTestCatalog(t)
	e1 := &SegmentMetaEntry{SegmentID: NewSegmentID(), Xmin: 1, MaxDoc: 1}
	e2 := &SegmentMetaEntry{SegmentID: NewSegmentID(), Xmin: 1, MaxDoc: 1}
	if err := c.Insert([]*SegmentMetaEntry{e1, e2}); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDeleted(e1.SegmentID, 5); err != nil {
		t.Fatal(err)
	}
	var reclaimed []uuid.UUID
	err := c.GC(10, func(e *SegmentMetaEntry) error {
		reclaimed = append(reclaimed, uuid.UUID(e.SegmentID))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != uuid.UUID(e1.SegmentID) {
		t.Fatalf("expected e1 reclaimed, got %v", reclaimed)
	}
	all, err := c.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].SegmentID != e2.SegmentID {
		t.Fatalf("expected only e2 to remain, got %+v", all)
	}
}
