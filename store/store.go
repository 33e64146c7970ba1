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

// Package store bootstraps a single-file, on-disk BM25 index: one Pool
// backed by one relation file holds the segment catalog's chain, the
// free-space map's chain, and every segment component, the way a
// Postgres relation file holds a table's heap and every one of its
// indexes' pages.
package store

import (
	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/storage"
)

// catalogHeadBlock and fsmHeadBlock are the two fixed low blocks every
// fresh relation file reserves before any segment data is written, so
// reopening a file never has to guess where the catalog chain or the
// free-space chain begins.
const (
	catalogHeadBlock storage.Blockno = storage.MetaBlockno
	fsmHeadBlock     storage.Blockno = storage.MetaBlockno + 1
)

// Store is one open on-disk index relation.
type Store struct {
	file *storage.FileBacking
	pool *storage.Pool
	fsm  *storage.FreeSpaceMap
	Cat  *catalog.Catalog

	fsmHeader *storage.MetaHeader
}

// Open opens (creating if absent) the relation file at path and wires up
// its catalog and free-space map, allocating the two header blocks on a
// fresh file.
func Open(path string) (*Store, error) {
	fb, err := storage.OpenFileBacking(path)
	if err != nil {
		return nil, err
	}
	pool, err := storage.NewPool(fb, storage.NopWAL{})
	if err != nil {
		fb.Close()
		return nil, err
	}
	if err := storage.EnsureHeaderBlock(pool, fsmHeadBlock); err != nil {
		fb.Close()
		return nil, err
	}

	fsmHeader := storage.NewMetaHeader(pool, fsmHeadBlock)
	fsmHead, err := fsmHeader.Get()
	if err != nil {
		fb.Close()
		return nil, err
	}
	fsm := storage.NewFreeSpaceMap(pool, fsmHead)

	catHeader := storage.NewMetaHeader(pool, catalogHeadBlock)
	list := storage.NewLinkedList(pool, fsm, catHeader)
	cat := catalog.New(list)

	return &Store{file: fb, pool: pool, fsm: fsm, Cat: cat, fsmHeader: fsmHeader}, nil
}

// Snapshot returns a snapshot that sees every segment ever committed; this
// module has no concurrent writers to hide from one another, so every
// reader observes the whole catalog.
func (s *Store) Snapshot() catalog.Snapshot {
	return catalog.Snapshot{XminHorizon: ^catalog.Xid(0)}
}

// Dir opens a directory view bound to snap.
func (s *Store) Dir(snap catalog.Snapshot) *dirfs.Dir {
	return dirfs.New(s.pool, s.fsm, s.Cat, snap)
}

// NextXid returns one past the highest Xmin any visible entry currently
// carries, so a new segment's insert is ordered after everything already
// committed.
func (s *Store) NextXid() (catalog.Xid, error) {
	entries, err := s.Cat.All()
	if err != nil {
		return 0, err
	}
	max := catalog.InvalidXid
	for _, e := range entries {
		if e.Xmin > max {
			max = e.Xmin
		}
	}
	return max + 1, nil
}

// Close persists the free-space map's current head and closes the
// backing file. The catalog chain's head is already durable: MetaHeader
// writes it on every LinkedList mutation, not just at Close.
func (s *Store) Close() error {
	if err := s.fsmHeader.Set(s.fsm.Head()); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
