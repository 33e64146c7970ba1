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

package storage

// MetaHeader is a HeaderPointer backed by a single page item on a fixed
// block, so a LinkedList's head survives a process restart instead of
// living only in memory (tests use an in-process HeaderPointer instead,
// since they never reopen the backing store).
type MetaHeader struct {
	pool *Pool
	blk  Blockno
}

// NewMetaHeader wraps pool's blk page as a persistent HeaderPointer. blk
// must already be allocated (see EnsureHeaderBlock) before Get/Set is
// called on a fresh backing store.
func NewMetaHeader(pool *Pool, blk Blockno) *MetaHeader { return &MetaHeader{pool: pool, blk: blk} }

// EnsureHeaderBlock allocates blocks up to and including want on a fresh
// pool, so that a fixed set of low-numbered blocks (e.g. MetaBlockno for
// the catalog's chain head, MetaBlockno+1 for the free-space map's) exist
// before any other caller allocates a block of its own. It is a no-op once
// the pool already has enough blocks.
func EnsureHeaderBlock(pool *Pool, want Blockno) error {
	for pool.NumBlocks() <= want {
		h, err := pool.NewBuffer()
		if err != nil {
			return err
		}
		h.Page().AppendItem(encodeBlockno(InvalidBlockno))
		h.MarkDirty()
		if err := h.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Get implements HeaderPointer.
func (m *MetaHeader) Get() (Blockno, error) {
	h, err := m.pool.GetShared(m.blk)
	if err != nil {
		return 0, err
	}
	defer h.Close()
	item, ok := h.Page().Item(1)
	if !ok {
		return InvalidBlockno, nil
	}
	return decodeBlockno(item), nil
}

// Set implements HeaderPointer. It replaces the page's sole item rather
// than appending, so the header page never grows.
func (m *MetaHeader) Set(b Blockno) error {
	h, err := m.pool.GetExclusive(m.blk)
	if err != nil {
		return err
	}
	h.Page().DeleteItems(func(int, []byte) bool { return false })
	h.Page().AppendItem(encodeBlockno(b))
	h.MarkDirty()
	return h.Close()
}
