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

import (
	"encoding/binary"
	"sync"
)

// FreeSpaceMap is a secondary linked list of recyclable block numbers. It
// is consulted before NewBuffer allocates a fresh block at the end of the
// file, and is extended whenever a linked list splices an emptied page out
// of a chain.
//
// Locking rule: never more than two buffer locks are held
// at once, so Extend/Pop cannot deadlock against a concurrent chain walk.
type FreeSpaceMap struct {
	pool *Pool
	mu   sync.Mutex
	head Blockno
}

// NewFreeSpaceMap attaches a FreeSpaceMap whose chain begins at head. A
// head of InvalidBlockno denotes an empty map; the first Extend call
// allocates the head page.
func NewFreeSpaceMap(pool *Pool, head Blockno) *FreeSpaceMap {
	return &FreeSpaceMap{pool: pool, head: Blockno(uint32(head))}
}

// Head reports the FSM's head block, to be persisted in the metadata
// header.
func (f *FreeSpaceMap) Head() Blockno {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head
}

func encodeBlockno(b Blockno) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(b))
	return buf
}

func decodeBlockno(b []byte) Blockno {
	return Blockno(binary.LittleEndian.Uint32(b))
}

// Extend appends recyclable blocks to the map.
func (f *FreeSpaceMap) Extend(blocks []Blockno) error {
	if len(blocks) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head == InvalidBlockno {
		h, err := f.pool.NewBuffer()
		if err != nil {
			return err
		}
		f.head = h.Blockno()
		if err := h.Close(); err != nil {
			return err
		}
	}

	tail, err := f.pool.GetExclusive(f.head)
	if err != nil {
		return err
	}
	// walk hand-over-hand to the tail page
	for tail.Page().Special().NextBlockno != InvalidBlockno {
		next := tail.Page().Special().NextBlockno
		if err := tail.Close(); err != nil {
			return err
		}
		tail, err = f.pool.GetExclusive(Blockno(next))
		if err != nil {
			return err
		}
	}
	for _, b := range blocks {
		off := tail.Page().AppendItem(encodeBlockno(b))
		if off == InvalidOffset {
			nb, err := f.pool.NewBuffer()
			if err != nil {
				return err
			}
			sp := tail.Page().Special()
			sp.NextBlockno = uint32(nb.Blockno())
			tail.Page().SetSpecial(sp)
			tail.MarkDirty()
			if err := tail.Close(); err != nil {
				return err
			}
			tail = nb
			tail.Page().AppendItem(encodeBlockno(b))
		}
		tail.MarkDirty()
	}
	return tail.Close()
}

// Pop removes and returns one recyclable block, or ok=false if the map is
// empty.
func (f *FreeSpaceMap) Pop() (blk Blockno, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur := f.head
	for cur != InvalidBlockno {
		h, err := f.pool.GetExclusive(cur)
		if err != nil {
			return 0, false, err
		}
		pg := h.Page()
		for i := 1; i <= pg.NumItems(); i++ {
			body, live := pg.Item(i)
			if !live {
				continue
			}
			blk := decodeBlockno(body)
			pg.MarkItemDead(i)
			h.MarkDirty()
			if err := h.Close(); err != nil {
				return 0, false, err
			}
			return blk, true, nil
		}
		next := pg.Special().NextBlockno
		if err := h.Close(); err != nil {
			return 0, false, err
		}
		if next == InvalidBlockno {
			break
		}
		cur = Blockno(next)
	}
	return 0, false, nil
}
