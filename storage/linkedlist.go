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

import "fmt"

// HeaderPointer is where a LinkedList's first block number lives. It is
// typically a field of the index's metadata header page, so that
// Atomically/Commit can repoint the whole list with a single exclusive-locked
// write to that one page.
type HeaderPointer interface {
	Get() (Blockno, error)
	Set(Blockno) error
}

// LinkedList is a chain of pages each holding homogeneous variable-sized
// items. It is the storage primitive behind the segment catalog, the
// deleted-segment tombstone set, and similar append-mostly collections
// ("Linked item list (generic)").
type LinkedList struct {
	pool   *Pool
	fsm    *FreeSpaceMap
	header HeaderPointer
}

// NewLinkedList attaches a LinkedList whose head is tracked by header.
func NewLinkedList(pool *Pool, fsm *FreeSpaceMap, header HeaderPointer) *LinkedList {
	return &LinkedList{pool: pool, fsm: fsm, header: header}
}

// ensureHead returns the list's head block, allocating one if the list is
// still empty.
func (l *LinkedList) ensureHead() (Blockno, error) {
	h, err := l.header.Get()
	if err != nil {
		return 0, err
	}
	if h != InvalidBlockno {
		return h, nil
	}
	nb, err := l.pool.NewBuffer()
	if err != nil {
		return 0, err
	}
	blk := nb.Blockno()
	if err := nb.Close(); err != nil {
		return 0, err
	}
	if err := l.header.Set(blk); err != nil {
		return 0, err
	}
	return blk, nil
}

func (l *LinkedList) allocBlock() (Blockno, error) {
	if blk, ok, err := l.fsm.Pop(); err != nil {
		return 0, err
	} else if ok {
		h, err := l.pool.GetExclusive(blk)
		if err != nil {
			return 0, err
		}
		*h.Page() = *NewPage()
		h.MarkDirty()
		if err := h.Close(); err != nil {
			return 0, err
		}
		return blk, nil
	}
	nb, err := l.pool.NewBuffer()
	if err != nil {
		return 0, err
	}
	blk := nb.Blockno()
	return blk, nb.Close()
}

// AddItems appends each of items to the list, allocating and linking new
// tail pages as needed.
func (l *LinkedList) AddItems(items [][]byte) error {
	head, err := l.ensureHead()
	if err != nil {
		return err
	}
	tail, err := l.pool.GetExclusive(head)
	if err != nil {
		return err
	}
	for tail.Page().Special().NextBlockno != InvalidBlockno {
		next := tail.Page().Special().NextBlockno
		if err := tail.Close(); err != nil {
			return err
		}
		tail, err = l.pool.GetExclusive(Blockno(next))
		if err != nil {
			return err
		}
	}
	for _, item := range items {
		if len(item) > len(tail.Page().slab) {
			if err := tail.Close(); err != nil {
				return err
			}
			return fmt.Errorf("storage: item of %d bytes exceeds page capacity", len(item))
		}
		if tail.Page().AppendItem(item) == InvalidOffset {
			newBlk, err := l.allocBlock()
			if err != nil {
				if cerr := tail.Close(); cerr != nil {
					return cerr
				}
				return err
			}
			sp := tail.Page().Special()
			sp.NextBlockno = uint32(newBlk)
			tail.Page().SetSpecial(sp)
			tail.MarkDirty()
			if err := tail.Close(); err != nil {
				return err
			}
			tail, err = l.pool.GetExclusive(newBlk)
			if err != nil {
				return err
			}
			tail.Page().AppendItem(item)
		}
		tail.MarkDirty()
	}
	return tail.Close()
}

// Visit walks the chain from the header, calling fn for each live item.
// fn returning false stops the walk early.
func (l *LinkedList) Visit(fn func(body []byte) bool) error {
	head, err := l.header.Get()
	if err != nil {
		return err
	}
	cur := head
	for cur != InvalidBlockno {
		h, err := l.pool.GetShared(cur)
		if err != nil {
			return err
		}
		pg := h.Page()
		next := pg.Special().NextBlockno
		stop := false
		for i := 1; i <= pg.NumItems(); i++ {
			body, live := pg.Item(i)
			if !live {
				continue
			}
			if !fn(body) {
				stop = true
				break
			}
		}
		h.Close()
		if stop {
			return nil
		}
		cur = Blockno(next)
	}
	return nil
}

// Retain walks the chain with hand-over-hand exclusive locks, deleting
// every item for which keep returns false. Pages that become empty are
// spliced out of the chain and returned to the free-space map, except the
// first page of the list, which is preserved so the header pointer stays
// stable. No more than two buffer locks (the predecessor
// and its successor) are held at once.
func (l *LinkedList) Retain(keep func(body []byte) bool) error {
	head, err := l.header.Get()
	if err != nil {
		return err
	}
	if head == InvalidBlockno {
		return nil
	}

	del := func(pg *Page) { pg.DeleteItems(func(_ int, body []byte) bool { return keep(body) }) }

	prevBlk := head
	prev, err := l.pool.GetExclusive(prevBlk)
	if err != nil {
		return err
	}
	del(prev.Page())
	prev.MarkDirty()

	for {
		next := prev.Page().Special().NextBlockno
		if next == InvalidBlockno {
			return prev.Close()
		}
		cur, err := l.pool.GetExclusive(Blockno(next))
		if err != nil {
			prev.Close()
			return err
		}
		del(cur.Page())
		cur.MarkDirty()

		if cur.Page().IsEmpty() {
			sp := prev.Page().Special()
			sp.NextBlockno = cur.Page().Special().NextBlockno
			prev.Page().SetSpecial(sp)
			prev.MarkDirty()
			recycled := cur.Blockno()
			if err := cur.Close(); err != nil {
				prev.Close()
				return err
			}
			if err := prev.Close(); err != nil {
				return err
			}
			if err := l.fsm.Extend([]Blockno{recycled}); err != nil {
				return err
			}
			// prevBlk's NextBlockno was just updated in place; re-acquire
			// it and continue the walk from the same predecessor.
			prev, err = l.pool.GetExclusive(prevBlk)
			if err != nil {
				return err
			}
			continue
		}
		if err := prev.Close(); err != nil {
			cur.Close()
			return err
		}
		prevBlk = cur.Blockno()
		prev = cur
	}
}
