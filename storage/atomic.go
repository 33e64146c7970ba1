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

// ListGuard holds an in-memory copy of a LinkedList's items so the caller
// can change it freely; Commit writes that copy into a freshly allocated
// chain, repoints the list's header pointer to it in a single
// exclusive-locked write (the linearisation point of the atomic-replace
// guarantee), then returns the displaced original pages to the free-space
// map. No pages are allocated before Commit, so a guard that is discarded
// without Commit leaves the original chain untouched.
type ListGuard struct {
	l        *LinkedList
	oldHead  Blockno
	newHead  Blockno
	newItems [][]byte
	done     bool
}

// Atomically snapshots the list's current contents into a guard. The
// caller mutates the guard's in-memory item set (via Items/Replace) and
// then calls Commit to publish it, or Discard to abandon the clone.
func (l *LinkedList) Atomically() (*ListGuard, error) {
	oldHead, err := l.header.Get()
	if err != nil {
		return nil, err
	}
	var items [][]byte
	if oldHead != InvalidBlockno {
		err = l.Visit(func(body []byte) bool {
			cp := make([]byte, len(body))
			copy(cp, body)
			items = append(items, cp)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return &ListGuard{l: l, oldHead: oldHead, newItems: items}, nil
}

// Items returns the guard's current item set, for the caller to filter or
// transform before Commit.
func (g *ListGuard) Items() [][]byte { return g.newItems }

// Replace overwrites the guard's pending item set.
func (g *ListGuard) Replace(items [][]byte) { g.newItems = items }

// Commit writes the guard's item set into a freshly allocated chain and
// repoints the list's header to it in one exclusive-locked write. The
// displaced original chain's pages are then returned to the free-space
// map. A reader holding a snapshot taken before Commit continues to see
// the full old chain (its pages are not touched until after the header
// swap); a reader starting after Commit sees the full new chain.
func (g *ListGuard) Commit() error {
	if g.done {
		return nil
	}
	g.done = true

	clone, err := g.l.pool.NewBuffer()
	if err != nil {
		return err
	}
	cloneHead := clone.Blockno()
	if err := clone.Close(); err != nil {
		return err
	}
	newHeader := &memHeaderOverride{Blockno: cloneHead}
	tmp := NewLinkedList(g.l.pool, g.l.fsm, newHeader)
	if err := tmp.AddItems(g.newItems); err != nil {
		return err
	}
	g.newHead = cloneHead

	// linearisation point: single exclusive write of the header pointer
	if err := g.l.header.Set(g.newHead); err != nil {
		return err
	}

	if g.oldHead != InvalidBlockno {
		var old []Blockno
		cur := g.oldHead
		for cur != InvalidBlockno {
			h, err := g.l.pool.GetShared(cur)
			if err != nil {
				return err
			}
			old = append(old, cur)
			cur = Blockno(h.Page().Special().NextBlockno)
			h.Close()
		}
		if err := g.l.fsm.Extend(old); err != nil {
			return err
		}
	}
	return nil
}

// Discard abandons the guard without publishing it. Commit is the only
// call that allocates pages, so Discard only marks the guard done.
func (g *ListGuard) Discard() {
	g.done = true
}

// memHeaderOverride is a HeaderPointer for a single in-flight blockno value
// used only while building Commit's clone chain.
type memHeaderOverride struct {
	Blockno Blockno
}

func (m *memHeaderOverride) Get() (Blockno, error) { return m.Blockno, nil }
func (m *memHeaderOverride) Set(b Blockno) error   { m.Blockno = b; return nil }
