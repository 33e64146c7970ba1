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
	"bytes"
	"testing"
)

type memHeader struct{ blk Blockno }

func (m *memHeader) Get() (Blockno, error) { return m.blk, nil }
func (m *memHeader) Set(b Blockno) error   { m.blk = b; return nil }

func newTestList(t *testing.T) *LinkedList {
	t.Helper()
	pool, err := NewPool(NewMemBacking(), nil)
	if err != nil {
		t.Fatal(err)
	}
	fsm := NewFreeSpaceMap(pool, InvalidBlockno)
	return NewLinkedList(pool, fsm, &memHeader{blk: InvalidBlockno})
}

func TestLinkedListAddVisit(t *testing.T) {
	l := newTestList(t)
	items := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	if err := l.AddItems(items); err != nil {
		t.Fatal(err)
	}
	var got [][]byte
	err := l.Visit(func(body []byte) bool {
		cp := append([]byte(nil), body...)
		got = append(got, cp)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if !bytes.Equal(got[i], items[i]) {
			t.Errorf("item %d: got %q want %q", i, got[i], items[i])
		}
	}
}

func TestLinkedListRetain(t *testing.T) {
	l := newTestList(t)
	for i := 0; i < 5; i++ {
		if err := l.AddItems([][]byte{[]byte{byte(i)}}); err != nil {
			t.Fatal(err)
		}
	}
	// keep only even-valued items
	err := l.Retain(func(body []byte) bool { return body[0]%2 == 0 })
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	l.Visit(func(body []byte) bool {
		got = append(got, body[0])
		return true
	})
	want := []byte{0, 2, 4}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAtomicReplace(t *testing.T) {
	l := newTestList(t)
	if err := l.AddItems([][]byte{[]byte("old1"), []byte("old2")}); err != nil {
		t.Fatal(err)
	}

	g, err := l.Atomically()
	if err != nil {
		t.Fatal(err)
	}
	g.Replace([][]byte{[]byte("new1"), []byte("new2"), []byte("new3")})
	if err := g.Commit(); err != nil {
		t.Fatal(err)
	}

	var got [][]byte
	l.Visit(func(body []byte) bool {
		got = append(got, append([]byte(nil), body...))
		return true
	})
	if len(got) != 3 {
		t.Fatalf("got %d items after commit, want 3", len(got))
	}
	if string(got[0]) != "new1" || string(got[2]) != "new3" {
		t.Fatalf("unexpected contents after atomic replace: %q", got)
	}
}

func TestSegmentedFileRoundTrip(t *testing.T) {
	pool, err := NewPool(NewMemBacking(), nil)
	if err != nil {
		t.Fatal(err)
	}
	fsm := NewFreeSpaceMap(pool, InvalidBlockno)
	sf, err := CreateSegmentedFile(pool, fsm)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("0123456789"), 2000) // spans multiple pages
	if _, err := sf.Write(payload); err != nil {
		t.Fatal(err)
	}
	if sf.Size() != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", sf.Size(), len(payload))
	}
	out := make([]byte, len(payload))
	n, err := sf.ReadAt(out, 0)
	for n < len(payload) && err == nil {
		var more int
		more, err = sf.ReadAt(out[n:], int64(n))
		n += more
	}
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("round-tripped content mismatch")
	}
}
