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
	"fmt"
	"io"
	"sync"
)

// Blockno identifies a page within a Pager's backing file.
type Blockno uint32

// MetaBlockno is the fixed location of the metadata header.
const MetaBlockno Blockno = 0

// Backing is the minimal random-access byte store a Pager writes through.
// *os.File satisfies it; tests typically use an in-memory implementation.
type Backing interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Size() (int64, error)
}

// WAL receives a description of a mutation before it is applied to a
// buffer, mirroring the host's write-ahead log: a crash between the WAL
// append and the buffer flush must still leave either the pre- or the
// post-image durable. See storage.Record.
type WAL interface {
	Append(rec Record) error
}

// Record is a single write-ahead log entry covering one buffer mutation.
type Record struct {
	Blockno Blockno
	Before  []byte // never filled in by Pool: Close logs only the post-image
	After   []byte
}

// NopWAL discards records; used in tests that do not exercise crash
// recovery.
type NopWAL struct{}

// Append implements WAL.
func (NopWAL) Append(Record) error { return nil }

// buffer is one pinned, possibly locked page plus its reference count.
type buffer struct {
	mu      sync.RWMutex
	blockno Blockno
	page    *Page
	pins    int
	dirty   bool
}

// Pool is the buffer manager: it mediates every read and write of a paged
// file, handing out pin-counted, lock-discipline-enforcing handles.
//
// Pool is safe for concurrent use. It does not itself implement an LRU
// eviction policy; a page stays resident while a handle on it is open, and
// a clean page is dropped when its last handle is closed.
type Pool struct {
	backing Backing
	wal     WAL

	mu      sync.Mutex
	buffers map[Blockno]*buffer
	nblocks Blockno
}

// NewPool constructs a Pool over backing, using wal for write-ahead
// logging. If wal is nil, NopWAL is used.
func NewPool(backing Backing, wal WAL) (*Pool, error) {
	if wal == nil {
		wal = NopWAL{}
	}
	size, err := backing.Size()
	if err != nil {
		return nil, fmt.Errorf("storage: stat backing: %w", err)
	}
	return &Pool{
		backing: backing,
		wal:     wal,
		buffers: make(map[Blockno]*buffer),
		nblocks: Blockno(size / PageSize),
	}, nil
}

// NumBlocks reports the number of blocks currently allocated in the
// backing file, including those not yet synced.
func (p *Pool) NumBlocks() Blockno {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nblocks
}

func (p *Pool) fetch(blk Blockno) (*buffer, error) {
	p.mu.Lock()
	if b, ok := p.buffers[blk]; ok {
		b.pins++
		p.mu.Unlock()
		return b, nil
	}
	p.mu.Unlock()

	raw := make([]byte, PageSize)
	if _, err := p.backing.ReadAt(raw, int64(blk)*PageSize); err != nil && err != io.EOF {
		return nil, fmt.Errorf("storage: read block %d: %w", blk, err)
	}
	pg, err := Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: block %d: %w", blk, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buffers[blk]; ok {
		b.pins++
		return b, nil
	}
	b := &buffer{blockno: blk, page: pg, pins: 1}
	p.buffers[blk] = b
	return b, nil
}

// SharedHandle is a pinned page held under a shared (read) lock.
type SharedHandle struct {
	pool *Pool
	buf  *buffer
}

// ExclusiveHandle is a pinned page held under an exclusive (write) lock.
type ExclusiveHandle struct {
	pool *Pool
	buf  *buffer
}

// GetShared pins blk and returns it locked for reading.
func (p *Pool) GetShared(blk Blockno) (*SharedHandle, error) {
	b, err := p.fetch(blk)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	return &SharedHandle{pool: p, buf: b}, nil
}

// Page returns the locked page contents. The returned *Page must not be
// mutated by a shared handle's caller.
func (h *SharedHandle) Page() *Page { return h.buf.page }

// Blockno reports which block this handle covers.
func (h *SharedHandle) Blockno() Blockno { return h.buf.blockno }

// Close unlocks and unpins the page.
func (h *SharedHandle) Close() {
	h.buf.mu.RUnlock()
	h.pool.unpin(h.buf)
}

// GetExclusive pins blk and returns it locked for writing. Any mutation
// performed through the returned handle must be followed by Close, which
// appends the post-image to the WAL before releasing the lock.
func (p *Pool) GetExclusive(blk Blockno) (*ExclusiveHandle, error) {
	b, err := p.fetch(blk)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	return &ExclusiveHandle{pool: p, buf: b}, nil
}

// Page returns the locked, mutable page contents.
func (h *ExclusiveHandle) Page() *Page { return h.buf.page }

// Blockno reports which block this handle covers.
func (h *ExclusiveHandle) Blockno() Blockno { return h.buf.blockno }

// MarkDirty flags that the page has been mutated and must be flushed and
// WAL-logged on Close.
func (h *ExclusiveHandle) MarkDirty() { h.buf.dirty = true }

// Close flushes a dirty page (WAL record, then backing write), unlocks,
// and unpins.
func (h *ExclusiveHandle) Close() error {
	defer h.buf.mu.Unlock()
	defer h.pool.unpin(h.buf)
	if !h.buf.dirty {
		return nil
	}
	raw := h.buf.page.Marshal()
	if err := h.pool.wal.Append(Record{Blockno: h.buf.blockno, After: raw}); err != nil {
		return fmt.Errorf("storage: wal append for block %d: %w", h.buf.blockno, err)
	}
	if _, err := h.pool.backing.WriteAt(raw, int64(h.buf.blockno)*PageSize); err != nil {
		return fmt.Errorf("storage: write block %d: %w", h.buf.blockno, err)
	}
	h.buf.dirty = false
	return nil
}

// NewBuffer allocates a brand-new block at the end of the backing file (the
// caller is expected to consult the free-space map first; NewBuffer never
// recycles on its own).
func (p *Pool) NewBuffer() (*ExclusiveHandle, error) {
	p.mu.Lock()
	blk := p.nblocks
	p.nblocks++
	b := &buffer{blockno: blk, page: NewPage(), pins: 1, dirty: true}
	p.buffers[blk] = b
	p.mu.Unlock()

	b.mu.Lock()
	return &ExclusiveHandle{pool: p, buf: b}, nil
}

func (p *Pool) unpin(b *buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b.pins--
	if b.pins <= 0 && !b.dirty {
		delete(p.buffers, b.blockno)
	}
}
