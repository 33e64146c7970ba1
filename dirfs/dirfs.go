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

// Package dirfs implements the virtual filesystem the inverted-index
// library requires: "files" are segmented files (storage
// package) keyed by {segment_id, component_kind} in the segment catalog,
// "directory listings" are catalog entries visible under a snapshot, and
// writes are appends followed by catalog updates performed by the writer.
//
// Locking here is advisory only (AcquireLock); correctness for concurrent
// readers comes from MVCC visibility of catalog entries, not from
// directory locks.
package dirfs

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/storage"
)

// FileID identifies one "file" the inverted-index library believes it has
// written: the segment it belongs to plus which component within that
// segment.
type FileID struct {
	SegmentID uuid.UUID
	Kind      catalog.ComponentKind
}

// Dir is the MVCC directory. One Dir is created per open index relation
// per transaction, bound to a fixed Snapshot for the lifetime of the scan
// or write it serves.
type Dir struct {
	pool *storage.Pool
	fsm  *storage.FreeSpaceMap
	cat  *catalog.Catalog
	snap catalog.Snapshot

	mu      sync.Mutex
	locks   map[string]struct{}
	writers map[FileID]*writer
}

// New constructs a Dir bound to snap.
func New(pool *storage.Pool, fsm *storage.FreeSpaceMap, cat *catalog.Catalog, snap catalog.Snapshot) *Dir {
	return &Dir{
		pool:    pool,
		fsm:     fsm,
		cat:     cat,
		snap:    snap,
		locks:   make(map[string]struct{}),
		writers: make(map[FileID]*writer),
	}
}

func (d *Dir) findComponent(id FileID) (*catalog.SegmentMetaEntry, catalog.ComponentFile, bool, error) {
	var entry *catalog.SegmentMetaEntry
	var comp catalog.ComponentFile
	found := false
	err := d.cat.Visible(d.snap, func(e *catalog.SegmentMetaEntry) bool {
		if e.SegmentID != id.SegmentID {
			return true
		}
		c, ok := e.Component(id.Kind)
		if !ok {
			return true
		}
		entry, comp, found = e, c, true
		return false
	})
	return entry, comp, found, err
}

// Exists reports whether id names a file visible under the directory's
// snapshot.
func (d *Dir) Exists(id FileID) (bool, error) {
	_, _, found, err := d.findComponent(id)
	return found, err
}

// OpenRead opens id for random-access reading.
func (d *Dir) OpenRead(id FileID) (*storage.SegmentedFile, error) {
	_, comp, found, err := d.findComponent(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("dirfs: no visible file for segment=%x kind=%s", id.SegmentID, id.Kind)
	}
	return storage.OpenSegmentedFile(d.pool, d.fsm, comp.HeadBlock, comp.ByteSize), nil
}

// OpenComponent opens a component file directly from its catalog
// location, bypassing snapshot visibility. Vacuum's reclaim callback
// runs after catalog.Catalog.GC has already dropped the dead entry from
// the list, so by the time reclaim needs to free its blocks the entry is
// no longer visible (or present) for findComponent to resolve.
func (d *Dir) OpenComponent(c catalog.ComponentFile) *storage.SegmentedFile {
	return storage.OpenSegmentedFile(d.pool, d.fsm, c.HeadBlock, c.ByteSize)
}

// AtomicRead reads the entire contents of id in one call, matching the
// inverted-index library's expectation that small metadata files (e.g.
// per-segment manifests) can be slurped whole.
func (d *Dir) AtomicRead(id FileID) ([]byte, error) {
	sf, err := d.OpenRead(id)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sf.Size())
	off := int64(0)
	for off < int64(len(buf)) {
		n, err := sf.ReadAt(buf[off:], off)
		off += int64(n)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return buf, nil
}

// writer buffers a new component file's bytes in memory until Sync flushes
// them into a fresh SegmentedFile and returns the descriptor the caller
// should attach to its new SegmentMetaEntry.
type writer struct {
	dir *Dir
	id  FileID
	buf []byte
}

// OpenWrite begins writing a new component file. The returned
// Writer must be driven to completion and then Synced; the
// resulting ComponentFile descriptor is retrieved via the writer's Sync
// return value and should be attached to the segment entry the caller
// inserts into the catalog ("every segment referenced
// by the catalog is fully written before its entry is linked in").
func (d *Dir) OpenWrite(id FileID) *Writer {
	return &Writer{w: &writer{dir: d, id: id}}
}

// Writer is the public handle returned by OpenWrite.
type Writer struct {
	w *writer
}

// Write buffers p.
func (w *Writer) Write(p []byte) (int, error) {
	w.w.buf = append(w.w.buf, p...)
	return len(p), nil
}

// Sync flushes the buffered bytes into a new SegmentedFile and returns the
// resulting component descriptor.
func (w *Writer) Sync() (catalog.ComponentFile, error) {
	sf, err := storage.CreateSegmentedFile(w.w.dir.pool, w.w.dir.fsm)
	if err != nil {
		return catalog.ComponentFile{}, err
	}
	if _, err := sf.Write(w.w.buf); err != nil {
		return catalog.ComponentFile{}, err
	}
	return catalog.ComponentFile{
		Kind:      w.w.id.Kind,
		HeadBlock: sf.HeadBlock,
		ByteSize:  sf.Size(),
	}, nil
}

// Delete is a no-op at the directory layer: component files are only ever
// reclaimed by catalog.GC once no snapshot can see their owning segment,
// never by a direct per-file delete.
func (d *Dir) Delete(FileID) error { return nil }

// AcquireLock takes an advisory, process-local lock used only to
// serialise merges; it never blocks correctness for concurrent readers.
func (d *Dir) AcquireLock(name string) (release func(), ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, held := d.locks[name]; held {
		return nil, false
	}
	d.locks[name] = struct{}{}
	return func() {
		d.mu.Lock()
		delete(d.locks, name)
		d.mu.Unlock()
	}, true
}
