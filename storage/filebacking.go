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

import "os"

// FileBacking adapts an *os.File to Backing. *os.File already implements
// ReaderAt/WriterAt/Truncate; only Size is missing (os.File exposes Stat
// instead), so this is a thin wrapper rather than a reimplementation.
type FileBacking struct{ f *os.File }

// NewFileBacking wraps an already-opened file. The caller owns f's
// lifetime (open/close); this only adds the Size method Backing needs.
func NewFileBacking(f *os.File) *FileBacking { return &FileBacking{f: f} }

// OpenFileBacking opens (creating if absent) the relation file at path for
// a Pool to use as its backing store.
func OpenFileBacking(path string) (*FileBacking, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return NewFileBacking(f), nil
}

func (b *FileBacking) ReadAt(p []byte, off int64) (int, error)  { return b.f.ReadAt(p, off) }
func (b *FileBacking) WriteAt(p []byte, off int64) (int, error) { return b.f.WriteAt(p, off) }
func (b *FileBacking) Truncate(size int64) error                { return b.f.Truncate(size) }

// Size implements Backing via Stat, since *os.File has no Size method of
// its own.
func (b *FileBacking) Size() (int64, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Close closes the underlying file.
func (b *FileBacking) Close() error { return b.f.Close() }

// Sync flushes the underlying file to stable storage.
func (b *FileBacking) Sync() error { return b.f.Sync() }
