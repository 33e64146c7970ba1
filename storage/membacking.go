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

import "sync"

// MemBacking is an in-memory Backing used by tests across the module; it
// is not used in production (there the backing is the host's relation
// file) but is exported so catalog, indexer, and searchexec tests can all
// build a Pool without touching a real filesystem.
type MemBacking struct {
	mu   sync.Mutex
	data []byte
}

// NewMemBacking returns an empty in-memory backing store.
func NewMemBacking() *MemBacking { return &MemBacking{} }

// ReadAt implements io.ReaderAt.
func (m *MemBacking) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off >= int64(len(m.data)) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, m.data[off:])
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// WriteAt implements io.WriterAt.
func (m *MemBacking) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)
	return len(p), nil
}

// Truncate implements Backing.
func (m *MemBacking) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.data)
	m.data = grown
	return nil
}

// Size implements Backing.
func (m *MemBacking) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}
