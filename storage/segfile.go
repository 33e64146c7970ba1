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
)

// payloadPerPage is how many content bytes Write puts into each page's
// single item: the slab less 8 bytes of slack for the item's line pointer.
const payloadPerPage = PageSize - specialSize - 8 /* line-ptr slot slack */

// SegmentedFile is a logical byte stream stored as a chain of pages: one
// "file" that the inverted-index library believes it has written to disk
// ("Segmented file"). Writes append; reads are random-access by
// (block, offset).
type SegmentedFile struct {
	pool       *Pool
	fsm        *FreeSpaceMap
	HeadBlock  Blockno
	TotalBytes int64

	// index maps a byte offset's chunk index to its block number, built
	// lazily on first random-access read.
	index []Blockno
}

// CreateSegmentedFile allocates a new, empty segmented file.
func CreateSegmentedFile(pool *Pool, fsm *FreeSpaceMap) (*SegmentedFile, error) {
	h, err := pool.NewBuffer()
	if err != nil {
		return nil, err
	}
	blk := h.Blockno()
	if err := h.Close(); err != nil {
		return nil, err
	}
	return &SegmentedFile{pool: pool, fsm: fsm, HeadBlock: blk}, nil
}

// OpenSegmentedFile reattaches a SegmentedFile from persisted catalog
// state.
func OpenSegmentedFile(pool *Pool, fsm *FreeSpaceMap, head Blockno, totalBytes int64) *SegmentedFile {
	return &SegmentedFile{pool: pool, fsm: fsm, HeadBlock: head, TotalBytes: totalBytes}
}

// Write appends p to the end of the file, allocating new pages as
// necessary.
func (s *SegmentedFile) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		tailBlk, err := s.tailBlock()
		if err != nil {
			return written, err
		}
		h, err := s.pool.GetExclusive(tailBlk)
		if err != nil {
			return written, err
		}
		chunk := p
		if len(chunk) > payloadPerPage {
			chunk = chunk[:payloadPerPage]
		}
		off := h.Page().AppendItem(chunk)
		if off == InvalidOffset {
			nb, err := s.pool.NewBuffer()
			if err != nil {
				h.Close()
				return written, err
			}
			sp := h.Page().Special()
			sp.NextBlockno = uint32(nb.Blockno())
			h.Page().SetSpecial(sp)
			h.MarkDirty()
			if err := h.Close(); err != nil {
				return written, err
			}
			if err := nb.Close(); err != nil {
				return written, err
			}
			continue
		}
		h.MarkDirty()
		if err := h.Close(); err != nil {
			return written, err
		}
		s.TotalBytes += int64(len(chunk))
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

func (s *SegmentedFile) tailBlock() (Blockno, error) {
	cur := s.HeadBlock
	for {
		h, err := s.pool.GetShared(cur)
		if err != nil {
			return 0, err
		}
		next := h.Page().Special().NextBlockno
		h.Close()
		if next == InvalidBlockno {
			return cur, nil
		}
		cur = Blockno(next)
	}
}

func (s *SegmentedFile) buildIndex() error {
	if s.index != nil {
		return nil
	}
	cur := s.HeadBlock
	for cur != InvalidBlockno {
		s.index = append(s.index, cur)
		h, err := s.pool.GetShared(cur)
		if err != nil {
			return err
		}
		next := h.Page().Special().NextBlockno
		h.Close()
		cur = Blockno(next)
	}
	return nil
}

// ReadAt implements random access by logical byte offset.
func (s *SegmentedFile) ReadAt(p []byte, off int64) (int, error) {
	if err := s.buildIndex(); err != nil {
		return 0, err
	}
	if off >= s.TotalBytes {
		return 0, io.EOF
	}
	chunkIdx := int(off / payloadPerPage)
	chunkOff := int(off % payloadPerPage)
	read := 0
	for chunkIdx < len(s.index) && read < len(p) {
		h, err := s.pool.GetShared(s.index[chunkIdx])
		if err != nil {
			return read, err
		}
		body, ok := h.Page().Item(1)
		if !ok {
			h.Close()
			return read, fmt.Errorf("storage: corrupt segmented file at block %d", s.index[chunkIdx])
		}
		if chunkOff < len(body) {
			n := copy(p[read:], body[chunkOff:])
			read += n
		}
		h.Close()
		chunkIdx++
		chunkOff = 0
	}
	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}

// Size returns the file's logical length in bytes.
func (s *SegmentedFile) Size() int64 { return s.TotalBytes }

// Delete returns every page in the chain to the free-space map. Callers
// must ensure no catalog entry still references this file before calling
// Delete (no page appears in more than one live chain).
func (s *SegmentedFile) Delete() error {
	var blocks []Blockno
	cur := s.HeadBlock
	for cur != InvalidBlockno {
		h, err := s.pool.GetShared(cur)
		if err != nil {
			return err
		}
		blocks = append(blocks, cur)
		next := h.Page().Special().NextBlockno
		h.Close()
		cur = Blockno(next)
	}
	return s.fsm.Extend(blocks)
}
