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
	"errors"
)

// PageSize is the fixed size of every page, matching the host's block size.
const PageSize = 8192

// specialSize is the size in bytes of the trailing special area:
// { NextBlockno uint32, Xmax uint64 }.
const specialSize = 16

// InvalidBlockno marks the absence of a next block in a chain. It is
// untyped so it compares against both Blockno and Special.NextBlockno.
const InvalidBlockno = 0xFFFFFFFF

// InvalidOffset is returned by AppendItem when a page has no room left.
const InvalidOffset = -1

var errItemTooLarge = errors.New("storage: item larger than a page")

// Special is the 16-byte trailing area present on every page.
type Special struct {
	NextBlockno uint32
	Xmax        uint64
}

// itemPointer is one entry in the line-pointer array: an offset and length
// into the item slab, plus a dead flag set by MarkItemDead.
type itemPointer struct {
	off  uint16
	len  uint16
	dead bool
}

// Page is an in-memory, mutable view of one 8 KiB block. The line-pointer
// array grows from low addresses upward; item bodies are packed from the
// high end of the slab downward, leaving a contiguous free gap in the
// middle — the classic slotted-page layout.
type Page struct {
	ptrs    []itemPointer
	slab    [PageSize - specialSize]byte
	lower   uint16 // end of the line-pointer array
	upper   uint16 // start of the item body region (grows downward)
	special Special
}

// NewPage returns a freshly zeroed page with an empty item list.
func NewPage() *Page {
	p := &Page{}
	p.upper = uint16(len(p.slab))
	p.special.NextBlockno = InvalidBlockno
	return p
}

// Special returns the page's trailing special area.
func (p *Page) Special() Special { return p.special }

// SetSpecial overwrites the page's trailing special area.
func (p *Page) SetSpecial(s Special) { p.special = s }

// NumItems reports the number of line pointers, including dead ones.
func (p *Page) NumItems() int { return len(p.ptrs) }

// FreeSpace returns the number of bytes available for a new item, including
// the line-pointer slot it would consume.
func (p *Page) FreeSpace() int {
	const ptrSize = 4 // uint16 off + uint16 len
	free := int(p.upper) - int(p.lower) - ptrSize
	if free < 0 {
		return 0
	}
	return free
}

// AppendItem copies body into the page and returns its 1-based offset
// number, or InvalidOffset if the page does not have room.
func (p *Page) AppendItem(body []byte) int {
	if len(body) > len(p.slab) {
		panic(errItemTooLarge)
	}
	if p.FreeSpace() < len(body) {
		return InvalidOffset
	}
	p.upper -= uint16(len(body))
	copy(p.slab[p.upper:], body)
	p.ptrs = append(p.ptrs, itemPointer{off: p.upper, len: uint16(len(body))})
	p.lower += 4
	return len(p.ptrs)
}

// Item returns the body of the item at the given 1-based offset number.
// It returns (nil, false) for a dead or out-of-range item.
func (p *Page) Item(offsetNumber int) ([]byte, bool) {
	if offsetNumber < 1 || offsetNumber > len(p.ptrs) {
		return nil, false
	}
	ip := p.ptrs[offsetNumber-1]
	if ip.dead {
		return nil, false
	}
	return p.slab[ip.off : ip.off+ip.len], true
}

// MarkItemDead sets the dead flag on an item's line pointer without
// rearranging the slab; a later DeleteItems call reclaims the space.
func (p *Page) MarkItemDead(offsetNumber int) {
	if offsetNumber < 1 || offsetNumber > len(p.ptrs) {
		return
	}
	p.ptrs[offsetNumber-1].dead = true
}

// DeleteItems compacts the page in place, removing the line pointers and
// slab bytes of every item for which keep returns false. Offset numbers of
// surviving items are renumbered; callers must not cache offset numbers
// across a DeleteItems call.
func (p *Page) DeleteItems(keep func(offsetNumber int, body []byte) bool) {
	kept := make([]itemPointer, 0, len(p.ptrs))
	var slab [PageSize - specialSize]byte
	upper := uint16(len(slab))
	for i, ip := range p.ptrs {
		if ip.dead {
			continue
		}
		body := p.slab[ip.off : ip.off+ip.len]
		if !keep(i+1, body) {
			continue
		}
		upper -= uint16(len(body))
		copy(slab[upper:], body)
		kept = append(kept, itemPointer{off: upper, len: ip.len})
	}
	p.ptrs = kept
	p.slab = slab
	p.upper = upper
	p.lower = uint16(len(kept) * 4)
}

// IsEmpty reports whether the page carries no live items. An empty page
// (other than the first page of a list) is eligible to be spliced out of
// its chain and returned to the free-space map.
func (p *Page) IsEmpty() bool {
	for _, ip := range p.ptrs {
		if !ip.dead {
			return false
		}
	}
	return true
}

// Marshal serializes the page to exactly PageSize bytes, ready to be
// written through a Pager. The slab is written first, at the same
// absolute offsets item pointers index into (ip.off ranges over the
// whole slab, not just the space past the line-pointer array), and the
// header and line-pointer array are written on top of it afterward: both
// only ever occupy the slab's low region below p.lower, which AppendItem
// never writes an item body into, so overwriting it here is safe.
func (p *Page) Marshal() []byte {
	out := make([]byte, PageSize)
	copy(out[:len(p.slab)], p.slab[:])
	binary.LittleEndian.PutUint16(out[0:], p.lower)
	binary.LittleEndian.PutUint16(out[2:], p.upper)
	binary.LittleEndian.PutUint16(out[4:], uint16(len(p.ptrs)))
	off := 8
	for _, ip := range p.ptrs {
		flags := uint16(0)
		if ip.dead {
			flags = 1
		}
		binary.LittleEndian.PutUint16(out[off:], ip.off)
		binary.LittleEndian.PutUint16(out[off+2:], ip.len)
		binary.LittleEndian.PutUint16(out[off+4:], flags)
		off += 6
	}
	sp := out[len(p.slab):]
	binary.LittleEndian.PutUint32(sp[0:], p.special.NextBlockno)
	binary.LittleEndian.PutUint64(sp[4:], p.special.Xmax)
	return out
}

// Unmarshal decodes a page previously produced by Marshal. It returns an
// error if raw is not exactly PageSize bytes.
func Unmarshal(raw []byte) (*Page, error) {
	if len(raw) != PageSize {
		return nil, errors.New("storage: corrupt page (wrong size)")
	}
	p := &Page{}
	p.lower = binary.LittleEndian.Uint16(raw[0:])
	p.upper = binary.LittleEndian.Uint16(raw[2:])
	n := binary.LittleEndian.Uint16(raw[4:])
	p.ptrs = make([]itemPointer, n)
	off := 8
	for i := range p.ptrs {
		o := binary.LittleEndian.Uint16(raw[off:])
		l := binary.LittleEndian.Uint16(raw[off+2:])
		flags := binary.LittleEndian.Uint16(raw[off+4:])
		p.ptrs[i] = itemPointer{off: o, len: l, dead: flags&1 != 0}
		off += 6
	}
	copy(p.slab[:], raw[:len(p.slab)])
	sp := raw[len(raw)-specialSize:]
	p.special.NextBlockno = binary.LittleEndian.Uint32(sp[0:])
	p.special.Xmax = binary.LittleEndian.Uint64(sp[4:])
	return p, nil
}
