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

package catalog

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/paradedb/paradedb-go/date"
	"github.com/paradedb/paradedb-go/ion"
	"github.com/paradedb/paradedb-go/storage"
)

// ComponentKind names one file belonging to a segment, matching the file
// set the inverted-index library writes per segment (postings, fast
// fields, store, positions, ...). The exact set of kinds is owned by the
// indexer package; the catalog only needs to key and size them.
type ComponentKind string

// ComponentFile records where one segment component lives in the paged
// storage and how large it is.
type ComponentFile struct {
	Kind      ComponentKind
	HeadBlock storage.Blockno
	ByteSize  int64
}

// SegmentMetaEntry is one row of the segment catalog: an immutable
// snapshot of a portion of the inverted index,
// visible to snapshots per Xmin/Xmax.
type SegmentMetaEntry struct {
	SegmentID uuid.UUID
	Xmin      Xid
	Xmax      Xid // InvalidXid until marked deleted
	ByteSize  int64
	MaxDoc    uint32
	// CreatedAt is when the segment was built, recorded at second
	// precision; vacuum and retention policy read it, not queries.
	CreatedAt date.Time
	// Deletes is the alive-bitset complement: set bits are dead document
	// ids within this segment, collected by vacuum.
	Deletes    *roaring.Bitmap
	Components []ComponentFile
}

// NewSegmentID mints a fresh segment identifier.
func NewSegmentID() uuid.UUID { return uuid.New() }

// Visible reports whether the entry is visible under snap.
func (e *SegmentMetaEntry) Visible(snap Snapshot) bool {
	return snap.Visible(e.Xmin, e.Xmax)
}

// Component returns the named component file, or false if the segment
// does not carry one.
func (e *SegmentMetaEntry) Component(kind ComponentKind) (ComponentFile, bool) {
	for _, c := range e.Components {
		if c.Kind == kind {
			return c, true
		}
	}
	return ComponentFile{}, false
}

// Encode serializes the entry using the module's shared ion symbol table,
// mirroring ion/blockfmt.Trailer.Encode.
func (e *SegmentMetaEntry) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)

	dst.BeginField(st.Intern("segment_id"))
	dst.WriteBlob(e.SegmentID[:])

	dst.BeginField(st.Intern("xmin"))
	dst.WriteUint(uint64(e.Xmin))

	dst.BeginField(st.Intern("xmax"))
	dst.WriteUint(uint64(e.Xmax))

	dst.BeginField(st.Intern("byte_size"))
	dst.WriteInt(e.ByteSize)

	dst.BeginField(st.Intern("max_doc"))
	dst.WriteUint(uint64(e.MaxDoc))

	dst.BeginField(st.Intern("created_at"))
	dst.WriteTruncatedTime(e.CreatedAt, ion.TruncToSecond)

	if e.Deletes != nil && !e.Deletes.IsEmpty() {
		raw, _ := e.Deletes.ToBytes()
		dst.BeginField(st.Intern("deletes"))
		dst.WriteBlob(raw)
	}

	dst.BeginField(st.Intern("components"))
	dst.BeginList(-1)
	symKind := st.Intern("kind")
	symHead := st.Intern("head_block")
	symSize := st.Intern("byte_size")
	for _, c := range e.Components {
		dst.BeginStruct(-1)
		dst.BeginField(symKind)
		dst.WriteString(string(c.Kind))
		dst.BeginField(symHead)
		dst.WriteUint(uint64(c.HeadBlock))
		dst.BeginField(symSize)
		dst.WriteInt(c.ByteSize)
		dst.EndStruct()
	}
	dst.EndList()

	dst.EndStruct()
}

// DecodeEntry parses one SegmentMetaEntry out of body, which must be the
// encoding produced by Encode.
func DecodeEntry(st *ion.Symtab, body []byte) (*SegmentMetaEntry, error) {
	e := &SegmentMetaEntry{}
	_, err := ion.UnpackStruct(st, body, func(name string, field []byte) error {
		switch name {
		case "segment_id":
			blob, _, err := readBlob(field)
			if err != nil {
				return err
			}
			if len(blob) != 16 {
				return fmt.Errorf("catalog: corrupt segment_id (%d bytes)", len(blob))
			}
			copy(e.SegmentID[:], blob)
		case "xmin":
			v, _, err := ion.ReadUint(field)
			if err != nil {
				return err
			}
			e.Xmin = Xid(v)
		case "xmax":
			v, _, err := ion.ReadUint(field)
			if err != nil {
				return err
			}
			e.Xmax = Xid(v)
		case "byte_size":
			v, _, err := ion.ReadInt(field)
			if err != nil {
				return err
			}
			e.ByteSize = v
		case "max_doc":
			v, _, err := ion.ReadUint(field)
			if err != nil {
				return err
			}
			e.MaxDoc = uint32(v)
		case "created_at":
			t, _, err := ion.ReadTime(field)
			if err != nil {
				return err
			}
			e.CreatedAt = t
		case "deletes":
			blob, _, err := readBlob(field)
			if err != nil {
				return err
			}
			bm := roaring.New()
			if err := bm.UnmarshalBinary(blob); err != nil {
				return fmt.Errorf("catalog: corrupt deletes bitmap: %w", err)
			}
			e.Deletes = bm
		case "components":
			return ion.UnpackList(field, func(item []byte) error {
				var c ComponentFile
				_, err := ion.UnpackStruct(st, item, func(name string, field []byte) error {
					switch name {
					case "kind":
						s, _, err := ion.ReadString(field)
						if err != nil {
							return err
						}
						c.Kind = ComponentKind(s)
					case "head_block":
						v, _, err := ion.ReadUint(field)
						if err != nil {
							return err
						}
						c.HeadBlock = storage.Blockno(v)
					case "byte_size":
						v, _, err := ion.ReadInt(field)
						if err != nil {
							return err
						}
						c.ByteSize = v
					}
					return nil
				})
				if err != nil {
					return err
				}
				e.Components = append(e.Components, c)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: decoding segment entry: %w", err)
	}
	return e, nil
}

// readBlob reads an ion blob value.
func readBlob(msg []byte) ([]byte, []byte, error) {
	return ion.ReadBytes(msg)
}
