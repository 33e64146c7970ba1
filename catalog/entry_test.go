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
	"testing"

	"github.com/paradedb/paradedb-go/date"
	"github.com/paradedb/paradedb-go/ion"
)

func TestSegmentMetaEntryEncodeDecode(t *testing.T) {
	e := &SegmentMetaEntry{
		SegmentID: NewSegmentID(),
		Xmin:      7,
		Xmax:      InvalidXid,
		ByteSize:  1 << 20,
		MaxDoc:    1234,
		CreatedAt: date.Date(2024, 3, 15, 9, 30, 0, 0),
		Components: []ComponentFile{
			{Kind: "postings:title", HeadBlock: 3, ByteSize: 512},
		},
	}

	var st ion.Symtab
	var buf ion.Buffer
	e.Encode(&buf, &st)

	got, err := DecodeEntry(&st, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got.SegmentID != e.SegmentID {
		t.Errorf("SegmentID: got %v want %v", got.SegmentID, e.SegmentID)
	}
	if got.Xmin != e.Xmin || got.Xmax != e.Xmax {
		t.Errorf("xmin/xmax: got %d/%d want %d/%d", got.Xmin, got.Xmax, e.Xmin, e.Xmax)
	}
	if got.ByteSize != e.ByteSize || got.MaxDoc != e.MaxDoc {
		t.Errorf("byte_size/max_doc: got %d/%d want %d/%d", got.ByteSize, got.MaxDoc, e.ByteSize, e.MaxDoc)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created_at: got %v want %v", got.CreatedAt, e.CreatedAt)
	}
	if len(got.Components) != 1 || got.Components[0].Kind != "postings:title" {
		t.Errorf("components: got %+v", got.Components)
	}
}
