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

package fastfield

import "testing"

func TestNumericRoundTrip(t *testing.T) {
	b := NewNumericBuilder(KindI64)
	b.SetI64(0, 42)
	b.SetI64(2, -7)
	col, err := Open(KindI64, b.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if v := col.Value(0); !v.Valid || v.I64 != 42 {
		t.Fatalf("doc 0: got %+v", v)
	}
	if v := col.Value(1); v.Valid {
		t.Fatalf("doc 1 should be absent, got %+v", v)
	}
	if v := col.Value(2); !v.Valid || v.I64 != -7 {
		t.Fatalf("doc 2: got %+v", v)
	}
}

func TestTextRoundTrip(t *testing.T) {
	b := NewTextBuilder()
	b.Set(0, "electronics")
	b.Set(1, "books")
	b.Set(3, "electronics")
	col, err := Open(KindText, b.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if v := col.Value(0); v.Text != "electronics" {
		t.Fatalf("doc 0: got %q", v.Text)
	}
	if v := col.Value(2); v.Valid {
		t.Fatalf("doc 2 should be absent")
	}
	ord0, ok := col.Ord(0)
	if !ok {
		t.Fatal("doc 0 should have an ord")
	}
	ord3, _ := col.Ord(3)
	if ord0 != ord3 {
		t.Fatalf("docs 0 and 3 share a term and should share an ordinal: %d vs %d", ord0, ord3)
	}
}

func TestAsU64ForCtid(t *testing.T) {
	b := NewNumericBuilder(KindU64)
	b.SetU64(5, 123456)
	col, err := Open(KindU64, b.Encode())
	if err != nil {
		t.Fatal(err)
	}
	v, ok := col.AsU64(5)
	if !ok || v != 123456 {
		t.Fatalf("got (%d, %v)", v, ok)
	}
	if _, ok := col.AsU64(0); ok {
		t.Fatal("doc 0 has no value and should report ok=false")
	}
}

func TestRangeRoundTrip(t *testing.T) {
	b := NewRangeBuilder()
	b.Set(0, RangeValue{LowerSet: true, LowerValue: 5, LowerInclusive: true, UpperSet: true, UpperValue: 15})
	b.Set(2, RangeValue{LowerSet: true, LowerValue: 100, LowerInclusive: true})

	col, err := Open(KindRange, b.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if col.Kind() != KindRange {
		t.Fatalf("expected KindRange, got %v", col.Kind())
	}

	rv, ok := col.Range(0)
	if !ok {
		t.Fatal("doc 0 should have a range value")
	}
	if !rv.LowerSet || rv.LowerValue != 5 || !rv.UpperSet || rv.UpperValue != 15 || rv.UpperInclusive {
		t.Fatalf("doc 0: got %+v", rv)
	}

	if _, ok := col.Range(1); ok {
		t.Fatal("doc 1 should be absent")
	}

	rv2, ok := col.Range(2)
	if !ok || !rv2.LowerSet || rv2.UpperSet {
		t.Fatalf("doc 2: expected an upper-unbounded range, got %+v (ok=%v)", rv2, ok)
	}

	// Value is a no-op for a range column: callers must go through Range.
	if v := col.Value(0); v.Valid {
		t.Fatalf("range column Value should never report Valid, got %+v", v)
	}
}
