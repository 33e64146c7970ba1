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

import "fmt"

// Kind is the tagged type of one fast field column ("Fast
// field"). A tagged variant is preferred here over a polymorphic reader
// interface: the hot path is per-document, and a closed set
// of inlined accessors avoids a virtual dispatch per value.
type Kind int

const (
	KindInvalid Kind = iota
	KindText
	KindI64
	KindU64
	KindF64
	KindBool
	KindDate
	// KindRange stores a per-document numeric range (int8range, numrange,
	// daterange, tsrange, tstzrange), read back as a RangeValue rather
	// than a scalar TaggedValue.
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindRange:
		return "range"
	default:
		return "invalid"
	}
}

// Numeric reports whether values of this kind compare and aggregate as
// numbers. Bool is not counted as numeric here.
func (k Kind) Numeric() bool {
	switch k {
	case KindI64, KindU64, KindF64, KindDate:
		return true
	default:
		return false
	}
}

// TaggedValue is a dynamically typed fast-field value, resolved from a
// column's raw representation (e.g. a string's ordinal is resolved to its
// term via the dictionary).
type TaggedValue struct {
	Kind  Kind
	I64   int64
	U64   uint64
	F64   float64
	Bool  bool
	Text  string
	Range RangeValue // populated only when Kind == KindRange
	Valid bool       // false means the document has no value for this field
}

// NullSentinel returns the reserved value used in place of a SQL NULL when
// a value must still participate in ordered grouping.
func NullSentinel(k Kind) TaggedValue {
	switch k {
	case KindText:
		// near-maximal sentinel: it sorts after every term that does not
		// itself begin with four 0xff bytes. TextBuilder does not reject
		// such terms, so one of them can sort after (or equal) it.
		return TaggedValue{Kind: k, Text: "\xff\xff\xff\xffparadedb-null", Valid: true}
	case KindI64:
		return TaggedValue{Kind: k, I64: 1<<63 - 1, Valid: true}
	case KindU64, KindDate:
		return TaggedValue{Kind: k, U64: ^uint64(0), Valid: true}
	case KindF64:
		return TaggedValue{Kind: k, F64: maxFloat64, Valid: true}
	case KindBool:
		// the "2" sentinel: neither true (1) nor false (0)
		return TaggedValue{Kind: k, U64: 2, Valid: true}
	case KindRange:
		// rangeColumn.Value never reports Valid, so grouping by a range
		// field always takes this path; an empty range is not a value any
		// stored row can produce, so it's distinct from every real key.
		return TaggedValue{Kind: k, Valid: true}
	default:
		panic(fmt.Sprintf("fastfield: no null sentinel for kind %v", k))
	}
}

const maxFloat64 = 1.7976931348623157e+308
