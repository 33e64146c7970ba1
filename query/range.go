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

package query

import "fmt"

// StoredRange is one field's range-typed value for a document: a pair of
// bounds over the field's scalar domain, mirroring Postgres's range types
// (int4range, numrange, daterange, tsrange, tstzrange).
type StoredRange struct {
	Lower RangeBound
	Upper RangeBound
}

// compareValues orders two bound values of the same underlying kind. It
// panics on a type mismatch, which indicates a caller bug. Bridge.Bind
// does not convert bound values, so both must already share one Go type.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case uint64:
		bv := b.(uint64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		panic(fmt.Sprintf("query: compareValues: unsupported bound type %T", a))
	}
}

// lowerAtMost reports whether a's lower bound is at or below b's, treating
// an unbounded (nil) side as -infinity.
func lowerAtMost(a, b RangeBound) bool {
	if a.Value == nil {
		return true
	}
	if b.Value == nil {
		return false
	}
	c := compareValues(a.Value, b.Value)
	if c != 0 {
		return c < 0
	}
	// Equal endpoints: a reaches at least as far down as b only if a is
	// inclusive or b is exclusive.
	return a.Inclusive || !b.Inclusive
}

// upperAtLeast reports whether a's upper bound is at or above b's,
// treating an unbounded (nil) side as +infinity.
func upperAtLeast(a, b RangeBound) bool {
	if a.Value == nil {
		return true
	}
	if b.Value == nil {
		return false
	}
	c := compareValues(a.Value, b.Value)
	if c != 0 {
		return c > 0
	}
	return a.Inclusive || !b.Inclusive
}

// boundsOverlap reports whether [aLower, aUpper] and [bLower, bUpper]
// share at least one point.
func boundsOverlap(aLower, aUpper, bLower, bUpper RangeBound) bool {
	// a's lower must not exceed b's upper, and b's lower must not exceed
	// a's upper.
	aLowerLEbUpper := bUpper.Value == nil || aLower.Value == nil ||
		compareValues(aLower.Value, bUpper.Value) < 0 ||
		(compareValues(aLower.Value, bUpper.Value) == 0 && aLower.Inclusive && bUpper.Inclusive)
	bLowerLEaUpper := aUpper.Value == nil || bLower.Value == nil ||
		compareValues(bLower.Value, aUpper.Value) < 0 ||
		(compareValues(bLower.Value, aUpper.Value) == 0 && bLower.Inclusive && aUpper.Inclusive)
	return aLowerLEbUpper && bLowerLEaUpper
}

// EvaluateRange reports whether stored relates to [lower, upper] the way
// mode demands. Grounded on Postgres's native range operators (<@, @>,
// &&), which the reference implementation delegates to for range-typed
// columns: Contains means stored encloses the query range, Within means
// the query range encloses stored, Intersects means they share any point.
func EvaluateRange(mode RangeMode, stored StoredRange, lower, upper RangeBound) bool {
	switch mode {
	case RangeModeContains:
		// stored contains [lower, upper]: stored's lower <= lower and
		// stored's upper >= upper.
		return lowerAtMost(stored.Lower, lower) && upperAtLeast(stored.Upper, upper)
	case RangeModeWithin:
		// stored is contained by [lower, upper]: lower <= stored's lower
		// and stored's upper <= upper.
		return lowerAtMost(lower, stored.Lower) && upperAtLeast(upper, stored.Upper)
	case RangeModeIntersects:
		return boundsOverlap(stored.Lower, stored.Upper, lower, upper)
	default:
		panic("query: EvaluateRange called with RangeModeScalar; use EvaluateScalarRange instead")
	}
}

// EvaluateScalarRange reports whether value falls within [lower, upper]
// for an ordinary (non-range-typed) field, respecting each bound's
// inclusivity and treating a nil bound as unbounded on that side.
func EvaluateScalarRange(value any, lower, upper RangeBound) bool {
	if lower.Value != nil {
		c := compareValues(lower.Value, value)
		if c > 0 || (c == 0 && !lower.Inclusive) {
			return false
		}
	}
	if upper.Value != nil {
		c := compareValues(value, upper.Value)
		if c > 0 || (c == 0 && !upper.Inclusive) {
			return false
		}
	}
	return true
}
