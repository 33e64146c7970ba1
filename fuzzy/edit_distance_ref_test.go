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

package fuzzy

import (
	"testing"
	"unicode/utf8"
)

// TestEditDistanceRef checks editDistanceRef (and the exported Distance
// wrapper searchexec's fuzzy matching actually calls) against known
// Damerau-Levenshtein distances covering substitution, transposition,
// deletion and insertion.
func TestEditDistanceRef(t *testing.T) {
	t.Parallel()
	type unitTest struct {
		needle string
		data   string
		dist   int
	}

	unitTests := []unitTest{
		{"ABC", "AXC", 1},

		// equivalent
		{"a", "a", 0},

		// substitution
		{"ab", "cb", 1},
		{"abc", "dec", 2},
		{"abcd", "efgd", 3},

		// transposition
		{"ab", "ba", 1},
		{"ab", "cba", 2},
		{"ab", "cdba", 3},

		{"abc", "cb", 2},
		{"abc", "dcb", 2},
		{"abc", "decb", 3},

		{"abcd", "dc", 3},
		{"abcd", "edc", 3},
		{"abcd", "efdc", 3},

		// deletion
		{"ab", "b", 1},
		{"abc", "c", 2},
		{"abcd", "d", 3},

		// insertion
		{"a", "ba", 1},
		{"a", "bca", 2},
		{"a", "bcda", 3},
	}

	for _, ut := range unitTests {
		ut := ut
		t.Run(ut.needle+"/"+ut.data, func(t *testing.T) {
			if !utf8.ValidString(ut.needle) {
				t.Skip("needle is not valid UTF8")
			}
			got := editDistanceRef(ut.data, ut.needle)
			if got != ut.dist {
				t.Errorf("needle=%q data=%q: got %d, want %d", ut.needle, ut.data, got, ut.dist)
			}
			if via := Distance(ut.data, ut.needle); via != ut.dist {
				t.Errorf("Distance(%q, %q) = %d, want %d", ut.data, ut.needle, via, ut.dist)
			}
		})
	}
}

// TestTrueDamerauLevenshteinGrow exercises the incremental-reuse struct
// across inputs that force it to grow its matrix mid-run, the path
// fuzzyDistance relies on when a segment's longest matched term exceeds
// the initial 100-rune allocation.
func TestTrueDamerauLevenshteinGrow(t *testing.T) {
	tdl := new(4)
	short := tdl.Distance("ab", "ba")
	if short != 1 {
		t.Fatalf("short distance = %d, want 1", short)
	}
	long := tdl.Distance("abcdefghijklmnop", "ponmlkjihgfedcba")
	want := editDistanceRef("abcdefghijklmnop", "ponmlkjihgfedcba")
	if long != want {
		t.Fatalf("grown distance = %d, want %d", long, want)
	}
}
