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

package regexp2

// MatchString reports whether s contains a match for the compiled DFA
// anywhere in s, the same unanchored search semantics as
// regexp.Regexp.MatchString, but walking store's minimized DFA one rune
// at a time instead of going back through the stdlib automaton. It tries
// every start offset in turn, accepting as soon as any of them reaches an
// accept node.
//
// A trailing '$' compiles down to an RLZA ("remaining length zero
// assertion") edge rather than an ordinary rune-consuming one; it is only
// checked once input is exhausted, so a '$' in the middle of an
// alternation is honored but one combined with further consumable
// branches past it is not — the same simplification CompileDFA's own
// RLZA pruning pass documents.
func (store *DFAStore) MatchString(s string) bool {
	runes := []rune(s)
	for start := 0; start <= len(runes); start++ {
		ok, err := store.matchFrom(runes[start:])
		if err != nil {
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

func (store *DFAStore) matchFrom(runes []rune) (bool, error) {
	id, err := store.startID()
	if err != nil {
		return false, err
	}
	node, err := store.get(id)
	if err != nil {
		return false, err
	}
	if node.accept {
		return true, nil
	}
	for _, r := range runes {
		to, ok := dfaStep(node, r)
		if !ok {
			return false, nil
		}
		node, err = store.get(to)
		if err != nil {
			return false, err
		}
		if node.accept {
			return true, nil
		}
	}
	if to, ok := dfaStepRLZA(node); ok {
		end, err := store.get(to)
		if err != nil {
			return false, err
		}
		if end.accept {
			return true, nil
		}
	}
	return false, nil
}

// dfaStep follows node's first rune-consuming edge whose range contains
// r, ignoring RLZA-only edges (those never consume a rune).
func dfaStep(node *DFA, r rune) (nodeIDT, bool) {
	for _, e := range node.edges {
		min, max, rlza := e.symbolRange.split()
		if rlza {
			continue
		}
		if r >= min && r <= max {
			return e.to, true
		}
	}
	return 0, false
}

// dfaStepRLZA follows node's RLZA edge, taken only once input is
// exhausted.
func dfaStepRLZA(node *DFA) (nodeIDT, bool) {
	for _, e := range node.edges {
		if _, _, rlza := e.symbolRange.split(); rlza {
			return e.to, true
		}
	}
	return 0, false
}
