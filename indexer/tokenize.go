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

package indexer

import "strings"

// Tokenize splits text into lowercased alphanumeric tokens. It is the
// default tokenizer; a field's tokenizer name in the schema may select a
// different one in the future, but this is the only one implemented
// today.
func Tokenize(text string) []string {
	var toks []string
	start := -1
	lower := strings.ToLower(text)
	isWord := func(r byte) bool {
		return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
	}
	for i := 0; i < len(lower); i++ {
		if isWord(lower[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, lower[start:i])
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, lower[start:])
	}
	return toks
}
