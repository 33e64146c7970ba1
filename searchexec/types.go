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

package searchexec

import "github.com/paradedb/paradedb-go/fastfield"

// Hit is one matching document, resolved to its host tuple id.
type Hit struct {
	Score float32
	Ctid  uint64
	// Key is populated only in the OrderBy-driven full-features mode;
	// it holds the tagged value of OrderByField for the matching doc.
	Key fastfield.TaggedValue
}

// Mode selects which of the four search strategies Search uses. The
// zero value, ModeAuto, lets Params pick based on Limit/OrderByField, per
// the rule: Limit == 0 and no OrderByField means unordered streaming;
// Limit > 0 and no OrderByField means top-N; OrderByField set, or Offset
// > 0, means full-features.
type Mode int

const (
	ModeAuto Mode = iota
	ModeUnordered
	ModeTopN
	ModeFullFeatures
	ModeCountOnly
)

// Params configures one search.
type Params struct {
	Mode Mode

	// Limit bounds the number of hits returned. 0 means unbounded in
	// unordered and full-features modes; in top-N mode it returns no hits.
	Limit int
	// Offset skips the first Offset hits of the ordered result. It applies
	// only in full-features mode, with or without Limit.
	Offset int
	// Descending reverses score order (and, if OrderByField is set,
	// reverses that field's order instead).
	Descending bool

	// OrderByField, if non-empty, names a fast field the full-features
	// mode sorts by instead of score; OrderByKind must be its fastfield.Kind.
	OrderByField string
	OrderByKind  fastfield.Kind
}

func (p Params) resolveMode() Mode {
	if p.Mode != ModeAuto {
		return p.Mode
	}
	if p.OrderByField != "" || p.Offset > 0 {
		return ModeFullFeatures
	}
	if p.Limit > 0 {
		return ModeTopN
	}
	return ModeUnordered
}
