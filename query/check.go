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

// ErrUnknownField is returned by Bind when a leaf names a field absent
// from the schema.
type ErrUnknownField struct{ Field string }

func (e *ErrUnknownField) Error() string { return fmt.Sprintf("query: unknown field %q", e.Field) }

// QueryStringParser turns a Tantivy-style query string into a Node tree,
// resolving bare (unqualified) terms against defaultField. The host
// supplies the concrete grammar; this package only calls it during Bind.
type QueryStringParser interface {
	ParseQueryString(qs string, lenient, conjunctionMode bool, defaultField string) (Node, error)
}

// Bridge type-checks and binds a raw Node tree (as produced by a host
// expression translator) against a Schema before it reaches the search
// reader: it resolves Parse nodes via parser, fills in each leaf's Type
// and Mode from the schema, and rejects predicates against unknown
// fields. It does not check that a leaf's kind suits its field.
type Bridge struct {
	Schema Schema
	Parser QueryStringParser
}

// Bind type-checks n, resolving any Parse leaves and stamping every leaf
// with its schema-derived Type/IsDatetime/Mode. It returns an error
// naming the offending field on the first problem found.
func (b *Bridge) Bind(n Node) (Node, error) {
	return bindRewrite{b}.bind(n)
}

type bindRewrite struct{ b *Bridge }

func (r bindRewrite) bind(n Node) (Node, error) {
	switch n := n.(type) {
	case All, Empty:
		return n, nil
	case *Term:
		info, err := r.b.Schema.Lookup(n.Field)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Type = info.Type
		out.IsDatetime = info.IsDatetime
		return &out, nil
	case *TermSet:
		info, err := r.b.Schema.Lookup(n.Field)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Type = info.Type
		return &out, nil
	case *Phrase:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *PhrasePrefix:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *FuzzyTerm:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *Match:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *Range:
		info, err := r.b.Schema.Lookup(n.Field)
		if err != nil {
			return nil, err
		}
		out := *n
		out.Type = info.Type
		out.IsDatetime = info.IsDatetime
		if out.Mode == RangeModeScalar && info.IsRange {
			// A range-typed field with no explicit relation defaults to
			// Intersects, matching Postgres's own && operator default.
			out.Mode = RangeModeIntersects
		}
		return &out, nil
	case *Regex:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *RegexPhrase:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *Exists:
		if _, err := r.b.Schema.Lookup(n.Field); err != nil {
			return nil, err
		}
		return n, nil
	case *MoreLikeThis:
		for _, f := range n.Fields {
			if _, err := r.b.Schema.Lookup(f); err != nil {
				return nil, err
			}
		}
		return n, nil
	case *Parse:
		if r.b.Parser == nil {
			return nil, fmt.Errorf("query: Bind: *Parse node but Bridge has no QueryStringParser")
		}
		parsed, err := r.b.Parser.ParseQueryString(n.QueryString, n.Lenient, n.ConjunctionMode, n.DefaultField)
		if err != nil {
			return nil, fmt.Errorf("query: parsing %q: %w", n.QueryString, err)
		}
		return r.bind(parsed)
	case *Boolean:
		out := &Boolean{MinimumShouldMatch: n.MinimumShouldMatch}
		for _, c := range n.Must {
			b, err := r.bind(c)
			if err != nil {
				return nil, err
			}
			out.Must = append(out.Must, b)
		}
		for _, c := range n.Should {
			b, err := r.bind(c)
			if err != nil {
				return nil, err
			}
			out.Should = append(out.Should, b)
		}
		for _, c := range n.MustNot {
			b, err := r.bind(c)
			if err != nil {
				return nil, err
			}
			out.MustNot = append(out.MustNot, b)
		}
		return out, nil
	case *Boost:
		inner, err := r.bind(n.Inner)
		if err != nil {
			return nil, err
		}
		return &Boost{Factor: n.Factor, Inner: inner}, nil
	case *ConstScore:
		inner, err := r.bind(n.Inner)
		if err != nil {
			return nil, err
		}
		return &ConstScore{Score: n.Score, Inner: inner}, nil
	default:
		return nil, fmt.Errorf("query: Bind: unhandled node type %T", n)
	}
}
