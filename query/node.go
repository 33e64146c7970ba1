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

// Package query implements the predicate tree: a typed
// sum type covering terms, phrases, ranges, booleans, fuzzy and regex
// matches, and the planner bridge that types, normalises, and simplifies
// it from a host expression.
package query

import "github.com/paradedb/paradedb-go/fastfield"

// FieldType names the storage representation backing a predicate leaf.
// Every leaf carries one so the tree can be evaluated without consulting
// external schema state once it has been bound.
type FieldType = fastfield.Kind

// Node is the predicate tree sum type. Every variant below implements it;
// the set is closed (a new variant is a breaking change to the codec in
// codec.go, which rejects unknown tags on decode).
type Node interface {
	// isNode is unexported so Node cannot be implemented outside this
	// package, keeping the sum type closed.
	isNode()
	// walk lets Rewrite descend into a node's children without every
	// caller needing to type-switch on every variant.
	walk(r Rewriter) Node
}

// Rewriter rewrites a Node tree in depth-first order.
type Rewriter interface {
	Rewrite(Node) Node
	Walk(Node) Rewriter
}

// Rewrite recursively applies r to n in depth-first order.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if rc := r.Walk(n); rc != nil {
		n = n.walk(rc)
	}
	return r.Rewrite(n)
}

// All matches every document.
type All struct{}

// Empty matches no documents.
type Empty struct{}

// Term matches a single token against field.
type Term struct {
	Field      string
	Value      string
	Type       FieldType
	IsDatetime bool
}

// TermSet matches any token in Values against field (an OR of Terms; the
// reader looks up each value's postings and keeps each document's best
// score).
type TermSet struct {
	Field  string
	Values []string
	Type   FieldType
}

// Phrase matches Tokens in sequence, allowing Slop intervening positions.
type Phrase struct {
	Field string
	Tokens []string
	Slop  int
}

// PhrasePrefix matches Tokens in sequence where the final token is treated
// as a prefix.
type PhrasePrefix struct {
	Field  string
	Tokens []string
}

// FuzzyTerm matches Value against field allowing up to Distance character
// edits.
type FuzzyTerm struct {
	Field               string
	Value               string
	Distance            int
	TranspositionCostOne bool
	Prefix               int
}

// Match runs Text through the field's (or an overridden) tokenizer and ORs
// (or, if Conjunction is true, ANDs) the resulting tokens.
type Match struct {
	Field       string
	Text        string
	Tokenizer   string // empty = field default
	Distance    int    // fuzzy distance, 0 = exact
	Conjunction bool
}

// RangeBound is one side of a Range predicate.
type RangeBound struct {
	Value     any // nil means unbounded
	Inclusive bool
}

// RangeMode selects how a Range predicate is applied to range-valued
// fields: Contains requires the stored range to contain the
// query range, Within requires the stored range to be contained by the
// query range, Intersects requires any overlap. It has no effect on
// scalar fields.
type RangeMode int

const (
	// RangeModeScalar is the default for non-range-valued fields: plain
	// lower/upper bound comparison.
	RangeModeScalar RangeMode = iota
	RangeModeContains
	RangeModeWithin
	RangeModeIntersects
)

// Range matches documents whose value for Field falls within
// [Lower, Upper] per Mode.
type Range struct {
	Field      string
	Lower      RangeBound
	Upper      RangeBound
	Type       FieldType
	IsDatetime bool
	Mode       RangeMode
}

// Regex matches field against a regular expression.
type Regex struct {
	Field   string
	Pattern string
}

// RegexPhrase matches a sequence of regular expressions against adjacent
// token positions.
type RegexPhrase struct {
	Field    string
	Patterns []string
	Slop     int
}

// Parse lazily parses QueryString using the query-string grammar
// (paradedb.parse); it is resolved to a concrete Node during type-checking
// (Bridge.Bind), since the grammar needs the schema to resolve bare field
// names.
type Parse struct {
	QueryString     string
	Lenient         bool
	ConjunctionMode bool
	DefaultField    string
}

// Boolean is a three-way boolean combinator: all of Must, any of Should
// (subject to MinimumShouldMatch), none of MustNot.
type Boolean struct {
	Must              []Node
	Should            []Node
	MustNot           []Node
	MinimumShouldMatch int
}

// Boost multiplies Inner's score by Factor.
type Boost struct {
	Factor float32
	Inner  Node
}

// ConstScore replaces Inner's score with Score for every match.
type ConstScore struct {
	Score float32
	Inner Node
}

// MoreLikeThis finds documents similar to the text extracted from the
// given fields of a reference document.
type MoreLikeThis struct {
	Fields         []string
	DocumentFields map[string]string
	MinTermFreq    int
	MinDocFreq     int
	MaxQueryTerms  int
}

// Exists matches documents that have any value at all for Field.
type Exists struct {
	Field string
}

func (All) isNode()          {}
func (Empty) isNode()        {}
func (*Term) isNode()        {}
func (*TermSet) isNode()     {}
func (*Phrase) isNode()      {}
func (*PhrasePrefix) isNode() {}
func (*FuzzyTerm) isNode()   {}
func (*Match) isNode()       {}
func (*Range) isNode()       {}
func (*Regex) isNode()       {}
func (*RegexPhrase) isNode() {}
func (*Parse) isNode()       {}
func (*Boolean) isNode()     {}
func (*Boost) isNode()       {}
func (*ConstScore) isNode()  {}
func (*MoreLikeThis) isNode() {}
func (*Exists) isNode()      {}

func (n All) walk(Rewriter) Node   { return n }
func (n Empty) walk(Rewriter) Node { return n }
func (n *Term) walk(Rewriter) Node { return n }
func (n *TermSet) walk(Rewriter) Node { return n }
func (n *Phrase) walk(Rewriter) Node  { return n }
func (n *PhrasePrefix) walk(Rewriter) Node { return n }
func (n *FuzzyTerm) walk(Rewriter) Node    { return n }
func (n *Match) walk(Rewriter) Node        { return n }
func (n *Range) walk(Rewriter) Node        { return n }
func (n *Regex) walk(Rewriter) Node        { return n }
func (n *RegexPhrase) walk(Rewriter) Node  { return n }
func (n *Parse) walk(Rewriter) Node        { return n }
func (n *Exists) walk(Rewriter) Node       { return n }

func (n *Boolean) walk(r Rewriter) Node {
	out := &Boolean{MinimumShouldMatch: n.MinimumShouldMatch}
	for _, c := range n.Must {
		out.Must = append(out.Must, Rewrite(r, c))
	}
	for _, c := range n.Should {
		out.Should = append(out.Should, Rewrite(r, c))
	}
	for _, c := range n.MustNot {
		out.MustNot = append(out.MustNot, Rewrite(r, c))
	}
	return out
}

func (n *Boost) walk(r Rewriter) Node {
	return &Boost{Factor: n.Factor, Inner: Rewrite(r, n.Inner)}
}

func (n *ConstScore) walk(r Rewriter) Node {
	return &ConstScore{Score: n.Score, Inner: Rewrite(r, n.Inner)}
}

func (n *MoreLikeThis) walk(Rewriter) Node { return n }
