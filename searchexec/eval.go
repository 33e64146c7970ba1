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

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/fuzzy"
	"github.com/paradedb/paradedb-go/indexer"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/regexp2"
)

// fuzzyMu serialises fuzzy.Distance calls: it shares a single
// package-level scratch buffer and is documented as not thread safe,
// but evaluate runs concurrently across segments.
var fuzzyMu sync.Mutex

func fuzzyDistance(a, b string) int {
	fuzzyMu.Lock()
	defer fuzzyMu.Unlock()
	return fuzzy.Distance(a, b)
}

// compileRegexMatcher compiles pattern once into a minimized DFA and
// returns a func matching a dictionary term against it, driving the
// match through regexp2's automaton engine (CompileDFA/MatchString)
// instead of the stdlib regexp it is built from.
func compileRegexMatcher(pattern string) (func(string) bool, error) {
	re, err := regexp2.Compile(pattern, regexp2.GolangRegexp)
	if err != nil {
		return nil, err
	}
	dfa, err := regexp2.CompileDFA(re, regexp2.MaxNodesAutomaton)
	if err != nil {
		return nil, err
	}
	return dfa.MatchString, nil
}

// scored is one segment's matching document set, keyed by docID, valued
// by the document's score contribution. Evaluate builds this tree-wise:
// Boolean.Must intersects, Boolean.Should unions and sums, Boolean.MustNot
// subtracts, Boost/ConstScore rescale.
type scored map[uint32]float32

// bm25Idf approximates the BM25 inverse document frequency term. Document
// frequency (df) is the number of documents in the segment matching the
// term; N is the segment's document count. Term frequency is always
// treated as 1: the postings list records presence, not per-document
// counts, so this is idf-only scoring rather than full BM25 (see
// DESIGN.md).
func bm25Idf(n, df int) float32 {
	if df <= 0 || n <= 0 {
		return 0
	}
	v := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	if v < 0 {
		v = 0
	}
	return float32(v)
}

func union(dst scored, src scored) {
	for doc, sc := range src {
		dst[doc] += sc
	}
}

func intersect(a, b scored) scored {
	out := make(scored, min(len(a), len(b)))
	for doc, sc := range a {
		if bsc, ok := b[doc]; ok {
			out[doc] = sc + bsc
		}
	}
	return out
}

func subtract(a, b scored) scored {
	if len(b) == 0 {
		return a
	}
	out := make(scored, len(a))
	for doc, sc := range a {
		if _, ok := b[doc]; !ok {
			out[doc] = sc
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func docsFromTerm(seg *segmentReader, field, value string) (scored, error) {
	pr, ok, err := seg.postingsFor(field)
	if err != nil {
		return nil, err
	}
	out := make(scored)
	if !ok {
		return out, nil
	}
	docs := pr.Docs(strings.ToLower(value))
	idf := bm25Idf(int(seg.numDocs()), len(docs))
	for _, d := range docs {
		out[d] = idf
	}
	return out, nil
}

func docsByPredicate(seg *segmentReader, field string, match func(term string) bool) (scored, error) {
	pr, ok, err := seg.postingsFor(field)
	if err != nil {
		return nil, err
	}
	out := make(scored)
	if !ok {
		return out, nil
	}
	for term, docs := range pr.Terms() {
		if !match(term) {
			continue
		}
		idf := bm25Idf(int(seg.numDocs()), len(docs))
		for _, d := range docs {
			if sc, ok := out[d]; !ok || idf > sc {
				out[d] = idf
			}
		}
	}
	return out, nil
}

// evaluate scores node's matches within seg. Every Node variant is
// handled; Phrase/PhrasePrefix/RegexPhrase ignore term adjacency (no
// position list is stored in postings) and instead AND or prefix-match
// their token set, documented as a known simplification in DESIGN.md.
func evaluate(seg *segmentReader, node query.Node) (scored, error) {
	switch n := node.(type) {
	case query.All:
		out := make(scored, seg.numDocs())
		for d := uint32(0); d < seg.numDocs(); d++ {
			out[d] = 0
		}
		return out, nil

	case query.Empty:
		return scored{}, nil

	case *query.Term:
		return docsFromTerm(seg, n.Field, n.Value)

	case *query.TermSet:
		out := make(scored)
		for _, v := range n.Values {
			s, err := docsFromTerm(seg, n.Field, v)
			if err != nil {
				return nil, err
			}
			for d, sc := range s {
				if cur, ok := out[d]; !ok || sc > cur {
					out[d] = sc
				}
			}
		}
		return out, nil

	case *query.Phrase:
		return evaluateConjunctionOfTokens(seg, n.Field, n.Tokens)

	case *query.PhrasePrefix:
		out, err := evaluateConjunctionOfTokens(seg, n.Field, n.Tokens[:max(0, len(n.Tokens)-1)])
		if err != nil {
			return nil, err
		}
		if len(n.Tokens) == 0 {
			return out, nil
		}
		prefix := strings.ToLower(n.Tokens[len(n.Tokens)-1])
		prefixed, err := docsByPredicate(seg, n.Field, func(t string) bool { return strings.HasPrefix(t, prefix) })
		if err != nil {
			return nil, err
		}
		if len(n.Tokens) == 1 {
			return prefixed, nil
		}
		return intersect(out, prefixed), nil

	case *query.FuzzyTerm:
		needle := strings.ToLower(n.Value)
		return docsByPredicate(seg, n.Field, func(t string) bool {
			return fuzzyDistance(t, needle) <= n.Distance
		})

	case *query.Match:
		tokens := indexer.Tokenize(n.Text)
		if n.Conjunction {
			return evaluateConjunctionOfTokens(seg, n.Field, tokens)
		}
		out := make(scored)
		for _, tok := range tokens {
			s, err := docsFromTerm(seg, n.Field, tok)
			if err != nil {
				return nil, err
			}
			union(out, s)
		}
		return out, nil

	case *query.Regex:
		match, err := compileRegexMatcher(n.Pattern)
		if err != nil {
			return nil, fmt.Errorf("searchexec: compiling regex %q: %w", n.Pattern, err)
		}
		return docsByPredicate(seg, n.Field, match)

	case *query.RegexPhrase:
		var out scored
		for i, pat := range n.Patterns {
			match, err := compileRegexMatcher(pat)
			if err != nil {
				return nil, fmt.Errorf("searchexec: compiling regex %q: %w", pat, err)
			}
			s, err := docsByPredicate(seg, n.Field, match)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				out = s
			} else {
				out = intersect(out, s)
			}
		}
		if out == nil {
			out = scored{}
		}
		return out, nil

	case *query.Range:
		return evaluateRange(seg, n)

	case *query.Boolean:
		return evaluateBoolean(seg, n)

	case *query.Boost:
		inner, err := evaluate(seg, n.Inner)
		if err != nil {
			return nil, err
		}
		out := make(scored, len(inner))
		for d, sc := range inner {
			out[d] = sc * n.Factor
		}
		return out, nil

	case *query.ConstScore:
		inner, err := evaluate(seg, n.Inner)
		if err != nil {
			return nil, err
		}
		out := make(scored, len(inner))
		for d := range inner {
			out[d] = n.Score
		}
		return out, nil

	case *query.MoreLikeThis:
		return evaluateMoreLikeThis(seg, n)

	case *query.Exists:
		return evaluateExists(seg, n)

	case *query.Parse:
		return nil, fmt.Errorf("searchexec: unbound Parse node reached the search reader; Bridge.Bind must resolve it first")

	default:
		return nil, fmt.Errorf("searchexec: unhandled query node %T", n)
	}
}

func evaluateConjunctionOfTokens(seg *segmentReader, field string, tokens []string) (scored, error) {
	var out scored
	for i, tok := range tokens {
		s, err := docsFromTerm(seg, field, tok)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			out = s
		} else {
			out = intersect(out, s)
		}
	}
	if out == nil {
		out = scored{}
	}
	return out, nil
}

func evaluateMoreLikeThis(seg *segmentReader, n *query.MoreLikeThis) (scored, error) {
	out := make(scored)
	for _, field := range n.Fields {
		text, ok := n.DocumentFields[field]
		if !ok {
			continue
		}
		for _, tok := range indexer.Tokenize(text) {
			s, err := docsFromTerm(seg, field, tok)
			if err != nil {
				return nil, err
			}
			union(out, s)
		}
	}
	return out, nil
}

func evaluateExists(seg *segmentReader, n *query.Exists) (scored, error) {
	if pr, ok, err := seg.postingsFor(n.Field); err != nil {
		return nil, err
	} else if ok {
		out := make(scored)
		for _, docs := range pr.Terms() {
			for _, d := range docs {
				out[d] = 0
			}
		}
		return out, nil
	}
	return nil, &fastfield.ErrNotFastField{Field: n.Field}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func evaluateBoolean(seg *segmentReader, n *query.Boolean) (scored, error) {
	out := make(scored)
	haveClause := len(n.Must) > 0
	for i, m := range n.Must {
		s, err := evaluate(seg, m)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			out = s
		} else {
			out = intersect(out, s)
		}
	}
	if !haveClause {
		for d := uint32(0); d < seg.numDocs(); d++ {
			out[d] = 0
		}
	}

	if len(n.Should) > 0 {
		shouldHits := make(map[uint32]int, len(out))
		shouldScore := make(scored, len(out))
		for _, sh := range n.Should {
			s, err := evaluate(seg, sh)
			if err != nil {
				return nil, err
			}
			for d, sc := range s {
				shouldHits[d]++
				shouldScore[d] += sc
			}
		}
		minMatch := n.MinimumShouldMatch
		if minMatch <= 0 {
			minMatch = 1
		}
		if haveClause {
			for d := range out {
				if shouldHits[d] < minMatch && len(shouldHits) > 0 {
					delete(out, d)
					continue
				}
				out[d] += shouldScore[d]
			}
		} else {
			out = make(scored, len(shouldHits))
			for d, hits := range shouldHits {
				if hits >= minMatch {
					out[d] = shouldScore[d]
				}
			}
		}
	}

	for _, mn := range n.MustNot {
		s, err := evaluate(seg, mn)
		if err != nil {
			return nil, err
		}
		out = subtract(out, s)
	}
	return out, nil
}

func evaluateRange(seg *segmentReader, n *query.Range) (scored, error) {
	if n.Mode != query.RangeModeScalar {
		return evaluateStoredRange(seg, n)
	}
	col, err := seg.column(n.Field, n.Type)
	if err != nil {
		return nil, err
	}
	out := make(scored)
	for d := uint32(0); d < seg.numDocs(); d++ {
		v := col.Value(d)
		if !v.Valid {
			continue
		}
		if query.EvaluateScalarRange(scalarOf(v), n.Lower, n.Upper) {
			out[d] = 0
		}
	}
	return out, nil
}

// evaluateStoredRange handles a Range predicate whose Mode is Contains,
// Within or Intersects: n.Field holds a fastfield.KindRange column (one
// query.StoredRange per document), and the predicate's own [Lower, Upper]
// bounds are the query-supplied range on the other side of the operator.
func evaluateStoredRange(seg *segmentReader, n *query.Range) (scored, error) {
	col, err := seg.column(n.Field, fastfield.KindRange)
	if err != nil {
		return nil, err
	}
	lower := floatBound(n.Lower)
	upper := floatBound(n.Upper)
	out := make(scored)
	for d := uint32(0); d < seg.numDocs(); d++ {
		rv, ok := col.Range(d)
		if !ok {
			continue
		}
		stored := query.StoredRange{
			Lower: query.RangeBound{Inclusive: rv.LowerInclusive},
			Upper: query.RangeBound{Inclusive: rv.UpperInclusive},
		}
		if rv.LowerSet {
			stored.Lower.Value = rv.LowerValue
		}
		if rv.UpperSet {
			stored.Upper.Value = rv.UpperValue
		}
		if query.EvaluateRange(n.Mode, stored, lower, upper) {
			out[d] = 0
		}
	}
	return out, nil
}

// floatBound normalizes a query-supplied RangeBound's value (an int64,
// uint64 or float64, depending on which literal type produced it) to
// float64 so it compares against a RangeValue column's float64 bounds
// without query.compareValues panicking on a type mismatch.
func floatBound(b query.RangeBound) query.RangeBound {
	if b.Value == nil {
		return b
	}
	return query.RangeBound{Value: toFloat64(b.Value), Inclusive: b.Inclusive}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func scalarOf(v fastfield.TaggedValue) any {
	switch v.Kind {
	case fastfield.KindI64:
		return v.I64
	case fastfield.KindU64, fastfield.KindDate:
		return v.U64
	case fastfield.KindF64:
		return v.F64
	case fastfield.KindBool:
		return v.Bool
	case fastfield.KindText:
		return v.Text
	default:
		return nil
	}
}
