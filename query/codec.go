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

import (
	"fmt"

	"github.com/paradedb/paradedb-go/ion"
)

// tag is the stable per-variant identifier used by the wire codec.
// Serialization uses a stable tag-per-variant scheme; consumers must
// reject unknown tags. Values must never be renumbered; a removed
// variant retires its tag rather than reusing it.
type tag int

const (
	tagAll tag = iota + 1
	tagEmpty
	tagTerm
	tagTermSet
	tagPhrase
	tagPhrasePrefix
	tagFuzzyTerm
	tagMatch
	tagRange
	tagRegex
	tagRegexPhrase
	tagParse
	tagBoolean
	tagBoost
	tagConstScore
	tagMoreLikeThis
	tagExists
)

// Encode serializes n so that parallel workers can receive the predicate
// tree intact.
func Encode(n Node, dst *ion.Buffer, st *ion.Symtab) error {
	symTag := st.Intern("$tag")
	switch n := n.(type) {
	case All:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagAll))
		dst.EndStruct()
	case Empty:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagEmpty))
		dst.EndStruct()
	case *Term:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagTerm))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("value"))
		dst.WriteString(n.Value)
		dst.BeginField(st.Intern("type"))
		dst.WriteInt(int64(n.Type))
		dst.BeginField(st.Intern("is_datetime"))
		dst.WriteBool(n.IsDatetime)
		dst.EndStruct()
	case *TermSet:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagTermSet))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("type"))
		dst.WriteInt(int64(n.Type))
		dst.BeginField(st.Intern("values"))
		dst.BeginList(-1)
		for _, v := range n.Values {
			dst.WriteString(v)
		}
		dst.EndList()
		dst.EndStruct()
	case *Phrase:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagPhrase))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("slop"))
		dst.WriteInt(int64(n.Slop))
		dst.BeginField(st.Intern("tokens"))
		dst.BeginList(-1)
		for _, v := range n.Tokens {
			dst.WriteString(v)
		}
		dst.EndList()
		dst.EndStruct()
	case *PhrasePrefix:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagPhrasePrefix))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("tokens"))
		dst.BeginList(-1)
		for _, v := range n.Tokens {
			dst.WriteString(v)
		}
		dst.EndList()
		dst.EndStruct()
	case *FuzzyTerm:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagFuzzyTerm))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("value"))
		dst.WriteString(n.Value)
		dst.BeginField(st.Intern("distance"))
		dst.WriteInt(int64(n.Distance))
		dst.BeginField(st.Intern("transposition_cost_one"))
		dst.WriteBool(n.TranspositionCostOne)
		dst.BeginField(st.Intern("prefix"))
		dst.WriteInt(int64(n.Prefix))
		dst.EndStruct()
	case *Match:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagMatch))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("text"))
		dst.WriteString(n.Text)
		dst.BeginField(st.Intern("tokenizer"))
		dst.WriteString(n.Tokenizer)
		dst.BeginField(st.Intern("distance"))
		dst.WriteInt(int64(n.Distance))
		dst.BeginField(st.Intern("conjunction"))
		dst.WriteBool(n.Conjunction)
		dst.EndStruct()
	case *Range:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagRange))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("type"))
		dst.WriteInt(int64(n.Type))
		dst.BeginField(st.Intern("is_datetime"))
		dst.WriteBool(n.IsDatetime)
		dst.BeginField(st.Intern("mode"))
		dst.WriteInt(int64(n.Mode))
		encodeBound(dst, st, "lower", n.Lower)
		encodeBound(dst, st, "upper", n.Upper)
		dst.EndStruct()
	case *Regex:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagRegex))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("pattern"))
		dst.WriteString(n.Pattern)
		dst.EndStruct()
	case *RegexPhrase:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagRegexPhrase))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.BeginField(st.Intern("slop"))
		dst.WriteInt(int64(n.Slop))
		dst.BeginField(st.Intern("patterns"))
		dst.BeginList(-1)
		for _, v := range n.Patterns {
			dst.WriteString(v)
		}
		dst.EndList()
		dst.EndStruct()
	case *Parse:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagParse))
		dst.BeginField(st.Intern("query_string"))
		dst.WriteString(n.QueryString)
		dst.BeginField(st.Intern("lenient"))
		dst.WriteBool(n.Lenient)
		dst.BeginField(st.Intern("conjunction_mode"))
		dst.WriteBool(n.ConjunctionMode)
		dst.BeginField(st.Intern("default_field"))
		dst.WriteString(n.DefaultField)
		dst.EndStruct()
	case *Boolean:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagBoolean))
		dst.BeginField(st.Intern("minimum_should_match"))
		dst.WriteInt(int64(n.MinimumShouldMatch))
		if err := encodeList(dst, st, "must", n.Must); err != nil {
			return err
		}
		if err := encodeList(dst, st, "should", n.Should); err != nil {
			return err
		}
		if err := encodeList(dst, st, "must_not", n.MustNot); err != nil {
			return err
		}
		dst.EndStruct()
	case *Boost:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagBoost))
		dst.BeginField(st.Intern("factor"))
		dst.WriteFloat32(n.Factor)
		dst.BeginField(st.Intern("inner"))
		if err := Encode(n.Inner, dst, st); err != nil {
			return err
		}
		dst.EndStruct()
	case *ConstScore:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagConstScore))
		dst.BeginField(st.Intern("score"))
		dst.WriteFloat32(n.Score)
		dst.BeginField(st.Intern("inner"))
		if err := Encode(n.Inner, dst, st); err != nil {
			return err
		}
		dst.EndStruct()
	case *MoreLikeThis:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagMoreLikeThis))
		dst.BeginField(st.Intern("min_term_freq"))
		dst.WriteInt(int64(n.MinTermFreq))
		dst.BeginField(st.Intern("min_doc_freq"))
		dst.WriteInt(int64(n.MinDocFreq))
		dst.BeginField(st.Intern("max_query_terms"))
		dst.WriteInt(int64(n.MaxQueryTerms))
		dst.BeginField(st.Intern("fields"))
		dst.BeginList(-1)
		for _, f := range n.Fields {
			dst.WriteString(f)
		}
		dst.EndList()
		dst.BeginField(st.Intern("document_fields"))
		dst.BeginStruct(-1)
		for k, v := range n.DocumentFields {
			dst.BeginField(st.Intern(k))
			dst.WriteString(v)
		}
		dst.EndStruct()
		dst.EndStruct()
	case *Exists:
		dst.BeginStruct(-1)
		dst.BeginField(symTag)
		dst.WriteInt(int64(tagExists))
		dst.BeginField(st.Intern("field"))
		dst.WriteString(n.Field)
		dst.EndStruct()
	default:
		return fmt.Errorf("query: Encode: unhandled node type %T", n)
	}
	return nil
}

func encodeList(dst *ion.Buffer, st *ion.Symtab, field string, nodes []Node) error {
	dst.BeginField(st.Intern(field))
	dst.BeginList(-1)
	for _, n := range nodes {
		if err := Encode(n, dst, st); err != nil {
			return err
		}
	}
	dst.EndList()
	return nil
}

func encodeBound(dst *ion.Buffer, st *ion.Symtab, field string, b RangeBound) {
	dst.BeginField(st.Intern(field))
	dst.BeginStruct(-1)
	if b.Value != nil {
		dst.BeginField(st.Intern("value"))
		switch v := b.Value.(type) {
		case int64:
			dst.WriteInt(v)
		case uint64:
			dst.WriteUint(v)
		case float64:
			dst.WriteFloat64(v)
		case string:
			dst.WriteString(v)
		default:
			dst.WriteString(fmt.Sprint(v))
		}
	}
	dst.BeginField(st.Intern("inclusive"))
	dst.WriteBool(b.Inclusive)
	dst.EndStruct()
}
