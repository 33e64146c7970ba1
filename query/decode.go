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

// Decode parses one Node out of body, which must be the encoding produced
// by Encode. Unknown tags are rejected rather than skipped: a worker
// that cannot understand a predicate must not silently drop it.
func Decode(st *ion.Symtab, body []byte) (Node, error) {
	var t tag
	var fields = make(map[string][]byte)
	_, err := ion.UnpackStruct(st, body, func(name string, field []byte) error {
		if name == "$tag" {
			v, _, err := ion.ReadInt(field)
			if err != nil {
				return err
			}
			t = tag(v)
			return nil
		}
		fields[name] = field
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query: decoding node: %w", err)
	}

	switch t {
	case tagAll:
		return All{}, nil
	case tagEmpty:
		return Empty{}, nil
	case tagTerm:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		value, err := readString(fields, "value")
		if err != nil {
			return nil, err
		}
		typ, err := readFieldType(fields, "type")
		if err != nil {
			return nil, err
		}
		isDatetime, err := readBool(fields, "is_datetime")
		if err != nil {
			return nil, err
		}
		return &Term{Field: field, Value: value, Type: typ, IsDatetime: isDatetime}, nil
	case tagTermSet:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		typ, err := readFieldType(fields, "type")
		if err != nil {
			return nil, err
		}
		values, err := readStringList(fields, "values")
		if err != nil {
			return nil, err
		}
		return &TermSet{Field: field, Values: values, Type: typ}, nil
	case tagPhrase:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		slop, err := readInt(fields, "slop")
		if err != nil {
			return nil, err
		}
		tokens, err := readStringList(fields, "tokens")
		if err != nil {
			return nil, err
		}
		return &Phrase{Field: field, Tokens: tokens, Slop: int(slop)}, nil
	case tagPhrasePrefix:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		tokens, err := readStringList(fields, "tokens")
		if err != nil {
			return nil, err
		}
		return &PhrasePrefix{Field: field, Tokens: tokens}, nil
	case tagFuzzyTerm:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		value, err := readString(fields, "value")
		if err != nil {
			return nil, err
		}
		distance, err := readInt(fields, "distance")
		if err != nil {
			return nil, err
		}
		transposition, err := readBool(fields, "transposition_cost_one")
		if err != nil {
			return nil, err
		}
		prefix, err := readInt(fields, "prefix")
		if err != nil {
			return nil, err
		}
		return &FuzzyTerm{
			Field:                field,
			Value:                value,
			Distance:             int(distance),
			TranspositionCostOne: transposition,
			Prefix:               int(prefix),
		}, nil
	case tagMatch:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		text, err := readString(fields, "text")
		if err != nil {
			return nil, err
		}
		tokenizer, err := readString(fields, "tokenizer")
		if err != nil {
			return nil, err
		}
		distance, err := readInt(fields, "distance")
		if err != nil {
			return nil, err
		}
		conjunction, err := readBool(fields, "conjunction")
		if err != nil {
			return nil, err
		}
		return &Match{Field: field, Text: text, Tokenizer: tokenizer, Distance: int(distance), Conjunction: conjunction}, nil
	case tagRange:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		typ, err := readFieldType(fields, "type")
		if err != nil {
			return nil, err
		}
		isDatetime, err := readBool(fields, "is_datetime")
		if err != nil {
			return nil, err
		}
		mode, err := readInt(fields, "mode")
		if err != nil {
			return nil, err
		}
		lower, err := decodeBound(st, fields, "lower")
		if err != nil {
			return nil, err
		}
		upper, err := decodeBound(st, fields, "upper")
		if err != nil {
			return nil, err
		}
		return &Range{Field: field, Lower: lower, Upper: upper, Type: typ, IsDatetime: isDatetime, Mode: RangeMode(mode)}, nil
	case tagRegex:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		pattern, err := readString(fields, "pattern")
		if err != nil {
			return nil, err
		}
		return &Regex{Field: field, Pattern: pattern}, nil
	case tagRegexPhrase:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		slop, err := readInt(fields, "slop")
		if err != nil {
			return nil, err
		}
		patterns, err := readStringList(fields, "patterns")
		if err != nil {
			return nil, err
		}
		return &RegexPhrase{Field: field, Patterns: patterns, Slop: int(slop)}, nil
	case tagParse:
		qs, err := readString(fields, "query_string")
		if err != nil {
			return nil, err
		}
		lenient, err := readBool(fields, "lenient")
		if err != nil {
			return nil, err
		}
		conj, err := readBool(fields, "conjunction_mode")
		if err != nil {
			return nil, err
		}
		def, err := readString(fields, "default_field")
		if err != nil {
			return nil, err
		}
		return &Parse{QueryString: qs, Lenient: lenient, ConjunctionMode: conj, DefaultField: def}, nil
	case tagBoolean:
		msm, err := readInt(fields, "minimum_should_match")
		if err != nil {
			return nil, err
		}
		must, err := decodeNodeList(st, fields, "must")
		if err != nil {
			return nil, err
		}
		should, err := decodeNodeList(st, fields, "should")
		if err != nil {
			return nil, err
		}
		mustNot, err := decodeNodeList(st, fields, "must_not")
		if err != nil {
			return nil, err
		}
		return &Boolean{Must: must, Should: should, MustNot: mustNot, MinimumShouldMatch: int(msm)}, nil
	case tagBoost:
		raw, ok := fields["factor"]
		if !ok {
			return nil, fmt.Errorf("query: Boost: missing factor")
		}
		factor, _, err := ion.ReadFloat32(raw)
		if err != nil {
			return nil, err
		}
		inner, err := decodeNode(st, fields, "inner")
		if err != nil {
			return nil, err
		}
		return &Boost{Factor: factor, Inner: inner}, nil
	case tagConstScore:
		raw, ok := fields["score"]
		if !ok {
			return nil, fmt.Errorf("query: ConstScore: missing score")
		}
		score, _, err := ion.ReadFloat32(raw)
		if err != nil {
			return nil, err
		}
		inner, err := decodeNode(st, fields, "inner")
		if err != nil {
			return nil, err
		}
		return &ConstScore{Score: score, Inner: inner}, nil
	case tagMoreLikeThis:
		minTF, err := readInt(fields, "min_term_freq")
		if err != nil {
			return nil, err
		}
		minDF, err := readInt(fields, "min_doc_freq")
		if err != nil {
			return nil, err
		}
		maxQT, err := readInt(fields, "max_query_terms")
		if err != nil {
			return nil, err
		}
		fieldList, err := readStringList(fields, "fields")
		if err != nil {
			return nil, err
		}
		docFields := make(map[string]string)
		if raw, ok := fields["document_fields"]; ok {
			_, err := ion.UnpackStruct(st, raw, func(name string, field []byte) error {
				s, _, err := ion.ReadString(field)
				if err != nil {
					return err
				}
				docFields[name] = s
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		return &MoreLikeThis{
			Fields:         fieldList,
			DocumentFields: docFields,
			MinTermFreq:    int(minTF),
			MinDocFreq:     int(minDF),
			MaxQueryTerms:  int(maxQT),
		}, nil
	case tagExists:
		field, err := readString(fields, "field")
		if err != nil {
			return nil, err
		}
		return &Exists{Field: field}, nil
	default:
		return nil, fmt.Errorf("query: Decode: unknown tag %d", t)
	}
}

func readString(fields map[string][]byte, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", nil
	}
	s, _, err := ion.ReadString(raw)
	return s, err
}

func readInt(fields map[string][]byte, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, nil
	}
	v, _, err := ion.ReadInt(raw)
	return v, err
}

func readBool(fields map[string][]byte, name string) (bool, error) {
	raw, ok := fields[name]
	if !ok {
		return false, nil
	}
	v, _, err := ion.ReadBool(raw)
	return v, err
}

func readFieldType(fields map[string][]byte, name string) (FieldType, error) {
	v, err := readInt(fields, name)
	return FieldType(v), err
}

func readStringList(fields map[string][]byte, name string) ([]string, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, nil
	}
	var out []string
	_, err := ion.UnpackList(raw, func(item []byte) error {
		s, _, err := ion.ReadString(item)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func decodeNode(st *ion.Symtab, fields map[string][]byte, name string) (Node, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("query: missing required node field %q", name)
	}
	return Decode(st, raw)
}

func decodeNodeList(st *ion.Symtab, fields map[string][]byte, name string) ([]Node, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, nil
	}
	var out []Node
	_, err := ion.UnpackList(raw, func(item []byte) error {
		n, err := Decode(st, item)
		if err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

func decodeBound(st *ion.Symtab, fields map[string][]byte, name string) (RangeBound, error) {
	raw, ok := fields[name]
	if !ok {
		return RangeBound{}, nil
	}
	var b RangeBound
	_, err := ion.UnpackStruct(st, raw, func(name string, field []byte) error {
		switch name {
		case "value":
			// The wire value may be an int, a uint, a float, or a string
			// depending on the field's declared type; try each ion
			// encoding in turn rather than requiring the caller to know
			// the tag ahead of time.
			if s, _, err := ion.ReadString(field); err == nil {
				b.Value = s
				return nil
			}
			if f, _, err := ion.ReadFloat64(field); err == nil {
				b.Value = f
				return nil
			}
			if i, _, err := ion.ReadInt(field); err == nil {
				b.Value = i
				return nil
			}
			u, _, err := ion.ReadUint(field)
			if err != nil {
				return err
			}
			b.Value = u
		case "inclusive":
			v, _, err := ion.ReadBool(field)
			if err != nil {
				return err
			}
			b.Inclusive = v
		}
		return nil
	})
	return b, err
}
