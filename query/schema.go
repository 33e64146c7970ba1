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

// FieldInfo describes one indexed field's storage representation, as known
// to the planner bridge when it type-checks and binds a predicate tree.
type FieldInfo struct {
	Type       FieldType
	IsDatetime bool
	// FastField reports whether the field has a fast-field column, which
	// customscan consults to decide whether NumericFastField/
	// StringFastField/MixedFastField exec methods apply.
	FastField bool
	// IsRange reports whether the field stores a Postgres range type
	// (int4range, numrange, daterange, tsrange, tstzrange, ...), which
	// changes a Range predicate's default Mode to Intersects rather than
	// RangeModeScalar.
	IsRange bool
	// KeyField marks the index's key_field: the access method's build and
	// insert paths reject any row where this field is NULL.
	KeyField bool
	// IsJSON marks a json_fields entry: its source value is a nested JSON
	// object or array rather than a scalar, flattened to text before
	// tokenization.
	IsJSON bool
	// ExpandDots reports whether a json_fields entry's nested keys are
	// flattened with dotted paths (e.g. "attrs.color") rather than
	// indexed as a single opaque blob.
	ExpandDots bool
}

// KeyField returns the name of s's key_field, or "" if none is marked
// (a schema built outside cmd/pdb's options parser, e.g. in a test,
// may have no key field at all).
func (s Schema) KeyField() string {
	for field, info := range s {
		if info.KeyField {
			return field
		}
	}
	return ""
}

// Schema maps a field name to its storage representation. It is supplied
// by the host at bind time; the query package never infers it.
type Schema map[string]FieldInfo

// Lookup returns the field's info, or an error naming the field if it is
// not present in the schema.
func (s Schema) Lookup(field string) (FieldInfo, error) {
	info, ok := s[field]
	if !ok {
		return FieldInfo{}, &ErrUnknownField{Field: field}
	}
	return info, nil
}
