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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/query"
)

// tokenizerSpec names a text field's tokenizer. "default" (the ascii
// alphanumeric splitter Tokenize implements) is the only type honored
// today; others parse but fall back to it.
type tokenizerSpec struct {
	Type string `json:"type"`
}

// textFieldOpts is one text_fields entry: CREATE INDEX ... WITH
// (text_fields = '{"title": {...}}') deserializes into this per field.
type textFieldOpts struct {
	Fast       bool          `json:"fast"`
	Tokenizer  tokenizerSpec `json:"tokenizer"`
	Record     string        `json:"record"`     // "basic", "freq", or "position"
	Normalizer string        `json:"normalizer"` // "raw" or "lowercase"
}

// scalarFieldOpts is one numeric_fields, boolean_fields, range_fields, or
// datetime_fields entry.
type scalarFieldOpts struct {
	Fast bool `json:"fast"`
}

// jsonFieldOpts is one json_fields entry.
type jsonFieldOpts struct {
	Fast       bool `json:"fast"`
	ExpandDots bool `json:"expand_dots"`
}

// schemaFile is the on-disk shape of a pdb schema definition: the same
// option-string vocabulary the access method's "options" callback accepts
// (key_field plus one map per field class), expressed as JSON since pdb
// has no running Postgres to source reloptions from.
type schemaFile struct {
	KeyField       string                     `json:"key_field"`
	TextFields     map[string]textFieldOpts   `json:"text_fields"`
	NumericFields  map[string]scalarFieldOpts `json:"numeric_fields"`
	BooleanFields  map[string]scalarFieldOpts `json:"boolean_fields"`
	JSONFields     map[string]jsonFieldOpts   `json:"json_fields"`
	RangeFields    map[string]scalarFieldOpts `json:"range_fields"`
	DatetimeFields map[string]scalarFieldOpts `json:"datetime_fields"`
}

func loadSchemaFile(path string) (query.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf schemaFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("pdb: parsing %s: %w", path, err)
	}
	if sf.KeyField == "" {
		return nil, fmt.Errorf("pdb: %s: key_field is required", path)
	}

	schema := make(query.Schema)
	for field, o := range sf.TextFields {
		schema[field] = query.FieldInfo{Type: fastfield.KindText, FastField: o.Fast}
	}
	for field, o := range sf.NumericFields {
		schema[field] = query.FieldInfo{Type: fastfield.KindF64, FastField: o.Fast}
	}
	for field, o := range sf.BooleanFields {
		schema[field] = query.FieldInfo{Type: fastfield.KindBool, FastField: o.Fast}
	}
	for field, o := range sf.JSONFields {
		schema[field] = query.FieldInfo{Type: fastfield.KindText, FastField: o.Fast, IsJSON: true, ExpandDots: o.ExpandDots}
	}
	for field, o := range sf.RangeFields {
		schema[field] = query.FieldInfo{Type: fastfield.KindRange, FastField: o.Fast, IsRange: true}
	}
	for field, o := range sf.DatetimeFields {
		schema[field] = query.FieldInfo{Type: fastfield.KindDate, FastField: o.Fast, IsDatetime: true}
	}

	info, ok := schema[sf.KeyField]
	if !ok {
		return nil, fmt.Errorf("pdb: %s: key_field %q is not defined in any *_fields map", path, sf.KeyField)
	}
	info.KeyField = true
	schema[sf.KeyField] = info

	return schema, nil
}

// sidecarPath names the schema file pdb persists alongside indexFile, so
// search and aggregate do not need the schema re-specified on every
// invocation.
func sidecarPath(indexFile string) string { return indexFile + ".schema.json" }

func saveSchemaSidecar(indexFile string, schema query.Schema) error {
	var sf schemaFile
	sf.TextFields = make(map[string]textFieldOpts)
	sf.NumericFields = make(map[string]scalarFieldOpts)
	sf.BooleanFields = make(map[string]scalarFieldOpts)
	sf.JSONFields = make(map[string]jsonFieldOpts)
	sf.RangeFields = make(map[string]scalarFieldOpts)
	sf.DatetimeFields = make(map[string]scalarFieldOpts)

	for field, info := range schema {
		if info.KeyField {
			sf.KeyField = field
		}
		switch {
		case info.IsJSON:
			sf.JSONFields[field] = jsonFieldOpts{Fast: info.FastField, ExpandDots: info.ExpandDots}
		case info.IsRange:
			sf.RangeFields[field] = scalarFieldOpts{Fast: info.FastField}
		case info.IsDatetime:
			sf.DatetimeFields[field] = scalarFieldOpts{Fast: info.FastField}
		case info.Type == fastfield.KindText:
			sf.TextFields[field] = textFieldOpts{Fast: info.FastField}
		case info.Type == fastfield.KindBool:
			sf.BooleanFields[field] = scalarFieldOpts{Fast: info.FastField}
		default:
			sf.NumericFields[field] = scalarFieldOpts{Fast: info.FastField}
		}
	}

	raw, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(indexFile), raw, 0o644)
}

func loadSchemaSidecar(indexFile string) (query.Schema, error) {
	return loadSchemaFile(sidecarPath(indexFile))
}
