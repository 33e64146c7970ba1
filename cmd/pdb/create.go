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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paradedb/paradedb-go/date"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/indexer"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/store"
)

// create builds one segment from docsPath's newline-delimited JSON
// documents under schemaPath's field definitions and commits it as a
// single new segment in indexFile.
func create(indexFile, schemaPath, docsPath string) {
	schema, err := loadSchemaFile(schemaPath)
	if err != nil {
		exitf("create: %s", err)
	}

	st, err := store.Open(indexFile)
	if err != nil {
		exitf("create: opening %s: %s", indexFile, err)
	}
	defer st.Close()

	f, err := os.Open(docsPath)
	if err != nil {
		exitf("create: %s", err)
	}
	defer f.Close()

	b := indexer.NewBuilder(schema)
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	nextCtid := uint64(1)
	for scan.Scan() {
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			exitf("create: parsing document: %s", err)
		}
		row, err := rowFromDoc(schema, doc, nextCtid<<16)
		if err != nil {
			exitf("create: %s", err)
		}
		nextCtid++
		if _, err := b.Add(row); err != nil {
			exitf("create: %s", err)
		}
	}
	if err := scan.Err(); err != nil {
		exitf("create: reading %s: %s", docsPath, err)
	}

	xid, err := st.NextXid()
	if err != nil {
		exitf("create: %s", err)
	}
	dir := st.Dir(st.Snapshot())
	entry, err := b.Flush(dir, st.Cat, xid)
	if err != nil {
		exitf("create: flushing segment: %s", err)
	}

	if err := saveSchemaSidecar(indexFile, schema); err != nil {
		exitf("create: writing schema sidecar: %s", err)
	}
	fmt.Printf("indexed %d documents into %s (segment %s)\n", b.NumDocs(), indexFile, entry.SegmentID)
}

// rowFromDoc converts one decoded JSON document into an indexer.Row,
// tokenizing every text and json_fields value into the postings index
// regardless of its fast-field status, and populating Fields only for fast
// fields (a non-fast numeric field has nowhere else to live and is
// silently dropped by Builder.Add, matching how it is dropped here).
func rowFromDoc(schema query.Schema, doc map[string]any, ctid uint64) (indexer.Row, error) {
	row := indexer.Row{
		Ctid:   ctid,
		Fields: make(map[string]fastfield.TaggedValue),
		Text:   make(map[string]string),
	}
	for field, info := range schema {
		v, ok := doc[field]
		if !ok {
			continue
		}
		if info.IsJSON {
			s := flattenJSON(v, info.ExpandDots)
			row.Text[field] = s
			if info.FastField {
				row.Fields[field] = fastfield.TaggedValue{Kind: fastfield.KindText, Text: s, Valid: true}
			}
			continue
		}
		if info.Type == fastfield.KindText {
			s, ok := v.(string)
			if !ok {
				return indexer.Row{}, fmt.Errorf("field %q: expected string, got %T", field, v)
			}
			row.Text[field] = s
			if info.FastField {
				row.Fields[field] = fastfield.TaggedValue{Kind: fastfield.KindText, Text: s, Valid: true}
			}
			continue
		}
		if info.Type == fastfield.KindRange {
			if !info.FastField {
				continue
			}
			tv, err := taggedRangeFromJSON(v, field)
			if err != nil {
				return indexer.Row{}, err
			}
			row.Fields[field] = tv
			continue
		}
		if !info.FastField {
			continue
		}
		tv, err := taggedFromJSON(info.Type, v, field)
		if err != nil {
			return indexer.Row{}, err
		}
		row.Fields[field] = tv
	}
	return row, nil
}

// flattenJSON renders a json_fields value as a single string for
// tokenization. With expand_dots it walks nested objects and emits
// "parent.child: value" pairs so a dotted path like "attrs.color" can match
// a term search; otherwise it falls back to the value's compact JSON
// encoding.
func flattenJSON(v any, expandDots bool) string {
	if !expandDots {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
	var buf bytes.Buffer
	flattenJSONInto(&buf, "", v)
	return buf.String()
}

func flattenJSONInto(buf *bytes.Buffer, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			flattenJSONInto(buf, path, child)
		}
	case []any:
		for _, child := range val {
			flattenJSONInto(buf, prefix, child)
		}
	default:
		if prefix != "" {
			buf.WriteString(prefix)
			buf.WriteString(": ")
		}
		fmt.Fprintf(buf, "%v ", val)
	}
}

// taggedRangeFromJSON parses a range_fields document value of the shape
// {"lower": n, "upper": n, "lower_inclusive": bool, "upper_inclusive":
// bool}, omitting lower/upper for an unbounded side.
func taggedRangeFromJSON(v any, field string) (fastfield.TaggedValue, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return fastfield.TaggedValue{}, fmt.Errorf("field %q: expected a range object, got %T", field, v)
	}
	rv := fastfield.RangeValue{LowerInclusive: true}
	if lo, ok := obj["lower"]; ok {
		f, err := jsonFloat(lo, field, "lower")
		if err != nil {
			return fastfield.TaggedValue{}, err
		}
		rv.LowerSet, rv.LowerValue = true, f
	}
	if hi, ok := obj["upper"]; ok {
		f, err := jsonFloat(hi, field, "upper")
		if err != nil {
			return fastfield.TaggedValue{}, err
		}
		rv.UpperSet, rv.UpperValue = true, f
	}
	if b, ok := obj["lower_inclusive"].(bool); ok {
		rv.LowerInclusive = b
	}
	if b, ok := obj["upper_inclusive"].(bool); ok {
		rv.UpperInclusive = b
	}
	return fastfield.TaggedValue{Kind: fastfield.KindRange, Range: rv, Valid: true}, nil
}

func jsonFloat(v any, field, bound string) (float64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %q: %s bound: expected number, got %T", field, bound, v)
	}
	f, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %q: %s bound: %w", field, bound, err)
	}
	return f, nil
}

func taggedFromJSON(kind fastfield.Kind, v any, field string) (fastfield.TaggedValue, error) {
	if kind == fastfield.KindDate {
		return taggedDateFromJSON(v, field)
	}
	num, ok := v.(json.Number)
	if kind != fastfield.KindBool && !ok {
		return fastfield.TaggedValue{}, fmt.Errorf("field %q: expected number, got %T", field, v)
	}
	switch kind {
	case fastfield.KindI64:
		n, err := num.Int64()
		if err != nil {
			return fastfield.TaggedValue{}, fmt.Errorf("field %q: %w", field, err)
		}
		return fastfield.TaggedValue{Kind: kind, I64: n, Valid: true}, nil
	case fastfield.KindU64:
		n, err := num.Int64()
		if err != nil {
			return fastfield.TaggedValue{}, fmt.Errorf("field %q: %w", field, err)
		}
		return fastfield.TaggedValue{Kind: kind, U64: uint64(n), Valid: true}, nil
	case fastfield.KindF64:
		n, err := num.Float64()
		if err != nil {
			return fastfield.TaggedValue{}, fmt.Errorf("field %q: %w", field, err)
		}
		return fastfield.TaggedValue{Kind: kind, F64: n, Valid: true}, nil
	case fastfield.KindBool:
		bv, ok := v.(bool)
		if !ok {
			return fastfield.TaggedValue{}, fmt.Errorf("field %q: expected bool, got %T", field, v)
		}
		return fastfield.TaggedValue{Kind: kind, Bool: bv, Valid: true}, nil
	default:
		return fastfield.TaggedValue{}, fmt.Errorf("field %q: unsupported kind", field)
	}
}

// taggedDateFromJSON accepts a datetime_fields value either as an RFC3339
// string (the shape a document's source JSON normally carries) or as a
// bare number of Unix seconds, and stores it as the U64 Unix-second value
// fast fields of Kind fastfield.KindDate use for comparison and ordering.
func taggedDateFromJSON(v any, field string) (fastfield.TaggedValue, error) {
	switch val := v.(type) {
	case string:
		t, ok := date.Parse([]byte(val))
		if !ok {
			return fastfield.TaggedValue{}, fmt.Errorf("field %q: %q is not a recognized timestamp", field, val)
		}
		return fastfield.TaggedValue{Kind: fastfield.KindDate, U64: uint64(t.Unix()), Valid: true}, nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return fastfield.TaggedValue{}, fmt.Errorf("field %q: %w", field, err)
		}
		return fastfield.TaggedValue{Kind: fastfield.KindDate, U64: uint64(n), Valid: true}, nil
	default:
		return fastfield.TaggedValue{}, fmt.Errorf("field %q: expected timestamp string or number, got %T", field, v)
	}
}
