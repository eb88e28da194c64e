// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders solver outcomes as text, JSON or YAML.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

var ErrFormat = errors.New("report: unknown format")

// Field is one named value of a report.
type Field struct {
	Key   string
	Value any
}

// Table is a titled grid of cells.
type Table struct {
	Title  string
	Header []string
	Rows   [][]any
}

// Report describes the outcome of one command.
type Report struct {
	Title  string
	Run    string
	Status string
	OK     bool
	Fields []Field
	Tables []Table
}

// Add appends a field and returns r for chaining.
func (r *Report) Add(key string, value any) *Report {
	r.Fields = append(r.Fields, Field{key, value})
	return r
}

// AddTable appends a table.
func (r *Report) AddTable(t Table) *Report {
	r.Tables = append(r.Tables, t)
	return r
}

// Write renders reports in the given format: text, json or yaml.
func Write(w io.Writer, format string, reports ...*Report) error {
	switch format {
	case "", "text":
		for i, r := range reports {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := writeText(w, r); err != nil {
				return err
			}
		}
		return nil
	case "json":
		docs := make([]*ordered, len(reports))
		for i, r := range reports {
			docs[i] = r.document()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(docs) == 1 {
			return enc.Encode(docs[0])
		}
		return enc.Encode(docs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		for _, r := range reports {
			if err := enc.Encode(r.document()); err != nil {
				return err
			}
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrFormat, format)
}

func writeText(w io.Writer, r *Report) error {
	var buf bytes.Buffer
	title := r.Title
	if r.Status != "" {
		title += ": " + r.Status
	}
	buf.WriteString(title + "\n")
	buf.WriteString(strings.Repeat("=", len([]rune(title))) + "\n")

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	if r.Run != "" {
		fmt.Fprintf(tw, "run\t%s\n", r.Run)
	}
	for _, f := range r.Fields {
		fmt.Fprintf(tw, "%s\t%s\n", f.Key, text(f.Value))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, t := range r.Tables {
		buf.WriteString("\n")
		if t.Title != "" {
			buf.WriteString(t.Title + "\n")
		}
		tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
		if len(t.Header) > 0 {
			fmt.Fprintln(tw, strings.Join(t.Header, "\t")+"\t")
		}
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = text(c)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// text formats floats compactly and slices element by element.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = text(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, " ") + "]"
	case reflect.Struct:
		t := rv.Type()
		var parts []string
		for i := range t.NumField() {
			if t.Field(i).IsExported() {
				parts = append(parts, t.Field(i).Name+"="+text(rv.Field(i).Interface()))
			}
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}

// ordered is a mapping that keeps insertion order in JSON and YAML.
type ordered struct {
	keys []string
	vals []any
}

func (o *ordered) set(k string, v any) {
	o.keys = append(o.keys, k)
	o.vals = append(o.vals, v)
}

func (r *Report) document() *ordered {
	doc := &ordered{}
	doc.set("title", r.Title)
	if r.Run != "" {
		doc.set("run", r.Run)
	}
	doc.set("status", r.Status)
	doc.set("ok", r.OK)
	fields := &ordered{}
	for _, f := range r.Fields {
		fields.set(f.Key, plain(f.Value))
	}
	doc.set("fields", fields)
	if len(r.Tables) > 0 {
		tables := make([]*ordered, len(r.Tables))
		for i, t := range r.Tables {
			tab := &ordered{}
			tab.set("title", t.Title)
			tab.set("header", t.Header)
			rows := make([][]any, len(t.Rows))
			for j, row := range t.Rows {
				rows[j] = make([]any, len(row))
				for k, c := range row {
					rows[j][k] = plain(c)
				}
			}
			tab.set("rows", rows)
			tables[i] = tab
		}
		doc.set("tables", tables)
	}
	return doc
}

// plain replaces values JSON cannot hold: non-finite floats become strings,
// Stringers their text.
func plain(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int, int64, uint64:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		return x
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = plain(rv.Index(i).Interface())
		}
		return out
	case reflect.Float32, reflect.Float64:
		return plain(rv.Float())
	}
	return v
}

func (o *ordered) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, fmt.Errorf("report: field %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *ordered) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, k := range o.keys {
		var val yaml.Node
		if err := val.Encode(o.vals[i]); err != nil {
			return nil, fmt.Errorf("report: field %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
	}
	return node, nil
}
