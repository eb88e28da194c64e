// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type level int

func (l level) String() string { return [...]string{"low", "high"}[l] }

func sample() *Report {
	r := &Report{Title: "linprog", Run: "r-1", Status: "optimal", OK: true}
	r.Add("x", []float64{2, 6}).
		Add("f", 36.0).
		Add("gap", math.NaN()).
		Add("level", level(1)).
		Add("vars", []string{"x", "y"})
	r.AddTable(Table{
		Title:  "multipliers",
		Header: []string{"row", "lambda"},
		Rows:   [][]any{{"1", 0.0}, {"2", 1.5}},
	})
	return r
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "text", sample()))
	out := buf.String()
	lines := strings.Split(out, "\n")
	assert.Equal(t, "linprog: optimal", lines[0])
	assert.Equal(t, strings.Repeat("=", len("linprog: optimal")), lines[1])
	assert.Equal(t, "run    r-1", lines[2])
	assert.Contains(t, out, "x      [2 6]\n")
	assert.Contains(t, out, "f      36\n")
	assert.Contains(t, out, "gap    NaN\n")
	assert.Contains(t, out, "level  high\n")
	assert.Contains(t, out, "vars   [x y]\n")
	assert.Contains(t, out, "\nmultipliers\n")
	assert.Contains(t, out, "1.5")
}

func TestTextMany(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "", &Report{Title: "a"}, &Report{Title: "b"}))
	assert.Equal(t, "a\n=\n\nb\n=\n", buf.String())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sample()))

	out := buf.String()
	assert.Less(t, strings.Index(out, `"title"`), strings.Index(out, `"fields"`), "keys keep their order")
	assert.Less(t, strings.Index(out, `"x"`), strings.Index(out, `"f"`))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "optimal", doc["status"])
	assert.Equal(t, true, doc["ok"])
	fields := doc["fields"].(map[string]any)
	assert.Equal(t, []any{2.0, 6.0}, fields["x"])
	assert.Equal(t, "NaN", fields["gap"])
	assert.Equal(t, "high", fields["level"])
	tables := doc["tables"].([]any)
	require.Len(t, tables, 1)
	assert.Equal(t, "multipliers", tables[0].(map[string]any)["title"])

	buf.Reset()
	require.NoError(t, Write(&buf, "json", sample(), sample()))
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	assert.Len(t, docs, 2)
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "yaml", sample(), &Report{Title: "second"}))

	dec := yaml.NewDecoder(&buf)
	var first struct {
		Title  string         `yaml:"title"`
		Run    string         `yaml:"run"`
		Fields map[string]any `yaml:"fields"`
	}
	require.NoError(t, dec.Decode(&first))
	assert.Equal(t, "linprog", first.Title)
	assert.Equal(t, "r-1", first.Run)
	assert.Equal(t, "[2 6]", fmt.Sprint(first.Fields["x"]))
	assert.Equal(t, "NaN", first.Fields["gap"])

	var second map[string]any
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "second", second["title"])
}

func TestUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", sample())
	assert.ErrorIs(t, err, ErrFormat)
}
