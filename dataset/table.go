// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataset loads tabular measurements from spreadsheets and
// summarizes them.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrFormat     = errors.New("dataset: unsupported file format")
	ErrEmpty      = errors.New("dataset: no data")
	ErrNoSheet    = errors.New("dataset: sheet not found")
	ErrNoColumn   = errors.New("dataset: column not found")
	ErrNotNumeric = errors.New("dataset: cell is not numeric")
	ErrDimension  = errors.New("dataset: length mismatch")
	ErrDegenerate = errors.New("dataset: degenerate data")
	ErrBinMethod  = errors.New("dataset: unknown bin method")
)

//go:embed sample/measurements.csv
var sample []byte

// Table is a header row plus string cells. Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// LoadOptions selects what to read from a workbook.
type LoadOptions struct {
	// Sheet name for .xlsx files, the first sheet when empty.
	Sheet string
}

// Load reads a .xlsx or .csv file whose first row is the header.
func Load(path string, o *LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		var sheet string
		if o != nil {
			sheet = o.Sheet
		}
		return ReadXLSX(f, sheet)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, ext)
	}
}

// Sample returns the bundled measurements table.
func Sample() *Table {
	t, err := ReadCSV(bytes.NewReader(sample))
	if err != nil {
		panic(err)
	}
	return t
}

// ReadCSV reads comma separated values.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return newTable(records)
}

// ReadXLSX reads one sheet of a workbook.
func ReadXLSX(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, ErrNoSheet
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		var missing excelize.ErrSheetNotExist
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %q", ErrNoSheet, sheet)
		}
		return nil, err
	}
	return newTable(rows)
}

// WriteXLSX stores t in a new workbook with a single sheet.
func WriteXLSX(w io.Writer, t *Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	write := func(row int, cells []string) error {
		vals := make([]any, len(cells))
		for i, c := range cells {
			if v, err := strconv.ParseFloat(c, 64); err == nil {
				vals[i] = v
			} else {
				vals[i] = c
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &vals)
	}
	if err := write(1, t.Header); err != nil {
		return err
	}
	for i, r := range t.Rows {
		if err := write(i+2, r); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	t := &Table{Header: make([]string, len(records[0]))}
	for i, h := range records[0] {
		t.Header[i] = strings.TrimSpace(h)
	}
	for _, r := range records[1:] {
		if blank(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (t *Table) index(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrNoColumn, name)
}

// cell parses the value of column c in row r; ok is false for an empty cell.
func (t *Table) cell(r, c int) (v float64, ok bool, err error) {
	row := t.Rows[r]
	if c >= len(row) {
		return 0, false, nil
	}
	s := strings.TrimSpace(row[c])
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: row %d column %q value %q", ErrNotNumeric, r+2, t.Header[c], s)
	}
	return v, true, nil
}

// Column returns the numeric values of a column, skipping empty cells.
func (t *Table) Column(name string) ([]float64, error) {
	c, err := t.index(name)
	if err != nil {
		return nil, err
	}
	var xs []float64
	for r := range t.Rows {
		v, ok, err := t.cell(r, c)
		if err != nil {
			return nil, err
		}
		if ok {
			xs = append(xs, v)
		}
	}
	return xs, nil
}

// Pairs returns the rows where both columns hold a value.
func (t *Table) Pairs(x, y string) (xs, ys []float64, err error) {
	cx, err := t.index(x)
	if err != nil {
		return nil, nil, err
	}
	cy, err := t.index(y)
	if err != nil {
		return nil, nil, err
	}
	for r := range t.Rows {
		vx, okx, err := t.cell(r, cx)
		if err != nil {
			return nil, nil, err
		}
		vy, oky, err := t.cell(r, cy)
		if err != nil {
			return nil, nil, err
		}
		if okx && oky {
			xs = append(xs, vx)
			ys = append(ys, vy)
		}
	}
	return xs, ys, nil
}
