// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const mmBanner = "%%MatrixMarket"

// ReadMatrixMarket parses a matrix in MatrixMarket coordinate format.
// Supported fields are real, integer and pattern; supported symmetries are
// general, symmetric and skew-symmetric.
func ReadMatrixMarket(r io.Reader) (*CSR, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			s := strings.TrimSpace(sc.Text())
			if s == "" || strings.HasPrefix(s, "%") {
				continue
			}
			return s, true
		}
		return "", false
	}

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty input", ErrFormat)
	}
	line++
	head := strings.Fields(strings.ToLower(sc.Text()))
	if len(head) != 5 || head[0] != strings.ToLower(mmBanner) || head[1] != "matrix" {
		return nil, fmt.Errorf("%w: bad banner %q", ErrFormat, sc.Text())
	}
	if head[2] != "coordinate" {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrFormat, head[2])
	}
	field, symmetry := head[3], head[4]
	switch field {
	case "real", "integer", "pattern":
	default:
		return nil, fmt.Errorf("%w: unsupported field %q", ErrFormat, field)
	}
	switch symmetry {
	case "general", "symmetric", "skew-symmetric":
	default:
		return nil, fmt.Errorf("%w: unsupported symmetry %q", ErrFormat, symmetry)
	}

	s, ok := next()
	if !ok {
		return nil, fmt.Errorf("%w: missing size line", ErrFormat)
	}
	var rows, cols, nnz int
	if _, err := fmt.Sscan(s, &rows, &cols, &nnz); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
	}
	if symmetry != "general" && rows != cols {
		return nil, fmt.Errorf("%w: %s matrix is %d×%d", ErrDimension, symmetry, rows, cols)
	}

	b := NewBuilder(rows, cols)
	for k := 0; k < nnz; k++ {
		s, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: expected %d entries, got %d", ErrFormat, nnz, k)
		}
		f := strings.Fields(s)
		want := 3
		if field == "pattern" {
			want = 2
		}
		if len(f) != want {
			return nil, fmt.Errorf("%w: line %d: %d fields, want %d", ErrFormat, line, len(f), want)
		}
		i, err1 := strconv.Atoi(f[0])
		j, err2 := strconv.Atoi(f[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: line %d: bad index", ErrFormat, line)
		}
		v := 1.0
		if field != "pattern" {
			var err error
			if v, err = strconv.ParseFloat(f[2], 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
		}
		i, j = i-1, j-1
		b.Add(i, j, v)
		if i != j {
			switch symmetry {
			case "symmetric":
				b.Add(j, i, v)
			case "skew-symmetric":
				b.Add(j, i, -v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b.Build()
}

// WriteMatrixMarket writes m as a general real coordinate matrix.
func WriteMatrixMarket(w io.Writer, m *CSR) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s matrix coordinate real general\n", mmBanner)
	fmt.Fprintf(bw, "%d %d %d\n", m.r, m.c, m.NNZ())
	for i := 0; i < m.r; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			fmt.Fprintf(bw, "%d %d %s\n", i+1, m.indices[k]+1,
				strconv.FormatFloat(m.data[k], 'g', -1, 64))
		}
	}
	return bw.Flush()
}
