// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse provides a compressed sparse row matrix and the
// generators of the large systems used by the iterative solvers.
package sparse

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimension = errors.New("sparse: dimension mismatch")
	ErrIndex     = errors.New("sparse: index out of range")
	ErrFormat    = errors.New("sparse: malformed input")
)

// CSR is a compressed sparse row matrix.
//
// Row i holds the column indices indices[indptr[i]:indptr[i+1]] in strictly
// increasing order, with the matching values in data.
type CSR struct {
	r, c    int
	indptr  []int
	indices []int
	data    []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR creates a matrix from its raw CSR arrays. The slices are used directly.
func NewCSR(r, c int, indptr, indices []int, data []float64) (*CSR, error) {
	switch {
	case r <= 0 || c <= 0:
		return nil, fmt.Errorf("%w: %d×%d", ErrDimension, r, c)
	case len(indptr) != r+1:
		return nil, fmt.Errorf("%w: indptr has %d elements, want %d", ErrDimension, len(indptr), r+1)
	case len(indices) != len(data):
		return nil, fmt.Errorf("%w: %d indices for %d values", ErrDimension, len(indices), len(data))
	case indptr[0] != 0 || indptr[r] != len(data):
		return nil, fmt.Errorf("%w: indptr must span [0, %d]", ErrFormat, len(data))
	}
	// indptr is checked in full before any row is read through it.
	for i := 0; i < r; i++ {
		if indptr[i+1] < indptr[i] {
			return nil, fmt.Errorf("%w: indptr decreases at row %d", ErrFormat, i)
		}
		if indptr[i+1] > len(data) {
			return nil, fmt.Errorf("%w: indptr[%d] = %d exceeds %d values", ErrFormat, i+1, indptr[i+1], len(data))
		}
	}
	for i := 0; i < r; i++ {
		lo, hi := indptr[i], indptr[i+1]
		for k := lo; k < hi; k++ {
			j := indices[k]
			if j < 0 || j >= c {
				return nil, fmt.Errorf("%w: column %d in row %d", ErrIndex, j, i)
			}
			if k > lo && indices[k-1] >= j {
				return nil, fmt.Errorf("%w: columns of row %d not strictly increasing", ErrFormat, i)
			}
		}
	}
	return &CSR{r: r, c: c, indptr: indptr, indices: indices, data: data}, nil
}

// Dims returns the number of rows and columns.
func (m *CSR) Dims() (r, c int) { return m.r, m.c }

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	if uint(i) >= uint(m.r) || uint(j) >= uint(m.c) {
		panic(mat.ErrIndexOutOfRange)
	}
	cols := m.indices[m.indptr[i]:m.indptr[i+1]]
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return m.data[m.indptr[i]+k]
	}
	return 0
}

// T returns an implicit transpose.
func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored elements.
func (m *CSR) NNZ() int { return len(m.data) }

// RowView returns the column indices and values stored in row i.
// The returned slices share storage with m.
func (m *CSR) RowView(i int) ([]int, []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// MulVecTo computes dst = m x.
func (m *CSR) MulVecTo(dst, x []float64) {
	if len(x) != m.c || len(dst) != m.r {
		panic(ErrDimension)
	}
	for i := 0; i < m.r; i++ {
		var s float64
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			s += m.data[k] * x[m.indices[k]]
		}
		dst[i] = s
	}
}

// MulVecTransTo computes dst = mᵀ x.
func (m *CSR) MulVecTransTo(dst, x []float64) {
	if len(x) != m.r || len(dst) != m.c {
		panic(ErrDimension)
	}
	clear(dst)
	for i := 0; i < m.r; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			dst[m.indices[k]] += m.data[k] * xi
		}
	}
}

// Diagonal returns the main diagonal, zero where nothing is stored.
func (m *CSR) Diagonal() []float64 {
	d := make([]float64, min(m.r, m.c))
	for i := range d {
		d[i] = m.At(i, i)
	}
	return d
}

// ToDense expands m into a dense matrix.
func (m *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(m.r, m.c, nil)
	for i := 0; i < m.r; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			d.Set(i, m.indices[k], m.data[k])
		}
	}
	return d
}
