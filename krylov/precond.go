// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"fmt"
	"math"

	"github.com/curioloop/optlab/sparse"
)

// Preconditioner applies M⁻¹ for a preconditioner M ≈ A.
type Preconditioner interface {
	// Solve computes dst = M⁻¹ rhs. dst and rhs never alias.
	Solve(dst, rhs []float64) error
}

// Identity is the trivial preconditioner M = I.
type Identity struct{}

func (Identity) Solve(dst, rhs []float64) error {
	copy(dst, rhs)
	return nil
}

// Jacobi is the diagonal preconditioner M = diag(A).
type Jacobi struct {
	inv []float64
}

// NewJacobi creates a Jacobi preconditioner from the diagonal of A.
func NewJacobi(diag []float64) (*Jacobi, error) {
	inv := make([]float64, len(diag))
	for i, d := range diag {
		if d == 0 || math.IsNaN(d) {
			return nil, fmt.Errorf("%w: diagonal %d is %g", ErrZeroPivot, i, d)
		}
		inv[i] = 1 / d
	}
	return &Jacobi{inv: inv}, nil
}

func (j *Jacobi) Solve(dst, rhs []float64) error {
	if len(dst) != len(j.inv) || len(rhs) != len(j.inv) {
		return fmt.Errorf("%w: jacobi of order %d", ErrDimension, len(j.inv))
	}
	for i, v := range rhs {
		dst[i] = v * j.inv[i]
	}
	return nil
}

// ILU0 is the incomplete LU factorization with the sparsity pattern of A.
// L has a unit diagonal and shares storage with U.
type ILU0 struct {
	n       int
	indptr  []int
	indices []int
	lu      []float64
	diag    []int // position of the diagonal element in each row
}

// NewILU0 factorizes the square matrix a without fill-in.
// A missing or vanishing pivot yields ErrZeroPivot.
func NewILU0(a *sparse.CSR) (*ILU0, error) {
	n, c := a.Dims()
	if n != c {
		return nil, fmt.Errorf("%w: ilu0 of %d×%d matrix", ErrDimension, n, c)
	}

	f := &ILU0{
		n:       n,
		indptr:  make([]int, n+1),
		indices: make([]int, 0, a.NNZ()),
		lu:      make([]float64, 0, a.NNZ()),
		diag:    make([]int, n),
	}
	for i := 0; i < n; i++ {
		cols, vals := a.RowView(i)
		f.indices = append(f.indices, cols...)
		f.lu = append(f.lu, vals...)
		f.indptr[i+1] = len(f.lu)
		f.diag[i] = -1
		for k, j := range cols {
			if j == i {
				f.diag[i] = f.indptr[i] + k
			}
		}
		if f.diag[i] < 0 {
			return nil, fmt.Errorf("%w: row %d has no diagonal", ErrZeroPivot, i)
		}
	}

	pos := make([]int, n) // column → position in the current row, -1 if absent
	for j := range pos {
		pos[j] = -1
	}
	for i := 0; i < n; i++ {
		lo, hi := f.indptr[i], f.indptr[i+1]
		for k := lo; k < hi; k++ {
			pos[f.indices[k]] = k
		}
		for k := lo; k < f.diag[i]; k++ {
			r := f.indices[k]
			piv := f.lu[f.diag[r]]
			if piv == 0 {
				return nil, fmt.Errorf("%w: pivot %d", ErrZeroPivot, r)
			}
			f.lu[k] /= piv
			lik := f.lu[k]
			for q := f.diag[r] + 1; q < f.indptr[r+1]; q++ {
				if p := pos[f.indices[q]]; p >= 0 {
					f.lu[p] -= lik * f.lu[q]
				}
			}
		}
		for k := lo; k < hi; k++ {
			pos[f.indices[k]] = -1
		}
		if f.lu[f.diag[i]] == 0 {
			return nil, fmt.Errorf("%w: pivot %d", ErrZeroPivot, i)
		}
	}
	return f, nil
}

// Solve computes dst = U⁻¹ L⁻¹ rhs.
func (f *ILU0) Solve(dst, rhs []float64) error {
	if len(dst) != f.n || len(rhs) != f.n {
		return fmt.Errorf("%w: ilu0 of order %d", ErrDimension, f.n)
	}
	for i := 0; i < f.n; i++ {
		s := rhs[i]
		for k := f.indptr[i]; k < f.diag[i]; k++ {
			s -= f.lu[k] * dst[f.indices[k]]
		}
		dst[i] = s
	}
	for i := f.n - 1; i >= 0; i-- {
		s := dst[i]
		for k := f.diag[i] + 1; k < f.indptr[i+1]; k++ {
			s -= f.lu[k] * dst[f.indices[k]]
		}
		dst[i] = s / f.lu[f.diag[i]]
	}
	return nil
}
