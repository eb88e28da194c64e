// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optlab/sparse"
)

// Operator is a linear map applied by matrix-vector products only.
type Operator interface {
	Dims() (r, c int)
	// MulVecTo computes dst = A x.
	MulVecTo(dst, x []float64)
}

var _ Operator = (*sparse.CSR)(nil)

// DenseOperator adapts any mat.Matrix to an Operator.
type DenseOperator struct {
	M mat.Matrix
}

func (d DenseOperator) Dims() (r, c int) { return d.M.Dims() }

func (d DenseOperator) MulVecTo(dst, x []float64) {
	r, c := d.M.Dims()
	y := mat.NewVecDense(r, dst)
	y.MulVec(d.M, mat.NewVecDense(c, x))
}
