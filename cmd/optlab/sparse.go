// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/curioloop/optlab/internal/report"
	"github.com/curioloop/optlab/krylov"
	"github.com/curioloop/optlab/sparse"
)

// sparse solves 𝐀𝐱 = 𝐀𝟏 so that the error against the exact solution is known.
func (a *app) sparse(ctx context.Context) (*report.Report, error) {
	c := a.cfg.Sparse

	op, source, err := sparseOperator(c.Matrix, c.Grid, c.Solver, sparse.Wind{X: c.Wind.X, Y: c.Wind.Y})
	if err != nil {
		return nil, err
	}
	n, _ := op.Dims()
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	b := make([]float64, n)
	op.MulVecTo(b, ones)

	var pre krylov.Preconditioner
	switch c.Precond {
	case "jacobi":
		pre, err = krylov.NewJacobi(op.Diagonal())
	case "ilu0":
		pre, err = krylov.NewILU0(op)
	}
	if err != nil {
		return nil, err
	}

	settings := &krylov.Settings{Tol: c.Tol, MaxIter: c.MaxIter, Precond: pre}
	solve := krylov.BiCGSTAB
	if c.Solver == "cg" {
		solve = krylov.CG
	}
	start := time.Now()
	res, err := solve(ctx, op, b, settings)
	if err != nil {
		return nil, err
	}
	a.observe(c.Solver, res.Status.String(), res.Iterations, start)

	var maxErr float64
	for _, x := range res.X {
		maxErr = math.Max(maxErr, math.Abs(x-1))
	}
	r := &report.Report{
		Title:  "sparse " + c.Solver,
		Status: res.Status.String(),
		OK:     res.Status == krylov.Converged,
	}
	r.Add("matrix", source).
		Add("n", n).
		Add("nnz", op.NNZ()).
		Add("preconditioner", c.Precond).
		Add("iterations", res.Iter()).
		Add("relative residual", res.RelRes).
		Add("max error", maxErr)
	return r, nil
}

func sparseOperator(path string, grid int, solver string, wind sparse.Wind) (*sparse.CSR, string, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		m, err := sparse.ReadMatrixMarket(f)
		return m, path, err
	}
	if solver == "cg" {
		// conjugate gradients needs a symmetric positive definite operator
		m, err := sparse.Poisson2D(grid)
		return m, "poisson", err
	}
	m, err := sparse.ConvectionDiffusion2D(grid, wind)
	return m, "convection-diffusion", err
}
