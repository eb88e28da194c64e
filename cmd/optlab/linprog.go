// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optlab/internal/report"
	"github.com/curioloop/optlab/linprog"
)

func (a *app) linprog(ctx context.Context) (*report.Report, error) {
	c := a.cfg.Linprog
	n := len(c.C)
	p := &linprog.Problem{
		C:        c.C,
		Aub:      dense(c.Aub, n),
		Bub:      c.Bub,
		Aeq:      dense(c.Aeq, n),
		Beq:      c.Beq,
		Lower:    nonEmpty(c.Lower),
		Upper:    nonEmpty(c.Upper),
		Maximize: c.Maximize,
	}

	start := time.Now()
	res, err := linprog.Solve(ctx, p, &linprog.Settings{Tol: c.Tol})
	if err != nil {
		return nil, err
	}
	a.observe("linprog", res.Status.String(), 0, start)

	sense := "minimize"
	if c.Maximize {
		sense = "maximize"
	}
	r := &report.Report{
		Title:  "linprog",
		Status: res.Status.String(),
		OK:     res.Status == linprog.Optimal,
	}
	r.Add("sense", sense).
		Add("x", res.X).
		Add("objective", res.F)
	if r.OK {
		r.Add("slack", res.Slack).
			Add("lambda ineq", res.Lambda.Ineq).
			Add("lambda eq", res.Lambda.Eq).
			Add("lambda lower", res.Lambda.Lower).
			Add("lambda upper", res.Lambda.Upper)
	}
	return r, nil
}

// dense converts configured rows into a matrix, nil when there are none.
func dense(rows [][]float64, n int) mat.Matrix {
	if len(rows) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), n, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

func nonEmpty(s []float64) []float64 {
	if len(s) == 0 {
		return nil
	}
	return s
}
