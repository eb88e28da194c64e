// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/curioloop/optlab/internal/config"
	"github.com/curioloop/optlab/internal/report"
	"github.com/curioloop/optlab/nlp"
	"github.com/curioloop/optlab/numdiff"
	"github.com/curioloop/optlab/symbolic"
)

func (a *app) nlp(ctx context.Context) (*report.Report, error) {
	c := a.cfg.NLP
	p, err := nlpProblem(c)
	if err != nil {
		return nil, err
	}
	algo, err := nlp.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return nil, err
	}
	fd, err := numdiff.ParseMethod(c.FD)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := nlp.Minimize(ctx, p, c.X0, &nlp.Options{
		Algorithm:        algo,
		MaxIterations:    c.MaxIter,
		Tolerance:        c.Tol,
		FiniteDifference: fd,
	})
	if err != nil {
		return nil, err
	}
	a.observe("nlp-"+algo.String(), res.Status.String(), res.Iterations, start)

	r := &report.Report{
		Title:  "nlp " + algo.String(),
		Status: res.Status.String(),
		OK:     res.Status == nlp.Converged,
	}
	r.Add("objective", c.Objective).
		Add("vars", c.Vars).
		Add("x", res.X).
		Add("f", res.F).
		Add("iterations", res.Iterations).
		Add("evaluations", res.FuncEvals).
		Add("max violation", res.MaxViolation).
		Add("detail", res.Message)
	l := res.Lambda
	for _, m := range []struct {
		name string
		v    []float64
	}{
		{"lambda ineqnonlin", l.Ineqnonlin},
		{"lambda eqnonlin", l.Eqnonlin},
		{"lambda ineqlin", l.Ineqlin},
		{"lambda eqlin", l.Eqlin},
		{"lambda lower", l.Lower},
		{"lambda upper", l.Upper},
	} {
		if len(m.v) > 0 {
			r.Add(m.name, m.v)
		}
	}
	return r, nil
}

// nlpProblem compiles the configured expressions.
func nlpProblem(c config.NLPConfig) (*nlp.Problem, error) {
	n := len(c.Vars)
	obj, err := symbolic.Parse(c.Objective)
	if err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	f, err := symbolic.Compile(obj, c.Vars)
	if err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	p := &nlp.Problem{
		Objective: f,
		A:         dense(c.A, n),
		B:         c.B,
		Aeq:       dense(c.Aeq, n),
		Beq:       c.Beq,
		Lower:     nonEmpty(c.Lower),
		Upper:     nonEmpty(c.Upper),
	}
	symbolicGrad := c.Gradient == "symbolic"
	if symbolicGrad {
		if p.Gradient, err = symbolic.CompileGradient(obj, c.Vars); err != nil {
			return nil, fmt.Errorf("objective gradient: %w", err)
		}
	}
	if len(c.Ineq)+len(c.Eq) == 0 {
		return p, nil
	}

	ineq, ineqGrad, err := compileConstraints("inequality", c.Ineq, c.Vars)
	if err != nil {
		return nil, err
	}
	eq, eqGrad, err := compileConstraints("equality", c.Eq, c.Vars)
	if err != nil {
		return nil, err
	}
	p.NumIneq, p.NumEq = len(ineq), len(eq)
	p.Nonlinear = func(x, ci, ceq []float64) {
		for i, g := range ineq {
			ci[i] = g(x)
		}
		for i, h := range eq {
			ceq[i] = h(x)
		}
	}
	if symbolicGrad {
		p.NonlinearJacobian = func(x, jc, jeq []float64) {
			for i, g := range ineqGrad {
				g(x, jc[i*n:(i+1)*n])
			}
			for i, g := range eqGrad {
				g(x, jeq[i*n:(i+1)*n])
			}
		}
	}
	return p, nil
}

func compileConstraints(kind string, srcs, vars []string) ([]symbolic.Func, []func(x, g []float64), error) {
	fs := make([]symbolic.Func, len(srcs))
	gs := make([]func(x, g []float64), len(srcs))
	for i, src := range srcs {
		e, err := symbolic.Parse(src)
		if err != nil {
			return nil, nil, fmt.Errorf("%s %d: %w", kind, i+1, err)
		}
		if fs[i], err = symbolic.Compile(e, vars); err != nil {
			return nil, nil, fmt.Errorf("%s %d: %w", kind, i+1, err)
		}
		if gs[i], err = symbolic.CompileGradient(e, vars); err != nil {
			return nil, nil, fmt.Errorf("%s %d gradient: %w", kind, i+1, err)
		}
	}
	return fs, gs, nil
}
