// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linprog solves linear programs
//
//	minimize   𝐜ᵀ𝐱
//	s.t.       𝐀ᵤ𝐱 ≤ 𝐛ᵤ
//	           𝐀ₑ𝐱 = 𝐛ₑ
//	           𝒍 ≤ 𝐱 ≤ 𝒖
//
// by reduction to the standard form accepted by the gonum simplex.
package linprog

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/curioloop/optlab/internal/logging"
)

var (
	ErrDimension = errors.New("linprog: dimension mismatch")
	ErrBound     = errors.New("linprog: inconsistent bounds")
)

// Status reports how a linear program was resolved.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	// Singular the constraint matrix is rank deficient.
	Singular
	// Failed the simplex stopped on a numerical failure.
	Failed
)

var statusText = map[Status]string{
	Optimal:    "optimal solution found",
	Infeasible: "no feasible point found",
	Unbounded:  "problem is unbounded",
	Singular:   "constraint matrix is rank deficient",
	Failed:     "numerical failure in simplex",
}

func (s Status) String() string {
	if msg, ok := statusText[s]; ok {
		return msg
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Problem is a linear program in general form.
// Nil matrices mean the constraint class is absent.
type Problem struct {
	C        []float64
	Aub      mat.Matrix
	Bub      []float64
	Aeq      mat.Matrix
	Beq      []float64
	Lower    []float64 // nil means every variable is unbounded below
	Upper    []float64 // nil means every variable is unbounded above
	Maximize bool      // maximize 𝐜ᵀ𝐱 instead
}

// Settings tunes the simplex.
type Settings struct {
	// Tol is the reduced cost tolerance, default 1e-10.
	Tol float64
	// SkipDual leaves Result.Lambda empty.
	SkipDual bool
}

// Lambda holds the Lagrange multipliers at the solution. They satisfy
//
//	𝐜 + 𝐀ᵤᵀ𝛌ᵤ + 𝐀ₑᵀ𝛌ₑ - 𝛌ₗ + 𝛌ᵤₚ = 0
//
// with every multiplier except 𝛌ₑ non-negative. For a maximization the
// multipliers belong to the equivalent minimization of -𝐜ᵀ𝐱.
type Lambda struct {
	Ineq  []float64
	Eq    []float64
	Lower []float64
	Upper []float64
}

// Result is the outcome of Solve.
type Result struct {
	X      []float64
	F      float64 // 𝐜ᵀ𝐱
	Status Status
	Slack  []float64 // 𝐛ᵤ - 𝐀ᵤ𝐱
	Lambda Lambda
}

// Validate checks the shapes and bounds of p.
func (p *Problem) Validate() error {
	n := len(p.C)
	if n == 0 {
		return fmt.Errorf("%w: empty objective", ErrDimension)
	}
	check := func(name string, a mat.Matrix, b []float64) error {
		if a == nil {
			if len(b) != 0 {
				return fmt.Errorf("%w: %s rhs without matrix", ErrDimension, name)
			}
			return nil
		}
		r, c := a.Dims()
		if c != n || r != len(b) {
			return fmt.Errorf("%w: %s is %d×%d with %d rhs, want %d columns", ErrDimension, name, r, c, len(b), n)
		}
		return nil
	}
	if err := check("inequality", p.Aub, p.Bub); err != nil {
		return err
	}
	if err := check("equality", p.Aeq, p.Beq); err != nil {
		return err
	}
	if p.Lower != nil && len(p.Lower) != n {
		return fmt.Errorf("%w: %d lower bounds for %d variables", ErrDimension, len(p.Lower), n)
	}
	if p.Upper != nil && len(p.Upper) != n {
		return fmt.Errorf("%w: %d upper bounds for %d variables", ErrDimension, len(p.Upper), n)
	}
	for j := 0; j < n; j++ {
		l, u := p.bounds(j)
		if math.IsNaN(l) || math.IsNaN(u) || l > u || math.IsInf(l, 1) || math.IsInf(u, -1) {
			return fmt.Errorf("%w: variable %d in [%g, %g]", ErrBound, j, l, u)
		}
	}
	return nil
}

func (p *Problem) bounds(j int) (l, u float64) {
	l, u = math.Inf(-1), math.Inf(1)
	if p.Lower != nil {
		l = p.Lower[j]
	}
	if p.Upper != nil {
		u = p.Upper[j]
	}
	return
}

// Solve solves the linear program p.
// An infeasible or unbounded program is reported through Result.Status.
func Solve(ctx context.Context, p *Problem, s *Settings) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		s = new(Settings)
	}
	tol := s.Tol
	if tol <= 0 {
		tol = 1e-10
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("solver", "linprog")

	sf := toStandard(p)
	if sf.status != Optimal {
		log.V(logging.DEBUG).Info("presolve decided the problem", "status", sf.status.String())
		return &Result{Status: sf.status, F: math.NaN()}, nil
	}
	rows, cols := sf.dims()
	log.V(logging.DEBUG).Info("standard form", "rows", rows, "columns", cols)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	z, status := sf.solve(tol)
	if status != Optimal {
		log.V(logging.DEBUG).Info("simplex stopped", "status", status.String())
		return &Result{Status: status, F: math.NaN()}, nil
	}

	res := &Result{X: sf.recover(z), Status: Optimal}
	res.F = floats.Dot(p.C, res.X)
	if p.Aub != nil {
		r, _ := p.Aub.Dims()
		ax := mat.NewVecDense(r, nil)
		ax.MulVec(p.Aub, mat.NewVecDense(len(res.X), res.X))
		res.Slack = make([]float64, r)
		floats.SubTo(res.Slack, p.Bub, ax.RawVector().Data)
	}

	if !s.SkipDual {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lambda, err := sf.multipliers(tol)
		if err != nil {
			log.Info("dual program not solved, multipliers omitted", "err", err.Error())
		} else {
			res.Lambda = lambda
		}
	}
	return res, nil
}

func simplexStatus(err error) Status {
	switch {
	case err == nil:
		return Optimal
	case errors.Is(err, lp.ErrInfeasible):
		return Infeasible
	case errors.Is(err, lp.ErrUnbounded):
		return Unbounded
	case errors.Is(err, lp.ErrSingular):
		return Singular
	}
	return Failed
}
