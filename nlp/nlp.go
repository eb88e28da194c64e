// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nlp minimizes smooth nonlinear functions subject to
//
//	𝐜(𝐱) ≤ 0,  𝐜ₑ(𝐱) = 0,  𝐀𝐱 ≤ 𝐛,  𝐀ₑ𝐱 = 𝐛ₑ,  𝒍 ≤ 𝐱 ≤ 𝒖
//
// with the SLSQP engine, or without constraints with the quasi-Newton and
// Nelder–Mead methods of gonum.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optlab/numdiff"
)

var (
	ErrDimension   = errors.New("nlp: dimension mismatch")
	ErrUnsupported = errors.New("nlp: algorithm does not support constraints")
	ErrNoObjective = errors.New("nlp: objective function is required")
	ErrAlgorithm   = errors.New("nlp: unknown algorithm")
)

// Algorithm selects the minimization method.
type Algorithm int

const (
	// SQP sequential least squares programming, handles every constraint class.
	SQP Algorithm = iota
	// QuasiNewton BFGS for unconstrained problems.
	QuasiNewton
	// NelderMead derivative free simplex search for unconstrained problems.
	NelderMead
)

var algorithmNames = map[Algorithm]string{
	SQP:         "sqp",
	QuasiNewton: "quasi-newton",
	NelderMead:  "nelder-mead",
}

func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps a name such as "sqp" to its Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return SQP, nil
	}
	for a, name := range algorithmNames {
		if name == s {
			return a, nil
		}
	}
	return SQP, fmt.Errorf("%w: %q", ErrAlgorithm, s)
}

// Status reports how a minimization ended.
type Status int

const (
	Converged Status = iota
	IterationLimit
	// Infeasible the method stopped at a point violating the constraints.
	Infeasible
	Failed
	// Stopped the context was cancelled.
	Stopped
)

var statusText = map[Status]string{
	Converged:      "local minimum found that satisfies the constraints",
	IterationLimit: "iteration limit reached",
	Infeasible:     "no feasible point found",
	Failed:         "solver failed",
	Stopped:        "stopped by caller",
}

func (s Status) String() string {
	if msg, ok := statusText[s]; ok {
		return msg
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Problem is a nonlinear program. Only Objective is required.
type Problem struct {
	Objective func(x []float64) float64
	// Gradient of the objective, estimated by finite differences when nil.
	Gradient func(x, grad []float64)

	// Nonlinear writes 𝐜(𝐱) into c (NumIneq values) and 𝐜ₑ(𝐱) into ceq (NumEq values).
	Nonlinear      func(x, c, ceq []float64)
	NumIneq, NumEq int
	// NonlinearJacobian writes the row major Jacobians of 𝐜 and 𝐜ₑ,
	// estimated by finite differences when nil.
	NonlinearJacobian func(x, jc, jceq []float64)

	A   mat.Matrix
	B   []float64
	Aeq mat.Matrix
	Beq []float64

	Lower []float64
	Upper []float64
}

// Options tunes Minimize. The zero value uses the defaults.
type Options struct {
	Algorithm Algorithm
	// MaxIterations default 100.
	MaxIterations int
	// Tolerance on optimality, default 1e-6.
	Tolerance float64
	// ConstraintTolerance on the final violation, default 1e-6.
	ConstraintTolerance float64
	// FiniteDifference is the scheme for missing derivatives.
	FiniteDifference numdiff.Method
}

func (o *Options) withDefaults() Options {
	var opt Options
	if o != nil {
		opt = *o
	}
	if opt.MaxIterations <= 0 {
		opt.MaxIterations = 100
	}
	if opt.Tolerance <= 0 {
		opt.Tolerance = 1e-6
	}
	if opt.ConstraintTolerance <= 0 {
		opt.ConstraintTolerance = 1e-6
	}
	return opt
}

// Lambda holds the Lagrange multipliers at the solution, signed so that
//
//	∇𝒇 + 𝐀ᵀ𝛌ᵢₗ + 𝐀ₑᵀ𝛌ₑₗ + ∇𝐜ᵀ𝛌ᵢₙ + ∇𝐜ₑᵀ𝛌ₑₙ - 𝛌ₗ + 𝛌ᵤ = 0
//
// where every inequality and bound multiplier is non-negative.
type Lambda struct {
	Ineqlin    []float64
	Eqlin      []float64
	Ineqnonlin []float64
	Eqnonlin   []float64
	Lower      []float64
	Upper      []float64
}

// Result is the outcome of Minimize.
type Result struct {
	X          []float64
	F          float64
	Status     Status
	Message    string // engine specific detail
	Iterations int
	FuncEvals  int
	Lambda     Lambda
	// MaxViolation is the largest constraint violation at X.
	MaxViolation float64
}

func (p *Problem) constrained() bool {
	return p.Nonlinear != nil || p.A != nil || p.Aeq != nil || p.Lower != nil || p.Upper != nil
}

func (p *Problem) validate(n int) error {
	if p.Objective == nil {
		return ErrNoObjective
	}
	if n == 0 {
		return fmt.Errorf("%w: empty initial point", ErrDimension)
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
			return fmt.Errorf("%w: %s is %d×%d with %d rhs for %d variables", ErrDimension, name, r, c, len(b), n)
		}
		return nil
	}
	if err := check("A", p.A, p.B); err != nil {
		return err
	}
	if err := check("Aeq", p.Aeq, p.Beq); err != nil {
		return err
	}
	switch {
	case p.Lower != nil && len(p.Lower) != n:
		return fmt.Errorf("%w: %d lower bounds for %d variables", ErrDimension, len(p.Lower), n)
	case p.Upper != nil && len(p.Upper) != n:
		return fmt.Errorf("%w: %d upper bounds for %d variables", ErrDimension, len(p.Upper), n)
	case p.NumIneq < 0 || p.NumEq < 0:
		return fmt.Errorf("%w: negative constraint count", ErrDimension)
	case p.Nonlinear == nil && (p.NumIneq > 0 || p.NumEq > 0 || p.NonlinearJacobian != nil):
		return fmt.Errorf("%w: nonlinear constraint sizes without a function", ErrDimension)
	case p.Nonlinear != nil && p.NumIneq+p.NumEq == 0:
		return fmt.Errorf("%w: nonlinear function without constraint sizes", ErrDimension)
	}
	return nil
}

// Minimize searches a local minimum of p from x0.
// Outcomes such as an iteration limit are reported in Result.Status;
// errors are reserved for invalid problems and cancellation.
func Minimize(ctx context.Context, p *Problem, x0 []float64, o *Options) (*Result, error) {
	opt := o.withDefaults()
	if err := p.validate(len(x0)); err != nil {
		return nil, err
	}
	switch opt.Algorithm {
	case SQP:
		return minimizeSQP(ctx, p, x0, opt)
	case QuasiNewton, NelderMead:
		if p.constrained() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, opt.Algorithm)
		}
		return minimizeUnconstrained(ctx, p, x0, opt)
	}
	return nil, fmt.Errorf("%w: %d", ErrAlgorithm, int(opt.Algorithm))
}

// MaxViolation returns the largest violation of the constraints of p at x.
func (p *Problem) MaxViolation(x []float64) float64 {
	var v float64
	n := len(x)
	if p.Nonlinear != nil {
		c := make([]float64, p.NumIneq)
		ceq := make([]float64, p.NumEq)
		p.Nonlinear(x, c, ceq)
		for _, ci := range c {
			v = math.Max(v, ci)
		}
		for _, ci := range ceq {
			v = math.Max(v, math.Abs(ci))
		}
	}
	xv := mat.NewVecDense(n, x)
	if p.A != nil {
		var ax mat.VecDense
		ax.MulVec(p.A, xv)
		for i, bi := range p.B {
			v = math.Max(v, ax.AtVec(i)-bi)
		}
	}
	if p.Aeq != nil {
		var ax mat.VecDense
		ax.MulVec(p.Aeq, xv)
		for i, bi := range p.Beq {
			v = math.Max(v, math.Abs(ax.AtVec(i)-bi))
		}
	}
	for j := range x {
		if p.Lower != nil {
			v = math.Max(v, p.Lower[j]-x[j])
		}
		if p.Upper != nil {
			v = math.Max(v, x[j]-p.Upper[j])
		}
	}
	return v
}

// boundMultipliers splits the stationarity residual 𝐫 between the active
// bounds: 𝜆ₗ = 𝑟 at an active lower bound, 𝜆ᵤ = -𝑟 at an active upper bound.
func (p *Problem) boundMultipliers(x, r []float64, tol float64) (lower, upper []float64) {
	n := len(x)
	lower, upper = make([]float64, n), make([]float64, n)
	for j := range x {
		scale := tol * math.Max(1, math.Abs(x[j]))
		switch {
		case p.Lower != nil && x[j]-p.Lower[j] <= scale && r[j] > 0:
			lower[j] = r[j]
		case p.Upper != nil && p.Upper[j]-x[j] <= scale && r[j] < 0:
			upper[j] = -r[j]
		}
	}
	return
}

func dot(a mat.Matrix, i int, x []float64) float64 {
	var s float64
	for j, xj := range x {
		s += a.At(i, j) * xj
	}
	return s
}

func addRow(dst []float64, a mat.Matrix, i int, alpha float64) {
	for j := range dst {
		dst[j] += alpha * a.At(i, j)
	}
}
