// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lagrange applies the method of Lagrange multipliers to
//
//	extremize 𝒇(𝐱)  s.t.  𝒈ⱼ(𝐱) = 0,  j = 1…m
//
// It forms 𝓛(𝐱,𝛌) = 𝒇(𝐱) - ∑𝜆ⱼ𝒈ⱼ(𝐱) symbolically, locates its stationary
// points numerically and classifies them with the Hessian of 𝓛 projected on
// the tangent space of the constraints.
package lagrange

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/njchilds90/gosymbol"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/optlab/symbolic"
)

var (
	ErrNoVariables        = errors.New("lagrange: no decision variables")
	ErrTooManyConstraints = errors.New("lagrange: need fewer constraints than variables")
	ErrDimension          = errors.New("lagrange: dimension mismatch")
	ErrGradient           = errors.New("lagrange: symbolic gradient disagrees with finite differences")
)

// System is the symbolic Lagrangian of a problem and its compiled derivatives.
type System struct {
	Objective   gosymbol.Expr
	Constraints []gosymbol.Expr
	Vars        []string
	Multipliers []string
	Lagrangian  gosymbol.Expr
	// Stationarity lists ∂𝓛/∂𝑥ᵢ for every variable followed by 𝒈ⱼ.
	Stationarity []gosymbol.Expr
	// Jacobian of Stationarity with respect to Vars then Multipliers.
	Jacobian *gosymbol.Matrix

	f     symbolic.Func
	grad  func(x, g []float64)
	eqs   []symbolic.Func // over Vars ++ Multipliers
	jac   []symbolic.Func // row major (n+m)²
	hessL []symbolic.Func // ∇²ₓ𝓛, row major n², over Vars ++ Multipliers
}

// BuildSource parses the objective and constraints before calling Build.
func BuildSource(objective string, constraints []string, vars []string) (*System, error) {
	f, err := symbolic.Parse(objective)
	if err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	gs := make([]gosymbol.Expr, len(constraints))
	for j, src := range constraints {
		if gs[j], err = symbolic.Parse(src); err != nil {
			return nil, fmt.Errorf("constraint %d: %w", j+1, err)
		}
	}
	return Build(f, gs, vars)
}

// Build forms the Lagrangian. When vars is nil the free symbols of the
// objective and constraints are used in sorted order.
func Build(objective gosymbol.Expr, constraints []gosymbol.Expr, vars []string) (*System, error) {
	if vars == nil {
		vars = symbolic.Variables(append([]gosymbol.Expr{objective}, constraints...)...)
	}
	n, m := len(vars), len(constraints)
	switch {
	case n == 0:
		return nil, ErrNoVariables
	case m >= n:
		return nil, fmt.Errorf("%w: %d constraints for %d variables", ErrTooManyConstraints, m, n)
	}

	s := &System{
		Objective:   objective,
		Constraints: slices.Clone(constraints),
		Vars:        slices.Clone(vars),
		Multipliers: multiplierNames(vars, m),
	}

	terms := []gosymbol.Expr{objective}
	for j, g := range constraints {
		terms = append(terms, gosymbol.MulOf(gosymbol.N(-1), gosymbol.S(s.Multipliers[j]), g))
	}
	s.Lagrangian = gosymbol.AddOf(terms...)
	s.Stationarity = append(gosymbol.Gradient(s.Lagrangian, vars), constraints...)

	all := append(slices.Clone(vars), s.Multipliers...)
	s.Jacobian = gosymbol.Jacobian(s.Stationarity, all)

	var err error
	if s.f, err = symbolic.Compile(objective, vars); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	if s.grad, err = symbolic.CompileGradient(objective, vars); err != nil {
		return nil, fmt.Errorf("objective gradient: %w", err)
	}
	if s.eqs, err = compileAll(s.Stationarity, all); err != nil {
		return nil, err
	}
	k := n + m
	entries := make([]gosymbol.Expr, 0, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			entries = append(entries, s.Jacobian.Get(i, j))
		}
	}
	if s.jac, err = compileAll(entries, all); err != nil {
		return nil, err
	}
	// ∇²ₓ𝓛 is the leading n×n block of the Jacobian
	s.hessL = make([]symbolic.Func, 0, n*n)
	for i := 0; i < n; i++ {
		s.hessL = append(s.hessL, s.jac[i*k:i*k+n]...)
	}
	return s, nil
}

func compileAll(es []gosymbol.Expr, vars []string) ([]symbolic.Func, error) {
	fs := make([]symbolic.Func, len(es))
	for i, e := range es {
		f, err := symbolic.Compile(e, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e, err)
		}
		fs[i] = f
	}
	return fs, nil
}

// multiplierNames returns lambda1…lambdaM, renamed if a variable already uses them.
func multiplierNames(vars []string, m int) []string {
	prefix := "lambda"
	for slices.ContainsFunc(vars, func(v string) bool {
		for j := 1; j <= m; j++ {
			if v == prefix+strconv.Itoa(j) {
				return true
			}
		}
		return false
	}) {
		prefix = "_" + prefix
	}
	names := make([]string, m)
	for j := range names {
		names[j] = prefix + strconv.Itoa(j+1)
	}
	return names
}

// F evaluates the objective at x.
func (s *System) F(x []float64) float64 {
	return s.f(x)
}

// Residual evaluates the stationarity equations at z = (𝐱, 𝛌) into r.
func (s *System) Residual(z, r []float64) {
	for i, f := range s.eqs {
		r[i] = f(z)
	}
}

// CheckGradient compares the compiled symbolic gradient of the objective at x
// with a central finite-difference estimate. It returns the largest absolute
// difference and ErrGradient when that exceeds tol.
func (s *System) CheckGradient(x []float64, tol float64) (float64, error) {
	if len(x) != len(s.Vars) {
		return math.NaN(), fmt.Errorf("%w: %d values for %d variables", ErrDimension, len(x), len(s.Vars))
	}
	sym := make([]float64, len(x))
	s.grad(x, sym)
	num := fd.Gradient(nil, s.f, x, &fd.Settings{Formula: fd.Central})

	floats.Sub(num, sym)
	diff := floats.Norm(num, math.Inf(1))
	if diff > tol || math.IsNaN(diff) {
		return diff, fmt.Errorf("%w: max difference %g", ErrGradient, diff)
	}
	return diff, nil
}
