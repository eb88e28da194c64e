// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package krylov implements preconditioned Krylov subspace solvers for
// large sparse linear systems 𝐀𝐱 = 𝐛.
package krylov

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrDimension = errors.New("krylov: dimension mismatch")
	ErrSettings  = errors.New("krylov: bad settings")
	ErrZeroPivot = errors.New("krylov: zero pivot")
)

// Status reports how an iterative solve ended.
// The values follow the flag convention of common Krylov toolboxes.
type Status int

const (
	// Converged the relative residual dropped below the tolerance.
	Converged Status = iota
	// MaxIterReached the iteration limit was hit before convergence.
	MaxIterReached
	// PrecondIllConditioned the preconditioner could not be applied.
	PrecondIllConditioned
	// Stagnated consecutive iterates were numerically identical.
	Stagnated
	// Breakdown a scalar quantity became zero or infinite.
	Breakdown
)

var statusText = map[Status]string{
	Converged:             "converged to the desired tolerance",
	MaxIterReached:        "iterated the maximum number of times without converging",
	PrecondIllConditioned: "preconditioner was ill-conditioned",
	Stagnated:             "method stagnated",
	Breakdown:             "a scalar quantity became too small or too large to continue",
}

func (s Status) String() string {
	if msg, ok := statusText[s]; ok {
		return msg
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Settings controls an iterative solve. The zero value uses the defaults.
type Settings struct {
	// Relative residual tolerance ‖𝐛 - 𝐀𝐱‖ ≤ Tol‖𝐛‖, default 1e-6.
	Tol float64
	// Iteration limit, default min(n, 20).
	MaxIter int
	// Initial guess, default zero.
	X0 []float64
	// Right preconditioner, default Identity.
	Precond Preconditioner
	// Record the residual norm after every (half) step.
	History bool
}

// Result is the outcome of an iterative solve.
type Result struct {
	X      []float64
	Status Status
	// RelRes is ‖𝐛 - 𝐀𝐱‖ / ‖𝐛‖ for the returned X.
	RelRes float64
	// Iterations is the number of full iterations behind X.
	Iterations int
	// HalfStep is set when X was taken half way through the next iteration.
	HalfStep bool
	// History holds residual norms starting with the initial one.
	History []float64
}

// Iter returns the iteration count with half steps counted as 0.5.
func (r *Result) Iter() float64 {
	if r.HalfStep {
		return float64(r.Iterations) + 0.5
	}
	return float64(r.Iterations)
}

const maxStagSteps = 3

// state is shared bookkeeping for the solvers.
type state struct {
	a       Operator
	b       []float64
	n2b     float64
	tolb    float64
	m       Preconditioner
	maxIter int

	// best iterate seen so far
	xmin     []float64
	normrmin float64
	imin     int
	halfmin  bool

	history []float64
	record  bool
	work    []float64
}

func newState(a Operator, b []float64, s *Settings) (*state, []float64, error) {
	if s == nil {
		s = new(Settings)
	}
	r, c := a.Dims()
	switch {
	case r != c:
		return nil, nil, fmt.Errorf("%w: operator is %d×%d", ErrDimension, r, c)
	case len(b) != r:
		return nil, nil, fmt.Errorf("%w: rhs has %d elements, want %d", ErrDimension, len(b), r)
	case s.X0 != nil && len(s.X0) != r:
		return nil, nil, fmt.Errorf("%w: x0 has %d elements, want %d", ErrDimension, len(s.X0), r)
	case s.Tol < 0 || math.IsNaN(s.Tol):
		return nil, nil, fmt.Errorf("%w: tolerance %g", ErrSettings, s.Tol)
	case s.MaxIter < 0:
		return nil, nil, fmt.Errorf("%w: max iterations %d", ErrSettings, s.MaxIter)
	}

	st := &state{a: a, b: b, m: s.Precond, maxIter: s.MaxIter, record: s.History}
	tol := s.Tol
	if tol == 0 {
		tol = 1e-6
	}
	if st.maxIter == 0 {
		st.maxIter = min(r, 20)
	}
	if st.m == nil {
		st.m = Identity{}
	}
	st.n2b = floats.Norm(b, 2)
	st.tolb = tol * st.n2b
	st.work = make([]float64, r)

	x := make([]float64, r)
	if s.X0 != nil {
		copy(x, s.X0)
	}
	return st, x, nil
}

// residual computes r = b - A x and returns its norm.
func (st *state) residual(r, x []float64) float64 {
	st.a.MulVecTo(r, x)
	floats.SubTo(r, st.b, r)
	return floats.Norm(r, 2)
}

func (st *state) push(normr float64) {
	if st.record {
		st.history = append(st.history, normr)
	}
}

func (st *state) keep(x []float64, normr float64, iter int, half bool) {
	if normr < st.normrmin {
		st.normrmin = normr
		copy(st.xmin, x)
		st.imin, st.halfmin = iter, half
	}
}

// finish builds the result of a run that did not converge, falling back to
// the best iterate when it beats the last one.
func (st *state) finish(x []float64, status Status, iter int, half bool, normrAct float64) *Result {
	res := &Result{X: x, Status: status, Iterations: iter, HalfStep: half, History: st.history}
	if status == Converged {
		res.RelRes = normrAct / st.n2b
		return res
	}
	if normrMin := st.residual(st.work, st.xmin); normrMin <= normrAct {
		res.X = slices.Clone(st.xmin)
		res.Iterations, res.HalfStep = st.imin, st.halfmin
		res.RelRes = normrMin / st.n2b
	} else {
		res.RelRes = normrAct / st.n2b
	}
	return res
}

func breakdown(v float64) bool {
	return v == 0 || math.IsInf(v, 0) || math.IsNaN(v)
}
