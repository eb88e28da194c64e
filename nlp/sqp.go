// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"context"
	"math"
	"slices"

	"github.com/go-logr/logr"

	"github.com/curioloop/optlab/internal/logging"
	"github.com/curioloop/optlab/numdiff"
	"github.com/curioloop/optlab/slsqp"
)

// evaluator caches the objective and the nonlinear constraints at the last
// point so that the per constraint callbacks of slsqp share one evaluation.
type evaluator struct {
	p      *Problem
	n      int
	method numdiff.Method
	bounds []numdiff.Bound
	nfev   int

	xc, c, ceq []float64 // constraint values at xc
	xj, jc, je []float64 // Jacobians at xj
	xg, g      []float64 // objective gradient at xg
}

func newEvaluator(p *Problem, n int, method numdiff.Method) *evaluator {
	e := &evaluator{p: p, n: n, method: method}
	if p.Lower != nil || p.Upper != nil {
		e.bounds = make([]numdiff.Bound, n)
		for j := range e.bounds {
			e.bounds[j] = numdiff.Bound{math.Inf(-1), math.Inf(1)}
			if p.Lower != nil {
				e.bounds[j][0] = p.Lower[j]
			}
			if p.Upper != nil {
				e.bounds[j][1] = p.Upper[j]
			}
		}
	}
	return e
}

func (e *evaluator) objective(x []float64) float64 {
	e.nfev++
	return e.p.Objective(x)
}

func (e *evaluator) gradient(x, grad []float64) {
	if e.xg != nil && slices.Equal(e.xg, x) {
		copy(grad, e.g)
		return
	}
	if e.p.Gradient != nil {
		e.p.Gradient(x, grad)
	} else {
		as := numdiff.ApproxSpec{
			N: e.n, M: 1,
			Method:    e.method,
			Bounds:    e.bounds,
			NotChkBnd: true,
			Object:    func(x, y []float64) { y[0] = e.objective(x) },
		}
		if err := as.Diff(slices.Clone(x), grad); err != nil {
			fill(grad, math.NaN())
		}
	}
	e.xg, e.g = slices.Clone(x), slices.Clone(grad)
}

func (e *evaluator) constraints(x []float64) ([]float64, []float64) {
	if e.xc == nil || !slices.Equal(e.xc, x) {
		p := e.p
		if e.c == nil {
			e.c, e.ceq = make([]float64, p.NumIneq), make([]float64, p.NumEq)
		}
		p.Nonlinear(x, e.c, e.ceq)
		e.xc = slices.Clone(x)
	}
	return e.c, e.ceq
}

func (e *evaluator) jacobians(x []float64) ([]float64, []float64) {
	if e.xj != nil && slices.Equal(e.xj, x) {
		return e.jc, e.je
	}
	p, n := e.p, e.n
	mi, me := p.NumIneq, p.NumEq
	if e.jc == nil {
		e.jc, e.je = make([]float64, mi*n), make([]float64, me*n)
	}
	if p.NonlinearJacobian != nil {
		p.NonlinearJacobian(x, e.jc, e.je)
	} else {
		c, ceq := make([]float64, mi), make([]float64, me)
		jac := make([]float64, (mi+me)*n)
		as := numdiff.ApproxSpec{
			N: n, M: mi + me,
			Method:    e.method,
			Bounds:    e.bounds,
			NotChkBnd: true,
			Object: func(x, y []float64) {
				p.Nonlinear(x, c, ceq)
				copy(y, c)
				copy(y[mi:], ceq)
			},
		}
		if err := as.Diff(slices.Clone(x), jac); err != nil {
			fill(jac, math.NaN())
		}
		copy(e.jc, jac[:mi*n])
		copy(e.je, jac[mi*n:])
	}
	e.xj = slices.Clone(x)
	return e.jc, e.je
}

// sqpConstraints translates the constraints into the slsqp convention,
// equalities 𝒄(𝐱) = 0 first and inequalities 𝒄(𝐱) ≥ 0 after:
//
//	eq  : 𝐀ₑ𝐱 - 𝐛ₑ, 𝐜ₑ(𝐱)
//	neq : 𝐛 - 𝐀𝐱,  -𝐜(𝐱)
func (e *evaluator) sqpConstraints() (eq, neq []slsqp.Evaluation) {
	p, n := e.p, e.n
	if p.Aeq != nil {
		for i := range p.Beq {
			eq = append(eq, slsqp.Evaluation{
				Function:   func(x []float64) float64 { return dot(p.Aeq, i, x) - p.Beq[i] },
				Derivative: func(_ []float64, d []float64) { fill(d, 0); addRow(d, p.Aeq, i, 1) },
			})
		}
	}
	for i := range p.NumEq {
		eq = append(eq, slsqp.Evaluation{
			Function: func(x []float64) float64 { _, ceq := e.constraints(x); return ceq[i] },
			Derivative: func(x []float64, d []float64) {
				_, je := e.jacobians(x)
				copy(d, je[i*n:(i+1)*n])
			},
		})
	}
	if p.A != nil {
		for i := range p.B {
			neq = append(neq, slsqp.Evaluation{
				Function:   func(x []float64) float64 { return p.B[i] - dot(p.A, i, x) },
				Derivative: func(_ []float64, d []float64) { fill(d, 0); addRow(d, p.A, i, -1) },
			})
		}
	}
	for i := range p.NumIneq {
		neq = append(neq, slsqp.Evaluation{
			Function: func(x []float64) float64 { c, _ := e.constraints(x); return -c[i] },
			Derivative: func(x []float64, d []float64) {
				jc, _ := e.jacobians(x)
				for j := range d {
					d[j] = -jc[i*n+j]
				}
			},
		})
	}
	return
}

func minimizeSQP(ctx context.Context, p *Problem, x0 []float64, opt Options) (*Result, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("solver", "slsqp")
	n := len(x0)
	e := newEvaluator(p, n, opt.FiniteDifference)
	eq, neq := e.sqpConstraints()
	log.V(logging.DEBUG).Info("problem", "n", n, "eq", len(eq), "neq", len(neq), "bounded", e.bounds != nil)

	var bounds []slsqp.Bound
	if e.bounds != nil {
		bounds = make([]slsqp.Bound, n)
		for j, b := range e.bounds {
			bounds[j] = slsqp.Bound{Lower: b[0], Upper: b[1]}
		}
	}

	prob := slsqp.Problem{
		N: n,
		Stop: slsqp.Termination{
			Accuracy:      opt.Tolerance,
			MaxIterations: opt.MaxIterations,
		},
		Object:  slsqp.Evaluation{Function: e.objective, Derivative: e.gradient},
		EqCons:  eq,
		NeqCons: neq,
		Bounds:  bounds,
		Monitor: func(it slsqp.Iteration) bool {
			log.V(logging.TRACE).Info("iteration", "iter", it.Iter, "f", it.F)
			return ctx.Err() == nil
		},
	}

	x := slices.Clone(x0)
	if bounds != nil {
		// slsqp expects a start inside the box.
		for j, b := range bounds {
			x[j] = math.Min(math.Max(x[j], b.Lower), b.Upper)
		}
	}

	sol, err := slsqp.Minimize(&prob, x)
	if err != nil {
		return nil, err
	}

	res := &Result{
		X:            sol.X,
		F:            sol.F,
		Message:      sol.Status.String(),
		Iterations:   sol.NumIter,
		FuncEvals:    e.nfev,
		MaxViolation: p.MaxViolation(sol.X),
	}

	log.V(logging.DEBUG).Info("finished", "status", sol.Status.String(),
		"iterations", sol.NumIter, "f", sol.F, "violation", res.MaxViolation)

	switch sol.Status {
	case slsqp.OK:
		res.Status = Converged
		if res.MaxViolation > opt.ConstraintTolerance {
			res.Status = Infeasible
		}
	case slsqp.SQPExceedMaxIter:
		res.Status = IterationLimit
	case slsqp.UserStop:
		res.Status = Stopped
		return res, ctx.Err()
	case slsqp.ConsIncompatible, slsqp.LSISingularE, slsqp.LSEISingularC, slsqp.HFTIRankDefect:
		res.Status = Infeasible
	default:
		// an uphill search direction usually comes from inconsistent constraints
		res.Status = Failed
		if res.MaxViolation > opt.ConstraintTolerance {
			res.Status = Infeasible
		}
	}

	res.Lambda = sqpLambda(p, e, sol)
	return res, nil
}

// sqpLambda maps the slsqp multipliers of 𝒇 - ∑𝛌ⱼ𝒄ⱼ back onto the constraint classes.
// Inequalities were negated so their multipliers keep the sign,
// while equalities flip to match ∇𝒇 + 𝐀ₑᵀ𝛌ₑₗ + ∇𝐜ₑᵀ𝛌ₑₙ.
func sqpLambda(p *Problem, e *evaluator, sol *slsqp.Result) Lambda {
	r := sol.Multipliers
	n := len(sol.X)
	var l Lambda
	k := 0
	take := func(m int, sign float64) []float64 {
		v := make([]float64, m)
		for i := range v {
			v[i] = sign * r[k]
			k++
		}
		return v
	}
	l.Eqlin = take(len(p.Beq), -1)
	l.Eqnonlin = take(p.NumEq, -1)
	l.Ineqlin = take(len(p.B), 1)
	l.Ineqnonlin = take(p.NumIneq, 1)

	// The bound multipliers absorb what the general constraints leave of ∇𝒇.
	g := make([]float64, n)
	e.gradient(sol.X, g)
	for i, li := range l.Eqlin {
		addRow(g, p.Aeq, i, li)
	}
	for i, li := range l.Ineqlin {
		addRow(g, p.A, i, li)
	}
	if p.Nonlinear != nil {
		jc, je := e.jacobians(sol.X)
		for i, li := range l.Ineqnonlin {
			for j := range g {
				g[j] += li * jc[i*n+j]
			}
		}
		for i, li := range l.Eqnonlin {
			for j := range g {
				g[j] += li * je[i*n+j]
			}
		}
	}
	l.Lower, l.Upper = p.boundMultipliers(sol.X, g, 1e-8)
	return l
}

func fill(s []float64, v float64) {
	for i := range s {
		s[i] = v
	}
}
