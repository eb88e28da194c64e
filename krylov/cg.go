// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"context"
	"math"
	"slices"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/optlab/internal/logging"
)

// CG solves the symmetric positive definite system 𝐀𝐱 = 𝐛 with the
// preconditioned conjugate gradient method. The preconditioner must be SPD too.
// A non-positive curvature 𝐩ᵀ𝐀𝐩 ≤ 0 is reported as Breakdown.
func CG(ctx context.Context, a Operator, b []float64, s *Settings) (*Result, error) {
	st, x, err := newState(a, b, s)
	if err != nil {
		return nil, err
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("solver", "cg")

	n := len(b)
	if st.n2b == 0 {
		st.push(0)
		return &Result{X: make([]float64, n), Status: Converged, History: st.history}, nil
	}

	r := make([]float64, n)
	normr := st.residual(r, x)
	st.push(normr)
	if normr <= st.tolb {
		return &Result{X: x, Status: Converged, RelRes: normr / st.n2b, History: st.history}, nil
	}

	z := make([]float64, n)
	p := make([]float64, n)
	q := make([]float64, n)
	rAct := make([]float64, n)

	st.xmin, st.normrmin = slices.Clone(x), normr
	normrAct := normr

	rho := 1.0
	stag := 0
	status, iter := MaxIterReached, st.maxIter

	for ii := 1; ii <= st.maxIter; ii++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := st.m.Solve(z, r); err != nil || !finite(z) {
			status, iter = PrecondIllConditioned, ii-1
			break
		}
		rho1 := rho
		rho = floats.Dot(r, z)
		if breakdown(rho) {
			status, iter = Breakdown, ii-1
			break
		}
		if ii == 1 {
			copy(p, z)
		} else {
			beta := rho / rho1
			if breakdown(beta) {
				status, iter = Breakdown, ii-1
				break
			}
			floats.Scale(beta, p)
			floats.Add(p, z)
		}

		a.MulVecTo(q, p)
		pq := floats.Dot(p, q)
		if pq <= 0 || math.IsInf(pq, 0) || math.IsNaN(pq) {
			status, iter = Breakdown, ii-1
			break
		}
		alpha := rho / pq

		if math.Abs(alpha)*floats.Norm(p, 2) < eps*floats.Norm(x, 2) {
			stag++
		} else {
			stag = 0
		}

		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		normr = floats.Norm(r, 2)
		normrAct = normr
		st.push(normr)

		if normr <= st.tolb || stag >= maxStagSteps {
			normrAct = st.residual(rAct, x)
			if normrAct <= st.tolb {
				status, iter = Converged, ii
				break
			}
		}
		st.keep(x, normrAct, ii, false)

		log.V(logging.TRACE).Info("iteration", "iter", ii, "relres", normrAct/st.n2b)

		if stag >= maxStagSteps {
			status, iter = Stagnated, ii
			break
		}
	}

	res := st.finish(x, status, iter, false, normrAct)
	log.V(logging.DEBUG).Info("finished", "status", res.Status.String(),
		"iter", res.Iter(), "relres", res.RelRes)
	return res, nil
}
