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

const eps = 0x1p-52

// BiCGSTAB solves 𝐀𝐱 = 𝐛 with the right preconditioned stabilized
// bi-conjugate gradient method of van der Vorst.
//
// Convergence is checked after both half steps of an iteration, so the
// result may come from the middle of an iteration (Result.HalfStep).
// When the method does not converge the iterate with the smallest residual
// is returned. Cancelling ctx aborts the iteration with ctx.Err().
func BiCGSTAB(ctx context.Context, a Operator, b []float64, s *Settings) (*Result, error) {
	st, x, err := newState(a, b, s)
	if err != nil {
		return nil, err
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("solver", "bicgstab")

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

	rt := slices.Clone(r) // shadow residual
	p := make([]float64, n)
	v := make([]float64, n)
	ph := make([]float64, n)
	sh := make([]float64, n)
	t := make([]float64, n)
	xhalf := make([]float64, n)
	rAct := make([]float64, n)

	st.xmin, st.normrmin = slices.Clone(x), normr
	normrAct := normr

	var rho, rho1, alpha, omega = 1.0, 1.0, 0.0, 1.0
	stag := 0
	status := MaxIterReached
	iter, half := st.maxIter, false

	for ii := 1; ii <= st.maxIter; ii++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rho1, rho = rho, floats.Dot(rt, r)
		if breakdown(rho) {
			status, iter = Breakdown, ii-1
			break
		}
		if ii == 1 {
			copy(p, r)
		} else {
			beta := (rho / rho1) * (alpha / omega)
			if breakdown(beta) {
				status, iter = Breakdown, ii-1
				break
			}
			// p = r + β(p - ωv)
			floats.AddScaled(p, -omega, v)
			floats.Scale(beta, p)
			floats.Add(p, r)
		}

		if err := st.m.Solve(ph, p); err != nil || !finite(ph) {
			status, iter = PrecondIllConditioned, ii-1
			break
		}
		a.MulVecTo(v, ph)
		rtv := floats.Dot(rt, v)
		if breakdown(rtv) {
			status, iter = Breakdown, ii-1
			break
		}
		alpha = rho / rtv
		if math.IsInf(alpha, 0) {
			status, iter = Breakdown, ii-1
			break
		}

		if math.Abs(alpha)*floats.Norm(ph, 2) < eps*floats.Norm(x, 2) {
			stag++
		} else {
			stag = 0
		}

		// first half step
		floats.AddScaledTo(xhalf, x, alpha, ph)
		floats.AddScaled(r, -alpha, v) // r now holds s
		normr = floats.Norm(r, 2)
		normrAct = normr
		st.push(normr)

		if normr <= st.tolb || stag >= maxStagSteps {
			normrAct = st.residual(rAct, xhalf)
			if normrAct <= st.tolb {
				copy(x, xhalf)
				status, iter, half = Converged, ii-1, true
				break
			}
		}
		st.keep(xhalf, normrAct, ii-1, true)

		if err := st.m.Solve(sh, r); err != nil || !finite(sh) {
			copy(x, xhalf)
			status, iter, half = PrecondIllConditioned, ii-1, true
			break
		}
		a.MulVecTo(t, sh)
		tt := floats.Dot(t, t)
		if breakdown(tt) {
			copy(x, xhalf)
			status, iter, half = Breakdown, ii-1, true
			break
		}
		omega = floats.Dot(t, r) / tt
		if breakdown(omega) {
			copy(x, xhalf)
			status, iter, half = Breakdown, ii-1, true
			break
		}

		if math.Abs(omega)*floats.Norm(sh, 2) < eps*floats.Norm(xhalf, 2) {
			stag++
		} else {
			stag = 0
		}

		// second half step
		floats.AddScaledTo(x, xhalf, omega, sh)
		floats.AddScaled(r, -omega, t)
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

	res := st.finish(x, status, iter, half, normrAct)
	log.V(logging.DEBUG).Info("finished", "status", res.Status.String(),
		"iter", res.Iter(), "relres", res.RelRes)
	return res, nil
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
