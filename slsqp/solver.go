// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// sqpSolver minimizes 𝒇(𝐱) subject to 𝒄ⱼ(𝐱) = 0 (j < mₑ), 𝒄ⱼ(𝐱) ≥ 0
// (mₑ ≤ j < m) and 𝒍 ≤ 𝐱 ≤ 𝒖 by sequential quadratic programming.
//
// Each iteration linearizes the constraints at 𝐱ᵏ and finds the direction 𝐝
// minimizing ½𝐝ᵀ𝐁𝐝 + 𝜵𝒇ᵀ𝐝, where 𝐁 = 𝐋𝐃𝐋ᵀ is a BFGS approximation of the
// Hessian of the Lagrangian kept in factored form. With that factorization
// the quadratic program becomes the least-squares problem
//
//	𝚖𝚒𝚗‖𝐃¹ᐟ²𝐋ᵀ𝐝 + 𝐃⁻¹ᐟ²𝐋⁻¹𝜵𝒇‖₂ s.t. 𝜵𝒄ⱼ𝐝 + 𝒄ⱼ = 0, 𝜵𝒄ⱼ𝐝 + 𝒄ⱼ ≥ 0
//
// solved by LSQ. When the linearized constraints are inconsistent, a slack
// 0 ≤ 𝛅 ≤ 1 scaling the violated constraints is added with penalty 𝛒, and 𝛒
// grows tenfold until the relaxed problem is solvable.
//
// The step 𝛂 along 𝐝 decreases the L1 merit function 𝒇(𝐱) + ∑𝛍ⱼ‖𝒄ⱼ(𝐱)‖₁, with
// 𝛍ⱼ ← 𝚖𝚊𝚡(|𝛌ⱼ|, ½(𝛍ⱼ + |𝛌ⱼ|)), either by Armijo backtracking with a
// quadratic fit or by an exact Brent search. 𝐁 is updated with Powell's
// damped BFGS formula so that it stays positive definite.
//
// The run converges when the constraint violation is below the accuracy and
// the objective change, the step length or one of the optional tolerances in
// Stop is small.
//
// Dieter Kraft, A software package for sequential quadratic programming,
// DFVLR-FB 88-28, 1988.
type sqpSolver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *sqpLoc
}

// violation returns ∑ wⱼ‖𝒄ⱼ‖₁ where the first meq constraints are equalities.
// A nil weight counts every constraint once.
func violation(c []float64, meq int, weight []float64) (sum float64) {
	for j, cj := range c {
		v := math.Max(-cj, zero)
		if j < meq {
			v = math.Abs(cj)
		}
		if weight != nil {
			v *= weight[j]
		}
		sum += v
	}
	return
}

// lagrangianGrad sets dst = 𝜵𝒇 - 𝜵𝒄ᵀ𝛌 for the current location.
func (ss *sqpSolver) lagrangianGrad(dst, lambda []float64) {
	spec, loc := &ss.optimizer.sqpSpec, ss.location
	m, n := spec.m, spec.n
	copy(dst[:n], loc.g[:n])
	jac := colMajor(loc.a, max(m, 1), m, n)
	blas64.Gemv(blas.NoTrans, -one, jac, vec(lambda[:m]), one, vec(dst[:n]))
}

func (ss *sqpSolver) evalLoc(mode Status) Status {
	o, loc := ss.optimizer, ss.location
	func() {
		defer func() {
			if r := recover(); r != nil {
				mode = BadArgument
			}
		}()
		switch mode {
		case evalFunc:
			ss.workspace.nfev++
			loc.f = o.Object.Function(loc.x)
			for j, cons := range o.EqCons {
				loc.c[j] = cons.Function(loc.x)
			}
			for j, cons := range o.NeqCons {
				loc.c[j+o.meq] = cons.Function(loc.x)
			}
		case evalGrad:
			tmp, mda := loc.g[:o.n], max(o.m, 1)
			for i, cons := range o.EqCons {
				cons.Derivative(loc.x, tmp)
				dcopy(o.n, tmp, 1, loc.a[i:], mda)
			}
			for i, cons := range o.NeqCons {
				cons.Derivative(loc.x, tmp)
				dcopy(o.n, tmp, 1, loc.a[i+o.meq:], mda)
			}
			o.Object.Derivative(loc.x, loc.g[:o.n])
		default:
			mode = BadArgument
			return
		}
		mode = OK
	}()
	return mode
}

// notify hands the accepted iterate to the monitor, if any.
func (ss *sqpSolver) notify() bool {
	mon := ss.optimizer.Monitor
	if mon == nil {
		return true
	}
	loc := ss.location
	return mon(Iteration{Iter: ss.workspace.iter, F: loc.f, X: loc.x})
}

func (ss *sqpSolver) initCtx() (mode Status) {
	if mode = ss.evalLoc(evalFunc); mode != OK {
		return
	}
	if mode = ss.evalLoc(evalGrad); mode != OK {
		return
	}
	s, c := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx
	c.acc = s.Stop.Accuracy
	c.tol = ten * c.acc
	c.iter = 0
	c.nfev = 1
	c.reset = 0
	dzero(c.s)
	dzero(c.mu)
	return ss.resetBFGS()
}

// resetBFGS sets 𝐁 = 𝐈. After five resets the run ends with the relaxed
// convergence test instead.
func (ss *sqpSolver) resetBFGS() (mode Status) {
	spec, ctx := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx
	ctx.reset++
	if ctx.reset > 5 {
		_, mode = ss.checkConv(ctx.tol, SearchNotDescent)
		return
	}
	l, n := ctx.l, spec.n
	dzero(l[:(n+1)*n/2])
	for i, d := 0, 0; i < n; d, i = d+n-i, i+1 {
		l[d] = one
	}
	return
}

func (ss *sqpSolver) checkConv(tol float64, notConv Status) (vio float64, mode Status) {
	vio = violation(ss.location.c, ss.optimizer.sqpSpec.meq, nil)
	if !ss.checkStop(vio, tol) {
		mode = notConv
	}
	return
}

func (ss *sqpSolver) checkStop(vio, tol float64) bool {
	spec, ctx, loc := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location
	if vio >= tol || ctx.bad || math.IsNaN(loc.f) {
		return false
	}
	stop, df := spec.Stop, math.Abs(loc.f-ctx.f0)
	switch {
	case df < tol:
		return true
	case dnrm2(spec.n, ctx.s, 1) < tol:
		return true
	case stop.FEvalTolerance >= zero && math.Abs(loc.f) < stop.FEvalTolerance:
		return true
	case stop.FDiffTolerance >= zero && df < stop.FDiffTolerance:
		return true
	case stop.XDiffTolerance >= zero:
		n := spec.n
		return floats.Distance(loc.x[:n], ctx.x0[:n], 2) < stop.XDiffTolerance
	}
	return false
}

// updateBFGS applies the damped BFGS update
//
//	𝐁 ← 𝐁 + 𝐪𝐪ᵀ/𝐬ᵀ𝐪 - 𝐁𝐬𝐬ᵀ𝐁/𝐬ᵀ𝐁𝐬,  𝐪 = 𝛉𝛈 + (1-𝛉)𝐁𝐬
//
// as two rank-one modifications of 𝐋𝐃𝐋ᵀ, where 𝛈 is the change of the
// Lagrangian gradient and 𝛉 < 1 only when 𝐬ᵀ𝛈 < ⅕𝐬ᵀ𝐁𝐬.
func (ss *sqpSolver) updateBFGS() (mode Status) {
	if mode = ss.evalLoc(evalGrad); mode != OK {
		return
	}

	spec, ctx := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx
	n := spec.n
	u, r, v, l, s := ctx.u, ctx.r, ctx.v, ctx.l, ctx.s
	if n < 0 || n > len(v) || n > len(u) {
		panic("bound check error")
	}

	// v holds the Lagrangian gradient at 𝐱ᵏ.
	ss.lagrangianGrad(u, r)
	daxpy(n, -one, v, 1, u, 1)

	// The packed column-major 𝐋 reads as the packed row-major upper 𝐋ᵀ
	// with 𝐃 on the diagonal.
	copy(v[:n], s[:n])
	bl.Dtpmv(blas.Upper, blas.NoTrans, blas.Unit, n, l, v, 1)
	for i, d := 0, 0; i < n; d, i = d+n-i, i+1 {
		v[i] *= l[d]
	}
	bl.Dtpmv(blas.Upper, blas.Trans, blas.Unit, n, l, v, 1)

	sy := ddot(n, s, 1, u, 1)  // 𝐬ᵀ𝛈
	sBs := ddot(n, s, 1, v, 1) // 𝐬ᵀ𝐁𝐬
	if lo := 0.2 * sBs; sy < lo {
		theta := (sBs - lo) / (sBs - sy)
		sy = lo
		dscal(n, theta, u, 1)
		daxpy(n, one-theta, v, 1, u, 1)
	}

	if sy == zero || sBs == zero {
		mode = ss.resetBFGS()
		return
	}
	compositeT(uint(n), l, u, +one/sy, nil)
	compositeT(uint(n), l, v, -one/sBs, u)
	return
}

func (ss *sqpSolver) mainLoop() (mode Status) {
	loc := ss.location
	ctx := &ss.workspace.sqpCtx
	spec := &ss.optimizer.sqpSpec

	m, meq, n, la := spec.m, spec.meq, spec.n, max(spec.m, 1)
	n1, n2 := n+1, n*(n+1)/2
	u, r, v, l, s := ctx.u, ctx.r, ctx.v, ctx.l, ctx.s

	mode = ss.initCtx()
	for mode == OK {
		if ctx.iter++; ctx.iter > spec.Stop.MaxIterations {
			ctx.iter--
			return SQPExceedMaxIter
		}

		// Bounds on 𝐝 are 𝒍 - 𝐱ᵏ ≤ 𝐝 ≤ 𝒖 - 𝐱ᵏ.
		for i, b := range spec.Bounds {
			u[i] = b.Lower - loc.x[i]
			v[i] = b.Upper - loc.x[i]
		}
		_, mode = LSQ(m, meq, n, n2+1,
			l, loc.g, loc.a, loc.c, u, v,
			s, r, ctx.w, ctx.jw, spec.Stop.NNLSIterations, spec.BndInf)

		if mode == LSEISingularC && n == meq {
			mode = ConsIncompatible
		}

		// A relaxed solve keeps the iteration from reporting convergence.
		slack := one
		if ctx.bad = mode == ConsIncompatible; ctx.bad {
			a := loc.a[n*la : n1*la]
			for j, c := range loc.c[:m] {
				if j < meq {
					a[j] = -c
				} else {
					a[j] = math.Max(-c, zero)
				}
			}
			loc.g[n] = zero
			l[n2] = hun
			dzero(s[:n])
			s[n] = one
			u[n], v[n] = zero, one

			for relax := 0; relax <= 5; relax++ {
				_, mode = LSQ(m, meq, n1, n2+1, l, loc.g, loc.a, loc.c, u, v,
					s, r, ctx.w, ctx.jw, spec.Stop.NNLSIterations, spec.BndInf)
				slack = one - s[n]
				if mode != ConsIncompatible {
					break
				}
				l[n2] *= ten
			}
		}
		if mode != HasSolution {
			return
		}

		ss.lagrangianGrad(v, r)
		ctx.f0 = loc.f
		copy(ctx.x0, loc.x)

		gd := ddot(n, loc.g, 1, s, 1)
		opt := math.Abs(gd)
		for j, c := range loc.c[:m] {
			lj := math.Abs(r[j])
			opt += lj * math.Abs(c)
			ctx.mu[j] = math.Max(lj, (ctx.mu[j]+lj)/2)
		}
		vio := violation(loc.c[:m], meq, nil)
		if opt < ctx.acc && vio < ctx.acc && !ctx.bad && !math.IsNaN(loc.f) {
			return OK
		}

		penalty := violation(loc.c[:m], meq, ctx.mu)
		ctx.t0 = loc.f + penalty

		// Directional derivative of the merit function along 𝐝.
		slope := gd - penalty*slack
		if slope >= zero {
			mode = ss.resetBFGS()
			if ctx.reset > 5 {
				return
			}
			continue
		}

		if spec.Line.Exact {
			ctx.line = int(findNoop)
			ss.exactSearch(math.NaN())
		} else {
			ctx.line = 0
			ctx.alpha = spec.Line.Alpha.Upper
			ss.inexactSearch()
			slope *= ctx.alpha
		}

		for mode = evalFunc; mode == evalFunc; {
			mode = ss.lineSearch(&slope)
		}
		if mode == OK {
			return
		}
		if mode == evalGrad {
			mode = ss.updateBFGS()
		}
		if mode == OK && !ss.notify() {
			return UserStop
		}
	}
	return
}

// inexactSearch moves to 𝐱ᵏ + 𝛂𝐝 clipped to the bounds.
func (ss *sqpSolver) inexactSearch() {
	s, c, x := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location.x
	c.line++
	dscal(s.n, c.alpha, c.s, 1)
	dcopy(s.n, c.x0, 1, x, 1)
	daxpy(s.n, one, c.s, 1, x, 1)
	b, inf := s.Bounds, s.BndInf
	for i, v := range x {
		lo, hi := b[i].Lower, b[i].Upper
		if !math.IsNaN(lo) && lo > -inf && v < lo {
			x[i] = lo
		} else if !math.IsNaN(hi) && hi < inf && v > hi {
			x[i] = hi
		}
	}
}

func (ss *sqpSolver) exactSearch(t float64) (mode findMode) {
	s, c, x := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location.x
	mode = findMode(c.line)
	if mode != findConv {
		c.alpha, mode = findMin(mode, &c.fw, t, c.tol, *s.Line.Alpha)
		c.line = int(mode)
		dcopy(s.n, c.x0, 1, x, 1)
		daxpy(s.n, c.alpha, c.s, 1, x, 1)
	} else {
		dscal(s.n, c.alpha, c.s, 1)
	}
	return
}

// lineSearch evaluates the merit function at the trial point and either
// accepts it, returning evalGrad, or asks for another trial with evalFunc.
func (ss *sqpSolver) lineSearch(slope *float64) (mode Status) {
	if mode = ss.evalLoc(evalFunc); mode != OK {
		return
	}

	spec, ctx, loc := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location
	merit := loc.f + violation(loc.c[:spec.m], spec.meq, ctx.mu)

	li := spec.Line
	if li.Exact {
		if ss.exactSearch(merit) == findConv {
			*slope, mode = ss.checkConv(ctx.acc, evalGrad)
		} else {
			mode = evalFunc
		}
		return
	}

	if drop := merit - ctx.t0; drop <= *slope/10 || ctx.line > 10 {
		*slope, mode = ss.checkConv(ctx.acc, evalGrad)
	} else {
		// Minimizer of the quadratic through the merit values, kept in Alpha.
		lo, hi := li.Alpha.Lower, li.Alpha.Upper
		ctx.alpha = math.Min(math.Max(*slope/(2*(*slope-drop)), lo), hi)
		ss.inexactSearch()
		*slope *= ctx.alpha
		mode = evalFunc
	}
	return
}

// LSQ solves the least-squares form of the quadratic subproblem
//
//	𝚖𝚒𝚗‖𝐃¹ᐟ²𝐋ᵀ𝐱 + 𝐃⁻¹ᐟ²𝐋⁻¹𝐠‖₂ s.t. 𝐀ⱼ𝐱 + 𝐛ⱼ = 0 (j < mₑ), 𝐀ⱼ𝐱 + 𝐛ⱼ ≥ 0 (mₑ ≤ j < m), 𝒍 ≤ 𝐱 ≤ 𝒖
//
// by casting it as an LSEI problem with 𝐄 = 𝐃¹ᐟ²𝐋ᵀ, 𝐟 = -𝐃⁻¹ᐟ²𝐋⁻¹𝐠 and the
// finite bounds appended to the inequalities as rows of ±𝐈.
//
// l holds 𝐋 packed by columns with 𝐃 on the diagonal. nl tells the plain
// problem, nl = n(n+1)/2+1, from the one augmented with the slack, whose
// penalty 𝛒 is l[nl-1]. The m×n matrix a is column-major with leading
// dimension max(m, 1). On success y holds the multipliers of the general
// constraints followed by NaN for the bound constraints.
func LSQ(m, meq, n, nl int,
	l, g, a, b, xl, xu []float64,
	x, y []float64,
	w []float64, jw []int,
	maxIter int, infBnd float64) (float64, Status) {

	mineq := m - meq
	m1 := mineq + n + n
	la := max(m, 1)

	// n3 columns of 𝐋 are stored in l; the slack adds one more variable.
	aug, n3 := 0, n
	if (n+1)*n/2+1 != nl {
		aug, n3 = 1, n-1
	}

	e0, f0 := 0, n*n
	c0, d0 := f0+n, (f0+n)+meq*n
	g0, h0 := d0+meq, (d0+meq)+m1*n
	w0 := h0 + m1
	e, f := w[e0:f0], w[f0:c0]

	// Row j of 𝐄 is column j of 𝐋 scaled by √𝐃ⱼ.
	dzero(e)
	for j, col := 0, 0; j < n3; j++ {
		k := n - j - aug
		diag := math.Sqrt(l[col])
		row := e[j*(n+1):]
		dcopy(k, l[col:], 1, row, n)
		dscal(k, diag, row, n)
		row[0] = diag
		col += k
	}
	if aug == 1 {
		e[n3*(n+1)] = l[nl-1]
	}

	// 𝐄ᵀ𝐟 = -𝐠 on the leading block; 𝐄 column-major is 𝐄ᵀ row-major.
	copy(f[:n3], g[:n3])
	dzero(f[n3:])
	bl.Dtrsv(blas.Lower, blas.NoTrans, blas.NonUnit, n3, e, n, f, 1)
	dscal(n, -one, f, 1)

	for i := 0; i < meq; i++ {
		dcopy(n, a[i:], la, w[c0+i:], meq)
		w[d0+i] = -b[i]
	}
	for i := 0; i < mineq; i++ {
		dcopy(n, a[meq+i:], la, w[g0+i:], m1)
		w[h0+i] = -b[meq+i]
	}

	// Finite bounds become rows 𝐞ᵢᵀ𝐱 ≥ 𝒍ᵢ and -𝐞ᵢᵀ𝐱 ≥ -𝒖ᵢ.
	bnd := mineq
	addBound := func(i int, sign, rhs float64) {
		row := w[g0+bnd:]
		for k := 0; k < n; k++ {
			row[m1*k] = zero
		}
		row[m1*i] = sign
		w[h0+bnd] = rhs
		bnd++
	}
	xl, xu = xl[:n], xu[:n]
	for i, lo := range xl {
		if !math.IsNaN(lo) && lo > -infBnd {
			addBound(i, one, lo)
		}
	}
	for i, hi := range xu {
		if !math.IsNaN(hi) && hi < infBnd {
			addBound(i, -one, -hi)
		}
	}

	unused := (n + n) - (bnd - mineq)
	norm, mode := LSEI(w[c0:d0], w[d0:g0], w[e0:f0], w[f0:c0], w[g0:h0], w[h0:w0],
		max(1, meq), meq, n, n, m1, m1-unused, n, x, w[w0:], jw, maxIter)
	if mode != HasSolution {
		return norm, mode
	}

	copy(y[:m], w[w0:w0+m])
	for k := m; k < m+2*n3; k++ {
		y[k] = math.NaN()
	}
	for i, lo := range xl {
		if !math.IsNaN(lo) && lo > -infBnd && x[i] < lo {
			x[i] = lo
		}
	}
	for i, hi := range xu {
		if !math.IsNaN(hi) && hi < infBnd && x[i] > hi {
			x[i] = hi
		}
	}
	return norm, mode
}
