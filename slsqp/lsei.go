// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// colMajor views the leading rows × cols block of a column-major array with
// leading dimension ld as its row-major transpose, which is what blas64
// expects. Products with the original matrix use blas.Trans and vice versa.
func colMajor(data []float64, ld, rows, cols int) blas64.General {
	return blas64.General{Rows: cols, Cols: rows, Stride: max(ld, 1), Data: data}
}

func vec(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Inc: 1, Data: x}
}

// LSEI solves 𝚖𝚒𝚗‖𝐄𝐱 - 𝐟‖₂ subject to 𝐂𝐱 = 𝐝 and 𝐆𝐱 ≥ 𝐡, where 𝐂 is mc × n
// with full row rank mc ≤ n. The arrays are column-major with leading
// dimensions lc, le and lg.
//
// Householder reflections 𝐊 from the right reduce 𝐂 to lower triangular
// form, 𝐂𝐊 = [𝐂߬₁ ೦]. With 𝐱 = 𝐊[𝐲₁ 𝐲₂]ᵀ the equality constraints fix
// 𝐲₁ = 𝐂߬₁⁻¹𝐝 and the rest is the inequality constrained least-squares
// problem in 𝐲₂
//
//	𝚖𝚒𝚗‖𝐄߬₂𝐲₂ - (𝐟 - 𝐄߬₁𝐲₁)‖₂ s.t. 𝐆߬₂𝐲₂ ≥ 𝐡 - 𝐆߬₁𝐲₁
//
// which is handed to LSI, or to HFTI when there are no inequalities.
//
// On success w[:mc] holds the equality multipliers 𝛍 = 𝐂⁻ᵀ(𝐄ᵀ(𝐄𝐱 - 𝐟) - 𝐆ᵀ𝛌)
// and w[mc:mc+mg] the inequality multipliers 𝛌 ≥ 0. w needs
// 2mc + me + (me+mg)(n-mc) + (n-mc+1)(mg+2) + 2mg elements and jw needs
// max(mg, min(me, n-mc)). 𝐂, 𝐝, 𝐄, 𝐟, 𝐆 and 𝐡 are overwritten.
//
// Lawson & Hanson, Solving Least Squares Problems, 1995, algorithm 20.24
// and chapter 23 section 6.
func LSEI(c, d, e, f, g, h []float64, lc, mc, le, me, lg, mg, n int, x, w []float64, jw []int, maxIterLs int) (norm float64, mode Status) {
	if n < 1 || mc > n {
		return math.NaN(), BadArgument
	}
	if n > len(x) || mc > len(x) ||
		mc < 0 || mc > len(c) || mc > len(d) ||
		me < 0 || me > len(e) || me > len(f) ||
		mg < 0 || mg > len(g) || mg > len(h) {
		panic("bound check error")
	}

	l := n - mc
	// w = [ 𝛍 (mc) | LSI work | 𝐊 pivots (mc) | 𝐄߬₂ (me·l) | 𝐟 - 𝐄߬₁𝐲₁ (me) | 𝐆߬₂ (mg·l) ]
	rest := w[mc:]
	ws, rest := rest[:(l+1)*(mg+2)+2*mg], rest[(l+1)*(mg+2)+2*mg:]
	wp, rest := rest[:mc], rest[mc:]
	we, rest := rest[:me*l], rest[me*l:]
	wf, rest := rest[:me], rest[me:]
	wg := rest[:mg*l]

	for i := 0; i < mc; i++ {
		j := min(i+1, lc-1)
		wp[i] = h1(i, i+1, n, c[i:], lc)
		h2(i, i+1, n, c[i:], lc, wp[i], c[j:], lc, 1, mc-i-1)
		h2(i, i+1, n, c[i:], lc, wp[i], e, le, 1, me)
		h2(i, i+1, n, c[i:], lc, wp[i], g, lg, 1, mg)
	}

	for i := 0; i < mc; i++ {
		if math.Abs(c[i+lc*i]) < eps {
			return math.NaN(), LSEISingularC
		}
	}
	// 𝐲₁ = 𝐂߬₁⁻¹𝐝
	if mc > 0 {
		copy(x[:mc], d[:mc])
		bl.Dtrsv(blas.Upper, blas.Trans, blas.NonUnit, mc, c, lc, x, 1)
	}

	lambda := ws[:mg]
	dzero(lambda)

	if mc < n {
		y1 := vec(x[:mc])
		copy(wf, f[:me])
		blas64.Gemv(blas.Trans, -one, colMajor(e, le, me, mc), y1, one, vec(wf))

		for i := 0; i < me; i++ {
			dcopy(l, e[i+le*mc:], le, we[i:], me)
		}
		for i := 0; i < mg; i++ {
			dcopy(l, g[i+lg*mc:], lg, wg[i:], mg)
		}

		if mg > 0 {
			blas64.Gemv(blas.Trans, -one, colMajor(g, lg, mg, mc), y1, one, vec(h[:mg]))
			norm, mode = LSI(we, wf, wg, h, me, me, mg, mg, l, x[mc:n], ws, jw, maxIterLs)
			if mc == 0 {
				return
			}
			if mode != HasSolution {
				return math.NaN(), mode
			}
			norm = math.Hypot(norm, dnrm2(mc, x, 1))
		} else {
			var nrm [1]float64
			rank := HFTI(we, me, me, l, wf, max(le, n), 1, sqrtEps, nrm[:], w, w[l:], jw)
			norm = nrm[0]
			dcopy(l, wf, 1, x[mc:n], 1)
			if rank != l {
				return norm, HFTIRankDefect
			}
		}
	}

	// 𝐟 ← 𝐄𝐱 - 𝐟 and 𝐝 ← 𝐄₁ᵀ(𝐄𝐱 - 𝐟) - 𝐆₁ᵀ𝛌 in the rotated basis.
	blas64.Gemv(blas.Trans, one, colMajor(e, le, me, n), vec(x[:n]), -one, vec(f[:me]))
	dzero(d[:mc])
	blas64.Gemv(blas.NoTrans, one, colMajor(e, le, me, mc), vec(f[:me]), one, vec(d[:mc]))
	blas64.Gemv(blas.NoTrans, -one, colMajor(g, lg, mg, mc), vec(lambda), one, vec(d[:mc]))

	for i := mc - 1; i >= 0; i-- {
		h2(i, i+1, n, c[i:], lc, wp[i], x, 1, 1, 1)
	}

	// 𝛍 = 𝐂߬₁⁻ᵀ𝐝
	if mc > 0 {
		copy(w[:mc], d[:mc])
		bl.Dtrsv(blas.Upper, blas.NoTrans, blas.NonUnit, mc, c, lc, w, 1)
	}
	return norm, HasSolution
}

// LSI solves 𝚖𝚒𝚗‖𝐄𝐱 - 𝐟‖₂ subject to 𝐆𝐱 ≥ 𝐡 for an me × n matrix 𝐄 of rank n.
//
// With the QR factorization 𝐐𝐄 = [𝐑 ೦]ᵀ and 𝐐𝐟 = [𝐟₁ 𝐟₂]ᵀ the substitution
// 𝐳 = 𝐑𝐱 - 𝐟₁ turns the problem into the least distance problem
//
//	𝚖𝚒𝚗‖𝐳‖₂ s.t. 𝐆𝐑⁻¹𝐳 ≥ 𝐡 - 𝐆𝐑⁻¹𝐟₁
//
// solved by LDP. The residual norm is (‖𝐳‖₂² + ‖𝐟₂‖₂²)¹ᐟ².
// w needs (n+1)(mg+2)+2mg elements and jw needs mg.
//
// Lawson & Hanson, Solving Least Squares Problems, 1995, chapter 23 section 5.
func LSI(e, f, g, h []float64, le, me, lg, mg, n int, x, w []float64, jw []int, maxIterLs int) (xnorm float64, mode Status) {
	if n < 1 {
		return 0, BadArgument
	}

	for i := 0; i < n; i++ {
		j := min(i+1, n-1)
		t := h1(i, i+1, me, e[i*le:], 1)
		h2(i, i+1, me, e[i*le:], 1, t, e[j*le:], 1, le, n-i-1)
		h2(i, i+1, me, e[i*le:], 1, t, f, 1, 1, 1)
	}

	if mg > 0 {
		if me < n {
			return math.NaN(), LSISingularE
		}
		for j := 0; j < n; j++ {
			if r := e[j+le*j]; math.Abs(r) < eps || math.IsNaN(r) {
				return math.NaN(), LSISingularE
			}
		}
		// 𝐆 ← 𝐆𝐑⁻¹, 𝐡 ← 𝐡 - 𝐆𝐟₁
		bl.Dtrsm(blas.Left, blas.Lower, blas.NoTrans, blas.NonUnit, n, mg, one, e, le, g, lg)
		blas64.Gemv(blas.Trans, -one, colMajor(g, lg, mg, n), vec(f[:n]), one, vec(h[:mg]))
	}

	if xnorm, mode = LDP(mg, n, g, lg, h, x, w, jw, maxIterLs); mode == HasSolution {
		// 𝐱 = 𝐑⁻¹(𝐳 + 𝐟₁)
		daxpy(n, one, f, 1, x, 1)
		bl.Dtrsv(blas.Lower, blas.Trans, blas.NonUnit, n, e, le, x, 1)
		xnorm = math.Hypot(xnorm, dnrm2(me-n, f[min(n, me):], 1))
	}
	return
}
