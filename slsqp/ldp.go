// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// LDP solves the least distance problem 𝚖𝚒𝚗 ‖𝐱‖₂ subject to 𝐆𝐱 ≥ 𝐡 where 𝐆
// is an m × n column-major matrix with leading dimension mdg and any rank.
//
// The problem is dual to the nonnegative least squares problem
//
//	𝚖𝚒𝚗 ‖𝐄𝐮 - 𝐟‖₂ s.t. 𝐮 ≥ 0,  𝐄 = [𝐆 : 𝐡]ᵀ,  𝐟 = [0 ··· 0 1]ᵀ
//
// whose residual 𝐫 = 𝐄𝐮 - 𝐟 gives 𝐱 = 𝐆ᵀ𝐮 / (1 - 𝐡ᵀ𝐮). A zero residual, or
// 1 - 𝐡ᵀ𝐮 below machine precision, means 𝐆𝐱 ≥ 𝐡 has no solution.
//
// On success w[:m] holds the multipliers 𝛌 = 𝐮 / (1 - 𝐡ᵀ𝐮) and the norm of 𝐱
// is returned. w needs (n+1)(m+2)+2m elements and jw needs m.
//
// Lawson & Hanson, Solving Least Squares Problems, 1995, algorithm 23.27.
func LDP(m, n int, g []float64, mdg int, h, x, w []float64, jw []int, maxIter int) (xnorm float64, mode Status) {
	if n <= 0 {
		return math.NaN(), BadArgument
	}
	if m <= 0 {
		return 0, OK
	}
	if m > mdg || mdg*n > len(g) || m > len(h) || n > len(x) || (n+1)*(m+2)+2*m > len(w) || m > len(jw) {
		panic("bound check error")
	}

	rows := n + 1
	ws := w
	e, ws := ws[:rows*m], ws[rows*m:]
	f, ws := ws[:rows], ws[rows:]
	z, ws := ws[:rows], ws[rows:]
	u, ws := ws[:m], ws[m:]
	dual := ws[:m]

	// Column j of 𝐄 is row j of 𝐆 followed by hⱼ.
	for j := 0; j < m; j++ {
		col := e[j*rows : (j+1)*rows]
		dcopy(n, g[j:], mdg, col, 1)
		col[n] = h[j]
	}
	dzero(f[:n])
	f[n] = one

	var rnorm float64
	rnorm, mode = NNLS(rows, m, e, rows, f, u, dual, z, jw, maxIter)
	if mode != HasSolution {
		return math.NaN(), mode
	}
	denom := one - ddot(m, h, 1, u, 1)
	if rnorm <= zero || math.IsNaN(denom) || denom < eps {
		return math.NaN(), ConsIncompatible
	}

	// 𝐆 column-major is 𝐆ᵀ row-major, so 𝐱 = 𝐆ᵀ𝐮 / denom is a plain product.
	gt := blas64.General{Rows: n, Cols: m, Stride: mdg, Data: g}
	blas64.Gemv(blas.NoTrans, one/denom,
		gt, blas64.Vector{N: m, Inc: 1, Data: u},
		zero, blas64.Vector{N: n, Inc: 1, Data: x})

	// 𝐄 is no longer needed, so its storage takes the multipliers.
	for j, uj := range u {
		w[j] = uj / denom
	}
	return dnrm2(n, x, 1), HasSolution
}
