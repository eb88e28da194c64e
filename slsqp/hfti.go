// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"

	"gonum.org/v1/gonum/blas"
)

// HFTI solves the least-squares problem 𝐀𝐗 ≅ 𝐁 for a possibly rank-deficient
// m × n matrix 𝐀 and nb right-hand sides, returning the minimum length
// solution for the pseudo-rank k. Both arrays are column-major with leading
// dimensions mda and mdb.
//
// 𝐀 is first reduced to 𝐐𝐀𝐏 = 𝐑 by Householder reflections with column
// pivoting on the largest remaining column norm. The pseudo-rank k is the
// number of leading diagonal entries of 𝐑 with |rⱼⱼ| > tau. When k < n the
// trailing block is discarded and [𝐑₁₁ 𝐑₁₂] is triangulated from the right,
// [𝐑₁₁ 𝐑₁₂]𝐊 = [𝐖 ೦], so that 𝐱 = 𝐏𝐊[𝐖⁻¹𝐜₁ ೦]ᵀ with 𝐜 = 𝐐𝐛.
//
// On return the first n rows of 𝐁 hold 𝐗, norm[j] holds the residual norm of
// column j and 𝐀 holds the factors. h and g need max(n, min(m, n)) and
// min(m, n) elements, ip needs min(m, n).
//
// Lawson & Hanson, Solving Least Squares Problems, 1995, algorithm 14.9.
func HFTI(a []float64, mda, m, n int, b []float64, mdb, nb int, tau float64, norm []float64, h, g []float64, ip []int) int {
	diag := min(m, n)
	if diag <= 0 {
		return 0
	}
	if n > len(h) || diag > len(h) || diag > len(ip) {
		panic("bound check error")
	}

	hftiTriangulate(a, mda, m, n, b, mdb, nb, h, ip)

	k := diag
	for j := 0; j < diag; j++ {
		if math.Abs(a[j+mda*j]) <= tau {
			k = j
			break
		}
	}
	if k > len(g) || nb > len(norm) {
		panic("bound check error")
	}

	for jb := 0; jb < nb; jb++ {
		norm[jb] = dnrm2(m-k, b[mdb*jb+k:], 1)
	}

	if k == 0 {
		for jb := 0; jb < nb; jb++ {
			dzero(b[mdb*jb : mdb*jb+n])
		}
		return 0
	}

	// Right triangulation of the first k rows.
	if k < n {
		for i := k - 1; i >= 0; i-- {
			g[i] = h1(i, k, n, a[i:], mda)
			h2(i, k, n, a[i:], mda, g[i], a, mda, 1, i)
		}
	}

	for jb := 0; jb < nb; jb++ {
		x := b[mdb*jb:]
		if n > len(x) {
			panic("bound check error")
		}
		// 𝐖 is upper triangular in column-major order, which reads as a
		// lower triangular matrix in row-major order.
		bl.Dtrsv(blas.Lower, blas.Trans, blas.NonUnit, k, a, mda, x, 1)
		if k < n {
			dzero(x[k:n])
			for i := 0; i < k; i++ {
				h2(i, k, n, a[i:], mda, g[i], x, 1, mdb, 1)
			}
		}
		for j := diag - 1; j >= 0; j-- {
			if l := ip[j]; l != j {
				x[l], x[j] = x[j], x[l]
			}
		}
	}
	return k
}

// hftiTriangulate overwrites 𝐀 with 𝐐𝐀𝐏 and 𝐁 with 𝐐𝐁, recording the
// interchanges of 𝐏 in ip and the pivots of 𝐐 in h.
func hftiTriangulate(a []float64, mda, m, n int, b []float64, mdb, nb int, h []float64, ip []int) {
	const factor = 0.001

	// h[l] caches the squared norm of column l below the current row and is
	// downdated each step. It is recomputed once it has lost too much precision.
	hmax := zero
	for j := 0; j < min(m, n); j++ {
		lmax := j
		if j > 0 {
			best := math.Inf(-1)
			for l := j; l < n; l++ {
				t := a[(j-1)+mda*l]
				if h[l] -= t * t; h[l] > best {
					lmax, best = l, h[l]
				}
			}
		}
		if j == 0 || factor*h[lmax] < hmax*eps {
			best := math.Inf(-1)
			for l := j; l < n; l++ {
				nrm := dnrm2(m-j, a[j+mda*l:], 1)
				if h[l] = nrm * nrm; h[l] > best {
					lmax, best = l, h[l]
				}
			}
			hmax = h[lmax]
		}

		ip[j] = lmax
		if lmax != j {
			dswap(m, a[mda*j:], 1, a[mda*lmax:], 1)
			h[lmax] = h[j]
		}

		next := min(j+1, n-1)
		h[j] = h1(j, j+1, m, a[mda*j:], 1)
		h2(j, j+1, m, a[mda*j:], 1, h[j], a[mda*next:], 1, mda, n-j-1)
		h2(j, j+1, m, a[mda*j:], 1, h[j], b, 1, mdb, nb)
	}
}
