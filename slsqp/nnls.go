// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// NNLS solves 𝚖𝚒𝚗‖𝐀𝐱 - 𝐛‖₂ subject to 𝐱 ≥ 0 by the active set method of
// Lawson and Hanson. 𝐀 is m × n, column-major with leading dimension mda,
// and may have any rank or shape.
//
// The variables are split into a passive set ℙ, free to move, and an active
// set ℤ, held at zero. Each outer step moves into ℙ the variable with the
// largest component of the dual vector 𝐰 = 𝐀ᵀ(𝐛 - 𝐀𝐱), the negative
// gradient, and solves the unconstrained least-squares problem over ℙ by
// updating a QR factorization in place. If the solution 𝐳 leaves the
// feasible region, 𝐱 moves towards 𝐳 until a coefficient reaches zero and
// that coefficient returns to ℤ. The method stops when 𝐰ⱼ ≤ 0 for all
// j ∈ ℙ, which are the Kuhn-Tucker conditions of the problem.
//
// On return a and b hold 𝐐𝐀 and 𝐐𝐛, x holds the solution and w the dual
// vector. z needs m elements and index n. A non-positive maxIter means 3n.
// The residual norm is returned.
//
// Lawson & Hanson, Solving Least Squares Problems, 1995, algorithm 23.10.
func NNLS(m, n int, a []float64, mda int, b, x, w, z []float64, index []int, maxIter int) (float64, Status) {
	if m <= 0 || n <= 0 || mda < m ||
		len(a) < mda*n || len(b) < m || len(x) < n || len(w) < n || len(z) < m || len(index) < n {
		return math.NaN(), BadArgument
	}
	if maxIter <= 0 {
		maxIter = 3 * n
	}

	s := nnlsWork{m: m, n: n, mda: mda, a: a, b: b, x: x, w: w, z: z, index: index[:n]}
	for i := range s.index {
		s.index[i] = i
	}
	dzero(x[:n])

	for iter := 0; s.np < n && s.np < m; {
		s.dual()
		if !s.admit() {
			break
		}
		for {
			s.solve()
			if iter++; iter > maxIter {
				return s.residual(), NNLSExceedMaxIter
			}
			alpha, pos := s.step()
			if pos < 0 {
				for ip, l := range s.index[:s.np] {
					x[l] = z[ip]
				}
				break
			}
			for ip, l := range s.index[:s.np] {
				x[l] += alpha * (z[ip] - x[l])
			}
			s.release(pos)
			copy(z[:m], b[:m])
		}
	}
	return s.residual(), HasSolution
}

// nnlsWork holds the NNLS state. ℙ is index[:np] and ℤ is index[np:].
// The first np rows of 𝐐𝐀 restricted to ℙ form an upper triangular matrix.
type nnlsWork struct {
	m, n, mda     int
	a, b, x, w, z []float64
	index         []int
	np            int
}

func (s *nnlsWork) column(j int) []float64 {
	return s.a[s.mda*j : s.mda*j+s.m : s.mda*j+s.m]
}

// dual computes 𝐰ⱼ for j ∈ ℤ. Those 𝐱ⱼ are zero and the leading np rows of
// 𝐐𝐛 are fitted exactly, so only the trailing rows contribute.
func (s *nnlsWork) dual() {
	np := s.np
	for _, j := range s.index[np:] {
		s.w[j] = ddot(s.m-np, s.a[np+s.mda*j:], 1, s.b[np:], 1)
	}
}

// admit moves into ℙ the variable with the largest positive dual component
// whose column is independent enough of ℙ and whose tentative value is
// positive. It reports false when no such variable is left.
func (s *nnlsWork) admit() bool {
	const factor = 0.01
	m, np := s.m, s.np
	for {
		best, pos := zero, -1
		for i, j := range s.index[np:] {
			if s.w[j] > best {
				best, pos = s.w[j], np+i
			}
		}
		if pos < 0 {
			return false
		}

		j := s.index[pos]
		col := s.column(j)
		saved := col[np]
		up := h1(np, np+1, m, col, 1)
		if math.Abs(col[np])*factor >= dnrm2(np, col, 1)*eps {
			copy(s.z[:m], s.b[:m])
			h2(np, np+1, m, col, 1, up, s.z, 1, 1, 1)
			if s.z[np]/col[np] > zero {
				copy(s.b[:m], s.z[:m])
				s.index[pos], s.index[np] = s.index[np], j
				s.np++
				for _, k := range s.index[s.np:] {
					h2(np, np+1, m, col, 1, up, s.a[k*s.mda:], 1, s.mda, 1)
				}
				dzero(col[s.np:])
				s.w[j] = zero
				return true
			}
		}
		col[np] = saved
		s.w[j] = zero
	}
}

// solve overwrites z[:np] with the least-squares solution over ℙ by back
// substitution on the triangular factor. z must hold 𝐐𝐛 on entry.
func (s *nnlsWork) solve() {
	z := s.z
	for ip := s.np - 1; ip >= 0; ip-- {
		if ip < s.np-1 {
			daxpy(ip+1, -z[ip+1], s.column(s.index[ip+1]), 1, z, 1)
		}
		z[ip] /= s.a[ip+s.index[ip]*s.mda]
	}
}

// step returns the largest 𝛂 ≤ 1 keeping 𝐱 + 𝛂(𝐳 - 𝐱) ≥ 0 and the position
// in ℙ of the coefficient that reaches zero, or -1 when 𝐳 is feasible.
func (s *nnlsWork) step() (alpha float64, pos int) {
	alpha, pos = two, -1
	for ip, l := range s.index[:s.np] {
		if s.z[ip] <= zero {
			if t := -s.x[l] / (s.z[ip] - s.x[l]); alpha > t {
				alpha, pos = t, ip
			}
		}
	}
	return
}

// release moves the coefficient at position pos of ℙ back to ℤ and restores
// the triangular factor with Givens rotations. Coefficients left
// non-positive by round-off follow it.
func (s *nnlsWork) release(pos int) {
	n, mda := s.n, s.mda
	for pos >= 0 {
		i := s.index[pos]
		s.x[i] = zero
		for j := pos + 1; j < s.np; j++ {
			ii := s.index[j]
			s.index[j-1] = ii
			col := s.a[ii*mda:]
			c, sn, r := g1(col[j-1], col[j])
			col[j-1], col[j] = r, zero
			// Rows j-1 and j of every other column and of 𝐛.
			drot(ii, s.a[j-1:], mda, s.a[j:], mda, c, sn)
			if ii+1 < n {
				rest := (ii + 1) * mda
				drot(n-ii-1, s.a[rest+j-1:], mda, s.a[rest+j:], mda, c, sn)
			}
			drot(1, s.b[j-1:], 1, s.b[j:], 1, c, sn)
		}
		s.np--
		s.index[s.np] = i

		pos = -1
		for ip, l := range s.index[:s.np] {
			if s.x[l] <= zero {
				pos = ip
				break
			}
		}
	}
}

// residual returns ‖𝐐𝐛₂‖₂, the norm of the rows of 𝐐𝐛 not fitted by ℙ.
func (s *nnlsWork) residual() float64 {
	if s.np < s.m {
		return dnrm2(s.m-s.np, s.b[s.np:], 1)
	}
	dzero(s.w[:s.n])
	return zero
}
