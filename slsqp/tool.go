// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

var sqrtEps = math.Sqrt(eps)              // square root of machine precision
var invPhi2 = one / (math.Phi * math.Phi) // golden section ratio

// h1 builds the Householder reflection Q = I - (s·uₚ)⁻¹uuᵀ that maps the
// pivot v[p] to s and annihilates v[l], …, v[m-1]. Elements are read with
// stride ive. On return v[p] holds s, v[l:m] hold the tail of u unchanged,
// and the pivot entry uₚ is returned.
//
// The call is an identity transform unless 0 ≤ p < l < m.
//
// Lawson & Hanson, Solving Least Squares Problems, 1995, chapter 10.
func h1(p, l, m int, v []float64, ive int) (up float64) {
	if p < 0 || p >= l || l >= m {
		return
	}
	vp := v[p*ive]
	s := math.Hypot(vp, dnrm2(m-l, v[l*ive:], ive))
	if s == zero {
		return
	}
	if vp > zero {
		s = -s
	}
	v[p*ive] = s
	return vp - s
}

// h2 applies the reflection built by h1 to ncv vectors stored in c.
// Vector k starts at c[k·icv] and its elements are ice apart.
func h2(p, l, m int, u []float64, iue int, up float64, c []float64, ice, icv, ncv int) {
	if p < 0 || p >= l || l >= m || ncv <= 0 {
		return
	}
	b := u[p*iue] * up
	if b >= zero {
		return
	}
	tail, n := u[l*iue:], m-l
	for k := 0; k < ncv; k++ {
		head := k*icv + p*ice
		rest := c[k*icv+l*ice:]
		sm := c[head]*up + ddot(n, rest, ice, tail, iue)
		if sm == zero {
			continue
		}
		sm /= b
		c[head] += sm * up
		daxpy(n, sm, tail, iue, rest, ice)
	}
}

// g1 returns the rotation (c, s) and r = ‖(a, b)‖₂ ≥ 0 such that
//
//	⎡ c s⎤⎡a⎤   ⎡r⎤
//	⎣-s c⎦⎣b⎦ = ⎣0⎦
//
// Apply it to further pairs with drot. A zero pair yields c = 0, s = 1.
func g1(a, b float64) (c, s, r float64) {
	if a == zero && b == zero {
		return zero, one, zero
	}
	c, s, r, _ = bl.Drotg(a, b)
	if r < zero {
		c, s, r = -c, -s, -r
	}
	return
}

// compositeT updates in place the packed factorization A = LDLᵀ to that of
// A + σzzᵀ, keeping D positive. The unit lower factor L is stored column by
// column with D on the diagonal positions. z is overwritten. When σ < 0 the
// caller provides n elements of scratch w.
//
// Fletcher & Powell, On the modification of LDLᵀ factorizations, 1974
// (method C1), as used by Kraft's SLSQP, 1988, section 2.3.2.
func compositeT(n uint, a, z []float64, sigma float64, w []float64) {
	if sigma == zero {
		return
	}
	size := int(n)
	if size <= 0 || size > len(z) {
		panic("bound check error")
	}

	// diag(i) is the offset of dᵢ in the packed storage.
	diag := func(i int) int { return i*size - i*(i-1)/2 }

	t := one / sigma
	if sigma < zero {
		if size > len(w) {
			panic("bound check error")
		}
		// Forward solve Lw = z accumulating tᵢ₊₁ = tᵢ + wᵢ²/dᵢ.
		copy(w[:size], z)
		for i := 0; i < size; i++ {
			d := diag(i)
			t += w[i] * w[i] / a[d]
			daxpy(size-i-1, -w[i], a[d+1:], 1, w[i+1:], 1)
		}
		if t >= zero {
			t = eps / sigma
		}
		// Replace w by the running sums, walking backwards.
		for i := size - 1; i >= 0; i-- {
			v := w[i]
			w[i] = t
			t -= v * v / a[diag(i)]
		}
	}

	for i := 0; i < size; i++ {
		d := diag(i)
		v := z[i]
		delta := v / a[d]

		var next float64
		if sigma < zero {
			next = w[i]
		} else {
			next = t + delta*v
		}

		alpha := next / t
		a[d] *= alpha
		if i == size-1 {
			break
		}

		beta := delta / next
		col, zt := a[d+1:d+size-i], z[i+1:size]
		if alpha > four {
			gamma := t / next
			for j, l := range col {
				col[j] = gamma*l + beta*zt[j]
				zt[j] -= v * l
			}
		} else {
			daxpy(len(col), -v, col, 1, zt, 1)
			daxpy(len(col), beta, zt, 1, col, 1)
		}
		t = next
	}
}

type findMode int

const (
	findNoop findMode = iota
	findInit
	findNext
	findConv
)

// findWork is the state of a bracketing line search kept between calls.
// [lo, hi] brackets the minimum, x is the best point seen, w the second
// best and v the previous value of w. u is the point under evaluation.
type findWork struct {
	lo, hi     float64
	x, w, v, u float64
	fx, fw, fv float64
	d, e       float64
}

func (s *findWork) reset(lo, hi float64) float64 {
	*s = findWork{lo: lo, hi: hi}
	s.x = lo + invPhi2*(hi-lo)
	s.w, s.v = s.x, s.x
	return s.x
}

// accept folds f(u) into the bracket.
func (s *findWork) accept(fu float64) {
	u, x := s.u, s.x
	if fu <= s.fx {
		if u >= x {
			s.lo = x
		} else {
			s.hi = x
		}
		s.v, s.fv = s.w, s.fw
		s.w, s.fw = x, s.fx
		s.x, s.fx = u, fu
		return
	}
	if u < x {
		s.lo = u
	} else {
		s.hi = u
	}
	switch {
	case fu <= s.fw || s.w == x:
		s.v, s.fv = s.w, s.fw
		s.w, s.fw = u, fu
	case fu <= s.fv || s.v == x || s.v == s.w:
		s.v, s.fv = u, fu
	}
}

// step proposes the next point or reports that x is within tol of the minimum.
func (s *findWork) step(tol float64) (float64, bool) {
	lo, hi, x := s.lo, s.hi, s.x
	mid := (lo + hi) / 2
	tol1 := sqrtEps*math.Abs(x) + tol
	tol2 := 2 * tol1
	if math.Abs(x-mid) <= tol2-(hi-lo)/2 {
		return x, true
	}

	d, e := s.d, s.e
	parabolic := false
	if math.Abs(e) > tol1 {
		r := (x - s.w) * (s.fx - s.fv)
		q := (x - s.v) * (s.fx - s.fw)
		p := (x-s.v)*q - (x-s.w)*r
		q = 2 * (q - r)
		if q > zero {
			p = -p
		}
		q = math.Abs(q)
		prev := e
		e = d
		if math.Abs(p) < math.Abs(q*prev)/2 && p > q*(lo-x) && p < q*(hi-x) {
			parabolic = true
			d = p / q
			if u := x + d; u-lo < tol2 || hi-u < tol2 {
				d = math.Copysign(tol1, mid-x)
			}
		}
	}
	if !parabolic {
		if x >= mid {
			e = lo - x
		} else {
			e = hi - x
		}
		d = invPhi2 * e
	}
	if math.Abs(d) < tol1 {
		d = math.Copysign(tol1, d)
	}
	s.d, s.e = d, e
	s.u = x + d
	return s.u, false
}

// findMin minimizes a function of one variable over alpha by reverse
// communication, combining golden section search with successive parabolic
// interpolation (Brent). Each call returns the abscissa at which the caller
// evaluates f, passing the value back on the next call together with the
// returned mode. findConv means argMin is within tol of the minimizer.
func findMin(m findMode, w *findWork, f, tol float64, alpha Bound) (argMin float64, mode findMode) {
	switch m {
	case findInit:
		w.fx, w.fw, w.fv = f, f, f
	case findNext:
		w.accept(f)
	default:
		return w.reset(alpha.Lower, alpha.Upper), findInit
	}
	if x, done := w.step(tol); done {
		return x, findConv
	}
	return w.u, findNext
}
