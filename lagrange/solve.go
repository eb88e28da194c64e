// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lagrange

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/optlab/internal/logging"
)

// Kind classifies a stationary point.
type Kind int

const (
	Degenerate Kind = iota
	LocalMin
	LocalMax
	Saddle
)

func (k Kind) String() string {
	switch k {
	case LocalMin:
		return "local minimum"
	case LocalMax:
		return "local maximum"
	case Saddle:
		return "saddle point"
	}
	return "degenerate"
}

// Point is a stationary point of the Lagrangian.
type Point struct {
	X        []float64
	Lambda   []float64
	F        float64
	Kind     Kind
	Residual float64 // ‖∇𝓛‖ at the point
}

// SolveOptions controls the multi-start Newton search.
type SolveOptions struct {
	// Starts are user supplied initial points in 𝐱.
	Starts [][]float64
	// NumStarts random starts drawn uniformly from [-Radius, Radius]ⁿ, default 20.
	NumStarts int
	Radius    float64 // default 2
	Seed      uint64
	// Tol on ‖∇𝓛‖, default 1e-10.
	Tol     float64
	MaxIter int // Newton iterations per start, default 50
}

func (o *SolveOptions) defaults() SolveOptions {
	var opt SolveOptions
	if o != nil {
		opt = *o
	}
	if opt.NumStarts == 0 && len(opt.Starts) == 0 {
		opt.NumStarts = 20
	}
	if opt.Radius <= 0 {
		opt.Radius = 2
	}
	if opt.Tol <= 0 {
		opt.Tol = 1e-10
	}
	if opt.MaxIter <= 0 {
		opt.MaxIter = 50
	}
	return opt
}

// Solve searches stationary points of the Lagrangian with a damped Newton
// method from every start, merges duplicates and returns them sorted by
// objective value. Starts where the Newton matrix is singular or that do not
// converge are dropped, so the result may be empty.
func (s *System) Solve(ctx context.Context, o *SolveOptions) ([]Point, error) {
	opt := o.defaults()
	n := len(s.Vars)
	log := logr.FromContextOrDiscard(ctx).WithValues("solver", "lagrange")

	starts := make([][]float64, 0, len(opt.Starts)+opt.NumStarts)
	for i, x0 := range opt.Starts {
		if len(x0) != n {
			return nil, fmt.Errorf("%w: start %d has %d values for %d variables", ErrDimension, i, len(x0), n)
		}
		starts = append(starts, x0)
	}
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed^0x9e3779b97f4a7c15))
	for range opt.NumStarts {
		x0 := make([]float64, n)
		for i := range x0 {
			x0[i] = (2*rng.Float64() - 1) * opt.Radius
		}
		starts = append(starts, x0)
	}

	var points []Point
	for i, x0 := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		z, res, ok := s.newton(x0, opt)
		if !ok {
			log.V(logging.TRACE).Info("start abandoned", "start", i, "residual", res)
			continue
		}
		p := Point{
			X:        slices.Clone(z[:n]),
			Lambda:   slices.Clone(z[n:]),
			Residual: res,
		}
		p.F = s.f(p.X)
		if slices.ContainsFunc(points, func(q Point) bool { return same(p.X, q.X) }) {
			continue
		}
		p.Kind = s.classify(z)
		log.V(logging.DEBUG).Info("stationary point", "x", p.X, "f", p.F, "kind", p.Kind.String())
		points = append(points, p)
	}
	slices.SortStableFunc(points, func(a, b Point) int {
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		}
		return 0
	})
	return points, nil
}

func same(a, b []float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-6*math.Max(1, math.Abs(a[i])) {
			return false
		}
	}
	return true
}

// newton solves ∇𝓛(𝐱,𝛌) = 0 from x0 with multipliers initialized by least squares.
func (s *System) newton(x0 []float64, opt SolveOptions) ([]float64, float64, bool) {
	n, m := len(s.Vars), len(s.Multipliers)
	k := n + m
	z := make([]float64, k)
	copy(z, x0)
	s.initMultipliers(z)

	r := make([]float64, k)
	trial := make([]float64, k)
	rt := make([]float64, k)
	jac := mat.NewDense(k, k, nil)
	step := mat.NewVecDense(k, nil)
	var lu mat.LU

	s.Residual(z, r)
	norm := floats.Norm(r, 2)
	for it := 0; it < opt.MaxIter; it++ {
		if norm <= opt.Tol {
			return z, norm, true
		}
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return nil, norm, false
		}
		s.jacobian(z, jac)
		lu.Factorize(jac)
		if lu.Det() == 0 {
			return nil, norm, false
		}
		floats.Scale(-1, r)
		if err := lu.SolveVecTo(step, false, mat.NewVecDense(k, r)); err != nil {
			if _, ok := err.(mat.Condition); !ok || math.IsInf(float64(err.(mat.Condition)), 1) {
				return nil, norm, false
			}
		}

		// backtrack on the residual norm
		alpha := 1.0
		for {
			floats.AddScaledTo(trial, z, alpha, step.RawVector().Data)
			s.Residual(trial, rt)
			if tn := floats.Norm(rt, 2); tn < (1-1e-4*alpha)*norm || alpha < 1e-8 {
				copy(z, trial)
				copy(r, rt)
				norm = tn
				break
			}
			alpha /= 2
		}
	}
	return z, norm, norm <= opt.Tol
}

// initMultipliers sets 𝛌 to the least-squares solution of ∇𝒈ᵀ𝛌 = ∇𝒇 at 𝐱.
func (s *System) initMultipliers(z []float64) {
	n, m := len(s.Vars), len(s.Multipliers)
	if m == 0 {
		return
	}
	k := n + m
	jac := mat.NewDense(k, k, nil)
	s.jacobian(z, jac)
	// rows i < n, columns n+j hold -∂𝒈ⱼ/∂𝑥ᵢ
	a := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a.Set(i, j, -jac.At(i, n+j))
		}
	}
	g := make([]float64, n)
	s.grad(z[:n], g)
	var lam mat.VecDense
	if err := lam.SolveVec(a, mat.NewVecDense(n, g)); err != nil {
		return
	}
	for j := 0; j < m; j++ {
		if v := lam.AtVec(j); !math.IsNaN(v) && !math.IsInf(v, 0) {
			z[n+j] = v
		}
	}
}

func (s *System) jacobian(z []float64, dst *mat.Dense) {
	k := len(s.Vars) + len(s.Multipliers)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			dst.Set(i, j, s.jac[i*k+j](z))
		}
	}
}

// classify inspects ∇²ₓ𝓛 on the null space of the constraint Jacobian.
func (s *System) classify(z []float64) Kind {
	n, m := len(s.Vars), len(s.Multipliers)
	k := n + m

	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h.SetSym(i, j, s.hessL[i*n+j](z))
		}
	}

	var basis mat.Matrix = mat.NewDiagDense(n, slices.Repeat([]float64{1}, n))
	if m > 0 {
		a := mat.NewDense(m, n, nil)
		for j := 0; j < m; j++ {
			for i := 0; i < n; i++ {
				a.Set(j, i, s.jac[(n+j)*k+i](z))
			}
		}
		var svd mat.SVD
		if !svd.Factorize(a, mat.SVDFull) {
			return Degenerate
		}
		sv := svd.Values(nil)
		rank := 0
		for _, v := range sv {
			if v > 1e-10*math.Max(1, sv[0]) {
				rank++
			}
		}
		if rank == n {
			return Degenerate
		}
		var v mat.Dense
		svd.VTo(&v)
		basis = v.Slice(0, n, rank, n)
	}

	var proj mat.Dense
	proj.Product(basis.T(), h, basis)
	r, _ := proj.Dims()
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, (proj.At(i, j)+proj.At(j, i))/2)
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return Degenerate
	}
	vals := eig.Values(nil)
	scale := math.Max(1, floats.Norm(vals, math.Inf(1)))
	const tol = 1e-8
	var pos, neg int
	for _, v := range vals {
		switch {
		case v > tol*scale:
			pos++
		case v < -tol*scale:
			neg++
		}
	}
	switch {
	case pos > 0 && neg > 0:
		return Saddle
	case pos == len(vals):
		return LocalMin
	case neg == len(vals):
		return LocalMax
	}
	return Degenerate
}
