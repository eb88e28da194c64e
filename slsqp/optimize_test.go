// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fit(t *testing.T, p Problem, x0 []float64) *Result {
	t.Helper()
	s, err := p.New()
	require.NoError(t, err)
	return s.Fit(clone(x0), s.Init())
}

func linear(coef []float64, shift float64) Evaluation {
	return Evaluation{
		Function: func(x []float64) float64 {
			v := shift
			for i, c := range coef {
				v += c * x[i]
			}
			return v
		},
		Derivative: func(x []float64, d []float64) { copy(d, coef) },
	}
}

var rosenbrock = Evaluation{
	Function: func(x []float64) float64 {
		return 100*math.Pow(x[1]-x[0]*x[0], 2) + math.Pow(1-x[0], 2)
	},
	Derivative: func(x []float64, d []float64) {
		d[0] = -400*(x[1]-x[0]*x[0])*x[0] - 2*(1-x[0])
		d[1] = 200 * (x[1] - x[0]*x[0])
	},
}

// Case Sources : https://github.com/jacobwilliams/slsqp/tree/master/test
func TestReferenceProblems(t *testing.T) {
	disk := Evaluation{
		Function:   func(x []float64) float64 { return 1 - x[0]*x[0] - x[1]*x[1] },
		Derivative: func(x []float64, d []float64) { d[0], d[1] = -2*x[0], -2*x[1] },
	}

	basic := Evaluation{
		Function:   func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] + x[2] },
		Derivative: func(x []float64, d []float64) { d[0], d[1], d[2] = 2*x[0], 2*x[1], 1 },
	}
	product := Evaluation{
		Function:   func(x []float64) float64 { return x[0]*x[1] - x[2] },
		Derivative: func(x []float64, d []float64) { d[0], d[1], d[2] = x[1], x[0], -1 },
	}
	box10 := []Bound{{-10, 10}, {-10, 10}, {-10, 10}}
	alpha := &Bound{Lower: 0.1, Upper: 0.5}

	// Hock & Schittkowski problem 71 with a slack variable.
	hs71 := Evaluation{
		Function: func(x []float64) float64 { return x[0]*x[3]*(x[0]+x[1]+x[2]) + x[2] },
		Derivative: func(x []float64, d []float64) {
			d[0] = x[3] * (2*x[0] + x[1] + x[2])
			d[1] = x[0] * x[3]
			d[2] = x[0]*x[3] + 1
			d[3] = x[0] * (x[0] + x[1] + x[2])
			d[4] = 0
		},
	}
	hs71Prod := Evaluation{
		Function: func(x []float64) float64 { return x[0]*x[1]*x[2]*x[3] - x[4] - 25 },
		Derivative: func(x []float64, d []float64) {
			d[0] = x[1] * x[2] * x[3]
			d[1] = x[0] * x[2] * x[3]
			d[2] = x[0] * x[1] * x[3]
			d[3] = x[0] * x[1] * x[2]
			d[4] = -1
		},
	}
	hs71Norm := Evaluation{
		Function: func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] + x[2]*x[2] + x[3]*x[3] - 40 },
		Derivative: func(x []float64, d []float64) {
			for i := 0; i < 4; i++ {
				d[i] = 2 * x[i]
			}
			d[4] = 0
		},
	}

	cases := []struct {
		name  string
		p     Problem
		x0    []float64
		wantX []float64
		wantF float64
		tol   float64
	}{
		{
			name: "rosenbrock in unit disk",
			p: Problem{
				N: 2, Object: rosenbrock, NeqCons: []Evaluation{disk},
				Bounds: []Bound{{-1, 1}, {-1, 1}},
				Stop:   Termination{Accuracy: 1e-8, MaxIterations: 50},
			},
			x0:    []float64{0.1, 0.1},
			wantX: []float64{0.7864151509718389, 0.6176983165954114},
			wantF: 0.0456748087191604,
			tol:   1e-7,
		},
		{
			name: "basic inexact search",
			p: Problem{
				N: 3, Object: basic,
				EqCons:  []Evaluation{product},
				NeqCons: []Evaluation{linear([]float64{0, 0, 1}, -1)},
				Bounds:  box10, Line: LineSearch{Alpha: alpha},
				Stop: Termination{Accuracy: 1e-7, MaxIterations: 50},
			},
			x0:    []float64{1, 2, 3},
			wantX: []float64{1, 1, 1},
			wantF: 3,
			tol:   1e-6,
		},
		{
			name: "basic exact search",
			p: Problem{
				N: 3, Object: basic,
				EqCons:  []Evaluation{product},
				NeqCons: []Evaluation{linear([]float64{0, 0, 1}, -1)},
				Bounds:  box10, Line: LineSearch{Alpha: alpha, Exact: true},
				Stop: Termination{Accuracy: 1e-7, MaxIterations: 50},
			},
			x0:    []float64{1, 2, 3},
			wantX: []float64{1, 1, 1},
			wantF: 3,
			tol:   1e-6,
		},
		{
			name: "hock schittkowski 71",
			p: Problem{
				N: 5, Object: hs71, EqCons: []Evaluation{hs71Prod, hs71Norm},
				Bounds: []Bound{{1, 5}, {1, 5}, {1, 5}, {1, 5}, {0, 1e10}},
				Stop:   Termination{Accuracy: 1e-8, MaxIterations: 50},
			},
			x0:    []float64{1, 5, 5, 1, -24},
			wantX: []float64{1, 4.7429996586260321, 3.8211499562762130, 1.3794082970345380, 0},
			wantF: 17.0140172891520542,
			tol:   1e-7,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := fit(t, tc.p, tc.x0)
			require.True(t, r.OK, r.Status.String())
			assert.Equal(t, OK, r.Status)
			assert.True(t, cmp.Equal(tc.wantX, r.X, approx(tc.tol)), "x = %v", r.X)
			assert.InDelta(t, tc.wantF, r.F, tc.tol)
			assert.LessOrEqual(t, r.NumIter, tc.p.Stop.MaxIterations)
			assert.GreaterOrEqual(t, r.NumEval, r.NumIter)
		})
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test_slsqp.py
func TestEdgeCases(t *testing.T) {
	sumSq := Evaluation{
		Function:   func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] },
		Derivative: func(x []float64, d []float64) { d[0], d[1] = 2*x[0], 2*x[1] },
	}
	square := Evaluation{
		Function:   func(x []float64) float64 { return x[0]*x[0] - 1 },
		Derivative: func(x []float64, d []float64) { d[0], d[1] = 2*x[0], 0 },
	}
	stop := Termination{Accuracy: 1e-6, MaxIterations: 50}

	t.Run("inconsistent linearization", func(t *testing.T) {
		p := Problem{
			N: 2, Object: sumSq,
			EqCons:  []Evaluation{linear([]float64{1, 1}, -2)},
			NeqCons: []Evaluation{square},
			Bounds:  []Bound{{0, math.NaN()}, {0, math.NaN()}},
			Stop:    stop,
		}
		r := fit(t, p, []float64{0, 1})
		require.True(t, r.OK, r.Status.String())
		assert.True(t, cmp.Equal([]float64{1, 1}, r.X, approx(1e-6)), "x = %v", r.X)
		assert.GreaterOrEqual(t, square.Function(r.X), -1e-6)
	})

	t.Run("pinned variable", func(t *testing.T) {
		p := Problem{
			N: 2, Object: sumSq,
			EqCons:  []Evaluation{linear([]float64{1, 1}, -2)},
			NeqCons: []Evaluation{square},
			Bounds:  []Bound{{0, 0}, {math.NaN(), math.NaN()}},
			Stop:    stop,
		}
		r := fit(t, p, []float64{0, 1})
		assert.False(t, r.OK)
		assert.Equal(t, SearchNotDescent, r.Status)
	})

	t.Run("inconsistent inequalities", func(t *testing.T) {
		p := Problem{
			N: 2, Object: linear([]float64{-1, 4}, 0),
			NeqCons: []Evaluation{linear([]float64{-1, 1}, -1), linear([]float64{1, -1}, 0)},
			Bounds:  []Bound{{-5, 5}, {-5, 5}},
			Stop:    stop,
		}
		r := fit(t, p, []float64{1, 5})
		assert.False(t, r.OK)
		assert.Equal(t, SearchNotDescent, r.Status)
	})
}

func TestBoundClip(t *testing.T) {
	obj := Evaluation{
		Function:   func(x []float64) float64 { return (x[0] - 1) * (x[0] - 1) },
		Derivative: func(x []float64, d []float64) { d[0] = 2*x[0] - 2 },
	}
	nan := math.NaN()

	cases := []struct {
		name string
		x0   float64
		bnd  Bound
		want float64
	}{
		{"upper from above", 10, Bound{nan, 0}, 0},
		{"lower from below", -10, Bound{2, nan}, 2},
		{"upper from below", -10, Bound{nan, 0}, 0},
		{"lower from above", 10, Bound{2, nan}, 2},
		{"box inside", -0.5, Bound{-1, 0}, 0},
		{"box outside", 10, Bound{-1, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Problem{
				N: 1, Object: obj, Bounds: []Bound{tc.bnd},
				Stop: Termination{Accuracy: 1e-6, MaxIterations: 50},
			}
			r := fit(t, p, []float64{tc.x0})
			require.True(t, r.OK, r.Status.String())
			assert.InDelta(t, tc.want, r.X[0], 1e-6)
		})
	}
}

func TestInfeasibleInit(t *testing.T) {
	obj := Evaluation{
		Function:   func(x []float64) float64 { return x[0]*x[0] - 2*x[0] + 1 },
		Derivative: func(x []float64, d []float64) { d[0] = 2*x[0] - 2 },
	}
	upper := linear([]float64{-1}, 0) // x ≤ 0
	lower := linear([]float64{1}, -2) // x ≥ 2
	above := linear([]float64{1}, 1)  // x ≥ -1

	cases := []struct {
		name string
		x0   float64
		cons []Evaluation
		want float64
	}{
		{"upper from above", 10, []Evaluation{upper}, 0},
		{"lower from below", -10, []Evaluation{lower}, 2},
		{"upper from below", -10, []Evaluation{upper}, 0},
		{"lower from above", 10, []Evaluation{lower}, 2},
		{"interval inside", -0.5, []Evaluation{upper, above}, 0},
		{"interval outside", 10, []Evaluation{upper, above}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Problem{
				N: 1, Object: obj, NeqCons: tc.cons,
				Stop: Termination{Accuracy: 1e-6, MaxIterations: 50},
			}
			r := fit(t, p, []float64{tc.x0})
			require.True(t, r.OK, r.Status.String())
			assert.InDelta(t, tc.want, r.X[0], 1e-5)
		})
	}
}

func TestMonitorStop(t *testing.T) {
	seen := 0
	p := Problem{
		N:      2,
		Object: rosenbrock,
		Stop:   Termination{Accuracy: 1e-10, MaxIterations: 100},
		Monitor: func(it Iteration) bool {
			seen++
			assert.Equal(t, seen, it.Iter)
			return it.Iter < 3
		},
	}

	r, err := Minimize(&p, []float64{-1.2, 1})
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Equal(t, UserStop, r.Status)
	assert.Equal(t, 3, r.NumIter)
	assert.Equal(t, 3, seen)
	assert.GreaterOrEqual(t, r.NumEval, r.NumIter)
}

// min x₀² + x₁² s.t. x₀ + x₁ - 2 = 0 and x₀ - 0.5 ≥ 0 has its solution at (1, 1)
// with 𝜵𝒇 = 𝛌₁𝜵𝒄₁ giving 𝛌₁ = 2 while the inequality stays inactive.
func TestMultipliers(t *testing.T) {
	obj := Evaluation{
		Function:   func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] },
		Derivative: func(x []float64, d []float64) { d[0], d[1] = 2*x[0], 2*x[1] },
	}
	p := Problem{
		N:       2,
		Object:  obj,
		EqCons:  []Evaluation{linear([]float64{1, 1}, -2)},
		NeqCons: []Evaluation{linear([]float64{1, 0}, -0.5)},
		Stop:    Termination{Accuracy: 1e-10, MaxIterations: 50},
	}

	r, err := Minimize(&p, []float64{3, -1})
	require.NoError(t, err)
	require.True(t, r.OK, r.Status.String())
	assert.True(t, cmp.Equal([]float64{1, 1}, r.X, approx(1e-6)), "x = %v", r.X)
	require.Len(t, r.Multipliers, 2)
	assert.True(t, cmp.Equal([]float64{2, 0}, r.Multipliers, approx(1e-6)), "multipliers = %v", r.Multipliers)
}

func TestProblemValidation(t *testing.T) {
	obj := Evaluation{
		Function:   func(x []float64) float64 { return x[0] * x[0] },
		Derivative: func(x []float64, d []float64) { d[0] = 2 * x[0] },
	}
	stop := Termination{Accuracy: 1e-6, MaxIterations: 10}

	cases := []struct {
		name string
		p    Problem
		want error
	}{
		{"dimension", Problem{N: 0, Object: obj, Stop: stop}, ErrDimension},
		{"objective", Problem{N: 1, Stop: stop}, ErrObjective},
		{"partial objective", Problem{N: 1, Object: Evaluation{Function: obj.Function}, Stop: stop}, ErrObjective},
		{"iterations", Problem{N: 1, Object: obj, Stop: Termination{Accuracy: 1e-6}}, ErrStop},
		{"accuracy", Problem{N: 1, Object: obj, Stop: Termination{MaxIterations: 10}}, ErrStop},
		{"bounds size", Problem{N: 1, Object: obj, Stop: stop, Bounds: []Bound{{0, 1}, {0, 1}}}, ErrDimension},
		{"bounds order", Problem{N: 1, Object: obj, Stop: stop, Bounds: []Bound{{1, 0}}}, ErrBound},
		{"constraint", Problem{N: 1, Object: obj, Stop: stop, NeqCons: []Evaluation{{}}}, ErrConstraint},
		{"alpha", Problem{N: 1, Object: obj, Stop: stop, Line: LineSearch{Alpha: &Bound{0.5, 2}}}, ErrLineSearch},
		{"too many equalities", Problem{N: 1, Object: obj, Stop: stop, EqCons: []Evaluation{obj, obj}}, ErrDimension},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.p.New()
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStatusString(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{OK, "optimization terminated successfully"},
		{SQPExceedMaxIter, "iteration limit reached"},
		{Status(99), "unknown status"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.String())
	}
}
