// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linprog

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var approx = cmpopts.EquateApprox(0, 1e-8)

func inf() float64 { return math.Inf(1) }

// stationarity returns 𝐜 + 𝐀ᵤᵀ𝛌ᵤ + 𝐀ₑᵀ𝛌ₑ - 𝛌ₗ + 𝛌ᵤₚ for the minimized objective.
func stationarity(p *Problem, l Lambda) []float64 {
	n := len(p.C)
	g := make([]float64, n)
	for j := range g {
		g[j] = p.C[j]
		if p.Maximize {
			g[j] = -g[j]
		}
		g[j] += l.Upper[j] - l.Lower[j]
	}
	add := func(a mat.Matrix, lam []float64) {
		for i, v := range lam {
			for j := 0; j < n; j++ {
				g[j] += a.At(i, j) * v
			}
		}
	}
	if p.Aub != nil {
		add(p.Aub, l.Ineq)
	}
	if p.Aeq != nil {
		add(p.Aeq, l.Eq)
	}
	return g
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name   string
		p      Problem
		x      []float64
		f      float64
		lambda Lambda
	}{
		{
			// Hillier & Lieberman, Wyndor Glass Co.
			name: "wyndor",
			p: Problem{
				C: []float64{3, 5},
				Aub: mat.NewDense(3, 2, []float64{
					1, 0,
					0, 2,
					3, 2,
				}),
				Bub:      []float64{4, 12, 18},
				Lower:    []float64{0, 0},
				Maximize: true,
			},
			x: []float64{2, 6},
			f: 36,
			lambda: Lambda{
				Ineq:  []float64{0, 1.5, 1},
				Eq:    []float64{},
				Lower: []float64{0, 0},
				Upper: []float64{0, 0},
			},
		},
		{
			name: "covering with upper bound",
			p: Problem{
				C:     []float64{1, 1},
				Aub:   mat.NewDense(1, 2, []float64{-1, -2}),
				Bub:   []float64{-4},
				Lower: []float64{0, 0},
				Upper: []float64{3, inf()},
			},
			x: []float64{0, 2},
			f: 2,
			lambda: Lambda{
				Ineq:  []float64{0.5},
				Eq:    []float64{},
				Lower: []float64{0.5, 0},
				Upper: []float64{0, 0},
			},
		},
		{
			name: "equalities",
			p: Problem{
				C: []float64{1, 2, 3},
				Aeq: mat.NewDense(2, 3, []float64{
					1, 1, 1,
					1, -1, 0,
				}),
				Beq:   []float64{6, 0},
				Lower: []float64{0, 0, 0},
			},
			x: []float64{3, 3, 0},
			f: 9,
			lambda: Lambda{
				Ineq:  []float64{},
				Eq:    []float64{-1.5, 0.5},
				Lower: []float64{0, 0, 1.5},
				Upper: []float64{0, 0, 0},
			},
		},
		{
			name: "dependent equalities",
			p: Problem{
				C: []float64{1, 2},
				Aeq: mat.NewDense(2, 2, []float64{
					1, 1,
					2, 2,
				}),
				Beq:   []float64{1, 2},
				Lower: []float64{0, 0},
			},
			x: []float64{1, 0},
			f: 1,
			lambda: Lambda{
				Ineq:  []float64{},
				Eq:    []float64{-1, 0},
				Lower: []float64{0, 1},
				Upper: []float64{0, 0},
			},
		},
		{
			name: "more equalities than columns",
			p: Problem{
				C: []float64{1, 1},
				Aeq: mat.NewDense(3, 2, []float64{
					1, 0,
					0, 1,
					1, 1,
				}),
				Beq:   []float64{1, 1, 2},
				Lower: []float64{0, 0},
			},
			x: []float64{1, 1},
			f: 2,
		},
		{
			name: "doubly bounded",
			p: Problem{
				C:     []float64{-2, -1},
				Aub:   mat.NewDense(1, 2, []float64{1, 1}),
				Bub:   []float64{3},
				Lower: []float64{0, 0},
				Upper: []float64{1, 5},
			},
			x: []float64{1, 2},
			f: -4,
			lambda: Lambda{
				Ineq:  []float64{1},
				Eq:    []float64{},
				Lower: []float64{0, 0},
				Upper: []float64{1, 0},
			},
		},
		{
			name: "free variable",
			p: Problem{
				C:   []float64{1},
				Aub: mat.NewDense(1, 1, []float64{-1}),
				Bub: []float64{3},
			},
			x: []float64{-3},
			f: -3,
			lambda: Lambda{
				Ineq:  []float64{1},
				Eq:    []float64{},
				Lower: []float64{0},
				Upper: []float64{0},
			},
		},
		{
			name: "upper bound only",
			p: Problem{
				C:     []float64{-1},
				Lower: []float64{math.Inf(-1)},
				Upper: []float64{5},
			},
			x: []float64{5},
			f: -5,
			lambda: Lambda{
				Ineq:  []float64{},
				Eq:    []float64{},
				Lower: []float64{0},
				Upper: []float64{1},
			},
		},
		{
			name: "negative lower bound",
			p: Problem{
				C:     []float64{1, 2},
				Aub:   mat.NewDense(1, 2, []float64{-1, -1}),
				Bub:   []float64{1},
				Lower: []float64{-2, -3},
				Upper: []float64{inf(), 0},
			},
			x: []float64{2, -3},
			f: -4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Solve(context.Background(), &tt.p, nil)
			require.NoError(t, err)
			require.Equal(t, Optimal, res.Status, res.Status.String())
			assert.True(t, cmp.Equal(tt.x, res.X, approx), "x = %v", res.X)
			assert.InDelta(t, tt.f, res.F, 1e-8)

			if tt.lambda.Lower != nil {
				assert.True(t, cmp.Equal(tt.lambda, res.Lambda, approx, cmpopts.EquateEmpty()), "lambda = %+v", res.Lambda)
			}
			assert.True(t, cmp.Equal(make([]float64, len(tt.x)), stationarity(&tt.p, res.Lambda),
				cmpopts.EquateApprox(0, 1e-8), cmpopts.EquateEmpty()))
			for _, s := range res.Slack {
				assert.GreaterOrEqual(t, s, -1e-9)
			}
		})
	}
}

func TestSlack(t *testing.T) {
	p := Problem{
		C: []float64{3, 5},
		Aub: mat.NewDense(3, 2, []float64{
			1, 0,
			0, 2,
			3, 2,
		}),
		Bub:      []float64{4, 12, 18},
		Lower:    []float64{0, 0},
		Maximize: true,
	}
	res, err := Solve(context.Background(), &p, &Settings{SkipDual: true})
	require.NoError(t, err)
	assert.True(t, cmp.Equal([]float64{2, 0, 0}, res.Slack, approx))
	assert.Nil(t, res.Lambda.Ineq)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		p      Problem
		status Status
	}{
		{
			name: "infeasible",
			p: Problem{
				C:     []float64{1, 1},
				Aub:   mat.NewDense(1, 2, []float64{1, 1}),
				Bub:   []float64{-1},
				Lower: []float64{0, 0},
			},
			status: Infeasible,
		},
		{
			name: "infeasible zero row",
			p: Problem{
				C:   []float64{1},
				Aeq: mat.NewDense(1, 1, []float64{0}),
				Beq: []float64{2},
			},
			status: Infeasible,
		},
		{
			name: "unbounded ray",
			p: Problem{
				C:     []float64{-1, 0},
				Aub:   mat.NewDense(1, 2, []float64{1, -1}),
				Bub:   []float64{1},
				Lower: []float64{0, 0},
			},
			status: Unbounded,
		},
		{
			name: "unbounded free column",
			p: Problem{
				C:   []float64{0, 1},
				Aub: mat.NewDense(1, 2, []float64{1, 0}),
				Bub: []float64{1},
			},
			status: Unbounded,
		},
		{
			name: "contradictory dependent equalities",
			p: Problem{
				C: []float64{1, 2},
				Aeq: mat.NewDense(2, 2, []float64{
					1, 1,
					2, 2,
				}),
				Beq:   []float64{1, 3},
				Lower: []float64{0, 0},
			},
			status: Infeasible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Solve(context.Background(), &tt.p, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status, res.Status.String())
			assert.Nil(t, res.X)
			assert.True(t, math.IsNaN(res.F))
		})
	}
}

func TestZeroRowsDropped(t *testing.T) {
	p := Problem{
		C: []float64{1},
		Aub: mat.NewDense(2, 1, []float64{
			0,
			-1,
		}),
		Bub:   []float64{5, -2},
		Lower: []float64{0},
	}
	res, err := Solve(context.Background(), &p, nil)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 2, res.X[0], 1e-9)
	assert.True(t, cmp.Equal([]float64{0, 1}, res.Lambda.Ineq, approx))
	assert.True(t, cmp.Equal([]float64{5, 0}, res.Slack, approx))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Problem
		err  error
	}{
		{"empty", Problem{}, ErrDimension},
		{"rhs without matrix", Problem{C: []float64{1}, Bub: []float64{1}}, ErrDimension},
		{"columns", Problem{C: []float64{1}, Aub: mat.NewDense(1, 2, nil), Bub: []float64{1}}, ErrDimension},
		{"rows", Problem{C: []float64{1}, Aeq: mat.NewDense(2, 1, nil), Beq: []float64{1}}, ErrDimension},
		{"lower length", Problem{C: []float64{1}, Lower: []float64{0, 0}}, ErrDimension},
		{"upper length", Problem{C: []float64{1}, Upper: []float64{}}, ErrDimension},
		{"crossed", Problem{C: []float64{1}, Lower: []float64{2}, Upper: []float64{1}}, ErrBound},
		{"nan", Problem{C: []float64{1}, Lower: []float64{math.NaN()}}, ErrBound},
		{"infinite lower", Problem{C: []float64{1}, Lower: []float64{inf()}}, ErrBound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(context.Background(), &tt.p, nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Problem{C: []float64{1}, Aub: mat.NewDense(1, 1, []float64{-1}), Bub: []float64{3}}
	_, err := Solve(ctx, &p, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
