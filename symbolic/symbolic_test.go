// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbolic

import (
	"errors"
	"math"
	"testing"

	"github.com/njchilds90/gosymbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEval(t *testing.T) {
	tests := []struct {
		src  string
		env  map[string]float64
		want float64
	}{
		{"x^2 + 3*x - 4", map[string]float64{"x": 2}, 6},
		{"-x^2", map[string]float64{"x": 3}, -9},
		{"(-x)^2", map[string]float64{"x": 3}, 9},
		{"2^3^2", nil, 512},
		{"2**3", nil, 8},
		{"2^-1", nil, 0.5},
		{"10 - 4 - 3", nil, 3},
		{"12 / 3 / 2", nil, 2},
		{"+x * -y", map[string]float64{"x": 2, "y": 5}, -10},
		{"sin(pi/2) + cos(0)", nil, 2},
		{"log(exp(2))", nil, 2},
		{"ln(x) - log(x)", map[string]float64{"x": 7}, 0},
		{"1.5e1 / 3", nil, 5},
		{".5 * 4", nil, 2},
		{"0.1 + 0.2", nil, 0.3},
		{"sqrt(x) * y", map[string]float64{"x": 4, "y": 3}, 6},
		{"abs(x - 5)", map[string]float64{"x": 2}, 3},
		{"x*y / (x + y)", map[string]float64{"x": 2, "y": 6}, 1.5},
		{"tanh(0) + sinh(0) + cosh(0)", nil, 1},
		{"atan(1) * 4", nil, math.Pi},
		{"asin(x) + acos(x)", map[string]float64{"x": 0.3}, math.Pi / 2},
		{"x_1 + x2", map[string]float64{"x_1": 1, "x2": 2}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := Eval(e, tt.env)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src string
		pos int
	}{
		{"", 0},
		{"x +", 3},
		{"2*(x", 4},
		{"foo(x)", 0},
		{"x $ y", 2},
		{"sin", 3},
		{"sin(x", 5},
		{"x y", 2},
		{")", 0},
		{"ln(0)", 0},
		{"asin(2)", 0},
		{"sqrt(-4)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.ErrorIs(t, err, ErrSyntax)
			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.pos, se.Pos, se.Msg)
		})
	}
	assert.Panics(t, func() { MustParse("1 +") })
}

func TestVariables(t *testing.T) {
	vars := Variables(MustParse("x*y + z"), MustParse("a - pi"), MustParse("3"))
	assert.Equal(t, []string{"a", "x", "y", "z"}, vars)
	assert.Empty(t, Variables(MustParse("sin(pi)")))
}

func TestCompileErrors(t *testing.T) {
	e := MustParse("x + y")
	_, err := Eval(e, map[string]float64{"x": 1})
	assert.ErrorIs(t, err, ErrUnbound)
	_, err = Compile(e, []string{"x", "y", "x"})
	assert.ErrorIs(t, err, ErrUnsupported)

	f, err := Compile(e, []string{"y", "x", "unused"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, f([]float64{2, 3, 100}))
	assert.Panics(t, func() { f([]float64{1}) })
}

func TestGradientHessian(t *testing.T) {
	e := MustParse("x^2*y + sin(y)")
	vars := []string{"x", "y"}
	x := []float64{1, 2}

	grad, err := CompileGradient(e, vars)
	require.NoError(t, err)
	g := make([]float64, 2)
	grad(x, g)
	assert.InDeltaSlice(t, []float64{4, 1 + math.Cos(2)}, g, 1e-12)

	hess, err := CompileHessian(e, vars)
	require.NoError(t, err)
	h := make([]float64, 4)
	hess(x, h)
	assert.InDeltaSlice(t, []float64{4, 2, 2, -math.Sin(2)}, h, 1e-12)
}

func TestNonSmoothDerivative(t *testing.T) {
	grad, err := CompileGradient(MustParse("abs(x) + x"), []string{"x"})
	require.NoError(t, err)
	g := make([]float64, 1)
	grad([]float64{-3}, g)
	assert.InDelta(t, 0, g[0], 1e-12)
	grad([]float64{3}, g)
	assert.InDelta(t, 2, g[0], 1e-12)
}

func TestExactLiterals(t *testing.T) {
	// decimal literals stay exact rationals so symbolic identities hold
	e := MustParse("0.1 + 0.2 - 0.3")
	n, ok := e.(*gosymbol.Num)
	require.True(t, ok, "got %s", e)
	assert.True(t, n.IsZero())
}
