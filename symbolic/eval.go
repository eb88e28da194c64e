// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbolic

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/njchilds90/gosymbol"
)

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

var mathFuncs = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"exp":   math.Exp,
	"ln":    math.Log,
	"log":   math.Log,
	"abs":   math.Abs,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"sign":  sign,
	// derivative placeholders gosymbol emits for non smooth functions
	"D[abs]":   sign,
	"D[floor]": func(float64) float64 { return 0 },
	"D[ceil]":  func(float64) float64 { return 0 },
	"D[sign]":  func(float64) float64 { return 0 },
}

// Func is a compiled scalar function of the variables it was compiled for.
type Func func(x []float64) float64

// Variables returns the sorted names of the free symbols of exprs.
func Variables(exprs ...gosymbol.Expr) []string {
	set := map[string]struct{}{}
	for _, e := range exprs {
		maps.Copy(set, gosymbol.FreeSymbols(e))
	}
	return slices.Sorted(maps.Keys(set))
}

// Eval evaluates e with the variable values in env.
func Eval(e gosymbol.Expr, env map[string]float64) (float64, error) {
	vars := slices.Sorted(maps.Keys(env))
	f, err := Compile(e, vars)
	if err != nil {
		return math.NaN(), err
	}
	x := make([]float64, len(vars))
	for i, v := range vars {
		x[i] = env[v]
	}
	return f(x), nil
}

// Compile turns e into a function of x where x[i] is the value of vars[i].
// Every free symbol of e must be listed in vars.
func Compile(e gosymbol.Expr, vars []string) (Func, error) {
	index := make(map[string]int, len(vars))
	for i, v := range vars {
		if _, dup := index[v]; dup {
			return nil, fmt.Errorf("%w: variable %q listed twice", ErrUnsupported, v)
		}
		index[v] = i
	}
	var missing []string
	for _, name := range Variables(e) {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnbound, strings.Join(missing, ", "))
	}
	f, err := compile(e, index)
	if err != nil {
		return nil, err
	}
	n := len(vars)
	return func(x []float64) float64 {
		if len(x) != n {
			panic(fmt.Sprintf("symbolic: %d values for %d variables", len(x), n))
		}
		return f(x)
	}, nil
}

// CompileGradient compiles the symbolic gradient of e with respect to vars.
// The returned function writes ∂e/∂vars[i] into grad[i].
func CompileGradient(e gosymbol.Expr, vars []string) (func(x, grad []float64), error) {
	parts := gosymbol.Gradient(e, vars)
	fs := make([]Func, len(parts))
	for i, d := range parts {
		f, err := Compile(d, vars)
		if err != nil {
			return nil, fmt.Errorf("∂/∂%s: %w", vars[i], err)
		}
		fs[i] = f
	}
	return func(x, grad []float64) {
		for i, f := range fs {
			grad[i] = f(x)
		}
	}, nil
}

// CompileHessian compiles the symbolic Hessian of e with respect to vars.
// The returned function writes ∂²e/∂vars[i]∂vars[j] into h[i*n+j].
func CompileHessian(e gosymbol.Expr, vars []string) (func(x, h []float64), error) {
	n := len(vars)
	hess := gosymbol.Hessian(e, vars)
	fs := make([]Func, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			f, err := Compile(hess.Get(i, j), vars)
			if err != nil {
				return nil, fmt.Errorf("∂²/∂%s∂%s: %w", vars[i], vars[j], err)
			}
			fs[i*n+j], fs[j*n+i] = f, f
		}
	}
	return func(x, h []float64) {
		for k, f := range fs {
			h[k] = f(x)
		}
	}, nil
}

type evalFn func(x []float64) float64

func compile(e gosymbol.Expr, index map[string]int) (evalFn, error) {
	switch v := e.(type) {
	case *gosymbol.Num:
		c := v.Float64()
		return func([]float64) float64 { return c }, nil

	case *gosymbol.Sym:
		i, ok := index[v.Name()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnbound, v.Name())
		}
		return func(x []float64) float64 { return x[i] }, nil

	case *gosymbol.Add:
		terms, err := compileAll(v.Terms(), index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 {
			var s float64
			for _, t := range terms {
				s += t(x)
			}
			return s
		}, nil

	case *gosymbol.Mul:
		factors, err := compileAll(v.Factors(), index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 {
			p := 1.0
			for _, f := range factors {
				p *= f(x)
			}
			return p
		}, nil

	case *gosymbol.Pow:
		base, err := compile(v.Base(), index)
		if err != nil {
			return nil, err
		}
		if n, ok := v.ExpExpr().(*gosymbol.Num); ok {
			switch c := n.Float64(); c {
			case 2:
				return func(x []float64) float64 { b := base(x); return b * b }, nil
			case -1:
				return func(x []float64) float64 { return 1 / base(x) }, nil
			case 0.5:
				return func(x []float64) float64 { return math.Sqrt(base(x)) }, nil
			default:
				return func(x []float64) float64 { return math.Pow(base(x), c) }, nil
			}
		}
		exp, err := compile(v.ExpExpr(), index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 { return math.Pow(base(x), exp(x)) }, nil

	case *gosymbol.Func:
		fn, ok := mathFuncs[v.FuncName()]
		if !ok {
			return nil, fmt.Errorf("%w: function %s", ErrUnsupported, v.FuncName())
		}
		arg, err := compile(v.Arg(), index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 { return fn(arg(x)) }, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, e)
}

func compileAll(es []gosymbol.Expr, index map[string]int) ([]evalFn, error) {
	fs := make([]evalFn, len(es))
	for i, e := range es {
		f, err := compile(e, index)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}
