// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/optlab/dataset"
	"github.com/curioloop/optlab/internal/logging"
	"github.com/curioloop/optlab/nlp"
	"github.com/curioloop/optlab/numdiff"
)

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func (c *LogConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "console", "json":
		return nil
	}
	return fmt.Errorf("format must be console or json, got %q", c.Format)
}

// Output formats understood by the report package.
var Outputs = []string{"text", "json", "yaml"}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

func (c *OutputConfig) Validate() error {
	if !slices.Contains(Outputs, c.Format) {
		return fmt.Errorf("format must be one of %v, got %q", Outputs, c.Format)
	}
	return nil
}

type MetricsConfig struct {
	// File receives the registry in text exposition format when set.
	File string `mapstructure:"file" yaml:"file"`
}

type WindConfig struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
}

type SparseConfig struct {
	Grid    int        `mapstructure:"grid" yaml:"grid"`
	Wind    WindConfig `mapstructure:"wind" yaml:"wind"`
	Solver  string     `mapstructure:"solver" yaml:"solver"`
	Precond string     `mapstructure:"precond" yaml:"precond"`
	Tol     float64    `mapstructure:"tol" yaml:"tol"`
	MaxIter int        `mapstructure:"maxiter" yaml:"maxiter"`
	// Matrix is a MatrixMarket file replacing the generated grid operator.
	Matrix string `mapstructure:"matrix" yaml:"matrix"`
}

func (c *SparseConfig) Validate() error {
	switch {
	case c.Matrix == "" && c.Grid < 2:
		return fmt.Errorf("grid must be at least 2, got %d", c.Grid)
	case c.Solver != "bicgstab" && c.Solver != "cg":
		return fmt.Errorf("solver must be bicgstab or cg, got %q", c.Solver)
	case !slices.Contains([]string{"none", "jacobi", "ilu0"}, c.Precond):
		return fmt.Errorf("precond must be none, jacobi or ilu0, got %q", c.Precond)
	case !(c.Tol > 0 && c.Tol < 1):
		return fmt.Errorf("tol must be in (0, 1), got %g", c.Tol)
	case c.MaxIter <= 0:
		return fmt.Errorf("maxiter must be positive, got %d", c.MaxIter)
	}
	return nil
}

type LinprogConfig struct {
	C        []float64   `mapstructure:"c" yaml:"c"`
	Aub      [][]float64 `mapstructure:"aub" yaml:"aub"`
	Bub      []float64   `mapstructure:"bub" yaml:"bub"`
	Aeq      [][]float64 `mapstructure:"aeq" yaml:"aeq"`
	Beq      []float64   `mapstructure:"beq" yaml:"beq"`
	Lower    []float64   `mapstructure:"lower" yaml:"lower"`
	Upper    []float64   `mapstructure:"upper" yaml:"upper"`
	Maximize bool        `mapstructure:"maximize" yaml:"maximize"`
	Tol      float64     `mapstructure:"tol" yaml:"tol"`
}

func (c *LinprogConfig) Validate() error {
	n := len(c.C)
	if n == 0 {
		return errors.New("c must not be empty")
	}
	if err := rows("aub", c.Aub, c.Bub, n); err != nil {
		return err
	}
	if err := rows("aeq", c.Aeq, c.Beq, n); err != nil {
		return err
	}
	if err := bounds(c.Lower, c.Upper, n); err != nil {
		return err
	}
	if c.Tol < 0 {
		return fmt.Errorf("tol must not be negative, got %g", c.Tol)
	}
	return nil
}

func rows(name string, a [][]float64, b []float64, n int) error {
	if len(a) != len(b) {
		return fmt.Errorf("%s has %d rows for %d right-hand sides", name, len(a), len(b))
	}
	for i, r := range a {
		if len(r) != n {
			return fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(r), n)
		}
	}
	return nil
}

func bounds(lower, upper []float64, n int) error {
	if len(lower) != 0 && len(lower) != n {
		return fmt.Errorf("%d lower bounds for %d variables", len(lower), n)
	}
	if len(upper) != 0 && len(upper) != n {
		return fmt.Errorf("%d upper bounds for %d variables", len(upper), n)
	}
	if len(lower) != 0 && len(upper) != 0 {
		for j := range lower {
			if lower[j] > upper[j] {
				return fmt.Errorf("variable %d has lower bound %g above upper bound %g", j, lower[j], upper[j])
			}
		}
	}
	return nil
}

type NLPConfig struct {
	Vars      []string    `mapstructure:"vars" yaml:"vars"`
	Objective string      `mapstructure:"objective" yaml:"objective"`
	Ineq      []string    `mapstructure:"ineq" yaml:"ineq"`
	Eq        []string    `mapstructure:"eq" yaml:"eq"`
	A         [][]float64 `mapstructure:"a" yaml:"a"`
	B         []float64   `mapstructure:"b" yaml:"b"`
	Aeq       [][]float64 `mapstructure:"aeq" yaml:"aeq"`
	Beq       []float64   `mapstructure:"beq" yaml:"beq"`
	X0        []float64   `mapstructure:"x0" yaml:"x0"`
	Lower     []float64   `mapstructure:"lower" yaml:"lower"`
	Upper     []float64   `mapstructure:"upper" yaml:"upper"`
	Algorithm string      `mapstructure:"algorithm" yaml:"algorithm"`
	// Gradient is symbolic or numeric.
	Gradient string  `mapstructure:"gradient" yaml:"gradient"`
	FD       string  `mapstructure:"fd" yaml:"fd"`
	MaxIter  int     `mapstructure:"maxiter" yaml:"maxiter"`
	Tol      float64 `mapstructure:"tol" yaml:"tol"`
}

func (c *NLPConfig) Validate() error {
	n := len(c.Vars)
	switch {
	case n == 0:
		return errors.New("vars must not be empty")
	case c.Objective == "":
		return errors.New("objective must not be empty")
	case len(c.X0) != n:
		return fmt.Errorf("x0 has %d values for %d variables", len(c.X0), n)
	case c.Gradient != "symbolic" && c.Gradient != "numeric":
		return fmt.Errorf("gradient must be symbolic or numeric, got %q", c.Gradient)
	case c.MaxIter <= 0:
		return fmt.Errorf("maxiter must be positive, got %d", c.MaxIter)
	case c.Tol < 0:
		return fmt.Errorf("tol must not be negative, got %g", c.Tol)
	}
	if _, err := nlp.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if _, err := numdiff.ParseMethod(c.FD); err != nil {
		return err
	}
	if err := rows("a", c.A, c.B, n); err != nil {
		return err
	}
	if err := rows("aeq", c.Aeq, c.Beq, n); err != nil {
		return err
	}
	return bounds(c.Lower, c.Upper, n)
}

type LagrangeConfig struct {
	Vars        []string    `mapstructure:"vars" yaml:"vars"`
	Objective   string      `mapstructure:"objective" yaml:"objective"`
	Constraints []string    `mapstructure:"constraints" yaml:"constraints"`
	Points      [][]float64 `mapstructure:"points" yaml:"points"`
	Starts      int         `mapstructure:"starts" yaml:"starts"`
	Radius      float64     `mapstructure:"radius" yaml:"radius"`
	Seed        uint64      `mapstructure:"seed" yaml:"seed"`
	Tol         float64     `mapstructure:"tol" yaml:"tol"`
}

func (c *LagrangeConfig) Validate() error {
	switch {
	case c.Objective == "":
		return errors.New("objective must not be empty")
	case c.Starts < 0:
		return fmt.Errorf("starts must not be negative, got %d", c.Starts)
	case c.Radius < 0 || math.IsInf(c.Radius, 0):
		return fmt.Errorf("radius must be finite and not negative, got %g", c.Radius)
	case c.Tol < 0:
		return fmt.Errorf("tol must not be negative, got %g", c.Tol)
	}
	for i, p := range c.Points {
		if len(c.Vars) != 0 && len(p) != len(c.Vars) {
			return fmt.Errorf("point %d has %d values for %d variables", i, len(p), len(c.Vars))
		}
	}
	return nil
}

type StatsConfig struct {
	File      string `mapstructure:"file" yaml:"file"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet"`
	X         string `mapstructure:"x" yaml:"x"`
	Y         string `mapstructure:"y" yaml:"y"`
	Bins      int    `mapstructure:"bins" yaml:"bins"`
	Method    string `mapstructure:"method" yaml:"method"`
	Scatter   string `mapstructure:"scatter" yaml:"scatter"`
	Histogram string `mapstructure:"histogram" yaml:"histogram"`
}

func (c *StatsConfig) Validate() error {
	switch {
	case c.X == "":
		return errors.New("x column must not be empty")
	case c.Bins < 0:
		return fmt.Errorf("bins must not be negative, got %d", c.Bins)
	}
	_, err := dataset.ParseBinMethod(c.Method)
	return err
}
