// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, 30, cfg.Sparse.Grid)
	assert.Equal(t, WindConfig{X: 20, Y: 10}, cfg.Sparse.Wind)
	assert.Equal(t, 1e-8, cfg.Sparse.Tol)

	assert.Equal(t, []float64{3, 5}, cfg.Linprog.C)
	assert.Equal(t, [][]float64{{1, 0}, {0, 2}, {3, 2}}, cfg.Linprog.Aub)
	assert.True(t, cfg.Linprog.Maximize)
	require.Len(t, cfg.Linprog.Upper, 2)
	assert.True(t, math.IsInf(cfg.Linprog.Upper[0], 1))

	assert.Equal(t, []string{"x", "y"}, cfg.NLP.Vars)
	assert.Equal(t, []string{"x^2 + y^2 - 1"}, cfg.NLP.Ineq)
	assert.Equal(t, "sqp", cfg.NLP.Algorithm)

	assert.Equal(t, "x*y", cfg.Lagrange.Objective)
	assert.Equal(t, uint64(1), cfg.Lagrange.Seed)

	assert.Equal(t, "sturges", cfg.Stats.Method)
	assert.Empty(t, cfg.Stats.File)
}

func TestFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sparse:
  grid: 12
  precond: jacobi
linprog:
  c: [1, 1, 1]
  aub: [[1, 2, 3]]
  bub: [6]
  lower: [0, 0, -.inf]
  upper: [1, .inf, .inf]
  maximize: false
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Sparse.Grid)
	assert.Equal(t, "jacobi", cfg.Sparse.Precond)
	assert.Equal(t, "bicgstab", cfg.Sparse.Solver, "untouched keys keep their default")
	assert.Equal(t, []float64{1, 1, 1}, cfg.Linprog.C)
	assert.True(t, math.IsInf(cfg.Linprog.Lower[2], -1))
	assert.False(t, cfg.Linprog.Maximize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("OPTLAB_SPARSE_TOL", "1e-4")
	t.Setenv("OPTLAB_NLP_ALGORITHM", "nelder-mead")
	t.Setenv("OPTLAB_STATS_BINS", "7")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1e-4, cfg.Sparse.Tol)
	assert.Equal(t, "nelder-mead", cfg.NLP.Algorithm)
	assert.Equal(t, 7, cfg.Stats.Bins)
}

func TestFlagOverride(t *testing.T) {
	fs := pflag.NewFlagSet("optlab", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.String("log-format", "console", "")
	fs.String("output", "text", "")
	fs.String("metrics-file", "", "")
	require.NoError(t, fs.Parse([]string{"--output", "json", "--log-level=debug"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"output", func(c *Config) { c.Output.Format = "csv" }},
		{"grid", func(c *Config) { c.Sparse.Grid = 1 }},
		{"solver", func(c *Config) { c.Sparse.Solver = "gmres" }},
		{"precond", func(c *Config) { c.Sparse.Precond = "ic" }},
		{"sparse tol", func(c *Config) { c.Sparse.Tol = 0 }},
		{"maxiter", func(c *Config) { c.Sparse.MaxIter = 0 }},
		{"linprog c", func(c *Config) { c.Linprog.C = nil }},
		{"linprog rows", func(c *Config) { c.Linprog.Bub = c.Linprog.Bub[:2] }},
		{"linprog columns", func(c *Config) { c.Linprog.Aub[0] = []float64{1} }},
		{"linprog bounds", func(c *Config) { c.Linprog.Lower = []float64{2, 0}; c.Linprog.Upper = []float64{1, 1} }},
		{"nlp vars", func(c *Config) { c.NLP.Vars = nil }},
		{"nlp x0", func(c *Config) { c.NLP.X0 = []float64{0} }},
		{"nlp algorithm", func(c *Config) { c.NLP.Algorithm = "interior-point" }},
		{"nlp gradient", func(c *Config) { c.NLP.Gradient = "exact" }},
		{"nlp fd", func(c *Config) { c.NLP.FD = "complex-step" }},
		{"nlp lower", func(c *Config) { c.NLP.Lower = []float64{0} }},
		{"lagrange objective", func(c *Config) { c.Lagrange.Objective = "" }},
		{"lagrange points", func(c *Config) { c.Lagrange.Points = [][]float64{{1}} }},
		{"stats x", func(c *Config) { c.Stats.X = "" }},
		{"stats method", func(c *Config) { c.Stats.Method = "auto" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
