// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataset

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary is the five number summary plus mean and sample standard deviation.
type Summary struct {
	N      int     `json:"n" yaml:"n"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Min    float64 `json:"min" yaml:"min"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Median float64 `json:"median" yaml:"median"`
	Q3     float64 `json:"q3" yaml:"q3"`
	Max    float64 `json:"max" yaml:"max"`
}

// Describe summarizes xs. Quartiles are empirical: the smallest sample
// reaching the requested fraction of the data.
func Describe(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		return Summary{}, ErrEmpty
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		std = 0
	}
	return Summary{
		N:      len(sorted),
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}, nil
}

// Fit is a least squares line 𝑦 = Intercept + Slope·𝑥.
type Fit struct {
	Intercept   float64 `json:"intercept" yaml:"intercept"`
	Slope       float64 `json:"slope" yaml:"slope"`
	RSquared    float64 `json:"r_squared" yaml:"r_squared"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
}

// At evaluates the line.
func (f Fit) At(x float64) float64 { return f.Intercept + f.Slope*x }

// LinearFit regresses y on x.
func LinearFit(x, y []float64) (Fit, error) {
	switch {
	case len(x) != len(y):
		return Fit{}, fmt.Errorf("%w: %d x values and %d y values", ErrDimension, len(x), len(y))
	case len(x) < 2:
		return Fit{}, fmt.Errorf("%w: need two points, have %d", ErrEmpty, len(x))
	case floats.Min(x) == floats.Max(x):
		return Fit{}, fmt.Errorf("%w: x is constant", ErrDegenerate)
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	fit := Fit{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(x, y, nil, alpha, beta),
	}
	if floats.Min(y) == floats.Max(y) {
		// a horizontal line explains everything and correlates with nothing
		fit.RSquared, fit.Correlation = 1, 0
	} else {
		fit.Correlation = stat.Correlation(x, y, nil)
	}
	if math.IsNaN(fit.RSquared) {
		fit.RSquared = 0
	}
	return fit, nil
}
