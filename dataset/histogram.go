// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// BinMethod chooses the number of histogram bins.
type BinMethod int

const (
	// Fixed uses the requested count, 10 when none is given.
	Fixed BinMethod = iota
	// Sturges uses ⌈log₂𝑛⌉ + 1 bins.
	Sturges
	// Scott uses the width 3.49·𝜎·𝑛^(-1/3).
	Scott
	// FreedmanDiaconis uses the width 2·IQR·𝑛^(-1/3).
	FreedmanDiaconis
)

// DefaultBins is the bin count of Fixed when none is requested.
const DefaultBins = 10

var binMethodNames = []string{"fixed", "sturges", "scott", "fd"}

func (m BinMethod) String() string {
	if int(m) >= 0 && int(m) < len(binMethodNames) {
		return binMethodNames[m]
	}
	return fmt.Sprintf("BinMethod(%d)", int(m))
}

// ParseBinMethod accepts fixed, sturges, scott and fd (or freedman-diaconis).
func ParseBinMethod(s string) (BinMethod, error) {
	switch strings.ToLower(s) {
	case "", "fixed":
		return Fixed, nil
	case "sturges":
		return Sturges, nil
	case "scott":
		return Scott, nil
	case "fd", "freedman-diaconis":
		return FreedmanDiaconis, nil
	}
	return Fixed, fmt.Errorf("%w: %q", ErrBinMethod, s)
}

// Bins holds len(Counts)+1 increasing edges. Bin i covers [Edges[i], Edges[i+1])
// except the last one which also includes its upper edge.
type Bins struct {
	Edges  []float64 `json:"edges" yaml:"edges"`
	Counts []float64 `json:"counts" yaml:"counts"`
}

// Width of bin i.
func (b Bins) Width(i int) float64 { return b.Edges[i+1] - b.Edges[i] }

// Histogram bins xs over [min(xs), max(xs)]. bins is honored by Fixed only.
func Histogram(xs []float64, bins int, method BinMethod) (Bins, error) {
	if len(xs) == 0 {
		return Bins{}, ErrEmpty
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || math.IsNaN(lo) || math.IsNaN(hi) {
		return Bins{}, fmt.Errorf("%w: non-finite sample", ErrDegenerate)
	}

	k := binCount(sorted, bins, method)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, k+1)
	w := (hi - lo) / float64(k)
	for i := range edges {
		edges[i] = lo + float64(i)*w
	}
	edges[k] = hi

	// stat.Histogram excludes the highest divider
	dividers := slices.Clone(edges)
	dividers[k] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)
	return Bins{Edges: edges, Counts: counts}, nil
}

func binCount(sorted []float64, bins int, method BinMethod) int {
	n := float64(len(sorted))
	span := sorted[len(sorted)-1] - sorted[0]
	sturges := int(math.Ceil(math.Log2(n))) + 1
	var width float64
	switch method {
	case Sturges:
		return sturges
	case Scott:
		width = 3.49 * stat.StdDev(sorted, nil) * math.Cbrt(1/n)
	case FreedmanDiaconis:
		iqr := stat.Quantile(0.75, stat.Empirical, sorted, nil) - stat.Quantile(0.25, stat.Empirical, sorted, nil)
		width = 2 * iqr * math.Cbrt(1/n)
	default:
		if bins <= 0 {
			return DefaultBins
		}
		return bins
	}
	if !(width > 0) || span == 0 {
		return sturges
	}
	// A near-zero spread next to an outlier asks for more bins than there
	// are samples, or more than an int holds.
	k := math.Ceil(span / width)
	if math.IsNaN(k) || k > n {
		return sturges
	}
	return max(1, int(k))
}
