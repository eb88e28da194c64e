// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"fmt"
	"math"
	"sort"
)

// Identity returns the n×n identity.
func Identity(n int) (*CSR, error) {
	return Banded(n, map[int]float64{0: 1})
}

// Banded returns an n×n matrix with constant diagonals.
// Key k selects the k-th super diagonal (k > 0) or sub diagonal (k < 0).
func Banded(n int, bands map[int]float64) (*CSR, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: order %d", ErrDimension, n)
	}
	offsets := make([]int, 0, len(bands))
	for k := range bands {
		if k <= -n || k >= n {
			return nil, fmt.Errorf("%w: diagonal %d of order %d", ErrIndex, k, n)
		}
		offsets = append(offsets, k)
	}
	sort.Ints(offsets)

	b := NewBuilder(n, n)
	for i := 0; i < n; i++ {
		for _, k := range offsets {
			if j := i + k; j >= 0 && j < n {
				b.Add(i, j, bands[k])
			}
		}
	}
	return b.Build()
}

// Poisson2D returns the 5-point finite-difference Laplacian on an m×m
// interior grid with Dirichlet boundary. The order is m² and the matrix is SPD.
func Poisson2D(m int) (*CSR, error) {
	return grid5(m, func(int, int) [5]float64 {
		return [5]float64{4, -1, -1, -1, -1}
	})
}

// Wind is the constant velocity field of a convection–diffusion problem.
type Wind struct {
	X, Y float64
}

// ConvectionDiffusion2D returns the first-order upwind discretization of
// -Δu + w·∇u on the unit square with an m×m interior grid, scaled by h².
// The matrix is nonsymmetric whenever the wind is nonzero.
func ConvectionDiffusion2D(m int, w Wind) (*CSR, error) {
	h := 1 / float64(m+1)
	px, nx := math.Max(w.X, 0)*h, math.Min(w.X, 0)*h
	py, ny := math.Max(w.Y, 0)*h, math.Min(w.Y, 0)*h
	return grid5(m, func(int, int) [5]float64 {
		return [5]float64{
			4 + px - nx + py - ny,
			-1 - px, // west
			-1 + nx, // east
			-1 - py, // south
			-1 + ny, // north
		}
	})
}

// grid5 assembles a 5-point stencil {center, west, east, south, north}
// over an m×m grid in natural ordering.
func grid5(m int, stencil func(ix, iy int) [5]float64) (*CSR, error) {
	if m <= 0 {
		return nil, fmt.Errorf("%w: grid %d", ErrDimension, m)
	}
	n := m * m
	indptr := make([]int, n+1)
	indices := make([]int, 0, 5*n)
	data := make([]float64, 0, 5*n)
	for iy := 0; iy < m; iy++ {
		for ix := 0; ix < m; ix++ {
			row := iy*m + ix
			s := stencil(ix, iy)
			// columns in increasing order: south, west, center, east, north
			if iy > 0 {
				indices, data = append(indices, row-m), append(data, s[3])
			}
			if ix > 0 {
				indices, data = append(indices, row-1), append(data, s[1])
			}
			indices, data = append(indices, row), append(data, s[0])
			if ix < m-1 {
				indices, data = append(indices, row+1), append(data, s[2])
			}
			if iy < m-1 {
				indices, data = append(indices, row+m), append(data, s[4])
			}
			indptr[row+1] = len(data)
		}
	}
	return &CSR{r: n, c: n, indptr: indptr, indices: indices, data: data}, nil
}
