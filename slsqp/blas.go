// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"gonum.org/v1/gonum/blas/blas64"
)

// The kernels address packed column-major workspaces with explicit strides,
// which is the calling convention of the level 1 BLAS. The wrappers below
// keep the Fortran behaviour of treating a non-positive length as a no-op,
// where gonum panics.
var bl = blas64.Implementation()

func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == 0 {
		return
	}
	bl.Daxpy(n, da, dx, incx, dy, incy)
}

func ddot(n int, dx []float64, incx int, dy []float64, incy int) float64 {
	if n <= 0 {
		return 0
	}
	return bl.Ddot(n, dx, incx, dy, incy)
}

func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	bl.Dcopy(n, dx, incx, dy, incy)
}

func dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	bl.Dscal(n, da, dx, incx)
}

func dnrm2(n int, x []float64, incx int) float64 {
	if n <= 0 || incx <= 0 {
		return 0
	}
	return bl.Dnrm2(n, x, incx)
}

// dswap exchanges n elements of x and y.
func dswap(n int, x []float64, incx int, y []float64, incy int) {
	if n <= 0 {
		return
	}
	bl.Dswap(n, x, incx, y, incy)
}

// drot applies the plane rotation (c, s) to the pairs (x[i], y[i]).
func drot(n int, x []float64, incx int, y []float64, incy int, c, s float64) {
	if n <= 0 {
		return
	}
	bl.Drot(n, x, incx, y, incy, c, s)
}

// dzero fills vector x with zero.
func dzero(x []float64) { clear(x) }
