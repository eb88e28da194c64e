// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestNewCSR(t *testing.T) {
	tests := []struct {
		name    string
		r, c    int
		indptr  []int
		indices []int
		data    []float64
		err     error
	}{
		{"valid", 2, 3, []int{0, 2, 3}, []int{0, 2, 1}, []float64{1, 2, 3}, nil},
		{"empty rows", 2, 2, []int{0, 0, 0}, nil, nil, nil},
		{"zero dimension", 0, 2, []int{0}, nil, nil, ErrDimension},
		{"short indptr", 2, 2, []int{0, 1}, []int{0}, []float64{1}, ErrDimension},
		{"value count", 1, 2, []int{0, 1}, []int{0}, []float64{1, 2}, ErrDimension},
		{"indptr span", 1, 2, []int{1, 1}, []int{0}, []float64{1}, ErrFormat},
		{"decreasing indptr", 2, 2, []int{0, 2, 1}, []int{0, 1}, []float64{1, 2}, ErrFormat},
		{"indptr past data", 2, 2, []int{0, 5, 2}, []int{0, 1}, []float64{1, 2}, ErrFormat},
		{"indptr past data later row", 3, 2, []int{0, 1, 4, 2}, []int{0, 1}, []float64{1, 2}, ErrFormat},
		{"column range", 1, 2, []int{0, 1}, []int{2}, []float64{1}, ErrIndex},
		{"unsorted columns", 1, 3, []int{0, 2}, []int{2, 0}, []float64{1, 2}, ErrFormat},
		{"duplicate columns", 1, 3, []int{0, 2}, []int{1, 1}, []float64{1, 2}, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewCSR(tt.r, tt.c, tt.indptr, tt.indices, tt.data)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			r, c := m.Dims()
			assert.Equal(t, tt.r, r)
			assert.Equal(t, tt.c, c)
		})
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(3, 3)
	b.Add(2, 0, 1)
	b.Add(0, 2, 5)
	b.Add(0, 0, 1)
	b.Add(0, 0, 2) // summed with the previous entry
	b.Add(1, 1, 0)
	m, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, 4, m.NNZ())
	assert.Equal(t, 3.0, m.At(0, 0))
	assert.Equal(t, 5.0, m.At(0, 2))
	assert.Equal(t, 0.0, m.At(1, 2))
	assert.Equal(t, []float64{3, 0, 0}, m.Diagonal())

	cols, vals := m.RowView(0)
	assert.Equal(t, []int{0, 2}, cols)
	assert.Equal(t, []float64{3, 5}, vals)

	want := mat.NewDense(3, 3, []float64{
		3, 0, 5,
		0, 0, 0,
		1, 0, 0,
	})
	assert.True(t, mat.Equal(want, m.ToDense()))
	assert.True(t, mat.Equal(want.T(), m.T()))

	b = NewBuilder(2, 2)
	b.Add(0, 2, 1)
	b.Add(0, 0, 1)
	_, err = b.Build()
	require.ErrorIs(t, err, ErrIndex)

	_, err = NewBuilder(0, 1).Build()
	require.ErrorIs(t, err, ErrDimension)
}

func TestMulVec(t *testing.T) {
	m, err := ConvectionDiffusion2D(4, Wind{X: 20, Y: -10})
	require.NoError(t, err)
	d := m.ToDense()
	n, _ := m.Dims()

	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i%7) - 2.5
	}

	got := make([]float64, n)
	m.MulVecTo(got, x)
	want := mat.NewVecDense(n, nil)
	want.MulVec(d, mat.NewVecDense(n, x))
	assert.True(t, floats.EqualApprox(got, want.RawVector().Data, 1e-12))

	m.MulVecTransTo(got, x)
	want.MulVec(d.T(), mat.NewVecDense(n, x))
	assert.True(t, floats.EqualApprox(got, want.RawVector().Data, 1e-12))

	assert.Panics(t, func() { m.MulVecTo(got[:1], x) })
}

func TestBanded(t *testing.T) {
	m, err := Banded(4, map[int]float64{-1: -1, 0: 2, 1: -1})
	require.NoError(t, err)
	assert.Equal(t, 10, m.NNZ())
	assert.True(t, mat.Equal(mat.NewDense(4, 4, []float64{
		2, -1, 0, 0,
		-1, 2, -1, 0,
		0, -1, 2, -1,
		0, 0, -1, 2,
	}), m))

	id, err := Identity(3)
	require.NoError(t, err)
	assert.True(t, mat.Equal(id, mat.NewDiagDense(3, []float64{1, 1, 1})))

	_, err = Banded(3, map[int]float64{3: 1})
	require.ErrorIs(t, err, ErrIndex)
	_, err = Banded(0, nil)
	require.ErrorIs(t, err, ErrDimension)
}

func TestPoisson2D(t *testing.T) {
	const m = 3
	a, err := Poisson2D(m)
	require.NoError(t, err)

	n, c := a.Dims()
	require.Equal(t, m*m, n)
	require.Equal(t, n, c)
	assert.Equal(t, 5*n-4*m, a.NNZ())
	assert.True(t, mat.Equal(a, a.T()), "laplacian must be symmetric")

	var chol mat.Cholesky
	assert.True(t, chol.Factorize(denseSym(a)), "laplacian must be positive definite")

	// corner rows couple to two neighbours, the center row to four
	assert.Equal(t, 2.0, rowSum(a, 0))
	assert.Equal(t, 0.0, rowSum(a, 4))
}

func TestConvectionDiffusion2D(t *testing.T) {
	p, err := Poisson2D(5)
	require.NoError(t, err)
	a, err := ConvectionDiffusion2D(5, Wind{})
	require.NoError(t, err)
	assert.True(t, mat.Equal(p, a), "zero wind reduces to the laplacian")

	a, err = ConvectionDiffusion2D(5, Wind{X: 50, Y: 50})
	require.NoError(t, err)
	assert.False(t, mat.Equal(a, a.T()))
	assert.InDelta(t, 0, rowSum(a, 12), 1e-12)
	for i, d := range a.Diagonal() {
		assert.Greater(t, d, 4.0, "diagonal %d", i)
	}

	_, err = ConvectionDiffusion2D(0, Wind{})
	require.ErrorIs(t, err, ErrDimension)
}

func TestMatrixMarket(t *testing.T) {
	const src = `%%MatrixMarket matrix coordinate real symmetric
% lower triangle of a 3x3 matrix
3 3 4
1 1 4.0
2 1 -1
2 2 4
3 3 2.5e0
`
	m, err := ReadMatrixMarket(strings.NewReader(src))
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(3, 3, []float64{
		4, -1, 0,
		-1, 4, 0,
		0, 0, 2.5,
	}), m))

	var buf bytes.Buffer
	require.NoError(t, WriteMatrixMarket(&buf, m))
	assert.True(t, strings.HasPrefix(buf.String(), "%%MatrixMarket matrix coordinate real general\n3 3 5\n"))

	back, err := ReadMatrixMarket(&buf)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, back))

	skew, err := ReadMatrixMarket(strings.NewReader(
		"%%MatrixMarket matrix coordinate integer skew-symmetric\n2 2 1\n2 1 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, skew.At(1, 0))
	assert.Equal(t, -3.0, skew.At(0, 1))

	pattern, err := ReadMatrixMarket(strings.NewReader(
		"%%MatrixMarket matrix coordinate pattern general\n2 3 2\n1 3\n2 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pattern.At(0, 2))
	assert.Equal(t, 1.0, pattern.At(1, 1))
}

func TestMatrixMarketErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{"empty", "", ErrFormat},
		{"banner", "%%Matrix matrix coordinate real general\n", ErrFormat},
		{"array format", "%%MatrixMarket matrix array real general\n1 1\n1\n", ErrFormat},
		{"complex field", "%%MatrixMarket matrix coordinate complex general\n", ErrFormat},
		{"hermitian", "%%MatrixMarket matrix coordinate real hermitian\n", ErrFormat},
		{"missing size", "%%MatrixMarket matrix coordinate real general\n% only comments\n", ErrFormat},
		{"truncated", "%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 1\n", ErrFormat},
		{"field count", "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 1\n", ErrFormat},
		{"bad value", "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 1 x\n", ErrFormat},
		{"out of range", "%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 1\n", ErrIndex},
		{"rectangular symmetric", "%%MatrixMarket matrix coordinate real symmetric\n2 3 0\n", ErrDimension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMatrixMarket(strings.NewReader(tt.src))
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func rowSum(m *CSR, i int) float64 {
	_, vals := m.RowView(i)
	return floats.Sum(vals)
}

func denseSym(m *CSR) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, m.At(i, j))
		}
	}
	return s
}
