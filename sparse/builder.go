// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"fmt"
	"slices"
)

type triplet struct {
	i, j int
	v    float64
}

// Builder accumulates coordinate triplets into a CSR matrix.
// Duplicate entries are summed.
type Builder struct {
	r, c int
	ts   []triplet
	err  error
}

// NewBuilder creates a builder for an r×c matrix.
func NewBuilder(r, c int) *Builder {
	b := &Builder{r: r, c: c}
	if r <= 0 || c <= 0 {
		b.err = fmt.Errorf("%w: %d×%d", ErrDimension, r, c)
	}
	return b
}

// Add appends v at (i, j). The first out of range index is reported by Build.
func (b *Builder) Add(i, j int, v float64) {
	if b.err != nil {
		return
	}
	if i < 0 || i >= b.r || j < 0 || j >= b.c {
		b.err = fmt.Errorf("%w: (%d, %d) in %d×%d", ErrIndex, i, j, b.r, b.c)
		return
	}
	b.ts = append(b.ts, triplet{i, j, v})
}

// Build assembles the matrix. Explicit zeros are kept.
func (b *Builder) Build() (*CSR, error) {
	if b.err != nil {
		return nil, b.err
	}
	ts := slices.Clone(b.ts)
	slices.SortStableFunc(ts, func(a, b triplet) int {
		if a.i != b.i {
			return a.i - b.i
		}
		return a.j - b.j
	})

	indptr := make([]int, b.r+1)
	indices := make([]int, 0, len(ts))
	data := make([]float64, 0, len(ts))
	for k := 0; k < len(ts); {
		t := ts[k]
		v := t.v
		for k++; k < len(ts) && ts[k].i == t.i && ts[k].j == t.j; k++ {
			v += ts[k].v
		}
		indices = append(indices, t.j)
		data = append(data, v)
		indptr[t.i+1]++
	}
	for i := 0; i < b.r; i++ {
		indptr[i+1] += indptr[i]
	}
	return &CSR{r: b.r, c: b.c, indptr: indptr, indices: indices, data: data}, nil
}
