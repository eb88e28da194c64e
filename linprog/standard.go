// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linprog

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// varKind tells how an original variable maps to non-negative columns.
type varKind int

const (
	shifted  varKind = iota // 𝑥 = 𝑙 + 𝑧
	mirrored                // 𝑥 = 𝑢 - 𝑧
	split                   // 𝑥 = 𝑧⁺ - 𝑧⁻
)

type variable struct {
	kind     varKind
	off      float64
	z        int // first standard column
	boundRow int // row of 𝑧 + 𝑤 = 𝑢 - 𝑙, or -1
}

// standard is the program rewritten as min 𝐜ᵀ𝐳 s.t. 𝐀𝐳 = 𝐛, 𝐳 ≥ 0,
// with rows scaled by sign so that 𝐛 ≥ 0.
type standard struct {
	status  Status
	vars    []variable
	c       []float64
	a       *mat.Dense // nil without rows
	b       []float64
	sign    []float64
	ineqRow []int // standard row of each inequality, -1 if dropped
	eqRow   []int // standard row of each equality, -1 if dropped
	keep    []int // columns handed to the simplex
}

func (sf *standard) dims() (rows, cols int) {
	return len(sf.b), len(sf.c)
}

func zeroRow(a mat.Matrix, i int) bool {
	_, c := a.Dims()
	for j := 0; j < c; j++ {
		if a.At(i, j) != 0 {
			return false
		}
	}
	return true
}

// rankTol is the singular value, relative to the largest, below which
// equality rows count as linearly dependent.
const rankTol = 1e-10

// dropDependent marks with -1 the rows of 𝐀ₑ𝐱 = 𝐛ₑ not yet marked that are
// combinations of earlier kept rows, so the simplex sees a full row rank
// system. It reports false when such a row contradicts the rows it depends on.
func dropDependent(a mat.Matrix, b []float64, row []int) bool {
	if len(row) == 0 {
		return true
	}
	_, n := a.Dims()
	var coef, aug [][]float64
	for i, r := range row {
		if r < 0 {
			continue
		}
		ai := make([]float64, n)
		mat.Row(ai, i, a)
		ci := append(coef, ai)
		if rank(ci) == len(ci) {
			coef = ci
			aug = append(aug, append(ai[:n:n], b[i]))
			continue
		}
		if rank(append(aug, append(ai[:n:n], b[i]))) > len(coef) {
			return false
		}
		row[i] = -1
	}
	return true
}

// rank returns the numerical rank of the matrix with the given rows.
func rank(rows [][]float64) int {
	a := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		a.SetRow(i, r)
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return 0
	}
	return svd.Rank(rankTol)
}

func toStandard(p *Problem) *standard {
	n := len(p.C)
	sf := &standard{vars: make([]variable, n)}

	cost := make([]float64, n)
	copy(cost, p.C)
	if p.Maximize {
		for j := range cost {
			cost[j] = -cost[j]
		}
	}

	// presolve rows without coefficients
	rows := 0
	sf.ineqRow = make([]int, len(p.Bub))
	for i := range sf.ineqRow {
		if zeroRow(p.Aub, i) {
			if p.Bub[i] < 0 {
				sf.status = Infeasible
				return sf
			}
			sf.ineqRow[i] = -1
			continue
		}
		sf.ineqRow[i] = rows
		rows++
	}
	sf.eqRow = make([]int, len(p.Beq))
	for i := range sf.eqRow {
		if zeroRow(p.Aeq, i) {
			if p.Beq[i] != 0 {
				sf.status = Infeasible
				return sf
			}
			sf.eqRow[i] = -1
		}
	}
	if !dropDependent(p.Aeq, p.Beq, sf.eqRow) {
		sf.status = Infeasible
		return sf
	}
	for i, r := range sf.eqRow {
		if r < 0 {
			continue
		}
		sf.eqRow[i] = rows
		rows++
	}

	cols := 0
	for j := range sf.vars {
		v := &sf.vars[j]
		l, u := p.bounds(j)
		v.z, v.boundRow = cols, -1
		switch {
		case !math.IsInf(l, 0):
			v.kind, v.off = shifted, l
			if !math.IsInf(u, 0) {
				v.boundRow = rows
				rows++
			}
			cols++
		case !math.IsInf(u, 0):
			v.kind, v.off = mirrored, u
			cols++
		default:
			v.kind = split
			cols += 2
		}
	}
	slack := cols
	for _, r := range sf.ineqRow {
		if r >= 0 {
			cols++
		}
	}
	for _, v := range sf.vars {
		if v.boundRow >= 0 {
			cols++
		}
	}

	sf.c = make([]float64, cols)
	for j, v := range sf.vars {
		switch v.kind {
		case shifted:
			sf.c[v.z] = cost[j]
		case mirrored:
			sf.c[v.z] = -cost[j]
		case split:
			sf.c[v.z], sf.c[v.z+1] = cost[j], -cost[j]
		}
	}

	sf.b = make([]float64, rows)
	sf.sign = make([]float64, rows)
	if rows > 0 {
		sf.a = mat.NewDense(rows, cols, nil)
	}

	// put writes the coefficient of 𝑥ⱼ into row r and moves its offset to the rhs.
	put := func(r, j int, aij float64) {
		v := sf.vars[j]
		sf.b[r] -= aij * v.off
		switch v.kind {
		case shifted:
			sf.a.Set(r, v.z, aij)
		case mirrored:
			sf.a.Set(r, v.z, -aij)
		case split:
			sf.a.Set(r, v.z, aij)
			sf.a.Set(r, v.z+1, -aij)
		}
	}
	for i, r := range sf.ineqRow {
		if r < 0 {
			continue
		}
		sf.b[r] = p.Bub[i]
		for j := 0; j < n; j++ {
			if aij := p.Aub.At(i, j); aij != 0 {
				put(r, j, aij)
			}
		}
		sf.a.Set(r, slack, 1)
		slack++
	}
	for i, r := range sf.eqRow {
		if r < 0 {
			continue
		}
		sf.b[r] = p.Beq[i]
		for j := 0; j < n; j++ {
			if aij := p.Aeq.At(i, j); aij != 0 {
				put(r, j, aij)
			}
		}
	}
	for j, v := range sf.vars {
		if v.boundRow < 0 {
			continue
		}
		_, u := p.bounds(j)
		r := v.boundRow
		sf.a.Set(r, v.z, 1)
		sf.a.Set(r, slack, 1)
		sf.b[r] = u - v.off
		slack++
	}

	for r := range sf.sign {
		sf.sign[r] = 1
		if sf.b[r] < 0 {
			sf.sign[r] = -1
			sf.b[r] = -sf.b[r]
			row := sf.a.RawRowView(r)
			for k := range row {
				row[k] = -row[k]
			}
		}
	}

	// presolve columns without coefficients: fixed at zero unless the cost
	// decreases along them
	for k := 0; k < cols; k++ {
		zero := true
		for r := 0; r < rows && zero; r++ {
			zero = sf.a.At(r, k) == 0
		}
		if !zero {
			sf.keep = append(sf.keep, k)
		} else if sf.c[k] < 0 {
			sf.status = Unbounded
			return sf
		}
	}
	return sf
}

// solve runs the simplex over the kept columns and returns all of 𝐳.
func (sf *standard) solve(tol float64) ([]float64, Status) {
	rows, cols := sf.dims()
	z := make([]float64, cols)
	if rows == 0 {
		return z, Optimal
	}
	if rows > len(sf.keep) {
		return nil, Singular
	}
	ck, ak := sf.restrict()
	_, zk, err := lp.Simplex(ck, ak, sf.b, tol, nil)
	if status := simplexStatus(err); status != Optimal {
		return nil, status
	}
	for k, col := range sf.keep {
		z[col] = max(zk[k], 0)
	}
	return z, Optimal
}

func (sf *standard) restrict() ([]float64, *mat.Dense) {
	rows, _ := sf.dims()
	ck := make([]float64, len(sf.keep))
	ak := mat.NewDense(rows, len(sf.keep), nil)
	for k, col := range sf.keep {
		ck[k] = sf.c[col]
		for r := 0; r < rows; r++ {
			ak.Set(r, k, sf.a.At(r, col))
		}
	}
	return ck, ak
}

// recover maps the standard solution back to the original variables.
func (sf *standard) recover(z []float64) []float64 {
	x := make([]float64, len(sf.vars))
	for j, v := range sf.vars {
		switch v.kind {
		case shifted:
			x[j] = v.off + z[v.z]
		case mirrored:
			x[j] = v.off - z[v.z]
		case split:
			x[j] = z[v.z] - z[v.z+1]
		}
	}
	return x
}

// multipliers solves the dual program
//
//	maximize 𝐛ᵀ𝐲  s.t.  𝐀ᵀ𝐲 ≤ 𝐜
//
// with 𝐲 = 𝐲⁺ - 𝐲⁻ and slacks, then maps 𝐲 and the reduced costs
// 𝐝 = 𝐜 - 𝐀ᵀ𝐲 to the multipliers of the original constraints.
func (sf *standard) multipliers(tol float64) (Lambda, error) {
	rows, cols := sf.dims()
	y := make([]float64, rows)

	if rows > 0 {
		nk := len(sf.keep)
		dc := make([]float64, 2*rows+nk)
		da := mat.NewDense(nk, 2*rows+nk, nil)
		db := make([]float64, nk)
		for i := 0; i < rows; i++ {
			dc[i], dc[rows+i] = -sf.b[i], sf.b[i]
		}
		for k, col := range sf.keep {
			s := 1.0
			if sf.c[col] < 0 {
				s = -1
			}
			db[k] = s * sf.c[col]
			for i := 0; i < rows; i++ {
				aik := sf.a.At(i, col)
				da.Set(k, i, s*aik)
				da.Set(k, rows+i, -s*aik)
			}
			da.Set(k, 2*rows+k, s)
		}
		_, v, err := lp.Simplex(dc, da, db, tol, nil)
		if err != nil {
			return Lambda{}, fmt.Errorf("dual simplex: %w", err)
		}
		for i := range y {
			y[i] = v[i] - v[rows+i]
		}
	}

	d := make([]float64, cols)
	for k := range d {
		d[k] = sf.c[k]
		for i := 0; i < rows; i++ {
			d[k] -= sf.a.At(i, k) * y[i]
		}
	}
	// undo the row scaling
	for i := range y {
		y[i] *= sf.sign[i]
	}

	n := len(sf.vars)
	lambda := Lambda{
		Ineq:  make([]float64, len(sf.ineqRow)),
		Eq:    make([]float64, len(sf.eqRow)),
		Lower: make([]float64, n),
		Upper: make([]float64, n),
	}
	for i, r := range sf.ineqRow {
		if r >= 0 {
			lambda.Ineq[i] = -y[r]
		}
	}
	for i, r := range sf.eqRow {
		if r >= 0 {
			lambda.Eq[i] = -y[r]
		}
	}
	for j, v := range sf.vars {
		switch v.kind {
		case shifted:
			lambda.Lower[j] = d[v.z]
			if v.boundRow >= 0 {
				lambda.Upper[j] = -y[v.boundRow]
			}
		case mirrored:
			lambda.Upper[j] = d[v.z]
		}
	}
	return lambda, nil
}
