// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/curioloop/optlab/internal/report"
	"github.com/curioloop/optlab/lagrange"
)

func (a *app) lagrange(ctx context.Context) (*report.Report, error) {
	c := a.cfg.Lagrange
	var vars []string
	if len(c.Vars) > 0 {
		vars = c.Vars
	}
	sys, err := lagrange.BuildSource(c.Objective, c.Constraints, vars)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	points, err := sys.Solve(ctx, &lagrange.SolveOptions{
		Starts:    c.Points,
		NumStarts: c.Starts,
		Radius:    c.Radius,
		Seed:      c.Seed,
		Tol:       c.Tol,
	})
	if err != nil {
		return nil, err
	}
	status := fmt.Sprintf("%d stationary points", len(points))
	a.observe("lagrange", status, len(points), start)

	r := &report.Report{
		Title:  "lagrange",
		Status: status,
		OK:     len(points) > 0,
	}
	r.Add("lagrangian", sys.Lagrangian.String())
	for i, e := range sys.Stationarity {
		r.Add("equation "+strconv.Itoa(i+1), e.String()+" = 0")
	}

	header := append(append([]string{}, sys.Vars...), sys.Multipliers...)
	header = append(header, "f", "kind")
	rows := make([][]any, len(points))
	for i, p := range points {
		row := make([]any, 0, len(header))
		for _, v := range p.X {
			row = append(row, v)
		}
		for _, v := range p.Lambda {
			row = append(row, v)
		}
		rows[i] = append(row, p.F, p.Kind)
	}
	r.AddTable(report.Table{Title: "stationary points", Header: header, Rows: rows})
	return r, nil
}
