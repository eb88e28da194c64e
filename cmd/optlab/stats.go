// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/curioloop/optlab/chart"
	"github.com/curioloop/optlab/dataset"
	"github.com/curioloop/optlab/internal/logging"
	"github.com/curioloop/optlab/internal/report"
)

func (a *app) stats(ctx context.Context) (*report.Report, error) {
	c := a.cfg.Stats
	start := time.Now()

	source := c.File
	tab := dataset.Sample()
	if source == "" {
		source = "bundled measurements"
	} else {
		var err error
		if tab, err = dataset.Load(c.File, &dataset.LoadOptions{Sheet: c.Sheet}); err != nil {
			return nil, err
		}
	}

	xs, err := tab.Column(c.X)
	if err != nil {
		return nil, err
	}
	sum, err := dataset.Describe(xs)
	if err != nil {
		return nil, err
	}
	method, err := dataset.ParseBinMethod(c.Method)
	if err != nil {
		return nil, err
	}
	bins, err := dataset.Histogram(xs, c.Bins, method)
	if err != nil {
		return nil, err
	}

	r := &report.Report{Title: "stats", Status: "ok", OK: true}
	r.Add("source", source).
		Add("column", c.X).
		Add("summary", sum)

	hist := report.Table{Title: "histogram of " + c.X, Header: []string{"from", "to", "count"}}
	for i, n := range bins.Counts {
		hist.Rows = append(hist.Rows, []any{bins.Edges[i], bins.Edges[i+1], n})
	}
	r.AddTable(hist)

	if c.Histogram != "" {
		if err := chart.Histogram(c.Histogram, bins, &chart.Options{Title: "histogram of " + c.X, XLabel: c.X}); err != nil {
			return nil, err
		}
		r.Add("histogram plot", c.Histogram)
	}

	if c.Y != "" {
		x, y, err := tab.Pairs(c.X, c.Y)
		if err != nil {
			return nil, err
		}
		fit, err := dataset.LinearFit(x, y)
		if err != nil {
			return nil, err
		}
		r.Add("pairs", len(x)).
			Add("fit", fit)
		if c.Scatter != "" {
			opts := &chart.Options{Title: c.Y + " against " + c.X, XLabel: c.X, YLabel: c.Y, Fit: true}
			if err := chart.Scatter(c.Scatter, x, y, opts); err != nil {
				return nil, err
			}
			r.Add("scatter plot", c.Scatter)
		}
	}

	a.observe("stats", r.Status, len(bins.Counts), start)
	logr.FromContextOrDiscard(ctx).V(logging.DEBUG).Info("summary", "column", c.X, "n", sum.N, "mean", sum.Mean)
	return r, nil
}
