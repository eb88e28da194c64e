// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chart renders scatter plots and histograms to image files.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/curioloop/optlab/dataset"
)

var (
	ErrFormat    = errors.New("chart: unsupported image format")
	ErrDimension = errors.New("chart: length mismatch")
	ErrEmpty     = errors.New("chart: nothing to plot")
)

// Formats lists the supported file extensions.
var Formats = []string{"png", "svg", "pdf"}

// Options decorates a chart. The zero value draws a 6×4 inch plot without labels.
type Options struct {
	Title  string
	XLabel string
	YLabel string
	// Width and Height in inches.
	Width, Height float64
	// Fit overlays the least squares line on a scatter plot.
	Fit bool
}

func (o *Options) size() (vg.Length, vg.Length) {
	w, h := 6.0, 4.0
	if o != nil && o.Width > 0 {
		w = o.Width
	}
	if o != nil && o.Height > 0 {
		h = o.Height
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

func newPlot(o *Options) *plot.Plot {
	p := plot.New()
	if o != nil {
		p.Title.Text = o.Title
		p.X.Label.Text = o.XLabel
		p.Y.Label.Text = o.YLabel
	}
	p.Add(plotter.NewGrid())
	return p
}

// format returns the rendering format named by the extension of path.
func format(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, f := range Formats {
		if f == ext {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
}

func save(p *plot.Plot, path string, o *Options) error {
	f, err := format(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = render(file, p, f, o); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func render(w io.Writer, p *plot.Plot, format string, o *Options) error {
	width, height := o.size()
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// ScatterPlot builds the scatter plot of y against x.
func ScatterPlot(x, y []float64, o *Options) (*plot.Plot, error) {
	switch {
	case len(x) != len(y):
		return nil, fmt.Errorf("%w: %d x values and %d y values", ErrDimension, len(x), len(y))
	case len(x) == 0:
		return nil, ErrEmpty
	}
	xys := make(plotter.XYs, len(x))
	for i := range x {
		xys[i].X, xys[i].Y = x[i], y[i]
	}

	p := newPlot(o)
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = color.RGBA{B: 200, A: 255}
	p.Add(s)

	if o != nil && o.Fit {
		fit, err := dataset.LinearFit(x, y)
		if err != nil {
			return nil, err
		}
		lo, hi := floats.Min(x), floats.Max(x)
		line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: fit.At(lo)}, {X: hi, Y: fit.At(hi)}})
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = color.RGBA{R: 200, A: 255}
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("y = %.4g + %.4g x (R² = %.3f)", fit.Intercept, fit.Slope, fit.RSquared), line)
		p.Legend.Top = true
	}
	return p, nil
}

// Scatter writes the scatter plot of y against x to path.
func Scatter(path string, x, y []float64, o *Options) error {
	if _, err := format(path); err != nil {
		return err
	}
	p, err := ScatterPlot(x, y, o)
	if err != nil {
		return err
	}
	return save(p, path, o)
}

// HistogramPlot builds a bar for every bin.
func HistogramPlot(b dataset.Bins, o *Options) (*plot.Plot, error) {
	if len(b.Counts) == 0 || len(b.Edges) != len(b.Counts)+1 {
		return nil, fmt.Errorf("%w: %d edges for %d counts", ErrEmpty, len(b.Edges), len(b.Counts))
	}
	h := &plotter.Histogram{
		Bins:      make([]plotter.HistogramBin, len(b.Counts)),
		Width:     b.Width(0),
		FillColor: color.Gray{Y: 160},
		LineStyle: plotter.DefaultLineStyle,
	}
	for i, c := range b.Counts {
		h.Bins[i] = plotter.HistogramBin{Min: b.Edges[i], Max: b.Edges[i+1], Weight: c}
	}
	p := newPlot(o)
	p.Add(h)
	if p.Y.Label.Text == "" {
		p.Y.Label.Text = "count"
	}
	return p, nil
}

// Histogram writes the histogram of b to path.
func Histogram(path string, b dataset.Bins, o *Options) error {
	if _, err := format(path); err != nil {
		return err
	}
	p, err := HistogramPlot(b, o)
	if err != nil {
		return err
	}
	return save(p, path, o)
}
