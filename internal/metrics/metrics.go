// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics records solver runs in a private Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "optlab"

// Recorder counts solver runs and their cost.
type Recorder struct {
	reg        *prometheus.Registry
	runs       *prometheus.CounterVec
	iterations *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
}

// New registers the solver collectors in a fresh registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "runs_total",
			Help:      "Solver runs by final status.",
		}, []string{"solver", "status"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "iterations",
			Help:      "Iterations performed per solver run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"solver"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Wall time per solver run.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"solver"}),
	}
	r.reg.MustRegister(r.runs, r.iterations, r.duration)
	return r
}

// Observe records one run.
func (r *Recorder) Observe(solver, status string, iterations int, elapsed time.Duration) {
	r.runs.WithLabelValues(solver, status).Inc()
	r.iterations.WithLabelValues(solver).Observe(float64(iterations))
	r.duration.WithLabelValues(solver).Observe(elapsed.Seconds())
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteToTextfile writes the registry in text exposition format.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
