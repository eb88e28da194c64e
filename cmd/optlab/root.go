// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/curioloop/optlab/internal/config"
	"github.com/curioloop/optlab/internal/logging"
	"github.com/curioloop/optlab/internal/metrics"
	"github.com/curioloop/optlab/internal/report"
)

// errUnsolved is returned after the report of a run that did not succeed.
var errUnsolved = errors.New("problem not solved")

// app carries the state shared by the subcommands of one invocation.
type app struct {
	out    io.Writer
	logOut io.Writer // nil logs to stderr

	cfgPath string
	cfg     *config.Config
	log     logr.Logger
	rec     *metrics.Recorder
	run     string
}

// task is one teaching problem.
type task func(ctx context.Context) (*report.Report, error)

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	a := &app{out: out, logOut: logOut}

	root := &cobra.Command{
		Use:           "optlab",
		Short:         "Numerical optimization and statistics workbench",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	fs := root.PersistentFlags()
	fs.StringVar(&a.cfgPath, "config", "", "YAML file overriding the built-in problems")
	fs.String("log-level", "info", "log verbosity: info, debug or trace")
	fs.String("log-format", "console", "log encoding: console or json")
	fs.StringP("output", "o", "text", "report format: text, json or yaml")
	fs.String("metrics-file", "", "write solver metrics in Prometheus text format to this file")

	root.AddCommand(
		a.command("sparse", "Solve the sparse convection-diffusion system with a Krylov method", a.sparse),
		a.command("linprog", "Solve the linear program with the simplex method", a.linprog),
		a.command("nlp", "Minimize the constrained nonlinear program", a.nlp),
		a.command("lagrange", "Find stationary points with Lagrange multipliers", a.lagrange),
		a.command("stats", "Summarize, plot and fit spreadsheet columns", a.stats),
		&cobra.Command{
			Use:   "all",
			Short: "Run every problem in order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.execute(cmd.Context(), a.sparse, a.linprog, a.nlp, a.lagrange, a.stats)
			},
		},
	)
	return root
}

func (a *app) command(use, short string, t task) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd.Context(), t)
		},
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log, err = logging.NewLogger(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: a.logOut,
	})
	if err != nil {
		return err
	}
	a.run = uuid.NewString()
	a.log = a.log.WithValues("run", a.run)
	a.rec = metrics.New()
	return nil
}

// execute runs the tasks, prints every report and fails when one did not succeed.
func (a *app) execute(ctx context.Context, tasks ...task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logr.NewContext(ctx, a.log)

	var (
		reports []*report.Report
		failed  []string
	)
	for _, t := range tasks {
		r, err := t(ctx)
		if err != nil {
			return err
		}
		r.Run = a.run
		reports = append(reports, r)
		if !r.OK {
			failed = append(failed, r.Title)
		}
	}
	if err := report.Write(a.out, a.cfg.Output.Format, reports...); err != nil {
		return err
	}
	if path := a.cfg.Metrics.File; path != "" {
		if err := a.rec.WriteToTextfile(path); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.log.V(logging.DEBUG).Info("metrics written", "file", path)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %v", errUnsolved, failed)
	}
	return nil
}

// observe records a solver run in the metrics registry.
func (a *app) observe(solver, status string, iterations int, start time.Time) {
	a.rec.Observe(solver, status, iterations, time.Since(start))
	a.log.Info("solved", "solver", solver, "status", status, "iterations", iterations)
}
