// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/optimize"

	"github.com/curioloop/optlab/internal/logging"
)

func minimizeUnconstrained(ctx context.Context, p *Problem, x0 []float64, opt Options) (*Result, error) {
	n := len(x0)
	e := newEvaluator(p, n, opt.FiniteDifference)

	prob := optimize.Problem{
		Func: e.objective,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	var method optimize.Method
	settings := &optimize.Settings{
		MajorIterations: opt.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opt.Tolerance,
			Relative:   opt.Tolerance,
			Iterations: 100,
		},
	}
	switch opt.Algorithm {
	case QuasiNewton:
		prob.Grad = func(grad, x []float64) { e.gradient(x, grad) }
		settings.GradientThreshold = opt.Tolerance
		method = &optimize.BFGS{}
	default:
		method = &optimize.NelderMead{}
	}

	log := logr.FromContextOrDiscard(ctx).WithValues("solver", opt.Algorithm.String())
	sol, err := optimize.Minimize(prob, x0, settings, method)
	if sol == nil {
		return nil, err
	}
	log.V(logging.DEBUG).Info("finished", "status", sol.Status.String(),
		"iterations", sol.MajorIterations, "f", sol.F)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return &Result{
			X: sol.X, F: sol.F,
			Status:     Stopped,
			Message:    sol.Status.String(),
			Iterations: sol.MajorIterations,
			FuncEvals:  e.nfev,
		}, ctxErr
	}

	res := &Result{
		X:          sol.X,
		F:          sol.F,
		Message:    sol.Status.String(),
		Iterations: sol.MajorIterations,
		FuncEvals:  e.nfev,
		Lambda: Lambda{
			Lower: make([]float64, n),
			Upper: make([]float64, n),
		},
	}
	switch sol.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.MethodConverge:
		res.Status = Converged
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit, optimize.RuntimeLimit:
		res.Status = IterationLimit
	default:
		res.Status = Failed
		if err != nil {
			res.Message = err.Error()
		}
	}
	return res, nil
}
