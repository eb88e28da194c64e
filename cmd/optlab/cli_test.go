// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/curioloop/optlab/internal/config"
	"github.com/curioloop/optlab/internal/metrics"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd(&out, GinkgoWriter)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(out string) map[string]any {
	var doc map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(out), &doc)).To(Succeed())
	return doc
}

func writeConfig(body string) string {
	path := filepath.Join(GinkgoT().TempDir(), "optlab.yaml")
	Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
	return path
}

var _ = Describe("optlab", func() {
	Context("with the built-in problems", func() {
		It("solves the convection-diffusion system", func() {
			out, err := run("sparse", "--log-level", "debug")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("sparse bicgstab: converged to the desired tolerance"))
			Expect(out).To(ContainSubstring("convection-diffusion"))
		})

		It("solves the production plan as JSON", func() {
			out, err := run("linprog", "-o", "json")
			Expect(err).NotTo(HaveOccurred())
			doc := decode(out)
			Expect(doc["ok"]).To(BeTrue())
			Expect(doc["run"]).NotTo(BeEmpty())
			fields := doc["fields"].(map[string]any)
			Expect(fields["objective"]).To(BeNumerically("~", 36, 1e-8))
			x := fields["x"].([]any)
			Expect(x[0]).To(BeNumerically("~", 2, 1e-8))
			Expect(x[1]).To(BeNumerically("~", 6, 1e-8))
			Expect(fields["lambda ineq"]).To(HaveLen(3))
		})

		It("minimizes rosenbrock on the unit disk", func() {
			out, err := run("nlp", "--output=json")
			Expect(err).NotTo(HaveOccurred())
			fields := decode(out)["fields"].(map[string]any)
			x := fields["x"].([]any)
			Expect(x[0]).To(BeNumerically("~", 0.7864, 1e-3))
			Expect(x[1]).To(BeNumerically("~", 0.6177, 1e-3))
			Expect(fields["lambda ineqnonlin"]).To(HaveLen(1))
		})

		It("finds the four extrema of xy on the ellipse", func() {
			out, err := run("lagrange", "-o", "json")
			Expect(err).NotTo(HaveOccurred())
			doc := decode(out)
			Expect(doc["status"]).To(Equal("4 stationary points"))
			tables := doc["tables"].([]any)
			rows := tables[0].(map[string]any)["rows"].([]any)
			Expect(rows).To(HaveLen(4))
			first := rows[0].([]any)
			Expect(first[3]).To(BeNumerically("~", -2, 1e-8))
			Expect(first[4]).To(Equal("local minimum"))
		})

		It("summarizes and plots the bundled measurements", func() {
			dir := GinkgoT().TempDir()
			scatter := filepath.Join(dir, "scatter.svg")
			hist := filepath.Join(dir, "hist.png")
			GinkgoT().Setenv("OPTLAB_STATS_SCATTER", scatter)
			GinkgoT().Setenv("OPTLAB_STATS_HISTOGRAM", hist)

			out, err := run("stats", "-o", "yaml")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("source: bundled measurements"))
			Expect(out).To(ContainSubstring("pairs: 38"))
			Expect(scatter).To(BeAnExistingFile())
			Expect(hist).To(BeAnExistingFile())
		})

		It("runs everything and writes metrics", func() {
			prom := filepath.Join(GinkgoT().TempDir(), "optlab.prom")
			out, err := run("all", "--metrics-file", prom, "--log-format", "json")
			Expect(err).NotTo(HaveOccurred())
			for _, title := range []string{"sparse bicgstab", "linprog", "nlp sqp", "lagrange", "stats"} {
				Expect(out).To(ContainSubstring(title + ":"))
			}
			data, err := os.ReadFile(prom)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`optlab_solver_runs_total{solver="linprog",status="optimal solution found"} 1`))
			Expect(string(data)).To(ContainSubstring(`solver="nlp-sqp"`))
		})
	})

	Context("with a configuration file", func() {
		It("reports an infeasible program and fails", func() {
			path := writeConfig(`
linprog:
  c: [1, 1]
  aub: [[1, 1], [-1, -1]]
  bub: [1, -2]
  lower: [0, 0]
  upper: []
  maximize: false
`)
			out, err := run("linprog", "--config", path)
			Expect(err).To(MatchError(errUnsolved))
			Expect(out).To(ContainSubstring("linprog: no feasible point found"))
		})

		It("switches to conjugate gradients on the poisson system", func() {
			path := writeConfig(`
sparse:
  grid: 16
  solver: cg
  precond: jacobi
`)
			out, err := run("sparse", "--config", path)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("sparse cg: converged"))
			Expect(out).To(ContainSubstring("poisson"))
		})

		It("uses the derivative free method without constraints", func() {
			path := writeConfig(`
nlp:
  objective: "(x - 1)^2 + (y + 2)^2"
  ineq: []
  x0: [0, 0]
  algorithm: nelder-mead
  maxiter: 2000
`)
			out, err := run("nlp", "--config", path, "-o", "json")
			Expect(err).NotTo(HaveOccurred())
			x := decode(out)["fields"].(map[string]any)["x"].([]any)
			Expect(x[0]).To(BeNumerically("~", 1, 1e-3))
			Expect(x[1]).To(BeNumerically("~", -2, 1e-3))
		})

		It("rejects invalid settings", func() {
			path := writeConfig("sparse:\n  solver: gmres\n")
			_, err := run("sparse", "--config", path)
			Expect(err).To(MatchError(ContainSubstring("sparse: solver")))

			_, err = run("linprog", "-o", "xml")
			Expect(err).To(MatchError(ContainSubstring("output")))

			_, err = run("nlp", "--config", filepath.Join(GinkgoT().TempDir(), "absent.yaml"))
			Expect(err).To(HaveOccurred())
		})

		It("rejects a malformed objective", func() {
			path := writeConfig("nlp:\n  objective: \"x +* y\"\n")
			_, err := run("nlp", "--config", path)
			Expect(err).To(MatchError(ContainSubstring("objective")))
		})
	})

	Context("with a test logger", func() {
		It("runs a task directly", func() {
			var out, logs bytes.Buffer
			a := &app{
				out: &out,
				cfg: config.Default(),
				log: newTestLogger(&logs),
				rec: metrics.New(),
				run: "test",
			}
			a.cfg.Output.Format = "text"
			Expect(a.execute(context.Background(), a.linprog, a.lagrange)).To(Succeed())
			Expect(out.String()).To(MatchRegexp(`run\s+test`))
			Expect(out.String()).To(ContainSubstring("lagrange: 4 stationary points"))
			Expect(logs.String()).To(ContainSubstring(`"solver": "linprog"`))
			Expect(logs.String()).To(ContainSubstring(`"solver": "lagrange"`))
		})
	})
})
