// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/curioloop/optlab/internal/logging"
)

// TestCLI runs the optlab command suite.
func TestCLI(t *testing.T) {
	RegisterFailHandler(Fail)
	_, _ = fmt.Fprintf(GinkgoWriter, "Starting optlab command suite\n")
	RunSpecs(t, "optlab command suite")
}

// newTestLogger returns a trace level logger writing to the ginkgo output,
// which is only shown for failed specs, and to any extra writers.
func newTestLogger(extra ...io.Writer) logr.Logger {
	log, err := logging.NewLogger(logging.Options{
		Level:  "trace",
		Output: io.MultiWriter(append([]io.Writer{GinkgoWriter}, extra...)...),
	})
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return log
}
