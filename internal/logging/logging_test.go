// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"bytes"
	"encoding/json"
	"go/build"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		shown []string
	}{
		{"info", []string{"info"}},
		{"debug", []string{"info", "debug"}},
		{"trace", []string{"info", "debug", "trace"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := NewLogger(Options{Level: tt.level, Format: "json", Output: &buf})
			require.NoError(t, err)

			log.Info("info")
			log.V(DEBUG).Info("debug")
			log.V(TRACE).Info("trace")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var rec map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &rec))
				got = append(got, rec["msg"].(string))
			}
			assert.Equal(t, tt.shown, got)
		})
	}
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(Options{Level: "info", Format: "console", Output: &buf})
	require.NoError(t, err)
	log.Info("solved", "solver", "bicgstab", "iterations", 12)
	assert.Contains(t, buf.String(), "solved")
	assert.Contains(t, buf.String(), `"solver": "bicgstab"`)
}

func TestNewLoggerErrors(t *testing.T) {
	_, err := NewLogger(Options{Level: "verbose"})
	assert.ErrorIs(t, err, ErrLevel)
	_, err = NewLogger(Options{Format: "xml"})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestNoTestFrameworkImports(t *testing.T) {
	pkg, err := build.ImportDir(".", 0)
	require.NoError(t, err)
	for _, imp := range pkg.Imports {
		assert.NotContains(t, imp, "ginkgo")
		assert.NotContains(t, imp, "gomega")
	}
}
