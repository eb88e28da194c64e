// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the optlab settings from the embedded defaults,
// an optional YAML file, OPTLAB_ environment variables and command flags.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// EnvPrefix prefixes environment overrides, OPTLAB_SPARSE_TOL sets sparse.tol.
const EnvPrefix = "OPTLAB"

// Config holds every section.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Sparse   SparseConfig   `mapstructure:"sparse" yaml:"sparse"`
	Linprog  LinprogConfig  `mapstructure:"linprog" yaml:"linprog"`
	NLP      NLPConfig      `mapstructure:"nlp" yaml:"nlp"`
	Lagrange LagrangeConfig `mapstructure:"lagrange" yaml:"lagrange"`
	Stats    StatsConfig    `mapstructure:"stats" yaml:"stats"`
}

// Flags maps persistent command flags onto configuration keys.
var Flags = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"output":       "output.format",
	"metrics-file": "metrics.file",
}

// Load reads the defaults, merges the file at path when given, then applies
// the environment and the flags of fs that were set explicitly.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range Flags {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the embedded configuration.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

type validator interface {
	Validate() error
}

// Validate checks every section.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validator
	}{
		{"log", &c.Log},
		{"output", &c.Output},
		{"sparse", &c.Sparse},
		{"linprog", &c.Linprog},
		{"nlp", &c.NLP},
		{"lagrange", &c.Lagrange},
		{"stats", &c.Stats},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("config: %s: %w", s.name, err)
		}
	}
	return nil
}
