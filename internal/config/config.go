// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config assembles compile options from (lowest to highest
// precedence) built-in defaults, an optional .pegc.yaml project file,
// PEGC_* environment variables, and CLI flags applied by the command.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/arcanis/pegjs/compile"
)

// DefaultFile is the project configuration file name looked up in the
// working directory when no explicit path is given.
const DefaultFile = ".pegc.yaml"

// Config is the file/env/flag-facing shape of the compile options, plus
// CLI-only settings like the output path.
type Config struct {
	Format     string   `yaml:"format"`
	Output     string   `yaml:"output"`
	Parameters []string `yaml:"parameters"`
	Tokenizer  bool     `yaml:"tokenizer"`
	Trace      bool     `yaml:"trace"`
	OutFile    string   `yaml:"out"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Format: string(compile.FormatBare),
		Output: string(compile.OutputSource),
	}
}

// LoadFile merges the yaml file at path over c. A missing file is only an
// error when the path was explicitly requested.
func (c *Config) LoadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrapf(err, "read config %s", path)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	c.merge(&file)
	return nil
}

// LoadEnv merges PEGC_* environment variables over c: PEGC_FORMAT,
// PEGC_OUTPUT, PEGC_PARAMETERS (comma-separated), PEGC_TOKENIZER,
// PEGC_TRACE, PEGC_OUT.
func (c *Config) LoadEnv() error {
	if v := os.Getenv("PEGC_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("PEGC_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("PEGC_PARAMETERS"); v != "" {
		c.Parameters = splitList(v)
	}
	if v := os.Getenv("PEGC_OUT"); v != "" {
		c.OutFile = v
	}
	for _, e := range []struct {
		name string
		dst  *bool
	}{
		{"PEGC_TOKENIZER", &c.Tokenizer},
		{"PEGC_TRACE", &c.Trace},
	} {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s", e.name)
		}
		*e.dst = parsed
	}
	return nil
}

func (c *Config) merge(over *Config) {
	if over.Format != "" {
		c.Format = over.Format
	}
	if over.Output != "" {
		c.Output = over.Output
	}
	if len(over.Parameters) > 0 {
		c.Parameters = over.Parameters
	}
	if over.Tokenizer {
		c.Tokenizer = true
	}
	if over.Trace {
		c.Trace = true
	}
	if over.OutFile != "" {
		c.OutFile = over.OutFile
	}
}

// Options validates c and converts it to compile options.
func (c *Config) Options() (*compile.Options, error) {
	opts := &compile.Options{
		Parameters: c.Parameters,
		Tokenizer:  c.Tokenizer,
		Format:     compile.Format(c.Format),
		Output:     compile.Output(c.Output),
		Trace:      c.Trace,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
