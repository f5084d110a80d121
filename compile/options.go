// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import "fmt"

// Format selects the module wrapping of emitted source. The compiled
// parser body is identical across formats; only the surrounding
// preamble/export syntax differs.
type Format string

const (
	// FormatBare wraps the parser in an IIFE with no module system.
	FormatBare Format = "bare"
	// FormatCommonJS exports through module.exports.
	FormatCommonJS Format = "commonjs"
	// FormatESM uses ES module export syntax.
	FormatESM Format = "esm"
)

// Output selects which artifact the emitter returns.
type Output string

const (
	// OutputSource is the full runnable parser source.
	OutputSource Output = "source"
	// OutputTypes is the type declarations for the rules' parse results.
	OutputTypes Output = "types"
	// OutputParser is an in-memory loaded parser.
	OutputParser Output = "parser"
)

// Options carries the compile-time configuration shared by every pass and
// by the emitter.
type Options struct {
	// Parameters are the identifiers visible to @if annotations.
	Parameters []string
	// Tokenizer emits a streaming tokenizer instead of a one-shot parser.
	Tokenizer bool
	// Format is the module wrapping for emitted source.
	Format Format
	// Output selects the emitted artifact.
	Output Output
	// Trace adds rule enter/exit trace hooks to the emitted parser.
	Trace bool
}

// NewOptions returns the default options: bare format, source output.
func NewOptions() *Options {
	return &Options{Format: FormatBare, Output: OutputSource}
}

// Validate checks the enum-valued options.
func (o *Options) Validate() error {
	switch o.Format {
	case FormatBare, FormatCommonJS, FormatESM:
	default:
		return fmt.Errorf("invalid format %q", o.Format)
	}
	switch o.Output {
	case OutputSource, OutputTypes, OutputParser:
	default:
		return fmt.Errorf("invalid output %q", o.Output)
	}
	return nil
}

// ParameterSet returns the @if condition set as a map.
func (o *Options) ParameterSet() map[string]bool {
	set := make(map[string]bool, len(o.Parameters))
	for _, p := range o.Parameters {
		set[p] = true
	}
	return set
}
