// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package emit renders a generated bytecode program as one of the
// compiler's three artifacts: runnable JavaScript parser source in a
// selected module format, type declarations for the rules' parse results,
// or an in-memory linked parser for embedding and testing.
package emit

import (
	"fmt"

	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/bytecode"
)

// Result holds the emitted artifact selected by the options; exactly one
// field is populated.
type Result struct {
	Source string
	Types  string
	Parser *LinkedParser
}

// Emit produces the artifact selected by opts.Output.
func Emit(prog *bytecode.Program, ruleTypes []string, opts *compile.Options) (*Result, error) {
	if prog == nil || len(prog.Rules) == 0 {
		return nil, fmt.Errorf("cannot emit an empty program")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Output {
	case compile.OutputSource:
		return &Result{Source: Source(prog, opts)}, nil
	case compile.OutputTypes:
		return &Result{Types: TypeDecls(prog, ruleTypes, opts)}, nil
	case compile.OutputParser:
		return &Result{Parser: Link(prog)}, nil
	}
	return nil, fmt.Errorf("invalid output %q", opts.Output)
}
