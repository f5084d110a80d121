// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanis/pegjs/compile"
)

type checkParams struct {
	parameters []string
}

func init() {
	params := checkParams{}

	checkCommand := &cobra.Command{
		Use:          "check [grammar file]",
		Short:        "Check a PEG grammar for errors without emitting a parser",
		Long:         "Check parses and compiles a grammar, reporting every diagnostic the\npipeline collects, and exits non-zero if any of them is fatal.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, params, args)
		},
	}

	checkCommand.Flags().StringArrayVarP(&params.parameters, "parameter", "p", nil, "build parameter visible to @if annotations (repeatable)")

	RootCommand.AddCommand(checkCommand)
}

func runCheck(cmd *cobra.Command, params checkParams, args []string) error {
	state, err := compileInput(cmd, args)
	if err != nil {
		return err
	}
	defer renderDiagnostics(cmd.ErrOrStderr(), state)

	opts := compile.NewOptions()
	opts.Parameters = params.parameters
	compiler := compile.NewCompiler(opts)
	compiler.Compile(state.grammar)
	state.errors = append(state.errors, compiler.Errors...)
	if compiler.Failed() {
		return fmt.Errorf("check failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rule(s) ok\n", state.name, len(state.grammar.Rules))
	return nil
}
