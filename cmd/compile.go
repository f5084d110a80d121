// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/bootstrap"
	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/config"
	"github.com/arcanis/pegjs/internal/emit"
)

type compileParams struct {
	format     string
	output     string
	outFile    string
	parameters []string
	tokenizer  bool
	trace      bool
	configFile string
	verbose    bool
}

func init() {
	params := compileParams{}

	compileCommand := &cobra.Command{
		Use:          "compile [grammar file]",
		Short:        "Compile a PEG grammar into a JavaScript parser",
		Long:         "Compile reads a PEG grammar (from a file, or stdin when no file is\ngiven) and emits a self-contained parser module.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, params, args)
		},
	}

	flags := compileCommand.Flags()
	flags.StringVarP(&params.format, "format", "f", string(compile.FormatBare), "module format of emitted source (bare, commonjs, esm)")
	flags.StringVar(&params.output, "output", string(compile.OutputSource), "artifact to emit (source, types)")
	flags.StringVarP(&params.outFile, "out", "o", "", "write output to this file instead of stdout")
	flags.StringArrayVarP(&params.parameters, "parameter", "p", nil, "build parameter visible to @if annotations (repeatable)")
	flags.BoolVar(&params.tokenizer, "tokenizer", false, "emit a streaming tokenizer instead of a one-shot parser")
	flags.BoolVar(&params.trace, "trace", false, "emit rule enter/exit trace hooks")
	flags.StringVar(&params.configFile, "config", "", "config file (default "+config.DefaultFile+" if present)")
	flags.BoolVarP(&params.verbose, "verbose", "v", false, "enable debug logging")

	RootCommand.AddCommand(compileCommand)
}

func runCompile(cmd *cobra.Command, params compileParams, args []string) error {
	opts, cfg, err := assembleOptions(cmd, params)
	if err != nil {
		return err
	}

	c, err := compileInput(cmd, args)
	if err != nil {
		return err
	}
	defer renderDiagnostics(cmd.ErrOrStderr(), c)
	compiler := compile.NewCompiler(opts)
	compiler.Compile(c.grammar)
	c.errors = append(c.errors, compiler.Errors...)
	if compiler.Failed() {
		return fmt.Errorf("compilation failed")
	}

	result, err := emit.Emit(compiler.Program, compiler.RuleTypeStrings(), opts)
	if err != nil {
		return err
	}
	if result.Parser != nil {
		return fmt.Errorf("output %q is only available through the library API", compile.OutputParser)
	}
	text := result.Source
	if text == "" {
		text = result.Types
	}
	if cfg.OutFile != "" {
		return os.WriteFile(cfg.OutFile, []byte(text), 0o644)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), text)
	return err
}

// assembleOptions merges defaults, the optional config file, PEGC_*
// environment variables, and flags, in ascending precedence.
func assembleOptions(cmd *cobra.Command, params compileParams) (*compile.Options, *config.Config, error) {
	if params.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	path, explicit := config.DefaultFile, false
	if params.configFile != "" {
		path, explicit = params.configFile, true
	}
	if err := cfg.LoadFile(path, explicit); err != nil {
		return nil, nil, err
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = params.format
	}
	if flags.Changed("output") {
		cfg.Output = params.output
	}
	if flags.Changed("out") {
		cfg.OutFile = params.outFile
	}
	if len(params.parameters) > 0 {
		cfg.Parameters = append(cfg.Parameters, params.parameters...)
	}
	if flags.Changed("tokenizer") {
		cfg.Tokenizer = params.tokenizer
	}
	if flags.Changed("trace") {
		cfg.Trace = params.trace
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, err
	}
	return opts, cfg, nil
}

type compileInputState struct {
	name    string
	grammar *ast.Grammar
	errors  ast.Errors
}

func compileInput(cmd *cobra.Command, args []string) (*compileInputState, error) {
	name, source, err := readGrammar(args, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	g, errs := bootstrap.Parse(name, source)
	state := &compileInputState{name: name, grammar: g, errors: errs}
	if errs.Fatal() {
		renderDiagnostics(cmd.ErrOrStderr(), state)
		return nil, fmt.Errorf("parsing failed")
	}
	return state, nil
}

func readGrammar(args []string, stdin io.Reader) (string, string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", err
		}
		return "<stdin>", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", err
	}
	return args[0], string(data), nil
}

// renderDiagnostics prints collected diagnostics, red for fatal and
// yellow for warnings, in file:line:col form.
func renderDiagnostics(w io.Writer, state *compileInputState) {
	for _, e := range state.errors {
		paint := color.New(color.FgYellow)
		if e.Fatal {
			paint = color.New(color.FgRed)
		}
		fmt.Fprintln(w, paint.Sprint(e.Error()))
	}
	state.errors = nil
}
