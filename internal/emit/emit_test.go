// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package emit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/bootstrap"
	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/emit"
)

func compileProgram(t *testing.T, src string, opts *compile.Options) *compile.Compiler {
	t.Helper()
	g, errs := bootstrap.Parse("test.peg", src)
	require.False(t, errs.Fatal(), "bootstrap: %v", errs)
	c := compile.NewCompiler(opts)
	c.Compile(g)
	require.False(t, c.Failed(), "compile: %v", c.Errors)
	return c
}

const sampleGrammar = `start = n:([0-9]+) { return parseInt(n.join(""),10); } / word
word "a word" = $[a-z]+`

func TestSourceIsByteIdenticalAcrossRuns(t *testing.T) {
	opts := compile.NewOptions()
	first := emit.Source(compileProgram(t, sampleGrammar, opts).Program, opts)
	second := emit.Source(compileProgram(t, sampleGrammar, opts).Program, opts)
	require.Equal(t, first, second)
}

func TestSourceFormats(t *testing.T) {
	c := compileProgram(t, sampleGrammar, nil)

	bare := emit.Source(c.Program, &compile.Options{Format: compile.FormatBare, Output: compile.OutputSource})
	assert.True(t, strings.HasPrefix(bare, "(function () {"))
	assert.Contains(t, bare, "return { SyntaxError: peg$SyntaxError, parse: peg$parse };")

	cjs := emit.Source(c.Program, &compile.Options{Format: compile.FormatCommonJS, Output: compile.OutputSource})
	assert.True(t, strings.HasPrefix(cjs, "\"use strict\";"))
	assert.Contains(t, cjs, "module.exports =")

	esm := emit.Source(c.Program, &compile.Options{Format: compile.FormatESM, Output: compile.OutputSource})
	assert.Contains(t, esm, "export { peg$SyntaxError as SyntaxError, peg$parse as parse };")

	// The parser body is identical across formats; only the wrapping
	// differs.
	body := func(s string) string {
		i := strings.Index(s, "function peg$subclass")
		j := strings.Index(s, "\nreturn ")
		if j < 0 {
			j = strings.Index(s, "\nmodule.exports")
		}
		if j < 0 {
			j = strings.Index(s, "\nexport ")
		}
		return s[i:j]
	}
	assert.Equal(t, body(bare), body(cjs))
	assert.Equal(t, body(bare), body(esm))
}

func TestSourceContainsRuntimePieces(t *testing.T) {
	c := compileProgram(t, sampleGrammar, nil)
	src := emit.Source(c.Program, compile.NewOptions())

	assert.Contains(t, src, `this.name = "PegSyntaxError";`)
	assert.Contains(t, src, "var peg$bytecode = [")
	assert.Contains(t, src, `peg$ruleNames = ["start", "word"]`)
	assert.Contains(t, src, "function peg$run(bc, ip, end, stack)")
	assert.Contains(t, src, "return parseInt(n.join(\"\"),10);")
	assert.Contains(t, src, `peg$otherExpectation("a word")`)
	assert.Contains(t, src, `"startRule" in options`)
	// The bounded fast-fail cache is cleared per parse call.
	assert.Contains(t, src, "var peg$failCache = {};")
}

func TestSourceTraceOption(t *testing.T) {
	c := compileProgram(t, sampleGrammar, nil)
	plain := emit.Source(c.Program, &compile.Options{Format: compile.FormatBare, Output: compile.OutputSource})
	traced := emit.Source(c.Program, &compile.Options{Format: compile.FormatBare, Output: compile.OutputSource, Trace: true})
	assert.NotContains(t, plain, "rule.enter")
	assert.Contains(t, traced, "rule.enter")
	assert.Contains(t, traced, "rule.match")
}

func TestTokenizerSource(t *testing.T) {
	src := "@token(type: \"num\") num = [0-9]+\n@token(type: \"word\") word = [a-z]+"
	c := compileProgram(t, src, nil)
	out := emit.Source(c.Program, &compile.Options{Format: compile.FormatBare, Output: compile.OutputSource, Tokenizer: true})
	assert.Contains(t, out, "peg$tokenRules = [0, 1]")
	assert.Contains(t, out, "options.onToken")
	assert.Contains(t, out, "tokenize: peg$parse")
}

func TestTypeDecls(t *testing.T) {
	c := compileProgram(t, sampleGrammar, nil)
	decls := emit.TypeDecls(c.Program, c.RuleTypeStrings(), compile.NewOptions())

	assert.Contains(t, decls, "export type StartResult = any | string;")
	assert.Contains(t, decls, "export type WordResult = string;")
	assert.Contains(t, decls, "export declare function parse(input: string, options?: ParseOptions): StartResult;")
	assert.Contains(t, decls, `name: "PegSyntaxError";`)
}

func TestEmitDispatch(t *testing.T) {
	c := compileProgram(t, sampleGrammar, nil)

	res, err := emit.Emit(c.Program, c.RuleTypeStrings(), &compile.Options{Format: compile.FormatBare, Output: compile.OutputSource})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Source)

	res, err = emit.Emit(c.Program, c.RuleTypeStrings(), &compile.Options{Format: compile.FormatBare, Output: compile.OutputTypes})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Types)

	res, err = emit.Emit(c.Program, c.RuleTypeStrings(), &compile.Options{Format: compile.FormatBare, Output: compile.OutputParser})
	require.NoError(t, err)
	require.NotNil(t, res.Parser)
	v, err := res.Parser.Parse("xy", nil)
	require.NoError(t, err)
	assert.Equal(t, "xy", v)

	_, err = emit.Emit(c.Program, nil, &compile.Options{Format: "weird", Output: compile.OutputSource})
	require.Error(t, err)
}
