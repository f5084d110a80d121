// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
)

func TestIfAnnotationRemovesRule(t *testing.T) {
	src := "start = \"a\" / extra\n@if(debug)\nextra = \"b\""

	c := mustCompile(t, src, &Options{Format: FormatBare, Output: OutputSource, Parameters: []string{"debug"}})
	require.Len(t, c.Grammar.Rules, 2)

	// Without the parameter the guarded rule is removed, and the
	// dangling reference to it becomes an error.
	c = compileGrammar(t, src, nil)
	require.True(t, c.Failed())
	found := false
	for _, e := range c.Errors {
		if e.Code == ast.UndefinedRuleErr {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIfAnnotationPrunesAlternative(t *testing.T) {
	src := "start = @if(debug) \"a\" / \"b\""
	c := mustCompile(t, src, nil)
	lit, ok := c.Grammar.Rules[0].Expression.(*ast.Literal)
	require.True(t, ok, "expected pruned choice to collapse, got %T", c.Grammar.Rules[0].Expression)
	assert.Equal(t, "b", lit.Value)

	c = mustCompile(t, src, &Options{Format: FormatBare, Output: OutputSource, Parameters: []string{"debug"}})
	choice := c.Grammar.Rules[0].Expression.(*ast.Choice)
	assert.Len(t, choice.Alternatives, 2)
}

func TestRemovingStartRuleIsFatal(t *testing.T) {
	c := compileGrammar(t, "@if(debug)\nstart = \"a\"\nother = \"b\"", nil)
	require.True(t, c.Failed())
	require.True(t, ast.IsError(ast.EmptyGrammarErr, c.Errors[0]))
}

func TestAllAlternativesPrunedRemovesRule(t *testing.T) {
	c := compileGrammar(t, "start = @if(a) \"a\" / @if(b) \"b\"", nil)
	require.True(t, c.Failed())
	require.True(t, ast.IsError(ast.EmptyGrammarErr, c.Errors[0]))
}

func TestSeparatorRewriteShape(t *testing.T) {
	c := mustCompile(t, "start = @separator(expr: \",\") item+\nitem = [a-z]", nil)

	act, ok := c.Grammar.Rules[0].Expression.(*ast.Action)
	require.True(t, ok, "expected synthesized action, got %T", c.Grammar.Rules[0].Expression)
	seq := act.Expr.(*ast.Sequence)
	require.Len(t, seq.Elements, 2)

	head := seq.Elements[0].(*ast.Labeled)
	assert.Equal(t, "peg$head", head.Label)
	_ = head.Expr.(*ast.RuleRef)

	tail := seq.Elements[1].(*ast.Labeled)
	rep := tail.Expr.(*ast.ZeroOrMore)
	pair := rep.Expr.(*ast.Sequence)
	sep := pair.Elements[0].(*ast.Literal)
	assert.Equal(t, ",", sep.Value)

	// The synthesized action keeps the repetition's result shape.
	assert.Equal(t, "Array<string>", c.RuleTypeStrings()[0])
}

func TestSeparatorWithRuleReference(t *testing.T) {
	c := mustCompile(t, "start = @separator(expr: comma) item+\nitem = [a-z]\ncomma = \",\"", nil)
	act := c.Grammar.Rules[0].Expression.(*ast.Action)
	seq := act.Expr.(*ast.Sequence)
	tail := seq.Elements[1].(*ast.Labeled).Expr.(*ast.ZeroOrMore)
	sep := tail.Expr.(*ast.Sequence).Elements[0].(*ast.RuleRef)
	assert.Equal(t, "comma", sep.Name)
	assert.Equal(t, 2, sep.Index)
}

func TestTypeAnnotationPinsType(t *testing.T) {
	c := mustCompile(t, "start = @type(type: \"Expr\") \"a\"", nil)
	assert.Equal(t, "Expr", c.RuleTypeStrings()[0])
}

func TestTypeAnnotationAnyTerminatesPropagation(t *testing.T) {
	c := mustCompile(t, "start = (@type(type: \"any\") \"a\")+", nil)
	assert.Equal(t, "Array<any>", c.RuleTypeStrings()[0])
}

func TestConflictingTypeAnnotationsFatal(t *testing.T) {
	c := compileGrammar(t, "start = @type(type: \"A\") @type(type: \"B\") \"a\"", nil)
	require.True(t, c.Failed())
	require.True(t, ast.IsError(ast.TypeConflictErr, c.Errors[0]))
}

func TestUnknownAnnotationDropped(t *testing.T) {
	c := compileGrammar(t, "start = @mystery(level: 3) \"a\"", nil)
	require.False(t, c.Failed())
	require.Len(t, c.Errors, 1)
	assert.Equal(t, ast.UnknownAnnotationErr, c.Errors[0].Code)
	_, ok := c.Grammar.Rules[0].Expression.(*ast.Literal)
	assert.True(t, ok)
}

func TestUndeclaredIfConditionReported(t *testing.T) {
	src := "@parameters(debug)\nstart = @if(fast) \"a\" / \"b\""
	c := compileGrammar(t, src, nil)
	require.False(t, c.Failed())
	require.Len(t, c.Errors, 1)
	assert.Equal(t, ast.UnknownAnnotationErr, c.Errors[0].Code)
	assert.Contains(t, c.Errors[0].Message, "fast")
}

func TestTokenAnnotationMarksRule(t *testing.T) {
	c := mustCompile(t, "@token(type: \"num\")\nnum = [0-9]+\n@token\nword = [a-z]+", nil)
	require.Len(t, c.Program.Rules, 2)
	assert.Equal(t, "num", c.Program.Rules[0].TokenType)
	assert.Equal(t, "word", c.Program.Rules[1].TokenType)
	assert.Equal(t, []int{0, 1}, c.Program.TokenRules())
}
