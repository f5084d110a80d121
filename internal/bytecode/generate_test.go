// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bytecode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/ast"
)

// nullAnalysis satisfies Analysis for grammars without code blocks or
// annotations.
type nullAnalysis struct{}

func (nullAnalysis) Manifest(ast.NodeID) []ManifestEntry { return nil }
func (nullAnalysis) TokenType(ast.NodeID) string         { return "" }
func (nullAnalysis) Introduces(ast.NodeID) []string      { return nil }

func singleRule(name string, expr func(b *ast.Builder) ast.Expression) *ast.Grammar {
	b := ast.NewBuilder()
	e := expr(b)
	return &ast.Grammar{Rules: []*ast.Rule{b.Rule(nil, name, e)}}
}

func TestGenerateLiteral(t *testing.T) {
	g := singleRule("start", func(b *ast.Builder) ast.Expression {
		return b.Literal(nil, "ab", false)
	})
	prog, err := Generate(g, nullAnalysis{})
	require.NoError(t, err)
	require.Len(t, prog.Rules, 1)

	want := []int{
		int(OpMatchString), 0,
		int(OpIf), 2, 2,
		int(OpAcceptString), 0,
		int(OpFail), 1,
	}
	assert.Equal(t, want, prog.Rules[0].Instrs)

	require.Len(t, prog.Consts, 2)
	assert.Equal(t, ConstString, prog.Consts[0].Kind)
	assert.Equal(t, "ab", prog.Consts[0].Str)
	assert.Equal(t, ConstExpectation, prog.Consts[1].Kind)
	assert.Equal(t, "literal", prog.Consts[1].Exp.Kind)
}

func TestGenerateDeduplicatesConstants(t *testing.T) {
	g := singleRule("start", func(b *ast.Builder) ast.Expression {
		return b.Sequence(nil,
			b.Literal(nil, "a", false),
			b.Literal(nil, "a", false),
			b.Literal(nil, "b", false),
		)
	})
	prog, err := Generate(g, nullAnalysis{})
	require.NoError(t, err)

	var strs []string
	for _, c := range prog.Consts {
		if c.Kind == ConstString {
			strs = append(strs, c.Str)
		}
	}
	assert.Equal(t, []string{"a", "b"}, strs)
}

func TestGenerateIsDeterministic(t *testing.T) {
	build := func() *Program {
		g := singleRule("start", func(b *ast.Builder) ast.Expression {
			return b.Choice(nil,
				b.Sequence(nil, b.Literal(nil, "a", false), b.ZeroOrMore(nil, b.CharClass(nil, []ast.ClassPart{{From: '0', To: '9'}}, false, false))),
				b.Text(nil, b.OneOrMore(nil, b.Any(nil))),
			)
		})
		prog, err := Generate(g, nullAnalysis{})
		require.NoError(t, err)
		return prog
	}
	if diff := cmp.Diff(build(), build()); diff != "" {
		t.Fatalf("programs differ (-first +second):\n%s", diff)
	}
}

func TestGenerateResolvesCalls(t *testing.T) {
	b := ast.NewBuilder()
	ref := b.RuleRef(nil, "other")
	ref.Index = 1
	g := &ast.Grammar{Rules: []*ast.Rule{
		b.Rule(nil, "start", ref),
		b.Rule(nil, "other", b.Literal(nil, "x", false)),
	}}
	prog, err := Generate(g, nullAnalysis{})
	require.NoError(t, err)
	assert.Equal(t, []int{int(OpCall), 1, 0}, prog.Rules[0].Instrs)
	assert.False(t, prog.Rules[0].Recursive)
}

func TestGenerateMarksRecursionAndExternalEntry(t *testing.T) {
	b := ast.NewBuilder()
	toList := b.RuleRef(nil, "list")
	toList.Index = 1
	selfRef := b.RuleRef(nil, "list")
	selfRef.Index = 1
	list := b.Choice(nil,
		b.Sequence(nil, b.Literal(nil, "(", false), selfRef, b.Literal(nil, ")", false)),
		b.Literal(nil, "x", false),
	)
	g := &ast.Grammar{Rules: []*ast.Rule{
		b.Rule(nil, "start", toList),
		b.Rule(nil, "list", list),
	}}
	prog, err := Generate(g, nullAnalysis{})
	require.NoError(t, err)

	assert.False(t, prog.Rules[0].Recursive)
	assert.True(t, prog.Rules[1].Recursive)
	// Entering the recursive rule from outside goes through RULE (the
	// cache-eligible path); the self call inside the cycle stays CALL.
	assert.Equal(t, []int{int(OpRule), 1}, prog.Rules[0].Instrs)
	found := false
	instrs := prog.Rules[1].Instrs
	for i := 0; i < len(instrs); i++ {
		if instrs[i] == int(OpCall) && instrs[i+1] == 1 {
			found = true
		}
	}
	assert.True(t, found, "expected an internal CALL to rule 1 in %v", instrs)
}

func TestGenerateUnresolvedReferenceFails(t *testing.T) {
	g := singleRule("start", func(b *ast.Builder) ast.Expression {
		return b.RuleRef(nil, "missing")
	})
	_, err := Generate(g, nullAnalysis{})
	require.Error(t, err)
}

func TestExpectationDescriptions(t *testing.T) {
	tests := []struct {
		exp  Expectation
		want string
	}{
		{Expectation{Kind: "literal", Text: "ab"}, `"ab"`},
		{Expectation{Kind: "class", Parts: []ast.ClassPart{{From: 'a', To: 'z'}, {Single: true, From: '_'}}, Inverted: true}, "[^a-z_]"},
		{Expectation{Kind: "any"}, "any character"},
		{Expectation{Kind: "end"}, "end of input"},
		{Expectation{Kind: "other", Description: "number"}, "number"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.exp.String())
	}
}
