// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package emit_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/bootstrap"
	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/emit"
)

func mustLink(t *testing.T, source string, opts *compile.Options) *emit.LinkedParser {
	t.Helper()
	g, errs := bootstrap.Parse("test.peg", source)
	require.False(t, errs.Fatal(), "bootstrap: %v", errs)
	c := compile.NewCompiler(opts)
	c.Compile(g)
	require.False(t, c.Failed(), "compile: %v", c.Errors)
	return emit.Link(c.Program)
}

func syntaxError(t *testing.T, err error) *emit.SyntaxError {
	t.Helper()
	require.Error(t, err)
	se, ok := err.(*emit.SyntaxError)
	require.True(t, ok, "expected *SyntaxError, got %T: %v", err, err)
	require.Equal(t, "PegSyntaxError", se.Name)
	return se
}

func TestParseSingleLiteral(t *testing.T) {
	p := mustLink(t, `start = "a"`, nil)
	v, err := p.Parse("a", nil)
	require.NoError(t, err)
	require.Equal(t, "a", v)
}

func TestParseSequence(t *testing.T) {
	p := mustLink(t, `start = "a" "b"`, nil)

	v, err := p.Parse("ab", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, v)

	_, err = p.Parse("a", nil)
	se := syntaxError(t, err)
	require.Equal(t, 1, se.Location.Start.Offset)
	require.Equal(t, "", se.Found)
	require.Len(t, se.Expected, 1)
	require.Equal(t, `"b"`, se.Expected[0].Description)
	require.Contains(t, se.Msg, "end of input found")
}

func TestParseActionWithLabel(t *testing.T) {
	p := mustLink(t, `start = n:([0-9]+) { return parseInt(n.join(""),10); }`, nil)
	p.Register(`return parseInt(n.join(""),10);`, func(ctx *emit.ActionContext) (interface{}, error) {
		digits := ctx.Arg("n").([]interface{})
		var b strings.Builder
		for _, d := range digits {
			b.WriteString(d.(string))
		}
		return strconv.Atoi(b.String())
	})

	v, err := p.Parse("042", nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestParseRepetitionAndMergedExpectations(t *testing.T) {
	p := mustLink(t, `start = "a"* "b"`, nil)

	v, err := p.Parse("aaab", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{[]interface{}{"a", "a", "a"}, "b"}, v)

	_, err = p.Parse("aaac", nil)
	se := syntaxError(t, err)
	require.Equal(t, 3, se.Location.Start.Offset)
	require.Equal(t, "c", se.Found)
	var descs []string
	for _, e := range se.Expected {
		descs = append(descs, e.Description)
	}
	require.Equal(t, []string{`"a"`, `"b"`}, descs)
	require.Contains(t, se.Msg, `Expected "a" or "b" but "c" found.`)
}

func TestParseNegativeLookahead(t *testing.T) {
	p := mustLink(t, `start = !"x" .`, nil)

	v, err := p.Parse("y", nil)
	require.NoError(t, err)
	require.Equal(t, "y", v)

	_, err = p.Parse("x", nil)
	se := syntaxError(t, err)
	require.Equal(t, 0, se.Location.Start.Offset)
}

func TestParseSeparatorAnnotation(t *testing.T) {
	p := mustLink(t, `start = @separator(expr: ",") id+ ; id = [a-z]+ { return text(); }`, nil)
	p.Register("return text();", func(ctx *emit.ActionContext) (interface{}, error) {
		return ctx.Text(), nil
	})

	v, err := p.Parse("a,bc,d", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "bc", "d"}, v)

	v, err = p.Parse("a", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a"}, v)
}

func TestChoiceCommitsOnFirstSuccess(t *testing.T) {
	p := mustLink(t, `start = "a" / "ab"`, nil)

	v, err := p.Parse("a", nil)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	// The first alternative committed, so "ab" leaves input behind.
	_, err = p.Parse("ab", nil)
	syntaxError(t, err)

	q := mustLink(t, `start = "x" / "y"`, nil)
	v, err = q.Parse("y", nil)
	require.NoError(t, err)
	require.Equal(t, "y", v)
}

func TestPositiveLookaheadConsumesNothing(t *testing.T) {
	p := mustLink(t, `start = &"ab" $("a" "b")`, nil)
	v, err := p.Parse("ab", nil)
	require.NoError(t, err)
	require.Equal(t, "ab", v)
}

func TestOptionalYieldsNull(t *testing.T) {
	p := mustLink(t, `start = "a"? "b"`, nil)
	v, err := p.Parse("b", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{nil, "b"}, v)
}

func TestStartRuleOption(t *testing.T) {
	p := mustLink(t, "start = other \"!\"\nother = [a-z]+ { return text(); }", nil)
	p.Register("return text();", func(ctx *emit.ActionContext) (interface{}, error) {
		return ctx.Text(), nil
	})

	v, err := p.Parse("abc", &emit.ParseOptions{StartRule: "other"})
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	_, err = p.Parse("abc", &emit.ParseOptions{StartRule: "missing"})
	require.Error(t, err)
}

func TestRuleRefAndRecursion(t *testing.T) {
	p := mustLink(t, "start = list\nlist = \"(\" list \")\" / \"x\"", nil)

	v, err := p.Parse("((x))", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"(", []interface{}{"(", "x", ")"}, ")"}, v)

	_, err = p.Parse("((x", nil)
	syntaxError(t, err)
}

func TestEndMatch(t *testing.T) {
	p := mustLink(t, `start = "a" $$`, nil)
	v, err := p.Parse("a", nil)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	_, err = p.Parse("ab", nil)
	syntaxError(t, err)
}

func TestCaseInsensitiveLiteralAndClass(t *testing.T) {
	p := mustLink(t, `start = "ab"i [c-e]i`, nil)
	v, err := p.Parse("AbD", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"Ab", "D"}, v)
}

func TestNamedRuleRebrandsErrors(t *testing.T) {
	p := mustLink(t, "start = num\nnum \"number\" = [0-9]+", nil)
	_, err := p.Parse("x", nil)
	se := syntaxError(t, err)
	require.Len(t, se.Expected, 1)
	require.Equal(t, "number", se.Expected[0].Description)
}

func TestSemanticPredicate(t *testing.T) {
	p := mustLink(t, `start = d:[0-9] &{ return d < "5"; } { return d; }`, nil)
	p.Register(`return d < "5";`, func(ctx *emit.ActionContext) (interface{}, error) {
		return ctx.Arg("d").(string) < "5", nil
	})
	p.Register("return d;", func(ctx *emit.ActionContext) (interface{}, error) {
		return ctx.Arg("d"), nil
	})

	v, err := p.Parse("3", nil)
	require.NoError(t, err)
	require.Equal(t, "3", v)

	_, err = p.Parse("7", nil)
	syntaxError(t, err)
}

func TestScopeBindingsAndRollback(t *testing.T) {
	rolledBack := false
	p := mustLink(t, `start = <{ let depth = 1; }> d:[0-9] { return depth; } / "x"`, nil)
	p.Register("let depth = 1;", func(ctx *emit.ActionContext) (interface{}, error) {
		ctx.OnRollback(func() { rolledBack = true })
		return map[string]interface{}{"depth": 1}, nil
	})
	p.Register("return depth;", func(ctx *emit.ActionContext) (interface{}, error) {
		return ctx.Arg("depth"), nil
	})

	v, err := p.Parse("7", nil)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.False(t, rolledBack)

	v, err = p.Parse("x", nil)
	require.NoError(t, err)
	require.Equal(t, "x", v)
	require.True(t, rolledBack)
}

func TestPickShortcut(t *testing.T) {
	p := mustLink(t, `start = "(" ::[a-z] ")"`, nil)
	v, err := p.Parse("(m)", nil)
	require.NoError(t, err)
	require.Equal(t, "m", v)

	q := mustLink(t, `start = ::[a-z] "-" ::[0-9]`, nil)
	v, err = q.Parse("a-1", nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "1"}, v)
}

func TestUserErrorAborts(t *testing.T) {
	p := mustLink(t, `start = d:[0-9] { return check(d); }`, nil)
	p.Register("return check(d);", func(ctx *emit.ActionContext) (interface{}, error) {
		return nil, ctx.Error("rejected " + ctx.Text())
	})
	_, err := p.Parse("5", nil)
	se := syntaxError(t, err)
	require.Equal(t, "rejected 5", se.Msg)
}

func TestTokenizeStreamsTokens(t *testing.T) {
	src := "@token(type: \"num\") num = [0-9]+\n@token(type: \"word\") word = [a-z]+"
	g, errs := bootstrap.Parse("tok.peg", src)
	require.False(t, errs.Fatal(), "bootstrap: %v", errs)
	c := compile.NewCompiler(&compile.Options{Format: compile.FormatBare, Output: compile.OutputParser, Tokenizer: true})
	c.Compile(g)
	require.False(t, c.Failed(), "compile: %v", c.Errors)

	p := emit.Link(c.Program)
	var streamed []string
	tokens, err := p.Tokenize("ab12cd", func(tok emit.Token) {
		streamed = append(streamed, tok.Type)
	})
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	require.Equal(t, []string{"word", "num", "word"}, streamed)
	require.Equal(t, "ab", tokens[0].Text)
	require.Equal(t, "12", tokens[1].Text)
	require.Equal(t, 4, tokens[2].Start.Offset)

	_, err = p.Tokenize("ab!", nil)
	require.Error(t, err)
}
