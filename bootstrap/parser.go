// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package bootstrap parses PEG metalanguage source into the grammar AST
// the compiler pipeline consumes. It is an ordinary recursive-descent
// parser built with participle, not the compiled PEG VM: its only job is
// to produce ast.Grammar values for the pipeline, the CLI, and tests.
package bootstrap

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/arcanis/pegjs/ast"
)

var cstParser = participle.MustBuild[grammarCST](
	participle.Lexer(pegLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)

// ParseFile reads and parses a grammar file.
func ParseFile(path string) (*ast.Grammar, ast.Errors) {
	source, err := os.ReadFile(path)
	if err != nil {
		wrapped := errors.Wrapf(err, "read %s", path)
		return nil, ast.Errors{ast.NewError(ast.ParseErr, true, nil, "%v", wrapped)}
	}
	return Parse(path, string(source))
}

// Parse parses grammar source text. filename is used in locations only.
func Parse(filename, source string) (*ast.Grammar, ast.Errors) {
	cst, err := cstParser.ParseString(filename, source)
	if err != nil {
		loc := &ast.Location{File: filename}
		if pe, ok := err.(participle.Error); ok {
			loc = posLoc(filename, pe.Position())
		}
		return nil, ast.Errors{ast.NewError(ast.ParseErr, true, loc, "%v", err)}
	}
	c := &converter{file: filename, b: ast.NewBuilder()}
	g := c.grammar(cst)
	if c.errs.Fatal() {
		return nil, c.errs
	}
	return g, c.errs
}

type converter struct {
	file string
	b    *ast.Builder
	errs ast.Errors
}

func posLoc(file string, pos lexer.Position) *ast.Location {
	p := ast.Position{Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
	return &ast.Location{File: file, Start: p, End: p}
}

func (c *converter) loc(pos, end lexer.Position) *ast.Location {
	return &ast.Location{
		File:  c.file,
		Start: ast.Position{Offset: pos.Offset, Line: pos.Line, Column: pos.Column},
		End:   ast.Position{Offset: end.Offset, Line: end.Line, Column: end.Column},
	}
}

func (c *converter) grammar(cst *grammarCST) *ast.Grammar {
	g := &ast.Grammar{Location: c.loc(cst.Pos, cst.EndPos)}
	if cst.Init != nil {
		g.Initializer = c.code(cst.Init)
	}
	for _, r := range cst.Rules {
		rule := c.rule(r)
		// A @parameters annotation declares the grammar's build
		// parameters; it is lifted off the rule it syntactically
		// precedes.
		var kept []ast.Annotation
		for _, a := range rule.Anns() {
			if a.Generic != nil && a.Generic.Name == "parameters" {
				names := make([]string, 0, len(a.Generic.Parameters))
				for name := range a.Generic.Parameters {
					names = append(names, name)
				}
				sort.Strings(names)
				g.Parameters = append(g.Parameters, names...)
				continue
			}
			kept = append(kept, a)
		}
		rule.SetAnns(kept)
		g.Rules = append(g.Rules, rule)
	}
	return g
}

func (c *converter) rule(cst *ruleCST) *ast.Rule {
	body := c.choice(cst.Expr)
	r := c.b.Rule(c.loc(cst.Pos, cst.EndPos), cst.Name, body)
	if cst.Display != nil {
		display, _ := c.unquote(*cst.Display, cst.Pos)
		r.DisplayName = display
		r.Expression = c.b.Named(body.Loc(), display, body)
	}
	r.SetAnns(c.annotations(cst.Annotations))
	return r
}

func (c *converter) choice(cst *choiceCST) ast.Expression {
	if len(cst.Alts) == 1 {
		return c.alternative(cst.Alts[0])
	}
	alts := make([]ast.Expression, len(cst.Alts))
	for i, a := range cst.Alts {
		alts[i] = c.alternative(a)
	}
	return c.b.Choice(c.loc(cst.Pos, cst.EndPos), alts...)
}

func (c *converter) alternative(cst *altCST) ast.Expression {
	loc := c.loc(cst.Pos, cst.EndPos)
	var body ast.Expression
	if len(cst.Elements) == 1 {
		body = c.prefixed(cst.Elements[0])
	} else {
		elems := make([]ast.Expression, len(cst.Elements))
		for i, e := range cst.Elements {
			elems[i] = c.prefixed(e)
		}
		body = c.b.Sequence(loc, elems...)
	}
	if cst.Action != nil {
		body = c.b.Action(loc, body, c.code(cst.Action))
	}
	if cst.Scope != nil {
		body = c.b.Scope(loc, body, c.code(cst.Scope))
	}
	if anns := c.annotations(cst.Annotations); len(anns) > 0 {
		body.(interface{ SetAnns([]ast.Annotation) }).SetAnns(anns)
	}
	return body
}

func (c *converter) prefixed(cst *prefixedCST) ast.Expression {
	loc := c.loc(cst.Pos, cst.EndPos)
	var inner ast.Expression
	op := cst.Op
	switch {
	case op.SemAnd != nil:
		inner = c.b.SemanticAnd(loc, c.code(op.SemAnd))
	case op.SemNot != nil:
		inner = c.b.SemanticNot(loc, c.code(op.SemNot))
	case op.And != nil:
		inner = c.b.SimpleAnd(loc, c.suffixed(op.And))
	case op.Not != nil:
		inner = c.b.SimpleNot(loc, c.suffixed(op.Not))
	case op.Text != nil:
		inner = c.b.Text(loc, c.suffixed(op.Text))
	default:
		inner = c.suffixed(op.Plain)
	}
	label := ""
	if cst.Label != nil {
		label = *cst.Label
	}
	if cst.Pick {
		return c.b.Picked(loc, label, inner)
	}
	if label != "" {
		return c.b.Labeled(loc, label, inner)
	}
	return inner
}

func (c *converter) suffixed(cst *suffixedCST) ast.Expression {
	inner := c.primary(cst.Primary)
	loc := c.loc(cst.Pos, cst.EndPos)
	switch cst.Suffix {
	case "?":
		return c.b.Optional(loc, inner)
	case "*":
		return c.b.ZeroOrMore(loc, inner)
	case "+":
		return c.b.OneOrMore(loc, inner)
	}
	return inner
}

func (c *converter) primary(cst *primaryCST) ast.Expression {
	loc := c.loc(cst.Pos, cst.EndPos)
	switch {
	case cst.Str != nil:
		value, ignoreCase := c.unquote(*cst.Str, cst.Pos)
		return c.b.Literal(loc, value, ignoreCase)
	case cst.Cls != nil:
		parts, inverted, ignoreCase := c.parseClass(*cst.Cls, cst.Pos)
		return c.b.CharClass(loc, parts, inverted, ignoreCase)
	case cst.Any:
		return c.b.Any(loc)
	case cst.End:
		return c.b.End(loc)
	case cst.Group != nil:
		return c.choice(cst.Group)
	default:
		return c.b.RuleRef(loc, *cst.Ref)
	}
}

func (c *converter) code(cst *codeCST) *ast.CodeBlock {
	return &ast.CodeBlock{
		Location: c.loc(cst.Pos, cst.EndPos),
		Code:     cst.text(),
	}
}

func (c *converter) annotations(list []*annotationCST) []ast.Annotation {
	var out []ast.Annotation
	for _, a := range list {
		name := strings.TrimPrefix(a.Name, "@")
		loc := c.loc(a.Pos, a.EndPos)
		if name == "if" {
			var conds []string
			for _, p := range a.Params {
				conds = append(conds, p.Name)
			}
			out = append(out, ast.Annotation{Location: loc, If: &ast.IfAnnotation{Conditions: conds}})
			continue
		}
		params := map[string]ast.AnnotationValue{}
		for _, p := range a.Params {
			params[p.Name] = c.annotationValue(p.Value, p.Pos)
		}
		out = append(out, ast.Annotation{
			Location: loc,
			Generic:  &ast.GenericAnnotation{Name: name, Parameters: params},
		})
	}
	return out
}

func (c *converter) annotationValue(v *annotationValueCST, pos lexer.Position) ast.AnnotationValue {
	if v == nil {
		return ast.AnnotationValue{Kind: ast.AnnotationBool, Bool: true}
	}
	switch {
	case v.Str != nil:
		s, _ := c.unquote(*v.Str, pos)
		return ast.AnnotationValue{Kind: ast.AnnotationString, Str: s}
	case v.Num != nil:
		return ast.AnnotationValue{Kind: ast.AnnotationNumber, Num: *v.Num}
	case v.Bool != nil:
		return ast.AnnotationValue{Kind: ast.AnnotationBool, Bool: *v.Bool == "true"}
	case v.Arr != nil:
		var arr []ast.AnnotationValue
		for _, el := range v.Arr {
			arr = append(arr, c.annotationValue(el, pos))
		}
		return ast.AnnotationValue{Kind: ast.AnnotationArray, Array: arr}
	case v.Ident != nil:
		return ast.AnnotationValue{Kind: ast.AnnotationIdent, Ident: *v.Ident}
	}
	return ast.AnnotationValue{Kind: ast.AnnotationBool, Bool: true}
}

// unquote strips the quotes and optional trailing `i` flag from a string
// token and resolves its escapes.
func (c *converter) unquote(tok string, pos lexer.Position) (string, bool) {
	ignoreCase := false
	if strings.HasSuffix(tok, "i") && len(tok) > 1 && (tok[len(tok)-2] == '"' || tok[len(tok)-2] == '\'') {
		ignoreCase = true
		tok = tok[:len(tok)-1]
	}
	if len(tok) < 2 {
		return tok, ignoreCase
	}
	body := tok[1 : len(tok)-1]
	out, err := unescape(body)
	if err != nil {
		c.errs = append(c.errs, ast.NewError(ast.ParseErr, true, posLoc(c.file, pos), "invalid string literal %s: %v", tok, err))
		return body, ignoreCase
	}
	return out, ignoreCase
}

// parseClass decodes a character class token like `[^a-z0-9]i` into its
// parts. Ranges with From > To are reported as E-INVALID-RANGE; scanning
// continues so every bad range in the class is reported.
func (c *converter) parseClass(tok string, pos lexer.Position) ([]ast.ClassPart, bool, bool) {
	ignoreCase := false
	if strings.HasSuffix(tok, "i") && !strings.HasSuffix(tok, "]") {
		ignoreCase = true
		tok = tok[:len(tok)-1]
	}
	body := tok[1 : len(tok)-1]
	inverted := false
	if strings.HasPrefix(body, "^") {
		inverted = true
		body = body[1:]
	}

	runes := []rune(body)
	var parts []ast.ClassPart
	i := 0
	next := func() (rune, bool) {
		if i >= len(runes) {
			return 0, false
		}
		r := runes[i]
		i++
		if r != '\\' {
			return r, true
		}
		decoded, consumed, err := unescapeAt(runes[i:])
		if err != nil {
			c.errs = append(c.errs, ast.NewError(ast.ParseErr, true, posLoc(c.file, pos), "invalid escape in class %s: %v", tok, err))
			return 0, false
		}
		i += consumed
		return decoded, true
	}
	for i < len(runes) {
		from, ok := next()
		if !ok {
			break
		}
		if i < len(runes) && runes[i] == '-' && i+1 < len(runes) {
			i++
			to, ok := next()
			if !ok {
				break
			}
			if from > to {
				c.errs = append(c.errs, ast.NewError(ast.InvalidRangeErr, true, posLoc(c.file, pos),
					"invalid character range %c-%c in class %s", from, to, tok))
				continue
			}
			parts = append(parts, ast.ClassPart{From: from, To: to})
			continue
		}
		parts = append(parts, ast.ClassPart{Single: true, From: from})
	}
	return parts, inverted, ignoreCase
}

// unescape resolves backslash escapes in a quoted literal body.
func unescape(s string) (string, error) {
	runes := []rune(s)
	var b strings.Builder
	for i := 0; i < len(runes); {
		if runes[i] != '\\' {
			b.WriteRune(runes[i])
			i++
			continue
		}
		i++
		decoded, consumed, err := unescapeAt(runes[i:])
		if err != nil {
			return "", err
		}
		b.WriteRune(decoded)
		i += consumed
	}
	return b.String(), nil
}

// unescapeAt decodes one escape sequence starting after the backslash.
func unescapeAt(runes []rune) (rune, int, error) {
	if len(runes) == 0 {
		return 0, 0, errors.New("dangling backslash")
	}
	switch runes[0] {
	case 'n':
		return '\n', 1, nil
	case 'r':
		return '\r', 1, nil
	case 't':
		return '\t', 1, nil
	case '0':
		return 0, 1, nil
	case 'x':
		return unescapeHex(runes[1:], 2)
	case 'u':
		return unescapeHex(runes[1:], 4)
	default:
		return runes[0], 1, nil
	}
}

func unescapeHex(runes []rune, width int) (rune, int, error) {
	if len(runes) < width {
		return 0, 0, errors.Errorf("truncated \\%c escape", map[int]rune{2: 'x', 4: 'u'}[width])
	}
	n, err := strconv.ParseUint(string(runes[:width]), 16, 32)
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid hex escape")
	}
	return rune(n), width + 1, nil
}
