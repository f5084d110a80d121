// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import (
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
)

// analyzeActionCode computes, for every code-bearing node, the ordered
// label manifest visible to its code: labels bound earlier in the
// enclosing sequence at the same nesting level, plus bindings introduced
// by enclosing scopes, with inner bindings shadowing outer ones. It also
// expands the `::` result shortcut into a synthesized action beforehand,
// so picked sequences go through the ordinary manifest machinery.
func (c *Compiler) analyzeActionCode() {
	a := &labelAnalyzer{
		c: c,
		b: ast.ResumeBuilder(ast.MaxNodeID(c.Grammar)),
	}
	for _, r := range c.Grammar.Rules {
		r.Expression = a.expandPicks(r.Expression)
	}
	for _, r := range c.Grammar.Rules {
		a.visit(r.Expression, nil)
	}
}

type labelAnalyzer struct {
	c *Compiler
	b *ast.Builder
}

// expandPicks rewrites every sequence containing `::` elements into an
// action returning the picked element (or an array of them, in source
// order). Children are rewritten first so nested sequences are handled.
func (a *labelAnalyzer) expandPicks(e ast.Expression) ast.Expression {
	switch x := e.(type) {
	case *ast.Sequence:
		for i, el := range x.Elements {
			x.Elements[i] = a.expandPicks(el)
		}
		return a.wrapPicks(x)
	case *ast.Choice:
		for i, alt := range x.Alternatives {
			x.Alternatives[i] = a.expandPicks(alt)
		}
	case *ast.Optional:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.ZeroOrMore:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.OneOrMore:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.Text:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.SimpleAnd:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.SimpleNot:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.Labeled:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.Action:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.Scope:
		x.Expr = a.expandPicks(x.Expr)
	case *ast.Named:
		x.Expr = a.expandPicks(x.Expr)
	}
	return e
}

func (a *labelAnalyzer) wrapPicks(seq *ast.Sequence) ast.Expression {
	var picked []*ast.Labeled
	for _, el := range seq.Elements {
		if l, ok := el.(*ast.Labeled); ok && l.Pick {
			picked = append(picked, l)
		}
	}
	if len(picked) == 0 {
		return seq
	}
	var names []string
	var nodes []ast.NodeID
	for i, l := range picked {
		if l.Label == "" {
			l.Label = fmt.Sprintf("peg$pick%d", i)
		}
		l.Pick = false
		names = append(names, l.Label)
		nodes = append(nodes, l.Expr.NodeID())
	}
	code := "return " + names[0] + ";"
	if len(names) > 1 {
		code = "return [" + strings.Join(names, ", ") + "];"
	}
	act := a.b.Action(seq.Loc(), seq, &ast.CodeBlock{Location: seq.Loc(), Code: code})
	a.c.Metadata.Of(act.NodeID()).PickOf = nodes
	return act
}

// scopedLabel is one visible binding while walking a rule.
type scopedLabel struct {
	label     string
	node      ast.NodeID
	fromScope bool
	scope     ast.NodeID
}

// visit walks e with the bindings currently visible, attaching manifests
// to code-bearing nodes. It returns the bindings e contributes to its
// enclosing sequence level (only Labeled contributes).
func (a *labelAnalyzer) visit(e ast.Expression, env []scopedLabel) []scopedLabel {
	switch x := e.(type) {
	case *ast.Labeled:
		a.visit(x.Expr, env)
		if x.Label == "" {
			return nil
		}
		return []scopedLabel{{label: x.Label, node: x.Expr.NodeID()}}

	case *ast.Sequence:
		a.visitSequence(x, env)
		return nil

	case *ast.Choice:
		for _, alt := range x.Alternatives {
			a.visit(alt, env)
		}
		return nil

	case *ast.Action:
		var adds []scopedLabel
		if seq, ok := x.Expr.(*ast.Sequence); ok {
			adds = a.visitSequence(seq, env)
		} else {
			adds = a.visit(x.Expr, env)
		}
		a.attachManifest(x.NodeID(), x.Code, append(append([]scopedLabel{}, env...), adds...))
		return nil

	case *ast.Scope:
		a.attachManifest(x.NodeID(), x.Code, env)
		decls := scanDeclarations(x.Code.Code)
		a.c.Metadata.Of(x.NodeID()).Introduces = decls
		inner := append([]scopedLabel{}, env...)
		for _, d := range decls {
			inner = append(inner, scopedLabel{label: d, node: x.NodeID(), fromScope: true, scope: x.NodeID()})
		}
		a.visit(x.Expr, inner)
		return nil

	case *ast.SemanticAnd:
		a.attachManifest(x.NodeID(), x.Code, env)
		return nil

	case *ast.SemanticNot:
		a.attachManifest(x.NodeID(), x.Code, env)
		return nil

	case *ast.Optional:
		a.visit(x.Expr, env)
	case *ast.ZeroOrMore:
		a.visit(x.Expr, env)
	case *ast.OneOrMore:
		a.visit(x.Expr, env)
	case *ast.Text:
		a.visit(x.Expr, env)
	case *ast.SimpleAnd:
		a.visit(x.Expr, env)
	case *ast.SimpleNot:
		a.visit(x.Expr, env)
	case *ast.Named:
		a.visit(x.Expr, env)
	}
	return nil
}

// visitSequence threads the environment left to right: each element sees
// the labels bound by the elements before it. It returns the bindings the
// sequence accumulated, for an enclosing action to absorb.
func (a *labelAnalyzer) visitSequence(seq *ast.Sequence, env []scopedLabel) []scopedLabel {
	cur := append([]scopedLabel{}, env...)
	var adds []scopedLabel
	for _, el := range seq.Elements {
		contrib := a.visit(el, cur)
		cur = append(cur, contrib...)
		adds = append(adds, contrib...)
	}
	return adds
}

// attachManifest filters the visible bindings down to the identifiers the
// code actually references, resolving shadowing in favor of the innermost
// (latest) binding, and stores the ordered manifest.
func (a *labelAnalyzer) attachManifest(id ast.NodeID, code *ast.CodeBlock, visible []scopedLabel) {
	refs := scanIdentifiers(code.Code)
	// Later entries shadow earlier ones of the same name.
	byName := map[string]int{}
	for i, l := range visible {
		byName[l.label] = i
	}
	var manifest []bytecode.ManifestEntry
	for i, l := range visible {
		if !refs[l.label] || byName[l.label] != i {
			continue
		}
		manifest = append(manifest, bytecode.ManifestEntry{
			Label:     l.label,
			Node:      l.node,
			FromScope: l.fromScope,
			Scope:     l.scope,
		})
	}
	a.c.Metadata.Of(id).Manifest = manifest
}

// scanIdentifiers conservatively collects every identifier-shaped token in
// an opaque code block. The compiler never parses user code; string and
// comment contents may over-match, which only widens a manifest.
func scanIdentifiers(code string) map[string]bool {
	out := map[string]bool{}
	i := 0
	for i < len(code) {
		c := code[i]
		if isIdentStart(c) {
			j := i + 1
			for j < len(code) && isIdentPart(code[j]) {
				j++
			}
			out[code[i:j]] = true
			i = j
			continue
		}
		i++
	}
	return out
}

// scanDeclarations finds the names a scope prelude introduces: the
// identifier following each let/const/var keyword. One declarator per
// keyword; multi-declarator statements should be split in the grammar.
func scanDeclarations(code string) []string {
	var out []string
	seen := map[string]bool{}
	words := tokenizeWords(code)
	for i := 0; i+1 < len(words); i++ {
		switch words[i] {
		case "let", "const", "var":
			name := words[i+1]
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func tokenizeWords(code string) []string {
	var words []string
	i := 0
	for i < len(code) {
		if isIdentStart(code[i]) {
			j := i + 1
			for j < len(code) && isIdentPart(code[j]) {
				j++
			}
			words = append(words, code[i:j])
			i = j
			continue
		}
		i++
	}
	return words
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
