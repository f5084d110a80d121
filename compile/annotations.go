// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import (
	"github.com/arcanis/pegjs/ast"
)

// annotated is the view of a node the annotation processor works with.
// Every expression satisfies it through the embedded ast.Node.
type annotated interface {
	ast.Expression
	Anns() []ast.Annotation
	ClearAnns()
}

// processAnnotations evaluates @if guards and applies generic annotation
// rewrites, in a single top-down traversal: a rewritten subtree is not
// re-scanned for further annotations. @if is always evaluated before any
// generic annotation on the same node. Rules (and choice alternatives)
// guarded false are removed; removing the start rule is fatal.
func (c *Compiler) processAnnotations() {
	p := &annotationProcessor{
		c:      c,
		params: c.Options.ParameterSet(),
		b:      ast.ResumeBuilder(ast.MaxNodeID(c.Grammar)),
	}
	if len(c.Grammar.Parameters) > 0 {
		p.declared = map[string]bool{}
		for _, name := range c.Grammar.Parameters {
			p.declared[name] = true
		}
	}

	start := c.Grammar.StartRule()
	startKept := false
	var kept []*ast.Rule
	for _, r := range c.Grammar.Rules {
		if p.processRule(r) {
			kept = append(kept, r)
			if r == start {
				startKept = true
			}
		}
	}
	c.Grammar.Rules = kept

	if len(kept) == 0 || !startKept {
		c.err(ast.NewError(ast.EmptyGrammarErr, true, c.Grammar.Location,
			"the start rule was removed by annotation processing"))
		return
	}

	// Pruning may have removed rules that surviving references still name.
	c.resolveRuleIndexes(func(ref *ast.RuleRef) {
		c.err(ast.NewError(ast.UndefinedRuleErr, true, ref.Loc(),
			"rule %q was removed by annotation processing but is still referenced", ref.Name))
	})
}

type annotationProcessor struct {
	c      *Compiler
	params map[string]bool
	// declared is the grammar's @parameters set, nil when the grammar
	// declares none; @if conditions outside it are reported.
	declared map[string]bool
	b        *ast.Builder
}

// processRule returns whether the rule survives.
func (p *annotationProcessor) processRule(r *ast.Rule) bool {
	anns := r.Anns()
	r.ClearAnns()
	if !p.evalIf(anns) {
		return false
	}
	for i := range anns {
		g := anns[i].Generic
		if g == nil {
			continue
		}
		switch g.Name {
		case "token":
			// A rule-level token defaults its type to the rule name.
			t, _ := stringParam(g, "type")
			if t == "" {
				t = r.Name
			}
			p.c.Metadata.Of(r.NodeID()).TokenType = t
		default:
			r.Expression, _ = p.applyGeneric(&anns[i], r.Expression)
		}
	}
	expr, removed := p.transform(r.Expression)
	r.Expression = expr
	return !removed
}

// transform applies annotations attached to e, then descends. The second
// result reports that e was pruned away entirely.
func (p *annotationProcessor) transform(e ast.Expression) (ast.Expression, bool) {
	if e == nil {
		return nil, false
	}
	node := e.(annotated)
	anns := node.Anns()
	node.ClearAnns()

	if !p.evalIf(anns) {
		return e, true
	}

	cur := e
	rewritten := false
	for i := range anns {
		if anns[i].Generic == nil {
			continue
		}
		next, did := p.applyGeneric(&anns[i], cur)
		cur = next
		rewritten = rewritten || did
	}
	if rewritten {
		// Single-pass evaluation: the synthesized subtree is not
		// re-scanned for further annotations.
		return cur, false
	}

	switch x := cur.(type) {
	case *ast.Choice:
		var alts []ast.Expression
		for _, alt := range x.Alternatives {
			na, removed := p.transform(alt)
			if !removed {
				alts = append(alts, na)
			}
		}
		if len(alts) == 0 {
			return cur, true
		}
		if len(alts) == 1 {
			return alts[0], false
		}
		x.Alternatives = alts
	case *ast.Sequence:
		for i, el := range x.Elements {
			ne, removed := p.transform(el)
			if removed {
				return cur, true
			}
			x.Elements[i] = ne
		}
	case *ast.Optional:
		return p.transformChild(cur, &x.Expr)
	case *ast.ZeroOrMore:
		return p.transformChild(cur, &x.Expr)
	case *ast.OneOrMore:
		return p.transformChild(cur, &x.Expr)
	case *ast.Text:
		return p.transformChild(cur, &x.Expr)
	case *ast.SimpleAnd:
		return p.transformChild(cur, &x.Expr)
	case *ast.SimpleNot:
		return p.transformChild(cur, &x.Expr)
	case *ast.Labeled:
		return p.transformChild(cur, &x.Expr)
	case *ast.Action:
		return p.transformChild(cur, &x.Expr)
	case *ast.Scope:
		return p.transformChild(cur, &x.Expr)
	case *ast.Named:
		return p.transformChild(cur, &x.Expr)
	}
	return cur, false
}

func (p *annotationProcessor) transformChild(parent ast.Expression, child *ast.Expression) (ast.Expression, bool) {
	ne, removed := p.transform(*child)
	if removed {
		return parent, true
	}
	*child = ne
	return parent, false
}

// evalIf evaluates every @if guard in anns against the build parameters.
// All conditions of all guards must hold. Conditions outside the
// grammar's declared @parameters set are reported (non-fatal) but still
// evaluated.
func (p *annotationProcessor) evalIf(anns []ast.Annotation) bool {
	ok := true
	for _, a := range anns {
		if a.If == nil {
			continue
		}
		for _, cond := range a.If.Conditions {
			if p.declared != nil && !p.declared[cond] {
				p.c.err(ast.NewError(ast.UnknownAnnotationErr, false, a.Location,
					"@if condition %q is not a declared parameter", cond))
			}
			if !p.params[cond] {
				ok = false
			}
		}
	}
	return ok
}

// applyGeneric applies one generic annotation to target. The second
// result reports whether the subtree was replaced (as opposed to merely
// marked).
func (p *annotationProcessor) applyGeneric(a *ast.Annotation, target ast.Expression) (ast.Expression, bool) {
	g := a.Generic
	switch g.Name {
	case "separator":
		return p.applySeparator(a, target)

	case "token":
		t, _ := stringParam(g, "type")
		if t == "" {
			t = "token"
		}
		p.c.Metadata.Of(target.NodeID()).TokenType = t
		return target, false

	case "type":
		t, ok := stringParam(g, "type")
		if !ok {
			p.c.err(ast.NewError(ast.UnknownAnnotationErr, false, a.Location,
				"@type requires a type parameter"))
			return target, false
		}
		meta := p.c.Metadata.Of(target.NodeID())
		if meta.TypePinned && meta.Type.String() != t {
			p.c.err(ast.NewError(ast.TypeConflictErr, true, a.Location,
				"conflicting @type annotations: %q and %q", meta.Type.String(), t))
			return target, false
		}
		meta.Type = namedType(t)
		meta.TypePinned = true
		return target, false

	default:
		p.c.err(ast.NewError(ast.UnknownAnnotationErr, false, a.Location,
			"unknown annotation @%s", g.Name))
		return target, false
	}
}

// applySeparator rewrites a repetition X+ (or X*) into the separated form
// sequence(X, zeroOrMore(sequence(sep, X))), wrapped in a synthesized
// action so the result keeps the repetition's shape: an array of X.
func (p *annotationProcessor) applySeparator(a *ast.Annotation, target ast.Expression) (ast.Expression, bool) {
	sep, ok := p.separatorExpr(a)
	if !ok {
		return target, false
	}
	loc := target.Loc()

	rewritePlus := func(inner ast.Expression) ast.Expression {
		tail := p.b.ZeroOrMore(loc, p.b.Sequence(loc, sep, inner))
		seq := p.b.Sequence(loc,
			p.b.Labeled(loc, "peg$head", inner),
			p.b.Labeled(loc, "peg$tail", tail),
		)
		act := p.b.Action(loc, seq, &ast.CodeBlock{
			Location: loc,
			Code:     "return [peg$head].concat(peg$tail.map(function (p) { return p[1]; }));",
		})
		p.c.Metadata.Of(act.NodeID()).ArrayOf = inner.NodeID()
		return act
	}

	switch x := target.(type) {
	case *ast.OneOrMore:
		return rewritePlus(x.Expr), true
	case *ast.ZeroOrMore:
		opt := p.b.Optional(loc, rewritePlus(x.Expr))
		act := p.b.Action(loc, p.b.Labeled(loc, "peg$list", opt), &ast.CodeBlock{
			Location: loc,
			Code:     "return peg$list === null ? [] : peg$list;",
		})
		p.c.Metadata.Of(act.NodeID()).ArrayOf = x.Expr.NodeID()
		return act, true
	default:
		p.c.err(ast.NewError(ast.UnknownAnnotationErr, false, a.Location,
			"@separator applies only to a repetition"))
		return target, false
	}
}

func (p *annotationProcessor) separatorExpr(a *ast.Annotation) (ast.Expression, bool) {
	v, ok := a.Generic.Parameters["expr"]
	if !ok {
		p.c.err(ast.NewError(ast.UnknownAnnotationErr, false, a.Location,
			"@separator requires an expr parameter"))
		return nil, false
	}
	switch v.Kind {
	case ast.AnnotationString:
		return p.b.Literal(a.Location, v.Str, false), true
	case ast.AnnotationIdent:
		return p.b.RuleRef(a.Location, v.Ident), true
	default:
		p.c.err(ast.NewError(ast.UnknownAnnotationErr, false, a.Location,
			"@separator expr must be a literal or a rule name"))
		return nil, false
	}
}

// stringParam reads a string- or identifier-valued annotation parameter.
func stringParam(g *ast.GenericAnnotation, key string) (string, bool) {
	v, ok := g.Parameters[key]
	if !ok {
		return "", false
	}
	switch v.Kind {
	case ast.AnnotationString:
		return v.Str, true
	case ast.AnnotationIdent:
		return v.Ident, true
	default:
		return "", false
	}
}
