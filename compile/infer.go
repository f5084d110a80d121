// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import (
	"strings"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/types"
)

// inferTypes assigns a result type to every rule and expression. Rule
// types are iterated to a fixed point: references start as unknown and
// each pass either keeps a type or refines it, over the finite set of type
// strings a grammar can produce, so the iteration terminates. Types pinned
// by @type annotations terminate propagation at their node and are never
// re-derived. Once the fixed point settles, any residual unknown (a rule
// reachable only through its own cycle) generalizes to any.
func (c *Compiler) inferTypes() {
	n := len(c.Grammar.Rules)
	c.RuleTypes = make([]types.Type, n)
	for i := range c.RuleTypes {
		c.RuleTypes[i] = types.NewUnknown()
	}

	inf := &inferencer{c: c, byID: map[ast.NodeID]ast.Expression{}}
	for _, r := range c.Grammar.Rules {
		ast.WalkExpressions(r.Expression, func(e ast.Expression) {
			inf.byID[e.NodeID()] = e
		})
	}

	// n+1 iterations reach the fixed point on any acyclic reference
	// chain; recursive rules keep an unknown component that the
	// generalization below resolves, so the bound also cuts off the
	// otherwise ever-growing types of self-referential tuples.
	for iter := 0; iter <= n; iter++ {
		changed := false
		for i, r := range c.Grammar.Rules {
			if !types.IsUnknown(c.RuleTypes[i]) {
				continue
			}
			t := inf.typeOf(r.Expression)
			if types.Sprint(t) != types.Sprint(c.RuleTypes[i]) {
				c.RuleTypes[i] = t
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for i := range c.RuleTypes {
		c.RuleTypes[i] = types.Generalize(c.RuleTypes[i])
	}
	for _, r := range c.Grammar.Rules {
		ast.WalkExpressions(r.Expression, func(e ast.Expression) {
			meta := c.Metadata.Of(e.NodeID())
			meta.Type = types.Generalize(meta.Type)
		})
	}

	// Label manifests carry their entry types for the emitter.
	for _, r := range c.Grammar.Rules {
		ast.WalkExpressions(r.Expression, func(e ast.Expression) {
			meta, ok := c.Metadata.Lookup(e.NodeID())
			if !ok {
				return
			}
			for i := range meta.Manifest {
				entry := &meta.Manifest[i]
				if entry.FromScope {
					entry.Type = types.Sprint(types.NewAny())
					continue
				}
				if em, ok := c.Metadata.Lookup(entry.Node); ok && em.Type != nil {
					entry.Type = types.Sprint(em.Type)
				} else {
					entry.Type = types.Sprint(types.NewAny())
				}
			}
		})
	}
}

// RuleTypeStrings returns the inferred rule types as display strings,
// aligned with Grammar.Rules. Valid after a successful Compile.
func (c *Compiler) RuleTypeStrings() []string {
	out := make([]string, len(c.RuleTypes))
	for i, t := range c.RuleTypes {
		out[i] = types.Sprint(t)
	}
	return out
}

type inferencer struct {
	c    *Compiler
	byID map[ast.NodeID]ast.Expression
}

func (inf *inferencer) typeOf(e ast.Expression) types.Type {
	meta := inf.c.Metadata.Of(e.NodeID())
	if meta.TypePinned {
		return meta.Type
	}
	t := inf.derive(e, meta)
	meta.Type = t
	return t
}

func (inf *inferencer) derive(e ast.Expression, meta *NodeMeta) types.Type {
	// Annotation rewrites pin the shape of their synthesized actions.
	if meta.ArrayOf != 0 {
		if el, ok := inf.byID[meta.ArrayOf]; ok {
			return types.NewArray(inf.typeOf(el))
		}
		return types.NewArray(types.NewAny())
	}
	if len(meta.PickOf) > 0 {
		elems := make([]types.Type, len(meta.PickOf))
		for i, id := range meta.PickOf {
			if el, ok := inf.byID[id]; ok {
				elems[i] = inf.typeOf(el)
			} else {
				elems[i] = types.NewAny()
			}
		}
		if len(elems) == 1 {
			return elems[0]
		}
		return types.NewTuple(elems...)
	}

	switch x := e.(type) {
	case *ast.Literal, *ast.CharClass, *ast.AnyMatch:
		return types.NewString()
	case *ast.Text:
		inf.typeOf(x.Expr)
		return types.NewString()
	case *ast.EndMatch:
		return types.NewUndefined()
	case *ast.RuleRef:
		if x.Index < 0 {
			return types.NewUnknown()
		}
		return inf.c.RuleTypes[x.Index]
	case *ast.Sequence:
		// Mirrors the generated tuple assembly: unlabeled void elements
		// are dropped, and a single surviving value element is unwrapped.
		var kept []types.Type
		for _, el := range x.Elements {
			t := inf.typeOf(el)
			if !ast.IsVoid(el) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 1 && len(x.Elements) > 1 {
			return kept[0]
		}
		return types.NewTuple(kept...)
	case *ast.Choice:
		alts := make([]types.Type, len(x.Alternatives))
		for i, alt := range x.Alternatives {
			alts[i] = inf.typeOf(alt)
		}
		return types.Or(alts...)
	case *ast.Optional:
		return types.Nullable(inf.typeOf(x.Expr))
	case *ast.ZeroOrMore:
		return types.NewArray(inf.typeOf(x.Expr))
	case *ast.OneOrMore:
		return types.NewArray(inf.typeOf(x.Expr))
	case *ast.SimpleAnd:
		inf.typeOf(x.Expr)
		return types.NewUndefined()
	case *ast.SimpleNot:
		inf.typeOf(x.Expr)
		return types.NewUndefined()
	case *ast.SemanticAnd, *ast.SemanticNot:
		return types.NewUndefined()
	case *ast.Labeled:
		return inf.typeOf(x.Expr)
	case *ast.Action:
		inf.typeOf(x.Expr)
		return declaredReturnType(x.Code)
	case *ast.Scope:
		return inf.typeOf(x.Expr)
	case *ast.Named:
		return inf.typeOf(x.Expr)
	default:
		return types.NewAny()
	}
}

// declaredReturnType reads an action's declared return type: a leading
// `/*: T */` comment in the code block. Undeclared actions are any.
func declaredReturnType(code *ast.CodeBlock) types.Type {
	s := strings.TrimSpace(code.Code)
	if !strings.HasPrefix(s, "/*:") {
		return types.NewAny()
	}
	end := strings.Index(s, "*/")
	if end < 0 {
		return types.NewAny()
	}
	decl := strings.TrimSpace(s[len("/*:"):end])
	if decl == "" {
		return types.NewAny()
	}
	return namedType(decl)
}

// namedType maps a user-supplied type string onto the lattice, folding the
// spellings of the built-in types onto their canonical forms.
func namedType(s string) types.Type {
	switch s {
	case "string":
		return types.NewString()
	case "undefined":
		return types.NewUndefined()
	case "null":
		return types.NewNull()
	case "any":
		return types.NewAny()
	default:
		return types.NewNamed(s)
	}
}
