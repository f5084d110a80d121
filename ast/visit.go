// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

// Visitor iterates AST elements. Visit is called for x before its
// children are visited; returning a non-nil Visitor w causes x's children
// to be visited with w, while returning nil stops descent into x.
type Visitor interface {
	Visit(x interface{}) (w Visitor)
}

// WalkFunc adapts a plain function to a Visitor. The function's result
// decides whether the walk descends, as described on Visit.
type WalkFunc func(x interface{}) bool

// Visit implements Visitor. It calls f(x); if f returns true, descent into
// x's children stops.
func (f WalkFunc) Visit(x interface{}) Visitor {
	if f(x) {
		return nil
	}
	return f
}

// Walk recursively visits x (a *Grammar, *Rule, Expression, *CodeBlock, or
// Annotation) and its children, in depth-first order.
func Walk(v Visitor, x interface{}) {
	w := v.Visit(x)
	if w == nil {
		return
	}
	switch n := x.(type) {
	case *Grammar:
		for _, r := range n.Rules {
			Walk(w, r)
		}
	case *Rule:
		Walk(w, n.Expression)
	case *Sequence:
		for _, e := range n.Elements {
			Walk(w, e)
		}
	case *Choice:
		for _, e := range n.Alternatives {
			Walk(w, e)
		}
	case *Optional:
		Walk(w, n.Expr)
	case *ZeroOrMore:
		Walk(w, n.Expr)
	case *OneOrMore:
		Walk(w, n.Expr)
	case *Text:
		Walk(w, n.Expr)
	case *SimpleAnd:
		Walk(w, n.Expr)
	case *SimpleNot:
		Walk(w, n.Expr)
	case *Labeled:
		Walk(w, n.Expr)
	case *Action:
		Walk(w, n.Expr)
	case *Scope:
		Walk(w, n.Expr)
	case *Named:
		Walk(w, n.Expr)
	// *Literal, *CharClass, *AnyMatch, *EndMatch, *RuleRef, *SemanticAnd,
	// *SemanticNot are leaves with respect to Expression children.
	}
}

// WalkExpressions visits every Expression node reachable from x (including
// x itself if it is an Expression), calling f for each.
func WalkExpressions(x interface{}, f func(Expression)) {
	Walk(WalkFunc(func(n interface{}) bool {
		if e, ok := n.(Expression); ok {
			f(e)
		}
		return false
	}), x)
}
