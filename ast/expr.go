// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

// Expression is the sum type of every grammar expression node. Passes
// dispatch on the concrete type with a type switch rather than a method
// table, matching the tagged-variant style the AST is meant to stay stable
// under (see the "Polymorphic AST" design note).
type Expression interface {
	Loc() *Location
	NodeID() NodeID
	exprMarker()
}

// CodeBlock holds an opaque host-language code fragment (an action, a
// predicate body, or a scope prelude). The compiler never parses the text;
// it only ever scans it for identifier references when building label
// manifests (see compile/labels.go).
type CodeBlock struct {
	Location *Location
	Code     string
}

// ClassPart is one element of a character class: either a single code
// point (To == 0, Single true) or an inclusive range [From, To].
type ClassPart struct {
	Single bool
	From   rune
	To     rune
}

type (
	// Literal matches a fixed string.
	Literal struct {
		Node
		Value      string
		IgnoreCase bool
	}

	// CharClass matches one code point against a set of ranges/singletons.
	CharClass struct {
		Node
		Parts      []ClassPart
		Inverted   bool
		IgnoreCase bool
	}

	// AnyMatch matches any one code point; fails at end of input.
	AnyMatch struct {
		Node
	}

	// EndMatch succeeds only at end of input; consumes nothing.
	EndMatch struct {
		Node
	}

	// RuleRef invokes another rule by name. Index is resolved by the
	// reference-checker pass (invariant 1) and is -1 until then.
	RuleRef struct {
		Node
		Name  string
		Index int
	}

	// Sequence matches each element in order; its result is the tuple of
	// sub-results.
	Sequence struct {
		Node
		Elements []Expression
	}

	// Choice tries each alternative in order, committing on first success.
	Choice struct {
		Node
		Alternatives []Expression
	}

	// Optional matches Expr zero or one times.
	Optional struct {
		Node
		Expr Expression
	}

	// ZeroOrMore matches Expr zero or more times.
	ZeroOrMore struct {
		Node
		Expr Expression
	}

	// OneOrMore matches Expr one or more times.
	OneOrMore struct {
		Node
		Expr Expression
	}

	// Text matches Expr and returns the matched substring, discarding
	// Expr's own result.
	Text struct {
		Node
		Expr Expression
	}

	// SimpleAnd is positive lookahead: matches without consuming input.
	SimpleAnd struct {
		Node
		Expr Expression
	}

	// SimpleNot is negative lookahead: matches without consuming input.
	SimpleNot struct {
		Node
		Expr Expression
	}

	// SemanticAnd runs Code as a predicate; a truthy return is success.
	SemanticAnd struct {
		Node
		Code *CodeBlock
	}

	// SemanticNot runs Code as a predicate; a falsy return is success.
	SemanticNot struct {
		Node
		Code *CodeBlock
	}

	// Labeled binds Expr's result under Label for enclosing action code.
	// Pick marks a `::` element whose result becomes (part of) the
	// enclosing sequence's result; the label may be empty for picked
	// elements, in which case the label analyzer synthesizes one.
	Labeled struct {
		Node
		Label string
		Pick  bool
		Expr  Expression
	}

	// Action matches Expr, then runs Code whose return value replaces the
	// match result.
	Action struct {
		Node
		Expr Expression
		Code *CodeBlock
	}

	// Scope runs Code before attempting Expr; Code may introduce bindings
	// visible inside Expr.
	Scope struct {
		Node
		Expr Expression
		Code *CodeBlock
	}

	// Named rebrands failure messages produced while matching Expr.
	Named struct {
		Node
		DisplayName string
		Expr        Expression
	}
)

func (*Literal) exprMarker()     {}
func (*CharClass) exprMarker()   {}
func (*AnyMatch) exprMarker()    {}
func (*EndMatch) exprMarker()    {}
func (*RuleRef) exprMarker()     {}
func (*Sequence) exprMarker()    {}
func (*Choice) exprMarker()      {}
func (*Optional) exprMarker()    {}
func (*ZeroOrMore) exprMarker()  {}
func (*OneOrMore) exprMarker()   {}
func (*Text) exprMarker()        {}
func (*SimpleAnd) exprMarker()   {}
func (*SimpleNot) exprMarker()   {}
func (*SemanticAnd) exprMarker() {}
func (*SemanticNot) exprMarker() {}
func (*Labeled) exprMarker()     {}
func (*Action) exprMarker()      {}
func (*Scope) exprMarker()       {}
func (*Named) exprMarker()       {}

// IsVoid reports whether e is a valueless match: lookaheads, semantic
// predicates, and end-of-input produce undefined. Sequences drop the
// results of unlabeled void elements when assembling their tuple, and a
// sequence left with a single value element yields that value directly.
func IsVoid(e Expression) bool {
	switch e.(type) {
	case *SimpleAnd, *SimpleNot, *SemanticAnd, *SemanticNot, *EndMatch:
		return true
	}
	return false
}

// Builder constructors. Every Expression in a grammar must be minted
// through one of these so NodeID assignment stays deterministic.

func (b *Builder) Literal(loc *Location, value string, ignoreCase bool) *Literal {
	return &Literal{Node: b.node(loc), Value: value, IgnoreCase: ignoreCase}
}

func (b *Builder) CharClass(loc *Location, parts []ClassPart, inverted, ignoreCase bool) *CharClass {
	return &CharClass{Node: b.node(loc), Parts: parts, Inverted: inverted, IgnoreCase: ignoreCase}
}

func (b *Builder) Any(loc *Location) *AnyMatch { return &AnyMatch{Node: b.node(loc)} }

func (b *Builder) End(loc *Location) *EndMatch { return &EndMatch{Node: b.node(loc)} }

func (b *Builder) RuleRef(loc *Location, name string) *RuleRef {
	return &RuleRef{Node: b.node(loc), Name: name, Index: -1}
}

func (b *Builder) Sequence(loc *Location, elements ...Expression) *Sequence {
	return &Sequence{Node: b.node(loc), Elements: elements}
}

func (b *Builder) Choice(loc *Location, alternatives ...Expression) *Choice {
	return &Choice{Node: b.node(loc), Alternatives: alternatives}
}

func (b *Builder) Optional(loc *Location, e Expression) *Optional {
	return &Optional{Node: b.node(loc), Expr: e}
}

func (b *Builder) ZeroOrMore(loc *Location, e Expression) *ZeroOrMore {
	return &ZeroOrMore{Node: b.node(loc), Expr: e}
}

func (b *Builder) OneOrMore(loc *Location, e Expression) *OneOrMore {
	return &OneOrMore{Node: b.node(loc), Expr: e}
}

func (b *Builder) Text(loc *Location, e Expression) *Text {
	return &Text{Node: b.node(loc), Expr: e}
}

func (b *Builder) SimpleAnd(loc *Location, e Expression) *SimpleAnd {
	return &SimpleAnd{Node: b.node(loc), Expr: e}
}

func (b *Builder) SimpleNot(loc *Location, e Expression) *SimpleNot {
	return &SimpleNot{Node: b.node(loc), Expr: e}
}

func (b *Builder) SemanticAnd(loc *Location, code *CodeBlock) *SemanticAnd {
	return &SemanticAnd{Node: b.node(loc), Code: code}
}

func (b *Builder) SemanticNot(loc *Location, code *CodeBlock) *SemanticNot {
	return &SemanticNot{Node: b.node(loc), Code: code}
}

func (b *Builder) Labeled(loc *Location, label string, e Expression) *Labeled {
	return &Labeled{Node: b.node(loc), Label: label, Expr: e}
}

// Picked mints a `::` element: the result of e is picked out as (part of)
// the enclosing sequence's result.
func (b *Builder) Picked(loc *Location, label string, e Expression) *Labeled {
	return &Labeled{Node: b.node(loc), Label: label, Pick: true, Expr: e}
}

func (b *Builder) Action(loc *Location, e Expression, code *CodeBlock) *Action {
	return &Action{Node: b.node(loc), Expr: e, Code: code}
}

func (b *Builder) Scope(loc *Location, e Expression, code *CodeBlock) *Scope {
	return &Scope{Node: b.node(loc), Expr: e, Code: code}
}

func (b *Builder) Named(loc *Location, displayName string, e Expression) *Named {
	return &Named{Node: b.node(loc), DisplayName: displayName, Expr: e}
}
