// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

// Grammar is the top-level compilation unit: an ordered sequence of rules
// plus an optional initializer code block and a set of declared build
// parameters. The first rule is the default start rule; compile options
// have no start-rule setting, and another rule is chosen only at parse
// time through the parser's startRule option.
type Grammar struct {
	Location    *Location
	Initializer *CodeBlock
	Parameters  []string
	Rules       []*Rule
}

// StartRule returns the grammar's first rule, or nil for an empty grammar.
func (g *Grammar) StartRule() *Rule {
	if len(g.Rules) == 0 {
		return nil
	}
	return g.Rules[0]
}

// RuleByName returns the rule named name, or nil if none matches. Callers
// that need a stable index should use a compile.RuleTable instead; this is
// a convenience for tests and tooling.
func (g *Grammar) RuleByName(name string) *Rule {
	for _, r := range g.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Rule is a named production: an expression body, an optional
// human-readable display name, and a set of annotations (carried on the
// embedded Node). Rule names are unique within a grammar (enforced by the
// reference-checker pass).
type Rule struct {
	Node
	Name        string
	DisplayName string
	Expression  Expression
}

func (b *Builder) Rule(loc *Location, name string, expr Expression) *Rule {
	return &Rule{Node: b.node(loc), Name: name, Expression: expr}
}

// AnnotationValueKind discriminates the literal kinds a generic
// annotation's parameters may hold.
type AnnotationValueKind int

const (
	AnnotationString AnnotationValueKind = iota
	AnnotationNumber
	AnnotationBool
	AnnotationArray
	AnnotationIdent
)

// AnnotationValue is a literal value attached to a generic annotation
// parameter, e.g. the `","` in `@separator(expr: ",")`.
type AnnotationValue struct {
	Kind  AnnotationValueKind
	Str   string
	Num   float64
	Bool  bool
	Array []AnnotationValue
	Ident string
}

// Annotation is either an `@if(...)` guard or a generic annotation such as
// `@token`, `@separator`, or `@type`. Exactly one of If or Generic is set.
type Annotation struct {
	Location *Location
	If       *IfAnnotation
	Generic  *GenericAnnotation
}

// IfAnnotation guards a rule or choice alternative on a set of build-time
// condition identifiers (see compile options' Parameters).
type IfAnnotation struct {
	Conditions []string
}

// GenericAnnotation rewrites the subtree it annotates; Name selects the
// rewrite (token, separator, type, ...) and Parameters carries its literal
// arguments.
type GenericAnnotation struct {
	Name       string
	Parameters map[string]AnnotationValue
}

// IsIf reports whether a is an `@if` guard.
func (a Annotation) IsIf() bool { return a.If != nil }
