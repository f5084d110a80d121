// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"testing"
)

func TestWalkVisitsDepthFirst(t *testing.T) {
	b := NewBuilder()
	g := &Grammar{Rules: []*Rule{
		b.Rule(nil, "start", b.Sequence(nil,
			b.Literal(nil, "a", false),
			b.Choice(nil, b.RuleRef(nil, "start"), b.Any(nil)),
		)),
	}}

	var order []string
	Walk(WalkFunc(func(x interface{}) bool {
		switch x.(type) {
		case *Grammar:
			order = append(order, "grammar")
		case *Rule:
			order = append(order, "rule")
		case *Sequence:
			order = append(order, "sequence")
		case *Literal:
			order = append(order, "literal")
		case *Choice:
			order = append(order, "choice")
		case *RuleRef:
			order = append(order, "ruleRef")
		case *AnyMatch:
			order = append(order, "any")
		}
		return false
	}), g)

	want := []string{"grammar", "rule", "sequence", "literal", "choice", "ruleRef", "any"}
	if len(order) != len(want) {
		t.Fatalf("visited %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("visited %v, want %v", order, want)
		}
	}
}

func TestWalkStopsDescentWhenAsked(t *testing.T) {
	b := NewBuilder()
	expr := b.Sequence(nil, b.Optional(nil, b.Literal(nil, "a", false)))

	var sawLiteral bool
	Walk(WalkFunc(func(x interface{}) bool {
		if _, ok := x.(*Literal); ok {
			sawLiteral = true
		}
		_, isOpt := x.(*Optional)
		return isOpt
	}), expr)
	if sawLiteral {
		t.Fatal("descent into a pruned subtree")
	}
}

func TestMaxNodeID(t *testing.T) {
	b := NewBuilder()
	g := &Grammar{Rules: []*Rule{b.Rule(nil, "start", b.Literal(nil, "a", false))}}
	max := MaxNodeID(g)
	next := ResumeBuilder(max).Literal(nil, "b", false)
	if next.NodeID() <= max {
		t.Fatalf("resumed builder minted %d, not above %d", next.NodeID(), max)
	}
}
