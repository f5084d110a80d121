// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleGrammar() *Grammar {
	b := NewBuilder()
	loc := NewLocation("g.peg", Position{Offset: 0, Line: 1, Column: 1}, Position{Offset: 5, Line: 1, Column: 6}, "")

	digits := b.OneOrMore(loc, b.CharClass(loc, []ClassPart{{From: '0', To: '9'}, {Single: true, From: '_'}}, false, false))
	action := b.Action(loc, b.Labeled(loc, "n", digits), &CodeBlock{Location: loc, Code: "return n;"})

	word := b.Rule(loc, "word", b.Named(loc, "a word", b.Text(loc, b.OneOrMore(loc, b.CharClass(loc, []ClassPart{{From: 'a', To: 'z'}}, false, true)))))
	word.SetAnns([]Annotation{
		{Location: loc, If: &IfAnnotation{Conditions: []string{"debug"}}},
		{Location: loc, Generic: &GenericAnnotation{Name: "token", Parameters: map[string]AnnotationValue{
			"type": {Kind: AnnotationString, Str: "word"},
		}}},
	})

	start := b.Rule(loc, "start", b.Choice(loc,
		action,
		b.Sequence(loc,
			b.SimpleNot(loc, b.Literal(loc, "x", false)),
			b.Optional(loc, b.Any(loc)),
			b.Picked(loc, "", b.RuleRef(loc, "word")),
			b.Scope(loc, b.SemanticAnd(loc, &CodeBlock{Location: loc, Code: "return ok;"}), &CodeBlock{Location: loc, Code: "let ok = true;"}),
			b.ZeroOrMore(loc, b.SimpleAnd(loc, b.End(loc))),
		),
	))

	return &Grammar{
		Location:    loc,
		Initializer: &CodeBlock{Location: loc, Code: "var n = 0;"},
		Parameters:  []string{"debug"},
		Rules:       []*Rule{start, word},
	}
}

func TestGrammarJSONRoundTrip(t *testing.T) {
	g := sampleGrammar()
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}

	var back Grammar
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(g, &back); diff != "" {
		t.Fatalf("round trip changed the grammar (-want +got):\n%s", diff)
	}
}

func TestGrammarJSONShape(t *testing.T) {
	g := sampleGrammar()
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["type"] != "grammar" {
		t.Fatalf("expected type grammar, got %v", raw["type"])
	}
	rules := raw["rules"].([]interface{})
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	rule := rules[0].(map[string]interface{})
	if rule["type"] != "rule" || rule["name"] != "start" {
		t.Fatalf("unexpected rule header: %v", rule)
	}
	expr := rule["expression"].(map[string]interface{})
	if expr["type"] != "choice" {
		t.Fatalf("expected choice, got %v", expr["type"])
	}
}

func TestUnknownNodeTypeRejected(t *testing.T) {
	data := []byte(`{"type":"grammar","rules":[{"type":"rule","name":"r","expression":{"type":"mystery","id":1}}]}`)
	var g Grammar
	if err := json.Unmarshal(data, &g); err == nil {
		t.Fatal("expected an error for an unknown node type")
	}
}
