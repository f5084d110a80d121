// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// This file implements the JSON-shaped AST schema shared with external
// tooling: every node serializes as an object with a "type" discriminator
// plus variant-specific fields, and a "location". Node IDs are carried in
// the JSON so a grammar round-trips structurally byte-for-byte.

type jsonNode struct {
	Type        string          `json:"type"`
	ID          NodeID          `json:"id"`
	Location    *Location       `json:"location,omitempty"`
	Annotations []Annotation    `json:"annotations,omitempty"`
	Value       string          `json:"value,omitempty"`
	IgnoreCase  bool            `json:"ignoreCase,omitempty"`
	Parts       []ClassPart     `json:"parts,omitempty"`
	Inverted    bool            `json:"inverted,omitempty"`
	Name        string          `json:"name,omitempty"`
	Index       *int            `json:"index,omitempty"`
	Elements    []json.RawMessage `json:"elements,omitempty"`
	Alternatives []json.RawMessage `json:"alternatives,omitempty"`
	Expression  json.RawMessage `json:"expression,omitempty"`
	Code        *CodeBlock      `json:"code,omitempty"`
	Label       string          `json:"label,omitempty"`
	Pick        bool            `json:"pick,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
}

func marshalExpr(e Expression) (json.RawMessage, error) {
	if e == nil {
		return nil, nil
	}
	n := jsonNode{ID: e.NodeID(), Location: e.Loc()}
	var err error
	switch x := e.(type) {
	case *Literal:
		n.Type, n.Value, n.IgnoreCase, n.Annotations = "literal", x.Value, x.IgnoreCase, x.Annotations
	case *CharClass:
		n.Type, n.Parts, n.Inverted, n.IgnoreCase, n.Annotations = "class", x.Parts, x.Inverted, x.IgnoreCase, x.Annotations
	case *AnyMatch:
		n.Type, n.Annotations = "any", x.Annotations
	case *EndMatch:
		n.Type, n.Annotations = "end", x.Annotations
	case *RuleRef:
		idx := x.Index
		n.Type, n.Name, n.Index, n.Annotations = "ruleRef", x.Name, &idx, x.Annotations
	case *Sequence:
		n.Type, n.Annotations = "sequence", x.Annotations
		for _, el := range x.Elements {
			raw, err := marshalExpr(el)
			if err != nil {
				return nil, err
			}
			n.Elements = append(n.Elements, raw)
		}
	case *Choice:
		n.Type, n.Annotations = "choice", x.Annotations
		for _, alt := range x.Alternatives {
			raw, err := marshalExpr(alt)
			if err != nil {
				return nil, err
			}
			n.Alternatives = append(n.Alternatives, raw)
		}
	case *Optional:
		n.Type, n.Annotations = "optional", x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *ZeroOrMore:
		n.Type, n.Annotations = "zeroOrMore", x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *OneOrMore:
		n.Type, n.Annotations = "oneOrMore", x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *Text:
		n.Type, n.Annotations = "text", x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *SimpleAnd:
		n.Type, n.Annotations = "simpleAnd", x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *SimpleNot:
		n.Type, n.Annotations = "simpleNot", x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *SemanticAnd:
		n.Type, n.Code, n.Annotations = "semanticAnd", x.Code, x.Annotations
	case *SemanticNot:
		n.Type, n.Code, n.Annotations = "semanticNot", x.Code, x.Annotations
	case *Labeled:
		n.Type, n.Label, n.Pick, n.Annotations = "labeled", x.Label, x.Pick, x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *Action:
		n.Type, n.Code, n.Annotations = "action", x.Code, x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *Scope:
		n.Type, n.Code, n.Annotations = "scope", x.Code, x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	case *Named:
		n.Type, n.DisplayName, n.Annotations = "named", x.DisplayName, x.Annotations
		n.Expression, err = marshalExpr(x.Expr)
	default:
		return nil, errors.Errorf("unsupported expression %T", e)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

func unmarshalExpr(raw json.RawMessage) (Expression, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var n jsonNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, errors.Wrap(err, "unmarshal expression")
	}
	node := Node{ID: n.ID, Location: n.Location, Annotations: n.Annotations}
	child := func() (Expression, error) { return unmarshalExpr(n.Expression) }
	switch n.Type {
	case "literal":
		return &Literal{Node: node, Value: n.Value, IgnoreCase: n.IgnoreCase}, nil
	case "class":
		return &CharClass{Node: node, Parts: n.Parts, Inverted: n.Inverted, IgnoreCase: n.IgnoreCase}, nil
	case "any":
		return &AnyMatch{Node: node}, nil
	case "end":
		return &EndMatch{Node: node}, nil
	case "ruleRef":
		r := &RuleRef{Node: node, Name: n.Name, Index: -1}
		if n.Index != nil {
			r.Index = *n.Index
		}
		return r, nil
	case "sequence":
		s := &Sequence{Node: node}
		for _, raw := range n.Elements {
			e, err := unmarshalExpr(raw)
			if err != nil {
				return nil, err
			}
			s.Elements = append(s.Elements, e)
		}
		return s, nil
	case "choice":
		c := &Choice{Node: node}
		for _, raw := range n.Alternatives {
			e, err := unmarshalExpr(raw)
			if err != nil {
				return nil, err
			}
			c.Alternatives = append(c.Alternatives, e)
		}
		return c, nil
	case "optional":
		e, err := child()
		return &Optional{Node: node, Expr: e}, err
	case "zeroOrMore":
		e, err := child()
		return &ZeroOrMore{Node: node, Expr: e}, err
	case "oneOrMore":
		e, err := child()
		return &OneOrMore{Node: node, Expr: e}, err
	case "text":
		e, err := child()
		return &Text{Node: node, Expr: e}, err
	case "simpleAnd":
		e, err := child()
		return &SimpleAnd{Node: node, Expr: e}, err
	case "simpleNot":
		e, err := child()
		return &SimpleNot{Node: node, Expr: e}, err
	case "semanticAnd":
		return &SemanticAnd{Node: node, Code: n.Code}, nil
	case "semanticNot":
		return &SemanticNot{Node: node, Code: n.Code}, nil
	case "labeled":
		e, err := child()
		return &Labeled{Node: node, Label: n.Label, Pick: n.Pick, Expr: e}, err
	case "action":
		e, err := child()
		return &Action{Node: node, Expr: e, Code: n.Code}, err
	case "scope":
		e, err := child()
		return &Scope{Node: node, Expr: e, Code: n.Code}, err
	case "named":
		e, err := child()
		return &Named{Node: node, DisplayName: n.DisplayName, Expr: e}, err
	default:
		return nil, errors.Errorf("unknown node type %q", n.Type)
	}
}

type jsonRule struct {
	Type        string          `json:"type"`
	ID          NodeID          `json:"id"`
	Location    *Location       `json:"location,omitempty"`
	Annotations []Annotation    `json:"annotations,omitempty"`
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"`
	Expression  json.RawMessage `json:"expression"`
}

type jsonGrammar struct {
	Type        string      `json:"type"`
	Location    *Location   `json:"location,omitempty"`
	Initializer *CodeBlock  `json:"initializer,omitempty"`
	Parameters  []string    `json:"parameters,omitempty"`
	Rules       []*jsonRule `json:"rules"`
}

// MarshalJSON implements the external AST schema for a grammar.
func (g *Grammar) MarshalJSON() ([]byte, error) {
	out := jsonGrammar{Type: "grammar", Location: g.Location, Initializer: g.Initializer, Parameters: g.Parameters}
	for _, r := range g.Rules {
		expr, err := marshalExpr(r.Expression)
		if err != nil {
			return nil, err
		}
		out.Rules = append(out.Rules, &jsonRule{
			Type:        "rule",
			ID:          r.ID,
			Location:    r.Location,
			Annotations: r.Annotations,
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Expression:  expr,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements the external AST schema for a grammar.
func (g *Grammar) UnmarshalJSON(data []byte) error {
	var in jsonGrammar
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "unmarshal grammar")
	}
	if in.Type != "grammar" {
		return fmt.Errorf("expected node type %q but got %q", "grammar", in.Type)
	}
	g.Location = in.Location
	g.Initializer = in.Initializer
	g.Parameters = in.Parameters
	g.Rules = nil
	for _, r := range in.Rules {
		expr, err := unmarshalExpr(r.Expression)
		if err != nil {
			return err
		}
		g.Rules = append(g.Rules, &Rule{
			Node:        Node{ID: r.ID, Location: r.Location, Annotations: r.Annotations},
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Expression:  expr,
		})
	}
	return nil
}

// MarshalJSON serializes an annotation as either {"if": [...]} or
// {"name": ..., "parameters": {...}}.
func (a Annotation) MarshalJSON() ([]byte, error) {
	type out struct {
		Location   *Location                  `json:"location,omitempty"`
		If         []string                   `json:"if,omitempty"`
		Name       string                     `json:"name,omitempty"`
		Parameters map[string]AnnotationValue `json:"parameters,omitempty"`
	}
	o := out{Location: a.Location}
	if a.If != nil {
		o.If = a.If.Conditions
	} else if a.Generic != nil {
		o.Name = a.Generic.Name
		o.Parameters = a.Generic.Parameters
	}
	return json.Marshal(o)
}

// UnmarshalJSON is the inverse of Annotation.MarshalJSON.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var in struct {
		Location   *Location                  `json:"location"`
		If         []string                   `json:"if"`
		Name       string                     `json:"name"`
		Parameters map[string]AnnotationValue `json:"parameters"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "unmarshal annotation")
	}
	a.Location = in.Location
	if in.Name != "" {
		a.Generic = &GenericAnnotation{Name: in.Name, Parameters: in.Parameters}
	} else {
		a.If = &IfAnnotation{Conditions: in.If}
	}
	return nil
}
