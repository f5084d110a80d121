// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package bytecode lowers a checked grammar into a flat instruction stream
// for a stack-based matching VM, plus a deduplicated constants pool. The
// program is the compiler's intermediate representation: the emitter
// renders it as JavaScript source, and the in-memory runtime interprets it
// directly for the `parser` output.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/ast"
)

// ConstKind discriminates constants-pool entries.
type ConstKind int

const (
	// ConstString is a literal string (also used for matched text).
	ConstString ConstKind = iota
	// ConstClass is a character class matcher.
	ConstClass
	// ConstExpectation is an error-reporting expectation descriptor.
	ConstExpectation
	// ConstCode is a user code closure (action, predicate, or scope).
	ConstCode
	// ConstNull pushes null.
	ConstNull
	// ConstUndefined pushes undefined.
	ConstUndefined
	// ConstFailed pushes the failure marker.
	ConstFailed
	// ConstEmptyArray pushes a fresh empty array.
	ConstEmptyArray
)

// Expectation describes what the parser was looking for when a match
// failed, for use in syntax error messages.
type Expectation struct {
	Kind        string // "literal", "class", "any", "end", or "other"
	Text        string
	IgnoreCase  bool
	Parts       []ast.ClassPart
	Inverted    bool
	Description string // for "other"
}

// String renders the human-readable form used in error messages.
func (e *Expectation) String() string {
	switch e.Kind {
	case "literal":
		return fmt.Sprintf("%q", e.Text)
	case "class":
		var b strings.Builder
		b.WriteByte('[')
		if e.Inverted {
			b.WriteByte('^')
		}
		for _, p := range e.Parts {
			if p.Single {
				b.WriteRune(p.From)
			} else {
				b.WriteRune(p.From)
				b.WriteByte('-')
				b.WriteRune(p.To)
			}
		}
		b.WriteByte(']')
		return b.String()
	case "any":
		return "any character"
	case "end":
		return "end of input"
	default:
		return e.Description
	}
}

// CodeParam is one closure parameter of a code constant. A plain label
// parameter receives the labeled value; a parameter with ScopeVars set
// receives a scope bindings object that the emitter unpacks into the named
// local variables before the user code runs.
type CodeParam struct {
	Name      string
	ScopeVars []string
}

// Code is an opaque user code block placed verbatim into a closure. Scope
// preludes additionally receive a rollback-registration function and
// return an object holding the bindings they introduce (Returns).
type Code struct {
	Source  string
	Scope   bool
	Returns []string
	Params  []CodeParam
}

// Const is one constants-pool entry.
type Const struct {
	Kind       ConstKind
	Str        string
	IgnoreCase bool
	Parts      []ast.ClassPart
	Inverted   bool
	Exp        *Expectation
	Code       *Code
}

// Rule is the compiled form of one grammar rule: its metadata plus the
// instruction stream. Each stream leaves exactly one value on the stack:
// the rule's result, or the failure marker.
type Rule struct {
	Name        string
	DisplayName string
	TokenType   string
	Recursive   bool
	Instrs      []int
}

// Program is the full compiled grammar. Rules appear in grammar order;
// index 0 is the default start rule. Consts are pooled in first-occurrence
// order during generation, which keeps output deterministic.
type Program struct {
	Rules     []*Rule
	Consts    []Const
	RuleIndex map[string]int
}

// TokenRules returns the indexes of rules marked as tokens, in rule order.
func (p *Program) TokenRules() []int {
	var out []int
	for i, r := range p.Rules {
		if r.TokenType != "" {
			out = append(out, i)
		}
	}
	return out
}

// pool implements first-occurrence constant deduplication.
type pool struct {
	consts []Const
	index  map[string]int
}

func newPool() *pool {
	return &pool{index: map[string]int{}}
}

func (p *pool) add(key string, c Const) int {
	if i, ok := p.index[key]; ok {
		return i
	}
	i := len(p.consts)
	p.consts = append(p.consts, c)
	p.index[key] = i
	return i
}

func classKey(parts []ast.ClassPart, inverted, ignoreCase bool) string {
	var b strings.Builder
	for _, part := range parts {
		fmt.Fprintf(&b, "%d-%d/%v;", part.From, part.To, part.Single)
	}
	return fmt.Sprintf("%s|%v|%v", b.String(), inverted, ignoreCase)
}

func (p *pool) str(s string, ignoreCase bool) int {
	return p.add(fmt.Sprintf("s:%v:%q", ignoreCase, s), Const{Kind: ConstString, Str: s, IgnoreCase: ignoreCase})
}

func (p *pool) class(parts []ast.ClassPart, inverted, ignoreCase bool) int {
	return p.add("c:"+classKey(parts, inverted, ignoreCase), Const{Kind: ConstClass, Parts: parts, Inverted: inverted, IgnoreCase: ignoreCase})
}

func (p *pool) expectation(e *Expectation) int {
	key := fmt.Sprintf("e:%s:%q:%v:%s:%q", e.Kind, e.Text, e.IgnoreCase, classKey(e.Parts, e.Inverted, false), e.Description)
	return p.add(key, Const{Kind: ConstExpectation, Exp: e})
}

func (p *pool) code(c *Code) int {
	var params []string
	for _, param := range c.Params {
		params = append(params, param.Name+"<"+strings.Join(param.ScopeVars, ",")+">")
	}
	key := fmt.Sprintf("f:%v:%q:%s:%s", c.Scope, c.Source, strings.Join(params, ";"), strings.Join(c.Returns, ","))
	return p.add(key, Const{Kind: ConstCode, Code: c})
}

func (p *pool) sentinel(kind ConstKind) int {
	return p.add(fmt.Sprintf("k:%d", kind), Const{Kind: kind})
}
