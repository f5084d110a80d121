// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package types declares the result types the compiler assigns to grammar
// expressions and helper functions to operate on these types. The lattice
// is intentionally shallow: types are compared by their string rendering,
// and inference iterates rule types to a fixed point over that finite set
// of strings.
package types

import (
	"fmt"
	"strings"
)

// Sprint returns the string representation of the type.
func Sprint(x Type) string {
	if x == nil {
		return "???"
	}
	return x.String()
}

// Type represents the result type of a grammar expression.
type Type interface {
	String() string
	typeMarker()
}

func (String) typeMarker()    {}
func (Undefined) typeMarker() {}
func (Null) typeMarker()      {}
func (Any) typeMarker()       {}
func (Unknown) typeMarker()   {}
func (Named) typeMarker()     {}
func (*Array) typeMarker()    {}
func (*Tuple) typeMarker()    {}
func (*Union) typeMarker()    {}

// String represents the string type, produced by literals, classes, any
// matches, and text() captures.
type String struct{}

// S is an instance of the string type.
var S = NewString()

// NewString returns a new String type.
func NewString() String { return String{} }

func (String) String() string { return "string" }

// Undefined is the result type of lookaheads, predicates, and end-of-input
// matches.
type Undefined struct{}

// U is an instance of the undefined type.
var U = NewUndefined()

// NewUndefined returns a new Undefined type.
func NewUndefined() Undefined { return Undefined{} }

func (Undefined) String() string { return "undefined" }

// Null is the type of an optional expression's missing branch.
type Null struct{}

// NewNull returns a new Null type.
func NewNull() Null { return Null{} }

func (Null) String() string { return "null" }

// Any represents the top type: action code with no declared return type,
// and explicit `any` overrides.
type Any struct{}

// A is an instance of the any type.
var A = NewAny()

// NewAny returns a new Any type.
func NewAny() Any { return Any{} }

func (Any) String() string { return "any" }

// Unknown is the bottom of the inference lattice. It only exists while the
// fixed point is being computed; no node keeps it once inference finishes.
type Unknown struct{}

// NewUnknown returns a new Unknown type.
func NewUnknown() Unknown { return Unknown{} }

func (Unknown) String() string { return "unknown" }

// Named is an opaque type string supplied by the grammar author, via a
// `@type` annotation or a declared action return type. It is never
// decomposed.
type Named struct {
	Name string
}

// NewNamed returns a new Named type for the given type text.
func NewNamed(name string) Named { return Named{Name: name} }

func (t Named) String() string { return t.Name }

// Array represents homogeneous repetition results.
type Array struct {
	Of Type
}

// NewArray returns a new Array type with the given element type.
func NewArray(of Type) *Array { return &Array{Of: of} }

func (t *Array) String() string {
	return fmt.Sprintf("Array<%s>", Sprint(t.Of))
}

// Tuple represents the fixed-arity result of a sequence.
type Tuple struct {
	Elems []Type
}

// NewTuple returns a new Tuple type with the given element types.
func NewTuple(elems ...Type) *Tuple { return &Tuple{Elems: elems} }

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = Sprint(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Union represents the result of a choice. Alternatives are kept in first
// occurrence order with duplicates (by string rendering) removed.
type Union struct {
	Alts []Type
}

func (t *Union) String() string {
	parts := make([]string, len(t.Alts))
	for i, a := range t.Alts {
		s := Sprint(a)
		if u, ok := a.(*Union); ok && len(u.Alts) > 1 {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, " | ")
}

// Or combines types into a deduplicated union, flattening nested unions.
// Or of a single distinct type is that type itself.
func Or(alts ...Type) Type {
	var flat []Type
	seen := map[string]bool{}
	var add func(t Type)
	add = func(t Type) {
		if t == nil {
			return
		}
		if u, ok := t.(*Union); ok {
			for _, a := range u.Alts {
				add(a)
			}
			return
		}
		if s := t.String(); !seen[s] {
			seen[s] = true
			flat = append(flat, t)
		}
	}
	for _, a := range alts {
		add(a)
	}
	switch len(flat) {
	case 0:
		return NewUnknown()
	case 1:
		return flat[0]
	default:
		return &Union{Alts: flat}
	}
}

// Nullable returns t | null, the type of an optional expression.
func Nullable(t Type) Type { return Or(t, NewNull()) }

// IsUnknown reports whether t still carries the inference bottom anywhere
// in its structure.
func IsUnknown(t Type) bool {
	switch x := t.(type) {
	case nil:
		return true
	case Unknown:
		return true
	case *Array:
		return IsUnknown(x.Of)
	case *Tuple:
		for _, e := range x.Elems {
			if IsUnknown(e) {
				return true
			}
		}
	case *Union:
		for _, a := range x.Alts {
			if IsUnknown(a) {
				return true
			}
		}
	}
	return false
}

// Generalize replaces any remaining Unknown inside t with Any. Inference
// applies it after the fixed point settles so that degenerate cycles (a
// rule referring only to itself) still end with a resolved type.
func Generalize(t Type) Type {
	switch x := t.(type) {
	case nil:
		return NewAny()
	case Unknown:
		return NewAny()
	case *Array:
		return NewArray(Generalize(x.Of))
	case *Tuple:
		elems := make([]Type, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = Generalize(e)
		}
		return NewTuple(elems...)
	case *Union:
		alts := make([]Type, len(x.Alts))
		for i, a := range x.Alts {
			alts[i] = Generalize(a)
		}
		return Or(alts...)
	default:
		return t
	}
}
