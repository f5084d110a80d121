// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bootstrap

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// The concrete syntax tree the participle grammar produces. It mirrors
// the surface syntax of the metalanguage; conversion to the semantic AST
// happens in parser.go.
//
// The surface grammar, informally:
//
//	Grammar     <- Initializer? Rule+
//	Rule        <- Annotation* Ident String? "=" Choice ";"?
//	Choice      <- Alternative ("/" Alternative)*
//	Alternative <- Annotation* ("<" Code ">")? Prefixed+ Code?
//	Prefixed    <- "::"? (Ident ":")? ("&" Code / "!" Code / "&" Suffixed
//	               / "!" Suffixed / "$" Suffixed / Suffixed)
//	Suffixed    <- Primary ("?" / "*" / "+")?
//	Primary     <- String / Class / "." / "$$" / "(" Choice ")"
//	             / Ident !(String? "=")
//
// `<{ code }>` before an alternative is a scope prelude; `{ code }` after
// an alternative is an action; `$$` matches end of input.
type grammarCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Init  *codeCST   `@@?`
	Rules []*ruleCST `@@+`
}

type ruleCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Annotations []*annotationCST `@@*`
	Name        string           `@Ident`
	Display     *string          `( @String )?`
	Expr        *choiceCST       `"=" @@ ( ";" )?`
}

type choiceCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Alts []*altCST `@@ ( "/" @@ )*`
}

type altCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Annotations []*annotationCST `@@*`
	Scope       *codeCST         `( "<" @@ ">" )?`
	Elements    []*prefixedCST   `@@+`
	Action      *codeCST         `@@?`
}

type prefixedCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Pick  bool         `( @DoubleColon )?`
	Label *string      `( @Ident ":" )?`
	Op    *prefixOpCST `@@`
}

type prefixOpCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	SemAnd *codeCST     `  "&" @@`
	SemNot *codeCST     `| "!" @@`
	And    *suffixedCST `| "&" @@`
	Not    *suffixedCST `| "!" @@`
	Text   *suffixedCST `| "$" @@`
	Plain  *suffixedCST `| @@`
}

type suffixedCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Primary *primaryCST `@@`
	Suffix  string      `( @( "?" | "*" | "+" ) )?`
}

type primaryCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Str   *string    `  @String`
	Cls   *string    `| @Class`
	Any   bool       `| @"."`
	End   bool       `| @EndMarker`
	Group *choiceCST `| "(" @@ ")"`
	Ref   *string    `| @Ident (?! ( String )? "=" )`
}

type annotationCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name   string             `@Annotation`
	Params []*annotationParam `( "(" ( @@ ( "," @@ )* )? ")" )?`
}

type annotationParam struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name  string              `@Ident`
	Value *annotationValueCST `( ":" @@ )?`
}

// annotationValueCST is a literal annotation parameter value. Array
// values are written with parentheses, `@foo(xs: (1, 2, 3))`, because
// square brackets lex as character classes.
type annotationValueCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Str   *string               `  @String`
	Num   *float64              `| @Number`
	Bool  *string               `| @( "true" | "false" )`
	Arr   []*annotationValueCST `| "(" ( @@ ( "," @@ )* )? ")"`
	Ident *string               `| @Ident`
}

type codeCST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Parts []*codePart `CodeOpen @@* CodeClose`
}

type codePart struct {
	Text   *string  `  @CodeText`
	Nested *codeCST `| @@`
}

// text reassembles the raw code between the outer braces, re-inserting
// nested brace pairs the lexer split into sub-blocks.
func (c *codeCST) text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Text != nil {
			b.WriteString(*p.Text)
		} else if p.Nested != nil {
			b.WriteByte('{')
			b.WriteString(p.Nested.text())
			b.WriteByte('}')
		}
	}
	return b.String()
}
