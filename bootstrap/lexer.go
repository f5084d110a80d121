// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bootstrap

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// pegLexer tokenizes the PEG metalanguage. Code blocks are brace-balanced
// via lexer states: an opening brace pushes into the Code state, where
// nested braces push again and closing braces pop, so `{ if (x) { y } }`
// arrives as a properly nested token stream.
var pegLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `//[^\n]*|/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"i?|'(?:\\.|[^'\\])*'i?`},
		{Name: "Class", Pattern: `\[(?:\\.|[^\]\\])*\]i?`},
		{Name: "Annotation", Pattern: `@[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "DoubleColon", Pattern: `::`},
		{Name: "EndMarker", Pattern: `\$\$`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?`},
		{Name: "CodeOpen", Pattern: `\{`, Action: lexer.Push("Code")},
		{Name: "Punct", Pattern: `[=/;()?*+!&$.:,<>]`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	},
	"Code": {
		{Name: "CodeOpen", Pattern: `\{`, Action: lexer.Push("Code")},
		{Name: "CodeClose", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "CodeText", Pattern: `[^{}]+`},
	},
})
