// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/bytecode"
)

// TypeDecls renders the TypeScript-flavored declarations for the rules'
// parse results. ruleTypes is aligned with prog.Rules.
func TypeDecls(prog *bytecode.Program, ruleTypes []string, opts *compile.Options) string {
	var b strings.Builder

	b.WriteString("export interface ParseOptions {\n")
	b.WriteString("  startRule?: string;\n")
	if opts.Trace {
		b.WriteString("  tracer?: { trace(event: { type: string; rule: string; location: SourceLocation }): void };\n")
	}
	if opts.Tokenizer {
		b.WriteString("  onToken?: (token: Token) => void;\n")
	}
	b.WriteString("}\n\n")

	b.WriteString(`export interface SourcePosition {
  offset: number;
  line: number;
  column: number;
}

export interface SourceLocation {
  start: SourcePosition;
  end: SourcePosition;
}

export interface Expectation {
  type: string;
  description?: string;
}

export declare class SyntaxError extends Error {
  name: "PegSyntaxError";
  expected: Expectation[] | null;
  found: string | null;
  location: SourceLocation;
}

`)

	if opts.Tokenizer {
		b.WriteString(`export interface Token {
  type: string;
  text: string;
  location: SourceLocation;
}

`)
	}

	for i, r := range prog.Rules {
		t := "any"
		if i < len(ruleTypes) {
			t = ruleTypes[i]
		}
		fmt.Fprintf(&b, "export type %s = %s;\n", typeAliasName(r.Name), t)
	}
	b.WriteString("\n")

	result := typeAliasName(prog.Rules[0].Name)
	if opts.Tokenizer {
		result = "Token[]"
	}
	fmt.Fprintf(&b, "export declare function parse(input: string, options?: ParseOptions): %s;\n", result)
	return b.String()
}

// typeAliasName derives the exported alias for a rule's result type.
func typeAliasName(rule string) string {
	if rule == "" {
		return "Result"
	}
	return strings.ToUpper(rule[:1]) + rule[1:] + "Result"
}
