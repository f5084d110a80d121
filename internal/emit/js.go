// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"strings"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/compile"
	"github.com/arcanis/pegjs/internal/bytecode"
)

// Source renders the full runnable JavaScript parser: the bytecode
// tables, the constants pool, the VM interpreter, and the user action
// closures, wrapped in the selected module format. Output is a pure
// function of its inputs; identical programs render byte-identical
// source.
func Source(prog *bytecode.Program, opts *compile.Options) string {
	var body strings.Builder
	writePrelude(&body)
	writeTables(&body, prog)
	writeParseFunction(&body, prog, opts)

	exports := `{ SyntaxError: peg$SyntaxError, parse: peg$parse }`
	if opts.Tokenizer {
		exports = `{ SyntaxError: peg$SyntaxError, parse: peg$parse, tokenize: peg$parse }`
	}

	var out strings.Builder
	switch opts.Format {
	case compile.FormatCommonJS:
		out.WriteString("\"use strict\";\n\n")
		out.WriteString(body.String())
		out.WriteString("\nmodule.exports = " + exports + ";\n")
	case compile.FormatESM:
		out.WriteString(body.String())
		out.WriteString("\nexport { peg$SyntaxError as SyntaxError, peg$parse as parse };\n")
		out.WriteString("export default " + exports + ";\n")
	default: // bare
		out.WriteString("(function () {\n\"use strict\";\n\n")
		out.WriteString(body.String())
		out.WriteString("\nreturn " + exports + ";\n})()\n")
	}
	return out.String()
}

func writePrelude(b *strings.Builder) {
	b.WriteString(`function peg$subclass(child, parent) {
  function C() { this.constructor = child; }
  C.prototype = parent.prototype;
  child.prototype = new C();
}

function peg$SyntaxError(message, expected, found, location) {
  this.message = message;
  this.expected = expected;
  this.found = found;
  this.location = location;
  this.name = "PegSyntaxError";
  if (typeof Error.captureStackTrace === "function") {
    Error.captureStackTrace(this, peg$SyntaxError);
  }
}
peg$subclass(peg$SyntaxError, Error);

peg$SyntaxError.buildMessage = function (expected, found) {
  function describeExpectation(e) {
    switch (e.type) {
      case "literal": return "\"" + e.text + "\"";
      case "class": return e.description;
      case "any": return "any character";
      case "end": return "end of input";
      default: return e.description;
    }
  }
  function describeExpected(list) {
    var descriptions = [];
    var seen = {};
    for (var i = 0; i < list.length; i++) {
      var d = describeExpectation(list[i]);
      if (!seen[d]) { seen[d] = true; descriptions.push(d); }
    }
    switch (descriptions.length) {
      case 0: return "nothing";
      case 1: return descriptions[0];
      default:
        return descriptions.slice(0, -1).join(", ") + " or " + descriptions[descriptions.length - 1];
    }
  }
  function describeFound(f) {
    return f ? "\"" + f + "\"" : "end of input";
  }
  return "Expected " + describeExpected(expected) + " but " + describeFound(found) + " found.";
};

`)
}

func writeTables(b *strings.Builder, prog *bytecode.Program) {
	b.WriteString("var peg$bytecode = [\n")
	for _, r := range prog.Rules {
		b.WriteString("  [")
		for i, n := range r.Instrs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%d", n)
		}
		b.WriteString("],\n")
	}
	b.WriteString("];\n\n")

	names := make([]string, len(prog.Rules))
	recursive := make([]string, len(prog.Rules))
	tokenTypes := make([]string, len(prog.Rules))
	var tokenRules []string
	for i, r := range prog.Rules {
		names[i] = jsString(r.Name)
		recursive[i] = fmt.Sprintf("%v", r.Recursive)
		if r.TokenType != "" {
			tokenTypes[i] = jsString(r.TokenType)
			tokenRules = append(tokenRules, fmt.Sprintf("%d", i))
		} else {
			tokenTypes[i] = "null"
		}
	}
	fmt.Fprintf(b, "var peg$ruleNames = [%s];\n", strings.Join(names, ", "))
	fmt.Fprintf(b, "var peg$ruleRecursive = [%s];\n", strings.Join(recursive, ", "))
	fmt.Fprintf(b, "var peg$tokenTypes = [%s];\n", strings.Join(tokenTypes, ", "))
	fmt.Fprintf(b, "var peg$tokenRules = [%s];\n\n", strings.Join(tokenRules, ", "))
}

func writeParseFunction(b *strings.Builder, prog *bytecode.Program, opts *compile.Options) {
	b.WriteString(`function peg$parse(input, options) {
  options = options !== undefined ? options : {};

  var peg$FAILED = {};
  var peg$startRuleIndex = 0;
  if ("startRule" in options) {
    peg$startRuleIndex = peg$ruleNames.indexOf(options.startRule);
    if (peg$startRuleIndex < 0) {
      throw new Error("Can't start parsing from rule \"" + options.startRule + "\".");
    }
  }

  var peg$currPos = 0;
  var peg$savedPos = 0;
  var peg$posDetailsCache = [{ line: 1, column: 1 }];
  var peg$maxFailPos = 0;
  var peg$maxFailExpected = [];
  var peg$silentFails = 0;
  var peg$failCache = {};
  var peg$failCacheSize = 0;
  var peg$rollbacks = [];
  var peg$rollbackMarks = [];

  function peg$literalExpectation(text, ignoreCase) {
    return { type: "literal", text: text, ignoreCase: ignoreCase };
  }
  function peg$classExpectation(description) {
    return { type: "class", description: description };
  }
  function peg$anyExpectation() { return { type: "any" }; }
  function peg$endExpectation() { return { type: "end" }; }
  function peg$otherExpectation(description) {
    return { type: "other", description: description };
  }

  function text() { return input.substring(peg$savedPos, peg$currPos); }
  function location() { return peg$computeLocation(peg$savedPos, peg$currPos); }
  function expected(description, loc) {
    loc = loc !== undefined ? loc : peg$computeLocation(peg$savedPos, peg$currPos);
    throw peg$buildStructuredError(
      [peg$otherExpectation(description)],
      input.substring(peg$savedPos, peg$currPos),
      loc
    );
  }
  function error(message, loc) {
    loc = loc !== undefined ? loc : peg$computeLocation(peg$savedPos, peg$currPos);
    throw peg$buildSimpleError(message, loc);
  }
  function peg$onRollback(fn) { peg$rollbacks.push(fn); }

`)

	writeConsts(b, prog)

	b.WriteString(`
  function peg$computePosDetails(pos) {
    var details = peg$posDetailsCache[pos];
    if (details) { return details; }
    var p = pos - 1;
    while (!peg$posDetailsCache[p]) { p--; }
    details = peg$posDetailsCache[p];
    details = { line: details.line, column: details.column };
    while (p < pos) {
      if (input.charCodeAt(p) === 10) {
        details.line++;
        details.column = 1;
      } else {
        details.column++;
      }
      p++;
    }
    peg$posDetailsCache[pos] = details;
    return details;
  }

  function peg$computeLocation(startPos, endPos) {
    var startDetails = peg$computePosDetails(startPos);
    var endDetails = peg$computePosDetails(endPos);
    return {
      start: { offset: startPos, line: startDetails.line, column: startDetails.column },
      end: { offset: endPos, line: endDetails.line, column: endDetails.column }
    };
  }

  function peg$fail(exp) {
    if (peg$silentFails > 0 || peg$currPos < peg$maxFailPos) { return; }
    if (peg$currPos > peg$maxFailPos) {
      peg$maxFailPos = peg$currPos;
      peg$maxFailExpected = [];
    }
    peg$maxFailExpected.push(exp);
  }

  function peg$buildSimpleError(message, location) {
    return new peg$SyntaxError(message, null, null, location);
  }

  function peg$buildStructuredError(expected, found, location) {
    return new peg$SyntaxError(
      peg$SyntaxError.buildMessage(expected, found),
      expected,
      found,
      location
    );
  }

  function peg$constValue(k) {
    var c = peg$consts[k];
    switch (c.k) {
      case "str": return c.v;
      case "null": return null;
      case "undefined": return undefined;
      case "failed": return peg$FAILED;
      case "emptyArr": return [];
      default: return undefined;
    }
  }

  function peg$invoke(index) {
`)
	if opts.Trace {
		b.WriteString(`    var peg$traceStart = peg$currPos;
    if (options.tracer) {
      options.tracer.trace({
        type: "rule.enter",
        rule: peg$ruleNames[index],
        location: peg$computeLocation(peg$currPos, peg$currPos)
      });
    }
`)
	}
	b.WriteString(`    var bc = peg$bytecode[index];
    var stack = [];
    peg$run(bc, 0, bc.length, stack);
    var result = stack[0];
`)
	if opts.Trace {
		b.WriteString(`    if (options.tracer) {
      options.tracer.trace({
        type: result === peg$FAILED ? "rule.fail" : "rule.match",
        rule: peg$ruleNames[index],
        location: peg$computeLocation(peg$traceStart, peg$currPos)
      });
    }
`)
	}
	b.WriteString(`    return result;
  }

  function peg$callRule(index) {
    var key;
    if (peg$ruleRecursive[index]) {
      key = index + "@" + peg$currPos;
      if (peg$failCache[key]) { return peg$FAILED; }
    }
    var result = peg$invoke(index);
    if (key !== undefined && result === peg$FAILED && peg$failCacheSize < 1024) {
      peg$failCache[key] = true;
      peg$failCacheSize++;
    }
    return result;
  }

  function peg$run(bc, ip, end, stack) {
    var thenLen, elseLen, cond, v, i, n, s, c, args, from, mark;
    while (ip < end) {
      switch (bc[ip]) {
        case 0: // PUSH_CURR_POS
          stack.push(peg$currPos); ip++; break;
        case 1: // POP
          stack.pop(); ip++; break;
        case 2: // POP_CURR_POS
          peg$currPos = stack.pop(); ip++; break;
        case 3: // POP_N
          stack.length -= bc[ip + 1]; ip += 2; break;
        case 4: // NIP
          stack.splice(stack.length - 2, 1); ip++; break;
        case 5: // LOAD
          stack.push(peg$constValue(bc[ip + 1])); ip += 2; break;
        case 6: // MATCH_STRING
          s = peg$consts[bc[ip + 1]].v;
          stack.push(input.substr(peg$currPos, s.length) === s);
          ip += 2; break;
        case 7: // MATCH_STRING_IC
          s = peg$consts[bc[ip + 1]].v;
          stack.push(input.substr(peg$currPos, s.length).toLowerCase() === s.toLowerCase());
          ip += 2; break;
        case 8: // MATCH_CLASS
          stack.push(peg$consts[bc[ip + 1]].re.test(input.charAt(peg$currPos)));
          ip += 2; break;
        case 9: // MATCH_ANY
          stack.push(peg$currPos < input.length); ip++; break;
        case 10: // MATCH_END
          stack.push(peg$currPos === input.length); ip++; break;
        case 11: // ACCEPT_N
          n = bc[ip + 1];
          stack.push(input.substr(peg$currPos, n));
          peg$currPos += n;
          ip += 2; break;
        case 12: // ACCEPT_STRING
          s = peg$consts[bc[ip + 1]].v;
          stack.push(s);
          peg$currPos += s.length;
          ip += 2; break;
        case 13: // FAIL
          stack.push(peg$FAILED);
          peg$fail(peg$consts[bc[ip + 1]].e);
          ip += 2; break;
        case 14: // IF
        case 15: // IF_NOT
          thenLen = bc[ip + 1]; elseLen = bc[ip + 2];
          cond = stack.pop();
          if (bc[ip] === 15) { cond = !cond; }
          if (cond) {
            peg$run(bc, ip + 3, ip + 3 + thenLen, stack);
          } else {
            peg$run(bc, ip + 3 + thenLen, ip + 3 + thenLen + elseLen, stack);
          }
          ip += 3 + thenLen + elseLen; break;
        case 16: // IF_ERROR
        case 17: // IF_NOT_ERROR
          thenLen = bc[ip + 1]; elseLen = bc[ip + 2];
          cond = stack[stack.length - 1] === peg$FAILED;
          if (bc[ip] === 17) { cond = !cond; }
          if (cond) {
            peg$run(bc, ip + 3, ip + 3 + thenLen, stack);
          } else {
            peg$run(bc, ip + 3 + thenLen, ip + 3 + thenLen + elseLen, stack);
          }
          ip += 3 + thenLen + elseLen; break;
        case 18: // IF_ARRLEN_MIN
          n = bc[ip + 1]; thenLen = bc[ip + 2]; elseLen = bc[ip + 3];
          v = stack[stack.length - 1];
          cond = Array.isArray(v) && v.length >= n;
          if (cond) {
            peg$run(bc, ip + 4, ip + 4 + thenLen, stack);
          } else {
            peg$run(bc, ip + 4 + thenLen, ip + 4 + thenLen + elseLen, stack);
          }
          ip += 4 + thenLen + elseLen; break;
        case 19: // WHILE_NOT_ERROR
          n = bc[ip + 1];
          while (stack[stack.length - 1] !== peg$FAILED) {
            peg$run(bc, ip + 2, ip + 2 + n, stack);
          }
          ip += 2 + n; break;
        case 20: // APPEND
          v = stack.pop();
          stack[stack.length - 1].push(v);
          ip++; break;
        case 21: // WRAP
          n = bc[ip + 1];
          stack.push(stack.splice(stack.length - n, n));
          ip += 2; break;
        case 22: // TEXT
          from = stack.pop();
          stack.push(input.substring(from, peg$currPos));
          ip++; break;
        case 23: // CALL
          stack.push(peg$invoke(bc[ip + 1]));
          ip += 3 + bc[ip + 2]; break;
        case 24: // RULE
          stack.push(peg$callRule(bc[ip + 1]));
          ip += 2; break;
        case 25: // SILENT_FAILS_ON
          peg$silentFails++; ip++; break;
        case 26: // SILENT_FAILS_OFF
          peg$silentFails--; ip++; break;
        case 27: // EXECUTE
          c = peg$consts[bc[ip + 1]];
          n = bc[ip + 2];
          args = [];
          for (i = 0; i < n; i++) {
            args.push(stack[stack.length - 1 - bc[ip + 3 + i]]);
          }
          if (c.scope) { args.unshift(peg$onRollback); }
          stack.push(c.fn.apply(null, args));
          ip += 3 + n; break;
        case 28: // LOAD_SAVED_POS
          peg$savedPos = stack[stack.length - 1 - bc[ip + 1]];
          ip += 2; break;
        case 29: // ROLLBACK_MARK
          peg$rollbackMarks.push(peg$rollbacks.length);
          ip++; break;
        case 30: // ROLLBACK_COMMIT
          mark = peg$rollbackMarks.pop();
          peg$rollbacks.length = mark;
          ip++; break;
        case 31: // ROLLBACK_FIRE
          mark = peg$rollbackMarks.pop();
          for (i = peg$rollbacks.length - 1; i >= mark; i--) {
            peg$rollbacks[i]();
          }
          peg$rollbacks.length = mark;
          ip++; break;
        default:
          throw new Error("Invalid opcode: " + bc[ip] + ".");
      }
    }
  }

`)

	if opts.Tokenizer {
		b.WriteString(`  var peg$tokens = [];
  var peg$onToken = typeof options.onToken === "function" ? options.onToken : null;
  while (peg$currPos < input.length) {
    var peg$matchedToken = false;
    for (var peg$t = 0; peg$t < peg$tokenRules.length; peg$t++) {
      var peg$tokenIdx = peg$tokenRules[peg$t];
      var peg$before = peg$currPos;
      var peg$tokenResult = peg$callRule(peg$tokenIdx);
      if (peg$tokenResult === peg$FAILED || peg$currPos === peg$before) {
        peg$currPos = peg$before;
        continue;
      }
      var peg$token = {
        type: peg$tokenTypes[peg$tokenIdx],
        text: input.substring(peg$before, peg$currPos),
        location: peg$computeLocation(peg$before, peg$currPos)
      };
      if (peg$onToken) { peg$onToken(peg$token); } else { peg$tokens.push(peg$token); }
      peg$matchedToken = true;
      break;
    }
    if (!peg$matchedToken) {
      throw peg$buildStructuredError(
        peg$maxFailExpected,
        peg$maxFailPos < input.length ? input.charAt(peg$maxFailPos) : null,
        peg$maxFailPos < input.length
          ? peg$computeLocation(peg$maxFailPos, peg$maxFailPos + 1)
          : peg$computeLocation(peg$maxFailPos, peg$maxFailPos)
      );
    }
  }
  return peg$tokens;
}
`)
		return
	}

	b.WriteString(`  var peg$result = peg$callRule(peg$startRuleIndex);

  if (peg$result !== peg$FAILED && peg$currPos === input.length) {
    return peg$result;
  }
  if (peg$result !== peg$FAILED && peg$currPos < input.length) {
    peg$fail(peg$endExpectation());
  }
  throw peg$buildStructuredError(
    peg$maxFailExpected,
    peg$maxFailPos < input.length ? input.charAt(peg$maxFailPos) : null,
    peg$maxFailPos < input.length
      ? peg$computeLocation(peg$maxFailPos, peg$maxFailPos + 1)
      : peg$computeLocation(peg$maxFailPos, peg$maxFailPos)
  );
}
`)
}

// writeConsts renders the constants pool as tagged JS values in pool
// order. Code constants become closures over the parse-local helpers;
// scope bindings objects are unpacked into local variables so the user
// code sees its labels by name.
func writeConsts(b *strings.Builder, prog *bytecode.Program) {
	b.WriteString("  var peg$consts = [\n")
	for _, c := range prog.Consts {
		b.WriteString("    ")
		switch c.Kind {
		case bytecode.ConstString:
			fmt.Fprintf(b, "{ k: \"str\", v: %s }", jsString(c.Str))
		case bytecode.ConstClass:
			fmt.Fprintf(b, "{ k: \"class\", re: %s }", classRegexp(c.Parts, c.Inverted, c.IgnoreCase))
		case bytecode.ConstExpectation:
			fmt.Fprintf(b, "{ k: \"exp\", e: %s }", expectationCall(c.Exp))
		case bytecode.ConstCode:
			b.WriteString(codeClosure(c.Code))
		case bytecode.ConstNull:
			b.WriteString(`{ k: "null" }`)
		case bytecode.ConstUndefined:
			b.WriteString(`{ k: "undefined" }`)
		case bytecode.ConstFailed:
			b.WriteString(`{ k: "failed" }`)
		case bytecode.ConstEmptyArray:
			b.WriteString(`{ k: "emptyArr" }`)
		}
		b.WriteString(",\n")
	}
	b.WriteString("  ];\n")
}

func expectationCall(e *bytecode.Expectation) string {
	switch e.Kind {
	case "literal":
		return fmt.Sprintf("peg$literalExpectation(%s, %v)", jsString(e.Text), e.IgnoreCase)
	case "class":
		return fmt.Sprintf("peg$classExpectation(%s)", jsString(e.String()))
	case "any":
		return "peg$anyExpectation()"
	case "end":
		return "peg$endExpectation()"
	default:
		return fmt.Sprintf("peg$otherExpectation(%s)", jsString(e.Description))
	}
}

func codeClosure(c *bytecode.Code) string {
	var params []string
	var unpack []string
	if c.Scope {
		// Scope preludes register rollback hooks through this parameter:
		// `rollback(function () { ... })`.
		params = append(params, "rollback")
	}
	for _, p := range c.Params {
		params = append(params, p.Name)
		for _, v := range p.ScopeVars {
			unpack = append(unpack, fmt.Sprintf("var %s = %s.%s;", v, p.Name, v))
		}
	}
	var body strings.Builder
	for _, u := range unpack {
		body.WriteString(" " + u)
	}
	body.WriteString(" " + strings.TrimSpace(c.Source))
	if c.Scope {
		var fields []string
		for _, name := range c.Returns {
			fields = append(fields, fmt.Sprintf("%s: %s", name, name))
		}
		body.WriteString(fmt.Sprintf(" return { %s };", strings.Join(fields, ", ")))
	}
	return fmt.Sprintf("{ k: \"code\", scope: %v, fn: function (%s) {%s } }",
		c.Scope, strings.Join(params, ", "), body.String())
}

// jsString renders s as a double-quoted JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else if r > 0xffff {
				r1, r2 := utf16Pair(r)
				fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			} else if r > 0x7e {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func utf16Pair(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r >> 10), 0xdc00 + (r & 0x3ff)
}

// classRegexp renders a character class as an anchored regex literal
// matching exactly one character.
func classRegexp(parts []ast.ClassPart, inverted, ignoreCase bool) string {
	var b strings.Builder
	b.WriteString("/^[")
	if inverted {
		b.WriteByte('^')
	}
	for _, p := range parts {
		b.WriteString(regexpChar(p.From))
		if !p.Single {
			b.WriteByte('-')
			b.WriteString(regexpChar(p.To))
		}
	}
	b.WriteString("]/")
	if ignoreCase {
		b.WriteByte('i')
	}
	return b.String()
}

func regexpChar(r rune) string {
	switch r {
	case '\\', ']', '^', '-', '/':
		return "\\" + string(r)
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	}
	if r < 0x20 {
		return fmt.Sprintf(`\x%02x`, r)
	}
	if r > 0xffff {
		r1, r2 := utf16Pair(r)
		return fmt.Sprintf(`\u%04x\u%04x`, r1, r2)
	}
	if r > 0x7e {
		return fmt.Sprintf(`\u%04x`, r)
	}
	return string(r)
}
