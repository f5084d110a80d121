// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arcanis/pegjs/internal/bytecode"
)

// failed is the VM's failure marker. It never escapes Parse.
var failed = &struct{ tag string }{"peg$FAILED"}

// Position is a point in parser input.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span is a half-open range of parser input.
type Span struct {
	Start Position
	End   Position
}

// ExpectedItem is one entry of a syntax error's expectation list.
type ExpectedItem struct {
	Type        string
	Description string
}

// SyntaxError is the error value produced by linked parsers. Its fields
// mirror the error surface of emitted JavaScript parsers.
type SyntaxError struct {
	Name     string
	Msg      string
	Expected []ExpectedItem
	Found    string
	Location Span
}

func (e *SyntaxError) Error() string { return e.Msg }

// Token is one tokenizer-mode result.
type Token struct {
	Type  string
	Text  string
	Start Position
	End   Position
}

// Action is a linked implementation of a user code block. Actions receive
// their label manifest through the context; scope preludes return a
// map of the bindings they introduce.
type Action func(ctx *ActionContext) (interface{}, error)

// ActionContext gives a linked action access to its arguments and the
// helpers emitted parsers expose to user code.
type ActionContext struct {
	m    *vm
	args map[string]interface{}
}

// Arg returns the value bound to a manifest label.
func (ctx *ActionContext) Arg(name string) interface{} { return ctx.args[name] }

// Text returns the input matched by the action's expression.
func (ctx *ActionContext) Text() string {
	return string(ctx.m.input[ctx.m.savedPos:ctx.m.pos])
}

// Error aborts the parse with a synthetic syntax error at the matched
// range, like user code calling error(msg).
func (ctx *ActionContext) Error(msg string) error {
	return &SyntaxError{
		Name:     "PegSyntaxError",
		Msg:      msg,
		Found:    ctx.Text(),
		Location: ctx.m.span(ctx.m.savedPos, ctx.m.pos),
	}
}

// Expected returns a syntax error at the matched range whose only
// expectation is desc, like user code calling expected(desc). It is not
// merged into the parse's farthest-failure expectations.
func (ctx *ActionContext) Expected(desc string) error {
	return &SyntaxError{
		Name:     "PegSyntaxError",
		Msg:      buildMessage([]ExpectedItem{{Type: "other", Description: desc}}, ctx.m.foundAt(ctx.m.savedPos)),
		Expected: []ExpectedItem{{Type: "other", Description: desc}},
		Found:    ctx.m.foundAt(ctx.m.savedPos),
		Location: ctx.m.span(ctx.m.savedPos, ctx.m.pos),
	}
}

// OnRollback registers a hook that fires if the enclosing scoped
// expression fails after this prelude ran.
func (ctx *ActionContext) OnRollback(fn func()) {
	ctx.m.rollbacks = append(ctx.m.rollbacks, fn)
}

// LinkedParser is the in-memory `parser` output: the compiled program
// plus linked implementations for its code blocks, keyed by code text.
// Code blocks synthesized by the compiler (result-shortcut and separator
// rewrites) are interpreted built-in, and an unregistered scope prelude
// introduces its declared bindings as nil; any other code block must be
// registered before a parse that reaches it.
type LinkedParser struct {
	prog    *bytecode.Program
	actions map[string]Action
}

// Link builds a LinkedParser over prog.
func Link(prog *bytecode.Program) *LinkedParser {
	return &LinkedParser{prog: prog, actions: map[string]Action{}}
}

// Register links an implementation for the code block with the given
// source text. Keys are matched with surrounding whitespace ignored.
func (p *LinkedParser) Register(source string, fn Action) *LinkedParser {
	p.actions[strings.TrimSpace(source)] = fn
	return p
}

// ParseOptions mirror the emitted parser's runtime options.
type ParseOptions struct {
	StartRule string
}

// Parse runs the parser over input. On failure it returns a *SyntaxError
// carrying the farthest failure's merged expectations.
func (p *LinkedParser) Parse(input string, opts *ParseOptions) (interface{}, error) {
	start := 0
	if opts != nil && opts.StartRule != "" {
		idx, ok := p.prog.RuleIndex[opts.StartRule]
		if !ok {
			return nil, fmt.Errorf("start rule %q is not defined", opts.StartRule)
		}
		start = idx
	}
	m := newVM(p, input)
	res, err := m.callRule(start)
	if err != nil {
		return nil, err
	}
	if res != failed && m.pos == len(m.input) {
		return res, nil
	}
	if res != failed {
		m.fail(&bytecode.Expectation{Kind: "end"})
	}
	return nil, m.buildError()
}

// Tokenize runs the parser in streaming-tokenizer mode: at each position
// the token rules are tried in grammar order and the first match is
// emitted. Rules not marked @token are ignored; a position no token rule
// matches is a syntax error.
func (p *LinkedParser) Tokenize(input string, emitFn func(Token)) ([]Token, error) {
	rules := p.prog.TokenRules()
	if len(rules) == 0 {
		return nil, fmt.Errorf("grammar has no @token rules")
	}
	m := newVM(p, input)
	var out []Token
	for m.pos < len(m.input) {
		matched := false
		for _, idx := range rules {
			before := m.pos
			res, err := m.callRule(idx)
			if err != nil {
				return nil, err
			}
			if res == failed || m.pos == before {
				m.pos = before
				continue
			}
			tok := Token{
				Type:  p.prog.Rules[idx].TokenType,
				Text:  string(m.input[before:m.pos]),
				Start: m.position(before),
				End:   m.position(m.pos),
			}
			if emitFn != nil {
				emitFn(tok)
			}
			out = append(out, tok)
			matched = true
			break
		}
		if !matched {
			return nil, m.buildError()
		}
	}
	return out, nil
}

type cacheKey struct {
	rule int
	pos  int
}

// failCacheSize bounds the per-parse fast-fail cache. Entries beyond the
// bound evict least-recently-used; the cache never outlives one parse.
const failCacheSize = 1024

type vm struct {
	p        *LinkedParser
	input    []rune
	pos      int
	savedPos int
	silent   int

	maxFailPos      int
	maxFailExpected []*bytecode.Expectation

	failCache *lru.Cache[cacheKey, bool]
	rollbacks []func()
	marks     []int

	lineIndex []int // rune offsets of line starts, built lazily
}

func newVM(p *LinkedParser, input string) *vm {
	cache, _ := lru.New[cacheKey, bool](failCacheSize)
	return &vm{p: p, input: []rune(input), failCache: cache}
}

func (m *vm) fail(exp *bytecode.Expectation) {
	if m.silent > 0 || m.pos < m.maxFailPos {
		return
	}
	if m.pos > m.maxFailPos {
		m.maxFailPos = m.pos
		m.maxFailExpected = nil
	}
	m.maxFailExpected = append(m.maxFailExpected, exp)
}

// callRule is the external entry path (the RULE opcode): the bounded
// fast-fail cache is consulted and updated here, never on internal CALLs.
func (m *vm) callRule(idx int) (interface{}, error) {
	key := cacheKey{rule: idx, pos: m.pos}
	cached := m.p.prog.Rules[idx].Recursive
	if cached {
		if _, ok := m.failCache.Get(key); ok {
			return failed, nil
		}
	}
	res, err := m.invoke(idx)
	if err != nil {
		return nil, err
	}
	if cached && res == failed {
		m.failCache.Add(key, true)
	}
	return res, nil
}

// invoke interprets a rule's instruction stream without cache handling.
func (m *vm) invoke(idx int) (interface{}, error) {
	bc := m.p.prog.Rules[idx].Instrs
	var stack []interface{}
	if err := m.exec(bc, 0, len(bc), &stack); err != nil {
		return nil, err
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("rule %s left %d values on the stack", m.p.prog.Rules[idx].Name, len(stack))
	}
	return stack[0], nil
}

func (m *vm) exec(bc []int, ip, end int, stack *[]interface{}) error {
	push := func(v interface{}) { *stack = append(*stack, v) }
	pop := func() interface{} {
		s := *stack
		v := s[len(s)-1]
		*stack = s[:len(s)-1]
		return v
	}
	top := func() interface{} { return (*stack)[len(*stack)-1] }

	for ip < end {
		op := bytecode.Opcode(bc[ip])
		switch op {
		case bytecode.OpPushCurrPos:
			push(m.pos)
			ip++
		case bytecode.OpPop:
			pop()
			ip++
		case bytecode.OpPopCurrPos:
			m.pos = pop().(int)
			ip++
		case bytecode.OpPopN:
			n := bc[ip+1]
			*stack = (*stack)[:len(*stack)-n]
			ip += 2
		case bytecode.OpNip:
			v := pop()
			pop()
			push(v)
			ip++
		case bytecode.OpLoad:
			push(m.constValue(bc[ip+1]))
			ip += 2
		case bytecode.OpMatchString:
			s := []rune(m.p.prog.Consts[bc[ip+1]].Str)
			push(m.hasPrefix(s, false))
			ip += 2
		case bytecode.OpMatchStringIC:
			s := []rune(m.p.prog.Consts[bc[ip+1]].Str)
			push(m.hasPrefix(s, true))
			ip += 2
		case bytecode.OpMatchClass:
			c := m.p.prog.Consts[bc[ip+1]]
			ok := m.pos < len(m.input) && classMatches(&c, m.input[m.pos])
			push(ok)
			ip += 2
		case bytecode.OpMatchAny:
			push(m.pos < len(m.input))
			ip++
		case bytecode.OpMatchEnd:
			push(m.pos == len(m.input))
			ip++
		case bytecode.OpAcceptN:
			n := bc[ip+1]
			push(string(m.input[m.pos : m.pos+n]))
			m.pos += n
			ip += 2
		case bytecode.OpAcceptString:
			s := m.p.prog.Consts[bc[ip+1]].Str
			push(s)
			m.pos += len([]rune(s))
			ip += 2
		case bytecode.OpFail:
			push(failed)
			exp := m.p.prog.Consts[bc[ip+1]].Exp
			m.fail(exp)
			ip += 2
		case bytecode.OpIf, bytecode.OpIfNot:
			thenLen, elseLen := bc[ip+1], bc[ip+2]
			cond := truthy(pop())
			if op == bytecode.OpIfNot {
				cond = !cond
			}
			if err := m.branch(bc, ip+3, thenLen, elseLen, cond, stack); err != nil {
				return err
			}
			ip += 3 + thenLen + elseLen
		case bytecode.OpIfError, bytecode.OpIfNotError:
			thenLen, elseLen := bc[ip+1], bc[ip+2]
			cond := top() == failed
			if op == bytecode.OpIfNotError {
				cond = !cond
			}
			if err := m.branch(bc, ip+3, thenLen, elseLen, cond, stack); err != nil {
				return err
			}
			ip += 3 + thenLen + elseLen
		case bytecode.OpIfArrlenMin:
			min, thenLen, elseLen := bc[ip+1], bc[ip+2], bc[ip+3]
			arr, _ := top().([]interface{})
			cond := len(arr) >= min
			if err := m.branch(bc, ip+4, thenLen, elseLen, cond, stack); err != nil {
				return err
			}
			ip += 4 + thenLen + elseLen
		case bytecode.OpWhileNotError:
			bodyLen := bc[ip+1]
			for top() != failed {
				if err := m.exec(bc, ip+2, ip+2+bodyLen, stack); err != nil {
					return err
				}
			}
			ip += 2 + bodyLen
		case bytecode.OpAppend:
			v := pop()
			arr := top().([]interface{})
			(*stack)[len(*stack)-1] = append(arr, v)
			ip++
		case bytecode.OpWrap:
			n := bc[ip+1]
			arr := make([]interface{}, n)
			copy(arr, (*stack)[len(*stack)-n:])
			*stack = (*stack)[:len(*stack)-n]
			push(arr)
			ip += 2
		case bytecode.OpText:
			from := pop().(int)
			push(string(m.input[from:m.pos]))
			ip++
		case bytecode.OpCall:
			idx := bc[ip+1]
			argc := bc[ip+2]
			res, err := m.invoke(idx)
			if err != nil {
				return err
			}
			push(res)
			ip += 3 + argc
		case bytecode.OpRule:
			res, err := m.callRule(bc[ip+1])
			if err != nil {
				return err
			}
			push(res)
			ip += 2
		case bytecode.OpSilentFailsOn:
			m.silent++
			ip++
		case bytecode.OpSilentFailsOff:
			m.silent--
			ip++
		case bytecode.OpExecute:
			k := bc[ip+1]
			argc := bc[ip+2]
			depths := bc[ip+3 : ip+3+argc]
			res, err := m.execute(k, depths, *stack)
			if err != nil {
				return err
			}
			push(res)
			ip += 3 + argc
		case bytecode.OpLoadSavedPos:
			n := bc[ip+1]
			m.savedPos = (*stack)[len(*stack)-1-n].(int)
			ip += 2
		case bytecode.OpRollbackMark:
			m.marks = append(m.marks, len(m.rollbacks))
			ip++
		case bytecode.OpRollbackCommit:
			mark := m.marks[len(m.marks)-1]
			m.marks = m.marks[:len(m.marks)-1]
			m.rollbacks = m.rollbacks[:mark]
			ip++
		case bytecode.OpRollbackFire:
			mark := m.marks[len(m.marks)-1]
			m.marks = m.marks[:len(m.marks)-1]
			for i := len(m.rollbacks) - 1; i >= mark; i-- {
				m.rollbacks[i]()
			}
			m.rollbacks = m.rollbacks[:mark]
			ip++
		default:
			return fmt.Errorf("unknown opcode %d", bc[ip])
		}
	}
	return nil
}

func (m *vm) branch(bc []int, base, thenLen, elseLen int, cond bool, stack *[]interface{}) error {
	if cond {
		return m.exec(bc, base, base+thenLen, stack)
	}
	return m.exec(bc, base+thenLen, base+thenLen+elseLen, stack)
}

func (m *vm) hasPrefix(s []rune, ignoreCase bool) bool {
	if m.pos+len(s) > len(m.input) {
		return false
	}
	for i, r := range s {
		c := m.input[m.pos+i]
		if ignoreCase {
			if lowerRune(c) != lowerRune(r) {
				return false
			}
		} else if c != r {
			return false
		}
	}
	return true
}

func lowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func classMatches(c *bytecode.Const, r rune) bool {
	probe := r
	if c.IgnoreCase {
		probe = lowerRune(r)
	}
	in := false
	for _, part := range c.Parts {
		from, to := part.From, part.To
		if c.IgnoreCase {
			from, to = lowerRune(from), lowerRune(to)
		}
		if part.Single {
			if probe == from {
				in = true
				break
			}
		} else if probe >= from && probe <= to {
			in = true
			break
		}
	}
	if c.Inverted {
		return !in
	}
	return in
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return v != failed
	}
}

func (m *vm) constValue(k int) interface{} {
	c := m.p.prog.Consts[k]
	switch c.Kind {
	case bytecode.ConstString:
		return c.Str
	case bytecode.ConstNull, bytecode.ConstUndefined:
		return nil
	case bytecode.ConstFailed:
		return failed
	case bytecode.ConstEmptyArray:
		return []interface{}{}
	default:
		return nil
	}
}

// execute runs a code constant. Arguments are resolved from the given
// depths below the top of the stack, flattened through scope bindings
// objects so linked actions see plain labels.
func (m *vm) execute(k int, depths []int, stack []interface{}) (interface{}, error) {
	c := m.p.prog.Consts[k].Code
	args := map[string]interface{}{}
	for i, param := range c.Params {
		v := stack[len(stack)-1-depths[i]]
		if len(param.ScopeVars) > 0 {
			bindings, _ := v.(map[string]interface{})
			for _, name := range param.ScopeVars {
				args[name] = bindings[name]
			}
			continue
		}
		args[param.Name] = v
	}
	ctx := &ActionContext{m: m, args: args}

	if fn, ok := m.p.actions[strings.TrimSpace(c.Source)]; ok {
		return fn(ctx)
	}
	if v, ok := interpretSynthesized(c.Source, args); ok {
		return v, nil
	}
	if c.Scope {
		// An unlinked scope prelude introduces its declared bindings as
		// nil values; rollback hooks need explicit linking.
		bindings := map[string]interface{}{}
		for _, name := range c.Returns {
			bindings[name] = nil
		}
		return bindings, nil
	}
	return nil, fmt.Errorf("code block %q has no linked implementation", c.Source)
}

// interpretSynthesized evaluates the code shapes the compiler itself
// generates: `return x;` and `return [a, b];` from the result shortcut,
// and the separator rewrite bodies.
func interpretSynthesized(source string, args map[string]interface{}) (interface{}, bool) {
	switch source {
	case "return [peg$head].concat(peg$tail.map(function (p) { return p[1]; }));":
		out := []interface{}{args["peg$head"]}
		tail, _ := args["peg$tail"].([]interface{})
		for _, pair := range tail {
			p, _ := pair.([]interface{})
			if len(p) == 2 {
				out = append(out, p[1])
			}
		}
		return out, true
	case "return peg$list === null ? [] : peg$list;":
		if args["peg$list"] == nil {
			return []interface{}{}, true
		}
		return args["peg$list"], true
	}

	body := strings.TrimSpace(source)
	if !strings.HasPrefix(body, "return ") || !strings.HasSuffix(body, ";") {
		return nil, false
	}
	expr := strings.TrimSpace(body[len("return ") : len(body)-1])
	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		var out []interface{}
		for _, name := range strings.Split(expr[1:len(expr)-1], ",") {
			name = strings.TrimSpace(name)
			v, ok := args[name]
			if !ok {
				return nil, false
			}
			out = append(out, v)
		}
		return out, true
	}
	if v, ok := args[expr]; ok {
		return v, true
	}
	return nil, false
}

func (m *vm) position(offset int) Position {
	if m.lineIndex == nil {
		m.lineIndex = []int{0}
		for i, r := range m.input {
			if r == '\n' {
				m.lineIndex = append(m.lineIndex, i+1)
			}
		}
	}
	line := sort.Search(len(m.lineIndex), func(i int) bool { return m.lineIndex[i] > offset }) - 1
	return Position{Offset: offset, Line: line + 1, Column: offset - m.lineIndex[line] + 1}
}

func (m *vm) span(from, to int) Span {
	return Span{Start: m.position(from), End: m.position(to)}
}

func (m *vm) foundAt(offset int) string {
	if offset < len(m.input) {
		return string(m.input[offset])
	}
	return ""
}

// buildError assembles the farthest-failure syntax error: expectations at
// the highest offset, deduplicated in first-occurrence order.
func (m *vm) buildError() *SyntaxError {
	var items []ExpectedItem
	seen := map[string]bool{}
	for _, exp := range m.maxFailExpected {
		desc := exp.String()
		if seen[desc] {
			continue
		}
		seen[desc] = true
		items = append(items, ExpectedItem{Type: exp.Kind, Description: desc})
	}
	found := m.foundAt(m.maxFailPos)
	end := m.maxFailPos
	if found != "" {
		end++
	}
	return &SyntaxError{
		Name:     "PegSyntaxError",
		Msg:      buildMessage(items, found),
		Expected: items,
		Found:    found,
		Location: m.span(m.maxFailPos, end),
	}
}

func buildMessage(items []ExpectedItem, found string) string {
	descs := make([]string, len(items))
	for i, it := range items {
		descs[i] = it.Description
	}
	var expected string
	switch len(descs) {
	case 0:
		expected = "nothing"
	case 1:
		expected = descs[0]
	default:
		expected = strings.Join(descs[:len(descs)-1], ", ") + " or " + descs[len(descs)-1]
	}
	foundDesc := "end of input"
	if found != "" {
		foundDesc = fmt.Sprintf("%q", found)
	}
	return fmt.Sprintf("Expected %s but %s found.", expected, foundDesc)
}
