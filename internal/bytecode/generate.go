// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bytecode

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/arcanis/pegjs/ast"
)

// ManifestEntry is one in-scope label visible to a code block, in source
// order: the label name, the node whose result it binds, the label's
// result type, and whether it was introduced by an enclosing scope prelude
// rather than a labeled element.
type ManifestEntry struct {
	Label     string
	Node      ast.NodeID
	Type      string
	FromScope bool
	Scope     ast.NodeID
}

// Analysis is the view of the pass metadata the generator needs: label
// manifests for code-bearing nodes, token annotations, and the bindings a
// scope prelude introduces. The compile package's metadata side table
// implements it.
type Analysis interface {
	Manifest(id ast.NodeID) []ManifestEntry
	TokenType(id ast.NodeID) string
	Introduces(id ast.NodeID) []string
}

// Generate lowers every rule of g into VM instructions, pooling constants
// in first-occurrence order. The grammar must have passed the reference
// checker: every RuleRef carries its resolved index.
func Generate(g *ast.Grammar, info Analysis) (*Program, error) {
	gen := &generator{
		g:      g,
		info:   info,
		pool:   newPool(),
		scopes: map[ast.NodeID]int{},
	}
	gen.analyzeRecursion()

	prog := &Program{RuleIndex: map[string]int{}}
	for i, r := range g.Rules {
		gen.caller = i
		gen.env = map[string]int{}
		instrs, _, err := gen.compile(r.Expression, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %s", r.Name)
		}
		prog.Rules = append(prog.Rules, &Rule{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			TokenType:   info.TokenType(r.NodeID()),
			Recursive:   gen.recursive[i],
			Instrs:      instrs,
		})
		prog.RuleIndex[r.Name] = i
	}
	prog.Consts = gen.pool.consts
	return prog, nil
}

type generator struct {
	g      *ast.Grammar
	info   Analysis
	pool   *pool
	caller int

	env    map[string]int    // label -> stack height of its value
	scopes map[ast.NodeID]int // scope node -> stack height of its bindings object

	sccOf     []int
	recursive []bool
}

// analyzeRecursion assigns rules to strongly connected components of the
// reference graph. A rule is recursive when its component has more than
// one member or it refers to itself. Calls that enter a recursive
// component from outside are emitted as RULE (cache-eligible external
// entries); calls within a component are plain CALLs.
func (gen *generator) analyzeRecursion() {
	n := len(gen.g.Rules)
	edges := make([][]int, n)
	selfRef := make([]bool, n)
	for i, r := range gen.g.Rules {
		seen := map[int]bool{}
		ast.WalkExpressions(r.Expression, func(e ast.Expression) {
			if ref, ok := e.(*ast.RuleRef); ok && ref.Index >= 0 {
				if ref.Index == i {
					selfRef[i] = true
				}
				if !seen[ref.Index] {
					seen[ref.Index] = true
					edges[i] = append(edges[i], ref.Index)
				}
			}
		})
	}

	// Tarjan's algorithm, iterative state kept per node.
	gen.sccOf = make([]int, n)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	next, comp := 0, 0
	sccSize := map[int]int{}

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range edges[v] {
			if index[w] < 0 {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && index[w] < lowlink[v] {
				lowlink[v] = index[w]
			}
		}
		if lowlink[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				gen.sccOf[w] = comp
				sccSize[comp]++
				if w == v {
					break
				}
			}
			comp++
		}
	}
	for v := 0; v < n; v++ {
		if index[v] < 0 {
			strongconnect(v)
		}
	}

	gen.recursive = make([]bool, n)
	for i := 0; i < n; i++ {
		gen.recursive[i] = selfRef[i] || sccSize[gen.sccOf[i]] > 1
	}
}

func cat(chunks ...[]int) []int {
	var out []int
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func cond(op Opcode, then, els []int) []int {
	return cat([]int{int(op), len(then), len(els)}, then, els)
}

func condN(op Opcode, operand int, then, els []int) []int {
	return cat([]int{int(op), operand, len(then), len(els)}, then, els)
}

func loop(body []int) []int {
	return cat([]int{int(OpWhileNotError), len(body)}, body)
}

// compile lowers e starting at stack height sp. The returned instructions
// leave exactly one new value on the stack (the match result or the
// failure marker), so the resulting height is always sp+1.
func (gen *generator) compile(e ast.Expression, sp int) ([]int, int, error) {
	switch x := e.(type) {
	case *ast.Literal:
		return gen.literal(x), sp + 1, nil

	case *ast.CharClass:
		k := gen.pool.class(x.Parts, x.Inverted, x.IgnoreCase)
		ke := gen.pool.expectation(&Expectation{Kind: "class", Parts: x.Parts, Inverted: x.Inverted, IgnoreCase: x.IgnoreCase})
		return cat(
			[]int{int(OpMatchClass), k},
			cond(OpIf, []int{int(OpAcceptN), 1}, []int{int(OpFail), ke}),
		), sp + 1, nil

	case *ast.AnyMatch:
		ke := gen.pool.expectation(&Expectation{Kind: "any"})
		return cat(
			[]int{int(OpMatchAny)},
			cond(OpIf, []int{int(OpAcceptN), 1}, []int{int(OpFail), ke}),
		), sp + 1, nil

	case *ast.EndMatch:
		ke := gen.pool.expectation(&Expectation{Kind: "end"})
		return cat(
			[]int{int(OpMatchEnd)},
			cond(OpIf, []int{int(OpLoad), gen.pool.sentinel(ConstUndefined)}, []int{int(OpFail), ke}),
		), sp + 1, nil

	case *ast.RuleRef:
		if x.Index < 0 {
			return nil, sp, fmt.Errorf("unresolved reference to rule %q", x.Name)
		}
		if gen.recursive[x.Index] && gen.sccOf[gen.caller] != gen.sccOf[x.Index] {
			return []int{int(OpRule), x.Index}, sp + 1, nil
		}
		return []int{int(OpCall), x.Index, 0}, sp + 1, nil

	case *ast.Sequence:
		return gen.sequence(x, sp)

	case *ast.Choice:
		return gen.choice(x, sp)

	case *ast.Optional:
		code, _, err := gen.compile(x.Expr, sp)
		if err != nil {
			return nil, sp, err
		}
		return cat(code, cond(OpIfError,
			[]int{int(OpPop), int(OpLoad), gen.pool.sentinel(ConstNull)},
			nil,
		)), sp + 1, nil

	case *ast.ZeroOrMore:
		body, _, err := gen.compile(x.Expr, sp+1)
		if err != nil {
			return nil, sp, err
		}
		return cat(
			[]int{int(OpLoad), gen.pool.sentinel(ConstEmptyArray)},
			body,
			loop(cat([]int{int(OpAppend)}, body)),
			[]int{int(OpPop)},
		), sp + 1, nil

	case *ast.OneOrMore:
		body, _, err := gen.compile(x.Expr, sp+1)
		if err != nil {
			return nil, sp, err
		}
		return cat(
			[]int{int(OpLoad), gen.pool.sentinel(ConstEmptyArray)},
			body,
			loop(cat([]int{int(OpAppend)}, body)),
			[]int{int(OpPop)},
			condN(OpIfArrlenMin, 1,
				nil,
				[]int{int(OpPop), int(OpLoad), gen.pool.sentinel(ConstFailed)},
			),
		), sp + 1, nil

	case *ast.Text:
		code, _, err := gen.compile(x.Expr, sp+1)
		if err != nil {
			return nil, sp, err
		}
		return cat(
			[]int{int(OpPushCurrPos)},
			code,
			cond(OpIfNotError,
				[]int{int(OpPop), int(OpText)},
				[]int{int(OpNip)},
			),
		), sp + 1, nil

	case *ast.SimpleAnd:
		return gen.simplePredicate(x.Expr, false, sp)

	case *ast.SimpleNot:
		return gen.simplePredicate(x.Expr, true, sp)

	case *ast.SemanticAnd:
		return gen.semanticPredicate(x.NodeID(), x.Code, false, sp)

	case *ast.SemanticNot:
		return gen.semanticPredicate(x.NodeID(), x.Code, true, sp)

	case *ast.Labeled:
		code, _, err := gen.compile(x.Expr, sp)
		if err != nil {
			return nil, sp, err
		}
		if x.Label != "" {
			gen.env[x.Label] = sp + 1
		}
		return code, sp + 1, nil

	case *ast.Action:
		return gen.action(x, sp)

	case *ast.Scope:
		return gen.scope(x, sp)

	case *ast.Named:
		code, _, err := gen.compile(x.Expr, sp)
		if err != nil {
			return nil, sp, err
		}
		ke := gen.pool.expectation(&Expectation{Kind: "other", Description: x.DisplayName})
		return cat(
			[]int{int(OpSilentFailsOn)},
			code,
			[]int{int(OpSilentFailsOff)},
			cond(OpIfError,
				[]int{int(OpPop), int(OpFail), ke},
				nil,
			),
		), sp + 1, nil

	default:
		return nil, sp, fmt.Errorf("unsupported expression %T", e)
	}
}

func (gen *generator) literal(x *ast.Literal) []int {
	if x.Value == "" {
		return []int{int(OpLoad), gen.pool.str("", false)}
	}
	k := gen.pool.str(x.Value, x.IgnoreCase)
	ke := gen.pool.expectation(&Expectation{Kind: "literal", Text: x.Value, IgnoreCase: x.IgnoreCase})
	if x.IgnoreCase {
		return cat(
			[]int{int(OpMatchStringIC), k},
			cond(OpIf, []int{int(OpAcceptN), len([]rune(x.Value))}, []int{int(OpFail), ke}),
		)
	}
	return cat(
		[]int{int(OpMatchString), k},
		cond(OpIf, []int{int(OpAcceptString), k}, []int{int(OpFail), ke}),
	)
}

// sequence saves the cursor, matches each element in order, and on success
// wraps the element results into a tuple. Any element failure pops the
// partial results, restores the cursor, and fails the whole sequence.
// Unlabeled void elements (lookaheads, predicates, end) are popped as soon
// as they succeed; a sequence left with exactly one value element yields
// that value instead of a one-element tuple.
func (gen *generator) sequence(x *ast.Sequence, sp int) ([]int, int, error) {
	if len(x.Elements) == 0 {
		return []int{int(OpLoad), gen.pool.sentinel(ConstEmptyArray)}, sp + 1, nil
	}
	var build func(i, sp, kept int) ([]int, error)
	build = func(i, sp, kept int) ([]int, error) {
		if i == len(x.Elements) {
			switch {
			case kept == 0:
				return []int{int(OpLoad), gen.pool.sentinel(ConstEmptyArray), int(OpNip)}, nil
			case kept == 1 && len(x.Elements) > 1:
				return []int{int(OpNip)}, nil
			default:
				return []int{int(OpWrap), kept, int(OpNip)}, nil
			}
		}
		elem, spAfter, err := gen.compile(x.Elements[i], sp)
		if err != nil {
			return nil, err
		}
		drop := ast.IsVoid(x.Elements[i])
		var dropped []int
		nextSp, nextKept := spAfter, kept+1
		if drop {
			dropped = []int{int(OpPop)}
			nextSp, nextKept = spAfter-1, kept
		}
		rest, err := build(i+1, nextSp, nextKept)
		if err != nil {
			return nil, err
		}
		return cat(elem, cond(OpIfNotError,
			cat(dropped, rest),
			[]int{int(OpPopN), kept + 1, int(OpPopCurrPos), int(OpLoad), gen.pool.sentinel(ConstFailed)},
		)), nil
	}
	code, err := build(0, sp+1, 0)
	if err != nil {
		return nil, sp, err
	}
	return cat([]int{int(OpPushCurrPos)}, code), sp + 1, nil
}

// choice relies on the VM invariant that a failed expression never
// consumes input, so each alternative starts from the same cursor.
func (gen *generator) choice(x *ast.Choice, sp int) ([]int, int, error) {
	var build func(i int) ([]int, error)
	build = func(i int) ([]int, error) {
		saved := gen.cloneEnv()
		code, _, err := gen.compile(x.Alternatives[i], sp)
		gen.env = saved
		if err != nil {
			return nil, err
		}
		if i == len(x.Alternatives)-1 {
			return code, nil
		}
		rest, err := build(i + 1)
		if err != nil {
			return nil, err
		}
		return cat(code, cond(OpIfError, cat([]int{int(OpPop)}, rest), nil)), nil
	}
	if len(x.Alternatives) == 0 {
		return []int{int(OpLoad), gen.pool.sentinel(ConstFailed)}, sp + 1, nil
	}
	code, err := build(0)
	return code, sp + 1, err
}

func (gen *generator) simplePredicate(e ast.Expression, negative bool, sp int) ([]int, int, error) {
	code, _, err := gen.compile(e, sp+1)
	if err != nil {
		return nil, sp, err
	}
	undef := []int{int(OpLoad), gen.pool.sentinel(ConstUndefined)}
	failed := []int{int(OpLoad), gen.pool.sentinel(ConstFailed)}
	var branch []int
	if negative {
		branch = cond(OpIfError,
			cat([]int{int(OpPop), int(OpPop)}, undef),
			cat([]int{int(OpPop), int(OpPopCurrPos)}, failed),
		)
	} else {
		branch = cond(OpIfNotError,
			cat([]int{int(OpPop), int(OpPopCurrPos)}, undef),
			cat([]int{int(OpPop), int(OpPop)}, failed),
		)
	}
	return cat(
		[]int{int(OpPushCurrPos), int(OpSilentFailsOn)},
		code,
		[]int{int(OpSilentFailsOff)},
		branch,
	), sp + 1, nil
}

func (gen *generator) semanticPredicate(id ast.NodeID, code *ast.CodeBlock, negative bool, sp int) ([]int, int, error) {
	exec := gen.execute(id, code.Code, false, nil, sp)
	undef := []int{int(OpLoad), gen.pool.sentinel(ConstUndefined)}
	failed := []int{int(OpLoad), gen.pool.sentinel(ConstFailed)}
	then, els := undef, failed
	if negative {
		then, els = failed, undef
	}
	return cat(exec, cond(OpIf, then, els)), sp + 1, nil
}

// action compiles its expression, then EXECUTEs the user code on success.
// A sequence child is fused: its element results stay on the stack so the
// label manifest can still reach them when the code runs, and the code's
// return value replaces them all.
func (gen *generator) action(x *ast.Action, sp int) ([]int, int, error) {
	if seq, ok := x.Expr.(*ast.Sequence); ok && len(seq.Elements) > 0 {
		return gen.actionSequence(x, seq, sp)
	}
	saved := gen.cloneEnv()
	code, spAfter, err := gen.compile(x.Expr, sp+1)
	if err != nil {
		gen.env = saved
		return nil, sp, err
	}
	exec := gen.execute(x.NodeID(), x.Code.Code, false, nil, spAfter)
	gen.env = saved
	return cat(
		[]int{int(OpPushCurrPos)},
		code,
		cond(OpIfNotError,
			cat([]int{int(OpLoadSavedPos), 1}, exec, []int{int(OpNip)}),
			nil,
		),
		[]int{int(OpNip)},
	), sp + 1, nil
}

func (gen *generator) actionSequence(x *ast.Action, seq *ast.Sequence, sp int) ([]int, int, error) {
	saved := gen.cloneEnv()
	defer func() { gen.env = saved }()

	var build func(i, sp, kept int) ([]int, error)
	build = func(i, sp, kept int) ([]int, error) {
		if i == len(seq.Elements) {
			exec := gen.execute(x.NodeID(), x.Code.Code, false, nil, sp)
			var nips []int
			for j := 0; j <= kept; j++ {
				nips = append(nips, int(OpNip))
			}
			return cat([]int{int(OpLoadSavedPos), kept}, exec, nips), nil
		}
		elem, spAfter, err := gen.compile(seq.Elements[i], sp)
		if err != nil {
			return nil, err
		}
		drop := ast.IsVoid(seq.Elements[i])
		var dropped []int
		nextSp, nextKept := spAfter, kept+1
		if drop {
			dropped = []int{int(OpPop)}
			nextSp, nextKept = spAfter-1, kept
		}
		rest, err := build(i+1, nextSp, nextKept)
		if err != nil {
			return nil, err
		}
		return cat(elem, cond(OpIfNotError,
			cat(dropped, rest),
			[]int{int(OpPopN), kept + 1, int(OpPopCurrPos), int(OpLoad), gen.pool.sentinel(ConstFailed)},
		)), nil
	}
	code, err := build(0, sp+1, 0)
	if err != nil {
		return nil, sp, err
	}
	return cat([]int{int(OpPushCurrPos)}, code), sp + 1, nil
}

// scope runs its prelude before the expression. The prelude's bindings
// object stays on the stack under the expression result so inner code
// blocks can reach the bindings; registered rollback hooks fire if the
// scoped expression fails.
func (gen *generator) scope(x *ast.Scope, sp int) ([]int, int, error) {
	returns := gen.info.Introduces(x.NodeID())
	exec := gen.execute(x.NodeID(), x.Code.Code, true, returns, sp)
	gen.scopes[x.NodeID()] = sp + 1
	code, _, err := gen.compile(x.Expr, sp+1)
	delete(gen.scopes, x.NodeID())
	if err != nil {
		return nil, sp, err
	}
	return cat(
		[]int{int(OpRollbackMark)},
		exec,
		code,
		cond(OpIfNotError,
			[]int{int(OpRollbackCommit)},
			[]int{int(OpRollbackFire)},
		),
		[]int{int(OpNip)},
	), sp + 1, nil
}

// execute emits an EXECUTE of the given code block with arguments resolved
// from the label manifest attached by the action-code analyzer. sp is the
// stack height at the execution point; argument operands are depths from
// the top of the stack.
func (gen *generator) execute(id ast.NodeID, source string, scope bool, returns []string, sp int) []int {
	manifest := gen.info.Manifest(id)
	var params []CodeParam
	var depths []int
	scopeParam := map[ast.NodeID]int{}
	for _, entry := range manifest {
		if entry.FromScope {
			if pi, ok := scopeParam[entry.Scope]; ok {
				params[pi].ScopeVars = append(params[pi].ScopeVars, entry.Label)
				continue
			}
			scopeParam[entry.Scope] = len(params)
			params = append(params, CodeParam{
				Name:      fmt.Sprintf("peg$scope%d", len(scopeParam)-1),
				ScopeVars: []string{entry.Label},
			})
			depths = append(depths, sp-gen.scopes[entry.Scope])
			continue
		}
		params = append(params, CodeParam{Name: entry.Label})
		depths = append(depths, sp-gen.env[entry.Label])
	}
	k := gen.pool.code(&Code{Source: source, Scope: scope, Returns: returns, Params: params})
	return cat([]int{int(OpExecute), k, len(depths)}, depths)
}

func (gen *generator) cloneEnv() map[string]int {
	out := make(map[string]int, len(gen.env))
	for k, v := range gen.env {
		out[k] = v
	}
	return out
}
