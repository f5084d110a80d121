// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package compile implements the grammar compilation pipeline: an ordered
// sequence of passes over a single mutable AST, ending in bytecode
// generation. Each pass may mutate nodes, attach metadata to the side
// table, or collect diagnostics; the first pass producing a fatal
// diagnostic aborts the pipeline after finishing its own collection.
package compile

import (
	"github.com/sirupsen/logrus"

	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
	"github.com/arcanis/pegjs/internal/types"
)

// Compiler contains the state of a compilation process.
type Compiler struct {
	// Errors contains the diagnostics collected so far. If any of them is
	// fatal, the compilation is considered failed.
	Errors ast.Errors

	// Grammar is the AST under compilation. It is mutated in place by the
	// annotation and label passes.
	Grammar *ast.Grammar

	// Options is the compile-time configuration.
	Options *Options

	// Metadata is the side table of per-node pass results.
	Metadata *Metadata

	// RuleIndex maps rule names to their index in Grammar.Rules. Rules are
	// referenced by index everywhere downstream of the reference checker.
	RuleIndex map[string]int

	// RuleTypes holds the inferred result type of each rule, aligned with
	// Grammar.Rules.
	RuleTypes []types.Type

	// Program is the generated bytecode, set by the final stage.
	Program *bytecode.Program

	stages []stage
	log    *logrus.Entry
}

type stage struct {
	f    func()
	name string
}

// NewCompiler returns a new compiler for the given options (nil means
// defaults).
func NewCompiler(opts *Options) *Compiler {
	if opts == nil {
		opts = NewOptions()
	}
	c := &Compiler{
		Options:   opts,
		Metadata:  NewMetadata(),
		RuleIndex: map[string]int{},
		log:       logrus.WithField("component", "compile"),
	}

	c.stages = []stage{
		{c.checkRuleReferences, "checkRuleReferences"},
		{c.checkDuplicateRules, "checkDuplicateRules"},
		{c.processAnnotations, "processAnnotations"},
		{c.analyzeActionCode, "analyzeActionCode"},
		{c.inferTypes, "inferTypes"},
		{c.generateBytecode, "generateBytecode"},
	}

	return c
}

// Compile runs the pipeline on g. Check Failed (or Errors) afterwards.
func (c *Compiler) Compile(g *ast.Grammar) {
	c.Grammar = g
	for _, s := range c.stages {
		c.log.WithField("pass", s.name).Debug("running pass")
		if s.f(); c.Failed() {
			c.log.WithField("pass", s.name).Debug("pass failed, aborting pipeline")
			return
		}
	}
}

// Failed reports whether any fatal diagnostic has been collected.
func (c *Compiler) Failed() bool {
	return c.Errors.Fatal()
}

func (c *Compiler) err(e *ast.Error) {
	if !e.Fatal {
		c.log.WithField("code", e.Code).Warn(e.Message)
	}
	c.Errors = append(c.Errors, e)
}

// resolveRuleIndexes rebuilds the name table and resolves every RuleRef to
// its rule index. Unresolved references are reported through report (the
// reference checker and the annotation processor want different fates for
// them).
func (c *Compiler) resolveRuleIndexes(report func(*ast.RuleRef)) {
	c.RuleIndex = map[string]int{}
	for i, r := range c.Grammar.Rules {
		if _, ok := c.RuleIndex[r.Name]; !ok {
			c.RuleIndex[r.Name] = i
		}
	}
	for _, r := range c.Grammar.Rules {
		ast.WalkExpressions(r.Expression, func(e ast.Expression) {
			if ref, ok := e.(*ast.RuleRef); ok {
				if idx, ok := c.RuleIndex[ref.Name]; ok {
					ref.Index = idx
				} else {
					ref.Index = -1
					report(ref)
				}
			}
		})
	}
}

// generateBytecode is the final stage: it lowers the checked grammar into
// the VM instruction stream and constants pool.
func (c *Compiler) generateBytecode() {
	prog, err := bytecode.Generate(c.Grammar, c.Metadata)
	if err != nil {
		c.err(ast.NewError(ast.InternalErr, true, c.Grammar.Location, "bytecode generation: %v", err))
		return
	}
	c.Program = prog
	c.log.WithFields(logrus.Fields{
		"rules":  len(prog.Rules),
		"consts": len(prog.Consts),
	}).Debug("generated bytecode")
}
