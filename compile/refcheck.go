// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import "github.com/arcanis/pegjs/ast"

// checkRuleReferences resolves every rule reference against the rule
// table. Each unresolved reference produces its own fatal diagnostic;
// traversal continues so all of them are collected before the pipeline
// aborts. Resolved indexes are cached on the RuleRef nodes.
func (c *Compiler) checkRuleReferences() {
	c.resolveRuleIndexes(func(ref *ast.RuleRef) {
		c.err(ast.NewError(ast.UndefinedRuleErr, true, ref.Loc(),
			"rule %q is not defined", ref.Name))
	})
}

// checkDuplicateRules reports every rule whose name was already taken by
// an earlier rule. The first definition keeps the name.
func (c *Compiler) checkDuplicateRules() {
	seen := map[string]*ast.Rule{}
	for _, r := range c.Grammar.Rules {
		if prev, ok := seen[r.Name]; ok {
			c.err(ast.NewError(ast.DuplicateRuleErr, true, r.Loc(),
				"rule %q is already defined at %s", r.Name, prev.Loc()))
			continue
		}
		seen[r.Name] = r
	}
}
