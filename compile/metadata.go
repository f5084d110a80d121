// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import (
	"github.com/arcanis/pegjs/ast"
	"github.com/arcanis/pegjs/internal/bytecode"
	"github.com/arcanis/pegjs/internal/types"
)

// NodeMeta is the derived data passes attach to a node. The AST variants
// themselves are never extended with transient fields; everything a pass
// learns lives here, keyed by node identity.
type NodeMeta struct {
	// Type is the inferred (or pinned) result type of the node.
	Type types.Type
	// TypePinned marks a @type override: inference neither recomputes nor
	// propagates through this node.
	TypePinned bool
	// TokenType marks a @token subtree with its token type name.
	TokenType string
	// Manifest is the ordered label manifest of a code-bearing node.
	Manifest []bytecode.ManifestEntry
	// Introduces lists the bindings a scope prelude declares.
	Introduces []string
	// ArrayOf pins the node's type to an array of the given node's type.
	// Set by the @separator rewrite so the synthesized action keeps the
	// repetition's result shape.
	ArrayOf ast.NodeID
	// PickOf pins the node's type to the type of the picked elements (one
	// node, or a tuple of several). Set by the `::` shortcut rewrite.
	PickOf []ast.NodeID
}

// Metadata is the side table of per-node pass results. It implements
// bytecode.Analysis for the generator.
type Metadata struct {
	nodes map[ast.NodeID]*NodeMeta
}

// NewMetadata returns an empty side table.
func NewMetadata() *Metadata {
	return &Metadata{nodes: map[ast.NodeID]*NodeMeta{}}
}

// Of returns the metadata entry for id, creating it if needed.
func (m *Metadata) Of(id ast.NodeID) *NodeMeta {
	if meta, ok := m.nodes[id]; ok {
		return meta
	}
	meta := &NodeMeta{}
	m.nodes[id] = meta
	return meta
}

// Lookup returns the metadata entry for id without creating one.
func (m *Metadata) Lookup(id ast.NodeID) (*NodeMeta, bool) {
	meta, ok := m.nodes[id]
	return meta, ok
}

// Manifest implements bytecode.Analysis.
func (m *Metadata) Manifest(id ast.NodeID) []bytecode.ManifestEntry {
	if meta, ok := m.nodes[id]; ok {
		return meta.Manifest
	}
	return nil
}

// TokenType implements bytecode.Analysis.
func (m *Metadata) TokenType(id ast.NodeID) string {
	if meta, ok := m.nodes[id]; ok {
		return meta.TokenType
	}
	return ""
}

// Introduces implements bytecode.Analysis.
func (m *Metadata) Introduces(id ast.NodeID) []string {
	if meta, ok := m.nodes[id]; ok {
		return meta.Introduces
	}
	return nil
}
