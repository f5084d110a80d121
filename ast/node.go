// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

// NodeID identifies an AST node independent of its contents, so that passes
// can attach derived data (types, label manifests, annotation effects) in a
// side table instead of extending the node variants themselves. See the
// "Polymorphic AST" design note: the variant types are never given transient
// fields for pass-local bookkeeping.
type NodeID uint32

// Node is embedded by every Expression and by Rule to provide identity,
// source location, and the annotation list attached in source. Annotations
// are consumed (and cleared) by the annotation-processor pass; they are
// meaningful on rules and on choice alternatives, and generic annotations
// may appear on any expression.
type Node struct {
	ID          NodeID
	Location    *Location
	Annotations []Annotation
}

// Loc returns the node's source location.
func (n Node) Loc() *Location { return n.Location }

// Anns returns the annotations attached to the node in source.
func (n *Node) Anns() []Annotation { return n.Annotations }

// ClearAnns drops the node's annotations once a pass has consumed them.
func (n *Node) ClearAnns() { n.Annotations = nil }

// SetAnns attaches annotations parsed from source to the node.
func (n *Node) SetAnns(a []Annotation) { n.Annotations = a }

// NodeID returns the node's identity for use as a metadata side-table key.
func (n Node) NodeID() NodeID { return n.ID }

// Builder mints AST nodes with unique, deterministic IDs. The bootstrap
// parser (and tests) should construct grammars exclusively through a
// Builder so that NodeID assignment is reproducible for a given source
// text, which in turn keeps emitted output byte-for-byte deterministic
// across compiler runs (see the determinism invariant in the spec).
type Builder struct {
	next NodeID
}

// NewBuilder returns an empty Builder. Each Builder should be used for
// exactly one grammar.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) nodeID() NodeID {
	b.next++
	return b.next
}

func (b *Builder) node(loc *Location) Node {
	return Node{ID: b.nodeID(), Location: loc}
}

// ResumeBuilder returns a Builder that mints IDs strictly greater than
// after. Passes that synthesize nodes into an already-built grammar use it
// so new IDs never collide with the bootstrap parser's.
func ResumeBuilder(after NodeID) *Builder {
	return &Builder{next: after}
}

// MaxNodeID returns the highest NodeID used anywhere in g.
func MaxNodeID(g *Grammar) NodeID {
	var max NodeID
	for _, r := range g.Rules {
		if r.ID > max {
			max = r.ID
		}
		WalkExpressions(r.Expression, func(e Expression) {
			if id := e.NodeID(); id > max {
				max = id
			}
		})
	}
	return max
}
