package graph

import (
	"fmt"
	"maps"

	"github.com/chazu/hardeen/pkg/handle"
	"github.com/chazu/hardeen/pkg/processor"
)

// NodeID is the internal identity of a node: its slot in the handle table.
type NodeID = handle.Handle

// Node is an instance of a processor type inside one scope.
type Node struct {
	id    NodeID
	typ   processor.Type
	desc  *processor.Descriptor
	scope *Scope

	// inputs holds the producer bound to each declared slot; the zero
	// NodeID marks an unbound slot.
	inputs []NodeID
	// outputs counts, per dependent node, how many of its slots are bound
	// to this node.
	outputs map[NodeID]int
	params  processor.Params
	// child is the owned subgraph of subgraph processor types.
	child *Scope
}

func newNode(s *Scope, desc *processor.Descriptor) *Node {
	n := &Node{
		typ:     desc.Type,
		desc:    desc,
		scope:   s,
		inputs:  make([]NodeID, len(desc.Inputs)),
		outputs: make(map[NodeID]int),
		params:  desc.Defaults(),
	}
	if desc.Subgraph {
		n.child = newScope(s.table, s)
	}
	return n
}

// Type returns the node's processor type.
func (n *Node) Type() processor.Type {
	return n.typ
}

// Name identifies the node in errors and logs.
func (n *Node) Name() string {
	return fmt.Sprintf("%s@%s", n.typ, n.id)
}

// Input returns the producer bound to slot, if any.
func (n *Node) Input(slot int) (NodeID, bool) {
	if slot < 0 || slot >= len(n.inputs) || n.inputs[slot].IsZero() {
		return NodeID{}, false
	}
	return n.inputs[slot], true
}

// Params returns a copy of the node's parameter values.
func (n *Node) Params() processor.Params {
	return maps.Clone(n.params)
}

// Subgraph returns the node's child scope, or nil.
func (n *Node) Subgraph() *Scope {
	return n.child
}

// missingInput returns the first required slot with no producer.
func (n *Node) missingInput() (int, bool) {
	for slot, src := range n.inputs {
		if src.IsZero() && !n.desc.Inputs[slot].Optional {
			return slot, true
		}
	}
	return 0, false
}
