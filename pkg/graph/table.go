package graph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/chazu/hardeen/pkg/handle"
	"github.com/chazu/hardeen/pkg/status"
)

// NodeHandle is an opaque reference to a node held by a caller. Handles are
// views: releasing one never deletes the node, and a handle whose node was
// deleted, or whose table was closed, fails to resolve with InvalidHandle.
type NodeHandle struct {
	table    *Table
	id       NodeID
	released atomic.Bool
}

// ID returns the slot and generation the handle was issued for.
func (h *NodeHandle) ID() NodeID {
	return h.id
}

// Released reports whether the holder has released the handle.
func (h *NodeHandle) Released() bool {
	return h.released.Load()
}

func (h *NodeHandle) String() string {
	return "node " + h.id.String()
}

type entry struct {
	node *Node
	held int
}

// Table maps node handles to live nodes for every scope of one project.
type Table struct {
	arena  handle.Arena[*entry]
	closed bool
}

// NewTable returns an empty handle table.
func NewTable() *Table {
	return &Table{}
}

// allocate inserts n and records its identity.
func (t *Table) allocate(n *Node) NodeID {
	n.id = t.arena.Insert(&entry{node: n})
	return n.id
}

// issue returns a new caller-held handle for id.
func (t *Table) issue(id NodeID) *NodeHandle {
	if e, err := t.arena.Get(id); err == nil {
		e.held++
	}
	return &NodeHandle{table: t, id: id}
}

// node looks up a live node by identity. Nodes of dropped scopes are freed
// on first sight.
func (t *Table) node(id NodeID) (*Node, error) {
	if t.closed {
		return nil, status.Errorf(status.InvalidHandle, "%s: project destroyed", id)
	}
	e, err := t.arena.Get(id)
	if err != nil {
		return nil, status.Wrap(status.InvalidHandle, fmt.Errorf("node %s: %w", id, err))
	}
	if !e.node.scope.alive() {
		_ = t.arena.Remove(id)
		return nil, status.Errorf(status.InvalidHandle, "node %s: owning subgraph was deleted", id)
	}
	return e.node, nil
}

// Resolve returns the node h refers to.
func (t *Table) Resolve(h *NodeHandle) (*Node, error) {
	if h == nil {
		return nil, status.Errorf(status.GotNullPointer, "nil node handle")
	}
	if h.table != t {
		return nil, status.Errorf(status.InvalidReference, "%s belongs to another project", h)
	}
	if h.Released() {
		return nil, status.Errorf(status.InvalidHandle, "%s was released", h)
	}
	return t.node(h.id)
}

// Owns reports whether h was issued by t.
func (t *Table) Owns(h *NodeHandle) bool {
	return h != nil && h.table == t
}

// Release marks h as no longer held. The node is unaffected and releasing
// twice is a no-op.
func (t *Table) Release(h *NodeHandle) {
	if h == nil || h.table != t || !h.released.CompareAndSwap(false, true) {
		return
	}
	if e, err := t.arena.Get(h.id); err == nil && e.held > 0 {
		e.held--
	}
}

// outstanding returns how many unreleased handles were issued for id.
func (t *Table) outstanding(id NodeID) int {
	e, err := t.arena.Get(id)
	if err != nil {
		return 0
	}
	return e.held
}

// free removes the node and bumps the slot generation.
func (t *Table) free(id NodeID) error {
	if err := t.arena.Remove(id); err != nil {
		if errors.Is(err, handle.ErrStale) || errors.Is(err, handle.ErrEmpty) {
			return status.Wrap(status.InvalidHandle, err)
		}
		return status.Wrap(status.InvalidHandle, fmt.Errorf("node %s: %w", id, err))
	}
	return nil
}

// Len returns the number of slots currently occupied.
func (t *Table) Len() int {
	return t.arena.Len()
}

// Close invalidates every handle issued by the table.
func (t *Table) Close() {
	t.closed = true
	t.arena = handle.Arena[*entry]{}
}
