package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/chazu/hardeen/pkg/processor"
	"github.com/chazu/hardeen/pkg/status"
	"github.com/zclconf/go-cty/cty"
)

// Scope is one graph: the root graph of a project or the subgraph owned by a
// node. Scopes share their project's handle table. Edges never leave a
// scope.
//
// A Scope is not safe for concurrent mutation; callers serialize access.
type Scope struct {
	table  *Table
	parent *Scope
	// dropped is set when the owning node is deleted. Handles into a dropped
	// scope are freed the next time they are resolved.
	dropped bool

	nodes   map[NodeID]struct{}
	output  NodeID
	exposed map[string]binding
}

type binding struct {
	node  NodeID
	param string
}

// ExposedParameter describes a node parameter published on its scope under
// an alias.
type ExposedParameter struct {
	Name  string
	Param string
	Type  processor.ParamType
	Value cty.Value
}

// NewScope returns an empty root scope backed by t.
func NewScope(t *Table) *Scope {
	return newScope(t, nil)
}

func newScope(t *Table, parent *Scope) *Scope {
	return &Scope{
		table:   t,
		parent:  parent,
		nodes:   make(map[NodeID]struct{}),
		exposed: make(map[string]binding),
	}
}

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Len returns the number of nodes in the scope.
func (s *Scope) Len() int {
	return len(s.nodes)
}

func (s *Scope) alive() bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.dropped {
			return false
		}
	}
	return !s.table.closed
}

// resolve returns the node h refers to and checks it lives in s.
func (s *Scope) resolve(h *NodeHandle) (*Node, error) {
	n, err := s.table.Resolve(h)
	if err != nil {
		return nil, err
	}
	if n.scope != s {
		return nil, status.Errorf(status.InvalidReference, "%s is not in the current graph", n.Name())
	}
	return n, nil
}

// get looks up a member of s by identity. Edges only reference live members,
// so a miss is reported as an invalid handle.
func (s *Scope) get(id NodeID) (*Node, error) {
	if _, ok := s.nodes[id]; !ok {
		return nil, status.Errorf(status.InvalidHandle, "node %s is not in this graph", id)
	}
	return s.table.node(id)
}

// Resolve returns the node h refers to, failing with InvalidReference when
// the node belongs to another scope.
func (s *Scope) Resolve(h *NodeHandle) (*Node, error) {
	return s.resolve(h)
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// AddNode creates a node of type t with unbound inputs and default
// parameters.
func (s *Scope) AddNode(t processor.Type) (*NodeHandle, error) {
	desc, ok := processor.Lookup(t)
	if !ok {
		return nil, status.Errorf(status.NodeTypeInvalid, "unknown processor type %d", int(t))
	}
	n := newNode(s, desc)
	id := s.table.allocate(n)
	s.nodes[id] = struct{}{}
	return s.table.issue(id), nil
}

// DeleteNode removes the node with all edges touching it and frees its
// slot. Output designation and exposed parameters pointing at the node are
// cleared. A subgraph owned by the node is dropped without visiting it.
func (s *Scope) DeleteNode(h *NodeHandle) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	for slot := range n.inputs {
		s.unbind(n, slot)
	}
	for dep := range n.outputs {
		d, err := s.get(dep)
		if err != nil {
			continue
		}
		for slot, src := range d.inputs {
			if src == n.id {
				d.inputs[slot] = NodeID{}
			}
		}
	}
	clear(n.outputs)

	if s.output == n.id {
		s.output = NodeID{}
	}
	for name, b := range s.exposed {
		if b.node == n.id {
			delete(s.exposed, name)
		}
	}
	if n.child != nil {
		n.child.dropped = true
	}
	delete(s.nodes, n.id)
	return s.table.free(n.id)
}

// Nodes returns a fresh handle for every node in the scope, in slot order.
func (s *Scope) Nodes() []*NodeHandle {
	ids := make([]NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b NodeID) int { return cmp.Compare(a.Index, b.Index) })

	out := make([]*NodeHandle, len(ids))
	for i, id := range ids {
		out[i] = s.table.issue(id)
	}
	return out
}

// Subgraph returns the child scope owned by the node h refers to.
func (s *Scope) Subgraph(h *NodeHandle) (*Scope, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	if n.child == nil {
		return nil, status.Errorf(status.NodeSlotDoesNotExist, "%s has no subgraph", n.typ).WithNode(n.Name())
	}
	return n.child, nil
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

// InputSatisfied reports whether every required input slot of h is bound.
// Producers are not checked transitively.
func (s *Scope) InputSatisfied(h *NodeHandle) (bool, error) {
	n, err := s.resolve(h)
	if err != nil {
		return false, err
	}
	_, missing := n.missingInput()
	return !missing, nil
}

// Connect binds the output of src to input slot of dst, replacing any
// previous binding of that slot. On failure the graph is unchanged.
func (s *Scope) Connect(src, dst *NodeHandle, slot int) error {
	from, err := s.resolve(src)
	if err != nil {
		return err
	}
	to, err := s.resolve(dst)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(to.inputs) {
		return status.Errorf(status.InvalidInputSlotNumber,
			"%s has %d input slots", to.typ, len(to.inputs)).WithNode(to.Name()).WithSlot(slot)
	}
	want := to.desc.Inputs[slot].Type
	if !processor.Compatible(from.desc.Output, want) {
		return status.Errorf(status.NodeInputTypeMismatch,
			"%s produces %s, slot %q expects %s", from.typ, from.desc.Output, to.desc.Inputs[slot].Name, want).
			WithNode(to.Name()).WithSlot(slot)
	}
	if s.reaches(to, from.id) {
		return status.Errorf(status.ErrorProcessingNode,
			"connecting %s to %s would create a cycle", from.Name(), to.Name()).WithNode(to.Name()).WithSlot(slot)
	}

	s.unbind(to, slot)
	to.inputs[slot] = from.id
	from.outputs[to.id]++
	return nil
}

// Disconnect removes the edge from src into slot of dst.
func (s *Scope) Disconnect(src, dst *NodeHandle, slot int) error {
	from, err := s.resolve(src)
	if err != nil {
		return err
	}
	to, err := s.resolve(dst)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(to.inputs) {
		return status.Errorf(status.InvalidInputSlotNumber,
			"%s has %d input slots", to.typ, len(to.inputs)).WithNode(to.Name()).WithSlot(slot)
	}
	if to.inputs[slot] != from.id {
		return status.Errorf(status.NodeOutputHandleInvalid,
			"slot is not bound to %s", from.Name()).WithNode(to.Name()).WithSlot(slot)
	}
	s.unbind(to, slot)
	return nil
}

// unbind clears slot of n and drops the producer's back reference.
func (s *Scope) unbind(n *Node, slot int) {
	src := n.inputs[slot]
	if src.IsZero() {
		return
	}
	n.inputs[slot] = NodeID{}
	p, err := s.get(src)
	if err != nil {
		return
	}
	if p.outputs[n.id]--; p.outputs[n.id] <= 0 {
		delete(p.outputs, n.id)
	}
}

// reaches reports whether target is n or downstream of n.
func (s *Scope) reaches(n *Node, target NodeID) bool {
	seen := map[NodeID]bool{n.id: true}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.id == target {
			return true
		}
		for dep := range cur.outputs {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if d, err := s.get(dep); err == nil {
				stack = append(stack, d)
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// SetParameter assigns a parameter value after checking it against the
// declared type.
func (s *Scope) SetParameter(h *NodeHandle, name string, v cty.Value) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	return setParameter(n, name, v)
}

func setParameter(n *Node, name string, v cty.Value) error {
	p, ok := n.desc.Parameter(name)
	if !ok {
		return status.Errorf(status.NodeParameterDoesNotExist,
			"%s has no parameter %q", n.typ, name).WithNode(n.Name()).WithParam(name)
	}
	if err := processor.CheckValue(p.Type, v); err != nil {
		return status.Wrap(status.NodeRunTypeMismatch, err).WithNode(n.Name()).WithParam(name)
	}
	n.params[name] = v
	return nil
}

// SetParameterString parses raw according to the parameter's declared type
// and assigns it.
func (s *Scope) SetParameterString(h *NodeHandle, name, raw string) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	p, ok := n.desc.Parameter(name)
	if !ok {
		return status.Errorf(status.NodeParameterDoesNotExist,
			"%s has no parameter %q", n.typ, name).WithNode(n.Name()).WithParam(name)
	}
	v, err := processor.ParseValue(p.Type, raw)
	if err != nil {
		return status.Wrap(status.NodeRunTypeMismatch, err).WithNode(n.Name()).WithParam(name)
	}
	n.params[name] = v
	return nil
}

// Parameter returns the current value of a parameter.
func (s *Scope) Parameter(h *NodeHandle, name string) (cty.Value, error) {
	n, err := s.resolve(h)
	if err != nil {
		return cty.NilVal, err
	}
	v, ok := n.params[name]
	if !ok {
		return cty.NilVal, status.Errorf(status.NodeParameterDoesNotExist,
			"%s has no parameter %q", n.typ, name).WithNode(n.Name()).WithParam(name)
	}
	return v, nil
}

// ExposeParameter publishes the parameter param of h on the scope under
// name. Re-exposing a name rebinds it.
func (s *Scope) ExposeParameter(name string, h *NodeHandle, param string) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	if _, ok := n.desc.Parameter(param); !ok {
		return status.Errorf(status.NodeParameterDoesNotExist,
			"%s has no parameter %q", n.typ, param).WithNode(n.Name()).WithParam(param)
	}
	s.exposed[name] = binding{node: n.id, param: param}
	return nil
}

// SetExposedParameter assigns the parameter published under name.
func (s *Scope) SetExposedParameter(name string, v cty.Value) error {
	b, ok := s.exposed[name]
	if !ok {
		return status.Errorf(status.ExposedParameterDoesNotExist, "no exposed parameter %q", name).WithParam(name)
	}
	n, err := s.get(b.node)
	if err != nil {
		delete(s.exposed, name)
		return status.Wrap(status.ExposedParameterDoesNotExist, err).WithParam(name)
	}
	return setParameter(n, b.param, v)
}

// ExposedParameters lists the published parameters sorted by name.
func (s *Scope) ExposedParameters() []ExposedParameter {
	out := make([]ExposedParameter, 0, len(s.exposed))
	for name, b := range s.exposed {
		n, err := s.get(b.node)
		if err != nil {
			continue
		}
		p, _ := n.desc.Parameter(b.param)
		out = append(out, ExposedParameter{
			Name:  name,
			Param: b.param,
			Type:  p.Type,
			Value: n.params[b.param],
		})
	}
	slices.SortFunc(out, func(a, b ExposedParameter) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// ---------------------------------------------------------------------------
// Output designation
// ---------------------------------------------------------------------------

// SetOutput designates h as the scope's output node.
func (s *Scope) SetOutput(h *NodeHandle) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	s.output = n.id
	return nil
}

// ClearOutput removes the output designation.
func (s *Scope) ClearOutput() {
	s.output = NodeID{}
}

// HasOutput reports whether an output node is designated.
func (s *Scope) HasOutput() bool {
	return !s.output.IsZero()
}

// Output returns a fresh handle to the designated output node.
func (s *Scope) Output() (*NodeHandle, error) {
	if s.output.IsZero() {
		return nil, status.Errorf(status.GraphOutputNotSet, "no output node designated")
	}
	if _, err := s.get(s.output); err != nil {
		return nil, err
	}
	return s.table.issue(s.output), nil
}

func (s *Scope) String() string {
	return fmt.Sprintf("scope(%d nodes)", len(s.nodes))
}
