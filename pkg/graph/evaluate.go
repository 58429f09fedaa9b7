package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chazu/hardeen/pkg/ctxlog"
	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/processor"
	"github.com/chazu/hardeen/pkg/status"
	"golang.org/x/sync/errgroup"
)

// Observer is notified after every node computation of an evaluation pass.
// Implementations must be safe for concurrent use.
type Observer interface {
	NodeEvaluated(t processor.Type, d time.Duration, err error)
}

// Options tune an evaluation pass.
type Options struct {
	// Workers bounds the number of node computations running at once.
	// Zero or less means GOMAXPROCS.
	Workers int
	// ScriptTimeout bounds embedded predicate scripts; zero selects the
	// script package default.
	ScriptTimeout time.Duration
	Observer      Observer
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// cell holds one node's result for the duration of a pass. It is written
// exactly once; readers wait on done.
type cell struct {
	once  sync.Once
	done  chan struct{}
	world *geometry.World
	err   error
}

func newCell() *cell {
	return &cell{done: make(chan struct{})}
}

func (c *cell) resolve(w *geometry.World, err error) {
	c.once.Do(func() {
		c.world, c.err = w, err
		close(c.done)
	})
}

// step is one node of a plan with a snapshot of what its computation needs.
type step struct {
	node   *Node
	params processor.Params
	deps   []*cell // per input slot, nil when unbound
	out    *cell
	child  *plan // subgraph plan, nil when the child has no output
}

// plan is the dependency-ordered list of steps needed for one target node.
type plan struct {
	steps  []*step
	target *cell
}

// EvaluateOutput evaluates the scope's designated output node.
func (s *Scope) EvaluateOutput(ctx context.Context, opts Options) (*geometry.World, error) {
	if s.output.IsZero() {
		return nil, status.Errorf(status.GraphOutputNotSet, "no output node designated")
	}
	n, err := s.get(s.output)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, n, opts)
}

// Evaluate computes the node h refers to together with everything it
// depends on in this scope. Results are not kept between calls. The first
// failing node cancels the rest of the pass and no partial result is
// returned.
func (s *Scope) Evaluate(ctx context.Context, h *NodeHandle, opts Options) (*geometry.World, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, n, opts)
}

func (s *Scope) evaluate(ctx context.Context, n *Node, opts Options) (*geometry.World, error) {
	p, err := s.plan(n)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, opts)
}

// order returns target and its transitive producers in dependency order.
func (s *Scope) order(target *Node) ([]*Node, error) {
	type frame struct {
		n    *Node
		next int
	}
	var (
		out     []*Node
		visited = map[NodeID]bool{target.id: true}
		stack   = []frame{{n: target}}
	)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.n.inputs) {
			out = append(out, top.n)
			stack = stack[:len(stack)-1]
			continue
		}
		src := top.n.inputs[top.next]
		top.next++
		if src.IsZero() || visited[src] {
			continue
		}
		visited[src] = true
		p, err := s.get(src)
		if err != nil {
			return nil, err
		}
		stack = append(stack, frame{n: p})
	}
	return out, nil
}

// plan checks readiness in dependency order and snapshots every step.
// Subgraphs are planned eagerly so the compute pass never touches the
// handle table.
func (s *Scope) plan(target *Node) (*plan, error) {
	nodes, err := s.order(target)
	if err != nil {
		return nil, err
	}
	cells := make(map[NodeID]*cell, len(nodes))
	p := &plan{steps: make([]*step, 0, len(nodes))}
	for _, n := range nodes {
		st := &step{
			node:   n,
			params: n.Params(),
			deps:   make([]*cell, len(n.inputs)),
			out:    newCell(),
		}
		if slot, missing := n.missingInput(); missing {
			return nil, status.Errorf(status.NodeInputNotSatisfied,
				"required input %q is not connected", n.desc.Inputs[slot].Name).WithNode(n.Name()).WithSlot(slot)
		}
		for slot, src := range n.inputs {
			if !src.IsZero() {
				st.deps[slot] = cells[src]
			}
		}
		if n.child != nil && n.child.HasOutput() {
			out, err := n.child.get(n.child.output)
			if err != nil {
				return nil, err
			}
			if st.child, err = n.child.plan(out); err != nil {
				return nil, err
			}
		}
		cells[n.id] = st.out
		p.steps = append(p.steps, st)
	}
	p.target = cells[target.id]
	return p, nil
}

func (p *plan) run(ctx context.Context, opts Options) (*geometry.World, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for _, st := range p.steps {
		g.Go(func() error {
			w, err := st.compute(gctx, opts)
			st.out.resolve(w, err)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		var se *status.Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, status.Wrap(status.ErrorProcessingNode, err)
	}
	return p.target.world, nil
}

func (st *step) compute(ctx context.Context, opts Options) (w *geometry.World, err error) {
	n := st.node
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inputs := make([]*geometry.World, len(st.deps))
	for slot, dep := range st.deps {
		if dep == nil {
			continue
		}
		select {
		case <-dep.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if dep.err != nil {
			return nil, dep.err
		}
		inputs[slot] = dep.world
	}

	inv := processor.Invocation{
		Node:          n.Name(),
		Params:        st.params,
		Inputs:        inputs,
		ScriptTimeout: opts.ScriptTimeout,
	}
	if n.child != nil {
		child := st.child
		inv.Subgraph = func(ctx context.Context) (*geometry.World, error) {
			if child == nil {
				return nil, nil
			}
			return child.run(ctx, opts)
		}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w, err = nil, fmt.Errorf("panic: %v", r)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			err = status.Wrap(status.ErrorProcessingNode, err).WithNode(n.Name())
		}
		if err == nil && w == nil {
			err = status.Errorf(status.ErrorProcessingNode, "processor returned no result").WithNode(n.Name())
		}
		d := time.Since(start)
		if opts.Observer != nil {
			opts.Observer.NodeEvaluated(n.typ, d, err)
		}
		ctxlog.FromContext(ctx).Debug("node evaluated", "node", n.Name(), "duration", d, "error", err)
	}()
	return n.desc.Compute(ctx, inv)
}
