// Package project is the caller-facing surface of hardeen. A Project owns a
// handle table, a root graph and a navigation stack of subgraphs; every
// operation acts on the scope at the top of the stack and returns an error
// carrying a status.Code.
//
// All methods are serialized by one mutex. Evaluation runs under the same
// lock, so edits wait for an in-flight pass to finish.
package project

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chazu/hardeen/pkg/ctxlog"
	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/graph"
	"github.com/chazu/hardeen/pkg/processor"
	"github.com/chazu/hardeen/pkg/status"
	"github.com/zclconf/go-cty/cty"
)

// Project is one editable node graph with nested subgraphs.
type Project struct {
	mu        sync.Mutex
	table     *graph.Table
	stack     []*graph.Scope
	eval      graph.Options
	logger    *slog.Logger
	destroyed bool
}

// New creates an empty project positioned at its root graph.
func New(opts ...Option) *Project {
	t := graph.NewTable()
	p := &Project{
		table:  t,
		stack:  []*graph.Scope{graph.NewScope(t)},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// ProcessorTypes returns the catalog of processor types in stable order.
func ProcessorTypes() []processor.TypeInfo {
	return processor.List()
}

// lock acquires the project mutex. On success the caller must unlock.
func (p *Project) lock() error {
	if p == nil {
		return status.Errorf(status.GotNullPointer, "nil project")
	}
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return status.Errorf(status.InvalidReference, "project was destroyed")
	}
	return nil
}

func (p *Project) current() *graph.Scope {
	return p.stack[len(p.stack)-1]
}

// Destroy invalidates every handle issued by the project. Any further call
// fails with InvalidReference.
func (p *Project) Destroy() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.table.Close()
	p.stack = nil
	p.destroyed = true
	p.logger.Debug("project destroyed")
	return nil
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// AddNode adds a node of type t to the current graph. The caller owns the
// returned handle and should release it with ReleaseHandle.
func (p *Project) AddNode(t processor.Type) (*graph.NodeHandle, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	h, err := p.current().AddNode(t)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("node added", "type", t, "id", h.ID())
	return h, nil
}

// AddNodeByName adds a node whose type is given by its catalog name.
func (p *Project) AddNodeByName(name string) (*graph.NodeHandle, error) {
	t, ok := processor.ParseType(name)
	if !ok {
		if p == nil {
			return nil, status.Errorf(status.GotNullPointer, "nil project")
		}
		return nil, status.Errorf(status.NodeTypeInvalid, "unknown processor type %q", name)
	}
	return p.AddNode(t)
}

// ReleaseHandle gives up the caller's hold on h. The node is not deleted.
// Releasing a handle twice is a no-op.
func (p *Project) ReleaseHandle(h *graph.NodeHandle) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	if h == nil {
		return status.Errorf(status.GotNullPointer, "nil node handle")
	}
	if !p.table.Owns(h) {
		return status.Errorf(status.InvalidReference, "%s belongs to another project", h)
	}
	p.table.Release(h)
	return nil
}

// NodeType reports the processor type of the node h refers to, in any
// scope of the project.
func (p *Project) NodeType(h *graph.NodeHandle) (processor.Type, error) {
	if err := p.lock(); err != nil {
		return processor.Empty, err
	}
	defer p.mu.Unlock()
	n, err := p.table.Resolve(h)
	if err != nil {
		return processor.Empty, err
	}
	return n.Type(), nil
}

// InputSatisfied reports whether every required input of a node in the
// current graph is connected.
func (p *Project) InputSatisfied(h *graph.NodeHandle) (bool, error) {
	if err := p.lock(); err != nil {
		return false, err
	}
	defer p.mu.Unlock()
	return p.current().InputSatisfied(h)
}

// DeleteNode removes a node of the current graph and every edge touching
// it. Handles into a subgraph owned by the node become invalid lazily.
func (p *Project) DeleteNode(h *graph.NodeHandle) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	if err := p.current().DeleteNode(h); err != nil {
		return err
	}
	p.logger.Debug("node deleted", "id", h.ID())
	return nil
}

// Nodes returns fresh handles for every node of the current graph.
func (p *Project) Nodes() ([]*graph.NodeHandle, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	return p.current().Nodes(), nil
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

// Connect binds the output of src to input slot of dst.
func (p *Project) Connect(src, dst *graph.NodeHandle, slot int) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().Connect(src, dst, slot)
}

// Disconnect removes the edge from src into slot of dst.
func (p *Project) Disconnect(src, dst *graph.NodeHandle, slot int) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().Disconnect(src, dst, slot)
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// SetParameter assigns a typed parameter value.
func (p *Project) SetParameter(h *graph.NodeHandle, name string, v cty.Value) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().SetParameter(h, name, v)
}

// SetParameterString parses raw with the parameter's declared type.
func (p *Project) SetParameterString(h *graph.NodeHandle, name, raw string) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().SetParameterString(h, name, raw)
}

// Parameter returns the current value of a parameter.
func (p *Project) Parameter(h *graph.NodeHandle, name string) (cty.Value, error) {
	if err := p.lock(); err != nil {
		return cty.NilVal, err
	}
	defer p.mu.Unlock()
	return p.current().Parameter(h, name)
}

// ExposeParameter publishes a node parameter on the current graph.
func (p *Project) ExposeParameter(name string, h *graph.NodeHandle, param string) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().ExposeParameter(name, h, param)
}

// SetExposedParameter assigns a parameter published on the current graph.
func (p *Project) SetExposedParameter(name string, v cty.Value) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().SetExposedParameter(name, v)
}

// ExposedParameters lists the parameters published on the current graph.
func (p *Project) ExposedParameters() ([]graph.ExposedParameter, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	return p.current().ExposedParameters(), nil
}

// ---------------------------------------------------------------------------
// Output and evaluation
// ---------------------------------------------------------------------------

// SetOutput designates the output node of the current graph.
func (p *Project) SetOutput(h *graph.NodeHandle) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.current().SetOutput(h)
}

// ClearOutput removes the output designation of the current graph.
func (p *Project) ClearOutput() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.current().ClearOutput()
	return nil
}

// Output returns a fresh handle to the current graph's output node.
func (p *Project) Output() (*graph.NodeHandle, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	return p.current().Output()
}

// Evaluate computes the designated output of the current graph.
func (p *Project) Evaluate(ctx context.Context) (*geometry.World, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	start := time.Now()
	w, err := p.current().EvaluateOutput(ctxlog.WithLogger(ctx, p.logger), p.eval)
	p.logEvaluation(start, err)
	return w, err
}

// EvaluateNode computes the node h refers to in the current graph.
func (p *Project) EvaluateNode(ctx context.Context, h *graph.NodeHandle) (*geometry.World, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	start := time.Now()
	w, err := p.current().Evaluate(ctxlog.WithLogger(ctx, p.logger), h, p.eval)
	p.logEvaluation(start, err)
	return w, err
}

func (p *Project) logEvaluation(start time.Time, err error) {
	if err != nil {
		p.logger.Warn("evaluation failed", "code", status.CodeOf(err), "error", err)
		return
	}
	p.logger.Info("evaluation finished", "duration", time.Since(start), "depth", len(p.stack)-1)
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

// EnterSubgraph makes the subgraph owned by h the current graph.
func (p *Project) EnterSubgraph(h *graph.NodeHandle) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	child, err := p.current().Subgraph(h)
	if err != nil {
		return err
	}
	p.stack = append(p.stack, child)
	return nil
}

// ExitSubgraph returns to the enclosing graph. At the root it does nothing.
func (p *Project) ExitSubgraph() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	if len(p.stack) > 1 {
		p.stack = p.stack[:len(p.stack)-1]
	}
	return nil
}

// ExitToRoot leaves every entered subgraph.
func (p *Project) ExitToRoot() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.stack = p.stack[:1]
	return nil
}

// Depth returns how many subgraphs deep the current graph is; 0 is the root.
func (p *Project) Depth() (int, error) {
	if err := p.lock(); err != nil {
		return 0, err
	}
	defer p.mu.Unlock()
	return len(p.stack) - 1, nil
}
