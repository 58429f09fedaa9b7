// Package engine provides the Lisp authoring surface for hardeen. It wraps
// zygomys in a sandboxed environment and builds a project.Project from user
// source code.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/hardeen/pkg/ctxlog"
	"github.com/chazu/hardeen/pkg/project"
	"github.com/chazu/hardeen/pkg/script"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError = script.EvalError

// Engine wraps the zygomys interpreter. It is safe for concurrent use; each
// call to Evaluate creates a fresh sandbox and a fresh project.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	opts       []project.Option
}

// NewEngine creates an Engine whose projects are built with opts.
func NewEngine(opts ...project.Option) *Engine {
	return &Engine{opts: opts}
}

// Evaluate runs source and returns the project it built.
//
// Return semantics:
//   - On success: returns project + nil errors + nil error
//   - On parse/eval failure: returns nil project + eval errors + nil error
//   - On fatal failure (timeout, cancellation, panic): returns nil + nil + error
func (e *Engine) Evaluate(ctx context.Context, source string) (*project.Project, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("engine: panic during evaluation: %v", r)}
			}
		}()

		p, evalErrs, err := e.evaluate(ctx, source)
		ch <- evalResult{project: p, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ctx, ch, gen, &e.mu, &e.generation)
}

func (e *Engine) evaluate(ctx context.Context, source string) (*project.Project, []EvalError, error) {
	p := project.New(e.opts...)

	// Empty source is a valid program that produces an empty project.
	if strings.TrimSpace(source) == "" {
		return p, nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := newBuilder(p)
	defer b.releaseAll()
	b.register(env)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		_ = p.Destroy()
		return nil, script.ParseError(err), nil
	}
	if _, err := env.Run(); err != nil {
		_ = p.Destroy()
		return nil, script.ParseError(err), nil
	}
	// A script may end inside a subgraph; the project is handed out at the root.
	if err := p.ExitToRoot(); err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("script evaluated", "nodes", b.created)
	return p, nil, nil
}
