package project

import (
	"log/slog"
	"time"

	"github.com/chazu/hardeen/pkg/graph"
)

// Option defines a functional option for configuring a Project.
type Option func(*Project)

// WithLogger configures the structured logger used for lifecycle and
// evaluation records.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Project) {
		p.logger = logger
	}
}

// WithWorkers bounds concurrent node computations per evaluation pass.
func WithWorkers(n int) Option {
	return func(p *Project) {
		p.eval.Workers = n
	}
}

// WithScriptTimeout bounds GroupPoints condition scripts.
func WithScriptTimeout(d time.Duration) Option {
	return func(p *Project) {
		p.eval.ScriptTimeout = d
	}
}

// WithObserver receives per-node evaluation timings.
func WithObserver(o graph.Observer) Option {
	return func(p *Project) {
		p.eval.Observer = o
	}
}
