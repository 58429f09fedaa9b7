package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/hardeen/pkg/project"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

type evalResult struct {
	project *project.Project
	errors  []EvalError
	err     error
}

// waitWithTimeout waits for a result from ch, failing after EvalTimeout or
// when ctx is done. A result whose generation is no longer current is
// discarded.
//
// On timeout the goroutine may still be running; the project it builds is
// never handed out.
func waitWithTimeout(
	ctx context.Context,
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*project.Project, []EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			if res.project != nil {
				_ = res.project.Destroy()
			}
			return nil, nil, fmt.Errorf("engine: evaluation superseded by newer request")
		}
		return res.project, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("engine: evaluation timed out after %s", EvalTimeout)

	case <-ctx.Done():
		return nil, nil, fmt.Errorf("engine: %w", ctx.Err())
	}
}
