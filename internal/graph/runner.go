package graph

import (
	"context"
	"sync"

	"github.com/hermesflow/hermes/internal/domain"
)

// Nodes holds the five pipeline stages the Runner wires together.
type Nodes struct {
	Classifier  Node
	Stockkeeper Node
	Fulfiller   Node
	Advisor     Node
	Composer    Node
}

// Runner executes the fixed five-node topology for one email at a time.
// A Runner is stateless and safe to reuse (and share) across concurrent
// Run calls, since each call constructs its own WorkflowState.
type Runner struct {
	nodes Nodes
}

// NewRunner constructs a Runner over the given node implementations.
func NewRunner(nodes Nodes) *Runner {
	return &Runner{nodes: nodes}
}

// Run executes START -> Classifier -> Stockkeeper -> route -> {Fulfiller,
// Advisor} -> Composer -> END for one email, returning the terminal
// WorkflowState. Run never returns an error itself: every node failure is
// contained into state.Errors (spec §4.1), and Composer always runs.
func (r *Runner) Run(ctx context.Context, email domain.CustomerEmail) *domain.WorkflowState {
	state := domain.NewWorkflowState(email)

	supervise(ctx, r.nodes.Classifier, state)
	supervise(ctx, r.nodes.Stockkeeper, state)

	branch := route(state)
	switch branch {
	case branchAdvisorOnly:
		supervise(ctx, r.nodes.Advisor, state)
	case branchFulfillerOnly:
		supervise(ctx, r.nodes.Fulfiller, state)
	case branchBoth:
		r.runFanOut(ctx, state)
	case branchNone:
		// Neither an order nor an inquiry segment: nothing for Fulfiller
		// or Advisor to act on. Composer still runs and must degrade
		// gracefully with no upstream product data.
	}

	supervise(ctx, r.nodes.Composer, state)
	return state
}

// runFanOut runs Fulfiller and Advisor concurrently. Each writes only its
// own state slot (or its own errors entry), so the two goroutines never
// contend on shared state beyond WorkflowState's own mutex-guarded
// RecordError, and the join is simply waiting for both to return (spec
// §4.1 fan-in / determinism: either interleaving is equivalent).
func (r *Runner) runFanOut(ctx context.Context, state *domain.WorkflowState) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		supervise(ctx, r.nodes.Fulfiller, state)
	}()
	go func() {
		defer wg.Done()
		supervise(ctx, r.nodes.Advisor, state)
	}()

	wg.Wait()
}
