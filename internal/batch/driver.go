// Package batch runs the per-email graph across a bounded pool of
// concurrent workers, the cross-email analogue of the teacher's
// WorkflowEngine.executeWave semaphore/WaitGroup idiom
// (internal/application/executor/engine.go), generalized from one wave of
// nodes to the whole email set.
package batch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/graph"
)

// DefaultConcurrency is N in "a bounded pool of N concurrent workflow
// executions is permitted (default N=2)".
const DefaultConcurrency = 2

// Result pairs one email's input with its terminal WorkflowState.
type Result struct {
	Email domain.CustomerEmail
	State *domain.WorkflowState
}

// Driver runs the graph.Runner over a batch of emails with bounded
// cross-email concurrency.
type Driver struct {
	Runner        *graph.Runner
	Concurrency   int
	StopOnError   bool
	Limit         int
	OnlyEmailIDs  map[string]struct{}
}

// New constructs a Driver with the default concurrency and no filtering.
func New(runner *graph.Runner) *Driver {
	return &Driver{Runner: runner, Concurrency: DefaultConcurrency}
}

// Aborted reports whether d's configured stop-on-error condition fired
// during the most recent Run: at least one email produced a node error.
type Aborted struct {
	FailedEmailIDs []string
}

func (a *Aborted) Error() string {
	return "batch: processing aborted after per-email node errors under stop-on-error"
}

// Run executes the graph for every selected email, in input order. It
// respects Limit (0 = unlimited) and OnlyEmailIDs (nil/empty = all emails)
// before launching workers, and honors ctx cancellation between
// dispatches. When StopOnError is set, a node failure on any email stops
// further emails from being *enqueued*, but every already-running email is
// allowed to finish (spec's "lets in-flight emails finish" rule); Run then
// returns a non-nil *Aborted error alongside the partial results.
func (d *Driver) Run(ctx context.Context, emails []domain.CustomerEmail) ([]Result, error) {
	selected := d.selectEmails(emails)

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > len(selected) {
		concurrency = len(selected)
	}
	if concurrency == 0 {
		return nil, nil
	}

	results := make([]Result, len(selected))
	semaphore := make(chan struct{}, concurrency)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		aborted  bool
		failedIDs []string
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, email := range selected {
		mu.Lock()
		stop := d.StopOnError && aborted
		mu.Unlock()
		if stop || runCtx.Err() != nil {
			break
		}

		select {
		case <-runCtx.Done():
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, e domain.CustomerEmail) {
			defer wg.Done()
			defer func() { <-semaphore }()

			state := d.Runner.Run(runCtx, e)
			results[idx] = Result{Email: e, State: state}

			if len(state.Errors) > 0 {
				log.Warn().
					Str("run_id", state.RunID).
					Str("email_id", e.EmailID).
					Int("failed_nodes", len(state.Errors)).
					Msg("email completed with node errors")
				mu.Lock()
				failedIDs = append(failedIDs, e.EmailID)
				if d.StopOnError {
					aborted = true
				}
				mu.Unlock()
			}
		}(i, email)
	}

	wg.Wait()

	// Emails never launched (stop-on-error or context cancellation broke
	// the dispatch loop early) leave their slot as a zero Result with a
	// nil State; drop them rather than hand the report writer a nil
	// *domain.WorkflowState to dereference.
	launched := results[:0]
	for _, r := range results {
		if r.State != nil {
			launched = append(launched, r)
		}
	}
	results = launched

	if d.StopOnError && aborted {
		return results, &Aborted{FailedEmailIDs: failedIDs}
	}
	return results, nil
}

// selectEmails applies OnlyEmailIDs filtering then Limit, in that order,
// preserving input order.
func (d *Driver) selectEmails(emails []domain.CustomerEmail) []domain.CustomerEmail {
	filtered := emails
	if len(d.OnlyEmailIDs) > 0 {
		filtered = make([]domain.CustomerEmail, 0, len(emails))
		for _, e := range emails {
			if _, ok := d.OnlyEmailIDs[e.EmailID]; ok {
				filtered = append(filtered, e)
			}
		}
	}
	if d.Limit > 0 && len(filtered) > d.Limit {
		filtered = filtered[:d.Limit]
	}
	return filtered
}
