package domain

import (
	"sync"

	"github.com/google/uuid"
)

// ErrorRecord is what the graph supervisor writes into state.Errors when a
// node fails; the node's own slot is left empty.
type ErrorRecord struct {
	Node    NodeName
	Message string
	Kind    string
	Details map[string]any
}

// WorkflowState accumulates the output of each node for a single email.
// Every per-node slot is write-once: a node's handler, and only that
// node's handler, ever assigns its own slot. The zero value is a state
// where no node has run yet.
//
// Concurrency: Fulfiller and Advisor may write their slots concurrently
// when both run (the graph's only fan-out). WorkflowState's own mutex
// guards Errors, which both branches may write to independently; the
// merge is disjoint (each node writes at most its own key) and therefore
// associative regardless of interleaving.
type WorkflowState struct {
	// RunID identifies this one execution of the graph for a given email,
	// for log correlation across the node supervisor and the batch driver
	// (teacher idiom: github.com/google/uuid.NewString() workflow/execution
	// ids, e.g. relationship_builder.go).
	RunID       string
	Email       CustomerEmail
	Classifier  *EmailAnalysis
	Stockkeeper *StockkeeperOutput
	Fulfiller   *Order
	Advisor     *AdvisorOutput
	Composer    *ComposerOutput

	mu     sync.Mutex
	Errors map[NodeName]ErrorRecord
}

// NewWorkflowState constructs a WorkflowState for one email.
func NewWorkflowState(email CustomerEmail) *WorkflowState {
	return &WorkflowState{
		RunID:  uuid.NewString(),
		Email:  email,
		Errors: make(map[NodeName]ErrorRecord),
	}
}

// RecordError writes an ErrorRecord for node under the state's mutex. Safe
// to call concurrently from the Fulfiller/Advisor fan-out.
func (s *WorkflowState) RecordError(node NodeName, rec ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors[node] = rec
}

// ErrorFor returns the ErrorRecord for node, if any.
func (s *WorkflowState) ErrorFor(node NodeName) (ErrorRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Errors[node]
	return rec, ok
}

// Failed reports whether node has a recorded error (and therefore an empty
// slot).
func (s *WorkflowState) Failed(node NodeName) bool {
	_, ok := s.ErrorFor(node)
	return ok
}
