// Package graph wires the five pipeline nodes into the fixed topology:
// Classifier -> Stockkeeper -> route(intent) -> {Fulfiller, Advisor} ->
// Composer. The topology itself is fixed and spec'd, so unlike the
// teacher's generic WorkflowGraph (arbitrary nodes/edges driven by
// user-authored config and expr-lang conditions), Runner is a small typed
// state machine; expr-lang is not needed here because the routing
// predicate never varies at runtime.
//
// Grounded on the teacher's internal/application/executor/engine.go
// (plan -> execute -> finalize phases), join.go (fan-in bookkeeping), and
// graph.go's entry/exit-node and error-containment idioms.
package graph

import (
	"context"

	"github.com/hermesflow/hermes/internal/domain"
)

// Node is one pipeline stage. Run must write exactly the node's own slot
// on state (or record its own error) and must never mutate another node's
// slot, so that fan-out branches merge associatively (spec §4.1).
type Node interface {
	Name() domain.NodeName
	Run(ctx context.Context, state *domain.WorkflowState) error
}

// NodeFunc adapts a plain function to Node.
type NodeFunc struct {
	NodeName domain.NodeName
	Fn       func(ctx context.Context, state *domain.WorkflowState) error
}

func (f NodeFunc) Name() domain.NodeName { return f.NodeName }

func (f NodeFunc) Run(ctx context.Context, state *domain.WorkflowState) error {
	return f.Fn(ctx, state)
}
