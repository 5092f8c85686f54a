package graph

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/hermesflow/hermes/internal/domain"
	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
)

// supervise runs node under error and panic containment: any failure,
// recovered or returned, is recorded into state.Errors[node] and the
// node's own slot is simply never written, per spec §4.1's error
// containment rule. supervise itself never returns an error to the
// caller — the graph always proceeds to the next stage.
//
// Logging follows the teacher's github.com/rs/zerolog/log global-logger
// idiom (internal/application/executor/node_executors.go's log.Debug()),
// with run_id/email_id/node fields for per-node correlation.
func supervise(ctx context.Context, n Node, state *domain.WorkflowState) {
	logger := log.With().
		Str("run_id", state.RunID).
		Str("email_id", state.Email.EmailID).
		Str("node", string(n.Name())).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("node panicked")
			state.RecordError(n.Name(), domain.ErrorRecord{
				Node:    n.Name(),
				Message: fmt.Sprintf("panic: %v", r),
				Kind:    "panic",
				Details: map[string]any{"traceback": string(debug.Stack())},
			})
		}
	}()

	logger.Debug().Msg("node starting")
	if err := n.Run(ctx, state); err != nil {
		logger.Error().Err(err).Msg("node failed")
		state.RecordError(n.Name(), toErrorRecord(n.Name(), err))
		return
	}
	logger.Debug().Msg("node completed")
}

func toErrorRecord(node domain.NodeName, err error) domain.ErrorRecord {
	kind := "error"
	details := map[string]any{}

	switch e := err.(type) {
	case *hermeserrors.ToolCallError:
		kind = "tool_call_error"
		details["missing_tools"] = e.MissingTools
		details["attempts"] = e.Attempts
	case *hermeserrors.NodeException:
		kind = "node_exception"
		details["recovered"] = e.Recovered
		if e.Traceback != "" {
			details["traceback"] = e.Traceback
		}
	}

	return domain.ErrorRecord{Node: node, Message: err.Error(), Kind: kind, Details: details}
}
