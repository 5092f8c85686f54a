package llm

import (
	"context"

	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
)

// NullClient is the Client the batch CLI falls back to when no fixture
// directory is configured: every call fails with a retryable
// LLMInvocationError, so the retry loop exhausts and every node produces a
// ToolCallError. This exercises the spec's graceful-degradation path
// end to end (§4.1's error containment, §7's "Composer always attempts to
// produce a reply" even when every upstream node failed) without
// requiring a real provider or a fixture set to be present.
type NullClient struct{}

// Complete implements Client by always returning a retryable invocation
// error.
func (NullClient) Complete(_ context.Context, req Request, _ any) Result {
	return Result{Err: hermeserrors.NewLLMInvocationError(req.Node,
		"no LLM backend configured: pass --llm-fixtures-dir or implement llm.Client for a real provider", nil)}
}
