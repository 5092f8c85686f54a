// Package llm defines the structured-output LLM contract shared by every
// pipeline node, plus the retry loop that repairs malformed responses.
// The contract is intentionally external/test-double only: the system
// depends on the Client interface, not on a concrete provider, mirroring
// the vector index and embedding service's status as named external
// collaborators.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Request is one structured-output call: a rendered prompt plus the bound
// tool set and the tools a valid response must have invoked.
type Request struct {
	Node          string
	Model         string
	Prompt        string
	Tools         []openai.Tool
	RequiredTools []string
	Temperature   float32
}

// Result is the sum type a Client call resolves to: exactly one of Parsed,
// Raw, or Err is populated, eliminating the runtime type tests the
// original dynamic-language client performed on the response shape.
type Result struct {
	Parsed    any
	Raw       []byte
	Err       error
	ToolCalls []string
}

// IsParsed reports whether the result carries a schema-valid value.
func (r Result) IsParsed() bool { return r.Err == nil && r.Parsed != nil }

// Client is the structured-output contract every node invokes through the
// retry loop (Retrier). target is a pointer to the struct the caller wants
// populated; Complete unmarshals into it on success.
type Client interface {
	Complete(ctx context.Context, req Request, target any) Result
}
