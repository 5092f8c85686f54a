// Package errors defines the error kinds used across the pipeline, per the
// error handling design: fatal process errors, per-call retryable errors,
// per-node terminal errors, and non-error typed results.
package errors

import "fmt"

// ConfigurationError is fatal: it stops the process before any email is
// processed.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
}

func NewConfigurationError(component, message string) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: message}
}

// CatalogLoadError is fatal for the process: no email can be served without
// a catalog.
type CatalogLoadError struct {
	Source  string
	Message string
	Cause   error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("catalog load error (%s): %s", e.Source, e.Message)
}

func (e *CatalogLoadError) Unwrap() error { return e.Cause }

func NewCatalogLoadError(source, message string, cause error) *CatalogLoadError {
	return &CatalogLoadError{Source: source, Message: message, Cause: cause}
}

// LLMInvocationError is a per-call error, retried by the retry loop up to
// max_retries.
type LLMInvocationError struct {
	Node    string
	Message string
	Cause   error
}

func (e *LLMInvocationError) Error() string {
	return fmt.Sprintf("llm invocation error in %s: %s", e.Node, e.Message)
}

func (e *LLMInvocationError) Unwrap() error { return e.Cause }

func NewLLMInvocationError(node, message string, cause error) *LLMInvocationError {
	return &LLMInvocationError{Node: node, Message: message, Cause: cause}
}

// StructuredOutputValidationError is a per-call error: the LLM response did
// not conform to the expected schema, or a required tool was not invoked.
// It is retried with guidance and promoted to ToolCallError after retries.
type StructuredOutputValidationError struct {
	Node         string
	MissingTools []string
	Message      string
	Cause        error
}

func (e *StructuredOutputValidationError) Error() string {
	return fmt.Sprintf("structured output validation failed in %s: %s (missing tools: %v)",
		e.Node, e.Message, e.MissingTools)
}

func (e *StructuredOutputValidationError) Unwrap() error { return e.Cause }

// ToolCallError is terminal for the node: it is recorded into
// state.errors[node] and the node's slot is left empty.
type ToolCallError struct {
	Node         string
	MissingTools []string
	Attempts     int
	LastErr      error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool call error in %s after %d attempts: missing tools %v: %v",
		e.Node, e.Attempts, e.MissingTools, e.LastErr)
}

func (e *ToolCallError) Unwrap() error { return e.LastErr }

func NewToolCallError(node string, missingTools []string, attempts int, lastErr error) *ToolCallError {
	return &ToolCallError{Node: node, MissingTools: missingTools, Attempts: attempts, LastErr: lastErr}
}

// ProductNotFound is a typed not-found result, not a raised error. No
// package in this module constructs it; the resolver records unmatched
// mentions in its Unresolved list instead.
type ProductNotFound struct {
	Query string
}

func (e *ProductNotFound) Error() string {
	return fmt.Sprintf("product not found: %s", e.Query)
}

func NewProductNotFound(query string) *ProductNotFound {
	return &ProductNotFound{Query: query}
}

// StockUnavailable is a non-error signal: it is recorded on the order line
// as status=out_of_stock, never raised.
type StockUnavailable struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockUnavailable) Error() string {
	return fmt.Sprintf("stock unavailable for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// NodeException wraps any unexpected failure (including a recovered panic)
// inside a node body. It is caught by the graph supervisor and recorded
// into state.errors[node].
type NodeException struct {
	Node       string
	Message    string
	Cause      error
	Traceback  string
	Recovered  bool
}

func (e *NodeException) Error() string {
	return fmt.Sprintf("node exception in %s: %s", e.Node, e.Message)
}

func (e *NodeException) Unwrap() error { return e.Cause }

func NewNodeException(node, message string, cause error, traceback string, recovered bool) *NodeException {
	return &NodeException{Node: node, Message: message, Cause: cause, Traceback: traceback, Recovered: recovered}
}

// Retryable reports whether err is one of the per-call kinds the retry loop
// (§4.2) is allowed to retry.
func Retryable(err error) bool {
	switch err.(type) {
	case *LLMInvocationError, *StructuredOutputValidationError:
		return true
	default:
		return false
	}
}
