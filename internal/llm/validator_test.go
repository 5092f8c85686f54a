package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolCallValidatorMissingReturnsEmptyWhenAllCalled(t *testing.T) {
	v := NewToolCallValidator([]string{"extract_product", "resolve_category"})
	res := Result{ToolCalls: []string{"extract_product", "resolve_category"}}

	missing := v.Missing(res, []string{"extract_product", "resolve_category"})

	assert.Empty(t, missing)
}

func TestToolCallValidatorMissingReportsUncalledTools(t *testing.T) {
	v := NewToolCallValidator([]string{"extract_product", "resolve_category"})
	res := Result{ToolCalls: []string{"extract_product"}}

	missing := v.Missing(res, []string{"extract_product", "resolve_category"})

	assert.Equal(t, []string{"resolve_category"}, missing)
}

func TestToolCallValidatorExtractMissingFromErrorScansKnownTools(t *testing.T) {
	v := NewToolCallValidator([]string{"extract_product", "resolve_category"})
	err := errors.New("schema validation failed: field resolve_category is required")

	missing := v.ExtractMissingFromError(err, nil)

	assert.Equal(t, []string{"resolve_category"}, missing)
}

func TestToolCallValidatorExtractMissingFromErrorFallsBackToAgentDefaults(t *testing.T) {
	v := NewToolCallValidator([]string{"extract_product"})
	err := errors.New("downstream agent stockkeeper reported a required-field error")

	missing := v.ExtractMissingFromError(err, map[string][]string{
		"stockkeeper": {"resolve_product_mention", "search_products"},
	})

	assert.Equal(t, []string{"resolve_product_mention", "search_products"}, missing)
}
