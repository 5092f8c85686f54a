package llm

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// toolSchemas holds the JSON Schema parameters for every tool a node can
// require, keyed by tool name. Definitions are intentionally loose (the
// structured fields a node actually validates live in the domain package;
// these schemas exist to bind the call, not to replace Go-side validation),
// following the same encode-as-you-bind shape as
// goadesign-goa-ai/features/model/openai/client.go's encodeTools.
var toolSchemas = map[string]map[string]any{
	"extract_segments": {
		"type": "object",
		"properties": map[string]any{
			"segments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"kind":              map[string]any{"type": "string", "enum": []string{"order", "inquiry", "personal_statement"}},
						"main_sentence":     map[string]any{"type": "string"},
						"related_sentences": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
			"intent": map[string]any{"type": "string", "enum": []string{"order_request", "product_inquiry"}},
		},
		"required": []string{"segments", "intent"},
	},
	"extract_product_mentions": {
		"type": "object",
		"properties": map[string]any{
			"product_id":          map[string]any{"type": "string"},
			"product_name":        map[string]any{"type": "string"},
			"product_description": map[string]any{"type": "string"},
			"product_category":    map[string]any{"type": "string"},
			"product_type":        map[string]any{"type": "string"},
			"quantity":            map[string]any{"type": "integer"},
		},
	},
	"draft_order_lines": {
		"type": "object",
		"properties": map[string]any{
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"product_id": map[string]any{"type": "string"},
						"quantity":   map[string]any{"type": "integer"},
					},
					"required": []string{"product_id", "quantity"},
				},
			},
		},
		"required": []string{"lines"},
	},
	"answer_questions": {
		"type": "object",
		"properties": map[string]any{
			"answered_questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":              map[string]any{"type": "string"},
						"answer":                map[string]any{"type": "string"},
						"answer_type":           map[string]any{"type": "string", "enum": []string{"factual", "speculative", "unavailable"}},
						"reference_product_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"confidence":            map[string]any{"type": "number"},
					},
				},
			},
		},
		"required": []string{"answered_questions"},
	},
	"compose_reply": {
		"type": "object",
		"properties": map[string]any{
			"response_body": map[string]any{"type": "string"},
		},
		"required": []string{"response_body"},
	},
}

// Tools looks up the openai.Tool definition for each name, skipping any
// name without a registered schema. Returned in the same order as names.
func Tools(names []string) []openai.Tool {
	tools := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		schema, ok := toolSchemas[name]
		if !ok {
			continue
		}
		params, err := json.Marshal(schema)
		if err != nil {
			continue
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:       name,
				Parameters: json.RawMessage(params),
			},
		})
	}
	return tools
}
