package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsReturnsOneDefinitionPerKnownName(t *testing.T) {
	tools := Tools([]string{"extract_segments", "compose_reply"})

	require.Len(t, tools, 2)
	assert.Equal(t, "extract_segments", tools[0].Function.Name)
	assert.Equal(t, "compose_reply", tools[1].Function.Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tools[1].Function.Parameters.(json.RawMessage), &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestToolsSkipsUnregisteredNames(t *testing.T) {
	tools := Tools([]string{"not_a_real_tool"})
	assert.Empty(t, tools)
}
