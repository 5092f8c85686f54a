package nodeprompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutesKnownVars(t *testing.T) {
	out := Render("Hello {{name}}, you ordered {{qty}} items.", map[string]string{"name": "Ada", "qty": "3"})
	assert.Equal(t, "Hello Ada, you ordered 3 items.", out)
}

func TestRenderLeavesUnknownPlaceholdersUntouched(t *testing.T) {
	out := Render("Hello {{name}}, {{missing}}.", map[string]string{"name": "Ada"})
	assert.Equal(t, "Hello Ada, {{missing}}.", out)
}
