// Package nodeprompt renders the `{{variable}}`-style prompt templates
// shared by every LLM node, following the teacher's
// internal/application/executor/template.go simpleVarPattern substitution
// rather than pulling in a templating engine for what is, in every node
// here, single-pass flat substitution.
package nodeprompt

import "regexp"

var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes every {{key}} occurrence in tmpl with vars[key],
// leaving unmatched placeholders untouched (non-strict, matching the
// teacher's default TemplateConfig.StrictMode=false behavior).
func Render(tmpl string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}
