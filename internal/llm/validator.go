package llm

import "strings"

// ToolCallValidator checks that a Result satisfies a request's required
// tool set, and extracts which tools are missing when it doesn't.
// The primary check is typed set membership over Result.ToolCalls; the
// string-scanning fallback only runs when the provider's error didn't
// carry a structured tool-call log, per the missing-tool extraction
// heuristic.
type ToolCallValidator struct {
	// KnownTools is the full universe of tool names the scanning fallback
	// is allowed to recognize in serialized error text.
	KnownTools []string
}

// NewToolCallValidator constructs a validator scoped to knownTools.
func NewToolCallValidator(knownTools []string) *ToolCallValidator {
	return &ToolCallValidator{KnownTools: knownTools}
}

// Missing returns the subset of required that does not appear in
// res.ToolCalls. When res.Err is set, that subset is further narrowed by
// the scanning fallback to the known tools that res.Err's message names.
func (v *ToolCallValidator) Missing(res Result, required []string) []string {
	if len(required) == 0 {
		return nil
	}

	called := make(map[string]struct{}, len(res.ToolCalls))
	for _, t := range res.ToolCalls {
		called[t] = struct{}{}
	}

	var missing []string
	for _, want := range required {
		if _, ok := called[want]; ok {
			continue
		}
		missing = append(missing, want)
	}

	if len(missing) == 0 || res.Err == nil {
		return missing
	}

	// Fallback: the provider's error may still name the tool it expected
	// even though ToolCalls wasn't populated (e.g. a schema-validation
	// error that never reached the tool-calling stage). Only keep a
	// candidate the scan actually confirms in the error text; drop
	// anything it can't confirm rather than assume it is still missing.
	errText := strings.ToLower(res.Err.Error())
	filtered := missing[:0]
	for _, want := range missing {
		if v.isKnown(want) && strings.Contains(errText, strings.ToLower(want)) {
			filtered = append(filtered, want)
		}
	}
	return filtered
}

func (v *ToolCallValidator) isKnown(name string) bool {
	for _, t := range v.KnownTools {
		if t == name {
			return true
		}
	}
	return false
}

// ExtractMissingFromError applies the scanning heuristic directly to an
// arbitrary error's message: it scans for any of KnownTools appearing in
// the text, and — for schema-required-field errors that mention one of
// agentDefaultTools' keys — attributes the failure to that agent's
// default tool set (spec'd missing-tool extraction heuristic).
func (v *ToolCallValidator) ExtractMissingFromError(err error, agentDefaultTools map[string][]string) []string {
	if err == nil {
		return nil
	}
	text := strings.ToLower(err.Error())

	var found []string
	for _, tool := range v.KnownTools {
		if strings.Contains(text, strings.ToLower(tool)) {
			found = append(found, tool)
		}
	}
	if len(found) > 0 {
		return dedupe(found)
	}

	for agent, tools := range agentDefaultTools {
		if strings.Contains(text, strings.ToLower(agent)) {
			return tools
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
