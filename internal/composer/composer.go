// Package composer implements the Composer node: the final structured-
// output LLM call that synthesizes the customer-facing reply from
// everything upstream has produced, per spec §4.7.
//
// Grounded on hermes/agents/composer/agent.py and prompts.py
// (original_source) for the clarification-prefix and explicit-not-found
// handling rules, and on the teacher's
// internal/application/executor/node_executors.go for the Go node idiom.
package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/llm"
	"github.com/hermesflow/hermes/internal/nodeprompt"
)

const promptTemplate = `You are the composer stage of a customer-service email pipeline.
Email ID: {{email_id}}
Detected language: {{language}}
Original subject: {{subject}}
Original message:
{{message}}

Advisor findings:
{{advisor}}

Order result:
{{order}}

Write the final customer-facing reply in the detected language, using only the products, prices, and ids
named above. Never invent a product. Items whose description is prefixed "{{clarification_marker}}" are
not yet confirmed: ask the customer to confirm them rather than treating them as fulfilled. If any advisor
answer states a product could not be found, say so plainly before suggesting alternatives.`

var requiredTools = []string{"compose_reply"}

// clarificationMarker is the prefix Stockkeeper/Fulfiller attach to an
// order line's description for a moderate-confidence match (spec §4.7).
const clarificationMarker = "[CLARIFICATION NEEDED:"

// notFoundMarker is the substring of advisor's canonical not-found answer
// (internal/advisor.notFoundTemplate), used here to detect an
// explicitly-not-found reference without importing the advisor package.
const notFoundMarker = "couldn't find a product matching"

// Node implements graph.Node for the Composer stage.
type Node struct {
	Retrier    *llm.Retrier
	Model      string
	Signature  string
	BrandVoice string
}

func New(retrier *llm.Retrier, model, signature, brandVoice string) *Node {
	return &Node{Retrier: retrier, Model: model, Signature: signature, BrandVoice: brandVoice}
}

func (n *Node) Name() domain.NodeName { return domain.NodeComposer }

func (n *Node) Run(ctx context.Context, state *domain.WorkflowState) error {
	out := &domain.ComposerOutput{EmailID: state.Email.EmailID}

	language := "English"
	subject, message := state.Email.Subject, state.Email.Message
	if state.Classifier != nil && state.Classifier.Language != "" {
		language = state.Classifier.Language
	}

	prompt := nodeprompt.Render(promptTemplate, map[string]string{
		"email_id":             state.Email.EmailID,
		"language":             language,
		"subject":              subject,
		"message":               message,
		"advisor":              summarizeAdvisor(state.Advisor),
		"order":                summarizeOrder(state.Fulfiller),
		"clarification_marker": clarificationMarker,
	})

	req := llm.Request{
		Node:          string(domain.NodeComposer),
		Model:         n.Model,
		Prompt:        prompt,
		Tools:         llm.Tools(requiredTools),
		RequiredTools: requiredTools,
	}

	parsed, err := n.Retrier.Execute(ctx, req, out)
	if err != nil {
		return err
	}
	composed, ok := parsed.(*domain.ComposerOutput)
	if !ok {
		return fmt.Errorf("composer: unexpected structured-output type %T", parsed)
	}
	composed.EmailID = state.Email.EmailID

	ensureClarificationPoints(composed, state.Fulfiller)
	ensureNotFoundPointsFirst(composed, state.Advisor)
	appendSignature(composed, n.Signature, n.BrandVoice)

	state.Composer = composed
	return nil
}

// ensureClarificationPoints guarantees that every clarification-flagged
// order line surfaces as a response point, even if the LLM's own reply
// omitted it, satisfying the "ask the customer to confirm" contract
// deterministically.
func ensureClarificationPoints(out *domain.ComposerOutput, order *domain.Order) {
	if order == nil {
		return
	}
	for _, line := range order.Lines {
		if !strings.HasPrefix(line.Description, clarificationMarker) {
			continue
		}
		point := fmt.Sprintf("Please confirm: %s (product %s) is the item you meant.",
			strings.TrimSpace(strings.TrimPrefix(line.Description, clarificationMarker)), line.ProductID)
		if !containsPoint(out.ResponsePoints, line.ProductID) {
			out.ResponsePoints = append(out.ResponsePoints, point)
		}
	}
}

// ensureNotFoundPointsFirst guarantees that an explicitly-not-found advisor
// answer is stated before any alternative-offering point, per spec §4.7.
func ensureNotFoundPointsFirst(out *domain.ComposerOutput, advisor *domain.AdvisorOutput) {
	if advisor == nil {
		return
	}
	var notFound []string
	for _, qa := range advisor.AnsweredQuestions {
		if qa.AnswerType == domain.AnswerUnavailable && strings.Contains(qa.Answer, notFoundMarker) {
			notFound = append(notFound, qa.Answer)
		}
	}
	if len(notFound) == 0 {
		return
	}
	out.ResponsePoints = append(dedupePrepend(notFound, out.ResponsePoints))
}

func dedupePrepend(front, rest []string) []string {
	seen := make(map[string]struct{}, len(front))
	out := make([]string, 0, len(front)+len(rest))
	for _, s := range front {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range rest {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func containsPoint(points []string, productID string) bool {
	for _, p := range points {
		if strings.Contains(p, productID) {
			return true
		}
	}
	return false
}

// appendSignature appends the fixed signature/brand-voice strings from
// configuration, if not already present, per spec §4.7's "fixed strings
// from configuration" rule.
func appendSignature(out *domain.ComposerOutput, signature, brandVoice string) {
	if brandVoice != "" && !strings.Contains(out.ResponseBody, brandVoice) {
		out.ResponseBody = strings.TrimRight(out.ResponseBody, "\n") + "\n\n" + brandVoice
	}
	if signature != "" && !strings.Contains(out.ResponseBody, signature) {
		out.ResponseBody = strings.TrimRight(out.ResponseBody, "\n") + "\n\n" + signature
	}
}

func summarizeAdvisor(a *domain.AdvisorOutput) string {
	if a == nil {
		return "(no inquiry questions were raised)"
	}
	var b strings.Builder
	for _, qa := range a.AnsweredQuestions {
		fmt.Fprintf(&b, "- Q: %s\n  A (%s, confidence %.2f): %s\n", qa.Question, qa.AnswerType, qa.Confidence, qa.Answer)
	}
	for _, q := range a.UnansweredQuestions {
		fmt.Fprintf(&b, "- Unanswered: %s\n", q)
	}
	return b.String()
}

func summarizeOrder(o *domain.Order) string {
	if o == nil {
		return "(no order was placed)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Overall status: %s\n", o.OverallStatus)
	for _, l := range o.Lines {
		fmt.Fprintf(&b, "- %s x%d: %s (%s), total %s\n", l.ProductID, l.Quantity, l.Description, l.Status, l.TotalPrice.StringFixed(2))
	}
	return b.String()
}
