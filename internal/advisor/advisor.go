// Package advisor implements the Advisor node: one structured-output LLM
// call that answers the questions raised in inquiry segments using only
// the stockkeeper's resolved candidates, per spec §4.6.
//
// Grounded on hermes/agents/advisor/agent.py (original_source) for the
// answer-from-candidates-only contract, and on the teacher's
// internal/application/executor/node_executors.go for the Go node idiom.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/llm"
	"github.com/hermesflow/hermes/internal/nodeprompt"
)

const promptTemplate = `You are the advisor stage of a customer-service email pipeline.
Email ID: {{email_id}}

Customer questions (from inquiry segments):
{{questions}}

Resolved product candidates available to answer from (never invent a product outside this list):
{{resolved_products}}

Answer each question using only the candidates above or general catalog facts implied by them. Never
fabricate a product. Classify every answer's answer_type as factual, speculative, or unavailable.`

var requiredTools = []string{"answer_questions"}

// notFoundTemplate is the canonical answer for a product id the stockkeeper
// already confirmed has no catalog match (spec §4.6: "never looked up
// again").
const notFoundTemplate = "We couldn't find a product matching %q in our catalog."

// Node implements graph.Node for the Advisor stage.
type Node struct {
	Retrier *llm.Retrier
	Model   string
}

func New(retrier *llm.Retrier, model string) *Node {
	return &Node{Retrier: retrier, Model: model}
}

func (n *Node) Name() domain.NodeName { return domain.NodeAdvisor }

func (n *Node) Run(ctx context.Context, state *domain.WorkflowState) error {
	out := &domain.AdvisorOutput{EmailID: state.Email.EmailID}

	questions := inquiryQuestions(state.Classifier)
	missedIDs := missedProductIDs(state.Stockkeeper)

	if len(questions) == 0 {
		applyExactIDMisses(out, missedIDs)
		state.Advisor = out
		return nil
	}

	inquiryMentions := inquirySegmentMentions(state.Classifier)
	resolved := resolvedForMentions(state.Stockkeeper, inquiryMentions)

	prompt := nodeprompt.Render(promptTemplate, map[string]string{
		"email_id":          state.Email.EmailID,
		"questions":         strings.Join(questions, "\n"),
		"resolved_products": summarizeResolved(resolved),
	})

	req := llm.Request{
		Node:          string(domain.NodeAdvisor),
		Model:         n.Model,
		Prompt:        prompt,
		Tools:         llm.Tools(requiredTools),
		RequiredTools: requiredTools,
	}

	parsed, err := n.Retrier.Execute(ctx, req, out)
	if err != nil {
		return err
	}
	answered, ok := parsed.(*domain.AdvisorOutput)
	if !ok {
		return fmt.Errorf("advisor: unexpected structured-output type %T", parsed)
	}
	answered.EmailID = state.Email.EmailID

	applyExactIDMisses(answered, missedIDs)

	state.Advisor = answered
	return nil
}

// applyExactIDMisses overrides any answer, primary, or related product that
// references one of the stockkeeper's confirmed-missing ids with the
// canonical not-found answer, and records it in UnsuccessfulReferences,
// per spec §4.6's "never looked up again" rule.
func applyExactIDMisses(out *domain.AdvisorOutput, missedIDs map[string]string) {
	if len(missedIDs) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(out.UnsuccessfulReferences))
	for _, id := range out.UnsuccessfulReferences {
		seen[catalog.NormalizeID(id)] = struct{}{}
	}

	for i := range out.AnsweredQuestions {
		qa := &out.AnsweredQuestions[i]
		for _, refID := range qa.ReferenceProductIDs {
			normalized := catalog.NormalizeID(refID)
			original, missed := missedIDs[normalized]
			if !missed {
				continue
			}
			qa.Answer = fmt.Sprintf(notFoundTemplate, original)
			qa.AnswerType = domain.AnswerUnavailable
			qa.Confidence = 0
			if _, already := seen[normalized]; !already {
				out.UnsuccessfulReferences = append(out.UnsuccessfulReferences, original)
				seen[normalized] = struct{}{}
			}
		}
	}

	out.PrimaryProducts = dropMissed(out.PrimaryProducts, missedIDs)
	out.RelatedProducts = dropMissed(out.RelatedProducts, missedIDs)

	for normalized, original := range missedIDs {
		if _, already := seen[normalized]; already {
			continue
		}
		out.UnsuccessfulReferences = append(out.UnsuccessfulReferences, original)
		seen[normalized] = struct{}{}
	}
}

func dropMissed(ids []string, missedIDs map[string]string) []string {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if _, missed := missedIDs[catalog.NormalizeID(id)]; missed {
			continue
		}
		out = append(out, id)
	}
	return out
}

// missedProductIDs returns the stockkeeper's exact_id_misses keyed by
// normalized id, with the original (as the customer typed it) as the value.
func missedProductIDs(stockkeeper *domain.StockkeeperOutput) map[string]string {
	out := make(map[string]string)
	if stockkeeper == nil {
		return out
	}
	for _, m := range stockkeeper.ExactIDMisses {
		if m.ProductID == "" {
			continue
		}
		out[catalog.NormalizeID(m.ProductID)] = m.ProductID
	}
	return out
}

// inquiryQuestions extracts one question string per inquiry-kind segment,
// using the segment's main sentence (the closest thing to an extracted
// question in the data model) and falling back to its related sentences.
func inquiryQuestions(analysis *domain.EmailAnalysis) []string {
	if analysis == nil {
		return nil
	}
	var out []string
	for _, seg := range analysis.Segments {
		if seg.Kind != domain.SegmentInquiry {
			continue
		}
		q := strings.TrimSpace(seg.MainSentence)
		if q == "" {
			q = strings.TrimSpace(strings.Join(seg.RelatedSentences, " "))
		}
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}

func inquirySegmentMentions(analysis *domain.EmailAnalysis) []domain.ProductMention {
	if analysis == nil {
		return nil
	}
	var out []domain.ProductMention
	for _, seg := range analysis.Segments {
		if seg.Kind != domain.SegmentInquiry {
			continue
		}
		out = append(out, seg.Mentions...)
	}
	return out
}

func resolvedForMentions(stockkeeper *domain.StockkeeperOutput, mentions []domain.ProductMention) []domain.MentionCandidates {
	if stockkeeper == nil {
		return nil
	}
	wanted := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		wanted[mentionKey(m)] = struct{}{}
	}

	var out []domain.MentionCandidates
	for _, mc := range stockkeeper.Candidates {
		if _, ok := wanted[mentionKey(mc.Mention)]; ok {
			out = append(out, mc)
		}
	}
	return out
}

func mentionKey(m domain.ProductMention) string {
	if m.ProductID != "" {
		return "id:" + catalog.NormalizeID(m.ProductID)
	}
	return "name:" + strings.ToLower(strings.TrimSpace(m.ProductName))
}

func summarizeResolved(resolved []domain.MentionCandidates) string {
	lines := make([]string, 0, len(resolved))
	for _, mc := range resolved {
		p, ok := mc.FirstCandidate()
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", p.ProductID, p.Name, mc.Candidates[0].Metadata.String()))
	}
	return strings.Join(lines, "\n")
}
