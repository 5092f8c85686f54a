// Package classifier implements the Classifier node: one structured-output
// LLM call that segments an email, labels its intent, and extracts product
// mentions, per spec §4.5.
//
// Grounded on hermes/agents/classifier/agent.py (original_source) for the
// single-call contract, and on the teacher's
// internal/application/executor/node_executors.go's
// OpenAICompletionExecutor for the Go node-executor shape (build prompt,
// invoke through the retry loop, assign the node's own state slot).
package classifier

import (
	"context"
	"fmt"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/llm"
	"github.com/hermesflow/hermes/internal/nodeprompt"
)

const promptTemplate = `You are the classifier stage of a customer-service email pipeline.
Email ID: {{email_id}}
Subject: {{subject}}
Message:
{{message}}

Segment the email into order, inquiry, and personal_statement portions. Label the overall intent
as order_request or product_inquiry. Extract every product mention with as much of
product_id/product_name/product_description/product_category/product_type/quantity as the text supports.
Return customer_pii as a structured mapping, never a free string. product_name must omit generic
category words unless they are part of a branded name (e.g. "Alpine Explorer backpack" -> name="Alpine Explorer", type="backpack").`

var requiredTools = []string{"extract_segments", "extract_product_mentions"}

// Node implements graph.Node for the Classifier stage.
type Node struct {
	Retrier *llm.Retrier
	Model   string
}

func New(retrier *llm.Retrier, model string) *Node {
	return &Node{Retrier: retrier, Model: model}
}

func (n *Node) Name() domain.NodeName { return domain.NodeClassifier }

// Run invokes the structured-output retry loop and, on success, performs
// the classifier's own post-processing: mention consolidation and
// product-id confidence adjustment, both of which are deterministic
// transforms over the LLM's raw output rather than something an LLM call
// should be trusted to get right on its own.
func (n *Node) Run(ctx context.Context, state *domain.WorkflowState) error {
	prompt := nodeprompt.Render(promptTemplate, map[string]string{
		"email_id": state.Email.EmailID,
		"subject":  state.Email.Subject,
		"message":  state.Email.Message,
	})

	req := llm.Request{
		Node:          string(domain.NodeClassifier),
		Model:         n.Model,
		Prompt:        prompt,
		Tools:         llm.Tools(requiredTools),
		RequiredTools: requiredTools,
	}

	var out domain.EmailAnalysis
	parsed, err := n.Retrier.Execute(ctx, req, &out)
	if err != nil {
		return err
	}

	analysis, ok := parsed.(*domain.EmailAnalysis)
	if !ok {
		return fmt.Errorf("classifier: unexpected structured-output type %T", parsed)
	}

	analysis.EmailID = state.Email.EmailID
	consolidateMentions(analysis)
	adjustIDConfidence(analysis)

	if err := analysis.Validate(); err != nil {
		return err
	}

	state.Classifier = analysis
	return nil
}

// adjustIDConfidence lowers the confidence of any product_id mention whose
// normalized form doesn't match the strict catalog id pattern, per spec
// §4.5's extraction rule: the token is still extracted as provided, just
// with lower confidence.
func adjustIDConfidence(analysis *domain.EmailAnalysis) {
	const deviatingIDConfidence = 0.5

	for si := range analysis.Segments {
		seg := &analysis.Segments[si]
		for mi := range seg.Mentions {
			m := &seg.Mentions[mi]
			if m.ProductID == "" {
				continue
			}
			if !catalog.ProductIDPattern.MatchString(catalog.NormalizeID(m.ProductID)) {
				if m.Confidence == 0 || m.Confidence > deviatingIDConfidence {
					m.Confidence = deviatingIDConfidence
				}
			} else if m.Confidence == 0 {
				m.Confidence = 1.0
			}
		}
	}
}
