// Package fulfiller implements the Fulfiller node: one structured-output
// LLM call drafts order lines from the order-segment mentions and their
// resolved candidates, then deterministic post-processing reserves stock,
// attaches alternatives to out-of-stock lines, and applies promotions, per
// spec §4.3.
//
// Grounded on hermes/agents/fulfiller/agent.py (original_source) for the
// draft-then-reconcile shape, and on the teacher's
// internal/application/executor/node_executors.go for the Go node idiom.
package fulfiller

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/llm"
	"github.com/hermesflow/hermes/internal/nodeprompt"
	"github.com/hermesflow/hermes/internal/promotion"
)

const promptTemplate = `You are the fulfiller stage of a customer-service email pipeline.
Email ID: {{email_id}}

Order mentions:
{{order_mentions}}

Resolved products (first candidate per mention, or the explicit product when the mention carried a valid id):
{{resolved_products}}

Draft one Order with one OrderLine per order mention. Set base_price=unit_price, promotion_applied=false,
quantity to the requested quantity (default 1), and leave status/stock_after for the stock ledger to fill in.`

var requiredTools = []string{"draft_order_lines"}

// defaultAlternativesLimit is N in "attach up to N (default 2) alternatives".
const defaultAlternativesLimit = 2

// moderateConfidenceLow and moderateConfidenceHigh bound the "moderate
// confidence" band (spec §4.7's `[CLARIFICATION NEEDED: ...]` prefix):
// a non-exact match this uncertain is flagged for the customer to confirm
// rather than silently fulfilled. Grounded on the advisor prompt's own
// 0.5-0.85 "moderate" L2-derived similarity band
// (hermes/agents/advisor/prompts.py, original_source), reused here because
// no separate threshold is specified for the Fulfiller.
const (
	moderateConfidenceLow  = 0.5
	moderateConfidenceHigh = 0.85
)

// Node implements graph.Node for the Fulfiller stage.
type Node struct {
	Retrier           *llm.Retrier
	Model             string
	Catalog           *catalog.Catalog
	PromotionSpecs    []domain.PromotionSpec
	AlternativesLimit int
}

func New(retrier *llm.Retrier, model string, cat *catalog.Catalog, specs []domain.PromotionSpec) *Node {
	return &Node{
		Retrier:           retrier,
		Model:             model,
		Catalog:           cat,
		PromotionSpecs:    specs,
		AlternativesLimit: defaultAlternativesLimit,
	}
}

func (n *Node) Name() domain.NodeName { return domain.NodeFulfiller }

func (n *Node) Run(ctx context.Context, state *domain.WorkflowState) error {
	order := &domain.Order{EmailID: state.Email.EmailID}

	orderMentions := orderSegmentMentions(state.Classifier)
	if len(orderMentions) == 0 {
		order.RecomputeStatus()
		state.Fulfiller = order
		return nil
	}

	resolvedForOrder := resolvedForMentions(state.Stockkeeper, orderMentions)

	prompt := nodeprompt.Render(promptTemplate, map[string]string{
		"email_id":         state.Email.EmailID,
		"order_mentions":   summarizeMentions(orderMentions),
		"resolved_products": summarizeResolved(resolvedForOrder),
	})

	req := llm.Request{
		Node:          string(domain.NodeFulfiller),
		Model:         n.Model,
		Prompt:        prompt,
		Tools:         llm.Tools(requiredTools),
		RequiredTools: requiredTools,
	}

	parsed, err := n.Retrier.Execute(ctx, req, order)
	if err != nil {
		return err
	}
	draft, ok := parsed.(*domain.Order)
	if !ok {
		return fmt.Errorf("fulfiller: unexpected structured-output type %T", parsed)
	}
	draft.EmailID = state.Email.EmailID

	bestByProductID := bestCandidateByProductID(resolvedForOrder)

	for i := range draft.Lines {
		line := &draft.Lines[i]
		n.reserveOrBackorder(line)
		markClarificationIfModerate(line, bestByProductID)
	}

	draft.RecomputeStatus()
	promotion.Apply(draft, n.PromotionSpecs)

	state.Fulfiller = draft
	return nil
}

// reserveOrBackorder consults the stock ledger for line, per spec §4.3
// step 2: sufficient stock creates the line and decrements atomically;
// otherwise the line is backordered with alternatives attached; an unknown
// product id is backordered with stock_after=0.
func (n *Node) reserveOrBackorder(line *domain.OrderLine) {
	normalized := catalog.NormalizeID(line.ProductID)
	product, known := n.Catalog.Get(normalized)
	if !known {
		line.Status = domain.OrderLineOutOfStock
		line.StockAfter = 0
		line.Recompute()
		return
	}

	stockAfter, err := n.Catalog.Ledger.Reserve(normalized, line.Quantity)
	if err != nil {
		line.Status = domain.OrderLineOutOfStock
		line.StockAfter = product.Stock
		line.Alternatives = n.findAlternatives(product)
		line.Recompute()
		return
	}

	line.Status = domain.OrderLineCreated
	line.StockAfter = stockAfter
	line.Recompute()
}

// findAlternatives scans the catalog for in-stock products in the same
// category (and preferably the same product type), nearest in price to the
// out-of-stock product, keeping up to AlternativesLimit. Plain catalog
// filtering rather than the mention-tuned resolver search: the resolver's
// L2 gate is calibrated for short free-text mentions against catalog
// names, not product-to-product similarity, and would under- or
// over-match here.
func (n *Node) findAlternatives(product domain.Product) []domain.AlternativeProduct {
	limit := n.AlternativesLimit
	if limit <= 0 {
		limit = defaultAlternativesLimit
	}

	type scored struct {
		p          domain.Product
		sameType   bool
		priceDelta decimal.Decimal
	}

	var candidates []scored
	for _, p := range n.Catalog.All() {
		if p.ProductID == product.ProductID || p.Stock <= 0 || p.Category != product.Category {
			continue
		}
		candidates = append(candidates, scored{
			p:          p,
			sameType:   p.ProductType == product.ProductType,
			priceDelta: p.Price.Sub(product.Price).Abs(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sameType != candidates[j].sameType {
			return candidates[i].sameType
		}
		if !candidates[i].priceDelta.Equal(candidates[j].priceDelta) {
			return candidates[i].priceDelta.LessThan(candidates[j].priceDelta)
		}
		return candidates[i].p.ProductID < candidates[j].p.ProductID
	})

	out := make([]domain.AlternativeProduct, 0, limit)
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		out = append(out, domain.AlternativeProduct{
			ProductID: c.p.ProductID,
			Name:      c.p.Name,
			Price:     c.p.Price,
			Stock:     c.p.Stock,
		})
	}
	return out
}

// orderSegmentMentions flattens mentions from order-kind segments only;
// inquiry-only mentions never become order lines.
func orderSegmentMentions(analysis *domain.EmailAnalysis) []domain.ProductMention {
	if analysis == nil {
		return nil
	}
	var out []domain.ProductMention
	for _, seg := range analysis.Segments {
		if seg.Kind != domain.SegmentOrder {
			continue
		}
		out = append(out, seg.Mentions...)
	}
	return out
}

// resolvedForMentions restricts a StockkeeperOutput's candidate list to the
// mentions present in the given order-segment mention set, matched by the
// same referent identity the classifier consolidates on.
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

// bestCandidateByProductID maps each resolved product id to the metadata of
// the candidate that resolved it, for the clarification-marking pass.
func bestCandidateByProductID(resolved []domain.MentionCandidates) map[string]domain.CandidateMetadata {
	out := make(map[string]domain.CandidateMetadata)
	for _, mc := range resolved {
		p, ok := mc.FirstCandidate()
		if !ok {
			continue
		}
		out[p.ProductID] = mc.Candidates[0].Metadata
	}
	return out
}

// markClarificationIfModerate prefixes line.Description with
// "[CLARIFICATION NEEDED: ...]" when the line's product was resolved by a
// non-exact method at moderate confidence, per spec §4.7.
func markClarificationIfModerate(line *domain.OrderLine, byProductID map[string]domain.CandidateMetadata) {
	meta, ok := byProductID[line.ProductID]
	if !ok || meta.ResolutionMethod == domain.ResolutionExactID {
		return
	}
	if meta.Confidence < moderateConfidenceLow || meta.Confidence >= moderateConfidenceHigh {
		return
	}
	line.Description = fmt.Sprintf("[CLARIFICATION NEEDED: please confirm this is the item you meant] %s", line.Description)
}

func summarizeMentions(mentions []domain.ProductMention) string {
	lines := make([]string, 0, len(mentions))
	for _, m := range mentions {
		lines = append(lines, "- "+m.Summary())
	}
	return strings.Join(lines, "\n")
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
