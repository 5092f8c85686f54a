package graph

import "github.com/hermesflow/hermes/internal/domain"

type branch int

const (
	branchNone branch = iota
	branchAdvisorOnly
	branchFulfillerOnly
	branchBoth
)

// route implements the Stockkeeper -> {Fulfiller | Advisor | both}
// decision (spec §4.1). It keys on segment kinds present in the
// classifier's output, not on the single-valued Intent field, since both
// an order segment and an inquiry segment can coexist in one email. A
// missing or malformed classifier output (state.Classifier is nil, the
// node failed, or Validate() rejects it) routes straight past both
// branches to Composer.
func route(state *domain.WorkflowState) branch {
	analysis := state.Classifier
	if analysis == nil || analysis.Validate() != nil {
		return branchNone
	}

	hasOrder := analysis.HasOrderSegment()
	hasInquiry := analysis.HasInquirySegment()

	switch {
	case hasOrder && hasInquiry:
		return branchBoth
	case hasOrder:
		return branchFulfillerOnly
	case hasInquiry:
		return branchAdvisorOnly
	default:
		return branchNone
	}
}
