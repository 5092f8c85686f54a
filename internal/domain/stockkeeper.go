package domain

import "fmt"

// CandidateMetadata carries the per-candidate resolution explanation the
// stockkeeper attaches to every product it proposes for a mention.
type CandidateMetadata struct {
	ResolutionMethod        ResolutionMethod
	Confidence               float64
	L2Score                  float64
	RequestedQuantity        int
	OriginalMentionSummary   string
	SearchQuery              string
}

// Candidate is one catalog product proposed for a mention, with its L2
// score and resolution metadata.
type Candidate struct {
	Product  Product
	Metadata CandidateMetadata
}

// String renders the semicolon-joined per-candidate metadata line.
func (m CandidateMetadata) String() string {
	var method string
	switch m.ResolutionMethod {
	case ResolutionExactID:
		method = "Matched by exact product ID"
	case ResolutionSemanticSearch:
		method = "Found through semantic search"
	case ResolutionFuzzyName:
		method = "Found through fuzzy name match"
	default:
		method = "Resolution method unknown"
	}

	s := fmt.Sprintf("Resolution confidence: %.0f%%; %s; Requested quantity: %d; Original mention: %s",
		m.Confidence*100, method, m.RequestedQuantity, m.OriginalMentionSummary)
	if m.SearchQuery != "" {
		s = fmt.Sprintf("Resolution confidence: %.0f%%; %s; Search query: '%s'; Similarity score: %.3f; Requested quantity: %d; Original mention: %s",
			m.Confidence*100, method, m.SearchQuery, 1-m.L2Score/2, m.RequestedQuantity, m.OriginalMentionSummary)
	}
	return s
}

// MentionCandidates pairs a mention with its ordered (ascending L2)
// candidate list.
type MentionCandidates struct {
	Mention    ProductMention
	Candidates []Candidate
}

// StockkeeperOutput is the Stockkeeper's terminal output for one email.
type StockkeeperOutput struct {
	Candidates     []MentionCandidates
	Unresolved     []ProductMention
	ExactIDMisses  []ProductMention
	Metadata       string
}

// FirstCandidate returns the top (lowest-L2) candidate product for a
// mention, if resolved. Used by the Fulfiller to pick the product backing
// a draft order line.
func (mc MentionCandidates) FirstCandidate() (Product, bool) {
	if len(mc.Candidates) == 0 {
		return Product{}, false
	}
	return mc.Candidates[0].Product, true
}
