package classifier

import (
	"strings"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
)

// consolidateMentions merges mentions of the same referent across every
// segment of analysis: quantities are summed and descriptions merged, kept
// at the first segment the referent appeared in; later duplicates are
// dropped, per spec §4.5 ("Mentions of the same referent across segments
// must be consolidated").
func consolidateMentions(analysis *domain.EmailAnalysis) {
	merged := make(map[string]*domain.ProductMention)
	owner := make(map[string]int) // referent key -> owning segment index
	order := make([]string, 0)    // first-seen order of referent keys with no owner yet

	for si := range analysis.Segments {
		for _, m := range analysis.Segments[si].Mentions {
			key := referentKey(m)
			if key == "" {
				continue
			}
			if existing, ok := merged[key]; ok {
				existing.Quantity += quantityOrOne(m.Quantity)
				existing.ProductDescription = mergeDescriptions(existing.ProductDescription, m.ProductDescription)
				if existing.Confidence < m.Confidence {
					existing.Confidence = m.Confidence
				}
				continue
			}
			copyM := m
			copyM.Quantity = quantityOrOne(m.Quantity)
			merged[key] = &copyM
			owner[key] = si
			order = append(order, key)
		}
	}

	for si := range analysis.Segments {
		seg := &analysis.Segments[si]
		out := make([]domain.ProductMention, 0, len(seg.Mentions))
		for _, m := range seg.Mentions {
			key := referentKey(m)
			if key == "" {
				out = append(out, m)
				continue
			}
			if owner[key] != si {
				continue
			}
			out = append(out, *merged[key])
			delete(owner, key) // emit the merged value exactly once
		}
		seg.Mentions = out
	}
}

// referentKey identifies the same real-world product reference across
// segments: a normalized product id when given, otherwise the lower-cased
// product name. Mentions with neither carry no consolidation identity and
// pass through unmerged.
func referentKey(m domain.ProductMention) string {
	if m.ProductID != "" {
		return "id:" + catalog.NormalizeID(m.ProductID)
	}
	if m.ProductName != "" {
		return "name:" + strings.ToLower(strings.TrimSpace(m.ProductName))
	}
	return ""
}

func quantityOrOne(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

func mergeDescriptions(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "", a == b:
		return a
	default:
		return a + "; " + b
	}
}
