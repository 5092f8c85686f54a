// Package resolver implements the stockkeeper's product-mention resolution
// algorithm: exact-id match, fuzzy-id match, semantic+fuzzy-name search,
// and L2-threshold gating, per spec §4.4 and
// hermes/tools/catalog_tools.py's resolve_product_mention
// (original_source).
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/vectorindex"
)

// maxL2 is the candidate-retention threshold: candidates with L2 distance
// greater than this are discarded (glossary, spec §4.4 point 4).
const maxL2 = 1.2

// fuzzyIDMaxEditDistance bounds the Levenshtein distance tolerated when
// repairing a malformed product-id token (the "CBT 89 01" -> CBT8901
// case), per the resolved open question in SPEC_FULL.md §9.
const fuzzyIDMaxEditDistance = 2

// DefaultK is the default number of candidates produced per mention.
const DefaultK = 3

// Resolver resolves ProductMention values against a Catalog and a vector
// Index.
type Resolver struct {
	Catalog *catalog.Catalog
	Index   vectorindex.Index
	K       int
}

// New constructs a Resolver with the default candidate count.
func New(cat *catalog.Catalog, index vectorindex.Index) *Resolver {
	return &Resolver{Catalog: cat, Index: index, K: DefaultK}
}

// Run resolves every mention and returns the aggregate StockkeeperOutput,
// per spec §4.4 and §8 (sorted ascending by L2, L2 <= 1.2, deterministic
// given a fixed catalog and index).
func (r *Resolver) Run(ctx context.Context, mentions []domain.ProductMention) domain.StockkeeperOutput {
	start := time.Now()

	out := domain.StockkeeperOutput{}
	attempts := 0
	withCandidates := 0

	for _, mention := range mentions {
		if mention.Empty() {
			out.Unresolved = append(out.Unresolved, mention)
			continue
		}

		attempts++
		candidates, exactIDMiss := r.resolveOne(ctx, mention)

		if exactIDMiss {
			out.ExactIDMisses = append(out.ExactIDMisses, mention)
		}

		if len(candidates) == 0 {
			out.Unresolved = append(out.Unresolved, mention)
			continue
		}

		withCandidates++
		out.Candidates = append(out.Candidates, domain.MentionCandidates{Mention: mention, Candidates: candidates})
	}

	elapsed := time.Since(start)
	out.Metadata = fmt.Sprintf(
		"Processed %d product mentions; made %d resolution attempts; found candidates for %d mentions; %d mentions unresolved; processing took %dms",
		len(mentions), attempts, withCandidates, len(out.Unresolved), elapsed.Milliseconds(),
	)
	return out
}

// resolveOne applies the resolution priority for a single mention:
// exact-id, fuzzy-id, then semantic+fuzzy-name search gated by L2 <= 1.2.
// exactIDMiss reports whether an id was present but failed exact match (it
// is recorded in ExactIDMisses regardless of whether fuzzy-id match
// ultimately succeeds, per spec §4.4 step 2).
func (r *Resolver) resolveOne(ctx context.Context, mention domain.ProductMention) (candidates []domain.Candidate, exactIDMiss bool) {
	if mention.ProductID != "" {
		normalized := catalog.NormalizeID(mention.ProductID)

		if p, ok := r.Catalog.Get(normalized); ok {
			return []domain.Candidate{exactCandidate(p, mention)}, false
		}

		exactIDMiss = true

		if p, ok := r.fuzzyIDMatch(normalized); ok {
			return []domain.Candidate{exactCandidate(p, mention)}, true
		}
	}

	query := buildQuery(mention)
	if query == "" {
		return nil, exactIDMiss
	}

	merged := r.semanticAndFuzzyNameSearch(ctx, mention, query)
	gated := gateByL2(merged)
	if len(gated) > r.K {
		gated = gated[:r.K]
	}
	return gated, exactIDMiss
}

func exactCandidate(p domain.Product, mention domain.ProductMention) domain.Candidate {
	return domain.Candidate{
		Product: p,
		Metadata: domain.CandidateMetadata{
			ResolutionMethod:       domain.ResolutionExactID,
			Confidence:             1.0,
			L2Score:                0,
			RequestedQuantity:      quantityOrDefault(mention.Quantity),
			OriginalMentionSummary: mention.Summary(),
		},
	}
}

// fuzzyIDMatch looks for exactly one catalog product whose normalized id
// is within fuzzyIDMaxEditDistance of normalized.
func (r *Resolver) fuzzyIDMatch(normalized string) (domain.Product, bool) {
	var best domain.Product
	found := 0
	for _, p := range r.Catalog.All() {
		candID := catalog.NormalizeID(p.ProductID)
		if levenshtein.ComputeDistance(normalized, candID) <= fuzzyIDMaxEditDistance {
			best = p
			found++
			if found > 1 {
				return domain.Product{}, false
			}
		}
	}
	return best, found == 1
}

func buildQuery(mention domain.ProductMention) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{mention.ProductName, mention.ProductDescription, mention.ProductType} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// semanticAndFuzzyNameSearch runs the vector-index query and a fuzzy
// name match over the catalog, merging both lists and de-duplicating by
// product id, keeping the lowest L2 per id.
func (r *Resolver) semanticAndFuzzyNameSearch(ctx context.Context, mention domain.ProductMention, query string) []domain.Candidate {
	byProduct := make(map[string]domain.Candidate)

	var where map[string]string
	if mention.ProductCategory != "" {
		where = map[string]string{"category": string(mention.ProductCategory)}
	}

	if r.Index != nil {
		matches, err := r.Index.Query(ctx, query, r.K, where)
		if err == nil {
			for _, m := range matches {
				id := m.Metadata["product_id"]
				p, ok := r.Catalog.Get(id)
				if !ok {
					continue
				}
				cand := domain.Candidate{
					Product: p,
					Metadata: domain.CandidateMetadata{
						ResolutionMethod:       domain.ResolutionSemanticSearch,
						Confidence:             similarityFromL2(m.L2Distance),
						L2Score:                m.L2Distance,
						RequestedQuantity:      quantityOrDefault(mention.Quantity),
						OriginalMentionSummary: mention.Summary(),
						SearchQuery:            query,
					},
				}
				keepLowestL2(byProduct, p.ProductID, cand)
			}
		}
	}

	for _, p := range r.Catalog.All() {
		if mention.ProductCategory != "" && p.Category != mention.ProductCategory {
			continue
		}
		score := nameMatchL2(query, p.Name)
		if score > maxL2 {
			continue
		}
		cand := domain.Candidate{
			Product: p,
			Metadata: domain.CandidateMetadata{
				ResolutionMethod:       domain.ResolutionFuzzyName,
				Confidence:             similarityFromL2(score),
				L2Score:                score,
				RequestedQuantity:      quantityOrDefault(mention.Quantity),
				OriginalMentionSummary: mention.Summary(),
				SearchQuery:            query,
			},
		}
		keepLowestL2(byProduct, p.ProductID, cand)
	}

	out := make([]domain.Candidate, 0, len(byProduct))
	for _, c := range byProduct {
		out = append(out, c)
	}
	return out
}

func keepLowestL2(byProduct map[string]domain.Candidate, productID string, cand domain.Candidate) {
	existing, ok := byProduct[productID]
	if !ok || cand.Metadata.L2Score < existing.Metadata.L2Score {
		byProduct[productID] = cand
	}
}

// nameMatchL2 converts a normalized (0..1) Levenshtein similarity between
// query and name into a pseudo-L2 distance in 0..2 (lower is closer), so
// both sources can be merged and gated by the same threshold as the vector
// index's L2 distances.
func nameMatchL2(query, name string) float64 {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	normalizedName := strings.ToLower(strings.TrimSpace(name))
	if normalizedQuery == "" || normalizedName == "" {
		return maxL2 + 1
	}

	dist := levenshtein.ComputeDistance(normalizedQuery, normalizedName)
	maxLen := len(normalizedQuery)
	if len(normalizedName) > maxLen {
		maxLen = len(normalizedName)
	}
	if maxLen == 0 {
		return maxL2 + 1
	}

	similarity := 1.0 - float64(dist)/float64(maxLen)
	if similarity < 0 {
		similarity = 0
	}
	// Invert similarity (0..1, higher is better) into an L2-like distance
	// (0..2, lower is better), compared against the same maxL2 gate as the
	// vector index's normalized-vector L2 distances.
	return 2 * (1 - similarity)
}

func similarityFromL2(l2 float64) float64 {
	// L2 distance is canonical for gating; this is a presentation-level
	// derived similarity only, per the resolved open question in
	// SPEC_FULL.md §9 — never used for thresholding.
	s := 1 - l2/2
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s
}

// gateByL2 discards candidates with L2 > maxL2 and sorts the remainder
// ascending by L2, breaking ties by product id (spec §4.4 determinism
// requirement).
func gateByL2(candidates []domain.Candidate) []domain.Candidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Metadata.L2Score <= maxL2 {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Metadata.L2Score != kept[j].Metadata.L2Score {
			return kept[i].Metadata.L2Score < kept[j].Metadata.L2Score
		}
		return kept[i].Product.ProductID < kept[j].Product.ProductID
	})
	return kept
}

func quantityOrDefault(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}
