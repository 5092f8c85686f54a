package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/vectorindex"
)

const sampleCSV = `product_id,name,category,description,stock,price,season,type
CBT8901,Canvas Boat Tote,Bags,A roomy canvas tote,10,45.00,Summer,Tote
CBG9876,Chunky Knit Beanie,Accessories,Warm knit beanie,5,24.00,Winter,Beanie
QTP5432,Quilted Tote Pouch,Bags,Small quilted pouch,0,29.00,AllSeasons,Pouch
`

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))
	cat, err := catalog.LoadCSV(path)
	require.NoError(t, err)
	return cat
}

func newIndexWithCatalogNames(cat *catalog.Catalog) *vectorindex.Memory {
	idx := vectorindex.NewMemory(64)
	for _, p := range cat.All() {
		idx.Add(strings.Join([]string{p.Name, p.Description, p.ProductType}, " "), map[string]string{"product_id": p.ProductID})
	}
	return idx
}

func TestResolveExactIDMatch(t *testing.T) {
	cat := newTestCatalog(t)
	r := New(cat, newIndexWithCatalogNames(cat))

	mentions := []domain.ProductMention{{ProductID: "CBT8901", Quantity: 1}}
	out := r.Run(context.Background(), mentions)

	require.Len(t, out.Candidates, 1)
	cands := out.Candidates[0].Candidates
	require.Len(t, cands, 1)
	assert.Equal(t, domain.ResolutionExactID, cands[0].Metadata.ResolutionMethod)
	assert.Equal(t, 1.0, cands[0].Metadata.Confidence)
	assert.Equal(t, 0.0, cands[0].Metadata.L2Score)
	assert.Empty(t, out.ExactIDMisses)
}

func TestResolveFuzzyIDMatch(t *testing.T) {
	cat := newTestCatalog(t)
	r := New(cat, newIndexWithCatalogNames(cat))

	// two edits away from CBT8901 (digits transposed).
	mentions := []domain.ProductMention{{ProductID: "CBT8091", Quantity: 1}}
	out := r.Run(context.Background(), mentions)

	require.Len(t, out.Candidates, 1)
	cands := out.Candidates[0].Candidates
	require.Len(t, cands, 1)
	assert.Equal(t, "CBT8901", cands[0].Product.ProductID)
	require.Len(t, out.ExactIDMisses, 1)
}

func TestResolveSemanticSearchGatedByL2(t *testing.T) {
	cat := newTestCatalog(t)
	r := New(cat, newIndexWithCatalogNames(cat))

	mentions := []domain.ProductMention{{ProductName: "Canvas Boat Tote", Quantity: 1}}
	out := r.Run(context.Background(), mentions)

	require.Len(t, out.Candidates, 1)
	for _, c := range out.Candidates[0].Candidates {
		assert.LessOrEqual(t, c.Metadata.L2Score, maxL2)
	}
	assertSortedByL2(t, out.Candidates[0].Candidates)
}

func TestResolveCapsCandidatesAtK(t *testing.T) {
	const manyCSV = `product_id,name,category,description,stock,price,season,type
TOT0001,Tote Bag Alpha,Bags,A tote bag,10,20.00,AllSeasons,Tote
TOT0002,Tote Bag Bravo,Bags,A tote bag,10,20.00,AllSeasons,Tote
TOT0003,Tote Bag Charlie,Bags,A tote bag,10,20.00,AllSeasons,Tote
TOT0004,Tote Bag Delta,Bags,A tote bag,10,20.00,AllSeasons,Tote
TOT0005,Tote Bag Echo,Bags,A tote bag,10,20.00,AllSeasons,Tote
`
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(manyCSV), 0o600))
	cat, err := catalog.LoadCSV(path)
	require.NoError(t, err)

	r := New(cat, newIndexWithCatalogNames(cat))

	mentions := []domain.ProductMention{{ProductName: "Tote Bag", Quantity: 1}}
	out := r.Run(context.Background(), mentions)

	require.Len(t, out.Candidates, 1)
	assert.LessOrEqual(t, len(out.Candidates[0].Candidates), r.K,
		"resolution must produce at most K candidates per mention (spec's up-to-K contract)")
}

func TestResolveUnrelatedQueryYieldsNoCandidates(t *testing.T) {
	cat := newTestCatalog(t)
	r := New(cat, newIndexWithCatalogNames(cat))

	mentions := []domain.ProductMention{{ProductName: "Zzyzx Nonexistent Gadget Widget", ProductDescription: "completely unrelated electronics accessory", Quantity: 1}}
	out := r.Run(context.Background(), mentions)

	assert.Empty(t, out.Candidates)
	require.Len(t, out.Unresolved, 1)
}

func TestResolveEmptyMentionGoesStraightToUnresolved(t *testing.T) {
	cat := newTestCatalog(t)
	r := New(cat, newIndexWithCatalogNames(cat))

	mentions := []domain.ProductMention{{Quantity: 2}}
	out := r.Run(context.Background(), mentions)

	assert.Empty(t, out.Candidates)
	require.Len(t, out.Unresolved, 1)
	assert.Empty(t, out.ExactIDMisses)
}

func assertSortedByL2(t *testing.T, candidates []domain.Candidate) {
	t.Helper()
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i-1].Metadata.L2Score, candidates[i].Metadata.L2Score)
	}
}

func TestNameMatchL2IdenticalNameIsZero(t *testing.T) {
	assert.Equal(t, 0.0, nameMatchL2("chunky knit beanie", "chunky knit beanie"))
}

func TestGateByL2DropsAboveThreshold(t *testing.T) {
	candidates := []domain.Candidate{
		{Product: domain.Product{ProductID: "AAA0001", Price: decimal.Zero}, Metadata: domain.CandidateMetadata{L2Score: 1.3}},
		{Product: domain.Product{ProductID: "BBB0002", Price: decimal.Zero}, Metadata: domain.CandidateMetadata{L2Score: 0.4}},
	}
	kept := gateByL2(candidates)
	require.Len(t, kept, 1)
	assert.Equal(t, "BBB0002", kept[0].Product.ProductID)
}
