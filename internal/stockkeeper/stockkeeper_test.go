package stockkeeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/resolver"
)

const sampleCSV = `product_id,name,category,description,stock,price,season,type
CBT8901,Alpine Explorer,Accessories,A rugged backpack,5,89.99,AllSeasons,backpack
`

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	cat, err := catalog.LoadCSV(path)
	require.NoError(t, err)
	return cat
}

func TestNodeRunResolvesMentionsFromClassifierOutput(t *testing.T) {
	cat := newTestCatalog(t)
	node := New(resolver.New(cat, nil))

	email, err := domain.NewCustomerEmail("E001", "", "")
	require.NoError(t, err)
	state := domain.NewWorkflowState(email)
	state.Classifier = &domain.EmailAnalysis{
		Intent: domain.IntentOrderRequest,
		Segments: []domain.Segment{
			{Kind: domain.SegmentOrder, Mentions: []domain.ProductMention{
				{ProductID: "CBT8901", Quantity: 1},
			}},
		},
	}

	err = node.Run(context.Background(), state)

	require.NoError(t, err)
	require.NotNil(t, state.Stockkeeper)
	require.Len(t, state.Stockkeeper.Candidates, 1)
	p, ok := state.Stockkeeper.Candidates[0].FirstCandidate()
	require.True(t, ok)
	assert.Equal(t, "CBT8901", p.ProductID)
}

func TestNodeRunLeavesEmptyMentionUnresolved(t *testing.T) {
	cat := newTestCatalog(t)
	node := New(resolver.New(cat, nil))

	email, err := domain.NewCustomerEmail("E002", "", "")
	require.NoError(t, err)
	state := domain.NewWorkflowState(email)
	state.Classifier = &domain.EmailAnalysis{
		Segments: []domain.Segment{
			{Kind: domain.SegmentInquiry, Mentions: []domain.ProductMention{{}}},
		},
	}

	err = node.Run(context.Background(), state)

	require.NoError(t, err)
	require.Len(t, state.Stockkeeper.Unresolved, 1)
	assert.Empty(t, state.Stockkeeper.Candidates)
}
