package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesflow/hermes/internal/domain"
	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
	"github.com/hermesflow/hermes/internal/llm"
)

// fakeClient scripts a sequence of llm.Result to return from Complete,
// populating the caller's target with analysis when one is supplied.
type fakeClient struct {
	analyses []*domain.EmailAnalysis
	errs     []error
	calls    int
}

func (c *fakeClient) Complete(_ context.Context, req llm.Request, target any) llm.Result {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return llm.Result{Err: c.errs[i]}
	}
	analysis := c.analyses[i]
	if out, ok := target.(*domain.EmailAnalysis); ok && analysis != nil {
		*out = *analysis
	}
	return llm.Result{Parsed: target, ToolCalls: requiredTools}
}

func newNode(client llm.Client) *Node {
	retrier := llm.NewRetrier(client, llm.NewToolCallValidator(nil))
	return New(retrier, "gpt-4o-mini")
}

func baseEmail() domain.CustomerEmail {
	e, err := domain.NewCustomerEmail("E001", "Backpack question", "Do you have the Alpine Explorer backpack?")
	if err != nil {
		panic(err)
	}
	return e
}

func TestNodeRunConsolidatesMentionsAcrossSegments(t *testing.T) {
	analysis := &domain.EmailAnalysis{
		Intent: domain.IntentOrderRequest,
		Segments: []domain.Segment{
			{
				Kind: domain.SegmentOrder,
				Mentions: []domain.ProductMention{
					{ProductID: "cbt 8901", Quantity: 1, Confidence: 0.9},
				},
			},
			{
				Kind: domain.SegmentOrder,
				Mentions: []domain.ProductMention{
					{ProductID: "CBT8901", Quantity: 2, Confidence: 0.6},
				},
			},
		},
	}
	client := &fakeClient{analyses: []*domain.EmailAnalysis{analysis}}
	node := newNode(client)

	state := domain.NewWorkflowState(baseEmail())
	err := node.Run(context.Background(), state)

	require.NoError(t, err)
	require.NotNil(t, state.Classifier)
	all := state.Classifier.AllMentions()
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].Quantity)
	assert.Equal(t, 0.9, all[0].Confidence)
}

func TestNodeRunLowersConfidenceForMalformedProductID(t *testing.T) {
	analysis := &domain.EmailAnalysis{
		Intent: domain.IntentProductInquiry,
		Segments: []domain.Segment{
			{
				Kind: domain.SegmentInquiry,
				Mentions: []domain.ProductMention{
					{ProductID: "DHN0987", Quantity: 1},
					{ProductID: "not-an-id", Quantity: 1},
				},
			},
		},
	}
	client := &fakeClient{analyses: []*domain.EmailAnalysis{analysis}}
	node := newNode(client)

	state := domain.NewWorkflowState(baseEmail())
	err := node.Run(context.Background(), state)

	require.NoError(t, err)
	all := state.Classifier.AllMentions()
	require.Len(t, all, 2)
	assert.Equal(t, 1.0, all[0].Confidence)
	assert.Equal(t, 0.5, all[1].Confidence)
}

func TestNodeRunRejectsInvalidIntentSegmentCombination(t *testing.T) {
	analysis := &domain.EmailAnalysis{
		Intent: domain.IntentProductInquiry,
		Segments: []domain.Segment{
			{Kind: domain.SegmentOrder, Mentions: []domain.ProductMention{{ProductID: "CBT8901", Quantity: 1}}},
		},
	}
	client := &fakeClient{analyses: []*domain.EmailAnalysis{analysis}}
	node := newNode(client)

	state := domain.NewWorkflowState(baseEmail())
	err := node.Run(context.Background(), state)

	require.Error(t, err)
	assert.Nil(t, state.Classifier)
}

func TestNodeRunPropagatesToolCallErrorAfterRetriesExhausted(t *testing.T) {
	client := &fakeClient{
		errs: []error{
			hermeserrors.NewLLMInvocationError("classifier", "rate limited", nil),
			hermeserrors.NewLLMInvocationError("classifier", "rate limited", nil),
			hermeserrors.NewLLMInvocationError("classifier", "rate limited", nil),
		},
	}
	node := newNode(client)

	state := domain.NewWorkflowState(baseEmail())
	err := node.Run(context.Background(), state)

	require.Error(t, err)
	assert.Nil(t, state.Classifier)
	assert.Equal(t, 3, client.calls)
}
