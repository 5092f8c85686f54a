package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesflow/hermes/internal/domain"
)

func nodeFunc(name domain.NodeName, fn func(ctx context.Context, state *domain.WorkflowState) error) Node {
	return NodeFunc{NodeName: name, Fn: fn}
}

func alwaysComposer() Node {
	return nodeFunc(domain.NodeComposer, func(_ context.Context, state *domain.WorkflowState) error {
		state.Composer = &domain.ComposerOutput{EmailID: state.Email.EmailID}
		return nil
	})
}

func classifierWith(segments ...domain.Segment) Node {
	return nodeFunc(domain.NodeClassifier, func(_ context.Context, state *domain.WorkflowState) error {
		intent := domain.IntentProductInquiry
		for _, s := range segments {
			if s.Kind == domain.SegmentOrder {
				intent = domain.IntentOrderRequest
			}
		}
		state.Classifier = &domain.EmailAnalysis{EmailID: state.Email.EmailID, Intent: intent, Segments: segments}
		return nil
	})
}

func noopStockkeeper() Node {
	return nodeFunc(domain.NodeStockkeeper, func(_ context.Context, state *domain.WorkflowState) error {
		state.Stockkeeper = &domain.StockkeeperOutput{}
		return nil
	})
}

func recordingNode(name domain.NodeName, calls *[]domain.NodeName) Node {
	return nodeFunc(name, func(_ context.Context, state *domain.WorkflowState) error {
		*calls = append(*calls, name)
		switch name {
		case domain.NodeFulfiller:
			state.Fulfiller = &domain.Order{EmailID: state.Email.EmailID}
		case domain.NodeAdvisor:
			state.Advisor = &domain.AdvisorOutput{EmailID: state.Email.EmailID}
		}
		return nil
	})
}

func TestRunnerRoutesFulfillerOnlyForOrderIntent(t *testing.T) {
	var calls []domain.NodeName
	r := NewRunner(Nodes{
		Classifier:  classifierWith(domain.Segment{Kind: domain.SegmentOrder}),
		Stockkeeper: noopStockkeeper(),
		Fulfiller:   recordingNode(domain.NodeFulfiller, &calls),
		Advisor:     recordingNode(domain.NodeAdvisor, &calls),
		Composer:    alwaysComposer(),
	})

	email, err := domain.NewCustomerEmail("e1", "", "I want to order")
	require.NoError(t, err)

	state := r.Run(context.Background(), email)

	assert.Equal(t, []domain.NodeName{domain.NodeFulfiller}, calls)
	require.NotNil(t, state.Fulfiller)
	assert.Nil(t, state.Advisor)
	require.NotNil(t, state.Composer)
}

func TestRunnerRoutesBothOnFanOut(t *testing.T) {
	var calls []domain.NodeName
	r := NewRunner(Nodes{
		Classifier:  classifierWith(domain.Segment{Kind: domain.SegmentOrder}, domain.Segment{Kind: domain.SegmentInquiry}),
		Stockkeeper: noopStockkeeper(),
		Fulfiller:   recordingNode(domain.NodeFulfiller, &calls),
		Advisor:     recordingNode(domain.NodeAdvisor, &calls),
		Composer:    alwaysComposer(),
	})

	email, _ := domain.NewCustomerEmail("e2", "", "order and question")
	state := r.Run(context.Background(), email)

	assert.ElementsMatch(t, []domain.NodeName{domain.NodeFulfiller, domain.NodeAdvisor}, calls)
	require.NotNil(t, state.Fulfiller)
	require.NotNil(t, state.Advisor)
	require.NotNil(t, state.Composer)
}

func TestRunnerSkipsBranchesOnMalformedClassifierOutput(t *testing.T) {
	var calls []domain.NodeName
	failingClassifier := nodeFunc(domain.NodeClassifier, func(_ context.Context, state *domain.WorkflowState) error {
		return errors.New("boom")
	})

	r := NewRunner(Nodes{
		Classifier:  failingClassifier,
		Stockkeeper: noopStockkeeper(),
		Fulfiller:   recordingNode(domain.NodeFulfiller, &calls),
		Advisor:     recordingNode(domain.NodeAdvisor, &calls),
		Composer:    alwaysComposer(),
	})

	email, _ := domain.NewCustomerEmail("e3", "", "???")
	state := r.Run(context.Background(), email)

	assert.Empty(t, calls)
	assert.Nil(t, state.Classifier)
	require.NotNil(t, state.Composer)
	assert.True(t, state.Failed(domain.NodeClassifier))
}

func TestRunnerContainsPanicFromNode(t *testing.T) {
	panicking := nodeFunc(domain.NodeStockkeeper, func(_ context.Context, state *domain.WorkflowState) error {
		panic("unexpected")
	})

	r := NewRunner(Nodes{
		Classifier:  classifierWith(),
		Stockkeeper: panicking,
		Fulfiller:   alwaysComposer(),
		Advisor:     alwaysComposer(),
		Composer:    alwaysComposer(),
	})

	email, _ := domain.NewCustomerEmail("e4", "", "hello")
	state := r.Run(context.Background(), email)

	assert.True(t, state.Failed(domain.NodeStockkeeper))
	rec, _ := state.ErrorFor(domain.NodeStockkeeper)
	assert.Equal(t, "panic", rec.Kind)
	require.NotNil(t, state.Composer)
}
