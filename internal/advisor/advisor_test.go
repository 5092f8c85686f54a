package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/llm"
)

type fakeClient struct {
	out   *domain.AdvisorOutput
	calls int
}

func (c *fakeClient) Complete(_ context.Context, _ llm.Request, target any) llm.Result {
	c.calls++
	if t, ok := target.(*domain.AdvisorOutput); ok {
		*t = *c.out
	}
	return llm.Result{Parsed: target, ToolCalls: requiredTools}
}

func newNode(out *domain.AdvisorOutput) *Node {
	client := &fakeClient{out: out}
	retrier := llm.NewRetrier(client, llm.NewToolCallValidator(nil))
	return New(retrier, "gpt-4o-mini")
}

func baseEmail(t *testing.T) domain.CustomerEmail {
	e, err := domain.NewCustomerEmail("E001", "Question", "Does the Alpine Explorer come in green?")
	require.NoError(t, err)
	return e
}

func TestNodeRunAnswersQuestionsFromInquirySegment(t *testing.T) {
	answer := &domain.AdvisorOutput{
		AnsweredQuestions: []domain.QuestionAnswer{
			{Question: "Does it come in green?", Answer: "Yes, in Forest Green.", Confidence: 0.9,
				ReferenceProductIDs: []string{"CBT8901"}, AnswerType: domain.AnswerFactual},
		},
		PrimaryProducts: []string{"CBT8901"},
	}
	node := newNode(answer)

	state := domain.NewWorkflowState(baseEmail(t))
	state.Classifier = &domain.EmailAnalysis{
		Segments: []domain.Segment{
			{Kind: domain.SegmentInquiry, MainSentence: "Does it come in green?",
				Mentions: []domain.ProductMention{{ProductID: "CBT8901"}}},
		},
	}
	state.Stockkeeper = &domain.StockkeeperOutput{
		Candidates: []domain.MentionCandidates{{
			Mention: domain.ProductMention{ProductID: "CBT8901"},
			Candidates: []domain.Candidate{{
				Product:  domain.Product{ProductID: "CBT8901", Name: "Alpine Explorer"},
				Metadata: domain.CandidateMetadata{ResolutionMethod: domain.ResolutionExactID, Confidence: 1.0},
			}},
		}},
	}

	err := node.Run(context.Background(), state)

	require.NoError(t, err)
	require.Len(t, state.Advisor.AnsweredQuestions, 1)
	assert.Equal(t, domain.AnswerFactual, state.Advisor.AnsweredQuestions[0].AnswerType)
	assert.Equal(t, "Yes, in Forest Green.", state.Advisor.AnsweredQuestions[0].Answer)
}

func TestNodeRunOverridesAnswerForExactIDMiss(t *testing.T) {
	answer := &domain.AdvisorOutput{
		AnsweredQuestions: []domain.QuestionAnswer{
			{Question: "Is XYZ999 in stock?", Answer: "It has plenty of stock.", Confidence: 0.8,
				ReferenceProductIDs: []string{"XYZ999"}, AnswerType: domain.AnswerFactual},
		},
		PrimaryProducts: []string{"XYZ999"},
	}
	node := newNode(answer)

	state := domain.NewWorkflowState(baseEmail(t))
	state.Classifier = &domain.EmailAnalysis{
		Segments: []domain.Segment{
			{Kind: domain.SegmentInquiry, MainSentence: "Is XYZ999 in stock?",
				Mentions: []domain.ProductMention{{ProductID: "XYZ999"}}},
		},
	}
	state.Stockkeeper = &domain.StockkeeperOutput{
		ExactIDMisses: []domain.ProductMention{{ProductID: "XYZ999"}},
	}

	err := node.Run(context.Background(), state)

	require.NoError(t, err)
	qa := state.Advisor.AnsweredQuestions[0]
	assert.Equal(t, domain.AnswerUnavailable, qa.AnswerType)
	assert.Contains(t, qa.Answer, "XYZ999")
	assert.Empty(t, state.Advisor.PrimaryProducts)
	assert.Contains(t, state.Advisor.UnsuccessfulReferences, "XYZ999")
}

func TestNodeRunWithNoInquirySegmentsStillRecordsExactIDMisses(t *testing.T) {
	node := newNode(&domain.AdvisorOutput{})

	state := domain.NewWorkflowState(baseEmail(t))
	state.Classifier = &domain.EmailAnalysis{
		Intent:   domain.IntentOrderRequest,
		Segments: []domain.Segment{{Kind: domain.SegmentOrder}},
	}
	state.Stockkeeper = &domain.StockkeeperOutput{
		ExactIDMisses: []domain.ProductMention{{ProductID: "ABC1234"}},
	}

	err := node.Run(context.Background(), state)

	require.NoError(t, err)
	assert.Contains(t, state.Advisor.UnsuccessfulReferences, "ABC1234")
	assert.Empty(t, state.Advisor.AnsweredQuestions)
}
