// Package stockkeeper implements the Stockkeeper node: a pure resolution
// step with no LLM call of its own. It hands the classifier's flattened
// mention list to internal/resolver and writes the aggregate output onto
// the workflow state, per spec §4.4.
package stockkeeper

import (
	"context"

	"github.com/hermesflow/hermes/internal/domain"
	"github.com/hermesflow/hermes/internal/resolver"
)

// Node implements graph.Node for the Stockkeeper stage.
type Node struct {
	Resolver *resolver.Resolver
}

func New(r *resolver.Resolver) *Node {
	return &Node{Resolver: r}
}

func (n *Node) Name() domain.NodeName { return domain.NodeStockkeeper }

// Run resolves every mention the Classifier extracted and writes the
// result onto state.Stockkeeper. It never fails: a mention that resolves
// to nothing becomes Unresolved rather than an error, per the
// ProductNotFound-as-typed-result design.
func (n *Node) Run(ctx context.Context, state *domain.WorkflowState) error {
	var mentions []domain.ProductMention
	if state.Classifier != nil {
		mentions = state.Classifier.AllMentions()
	}
	out := n.Resolver.Run(ctx, mentions)
	state.Stockkeeper = &out
	return nil
}
