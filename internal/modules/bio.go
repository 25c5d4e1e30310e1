package modules

// #region imports
import (
	"context"

	"github.com/danielpatrickdp/identity-engine/internal/embedding"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
)

// #endregion

// #region bio

// Bio recomputes the identity and content embeddings from the current
// core attributes and reports the profile completion score.
type Bio struct {
	refresher *embedding.Refresher
}

// NewBio creates the bio module.
func NewBio(refresher *embedding.Refresher) *Bio {
	return &Bio{refresher: refresher}
}

func (b *Bio) Name() string { return "bio" }

// Run refreshes the embeddings. An empty profile has nothing to embed
// and settles as a no-op rather than failing the job.
func (b *Bio) Run(ctx context.Context, userID string, sc orchestrator.SyncContext) (orchestrator.Output, error) {
	score := identity.CompletionScore(sc.State.Core)
	if score == 0 {
		return orchestrator.Output{Details: map[string]any{"completionScore": 0.0}}, nil
	}

	st, err := b.refresher.Refresh(ctx, sc.State.ID)
	if err != nil {
		return orchestrator.Output{}, err
	}
	return orchestrator.Output{
		ItemsProcessed: 1,
		Details: map[string]any{
			"completionScore": score,
			"embeddingDim":    len(st.IdentityEmbedding),
		},
	}, nil
}

// #endregion
