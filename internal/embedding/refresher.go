package embedding

import (
	"context"
	"fmt"
	"log"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #region embedder

// Embedder abstracts the external embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// #endregion embedder

// #region refresher

// Refresher recomputes a state's identity and content embeddings from its
// text summary. When a persona is active, the content embedding blends the
// identity embedding with the persona's own summarized embedding at
// DefaultPrimaryWeight; otherwise it equals the identity embedding.
type Refresher struct {
	store    *state.Store
	embedder Embedder
}

// NewRefresher wires the refresh path.
func NewRefresher(store *state.Store, embedder Embedder) *Refresher {
	return &Refresher{store: store, embedder: embedder}
}

// Refresh embeds the state summary and persists both vectors. Provider
// failures surface as ServiceError; embedding-only writes never snapshot.
func (r *Refresher) Refresh(ctx context.Context, stateID string) (identity.IdentityState, error) {
	st, err := r.store.Get(stateID)
	if err != nil {
		return identity.IdentityState{}, err
	}

	summary := SummarizeState(st)
	if summary == "" {
		return identity.IdentityState{}, fault.Invalid("state %s has no content to embed", stateID)
	}

	identityVec, err := r.embed(ctx, summary)
	if err != nil {
		return identity.IdentityState{}, err
	}

	contentVec := identityVec
	persona, err := r.store.ActivePersona(stateID)
	switch {
	case err == nil:
		personaVec, err := r.embed(ctx, SummarizePersona(persona))
		if err != nil {
			return identity.IdentityState{}, err
		}
		contentVec, err = Blend(identityVec, personaVec, DefaultPrimaryWeight)
		if err != nil {
			return identity.IdentityState{}, err
		}
		log.Printf("[EMBED] state=%s blended with persona=%s", stateID, persona.Name)
	case fault.IsNotFound(err):
		// No active persona: content embedding equals identity embedding.
	default:
		return identity.IdentityState{}, err
	}

	return r.store.Update(stateID, state.UpdateInput{
		IdentityEmbedding: identityVec,
		ContentEmbedding:  contentVec,
	})
}

func (r *Refresher) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fault.Service("embed", err)
	}
	if len(vec) != identity.EmbeddingDim {
		return nil, fault.Service("embed", fmt.Errorf("provider returned %d dimensions, want %d", len(vec), identity.EmbeddingDim))
	}
	return vec, nil
}

// #endregion refresher
