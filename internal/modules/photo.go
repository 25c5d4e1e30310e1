package modules

// #region imports
import (
	"context"
	"strings"

	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/learning"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region photo

// Photo extracts prompt keywords from the profile text for downstream
// image generation, stored under the aesthetic extension map.
type Photo struct {
	store *state.Store
}

// NewPhoto creates the photo module.
func NewPhoto(store *state.Store) *Photo {
	return &Photo{store: store}
}

func (p *Photo) Name() string { return "photo" }

func (p *Photo) Run(ctx context.Context, userID string, sc orchestrator.SyncContext) (orchestrator.Output, error) {
	keywords := learning.ExtractKeywords(profileText(sc.State.Core))
	if len(keywords) == 0 {
		return orchestrator.Output{}, nil
	}

	_, err := p.store.UpdateAestheticState(sc.State.ID, identity.AestheticState{
		Extra: map[string]any{"photoKeywords": keywords},
	})
	if err != nil {
		return orchestrator.Output{}, err
	}
	return orchestrator.Output{
		ItemsProcessed: len(keywords),
		Details:        map[string]any{"keywords": keywords},
	}, nil
}

// profileText flattens the descriptive core fields into one string for
// keyword extraction.
func profileText(core identity.CoreAttributes) string {
	var parts []string
	if core.Location != "" {
		parts = append(parts, core.Location)
	}
	if core.Occupation != "" {
		parts = append(parts, core.Occupation)
	}
	parts = append(parts, core.Interests...)
	parts = append(parts, core.Quirks...)
	return strings.Join(parts, " ")
}

// #endregion
