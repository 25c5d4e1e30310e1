package modules

// #region imports
import (
	"context"

	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region dating

// Dating folds the learned avoid-topics into the dating persona's
// excluded topics so generators stop producing content users downvoted.
type Dating struct {
	store *state.Store
}

// NewDating creates the dating module.
func NewDating(store *state.Store) *Dating {
	return &Dating{store: store}
}

func (d *Dating) Name() string { return "dating" }

func (d *Dating) Run(ctx context.Context, userID string, sc orchestrator.SyncContext) (orchestrator.Output, error) {
	avoid := sc.State.Learning.ContentPatterns.AvoidTopics
	if len(avoid) == 0 {
		return orchestrator.Output{}, nil
	}

	persona, err := d.store.PersonaByName(sc.State.ID, "dating")
	if err != nil {
		return orchestrator.Output{}, err
	}

	rules := persona.Rules
	seen := make(map[string]bool, len(rules.ExcludedTopics))
	for _, topic := range rules.ExcludedTopics {
		seen[topic] = true
	}
	added := 0
	for _, topic := range avoid {
		if !seen[topic] {
			seen[topic] = true
			rules.ExcludedTopics = append(rules.ExcludedTopics, topic)
			added++
		}
	}
	if added == 0 {
		return orchestrator.Output{Details: map[string]any{"excludedTopics": len(rules.ExcludedTopics)}}, nil
	}

	if err := d.store.UpdatePersonaRules(sc.State.ID, "dating", rules); err != nil {
		return orchestrator.Output{}, err
	}
	return orchestrator.Output{
		ItemsProcessed: added,
		Details:        map[string]any{"excludedTopics": len(rules.ExcludedTopics)},
	}, nil
}

// #endregion
