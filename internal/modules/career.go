package modules

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region career

// Career condenses occupation and goals into a one-line summary stored
// under the core extension map.
type Career struct {
	store *state.Store
}

// NewCareer creates the career module.
func NewCareer(store *state.Store) *Career {
	return &Career{store: store}
}

func (c *Career) Name() string { return "career" }

func (c *Career) Run(ctx context.Context, userID string, sc orchestrator.SyncContext) (orchestrator.Output, error) {
	summary := careerSummary(sc.State.Core)
	if summary == "" {
		return orchestrator.Output{}, nil
	}

	_, err := c.store.UpdateCoreAttributes(sc.State.ID, identity.CoreAttributes{
		Extra: map[string]any{"careerSummary": summary},
	})
	if err != nil {
		return orchestrator.Output{}, err
	}
	return orchestrator.Output{
		ItemsProcessed: 1 + len(sc.State.Core.Goals),
		Details:        map[string]any{"summary": summary},
	}, nil
}

// careerSummary builds the stored summary line. Empty when neither
// occupation nor goals are set.
func careerSummary(core identity.CoreAttributes) string {
	var parts []string
	if core.Occupation != "" {
		part := core.Occupation
		if core.Location != "" {
			part = fmt.Sprintf("%s based in %s", part, core.Location)
		}
		parts = append(parts, part)
	}
	if len(core.Goals) > 0 {
		parts = append(parts, "working toward "+strings.Join(core.Goals, ", "))
	}
	return strings.Join(parts, "; ")
}

// #endregion
