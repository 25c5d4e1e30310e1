package modules

// #region imports
import (
	"context"
	"strings"

	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region lookup-tables

// archetypeCues maps an archetype to the interest and personality words
// that suggest it, in priority order. First match wins.
var archetypeCues = []struct {
	archetype string
	cues      []string
}{
	{"creator", []string{"art", "design", "writing", "music", "photography", "creative"}},
	{"explorer", []string{"travel", "hiking", "climbing", "adventure", "outdoors", "adventurous"}},
	{"sage", []string{"reading", "philosophy", "science", "history", "curious", "analytical"}},
	{"caregiver", []string{"volunteering", "cooking", "gardening", "empathetic", "nurturing"}},
	{"achiever", []string{"fitness", "entrepreneurship", "investing", "ambitious", "driven"}},
}

// archetypePalettes assigns a fixed palette per archetype.
var archetypePalettes = map[string][]string{
	"creator":   {"#E07A5F", "#F2CC8F", "#3D405B"},
	"explorer":  {"#2A9D8F", "#E9C46A", "#264653"},
	"sage":      {"#457B9D", "#F1FAEE", "#1D3557"},
	"caregiver": {"#FFB4A2", "#E5989B", "#6D6875"},
	"achiever":  {"#14213D", "#FCA311", "#E5E5E5"},
}

// archetypeStyles suggests styling directions per archetype.
var archetypeStyles = map[string][]string{
	"creator":   {"expressive layouts", "hand-drawn accents"},
	"explorer":  {"earthy textures", "wide imagery"},
	"sage":      {"clean typography", "muted contrast"},
	"caregiver": {"soft edges", "warm lighting"},
	"achiever":  {"bold headlines", "high contrast"},
}

// DeriveArchetype matches interests and personality words against the cue
// table. Empty when nothing matches.
func DeriveArchetype(core identity.CoreAttributes) string {
	words := make(map[string]bool, len(core.Interests)+len(core.Personality))
	for _, w := range append(append([]string(nil), core.Interests...), core.Personality...) {
		words[strings.ToLower(w)] = true
	}
	for _, entry := range archetypeCues {
		for _, cue := range entry.cues {
			if words[cue] {
				return entry.archetype
			}
		}
	}
	return ""
}

// PaletteFor returns the fixed palette for an archetype, nil if unknown.
func PaletteFor(archetype string) []string {
	return archetypePalettes[archetype]
}

// #endregion lookup-tables

// #region aesthetic

// Aesthetic derives the archetype, palette, and style suggestions from
// the core attributes and writes them through the aesthetic section.
type Aesthetic struct {
	store *state.Store
}

// NewAesthetic creates the aesthetic module.
func NewAesthetic(store *state.Store) *Aesthetic {
	return &Aesthetic{store: store}
}

func (a *Aesthetic) Name() string { return "aesthetic" }

func (a *Aesthetic) Run(ctx context.Context, userID string, sc orchestrator.SyncContext) (orchestrator.Output, error) {
	archetype := DeriveArchetype(sc.State.Core)
	if archetype == "" {
		return orchestrator.Output{}, nil
	}

	_, err := a.store.UpdateAestheticState(sc.State.ID, identity.AestheticState{
		Archetype:        archetype,
		ColorPalette:     PaletteFor(archetype),
		StyleSuggestions: archetypeStyles[archetype],
	})
	if err != nil {
		return orchestrator.Output{}, err
	}
	return orchestrator.Output{
		ItemsProcessed: 1,
		Details:        map[string]any{"archetype": archetype},
	}, nil
}

// #endregion
