package embedding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/identity-engine/internal/identity"
)

// Deterministic text summaries fed to the embedding provider. Field order
// is fixed so the same state always produces the same text (and therefore
// the same cached embedding).

// #region state-summary

// SummarizeState concatenates core, aesthetic, and learned-preference
// fields in a fixed order.
func SummarizeState(st identity.IdentityState) string {
	var b strings.Builder

	writeField(&b, "name", st.Core.Name)
	if st.Core.Age != 0 {
		writeField(&b, "age", fmt.Sprintf("%d", st.Core.Age))
	}
	writeField(&b, "location", st.Core.Location)
	writeField(&b, "occupation", st.Core.Occupation)
	writeList(&b, "interests", st.Core.Interests)
	writeList(&b, "values", st.Core.Values)
	writeList(&b, "personality", st.Core.Personality)
	writeList(&b, "goals", st.Core.Goals)
	writeList(&b, "quirks", st.Core.Quirks)
	writeField(&b, "communication style", st.Core.CommunicationStyle)

	writeField(&b, "aesthetic archetype", st.Aesthetic.Archetype)
	writeList(&b, "color palette", st.Aesthetic.ColorPalette)
	writeList(&b, "style", st.Aesthetic.StyleSuggestions)

	writeField(&b, "preferred length", st.Learning.ContentPatterns.PreferredLength)
	writeList(&b, "preferred tone", st.Learning.ContentPatterns.PreferredTone)
	writeList(&b, "favorite topics", st.Learning.ContentPatterns.FavoriteTopics)
	writeList(&b, "avoid topics", st.Learning.ContentPatterns.AvoidTopics)

	return strings.TrimSpace(b.String())
}

// #endregion state-summary

// #region persona-summary

// SummarizePersona renders a persona's tone weights (sorted by name for
// determinism), style markers, and content rules.
func SummarizePersona(p identity.Persona) string {
	var b strings.Builder

	writeField(&b, "persona", p.Name)

	if len(p.ToneWeights) > 0 {
		names := make([]string, 0, len(p.ToneWeights))
		for name := range p.ToneWeights {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s %.1f", name, p.ToneWeights[name]))
		}
		writeField(&b, "tone", strings.Join(parts, ", "))
	}

	writeList(&b, "style markers", p.StyleMarkers)
	writeField(&b, "formality", p.Rules.Formality)
	writeList(&b, "excluded topics", p.Rules.ExcludedTopics)

	return strings.TrimSpace(b.String())
}

// #endregion persona-summary

// #region helpers

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s. ", label, value)
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s. ", label, strings.Join(values, ", "))
}

// #endregion helpers
