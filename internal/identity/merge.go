package identity

// Shallow section merges. The store replaces sections wholesale; callers
// merge partial input over the stored section first, then hand the full
// section back. Zero-valued fields in the partial leave the base untouched;
// non-nil lists and maps replace or extend as noted.

// #region merge-core

// MergeCore returns base with every non-zero field of partial applied.
// List fields are replaced when non-nil; Extra is merged key-wise.
func MergeCore(base, partial CoreAttributes) CoreAttributes {
	out := base
	if partial.Name != "" {
		out.Name = partial.Name
	}
	if partial.Age != 0 {
		out.Age = partial.Age
	}
	if partial.Location != "" {
		out.Location = partial.Location
	}
	if partial.Occupation != "" {
		out.Occupation = partial.Occupation
	}
	if partial.Interests != nil {
		out.Interests = partial.Interests
	}
	if partial.Values != nil {
		out.Values = partial.Values
	}
	if partial.Personality != nil {
		out.Personality = partial.Personality
	}
	if partial.Goals != nil {
		out.Goals = partial.Goals
	}
	if partial.Quirks != nil {
		out.Quirks = partial.Quirks
	}
	if partial.CommunicationStyle != "" {
		out.CommunicationStyle = partial.CommunicationStyle
	}
	if partial.Extra != nil {
		merged := make(map[string]any, len(base.Extra)+len(partial.Extra))
		for k, v := range base.Extra {
			merged[k] = v
		}
		for k, v := range partial.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// #endregion merge-core

// #region merge-aesthetic

// MergeAesthetic returns base with every non-zero field of partial applied.
func MergeAesthetic(base, partial AestheticState) AestheticState {
	out := base
	if partial.ColorPalette != nil {
		out.ColorPalette = partial.ColorPalette
	}
	if partial.Archetype != "" {
		out.Archetype = partial.Archetype
	}
	if partial.StyleSuggestions != nil {
		out.StyleSuggestions = partial.StyleSuggestions
	}
	if partial.AvoidStyles != nil {
		out.AvoidStyles = partial.AvoidStyles
	}
	if partial.Extra != nil {
		merged := make(map[string]any, len(base.Extra)+len(partial.Extra))
		for k, v := range base.Extra {
			merged[k] = v
		}
		for k, v := range partial.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// #endregion merge-aesthetic
