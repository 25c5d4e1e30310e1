package identity

// #region completion-score

// completionWeights assigns each core field its share of the 0-100 score.
// Scalar fields count when non-empty; list fields when they hold at least
// one entry.
var completionWeights = []struct {
	weight float64
	filled func(CoreAttributes) bool
}{
	{15, func(c CoreAttributes) bool { return c.Name != "" }},
	{5, func(c CoreAttributes) bool { return c.Age != 0 }},
	{10, func(c CoreAttributes) bool { return c.Location != "" }},
	{10, func(c CoreAttributes) bool { return c.Occupation != "" }},
	{15, func(c CoreAttributes) bool { return len(c.Interests) > 0 }},
	{10, func(c CoreAttributes) bool { return len(c.Values) > 0 }},
	{10, func(c CoreAttributes) bool { return len(c.Personality) > 0 }},
	{10, func(c CoreAttributes) bool { return len(c.Goals) > 0 }},
	{5, func(c CoreAttributes) bool { return len(c.Quirks) > 0 }},
	{10, func(c CoreAttributes) bool { return c.CommunicationStyle != "" }},
}

// CompletionScore returns a weighted 0-100 measure of how many core
// attribute fields are filled in.
func CompletionScore(c CoreAttributes) float64 {
	var score float64
	for _, w := range completionWeights {
		if w.filled(c) {
			score += w.weight
		}
	}
	return score
}

// #endregion completion-score
