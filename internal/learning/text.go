package learning

import (
	"sort"
	"strings"
)

// Heuristic content analysis: tone markers from punctuation and lexical
// cues, a coarse length bucket, and high-frequency keywords.

// #region length-buckets

// Length buckets by word count.
const (
	LengthShort  = "short"  // < 50 words
	LengthMedium = "medium" // < 200 words
	LengthLong   = "long"
)

// LengthBucket classifies text by word count.
func LengthBucket(text string) string {
	n := len(strings.Fields(text))
	switch {
	case n < 50:
		return LengthShort
	case n < 200:
		return LengthMedium
	default:
		return LengthLong
	}
}

// #endregion length-buckets

// #region tones

// toneLexicons maps a tone name to the cue words that suggest it.
var toneLexicons = []struct {
	tone string
	cues []string
}{
	{"casual", []string{"lol", "haha", "btw", "gonna", "kinda", "yeah"}},
	{"formal", []string{"furthermore", "moreover", "therefore", "regards", "accordingly"}},
	{"warm", []string{"love", "excited", "wonderful", "amazing", "grateful"}},
	{"confident", []string{"definitely", "certainly", "absolutely", "proven"}},
	{"reflective", []string{"perhaps", "wonder", "realized", "learned", "noticed"}},
}

// DetectTones extracts tone markers from punctuation and lexical cues.
// The result preserves a fixed detection order for determinism.
func DetectTones(text string) []string {
	var tones []string
	lower := strings.ToLower(text)

	if strings.Count(text, "!") >= 2 {
		tones = append(tones, "enthusiastic")
	}
	if strings.Contains(text, "?") {
		tones = append(tones, "inquisitive")
	}
	for _, lex := range toneLexicons {
		for _, cue := range lex.cues {
			if strings.Contains(lower, cue) {
				tones = append(tones, lex.tone)
				break
			}
		}
	}
	return tones
}

// #endregion tones

// #region keywords

// maxKeywords bounds the keywords extracted per content.
const maxKeywords = 5

// minKeywordLen filters short filler words.
const minKeywordLen = 5

// ExtractKeywords returns up to maxKeywords non-stopword words of at least
// minKeywordLen letters, ordered by frequency (ties alphabetical).
func ExtractKeywords(text string) []string {
	counts := make(map[string]int)
	for _, w := range words(text) {
		if len(w) < minKeywordLen || stopwords[w] {
			continue
		}
		counts[w]++
	}

	keys := make([]string, 0, len(counts))
	for w := range counts {
		keys = append(keys, w)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if len(keys) > maxKeywords {
		keys = keys[:maxKeywords]
	}
	return keys
}

// #endregion keywords

// #region merge

// mergeCapped appends the missing items and drops from the front (oldest)
// when the result exceeds limit.
func mergeCapped(base, add []string, limit int) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// #endregion merge
