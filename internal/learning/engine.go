// Package learning folds noisy feedback signals into stable preference
// summaries with exponentially decayed weights.
package learning

import (
	"log"
	"math"
	"time"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/metrics"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #region decay-constants

const (
	// decayHalfLifeDays halves an entry's influence every 30 days.
	decayHalfLifeDays = 30.0
	// decayFloor keeps old entries faintly visible instead of vanishing.
	decayFloor = 0.01
	decayCeil  = 1.0

	maxPreferredTones = 10
	maxTopics         = 20

	trendWindow   = 10
	trendMinPrior = 5
	trendSwing    = 0.1
)

// #endregion decay-constants

// #region engine

// Engine consumes feedback events and updates decayed preference
// aggregates inside the identity document. Learning writes go through
// the store's locked learning mutation and never create version history.
type Engine struct {
	store *state.Store
	now   func() time.Time
}

// NewEngine creates an Engine using the wall clock.
func NewEngine(store *state.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// #endregion engine

// #region feedback

// Feedback is one caller-supplied feedback event. ContentText optionally
// carries the raw generated content for heuristic analysis.
type Feedback struct {
	ContentID   string
	ContentType string
	Rating      identity.Rating
	Comment     string
	ContentText string
}

// ProcessFeedback front-inserts the entry, truncates history to the bound,
// recomputes decay weights for every remaining entry, folds content
// heuristics into the patterns, and updates the performance counters.
func (e *Engine) ProcessFeedback(stateID string, fb Feedback) (identity.IdentityState, error) {
	switch fb.Rating {
	case identity.RatingPositive, identity.RatingNegative, identity.RatingNeutral:
	default:
		return identity.IdentityState{}, fault.Invalid("unknown rating %q", fb.Rating)
	}

	// The fold runs inside the store's per-state lock so concurrent
	// feedback cannot lose entries.
	st, err := e.store.MutateLearningState(stateID, func(current identity.IdentityState) (identity.LearningState, error) {
		now := e.now().UTC()
		ls := current.Learning

		entry := identity.FeedbackEntry{
			ContentID:   fb.ContentID,
			ContentType: fb.ContentType,
			Rating:      fb.Rating,
			Comment:     fb.Comment,
			Timestamp:   now,
			DecayWeight: decayCeil,
		}
		ls.FeedbackHistory = append([]identity.FeedbackEntry{entry}, ls.FeedbackHistory...)
		if len(ls.FeedbackHistory) > identity.MaxFeedbackHistory {
			ls.FeedbackHistory = ls.FeedbackHistory[:identity.MaxFeedbackHistory]
		}
		recomputeDecay(ls.FeedbackHistory, now)

		if fb.ContentText != "" {
			e.foldContentPatterns(&ls, fb.Rating, fb.ContentText)
		}

		ls.PerformanceMetrics.TotalGenerations++
		switch fb.Rating {
		case identity.RatingPositive:
			ls.PerformanceMetrics.PositiveRatings++
		case identity.RatingNegative:
			ls.PerformanceMetrics.NegativeRatings++
		}
		if rated := ls.PerformanceMetrics.PositiveRatings + ls.PerformanceMetrics.NegativeRatings; rated > 0 {
			ls.PerformanceMetrics.AverageScore = float64(ls.PerformanceMetrics.PositiveRatings) / float64(rated)
		}
		ls.LastLearnedAt = now
		return ls, nil
	})
	if err != nil {
		return identity.IdentityState{}, err
	}

	metrics.FeedbackProcessed.WithLabelValues(string(fb.Rating)).Inc()
	log.Printf("[LEARN] state=%s rating=%s history=%d avg=%.2f",
		stateID, fb.Rating, len(st.Learning.FeedbackHistory), st.Learning.PerformanceMetrics.AverageScore)
	return st, nil
}

// foldContentPatterns merges heuristic analysis of the content text into
// the learned patterns. Neutral feedback touches only counters.
func (e *Engine) foldContentPatterns(ls *identity.LearningState, rating identity.Rating, text string) {
	keywords := ExtractKeywords(text)
	switch rating {
	case identity.RatingPositive:
		ls.ContentPatterns.PreferredTone = mergeCapped(ls.ContentPatterns.PreferredTone, DetectTones(text), maxPreferredTones)
		ls.ContentPatterns.FavoriteTopics = mergeCapped(ls.ContentPatterns.FavoriteTopics, keywords, maxTopics)
		ls.ContentPatterns.PreferredLength = LengthBucket(text)
	case identity.RatingNegative:
		ls.ContentPatterns.AvoidTopics = mergeCapped(ls.ContentPatterns.AvoidTopics, keywords, maxTopics)
	}
}

// #endregion feedback

// #region decay

// DecayWeight computes clamp(2^(-ageDays/30), 0.01, 1.0).
func DecayWeight(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	w := math.Exp2(-days / decayHalfLifeDays)
	if w < decayFloor {
		return decayFloor
	}
	if w > decayCeil {
		return decayCeil
	}
	return w
}

// recomputeDecay refreshes every entry's weight against now. Older entries
// keep losing influence on each pass, not just when they are inserted.
func recomputeDecay(entries []identity.FeedbackEntry, now time.Time) {
	for i := range entries {
		entries[i].DecayWeight = DecayWeight(now.Sub(entries[i].Timestamp))
	}
}

// RefreshDecay recomputes decay weights for the state's whole history
// without recording new feedback. Run on a schedule so quiet users' old
// signals still fade.
func (e *Engine) RefreshDecay(stateID string) (identity.IdentityState, error) {
	return e.store.MutateLearningState(stateID, func(current identity.IdentityState) (identity.LearningState, error) {
		ls := current.Learning
		recomputeDecay(ls.FeedbackHistory, e.now().UTC())
		return ls, nil
	})
}

// #endregion decay

// #region insights

// Trend labels for Insights.RecentTrend.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Insights summarizes the learned preferences for callers.
type Insights struct {
	TotalFeedback  int
	PositiveRate   float64
	PreferredTones []string
	FavoriteTopics []string
	AvoidTopics    []string
	RecentTrend    string
}

// GetLearningInsights aggregates the current learning state. RecentTrend
// compares the positive rate of the newest trendWindow entries against the
// prior window; the prior window needs at least trendMinPrior entries and
// the rates must swing by trendSwing to leave stable.
func (e *Engine) GetLearningInsights(stateID string) (Insights, error) {
	st, err := e.store.Get(stateID)
	if err != nil {
		return Insights{}, err
	}
	ls := st.Learning

	ins := Insights{
		TotalFeedback:  len(ls.FeedbackHistory),
		PreferredTones: ls.ContentPatterns.PreferredTone,
		FavoriteTopics: ls.ContentPatterns.FavoriteTopics,
		AvoidTopics:    ls.ContentPatterns.AvoidTopics,
		RecentTrend:    TrendStable,
	}
	if rated := ls.PerformanceMetrics.PositiveRatings + ls.PerformanceMetrics.NegativeRatings; rated > 0 {
		ins.PositiveRate = float64(ls.PerformanceMetrics.PositiveRatings) / float64(rated)
	}

	history := ls.FeedbackHistory // newest first
	if len(history) > trendWindow {
		recent := history[:trendWindow]
		prior := history[trendWindow:]
		if len(prior) > trendWindow {
			prior = prior[:trendWindow]
		}
		if len(prior) >= trendMinPrior {
			diff := positiveRate(recent) - positiveRate(prior)
			switch {
			case diff >= trendSwing:
				ins.RecentTrend = TrendImproving
			case diff <= -trendSwing:
				ins.RecentTrend = TrendDeclining
			}
		}
	}
	return ins, nil
}

func positiveRate(entries []identity.FeedbackEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var pos int
	for _, e := range entries {
		if e.Rating == identity.RatingPositive {
			pos++
		}
	}
	return float64(pos) / float64(len(entries))
}

// #endregion insights

// #region clear

// ClearLearningHistory resets the learning section to the creation-time
// default shape. No snapshot is taken.
func (e *Engine) ClearLearningHistory(stateID string) (identity.IdentityState, error) {
	return e.store.UpdateLearningState(stateID, identity.DefaultLearningState())
}

// #endregion clear
