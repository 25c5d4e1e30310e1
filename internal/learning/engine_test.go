package learning

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

func tempStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t *testing.T) (*Engine, *state.Store, identity.IdentityState, *time.Time) {
	t.Helper()
	s := tempStore(t)
	st, err := s.Create("user-1", state.CreateInput{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(s)
	e.now = func() time.Time { return clock }
	return e, s, st, &clock
}

func TestDecayWeightShape(t *testing.T) {
	day := 24 * time.Hour
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1.0},
		{30 * day, 0.5},
		{60 * day, 0.25},
		{300 * day, 0.01}, // floor
	}
	for _, c := range cases {
		if got := DecayWeight(c.age); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("DecayWeight(%v) = %v, want %v", c.age, got, c.want)
		}
	}

	// Monotonically non-increasing in age.
	prev := 2.0
	for d := 0; d <= 400; d += 10 {
		w := DecayWeight(time.Duration(d) * day)
		if w > prev {
			t.Fatalf("decay increased at %d days: %v > %v", d, w, prev)
		}
		prev = w
	}
}

func TestProcessFeedbackRecomputesAllWeights(t *testing.T) {
	e, _, st, clock := newTestEngine(t)
	day := 24 * time.Hour

	if _, err := e.ProcessFeedback(st.ID, Feedback{ContentID: "c1", Rating: identity.RatingPositive}); err != nil {
		t.Fatalf("feedback 1: %v", err)
	}
	*clock = clock.Add(30 * day)
	if _, err := e.ProcessFeedback(st.ID, Feedback{ContentID: "c2", Rating: identity.RatingNegative}); err != nil {
		t.Fatalf("feedback 2: %v", err)
	}
	*clock = clock.Add(30 * day)
	got, err := e.ProcessFeedback(st.ID, Feedback{ContentID: "c3", Rating: identity.RatingPositive})
	if err != nil {
		t.Fatalf("feedback 3: %v", err)
	}

	hist := got.Learning.FeedbackHistory
	if len(hist) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(hist))
	}
	if hist[0].ContentID != "c3" {
		t.Fatalf("expected newest first, got %s", hist[0].ContentID)
	}
	wants := []float64{1.0, 0.5, 0.25}
	for i, want := range wants {
		if math.Abs(hist[i].DecayWeight-want) > 1e-9 {
			t.Fatalf("entry %d weight %v, want %v", i, hist[i].DecayWeight, want)
		}
	}
}

func TestFeedbackHistoryBound(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	var got identity.IdentityState
	var err error
	for i := 0; i < identity.MaxFeedbackHistory+5; i++ {
		got, err = e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("c%d", i), Rating: identity.RatingNeutral})
		if err != nil {
			t.Fatalf("feedback %d: %v", i, err)
		}
	}
	if len(got.Learning.FeedbackHistory) != identity.MaxFeedbackHistory {
		t.Fatalf("expected history bounded to %d, got %d", identity.MaxFeedbackHistory, len(got.Learning.FeedbackHistory))
	}
	if got.Learning.FeedbackHistory[0].ContentID != fmt.Sprintf("c%d", identity.MaxFeedbackHistory+4) {
		t.Fatalf("newest entry wrong: %s", got.Learning.FeedbackHistory[0].ContentID)
	}
}

func TestPositiveFeedbackFoldsPatterns(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	got, err := e.ProcessFeedback(st.ID, Feedback{
		ContentID:   "c1",
		Rating:      identity.RatingPositive,
		ContentText: "I love climbing granite mountains! Climbing is wonderful!",
	})
	if err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	cp := got.Learning.ContentPatterns
	if cp.PreferredLength != LengthShort {
		t.Fatalf("expected short preferred length, got %q", cp.PreferredLength)
	}
	if len(cp.PreferredTone) == 0 {
		t.Fatal("expected detected tones merged")
	}
	found := false
	for _, topic := range cp.FavoriteTopics {
		if topic == "climbing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected climbing in favorite topics, got %v", cp.FavoriteTopics)
	}
	if len(cp.AvoidTopics) != 0 {
		t.Fatalf("positive feedback must not touch avoid topics: %v", cp.AvoidTopics)
	}
}

func TestNegativeFeedbackFillsAvoidTopics(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	got, err := e.ProcessFeedback(st.ID, Feedback{
		ContentID:   "c1",
		Rating:      identity.RatingNegative,
		ContentText: "Too much corporate jargon and buzzword filler about synergy synergy.",
	})
	if err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	cp := got.Learning.ContentPatterns
	if len(cp.AvoidTopics) == 0 {
		t.Fatal("expected avoid topics from negative feedback")
	}
	if len(cp.FavoriteTopics) != 0 {
		t.Fatalf("negative feedback must not touch favorites: %v", cp.FavoriteTopics)
	}
}

func TestNeutralFeedbackOnlyCounts(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	got, err := e.ProcessFeedback(st.ID, Feedback{
		ContentID:   "c1",
		Rating:      identity.RatingNeutral,
		ContentText: "Some wonderful lengthy content about climbing mountains!",
	})
	if err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	cp := got.Learning.ContentPatterns
	if len(cp.PreferredTone) != 0 || len(cp.FavoriteTopics) != 0 || len(cp.AvoidTopics) != 0 {
		t.Fatalf("neutral feedback must not touch patterns: %+v", cp)
	}
	pm := got.Learning.PerformanceMetrics
	if pm.TotalGenerations != 1 || pm.PositiveRatings != 0 || pm.NegativeRatings != 0 {
		t.Fatalf("counters wrong: %+v", pm)
	}
	if pm.AverageScore != 0 {
		t.Fatalf("average must stay unchanged without rated feedback, got %v", pm.AverageScore)
	}
}

func TestAverageScore(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	e.ProcessFeedback(st.ID, Feedback{ContentID: "c1", Rating: identity.RatingPositive})
	e.ProcessFeedback(st.ID, Feedback{ContentID: "c2", Rating: identity.RatingPositive})
	got, _ := e.ProcessFeedback(st.ID, Feedback{ContentID: "c3", Rating: identity.RatingNegative})

	pm := got.Learning.PerformanceMetrics
	if math.Abs(pm.AverageScore-2.0/3.0) > 1e-9 {
		t.Fatalf("expected 2/3, got %v", pm.AverageScore)
	}
	if pm.TotalGenerations != 3 {
		t.Fatalf("expected 3 generations, got %d", pm.TotalGenerations)
	}
}

func TestFeedbackNeverSnapshots(t *testing.T) {
	e, s, st, _ := newTestEngine(t)

	for i := 0; i < 5; i++ {
		e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("c%d", i), Rating: identity.RatingPositive})
	}
	got, _ := s.Get(st.ID)
	if got.CurrentVersion != 1 {
		t.Fatalf("learning writes must not bump version, got %d", got.CurrentVersion)
	}
	snaps, _ := s.ListSnapshots(st.ID, "")
	if len(snaps) != 0 {
		t.Fatalf("learning writes must not snapshot, got %d", len(snaps))
	}
}

func TestConcurrentFeedbackLosesNothing(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("c%d", i), Rating: identity.RatingPositive}); err != nil {
				t.Errorf("feedback %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := e.GetLearningInsights(st.ID)
	if err != nil {
		t.Fatalf("GetLearningInsights: %v", err)
	}
	if got.TotalFeedback != n {
		t.Fatalf("expected %d entries, got %d", n, got.TotalFeedback)
	}
}

func TestInvalidRating(t *testing.T) {
	e, _, st, _ := newTestEngine(t)
	if _, err := e.ProcessFeedback(st.ID, Feedback{ContentID: "c1", Rating: "meh"}); !fault.IsInvalid(err) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestInsightsTrend(t *testing.T) {
	e, _, st, clock := newTestEngine(t)

	// Prior window: 10 negatives, then recent window: 10 positives.
	for i := 0; i < 10; i++ {
		*clock = clock.Add(time.Hour)
		e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("old%d", i), Rating: identity.RatingNegative})
	}
	for i := 0; i < 10; i++ {
		*clock = clock.Add(time.Hour)
		e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("new%d", i), Rating: identity.RatingPositive})
	}

	ins, err := e.GetLearningInsights(st.ID)
	if err != nil {
		t.Fatalf("GetLearningInsights: %v", err)
	}
	if ins.RecentTrend != TrendImproving {
		t.Fatalf("expected improving, got %s", ins.RecentTrend)
	}
	if ins.TotalFeedback != 20 {
		t.Fatalf("expected 20 entries, got %d", ins.TotalFeedback)
	}
	if math.Abs(ins.PositiveRate-0.5) > 1e-9 {
		t.Fatalf("expected positive rate 0.5, got %v", ins.PositiveRate)
	}
}

func TestInsightsTrendDeclining(t *testing.T) {
	e, _, st, clock := newTestEngine(t)

	for i := 0; i < 10; i++ {
		*clock = clock.Add(time.Hour)
		e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("old%d", i), Rating: identity.RatingPositive})
	}
	for i := 0; i < 10; i++ {
		*clock = clock.Add(time.Hour)
		e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("new%d", i), Rating: identity.RatingNegative})
	}

	ins, _ := e.GetLearningInsights(st.ID)
	if ins.RecentTrend != TrendDeclining {
		t.Fatalf("expected declining, got %s", ins.RecentTrend)
	}
}

func TestInsightsTrendNeedsPriorWindow(t *testing.T) {
	e, _, st, _ := newTestEngine(t)

	// 12 entries leave only 2 in the prior window: below the minimum.
	for i := 0; i < 12; i++ {
		e.ProcessFeedback(st.ID, Feedback{ContentID: fmt.Sprintf("c%d", i), Rating: identity.RatingPositive})
	}
	ins, _ := e.GetLearningInsights(st.ID)
	if ins.RecentTrend != TrendStable {
		t.Fatalf("expected stable with thin prior window, got %s", ins.RecentTrend)
	}
}

func TestClearLearningHistory(t *testing.T) {
	e, s, st, _ := newTestEngine(t)

	e.ProcessFeedback(st.ID, Feedback{ContentID: "c1", Rating: identity.RatingPositive, ContentText: "wonderful climbing story!"})
	got, err := e.ClearLearningHistory(st.ID)
	if err != nil {
		t.Fatalf("ClearLearningHistory: %v", err)
	}
	if len(got.Learning.FeedbackHistory) != 0 {
		t.Fatalf("history not cleared: %d", len(got.Learning.FeedbackHistory))
	}
	if got.Learning.PerformanceMetrics.TotalGenerations != 0 {
		t.Fatalf("metrics not reset: %+v", got.Learning.PerformanceMetrics)
	}
	if got.CurrentVersion != 1 {
		t.Fatalf("clear must not snapshot, got version %d", got.CurrentVersion)
	}

	// RefreshDecay on the cleared state is a no-op but must not error.
	if _, err := e.RefreshDecay(st.ID); err != nil {
		t.Fatalf("RefreshDecay: %v", err)
	}
	if _, err := s.Get(st.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
}
