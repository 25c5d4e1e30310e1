// Package identity defines the typed identity document: the three JSON
// sections, personas, snapshots, and feedback entries.
package identity

import "time"

// EmbeddingDim is the fixed vector length produced by the embedding provider.
const EmbeddingDim = 1536

// #region sync-status

// SyncStatus tracks the state row's relationship to the orchestrator.
type SyncStatus string

const (
	SyncIdle       SyncStatus = "idle"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

// #endregion sync-status

// #region core-attributes

// CoreAttributes holds the user-declared identity fields. Extra carries
// forward-compatible extension fields that have no typed slot yet.
type CoreAttributes struct {
	Name               string         `json:"name,omitempty"`
	Age                int            `json:"age,omitempty"`
	Location           string         `json:"location,omitempty"`
	Occupation         string         `json:"occupation,omitempty"`
	Interests          []string       `json:"interests,omitempty"`
	Values             []string       `json:"values,omitempty"`
	Personality        []string       `json:"personality,omitempty"`
	Goals              []string       `json:"goals,omitempty"`
	Quirks             []string       `json:"quirks,omitempty"`
	CommunicationStyle string         `json:"communicationStyle,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// #endregion core-attributes

// #region aesthetic-state

// AestheticState holds derived styling recommendations. Sections are
// overwritten wholesale on update, never deep-merged by the store.
type AestheticState struct {
	ColorPalette     []string       `json:"colorPalette,omitempty"`
	Archetype        string         `json:"archetype,omitempty"`
	StyleSuggestions []string       `json:"styleSuggestions,omitempty"`
	AvoidStyles      []string       `json:"avoidStyles,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// #endregion aesthetic-state

// #region learning-state

// Rating classifies a feedback entry.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
)

// FeedbackEntry is one recorded feedback signal. DecayWeight is recomputed
// for every stored entry each time new feedback is processed.
type FeedbackEntry struct {
	ContentID   string    `json:"contentId"`
	ContentType string    `json:"contentType"`
	Rating      Rating    `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DecayWeight float64   `json:"decayWeight"`
}

// ContentPatterns aggregates learned content preferences.
type ContentPatterns struct {
	PreferredLength string   `json:"preferredLength,omitempty"`
	PreferredTone   []string `json:"preferredTone,omitempty"`
	AvoidTopics     []string `json:"avoidTopics,omitempty"`
	FavoriteTopics  []string `json:"favoriteTopics,omitempty"`
}

// PerformanceMetrics counts rated generations.
type PerformanceMetrics struct {
	TotalGenerations int     `json:"totalGenerations"`
	PositiveRatings  int     `json:"positiveRatings"`
	NegativeRatings  int     `json:"negativeRatings"`
	AverageScore     float64 `json:"averageScore"`
}

// LearningState holds feedback history (newest first, bounded to
// MaxFeedbackHistory) and the aggregates derived from it.
type LearningState struct {
	FeedbackHistory    []FeedbackEntry    `json:"feedbackHistory,omitempty"`
	ContentPatterns    ContentPatterns    `json:"contentPatterns"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	LastLearnedAt      time.Time          `json:"lastLearnedAt,omitempty"`
}

// MaxFeedbackHistory bounds the feedback list.
const MaxFeedbackHistory = 100

// #endregion learning-state

// #region identity-state

// IdentityState is the single living document of a user's attributes,
// styling, and learned preferences. Owned exclusively by the state store.
type IdentityState struct {
	ID                string
	UserID            string
	Core              CoreAttributes
	Aesthetic         AestheticState
	Learning          LearningState
	IdentityEmbedding []float32 // nil when not yet computed
	ContentEmbedding  []float32
	SyncStatus        SyncStatus
	CurrentVersion    int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// #endregion identity-state

// #region version-snapshot

// VersionType distinguishes automatic pre-mutation snapshots from
// caller-requested ones.
type VersionType string

const (
	VersionAuto   VersionType = "auto"
	VersionManual VersionType = "manual"
)

// MaxAutoSnapshots bounds retained auto snapshots per state (oldest pruned).
const MaxAutoSnapshots = 5

// VersionSnapshot is an immutable historical copy of an identity state,
// taken just before a change. VersionNumber is the parent's counter value
// before the triggering mutation.
type VersionSnapshot struct {
	ID                string
	StateID           string
	VersionNumber     int
	VersionType       VersionType
	SnapshotName      string
	Core              CoreAttributes
	Aesthetic         AestheticState
	Learning          LearningState
	IdentityEmbedding []float32
	ContentEmbedding  []float32
	CreatedAt         time.Time
}

// #endregion version-snapshot

// #region persona

// ContentRules bound what a persona lets generators produce.
type ContentRules struct {
	MinLength      int      `json:"minLength,omitempty"`
	MaxLength      int      `json:"maxLength,omitempty"`
	Formality      string   `json:"formality,omitempty"`
	AllowEmoji     bool     `json:"allowEmoji"`
	ExcludedTopics []string `json:"excludedTopics,omitempty"`
}

// Persona is a named lens adjusting tone, style, and content rules on top
// of the identity state.
type Persona struct {
	ID           string
	StateID      string
	Name         string
	ToneWeights  map[string]float64
	StyleMarkers []string
	Rules        ContentRules
	IsActive     bool
	CreatedAt    time.Time
}

// #endregion persona

// #region defaults

// DefaultLearningState returns the zeroed learning shape used at creation
// and by clearLearningHistory.
func DefaultLearningState() LearningState {
	return LearningState{
		FeedbackHistory:    nil,
		ContentPatterns:    ContentPatterns{},
		PerformanceMetrics: PerformanceMetrics{},
	}
}

// DefaultPersonas returns the fixed set of four personas seeded when an
// identity state is created. None starts active.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:         "professional",
			ToneWeights:  map[string]float64{"formal": 0.8, "confident": 0.7, "warm": 0.3},
			StyleMarkers: []string{"concise", "achievement-oriented"},
			Rules:        ContentRules{MinLength: 50, MaxLength: 600, Formality: "formal", AllowEmoji: false},
		},
		{
			Name:         "dating",
			ToneWeights:  map[string]float64{"playful": 0.7, "warm": 0.8, "confident": 0.5},
			StyleMarkers: []string{"light", "personal"},
			Rules:        ContentRules{MinLength: 30, MaxLength: 300, Formality: "casual", AllowEmoji: true, ExcludedTopics: []string{"work grievances", "politics"}},
		},
		{
			Name:         "social",
			ToneWeights:  map[string]float64{"casual": 0.8, "playful": 0.6, "warm": 0.6},
			StyleMarkers: []string{"conversational", "expressive"},
			Rules:        ContentRules{MaxLength: 280, Formality: "casual", AllowEmoji: true},
		},
		{
			Name:         "private",
			ToneWeights:  map[string]float64{"reflective": 0.8, "warm": 0.5},
			StyleMarkers: []string{"unfiltered", "first-person"},
			Rules:        ContentRules{Formality: "neutral", AllowEmoji: true},
		},
	}
}

// #endregion defaults
