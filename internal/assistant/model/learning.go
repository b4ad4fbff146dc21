package model

import (
	"context"
	"time"
)

// Suggestion types produced by the auto-learning engine.
const (
	SuggestionNewIntent              = "new_intent"
	SuggestionTrainingPhraseAddition = "training_phrase_addition"
	SuggestionQuickResponseCreation  = "quick_response_creation"
)

// QueuedForReview marks a suggestion that confidence alone promoted into the
// human review queue. Only an explicit apply action moves past it.
const QueuedForReview = "queued-for-review"

// UnansweredQuestion aggregates user messages the assistant failed to
// resolve. Rows are never deleted, only incremented.
type UnansweredQuestion struct {
	ID              string  `json:"id"`
	ConfigurationID string  `json:"configuration_id"`
	OriginalText    string  `json:"original_text"`
	NormalizedText  string  `json:"normalized_text"`
	OccurrenceCount int     `json:"occurrence_count"`
	AttemptedIntent string  `json:"attempted_intent,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// FallbackMessage is one turn that degraded to a canned reply.
type FallbackMessage struct {
	ConfigurationID string    `json:"configuration_id"`
	Text            string    `json:"text"`
	AttemptedIntent string    `json:"attempted_intent,omitempty"`
	Confidence      float64   `json:"confidence,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// QuestionCluster groups similar unanswered questions. Derived per analysis
// run, never persisted.
type QuestionCluster struct {
	RepresentativeText string
	MemberTexts        []string
	TotalOccurrences   int
}

// SuggestedIntent is a cluster promoted to an intent candidate.
type SuggestedIntent struct {
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	SampleQuestions []string `json:"sample_questions"`
	Occurrences     int      `json:"occurrences"`
	Confidence      float64  `json:"confidence"`
	RequiresReview  bool     `json:"requires_review"`
}

// Suggestion is a reviewable improvement candidate. High confidence can
// queue it for review but never apply it; only a human action flips
// IsApplied.
type Suggestion struct {
	ID              string         `json:"id"`
	ConfigurationID string         `json:"configuration_id"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Payload         map[string]any `json:"payload,omitempty"`
	Priority        int            `json:"priority"`
	Confidence      float64        `json:"confidence"`
	RequiresReview  bool           `json:"requires_review"`
	IsApplied       bool           `json:"is_applied"`
	AppliedBy       string         `json:"applied_by,omitempty"`
	AppliedAt       *time.Time     `json:"applied_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// QuickResponse is a canned reply persisted when a QuickResponseCreation
// suggestion is applied.
type QuickResponse struct {
	ID              string    `json:"id"`
	ConfigurationID string    `json:"configuration_id"`
	Category        string    `json:"category"`
	Keywords        []string  `json:"keywords"`
	Response        string    `json:"response"`
	CreatedAt       time.Time `json:"created_at"`
}

// AnalysisResult is the outcome of one auto-learning run.
type AnalysisResult struct {
	SuggestedIntents    []SuggestedIntent `json:"suggested_intents"`
	Suggestions         []Suggestion      `json:"suggestions"`
	PendingReviewCount  int               `json:"pending_review_count"`
	EstimatedSavingsUSD float64           `json:"estimated_savings_usd"`
}

// ================ Stores ================

type UnansweredStore interface {
	// RecordOrIncrement is idempotent per (configurationID, normalizedText):
	// repeats increment OccurrenceCount rather than creating new rows.
	RecordOrIncrement(ctx context.Context, configurationID, text, attemptedIntent string, confidence float64) error

	// GetUnprocessed returns up to limit rows ordered by occurrence count
	// descending.
	GetUnprocessed(ctx context.Context, configurationID string, limit int) ([]UnansweredQuestion, error)

	// MarkProcessed flags rows consumed by an analysis run. Idempotent.
	MarkProcessed(ctx context.Context, configurationID string, ids []string) error
}

type FallbackStore interface {
	Record(ctx context.Context, msg FallbackMessage) error
	ListSince(ctx context.Context, configurationID string, since time.Time) ([]FallbackMessage, error)
}

type SuggestionStore interface {
	Save(ctx context.Context, s Suggestion) error
	List(ctx context.Context, configurationID string) ([]Suggestion, error)
	Update(ctx context.Context, s Suggestion) error
}

type QuickResponseStore interface {
	Create(ctx context.Context, qr QuickResponse) error
	List(ctx context.Context, configurationID string) ([]QuickResponse, error)
}
