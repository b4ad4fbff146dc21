package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/simtext"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// SavingsEstimator projects the monthly savings of a number of quick-response
// suggestions. The default is a linear heuristic; replace it for a real cost
// model.
type SavingsEstimator func(quickResponseSuggestions int) float64

// Engine turns unanswered questions and fallback turns into reviewable
// suggestions. It is a best-effort background process: store failures are
// logged and produce partial results, never errors. Confidence can queue a
// suggestion for review but the only path to applying one is an explicit
// human-triggered ApplySuggestion call.
type Engine struct {
	cfg            model.LearningConfig
	unanswered     model.UnansweredStore
	fallbacks      model.FallbackStore
	suggestions    model.SuggestionStore
	quickResponses model.QuickResponseStore
	savings        SavingsEstimator
}

func New(
	cfg model.LearningConfig,
	unanswered model.UnansweredStore,
	fallbacks model.FallbackStore,
	suggestions model.SuggestionStore,
	quickResponses model.QuickResponseStore,
) *Engine {
	return &Engine{
		cfg:            cfg,
		unanswered:     unanswered,
		fallbacks:      fallbacks,
		suggestions:    suggestions,
		quickResponses: quickResponses,
		savings: func(quickResponseSuggestions int) float64 {
			return float64(quickResponseSuggestions) *
				float64(cfg.InteractionsPerMonth) * cfg.CostPerInteraction
		},
	}
}

// SetSavingsEstimator overrides the default savings heuristic.
func (e *Engine) SetSavingsEstimator(fn SavingsEstimator) {
	if fn != nil {
		e.savings = fn
	}
}

// Analyze runs one learning pass for a configuration. The result may be
// partial when a backing store is unreachable; it is never nil.
func (e *Engine) Analyze(ctx context.Context, configID string) *model.AnalysisResult {
	result := &model.AnalysisResult{}

	questions, err := e.unanswered.GetUnprocessed(ctx, configID, e.cfg.BatchSize)
	if err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("Analysis could not load unanswered questions")
		questions = nil
	}

	clusters := clusterQuestions(questions, e.cfg.SimilarityThreshold)
	for _, cluster := range clusters {
		if len(cluster.MemberTexts) < e.cfg.MinClusterSize {
			continue
		}

		confidence := e.cfg.ClusterConfidence
		if len(cluster.MemberTexts) >= e.cfg.LargeClusterSize {
			confidence = e.cfg.LargeClusterConfidence
		}

		intent := model.SuggestedIntent{
			Name:            simtext.IntentName(cluster.RepresentativeText),
			Category:        simtext.ClassifyTopic(cluster.RepresentativeText),
			SampleQuestions: sampleTexts(cluster.MemberTexts, 5),
			Occurrences:     cluster.TotalOccurrences,
			Confidence:      confidence,
			RequiresReview:  true,
		}
		result.SuggestedIntents = append(result.SuggestedIntents, intent)

		suggestion := model.Suggestion{
			ID:              uuid.NewString(),
			ConfigurationID: configID,
			Type:            model.SuggestionNewIntent,
			Title:           fmt.Sprintf("New intent candidate: %s", intent.Name),
			Description: fmt.Sprintf("%d similar unanswered questions (asked %d times) cluster around %q.",
				len(cluster.MemberTexts), cluster.TotalOccurrences, cluster.RepresentativeText),
			Payload: map[string]any{
				"intent_name":      intent.Name,
				"category":         intent.Category,
				"sample_questions": intent.SampleQuestions,
			},
			Priority:       cluster.TotalOccurrences,
			Confidence:     confidence,
			RequiresReview: true,
			CreatedAt:      time.Now().UTC(),
		}
		e.saveSuggestion(ctx, &suggestion, result)
	}

	e.analyzeFallbacks(ctx, configID, result)

	if ids := questionIDs(questions); len(ids) > 0 {
		if err := e.unanswered.MarkProcessed(ctx, configID, ids); err != nil {
			logx.Error().Err(err).Str("config_id", configID).Msg("Failed to mark questions processed")
		}
	}

	result.PendingReviewCount = e.pendingReviewCount(ctx, configID)

	quickResponseCount := 0
	for _, s := range result.Suggestions {
		if s.Type == model.SuggestionQuickResponseCreation {
			quickResponseCount++
		}
	}
	result.EstimatedSavingsUSD = e.savings(quickResponseCount)

	logx.Info().
		Str("config_id", configID).
		Int("clusters", len(clusters)).
		Int("suggested_intents", len(result.SuggestedIntents)).
		Int("suggestions", len(result.Suggestions)).
		Msg("Learning analysis complete")

	return result
}

// analyzeFallbacks buckets recent fallback turns by topic and proposes a
// quick response for the busy buckets.
func (e *Engine) analyzeFallbacks(ctx context.Context, configID string, result *model.AnalysisResult) {
	since := time.Now().AddDate(0, 0, -e.cfg.FallbackWindowDays)
	messages, err := e.fallbacks.ListSince(ctx, configID, since)
	if err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("Analysis could not load fallback messages")
		return
	}

	buckets := map[string][]string{}
	for _, msg := range messages {
		cat := simtext.ClassifyTopic(msg.Text)
		buckets[cat] = append(buckets[cat], msg.Text)
	}

	for _, cat := range simtext.Categories() {
		texts := buckets[cat]
		if len(texts) < e.cfg.FallbackBucketMin {
			continue
		}

		keywords := simtext.TopKeywords(texts, 5)
		suggestion := model.Suggestion{
			ID:              uuid.NewString(),
			ConfigurationID: configID,
			Type:            model.SuggestionQuickResponseCreation,
			Title:           fmt.Sprintf("Quick response for %s questions", cat),
			Description: fmt.Sprintf("%d recent conversations fell back on %s topics. Frequent keywords: %v.",
				len(texts), cat, keywords),
			Payload: map[string]any{
				"category": cat,
				"keywords": keywords,
				"response": fmt.Sprintf("Thanks for asking about %s. One of our advisors will get back to you with the details shortly.", cat),
			},
			Priority:       len(texts),
			Confidence:     e.cfg.QuickResponseConfidence,
			RequiresReview: true,
			CreatedAt:      time.Now().UTC(),
		}
		e.saveSuggestion(ctx, &suggestion, result)
	}
}

func (e *Engine) saveSuggestion(ctx context.Context, s *model.Suggestion, result *model.AnalysisResult) {
	if err := e.suggestions.Save(ctx, *s); err != nil {
		logx.Error().Err(err).Str("config_id", s.ConfigurationID).Str("type", s.Type).Msg("Failed to save suggestion")
		return
	}
	result.Suggestions = append(result.Suggestions, *s)
}

func (e *Engine) pendingReviewCount(ctx context.Context, configID string) int {
	all, err := e.suggestions.List(ctx, configID)
	if err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("Failed to list suggestions for review count")
		return 0
	}
	count := 0
	for _, s := range all {
		if s.RequiresReview && !s.IsApplied {
			count++
		}
	}
	return count
}

// AutoApplyHighConfidence queues suggestions at or above minConfidence for
// human review and returns how many it queued. Despite the name it never
// applies anything: IsApplied stays false for every confidence value. This
// one-way gate is deliberate.
func (e *Engine) AutoApplyHighConfidence(ctx context.Context, configID string, minConfidence float64) int {
	if minConfidence <= 0 {
		minConfidence = e.cfg.ReviewThreshold
	}

	all, err := e.suggestions.List(ctx, configID)
	if err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("Failed to list suggestions for queueing")
		return 0
	}

	queued := 0
	for _, s := range all {
		if s.Confidence < minConfidence || s.IsApplied || s.AppliedBy == model.QueuedForReview {
			continue
		}
		s.RequiresReview = true
		s.IsApplied = false
		s.AppliedBy = model.QueuedForReview
		if err := e.suggestions.Update(ctx, s); err != nil {
			logx.Error().Err(err).Str("suggestion_id", s.ID).Msg("Failed to queue suggestion for review")
			continue
		}
		queued++
	}
	return queued
}

// ApplySuggestion executes a human-approved suggestion. For quick-response
// suggestions it persists exactly one quick-response record; for intent and
// training-phrase suggestions it only records the decision. Returns false
// when the suggestion cannot be applied.
func (e *Engine) ApplySuggestion(ctx context.Context, s model.Suggestion) bool {
	if s.IsApplied {
		return false
	}

	switch s.Type {
	case model.SuggestionQuickResponseCreation:
		qr, ok := quickResponseFromPayload(s)
		if !ok {
			logx.Warn().Str("suggestion_id", s.ID).Msg("Quick response payload is malformed, not applying")
			return false
		}
		if err := e.quickResponses.Create(ctx, qr); err != nil {
			logx.Error().Err(err).Str("suggestion_id", s.ID).Msg("Failed to create quick response")
			return false
		}
	case model.SuggestionNewIntent, model.SuggestionTrainingPhraseAddition:
		// decision only; no external system is mutated automatically
	default:
		logx.Warn().Str("suggestion_id", s.ID).Str("type", s.Type).Msg("Unknown suggestion type, not applying")
		return false
	}

	now := time.Now().UTC()
	s.IsApplied = true
	s.AppliedAt = &now
	if s.AppliedBy == "" || s.AppliedBy == model.QueuedForReview {
		s.AppliedBy = "human"
	}
	if err := e.suggestions.Update(ctx, s); err != nil {
		logx.Error().Err(err).Str("suggestion_id", s.ID).Msg("Failed to record applied suggestion")
		return false
	}
	return true
}

// RecordFallback stores one fallback turn for later analysis. The turn is
// written to both feeds: the fallback event store for quick-response
// bucketing and the unanswered store so the question can seed a cluster.
func (e *Engine) RecordFallback(ctx context.Context, configID, userMessage, attemptedIntent string, confidence float64) error {
	if err := e.unanswered.RecordOrIncrement(ctx, configID, userMessage, attemptedIntent, confidence); err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("Failed to record fallback as unanswered")
	}
	return e.fallbacks.Record(ctx, model.FallbackMessage{
		ConfigurationID: configID,
		Text:            userMessage,
		AttemptedIntent: attemptedIntent,
		Confidence:      confidence,
		OccurredAt:      time.Now().UTC(),
	})
}

func quickResponseFromPayload(s model.Suggestion) (model.QuickResponse, bool) {
	category, _ := s.Payload["category"].(string)
	response, _ := s.Payload["response"].(string)
	if category == "" || response == "" {
		return model.QuickResponse{}, false
	}

	qr := model.QuickResponse{
		ConfigurationID: s.ConfigurationID,
		Category:        category,
		Response:        response,
	}
	switch kw := s.Payload["keywords"].(type) {
	case []string:
		qr.Keywords = kw
	case []any:
		for _, k := range kw {
			if ks, ok := k.(string); ok {
				qr.Keywords = append(qr.Keywords, ks)
			}
		}
	}
	return qr, true
}

func sampleTexts(texts []string, max int) []string {
	if len(texts) <= max {
		return texts
	}
	return texts[:max]
}

func questionIDs(questions []model.UnansweredQuestion) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		if q.ID != "" {
			ids = append(ids, q.ID)
		}
	}
	return ids
}
