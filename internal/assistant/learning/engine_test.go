package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorchat-core/server/internal/assistant/model"
)

// ================ Fakes ================

type fakeUnanswered struct {
	questions []model.UnansweredQuestion
	processed []string
	recorded  []model.UnansweredQuestion
	failGet   bool
}

func (f *fakeUnanswered) RecordOrIncrement(_ context.Context, configID, text, intent string, confidence float64) error {
	f.recorded = append(f.recorded, model.UnansweredQuestion{
		ConfigurationID: configID,
		OriginalText:    text,
		AttemptedIntent: intent,
		Confidence:      confidence,
	})
	return nil
}

func (f *fakeUnanswered) GetUnprocessed(_ context.Context, _ string, limit int) ([]model.UnansweredQuestion, error) {
	if f.failGet {
		return nil, errors.New("store unreachable")
	}
	if len(f.questions) > limit {
		return f.questions[:limit], nil
	}
	return f.questions, nil
}

func (f *fakeUnanswered) MarkProcessed(_ context.Context, _ string, ids []string) error {
	f.processed = append(f.processed, ids...)
	return nil
}

type fakeFallbacks struct {
	messages []model.FallbackMessage
}

func (f *fakeFallbacks) Record(_ context.Context, msg model.FallbackMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeFallbacks) ListSince(_ context.Context, _ string, since time.Time) ([]model.FallbackMessage, error) {
	var out []model.FallbackMessage
	for _, m := range f.messages {
		if m.OccurredAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeSuggestions struct {
	byID map[string]model.Suggestion
}

func newFakeSuggestions() *fakeSuggestions {
	return &fakeSuggestions{byID: map[string]model.Suggestion{}}
}

func (f *fakeSuggestions) Save(_ context.Context, s model.Suggestion) error {
	f.byID[s.ID] = s
	return nil
}

func (f *fakeSuggestions) List(context.Context, string) ([]model.Suggestion, error) {
	out := make([]model.Suggestion, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSuggestions) Update(_ context.Context, s model.Suggestion) error {
	f.byID[s.ID] = s
	return nil
}

type fakeQuickResponses struct {
	created []model.QuickResponse
	fail    bool
}

func (f *fakeQuickResponses) Create(_ context.Context, qr model.QuickResponse) error {
	if f.fail {
		return errors.New("store unreachable")
	}
	f.created = append(f.created, qr)
	return nil
}

func (f *fakeQuickResponses) List(context.Context, string) ([]model.QuickResponse, error) {
	return f.created, nil
}

// ================ Helpers ================

func testLearningConfig() model.LearningConfig {
	return model.LearningConfig{
		SimilarityThreshold:     0.6,
		MinClusterSize:          3,
		LargeClusterSize:        5,
		BatchSize:               100,
		FallbackWindowDays:      7,
		FallbackBucketMin:       5,
		ClusterConfidence:       0.6,
		LargeClusterConfidence:  0.8,
		QuickResponseConfidence: 0.7,
		ReviewThreshold:         0.85,
		InteractionsPerMonth:    50,
		CostPerInteraction:      0.002,
	}
}

func question(text string, count int) model.UnansweredQuestion {
	return model.UnansweredQuestion{
		ID:              "q-" + text,
		ConfigurationID: "cfg-1",
		OriginalText:    text,
		NormalizedText:  text,
		OccurrenceCount: count,
	}
}

func newEngine(ua *fakeUnanswered, fb *fakeFallbacks, sg *fakeSuggestions, qr *fakeQuickResponses) *Engine {
	return New(testLearningConfig(), ua, fb, sg, qr)
}

// ================ Tests ================

func TestClusterQuestionsGreedy(t *testing.T) {
	questions := []model.UnansweredQuestion{
		question("does the atlas have extended warranty coverage", 4),
		question("is extended warranty coverage available for the atlas", 2),
		question("what colors does the compact sedan come in", 1),
	}

	clusters := clusterQuestions(questions, 0.6)

	require.Len(t, clusters, 2)
	assert.Equal(t, "does the atlas have extended warranty coverage", clusters[0].RepresentativeText)
	assert.Len(t, clusters[0].MemberTexts, 2)
	assert.Equal(t, 6, clusters[0].TotalOccurrences)
	assert.Len(t, clusters[1].MemberTexts, 1)
}

func TestClusterQuestionsIdempotent(t *testing.T) {
	questions := []model.UnansweredQuestion{
		question("how much does the atlas cost", 1),
		question("how much does the atlas cost today", 1),
		question("do you offer financing plans", 1),
	}

	first := clusterQuestions(questions, 0.6)
	second := clusterQuestions(questions, 0.6)
	assert.Equal(t, first, second)
}

func TestAnalyzeSuggestsIntentForCluster(t *testing.T) {
	ua := &fakeUnanswered{questions: []model.UnansweredQuestion{
		question("does the atlas have extended warranty coverage", 3),
		question("is extended warranty coverage included with the atlas", 2),
		question("what extended warranty coverage does the atlas have", 1),
	}}
	sg := newFakeSuggestions()
	e := newEngine(ua, &fakeFallbacks{}, sg, &fakeQuickResponses{})

	result := e.Analyze(context.Background(), "cfg-1")

	require.Len(t, result.SuggestedIntents, 1)
	intent := result.SuggestedIntents[0]
	assert.Equal(t, "warranty", intent.Category)
	assert.Equal(t, 6, intent.Occurrences)
	assert.InDelta(t, 0.6, intent.Confidence, 1e-9)
	assert.True(t, intent.RequiresReview)

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, model.SuggestionNewIntent, result.Suggestions[0].Type)
	assert.False(t, result.Suggestions[0].IsApplied)

	// Consumed questions are flagged so the next run skips them.
	assert.Len(t, ua.processed, 3)
}

func TestAnalyzeSmallClusterProducesNothing(t *testing.T) {
	ua := &fakeUnanswered{questions: []model.UnansweredQuestion{
		question("does the atlas have extended warranty coverage", 1),
		question("is extended warranty coverage included with the atlas", 1),
	}}
	e := newEngine(ua, &fakeFallbacks{}, newFakeSuggestions(), &fakeQuickResponses{})

	result := e.Analyze(context.Background(), "cfg-1")

	assert.Empty(t, result.SuggestedIntents)
	assert.Empty(t, result.Suggestions)
}

func TestAnalyzeLargeClusterGetsHigherConfidence(t *testing.T) {
	texts := []string{
		"does the atlas have extended warranty coverage",
		"is extended warranty coverage included with the atlas",
		"what extended warranty coverage does the atlas have",
		"does the atlas include extended warranty coverage",
		"the atlas extended warranty coverage details",
	}
	ua := &fakeUnanswered{}
	for _, txt := range texts {
		ua.questions = append(ua.questions, question(txt, 1))
	}
	e := newEngine(ua, &fakeFallbacks{}, newFakeSuggestions(), &fakeQuickResponses{})

	result := e.Analyze(context.Background(), "cfg-1")

	require.Len(t, result.SuggestedIntents, 1)
	assert.InDelta(t, 0.8, result.SuggestedIntents[0].Confidence, 1e-9)
}

func TestAnalyzeFallbackBucketsProposeQuickResponse(t *testing.T) {
	fb := &fakeFallbacks{}
	now := time.Now()
	for i := 0; i < 5; i++ {
		fb.messages = append(fb.messages, model.FallbackMessage{
			ConfigurationID: "cfg-1",
			Text:            "what is the price of the compact sedan",
			OccurredAt:      now.Add(-time.Hour),
		})
	}
	// Two contact questions are below the bucket minimum.
	fb.messages = append(fb.messages,
		model.FallbackMessage{ConfigurationID: "cfg-1", Text: "can I call an advisor", OccurredAt: now.Add(-time.Hour)},
		model.FallbackMessage{ConfigurationID: "cfg-1", Text: "contact a human", OccurredAt: now.Add(-time.Hour)},
	)

	e := newEngine(&fakeUnanswered{}, fb, newFakeSuggestions(), &fakeQuickResponses{})
	result := e.Analyze(context.Background(), "cfg-1")

	require.Len(t, result.Suggestions, 1)
	s := result.Suggestions[0]
	assert.Equal(t, model.SuggestionQuickResponseCreation, s.Type)
	assert.Equal(t, "pricing", s.Payload["category"])
	assert.InDelta(t, 0.7, s.Confidence, 1e-9)
	assert.True(t, s.RequiresReview)
	assert.Contains(t, s.Payload["keywords"], "price")

	// One quick response, 50 interactions/month at $0.002 each.
	assert.InDelta(t, 0.1, result.EstimatedSavingsUSD, 1e-9)
}

func TestRecordFallbackFeedsBothStores(t *testing.T) {
	ua := &fakeUnanswered{}
	fb := &fakeFallbacks{}
	e := newEngine(ua, fb, newFakeSuggestions(), &fakeQuickResponses{})

	err := e.RecordFallback(context.Background(), "cfg-1", "do you take trade-ins", "trade_in", 0.3)
	require.NoError(t, err)

	require.Len(t, fb.messages, 1)
	assert.Equal(t, "do you take trade-ins", fb.messages[0].Text)
	assert.Equal(t, "trade_in", fb.messages[0].AttemptedIntent)

	// The same turn enters the unanswered feed so it can seed a cluster.
	require.Len(t, ua.recorded, 1)
	assert.Equal(t, "cfg-1", ua.recorded[0].ConfigurationID)
	assert.Equal(t, "do you take trade-ins", ua.recorded[0].OriginalText)
	assert.InDelta(t, 0.3, ua.recorded[0].Confidence, 1e-9)
}

func TestAnalyzeStoreFailureReturnsEmptyResult(t *testing.T) {
	e := newEngine(&fakeUnanswered{failGet: true}, &fakeFallbacks{}, newFakeSuggestions(), &fakeQuickResponses{})

	result := e.Analyze(context.Background(), "cfg-1")

	require.NotNil(t, result)
	assert.Empty(t, result.Suggestions)
	assert.Empty(t, result.SuggestedIntents)
}

func TestAutoApplyHighConfidenceNeverApplies(t *testing.T) {
	sg := newFakeSuggestions()
	sg.byID["s1"] = model.Suggestion{ID: "s1", ConfigurationID: "cfg-1", Type: model.SuggestionNewIntent, Confidence: 1.0}
	sg.byID["s2"] = model.Suggestion{ID: "s2", ConfigurationID: "cfg-1", Type: model.SuggestionNewIntent, Confidence: 0.9}
	sg.byID["s3"] = model.Suggestion{ID: "s3", ConfigurationID: "cfg-1", Type: model.SuggestionNewIntent, Confidence: 0.5}

	e := newEngine(&fakeUnanswered{}, &fakeFallbacks{}, sg, &fakeQuickResponses{})
	queued := e.AutoApplyHighConfidence(context.Background(), "cfg-1", 0.85)

	assert.Equal(t, 2, queued)
	for _, s := range sg.byID {
		// Even a perfect-confidence suggestion is only queued, never applied.
		assert.False(t, s.IsApplied, s.ID)
	}
	assert.Equal(t, model.QueuedForReview, sg.byID["s1"].AppliedBy)
	assert.True(t, sg.byID["s1"].RequiresReview)
	assert.Empty(t, sg.byID["s3"].AppliedBy)

	// A second pass does not double-count already queued suggestions.
	assert.Equal(t, 0, e.AutoApplyHighConfidence(context.Background(), "cfg-1", 0.85))
}

func TestApplySuggestionQuickResponse(t *testing.T) {
	sg := newFakeSuggestions()
	qr := &fakeQuickResponses{}
	s := model.Suggestion{
		ID:              "s1",
		ConfigurationID: "cfg-1",
		Type:            model.SuggestionQuickResponseCreation,
		Payload: map[string]any{
			"category": "pricing",
			"keywords": []any{"price", "sedan"},
			"response": "An advisor will send you current pricing shortly.",
		},
	}
	sg.byID["s1"] = s

	e := newEngine(&fakeUnanswered{}, &fakeFallbacks{}, sg, qr)
	ok := e.ApplySuggestion(context.Background(), s)

	require.True(t, ok)
	require.Len(t, qr.created, 1)
	assert.Equal(t, "pricing", qr.created[0].Category)
	assert.Equal(t, []string{"price", "sedan"}, qr.created[0].Keywords)

	applied := sg.byID["s1"]
	assert.True(t, applied.IsApplied)
	require.NotNil(t, applied.AppliedAt)
	assert.Equal(t, "human", applied.AppliedBy)
}

func TestApplySuggestionMalformedPayload(t *testing.T) {
	qr := &fakeQuickResponses{}
	e := newEngine(&fakeUnanswered{}, &fakeFallbacks{}, newFakeSuggestions(), qr)

	ok := e.ApplySuggestion(context.Background(), model.Suggestion{
		ID:   "s1",
		Type: model.SuggestionQuickResponseCreation,
		Payload: map[string]any{
			"category": "pricing", // missing response text
		},
	})

	assert.False(t, ok)
	assert.Empty(t, qr.created)
}

func TestApplySuggestionIntentRecordsDecisionOnly(t *testing.T) {
	sg := newFakeSuggestions()
	qr := &fakeQuickResponses{}
	s := model.Suggestion{ID: "s1", ConfigurationID: "cfg-1", Type: model.SuggestionNewIntent}
	sg.byID["s1"] = s

	e := newEngine(&fakeUnanswered{}, &fakeFallbacks{}, sg, qr)
	ok := e.ApplySuggestion(context.Background(), s)

	require.True(t, ok)
	assert.Empty(t, qr.created, "intent suggestions mutate no external system")
	assert.True(t, sg.byID["s1"].IsApplied)
}

func TestApplySuggestionAlreadyApplied(t *testing.T) {
	e := newEngine(&fakeUnanswered{}, &fakeFallbacks{}, newFakeSuggestions(), &fakeQuickResponses{})
	ok := e.ApplySuggestion(context.Background(), model.Suggestion{ID: "s1", Type: model.SuggestionNewIntent, IsApplied: true})
	assert.False(t, ok)
}

func TestApplySuggestionUnknownType(t *testing.T) {
	e := newEngine(&fakeUnanswered{}, &fakeFallbacks{}, newFakeSuggestions(), &fakeQuickResponses{})
	ok := e.ApplySuggestion(context.Background(), model.Suggestion{ID: "s1", Type: "mystery"})
	assert.False(t, ok)
}
