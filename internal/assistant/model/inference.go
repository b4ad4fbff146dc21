package model

import "time"

// InferenceRequest describes one inbound user turn. Immutable per call.
type InferenceRequest struct {
	SessionID            string `json:"session_id"`
	UserText             string `json:"user_text"`
	LanguageCode         string `json:"language_code,omitempty"`
	SystemPromptOverride string `json:"system_prompt_override,omitempty"`
}

// LeadSignals carries purchase-intent hints surfaced by the model.
type LeadSignals struct {
	InterestLevel string `json:"interest_level,omitempty"`
	Budget        string `json:"budget,omitempty"`
	Timeframe     string `json:"timeframe,omitempty"`
}

// InferenceResult is the outcome of one turn. Produced once per request and
// never mutated after return.
type InferenceResult struct {
	Text            string         `json:"text"`
	DetectedIntent  string         `json:"detected_intent,omitempty"`
	Confidence      float64        `json:"confidence"`
	IsFallback      bool           `json:"is_fallback"`
	FromCache       bool           `json:"from_cache"`
	TokensUsed      int            `json:"tokens_used"`
	LatencyMs       int64          `json:"latency_ms"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	LeadSignals     *LeadSignals   `json:"lead_signals,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	QuickReplies    []string       `json:"quick_replies,omitempty"`
}

// ModelOutput is the structured payload the generation model is prompted to
// emit. The repair parser reconstructs it from raw (possibly truncated) text.
type ModelOutput struct {
	Response        string         `json:"response"`
	Intent          string         `json:"intent,omitempty"`
	Confidence      float64        `json:"confidence"`
	IsFallback      bool           `json:"is_fallback,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	LeadSignals     *LeadSignals   `json:"lead_signals,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	QuickReplies    []string       `json:"quick_replies,omitempty"`
}

// CacheEntry is a previously generated answer keyed by
// (normalized query, system prompt hash).
type CacheEntry struct {
	Key        string        `json:"key"`
	Response   string        `json:"response"`
	Intent     string        `json:"intent,omitempty"`
	Confidence float64       `json:"confidence"`
	CachedAt   time.Time     `json:"cached_at"`
	TTL        time.Duration `json:"ttl"`
}
