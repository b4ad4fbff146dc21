package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/motorchat-core/server/internal/assistant/gateway/parsers"
	"github.com/motorchat-core/server/internal/assistant/gateway/prompts"
	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/retrieval"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// Graph node names
const (
	NodeCacheProbe     = "CacheProbe"
	NodeCacheHit       = "CacheHit"
	NodeContextBuilder = "ContextBuilder"
	NodeGenerate       = "Generate"
	NodeRepair         = "Repair"
)

// NewCacheProbePreHandler seeds the per-invocation state before anything runs.
func (g *Gateway) NewCacheProbePreHandler() func(context.Context, model.InferenceRequest, *model.PipelineState) (model.InferenceRequest, error) {
	return func(ctx context.Context, in model.InferenceRequest, s *model.PipelineState) (model.InferenceRequest, error) {
		s.Request = in
		s.StartedAt = time.Now()
		s.SystemPrompt = g.systemPromptIdentity(in)
		return in, nil
	}
}

// systemPromptIdentity is the prompt string used for cache keying: the
// request override when present, otherwise the configured default. The fully
// rendered prompt cannot serve here because retrieved context varies per call.
func (g *Gateway) systemPromptIdentity(req model.InferenceRequest) string {
	if o := strings.TrimSpace(req.SystemPromptOverride); o != "" {
		return o
	}
	return g.cfg.DefaultSystemPrompt
}

// NewCacheProbeNode probes the response cache. It returns nil on miss; the
// branch after it routes on that.
func (g *Gateway) NewCacheProbeNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.InferenceRequest) (*model.CacheEntry, error) {
		entry, ok := g.cache.TryGet(ctx, input.UserText, g.systemPromptIdentity(input))
		if !ok {
			return nil, nil
		}
		return entry, nil
	})
}

// NewCacheBranchCondition routes hits straight to the cache-hit terminal and
// misses into the generation path.
func NewCacheBranchCondition() func(context.Context, *model.CacheEntry) (string, error) {
	return func(ctx context.Context, entry *model.CacheEntry) (string, error) {
		if entry != nil {
			return NodeCacheHit, nil
		}
		return NodeContextBuilder, nil
	}
}

// NewCacheHitNode converts a cache entry into a final result. Both turn
// halves are still persisted to the session so follow-up prompts see the
// question alongside its cached answer.
func (g *Gateway) NewCacheHitNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, entry *model.CacheEntry) (*model.InferenceResult, error) {
		var startedAt time.Time
		var req model.InferenceRequest
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			startedAt = s.StartedAt
			req = s.Request
			return nil
		})
		sessionID := req.SessionID

		if err := g.conv.RecordUserMessage(ctx, sessionID, req.UserText); err != nil {
			logx.Error().Str("session_id", sessionID).Err(err).Msg("Error recording user message")
		}
		if err := g.conv.SaveResponse(ctx, sessionID, entry.Response); err != nil {
			logx.Error().Str("session_id", sessionID).Err(err).Msg("Error saving cached response to history")
		}

		logx.Debug().
			Str("session_id", sessionID).
			Str("intent", entry.Intent).
			Msg("Cache hit, skipping generation")

		return &model.InferenceResult{
			Text:           entry.Response,
			DetectedIntent: entry.Intent,
			Confidence:     entry.Confidence,
			FromCache:      true,
			LatencyMs:      time.Since(startedAt).Milliseconds(),
		}, nil
	})
}

// NewContextBuilderNode records the user turn, grounds the prompt with
// catalog retrieval and assembles the message list under the token budget.
func (g *Gateway) NewContextBuilderNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *model.CacheEntry) ([]*schema.Message, error) {
		var req model.InferenceRequest
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			req = s.Request
			return nil
		}); err != nil {
			return nil, err
		}

		if err := g.conv.RecordUserMessage(ctx, req.SessionID, req.UserText); err != nil {
			// History is best-effort; the turn can still be answered.
			logx.Error().Str("session_id", req.SessionID).Err(err).Msg("Error recording user message")
		}

		retrieved := g.retrieveContext(ctx, req)

		systemPrompt, err := prompts.RenderSystem(ctx, g.promptCfg, req.SystemPromptOverride, retrieved, req.LanguageCode)
		if err != nil {
			return nil, err
		}

		messages, err := g.conv.BuildPromptContext(ctx, req.SessionID, systemPrompt)
		if err != nil {
			// Degrade to a history-free prompt rather than failing the turn.
			logx.Error().Str("session_id", req.SessionID).Err(err).Msg("Error loading history, continuing without it")
			messages = []*schema.Message{
				schema.SystemMessage(systemPrompt),
				schema.UserMessage(req.UserText),
			}
		}

		messages = trimToBudget(messages, g.cfg.ContextWindow, g.genCfg.MaxTokens, g.cfg.CharsPerToken)

		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Retrieved = retrieved
			s.Prompt = messages
			return nil
		})

		return messages, nil
	})
}

func (g *Gateway) retrieveContext(ctx context.Context, req model.InferenceRequest) []model.RankedResult {
	if g.index == nil || g.embedder == nil {
		return nil
	}
	vec := g.embedder.Embed(ctx, req.UserText)
	return g.index.HybridSearch(ctx, retrieval.HybridQuery{
		OwnerID: g.cfg.ConfigurationID,
		Vector:  vec,
		TopK:    g.cfg.RetrievalTopK,
	})
}

// NewGenerateNode calls the generation endpoint behind the circuit breaker.
// It never returns an error: a failed or short-circuited call yields empty
// raw text and the repair node turns that into a fallback result.
func (g *Gateway) NewGenerateNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, messages []*schema.Message) (string, error) {
		if !g.breaker.Allow() {
			logx.Warn().Str("breaker_state", g.breaker.State()).Msg("Generation short-circuited by open breaker")
			_ = compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
				s.CircuitOpen = true
				return nil
			})
			return "", nil
		}

		raw, tokens, err := g.client.Complete(ctx, messages)
		if err != nil {
			g.breaker.RecordFailure()
			logx.Error().Err(err).Msg("Generation call failed")
			return "", nil
		}
		g.breaker.RecordSuccess()

		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.TokensUsed = tokens
			return nil
		})
		return raw, nil
	})
}

// NewRepairNode turns raw model text into the final result via the tiered
// repair parser, falling back to a canned reply when nothing is recoverable.
func (g *Gateway) NewRepairNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, raw string) (*model.InferenceResult, error) {
		var st model.PipelineState
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			st = *s
			return nil
		})

		out, tier, ok := parsers.Repair(raw)
		if !ok {
			return fallbackResult(st.Request.UserText, st.StartedAt), nil
		}

		result := &model.InferenceResult{
			Text:            out.Response,
			DetectedIntent:  out.Intent,
			Confidence:      out.Confidence,
			IsFallback:      out.IsFallback,
			TokensUsed:      st.TokensUsed,
			LatencyMs:       time.Since(st.StartedAt).Milliseconds(),
			Parameters:      out.Parameters,
			LeadSignals:     out.LeadSignals,
			SuggestedAction: out.SuggestedAction,
			QuickReplies:    out.QuickReplies,
		}

		logx.Debug().
			Str("session_id", st.Request.SessionID).
			Str("intent", result.DetectedIntent).
			Str("repair_tier", tier).
			Float64("confidence", result.Confidence).
			Msg("Generation result assembled")

		return result, nil
	})
}

// NewRepairPostHandler persists the assistant reply, writes the cache and
// records unanswered turns for the learning loop. All side effects are
// best-effort; the result is returned regardless.
func (g *Gateway) NewRepairPostHandler() func(context.Context, *model.InferenceResult, *model.PipelineState) (*model.InferenceResult, error) {
	return func(ctx context.Context, result *model.InferenceResult, s *model.PipelineState) (*model.InferenceResult, error) {
		req := s.Request

		if result.Text != "" {
			if err := g.conv.SaveResponse(ctx, req.SessionID, result.Text); err != nil {
				logx.Error().Str("session_id", req.SessionID).Err(err).Msg("Error saving assistant response")
			}
		}

		if !result.IsFallback {
			g.cache.Put(ctx, req.UserText, result.Text, result.DetectedIntent, result.Confidence, result.IsFallback, s.SystemPrompt, 0)
		}

		if result.IsFallback || result.Confidence < g.cfg.UnansweredThreshold {
			g.recordUnanswered(ctx, req, result)
		}

		return result, nil
	}
}

func (g *Gateway) recordUnanswered(ctx context.Context, req model.InferenceRequest, result *model.InferenceResult) {
	if g.unanswered != nil {
		if err := g.unanswered.RecordOrIncrement(ctx, g.cfg.ConfigurationID, req.UserText, result.DetectedIntent, result.Confidence); err != nil {
			logx.Error().Err(err).Msg("Error recording unanswered question")
		}
	}
	if g.fallbacks != nil && result.IsFallback {
		if err := g.fallbacks.Record(ctx, model.FallbackMessage{
			ConfigurationID: g.cfg.ConfigurationID,
			Text:            req.UserText,
			AttemptedIntent: result.DetectedIntent,
			Confidence:      result.Confidence,
			OccurredAt:      time.Now().UTC(),
		}); err != nil {
			logx.Error().Err(err).Msg("Error recording fallback message")
		}
	}
}
