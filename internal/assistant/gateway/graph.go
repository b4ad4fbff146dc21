package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/motorchat-core/server/internal/assistant/embeddings"
	"github.com/motorchat-core/server/internal/assistant/gateway/conversations"
	"github.com/motorchat-core/server/internal/assistant/gateway/observers"
	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/retrieval"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// ResponseCache is the slice of the cache API the gateway needs.
type ResponseCache interface {
	TryGet(ctx context.Context, query, systemPrompt string) (*model.CacheEntry, bool)
	Put(ctx context.Context, query, response, intent string, confidence float64, isFallback bool, systemPrompt string, ttl time.Duration) bool
}

// Limiter throttles per-session request rates. Implementations must fail
// open: when the backing store is unreachable, Allow returns true.
type Limiter interface {
	Allow(ctx context.Context, identity string) bool
}

// Config holds everything needed to compose the inference pipeline end-to-end.
type Config struct {
	Gateway      model.GatewayConfig
	Prompt       model.PromptConfig
	Generation   model.GenerationModelConfig
	Conversation model.ConversationConfig

	ConversationRepo model.ConversationRepository
	Cache            ResponseCache
	Embedder         *embeddings.Client
	Index            *retrieval.Index
	Limiter          Limiter
	Unanswered       model.UnansweredStore
	Fallbacks        model.FallbackStore
}

// Gateway runs one user turn through cache probe, context assembly,
// generation and repair. Its Generate method never returns an error: every
// failure mode degrades to a fallback result.
type Gateway struct {
	cfg       model.GatewayConfig
	promptCfg model.PromptConfig
	genCfg    model.GenerationModelConfig

	client     *GenerationClient
	breaker    *CircuitBreaker
	cache      ResponseCache
	embedder   *embeddings.Client
	index      *retrieval.Index
	conv       *conversations.Manager
	limiter    Limiter
	unanswered model.UnansweredStore
	fallbacks  model.FallbackStore

	runnable compose.Runnable[model.InferenceRequest, *model.InferenceResult]
}

// Build composes and compiles the inference graph and returns a ready Gateway.
func Build(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("response cache is nil")
	}

	cooldown, err := time.ParseDuration(cfg.Gateway.BreakerCooldown)
	if err != nil {
		return nil, fmt.Errorf("parse breaker cooldown: %w", err)
	}

	gw := &Gateway{
		cfg:        cfg.Gateway,
		promptCfg:  cfg.Prompt,
		genCfg:     cfg.Generation,
		client:     NewGenerationClient(cfg.Generation),
		breaker:    NewCircuitBreaker(cfg.Gateway.BreakerFailures, cooldown),
		cache:      cfg.Cache,
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		conv:       conversations.NewManager(cfg.ConversationRepo, cfg.Conversation),
		limiter:    cfg.Limiter,
		unanswered: cfg.Unanswered,
		fallbacks:  cfg.Fallbacks,
	}

	runnable, err := gw.buildGraph(ctx)
	if err != nil {
		return nil, err
	}
	gw.runnable = runnable

	logx.Debug().Msg("Inference graph built successfully")
	return gw, nil
}

// buildGraph constructs and compiles the turn pipeline.
func (g *Gateway) buildGraph(ctx context.Context) (compose.Runnable[model.InferenceRequest, *model.InferenceResult], error) {
	graph := compose.NewGraph[model.InferenceRequest, *model.InferenceResult](
		compose.WithGenLocalState(func(ctx context.Context) *model.PipelineState {
			return &model.PipelineState{}
		}),
	)

	graph.AddLambdaNode(NodeCacheProbe,
		g.NewCacheProbeNode(),
		compose.WithStatePreHandler(g.NewCacheProbePreHandler()),
	)
	graph.AddLambdaNode(NodeCacheHit, g.NewCacheHitNode())
	graph.AddLambdaNode(NodeContextBuilder, g.NewContextBuilderNode())
	graph.AddLambdaNode(NodeGenerate, g.NewGenerateNode())
	graph.AddLambdaNode(NodeRepair,
		g.NewRepairNode(),
		compose.WithStatePostHandler(g.NewRepairPostHandler()),
	)

	edges := [][2]string{
		{compose.START, NodeCacheProbe},
		{NodeCacheHit, compose.END},
		{NodeContextBuilder, NodeGenerate},
		{NodeGenerate, NodeRepair},
		{NodeRepair, compose.END},
	}
	for _, edge := range edges {
		graph.AddEdge(edge[0], edge[1])
	}

	cacheBranch := compose.NewGraphBranch(
		NewCacheBranchCondition(),
		map[string]bool{
			NodeCacheHit:       true,
			NodeContextBuilder: true,
		},
	)
	if err := graph.AddBranch(NodeCacheProbe, cacheBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding cache branch")
		return nil, fmt.Errorf("error adding cache branch: %w", err)
	}

	runnable, err := graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}

// Generate answers one user turn. It always returns a usable result; upstream
// failures, open breaker, malformed output and rate limiting all degrade to
// canned replies instead of errors.
func (g *Gateway) Generate(ctx context.Context, req model.InferenceRequest) *model.InferenceResult {
	started := time.Now()

	if g.limiter != nil && !g.limiter.Allow(ctx, req.SessionID) {
		logx.Warn().Str("session_id", req.SessionID).Msg("Request rate limited")
		return &model.InferenceResult{
			Text:       busyMessage,
			IsFallback: true,
			LatencyMs:  time.Since(started).Milliseconds(),
		}
	}

	result, err := g.runnable.Invoke(ctx, req, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		// Should not happen: the nodes absorb their own failures. Treat a
		// graph-level error like any other unanswerable turn.
		logx.Error().Str("session_id", req.SessionID).Err(err).Msg("Inference graph failed")
		fb := fallbackResult(req.UserText, started)
		g.recordUnanswered(ctx, req, fb)
		return fb
	}
	return result
}

// Health reports gateway readiness: upstream liveness plus breaker state.
func (g *Gateway) Health(ctx context.Context) error {
	if state := g.breaker.State(); state == "open" {
		return fmt.Errorf("circuit breaker is open")
	}
	return g.client.Health(ctx)
}

// ModelInfo returns upstream model metadata.
func (g *Gateway) ModelInfo(ctx context.Context) (map[string]any, error) {
	return g.client.Info(ctx)
}
