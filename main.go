package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/motorchat-core/server/internal/assistant/cache"
	"github.com/motorchat-core/server/internal/assistant/embeddings"
	"github.com/motorchat-core/server/internal/assistant/gateway"
	"github.com/motorchat-core/server/internal/assistant/learning"
	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/ratelimit"
	"github.com/motorchat-core/server/internal/assistant/repo"
	"github.com/motorchat-core/server/internal/assistant/retrieval"
	"github.com/motorchat-core/server/internal/core"
	logx "github.com/motorchat-core/server/pkg/logger"
	pkgredis "github.com/motorchat-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis     pkgredis.Config
	Retrieval model.RetrievalConfig

	// Assistant configs
	Gateway      model.GatewayConfig
	Prompt       model.PromptConfig
	Generation   model.GenerationModelConfig
	Embedding    model.EmbeddingConfig
	Cache        model.CacheConfig
	Conversation model.ConversationConfig
	Learning     model.LearningConfig
}

// demoCatalog is a small dealership inventory used to seed the retrieval
// index for local runs.
var demoCatalog = []model.CatalogItem{
	{ID: "veh-001", Name: "2024 Atlas SE", Category: "suv", Price: 38000, Description: "2024 Atlas SE midsize SUV, 7 seats, all-wheel drive, starting at $38,000. In stock in silver and black.", InStock: true},
	{ID: "veh-002", Name: "2024 Compact Sedan LX", Category: "sedan", Price: 24500, Description: "2024 Compact Sedan LX, 38 MPG combined, adaptive cruise, from $24,500 with 0% APR for 36 months.", InStock: true},
	{ID: "veh-003", Name: "2023 Ridgeline Sport", Category: "truck", Price: 41200, Description: "2023 Ridgeline Sport pickup, towing package included, $41,200. One unit left in showroom.", InStock: true},
	{ID: "veh-004", Name: "2024 City EV", Category: "ev", Price: 32900, Description: "2024 City EV hatchback, 280 mile range, federal incentives available, $32,900 before credits.", InStock: false},
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(envCfg.Environment),
		Service:     "motorchat-assistant",
	})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()
	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	// ====================================================
	// Retrieval: embed and index the demo catalog
	embedder := embeddings.NewClient(envCfg.Embedding)

	index, err := retrieval.NewIndex(envCfg.Retrieval)
	if err != nil {
		log.Fatalf("Failed to connect to Qdrant: %v", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure catalog collection: %v", err)
	}

	items := make([]model.CatalogItem, len(demoCatalog))
	texts := make([]string, len(demoCatalog))
	for i, item := range demoCatalog {
		item.OwnerID = envCfg.Gateway.ConfigurationID
		items[i] = item
		texts[i] = item.Description
	}
	vectors := embedder.EmbedBatch(ctx, texts)
	if err := index.UpsertBatch(ctx, items, vectors); err != nil {
		log.Fatalf("Failed to index demo catalog: %v", err)
	}
	fmt.Printf("Indexed %d catalog items\n", len(items))

	// ====================================================
	// Learning loop stores
	unanswered := repo.NewRedisUnansweredStore(rdb)
	fallbacks := repo.NewRedisFallbackStore(rdb)
	suggestions := repo.NewRedisSuggestionStore(rdb)
	quickResponses := repo.NewRedisQuickResponseStore(rdb)

	engine := learning.New(envCfg.Learning, unanswered, fallbacks, suggestions, quickResponses)

	// ====================================================
	// Inference gateway
	gw, err := gateway.Build(ctx, gateway.Config{
		Gateway:          envCfg.Gateway,
		Prompt:           envCfg.Prompt,
		Generation:       envCfg.Generation,
		Conversation:     envCfg.Conversation,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		Cache:            cache.New(cache.NewRedisStore(rdb), envCfg.Cache),
		Embedder:         embedder,
		Index:            index,
		Limiter:          ratelimit.New(rdb, envCfg.Gateway.RateLimitPerMinute),
		Unanswered:       unanswered,
		Fallbacks:        fallbacks,
	})
	if err != nil {
		log.Fatalf("Failed to build gateway: %v", err)
	}

	if err := gw.Health(ctx); err != nil {
		log.Printf("Warning: generation endpoint not healthy: %v", err)
	}

	// ====================================================
	// Demo turns
	demoTurns := []struct {
		description string
		text        string
	}{
		{"Pricing question in English", "How much does the 2024 Atlas cost?"},
		{"Same question again (should hit the cache)", "How much does the 2024 Atlas cost?"},
		{"Financing question in Spanish", "¿Tienen financiamiento para el sedán compacto?"},
		{"Availability follow-up", "Is the City EV in stock right now?"},
	}

	sessionID := "demo-session-001"
	for i, turn := range demoTurns {
		fmt.Printf("\nTurn %d: %s\n", i+1, turn.description)
		fmt.Printf("User: %s\n", turn.text)

		result := gw.Generate(ctx, model.InferenceRequest{
			SessionID: sessionID,
			UserText:  turn.text,
		})

		fmt.Printf("Assistant: %s\n", result.Text)
		fmt.Printf("  intent=%s confidence=%.2f cache=%t fallback=%t latency=%dms\n",
			result.DetectedIntent, result.Confidence, result.FromCache, result.IsFallback, result.LatencyMs)

		time.Sleep(300 * time.Millisecond)
	}

	// ====================================================
	// Learning pass over whatever the demo turns left behind
	analysis := engine.Analyze(ctx, envCfg.Gateway.ConfigurationID)
	fmt.Printf("\nLearning analysis: %d suggested intents, %d suggestions, %d pending review, est. savings $%.2f/month\n",
		len(analysis.SuggestedIntents), len(analysis.Suggestions), analysis.PendingReviewCount, analysis.EstimatedSavingsUSD)

	queued := engine.AutoApplyHighConfidence(ctx, envCfg.Gateway.ConfigurationID, envCfg.Learning.ReviewThreshold)
	fmt.Printf("Queued %d high-confidence suggestions for human review\n", queued)

	fmt.Println("\nDemo finished")
}
