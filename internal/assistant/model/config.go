package model

// ================ Config ================

type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
}

type GenerationModelConfig struct {
	BaseURL           string  `envconfig:"GENERATION_BASE_URL" default:"http://localhost:8000"`
	APIKey            string  `envconfig:"GENERATION_API_KEY"`
	Model             string  `envconfig:"GENERATION_MODEL" default:"openai/gpt-3.5-turbo"`
	MaxTokens         int     `envconfig:"GENERATION_MAX_TOKENS" default:"1000"`
	Temperature       float32 `envconfig:"GENERATION_TEMPERATURE" default:"0.4"`
	TopP              float32 `envconfig:"GENERATION_TOP_P" default:"0.9"`
	RepetitionPenalty float32 `envconfig:"GENERATION_REPETITION_PENALTY" default:"1.1"`
	StopSequences     string  `envconfig:"GENERATION_STOP_SEQUENCES"`
	TimeoutSeconds    int     `envconfig:"GENERATION_TIMEOUT_SECONDS" default:"60"`
}

type GatewayConfig struct {
	// ConfigurationID scopes cache policy, retrieval ownership and the
	// learning loop stores for one deployed assistant.
	ConfigurationID string  `envconfig:"GATEWAY_CONFIGURATION_ID" default:"default"`
	ContextWindow   int     `envconfig:"GATEWAY_CONTEXT_WINDOW" default:"8192"`
	CharsPerToken   float64 `envconfig:"GATEWAY_CHARS_PER_TOKEN" default:"4"`
	// UnansweredThreshold is the confidence below which a turn is recorded
	// as an unanswered question for the learning loop.
	UnansweredThreshold  float64 `envconfig:"GATEWAY_UNANSWERED_THRESHOLD" default:"0.5"`
	BreakerFailures      int     `envconfig:"GATEWAY_BREAKER_FAILURES" default:"5"`
	BreakerCooldown      string  `envconfig:"GATEWAY_BREAKER_COOLDOWN" default:"30s"`
	RateLimitPerMinute   int     `envconfig:"GATEWAY_RATE_LIMIT_PER_MINUTE" default:"20"`
	DefaultSystemPrompt  string  `envconfig:"GATEWAY_DEFAULT_SYSTEM_PROMPT"`
	RetrievalTopK        int     `envconfig:"GATEWAY_RETRIEVAL_TOP_K" default:"5"`
}

type PromptConfig struct {
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"vehicle dealership"`
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"MotorChat Autos"`
}

type CacheConfig struct {
	TTL            string `envconfig:"CACHE_TTL" default:"30m"`
	MinQueryLength int    `envconfig:"CACHE_MIN_QUERY_LENGTH" default:"10"`
	// MinConfidence gates writes; low-confidence answers must be regenerated.
	MinConfidence float64 `envconfig:"CACHE_MIN_CONFIDENCE" default:"0.7"`
	// ExcludedIntents lists dynamic/personalised intents that are never cached.
	ExcludedIntents string `envconfig:"CACHE_EXCLUDED_INTENTS" default:"vehicle_search,negotiation,lead_capture,test_drive_scheduling"`
}

type EmbeddingConfig struct {
	BaseURL        string `envconfig:"EMBEDDING_BASE_URL" default:"http://localhost:8080"`
	APIKey         string `envconfig:"EMBEDDING_API_KEY"`
	Model          string `envconfig:"EMBEDDING_MODEL" default:"BAAI/bge-small-en-v1.5"`
	Dimensions     int    `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	TimeoutSeconds int    `envconfig:"EMBEDDING_TIMEOUT_SECONDS" default:"15"`
}

type RetrievalConfig struct {
	Host       string `envconfig:"QDRANT_HOST" default:"localhost"`
	Port       int    `envconfig:"QDRANT_PORT" default:"6334"`
	UseTLS     bool   `envconfig:"QDRANT_USE_TLS" default:"false"`
	APIKey     string `envconfig:"QDRANT_API_KEY"`
	Collection string `envconfig:"QDRANT_COLLECTION" default:"catalog_items"`
	VectorSize uint64 `envconfig:"QDRANT_VECTOR_SIZE" default:"384"`
}

type LearningConfig struct {
	// SimilarityThreshold is the word-overlap ratio at or above which two
	// questions join the same cluster.
	SimilarityThreshold float64 `envconfig:"LEARNING_SIMILARITY_THRESHOLD" default:"0.6"`
	MinClusterSize      int     `envconfig:"LEARNING_MIN_CLUSTER_SIZE" default:"3"`
	LargeClusterSize    int     `envconfig:"LEARNING_LARGE_CLUSTER_SIZE" default:"5"`
	BatchSize           int     `envconfig:"LEARNING_BATCH_SIZE" default:"100"`
	FallbackWindowDays  int     `envconfig:"LEARNING_FALLBACK_WINDOW_DAYS" default:"7"`
	FallbackBucketMin   int     `envconfig:"LEARNING_FALLBACK_BUCKET_MIN" default:"5"`
	// Confidence tiers for generated suggestions.
	ClusterConfidence       float64 `envconfig:"LEARNING_CLUSTER_CONFIDENCE" default:"0.6"`
	LargeClusterConfidence  float64 `envconfig:"LEARNING_LARGE_CLUSTER_CONFIDENCE" default:"0.8"`
	QuickResponseConfidence float64 `envconfig:"LEARNING_QUICK_RESPONSE_CONFIDENCE" default:"0.7"`
	ReviewThreshold         float64 `envconfig:"LEARNING_REVIEW_THRESHOLD" default:"0.85"`
	// Savings heuristic inputs.
	InteractionsPerMonth int     `envconfig:"LEARNING_INTERACTIONS_PER_MONTH" default:"50"`
	CostPerInteraction   float64 `envconfig:"LEARNING_COST_PER_INTERACTION" default:"0.002"`
}
