// Package cache is the content-addressed store of previously generated
// answers. It keys on (normalized query, system prompt hash) and applies a
// selective write policy so dynamic or low-confidence answers are always
// regenerated fresh.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/simtext"
	logx "github.com/motorchat-core/server/pkg/logger"
)

const keyNamespace = "anscache:"

// Store is the string get/set surface of the backing distributed cache.
// There is deliberately no bulk delete: entries leave by expiry only.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Touch extends the TTL of an existing key (sliding expiration).
	Touch(ctx context.Context, key string, ttl time.Duration) error
}

type ResponseCache struct {
	store          Store
	ttl            time.Duration
	minQueryLength int
	minConfidence  float64
	excluded       map[string]struct{}
}

func New(store Store, cfg model.CacheConfig) *ResponseCache {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil || ttl <= 0 {
		ttl = 30 * time.Minute
	}

	excluded := make(map[string]struct{})
	for _, intent := range strings.Split(cfg.ExcludedIntents, ",") {
		intent = strings.TrimSpace(intent)
		if intent != "" {
			excluded[intent] = struct{}{}
		}
	}

	return &ResponseCache{
		store:          store,
		ttl:            ttl,
		minQueryLength: cfg.MinQueryLength,
		minConfidence:  cfg.MinConfidence,
		excluded:       excluded,
	}
}

// Key derives the lookup key for a (query, system prompt) pair. Pure: the
// same normalized query and prompt always map to the same key, and the
// prompt enters via a fixed-length hash so key size stays bounded.
func Key(query, systemPrompt string) string {
	norm := simtext.Normalize(query)

	promptSum := sha256.Sum256([]byte(systemPrompt))
	promptHash := hex.EncodeToString(promptSum[:])[:16]

	sum := sha256.Sum256([]byte(norm + "|" + promptHash))
	return keyNamespace + hex.EncodeToString(sum[:])[:32]
}

// TryGet probes the cache. Queries below the minimum length and any store
// failure are a miss; a hit extends the entry's TTL (sliding expiration).
func (c *ResponseCache) TryGet(ctx context.Context, query, systemPrompt string) (*model.CacheEntry, bool) {
	if !c.cacheableQuery(query) {
		return nil, false
	}

	key := Key(query, systemPrompt)
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, treating as miss")
		return nil, false
	}

	if err := c.store.Touch(ctx, key, c.ttl); err != nil {
		logx.Debug().Err(err).Str("key", key).Msg("sliding expiration extension failed")
	}

	entry.Key = key
	return &entry, true
}

// Put stores a generated answer when the selective-caching policy allows it.
// Returns whether the entry was written; store failures are logged no-ops.
func (c *ResponseCache) Put(ctx context.Context, query, response, intent string, confidence float64, isFallback bool, systemPrompt string, ttl time.Duration) bool {
	if !c.cacheableQuery(query) {
		return false
	}
	if isFallback {
		return false
	}
	if confidence < c.minConfidence {
		return false
	}
	if _, dynamic := c.excluded[intent]; dynamic {
		logx.Debug().Str("intent", intent).Msg("dynamic intent excluded from cache")
		return false
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	key := Key(query, systemPrompt)
	entry := model.CacheEntry{
		Key:        key,
		Response:   response,
		Intent:     intent,
		Confidence: confidence,
		CachedAt:   time.Now().UTC(),
		TTL:        ttl,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to marshal cache entry")
		return false
	}
	if err := c.store.Set(ctx, key, string(raw), ttl); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("cache write failed, skipping")
		return false
	}
	return true
}

func (c *ResponseCache) cacheableQuery(query string) bool {
	return len([]rune(simtext.Normalize(query))) >= c.minQueryLength
}
