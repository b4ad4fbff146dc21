package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/motorchat-core/server/internal/assistant/model"
	errx "github.com/motorchat-core/server/internal/core/error"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// how long fallback events stay queryable
const fallbackRetention = 30 * 24 * time.Hour

// RedisFallbackStore keeps fallback turns in a sorted set scored by
// occurrence time, so window queries for the learning loop are range scans.
type RedisFallbackStore struct {
	rdb redis.Cmdable
}

func NewRedisFallbackStore(rdb redis.Cmdable) *RedisFallbackStore {
	return &RedisFallbackStore{rdb: rdb}
}

func (s *RedisFallbackStore) eventsKey(configID string) string {
	return fmt.Sprintf("fallbacks:%s:events", configID)
}

func (s *RedisFallbackStore) Record(ctx context.Context, msg model.FallbackMessage) error {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal fallback message: %w", err)
	}

	key := s.eventsKey(msg.ConfigurationID)
	if err := s.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.OccurredAt.UnixMilli()),
		Member: b,
	}).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to record fallback message")
		return errx.WrapRedis(err)
	}

	// prune events older than the retention window
	cutoff := time.Now().Add(-fallbackRetention).UnixMilli()
	if err := s.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("failed to prune old fallback events")
	}
	return nil
}

func (s *RedisFallbackStore) ListSince(ctx context.Context, configID string, since time.Time) ([]model.FallbackMessage, error) {
	key := s.eventsKey(configID)

	rows, err := s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}

	out := make([]model.FallbackMessage, 0, len(rows))
	for i, row := range rows {
		var msg model.FallbackMessage
		if err := json.Unmarshal([]byte(row), &msg); err != nil {
			logx.Error().Err(err).Str("config_id", configID).Int("index", i).Msg("failed to unmarshal fallback message")
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

var _ model.FallbackStore = (*RedisFallbackStore)(nil)
