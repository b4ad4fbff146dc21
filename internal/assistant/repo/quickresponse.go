package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/motorchat-core/server/internal/assistant/model"
	errx "github.com/motorchat-core/server/internal/core/error"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// RedisQuickResponseStore persists canned replies created from applied
// suggestions.
type RedisQuickResponseStore struct {
	rdb redis.Cmdable
}

func NewRedisQuickResponseStore(rdb redis.Cmdable) *RedisQuickResponseStore {
	return &RedisQuickResponseStore{rdb: rdb}
}

func (s *RedisQuickResponseStore) key(configID string) string {
	return fmt.Sprintf("quickresponses:%s", configID)
}

func (s *RedisQuickResponseStore) Create(ctx context.Context, qr model.QuickResponse) error {
	if qr.ID == "" {
		qr.ID = uuid.NewString()
	}
	if qr.CreatedAt.IsZero() {
		qr.CreatedAt = time.Now().UTC()
	}

	b, err := json.Marshal(qr)
	if err != nil {
		return fmt.Errorf("marshal quick response: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key(qr.ConfigurationID), qr.ID, b).Err(); err != nil {
		logx.Error().Err(err).Str("config_id", qr.ConfigurationID).Msg("failed to save quick response")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisQuickResponseStore) List(ctx context.Context, configID string) ([]model.QuickResponse, error) {
	rows, err := s.rdb.HGetAll(ctx, s.key(configID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}

	out := make([]model.QuickResponse, 0, len(rows))
	for id, row := range rows {
		var qr model.QuickResponse
		if err := json.Unmarshal([]byte(row), &qr); err != nil {
			logx.Error().Err(err).Str("config_id", configID).Str("quick_response_id", id).Msg("failed to unmarshal quick response")
			continue
		}
		out = append(out, qr)
	}
	return out, nil
}

var _ model.QuickResponseStore = (*RedisQuickResponseStore)(nil)
