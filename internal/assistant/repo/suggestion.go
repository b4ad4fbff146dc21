package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/motorchat-core/server/internal/assistant/model"
	errx "github.com/motorchat-core/server/internal/core/error"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// RedisSuggestionStore persists learning suggestions in a hash per
// configuration, one JSON blob per suggestion ID.
type RedisSuggestionStore struct {
	rdb redis.Cmdable
}

func NewRedisSuggestionStore(rdb redis.Cmdable) *RedisSuggestionStore {
	return &RedisSuggestionStore{rdb: rdb}
}

func (s *RedisSuggestionStore) key(configID string) string {
	return fmt.Sprintf("suggestions:%s", configID)
}

func (s *RedisSuggestionStore) Save(ctx context.Context, sg model.Suggestion) error {
	if sg.ID == "" {
		return fmt.Errorf("suggestion id is empty")
	}
	b, err := json.Marshal(sg)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key(sg.ConfigurationID), sg.ID, b).Err(); err != nil {
		logx.Error().Err(err).Str("config_id", sg.ConfigurationID).Msg("failed to save suggestion")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisSuggestionStore) List(ctx context.Context, configID string) ([]model.Suggestion, error) {
	rows, err := s.rdb.HGetAll(ctx, s.key(configID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}

	out := make([]model.Suggestion, 0, len(rows))
	for id, row := range rows {
		var sg model.Suggestion
		if err := json.Unmarshal([]byte(row), &sg); err != nil {
			logx.Error().Err(err).Str("config_id", configID).Str("suggestion_id", id).Msg("failed to unmarshal suggestion")
			continue
		}
		out = append(out, sg)
	}

	// newest first, stable across runs
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *RedisSuggestionStore) Update(ctx context.Context, sg model.Suggestion) error {
	return s.Save(ctx, sg)
}

var _ model.SuggestionStore = (*RedisSuggestionStore)(nil)
