package repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/motorchat-core/server/internal/assistant/model"
	"github.com/motorchat-core/server/internal/assistant/simtext"
	errx "github.com/motorchat-core/server/internal/core/error"
	logx "github.com/motorchat-core/server/pkg/logger"
)

// RedisUnansweredStore aggregates unresolved user questions. Occurrence
// counts live in a sorted set so the hottest questions rank first; the
// question details live in per-question hashes. Rows are never deleted, only
// flagged processed after an analysis run consumes them.
type RedisUnansweredStore struct {
	rdb redis.Cmdable
}

func NewRedisUnansweredStore(rdb redis.Cmdable) *RedisUnansweredStore {
	return &RedisUnansweredStore{rdb: rdb}
}

func (s *RedisUnansweredStore) rankingKey(configID string) string {
	return fmt.Sprintf("unanswered:%s:ranking", configID)
}

func (s *RedisUnansweredStore) questionKey(configID, questionID string) string {
	return fmt.Sprintf("unanswered:%s:q:%s", configID, questionID)
}

func (s *RedisUnansweredStore) processedKey(configID string) string {
	return fmt.Sprintf("unanswered:%s:processed", configID)
}

// questionID is deterministic per (configID, normalized text) so repeats of
// the same question always land on the same row.
func questionID(configID, normalized string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(configID+"|"+normalized)).String()
}

func (s *RedisUnansweredStore) RecordOrIncrement(ctx context.Context, configID, text, attemptedIntent string, confidence float64) error {
	normalized := simtext.Normalize(text)
	if normalized == "" {
		return nil
	}
	id := questionID(configID, normalized)

	if err := s.rdb.ZIncrBy(ctx, s.rankingKey(configID), 1, id).Err(); err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("failed to increment unanswered ranking")
		return errx.WrapRedis(err)
	}

	fields := map[string]any{
		"id":              id,
		"original_text":   text,
		"normalized_text": normalized,
	}
	if attemptedIntent != "" {
		fields["attempted_intent"] = attemptedIntent
	}
	if confidence > 0 {
		fields["confidence"] = strconv.FormatFloat(confidence, 'f', -1, 64)
	}
	if err := s.rdb.HSet(ctx, s.questionKey(configID, id), fields).Err(); err != nil {
		logx.Error().Err(err).Str("config_id", configID).Msg("failed to store unanswered question")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisUnansweredStore) GetUnprocessed(ctx context.Context, configID string, limit int) ([]model.UnansweredQuestion, error) {
	if limit <= 0 {
		limit = 100
	}

	// Over-fetch so rows already consumed by a previous run can be skipped.
	ranked, err := s.rdb.ZRevRangeWithScores(ctx, s.rankingKey(configID), 0, int64(limit*5)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}

	out := make([]model.UnansweredQuestion, 0, limit)
	for _, z := range ranked {
		if len(out) >= limit {
			break
		}
		id, _ := z.Member.(string)
		if id == "" {
			continue
		}

		processed, err := s.rdb.SIsMember(ctx, s.processedKey(configID), id).Result()
		if err != nil && err != redis.Nil {
			return nil, errx.WrapRedis(err)
		}
		if processed {
			continue
		}

		fields, err := s.rdb.HGetAll(ctx, s.questionKey(configID, id)).Result()
		if err != nil && err != redis.Nil {
			return nil, errx.WrapRedis(err)
		}
		if len(fields) == 0 {
			continue
		}

		q := model.UnansweredQuestion{
			ID:              id,
			ConfigurationID: configID,
			OriginalText:    fields["original_text"],
			NormalizedText:  fields["normalized_text"],
			OccurrenceCount: int(z.Score),
			AttemptedIntent: fields["attempted_intent"],
		}
		if c, err := strconv.ParseFloat(fields["confidence"], 64); err == nil {
			q.Confidence = c
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *RedisUnansweredStore) MarkProcessed(ctx context.Context, configID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := s.rdb.SAdd(ctx, s.processedKey(configID), members...).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.UnansweredStore = (*RedisUnansweredStore)(nil)
