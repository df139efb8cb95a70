package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-backend/internal/model"
)

// pushSubKey is a HASH: subscription, created_at_ms, updated_at_ms.
func pushSubKey(userID string) string { return "pushsub:" + userID }

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Store backed by one redis hash per user.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) UpsertPushSubscription(ctx context.Context, userID string, subscription json.RawMessage) error {
	key := pushSubKey(userID)
	now := time.Now().UnixMilli()

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "subscription", string(subscription), "updated_at_ms", now)
		pipe.HSetNX(ctx, key, "created_at_ms", now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert push subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) GetPushSubscription(ctx context.Context, userID string) (*model.PushSubscription, error) {
	fields, err := s.rdb.HGetAll(ctx, pushSubKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get push subscription for %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return &model.PushSubscription{
		UserID:       userID,
		Subscription: []byte(fields["subscription"]),
		CreatedAt:    msToTime(fields["created_at_ms"]),
		UpdatedAt:    msToTime(fields["updated_at_ms"]),
	}, nil
}

func (s *redisStore) DeletePushSubscription(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, pushSubKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete push subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

func msToTime(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
