package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/domain"
)

// SnapshotCache stores frozen per-session quiz snapshots in Redis so every
// instance grades a running session against the same question list.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func (c *SnapshotCache) GetSnapshot(ctx context.Context, key string) (domain.Quiz, bool, error) {
	payload, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Quiz{}, false, nil
	}
	if err != nil {
		return domain.Quiz{}, false, err
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(payload, &quiz); err != nil {
		return domain.Quiz{}, false, err
	}
	return quiz, true, nil
}

func (c *SnapshotCache) PutSnapshot(ctx context.Context, key string, quiz domain.Quiz) error {
	payload, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), payload, c.ttl).Err()
}

func (c *SnapshotCache) key(key string) string {
	return "quiz:snapshot:" + key
}
