package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"microblog/pkg/domain"
)

// flashTTL bounds how long undelivered flashes survive an abandoned scope.
const flashTTL = 30 * time.Minute

// RedisFlashStore queues flash messages in a Redis list per flash scope.
type RedisFlashStore struct {
	client *redis.Client
}

// NewRedisFlashStore builds a Redis-backed flash store.
func NewRedisFlashStore(addr, password string) *RedisFlashStore {
	return &RedisFlashStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Push appends a message to the scope's queue.
func (s *RedisFlashStore) Push(scope string, msg domain.FlashMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal flash: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	key := flashKey(scope)
	if err := s.client.RPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, flashTTL).Err()
}

// Pop drains and returns all queued messages for the scope.
func (s *RedisFlashStore) Pop(scope string) ([]domain.FlashMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	key := flashKey(scope)
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return nil, err
	}
	res := make([]domain.FlashMessage, 0, len(items))
	for _, item := range items {
		var msg domain.FlashMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal flash: %w", err)
		}
		res = append(res, msg)
	}
	return res, nil
}

func flashKey(scope string) string {
	return "microblog:flash:" + scope
}
