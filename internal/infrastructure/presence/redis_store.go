package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps presence and typing state in Redis. Every key carries a
// TTL, so state orphaned by a crashed instance disappears on its own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient builds the shared Redis client with the timeouts used
// across the service.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

func typingKey(conversationID, userID string) string {
	return fmt.Sprintf("typing:%s:%s", conversationID, userID)
}

func (s *RedisStore) SetPresence(ctx context.Context, userID, state string, ttl time.Duration) error {
	return s.client.Set(ctx, presenceKey(userID), state, ttl).Err()
}

func (s *RedisStore) GetPresence(ctx context.Context, userID string) (string, error) {
	state, err := s.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return state, nil
}

func (s *RedisStore) SetTyping(ctx context.Context, conversationID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, typingKey(conversationID, userID), "1", ttl).Err()
}

func (s *RedisStore) ClearTyping(ctx context.Context, conversationID, userID string) error {
	return s.client.Del(ctx, typingKey(conversationID, userID)).Err()
}
