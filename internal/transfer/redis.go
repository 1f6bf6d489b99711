package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "editor_transfer:"

// RedisStore keeps payloads in Redis with SET EX and claims them with GETDEL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: normalizeTTL(ttl), now: time.Now}
}

func (s *RedisStore) Put(ctx context.Context, payload string) (Ticket, error) {
	if strings.TrimSpace(payload) == "" {
		return Ticket{}, ErrEmptyPayload
	}
	token := newToken()
	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return Ticket{}, fmt.Errorf("transfer: redis set: %w", err)
	}
	return Ticket{Token: token, ExpiresAt: s.now().Add(s.ttl).UTC()}, nil
}

func (s *RedisStore) Take(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNotFound
	}
	payload, err := s.client.GetDel(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("transfer: redis getdel: %w", err)
	}
	return payload, nil
}
