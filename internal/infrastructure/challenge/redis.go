package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs the challenge cache with Redis so in-flight ceremonies
// survive restarts and are shared across instances. GETDEL makes Pop
// atomic.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string { return "webauthn:challenge:" + key }

func (s *RedisStore) Put(ctx context.Context, key string, session webauthn.SessionData) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, redisKey(key), payload, s.ttl).Err()
}

func (s *RedisStore) Pop(ctx context.Context, key string) (webauthn.SessionData, bool, error) {
	payload, err := s.client.GetDel(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return webauthn.SessionData{}, false, nil
		}
		return webauthn.SessionData{}, false, fmt.Errorf("getdel challenge: %w", err)
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(payload, &session); err != nil {
		return webauthn.SessionData{}, false, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, true, nil
}

var _ Store = (*RedisStore)(nil)
