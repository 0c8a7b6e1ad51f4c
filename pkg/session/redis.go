package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "crosspost:session:"
	pendingKeyPrefix = "crosspost:pending:"
)

// RedisStore persists sessions in Redis, letting them survive process
// restarts and multiple backend instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unable to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("unable to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("unable to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("unable to delete session: %w", err)
	}
	return nil
}

// RedisPendingCache is the Redis-backed fallback path for correlation
// state. Single-use is enforced with GETDEL, expiry with the key TTL.
type RedisPendingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPendingCache(client *redis.Client, ttl time.Duration) *RedisPendingCache {
	return &RedisPendingCache{client: client, ttl: ttl}
}

func (c *RedisPendingCache) Put(ctx context.Context, pending *PendingAuth) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("unable to marshal pending auth: %w", err)
	}
	key := pendingKeyPrefix + pendingKey(pending.Provider, pending.State)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("unable to save pending auth: %w", err)
	}
	return nil
}

func (c *RedisPendingCache) Take(ctx context.Context, provider Provider, state string) (*PendingAuth, error) {
	key := pendingKeyPrefix + pendingKey(provider, state)
	data, err := c.client.GetDel(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("unable to take pending auth: %w", err)
	}

	var pending PendingAuth
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("unable to unmarshal pending auth: %w", err)
	}
	return &pending, nil
}
