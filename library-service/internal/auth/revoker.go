package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevoker tracks revoked token ids until they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryTokenRevoker keeps revoked ids in-memory (single instance only).
type MemoryTokenRevoker struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewMemoryTokenRevoker() *MemoryTokenRevoker {
	return &MemoryTokenRevoker{
		tokens: make(map[string]time.Time),
	}
}

func (r *MemoryTokenRevoker) Revoke(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for revoked, expiry := range r.tokens {
		if now.After(expiry) {
			delete(r.tokens, revoked)
		}
	}
	r.tokens[id] = now.Add(ttl)
	return nil
}

func (r *MemoryTokenRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.tokens[id]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(r.tokens, id)
		return false, nil
	}
	return true, nil
}

// RedisTokenRevoker stores revoked ids in Redis with TTL, so every
// instance behind a balancer sees the same logouts.
type RedisTokenRevoker struct {
	client *redis.Client
}

func NewRedisTokenRevoker(addr, password string) *RedisTokenRevoker {
	return &RedisTokenRevoker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

func (r *RedisTokenRevoker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTokenRevoker) Close() error {
	return r.client.Close()
}

func (r *RedisTokenRevoker) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revocationKey(id), "1", ttl).Err()
}

func (r *RedisTokenRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	res, err := r.client.Exists(ctx, revocationKey(id)).Result()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

func revocationKey(id string) string {
	return "lms:revoked:" + id
}
