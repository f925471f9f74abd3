package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryEntry struct {
	tenant    Tenant
	expiresAt time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, slug string) (Tenant, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[slug]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return Tenant{}, false, nil
	}
	return e.tenant, true, nil
}

func (c *MemoryCache) Set(_ context.Context, t Tenant, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[t.Slug] = memoryEntry{tenant: t, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

const redisKeyPrefix = "scheduler:tenant:"

// RedisCache shares tenant resolution between manager replicas.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, dbIndex int) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: dbIndex})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, slug string) (Tenant, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return Tenant{}, false, nil
	}
	if err != nil {
		return Tenant{}, false, err
	}
	var t Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tenant{}, false, fmt.Errorf("decode cached tenant %s: %w", slug, err)
	}
	return t, true, nil
}

func (c *RedisCache) Set(ctx context.Context, t Tenant, ttl time.Duration) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKeyPrefix+t.Slug, raw, ttl).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }
