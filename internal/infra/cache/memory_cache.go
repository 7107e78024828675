package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	repo "onlinestore/internal/repository"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Redisが無いとき用。値はJSONで持つので呼び出し側とは共有しない
type MemoryCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]entry), now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string, dst any) error {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		return repo.ErrCacheMiss
	}
	return json.Unmarshal(e.data, dst)
}

func (c *MemoryCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Evict(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}
