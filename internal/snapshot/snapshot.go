// Package snapshot caches each user's full task list between mutations.
// Reads go through Get, which refetches on a miss; every successful
// mutation must call Invalidate so the next read sees the store again.
package snapshot

import (
	"context"
	"sync"
	"time"

	"domore/internal/logger"
	"domore/internal/models/task"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Loader func(ctx context.Context) ([]task.Task, error)

// Cache hands out read-only snapshots. Callers must not modify the
// returned slice.
type Cache interface {
	Get(ctx context.Context, key string, load Loader) ([]task.Task, error)
	Invalidate(key string)
}

// Direct always loads; it is used when caching is disabled.
type Direct struct{}

func (Direct) Get(ctx context.Context, _ string, load Loader) ([]task.Task, error) {
	return load(ctx)
}

func (Direct) Invalidate(string) {}

// LRU keeps up to Size snapshots for at most TTL. Concurrent misses for the
// same key share one load.
type LRU struct {
	entries *expirable.LRU[string, []task.Task]
	group   singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

var (
	_ Cache = Direct{}
	_ Cache = (*LRU)(nil)
)

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 256
	}
	return &LRU{
		entries:     expirable.NewLRU[string, []task.Task](size, nil, ttl),
		generations: make(map[string]uint64),
	}
}

func (c *LRU) Get(ctx context.Context, key string, load Loader) ([]task.Task, error) {
	if tasks, ok := c.entries.Get(key); ok {
		return tasks, nil
	}

	gen := c.generation(key)
	v, err, shared := c.group.Do(key, func() (any, error) {
		tasks, err := load(ctx)
		if err != nil {
			return nil, err
		}
		// A mutation landed while we were loading; keep the result out of
		// the cache so the next read refetches.
		if c.generation(key) == gen {
			c.entries.Add(key, tasks)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Snapshot: shared refetch", zap.String("key", key))
	}
	return v.([]task.Task), nil
}

func (c *LRU) Invalidate(key string) {
	c.mu.Lock()
	c.generations[key]++
	c.mu.Unlock()

	c.group.Forget(key)
	c.entries.Remove(key)
}

func (c *LRU) Len() int {
	return c.entries.Len()
}

func (c *LRU) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}
