package cache

import (
	"context"
	"errors"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache fronts a Store with an in-process LRU and collapses concurrent
// computations of one name into a single call.
type Cache struct {
	store Store
	mem   *lru.Cache[string, []byte]
	group singleflight.Group
}

// New wraps store. lruSize <= 0 disables the in-process layer.
func New(store Store, lruSize int) (*Cache, error) {
	c := &Cache{store: store}
	if lruSize > 0 {
		mem, err := lru.New[string, []byte](lruSize)
		if err != nil {
			return nil, err
		}
		c.mem = mem
	}
	return c, nil
}

// Get returns the stored artifact or ErrMiss.
func (c *Cache) Get(ctx context.Context, name string) ([]byte, error) {
	if c.mem != nil {
		if data, ok := c.mem.Get(name); ok {
			return data, nil
		}
	}
	data, err := c.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if c.mem != nil {
		c.mem.Add(name, data)
	}
	return data, nil
}

// Put stores data under name. The last writer wins.
func (c *Cache) Put(ctx context.Context, name string, data []byte) error {
	if err := c.store.Put(ctx, name, data); err != nil {
		return err
	}
	if c.mem != nil {
		c.mem.Add(name, data)
	}
	return nil
}

// GetOrCompute returns the artifact stored under name, computing and
// storing it on a miss. hit reports whether the artifact came from the
// cache. A failed compute stores nothing. Store failures are logged and
// never cost the caller the artifact: a failed read computes, a failed
// write still returns the computed data.
func (c *Cache) GetOrCompute(ctx context.Context, name string, compute func(context.Context) ([]byte, error)) (data []byte, hit bool, err error) {
	data, err = c.Get(ctx, name)
	if err == nil {
		return data, true, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Printf("WARNING: cache read %s failed, recomputing: %v", name, err)
	}
	return c.compute(ctx, name, compute)
}

// Refresh computes and stores the artifact regardless of what is cached.
func (c *Cache) Refresh(ctx context.Context, name string, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	data, _, err := c.compute(ctx, name, compute)
	return data, err
}

func (c *Cache) compute(ctx context.Context, name string, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	v, err, _ := c.group.Do(name, func() (any, error) {
		data, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, name, data); err != nil {
			log.Printf("WARNING: cache write %s failed: %v", name, err)
			if c.mem != nil {
				c.mem.Add(name, data)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}
