package lookup

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// rootCache holds one built value per workspace root. Concurrent callers
// share a single build, and the build runs to completion even when every
// caller has given up, so a slow first walk is still cached.
type rootCache[T any] struct {
	mu    sync.Mutex
	built map[string]T
	gen   map[string]uint64 // bumped by invalidate and set; stale builds are not stored
	group singleflight.Group
}

func newRootCache[T any]() *rootCache[T] {
	return &rootCache[T]{
		built: make(map[string]T),
		gen:   make(map[string]uint64),
	}
}

// get returns the value for key, building it if needed. ctx only bounds the
// wait, never the build.
func (c *rootCache[T]) get(ctx context.Context, key string, build func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if v, ok := c.built[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	gen := c.gen[key]
	c.mu.Unlock()

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		v, err := build(buildCtx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.gen[key] == gen {
			c.built[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (c *rootCache[T]) cached(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.built[key]
	return ok
}

func (c *rootCache[T]) set(key string, v T) {
	c.mu.Lock()
	c.gen[key]++
	c.built[key] = v
	c.mu.Unlock()
}

func (c *rootCache[T]) invalidate(key string) {
	c.mu.Lock()
	c.gen[key]++
	delete(c.built, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
