package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// Memory is an in-process backend used by tests and dry runs.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memoryCollection)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{index: make(map[string]int)}
		m.collections[name] = c
	}
	return c
}

type memoryCollection struct {
	mu    sync.RWMutex
	posts []types.Post
	index map[string]int
}

func (c *memoryCollection) FetchAll(ctx context.Context) ([]types.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Post, len(c.posts))
	copy(out, c.posts)
	return out, nil
}

func (c *memoryCollection) UpdatePost(ctx context.Context, id string, patch types.PostPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	patch.Apply(&c.posts[i])
	return nil
}

func (c *memoryCollection) SavePost(ctx context.Context, p types.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[p.ID]; ok {
		c.posts[i] = p
		return nil
	}
	c.index[p.ID] = len(c.posts)
	c.posts = append(c.posts, p)
	return nil
}
