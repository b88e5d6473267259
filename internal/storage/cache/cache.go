// Package cache is the Repository Cache (§4.2): a write-through cache in
// front of the Storage Engine that serves reads from memory and persists
// writes asynchronously so the hot ingest path never blocks on disk I/O.
package cache

import (
	"context"
	"sync"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// Engine is the subset of the Storage Engine the cache writes through to.
type Engine interface {
	SaveThread(ctx context.Context, t *model.Thread) error
	SaveThreadsBatch(ctx context.Context, list []*model.Thread) error
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	GetAllThreads(ctx context.Context) ([]*model.Thread, error)
	SaveComment(ctx context.Context, c *model.Comment) error
	GetCommentsForThread(ctx context.Context, threadID string, limit int) ([]*model.Comment, error)
}

// commentsEntry caches the full (up to 200) comment list fetched for a
// thread; GetCommentsForThread truncates from this on every call after the
// first instead of re-querying the engine (§4.2).
type commentsEntry struct {
	comments []*model.Comment
}

const commentsPrefetchLimit = 200

// Cache is the write-through Repository Cache. Reads are served from an
// in-memory map; writes update the map immediately and fire an async
// persistence call to the engine, logged (not surfaced) on failure.
type Cache struct {
	engine Engine
	logger logging.Logger

	mu       sync.RWMutex
	threads  map[string]*model.Thread
	comments map[string]*commentsEntry

	wg       sync.WaitGroup
	keyLocks keyedMutex
}

// New creates a Cache in front of engine.
func New(engine Engine, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Cache{
		engine:   engine,
		logger:   logger,
		threads:  make(map[string]*model.Thread),
		comments: make(map[string]*commentsEntry),
		keyLocks: newKeyedMutex(),
	}
}

// Warmup prefetches every thread from the engine into the cache. Call once
// at startup before serving traffic.
func (c *Cache) Warmup(ctx context.Context) error {
	threads, err := c.engine.GetAllThreads(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range threads {
		c.threads[t.ID] = t
	}
	return nil
}

// Shutdown waits for outstanding async writes to drain, up to ctx's
// deadline. Returns ctx.Err() if the drain didn't finish in time.
func (c *Cache) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveThread updates the cache synchronously and enqueues an async
// persistence call to the engine.
func (c *Cache) SaveThread(ctx context.Context, t *model.Thread) {
	c.mu.Lock()
	c.threads[t.ID] = t
	c.mu.Unlock()

	c.asyncWrite(t.ID, func() {
		if err := c.engine.SaveThread(context.Background(), t); err != nil {
			c.logger.Error("async thread persist failed", "thread_id", t.ID, "error", err)
		}
	})
}

// SaveThreadsBatch updates the cache for every thread in list and enqueues
// one async transaction to the engine. A nil or empty list returns
// immediately having done nothing (§4.2: "an already-completed future").
func (c *Cache) SaveThreadsBatch(ctx context.Context, list []*model.Thread) {
	if len(list) == 0 {
		return
	}
	c.mu.Lock()
	for _, t := range list {
		c.threads[t.ID] = t
	}
	c.mu.Unlock()

	c.asyncWrite("batch", func() {
		if err := c.engine.SaveThreadsBatch(context.Background(), list); err != nil {
			c.logger.Error("async thread batch persist failed", "count", len(list), "error", err)
		}
	})
}

// GetThread returns the cached thread, falling through to the engine and
// populating the cache on a miss.
func (c *Cache) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	c.mu.RLock()
	t, ok := c.threads[id]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	unlock := c.keyLocks.Lock(id)
	defer unlock()

	c.mu.RLock()
	t, ok = c.threads[id]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := c.engine.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.threads[id] = t
	c.mu.Unlock()
	return t, nil
}

// SaveComment persists a comment through the engine synchronously and
// invalidates any cached comment list for its thread so the next
// GetCommentsForThread call re-prefetches (§4.2).
func (c *Cache) SaveComment(ctx context.Context, cm *model.Comment) error {
	if err := c.engine.SaveComment(ctx, cm); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.comments, cm.ThreadID)
	c.mu.Unlock()
	return nil
}

// GetCommentsForThread returns up to limit comments for threadID. The
// first call for a thread prefetches commentsPrefetchLimit comments from
// the engine and caches them; subsequent calls truncate the cached list to
// limit without touching the engine again.
func (c *Cache) GetCommentsForThread(ctx context.Context, threadID string, limit int) ([]*model.Comment, error) {
	c.mu.RLock()
	entry, ok := c.comments[threadID]
	c.mu.RUnlock()
	if !ok {
		unlock := c.keyLocks.Lock("comments:" + threadID)
		c.mu.RLock()
		entry, ok = c.comments[threadID]
		c.mu.RUnlock()
		if !ok {
			fetched, err := c.engine.GetCommentsForThread(ctx, threadID, commentsPrefetchLimit)
			if err != nil {
				unlock()
				return nil, err
			}
			entry = &commentsEntry{comments: fetched}
			c.mu.Lock()
			c.comments[threadID] = entry
			c.mu.Unlock()
		}
		unlock()
	}

	if limit <= 0 || limit >= len(entry.comments) {
		return entry.comments, nil
	}
	return entry.comments[:limit], nil
}

func (c *Cache) asyncWrite(key string, fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		unlock := c.keyLocks.Lock("write:" + key)
		defer unlock()
		fn()
	}()
}
