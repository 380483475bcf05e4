package resource

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	xlog "github.com/stufflebeam/orbeon-forms/internal/log"
)

// Cached keeps resolved content in memory. Concurrent misses for the same
// path share a single lookup on the wrapped manager. Missing resources are
// not cached so a later lookup sees files that appear afterwards.
type Cached struct {
	next   Manager
	logger zerolog.Logger

	mu       sync.RWMutex
	entries  map[string][]byte
	inflight map[string]int
	epoch    uint64
	group    singleflight.Group
}

// CacheOption configures a Cached manager.
type CacheOption func(*Cached)

// WithCacheLogger sets the logger used for invalidation and watcher errors.
func WithCacheLogger(logger zerolog.Logger) CacheOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

// NewCached wraps next with an in-memory cache.
func NewCached(next Manager, options ...CacheOption) *Cached {
	c := &Cached{
		next:    next,
		logger:   zerolog.Nop(),
		entries:  make(map[string][]byte),
		inflight: make(map[string]int),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Content implements Manager. Callers receive their own copy of the bytes.
func (c *Cached) Content(ctx context.Context, path string) ([]byte, error) {
	key := cacheKey(path)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return bytes.Clone(data), nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if cached, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.inflight[key]++
		epoch := c.epoch
		c.mu.Unlock()

		data, err := c.next.Content(ctx, path)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.inflight[key]--; c.inflight[key] == 0 {
			delete(c.inflight, key)
		}
		// An invalidation during the load means data may predate it.
		if err == nil && c.epoch == epoch {
			c.entries[key] = data
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(value.([]byte)), nil
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate drops path, and everything below it when path is a directory.
func (c *Cached) Invalidate(path string) {
	clean, ok := cleanPath(path)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for key := range c.entries {
		if covers(clean, key) {
			delete(c.entries, key)
		}
	}
	for key := range c.inflight {
		if covers(clean, key) {
			c.group.Forget(key)
		}
	}
}

// InvalidateAll empties the cache.
func (c *Cached) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[string][]byte)
	for key := range c.inflight {
		c.group.Forget(key)
	}
}

// covers reports whether invalidating clean drops the entry stored at key.
func covers(clean, key string) bool {
	logical := strings.TrimPrefix(key, "/")
	return logical == clean || strings.HasPrefix(logical, clean+"/")
}

// cacheKey keeps a leading slash so absolute filesystem paths do not collide
// with relative logical paths.
func cacheKey(path string) string {
	trimmed := strings.TrimSpace(path)
	clean, ok := cleanPath(trimmed)
	if !ok {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "/") {
		return "/" + clean
	}
	return clean
}

// Watcher invalidates cache entries when files below a directory change.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
	err     error
}

// Watch observes dir, the directory the wrapped manager serves logical paths
// from, and invalidates entries as files change. Close the returned watcher
// to stop it.
func (c *Cached) Watch(dir string) (*Watcher, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resource: watch %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resource: watch directory %s: %w", root, err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go w.run(c, root)
	return w, nil
}

func (w *Watcher) run(c *Cached, root string) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			rel, err := filepath.Rel(root, event.Name)
			if err != nil {
				continue
			}
			logical := filepath.ToSlash(rel)
			c.Invalidate(logical)
			c.logger.Debug().Str(xlog.FieldPath, logical).Str("op", event.Op.String()).Msg("resource invalidated")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn().Err(err).Msg("resource watcher error")
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.once.Do(func() {
		w.err = w.watcher.Close()
		<-w.done
	})
	return w.err
}
