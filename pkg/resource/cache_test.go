package resource_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stufflebeam/orbeon-forms/pkg/resource"
)

type countingManager struct {
	calls   atomic.Int32
	release chan struct{}
	data    []byte
}

func (m *countingManager) Content(ctx context.Context, path string) ([]byte, error) {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	if path != "config/form.xml" {
		return nil, &resource.NotFoundError{Path: path, Manager: "counting"}
	}
	return m.data, nil
}

func TestCachedCollapsesConcurrentLookups(t *testing.T) {
	next := &countingManager{release: make(chan struct{}), data: []byte(formXML)}
	cache := resource.NewCached(next)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := cache.Content(context.Background(), "config/form.xml")
			if err != nil || string(data) != formXML {
				t.Errorf("Content = %q, %v", data, err)
			}
		}()
	}
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(next.release)
	wg.Wait()

	require.EqualValues(t, 1, next.calls.Load())
	require.Equal(t, 1, cache.Len())
}

func TestCachedReturnsPrivateCopies(t *testing.T) {
	next := &countingManager{data: []byte(formXML)}
	cache := resource.NewCached(next)

	first, err := cache.Content(context.Background(), "config/form.xml")
	require.NoError(t, err)
	first[0] = 'X'

	second, err := cache.Content(context.Background(), "/config/form.xml")
	require.NoError(t, err)
	require.Equal(t, formXML, string(second))
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	next := &countingManager{data: []byte(formXML)}
	cache := resource.NewCached(next)

	for i := 0; i < 2; i++ {
		_, err := cache.Content(context.Background(), "missing.xml")
		require.True(t, resource.IsNotFound(err))
	}
	require.EqualValues(t, 2, next.calls.Load())
	require.Equal(t, 0, cache.Len())
}

func TestCachedInvalidate(t *testing.T) {
	next := &countingManager{data: []byte(formXML)}
	cache := resource.NewCached(next)

	_, err := cache.Content(context.Background(), "config/form.xml")
	require.NoError(t, err)
	cache.Invalidate("config")
	require.Equal(t, 0, cache.Len())

	_, err = cache.Content(context.Background(), "config/form.xml")
	require.NoError(t, err)
	cache.InvalidateAll()
	require.Equal(t, 0, cache.Len())
	require.EqualValues(t, 2, next.calls.Load())
}

// slowManager reads its content, then blocks the first load until release
// is closed.
type slowManager struct {
	mu      sync.Mutex
	data    string
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (m *slowManager) set(data string) {
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
}

func (m *slowManager) Content(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()
	if m.calls.Add(1) == 1 {
		close(m.started)
		<-m.release
	}
	return []byte(data), nil
}

func TestCachedDropsLoadsRacingInvalidation(t *testing.T) {
	for name, invalidate := range map[string]func(*resource.Cached){
		"path":      func(c *resource.Cached) { c.Invalidate("forms/a.xml") },
		"directory": func(c *resource.Cached) { c.Invalidate("forms") },
		"all":       func(c *resource.Cached) { c.InvalidateAll() },
	} {
		t.Run(name, func(t *testing.T) {
			next := &slowManager{data: "old", started: make(chan struct{}), release: make(chan struct{})}
			cache := resource.NewCached(next)

			first := make(chan string, 1)
			go func() {
				data, err := cache.Content(context.Background(), "forms/a.xml")
				if err != nil {
					t.Errorf("Content: %v", err)
				}
				first <- string(data)
			}()
			<-next.started

			next.set("new")
			invalidate(cache)

			// A caller arriving after the invalidation does not join the
			// stale load.
			data, err := cache.Content(context.Background(), "forms/a.xml")
			require.NoError(t, err)
			require.Equal(t, "new", string(data))

			close(next.release)
			require.Equal(t, "old", <-first)

			data, err = cache.Content(context.Background(), "forms/a.xml")
			require.NoError(t, err)
			require.Equal(t, "new", string(data))
			require.EqualValues(t, 2, next.calls.Load())
		})
	}
}

func TestCachedWatchInvalidatesChangedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	manager, root := newWebApp(t)
	cache := resource.NewCached(manager)

	watcher, err := cache.Watch(root)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, watcher.Close())
	}()

	data, err := cache.Content(context.Background(), "config/form.xml")
	require.NoError(t, err)
	require.Equal(t, formXML, string(data))

	updated := `<xh:html xmlns:xh="http://www.w3.org/1999/xhtml"><xh:body/></xh:html>`
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "form.xml"), []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		data, err := cache.Content(context.Background(), "config/form.xml")
		return err == nil && string(data) == updated
	}, 5*time.Second, 10*time.Millisecond)
}
