package sample

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type (
	// Cache maps file paths to decoded sounds. A path is decoded at most
	// once; concurrent loads of the same path share one decode. Sounds are
	// never evicted. Failed loads are not cached, so a file that appears
	// later can still be loaded.
	Cache struct {
		sampleRate int
		channels   int
		logger     *slog.Logger

		mu     sync.RWMutex
		sounds map[string]*Sound
		group  singleflight.Group
	}

	// CacheOption configures a Cache.
	CacheOption func(*Cache)
)

// WithLogger sets the logger used to report skipped and failed loads.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache returns an empty cache converting everything to the given sample
// rate and channel count.
func NewCache(sampleRate, channels int, opts ...CacheOption) *Cache {
	c := &Cache{
		sampleRate: sampleRate,
		channels:   max(channels, 1),
		logger:     slog.Default(),
		sounds:     make(map[string]*Sound),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the sound of a path if it has already been loaded.
func (c *Cache) Get(path string) (*Sound, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sounds[path]
	return s, ok
}

// Len returns the number of cached sounds.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sounds)
}

// Load returns the sound of a path, decoding and caching it on first use.
// Blank paths, missing files and undecodable files return an error and
// leave the cache unchanged.
func (c *Cache) Load(path string) (*Sound, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty sample path")
	}
	if s, ok := c.Get(path); ok {
		return s, nil
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if s, ok := c.Get(path); ok {
			return s, nil
		}
		s, err := c.decodeFile(path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sounds[path] = s
		c.mu.Unlock()
		c.logger.Debug("sample loaded", "path", path, "frames", s.Frames(), "duration", s.Duration())
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Sound), nil
}

func (c *Cache) decodeFile(path string) (*Sound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open sample: %w", err)
	}
	s, err := Decode(f, filepath.Ext(path), c.sampleRate, c.channels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Preload decodes every listed path into the cache, in parallel. Blank
// paths, missing files and decode failures are skipped and logged; Preload
// returns the number of paths that are now cached.
func (c *Cache) Preload(paths []string) int {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	var mu sync.Mutex
	loaded := 0
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		g.Go(func() error {
			if _, err := c.Load(p); err != nil {
				c.logger.Warn("skipping sample", "path", p, "err", err)
				return nil
			}
			mu.Lock()
			loaded++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return loaded
}
