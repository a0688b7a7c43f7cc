package filter

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
)

type loader interface {
	LoadOrBuild(ctx context.Context, k bloom.Key, build BuildFunc) (*bloom.Filter, bool, error)
}

// Cache holds the filter for one configuration identity. Asking for a
// different key drops the held filter before loading the new one.
type Cache struct {
	mu     sync.Mutex
	loader loader
	key    bloom.Key
	filter *bloom.Filter
	total  *prometheus.CounterVec
}

// NewCache creates a cache. total is a counter vec with label "result"
// ("hit"/"load"/"build"), passed explicitly; nil disables counting.
func NewCache(l loader, total *prometheus.CounterVec) *Cache {
	return &Cache{loader: l, total: total}
}

// Get returns the filter for k, loading or building it on a miss.
func (c *Cache) Get(ctx context.Context, k bloom.Key, build BuildFunc) (*bloom.Filter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filter != nil && c.key == k {
		c.inc("hit")
		return c.filter, nil
	}
	c.filter = nil

	f, built, err := c.loader.LoadOrBuild(ctx, k, build)
	if err != nil {
		return nil, err
	}
	if built {
		c.inc("build")
	} else {
		c.inc("load")
	}
	c.key, c.filter = k, f
	return f, nil
}

// Invalidate drops the held filter.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.filter = nil
	c.mu.Unlock()
}

func (c *Cache) inc(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}
