package realearth

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxCachedProducts bounds the timestamp cache; the catalog lists only a
// handful of RealEarth products.
const maxCachedProducts = 64

// Lookup returns the latest time token for a product.
type Lookup interface {
	LatestTimestamp(ctx context.Context, product string) (string, error)
}

// CachedLookup wraps a Lookup with a per-product cache whose entries expire
// after ttl.
type CachedLookup struct {
	inner   Lookup
	cache   *expirable.LRU[string, string]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a lookup.
func NewCachedLookup(inner Lookup, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   expirable.NewLRU[string, string](maxCachedProducts, nil, ttl),
		logger:  logger,
		metrics: metrics,
	}
}

func (c *CachedLookup) LatestTimestamp(ctx context.Context, product string) (string, error) {
	if token, ok := c.cache.Get(product); ok {
		c.metrics.TimestampCache.WithLabelValues("hit").Inc()
		return token, nil
	}
	c.metrics.TimestampCache.WithLabelValues("miss").Inc()

	token, err := c.inner.LatestTimestamp(ctx, product)
	if err != nil {
		return "", err
	}
	// Failures are not cached so the next frame retries the lookup.
	if token != "" {
		c.cache.Add(product, token)
	}
	return token, nil
}

// Refresh bypasses the cache and stores fresh tokens for each product.
// Failures are logged and leave any cached token in place.
func (c *CachedLookup) Refresh(ctx context.Context, products []string) int {
	refreshed := 0
	for _, p := range products {
		token, err := c.inner.LatestTimestamp(ctx, p)
		if err != nil {
			c.logger.Warn("realearth refresh failed", "product", p, "error", err)
			continue
		}
		if token == "" {
			continue
		}
		c.cache.Add(p, token)
		refreshed++
	}
	return refreshed
}

// Len reports the number of unexpired cached products.
func (c *CachedLookup) Len() int {
	return c.cache.Len()
}
