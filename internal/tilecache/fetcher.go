// Package tilecache fetches raster tiles over HTTP and keeps recently used
// tiles in memory, so prefetched frames can be served again without another
// upstream round trip.
package tilecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// maxTileBytes bounds a single tile body.
const maxTileBytes = 4 << 20

// ErrUpstreamStatus is returned when a tile provider answers with a non-200 status.
var ErrUpstreamStatus = errors.New("tile upstream status")

// Tile is one cached tile body.
type Tile struct {
	ContentType string
	Data        []byte
}

// Fetcher loads tiles from their providers through an LRU cache.
// It implements prefetch.Loader.
type Fetcher struct {
	httpClient *http.Client
	cache      *lru.Cache[string, Tile]
	group      singleflight.Group
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewFetcher creates a Fetcher holding at most size tiles.
func NewFetcher(size int, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) (*Fetcher, error) {
	cache, err := lru.New[string, Tile](size)
	if err != nil {
		return nil, fmt.Errorf("create tile cache: %w", err)
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Fetch returns the tile at url and whether it was served from the cache.
// Concurrent fetches of the same url share one upstream request.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Tile, bool, error) {
	if tile, ok := f.cache.Get(url); ok {
		f.metrics.TileCache.WithLabelValues("hit").Inc()
		return tile, true, nil
	}
	f.metrics.TileCache.WithLabelValues("miss").Inc()

	v, err, _ := f.group.Do(url, func() (any, error) {
		tile, err := f.get(ctx, url)
		if err != nil {
			return Tile{}, err
		}
		f.cache.Add(url, tile)
		return tile, nil
	})
	if err != nil {
		return Tile{}, false, err
	}
	return v.(Tile), false, nil
}

// Load warms the cache with the tile at url.
func (f *Fetcher) Load(ctx context.Context, url string) error {
	_, _, err := f.Fetch(ctx, url)
	return err
}

// Len reports the number of cached tiles.
func (f *Fetcher) Len() int {
	return f.cache.Len()
}

func (f *Fetcher) get(ctx context.Context, url string) (Tile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Tile{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Tile{}, fmt.Errorf("tile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTileBytes))
		return Tile{}, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return Tile{}, fmt.Errorf("read tile: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Tile{ContentType: contentType, Data: data}, nil
}
