package prefetch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Loader fetches one tile. Any error counts as a failed load.
type Loader interface {
	Load(ctx context.Context, url string) error
}

// URLFunc resolves the URL of a tile in a frame.
type URLFunc func(frame int, tile domain.TileCoord) (string, error)

// LoadState counts the tiles of a prefetch session.
type LoadState struct {
	Requested int `json:"requested"`
	Loaded    int `json:"loaded"`
	Errored   int `json:"errored"`
}

// Settled is the number of tiles that reached a terminal outcome.
func (s LoadState) Settled() int {
	return s.Loaded + s.Errored
}

// Complete reports whether every requested tile has settled.
func (s LoadState) Complete() bool {
	return s.Settled() == s.Requested
}

// Session is one prefetch run. Done is closed once every tile has settled.
type Session struct {
	id        string
	requested int
	loaded    atomic.Int64
	errored   atomic.Int64
	canceled  atomic.Bool
	done      chan struct{}
	cancel    context.CancelFunc
}

// ID identifies the session in logs and status output.
func (s *Session) ID() string { return s.id }

// Done is closed when the session completes.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns a snapshot of the session counters.
func (s *Session) State() LoadState {
	return LoadState{
		Requested: s.requested,
		Loaded:    int(s.loaded.Load()),
		Errored:   int(s.errored.Load()),
	}
}

// Cancel aborts in-flight loads. Tiles not yet loaded settle as errored and
// Done still closes.
func (s *Session) Cancel() {
	s.canceled.Store(true)
	s.cancel()
}

// Canceled reports whether Cancel was called.
func (s *Session) Canceled() bool { return s.canceled.Load() }

// Prefetcher loads every tile of every frame before playback starts.
type Prefetcher struct {
	loader      Loader
	concurrency int
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Prefetcher issuing at most concurrency loads at once.
func New(loader Loader, concurrency int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Prefetcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Prefetcher{
		loader:      loader,
		concurrency: concurrency,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

type tileKey struct {
	frame int
	tile  domain.TileCoord
}

// Start issues a load for each (frame, tile) pair. Duplicate pairs are
// loaded once. Failed loads are not retried. When there is nothing to load
// the returned session is already complete.
func (p *Prefetcher) Start(ctx context.Context, frameCount int, tiles []domain.TileCoord, urlFor URLFunc) *Session {
	seen := make(map[tileKey]struct{}, frameCount*len(tiles))
	keys := make([]tileKey, 0, frameCount*len(tiles))
	for f := 0; f < frameCount; f++ {
		for _, t := range tiles {
			k := tileKey{frame: f, tile: t}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:        uuid.NewString(),
		requested: len(keys),
		done:      make(chan struct{}),
		cancel:    cancel,
	}

	if len(keys) == 0 {
		cancel()
		close(s.done)
		p.metrics.PrefetchSessions.WithLabelValues("completed").Inc()
		return s
	}

	p.logger.Debug("prefetch started", "session", s.id, "frames", frameCount, "tiles", len(keys))
	go p.run(ctx, s, keys, urlFor)
	return s
}

func (p *Prefetcher) run(ctx context.Context, s *Session, keys []tileKey, urlFor URLFunc) {
	defer s.cancel()
	start := p.clock.Now()

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, k := range keys {
		g.Go(func() error {
			p.load(ctx, s, k, urlFor)
			return nil
		})
	}
	_ = g.Wait()

	state := s.State()
	outcome := "completed"
	if s.Canceled() {
		outcome = "canceled"
	}
	p.metrics.PrefetchSessions.WithLabelValues(outcome).Inc()
	p.metrics.PrefetchDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Debug("prefetch settled",
		"session", s.id,
		"outcome", outcome,
		"loaded", state.Loaded,
		"errored", state.Errored,
		"duration", p.clock.Since(start).Round(time.Millisecond),
	)
	close(s.done)
}

func (p *Prefetcher) load(ctx context.Context, s *Session, k tileKey, urlFor URLFunc) {
	if ctx.Err() != nil {
		p.settle(s, false)
		return
	}

	url, err := urlFor(k.frame, k.tile)
	if err != nil {
		p.logger.Debug("tile url unresolved", "frame", k.frame, "tile", k.tile.String(), "error", err)
		p.settle(s, false)
		return
	}

	if err := p.loader.Load(ctx, url); err != nil {
		p.logger.Debug("tile load failed", "frame", k.frame, "tile", k.tile.String(), "error", err)
		p.settle(s, false)
		return
	}
	p.settle(s, true)
}

func (p *Prefetcher) settle(s *Session, ok bool) {
	if ok {
		s.loaded.Add(1)
		p.metrics.PrefetchTiles.WithLabelValues("loaded").Inc()
		return
	}
	s.errored.Add(1)
	p.metrics.PrefetchTiles.WithLabelValues("errored").Inc()
}
