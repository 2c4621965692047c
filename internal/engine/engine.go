// Package engine owns the visualization state: the active mode, the frame,
// playback and the loaded archive. A single goroutine (Run) applies every
// command and timer event, so mode switches and frame swaps never interleave.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/frames"
	"github.com/couchcryptid/storm-radar-loop/internal/layer"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/couchcryptid/storm-radar-loop/internal/playback"
	"github.com/couchcryptid/storm-radar-loop/internal/prefetch"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotAnimated is returned when playback is requested for a mode with
	// fewer than two frames.
	ErrNotAnimated = errors.New("mode has no animation")
	// ErrNotRunning is returned by calls made after Run has exited.
	ErrNotRunning = errors.New("engine is not running")
	// ErrNoTiles is returned by TileURL when the active mode is not tiled.
	ErrNoTiles = errors.New("active mode has no tiles")
	// ErrArchiveDisabled is returned by load_archive without a processor.
	ErrArchiveDisabled = errors.New("archive processing is not configured")
)

// ArchiveProcessor turns one radar archive file into a placed image.
type ArchiveProcessor interface {
	Process(ctx context.Context, fileURL string, progress func(attempt, maxPolls int)) (domain.ArchiveImage, error)
}

// Options configures an Engine.
type Options struct {
	DefaultSite string
	// EventBuffer is the size of the outgoing event queue. Events are
	// dropped when it is full.
	EventBuffer int
	// PrefetchMaxTiles caps frames × visible tiles for one playback
	// prefetch. Defaults to 4096.
	PrefetchMaxTiles int
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Catalog    *domain.Catalog
	Scene      *layer.Scene
	Resolver   *frames.Resolver
	FrameClock *frames.FrameClock
	Prefetcher *prefetch.Prefetcher
	Playback   *playback.Controller
	Archive    ArchiveProcessor
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

type op struct {
	fn   func(ctx context.Context) error
	done chan error
}

type archiveUpdate struct {
	seq      int
	attempt  int
	maxPolls int
	done     bool
	image    domain.ArchiveImage
	err      error
}

// state is only touched by the Run goroutine.
type state struct {
	selection  domain.Selection
	viewport   domain.Viewport
	archive    *domain.ArchiveImage
	message    string
	renderedAt time.Time
	// playAt is the instant the running prefetch session resolved its
	// frames against. It only applies while playback is not Stopped.
	playAt time.Time

	jobSeq    int
	jobCancel context.CancelFunc
}

// Engine is the visualization state machine.
type Engine struct {
	catalog    *domain.Catalog
	scene      *layer.Scene
	layers     *layer.Controller
	playback   *playback.Controller
	resolver   *frames.Resolver
	tiles      *TileSource
	frameClock *frames.FrameClock
	prefetcher *prefetch.Prefetcher
	archive    ArchiveProcessor
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	ops     chan op
	updates chan archiveUpdate
	events  chan domain.Event
	stopped chan struct{}
	running atomic.Bool

	maxTiles int
	st       state
}

// New creates an Engine with no active mode. Call Run to start it.
func New(opts Options, deps Deps) *Engine {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if opts.PrefetchMaxTiles <= 0 {
		opts.PrefetchMaxTiles = 4096
	}
	return &Engine{
		catalog:    deps.Catalog,
		scene:      deps.Scene,
		layers:     layer.NewController(deps.Scene, deps.Catalog, deps.Logger, deps.Metrics),
		playback:   deps.Playback,
		resolver:   deps.Resolver,
		tiles:      NewTileSource(deps.Catalog, deps.Resolver),
		frameClock: deps.FrameClock,
		prefetcher: deps.Prefetcher,
		archive:    deps.Archive,
		clock:      deps.Clock,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		ops:        make(chan op),
		updates:    make(chan archiveUpdate),
		events:     make(chan domain.Event, opts.EventBuffer),
		stopped:    make(chan struct{}),
		maxTiles:   opts.PrefetchMaxTiles,
		st: state{
			selection: domain.DefaultSelection(opts.DefaultSite),
		},
	}
}

// Run applies commands and timer events until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	e.metrics.EngineRunning.Set(1)
	e.logger.Info("engine started")
	defer func() {
		e.playback.Stop()
		if e.st.jobCancel != nil {
			e.st.jobCancel()
		}
		e.running.Store(false)
		e.metrics.EngineRunning.Set(0)
		close(e.stopped)
		e.logger.Info("engine stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-e.ops:
			o.done <- o.fn(ctx)
		case <-e.playback.Ticks():
			e.tick(ctx)
		case <-e.playback.Pending():
			e.prefetchDone(ctx)
		case u := <-e.updates:
			e.archiveUpdate(ctx, u)
		}
	}
}

// CheckReadiness returns nil while the engine loop is running.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.running.Load() {
		return ErrNotRunning
	}
	return nil
}

// Dispatch applies cmd on the engine goroutine and returns its result.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) error {
	return e.do(ctx, func(runCtx context.Context) error {
		err := e.apply(runCtx, cmd)
		if err != nil {
			e.logger.Debug("command rejected", "command", cmd.Name(), "error", err)
		}
		return err
	})
}

// Snapshot returns the current state.
func (e *Engine) Snapshot(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func(context.Context) error {
		st = e.status()
		return nil
	})
	return st, err
}

// TileURL resolves the URL of one tile of frame for the active mode.
func (e *Engine) TileURL(ctx context.Context, frame int, tile domain.TileCoord) (string, error) {
	var (
		mode    domain.Mode
		sel     domain.Selection
		at      time.Time
		isImage bool
	)
	err := e.do(ctx, func(context.Context) error {
		mode = e.layers.Active()
		sel = e.st.selection
		at = e.frameAt()
		isImage = mode == domain.ModeLocalRadar && e.st.archive != nil
		return nil
	})
	if err != nil {
		return "", err
	}
	if mode == domain.ModeInactive || isImage {
		return "", ErrNoTiles
	}
	if n := e.frameClock.FrameCount(mode); frame < 0 || frame >= n {
		return "", fmt.Errorf("%w: %d not in [0,%d)", playback.ErrFrameOutOfRange, frame, n)
	}
	return e.resolver.Resolve(ctx, mode, sel, frame, tile, at)
}

func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	o := op{fn: fn, done: make(chan error, 1)}
	select {
	case e.ops <- o:
	case <-e.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) apply(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case SelectMode:
		return e.selectMode(ctx, c.Mode)
	case SelectSite:
		return e.selectSite(ctx, c.Code)
	case SelectProduct:
		return e.selectProduct(ctx, c.Product)
	case SelectSatellite:
		return e.selectSatellite(ctx, c)
	case SetFrame:
		return e.setFrame(ctx, c.Frame)
	case TogglePlay:
		return e.togglePlay(ctx)
	case SetViewport:
		e.st.viewport = c.Viewport
		return nil
	case LoadArchive:
		return e.loadArchive(ctx, c.URL)
	default:
		return fmt.Errorf("%w: unsupported command %T", ErrInvalidCommand, cmd)
	}
}

// sourceFor picks how the mode's imagery is obtained.
func (e *Engine) sourceFor(mode domain.Mode) FrameSource {
	if mode == domain.ModeLocalRadar && e.st.archive != nil {
		return ImageSource{Image: *e.st.archive}
	}
	return e.tiles
}

func (e *Engine) builder(ctx context.Context, frame int, at time.Time) layer.BuildFunc {
	return func(mode domain.Mode) (domain.SourceSpec, error) {
		return e.sourceFor(mode).BuildSource(ctx, mode, e.st.selection, frame, at)
	}
}

// entryFrame is the frame a mode opens on: the newest frame of a
// minutes-ago series, otherwise frame 0.
func (e *Engine) entryFrame(mode domain.Mode) int {
	p := e.catalog.Provider(mode)
	if p.Kind == domain.FrameMinutesAgo && p.FrameCount > 0 {
		return p.FrameCount - 1
	}
	return 0
}

// selectMode enters mode. Playback is stopped only once the new source is
// installed; a failed build leaves the current mode playing.
func (e *Engine) selectMode(ctx context.Context, mode domain.Mode) error {
	frame := e.entryFrame(mode)
	at := e.clock.Now()
	active, err := e.layers.Select(mode, e.builder(ctx, frame, at))
	if err != nil {
		return err
	}
	e.playback.Stop()
	e.st.playAt = time.Time{}

	p := e.catalog.Provider(active)
	e.playback.Configure(p.FrameCount, p.Kind == domain.FrameMinutesAgo)
	if p.FrameCount > 0 {
		if err := e.playback.SetFrame(min(frame, p.FrameCount-1)); err != nil {
			return err
		}
	}
	e.st.renderedAt = at
	e.emit(domain.EventModeChanged, "")
	return nil
}

// frameAt is the instant frame templates resolve against: the prefetched
// instant while a session is loading or playing, otherwise now.
func (e *Engine) frameAt() time.Time {
	if e.playback.State() != playback.Stopped && !e.st.playAt.IsZero() {
		return e.st.playAt
	}
	return e.clock.Now()
}

// reissue swaps the active source for the current frame in place.
func (e *Engine) reissue(ctx context.Context) error {
	at := e.frameAt()
	if err := e.layers.Reissue(e.builder(ctx, e.playback.Frame(), at)); err != nil {
		return err
	}
	e.st.renderedAt = at
	return nil
}

func (e *Engine) selectSite(ctx context.Context, code string) error {
	if _, err := e.catalog.Site(code); err != nil {
		return err
	}
	e.st.selection.Site = code
	e.st.archive = nil
	return e.refreshIfActive(ctx, domain.ModeLocalRadar)
}

func (e *Engine) selectProduct(ctx context.Context, product domain.Product) error {
	site, err := e.catalog.Site(e.st.selection.Site)
	if err != nil {
		return err
	}
	if _, err := site.Template(product); err != nil {
		return err
	}
	e.st.selection.Product = product
	e.st.archive = nil
	return e.refreshIfActive(ctx, domain.ModeLocalRadar)
}

func (e *Engine) selectSatellite(ctx context.Context, c SelectSatellite) error {
	if _, err := e.catalog.Satellite(c.Satellite, c.Region, c.Band); err != nil {
		return err
	}
	e.st.selection.Satellite = c.Satellite
	e.st.selection.Region = c.Region
	e.st.selection.Band = c.Band
	return e.refreshIfActive(ctx, domain.ModeSatellite)
}

func (e *Engine) refreshIfActive(ctx context.Context, mode domain.Mode) error {
	if e.layers.Active() != mode {
		return nil
	}
	if err := e.reissue(ctx); err != nil {
		return err
	}
	e.emit(domain.EventModeChanged, "")
	return nil
}

func (e *Engine) setFrame(ctx context.Context, frame int) error {
	if err := e.playback.SetFrame(frame); err != nil {
		return err
	}
	if err := e.reissue(ctx); err != nil {
		return err
	}
	e.emit(domain.EventFrameChanged, "")
	return nil
}

func (e *Engine) togglePlay(ctx context.Context) error {
	switch e.playback.State() {
	case playback.Playing:
		e.playback.Stop()
		e.emit(domain.EventPlaybackChanged, "")
		return nil
	case playback.Loading:
		return nil
	}

	mode := e.layers.Active()
	n := e.playback.FrameCount()
	if mode == domain.ModeInactive || n < 2 {
		return fmt.Errorf("%w: %s", ErrNotAnimated, mode)
	}

	vp := e.st.viewport
	vp.Zoom = min(vp.Zoom, e.catalog.Provider(mode).MaxZoom)
	tiles, err := prefetch.PlanTiles(vp, n, e.maxTiles)
	if err != nil {
		return err
	}

	// Templates are resolved here so every frame uses the same now. Ticks
	// keep resolving against it until playback stops.
	at := e.clock.Now()
	templates := make([]string, n)
	for f := range n {
		tpl, err := e.resolver.Template(ctx, mode, e.st.selection, f, at)
		if err != nil {
			return err
		}
		templates[f] = tpl
	}

	session := e.prefetcher.Start(ctx, n, tiles, func(frame int, tile domain.TileCoord) (string, error) {
		return frames.ExpandTile(templates[frame], tile), nil
	})
	e.st.playAt = at
	e.playback.Begin(session)
	e.emit(domain.EventPlaybackChanged, "")
	return nil
}

func (e *Engine) prefetchDone(ctx context.Context) {
	if e.playback.Loaded(e.playback.Session()) {
		// Show the current frame from the prefetched set before the first tick.
		if err := e.reissue(ctx); err != nil {
			e.logger.Warn("frame swap failed", "mode", e.layers.Active(), "frame", e.playback.Frame(), "error", err)
		}
		e.emit(domain.EventPlaybackChanged, "")
		return
	}
	if e.playback.State() == playback.Loading {
		e.playback.Stop()
		e.emit(domain.EventPlaybackChanged, "")
	}
}

func (e *Engine) tick(ctx context.Context) {
	if _, changed := e.playback.Advance(); !changed {
		return
	}
	if err := e.reissue(ctx); err != nil {
		e.logger.Warn("frame swap failed", "mode", e.layers.Active(), "frame", e.playback.Frame(), "error", err)
		return
	}
	e.emit(domain.EventFrameChanged, "")
}

func (e *Engine) loadArchive(ctx context.Context, fileURL string) error {
	if e.archive == nil {
		return ErrArchiveDisabled
	}
	if e.st.jobCancel != nil {
		e.st.jobCancel()
	}
	e.st.jobSeq++
	seq := e.st.jobSeq
	jobCtx, cancel := context.WithCancel(ctx)
	e.st.jobCancel = cancel
	e.st.message = "Submitting..."
	e.logger.Info("archive requested", "url", fileURL)

	go func() {
		defer cancel()
		send := func(u archiveUpdate) {
			select {
			case e.updates <- u:
			case <-jobCtx.Done():
			}
		}
		img, err := e.archive.Process(jobCtx, fileURL, func(attempt, maxPolls int) {
			send(archiveUpdate{seq: seq, attempt: attempt, maxPolls: maxPolls})
		})
		send(archiveUpdate{seq: seq, done: true, image: img, err: err})
	}()
	return nil
}

func (e *Engine) archiveUpdate(ctx context.Context, u archiveUpdate) {
	if u.seq != e.st.jobSeq {
		return
	}
	if !u.done {
		e.st.message = fmt.Sprintf("Processing... (%d/%d)", u.attempt, u.maxPolls)
		return
	}
	e.st.jobCancel = nil

	if u.err != nil {
		e.archiveFailed(u.err)
		return
	}

	img := u.image
	e.st.archive = &img
	var err error
	if e.layers.Active() == domain.ModeLocalRadar {
		err = e.reissue(ctx)
	} else {
		err = e.selectMode(ctx, domain.ModeLocalRadar)
	}
	if err != nil {
		e.st.archive = nil
		e.archiveFailed(err)
		return
	}

	e.st.message = "Archive loaded"
	if img.Cached {
		e.st.message = "Using cached data"
	}
	e.logger.Info("archive loaded", "job_id", img.JobID, "cached", img.Cached)
	e.emit(domain.EventArchiveLoaded, e.st.message)
}

func (e *Engine) archiveFailed(err error) {
	e.st.message = "processing failed: " + err.Error()
	if errors.Is(err, domain.ErrProcessingTimeout) {
		e.st.message = "processing timeout"
	}
	e.logger.Warn("archive processing failed", "error", err)
	e.emit(domain.EventArchiveFailed, e.st.message)
}
