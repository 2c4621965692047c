package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/engine"
	"github.com/couchcryptid/storm-radar-loop/internal/playback"
	"github.com/couchcryptid/storm-radar-loop/internal/prefetch"
	"github.com/couchcryptid/storm-radar-loop/internal/tilecache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxCommandBytes bounds a command request body.
const maxCommandBytes = 64 << 10

// Engine is the state machine behind the API.
type Engine interface {
	sharedobs.ReadinessChecker
	Dispatch(ctx context.Context, cmd engine.Command) error
	Snapshot(ctx context.Context) (engine.Status, error)
	TileURL(ctx context.Context, frame int, tile domain.TileCoord) (string, error)
}

// TileFetcher serves tiles from the warm cache.
type TileFetcher interface {
	Fetch(ctx context.Context, url string) (tilecache.Tile, bool, error)
}

// Options configures a Server. SyntheticPNG, when set, is served at
// /api/synthetic/radar.png.
type Options struct {
	Addr         string
	Engine       Engine
	Catalog      *domain.Catalog
	Tiles        TileFetcher
	SyntheticPNG []byte
}

// Server exposes the radar loop API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	engine     Engine
	catalog    *domain.Catalog
	tiles      TileFetcher
	synthetic  []byte
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:    opts.Engine,
		catalog:   opts.Catalog,
		tiles:     opts.Tiles,
		synthetic: opts.SyntheticPNG,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Engine))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/sites", s.handleSites)
	mux.HandleFunc("POST /api/commands", s.handleCommand)
	mux.HandleFunc("GET /api/tiles/{frame}/{z}/{x}/{y}", s.handleTile)
	if len(s.synthetic) > 0 {
		mux.HandleFunc("GET /api/synthetic/radar.png", s.handleSynthetic)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleSites(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.catalog.Sites())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: read body: %w", engine.ErrInvalidCommand, err))
		return
	}

	cmd, err := engine.ParseCommand(body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.Dispatch(r.Context(), cmd); err != nil {
		s.writeError(w, err)
		return
	}

	st, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	frame, err1 := strconv.Atoi(r.PathValue("frame"))
	z, err2 := strconv.Atoi(r.PathValue("z"))
	x, err3 := strconv.Atoi(r.PathValue("x"))
	y, err4 := strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".png"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tile path"})
		return
	}
	if z < 0 || z > prefetch.MaxZoom {
		s.writeError(w, fmt.Errorf("%w: %d", prefetch.ErrInvalidZoom, z))
		return
	}
	if n := 1 << z; x < 0 || y < 0 || x >= n || y >= n {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "tile out of range"})
		return
	}

	url, err := s.engine.TileURL(r.Context(), frame, domain.TileCoord{X: x, Y: y, Z: z})
	if err != nil {
		s.writeError(w, err)
		return
	}

	tile, hit, err := s.tiles.Fetch(r.Context(), url)
	if err != nil {
		s.logger.Debug("tile proxy failed", "url", url, "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	cache := "MISS"
	if hit {
		cache = "HIT"
	}
	w.Header().Set("Content-Type", tile.ContentType)
	w.Header().Set("X-Cache", cache)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tile.Data)
}

func (s *Server) handleSynthetic(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.synthetic)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidCommand),
		errors.Is(err, playback.ErrFrameOutOfRange),
		errors.Is(err, prefetch.ErrInvalidZoom),
		errors.Is(err, prefetch.ErrTooManyTiles):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownSite),
		errors.Is(err, domain.ErrUnknownProduct),
		errors.Is(err, domain.ErrUnknownMode),
		errors.Is(err, engine.ErrNoTiles):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotAnimated):
		return http.StatusConflict
	case errors.Is(err, engine.ErrArchiveDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
