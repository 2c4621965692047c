package frames

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNoSource is returned when a mode has no tiles to resolve.
	ErrNoSource = errors.New("mode has no tile source")
	// ErrFrameOutOfRange is returned for a frame outside the mode's series.
	ErrFrameOutOfRange = errors.New("frame out of range")
)

// TimestampLookup returns the latest available time token for a product.
type TimestampLookup interface {
	LatestTimestamp(ctx context.Context, product string) (string, error)
}

// Resolver maps a mode, selection and frame to concrete tile URLs.
type Resolver struct {
	catalog *domain.Catalog
	lookup  TimestampLookup
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a Resolver. lookup may be nil, in which case token
// templates always use the current time.
func NewResolver(catalog *domain.Catalog, lookup TimestampLookup, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		catalog: catalog,
		lookup:  lookup,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve returns the URL of one tile of frame. A zero at uses the clock's now.
func (r *Resolver) Resolve(ctx context.Context, mode domain.Mode, sel domain.Selection, frame int, tile domain.TileCoord, at time.Time) (string, error) {
	tpl, err := r.Template(ctx, mode, sel, frame, at)
	if err != nil {
		return "", err
	}
	return ExpandTile(tpl, tile), nil
}

// Template returns the frame's tile template with every placeholder except
// {z}, {x} and {y} substituted.
func (r *Resolver) Template(ctx context.Context, mode domain.Mode, sel domain.Selection, frame int, at time.Time) (string, error) {
	if at.IsZero() {
		at = r.clock.Now()
	}

	switch mode {
	case domain.ModeLocalRadar:
		site, err := r.catalog.Site(sel.Site)
		if err != nil {
			return "", err
		}
		return site.Template(sel.Product)

	case domain.ModeMosaicRadar:
		m := r.catalog.Mosaic
		if frame < 0 || frame >= m.FrameCount {
			return "", fmt.Errorf("%w: %d not in [0,%d)", ErrFrameOutOfRange, frame, m.FrameCount)
		}
		ts := AlignedTimestamp(at, frame, m.FrameCount, m.Interval)
		return strings.ReplaceAll(m.Template, "{ts}", strconv.FormatInt(ts, 10)), nil

	case domain.ModeModel:
		f := r.catalog.Model.Frame(frame)
		if f.Template == "" {
			return "", fmt.Errorf("%w: model %s has no frames", ErrNoSource, r.catalog.Model.Name)
		}
		return f.Template, nil

	case domain.ModeSatellite:
		p, err := r.catalog.Satellite(sel.Satellite, sel.Region, sel.Band)
		if err != nil {
			return "", err
		}
		if !strings.Contains(p.Template, "{time}") {
			return p.Template, nil
		}
		token := r.timeToken(ctx, p.RealEarthProduct, at)
		return strings.ReplaceAll(p.Template, "{time}", token), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrNoSource, mode)
	}
}

func (r *Resolver) timeToken(ctx context.Context, product string, at time.Time) string {
	if product == "" || r.lookup == nil {
		return FormatTimeToken(at)
	}

	token, err := r.lookup.LatestTimestamp(ctx, product)
	if err != nil || token == "" {
		r.logger.Warn("latest timestamp lookup failed, using current time",
			"product", product,
			"error", err,
		)
		r.metrics.TimestampLookups.WithLabelValues("fallback").Inc()
		return FormatTimeToken(at)
	}
	return token
}

// ExpandTile substitutes the tile coordinate into a template.
func ExpandTile(template string, tile domain.TileCoord) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(tile.Z),
		"{x}", strconv.Itoa(tile.X),
		"{y}", strconv.Itoa(tile.Y),
	).Replace(template)
}
