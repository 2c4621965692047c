package prefetch

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
)

// MaxLatitude is the Web-Mercator latitude limit.
const MaxLatitude = 85.05112878

// MaxZoom is the deepest zoom accepted for tile enumeration.
const MaxZoom = 22

var (
	// ErrInvalidZoom is returned for a zoom outside [0, MaxZoom].
	ErrInvalidZoom = errors.New("invalid zoom")
	// ErrTooManyTiles is returned when a viewport needs more tile loads
	// than the prefetch budget allows.
	ErrTooManyTiles = errors.New("too many tiles")
)

// TileRange is an inclusive rectangle of tile indexes at one zoom.
type TileRange struct {
	MinX, MaxX int
	MinY, MaxY int
	Z          int
}

// Count is the number of tiles in the range.
func (r TileRange) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles lists every tile in the range, row by row.
func (r TileRange) Tiles() []domain.TileCoord {
	out := make([]domain.TileCoord, 0, r.Count())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			out = append(out, domain.TileCoord{X: x, Y: y, Z: r.Z})
		}
	}
	return out
}

// RangeFor computes the tile range covering the corners of b at zoom.
func RangeFor(b domain.Bounds, zoom int) (TileRange, error) {
	if zoom < 0 || zoom > MaxZoom {
		return TileRange{}, fmt.Errorf("%w: %d", ErrInvalidZoom, zoom)
	}

	x1, y1 := LonLatToTile(b.West, b.North, zoom)
	x2, y2 := LonLatToTile(b.East, b.South, zoom)

	return TileRange{
		MinX: min(x1, x2),
		MaxX: max(x1, x2),
		MinY: min(y1, y2),
		MaxY: max(y1, y2),
		Z:    zoom,
	}, nil
}

// VisibleTiles lists every tile needed to cover the viewport. A viewport
// with zero bounds needs no tiles.
func VisibleTiles(v domain.Viewport) ([]domain.TileCoord, error) {
	return PlanTiles(v, 1, 0)
}

// PlanTiles lists the tiles covering v for a series of frameCount frames.
// It fails with ErrTooManyTiles before allocating anything when
// frameCount × tiles exceeds maxLoads. A maxLoads of zero disables the check.
func PlanTiles(v domain.Viewport, frameCount, maxLoads int) ([]domain.TileCoord, error) {
	if v.Bounds.IsZero() {
		return nil, nil
	}
	r, err := RangeFor(v.Bounds, v.Zoom)
	if err != nil {
		return nil, err
	}
	if loads := r.Count() * max(frameCount, 1); maxLoads > 0 && loads > maxLoads {
		return nil, fmt.Errorf("%w: %d loads at zoom %d, limit %d", ErrTooManyTiles, loads, v.Zoom, maxLoads)
	}
	return r.Tiles(), nil
}

// LonLatToTile converts a coordinate to the tile containing it at zoom.
// Latitude is clamped to the Web-Mercator limit and indexes to the pyramid.
func LonLatToTile(lon, lat float64, zoom int) (x, y int) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180

	fx := (lon + 180) / 360 * n
	fy := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n

	limit := int(n) - 1
	return clampIndex(int(math.Floor(fx)), limit), clampIndex(int(math.Floor(fy)), limit)
}

func clampIndex(i, limit int) int {
	if i < 0 {
		return 0
	}
	if i > limit {
		return limit
	}
	return i
}
