package engine

import (
	"context"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/frames"
)

// FrameSource produces the map source showing one frame of a mode.
type FrameSource interface {
	BuildSource(ctx context.Context, mode domain.Mode, sel domain.Selection, frame int, at time.Time) (domain.SourceSpec, error)
}

// TileSource builds raster sources from the provider tile templates.
type TileSource struct {
	catalog  *domain.Catalog
	resolver *frames.Resolver
}

// NewTileSource creates a TileSource.
func NewTileSource(catalog *domain.Catalog, resolver *frames.Resolver) *TileSource {
	return &TileSource{catalog: catalog, resolver: resolver}
}

func (s *TileSource) BuildSource(ctx context.Context, mode domain.Mode, sel domain.Selection, frame int, at time.Time) (domain.SourceSpec, error) {
	tpl, err := s.resolver.Template(ctx, mode, sel, frame, at)
	if err != nil {
		return domain.SourceSpec{}, err
	}
	spec := s.catalog.Provider(mode)
	return domain.SourceSpec{
		Kind:     domain.SourceRaster,
		Tiles:    []string{tpl},
		TileSize: spec.TileSize,
		MaxZoom:  spec.MaxZoom,
	}, nil
}

// ImageSource shows a processed archive image regardless of frame.
type ImageSource struct {
	Image domain.ArchiveImage
}

func (s ImageSource) BuildSource(context.Context, domain.Mode, domain.Selection, int, time.Time) (domain.SourceSpec, error) {
	return s.Image.Source(), nil
}
