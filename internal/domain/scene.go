package domain

import "errors"

// SourceKind is the map-library source type.
type SourceKind string

const (
	SourceRaster SourceKind = "raster"
	SourceImage  SourceKind = "image"
)

// SourceSpec describes a map source. Raster sources carry tile templates;
// image sources carry a single image URL with its four corner coordinates
// ordered top-left, top-right, bottom-right, bottom-left as [lon, lat].
type SourceSpec struct {
	Kind        SourceKind   `json:"type"`
	Tiles       []string     `json:"tiles,omitempty"`
	TileSize    int          `json:"tileSize,omitempty"`
	MaxZoom     int          `json:"maxzoom,omitempty"`
	URL         string       `json:"url,omitempty"`
	Coordinates [][2]float64 `json:"coordinates,omitempty"`
}

// Layer is a map style layer. Layers from the base style have no Source.
type Layer struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source,omitempty"`
	Paint  map[string]any `json:"paint,omitempty"`
}

// ArchiveImage is a single processed radar file rendered to one image.
type ArchiveImage struct {
	JobID       string       `json:"job_id"`
	URL         string       `json:"url"`
	Coordinates [][2]float64 `json:"coordinates"`
	Bounds      Bounds       `json:"bounds"`
	Cached      bool         `json:"cached"`
}

// ErrProcessingTimeout is returned by archive processors when a job is still
// running after its poll budget.
var ErrProcessingTimeout = errors.New("processing timeout")

// Source returns the image source that displays the archive.
func (a ArchiveImage) Source() SourceSpec {
	coords := make([][2]float64, len(a.Coordinates))
	copy(coords, a.Coordinates)
	return SourceSpec{Kind: SourceImage, URL: a.URL, Coordinates: coords}
}

// CornersOf returns the image corner coordinates for b.
func CornersOf(b Bounds) [][2]float64 {
	return [][2]float64{
		{b.West, b.North},
		{b.East, b.North},
		{b.East, b.South},
		{b.West, b.South},
	}
}
