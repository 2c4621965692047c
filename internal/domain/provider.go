package domain

import (
	"errors"
	"fmt"
	"time"
)

// FrameKind describes what a frame index means for a provider.
type FrameKind int

const (
	// FrameLive providers have a single current frame.
	FrameLive FrameKind = iota
	// FrameMinutesAgo frames step backwards from now at a fixed interval;
	// the last frame is the most recent.
	FrameMinutesAgo
	// FrameForecastHours frames step forward through model forecast hours.
	FrameForecastHours
)

func (k FrameKind) String() string {
	switch k {
	case FrameMinutesAgo:
		return "minutes_ago"
	case FrameForecastHours:
		return "forecast_hours"
	default:
		return "live"
	}
}

// ProviderSpec is the immutable frame and rendering policy of one mode.
type ProviderSpec struct {
	Mode       Mode
	Kind       FrameKind
	FrameCount int
	Interval   time.Duration
	TileSize   int
	MaxZoom    int
	Opacity    float64
}

// Product is a single-site radar product.
type Product string

const (
	ProductReflectivity Product = "reflectivity"
	ProductVelocity     Product = "velocity"
)

var (
	ErrUnknownSite    = errors.New("unknown radar site")
	ErrUnknownProduct = errors.New("unknown product")
)

// RadarSite is a static NEXRAD site with its per-product tile templates.
type RadarSite struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Lon          float64 `json:"lon"`
	Lat          float64 `json:"lat"`
	Reflectivity string  `json:"reflectivity"`
	Velocity     string  `json:"velocity"`
}

// Template returns the tile template for the given product.
func (s RadarSite) Template(p Product) (string, error) {
	switch p {
	case ProductReflectivity, "":
		return s.Reflectivity, nil
	case ProductVelocity:
		return s.Velocity, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProduct, p)
	}
}

// MosaicSpec is the wide-area radar mosaic. The template carries a {ts}
// placeholder holding a unix timestamp aligned to Interval.
type MosaicSpec struct {
	Template   string
	FrameCount int
	Interval   time.Duration
}

// ModelFrame is one forecast frame of a model run.
type ModelFrame struct {
	Hour     int
	Template string
}

// ModelSpec maps frame indexes to fixed forecast tile templates.
type ModelSpec struct {
	Name   string
	Frames []ModelFrame
}

// Frame returns the frame at index i, falling back to frame 0 when the
// index is not in the table.
func (m ModelSpec) Frame(i int) ModelFrame {
	if i < 0 || i >= len(m.Frames) {
		if len(m.Frames) == 0 {
			return ModelFrame{}
		}
		return m.Frames[0]
	}
	return m.Frames[i]
}

// SatelliteProduct is one satellite/region/band imagery source. Templates
// containing {time} need a freshness token; when RealEarthProduct is set the
// token comes from the RealEarth latest-time lookup.
type SatelliteProduct struct {
	Satellite        string `json:"satellite"`
	Region           string `json:"region"`
	Band             string `json:"band"`
	Template         string `json:"template"`
	RealEarthProduct string `json:"realearth_product,omitempty"`
}

// Selection is the user's choice within each mode.
type Selection struct {
	Site      string  `json:"site"`
	Product   Product `json:"product"`
	Satellite string  `json:"satellite"`
	Region    string  `json:"region"`
	Band      string  `json:"band"`
}

// DefaultSelection returns the initial selection centred on site.
func DefaultSelection(site string) Selection {
	return Selection{
		Site:      site,
		Product:   ProductReflectivity,
		Satellite: "goes-east",
		Region:    "conus",
		Band:      "visible",
	}
}
